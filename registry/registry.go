// Package registry holds the name tables for testboard delays, ROC DACs,
// trigger sources and signal probes. A Table is built once at startup and
// is read-only afterwards; calibrators receive it by pointer and use it to
// validate the parameter names they are configured with.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	Delay Kind = iota
	DAC
	TriggerSource
	Probe
)

var ErrUnknownName = errors.New("unknown name")

func (k Kind) String() string {
	switch k {
	case Delay:
		return "delay"
	case DAC:
		return "dac"
	case TriggerSource:
		return "trigger source"
	case Probe:
		return "probe"
	}
	return "unknown"
}

type Entry struct {
	Name  string
	Kind  Kind
	Max   int
	Descr string
}

type Table struct {
	entries map[Kind]map[string]Entry
}

// New builds a table from entries. Names are case insensitive; a later
// entry with the same kind and name replaces an earlier one.
func New(entries ...Entry) *Table {
	t := &Table{entries: make(map[Kind]map[string]Entry)}
	for _, e := range entries {
		e.Name = strings.ToLower(e.Name)
		if t.entries[e.Kind] == nil {
			t.entries[e.Kind] = make(map[string]Entry)
		}
		t.entries[e.Kind][e.Name] = e
	}
	return t
}

func (t *Table) Lookup(kind Kind, name string) (Entry, bool) {
	e, ok := t.entries[kind][strings.ToLower(name)]
	return e, ok
}

// Resolve finds name among the given kinds, first match wins.
func (t *Table) Resolve(name string, kinds ...Kind) (Entry, error) {
	for _, k := range kinds {
		if e, ok := t.Lookup(k, name); ok {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrUnknownName, name)
}

// Check validates a register assignment against the table, including the
// value range when the entry declares one.
func (t *Table) Check(name string, value int, kinds ...Kind) error {
	e, err := t.Resolve(name, kinds...)
	if err != nil {
		return err
	}
	if value < 0 || (e.Max > 0 && value > e.Max) {
		return fmt.Errorf("%s %q value %d outside [0, %d]", e.Kind, e.Name, value, e.Max)
	}
	return nil
}

// Names lists the names of one kind in sorted order.
func (t *Table) Names(kind Kind) []string {
	names := make([]string, 0, len(t.entries[kind]))
	for n := range t.entries[kind] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Default is the testboard and psi46 name set.
func Default() *Table {
	return New(
		Entry{"clk", Delay, 255, "clock delay"},
		Entry{"ctr", Delay, 255, "control delay"},
		Entry{"sda", Delay, 255, "i2c data delay"},
		Entry{"tin", Delay, 255, "token in delay"},
		Entry{"rda", Delay, 255, "readback data delay"},
		Entry{"deser160phase", Delay, 7, "deserializer phase"},
		Entry{"tindelay", Delay, 255, "adc token in delay"},
		Entry{"toutdelay", Delay, 255, "adc token out delay"},
		Entry{"triggerdelay", Delay, 255, "trigger delay"},
		Entry{"triggerlatency", Delay, 255, "trigger latency"},

		Entry{"vdig", DAC, 15, ""},
		Entry{"vana", DAC, 255, ""},
		Entry{"vsf", DAC, 255, ""},
		Entry{"vcomp", DAC, 15, ""},
		Entry{"vthrcomp", DAC, 255, "comparator threshold"},
		Entry{"vtrim", DAC, 255, ""},
		Entry{"vcal", DAC, 255, ""},
		Entry{"caldel", DAC, 255, ""},
		Entry{"ctrlreg", DAC, 255, ""},
		Entry{"wbc", DAC, 255, "write buffer count"},

		Entry{"pg", TriggerSource, 0, "pattern generator"},
		Entry{"pg_dir", TriggerSource, 0, "pattern generator, direct"},
		Entry{"extern", TriggerSource, 0, "external trigger"},
		Entry{"async", TriggerSource, 0, "asynchronous trigger"},
		Entry{"tbm_emu", TriggerSource, 0, "tbm emulator"},

		Entry{"clk", Probe, 0, ""},
		Entry{"sda", Probe, 0, ""},
		Entry{"ctr", Probe, 0, ""},
		Entry{"tin", Probe, 0, ""},
		Entry{"tout", Probe, 0, ""},
		Entry{"trg", Probe, 0, ""},
		Entry{"cal", Probe, 0, ""},
		Entry{"tok", Probe, 0, ""},
	)
}
