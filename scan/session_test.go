package scan

import (
	"github.com/jrwynneiii/roctuner/config"
	"github.com/jrwynneiii/roctuner/daq"
	"github.com/jrwynneiii/roctuner/levels"
	"github.com/jrwynneiii/roctuner/registry"
)

// fakeSession records what the scans do to it. raw and event produce the
// readout from the current register state.
type fakeSession struct {
	regs    map[string]int
	applied []map[string]int
	flags   []daq.Flags
	running bool
	starts  int
	stops   int
	reads   int

	startErr error
	stopErr  error
	applyErr error

	raw   func(regs map[string]int, n int) ([]uint16, error)
	event func(regs map[string]int, n int) (daq.Event, error)
	stats daq.Stats
}

func newFakeSession() *fakeSession {
	return &fakeSession{regs: make(map[string]int)}
}

func (f *fakeSession) ApplyRegisters(params map[string]int) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	cp := make(map[string]int, len(params))
	for k, v := range params {
		f.regs[k] = v
		cp[k] = v
	}
	f.applied = append(f.applied, cp)
	return nil
}

func (f *fakeSession) Start(flags daq.Flags) error {
	if f.startErr != nil {
		return f.startErr
	}
	if f.running {
		return daq.ErrAlreadyRunning
	}
	f.running = true
	f.starts++
	f.flags = append(f.flags, flags)
	return nil
}

func (f *fakeSession) Stop() error {
	if !f.running {
		return daq.ErrNotRunning
	}
	f.running = false
	f.stops++
	return f.stopErr
}

func (f *fakeSession) Trigger(count, period int) error {
	if !f.running {
		return daq.ErrNotRunning
	}
	return nil
}

func (f *fakeSession) ReadRawEvent() ([]uint16, error) {
	f.reads++
	return f.raw(f.regs, f.reads)
}

func (f *fakeSession) ReadEvent() (daq.Event, error) {
	f.reads++
	return f.event(f.regs, f.reads)
}

func (f *fakeSession) Statistics() daq.Stats {
	return f.stats
}

// words encodes signed levels the way the testboard sends them.
func words(vals ...int) []uint16 {
	out := make([]uint16, len(vals))
	for i, v := range vals {
		out[i] = uint16(v) & 0x0fff
	}
	return out
}

var testLayout = levels.Layout{
	Base:           1,
	Stride:         1,
	RocBlock:       8,
	Slots:          4,
	BlackOffset:    0,
	BlackSecondary: 5,
	BlackWindow:    2,
}

var testRetry = config.RetryConf{MaxRetries: 5, TimeoutMs: 1000, IntervalMs: 1}

func newTestOrchestrator(f *fakeSession) *Orchestrator {
	return New(f, registry.Default(), testLayout, testRetry)
}
