package registry

import (
	"errors"
	"fmt"
	"testing"
)

func ExampleTable_Names() {
	fmt.Println(Default().Names(TriggerSource))
	// Output: [async extern pg pg_dir tbm_emu]
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	tbl := Default()
	e, ok := tbl.Lookup(DAC, "WBC")
	if !ok {
		t.Fatal("expected WBC to resolve")
	}
	if e.Name != "wbc" || e.Kind != DAC {
		t.Errorf("got %+v", e)
	}
}

func TestResolveSearchesKindsInOrder(t *testing.T) {
	tbl := Default()
	e, err := tbl.Resolve("clk", Probe, Delay)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != Probe {
		t.Errorf("expected probe entry first, got %s", e.Kind)
	}
	if _, err := tbl.Resolve("nonsense", Delay, DAC); !errors.Is(err, ErrUnknownName) {
		t.Errorf("expected ErrUnknownName, got %v", err)
	}
}

func TestCheckRange(t *testing.T) {
	tbl := Default()
	cases := []struct {
		name  string
		value int
		ok    bool
	}{
		{"deser160phase", 7, true},
		{"deser160phase", 8, false},
		{"wbc", -1, false},
		{"clk", 19, true},
	}
	for _, c := range cases {
		err := tbl.Check(c.name, c.value, Delay, DAC)
		if (err == nil) != c.ok {
			t.Errorf("%s=%d: expected ok=%v, got err %v", c.name, c.value, c.ok, err)
		}
	}
}

func TestLaterEntryReplaces(t *testing.T) {
	tbl := New(Entry{"x", DAC, 10, ""}, Entry{"X", DAC, 20, ""})
	e, _ := tbl.Lookup(DAC, "x")
	if e.Max != 20 {
		t.Errorf("expected max 20, got %d", e.Max)
	}
}
