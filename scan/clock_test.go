package scan

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jrwynneiii/roctuner/daq"
	"github.com/jrwynneiii/roctuner/levels"
)

// levelEvent builds a two-ROC event for testLayout. Slot s of each ROC
// reads 100+k*s; dead ROCs read zero in every slot.
func levelEvent(k int, dead ...bool) []uint16 {
	ev := make([]int, 2*testLayout.RocBlock)
	for roc := 0; roc < 2; roc++ {
		ev[testLayout.BlackPrimary(roc)] = -100
		for j := 0; j < testLayout.BlackWindow; j++ {
			ev[testLayout.BlackSecondaryAt(roc, j)] = -100 + j
		}
		if roc < len(dead) && dead[roc] {
			continue
		}
		for s := 0; s < testLayout.Slots; s++ {
			ev[testLayout.Offset(roc, s)] = 100 + k*s
		}
	}
	return words(ev...)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func testClockScan() ClockScan {
	return ClockScan{
		Family:       map[string]int{"clk": 0, "sda": 15},
		Triggers:     5,
		DefaultDelay: 2,
	}
}

func TestClockScanPicksSmallestSpread(t *testing.T) {
	f := newFakeSession()
	f.raw = func(regs map[string]int, _ int) ([]uint16, error) {
		d := regs["clk"]
		return levelEvent(abs(d-3), d == 1), nil
	}
	o := newTestOrchestrator(f)
	out, err := o.RunClockDelayScan(context.Background(), testClockScan(), 1, Range{Min: 0, Max: 6})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Converged || out.Best != 3 {
		t.Fatalf("expected delay 3 converged, got %d (converged %v)", out.Best, out.Converged)
	}
	if want := map[string]int{"clk": 3, "sda": 18}; !reflect.DeepEqual(out.Values, want) {
		t.Errorf("values %v, want %v", out.Values, want)
	}
	if last := f.applied[len(f.applied)-1]; !reflect.DeepEqual(last, out.Values) {
		t.Errorf("final apply %v, want %v", last, out.Values)
	}
	if out.Steps[1].Valid || out.Steps[1].Statistic != levels.NoDataSpread {
		t.Errorf("step without data should be penalized, got %+v", out.Steps[1])
	}
	if out.Steps[2].Statistic != 1 || !out.Steps[3].Selected {
		t.Errorf("unexpected steps %+v", out.Steps)
	}
	if f.starts != 6 || f.stops != 6 {
		t.Errorf("expected one session per step, got %d/%d", f.starts, f.stops)
	}
}

func TestClockScanDeadRocPenalizesStep(t *testing.T) {
	f := newFakeSession()
	f.raw = func(regs map[string]int, _ int) ([]uint16, error) {
		d := regs["clk"]
		// roc 1 only answers away from the level optimum at 3
		return levelEvent(abs(d-3), false, d == 3), nil
	}
	o := newTestOrchestrator(f)
	out, err := o.RunClockDelayScan(context.Background(), testClockScan(), 2, Range{Min: 0, Max: 6})
	if err != nil {
		t.Fatal(err)
	}
	if out.Best != 2 {
		t.Errorf("expected the first of the tied neighbours, got %d", out.Best)
	}
	if len(out.Steps[3].Rocs) != 2 || out.Steps[3].Valid {
		t.Errorf("step 3 should carry two rocs and be invalid: %+v", out.Steps[3])
	}
}

func TestClockScanFallsBack(t *testing.T) {
	f := newFakeSession()
	f.raw = func(map[string]int, int) ([]uint16, error) { return levelEvent(0, true), nil }
	o := newTestOrchestrator(f)
	out, err := o.RunClockDelayScan(context.Background(), testClockScan(), 1, Range{Min: 0, Max: 4})
	if err != nil {
		t.Fatal(err)
	}
	if out.Converged {
		t.Error("a scan without data must not converge")
	}
	if out.Best != 2 || out.Values["clk"] != 2 || out.Values["sda"] != 17 {
		t.Errorf("expected the default delay applied, got %d %v", out.Best, out.Values)
	}
}

func TestClockScanReadTimeoutStopsSession(t *testing.T) {
	f := newFakeSession()
	f.raw = func(map[string]int, int) ([]uint16, error) { return nil, daq.ErrNoData }
	o := newTestOrchestrator(f)
	_, err := o.RunClockDelayScan(context.Background(), testClockScan(), 1, Range{Min: 0, Max: 4})
	if !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected ErrReadTimeout, got %v", err)
	}
	if f.starts != 1 || f.stops != 1 {
		t.Errorf("expected a single stopped session, got %d/%d", f.starts, f.stops)
	}
}

func TestClockScanRejectsBadInput(t *testing.T) {
	o := newTestOrchestrator(newFakeSession())
	if _, err := o.RunClockDelayScan(context.Background(), testClockScan(), 1, Range{Min: 4, Max: 4}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := o.RunClockDelayScan(context.Background(), testClockScan(), 0, Range{Min: 0, Max: 4}); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for zero rocs, got %v", err)
	}
}

func TestSelectMinSpread(t *testing.T) {
	cases := []struct {
		name  string
		steps []Result
		want  int
		ok    bool
	}{
		{"empty", nil, -1, false},
		{"all invalid", []Result{{Statistic: levels.NoDataSpread}, {Statistic: levels.NoDataSpread}}, -1, false},
		{"tie keeps lower", []Result{{Statistic: 5, Valid: true}, {Statistic: 2, Valid: true}, {Statistic: 2, Valid: true}}, 1, true},
		{"invalid zero ignored", []Result{{Statistic: 0}, {Statistic: 3, Valid: true}}, 1, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := selectMinSpread(c.steps)
			if got != c.want || ok != c.ok {
				t.Errorf("got %d %v, want %d %v", got, ok, c.want, c.ok)
			}
		})
	}
}

func TestClockDelaysWrap(t *testing.T) {
	cs := ClockScan{Family: map[string]int{"clk": 0, "sda": 15}, Wrap: 20}
	got := cs.Delays(7)
	if got["clk"] != 7 || got["sda"] != 2 {
		t.Errorf("got %v", got)
	}
}
