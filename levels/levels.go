// Package levels extracts address levels of the test-pixel pattern from
// decoded events and aggregates them per scan step.
package levels

import (
	"errors"
	"fmt"
	"math"

	"github.com/jrwynneiii/roctuner/config"
	"gonum.org/v1/gonum/stat"
)

// NoDataSpread is reported for a step where some slot never saw data.
const NoDataSpread = 1e6

var ErrBudgetExceeded = errors.New("sample count exceeds trigger budget")

type Layout struct {
	Base           int
	Stride         int
	RocBlock       int
	Slots          int
	BlackOffset    int
	BlackSecondary int
	BlackWindow    int
}

func NewLayout(conf config.LayoutConf) Layout {
	return Layout{
		Base:           conf.Base,
		Stride:         conf.Stride,
		RocBlock:       conf.RocBlock,
		Slots:          conf.Slots,
		BlackOffset:    conf.BlackOffset,
		BlackSecondary: conf.BlackSecondary,
		BlackWindow:    conf.BlackWindow,
	}
}

func (l Layout) Offset(roc, slot int) int {
	return l.Base + slot*l.Stride + roc*l.RocBlock
}

func (l Layout) BlackPrimary(roc int) int {
	return l.BlackOffset + roc*l.RocBlock
}

func (l Layout) BlackSecondaryAt(roc, j int) int {
	return l.BlackSecondary + j + roc*l.RocBlock
}

// EventLength is the shortest event that holds every offset for rocs ROCs.
func (l Layout) EventLength(rocs int) int {
	last := rocs - 1
	n := l.Offset(last, l.Slots-1)
	n = max(n, l.BlackPrimary(last))
	if l.BlackWindow > 0 {
		n = max(n, l.BlackSecondaryAt(last, l.BlackWindow-1))
	}
	return n + 1
}

// Sample is what one event yields for one ROC.
type Sample struct {
	Levels    []int // available prefix of the slots
	Black     int
	Secondary []int // available prefix of the black window
	HasBlack  bool
	Degraded  bool
}

// Extract reads the slots of roc from ev. The first slot outside ev ends
// the sample: that slot and all later ones are unavailable.
func (l Layout) Extract(ev []int, roc int) Sample {
	s := Sample{Levels: make([]int, 0, l.Slots)}
	for slot := 0; slot < l.Slots; slot++ {
		off := l.Offset(roc, slot)
		if off < 0 || off >= len(ev) {
			s.Degraded = true
			break
		}
		s.Levels = append(s.Levels, ev[off])
	}

	if off := l.BlackPrimary(roc); off >= 0 && off < len(ev) {
		s.Black = ev[off]
		s.HasBlack = true
	} else {
		s.Degraded = true
	}
	for j := 0; j < l.BlackWindow; j++ {
		off := l.BlackSecondaryAt(roc, j)
		if off < 0 || off >= len(ev) {
			s.Degraded = true
			break
		}
		s.Secondary = append(s.Secondary, ev[off])
	}
	return s
}

// BlackSpread is the mean of |primary - secondary(j)| over the available
// window. ok is false when there is nothing to compare.
func (s Sample) BlackSpread() (float64, bool) {
	if !s.HasBlack || len(s.Secondary) == 0 {
		return 0, false
	}
	sum := 0
	for _, v := range s.Secondary {
		d := s.Black - v
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(s.Secondary)), true
}

// Accumulator holds the running sums of one scan step for one ROC.
type Accumulator struct {
	budget      int
	sums        []int64
	counts      []int
	blackSum    float64
	blackCount  int
	degraded    int
	samplesSeen int
}

func NewAccumulator(slots, budget int) *Accumulator {
	return &Accumulator{
		budget: budget,
		sums:   make([]int64, slots),
		counts: make([]int, slots),
	}
}

// Add folds a sample in. Slots missing from a degraded sample are left
// untouched so the other slots keep unbiased means.
func (a *Accumulator) Add(s Sample) error {
	if a.samplesSeen >= a.budget {
		return fmt.Errorf("%w: budget %d", ErrBudgetExceeded, a.budget)
	}
	a.samplesSeen++
	for slot, v := range s.Levels {
		if slot >= len(a.sums) {
			break
		}
		a.sums[slot] += int64(v)
		a.counts[slot]++
	}
	if bs, ok := s.BlackSpread(); ok {
		a.blackSum += bs
		a.blackCount++
	}
	if s.Degraded {
		a.degraded++
	}
	return nil
}

func (a *Accumulator) Count(slot int) int {
	return a.counts[slot]
}

func (a *Accumulator) Degraded() int {
	return a.degraded
}

// Means returns the per-slot means; a slot without samples reads 0.
func (a *Accumulator) Means() []float64 {
	means := make([]float64, len(a.sums))
	for i, sum := range a.sums {
		if a.counts[i] > 0 {
			means[i] = float64(sum) / float64(a.counts[i])
		}
	}
	return means
}

// Statistic is the per-step summary; a fresh value is built for every step.
type Statistic struct {
	Means       []float64
	Overall     float64
	Spread      float64
	BlackSpread float64
	Degraded    int
	Valid       bool
}

func (a *Accumulator) Statistic() Statistic {
	means := a.Means()
	overall, spread, ok := Spread(means)
	st := Statistic{
		Means:    means,
		Overall:  overall,
		Spread:   spread,
		Degraded: a.degraded,
		Valid:    ok,
	}
	if a.blackCount > 0 {
		st.BlackSpread = a.blackSum / float64(a.blackCount)
	}
	return st
}

// Spread returns the mean of the slot means and the mean absolute deviation
// from it. A mean of exactly zero marks a slot without data: ok is false and
// spread is NoDataSpread.
func Spread(means []float64) (overall, spread float64, ok bool) {
	if len(means) == 0 {
		return 0, NoDataSpread, false
	}
	overall = stat.Mean(means, nil)
	for _, m := range means {
		if m == 0 {
			return overall, NoDataSpread, false
		}
	}
	dev := make([]float64, len(means))
	for i, m := range means {
		dev[i] = math.Abs(m - overall)
	}
	return overall, stat.Mean(dev, nil), true
}
