package scan

import (
	"errors"
	"fmt"

	"github.com/jrwynneiii/roctuner/levels"
)

var (
	ErrReadTimeout  = errors.New("no data from daq within retry budget")
	ErrInvalidRange = errors.New("invalid scan range")
	ErrApply        = errors.New("could not apply registers")
)

type Kind int

const (
	KindClock Kind = iota
	KindEdge
	KindWBC
	KindLatency
)

func (k Kind) String() string {
	switch k {
	case KindClock:
		return "clock"
	case KindEdge:
		return "edge"
	case KindWBC:
		return "wbc"
	case KindLatency:
		return "latency"
	}
	return "unknown"
}

// Range is the half-open interval [Min, Max) walked in Step increments.
// A zero Step means 1.
type Range struct {
	Min  int
	Max  int
	Step int
}

func (r Range) step() int {
	if r.Step <= 0 {
		return 1
	}
	return r.Step
}

func (r Range) Validate() error {
	if r.Max <= r.Min {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

func (r Range) Values() []int {
	var vals []int
	for v := r.Min; v < r.Max; v += r.step() {
		vals = append(vals, v)
	}
	return vals
}

// Result is one scan step. Statistic is the spread for clock scans, the
// inspected word for edge scans and the yield for yield scans.
type Result struct {
	Kind      Kind
	Phase     string
	Step      int
	Value     int
	Statistic float64
	Valid     bool
	Selected  bool

	// clock scans
	Rocs []levels.Statistic

	// yield scans
	Yield      int
	Errors     int
	InfoWords  int
	InfoPixels int
}

// Outcome is what a calibration run hands back. When Converged is false
// the Values are the configured fallbacks and must not be trusted as a
// measurement.
type Outcome struct {
	Kind      Kind
	Best      int
	Values    map[string]int
	Converged bool
	Steps     []Result
}
