package scan

import (
	"context"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/roctuner/config"
	"github.com/jrwynneiii/roctuner/daq"
	"github.com/jrwynneiii/roctuner/levels"
)

// ClockScan holds the fixed parameters of a clock delay scan. Every delay
// in Family moves together: at sweep value d it is set to d+offset.
type ClockScan struct {
	Family        map[string]int
	Wrap          int
	Triggers      int
	TriggerPeriod int
	DefaultDelay  int
}

func NewClockScan(conf config.ClockConf) ClockScan {
	return ClockScan{
		Family:        conf.Family,
		Wrap:          conf.Wrap,
		Triggers:      conf.Triggers,
		TriggerPeriod: conf.TriggerPeriod,
		DefaultDelay:  conf.DefaultDelay,
	}
}

// Delays returns the register values for sweep value d. With a non-zero
// Wrap the values are taken modulo Wrap.
func (c ClockScan) Delays(d int) map[string]int {
	out := make(map[string]int, len(c.Family))
	for name, off := range c.Family {
		v := d + off
		if c.Wrap > 0 {
			v %= c.Wrap
			if v < 0 {
				v += c.Wrap
			}
		}
		out[name] = v
	}
	return out
}

// RunClockDelayScan sweeps the clock delay family over r and keeps the
// step whose address levels are most evenly spread. With several ROCs the
// step statistic is the mean of their spreads and a ROC without data
// invalidates the step.
func (o *Orchestrator) RunClockDelayScan(ctx context.Context, cs ClockScan, rocs int, r Range) (Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := Outcome{Kind: KindClock, Best: cs.DefaultDelay}
	if err := r.Validate(); err != nil {
		return out, err
	}
	if rocs <= 0 {
		return out, fmt.Errorf("%w: roc count %d", ErrInvalidRange, rocs)
	}
	if cs.Triggers <= 0 {
		return out, fmt.Errorf("%w: trigger count %d", ErrInvalidRange, cs.Triggers)
	}

	for i, d := range r.Values() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := o.apply(cs.Delays(d)); err != nil {
			return out, err
		}
		var stats []levels.Statistic
		err := o.withSession(daq.Flags{TriggerSource: "pg"}, func() error {
			var err error
			stats, err = o.measureLevels(ctx, cs, rocs)
			return err
		})
		if err != nil {
			return out, fmt.Errorf("clock delay %d: %w", d, err)
		}

		res := Result{Kind: KindClock, Step: i, Value: d, Rocs: stats}
		res.Statistic, res.Valid = stepSpread(stats)
		log.Infof("clk %3d: spread %10.2f valid %v", d, res.Statistic, res.Valid)
		for roc, st := range stats {
			log.Debugf("clk %3d roc %d: means %v black spread %.2f degraded %d", d, roc, st.Means, st.BlackSpread, st.Degraded)
		}
		out.Steps = append(out.Steps, res)
		o.report(res)
	}

	if best, ok := selectMinSpread(out.Steps); ok {
		out.Steps[best].Selected = true
		out.Best = out.Steps[best].Value
		out.Converged = true
	} else {
		log.Warnf("No clock delay produced data, falling back to %d", cs.DefaultDelay)
	}
	out.Values = cs.Delays(out.Best)
	if err := o.apply(out.Values); err != nil {
		return out, err
	}
	log.Infof("Clock delay set to %d: %v", out.Best, out.Values)
	return out, nil
}

func (o *Orchestrator) measureLevels(ctx context.Context, cs ClockScan, rocs int) ([]levels.Statistic, error) {
	accs := make([]*levels.Accumulator, rocs)
	for roc := range accs {
		accs[roc] = levels.NewAccumulator(o.layout.Slots, cs.Triggers)
	}
	if err := o.session.Trigger(cs.Triggers, cs.TriggerPeriod); err != nil {
		return nil, err
	}
	for n := 0; n < cs.Triggers; n++ {
		ev, err := o.readRaw(ctx)
		if err != nil {
			return nil, err
		}
		for roc, acc := range accs {
			s := o.layout.Extract(ev, roc)
			if s.Degraded {
				log.Debugf("Short event (%d words) for roc %d", len(ev), roc)
			}
			if err := acc.Add(s); err != nil {
				return nil, err
			}
		}
	}

	stats := make([]levels.Statistic, rocs)
	for roc, acc := range accs {
		stats[roc] = acc.Statistic()
	}
	return stats, nil
}

// stepSpread combines per-ROC statistics into the step statistic.
func stepSpread(stats []levels.Statistic) (float64, bool) {
	if len(stats) == 0 {
		return levels.NoDataSpread, false
	}
	sum := 0.
	for _, st := range stats {
		if !st.Valid {
			return levels.NoDataSpread, false
		}
		sum += st.Spread
	}
	return sum / float64(len(stats)), true
}

// selectMinSpread returns the index of the first valid step with the
// smallest statistic. Ties keep the earlier step.
func selectMinSpread(steps []Result) (int, bool) {
	best, bestSpread := -1, math.Inf(1)
	for i, res := range steps {
		if res.Valid && res.Statistic < bestSpread {
			best, bestSpread = i, res.Statistic
		}
	}
	return best, best >= 0
}
