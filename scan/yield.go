package scan

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/roctuner/config"
	"github.com/jrwynneiii/roctuner/daq"
	"github.com/jrwynneiii/roctuner/registry"
)

type YieldOptions struct {
	Param         string
	Range         Range
	Budget        int
	TriggerSource string
	TriggerPeriod int
}

func NewYieldOptions(conf config.YieldConf) YieldOptions {
	return YieldOptions{
		Param:         conf.Param,
		Range:         Range{Min: conf.Min, Max: conf.Max, Step: conf.Step},
		Budget:        conf.Budget,
		TriggerSource: conf.TriggerSource,
		TriggerPeriod: conf.TriggerPeriod,
	}
}

// StopRule ends a yield scan early once it returns true for a step.
type StopRule func(Result) bool

// Yield is the percentage of hits over budget reads, truncated to an
// integer. A budget of 7 hits in 10 reads yields 70.
func Yield(hits, budget int) int {
	if budget <= 0 {
		return 0
	}
	return 100 * hits / budget
}

// RunYieldScan walks opts.Range, measuring the hit yield of each value in
// its own session, until stop accepts a step or the range is exhausted.
func (o *Orchestrator) RunYieldScan(ctx context.Context, opts YieldOptions, stop StopRule) ([]Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runYield(ctx, opts, stop)
}

func (o *Orchestrator) runYield(ctx context.Context, opts YieldOptions, stop StopRule) ([]Result, error) {
	if err := opts.Range.Validate(); err != nil {
		return nil, err
	}
	if opts.Budget <= 0 {
		return nil, fmt.Errorf("%w: trigger budget %d", ErrInvalidRange, opts.Budget)
	}
	if _, err := o.names.Resolve(opts.Param, registry.Delay, registry.DAC); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApply, err)
	}
	if err := o.checkTriggerSource(opts.TriggerSource); err != nil {
		return nil, err
	}

	var results []Result
	for i, v := range opts.Range.Values() {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if err := o.apply(map[string]int{opts.Param: v}); err != nil {
			return results, err
		}
		res := Result{Kind: yieldKind(opts.Param), Step: i, Value: v, Valid: true}
		err := o.withSession(daq.Flags{TriggerSource: opts.TriggerSource}, func() error {
			hits, err := o.countHits(ctx, opts)
			if err != nil {
				return err
			}
			st := o.session.Statistics()
			res.Yield = Yield(hits, opts.Budget)
			res.Statistic = float64(res.Yield)
			res.Errors = st.Errors
			res.InfoWords = st.InfoWordsRead
			res.InfoPixels = st.InfoPixelsValid
			return nil
		})
		if err != nil {
			return results, fmt.Errorf("%s %d: %w", opts.Param, v, err)
		}

		log.Infof("%s %3d: yield %3d%% errors %d words %d pixels %d", opts.Param, v, res.Yield, res.Errors, res.InfoWords, res.InfoPixels)
		results = append(results, res)
		o.report(res)
		if stop != nil && stop(res) {
			break
		}
	}
	return results, nil
}

// countHits reads opts.Budget events, one trigger each. Reads that come
// back empty are retried and do not count toward the budget.
func (o *Orchestrator) countHits(ctx context.Context, opts YieldOptions) (int, error) {
	hits := 0
	for n := 0; n < opts.Budget; n++ {
		if err := o.session.Trigger(1, opts.TriggerPeriod); err != nil {
			return hits, err
		}
		ev, err := o.readEvent(ctx)
		if err != nil {
			return hits, err
		}
		if len(ev.Pixels) > 0 {
			hits++
		}
	}
	return hits, nil
}

// yieldKind maps the scanned register to its outcome kind.
func yieldKind(param string) Kind {
	if param == "wbc" {
		return KindWBC
	}
	return KindLatency
}

// RunWBCScan stops at the first value whose yield is strictly above
// acceptPct. When no value gets there, def is applied and the outcome is
// not converged.
func (o *Orchestrator) RunWBCScan(ctx context.Context, opts YieldOptions, acceptPct, def int) (Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := Outcome{Kind: KindWBC, Best: def}
	accept := func(r Result) bool { return r.Yield > acceptPct }
	steps, err := o.runYield(ctx, opts, accept)
	out.Steps = steps
	if err != nil {
		return out, err
	}
	if n := len(steps); n > 0 && accept(steps[n-1]) {
		out.Steps[n-1].Selected = true
		out.Best = steps[n-1].Value
		out.Converged = true
	} else {
		log.Warnf("No %s value above %d%% yield, falling back to %d", opts.Param, acceptPct, def)
	}
	return o.finishYield(out, opts.Param)
}

// RunLatencyScan scans the full range and keeps the first value with the
// highest yield. A scan where nothing hit falls back to def.
func (o *Orchestrator) RunLatencyScan(ctx context.Context, opts YieldOptions, def int) (Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := Outcome{Kind: KindLatency, Best: def}
	steps, err := o.runYield(ctx, opts, nil)
	out.Steps = steps
	if err != nil {
		return out, err
	}
	best := -1
	for i, r := range steps {
		if r.Yield > 0 && (best < 0 || r.Yield > steps[best].Yield) {
			best = i
		}
	}
	if best >= 0 {
		out.Steps[best].Selected = true
		out.Best = steps[best].Value
		out.Converged = true
	} else {
		log.Warnf("No hits for any %s value, falling back to %d", opts.Param, def)
	}
	return o.finishYield(out, opts.Param)
}

func (o *Orchestrator) finishYield(out Outcome, param string) (Outcome, error) {
	out.Values = map[string]int{param: out.Best}
	if err := o.apply(out.Values); err != nil {
		return out, err
	}
	log.Infof("%s set to %d", param, out.Best)
	return out, nil
}
