package scan

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/roctuner/config"
	"github.com/jrwynneiii/roctuner/daq"
	"github.com/jrwynneiii/roctuner/registry"
)

// Edge is one phase of the edge scan: the event word at Pos is compared
// against Threshold. A negative Pos counts from the end of the event.
type Edge struct {
	Param     string
	Pos       int
	Threshold int
	Default   int
}

// EdgeScan finds the leading edge (A, sweeping up until the word drops
// below its threshold) and then the trailing edge (B, sweeping down from
// A+Margin until the word rises above its threshold).
type EdgeScan struct {
	A             Edge
	B             Edge
	Margin        int
	MinLength     int
	TriggerPeriod int
}

func NewEdgeScan(conf config.EdgeConf) EdgeScan {
	return EdgeScan{
		A:             Edge{Param: conf.ParamA, Pos: conf.PosA, Threshold: conf.ThresholdA, Default: conf.DefaultA},
		B:             Edge{Param: conf.ParamB, Pos: conf.PosB, Threshold: conf.ThresholdB, Default: conf.DefaultB},
		Margin:        conf.Margin,
		MinLength:     conf.MinLength,
		TriggerPeriod: conf.TriggerPeriod,
	}
}

// word returns ev[pos], counting negative positions from the end. Events
// shorter than minLength carry no usable edge.
func word(ev []int, pos, minLength int) (int, bool) {
	if len(ev) < minLength {
		return 0, false
	}
	if pos < 0 {
		pos += len(ev)
	}
	if pos < 0 || pos >= len(ev) {
		return 0, false
	}
	return ev[pos], true
}

// RunEdgeDelayScan runs both phases inside one session and applies the
// resulting pair once at the end. A phase without a hit falls back to its
// configured default and the outcome is marked not converged.
func (o *Orchestrator) RunEdgeDelayScan(ctx context.Context, es EdgeScan, a, b Range) (Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := Outcome{Kind: KindEdge, Best: es.A.Default}
	if err := a.Validate(); err != nil {
		return out, err
	}
	if err := b.Validate(); err != nil {
		return out, err
	}
	for _, name := range []string{es.A.Param, es.B.Param} {
		if _, err := o.names.Resolve(name, registry.Delay, registry.DAC); err != nil {
			return out, fmt.Errorf("%w: %v", ErrApply, err)
		}
	}

	resA, resB := es.A.Default, es.B.Default
	var hitA, hitB bool
	err := o.withSession(daq.Flags{TriggerSource: "pg"}, func() error {
		step := 0
		for _, v := range a.Values() {
			res, hit, err := o.edgeStep(ctx, es, es.A, "a", v, step, func(w int) bool { return w < es.A.Threshold })
			if err != nil {
				return err
			}
			step++
			out.Steps = append(out.Steps, res)
			if hit {
				resA, hitA = v, true
				out.Steps[len(out.Steps)-1].Selected = true
				break
			}
		}
		if !hitA {
			log.Warnf("No leading edge found for %s, falling back to %d", es.A.Param, es.A.Default)
		}

		start := min(resA+es.Margin, b.Max-1)
		for v := start; v >= b.Min; v -= b.step() {
			res, hit, err := o.edgeStep(ctx, es, es.B, "b", v, step, func(w int) bool { return w > es.B.Threshold })
			if err != nil {
				return err
			}
			step++
			out.Steps = append(out.Steps, res)
			if hit {
				resB, hitB = v, true
				out.Steps[len(out.Steps)-1].Selected = true
				break
			}
		}
		if !hitB {
			log.Warnf("No trailing edge found for %s, falling back to %d", es.B.Param, es.B.Default)
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("edge scan: %w", err)
	}

	out.Best = resA
	out.Converged = hitA && hitB
	out.Values = map[string]int{es.A.Param: resA, es.B.Param: resB}
	if err := o.apply(out.Values); err != nil {
		return out, err
	}
	log.Infof("Edge delays set: %s=%d %s=%d", es.A.Param, resA, es.B.Param, resB)
	return out, nil
}

func (o *Orchestrator) edgeStep(ctx context.Context, es EdgeScan, e Edge, phase string, v, step int, hit func(int) bool) (Result, bool, error) {
	res := Result{Kind: KindEdge, Phase: phase, Step: step, Value: v}
	if err := ctx.Err(); err != nil {
		return res, false, err
	}
	if err := o.apply(map[string]int{e.Param: v}); err != nil {
		return res, false, err
	}
	if err := o.session.Trigger(1, es.TriggerPeriod); err != nil {
		return res, false, err
	}
	ev, err := o.readRaw(ctx)
	if err != nil {
		return res, false, err
	}

	w, ok := word(ev, e.Pos, es.MinLength)
	res.Statistic, res.Valid = float64(w), ok
	o.report(res)
	if !ok {
		log.Debugf("%s %3d: short event (%d words)", e.Param, v, len(ev))
		return res, false, nil
	}
	log.Infof("%s %3d: word[%d] = %d", e.Param, v, e.Pos, w)
	return res, hit(w), nil
}
