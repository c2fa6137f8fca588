// Package scan runs the timing and address-level calibrations against a
// daq.Session: clock phase by level spread, tin/tout by token edges, and
// wbc/latency by hit yield.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/roctuner/config"
	"github.com/jrwynneiii/roctuner/daq"
	"github.com/jrwynneiii/roctuner/decode"
	"github.com/jrwynneiii/roctuner/levels"
	"github.com/jrwynneiii/roctuner/registry"
)

// Orchestrator owns the session for the duration of a run. Runs are
// serialized: the hardware register state is shared by all calibrations.
type Orchestrator struct {
	mu       sync.Mutex
	session  daq.Session
	names    *registry.Table
	layout   levels.Layout
	retry    config.RetryConf
	observer func(Result)
}

func New(session daq.Session, names *registry.Table, layout levels.Layout, retry config.RetryConf) *Orchestrator {
	return &Orchestrator{
		session: session,
		names:   names,
		layout:  layout,
		retry:   retry,
	}
}

// OnStep registers fn to be called after every scan step.
func (o *Orchestrator) OnStep(fn func(Result)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observer = fn
}

func (o *Orchestrator) report(r Result) {
	if o.observer != nil {
		o.observer(r)
	}
}

// apply validates names and values against the registry, then writes the
// registers under their canonical lower-case names.
func (o *Orchestrator) apply(params map[string]int) error {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	canon := make(map[string]int, len(params))
	for _, name := range names {
		if err := o.names.Check(name, params[name], registry.Delay, registry.DAC); err != nil {
			return fmt.Errorf("%w: %v", ErrApply, err)
		}
		canon[strings.ToLower(name)] = params[name]
	}
	if err := o.session.ApplyRegisters(canon); err != nil {
		return fmt.Errorf("%w %v: %v", ErrApply, canon, err)
	}
	log.Debugf("Applied registers %v", canon)
	return nil
}

// withSession starts a session, runs fn and stops the session again. Once
// Start succeeded, Stop runs exactly once whatever fn does, panics included.
func (o *Orchestrator) withSession(flags daq.Flags, fn func() error) (err error) {
	if err := o.session.Start(flags); err != nil {
		return fmt.Errorf("could not start daq session: %w", err)
	}
	defer func() {
		if stopErr := o.session.Stop(); stopErr != nil {
			log.Errorf("Could not stop daq session: %v", stopErr)
			if err == nil {
				err = fmt.Errorf("could not stop daq session: %w", stopErr)
			}
		}
	}()
	return fn()
}

func (o *Orchestrator) backOff(ctx context.Context) backoff.BackOff {
	interval := time.Duration(max(o.retry.IntervalMs, 1)) * time.Millisecond
	b := &backoff.ExponentialBackOff{
		InitialInterval:     interval,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      time.Duration(o.retry.TimeoutMs) * time.Millisecond,
		Clock:               backoff.SystemClock,
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(o.retry.MaxRetries, 0))), ctx)
}

// retryRead retries read while it reports daq.ErrNoData, up to the retry
// budget. Any other error ends the loop at once.
func retryRead[T any](ctx context.Context, o *Orchestrator, read func() (T, error)) (T, error) {
	var (
		out      T
		attempts int
	)
	op := func() error {
		attempts++
		v, err := read()
		if err == nil {
			out = v
			return nil
		}
		if errors.Is(err, daq.ErrNoData) {
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, o.backOff(ctx))
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	if errors.Is(err, daq.ErrNoData) {
		return out, fmt.Errorf("%w: gave up after %d attempts", ErrReadTimeout, attempts)
	}
	return out, fmt.Errorf("daq read failed: %w", err)
}

func (o *Orchestrator) readRaw(ctx context.Context) ([]int, error) {
	raw, err := retryRead(ctx, o, o.session.ReadRawEvent)
	if err != nil {
		return nil, err
	}
	return decode.Convert(raw), nil
}

func (o *Orchestrator) readEvent(ctx context.Context) (daq.Event, error) {
	return retryRead(ctx, o, o.session.ReadEvent)
}

func (o *Orchestrator) checkTriggerSource(src string) error {
	if src == "" {
		return nil
	}
	if _, err := o.names.Resolve(src, registry.TriggerSource); err != nil {
		return fmt.Errorf("trigger source: %w", err)
	}
	return nil
}
