package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/roctuner/config"
	"github.com/jrwynneiii/roctuner/daq"
	"github.com/jrwynneiii/roctuner/decode"
	"github.com/jrwynneiii/roctuner/levels"
	"github.com/jrwynneiii/roctuner/registry"
	"github.com/jrwynneiii/roctuner/report"
	"github.com/jrwynneiii/roctuner/scan"
	"github.com/jrwynneiii/roctuner/tui"
	"github.com/knadh/koanf/v2"
	"github.com/theckman/yacspin"
)

type Command int

const (
	CmdClock Command = iota
	CmdEdge
	CmdWBC
	CmdLatency
	CmdDecode
	CmdNames
	numCommands
)

var commandNames = map[string]Command{
	"clock":   CmdClock,
	"edge":    CmdEdge,
	"wbc":     CmdWBC,
	"latency": CmdLatency,
	"decode":  CmdDecode,
	"names":   CmdNames,
}

var dispatch = [numCommands]func(ctx context.Context, e *env) error{
	CmdClock:   runClock,
	CmdEdge:    runEdge,
	CmdWBC:     runWBC,
	CmdLatency: runLatency,
	CmdDecode:  runDecode,
	CmdNames:   runNames,
}

var errNotConverged = errors.New("calibration did not converge")

// parseCommand maps kong's command string, which may carry positional
// arguments ("decode <words>"), to a Command.
func parseCommand(s string) (Command, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, errors.New("no command given")
	}
	cmd, ok := commandNames[fields[0]]
	if !ok {
		return 0, fmt.Errorf("command not recognized: %s", fields[0])
	}
	return cmd, nil
}

// env is everything a command needs, built once from the config.
type env struct {
	conf   *koanf.Koanf
	names  *registry.Table
	layout levels.Layout
	orch   *scan.Orchestrator
	tui    config.TuiConf
}

func newEnv(k *koanf.Koanf) (*env, error) {
	var (
		layoutConf config.LayoutConf
		retryConf  config.RetryConf
		emuConf    config.EmulatorConf
		tuiConf    config.TuiConf
	)
	for name, out := range map[string]any{"layout": &layoutConf, "retry": &retryConf, "emulator": &emuConf, "tui": &tuiConf} {
		if err := config.Section(k, name, out); err != nil {
			return nil, err
		}
	}
	if err := layoutConf.Validate(); err != nil {
		return nil, err
	}
	if err := retryConf.Validate(); err != nil {
		return nil, err
	}

	e := &env{
		conf:   k,
		names:  registry.Default(),
		layout: levels.NewLayout(layoutConf),
		tui:    tuiConf,
	}
	log.Debugf("Address level layout: %##v", e.layout)
	emu := daq.NewEmulator(emuConf, e.layout)
	e.orch = scan.New(emu, e.names, e.layout, retryConf)
	return e, nil
}

func main() {
	flags := kong.Parse(&cli)
	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	cmd, err := parseCommand(flags.Command())
	if err != nil {
		log.Fatal(err)
	}

	// decode and names need no config
	var e *env
	if cmd != CmdDecode && cmd != CmdNames {
		path := cli.Config
		if path == "" {
			path = config.FindPath()
		}
		k, err := config.Load(path)
		if err != nil {
			log.Fatalf("Could not load config: %v", err)
		}
		if e, err = newEnv(k); err != nil {
			log.Fatalf("Invalid config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = dispatch[cmd](ctx, e)
	switch {
	case errors.Is(err, errNotConverged):
		log.Warn(err)
		stop()
		os.Exit(2)
	case err != nil:
		log.Error(err)
		stop()
		os.Exit(1)
	}
}

func runClock(ctx context.Context, e *env) error {
	var conf config.ClockConf
	if err := config.Section(e.conf, "clock", &conf); err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	rocs := conf.Rocs
	if cli.Clock.Rocs > 0 {
		rocs = cli.Clock.Rocs
	}
	r := scan.Range{Min: conf.Min, Max: conf.Max}
	return runScan(ctx, e, scan.KindClock, len(r.Values()), func(ctx context.Context) (scan.Outcome, error) {
		return e.orch.RunClockDelayScan(ctx, scan.NewClockScan(conf), rocs, r)
	})
}

func runEdge(ctx context.Context, e *env) error {
	var conf config.EdgeConf
	if err := config.Section(e.conf, "edge", &conf); err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	a := scan.Range{Min: conf.MinA, Max: conf.MaxA}
	b := scan.Range{Min: conf.MinB, Max: conf.MaxB}
	return runScan(ctx, e, scan.KindEdge, len(a.Values())+len(b.Values()), func(ctx context.Context) (scan.Outcome, error) {
		return e.orch.RunEdgeDelayScan(ctx, scan.NewEdgeScan(conf), a, b)
	})
}

func yieldConf(e *env, section string) (config.YieldConf, error) {
	var conf config.YieldConf
	if err := config.Section(e.conf, section, &conf); err != nil {
		return conf, err
	}
	return conf, conf.Validate()
}

func runWBC(ctx context.Context, e *env) error {
	conf, err := yieldConf(e, "wbc")
	if err != nil {
		return err
	}
	opts := scan.NewYieldOptions(conf)
	return runScan(ctx, e, scan.KindWBC, len(opts.Range.Values()), func(ctx context.Context) (scan.Outcome, error) {
		return e.orch.RunWBCScan(ctx, opts, conf.AcceptPct, conf.Default)
	})
}

func runLatency(ctx context.Context, e *env) error {
	conf, err := yieldConf(e, "latency")
	if err != nil {
		return err
	}
	opts := scan.NewYieldOptions(conf)
	return runScan(ctx, e, scan.KindLatency, len(opts.Range.Values()), func(ctx context.Context) (scan.Outcome, error) {
		return e.orch.RunLatencyScan(ctx, opts, conf.Default)
	})
}

// runScan runs one calibration behind the TUI or a spinner, then reports
// and optionally saves the outcome.
func runScan(ctx context.Context, e *env, kind scan.Kind, total int, run func(context.Context) (scan.Outcome, error)) error {
	var (
		out scan.Outcome
		err error
	)
	if cli.Tui {
		p := tui.NewProgress(kind, total)
		e.orch.OnStep(p.Observe)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		out, err = tui.Run(p, e.tui, cancel, func() (scan.Outcome, error) { return run(ctx) })
	} else {
		out, err = runWithSpinner(ctx, e, kind, total, run)
	}
	if err != nil {
		return fmt.Errorf("%s scan failed: %w", kind, err)
	}

	log.Infof("%s calibration: %v (converged %v)", kind, out.Values, out.Converged)
	if cli.Save != "" {
		if err := report.Save(cli.Save, out); err != nil {
			return err
		}
		log.Infof("Outcome written to %s", cli.Save)
	}
	if !out.Converged {
		return fmt.Errorf("%s %w, fallback %v applied", kind, errNotConverged, out.Values)
	}
	return nil
}

func runWithSpinner(ctx context.Context, e *env, kind scan.Kind, total int, run func(context.Context) (scan.Outcome, error)) (scan.Outcome, error) {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " " + kind.String(),
		SuffixAutoColon:   true,
		StopCharacter:     "done",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "failed",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		log.Warnf("No spinner: %v", err)
		return run(ctx)
	}

	done := 0
	e.orch.OnStep(func(r scan.Result) {
		done++
		spinner.Message(fmt.Sprintf("step %d/%d value %d", done, total, r.Value))
	})
	if err := spinner.Start(); err != nil {
		log.Warnf("No spinner: %v", err)
	}
	out, err := run(ctx)
	if err != nil {
		_ = spinner.StopFail()
		return out, err
	}
	_ = spinner.Stop()
	return out, nil
}

func runDecode(_ context.Context, _ *env) error {
	for _, s := range cli.Decode.Words {
		w, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
		if err != nil {
			return fmt.Errorf("not a 16 bit hex word: %q", s)
		}
		fmt.Printf("%#06x %6d\n", w, decode.Decode(uint16(w)))
	}
	return nil
}

func runNames(_ context.Context, _ *env) error {
	names := registry.Default()
	for _, kind := range []registry.Kind{registry.Delay, registry.DAC, registry.TriggerSource, registry.Probe} {
		fmt.Printf("%-15s %s\n", kind.String()+":", strings.Join(names.Names(kind), " "))
	}
	return nil
}
