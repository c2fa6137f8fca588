package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConf = errors.New("invalid configuration")

// LayoutConf places the address-level test pixels inside a decoded event.
// All offsets are board specific.
type LayoutConf struct {
	Base           int `koanf:"base"`
	Stride         int `koanf:"stride"`
	RocBlock       int `koanf:"roc_block"`
	Slots          int `koanf:"slots"`
	BlackOffset    int `koanf:"black_offset"`
	BlackSecondary int `koanf:"black_secondary"`
	BlackWindow    int `koanf:"black_window"`
}

type ClockConf struct {
	Min           int            `koanf:"min"`
	Max           int            `koanf:"max"`
	Triggers      int            `koanf:"triggers"`
	TriggerPeriod int            `koanf:"trigger_period"`
	DefaultDelay  int            `koanf:"default_delay"`
	Wrap          int            `koanf:"wrap"`
	Rocs          int            `koanf:"rocs"`
	Family        map[string]int `koanf:"family"`
}

type EdgeConf struct {
	ParamA     string `koanf:"param_a"`
	MinA       int    `koanf:"min_a"`
	MaxA       int    `koanf:"max_a"`
	PosA       int    `koanf:"pos_a"`
	ThresholdA int    `koanf:"threshold_a"`
	DefaultA   int    `koanf:"default_a"`

	ParamB     string `koanf:"param_b"`
	MinB       int    `koanf:"min_b"`
	MaxB       int    `koanf:"max_b"`
	PosB       int    `koanf:"pos_b"`
	ThresholdB int    `koanf:"threshold_b"`
	DefaultB   int    `koanf:"default_b"`

	Margin        int `koanf:"margin"`
	MinLength     int `koanf:"min_length"`
	TriggerPeriod int `koanf:"trigger_period"`
}

// YieldConf is shared by the wbc and latency sections.
type YieldConf struct {
	Param         string `koanf:"param"`
	Min           int    `koanf:"min"`
	Max           int    `koanf:"max"`
	Step          int    `koanf:"step"`
	Budget        int    `koanf:"budget"`
	TriggerSource string `koanf:"trigger_source"`
	TriggerPeriod int    `koanf:"trigger_period"`
	AcceptPct     int    `koanf:"accept_pct"`
	Default       int    `koanf:"default"`
}

type RetryConf struct {
	MaxRetries int `koanf:"max_retries"`
	TimeoutMs  int `koanf:"timeout_ms"`
	IntervalMs int `koanf:"interval_ms"`
}

// EmulatorConf describes the simulated testboard used when no hardware
// transport is available.
type EmulatorConf struct {
	Seed          uint64  `koanf:"seed"`
	Rocs          int     `koanf:"rocs"`
	Level         int     `koanf:"level"`
	Black         int     `koanf:"black"`
	UltraBlack    int     `koanf:"ultrablack"`
	Noise         float64 `koanf:"noise"`
	OptimalClk    int     `koanf:"optimal_clk"`
	ClkPeriod     int     `koanf:"clk_period"`
	Skew          float64 `koanf:"skew"`
	TinEdge       int     `koanf:"tin_edge"`
	ToutEdge      int     `koanf:"tout_edge"`
	WBCWindow     int     `koanf:"wbc_window"`
	OptimalWBC    int     `koanf:"optimal_wbc"`
	OptimalLat    int     `koanf:"optimal_latency"`
	Efficiency    float64 `koanf:"efficiency"`
	UnderrunEvery int     `koanf:"underrun_every"`
	TruncateEvery int     `koanf:"truncate_every"`
}

type TuiConf struct {
	RefreshMs       int  `koanf:"refresh_ms"`
	EnableLogOutput bool `koanf:"enable_log_output"`
}

func (l LayoutConf) Validate() error {
	switch {
	case l.Slots <= 0:
		return fmt.Errorf("%w: layout.slots must be positive, got %d", ErrInvalidConf, l.Slots)
	case l.Stride <= 0:
		return fmt.Errorf("%w: layout.stride must be positive, got %d", ErrInvalidConf, l.Stride)
	case l.Base < 0 || l.BlackOffset < 0 || l.BlackSecondary < 0:
		return fmt.Errorf("%w: layout offsets must not be negative", ErrInvalidConf)
	case l.BlackWindow < 0:
		return fmt.Errorf("%w: layout.black_window must not be negative", ErrInvalidConf)
	}
	return nil
}

func (c ClockConf) Validate() error {
	switch {
	case c.Max <= c.Min:
		return fmt.Errorf("%w: clock range [%d, %d) is empty", ErrInvalidConf, c.Min, c.Max)
	case c.Triggers <= 0:
		return fmt.Errorf("%w: clock.triggers must be positive, got %d", ErrInvalidConf, c.Triggers)
	case len(c.Family) == 0:
		return fmt.Errorf("%w: clock.family must name at least one delay", ErrInvalidConf)
	case c.Wrap < 0:
		return fmt.Errorf("%w: clock.wrap must not be negative", ErrInvalidConf)
	}
	return nil
}

func (e EdgeConf) Validate() error {
	switch {
	case e.ParamA == "" || e.ParamB == "":
		return fmt.Errorf("%w: edge.param_a and edge.param_b are required", ErrInvalidConf)
	case e.MaxA <= e.MinA:
		return fmt.Errorf("%w: edge range a [%d, %d) is empty", ErrInvalidConf, e.MinA, e.MaxA)
	case e.MaxB <= e.MinB:
		return fmt.Errorf("%w: edge range b [%d, %d) is empty", ErrInvalidConf, e.MinB, e.MaxB)
	}
	return nil
}

func (y YieldConf) Validate() error {
	switch {
	case y.Param == "":
		return fmt.Errorf("%w: yield param is required", ErrInvalidConf)
	case y.Max <= y.Min:
		return fmt.Errorf("%w: yield range [%d, %d) is empty", ErrInvalidConf, y.Min, y.Max)
	case y.Budget <= 0:
		return fmt.Errorf("%w: yield budget must be positive, got %d", ErrInvalidConf, y.Budget)
	case y.Step <= 0:
		return fmt.Errorf("%w: yield step must be positive, got %d", ErrInvalidConf, y.Step)
	}
	return nil
}

func (r RetryConf) Validate() error {
	if r.MaxRetries <= 0 || r.TimeoutMs <= 0 {
		return fmt.Errorf("%w: retry.max_retries and retry.timeout_ms must be positive", ErrInvalidConf)
	}
	return nil
}
