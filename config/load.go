package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/hcl"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "ROCTUNER_"

// Defaults are loaded before any config file so that a partial file only
// overrides what it names.
var Defaults = map[string]any{
	"layout.base":            4,
	"layout.stride":          1,
	"layout.roc_block":       16,
	"layout.slots":           6,
	"layout.black_offset":    1,
	"layout.black_secondary": 10,
	"layout.black_window":    5,

	"clock.min":            0,
	"clock.max":            20,
	"clock.triggers":       100,
	"clock.trigger_period": 300,
	"clock.default_delay":  4,
	"clock.wrap":           0,
	"clock.rocs":           1,
	"clock.family":         map[string]any{"clk": 0, "ctr": 0, "sda": 15, "tin": 5},

	"edge.param_a":        "tindelay",
	"edge.min_a":          0,
	"edge.max_a":          32,
	"edge.pos_a":          0,
	"edge.threshold_a":    -1000,
	"edge.default_a":      14,
	"edge.param_b":        "toutdelay",
	"edge.min_b":          0,
	"edge.max_b":          32,
	"edge.pos_b":          -1,
	"edge.threshold_b":    100,
	"edge.default_b":      8,
	"edge.margin":         5,
	"edge.min_length":     16,
	"edge.trigger_period": 300,

	"wbc.param":          "wbc",
	"wbc.min":            90,
	"wbc.max":            120,
	"wbc.step":           1,
	"wbc.budget":         10,
	"wbc.trigger_source": "pg",
	"wbc.trigger_period": 300,
	"wbc.accept_pct":     80,
	"wbc.default":        100,

	"latency.param":          "triggerlatency",
	"latency.min":            80,
	"latency.max":            110,
	"latency.step":           1,
	"latency.budget":         10,
	"latency.trigger_source": "extern",
	"latency.trigger_period": 300,
	"latency.accept_pct":     0,
	"latency.default":        86,

	"retry.max_retries": 1000,
	"retry.timeout_ms":  5000,
	"retry.interval_ms": 1,

	"emulator.seed":            1,
	"emulator.rocs":            1,
	"emulator.level":           300,
	"emulator.black":           -100,
	"emulator.ultrablack":      -500,
	"emulator.noise":           2.0,
	"emulator.optimal_clk":     6,
	"emulator.clk_period":      20,
	"emulator.skew":            12.0,
	"emulator.tin_edge":        9,
	"emulator.tout_edge":       11,
	"emulator.wbc_window":      4,
	"emulator.optimal_wbc":     99,
	"emulator.optimal_latency": 92,
	"emulator.efficiency":      0.95,
	"emulator.underrun_every":  7,
	"emulator.truncate_every":  50,

	"tui.refresh_ms":        250,
	"tui.enable_log_output": true,
}

// FindPath returns the first config file that exists, or "" when none do.
func FindPath() string {
	home, _ := os.UserHomeDir()
	paths := []string{"/etc/roctuner/config.hcl", filepath.Join(home, ".config/roctuner/config.hcl"), "./config.hcl"}
	for _, path := range paths {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			log.Infof("Found config file: %s", path)
			return path
		}
	}
	log.Info("Config file not found, using defaults")
	return ""
}

// Load layers the defaults, the HCL file at path (skipped when path is
// empty) and ROCTUNER_* environment variables, in that order.
func Load(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("could not load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), hcl.Parser(true)); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
			k = strings.Replace(key, "_", ".", 1)
			log.Debugf("Found config env var: %s=%v", k, v)
			return k, v
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not read environment: %w", err)
	}
	return k, nil
}

// Section unmarshals one named section of k into out.
func Section(k *koanf.Koanf, name string, out any) error {
	if err := k.Unmarshal(name, out); err != nil {
		return fmt.Errorf("could not decode %s section: %w", name, err)
	}
	return nil
}
