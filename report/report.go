// Package report writes calibration outcomes to disk as YAML parameter
// files.
package report

import (
	"fmt"
	"os"
	"time"

	"github.com/jrwynneiii/roctuner/scan"
	"gopkg.in/yaml.v2"
)

type Step struct {
	Value     int     `yaml:"value"`
	Phase     string  `yaml:"phase,omitempty"`
	Statistic float64 `yaml:"statistic"`
	Valid     bool    `yaml:"valid"`
	Selected  bool    `yaml:"selected,omitempty"`
	Yield     int     `yaml:"yield,omitempty"`
	Errors    int     `yaml:"errors,omitempty"`
}

// Record is the on-disk form of a scan.Outcome.
type Record struct {
	Scan      string         `yaml:"scan"`
	Time      time.Time      `yaml:"time"`
	Converged bool           `yaml:"converged"`
	Best      int            `yaml:"best"`
	Registers map[string]int `yaml:"registers"`
	Steps     []Step         `yaml:"steps"`
}

func NewRecord(out scan.Outcome, at time.Time) Record {
	r := Record{
		Scan:      out.Kind.String(),
		Time:      at.UTC(),
		Converged: out.Converged,
		Best:      out.Best,
		Registers: out.Values,
	}
	for _, s := range out.Steps {
		r.Steps = append(r.Steps, Step{
			Value:     s.Value,
			Phase:     s.Phase,
			Statistic: s.Statistic,
			Valid:     s.Valid,
			Selected:  s.Selected,
			Yield:     s.Yield,
			Errors:    s.Errors,
		})
	}
	return r
}

// Save writes out to path, replacing any existing file.
func Save(path string, out scan.Outcome) error {
	bs, err := yaml.Marshal(NewRecord(out, time.Now()))
	if err != nil {
		return fmt.Errorf("unable to marshal %s outcome: %w", out.Kind, err)
	}
	if err := os.WriteFile(path, bs, 0o644); err != nil {
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	return nil
}

// Load reads a record written by Save.
func Load(path string) (Record, error) {
	r := Record{}
	f, err := os.Open(path)
	if err != nil {
		return r, err
	}
	defer f.Close()
	err = yaml.NewDecoder(f).Decode(&r)
	return r, err
}
