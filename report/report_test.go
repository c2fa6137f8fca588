package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrwynneiii/roctuner/scan"
)

func TestSaveWritesRegisters(t *testing.T) {
	out := scan.Outcome{
		Kind:      scan.KindEdge,
		Best:      9,
		Converged: true,
		Values:    map[string]int{"tindelay": 9, "toutdelay": 11},
		Steps: []scan.Result{
			{Phase: "a", Value: 8, Statistic: 50, Valid: true},
			{Phase: "a", Value: 9, Statistic: -2000, Valid: true, Selected: true},
		},
	}
	path := filepath.Join(t.TempDir(), "edge.yaml")
	if err := Save(path, out); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"scan: edge", "tindelay: 9", "toutdelay: 11", "converged: true"} {
		if !strings.Contains(string(bs), want) {
			t.Errorf("missing %q in\n%s", want, bs)
		}
	}

	r, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Steps) != 2 || !r.Steps[1].Selected || r.Steps[1].Statistic != -2000 {
		t.Errorf("steps not preserved: %+v", r.Steps)
	}
}

func TestNewRecordUsesUTC(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	r := NewRecord(scan.Outcome{Kind: scan.KindWBC}, at)
	if r.Time.Location() != time.UTC || r.Time.Hour() != 11 {
		t.Errorf("got %v", r.Time)
	}
	if r.Scan != "wbc" || r.Converged {
		t.Errorf("got %+v", r)
	}
}

func TestSaveBadPath(t *testing.T) {
	if err := Save(filepath.Join(t.TempDir(), "missing", "x.yaml"), scan.Outcome{}); err == nil {
		t.Error("expected an error")
	}
}
