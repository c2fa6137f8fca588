package tui

import (
	"errors"
	"strings"
	"testing"

	"github.com/jrwynneiii/roctuner/scan"
)

func TestProgress(t *testing.T) {
	p := NewProgress(scan.KindClock, 4)
	p.Observe(scan.Result{Step: 0, Value: 0, Statistic: 12, Valid: true})
	p.Observe(scan.Result{Step: 1, Value: 1, Statistic: 1e6})
	if got := p.Percent(); got != 50 {
		t.Errorf("percent %v", got)
	}
	if s := p.Series(); len(s) != 1 || s[0] != 12 {
		t.Errorf("series %v", s)
	}

	out := scan.Outcome{Steps: []scan.Result{{Step: 0, Valid: true, Selected: true}, {Step: 1}}}
	p.Finish(out, nil)
	if got := p.Percent(); got != 100 {
		t.Errorf("finished scan at %v%%", got)
	}
	if !p.Steps()[0].Selected {
		t.Error("selection not copied from outcome")
	}
}

func TestStepTableCells(t *testing.T) {
	p := NewProgress(scan.KindEdge, 10)
	p.Observe(scan.Result{Step: 3, Phase: "b", Value: 14, Statistic: -50, Valid: true})
	p.Observe(scan.Result{Step: 4, Phase: "b", Value: 13})
	d := &StepTableData{progress: p}

	if d.GetRowCount() != 3 {
		t.Fatalf("rows %d", d.GetRowCount())
	}
	if got := d.GetCell(1, 0).Text; !strings.HasSuffix(got, "3b") {
		t.Errorf("step label %q", got)
	}
	if got := d.GetCell(1, 2).Text; !strings.HasSuffix(got, "-50.00") {
		t.Errorf("statistic %q", got)
	}
	if got := d.GetCell(2, 2).Text; !strings.Contains(got, "no data") {
		t.Errorf("invalid step shown as %q", got)
	}
	if d.GetCell(5, 0) != nil {
		t.Error("expected nil past the last row")
	}
}

func TestStatusTableShowsError(t *testing.T) {
	p := NewProgress(scan.KindWBC, 2)
	s := &StatusTableData{progress: p}
	if got := s.GetCell(2, 1).Text; got != "running" {
		t.Errorf("state %q", got)
	}
	p.Finish(scan.Outcome{}, errors.New("no data from daq"))
	if got := s.GetCell(2, 1).Text; got != "no data from daq" {
		t.Errorf("state %q", got)
	}
	if got := s.GetCell(0, 1).Text; got != "wbc" {
		t.Errorf("kind %q", got)
	}
}
