package tui

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/roctuner/scan"
	"github.com/rivo/tview"
)

// Progress collects scan steps as the orchestrator reports them. Observe
// is safe to call from the scan goroutine while the UI reads.
type Progress struct {
	sync.Mutex
	Kind  scan.Kind
	Total int
	steps []scan.Result
	done  bool
	err   error
}

func NewProgress(kind scan.Kind, total int) *Progress {
	return &Progress{Kind: kind, Total: total}
}

func (p *Progress) Observe(r scan.Result) {
	p.Lock()
	defer p.Unlock()
	p.steps = append(p.steps, r)
}

func (p *Progress) Finish(out scan.Outcome, err error) {
	p.Lock()
	defer p.Unlock()
	if len(out.Steps) == len(p.steps) {
		copy(p.steps, out.Steps)
	}
	p.done = true
	p.err = err
}

func (p *Progress) Steps() []scan.Result {
	p.Lock()
	defer p.Unlock()
	return append([]scan.Result(nil), p.steps...)
}

// Percent is the share of the planned steps completed. Scans that stop
// early jump to 100 when they finish.
func (p *Progress) Percent() float64 {
	p.Lock()
	defer p.Unlock()
	if p.done || p.Total <= 0 {
		return 100
	}
	return min(100, 100*float64(len(p.steps))/float64(p.Total))
}

// Series is the statistic of every valid step, for plotting.
func (p *Progress) Series() []float64 {
	p.Lock()
	defer p.Unlock()
	var out []float64
	for _, r := range p.steps {
		if r.Valid {
			out = append(out, r.Statistic)
		}
	}
	return out
}

type StepTableData struct {
	tview.TableContentReadOnly
	progress *Progress
}

type StatusTableData struct {
	tview.TableContentReadOnly
	progress *Progress
}

func (s *StatusTableData) GetRowCount() int {
	return 3
}

func (s *StatusTableData) GetColumnCount() int {
	return 2
}

func (s *StatusTableData) GetCell(row, column int) *tview.TableCell {
	p := s.progress
	p.Lock()
	defer p.Unlock()
	switch row {
	case 0:
		if column == 0 {
			return tview.NewTableCell("Scan:")
		}
		return tview.NewTableCell(p.Kind.String())
	case 1:
		if column == 0 {
			return tview.NewTableCell("Steps:")
		}
		return tview.NewTableCell(fmt.Sprintf("%d / %d", len(p.steps), p.Total))
	case 2:
		if column == 0 {
			return tview.NewTableCell("State:")
		}
		switch {
		case !p.done:
			return tview.NewTableCell("running").SetTextColor(tcell.ColorYellow)
		case p.err != nil:
			return tview.NewTableCell(p.err.Error()).SetTextColor(tcell.ColorRed)
		}
		return tview.NewTableCell("done").SetTextColor(tcell.ColorGreen)
	}
	return tview.NewTableCell("ERROR")
}

func (d *StepTableData) GetRowCount() int {
	d.progress.Lock()
	defer d.progress.Unlock()
	return len(d.progress.steps) + 1
}

func (d *StepTableData) GetColumnCount() int {
	return 5
}

func (d *StepTableData) GetCell(row, column int) *tview.TableCell {
	if row == 0 {
		switch column {
		case 0:
			return tview.NewTableCell("[lightskyblue]Step ")
		case 1:
			return tview.NewTableCell("[white]Value ")
		case 2:
			return tview.NewTableCell("[white]Statistic ")
		case 3:
			return tview.NewTableCell("[red]Errors ")
		case 4:
			return tview.NewTableCell("[green]Selected")
		}
		return tview.NewTableCell("ERROR")
	}

	d.progress.Lock()
	defer d.progress.Unlock()
	if row-1 >= len(d.progress.steps) {
		return nil
	}
	r := d.progress.steps[row-1]
	switch column {
	case 0:
		label := fmt.Sprintf("%d", r.Step)
		if r.Phase != "" {
			label = fmt.Sprintf("%d%s", r.Step, r.Phase)
		}
		return tview.NewTableCell("[lightskyblue]" + label)
	case 1:
		return tview.NewTableCell(fmt.Sprintf("[white]%d", r.Value))
	case 2:
		if !r.Valid {
			return tview.NewTableCell("[red]no data")
		}
		return tview.NewTableCell(fmt.Sprintf("[white]%.2f", r.Statistic))
	case 3:
		return tview.NewTableCell(fmt.Sprintf("[red]%d", r.Errors))
	case 4:
		if r.Selected {
			return tview.NewTableCell("[green]*")
		}
		return tview.NewTableCell("")
	}
	return tview.NewTableCell("ERROR")
}
