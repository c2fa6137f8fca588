package tui

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/roctuner/config"
	"github.com/jrwynneiii/roctuner/scan"
	"github.com/navidys/tvxwidgets"
	"github.com/rivo/tview"
)

var LogOut *tview.TextView

// Run shows the scan while work executes it. The UI stays up after the
// scan finishes until the user quits with q or Ctrl-C; quitting early
// calls cancel and waits for work to return.
func Run(p *Progress, tuiConf config.TuiConf, cancel func(), work func() (scan.Outcome, error)) (scan.Outcome, error) {
	app := tview.NewApplication()

	LogOut = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	stepTable := tview.NewTable().SetContent(&StepTableData{progress: p})
	statusTable := tview.NewTable().SetContent(&StatusTableData{progress: p})

	statPlot := tvxwidgets.NewPlot()
	statPlot.SetLineColor([]tcell.Color{tcell.ColorLightSkyBlue})
	statPlot.SetMarker(tvxwidgets.PlotMarkerBraille)
	statPlot.SetBorder(true)
	statPlot.SetTitle("Statistic")

	progressGauge := tvxwidgets.NewUtilModeGauge()
	progressGauge.SetLabel("Progress: ")
	progressGauge.SetLabelColor(tcell.ColorLightSkyBlue)
	progressGauge.SetWarnPercentage(101)
	progressGauge.SetCritPercentage(101)
	progressGauge.SetEmptyColor(tcell.ColorBlack)
	progressGauge.SetBorder(false)

	LogOut.SetChangedFunc(func() {
		LogOut.ScrollToEnd()
		app.Draw()
	})
	LogOut.SetBorder(true).SetTitle("Log Output")
	if tuiConf.EnableLogOutput {
		log.SetOutput(LogOut)
	}

	stepTable.SetSelectable(false, false).SetBorder(true).SetTitle("Scan Steps")
	statusTable.SetSelectable(false, false).SetBorder(false)

	status := tview.NewFlex().SetDirection(tview.FlexRow)
	status.AddItem(statusTable, 0, 3, false)
	status.AddItem(progressGauge, 1, 0, false)
	status.SetBorder(true)
	status.SetTitle("Scan Status")

	leftCol := tview.NewFlex().SetDirection(tview.FlexRow)
	leftCol.AddItem(stepTable, 0, 3, false)
	leftCol.AddItem(status, 0, 1, false)

	rightCol := tview.NewFlex().SetDirection(tview.FlexRow)
	rightCol.AddItem(statPlot, 0, 3, false)
	if tuiConf.EnableLogOutput {
		rightCol.AddItem(LogOut, 0, 2, false)
	}

	page := tview.NewFlex().SetDirection(tview.FlexColumn)
	page.AddItem(leftCol, 0, 2, false)
	page.AddItem(rightCol, 0, 3, false)

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return ev
	})

	var (
		out     scan.Outcome
		workErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		out, workErr = work()
		p.Finish(out, workErr)
		if workErr != nil {
			log.Errorf("Scan failed: %v", workErr)
		} else {
			log.Infof("Scan finished, press q to quit")
		}
	}()

	go func() {
		for {
			progressGauge.SetValue(p.Percent())
			if series := p.Series(); len(series) > 1 {
				statPlot.SetData([][]float64{series})
			}
			app.Draw()
			select {
			case <-finished:
				progressGauge.SetValue(100)
				app.Draw()
				return
			case <-time.After(time.Duration(tuiConf.RefreshMs) * time.Millisecond):
			}
		}
	}()

	if err := app.SetRoot(page, true).EnableMouse(true).Run(); err != nil {
		log.Fatalf("Could not start UI: %v", err)
	}
	log.SetOutput(os.Stderr)
	if cancel != nil {
		cancel()
	}
	<-finished
	return out, workErr
}
