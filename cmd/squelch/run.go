package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/squelch/internal/capture"
	"github.com/linuxmatters/squelch/internal/cli"
	"github.com/linuxmatters/squelch/internal/logging"
	"github.com/linuxmatters/squelch/internal/processor"
	"github.com/linuxmatters/squelch/internal/ui"
	"github.com/rs/zerolog"
)

// sender delivers messages to a running UI, dropping them once it has exited
type sender func(tea.Msg)

func uiSender(ch chan tea.Msg, uiDone <-chan struct{}) sender {
	return func(msg tea.Msg) {
		select {
		case ch <- msg:
		case <-uiDone:
		}
	}
}

// runFilter filters each capture in turn
func (a *app) runFilter(ctx context.Context, files []string, tun Tunables) error {
	if err := tun.apply(a.cfg); err != nil {
		return err
	}
	a.log.Info().
		Int("files", len(files)).
		Float64("threshold", a.cfg.Filter.Threshold).
		Int("radius", a.cfg.Filter.DilationRadius).
		Int("workers", a.cfg.Filter.Workers).
		Msg("filtering captures")

	if a.cli.NoTUI {
		failed := 0
		for i, path := range files {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if a.processCapture(i, path, nil) != nil {
				failed++
			}
		}
		return failedErr(failed, len(files))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(files, a.log)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	uiDone := make(chan struct{})
	send := uiSender(model.ProgressChan, uiDone)

	// Start processing in background
	done := make(chan int)
	go func() {
		failed := 0
		for i, path := range files {
			if ctx.Err() != nil {
				break
			}
			if a.processCapture(i, path, send) != nil {
				failed++
			}
		}
		send(ui.AllCompleteMsg{})
		done <- failed
	}()

	return a.runUI(p, cancel, uiDone, func() error {
		return failedErr(<-done, len(files))
	})
}

// runRecord captures on schedule until interrupted, filtering each finished
// capture while the next one records
func (a *app) runRecord(ctx context.Context, rc RecordCmd) error {
	if rc.Library != "" {
		a.cfg.Capture.LibraryDir = rc.Library
	}
	if rc.Frequency != nil {
		a.cfg.Capture.Frequency = *rc.Frequency
	}
	if err := rc.Tunables.apply(a.cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := capture.NewRecorder(a.cfg.Capture, a.log)
	sched := capture.NewScheduler(a.cfg.Capture, rec, a.station.Location, a.log)
	a.log.Info().
		Str("station", a.station.String()).
		Int("frequency", a.cfg.Capture.Frequency).
		Str("library", a.cfg.Capture.LibraryDir).
		Msg("starting capture schedule")
	if a.cli.NoTUI {
		cli.PrintKeyValue("Station", a.station.String())
		cli.PrintKeyValue("Tuned", fmt.Sprintf("%.3f MHz", float64(a.cfg.Capture.Frequency)/1e6))
		cli.PrintKeyValue("Library", a.cfg.Capture.LibraryDir)
		cli.PrintNotice("Recording; press Ctrl+C to stop")
	}

	completed := make(chan string)
	schedErr := make(chan error, 1)
	go func() {
		schedErr <- sched.Run(ctx, completed)
	}()

	// Each finished capture is handed off here; Run closes completed on exit
	handoff := func(send sender) {
		i := 0
		for path := range completed {
			if send != nil {
				send(ui.FileQueuedMsg{FileName: path})
			}
			if err := a.processCapture(i, path, send); err != nil {
				a.log.Error().Err(err).Str("file", path).Msg("capture left unfiltered")
			}
			i++
		}
	}

	if a.cli.NoTUI {
		handoff(nil)
		return <-schedErr
	}

	model := ui.NewModel(nil, a.log)
	model.Watch = true
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	uiDone := make(chan struct{})
	send := uiSender(model.ProgressChan, uiDone)

	done := make(chan struct{})
	go func() {
		handoff(send)
		send(ui.AllCompleteMsg{})
		close(done)
	}()

	return a.runUI(p, cancel, uiDone, func() error {
		<-done
		return <-schedErr
	})
}

// runUI runs p until it quits, then stops the background work and waits for
// the capture in flight so no temporary files are left behind
func (a *app) runUI(p *tea.Program, cancel context.CancelFunc, uiDone chan struct{}, wait func() error) error {
	final, err := p.Run()
	close(uiDone)
	cancel()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("UI error: %w", err)
	}

	if m, ok := final.(ui.Model); ok && m.Done {
		fmt.Println(m.View())
	} else {
		cli.PrintNotice("Finishing current capture...")
	}
	return wait()
}

// processCapture filters one capture and writes its report when asked
func (a *app) processCapture(index int, path string, send sender) error {
	if send != nil {
		send(ui.FileStartMsg{FileIndex: index, FileName: path})
	}

	start := time.Now()
	ph := &progressHandler{send: send, log: a.log.With().Str("file", path).Logger()}
	result, err := processor.ProcessAudio(path, a.cfg.Filter, a.log, ph.callback)

	var reportPath string
	if err == nil && a.cli.Logs {
		reportPath, err = logging.GenerateReport(logging.ReportData{
			InputPath: path,
			StartTime: start,
			EndTime:   time.Now(),
			Result:    result,
			Station:   a.station,
		})
		if err != nil {
			a.log.Warn().Err(err).Str("file", path).Msg("failed to write analysis report")
			err = nil
		}
	}

	if send != nil {
		send(ui.FileCompleteMsg{
			FileIndex:  index,
			Result:     result,
			ReportPath: reportPath,
			Error:      err,
		})
		return err
	}

	if err != nil {
		a.log.Error().Err(err).Str("file", path).Msg("filter failed")
		return err
	}
	logging.DisplayResult(os.Stdout, result)
	if reportPath != "" {
		fmt.Printf("Report: %s\n\n", reportPath)
	}
	return nil
}

// runSpectrogram renders the power plot of each file
func (a *app) runSpectrogram(ctx context.Context, files []string) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	failed := 0
	for _, path := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var (
			summary  *processor.SpectrogramSummary
			plotPath string
			err      error
		)
		if a.cli.NoTUI {
			ph := &progressHandler{log: a.log.With().Str("file", path).Logger()}
			summary, plotPath, err = processor.RenderSpectrogram(path, a.cfg.Filter, ph.callback)
		} else {
			summary, plotPath, err = a.spectrogramUI(ctx, path)
		}

		if err != nil {
			a.log.Error().Err(err).Str("file", path).Msg("spectrogram failed")
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		logging.DisplaySpectrogramResults(os.Stdout, path, summary.Source, summary, plotPath, a.cfg.Filter)
	}
	return failedErr(failed, len(files))
}

// spectrogramUI renders one plot behind the spinner UI
func (a *app) spectrogramUI(ctx context.Context, path string) (*processor.SpectrogramSummary, string, error) {
	model := ui.NewSpectrogramModel()
	p := tea.NewProgram(model, tea.WithContext(ctx))

	type outcome struct {
		summary  *processor.SpectrogramSummary
		plotPath string
		err      error
	}
	done := make(chan outcome, 1)

	go func() {
		p.Send(ui.SpectrogramStartMsg{FilePath: path})
		summary, plotPath, err := processor.RenderSpectrogram(path, a.cfg.Filter,
			func(_ int, _ string, progress float64, stats *processor.PassStats) {
				p.Send(ui.SpectrogramProgressMsg{Progress: progress, Stats: snapshot(stats)})
			})
		msg := ui.SpectrogramCompleteMsg{Summary: summary, PlotPath: plotPath, Error: err}
		if summary != nil {
			msg.Metadata = summary.Source
		}
		p.Send(msg)
		done <- outcome{summary, plotPath, err}
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, "", fmt.Errorf("UI error: %w", err)
	}
	o := <-done
	return o.summary, o.plotPath, o.err
}

// progressHandler forwards processor progress to the UI, or to the log
// when there is no UI
type progressHandler struct {
	send    sender
	log     zerolog.Logger
	lastPct int
}

func (ph *progressHandler) callback(pass int, passName string, progress float64, stats *processor.PassStats) {
	if ph.send != nil {
		ph.send(ui.ProgressMsg{
			Pass:     pass,
			PassName: passName,
			Progress: progress,
			Stats:    snapshot(stats),
		})
		return
	}

	// Plain mode logs every tenth of a pass
	pct := int(progress * 10)
	if progress == 0 {
		ph.lastPct = -1
	}
	if pct == ph.lastPct {
		return
	}
	ph.lastPct = pct
	ev := ph.log.Debug().Int("pass", pass).Str("name", passName).Float64("progress", progress)
	if stats != nil {
		ev = ev.Int("frames", stats.FramesAnalysed).Int("flagged", stats.FramesFlagged)
	}
	ev.Msg("progress")
}

// snapshot copies stats so the UI never reads counters the processor is
// still updating
func snapshot(stats *processor.PassStats) *processor.PassStats {
	if stats == nil {
		return nil
	}
	s := *stats
	return &s
}

func failedErr(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d capture(s) failed", failed, total)
}
