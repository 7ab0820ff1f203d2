// Package logging handles generation of analysis reports for filtered captures.
// This file provides console display for --no-tui and spectrogram-only runs.

package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/squelch/internal/audio"
	"github.com/linuxmatters/squelch/internal/processor"
)

// DisplayResult outputs a filter run summary to the console.
func DisplayResult(w io.Writer, r *processor.ProcessingResult) {
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "FILTERED: %s\n", filepath.Base(r.InputPath))
	fmt.Fprintln(w, strings.Repeat("=", 70))

	fmt.Fprintf(w, "Input:       %s\n", formatDurationHMS(r.InputDuration))
	fmt.Fprintf(w, "Kept:        %s (%s)\n", formatDurationHMS(r.OutputDuration), formatMetricWithUnit(r.RetainedRatio()*100, 1, "%"))
	if r.Filter != nil {
		fmt.Fprintf(w, "Segments:    %s\n", formatCount(int64(r.Filter.Segments)))
		fmt.Fprintf(w, "Peak power:  %s dB\n", formatPowerDB(r.Filter.PeakPower, 1))
	}
	fmt.Fprintln(w)

	writeAnalysisSection(w, "OUTPUTS")
	fmt.Fprintf(w, "  %s\n", r.OutputPath)
	if r.CompressedPath != "" {
		fmt.Fprintf(w, "  %s\n", r.CompressedPath)
	}
	if r.PlotPath != "" {
		fmt.Fprintf(w, "  %s\n", r.PlotPath)
	}

	if tips := GenerateReceiverTips(r); len(tips) > 0 {
		fmt.Fprintln(w)
		writeAnalysisSection(w, "TIPS")
		for _, tip := range tips {
			fmt.Fprintf(w, "  - %s\n", wrapText(tip.Message, 66, "    "))
		}
	}
	fmt.Fprintln(w)
}

// DisplaySpectrogramResults outputs a spectrogram-only run to the console.
func DisplaySpectrogramResults(w io.Writer, inputPath string, metadata *audio.Metadata, summary *processor.SpectrogramSummary, plotPath string, cfg *processor.FilterConfig) {
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "SPECTROGRAM: %s\n", filepath.Base(inputPath))
	fmt.Fprintln(w, strings.Repeat("=", 70))

	fmt.Fprintf(w, "Duration:    %s\n", formatDurationHMS(metadata.Duration))
	fmt.Fprintf(w, "Sample Rate: %d Hz\n", metadata.SampleRate)
	fmt.Fprintf(w, "Bit Depth:   %d\n", metadata.BitDepth)
	fmt.Fprintln(w)

	writeAnalysisSection(w, "POWER")
	fmt.Fprintf(w, "  Frames:          %s\n", formatCount(int64(summary.Frames)))
	if summary.Frames > 0 {
		at := float64(summary.PeakFrame*cfg.HopLength) / float64(metadata.SampleRate)
		fmt.Fprintf(w, "  Peak:            %s dB at %s\n", formatPowerDB(summary.PeakPower, 1), formatDurationHMS(at))
		fmt.Fprintf(w, "  Mean:            %s dB\n", formatPowerDB(summary.MeanPower, 1))
		fmt.Fprintf(w, "  Above threshold: %s (%s)\n", formatCount(int64(summary.FramesAbove)),
			formatMetricWithUnit(100*float64(summary.FramesAbove)/float64(summary.Frames), 2, "%"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Plot: %s\n", plotPath)
}

// writeAnalysisSection writes a section header for console output.
func writeAnalysisSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
}

// formatDurationHMS formats duration as "Xh Ym Zs" or "Ym Zs" or "Z.Xs".
func formatDurationHMS(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	totalSeconds := int(seconds)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	}
	return fmt.Sprintf("%dm %ds", minutes, secs)
}
