// Package logging handles generation of analysis reports for filtered captures
package logging

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/squelch/internal/audio"
	"github.com/linuxmatters/squelch/internal/processor"
	"github.com/linuxmatters/squelch/internal/station"
)

// ReportData contains all the information needed to generate an analysis report
type ReportData struct {
	InputPath string
	StartTime time.Time
	EndTime   time.Time
	Result    *processor.ProcessingResult
	Station   station.Info
}

// GenerateReport writes the analysis report beside the filtered output and
// returns its path: 20240101_060000_filtered.wav → 20240101_060000_filtered-analysis.txt
//
// Report structure:
// 1. Header - file info, station and timestamp
// 2. Processing Summary - pass timings
// 3. Detection Settings - threshold, dilation and framing
// 4. Retention - two-column table (Input/Filtered)
// 5. Power - whole-file power series figures
// 6. Receiver Tips - prioritised advice, when any rule fires
// 7. Outputs - artifact paths
func GenerateReport(data ReportData) (string, error) {
	if data.Result == nil {
		return "", fmt.Errorf("no processing result to report for %s", data.InputPath)
	}
	reportPath := processor.ReportPath(data.Result.OutputPath)

	var buf bytes.Buffer
	WriteReport(&buf, data)

	tmp, err := audio.CreateTemp(reportPath)
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := audio.CommitTemp(tmp, reportPath); err != nil {
		return "", err
	}
	return reportPath, nil
}

// WriteReport renders the report to w
func WriteReport(w io.Writer, data ReportData) {
	writeReportHeader(w, data)
	writeProcessingSummary(w, data)

	if data.Result == nil {
		return
	}
	if data.Result.Config != nil {
		writeDetectionSettings(w, data.Result)
	}
	if data.Result.Filter != nil {
		writeRetentionTable(w, data.Result)
	}
	if data.Result.Spectrogram != nil {
		writePowerSummary(w, data.Result)
	}
	writeReceiverTips(w, data.Result)
	writeOutputs(w, data.Result)
}

// writeSection writes a section header with title and dashed underline.
// The underline length matches the title length.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// writeReportHeader outputs the report header with file info and timestamp.
func writeReportHeader(w io.Writer, data ReportData) {
	fmt.Fprintln(w, "Squelch Analysis Report")
	fmt.Fprintln(w, "=======================")
	fmt.Fprintf(w, "File: %s\n", filepath.Base(data.InputPath))
	fmt.Fprintf(w, "Processed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	if data.Station.Timezone != "" {
		fmt.Fprintf(w, "Station: %s\n", data.Station)
	}
	if data.Result != nil {
		fmt.Fprintf(w, "Pass ID: %s\n", data.Result.PassID)
		fmt.Fprintf(w, "Duration: %s\n", formatDuration(seconds(data.Result.InputDuration)))
	}
	fmt.Fprintln(w, "")
}

// writeProcessingSummary outputs the processing time summary for all passes.
func writeProcessingSummary(w io.Writer, data ReportData) {
	writeSection(w, "Processing Summary")

	if r := data.Result; r != nil {
		fmt.Fprintf(w, "Pass 1 (Filtering):    %s\n", formatDuration(r.FilterTime))
		if r.CompressedPath != "" {
			fmt.Fprintf(w, "Encoding:              %s\n", formatDuration(r.EncodeTime))
		}
		if r.PlotPath != "" {
			fmt.Fprintf(w, "Pass 2 (Spectrogram):  %s\n", formatDuration(r.SpectrogramTime))
		} else {
			fmt.Fprintln(w, "Pass 2 (Spectrogram):  skipped")
		}
	}

	totalTime := data.EndTime.Sub(data.StartTime)
	fmt.Fprintf(w, "Total:                 %s", formatDuration(totalTime))

	if data.Result != nil && data.Result.InputDuration > 0 && totalTime > 0 {
		rtf := float64(seconds(data.Result.InputDuration)) / float64(totalTime)
		fmt.Fprintf(w, " (%.0fx real-time)", rtf)
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "")
}

// writeDetectionSettings outputs the tunables the pass ran with
func writeDetectionSettings(w io.Writer, r *processor.ProcessingResult) {
	cfg := r.Config
	writeSection(w, "Detection Settings")

	fmt.Fprintf(w, "Threshold:       %s (%s dB mean power)\n", formatMetric(cfg.Threshold, 2), formatPowerDB(cfg.Threshold, 1))

	radius := fmt.Sprintf("%d frames", cfg.DilationRadius)
	if r.SampleRate > 0 {
		radius += fmt.Sprintf(" (±%s)", formatMetricWithUnit(float64(cfg.DilationRadius*cfg.HopLength)/float64(r.SampleRate), 2, "s"))
	}
	fmt.Fprintf(w, "Dilation:        %s\n", radius)
	fmt.Fprintf(w, "Analysis frame:  %d samples, hop %d\n", cfg.WindowLength, cfg.HopLength)
	fmt.Fprintf(w, "Chunk:           %s\n", formatDuration(seconds(cfg.ChunkDuration)))
	fmt.Fprintf(w, "Workers:         %d\n", cfg.Workers)
	fmt.Fprintln(w, "")
}

// writeRetentionTable outputs the Input/Filtered comparison
func writeRetentionTable(w io.Writer, r *processor.ProcessingResult) {
	s := r.Filter
	writeSection(w, "Retention")

	table := NewMetricTable()
	table.AddMetricRow("Duration", []float64{r.InputDuration, r.OutputDuration}, 1, "s", "")
	table.AddCountRow("Samples", []int64{s.SamplesIn, s.SamplesOut}, "")
	table.AddCountRow("Frames", []int64{int64(s.FramesAnalysed), int64(s.FramesRetained)}, "")
	table.AddCountRow("Flagged frames", []int64{int64(s.FramesFlagged), -1}, "")
	table.AddCountRow("Segments", []int64{-1, int64(s.Segments)}, "")
	table.AddCountRow("Chunks", []int64{int64(s.Chunks), -1}, "")

	ratio := r.RetainedRatio()
	table.AddRow("Retained", []string{"", formatMetric(ratio*100, 1)}, "%", interpretRetention(ratio, s.FramesFlagged))

	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "")
}

// writePowerSummary outputs the whole-file power figures from pass 2
func writePowerSummary(w io.Writer, r *processor.ProcessingResult) {
	sp := r.Spectrogram
	writeSection(w, "Power")

	fmt.Fprintf(w, "Frames:          %s\n", formatCount(int64(sp.Frames)))
	fmt.Fprintf(w, "Peak:            %s dB", formatPowerDB(sp.PeakPower, 1))
	if r.SampleRate > 0 && r.Config != nil && sp.Frames > 0 {
		at := float64(sp.PeakFrame*r.Config.HopLength) / float64(r.SampleRate)
		fmt.Fprintf(w, " at %s", formatDuration(seconds(at)))
	}
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Mean:            %s dB\n", formatPowerDB(sp.MeanPower, 1))

	above := math.NaN()
	if sp.Frames > 0 {
		above = 100 * float64(sp.FramesAbove) / float64(sp.Frames)
	}
	fmt.Fprintf(w, "Above threshold: %s frames (%s)\n", formatCount(int64(sp.FramesAbove)), formatMetricWithUnit(above, 2, "%"))
	fmt.Fprintln(w, "")
}

// writeReceiverTips outputs the prioritised tips, if any
func writeReceiverTips(w io.Writer, r *processor.ProcessingResult) {
	tips := GenerateReceiverTips(r)
	if len(tips) == 0 {
		return
	}
	writeSection(w, "Receiver Tips")
	for i, tip := range tips {
		fmt.Fprintf(w, "%d. %s\n", i+1, wrapText(tip.Message, 74, "   "))
	}
	fmt.Fprintln(w, "")
}

// writeOutputs lists the artifacts written
func writeOutputs(w io.Writer, r *processor.ProcessingResult) {
	writeSection(w, "Outputs")
	fmt.Fprintf(w, "Filtered:   %s\n", r.OutputPath)
	if r.CompressedPath != "" {
		fmt.Fprintf(w, "Compressed: %s\n", r.CompressedPath)
	}
	if r.PlotPath != "" {
		fmt.Fprintf(w, "Plot:       %s\n", r.PlotPath)
	}
}

// interpretRetention describes how busy the channel was
func interpretRetention(ratio float64, flagged int) string {
	switch {
	case flagged == 0:
		return "no activity above threshold"
	case ratio < 0.05:
		return "quiet channel"
	case ratio < 0.25:
		return "occasional traffic"
	case ratio < 0.6:
		return "busy channel"
	default:
		return "near-continuous activity, check threshold or interference"
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	minutes := int(d.Minutes())
	secs := int(d.Seconds()) % 60

	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
