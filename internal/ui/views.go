package ui

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/squelch/internal/processor"
)

// renderProcessingView renders the main processing view
func renderProcessingView(m Model) string {
	var b strings.Builder

	// Header
	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	// File queue
	b.WriteString(renderFileQueue(m))
	b.WriteString("\n\n")

	// Overall progress
	b.WriteString(renderOverallProgress(m))

	return b.String()
}

// renderHeader renders the application header
func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#A40000")).
		Render("Squelch 📻 - Radio Capture Silence Filter")

	status := fmt.Sprintf("Processing %d capture(s)", m.TotalFiles)
	if m.Watch {
		status = fmt.Sprintf("Recording and filtering (%d capture(s) so far)", m.TotalFiles)
	}
	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Italic(true).
		Render(status)

	return title + "\n" + subtitle
}

// renderFileQueue renders the list of files with their status
func renderFileQueue(m Model) string {
	var b strings.Builder

	for _, file := range m.Files {
		b.WriteString(renderFileEntry(file))
		b.WriteString("\n")
	}

	return b.String()
}

// renderFileEntry renders a single file entry in the queue
func renderFileEntry(file FileProgress) string {
	fileName := filepath.Base(file.InputPath)

	switch file.Status {
	case StatusComplete:
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Render("✓")
		return fmt.Sprintf(" %s %s → %s\n   %s", icon, fileName, filepath.Base(file.OutputPath), resultSummary(file.Result))

	case StatusFiltering, StatusRendering:
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Render("⚙")
		return fmt.Sprintf(" %s %s\n%s", icon, fileName, renderFileDetails(file))

	case StatusError:
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000")).Render("✗")
		return fmt.Sprintf(" %s %s\n   Error: %v", icon, fileName, file.Error)

	default:
		icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("○")
		return fmt.Sprintf(" %s %s\n   Queued...", icon, fileName)
	}
}

// resultSummary is the one-line outcome shown under a finished capture
func resultSummary(r *processor.ProcessingResult) string {
	if r == nil || r.Filter == nil {
		return "No result"
	}
	return fmt.Sprintf("Kept: %s of %s (%.1f%%) | Segments: %d | Peak: %s",
		clock(r.OutputDuration), clock(r.InputDuration), r.RetainedRatio()*100,
		r.Filter.Segments, powerDB(r.Filter.PeakPower))
}

// renderFileDetails renders detailed progress for the active file
func renderFileDetails(file FileProgress) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#A40000")).
		Padding(0, 1).
		Width(60)

	var content strings.Builder

	passName := file.PassName
	if passName == "" {
		passName = "Filtering"
	}
	pass := file.CurrentPass
	if pass == 0 {
		pass = processor.PassFilter
	}
	content.WriteString(fmt.Sprintf("Pass %d/2: %s\n", pass, passName))

	content.WriteString(renderProgressBar(file.Progress, 40))
	content.WriteString("\n\n")

	// Time estimates
	elapsed := file.ElapsedTime.Seconds()
	var remaining float64
	if file.Progress > 0 {
		remaining = (elapsed / file.Progress) - elapsed
	}
	content.WriteString(fmt.Sprintf("⏱  Elapsed: %.1fs | Remaining: ~%.1fs\n", elapsed, remaining))

	if s := file.Stats; s.FramesAnalysed > 0 {
		content.WriteString(fmt.Sprintf("📡 Frames: %d | Flagged: %d | Peak: %s",
			s.FramesAnalysed, s.FramesFlagged, powerDB(s.PeakPower)))
	}

	return box.Render(content.String())
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = math.Max(0, math.Min(1, progress))
	filled := int(progress * float64(width))
	empty := width - filled

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	percentage := int(progress * 100)

	return fmt.Sprintf("%s %d%%", bar, percentage)
}

// renderOverallProgress renders the overall progress footer
func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#888888")).
		Padding(0, 1).
		Width(60)

	var content string
	if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
		content = fmt.Sprintf("Processing capture %d of %d (%d complete)",
			m.CurrentIndex+1, m.TotalFiles, m.CompletedFiles)
	} else {
		content = fmt.Sprintf("Overall Progress: %d/%d complete", m.CompletedFiles, m.TotalFiles)
	}
	if m.FailedFiles > 0 {
		content += fmt.Sprintf(", %d failed", m.FailedFiles)
	}

	return box.Render(content)
}

// renderCompletionSummary renders the final completion summary
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00AA00")).
		Render("✨ Processing Complete!")
	b.WriteString(header)
	b.WriteString("\n\n")

	var in, out float64
	for _, file := range m.Files {
		switch file.Status {
		case StatusComplete:
			b.WriteString(renderCompletedFile(file))
			b.WriteString("\n")
			if file.Result != nil {
				in += file.Result.InputDuration
				out += file.Result.OutputDuration
			}
		case StatusError:
			b.WriteString(renderFileEntry(file))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", 60))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%d of %d capture(s) filtered: %s of traffic kept from %s recorded\n",
		m.CompletedFiles, m.TotalFiles, clock(out), clock(in)))
	b.WriteString(fmt.Sprintf("Total time: %s\n", time.Since(m.StartTime).Round(time.Second)))

	return b.String()
}

// renderCompletedFile renders a summary for a completed file
func renderCompletedFile(file FileProgress) string {
	icon := lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Render("✓")

	s := fmt.Sprintf(" %s %s → %s\n   %s",
		icon, filepath.Base(file.InputPath), filepath.Base(file.OutputPath), resultSummary(file.Result))
	if file.ReportPath != "" {
		s += "\n   Report: " + filepath.Base(file.ReportPath)
	}
	return s
}

// clock formats seconds as h:mm:ss
func clock(seconds float64) string {
	d := time.Duration(math.Round(seconds)) * time.Second
	h := int(d.Hours())
	mi := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, mi, s)
}

// powerDB formats a mean power value in decibels
func powerDB(p float64) string {
	if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return "-∞ dB"
	}
	return fmt.Sprintf("%.1f dB", 10*math.Log10(p))
}
