package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/squelch/internal/audio"
	"github.com/linuxmatters/squelch/internal/processor"
)

// Spinner frames for indeterminate progress
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SpectrogramModel is the Bubbletea model for spectrogram-only mode
type SpectrogramModel struct {
	// File being analysed
	FileName string
	FilePath string

	// Progress tracking
	Progress  float64 // 0.0 to 1.0
	Frames    int     // analysis frames computed so far
	PeakPower float64
	StartTime time.Time

	spinnerIndex int

	// Results (populated when complete)
	Summary  *processor.SpectrogramSummary
	Metadata *audio.Metadata
	PlotPath string
	Error    error
	Done     bool

	// Terminal dimensions
	Width  int
	Height int
}

// SpectrogramStartMsg signals rendering has started
type SpectrogramStartMsg struct {
	FilePath string
}

// SpectrogramProgressMsg signals a progress update
type SpectrogramProgressMsg struct {
	Progress float64
	Stats    *processor.PassStats
}

// SpectrogramCompleteMsg signals rendering has finished
type SpectrogramCompleteMsg struct {
	Summary  *processor.SpectrogramSummary
	Metadata *audio.Metadata
	PlotPath string
	Error    error
}

// tickMsg is sent for spinner/timer animation
type tickMsg time.Time

// NewSpectrogramModel creates a new spectrogram UI model
func NewSpectrogramModel() SpectrogramModel {
	return SpectrogramModel{
		StartTime: time.Now(),
	}
}

// Init initializes the model
func (m SpectrogramModel) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick message every 100ms
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model
func (m SpectrogramModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tickMsg:
		if !m.Done {
			m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
			return m, tickCmd()
		}
		return m, nil

	case SpectrogramStartMsg:
		m.FileName = filepath.Base(msg.FilePath)
		m.FilePath = msg.FilePath
		m.StartTime = time.Now()
		return m, nil

	case SpectrogramProgressMsg:
		m.Progress = msg.Progress
		if msg.Stats != nil {
			m.Frames = msg.Stats.FramesAnalysed
			m.PeakPower = msg.Stats.PeakPower
		}
		return m, nil

	case SpectrogramCompleteMsg:
		m.Summary = msg.Summary
		m.Metadata = msg.Metadata
		m.PlotPath = msg.PlotPath
		m.Error = msg.Error
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m SpectrogramModel) View() string {
	if m.Width == 0 {
		return "Initializing..."
	}

	var b strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#A40000")).
		Render("Squelch")

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Italic(true).
		Render("Spectrogram Mode")

	b.WriteString(title + " " + subtitle)
	b.WriteString("\n\n")

	if m.FileName == "" {
		b.WriteString("Waiting...")
		return b.String()
	}

	fileStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true)

	b.WriteString("Analysing: ")
	b.WriteString(fileStyle.Render(m.FileName))
	b.WriteString("\n\n")

	elapsed := time.Since(m.StartTime)
	spinnerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000"))
	spinner := spinnerStyle.Render(spinnerFrames[m.spinnerIndex])

	if m.Progress > 0 && m.Progress < 1.0 {
		b.WriteString(spinner)
		b.WriteString(" ")
		b.WriteString(renderAnalysisProgressBar(m.Progress, 40, elapsed))
	} else if !m.Done {
		b.WriteString(spinner)
		b.WriteString(" Rendering...")
		b.WriteString(fmt.Sprintf(" [%s]", formatElapsed(elapsed)))
	}

	b.WriteString("\n")

	if m.Frames > 0 && !m.Done {
		b.WriteString(fmt.Sprintf("\nFrames: %d | Peak: %s", m.Frames, powerDB(m.PeakPower)))
	}

	return b.String()
}

// renderAnalysisProgressBar renders a progress bar with percentage and elapsed time
func renderAnalysisProgressBar(progress float64, width int, elapsed time.Duration) string {
	filled := int(progress * float64(width))
	empty := width - filled

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000"))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))

	bar := filledStyle.Render(strings.Repeat("━", filled)) +
		emptyStyle.Render(strings.Repeat("━", empty))

	percentage := int(progress * 100)

	return fmt.Sprintf("%s %3d%% [%s]", bar, percentage, formatElapsed(elapsed))
}

// formatElapsed formats elapsed time as MM:SS or HH:MM:SS
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
