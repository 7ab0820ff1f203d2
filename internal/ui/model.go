// Package ui provides the Bubbletea terminal user interface for squelch
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/squelch/internal/processor"
	"github.com/rs/zerolog"
)

// FileStatus represents the processing state of a single file
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusFiltering
	StatusRendering
	StatusComplete
	StatusError
)

// FileProgress tracks progress for a single capture
type FileProgress struct {
	InputPath  string
	OutputPath string
	Status     FileStatus

	// Phase tracking
	CurrentPass int // processor.PassFilter or processor.PassSpectrogram
	PassName    string

	// Progress tracking (percentage-based)
	Progress    float64 // 0.0 to 1.0
	StartTime   time.Time
	ElapsedTime time.Duration

	// Latest counters reported by the running pass
	Stats processor.PassStats

	// Completion results
	Result     *processor.ProcessingResult
	ReportPath string

	// Error tracking
	Error error
}

// Model is the Bubbletea model for the processing UI
type Model struct {
	// File queue
	Files          []FileProgress
	CurrentIndex   int
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int

	// Watch keeps the UI open for captures still to come
	Watch bool

	// Global state
	StartTime time.Time
	Done      bool

	// Channel for receiving progress updates from processor
	ProgressChan chan tea.Msg

	// Terminal dimensions
	Width  int
	Height int

	log zerolog.Logger
}

// NewModel creates a new UI model with the given input files
func NewModel(inputFiles []string, log zerolog.Logger) Model {
	files := make([]FileProgress, len(inputFiles))
	for i, path := range inputFiles {
		files[i] = FileProgress{
			InputPath: path,
			Status:    StatusQueued,
		}
	}

	return Model{
		Files:        files,
		CurrentIndex: -1, // No file processing yet
		TotalFiles:   len(inputFiles),
		StartTime:    time.Now(),
		ProgressChan: make(chan tea.Msg, 100),
		log:          log,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return waitForProgress(m.ProgressChan)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.log.Debug().Int("width", m.Width).Int("height", m.Height).Msg("window resized")

	case ProgressMsg:
		if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
			m.Files[m.CurrentIndex] = updateFileProgress(m.Files[m.CurrentIndex], msg)
		}
		return m, waitForProgress(m.ProgressChan)

	case FileQueuedMsg:
		m.log.Debug().Str("file", msg.FileName).Msg("capture queued")
		m.Files = append(m.Files, FileProgress{InputPath: msg.FileName, Status: StatusQueued})
		m.TotalFiles = len(m.Files)
		return m, waitForProgress(m.ProgressChan)

	case FileStartMsg:
		m.log.Debug().Int("index", msg.FileIndex).Str("file", msg.FileName).Msg("file started")
		if msg.FileIndex < 0 || msg.FileIndex >= len(m.Files) {
			return m, waitForProgress(m.ProgressChan)
		}
		m.CurrentIndex = msg.FileIndex
		m.Files[m.CurrentIndex].Status = StatusFiltering
		m.Files[m.CurrentIndex].StartTime = time.Now()
		return m, waitForProgress(m.ProgressChan)

	case FileCompleteMsg:
		m.log.Debug().Int("index", msg.FileIndex).Err(msg.Error).Msg("file complete")
		if msg.FileIndex >= 0 && msg.FileIndex < len(m.Files) {
			fp := &m.Files[msg.FileIndex]
			fp.Result = msg.Result
			fp.ReportPath = msg.ReportPath
			fp.Error = msg.Error
			if msg.Result != nil {
				fp.OutputPath = msg.Result.OutputPath
			}

			if msg.Error != nil {
				fp.Status = StatusError
				m.FailedFiles++
			} else {
				fp.Status = StatusComplete
				m.CompletedFiles++
			}
		}
		return m, waitForProgress(m.ProgressChan)

	case AllCompleteMsg:
		m.log.Debug().Msg("all files processed")
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Width == 0 {
		return fmt.Sprintf("Initializing...\nFiles: %d\nCurrent: %d\n", len(m.Files), m.CurrentIndex)
	}

	if m.Done {
		return renderCompletionSummary(m)
	}

	return renderProcessingView(m)
}

// updateFileProgress updates a FileProgress based on a ProgressMsg
func updateFileProgress(fp FileProgress, msg ProgressMsg) FileProgress {
	// Reset the start time when transitioning to a new pass
	if msg.Pass != fp.CurrentPass {
		fp.StartTime = time.Now()
	}

	fp.Progress = msg.Progress
	fp.CurrentPass = msg.Pass
	fp.PassName = msg.PassName
	fp.ElapsedTime = time.Since(fp.StartTime)

	if msg.Stats != nil {
		fp.Stats = *msg.Stats
	}

	switch msg.Pass {
	case processor.PassFilter:
		fp.Status = StatusFiltering
	case processor.PassSpectrogram:
		fp.Status = StatusRendering
	}

	return fp
}

// waitForProgress creates a command that waits for progress messages
func waitForProgress(progressChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-progressChan
	}
}
