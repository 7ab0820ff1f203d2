package ui

import (
	"github.com/linuxmatters/squelch/internal/processor"
)

// ProgressMsg represents a progress update from the processor
type ProgressMsg struct {
	Pass     int     // processor.PassFilter or processor.PassSpectrogram
	PassName string  // "Filtering" or "Spectrogram"
	Progress float64 // 0.0 to 1.0
	Stats    *processor.PassStats
}

// FileStartMsg indicates a new file has started processing
type FileStartMsg struct {
	FileIndex int
	FileName  string
}

// FileQueuedMsg appends a capture handed off by the recorder to the queue
type FileQueuedMsg struct {
	FileName string
}

// FileCompleteMsg indicates a file has finished processing
type FileCompleteMsg struct {
	FileIndex  int
	Result     *processor.ProcessingResult
	ReportPath string
	Error      error
}

// AllCompleteMsg indicates all files have been processed
type AllCompleteMsg struct{}
