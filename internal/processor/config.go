// Package processor handles burst detection and trimming of long radio captures
package processor

import (
	"errors"
	"fmt"
	"math"
)

// ErrConfig marks a rejected configuration value
var ErrConfig = errors.New("configuration error")

// Compressed copy formats understood by the encoder stage
const (
	FormatMP3  = "mp3"
	FormatFLAC = "flac"
	FormatNone = "none"
)

// FilterConfig holds every tunable of a filter pass and its spectrogram pass
type FilterConfig struct {
	// Input expectations
	SampleRate int // Hz - captures at any other rate are rejected (0 accepts any)

	// Short-time analysis - fixed by the detection threshold's calibration
	WindowLength int // samples per analysis frame (FFT size)
	HopLength    int // samples between frame starts

	// Detection
	Threshold      float64 // mean power at or above which a frame is flagged
	DilationRadius int     // frames kept either side of every flagged frame

	// Streaming
	ChunkDuration            float64 // seconds per filter chunk
	SpectrogramChunkDuration float64 // seconds per spectrogram block
	Workers                  int     // concurrent chunk analysers (1 = sequential)

	// Artifacts
	CompressedFormat string // mp3, flac or none
	CaptureSuffix    string // stem suffix written by the recorder
	FilteredSuffix   string // stem suffix of the filtered output
	PlotSuffix       string // stem suffix of the diagnostic plot
	PlotEnabled      bool   // render the power-over-time plot
}

// DefaultFilterConfig returns the configuration tuned for the reference
// 2m FM capture station: 12.5 kHz mono, 2048/512 analysis.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SampleRate: 12500,

		WindowLength: 2048,
		HopLength:    512,

		// Operator-tuned for the reference receiver (rtl_fm, 35 dB gain)
		Threshold: 13.0,

		// 73 frames is ~3s at 12.5 kHz - enough to keep callsign preambles and
		// carrier tails that dip under the threshold
		DilationRadius: 73,

		// ~2.2h per chunk keeps a 6h capture to three chunks
		ChunkDuration:            8000,
		SpectrogramChunkDuration: 10,
		Workers:                  1,

		CompressedFormat: FormatMP3,
		CaptureSuffix:    "_sound",
		FilteredSuffix:   "_filtered",
		PlotSuffix:       "_power_spectrum",
		PlotEnabled:      true,
	}
}

// Validate rejects configurations the pipeline cannot run with
func (cfg *FilterConfig) Validate() error {
	switch {
	case cfg.SampleRate < 0:
		return fmt.Errorf("%w: sample rate must not be negative, got %d", ErrConfig, cfg.SampleRate)
	case cfg.WindowLength <= 0:
		return fmt.Errorf("%w: window length must be positive, got %d", ErrConfig, cfg.WindowLength)
	case cfg.HopLength <= 0:
		return fmt.Errorf("%w: hop length must be positive, got %d", ErrConfig, cfg.HopLength)
	case cfg.HopLength > cfg.WindowLength:
		return fmt.Errorf("%w: hop length %d exceeds window length %d", ErrConfig, cfg.HopLength, cfg.WindowLength)
	case math.IsNaN(cfg.Threshold) || math.IsInf(cfg.Threshold, 0) || cfg.Threshold <= 0:
		return fmt.Errorf("%w: threshold must be a positive number, got %g", ErrConfig, cfg.Threshold)
	case cfg.DilationRadius < 0:
		return fmt.Errorf("%w: dilation radius must not be negative, got %d", ErrConfig, cfg.DilationRadius)
	case !(cfg.ChunkDuration > 0):
		return fmt.Errorf("%w: chunk duration must be positive, got %g", ErrConfig, cfg.ChunkDuration)
	case !(cfg.SpectrogramChunkDuration > 0):
		return fmt.Errorf("%w: spectrogram chunk duration must be positive, got %g", ErrConfig, cfg.SpectrogramChunkDuration)
	case cfg.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrConfig, cfg.Workers)
	}

	switch cfg.CompressedFormat {
	case FormatMP3, FormatFLAC, FormatNone:
	default:
		return fmt.Errorf("%w: unknown compressed format %q", ErrConfig, cfg.CompressedFormat)
	}

	if cfg.FilteredSuffix == "" || cfg.FilteredSuffix == cfg.CaptureSuffix {
		return fmt.Errorf("%w: filtered suffix must be non-empty and differ from the capture suffix", ErrConfig)
	}
	return nil
}

// Clone returns an independent copy so callers can adjust per-run values
func (cfg *FilterConfig) Clone() *FilterConfig {
	c := *cfg
	return &c
}
