// Package config layers squelch settings: built-in defaults, then an optional
// TOML file, then SQUELCH_* environment variables. Command-line flags are
// applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/linuxmatters/squelch/internal/capture"
	"github.com/linuxmatters/squelch/internal/processor"
)

// Config holds every setting squelch reads
type Config struct {
	Filter   *processor.FilterConfig
	Capture  capture.Config
	LogLevel string
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Filter:   processor.DefaultFilterConfig(),
		Capture:  capture.DefaultConfig(),
		LogLevel: "info",
	}
}

// Validate checks both the filter and capture settings
func (c *Config) Validate() error {
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("%w: %v", processor.ErrConfig, err)
	}
	// Recorded captures must pass the filter's rate check
	if c.Filter.SampleRate != 0 && c.Filter.SampleRate != c.Capture.SampleRate {
		return fmt.Errorf("%w: filter sample rate %d Hz does not match capture sample rate %d Hz",
			processor.ErrConfig, c.Filter.SampleRate, c.Capture.SampleRate)
	}
	return nil
}

// fileConfig mirrors the TOML layout. Pointers distinguish unset keys.
type fileConfig struct {
	LogLevel string `toml:"log_level"`

	Filter struct {
		SampleRate               *int     `toml:"sample_rate"`
		Threshold                *float64 `toml:"threshold"`
		DilationRadius           *int     `toml:"dilation_radius"`
		ChunkDuration            *float64 `toml:"chunk_duration"`
		SpectrogramChunkDuration *float64 `toml:"spectrogram_chunk_duration"`
		Workers                  *int     `toml:"workers"`
		Format                   string   `toml:"format"`
		CaptureSuffix            string   `toml:"capture_suffix"`
		FilteredSuffix           string   `toml:"filtered_suffix"`
		Plot                     *bool    `toml:"plot"`
	} `toml:"filter"`

	Capture struct {
		Frequency     *int     `toml:"frequency"`
		SampleRate    *int     `toml:"sample_rate"`
		Gain          *float64 `toml:"gain"`
		PPM           *int     `toml:"ppm"`
		Library       string   `toml:"library"`
		Command       string   `toml:"command"`
		GraceSeconds  *float64 `toml:"grace_seconds"`
		IntervalHours *int     `toml:"interval_hours"`
		WindowSeconds *float64 `toml:"window_seconds"`
	} `toml:"capture"`
}

// LoadFile applies the TOML file at path over cfg
func LoadFile(path string, cfg *Config) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: %w", err)
		}
		return fmt.Errorf("%w: config: decode %s: %v", processor.ErrConfig, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: config: unknown keys in %s: %s", processor.ErrConfig, path, strings.Join(keys, ", "))
	}

	applyFile(&fc, cfg)
	return nil
}

func applyFile(fc *fileConfig, cfg *Config) {
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}

	f := cfg.Filter
	setInt(&f.SampleRate, fc.Filter.SampleRate)
	setFloat(&f.Threshold, fc.Filter.Threshold)
	setInt(&f.DilationRadius, fc.Filter.DilationRadius)
	setFloat(&f.ChunkDuration, fc.Filter.ChunkDuration)
	setFloat(&f.SpectrogramChunkDuration, fc.Filter.SpectrogramChunkDuration)
	setInt(&f.Workers, fc.Filter.Workers)
	setString(&f.CompressedFormat, fc.Filter.Format)
	setString(&f.CaptureSuffix, fc.Filter.CaptureSuffix)
	setString(&f.FilteredSuffix, fc.Filter.FilteredSuffix)
	if fc.Filter.Plot != nil {
		f.PlotEnabled = *fc.Filter.Plot
	}

	c := &cfg.Capture
	setInt(&c.Frequency, fc.Capture.Frequency)
	setInt(&c.SampleRate, fc.Capture.SampleRate)
	setFloat(&c.Gain, fc.Capture.Gain)
	setInt(&c.PPM, fc.Capture.PPM)
	setString(&c.LibraryDir, fc.Capture.Library)
	setString(&c.Command, fc.Capture.Command)
	if fc.Capture.GraceSeconds != nil {
		c.GracePeriod = seconds(*fc.Capture.GraceSeconds)
	}
	if fc.Capture.IntervalHours != nil {
		c.Interval = time.Duration(*fc.Capture.IntervalHours) * time.Hour
	}
	if fc.Capture.WindowSeconds != nil {
		c.Window = seconds(*fc.Capture.WindowSeconds)
	}

	// A rate given in one section applies to both; 0 leaves the capture rate alone
	switch {
	case fc.Capture.SampleRate != nil && fc.Filter.SampleRate == nil:
		f.SampleRate = c.SampleRate
	case fc.Filter.SampleRate != nil && fc.Capture.SampleRate == nil && f.SampleRate != 0:
		c.SampleRate = f.SampleRate
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
