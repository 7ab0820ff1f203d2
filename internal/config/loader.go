package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/linuxmatters/squelch/internal/processor"
)

// Loader builds a Config from defaults, a TOML file and the environment.
// Tests can override Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load retrieves the configuration. path names a TOML file; when empty,
// SQUELCH_CONFIG is consulted, and no file is read if neither is set.
func (l Loader) Load(path string) (*Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	cfg := Default()

	if path == "" {
		overrideString(l.Lookup, "SQUELCH_CONFIG", &path)
	}
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	// Captures are named with the suffix the filter expects
	cfg.Capture.Suffix = cfg.Filter.CaptureSuffix
	return cfg, nil
}

func (l Loader) applyEnv(cfg *Config) error {
	f := cfg.Filter
	c := &cfg.Capture

	overrideString(l.Lookup, "SQUELCH_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "SQUELCH_FORMAT", &f.CompressedFormat)
	overrideString(l.Lookup, "SQUELCH_LIBRARY", &c.LibraryDir)
	overrideString(l.Lookup, "SQUELCH_CAPTURE_COMMAND", &c.Command)

	floats := []struct {
		key    string
		target *float64
	}{
		{"SQUELCH_THRESHOLD", &f.Threshold},
		{"SQUELCH_CHUNK_DURATION", &f.ChunkDuration},
		{"SQUELCH_SPECTROGRAM_CHUNK_DURATION", &f.SpectrogramChunkDuration},
		{"SQUELCH_GAIN", &c.Gain},
	}
	for _, o := range floats {
		if err := overrideFloat(l.Lookup, o.key, o.target); err != nil {
			return err
		}
	}

	ints := []struct {
		key    string
		target *int
	}{
		{"SQUELCH_SAMPLE_RATE", &f.SampleRate},
		{"SQUELCH_DILATION_RADIUS", &f.DilationRadius},
		{"SQUELCH_WORKERS", &f.Workers},
		{"SQUELCH_FREQUENCY", &c.Frequency},
		{"SQUELCH_PPM", &c.PPM},
	}
	for _, o := range ints {
		if err := overrideInt(l.Lookup, o.key, o.target); err != nil {
			return err
		}
	}

	// SQUELCH_SAMPLE_RATE sets the rate captures are recorded and filtered at
	if f.SampleRate != 0 {
		if value, ok := l.Lookup("SQUELCH_SAMPLE_RATE"); ok && strings.TrimSpace(value) != "" {
			c.SampleRate = f.SampleRate
		}
	}

	if value, ok := l.Lookup("SQUELCH_PLOT"); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: config: invalid value for SQUELCH_PLOT: %v", processor.ErrConfig, err)
		}
		f.PlotEnabled = parsed
	}

	if value, ok := l.Lookup("SQUELCH_GRACE_PERIOD"); ok && strings.TrimSpace(value) != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: config: invalid value for SQUELCH_GRACE_PERIOD: %v", processor.ErrConfig, err)
		}
		c.GracePeriod = parsed
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%w: config: invalid value for %s: %v", processor.ErrConfig, key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: config: invalid value for %s: %v", processor.ErrConfig, key, err)
		}
		*target = parsed
	}
	return nil
}
