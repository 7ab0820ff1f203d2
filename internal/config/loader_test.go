package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/linuxmatters/squelch/internal/processor"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "squelch.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoaderDefaults(t *testing.T) {
	loader := Loader{Lookup: envLookup(nil)}
	cfg, err := loader.Load("")
	if err != nil {
		t.Fatal(err)
	}

	want := processor.DefaultFilterConfig()
	if *cfg.Filter != *want {
		t.Errorf("Filter = %+v, want defaults %+v", *cfg.Filter, *want)
	}
	if cfg.Capture.Window != 21558*time.Second {
		t.Errorf("Capture.Window = %s, want 21558s", cfg.Capture.Window)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoaderFile(t *testing.T) {
	path := writeConfigFile(t, `
log_level = "debug"

[filter]
threshold = 20.5
dilation_radius = 10
workers = 4
format = "flac"
capture_suffix = "_raw"
plot = false

[capture]
frequency = 144800000
library = "/srv/captures"
grace_seconds = 2.5
interval_hours = 3
window_seconds = 10000
`)

	cfg, err := Loader{Lookup: envLookup(nil)}.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Filter.Threshold != 20.5 {
		t.Errorf("Threshold = %v, want 20.5", cfg.Filter.Threshold)
	}
	if cfg.Filter.DilationRadius != 10 {
		t.Errorf("DilationRadius = %d, want 10", cfg.Filter.DilationRadius)
	}
	if cfg.Filter.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Filter.Workers)
	}
	if cfg.Filter.CompressedFormat != processor.FormatFLAC {
		t.Errorf("CompressedFormat = %q, want flac", cfg.Filter.CompressedFormat)
	}
	if cfg.Filter.PlotEnabled {
		t.Error("PlotEnabled = true, want false")
	}
	if cfg.Capture.Suffix != "_raw" {
		t.Errorf("Capture.Suffix = %q, want the filter's capture suffix", cfg.Capture.Suffix)
	}
	if cfg.Capture.Frequency != 144800000 {
		t.Errorf("Capture.Frequency = %d, want 144800000", cfg.Capture.Frequency)
	}
	if cfg.Capture.LibraryDir != "/srv/captures" {
		t.Errorf("Capture.LibraryDir = %q", cfg.Capture.LibraryDir)
	}
	if cfg.Capture.GracePeriod != 2500*time.Millisecond {
		t.Errorf("Capture.GracePeriod = %s, want 2.5s", cfg.Capture.GracePeriod)
	}
	if cfg.Capture.Interval != 3*time.Hour {
		t.Errorf("Capture.Interval = %s, want 3h", cfg.Capture.Interval)
	}

	// Unset keys keep defaults
	if cfg.Filter.ChunkDuration != 8000 {
		t.Errorf("ChunkDuration = %v, want default 8000", cfg.Filter.ChunkDuration)
	}
	if cfg.Capture.Gain != 35 {
		t.Errorf("Capture.Gain = %v, want default 35", cfg.Capture.Gain)
	}
}

func TestLoaderEnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
[filter]
threshold = 20
workers = 2
`)
	env := map[string]string{
		"SQUELCH_THRESHOLD":    "15",
		"SQUELCH_FORMAT":       "none",
		"SQUELCH_PLOT":         "false",
		"SQUELCH_GRACE_PERIOD": "1s",
		"SQUELCH_LIBRARY":      " /tmp/lib ",
	}
	cfg, err := Loader{Lookup: envLookup(env)}.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	// Env var overrides the file
	if cfg.Filter.Threshold != 15 {
		t.Errorf("Threshold = %v, want 15 (env override)", cfg.Filter.Threshold)
	}
	if cfg.Filter.Workers != 2 {
		t.Errorf("Workers = %d, want 2 from file", cfg.Filter.Workers)
	}
	if cfg.Filter.CompressedFormat != processor.FormatNone {
		t.Errorf("CompressedFormat = %q, want none", cfg.Filter.CompressedFormat)
	}
	if cfg.Filter.PlotEnabled {
		t.Error("PlotEnabled = true, want false")
	}
	if cfg.Capture.GracePeriod != time.Second {
		t.Errorf("GracePeriod = %s, want 1s", cfg.Capture.GracePeriod)
	}
	if cfg.Capture.LibraryDir != "/tmp/lib" {
		t.Errorf("LibraryDir = %q, want trimmed /tmp/lib", cfg.Capture.LibraryDir)
	}
}

func TestLoaderSampleRate(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		env         map[string]string
		wantFilter  int
		wantCapture int
		wantErr     bool
	}{
		{"defaults", "", nil, 12500, 12500, false},
		{"capture only", "[capture]\nsample_rate = 24000\n", nil, 24000, 24000, false},
		{"filter only", "[filter]\nsample_rate = 24000\n", nil, 24000, 24000, false},
		{"filter accepts any", "[filter]\nsample_rate = 0\n", nil, 0, 12500, false},
		{"both agree", "[filter]\nsample_rate = 16000\n[capture]\nsample_rate = 16000\n", nil, 16000, 16000, false},
		{"both differ", "[filter]\nsample_rate = 12500\n[capture]\nsample_rate = 24000\n", nil, 12500, 24000, true},
		{"env", "", map[string]string{"SQUELCH_SAMPLE_RATE": "48000"}, 48000, 48000, false},
		{"env over file", "[capture]\nsample_rate = 24000\n", map[string]string{"SQUELCH_SAMPLE_RATE": "16000"}, 16000, 16000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}
			cfg, err := Loader{Lookup: envLookup(tt.env)}.Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Filter.SampleRate != tt.wantFilter || cfg.Capture.SampleRate != tt.wantCapture {
				t.Errorf("rates = filter %d capture %d, want %d and %d",
					cfg.Filter.SampleRate, cfg.Capture.SampleRate, tt.wantFilter, tt.wantCapture)
			}
			err = cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, processor.ErrConfig) {
					t.Errorf("Validate() error = %v, want ErrConfig", err)
				}
			} else if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestLoaderConfigFromEnv(t *testing.T) {
	path := writeConfigFile(t, "[filter]\ndilation_radius = 5\n")
	cfg, err := Loader{Lookup: envLookup(map[string]string{"SQUELCH_CONFIG": path})}.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Filter.DilationRadius != 5 {
		t.Errorf("DilationRadius = %d, want 5", cfg.Filter.DilationRadius)
	}
}

func TestLoaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantCfg bool // error is classed as a configuration error
	}{
		{"bad float", "", map[string]string{"SQUELCH_THRESHOLD": "loud"}, true},
		{"bad int", "", map[string]string{"SQUELCH_WORKERS": "many"}, true},
		{"bad bool", "", map[string]string{"SQUELCH_PLOT": "maybe"}, true},
		{"bad duration", "", map[string]string{"SQUELCH_GRACE_PERIOD": "soon"}, true},
		{"malformed toml", "[filter\nthreshold = 1", nil, true},
		{"unknown key", "[filter]\nthreshhold = 1\n", nil, true},
		{"wrong type", "[filter]\nworkers = \"four\"\n", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}
			_, err := Loader{Lookup: envLookup(tt.env)}.Load(path)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if tt.wantCfg && !errors.Is(err, processor.ErrConfig) {
				t.Errorf("Load() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := Loader{Lookup: envLookup(nil)}.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestValidateRejectsBadCapture(t *testing.T) {
	cfg := Default()
	cfg.Capture.Interval = 5 * time.Hour
	if err := cfg.Validate(); !errors.Is(err, processor.ErrConfig) {
		t.Errorf("Validate() error = %v, want ErrConfig", err)
	}
}
