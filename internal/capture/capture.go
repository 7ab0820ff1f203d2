// Package capture drives the external receiver pipeline that records radio
// captures to disk, and schedules capture windows on the local clock.
package capture

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// ErrResource marks a capture process that failed to start or stop cleanly
var ErrResource = errors.New("capture resource error")

// timestampLayout names capture files, e.g. 20240101_060000
const timestampLayout = "20060102_150405"

// Config describes the receiver and the capture schedule
type Config struct {
	// Receiver tuning (rtl_fm)
	Frequency  int     // Hz
	SampleRate int     // Hz, also the WAV rate written by sox
	Gain       float64 // dB
	PPM        int     // tuner frequency correction

	// Output
	LibraryDir string
	Suffix     string // capture stem suffix, matched by the filter's naming

	// Process control
	GracePeriod time.Duration // SIGTERM to SIGKILL escalation delay
	Command     string        // shell pipeline override; {output} is replaced by the capture path

	// Schedule
	Interval time.Duration // boundary spacing, whole hours dividing a day
	Window   time.Duration // length of each scheduled capture
}

// DefaultConfig returns the reference 2m station: 145.575 MHz narrow FM into
// 12.5 kHz 16-bit mono WAV, six-hourly windows.
func DefaultConfig() Config {
	return Config{
		Frequency:  145575000,
		SampleRate: 12500,
		Gain:       35,
		PPM:        1,

		LibraryDir: "library",
		Suffix:     "_sound",

		GracePeriod: 5 * time.Second,

		Interval: 6 * time.Hour,
		// 42s short of the interval leaves time to release the dongle
		Window: 21558 * time.Second,
	}
}

// Validate rejects unusable capture settings
func (c Config) Validate() error {
	switch {
	case c.Frequency <= 0:
		return fmt.Errorf("capture frequency must be positive, got %d", c.Frequency)
	case c.SampleRate <= 0:
		return fmt.Errorf("capture sample rate must be positive, got %d", c.SampleRate)
	case c.LibraryDir == "":
		return errors.New("capture library directory must be set")
	case c.GracePeriod <= 0:
		return fmt.Errorf("grace period must be positive, got %s", c.GracePeriod)
	case c.Interval < time.Hour || c.Interval%time.Hour != 0 || (24*time.Hour)%c.Interval != 0:
		return fmt.Errorf("interval must be a whole number of hours dividing 24h, got %s", c.Interval)
	case c.Window <= 0 || c.Window > c.Interval:
		return fmt.Errorf("window must be positive and no longer than the interval, got %s", c.Window)
	}
	return nil
}

// CapturePath returns <dir>/<YYYYMMDD_HHMMSS><suffix>.wav for t
func CapturePath(dir string, t time.Time, suffix string) string {
	return filepath.Join(dir, t.Format(timestampLayout)+suffix+".wav")
}
