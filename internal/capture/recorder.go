package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Capturer records one capture window and returns the closed file's path
type Capturer interface {
	Record(ctx context.Context, duration time.Duration) (string, error)
}

// Recorder runs the receiver pipeline as a managed process group. Every exit
// path stops the group: SIGTERM first, SIGKILL once the grace period elapses.
type Recorder struct {
	cfg Config
	log zerolog.Logger

	// Now stamps capture file names
	Now func() time.Time

	// ReleaseDevice runs after every stop to free the receiver for the next
	// window. Failures are logged.
	ReleaseDevice func() error
}

// NewRecorder creates a recorder for cfg
func NewRecorder(cfg Config, log zerolog.Logger) *Recorder {
	return &Recorder{
		cfg:           cfg,
		log:           log.With().Str("component", "recorder").Logger(),
		Now:           time.Now,
		ReleaseDevice: releaseRTLFM,
	}
}

// PipelineCommand returns the shell pipeline that captures to outPath
func (r *Recorder) PipelineCommand(outPath string) string {
	if r.cfg.Command != "" {
		return strings.ReplaceAll(r.cfg.Command, "{output}", shellQuote(outPath))
	}
	return fmt.Sprintf(
		"rtl_fm -f %d -s %d -g %g -p %d -M fm | sox -t raw -r %d -e signed -b 16 -c 1 - -t wav -r %d -e signed -b 16 -c 1 %s",
		r.cfg.Frequency, r.cfg.SampleRate, r.cfg.Gain, r.cfg.PPM,
		r.cfg.SampleRate, r.cfg.SampleRate, shellQuote(outPath),
	)
}

// Record captures for duration, or until ctx is cancelled, into a new
// timestamped file in the library directory. A file of the same name is
// replaced. The returned file is closed and will not be written again.
//
// A pipeline that exits before the window ends is reported as ErrResource
// alongside the path of whatever it wrote.
func (r *Recorder) Record(ctx context.Context, duration time.Duration) (string, error) {
	if err := os.MkdirAll(r.cfg.LibraryDir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create library directory %s: %v", ErrResource, r.cfg.LibraryDir, err)
	}

	path := CapturePath(r.cfg.LibraryDir, r.Now(), r.cfg.Suffix)
	if err := os.Remove(path); err == nil {
		r.log.Warn().Str("path", path).Msg("removed existing capture")
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: failed to remove existing capture %s: %v", ErrResource, path, err)
	}

	cmd := exec.Command("/bin/sh", "-c", r.PipelineCommand(path))
	cmd.Dir = filepath.Dir(path)
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: failed to start capture pipeline: %v", ErrResource, err)
	}

	r.log.Info().
		Str("path", path).
		Int("pid", cmd.Process.Pid).
		Dur("duration", duration).
		Msg("capture started")

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	var early error
	timer := time.NewTimer(max(duration, 0))
	defer timer.Stop()

	select {
	case <-timer.C:
		r.stop(cmd, exited)
	case <-ctx.Done():
		r.log.Info().Str("path", path).Msg("capture cancelled")
		r.stop(cmd, exited)
	case err := <-exited:
		early = fmt.Errorf("%w: capture pipeline exited early: %v", ErrResource, err)
		if err == nil {
			early = fmt.Errorf("%w: capture pipeline exited early", ErrResource)
		}
		r.log.Error().Err(err).Str("path", path).Msg("capture pipeline exited early")
	}

	if r.ReleaseDevice != nil {
		if err := r.ReleaseDevice(); err != nil {
			r.log.Debug().Err(err).Msg("device release reported an error")
		}
	}

	r.log.Info().Str("path", path).Msg("capture stopped")
	return path, early
}

// stop terminates the process group gracefully, escalating to a forced kill
// once the grace period passes. Problems are logged, not returned.
func (r *Recorder) stop(cmd *exec.Cmd, exited <-chan error) {
	if err := terminateGroup(cmd); err != nil {
		r.log.Warn().Err(err).Msg("failed to signal capture pipeline")
	}

	grace := time.NewTimer(r.cfg.GracePeriod)
	defer grace.Stop()

	select {
	case <-exited:
		r.log.Debug().Msg("capture pipeline terminated")
		return
	case <-grace.C:
	}

	r.log.Warn().Dur("grace", r.cfg.GracePeriod).Msg("capture pipeline ignored SIGTERM, killing")
	if err := killGroup(cmd); err != nil {
		r.log.Error().Err(err).Msg("failed to kill capture pipeline")
	}
	<-exited
}

// releaseRTLFM kills any rtl_fm left holding the dongle
func releaseRTLFM() error {
	return exec.Command("killall", "rtl_fm").Run()
}

// shellQuote wraps s in single quotes for /bin/sh
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
