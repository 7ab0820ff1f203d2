package capture

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler records capture windows aligned to local clock boundaries:
// the first window runs from now until the next boundary, then one window
// of Window length starts at every boundary after that.
//
// Completed captures are handed off on a channel so filtering can run while
// the next window records.
type Scheduler struct {
	Recorder Capturer
	Interval time.Duration
	Window   time.Duration
	Location *time.Location
	Log      zerolog.Logger

	// Now and After default to the wall clock
	Now   func() time.Time
	After func(d time.Duration) <-chan time.Time
}

// NewScheduler creates a scheduler for cfg in the station's location
func NewScheduler(cfg Config, rec Capturer, loc *time.Location, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Recorder: rec,
		Interval: cfg.Interval,
		Window:   cfg.Window,
		Location: loc,
		Log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// NextBoundary returns the first instant strictly after t at which the local
// time in loc is on the hour and the hour is a multiple of interval.
// interval must be a whole number of hours that divides a day.
func NextBoundary(t time.Time, interval time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	hours := int(interval / time.Hour)
	if hours < 1 {
		hours = 1
	}

	local := t.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
	for !next.After(t) || next.Hour()%hours != 0 {
		next = next.Add(time.Hour)
	}
	return next
}

// Run records windows until ctx is cancelled, sending each finished capture
// to completed. Run closes completed when it returns, and returns ctx.Err().
// Failed windows are logged and the schedule carries on.
//
// A window cut short by cancellation is still sent, so the caller must keep
// receiving from completed until it is closed.
func (s *Scheduler) Run(ctx context.Context, completed chan<- string) error {
	defer close(completed)

	now := s.now()
	next := NextBoundary(now, s.Interval, s.Location)
	s.Log.Info().
		Time("until", next).
		Dur("duration", next.Sub(now)).
		Msg("recording until next interval")

	if !s.capture(ctx, next.Sub(now), completed) {
		return ctx.Err()
	}

	for {
		// Boundaries missed while a window overran are skipped
		now = s.now()
		for next.Before(now) {
			next = next.Add(s.Interval)
		}
		s.Log.Info().Time("at", next).Msg("next capture scheduled")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(next.Sub(now)):
		}

		if !s.capture(ctx, s.Window, completed) {
			return ctx.Err()
		}
		next = next.Add(s.Interval)
	}
}

// capture records one window and hands off whatever was recorded, partial
// or not. It reports false once ctx is cancelled.
func (s *Scheduler) capture(ctx context.Context, duration time.Duration, completed chan<- string) bool {
	path, err := s.Recorder.Record(ctx, duration)
	if err != nil {
		s.Log.Error().Err(err).Str("path", path).Msg("capture window failed")
	}

	if path != "" {
		completed <- path
	}
	return ctx.Err() == nil
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) after(d time.Duration) <-chan time.Time {
	if s.After != nil {
		return s.After(d)
	}
	return time.After(d)
}
