// Package scheduler fires the daily provisioning cycle at local midnight.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRunning is returned when a second Run is started on the same Scheduler.
var ErrRunning = errors.New("scheduler already running")

// DefaultPollInterval caps each timer wait. Monotonic timers stop while the
// machine sleeps, so the wall clock is re-read at least this often.
const DefaultPollInterval = time.Minute

// UntilNextMidnight returns the duration from now to the next local midnight.
func UntilNextMidnight(now time.Time) time.Duration {
	now = now.In(time.Local)
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.Local)
	return next.Sub(now)
}

// CatchUp reports whether a cycle was missed: the last provisioning day is
// before today or unknown.
func CatchUp(lastCycleDate, now time.Time) bool {
	if lastCycleDate.IsZero() {
		return true
	}
	last := lastCycleDate.In(time.Local)
	now = now.In(time.Local)
	ly, lm, ld := last.Date()
	ny, nm, nd := now.Date()
	return time.Date(ly, lm, ld, 0, 0, 0, 0, time.Local).Before(time.Date(ny, nm, nd, 0, 0, 0, 0, time.Local))
}

// Scheduler owns the single daily timer of the process.
type Scheduler struct {
	logger *slog.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
	poll   time.Duration

	mu      sync.Mutex
	running bool
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock overrides the time source and timer.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
		s.after = after
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

// New returns a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: slog.Default(),
		now:    time.Now,
		after:  time.After,
		poll:   DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run calls fire once each time the local date rolls over, until ctx is done.
// A rollover missed while the machine slept fires on the first wake-up after
// it. Only one Run may be active per Scheduler; later calls return ErrRunning.
func (s *Scheduler) Run(ctx context.Context, fire func(context.Context)) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	last := s.now()
	s.logger.Debug("next daily cycle scheduled", "in", UntilNextMidnight(last).Round(time.Second))
	for {
		wait := min(UntilNextMidnight(s.now()), s.poll)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(wait):
		}
		now := s.now()
		if !CatchUp(last, now) {
			continue
		}
		last = now
		fire(ctx)
		s.logger.Debug("next daily cycle scheduled", "in", UntilNextMidnight(now).Round(time.Second))
	}
}
