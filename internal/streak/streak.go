// Package streak tracks consecutive completion days per mode.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/leetgulag/internal/model"
)

// Store persists streak state.
type Store interface {
	Streak(ctx context.Context, mode model.Mode) (model.StreakState, error)
	UpdateStreak(ctx context.Context, completion model.Completion) (model.StreakState, error)
	ResetStreak(ctx context.Context, mode model.Mode) error
}

// Tracker applies streak rules on top of a Store.
type Tracker struct {
	store Store
	now   func() time.Time
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New returns a Tracker backed by store.
func New(store Store, opts ...Option) *Tracker {
	t := &Tracker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordCompletion increments the streak for the completion's mode.
// A second completion on the same local day leaves the streak unchanged
// and reports false.
func (t *Tracker) RecordCompletion(ctx context.Context, completion model.Completion) (model.StreakState, bool, error) {
	if completion.Mode == "" {
		completion.Mode = model.ModeNormal
	}
	now := t.now()
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = now
	}
	st, err := t.store.Streak(ctx, completion.Mode)
	if err != nil {
		return model.StreakState{}, false, fmt.Errorf("failed to read streak: %w", err)
	}
	if !st.LastCompletion.IsZero() && st.Current > 0 && sameDay(st.LastCompletion, completion.CompletedAt) {
		return st, false, nil
	}
	st, err = t.store.UpdateStreak(ctx, completion)
	if err != nil {
		return model.StreakState{}, false, fmt.Errorf("failed to update streak: %w", err)
	}
	return st, true, nil
}

// ResetIfStale zeroes the current streak for mode when the last completion
// falls before yesterday's local date. Best is preserved.
func (t *Tracker) ResetIfStale(ctx context.Context, mode model.Mode) (bool, error) {
	st, err := t.store.Streak(ctx, mode)
	if err != nil {
		return false, fmt.Errorf("failed to read streak: %w", err)
	}
	if st.Current == 0 {
		return false, nil
	}
	yesterday := Day(t.now()).AddDate(0, 0, -1)
	if !st.LastCompletion.IsZero() && !Day(st.LastCompletion).Before(yesterday) {
		return false, nil
	}
	if err := t.store.ResetStreak(ctx, mode); err != nil {
		return false, fmt.Errorf("failed to reset streak: %w", err)
	}
	return true, nil
}

// ResetEscalated zeroes the escalated streak after a failed submission.
func (t *Tracker) ResetEscalated(ctx context.Context) error {
	if err := t.store.ResetStreak(ctx, model.ModeEscalated); err != nil {
		return fmt.Errorf("failed to reset escalated streak: %w", err)
	}
	return nil
}

// Day truncates ts to midnight of its local calendar date.
func Day(ts time.Time) time.Time {
	ts = ts.In(time.Local)
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.Local)
}

func sameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
