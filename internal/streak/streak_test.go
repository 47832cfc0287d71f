package streak

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/leetgulag/internal/model"
	"github.com/verte-zerg/leetgulag/internal/store"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTracker(t *testing.T, start time.Time) (*Tracker, *clock, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "streak.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	c := &clock{now: start}
	return New(st, WithClock(c.Now)), c, st
}

func completion(mode model.Mode) model.Completion {
	return model.Completion{CycleID: "c1", Mode: mode, ProblemURL: model.ProblemPathBase + "two-sum/"}
}

func TestRecordCompletionOncePerDay(t *testing.T) {
	ctx := context.Background()
	tr, c, _ := newTracker(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local))

	st, recorded, err := tr.RecordCompletion(ctx, completion(model.ModeNormal))
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Equal(t, 1, st.Current)
	assert.Equal(t, 1, st.Best)

	c.now = c.now.Add(5 * time.Hour)
	st, recorded, err = tr.RecordCompletion(ctx, completion(model.ModeNormal))
	require.NoError(t, err)
	assert.False(t, recorded)
	assert.Equal(t, 1, st.Current)

	c.now = c.now.AddDate(0, 0, 1)
	st, recorded, err = tr.RecordCompletion(ctx, completion(model.ModeNormal))
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Equal(t, 2, st.Current)
	assert.Equal(t, 2, st.Best)
}

func TestModesAreIndependent(t *testing.T) {
	ctx := context.Background()
	tr, _, st := newTracker(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local))

	_, _, err := tr.RecordCompletion(ctx, completion(model.ModeNormal))
	require.NoError(t, err)
	_, recorded, err := tr.RecordCompletion(ctx, completion(model.ModeEscalated))
	require.NoError(t, err)
	assert.True(t, recorded)

	require.NoError(t, tr.ResetEscalated(ctx))
	esc, err := st.Streak(ctx, model.ModeEscalated)
	require.NoError(t, err)
	assert.Equal(t, 0, esc.Current)
	assert.Equal(t, 1, esc.Best)
	normal, err := st.Streak(ctx, model.ModeNormal)
	require.NoError(t, err)
	assert.Equal(t, 1, normal.Current)
}

func TestResetIfStale(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 10, 22, 0, 0, 0, time.Local)
	tr, c, st := newTracker(t, start)

	_, _, err := tr.RecordCompletion(ctx, completion(model.ModeNormal))
	require.NoError(t, err)

	c.now = start.AddDate(0, 0, 1)
	reset, err := tr.ResetIfStale(ctx, model.ModeNormal)
	require.NoError(t, err)
	assert.False(t, reset, "completion yesterday keeps the streak")

	c.now = start.AddDate(0, 0, 2)
	reset, err = tr.ResetIfStale(ctx, model.ModeNormal)
	require.NoError(t, err)
	assert.True(t, reset)

	state, err := st.Streak(ctx, model.ModeNormal)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Current)
	assert.Equal(t, 1, state.Best)

	reset, err = tr.ResetIfStale(ctx, model.ModeNormal)
	require.NoError(t, err)
	assert.False(t, reset, "an empty streak is never stale")
}

func TestResetIfStaleAcrossMonthBoundary(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 31, 12, 0, 0, 0, time.Local)
	tr, c, _ := newTracker(t, start)

	_, _, err := tr.RecordCompletion(ctx, completion(model.ModeNormal))
	require.NoError(t, err)

	c.now = time.Date(2024, 2, 1, 8, 0, 0, 0, time.Local)
	reset, err := tr.ResetIfStale(ctx, model.ModeNormal)
	require.NoError(t, err)
	assert.False(t, reset)

	c.now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)
	reset, err = tr.ResetIfStale(ctx, model.ModeNormal)
	require.NoError(t, err)
	assert.True(t, reset)
}
