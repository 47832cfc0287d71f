package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/leetgulag/internal/metrics"
	"github.com/verte-zerg/leetgulag/internal/model"
)

const (
	problemURL = model.ProblemPathBase + "two-sum/"
	checkURL   = "https://leetcode.com/submissions/detail/123/check/"
)

type fakeStore struct {
	problem   model.Problem
	solved    bool
	cycleID   string
	mode      model.Mode
	pending   time.Time
	escalated int
	solvedErr error
}

func (s *fakeStore) Problem(context.Context) (model.Problem, error) { return s.problem, nil }
func (s *fakeStore) ProblemSolved(context.Context) (bool, error)    { return s.solved, s.solvedErr }
func (s *fakeStore) CycleID(context.Context) (string, error)        { return s.cycleID, nil }
func (s *fakeStore) Mode(context.Context) (model.Mode, error)       { return s.mode, nil }

func (s *fakeStore) MarkSolved(_ context.Context, cycleID string) (bool, error) {
	if s.solved || cycleID != s.cycleID {
		return false, nil
	}
	s.solved = true
	return true, nil
}

func (s *fakeStore) SetPendingSubmission(_ context.Context, at time.Time) error {
	s.pending = at
	return nil
}

func (s *fakeStore) PendingSubmission(context.Context) (time.Time, bool, error) {
	return s.pending, !s.pending.IsZero(), nil
}

func (s *fakeStore) ClearPendingSubmission(context.Context) error {
	s.pending = time.Time{}
	return nil
}

func (s *fakeStore) IncrementEscalatedCycles(context.Context, time.Time) (int, error) {
	s.escalated++
	return s.escalated, nil
}

type fakeJudge struct {
	verdicts []model.Verdict
	err      error
	calls    int
}

func (j *fakeJudge) Check(context.Context, string) (model.Verdict, error) {
	j.calls++
	if j.err != nil {
		return model.Verdict{}, j.err
	}
	v := j.verdicts[0]
	if len(j.verdicts) > 1 {
		j.verdicts = j.verdicts[1:]
	}
	return v, nil
}

type fakeTabs struct {
	active    string
	navigated []string
}

func (t *fakeTabs) ActiveURL(context.Context) (string, error) { return t.active, nil }

func (t *fakeTabs) Navigate(_ context.Context, url string) error {
	t.navigated = append(t.navigated, url)
	return nil
}

type fakeEnforcer struct{ released int }

func (e *fakeEnforcer) Release(context.Context) error {
	e.released++
	return nil
}

type fakeStreaks struct {
	completions []model.Completion
	resets      int
}

func (s *fakeStreaks) RecordCompletion(_ context.Context, c model.Completion) (model.StreakState, bool, error) {
	s.completions = append(s.completions, c)
	return model.StreakState{Current: len(s.completions), Best: len(s.completions)}, true, nil
}

func (s *fakeStreaks) ResetEscalated(context.Context) error {
	s.resets++
	return nil
}

type fakeNotifier struct{ sent []model.Message }

func (n *fakeNotifier) Send(_ context.Context, msg model.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

type fakeCycler struct{ cycles int }

func (c *fakeCycler) Cycle(context.Context) error {
	c.cycles++
	return nil
}

type fakeEscape struct{ last string }

func (e *fakeEscape) LastAttempted() string { return e.last }
func (e *fakeEscape) Clear()                { e.last = "" }

type fakeSubs struct{ watching map[string]bool }

func (s *fakeSubs) Watch(p string)   { s.watching[p] = true }
func (s *fakeSubs) Unwatch(p string) { delete(s.watching, p) }

type harness struct {
	store    *fakeStore
	judge    *fakeJudge
	tabs     *fakeTabs
	enforcer *fakeEnforcer
	streaks  *fakeStreaks
	notifier *fakeNotifier
	cycler   *fakeCycler
	escape   *fakeEscape
	subs     *fakeSubs
	metrics  *metrics.Metrics
	monitor  *Monitor
}

func newHarness(t *testing.T, mode model.Mode, escapeURL string, verdicts ...model.Verdict) *harness {
	t.Helper()
	h := &harness{
		store: &fakeStore{
			problem: model.Problem{URL: problemURL, Name: "Two Sum"},
			cycleID: "cycle-1",
			mode:    mode,
		},
		judge:    &fakeJudge{verdicts: verdicts},
		tabs:     &fakeTabs{active: problemURL},
		enforcer: &fakeEnforcer{},
		streaks:  &fakeStreaks{},
		notifier: &fakeNotifier{},
		cycler:   &fakeCycler{},
		escape:   &fakeEscape{last: escapeURL},
		subs:     &fakeSubs{watching: map[string]bool{}},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	clock := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	h.monitor = New(Deps{
		Store:         h.store,
		Judge:         h.judge,
		Tabs:          h.tabs,
		Enforcer:      h.enforcer,
		Streaks:       h.streaks,
		Notifier:      h.notifier,
		Cycler:        h.cycler,
		Escape:        h.escape,
		Subscriptions: h.subs,
	}, WithMetrics(h.metrics), WithClock(func() time.Time { return clock }))
	return h
}

func (h *harness) watching() bool {
	return h.subs.watching["*://leetcode.com/submissions/detail/*/check/"]
}

func accepted(lang string) model.Verdict {
	return model.Verdict{State: model.VerdictSuccess, StatusMsg: model.StatusAccepted, Lang: lang}
}

func completed() model.CompletionEvent {
	return model.CompletionEvent{URL: checkURL}
}

func TestNormalSuccess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "", accepted("python3"))

	require.NoError(t, h.monitor.Arm(ctx))
	assert.Equal(t, Armed, h.monitor.State())
	assert.True(t, h.watching())
	assert.False(t, h.store.pending.IsZero())

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Success, state)
	assert.Equal(t, Idle, h.monitor.State())

	assert.True(t, h.store.solved)
	assert.Equal(t, 1, h.enforcer.released)
	require.Len(t, h.streaks.completions, 1)
	assert.Equal(t, "cycle-1", h.streaks.completions[0].CycleID)
	assert.Equal(t, problemURL, h.streaks.completions[0].ProblemURL)
	assert.Equal(t, []model.Message{{Action: model.ActionUserSolved, Language: "python3"}}, h.notifier.sent)
	assert.False(t, h.watching())
	assert.True(t, h.store.pending.IsZero())
	assert.Zero(t, h.cycler.cycles)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Transitions.WithLabelValues("success")))
}

func TestEventsIgnoredWhenNotArmed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "", accepted("go"))

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Idle, state)
	assert.Zero(t, h.judge.calls)
	assert.False(t, h.store.solved)
}

func TestNonCheckURLIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "", accepted("go"))
	require.NoError(t, h.monitor.Arm(ctx))

	state, err := h.monitor.HandleCompletion(ctx, model.CompletionEvent{URL: "https://leetcode.com/graphql"})
	require.NoError(t, err)
	assert.Equal(t, Armed, state)
	assert.Zero(t, h.judge.calls)
}

func TestAlreadySolvedReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "", accepted("go"))
	require.NoError(t, h.monitor.Arm(ctx))
	h.store.solved = true

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Idle, state)
	assert.Zero(t, h.judge.calls)
	assert.Zero(t, h.enforcer.released)
	assert.Empty(t, h.streaks.completions)
	assert.False(t, h.watching())
}

func TestUnrelatedTabKeepsArmed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "", accepted("go"))
	h.tabs.active = model.ProblemPathBase + "add-two-numbers/"
	require.NoError(t, h.monitor.Arm(ctx))

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Armed, state)
	assert.True(t, h.watching())
	assert.Zero(t, h.judge.calls)
}

func TestDescriptionTabAccepted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "", accepted("go"))
	require.NoError(t, h.monitor.Arm(ctx))

	ev := completed()
	ev.TabURL = problemURL + "description/"
	state, err := h.monitor.HandleCompletion(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, Success, state)
}

func TestStillRunningRearms(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "",
		model.Verdict{State: model.VerdictPending},
		model.Verdict{State: model.VerdictStarted},
		accepted("cpp"))
	require.NoError(t, h.monitor.Arm(ctx))

	for i := 0; i < 2; i++ {
		state, err := h.monitor.HandleCompletion(ctx, completed())
		require.NoError(t, err)
		assert.Equal(t, StillRunning, state)
		assert.Equal(t, Armed, h.monitor.State())
		assert.True(t, h.watching())
		assert.False(t, h.store.pending.IsZero())
	}

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Success, state)
	assert.Equal(t, 3, h.judge.calls)
}

func TestNormalFailureIsSilent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "",
		model.Verdict{State: model.VerdictSuccess, StatusMsg: "Wrong Answer"})
	require.NoError(t, h.monitor.Arm(ctx))

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Failure, state)
	assert.Equal(t, Idle, h.monitor.State())
	assert.Empty(t, h.notifier.sent)
	assert.Zero(t, h.streaks.resets)
	assert.Zero(t, h.enforcer.released)
	assert.False(t, h.store.solved)
}

func TestEscalatedFailureResetsStreak(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeEscalated, "",
		model.Verdict{State: model.VerdictSuccess, StatusMsg: "Time Limit Exceeded"})
	require.NoError(t, h.monitor.Arm(ctx))

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Failure, state)
	assert.Equal(t, 1, h.streaks.resets)
	assert.Equal(t, []model.Message{{Action: model.ActionUserFailed}}, h.notifier.sent)
	assert.Zero(t, h.enforcer.released)
	assert.False(t, h.store.solved)
	assert.Zero(t, h.cycler.cycles)
}

func TestPartialAcceptedIgnored(t *testing.T) {
	ctx := context.Background()
	partial := accepted("go")
	partial.CodeAnswer = json.RawMessage(`["[0,1]"]`)
	h := newHarness(t, model.ModeNormal, "", partial)
	require.NoError(t, h.monitor.Arm(ctx))

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Idle, state)
	assert.False(t, h.store.solved)
	assert.Empty(t, h.notifier.sent)
	assert.Empty(t, h.streaks.completions)
}

func TestEscalatedSuccessReplaysAndCycles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeEscalated, "https://news.ycombinator.com/", accepted("go"))
	require.NoError(t, h.monitor.Arm(ctx))

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Success, state)
	assert.Equal(t, []string{"https://news.ycombinator.com/"}, h.tabs.navigated)
	assert.Empty(t, h.escape.last)
	assert.Equal(t, 1, h.cycler.cycles)
	assert.Empty(t, h.notifier.sent)
	require.Len(t, h.streaks.completions, 1)
	assert.Equal(t, model.ModeEscalated, h.streaks.completions[0].Mode)
}

func TestEscalatedCycleLimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeEscalated, "", accepted("go"))
	h.monitor.maxCycles = 1

	for i := 0; i < 2; i++ {
		h.store.solved = false
		h.store.cycleID = "cycle-" + string(rune('a'+i))
		require.NoError(t, h.monitor.Arm(ctx))
		state, err := h.monitor.HandleCompletion(ctx, completed())
		require.NoError(t, err)
		assert.Equal(t, Success, state)
	}
	assert.Equal(t, 1, h.cycler.cycles)
	assert.Empty(t, h.tabs.navigated)
}

func TestJudgeErrorEndsIdle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "")
	h.judge.err = errors.New("boom")
	require.NoError(t, h.monitor.Arm(ctx))

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Idle, state)
	assert.False(t, h.watching())
	assert.True(t, h.store.pending.IsZero())
	assert.False(t, h.store.solved)
}

func TestStoreErrorEndsIdle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "", accepted("go"))
	require.NoError(t, h.monitor.Arm(ctx))
	h.store.solvedErr = errors.New("disk")

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Idle, state)
	assert.Zero(t, h.judge.calls)
}

func TestLostSolveRaceEndsIdle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "", accepted("go"))
	require.NoError(t, h.monitor.Arm(ctx))
	h.store.cycleID = "cycle-1"

	// A new cycle replaced the problem between the guard and the mark.
	store := &racingStore{fakeStore: h.store}
	h.monitor.deps.Store = store

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Idle, state)
	assert.Zero(t, h.enforcer.released)
	assert.Empty(t, h.streaks.completions)
	assert.Empty(t, h.notifier.sent)
}

type racingStore struct{ *fakeStore }

func (s *racingStore) MarkSolved(context.Context, string) (bool, error) { return false, nil }

func TestVerdictFromEvent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "")
	require.NoError(t, h.monitor.Arm(ctx))

	v := accepted("rust")
	ev := completed()
	ev.Verdict = &v
	state, err := h.monitor.HandleCompletion(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, Success, state)
	assert.Zero(t, h.judge.calls)
	assert.Equal(t, "rust", h.notifier.sent[0].Language)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "", accepted("go"))

	require.NoError(t, h.monitor.Restore(ctx))
	assert.Equal(t, Idle, h.monitor.State())

	at := time.Date(2024, 3, 10, 11, 0, 0, 0, time.Local)
	h.store.pending = at
	require.NoError(t, h.monitor.Restore(ctx))
	assert.Equal(t, Armed, h.monitor.State())
	assert.True(t, h.watching())

	state, err := h.monitor.HandleCompletion(ctx, completed())
	require.NoError(t, err)
	assert.Equal(t, Success, state)
}

func TestRestoreClearsMarkerWhenSolved(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.ModeNormal, "")
	h.store.pending = time.Now()
	h.store.solved = true

	require.NoError(t, h.monitor.Restore(ctx))
	assert.Equal(t, Idle, h.monitor.State())
	assert.True(t, h.store.pending.IsZero())
	assert.False(t, h.watching())
}

func TestOnProblemPage(t *testing.T) {
	tests := []struct {
		tab  string
		want bool
	}{
		{problemURL, true},
		{problemURL + "description/", true},
		{problemURL + "solutions/", false},
		{"https://leetcode.com/problems/", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OnProblemPage(tt.tab, problemURL), tt.tab)
	}
	assert.False(t, OnProblemPage("", ""))
}
