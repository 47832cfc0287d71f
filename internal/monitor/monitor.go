// Package monitor verifies submissions and reacts to their verdicts.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/leetgulag/internal/judge"
	"github.com/verte-zerg/leetgulag/internal/metrics"
	"github.com/verte-zerg/leetgulag/internal/model"
)

// State is the submission monitor state.
type State int

const (
	Idle State = iota
	Armed
	Polling
	StillRunning
	Success
	Failure
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Polling:
		return "polling"
	case StillRunning:
		return "still_running"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store is the persisted state the monitor reads and writes.
type Store interface {
	Problem(ctx context.Context) (model.Problem, error)
	ProblemSolved(ctx context.Context) (bool, error)
	CycleID(ctx context.Context) (string, error)
	MarkSolved(ctx context.Context, cycleID string) (bool, error)
	Mode(ctx context.Context) (model.Mode, error)
	SetPendingSubmission(ctx context.Context, at time.Time) error
	PendingSubmission(ctx context.Context) (time.Time, bool, error)
	ClearPendingSubmission(ctx context.Context) error
	IncrementEscalatedCycles(ctx context.Context, day time.Time) (int, error)
}

// Judge fetches a submission verdict.
type Judge interface {
	Check(ctx context.Context, checkURL string) (model.Verdict, error)
}

// Tabs controls the user's browser.
type Tabs interface {
	ActiveURL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
}

// Enforcer lifts the redirect.
type Enforcer interface {
	Release(ctx context.Context) error
}

// Streaks records outcomes.
type Streaks interface {
	RecordCompletion(ctx context.Context, completion model.Completion) (model.StreakState, bool, error)
	ResetEscalated(ctx context.Context) error
}

// Notifier delivers messages to the UI.
type Notifier interface {
	Send(ctx context.Context, msg model.Message) error
}

// Cycler provisions and enforces a new problem.
type Cycler interface {
	Cycle(ctx context.Context) error
}

// Escape exposes the last blocked navigation.
type Escape interface {
	LastAttempted() string
	Clear()
}

// Subscriptions registers interest in completion events matching a pattern.
type Subscriptions interface {
	Watch(pattern string)
	Unwatch(pattern string)
}

// Deps are the monitor collaborators.
type Deps struct {
	Store         Store
	Judge         Judge
	Tabs          Tabs
	Enforcer      Enforcer
	Streaks       Streaks
	Notifier      Notifier
	Cycler        Cycler
	Escape        Escape
	Subscriptions Subscriptions
}

// Monitor is the submission state machine. Handlers are serialised.
type Monitor struct {
	deps      Deps
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	maxCycles int

	mu       sync.Mutex
	state    State
	armedAt  time.Time
	watching bool
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithMetrics sets the transition counters.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithEscalatedMaxCycles bounds escalated re-provisioning per day. Zero is unbounded.
func WithEscalatedMaxCycles(n int) Option {
	return func(m *Monitor) { m.maxCycles = n }
}

// New returns an idle Monitor.
func New(deps Deps, opts ...Option) *Monitor {
	m := &Monitor{
		deps:   deps,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Arm records a submit intent and starts watching for verdicts.
func (m *Monitor) Arm(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now()
	if err := m.deps.Store.SetPendingSubmission(ctx, at); err != nil {
		return fmt.Errorf("failed to persist pending submission: %w", err)
	}
	m.armedAt = at
	m.watch()
	m.transition(Armed)
	return nil
}

// Restore re-arms after a restart when a submission was pending and the
// problem is still unsolved.
func (m *Monitor) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok, err := m.deps.Store.PendingSubmission(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending submission: %w", err)
	}
	if !ok {
		return nil
	}
	solved, err := m.deps.Store.ProblemSolved(ctx)
	if err != nil {
		return fmt.Errorf("failed to read solved flag: %w", err)
	}
	if solved {
		return m.deps.Store.ClearPendingSubmission(ctx)
	}
	m.armedAt = at
	m.watch()
	m.transition(Armed)
	m.logger.Info("restored pending submission", "armed_at", at)
	return nil
}

// HandleCompletion processes a completed request observed by the browser and
// returns the state it ended in.
func (m *Monitor) HandleCompletion(ctx context.Context, ev model.CompletionEvent) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Armed || !judge.IsCheckURL(ev.URL) {
		return m.state, nil
	}

	solved, err := m.deps.Store.ProblemSolved(ctx)
	if err != nil {
		return m.abort(ctx, "read solved flag", err), nil
	}
	if solved {
		m.logger.Debug("ignoring verdict for solved problem", "url", ev.URL)
		return m.idle(ctx), nil
	}

	problem, err := m.deps.Store.Problem(ctx)
	if err != nil {
		return m.abort(ctx, "read problem", err), nil
	}
	tabURL := ev.TabURL
	if tabURL == "" {
		tabURL, err = m.deps.Tabs.ActiveURL(ctx)
		if err != nil {
			return m.abort(ctx, "query active tab", err), nil
		}
	}
	if !OnProblemPage(tabURL, problem.URL) {
		m.logger.Debug("ignoring verdict from unrelated tab", "tab", tabURL)
		return m.state, nil
	}

	m.unwatch()
	m.transition(Polling)

	var verdict model.Verdict
	if ev.Verdict != nil {
		verdict = *ev.Verdict
	} else {
		verdict, err = m.deps.Judge.Check(ctx, ev.URL)
		if err != nil {
			return m.abort(ctx, "fetch verdict", err), nil
		}
	}

	switch {
	case verdict.Pending():
		m.transition(StillRunning)
		m.watch()
		m.transition(Armed)
		return StillRunning, nil
	case verdict.StatusMsg != model.StatusAccepted:
		return m.failure(ctx), nil
	case !verdict.Accepted():
		m.logger.Debug("ignoring partial verdict", "state", verdict.State)
		return m.idle(ctx), nil
	default:
		return m.success(ctx, problem, verdict), nil
	}
}

func (m *Monitor) failure(ctx context.Context) State {
	m.transition(Failure)
	m.clearPending(ctx)
	mode, err := m.deps.Store.Mode(ctx)
	if err != nil {
		m.logger.Warn("failed to read mode", "error", err)
	}
	if mode == model.ModeEscalated {
		if err := m.deps.Streaks.ResetEscalated(ctx); err != nil {
			m.logger.Warn("failed to reset escalated streak", "error", err)
		}
		m.send(ctx, model.Message{Action: model.ActionUserFailed})
	}
	m.state = Idle
	return Failure
}

func (m *Monitor) success(ctx context.Context, problem model.Problem, verdict model.Verdict) State {
	cycleID, err := m.deps.Store.CycleID(ctx)
	if err != nil {
		return m.abort(ctx, "read cycle id", err)
	}
	won, err := m.deps.Store.MarkSolved(ctx, cycleID)
	if err != nil {
		return m.abort(ctx, "mark solved", err)
	}
	if !won {
		m.logger.Debug("cycle already solved", "cycle", cycleID)
		return m.idle(ctx)
	}
	m.transition(Success)
	m.clearPending(ctx)
	m.unwatch()
	if err := m.deps.Enforcer.Release(ctx); err != nil {
		m.logger.Error("failed to release redirect", "error", err)
	}

	mode, err := m.deps.Store.Mode(ctx)
	if err != nil {
		m.logger.Warn("failed to read mode", "error", err)
		mode = model.ModeNormal
	}
	now := m.now()
	st, recorded, err := m.deps.Streaks.RecordCompletion(ctx, model.Completion{
		CycleID:     cycleID,
		Mode:        mode,
		ProblemURL:  problem.URL,
		CompletedAt: now,
	})
	switch {
	case err != nil:
		m.logger.Error("failed to record completion", "error", err)
	case recorded:
		m.metrics.Completion(string(mode))
		m.logger.Info("problem solved", "problem", problem.URL, "mode", mode, "streak", st.Current,
			"since_submit", now.Sub(m.armedAt).Round(time.Second))
	}

	if mode == model.ModeEscalated {
		m.escalate(ctx, now)
	} else {
		m.send(ctx, model.Message{Action: model.ActionUserSolved, Language: verdict.Lang})
	}
	m.state = Idle
	return Success
}

func (m *Monitor) escalate(ctx context.Context, now time.Time) {
	if target := m.deps.Escape.LastAttempted(); target != "" {
		if err := m.deps.Tabs.Navigate(ctx, target); err != nil {
			m.logger.Warn("failed to replay blocked navigation", "url", target, "error", err)
		} else {
			m.deps.Escape.Clear()
		}
	}
	count, err := m.deps.Store.IncrementEscalatedCycles(ctx, now)
	if err != nil {
		m.logger.Warn("failed to count escalated cycles", "error", err)
	}
	if m.maxCycles > 0 && count > m.maxCycles {
		m.logger.Info("escalated cycle limit reached", "limit", m.maxCycles)
		return
	}
	if err := m.deps.Cycler.Cycle(ctx); err != nil {
		m.logger.Error("failed to re-provision", "error", err)
	}
}

func (m *Monitor) abort(ctx context.Context, op string, err error) State {
	m.logger.Warn("submission check aborted", "op", op, "error", err)
	return m.idle(ctx)
}

func (m *Monitor) idle(ctx context.Context) State {
	m.unwatch()
	m.clearPending(ctx)
	m.transition(Idle)
	return Idle
}

func (m *Monitor) clearPending(ctx context.Context) {
	if err := m.deps.Store.ClearPendingSubmission(ctx); err != nil {
		m.logger.Warn("failed to clear pending submission", "error", err)
	}
}

func (m *Monitor) send(ctx context.Context, msg model.Message) {
	if m.deps.Notifier == nil {
		return
	}
	if err := m.deps.Notifier.Send(ctx, msg); err != nil {
		m.logger.Warn("failed to notify", "action", msg.Action, "error", err)
	}
}

func (m *Monitor) watch() {
	if m.watching {
		return
	}
	m.watching = true
	m.deps.Subscriptions.Watch(judge.CheckURLPattern)
}

func (m *Monitor) unwatch() {
	if !m.watching {
		return
	}
	m.watching = false
	m.deps.Subscriptions.Unwatch(judge.CheckURLPattern)
}

func (m *Monitor) transition(s State) {
	m.state = s
	m.metrics.Transition(s.String())
}

// OnProblemPage reports whether tabURL shows the problem, either its root
// page or its description page.
func OnProblemPage(tabURL, problemURL string) bool {
	if problemURL == "" {
		return false
	}
	return tabURL == problemURL || tabURL == problemURL+"description/"
}
