// Package daemon wires provisioning, enforcement and submission monitoring
// into one long-running process.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/verte-zerg/leetgulag/internal/bridge"
	"github.com/verte-zerg/leetgulag/internal/enforce"
	"github.com/verte-zerg/leetgulag/internal/escape"
	"github.com/verte-zerg/leetgulag/internal/metrics"
	"github.com/verte-zerg/leetgulag/internal/model"
	"github.com/verte-zerg/leetgulag/internal/monitor"
	"github.com/verte-zerg/leetgulag/internal/scheduler"
	"github.com/verte-zerg/leetgulag/internal/store"
	"github.com/verte-zerg/leetgulag/internal/streak"
)

// Provisioner selects the next problem.
type Provisioner interface {
	Provision(ctx context.Context, settings model.Settings) (model.Problem, error)
}

// Options configure a Daemon.
type Options struct {
	Settings           model.Settings
	EscalatedMaxCycles int
	Logger             *slog.Logger
	Registry           *prometheus.Registry
	Now                func() time.Time
}

// Daemon owns every runtime component.
type Daemon struct {
	store       *store.Store
	provisioner Provisioner
	settings    model.Settings
	logger      *slog.Logger
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	now         func() time.Time

	table     *enforce.Table
	enforcer  *enforce.Enforcer
	escape    *escape.Tracker
	streaks   *streak.Tracker
	monitor   *monitor.Monitor
	hub       *bridge.Hub
	scheduler *scheduler.Scheduler

	cycleMu sync.Mutex
}

// New assembles a Daemon.
func New(st *store.Store, provisioner Provisioner, judge monitor.Judge, opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	d := &Daemon{
		store:       st,
		provisioner: provisioner,
		settings:    opts.Settings,
		logger:      logger,
		registry:    reg,
		metrics:     metrics.New(reg),
		now:         now,
		escape:      escape.NewTracker(),
		hub:         bridge.NewHub(logger.With("component", "bridge")),
		scheduler:   scheduler.New(scheduler.WithLogger(logger.With("component", "scheduler"))),
	}
	d.table = enforce.NewTable(d.hub)
	d.enforcer = enforce.New(d.table, logger.With("component", "enforce"))
	d.streaks = streak.New(st, streak.WithClock(now))
	d.monitor = monitor.New(monitor.Deps{
		Store:         st,
		Judge:         judge,
		Tabs:          d.hub,
		Enforcer:      d.enforcer,
		Streaks:       d.streaks,
		Notifier:      d.hub,
		Cycler:        d,
		Escape:        d.escape,
		Subscriptions: d.hub,
	},
		monitor.WithLogger(logger.With("component", "monitor")),
		monitor.WithMetrics(d.metrics),
		monitor.WithClock(now),
		monitor.WithEscalatedMaxCycles(opts.EscalatedMaxCycles),
	)
	return d
}

// Monitor exposes the submission monitor.
func (d *Daemon) Monitor() *monitor.Monitor {
	return d.monitor
}

// Hub exposes the browser hub.
func (d *Daemon) Hub() *bridge.Hub {
	return d.hub
}

// Handler returns the HTTP API.
func (d *Daemon) Handler() http.Handler {
	return bridge.NewRouter(d.hub, d, d.registry, d.logger.With("component", "http"))
}

// Install prepares state at startup. A missed day provisions a new problem;
// otherwise the stored unsolved problem is enforced again.
func (d *Daemon) Install(ctx context.Context) error {
	mode, err := d.store.Mode(ctx)
	if err != nil {
		return fmt.Errorf("failed to read mode: %w", err)
	}
	d.escape.SetEnabled(mode == model.ModeEscalated)

	problem, err := d.store.Problem(ctx)
	if err != nil {
		return fmt.Errorf("failed to read problem: %w", err)
	}
	cycleDate, err := d.store.CycleDate(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cycle date: %w", err)
	}
	if !problem.Valid() || scheduler.CatchUp(cycleDate, d.now()) {
		if err := d.Cycle(ctx); err != nil {
			d.logger.Error("startup provisioning failed", "error", err)
		}
	} else if err := d.reenforce(ctx, problem); err != nil {
		d.logger.Error("failed to restore redirect", "error", err)
	}

	d.resetStale(ctx)
	if err := d.monitor.Restore(ctx); err != nil {
		d.logger.Warn("failed to restore pending submission", "error", err)
	}
	return nil
}

func (d *Daemon) reenforce(ctx context.Context, problem model.Problem) error {
	solved, err := d.store.ProblemSolved(ctx)
	if err != nil {
		return fmt.Errorf("failed to read solved flag: %w", err)
	}
	if solved {
		return nil
	}
	return d.enforcer.Enforce(ctx, problem.URL)
}

// Cycle provisions a new problem, persists it with a fresh cycle id and
// enforces it. On failure the previous problem and rule stay in place.
func (d *Daemon) Cycle(ctx context.Context) error {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	problem, err := d.provisioner.Provision(ctx, d.settings)
	if err != nil {
		d.metrics.Provision(metrics.ResultError)
		d.logger.Error("failed to provision problem", "error", err)
		return fmt.Errorf("failed to provision problem: %w", err)
	}
	if !problem.Valid() {
		d.metrics.Provision(metrics.ResultSkipped)
		d.logger.Warn("provisioning returned no problem")
		return nil
	}
	cycleID := uuid.NewString()
	if err := d.store.UpdateProblem(ctx, problem, false, cycleID, d.now()); err != nil {
		d.metrics.Provision(metrics.ResultError)
		return fmt.Errorf("failed to persist problem: %w", err)
	}
	if err := d.enforcer.Enforce(ctx, problem.URL); err != nil {
		d.metrics.Provision(metrics.ResultError)
		return fmt.Errorf("failed to enforce problem: %w", err)
	}
	d.metrics.Provision(metrics.ResultOK)
	d.logger.Info("new problem assigned", "problem", problem.Name, "url", problem.URL, "cycle", cycleID)
	return nil
}

// OnTimer runs the daily cycle.
func (d *Daemon) OnTimer(ctx context.Context) {
	if err := d.Cycle(ctx); err != nil {
		d.logger.Error("daily cycle failed", "error", err)
	}
	d.resetStale(ctx)
}

func (d *Daemon) resetStale(ctx context.Context) {
	for _, mode := range []model.Mode{model.ModeNormal, model.ModeEscalated} {
		reset, err := d.streaks.ResetIfStale(ctx, mode)
		if err != nil {
			d.logger.Warn("failed to check streak", "mode", mode, "error", err)
			continue
		}
		if reset {
			d.logger.Info("streak reset", "mode", mode)
		}
	}
}

// Status returns the current assignment.
func (d *Daemon) Status(ctx context.Context) (model.ProblemStatus, error) {
	problem, err := d.store.Problem(ctx)
	if err != nil {
		return model.ProblemStatus{}, fmt.Errorf("failed to read problem: %w", err)
	}
	solved, err := d.store.ProblemSolved(ctx)
	if err != nil {
		return model.ProblemStatus{}, fmt.Errorf("failed to read solved flag: %w", err)
	}
	return model.ProblemStatus{ProblemSolved: solved, Problem: problem}, nil
}

// HandleMessage dispatches a message from the browser or the CLI.
func (d *Daemon) HandleMessage(ctx context.Context, msg model.Message) (any, error) {
	switch msg.Action {
	case model.ActionFetchingProblem:
		d.logger.Info("fetching problem started")
	case model.ActionProblemFetched:
		d.logger.Info("fetching problem completed")
	case model.ActionGetProblemStatus:
		return d.Status(ctx)
	case model.ActionUserClickedSubmit:
		if err := d.monitor.Arm(ctx); err != nil {
			return nil, err
		}
		d.logger.Info("submission armed")
	case model.ActionProvision:
		if err := d.retryProvision(ctx); err != nil {
			return nil, err
		}
		return d.Status(ctx)
	default:
		d.logger.Warn("unknown message action", "action", msg.Action)
	}
	return nil, nil
}

// retryProvision re-runs the cycle only when the last attempt could not reach
// the catalog or no problem is assigned. A working assignment is never rerolled.
func (d *Daemon) retryProvision(ctx context.Context) error {
	permitted, err := d.store.Permissions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read permissions: %w", err)
	}
	problem, err := d.store.Problem(ctx)
	if err != nil {
		return fmt.Errorf("failed to read problem: %w", err)
	}
	if permitted && problem.Valid() {
		d.logger.Info("provision request ignored, problem already assigned", "problem", problem.URL)
		return nil
	}
	return d.Cycle(ctx)
}

// HandleNavigation records the attempt and returns the redirect target, if any.
func (d *Daemon) HandleNavigation(_ context.Context, ev model.NavigationEvent) (string, bool) {
	if d.escape.Observe(ev) {
		d.logger.Debug("navigation attempt recorded", "url", ev.URL)
	}
	target, ok := d.table.Redirect(ev.URL, ev.ResourceType)
	if ok {
		d.metrics.Redirect()
	}
	return target, ok
}

// HandleCompletion forwards a completed request to the monitor.
func (d *Daemon) HandleCompletion(ctx context.Context, ev model.CompletionEvent) (monitor.State, error) {
	return d.monitor.HandleCompletion(ctx, ev)
}

// SetMode persists mode and attaches the escape tracker in escalated mode.
func (d *Daemon) SetMode(ctx context.Context, mode model.Mode) error {
	if err := d.store.SetMode(ctx, mode); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	d.escape.SetEnabled(mode == model.ModeEscalated)
	d.logger.Info("mode changed", "mode", mode)
	return nil
}

// Rules returns the active redirect rule, if any.
func (d *Daemon) Rules() []enforce.Rule {
	if r, ok := d.enforcer.Active(); ok {
		return []enforce.Rule{r}
	}
	return nil
}
