// Package metrics exposes Prometheus counters for the daemon.
//
// All methods are safe on a nil *Metrics so components can run uninstrumented.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "leetgulag"

// Provisioning results.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

// Metrics holds the daemon counters.
type Metrics struct {
	// Transitions counts submission monitor transitions.
	// Labels: state (armed, polling, still_running, success, failure, idle)
	Transitions *prometheus.CounterVec

	// Provisions counts provisioning cycles.
	// Labels: result (ok, skipped, error)
	Provisions *prometheus.CounterVec

	// Redirects counts navigations rewritten to the assigned problem.
	Redirects prometheus.Counter

	// Completions counts streak increments.
	// Labels: mode (normal, escalated)
	Completions *prometheus.CounterVec
}

// New registers all counters on reg. A nil reg uses a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "transitions_total",
				Help:      "Submission monitor transitions by target state",
			},
			[]string{"state"},
		),
		Provisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provision",
				Name:      "cycles_total",
				Help:      "Provisioning cycles by result",
			},
			[]string{"result"},
		),
		Redirects: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "enforce",
				Name:      "redirects_total",
				Help:      "Navigations redirected to the assigned problem",
			},
		),
		Completions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "streak",
				Name:      "completions_total",
				Help:      "Recorded completions by mode",
			},
			[]string{"mode"},
		),
	}
}

// Transition records a monitor transition into state.
func (m *Metrics) Transition(state string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(state).Inc()
}

// Provision records a provisioning cycle result.
func (m *Metrics) Provision(result string) {
	if m == nil {
		return
	}
	m.Provisions.WithLabelValues(result).Inc()
}

// Redirect records a rewritten navigation.
func (m *Metrics) Redirect() {
	if m == nil {
		return
	}
	m.Redirects.Inc()
}

// Completion records a streak increment for mode.
func (m *Metrics) Completion(mode string) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(mode).Inc()
}
