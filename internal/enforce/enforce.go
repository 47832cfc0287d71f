package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// RuleEngine applies dynamic rules. Removal happens before additions in one update.
type RuleEngine interface {
	UpdateDynamicRules(ctx context.Context, removeIDs []int, add []Rule) error
	Rules() []Rule
}

// RuleUpdateError reports that the engine rejected an update. The engine keeps
// whatever state it ended in.
type RuleUpdateError struct {
	Op  string
	Err error
}

func (e *RuleUpdateError) Error() string {
	return fmt.Sprintf("redirect rule %s: %v", e.Op, e.Err)
}

func (e *RuleUpdateError) Unwrap() error {
	return e.Err
}

// Enforcer owns the redirect slot.
type Enforcer struct {
	engine RuleEngine
	logger *slog.Logger
}

// New returns an Enforcer over engine.
func New(engine RuleEngine, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{engine: engine, logger: logger}
}

// Enforce replaces the redirect rule so it targets problemURL.
func (e *Enforcer) Enforce(ctx context.Context, problemURL string) error {
	if problemURL == "" {
		return &RuleUpdateError{Op: "enforce", Err: fmt.Errorf("empty redirect target")}
	}
	if err := e.engine.UpdateDynamicRules(ctx, []int{RuleID}, []Rule{RedirectRule(problemURL)}); err != nil {
		e.logger.Error("failed to update redirect rule", "target", problemURL, "error", err)
		return &RuleUpdateError{Op: "enforce", Err: err}
	}
	e.logger.Info("redirect rule updated", "target", problemURL)
	return nil
}

// Release removes the redirect rule.
func (e *Enforcer) Release(ctx context.Context) error {
	if err := e.engine.UpdateDynamicRules(ctx, []int{RuleID}, nil); err != nil {
		e.logger.Error("failed to remove redirect rule", "error", err)
		return &RuleUpdateError{Op: "release", Err: err}
	}
	e.logger.Info("redirect rule removed")
	return nil
}

// Active returns the installed redirect rule, if any.
func (e *Enforcer) Active() (Rule, bool) {
	for _, r := range e.engine.Rules() {
		if r.ID == RuleID {
			return r, true
		}
	}
	return Rule{}, false
}

// Observer is told about every applied rule set.
type Observer interface {
	RulesChanged(rules []Rule)
}

// Table is an in-memory rule engine. Updates are applied atomically under one
// lock and then published to observers.
type Table struct {
	mu        sync.Mutex
	rules     []Rule
	observers []Observer
}

// NewTable returns an empty rule table.
func NewTable(observers ...Observer) *Table {
	return &Table{observers: observers}
}

// UpdateDynamicRules removes removeIDs then adds add. Duplicate ids are rejected
// and leave the table unchanged.
func (t *Table) UpdateDynamicRules(_ context.Context, removeIDs []int, add []Rule) error {
	t.mu.Lock()
	next := make([]Rule, 0, len(t.rules)+len(add))
	for _, r := range t.rules {
		if !slices.Contains(removeIDs, r.ID) {
			next = append(next, r)
		}
	}
	for _, r := range add {
		for _, existing := range next {
			if existing.ID == r.ID {
				t.mu.Unlock()
				return fmt.Errorf("rule with id %d already exists", r.ID)
			}
		}
		if r.RedirectURL == "" {
			t.mu.Unlock()
			return fmt.Errorf("rule %d has no redirect url", r.ID)
		}
		next = append(next, r)
	}
	t.rules = next
	snapshot := slices.Clone(next)
	observers := slices.Clone(t.observers)
	t.mu.Unlock()

	for _, o := range observers {
		o.RulesChanged(snapshot)
	}
	return nil
}

// Rules returns a copy of the installed rules.
func (t *Table) Rules() []Rule {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.rules)
}

// Redirect returns the redirect target for a navigation, if a rule applies.
func (t *Table) Redirect(rawURL, resourceType string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.rules {
		if r.Matches(rawURL, resourceType) {
			return r.RedirectURL, true
		}
	}
	return "", false
}
