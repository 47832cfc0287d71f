// Package escape remembers the last navigation the redirect blocked.
package escape

import (
	"sync"

	"github.com/verte-zerg/leetgulag/internal/enforce"
	"github.com/verte-zerg/leetgulag/internal/model"
)

// Tracker records the most recent blocked top-level navigation while enabled.
type Tracker struct {
	mu      sync.Mutex
	enabled bool
	last    string
}

// NewTracker returns a disabled tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetEnabled attaches or detaches the tracker. Detaching forgets the last URL.
func (t *Tracker) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if !enabled {
		t.last = ""
	}
}

// Observe records ev when it is a top-level navigation away from the practice site.
func (t *Tracker) Observe(ev model.NavigationEvent) bool {
	if ev.ResourceType != model.ResourceMainDoc {
		return false
	}
	if enforce.IsPracticeSite(ev.URL) || enforce.IsInternalPage(ev.URL) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return false
	}
	t.last = ev.URL
	return true
}

// LastAttempted returns the remembered URL, or "".
func (t *Tracker) LastAttempted() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Clear forgets the remembered URL.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = ""
}
