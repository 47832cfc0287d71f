package escape

import (
	"testing"

	"github.com/verte-zerg/leetgulag/internal/model"
)

func nav(url string) model.NavigationEvent {
	return model.NavigationEvent{URL: url, ResourceType: model.ResourceMainDoc}
}

func TestTrackerRecordsOnlyWhenEnabled(t *testing.T) {
	tr := NewTracker()
	if tr.Observe(nav("https://example.com/")) {
		t.Fatalf("disabled tracker must not record")
	}
	tr.SetEnabled(true)
	if !tr.Observe(nav("https://example.com/")) {
		t.Fatalf("expected navigation to be recorded")
	}
	if !tr.Observe(nav("https://news.ycombinator.com/")) {
		t.Fatalf("expected navigation to be recorded")
	}
	if got := tr.LastAttempted(); got != "https://news.ycombinator.com/" {
		t.Fatalf("expected last write to win, got %q", got)
	}
	tr.SetEnabled(false)
	if got := tr.LastAttempted(); got != "" {
		t.Fatalf("disabling must forget the url, got %q", got)
	}
}

func TestTrackerIgnoresPracticeAndInternalPages(t *testing.T) {
	tr := NewTracker()
	tr.SetEnabled(true)
	ignored := []model.NavigationEvent{
		nav("https://leetcode.com/problems/two-sum/"),
		nav("chrome-extension://abcdef/popup.html"),
		{URL: "https://example.com/app.js", ResourceType: "script"},
	}
	for _, ev := range ignored {
		if tr.Observe(ev) {
			t.Fatalf("expected %+v to be ignored", ev)
		}
	}
	if got := tr.LastAttempted(); got != "" {
		t.Fatalf("expected nothing recorded, got %q", got)
	}
	tr.Observe(nav("https://example.com/"))
	tr.Clear()
	if got := tr.LastAttempted(); got != "" {
		t.Fatalf("expected cleared, got %q", got)
	}
}
