package statusui

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/leetgulag/internal/model"
)

var testMessages = Messages{Unsolved: "go solve it", Solved: "nice work", Escalated: "no escape"}

func snapshot() Snapshot {
	return Snapshot{
		Problem:     model.Problem{URL: model.ProblemPathBase + "two-sum/", Name: "Two Sum"},
		Mode:        model.ModeNormal,
		Permissions: true,
		Streaks: map[model.Mode]model.StreakState{
			model.ModeNormal:    {Current: 3, Best: 7},
			model.ModeEscalated: {Current: 1, Best: 2},
		},
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func TestRenderUnsolved(t *testing.T) {
	out := Render(snapshot(), testMessages, 0)
	if !containsAll(out, []string{"go solve it", "Today's Question", "Two Sum", "Current Streak: 3", "Best Streak: 7"}) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRenderSolved(t *testing.T) {
	snap := snapshot()
	snap.Solved = true
	out := Render(snap, testMessages, 0)
	if !strings.Contains(out, "nice work") || strings.Contains(out, "Two Sum") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRenderEscalatedShowsEscalatedStreak(t *testing.T) {
	snap := snapshot()
	snap.Mode = model.ModeEscalated
	snap.Solved = true
	out := Render(snap, testMessages, 0)
	if !containsAll(out, []string{"Hyper Torture", "no escape", "Two Sum", "Current Streak: 1", "Best Streak: 2"}) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRenderPermissionsAndLoading(t *testing.T) {
	snap := snapshot()
	snap.Permissions = false
	if out := Render(snap, testMessages, 0); !strings.Contains(out, "provisioning is failing") {
		t.Fatalf("expected warning, got:\n%s", out)
	}
	snap = snapshot()
	snap.Loading = true
	if out := Render(snap, testMessages, 0); !strings.Contains(out, "Fetching torture problem...") {
		t.Fatalf("expected loading text, got:\n%s", out)
	}
}

func TestFitTruncates(t *testing.T) {
	if got := fit("Longest Substring Without Repeating Characters", 12); got != "Longest S..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := fit("Two Sum", 12); got != "Two Sum" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestUpdateRefreshesWhenPermissionsDisabled(t *testing.T) {
	refreshed := 0
	snap := snapshot()
	snap.Permissions = false
	m := NewModel(
		func(context.Context) (Snapshot, error) { return snap, nil },
		func(context.Context) error {
			refreshed++
			return nil
		},
		testMessages,
	)

	_, cmd := m.Update(snapshotMsg{snap: snap})
	if !m.checking || cmd == nil {
		t.Fatalf("expected permission check to start")
	}
	if !strings.Contains(m.View(), "Checking permissions...") {
		t.Fatalf("expected checking view, got:\n%s", m.View())
	}
	msg := cmd()
	if refreshed != 1 {
		t.Fatalf("expected one refresh, got %d", refreshed)
	}
	_, cmd = m.Update(msg)
	if m.checking || cmd == nil {
		t.Fatalf("expected reload after refresh")
	}
	_, cmd = m.Update(cmd())
	if cmd != nil || refreshed != 1 {
		t.Fatalf("expected a single permission check per view")
	}
}

func TestUpdateShowsLoadError(t *testing.T) {
	m := NewModel(func(context.Context) (Snapshot, error) { return Snapshot{}, errors.New("db locked") }, nil, testMessages)
	_, _ = m.Update(m.loadCmd()())
	if !strings.Contains(m.View(), "db locked") {
		t.Fatalf("expected error in view, got:\n%s", m.View())
	}
}

func TestQuitKeys(t *testing.T) {
	m := NewModel(func(context.Context) (Snapshot, error) { return snapshot(), nil }, nil, testMessages)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestPickMessages(t *testing.T) {
	msgs := PickMessages(rand.New(rand.NewSource(1)))
	if msgs.Unsolved == "" || msgs.Solved == "" || msgs.Escalated == "" {
		t.Fatalf("expected all messages set: %+v", msgs)
	}
}
