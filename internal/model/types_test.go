package model

import (
	"encoding/json"
	"testing"
)

func TestParseCollection(t *testing.T) {
	cases := []struct {
		in   string
		want Collection
	}{
		{"", RemoteCollection("")},
		{"All", RemoteCollection("")},
		{"remote:abc123", RemoteCollection("abc123")},
		{"lg-xyz", RemoteCollection("xyz")},
		{"Blind75", BundledCollection("Blind75")},
	}
	for _, tc := range cases {
		got, err := ParseCollection(tc.in)
		if err != nil {
			t.Fatalf("ParseCollection(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCollection(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseCollection("a/b"); err == nil {
		t.Fatalf("expected error for invalid name")
	}
}

func TestCollectionString(t *testing.T) {
	if got := RemoteCollection("").String(); got != "all" {
		t.Fatalf("unexpected %q", got)
	}
	if got := RemoteCollection("x").String(); got != "remote:x" {
		t.Fatalf("unexpected %q", got)
	}
	if got := BundledCollection("NeetCode150").String(); got != "NeetCode150" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeNormal, "Normal": ModeNormal, "escalated": ModeEscalated, "hyper-torture": ModeEscalated} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("lenient"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDifficulty(t *testing.T) {
	d, err := ParseDifficulty("MEDIUM")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.CatalogFilter() != "MEDIUM" {
		t.Fatalf("unexpected filter %q", d.CatalogFilter())
	}
	if DifficultyAll.CatalogFilter() != "" {
		t.Fatalf("all must not filter")
	}
	if !d.Matches(" medium ") || d.Matches("Hard") {
		t.Fatalf("unexpected match result")
	}
	if _, err := ParseDifficulty("extreme"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVerdict(t *testing.T) {
	cases := []struct {
		name     string
		v        Verdict
		pending  bool
		accepted bool
	}{
		{"started", Verdict{State: VerdictStarted}, true, false},
		{"pending", Verdict{State: VerdictPending}, true, false},
		{"accepted", Verdict{State: VerdictSuccess, StatusMsg: StatusAccepted}, false, true},
		{"null answer", Verdict{State: VerdictSuccess, StatusMsg: StatusAccepted, CodeAnswer: json.RawMessage("null")}, false, true},
		{"run result", Verdict{State: VerdictSuccess, StatusMsg: StatusAccepted, CodeAnswer: json.RawMessage(`["1"]`)}, false, false},
		{"wrong", Verdict{State: VerdictSuccess, StatusMsg: "Wrong Answer"}, false, false},
	}
	for _, tc := range cases {
		if tc.v.Pending() != tc.pending || tc.v.Accepted() != tc.accepted {
			t.Fatalf("%s: pending=%v accepted=%v", tc.name, tc.v.Pending(), tc.v.Accepted())
		}
	}
}
