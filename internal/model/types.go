// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PracticeSiteURL is the origin of the practice site.
const PracticeSiteURL = "https://leetcode.com"

// ProblemPathBase prefixes every problem page derived from a catalog title.
const ProblemPathBase = PracticeSiteURL + "/problems/"

// Problem is the daily assignment.
type Problem struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Valid reports whether the problem can be enforced.
func (p Problem) Valid() bool {
	return p.URL != ""
}

// Mode selects how strictly completions are enforced.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeEscalated Mode = "escalated"
)

// ParseMode parses a mode name. The empty string maps to ModeNormal.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return ModeNormal, nil
	case "escalated", "hyper", "hyper-torture":
		return ModeEscalated, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected normal or escalated)", s)
	}
}

// Difficulty filters the problem pool.
type Difficulty string

const (
	DifficultyAll    Difficulty = "all"
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty parses a difficulty case-insensitively. The empty string maps to DifficultyAll.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DifficultyAll, nil
	case DifficultyAll, DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// CatalogFilter returns the catalog enum value, or "" when no filter applies.
func (d Difficulty) CatalogFilter() string {
	if d == "" || d == DifficultyAll {
		return ""
	}
	return strings.ToUpper(string(d))
}

// Matches compares a record difficulty against the filter.
func (d Difficulty) Matches(recordDifficulty string) bool {
	if d == "" || d == DifficultyAll {
		return true
	}
	return strings.EqualFold(string(d), strings.TrimSpace(recordDifficulty))
}

// CollectionKind distinguishes provisioning sources.
type CollectionKind int

const (
	CollectionRemote CollectionKind = iota
	CollectionBundled
)

// Collection is the configured problem source.
// Remote collections query the catalog, optionally narrowed to FilterID.
// Bundled collections read a named static list.
type Collection struct {
	Kind     CollectionKind
	FilterID string
	Name     string
}

// RemoteCollection builds a remote collection. An empty filter means the full catalog.
func RemoteCollection(filterID string) Collection {
	return Collection{Kind: CollectionRemote, FilterID: filterID}
}

// BundledCollection builds a bundled collection.
func BundledCollection(name string) Collection {
	return Collection{Kind: CollectionBundled, Name: name}
}

// ParseCollection decides the collection variant once, at configuration time.
// Accepted forms: "all", "remote:<listId>", "lg-<listId>" and bundled names.
func ParseCollection(s string) (Collection, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, "all"):
		return RemoteCollection(""), nil
	case strings.HasPrefix(s, "remote:"):
		return RemoteCollection(strings.TrimPrefix(s, "remote:")), nil
	case strings.HasPrefix(s, "lg-"):
		return RemoteCollection(strings.TrimPrefix(s, "lg-")), nil
	case strings.ContainsAny(s, " /\\:"):
		return Collection{}, fmt.Errorf("invalid collection name %q", s)
	default:
		return BundledCollection(s), nil
	}
}

// String renders the collection in its configuration form.
func (c Collection) String() string {
	if c.Kind == CollectionBundled {
		return c.Name
	}
	if c.FilterID == "" {
		return "all"
	}
	return "remote:" + c.FilterID
}

// Settings are the provisioning inputs.
type Settings struct {
	Difficulty     Difficulty
	Collection     Collection
	IncludePremium bool
}

// StreakState tracks consecutive completion days for one mode.
type StreakState struct {
	Current        int
	Best           int
	LastCompletion time.Time
}

// Completion is one verified accepted submission.
type Completion struct {
	CycleID     string
	Mode        Mode
	ProblemURL  string
	CompletedAt time.Time
}

// Verdict states and status messages reported by the judge.
const (
	VerdictStarted  = "STARTED"
	VerdictPending  = "PENDING"
	VerdictSuccess  = "SUCCESS"
	StatusAccepted  = "Accepted"
	ResourceMainDoc = "main_frame"
)

// Verdict is the judge's per-submission result.
type Verdict struct {
	State      string          `json:"state"`
	StatusMsg  string          `json:"status_msg"`
	Lang       string          `json:"lang"`
	CodeAnswer json.RawMessage `json:"code_answer,omitempty"`
}

// Pending reports whether the judge is still evaluating.
func (v Verdict) Pending() bool {
	return v.State == VerdictStarted || v.State == VerdictPending
}

// Accepted reports a settled accepted verdict. Partial run results reuse the
// Accepted label but carry a code answer; those do not count.
func (v Verdict) Accepted() bool {
	return v.StatusMsg == StatusAccepted && v.State == VerdictSuccess && !hasPayload(v.CodeAnswer)
}

func hasPayload(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

// NavigationEvent is a navigation attempt observed by the browser.
type NavigationEvent struct {
	URL          string `json:"url" binding:"required"`
	ResourceType string `json:"type"`
	TabID        int    `json:"tabId"`
}

// CompletionEvent is a completed network request observed by the browser.
// Verdict is set when the browser already fetched the check resource.
type CompletionEvent struct {
	URL     string   `json:"url" binding:"required"`
	TabURL  string   `json:"tabUrl"`
	TabID   int      `json:"tabId"`
	Verdict *Verdict `json:"verdict,omitempty"`
}

// Inbound and outbound message actions.
const (
	ActionFetchingProblem   = "fetchingProblem"
	ActionProblemFetched    = "problemFetched"
	ActionGetProblemStatus  = "getProblemStatus"
	ActionUserClickedSubmit = "userClickedSubmit"
	ActionProvision         = "provision"
	ActionUserSolved        = "userSolvedProblem"
	ActionUserFailed        = "userFailedProblem"
)

// Message is exchanged with the browser-side collaborators.
type Message struct {
	Action   string `json:"action" binding:"required"`
	Language string `json:"language,omitempty"`
}

// ProblemStatus answers getProblemStatus.
type ProblemStatus struct {
	ProblemSolved bool    `json:"problemSolved"`
	Problem       Problem `json:"problem"`
}
