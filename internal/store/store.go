// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/verte-zerg/leetgulag/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Keys of the kv table.
const (
	KeyProblemURL         = "problemUrl"
	KeyProblemName        = "problemName"
	KeySolved             = "solved"
	KeyCycleID            = "cycleId"
	KeyCycleDate          = "cycleDate"
	KeyMode               = "mode"
	KeyPermissions        = "permissionsEnabled"
	KeyLoading            = "loading"
	KeyPendingSubmission  = "pendingSubmission"
	KeyEscalatedCycleDay  = "escalatedCycleDay"
	KeyEscalatedCycleUsed = "escalatedCycleCount"
)

const dateLayout = "2006-01-02"

// timestampLayout is fixed width so stored UTC timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for the enforcement state.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps compare-and-set updates serialised.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS streaks (
			mode TEXT PRIMARY KEY,
			current INTEGER NOT NULL DEFAULT 0,
			best INTEGER NOT NULL DEFAULT 0,
			last_completion TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS completions (
			id INTEGER PRIMARY KEY,
			cycle_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			problem_url TEXT NOT NULL,
			completed_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_completions_completed_at ON completions(completed_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value for key, or "" when unset.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set upserts a value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) getBool(ctx context.Context, key string, fallback bool) (bool, error) {
	v, err := s.Get(ctx, key)
	if err != nil || v == "" {
		return fallback, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, nil
	}
	return b, nil
}

func (s *Store) setBool(ctx context.Context, key string, value bool) error {
	return s.Set(ctx, key, strconv.FormatBool(value))
}

// UpdateProblem assigns a new problem and opens a new provisioning cycle.
func (s *Store) UpdateProblem(ctx context.Context, problem model.Problem, solved bool, cycleID string, day time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	pairs := [][2]string{
		{KeyProblemURL, problem.URL},
		{KeyProblemName, problem.Name},
		{KeySolved, strconv.FormatBool(solved)},
		{KeyCycleID, cycleID},
		{KeyCycleDate, day.Format(dateLayout)},
		{KeyPendingSubmission, ""},
	}
	for _, kv := range pairs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO kv (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, kv[0], kv[1]); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// Problem returns the assigned problem.
func (s *Store) Problem(ctx context.Context) (model.Problem, error) {
	url, err := s.Get(ctx, KeyProblemURL)
	if err != nil {
		return model.Problem{}, err
	}
	name, err := s.Get(ctx, KeyProblemName)
	if err != nil {
		return model.Problem{}, err
	}
	return model.Problem{URL: url, Name: name}, nil
}

// ProblemSolved reports the solved flag of the current cycle.
func (s *Store) ProblemSolved(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeySolved, false)
}

// CycleID returns the current provisioning cycle id.
func (s *Store) CycleID(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyCycleID)
}

// CycleDate returns the local day the current problem was provisioned, or the zero time.
func (s *Store) CycleDate(ctx context.Context) (time.Time, error) {
	v, err := s.Get(ctx, KeyCycleDate)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.ParseInLocation(dateLayout, v, time.Local)
}

// MarkSolved flips the solved flag false->true for cycleID. It reports
// whether this call performed the transition.
func (s *Store) MarkSolved(ctx context.Context, cycleID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kv SET value = 'true'
		 WHERE key = ? AND value <> 'true'
		   AND EXISTS (SELECT 1 FROM kv WHERE key = ? AND value = ?)`,
		KeySolved, KeyCycleID, cycleID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Streak returns the streak state for mode.
func (s *Store) Streak(ctx context.Context, mode model.Mode) (model.StreakState, error) {
	var st model.StreakState
	var last string
	err := s.db.QueryRowContext(ctx,
		`SELECT current, best, last_completion FROM streaks WHERE mode = ?`, string(mode)).
		Scan(&st.Current, &st.Best, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StreakState{}, nil
	}
	if err != nil {
		return model.StreakState{}, err
	}
	if last != "" {
		parsed, err := time.Parse(time.RFC3339Nano, last)
		if err != nil {
			return model.StreakState{}, err
		}
		st.LastCompletion = parsed
	}
	return st, nil
}

// UpdateStreak increments the streak for mode and records the completion.
func (s *Store) UpdateStreak(ctx context.Context, completion model.Completion) (model.StreakState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.StreakState{}, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	at := completion.CompletedAt.UTC().Format(timestampLayout)
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO streaks (mode, current, best, last_completion) VALUES (?, 1, 1, ?)
		 ON CONFLICT(mode) DO UPDATE SET
			current = streaks.current + 1,
			best = MAX(streaks.best, streaks.current + 1),
			last_completion = excluded.last_completion`,
		string(completion.Mode), at); err != nil {
		return model.StreakState{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO completions (cycle_id, mode, problem_url, completed_at) VALUES (?, ?, ?, ?)`,
		completion.CycleID, string(completion.Mode), completion.ProblemURL, at); err != nil {
		return model.StreakState{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.StreakState{}, err
	}
	return s.Streak(ctx, completion.Mode)
}

// ResetStreak sets the current streak for mode to zero. Best is preserved.
func (s *Store) ResetStreak(ctx context.Context, mode model.Mode) error {
	_, err := s.db.ExecContext(ctx, `UPDATE streaks SET current = 0 WHERE mode = ?`, string(mode))
	return err
}

// LastCompletion returns the last completion time for mode, or the zero time.
func (s *Store) LastCompletion(ctx context.Context, mode model.Mode) (time.Time, error) {
	st, err := s.Streak(ctx, mode)
	if err != nil {
		return time.Time{}, err
	}
	return st.LastCompletion, nil
}

// ListCompletions returns completions at or after since, oldest first.
func (s *Store) ListCompletions(ctx context.Context, since time.Time) ([]model.Completion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, mode, problem_url, completed_at FROM completions
		 WHERE completed_at >= ?
		 ORDER BY completed_at ASC`, since.UTC().Format(timestampLayout))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.Completion
	for rows.Next() {
		var c model.Completion
		var mode, at string
		if err := rows.Scan(&c.CycleID, &mode, &c.ProblemURL, &at); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, err
		}
		c.Mode = model.Mode(mode)
		c.CompletedAt = parsed
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePermissions records whether the catalog is reachable.
func (s *Store) UpdatePermissions(ctx context.Context, enabled bool) error {
	return s.setBool(ctx, KeyPermissions, enabled)
}

// Permissions defaults to true until a provisioning attempt says otherwise.
func (s *Store) Permissions(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeyPermissions, true)
}

// InitiateLoading raises the loading indicator.
func (s *Store) InitiateLoading(ctx context.Context) error {
	return s.setBool(ctx, KeyLoading, true)
}

// StopLoading clears the loading indicator.
func (s *Store) StopLoading(ctx context.Context) error {
	return s.setBool(ctx, KeyLoading, false)
}

// Loading reports the loading indicator.
func (s *Store) Loading(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeyLoading, false)
}

// Mode returns the persisted mode.
func (s *Store) Mode(ctx context.Context) (model.Mode, error) {
	v, err := s.Get(ctx, KeyMode)
	if err != nil {
		return model.ModeNormal, err
	}
	mode, err := model.ParseMode(v)
	if err != nil {
		return model.ModeNormal, nil
	}
	return mode, nil
}

// SetMode persists the mode.
func (s *Store) SetMode(ctx context.Context, mode model.Mode) error {
	return s.Set(ctx, KeyMode, string(mode))
}

// SetPendingSubmission durably records an unresolved submit.
func (s *Store) SetPendingSubmission(ctx context.Context, at time.Time) error {
	return s.Set(ctx, KeyPendingSubmission, at.UTC().Format(timestampLayout))
}

// PendingSubmission returns the unresolved submit time and whether one exists.
func (s *Store) PendingSubmission(ctx context.Context) (time.Time, bool, error) {
	v, err := s.Get(ctx, KeyPendingSubmission)
	if err != nil || v == "" {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// ClearPendingSubmission removes the unresolved submit marker.
func (s *Store) ClearPendingSubmission(ctx context.Context) error {
	return s.Set(ctx, KeyPendingSubmission, "")
}

// EscalatedCycles returns how many escalated re-provisions ran on day.
func (s *Store) EscalatedCycles(ctx context.Context, day time.Time) (int, error) {
	d, err := s.Get(ctx, KeyEscalatedCycleDay)
	if err != nil {
		return 0, err
	}
	if d != day.Format(dateLayout) {
		return 0, nil
	}
	v, err := s.Get(ctx, KeyEscalatedCycleUsed)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// IncrementEscalatedCycles bumps the per-day escalated re-provision counter.
func (s *Store) IncrementEscalatedCycles(ctx context.Context, day time.Time) (int, error) {
	n, err := s.EscalatedCycles(ctx, day)
	if err != nil {
		return 0, err
	}
	n++
	if err := s.Set(ctx, KeyEscalatedCycleDay, day.Format(dateLayout)); err != nil {
		return 0, err
	}
	if err := s.Set(ctx, KeyEscalatedCycleUsed, strconv.Itoa(n)); err != nil {
		return 0, err
	}
	return n, nil
}
