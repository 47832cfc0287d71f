package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/leetgulag/internal/model"
	"github.com/verte-zerg/leetgulag/internal/streak"
)

// Source is the history the report is built from.
type Source interface {
	ListCompletions(ctx context.Context, since time.Time) ([]model.Completion, error)
	Streak(ctx context.Context, mode model.Mode) (model.StreakState, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Since       time.Time
	Until       time.Time
	Window      int
	Completions []model.Completion
	Streaks     map[model.Mode]model.StreakState
}

// BuildReport loads completions for the last days days ending at now.
func BuildReport(ctx context.Context, src Source, now time.Time, days, window int) (Report, error) {
	if days <= 0 {
		return Report{}, fmt.Errorf("days must be positive")
	}
	since := streak.Day(now).AddDate(0, 0, -(days - 1))
	completions, err := src.ListCompletions(ctx, since)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list completions: %w", err)
	}
	streaks := make(map[model.Mode]model.StreakState, 2)
	for _, mode := range []model.Mode{model.ModeNormal, model.ModeEscalated} {
		st, err := src.Streak(ctx, mode)
		if err != nil {
			return Report{}, fmt.Errorf("failed to read %s streak: %w", mode, err)
		}
		streaks[mode] = st
	}
	return Report{
		Since:       since,
		Until:       now,
		Window:      window,
		Completions: completions,
		Streaks:     streaks,
	}, nil
}
