// Package stats summarises completion history.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/leetgulag/internal/model"
	"github.com/verte-zerg/leetgulag/internal/streak"
)

const sparkChars = " .:-=+*#%@"

// DailyCounts buckets completions into one count per local day from since to
// until inclusive.
func DailyCounts(completions []model.Completion, since, until time.Time) []float64 {
	first := streak.Day(since)
	last := streak.Day(until)
	if last.Before(first) {
		return nil
	}
	days := int(math.Round(last.Sub(first).Hours()/24)) + 1
	counts := make([]float64, days)
	for _, c := range completions {
		day := streak.Day(c.CompletedAt)
		if day.Before(first) || day.After(last) {
			continue
		}
		idx := int(math.Round(day.Sub(first).Hours() / 24))
		if idx >= 0 && idx < days {
			counts[idx]++
		}
	}
	return counts
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// ActiveDays counts days with at least one completion.
func ActiveDays(counts []float64) int {
	n := 0
	for _, c := range counts {
		if c > 0 {
			n++
		}
	}
	return n
}

// RenderSummary prints streaks and activity for the report window.
func RenderSummary(w io.Writer, r Report) error {
	if _, err := fmt.Fprintln(w, "Summary"); err != nil {
		return err
	}
	for _, mode := range []model.Mode{model.ModeNormal, model.ModeEscalated} {
		st := r.Streaks[mode]
		line := fmt.Sprintf("%-10s current %d, best %d", titleCase(string(mode)), st.Current, st.Best)
		if !st.LastCompletion.IsZero() {
			line += ", last " + st.LastCompletion.In(time.Local).Format("2006-01-02")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if len(r.Completions) == 0 {
		_, err := fmt.Fprintln(w, "No completions found.")
		return err
	}
	counts := DailyCounts(r.Completions, r.Since, r.Until)
	if _, err := fmt.Fprintf(w, "Solved: %d over %d active days of %d\n", len(r.Completions), ActiveDays(counts), len(counts)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Daily:  |%s|\n", Sparkline(counts)); err != nil {
		return err
	}
	if r.Window > 1 {
		if _, err := fmt.Fprintf(w, "Trend:  |%s|\n", Sparkline(MovingAverage(counts, r.Window))); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// RenderHistory prints one row per completion, newest first.
func RenderHistory(w io.Writer, completions []model.Completion, limit int) error {
	if len(completions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "History"); err != nil {
		return err
	}
	headers := []string{"Date", "Mode", "Problem"}
	rows := make([][]string, 0, len(completions))
	for i := len(completions) - 1; i >= 0; i-- {
		if limit > 0 && len(rows) == limit {
			break
		}
		c := completions[i]
		rows = append(rows, []string{
			c.CompletedAt.In(time.Local).Format("2006-01-02 15:04"),
			string(c.Mode),
			problemLabel(c.ProblemURL),
		})
	}
	for _, line := range formatTable(headers, rows, nil) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func problemLabel(url string) string {
	slug := strings.TrimSuffix(strings.TrimPrefix(url, model.ProblemPathBase), "/")
	if slug == "" {
		return url
	}
	return slug
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
