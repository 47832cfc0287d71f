package collection

import "github.com/verte-zerg/leetgulag/internal/model"

// FilterFunc returns true when a record should be kept.
type FilterFunc func(Record) bool

// Eligible keeps records matching the difficulty, dropping premium ones unless allowed.
func Eligible(difficulty model.Difficulty, includePremium bool) FilterFunc {
	return func(r Record) bool {
		if r.IsPremium && !includePremium {
			return false
		}
		return difficulty.Matches(r.Difficulty)
	}
}

// Filter returns the records kept by keep.
func Filter(records []Record, keep FilterFunc) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
