package recurrence

import (
	"time"

	"github.com/alexanderramin/recur/internal/domain"
)

// Resolve applies signed day offsets to an occurrence date. Negative offsets
// place the date before the occurrence.
func Resolve(occurrence time.Time, dueOffset, targetOffset int) (due, target time.Time) {
	return domain.AddDays(occurrence, dueOffset), domain.AddDays(occurrence, targetOffset)
}

// Preview computes occurrences with their due and target dates. It is
// read-only and advisory: nothing is materialized.
func Preview(rule domain.RuleSpec, w Window) ([]domain.Occurrence, error) {
	dates, err := Occurrences(rule, w)
	if err != nil {
		return nil, err
	}
	return withOffsets(rule, dates), nil
}

// Upcoming is Preview for the next n occurrences on or after the given date.
func Upcoming(rule domain.RuleSpec, after time.Time, n int) ([]domain.Occurrence, error) {
	dates, err := Next(rule, after, n)
	if err != nil {
		return nil, err
	}
	return withOffsets(rule, dates), nil
}

func withOffsets(rule domain.RuleSpec, dates []time.Time) []domain.Occurrence {
	out := make([]domain.Occurrence, 0, len(dates))
	for _, d := range dates {
		due, target := Resolve(d, rule.DueDateOffset, rule.TargetDateOffset)
		out = append(out, domain.Occurrence{OccurrenceDate: d, DueDate: due, TargetDate: target})
	}
	return out
}
