package recurrence

import (
	"fmt"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
)

var ordinals = [...]string{"", "first", "second", "third", "fourth"}

// Describe renders a rule's cadence for display, e.g. "Every 2 weeks on Monday".
func Describe(rule domain.RuleSpec) string {
	switch f := rule.Frequency.(type) {
	case domain.Daily:
		return every(f.Interval(), "day", "Every day")
	case domain.Weekly:
		return every(f.Interval(), "week", "Every week") + " on " + f.Day().String()
	case domain.Monthly:
		prefix := every(f.Interval(), "month", "Monthly")
		switch a := f.Anchor().(type) {
		case domain.ByDayOfMonth:
			s := fmt.Sprintf("%s on day %d", prefix, a.Day())
			if a.Day() > 28 {
				s += " (last day in shorter months)"
			}
			return s
		case domain.ByOrdinalWeekday:
			if a.Week() >= 1 && a.Week() < len(ordinals) {
				return fmt.Sprintf("%s on the %s %s", prefix, ordinals[a.Week()], a.Day())
			}
		}
		return prefix
	case domain.Yearly:
		s := every(f.Interval(), "year", "Every year") + " on " + rule.StartDate.Format("Jan 2")
		if rule.StartDate.Month() == time.February && rule.StartDate.Day() == 29 {
			s += " (Feb 28 in non-leap years)"
		}
		return s
	default:
		return "Unknown schedule"
	}
}

func every(n int, unit, single string) string {
	if n == 1 {
		return single
	}
	return fmt.Sprintf("Every %d %ss", n, unit)
}
