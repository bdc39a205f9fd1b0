// Package recurrence expands recurrence rules into concrete calendar dates.
// Everything here is pure: no I/O, no clocks, no shared state.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
)

// ErrInvalidFrequency is returned for a rule whose frequency never passed
// validation, e.g. a row edited directly in storage.
var ErrInvalidFrequency = errors.New("invalid frequency")

// Window is the half-open date range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow normalizes both ends to calendar dates.
func NewWindow(from, to time.Time) Window {
	return Window{From: domain.DateOnly(from), To: domain.DateOnly(to)}
}

// Through returns the window [from, last], inclusive of last.
func Through(from, last time.Time) Window {
	return Window{From: domain.DateOnly(from), To: domain.AddDays(last, 1)}
}

func (w Window) Empty() bool { return !w.From.Before(w.To) }

func (w Window) Contains(d time.Time) bool {
	return !d.Before(w.From) && d.Before(w.To)
}

// Occurrences returns every occurrence of rule inside w in increasing order.
// The same inputs always produce the same sequence.
func Occurrences(rule domain.RuleSpec, w Window) ([]time.Time, error) {
	return Take(rule, w, 0)
}

// Take is Occurrences stopped after limit dates. limit <= 0 means no limit.
func Take(rule domain.RuleSpec, w Window, limit int) ([]time.Time, error) {
	if rule.Frequency == nil {
		return nil, fmt.Errorf("%w: rule %s has no frequency", ErrInvalidFrequency, rule.ID)
	}
	if err := rule.Frequency.Check(); err != nil {
		return nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidFrequency, rule.ID, err)
	}

	start := domain.DateOnly(rule.StartDate)
	from := domain.DateOnly(w.From)
	if from.Before(start) {
		from = start
	}
	c := &collector{from: from, to: domain.DateOnly(w.To), limit: limit}
	if !c.from.Before(c.to) {
		return nil, nil
	}

	switch f := rule.Frequency.(type) {
	case domain.Daily:
		c.stepDays(start, f.Interval())
	case domain.Weekly:
		first := domain.AddDays(start, mod7(int(f.Day())-int(domain.WeekdayOf(start))))
		c.stepDays(first, 7*f.Interval())
	case domain.Monthly:
		c.stepMonths(start, f.Interval(), f.Anchor())
	case domain.Yearly:
		c.stepYears(start, f.Interval())
	default:
		return nil, fmt.Errorf("%w: rule %s: unsupported frequency %T", ErrInvalidFrequency, rule.ID, f)
	}
	return c.out, nil
}

// maxNextYears bounds the search span of Next.
const maxNextYears = 10000

// Next returns up to n occurrences on or after the given date.
func Next(rule domain.RuleSpec, after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	interval := 1
	if rule.Frequency != nil && rule.Frequency.Interval() > 1 {
		interval = rule.Frequency.Interval()
	}
	from := domain.DateOnly(after)
	if from.Before(rule.StartDate) {
		from = domain.DateOnly(rule.StartDate)
	}
	// Wide enough for n yearly steps; Take stops as soon as n are found.
	years := maxNextYears
	if n < maxNextYears/interval {
		years = min((n+1)*interval+1, maxNextYears)
	}
	to := domain.Date(from.Year()+years, time.January, 1)
	return Take(rule, Window{From: from, To: to}, n)
}

type collector struct {
	from, to time.Time
	limit    int
	out      []time.Time
}

// add reports whether generation should continue.
func (c *collector) add(d time.Time) bool {
	if d.Before(c.from) {
		return true
	}
	if !d.Before(c.to) {
		return false
	}
	if n := len(c.out); n > 0 && !d.After(c.out[n-1]) {
		return true
	}
	c.out = append(c.out, d)
	return c.limit <= 0 || len(c.out) < c.limit
}

// The step loops below count k up to a precomputed bound so that k*step
// stays within the window and never overflows, whatever step is.

func (c *collector) stepDays(first time.Time, step int) {
	span := domain.DaysBetween(first, c.to)
	k := 0
	if gap := domain.DaysBetween(first, c.from); gap > 0 {
		k = gap / step
		if gap%step != 0 {
			k++
		}
	}
	for ; span >= 0 && k <= span/step; k++ {
		if !c.add(domain.AddDays(first, k*step)) {
			return
		}
	}
}

func (c *collector) stepMonths(start time.Time, step int, anchor domain.MonthlyAnchor) {
	base := monthIndex(start)
	span := monthIndex(c.to) - base
	k := 0
	if gap := monthIndex(c.from) - base; gap > 0 {
		k = gap / step
	}
	for ; span >= 0 && k <= span/step; k++ {
		idx := base + k*step
		year, month := idx/12, time.Month(idx%12+1)
		if !domain.Date(year, month, 1).Before(c.to) {
			return
		}
		if !c.add(anchorDate(anchor, year, month)) {
			return
		}
	}
}

func (c *collector) stepYears(start time.Time, step int) {
	month, day := start.Month(), start.Day()
	span := c.to.Year() - start.Year()
	k := 0
	if gap := c.from.Year() - start.Year(); gap > 0 {
		k = gap / step
	}
	for ; span >= 0 && k <= span/step; k++ {
		year := start.Year() + k*step
		if !domain.Date(year, time.January, 1).Before(c.to) {
			return
		}
		if !c.add(domain.Date(year, month, min(day, domain.DaysIn(year, month)))) {
			return
		}
	}
}

// anchorDate resolves a monthly anchor inside one month. Day-of-month anchors
// clamp to the month's last day rather than skipping the month.
func anchorDate(anchor domain.MonthlyAnchor, year int, month time.Month) time.Time {
	switch a := anchor.(type) {
	case domain.ByOrdinalWeekday:
		first := domain.Date(year, month, 1)
		offset := mod7(int(a.Day()) - int(domain.WeekdayOf(first)))
		return domain.Date(year, month, 1+offset+7*(a.Week()-1))
	case domain.ByDayOfMonth:
		return domain.Date(year, month, min(a.Day(), domain.DaysIn(year, month)))
	default:
		panic(fmt.Sprintf("recurrence: unknown monthly anchor %T", anchor))
	}
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func mod7(n int) int {
	return ((n % 7) + 7) % 7
}
