package domain

import (
	"strings"
	"time"
)

// RuleSpec is a validated recurrence template. It is a value: revisions and
// activation changes return a new RuleSpec and leave the receiver untouched.
type RuleSpec struct {
	ID          string
	Version     int
	Title       string
	Description string

	Frequency Frequency
	StartDate time.Time

	// Signed day deltas from an occurrence date.
	DueDateOffset    int
	TargetDateOffset int

	IsActive bool

	// Opaque pass-through attributes copied onto materialized tasks.
	CreatedBy  string
	AssignedTo string
	ClientID   string
	ServiceID  string
	TagID      string
	Priority   Priority

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleDraft is the flat, unvalidated form a rule arrives in from the API or
// CLI. Optional anchor fields are nil when absent.
type RuleDraft struct {
	Title       string
	Description string

	Frequency   string
	Interval    int
	DayOfWeek   *int
	DayOfMonth  *int
	WeekOfMonth *int

	StartDate        time.Time
	DueDateOffset    int
	TargetDateOffset int
	IsActive         *bool

	CreatedBy  string
	AssignedTo string
	ClientID   string
	ServiceID  string
	TagID      string
	Priority   Priority
}

// NewRule validates d and returns version 1 of a rule.
func NewRule(id string, d RuleDraft, now time.Time) (RuleSpec, error) {
	r, err := d.build()
	if err != nil {
		return RuleSpec{}, err
	}
	r.ID = id
	r.Version = 1
	r.CreatedAt = now.UTC()
	r.UpdatedAt = now.UTC()
	return r, nil
}

// Revise validates d and returns the next version of r. Identity, creator and
// creation time carry over, as does IsActive when d leaves it nil; everything
// else comes from d.
func (r RuleSpec) Revise(d RuleDraft, now time.Time) (RuleSpec, error) {
	next, err := d.build()
	if err != nil {
		return RuleSpec{}, err
	}
	if d.IsActive == nil {
		next.IsActive = r.IsActive
	}
	next.ID = r.ID
	next.Version = r.Version + 1
	next.CreatedBy = r.CreatedBy
	next.CreatedAt = r.CreatedAt
	next.UpdatedAt = now.UTC()
	return next, nil
}

// WithActive returns a new version of r with IsActive set.
func (r RuleSpec) WithActive(active bool, now time.Time) RuleSpec {
	if r.IsActive == active {
		return r
	}
	r.IsActive = active
	r.Version++
	r.UpdatedAt = now.UTC()
	return r
}

// Draft converts r back into its flat form, e.g. as the base of a partial edit.
func (r RuleSpec) Draft() RuleDraft {
	f := Fields(r.Frequency)
	active := r.IsActive
	return RuleDraft{
		Title:            r.Title,
		Description:      r.Description,
		Frequency:        string(f.Kind),
		Interval:         f.Interval,
		DayOfWeek:        f.DayOfWeek,
		DayOfMonth:       f.DayOfMonth,
		WeekOfMonth:      f.WeekOfMonth,
		StartDate:        r.StartDate,
		DueDateOffset:    r.DueDateOffset,
		TargetDateOffset: r.TargetDateOffset,
		IsActive:         &active,
		CreatedBy:        r.CreatedBy,
		AssignedTo:       r.AssignedTo,
		ClientID:         r.ClientID,
		ServiceID:        r.ServiceID,
		TagID:            r.TagID,
		Priority:         r.Priority,
	}
}

func (d RuleDraft) build() (RuleSpec, error) {
	if strings.TrimSpace(d.Title) == "" {
		return RuleSpec{}, invalid("title", "is required")
	}
	freq, err := d.BuildFrequency()
	if err != nil {
		return RuleSpec{}, err
	}
	if d.StartDate.IsZero() {
		return RuleSpec{}, invalid("start_date", "is required")
	}
	priority := d.Priority
	if priority == "" {
		priority = DefaultPriority
	}
	if !priority.Valid() {
		return RuleSpec{}, invalid("priority", "must be one of P1, P2, P3, P4, got %q", string(priority))
	}
	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}

	return RuleSpec{
		Title:            strings.TrimSpace(d.Title),
		Description:      d.Description,
		Frequency:        freq,
		StartDate:        DateOnly(d.StartDate),
		DueDateOffset:    d.DueDateOffset,
		TargetDateOffset: d.TargetDateOffset,
		IsActive:         active,
		CreatedBy:        d.CreatedBy,
		AssignedTo:       d.AssignedTo,
		ClientID:         d.ClientID,
		ServiceID:        d.ServiceID,
		TagID:            d.TagID,
		Priority:         priority,
	}, nil
}

// BuildFrequency turns the flat frequency fields into a variant, reporting
// the first violated invariant.
func (d RuleDraft) BuildFrequency() (Frequency, error) {
	kind := FrequencyKind(strings.ToLower(strings.TrimSpace(d.Frequency)))
	switch kind {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return nil, invalid("frequency", "must be one of daily, weekly, monthly, yearly, got %q", d.Frequency)
	}
	if err := checkInterval(d.Interval); err != nil {
		return nil, err
	}

	switch kind {
	case FrequencyDaily:
		if err := d.forbid(kind, "day_of_week", "day_of_month", "week_of_month"); err != nil {
			return nil, err
		}
		return NewDaily(d.Interval)

	case FrequencyWeekly:
		if err := d.forbid(kind, "day_of_month", "week_of_month"); err != nil {
			return nil, err
		}
		if d.DayOfWeek == nil {
			return nil, invalid("day_of_week", "is required for weekly rules")
		}
		return NewWeekly(d.Interval, Weekday(*d.DayOfWeek))

	case FrequencyMonthly:
		byDay, byOrdinal := d.DayOfMonth != nil, d.WeekOfMonth != nil
		if byDay == byOrdinal {
			return nil, invalid("anchor", "exactly one monthly anchor required (day_of_month, or week_of_month with day_of_week)")
		}
		if byDay {
			if d.DayOfWeek != nil {
				return nil, invalid("day_of_week", "is not allowed with day_of_month")
			}
			return NewMonthlyByDay(d.Interval, *d.DayOfMonth)
		}
		if d.DayOfWeek == nil {
			return nil, invalid("day_of_week", "is required with week_of_month")
		}
		return NewMonthlyByWeekday(d.Interval, *d.WeekOfMonth, Weekday(*d.DayOfWeek))

	default:
		if err := d.forbid(kind, "day_of_week", "day_of_month", "week_of_month"); err != nil {
			return nil, err
		}
		return NewYearly(d.Interval)
	}
}

func (d RuleDraft) forbid(kind FrequencyKind, fields ...string) error {
	set := map[string]bool{
		"day_of_week":   d.DayOfWeek != nil,
		"day_of_month":  d.DayOfMonth != nil,
		"week_of_month": d.WeekOfMonth != nil,
	}
	for _, f := range fields {
		if set[f] {
			return invalid(f, "is not allowed for %s rules", kind)
		}
	}
	return nil
}
