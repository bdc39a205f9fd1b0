package testutil

import (
	"fmt"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/google/uuid"
)

// MustFrequency unwraps a frequency constructor result, panicking on a
// validation error. Use it only with literal arguments.
func MustFrequency(f domain.Frequency, err error) domain.Frequency {
	if err != nil {
		panic(fmt.Sprintf("testutil: invalid frequency: %v", err))
	}
	return f
}

// Rule options
type RuleOption func(*domain.RuleSpec)

func WithFrequency(f domain.Frequency) RuleOption {
	return func(r *domain.RuleSpec) {
		r.Frequency = f
	}
}

func WithStartDate(d time.Time) RuleOption {
	return func(r *domain.RuleSpec) {
		r.StartDate = domain.DateOnly(d)
	}
}

func WithOffsets(due, target int) RuleOption {
	return func(r *domain.RuleSpec) {
		r.DueDateOffset = due
		r.TargetDateOffset = target
	}
}

func WithInactive() RuleOption {
	return func(r *domain.RuleSpec) {
		r.IsActive = false
	}
}

func WithClient(clientID, serviceID string) RuleOption {
	return func(r *domain.RuleSpec) {
		r.ClientID = clientID
		r.ServiceID = serviceID
	}
}

func WithAssignee(memberID string) RuleOption {
	return func(r *domain.RuleSpec) {
		r.AssignedTo = memberID
	}
}

func WithPriority(p domain.Priority) RuleOption {
	return func(r *domain.RuleSpec) {
		r.Priority = p
	}
}

// NewTestRule returns an active daily rule starting 2025-01-01.
func NewTestRule(title string, opts ...RuleOption) domain.RuleSpec {
	now := time.Now().UTC()
	r := domain.RuleSpec{
		ID:        uuid.New().String(),
		Version:   1,
		Title:     title,
		Frequency: MustFrequency(domain.NewDaily(1)),
		StartDate: domain.Date(2025, time.January, 1),
		IsActive:  true,
		CreatedBy: "member-test",
		Priority:  domain.DefaultPriority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// NewTestTask returns a task instance for ruleID on the given occurrence date
// with zero offsets.
func NewTestTask(ruleID string, occurrence time.Time) domain.TaskInstance {
	return domain.TaskInstance{
		ID:             uuid.New().String(),
		RuleID:         ruleID,
		Title:          "test task",
		OccurrenceDate: occurrence,
		DueDate:        occurrence,
		TargetDate:     occurrence,
		Priority:       domain.DefaultPriority,
		CreatedAt:      time.Now().UTC(),
	}
}
