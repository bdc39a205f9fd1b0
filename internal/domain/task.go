package domain

import "time"

// TaskInstance is a concrete task produced from one occurrence of a rule.
// RuleID is a weak back-reference kept for audit; deleting the rule leaves
// the instance in place.
type TaskInstance struct {
	ID             string
	RuleID         string
	Title          string
	OccurrenceDate time.Time
	DueDate        time.Time
	TargetDate     time.Time
	ClientID       string
	ServiceID      string
	AssignedTo     string
	TagID          string
	Priority       Priority
	CreatedAt      time.Time
}

// Occurrence is a computed (not yet materialized) firing of a rule.
type Occurrence struct {
	OccurrenceDate time.Time
	DueDate        time.Time
	TargetDate     time.Time
}

// LedgerEntry records that an occurrence of a rule produced a task.
type LedgerEntry struct {
	RuleID         string
	OccurrenceDate time.Time
	TaskID         string
	RecordedAt     time.Time
}
