package domain

import "time"

// Checkpoint is the scheduler's per-rule progress marker. Only the
// materialization scheduler reads or writes it.
type Checkpoint struct {
	RuleID string
	// LastMaterializedDate is the highest occurrence date durably committed as
	// part of a contiguous prefix. Nil until the first commit.
	LastMaterializedDate *time.Time
	ConsecutiveFailures  int
	NextAttemptAt        *time.Time
	NeedsReview          bool
	LastError            string
	UpdatedAt            time.Time
}

// NewCheckpoint returns the empty checkpoint of a rule that has never run.
func NewCheckpoint(ruleID string) Checkpoint {
	return Checkpoint{RuleID: ruleID}
}

// Due reports whether the rule may be attempted at now.
func (c Checkpoint) Due(now time.Time) bool {
	if c.NeedsReview {
		return false
	}
	return c.NextAttemptAt == nil || !now.Before(*c.NextAttemptAt)
}

// Advanced returns a copy moved forward to date. It never moves backwards.
func (c Checkpoint) Advanced(date time.Time) Checkpoint {
	if c.LastMaterializedDate != nil && !date.After(*c.LastMaterializedDate) {
		return c
	}
	d := DateOnly(date)
	c.LastMaterializedDate = &d
	return c
}

// Succeeded clears failure bookkeeping.
func (c Checkpoint) Succeeded() Checkpoint {
	c.ConsecutiveFailures = 0
	c.NextAttemptAt = nil
	c.LastError = ""
	return c
}

// Failed records one failed attempt and schedules the next one.
func (c Checkpoint) Failed(cause error, retryAt time.Time) Checkpoint {
	c.ConsecutiveFailures++
	c.NextAttemptAt = &retryAt
	if cause != nil {
		c.LastError = cause.Error()
	}
	return c
}

// Flagged marks the rule for manual review; the scheduler stops picking it up.
func (c Checkpoint) Flagged(cause error) Checkpoint {
	c.NeedsReview = true
	c.NextAttemptAt = nil
	if cause != nil {
		c.LastError = cause.Error()
	}
	return c
}

// Resumed clears the review flag and failure counter.
func (c Checkpoint) Resumed() Checkpoint {
	c.NeedsReview = false
	return c.Succeeded()
}
