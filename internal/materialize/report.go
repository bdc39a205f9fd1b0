package materialize

import "time"

// Outcome is how a single rule's run ended.
type Outcome string

const (
	OutcomeMaterialized Outcome = "materialized"
	OutcomeLeaseHeld    Outcome = "lease_held"
	OutcomeBackoff      Outcome = "backoff"
	OutcomeNeedsReview  Outcome = "needs_review"
	OutcomeLeaseLost    Outcome = "lease_lost"
	OutcomeFailed       Outcome = "failed"
	OutcomeFlagged      Outcome = "flagged"
	// OutcomeInactive means the rule was paused or removed between listing
	// and lease acquisition.
	OutcomeInactive     Outcome = "inactive"
)

// RuleReport describes one rule's run.
type RuleReport struct {
	RuleID  string
	Outcome Outcome
	// Created counts new task instances; Seen counts occurrences the ledger
	// already had.
	Created    int
	Seen       int
	Checkpoint *time.Time
	Err        error
}

// Report summarizes a scheduler run.
type Report struct {
	StartedAt    time.Time
	Duration     time.Duration
	Considered   int
	Processed    int
	Skipped      int
	Failed       int
	Flagged      int
	TasksCreated int
	AlreadySeen  int
	Rules        []RuleReport
}

func (r *Report) add(rr RuleReport) {
	r.Considered++
	r.TasksCreated += rr.Created
	r.AlreadySeen += rr.Seen
	switch rr.Outcome {
	case OutcomeMaterialized:
		r.Processed++
	case OutcomeLeaseHeld, OutcomeBackoff, OutcomeNeedsReview, OutcomeInactive:
		r.Skipped++
	case OutcomeFlagged:
		r.Flagged++
	default:
		r.Failed++
	}
	r.Rules = append(r.Rules, rr)
}
