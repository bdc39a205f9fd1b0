package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
)

type RuleRepo interface {
	Create(ctx context.Context, r domain.RuleSpec) error
	GetByID(ctx context.Context, id string) (domain.RuleSpec, error)
	List(ctx context.Context) ([]domain.RuleSpec, error)
	ListActive(ctx context.Context) ([]domain.RuleSpec, error)
	Update(ctx context.Context, r domain.RuleSpec) error
	Delete(ctx context.Context, id string) error
}

// CheckpointRepo stores one MaterializationCheckpoint per rule. Get returns a
// fresh checkpoint, not ErrNotFound, for a rule that has never been processed.
type CheckpointRepo interface {
	Get(ctx context.Context, ruleID string) (domain.Checkpoint, error)
	List(ctx context.Context) ([]domain.Checkpoint, error)
	Save(ctx context.Context, cp domain.Checkpoint) error
}

// Ledger records which (rule, occurrence) pairs already produced a task.
type Ledger interface {
	Seen(ctx context.Context, ruleID string, occurrence time.Time) (bool, error)
	Record(ctx context.Context, ruleID string, occurrence time.Time, taskID string) error
	ListByRule(ctx context.Context, ruleID string) ([]domain.LedgerEntry, error)
}

// TaskStore is the task collaborator. CreateTaskInstance must be idempotent on
// (RuleID, OccurrenceDate): a repeat call returns the id of the existing task.
type TaskStore interface {
	CreateTaskInstance(ctx context.Context, t domain.TaskInstance) (string, error)
	GetByID(ctx context.Context, id string) (domain.TaskInstance, error)
	ListByRule(ctx context.Context, ruleID string) ([]domain.TaskInstance, error)
}
