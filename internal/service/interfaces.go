package service

import (
	"context"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
)

type RuleService interface {
	Create(ctx context.Context, d domain.RuleDraft) (domain.RuleSpec, error)
	// Update stores d as the next version of the rule. Task instances
	// already materialized keep the dates they were created with.
	Update(ctx context.Context, id string, d domain.RuleDraft) (domain.RuleSpec, error)
	Get(ctx context.Context, id string) (domain.RuleSpec, error)
	List(ctx context.Context) ([]domain.RuleSpec, error)
	// Delete removes the template only; its task instances remain.
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) (domain.RuleSpec, error)

	// Preview lists occurrences in [from, to) with their due and target
	// dates. Previews are advisory; nothing is materialized.
	Preview(ctx context.Context, id string, from, to time.Time) ([]domain.Occurrence, error)
	PreviewDraft(ctx context.Context, d domain.RuleDraft, from, to time.Time) ([]domain.Occurrence, error)
	Upcoming(ctx context.Context, id string, n int) ([]domain.Occurrence, error)

	ListTasks(ctx context.Context, ruleID string) ([]domain.TaskInstance, error)
	Describe(ctx context.Context, id string) (RuleDescription, error)
}

// RuleDescription is a rule with its references resolved to display names.
type RuleDescription struct {
	Rule     domain.RuleSpec
	Schedule string
	Client   string
	Service  string
	Assignee string
	Creator  string
	Tag      string
	Next     []domain.Occurrence
}
