package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/recurrence"
	"github.com/alexanderramin/recur/internal/repository"
	"github.com/google/uuid"
)

// MaxPreviewDays bounds the window a preview may span.
const MaxPreviewDays = 3660

// DefaultUpcoming is the number of occurrences included in a description.
const DefaultUpcoming = 5

var ErrInvalidWindow = errors.New("invalid preview window")

type ruleService struct {
	rules     repository.RuleRepo
	tasks     repository.TaskStore
	directory Directory
	observer  UseCaseObserver
	now       func() time.Time
}

func NewRuleService(rules repository.RuleRepo, tasks repository.TaskStore, directory Directory, observers ...UseCaseObserver) RuleService {
	return &ruleService{
		rules:     rules,
		tasks:     tasks,
		directory: directory,
		observer:  useCaseObserverOrNoop(observers),
		now:       time.Now,
	}
}

func (s *ruleService) Create(ctx context.Context, d domain.RuleDraft) (rule domain.RuleSpec, err error) {
	startedAt := time.Now()
	fields := map[string]any{"frequency": d.Frequency}
	defer func() {
		s.observe(ctx, "rule.create", startedAt, err, fields)
	}()

	rule, err = domain.NewRule(uuid.New().String(), d, s.now())
	if err != nil {
		return domain.RuleSpec{}, err
	}
	fields["rule_id"] = rule.ID
	if err = s.rules.Create(ctx, rule); err != nil {
		return domain.RuleSpec{}, fmt.Errorf("creating rule: %w", err)
	}
	return rule, nil
}

func (s *ruleService) Update(ctx context.Context, id string, d domain.RuleDraft) (rule domain.RuleSpec, err error) {
	startedAt := time.Now()
	fields := map[string]any{"rule_id": id}
	defer func() {
		s.observe(ctx, "rule.update", startedAt, err, fields)
	}()

	current, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return domain.RuleSpec{}, err
	}
	rule, err = current.Revise(d, s.now())
	if err != nil {
		return domain.RuleSpec{}, err
	}
	fields["version"] = rule.Version
	if err = s.rules.Update(ctx, rule); err != nil {
		return domain.RuleSpec{}, fmt.Errorf("updating rule %s: %w", id, err)
	}
	return rule, nil
}

func (s *ruleService) Get(ctx context.Context, id string) (domain.RuleSpec, error) {
	return s.rules.GetByID(ctx, id)
}

func (s *ruleService) List(ctx context.Context) ([]domain.RuleSpec, error) {
	return s.rules.List(ctx)
}

func (s *ruleService) Delete(ctx context.Context, id string) (err error) {
	startedAt := time.Now()
	defer func() {
		s.observe(ctx, "rule.delete", startedAt, err, map[string]any{"rule_id": id})
	}()
	return s.rules.Delete(ctx, id)
}

func (s *ruleService) SetActive(ctx context.Context, id string, active bool) (rule domain.RuleSpec, err error) {
	startedAt := time.Now()
	defer func() {
		s.observe(ctx, "rule.set_active", startedAt, err, map[string]any{"rule_id": id, "active": active})
	}()

	current, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return domain.RuleSpec{}, err
	}
	rule = current.WithActive(active, s.now())
	if rule.Version == current.Version {
		return rule, nil
	}
	if err = s.rules.Update(ctx, rule); err != nil {
		return domain.RuleSpec{}, fmt.Errorf("updating rule %s: %w", id, err)
	}
	return rule, nil
}

func (s *ruleService) Preview(ctx context.Context, id string, from, to time.Time) ([]domain.Occurrence, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return previewWindow(rule, from, to)
}

func (s *ruleService) PreviewDraft(_ context.Context, d domain.RuleDraft, from, to time.Time) ([]domain.Occurrence, error) {
	rule, err := domain.NewRule("draft", d, s.now())
	if err != nil {
		return nil, err
	}
	return previewWindow(rule, from, to)
}

func (s *ruleService) Upcoming(ctx context.Context, id string, n int) ([]domain.Occurrence, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return recurrence.Upcoming(rule, domain.DateOnly(s.now()), n)
}

func (s *ruleService) ListTasks(ctx context.Context, ruleID string) ([]domain.TaskInstance, error) {
	return s.tasks.ListByRule(ctx, ruleID)
}

func (s *ruleService) Describe(ctx context.Context, id string) (RuleDescription, error) {
	startedAt := time.Now()
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return RuleDescription{}, err
	}
	desc := RuleDescription{
		Rule:     rule,
		Schedule: recurrence.Describe(rule),
		Client:   resolveName(ctx, s.directory, DirectoryClient, rule.ClientID),
		Service:  resolveName(ctx, s.directory, DirectoryService, rule.ServiceID),
		Assignee: resolveName(ctx, s.directory, DirectoryMember, rule.AssignedTo),
		Creator:  resolveName(ctx, s.directory, DirectoryMember, rule.CreatedBy),
		Tag:      resolveName(ctx, s.directory, DirectoryTag, rule.TagID),
	}
	if rule.IsActive {
		// A rule that fails to expand still describes; it just has no dates.
		next, err := recurrence.Upcoming(rule, domain.DateOnly(s.now()), DefaultUpcoming)
		if err != nil {
			s.observe(ctx, "rule.describe.upcoming", startedAt, err, map[string]any{"rule_id": id})
		}
		desc.Next = next
	}
	return desc, nil
}

func (s *ruleService) observe(ctx context.Context, name string, startedAt time.Time, err error, fields map[string]any) {
	s.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
	})
}

func previewWindow(rule domain.RuleSpec, from, to time.Time) ([]domain.Occurrence, error) {
	w := recurrence.NewWindow(from, to)
	if w.To.Before(w.From) {
		return nil, fmt.Errorf("%w: to %s is before from %s", ErrInvalidWindow,
			w.To.Format(domain.DateLayout), w.From.Format(domain.DateLayout))
	}
	if domain.DaysBetween(w.From, w.To) > MaxPreviewDays {
		return nil, fmt.Errorf("%w: spans more than %d days", ErrInvalidWindow, MaxPreviewDays)
	}
	return recurrence.Preview(rule, w)
}
