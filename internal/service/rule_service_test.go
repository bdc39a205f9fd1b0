package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/recurrence"
	"github.com/alexanderramin/recur/internal/repository"
	"github.com/alexanderramin/recur/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []UseCaseEvent
}

func (o *recordingObserver) ObserveUseCase(_ context.Context, event UseCaseEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) last() UseCaseEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events[len(o.events)-1]
}

type ruleFixture struct {
	svc      RuleService
	rules    *repository.SQLiteRuleRepo
	tasks    *repository.SQLiteTaskStore
	observer *recordingObserver
	clock    *testutil.Clock
}

func setupRuleService(t *testing.T, dir Directory) ruleFixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	tasks := repository.NewSQLiteTaskStore(database)
	observer := &recordingObserver{}
	clock := testutil.NewClock(time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC))

	rules := repository.NewSQLiteRuleRepo(database)
	svc := NewRuleService(rules, tasks, dir, observer)
	svc.(*ruleService).now = clock.Now
	return ruleFixture{svc: svc, rules: rules, tasks: tasks, observer: observer, clock: clock}
}

func intp(v int) *int { return &v }

func mondayDraft() domain.RuleDraft {
	return domain.RuleDraft{
		Title:            "Weekly payroll",
		Frequency:        "weekly",
		Interval:         1,
		DayOfWeek:        intp(0),
		StartDate:        domain.Date(2025, time.January, 6),
		DueDateOffset:    -2,
		TargetDateOffset: 3,
		CreatedBy:        "member-1",
		ClientID:         "client-1",
	}
}

func TestRuleService_Create(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule, err := f.svc.Create(ctx, mondayDraft())
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID, "UUID should be generated")
	assert.Equal(t, 1, rule.Version)
	assert.True(t, rule.IsActive, "rules default to active")
	assert.Equal(t, domain.DefaultPriority, rule.Priority)

	fetched, err := f.svc.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weekly payroll", fetched.Title)
	assert.Equal(t, domain.FrequencyWeekly, fetched.Frequency.Kind())

	ev := f.observer.last()
	assert.Equal(t, "rule.create", ev.Name)
	assert.True(t, ev.Success)
	assert.Equal(t, rule.ID, ev.Fields["rule_id"])
}

func TestRuleService_Create_Invalid(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(d *domain.RuleDraft)
		field string
	}{
		{"missing title", func(d *domain.RuleDraft) { d.Title = " " }, "title"},
		{"zero interval", func(d *domain.RuleDraft) { d.Interval = 0 }, "interval"},
		{"weekly without day", func(d *domain.RuleDraft) { d.DayOfWeek = nil }, "day_of_week"},
		{"weekly with day of month", func(d *domain.RuleDraft) { d.DayOfMonth = intp(3) }, "day_of_month"},
		{"unknown frequency", func(d *domain.RuleDraft) { d.Frequency = "hourly" }, "frequency"},
		{"bad priority", func(d *domain.RuleDraft) { d.Priority = "P9" }, "priority"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := mondayDraft()
			tc.edit(&d)
			_, err := f.svc.Create(ctx, d)
			require.ErrorIs(t, err, domain.ErrInvalidRule)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
			assert.False(t, f.observer.last().Success)
		})
	}

	rules, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules, "invalid drafts must not be stored")
}

func TestRuleService_Update_BumpsVersion(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule, err := f.svc.Create(ctx, mondayDraft())
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	d := rule.Draft()
	d.Title = "Payroll run"
	d.DayOfWeek = intp(4)
	d.CreatedBy = "someone-else"

	updated, err := f.svc.Update(ctx, rule.ID, d)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "member-1", updated.CreatedBy, "creator is immutable")
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	fetched, err := f.svc.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Payroll run", fetched.Title)
	assert.Equal(t, 2, fetched.Version)
	assert.Equal(t, domain.Friday, fetched.Frequency.(domain.Weekly).Day())
}

func TestRuleService_Update_InvalidKeepsStoredRule(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule, err := f.svc.Create(ctx, mondayDraft())
	require.NoError(t, err)

	d := rule.Draft()
	d.Frequency = "monthly"
	_, err = f.svc.Update(ctx, rule.ID, d)
	require.ErrorIs(t, err, domain.ErrInvalidRule)

	fetched, err := f.svc.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.Version)
	assert.Equal(t, domain.FrequencyWeekly, fetched.Frequency.Kind())
}

func TestRuleService_NotFound(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.svc.Update(ctx, "missing", mondayDraft())
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.svc.SetActive(ctx, "missing", false)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, "missing"), repository.ErrNotFound)
	_, err = f.svc.Preview(ctx, "missing", domain.Date(2025, 1, 1), domain.Date(2025, 2, 1))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.svc.Describe(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRuleService_SetActive(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule, err := f.svc.Create(ctx, mondayDraft())
	require.NoError(t, err)

	off, err := f.svc.SetActive(ctx, rule.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	assert.Equal(t, 2, off.Version)

	same, err := f.svc.SetActive(ctx, rule.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, same.Version, "no-op toggle keeps the version")

	on, err := f.svc.SetActive(ctx, rule.ID, true)
	require.NoError(t, err)
	assert.True(t, on.IsActive)
	assert.Equal(t, 3, on.Version)
}

func TestRuleService_Delete_KeepsTasks(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule, err := f.svc.Create(ctx, mondayDraft())
	require.NoError(t, err)
	_, err = f.tasks.CreateTaskInstance(ctx, testutil.NewTestTask(rule.ID, domain.Date(2025, time.January, 6)))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, rule.ID))

	_, err = f.svc.Get(ctx, rule.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	tasks, err := f.svc.ListTasks(ctx, rule.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "materialized tasks survive template deletion")
}

func TestRuleService_Preview(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule, err := f.svc.Create(ctx, mondayDraft())
	require.NoError(t, err)

	got, err := f.svc.Preview(ctx, rule.ID, domain.Date(2025, time.January, 1), domain.Date(2025, time.January, 20))
	require.NoError(t, err)
	require.Len(t, got, 2, "window end is exclusive")
	assert.Equal(t, domain.Date(2025, time.January, 6), got[0].OccurrenceDate)
	assert.Equal(t, domain.Date(2025, time.January, 4), got[0].DueDate)
	assert.Equal(t, domain.Date(2025, time.January, 9), got[0].TargetDate)
	assert.Equal(t, domain.Date(2025, time.January, 13), got[1].OccurrenceDate)

	tasks, err := f.svc.ListTasks(ctx, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks, "preview must not materialize")
}

func TestRuleService_Preview_InvalidWindow(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule, err := f.svc.Create(ctx, mondayDraft())
	require.NoError(t, err)

	_, err = f.svc.Preview(ctx, rule.ID, domain.Date(2025, time.February, 1), domain.Date(2025, time.January, 1))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = f.svc.Preview(ctx, rule.ID, domain.Date(2025, time.January, 1), domain.Date(2045, time.January, 1))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	empty, err := f.svc.Preview(ctx, rule.ID, domain.Date(2025, time.January, 6), domain.Date(2025, time.January, 6))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRuleService_PreviewDraft(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	d := domain.RuleDraft{
		Title:      "Month end close",
		Frequency:  "monthly",
		Interval:   1,
		DayOfMonth: intp(31),
		StartDate:  domain.Date(2025, time.January, 1),
	}
	got, err := f.svc.PreviewDraft(ctx, d, domain.Date(2025, time.January, 1), domain.Date(2025, time.May, 1))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, domain.Date(2025, time.February, 28), got[1].OccurrenceDate)
	assert.Equal(t, domain.Date(2025, time.April, 30), got[3].OccurrenceDate)

	d.DayOfMonth = intp(32)
	_, err = f.svc.PreviewDraft(ctx, d, domain.Date(2025, time.January, 1), domain.Date(2025, time.May, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestRuleService_Upcoming(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule, err := f.svc.Create(ctx, mondayDraft())
	require.NoError(t, err)

	got, err := f.svc.Upcoming(ctx, rule.ID, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.Date(2025, time.March, 3), got[0].OccurrenceDate)
	assert.Equal(t, domain.Date(2025, time.March, 10), got[1].OccurrenceDate)
	assert.Equal(t, domain.Date(2025, time.March, 17), got[2].OccurrenceDate)
}

func TestRuleService_Describe(t *testing.T) {
	dir := StaticDirectory{
		DirectoryClient: {"client-1": "Acme Ltd"},
		DirectoryMember: {"member-1": "Dana"},
	}
	f := setupRuleService(t, dir)
	ctx := context.Background()

	d := mondayDraft()
	d.ServiceID = "svc-unknown"
	rule, err := f.svc.Create(ctx, d)
	require.NoError(t, err)

	desc, err := f.svc.Describe(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Every week on Monday", desc.Schedule)
	assert.Equal(t, "Acme Ltd", desc.Client)
	assert.Equal(t, "Dana", desc.Creator)
	assert.Equal(t, "svc-unknown", desc.Service, "unknown ids fall back to the raw id")
	assert.Empty(t, desc.Assignee)
	assert.Len(t, desc.Next, DefaultUpcoming)

	_, err = f.svc.SetActive(ctx, rule.ID, false)
	require.NoError(t, err)
	desc, err = f.svc.Describe(ctx, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, desc.Next, "inactive rules have no upcoming dates")
}

func TestRuleService_Describe_ReportsExpansionFailure(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule := testutil.NewTestRule("Corrupt row")
	rule.Frequency = domain.RestoreFrequency(domain.FrequencyFields{Kind: domain.FrequencyDaily, Interval: 0})
	require.NoError(t, f.rules.Create(ctx, rule))

	desc, err := f.svc.Describe(ctx, rule.ID)
	require.NoError(t, err)
	assert.Empty(t, desc.Next)

	event := f.observer.last()
	assert.Equal(t, "rule.describe.upcoming", event.Name)
	assert.False(t, event.Success)
	assert.ErrorIs(t, event.Err, recurrence.ErrInvalidFrequency)
	assert.Equal(t, rule.ID, event.Fields["rule_id"])
}

func TestRuleService_Describe_QuietOnSuccess(t *testing.T) {
	f := setupRuleService(t, nil)
	ctx := context.Background()

	rule, err := f.svc.Create(ctx, mondayDraft())
	require.NoError(t, err)
	before := len(f.observer.events)

	_, err = f.svc.Describe(ctx, rule.ID)
	require.NoError(t, err)
	assert.Len(t, f.observer.events, before)
}
