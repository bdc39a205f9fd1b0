package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/lease"
	"github.com/alexanderramin/recur/internal/materialize"
	"github.com/alexanderramin/recur/internal/repository"
	"github.com/alexanderramin/recur/internal/service"
	"github.com/alexanderramin/recur/internal/testutil"
)

// testApp wires a full App backed by an in-memory DB for CLI integration
// tests. The scheduler's clock is fixed at 2025-01-01 09:00 UTC.
func testApp(t *testing.T) *App {
	t.Helper()
	conn := testutil.NewTestDB(t)
	clock := testutil.NewClock(time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC))

	rules := repository.NewSQLiteRuleRepo(conn)
	tasks := repository.NewSQLiteTaskStore(conn)
	sched := materialize.NewScheduler(materialize.Deps{
		Rules:       rules,
		Checkpoints: repository.NewSQLiteCheckpointRepo(conn),
		UoW:         testutil.NewTestUoW(conn),
		Locker:      lease.NewSQLiteLocker(conn, clock.Now),
		Logger:      zerolog.Nop(),
		Now:         clock.Now,
	}, materialize.Config{LookaheadDays: 30, WorkerID: "cli-test"})

	return &App{
		Rules:     service.NewRuleService(rules, tasks, service.StaticDirectory{}),
		Scheduler: sched,
		Now:       clock.Now,
	}
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// seedWeeklyRule creates the Monday timesheet rule and returns its ID.
func seedWeeklyRule(t *testing.T, app *App) string {
	t.Helper()
	_, err := executeCmd(t, app, "rule", "add",
		"--title", "Timesheets",
		"--frequency", "weekly",
		"--weekday", "mon",
		"--start", "2025-01-06",
		"--due-offset", "-2",
		"--target-offset", "3",
		"--client", "client-1",
	)
	require.NoError(t, err)

	rules, err := app.Rules.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	return rules[0].ID
}

func TestRuleAdd(t *testing.T) {
	app := testApp(t)

	out, err := executeCmd(t, app, "rule", "add",
		"--title", "Board pack",
		"--frequency", "monthly",
		"--week-of-month", "1",
		"--weekday", "wednesday",
		"--start", "2025-01-01",
		"--priority", "P2",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Created rule Board pack")
	assert.Contains(t, out, "Monthly on the first Wednesday")

	rules, err := app.Rules.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, domain.PriorityP2, rules[0].Priority)
	assert.True(t, rules[0].IsActive)
}

func TestRuleAdd_Errors(t *testing.T) {
	app := testApp(t)

	_, err := executeCmd(t, app, "rule", "add", "--title", "x", "--frequency", "weekly")
	require.Error(t, err, "start is required")

	_, err = executeCmd(t, app, "rule", "add", "--title", "x", "--frequency", "weekly", "--start", "2025-13-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")

	_, err = executeCmd(t, app, "rule", "add", "--title", "x", "--frequency", "weekly", "--start", "2025-01-01",
		"--weekday", "someday")
	require.Error(t, err)

	_, err = executeCmd(t, app, "rule", "add", "--title", "x", "--frequency", "weekly", "--start", "2025-01-01",
		"--day-of-month", "3")
	require.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestRuleListAndShow(t *testing.T) {
	app := testApp(t)
	id := seedWeeklyRule(t, app)

	out, err := executeCmd(t, app, "rule", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Timesheets")
	assert.Contains(t, out, "Every week on Monday")

	// Prefix resolution, as printed by `rule list`.
	out, err = executeCmd(t, app, "rule", "show", id[:8])
	require.NoError(t, err)
	assert.Contains(t, out, "TIMESHEETS")
	assert.Contains(t, out, "due -2, target +3 days")
	assert.Contains(t, out, "client-1")
	assert.Contains(t, out, "last materialized")
}

func TestRuleUpdate_ChangesOnlyGivenFlags(t *testing.T) {
	app := testApp(t)
	id := seedWeeklyRule(t, app)

	out, err := executeCmd(t, app, "rule", "update", id, "--frequency", "monthly", "--day-of-month", "31")
	require.NoError(t, err)
	assert.Contains(t, out, "version 2")

	rule, err := app.Rules.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Timesheets", rule.Title)
	assert.Equal(t, -2, rule.DueDateOffset)
	assert.Equal(t, domain.FrequencyMonthly, rule.Frequency.Kind())
	assert.Nil(t, domain.Fields(rule.Frequency).DayOfWeek, "old weekly anchor is dropped")
}

func TestRuleActivateDeactivateRemove(t *testing.T) {
	app := testApp(t)
	id := seedWeeklyRule(t, app)

	out, err := executeCmd(t, app, "rule", "deactivate", id)
	require.NoError(t, err)
	assert.Contains(t, out, "paused")

	_, err = executeCmd(t, app, "materialize", "--rule", id)
	require.ErrorIs(t, err, materialize.ErrRuleInactive)

	out, err = executeCmd(t, app, "rule", "activate", id)
	require.NoError(t, err)
	assert.Contains(t, out, "active")

	out, err = executeCmd(t, app, "rule", "remove", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Materialized tasks were kept")

	_, err = executeCmd(t, app, "rule", "show", id)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPreview(t *testing.T) {
	app := testApp(t)
	id := seedWeeklyRule(t, app)

	out, err := executeCmd(t, app, "preview", id, "--from", "2025-01-01", "--to", "2025-01-20")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-01-06")
	assert.Contains(t, out, "2025-01-04", "due date resolved")
	assert.Contains(t, out, "2025-01-13")
	assert.NotContains(t, out, "2025-01-20", "window end is exclusive")

	// Default window starts at the app's today (2025-01-01).
	out, err = executeCmd(t, app, "preview", id)
	require.NoError(t, err)
	assert.Contains(t, out, "2025-01-27")

	_, err = executeCmd(t, app, "preview", id, "--next", "3", "--from", "2025-01-01")
	require.Error(t, err, "--next and --from are exclusive")

	out, err = executeCmd(t, app, "tasks", id)
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks", "preview never materializes")
}

func TestMaterializeAndTasks(t *testing.T) {
	app := testApp(t)
	id := seedWeeklyRule(t, app)

	out, err := executeCmd(t, app, "materialize")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rules")
	assert.Contains(t, out, "4 tasks created")

	out, err = executeCmd(t, app, "tasks", id)
	require.NoError(t, err)
	for _, d := range []string{"2025-01-06", "2025-01-13", "2025-01-20", "2025-01-27"} {
		assert.Contains(t, out, d)
	}

	out, err = executeCmd(t, app, "materialize", "--rule", id)
	require.NoError(t, err)
	assert.Contains(t, out, "materialized")
	assert.Contains(t, out, "0 created")

	out, err = executeCmd(t, app, "resume", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Resumed rule")
	assert.Contains(t, out, "2025-01-27")
}

func TestServeWithoutWiring(t *testing.T) {
	_, err := executeCmd(t, &App{}, "serve")
	require.Error(t, err)

	_, err = executeCmd(t, &App{}, "materialize")
	require.ErrorIs(t, err, errNoScheduler)
}

func TestServeRunsConfiguredLoop(t *testing.T) {
	called := false
	app := &App{Serve: func(ctx context.Context) error {
		called = true
		return nil
	}}
	_, err := executeCmd(t, app, "serve")
	require.NoError(t, err)
	assert.True(t, called)
}
