package cli

import (
	"context"
	"time"

	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/materialize"
	"github.com/alexanderramin/recur/internal/service"
	"github.com/spf13/cobra"
)

// Materializer is the part of the scheduler the CLI drives.
type Materializer interface {
	RunOnce(ctx context.Context) (materialize.Report, error)
	RunRule(ctx context.Context, ruleID string) (materialize.RuleReport, error)
	Resume(ctx context.Context, ruleID string) (domain.Checkpoint, error)
	Status(ctx context.Context, ruleID string) (domain.Checkpoint, error)
}

// App holds references to everything CLI commands use.
type App struct {
	Rules     service.RuleService
	Scheduler Materializer
	// Serve runs the periodic scheduler and the HTTP API until ctx is done.
	Serve func(ctx context.Context) error
	Now   func() time.Time
}

func (a *App) today() time.Time {
	if a.Now == nil {
		return domain.DateOnly(time.Now())
	}
	return domain.DateOnly(a.Now())
}

// NewRootCmd creates the top-level "recur" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "recur",
		Short:         "Recurring task rules and their materialization",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRuleCmd(app),
		newPreviewCmd(app),
		newTasksCmd(app),
		newMaterializeCmd(app),
		newResumeCmd(app),
		newServeCmd(app),
	)

	return root
}
