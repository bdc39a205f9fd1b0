package cli

import (
	"fmt"
	"time"

	"github.com/alexanderramin/recur/internal/cli/formatter"
	"github.com/alexanderramin/recur/internal/domain"
	"github.com/spf13/cobra"
)

const defaultPreviewDays = 30

func newPreviewCmd(app *App) *cobra.Command {
	var (
		from, to time.Time
		next     int
	)

	cmd := &cobra.Command{
		Use:   "preview ID",
		Short: "Show upcoming occurrences without materializing them",
		Long: "Show a rule's occurrences in [--from, --to) with resolved due and target dates.\n" +
			"Defaults to the next 30 days. --next N lists the next N occurrences instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}

			var occs []domain.Occurrence
			if cmd.Flags().Changed("next") {
				occs, err = app.Rules.Upcoming(ctx, id, next)
			} else {
				start := app.today()
				if !from.IsZero() {
					start = from
				}
				end := domain.AddDays(start, defaultPreviewDays)
				if !to.IsZero() {
					end = to
				}
				occs, err = app.Rules.Preview(ctx, id, start, end)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatOccurrences(occs, app.today()))
			return nil
		},
	}

	cmd.Flags().Var(newDateValue(&from), "from", "Window start (YYYY-MM-DD, default today)")
	cmd.Flags().Var(newDateValue(&to), "to", "Window end, exclusive (YYYY-MM-DD, default from + 30 days)")
	cmd.Flags().IntVar(&next, "next", 5, "List the next N occurrences from today")
	cmd.MarkFlagsMutuallyExclusive("next", "from")
	cmd.MarkFlagsMutuallyExclusive("next", "to")

	return cmd
}

func newTasksCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks ID",
		Short: "List task instances materialized from a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			tasks, err := app.Rules.ListTasks(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTasks(tasks))
			return nil
		},
	}
}
