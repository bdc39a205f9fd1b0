package cli

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/recur/internal/cli/formatter"
	"github.com/spf13/cobra"
)

var errNoScheduler = errors.New("scheduler is not configured")

func newMaterializeCmd(app *App) *cobra.Command {
	var ruleID string

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Run the scheduler once, for every due rule or a single rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Scheduler == nil {
				return errNoScheduler
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if ruleID == "" {
				report, err := app.Scheduler.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprint(out, formatter.FormatRunReport(report))
				return nil
			}

			id, err := resolveRuleID(ctx, app, ruleID)
			if err != nil {
				return err
			}
			rr, err := app.Scheduler.RunRule(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(out, formatter.FormatRuleReport(rr))
			return nil
		},
	}

	cmd.Flags().StringVar(&ruleID, "rule", "", "Materialize only this rule (ignores backoff)")
	return cmd
}

func newResumeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Clear a rule's review flag and failure count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Scheduler == nil {
				return errNoScheduler
			}
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			cp, err := app.Scheduler.Resume(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resumed rule [%s]\n%s", formatter.TruncID(id), formatter.FormatCheckpoint(cp))
			return nil
		},
	}
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic scheduler and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Serve == nil {
				return errors.New("serve is not configured")
			}
			return app.Serve(cmd.Context())
		},
	}
}
