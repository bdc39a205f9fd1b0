package cli

import (
	"fmt"

	"github.com/alexanderramin/recur/internal/cli/formatter"
	"github.com/alexanderramin/recur/internal/domain"
	"github.com/alexanderramin/recur/internal/recurrence"
	"github.com/spf13/cobra"
)

func newRuleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage recurring task rules",
	}

	cmd.AddCommand(
		newRuleAddCmd(app),
		newRuleListCmd(app),
		newRuleShowCmd(app),
		newRuleUpdateCmd(app),
		newRuleActiveCmd(app, "activate", true),
		newRuleActiveCmd(app, "deactivate", false),
		newRuleRemoveCmd(app),
	)

	return cmd
}

func newRuleAddCmd(app *App) *cobra.Command {
	var flags ruleFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a recurring rule",
		Example: `  recur rule add --title "Payroll" --frequency weekly --weekday fri --start 2025-01-03
  recur rule add --title "Board pack" --frequency monthly --week-of-month 1 --weekday wed --start 2025-01-01 --due-offset -2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := domain.RuleDraft{Interval: 1}
			flags.apply(&d, cmd.Flags())

			rule, err := app.Rules.Create(cmd.Context(), d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created rule %s [%s]: %s\n",
				rule.Title, formatter.TruncID(rule.ID), recurrence.Describe(rule))
			return nil
		},
	}

	flags.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("frequency")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newRuleListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recurring rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := app.Rules.List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatRuleList(rules))
			return nil
		},
	}
}

func newRuleShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a rule, its next occurrences and scheduler state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			desc, err := app.Rules.Describe(ctx, id)
			if err != nil {
				return err
			}
			var cp *domain.Checkpoint
			if app.Scheduler != nil {
				status, err := app.Scheduler.Status(ctx, id)
				if err != nil {
					return err
				}
				cp = &status
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatRuleDetail(desc, cp, app.today()))
			return nil
		},
	}
}

func newRuleUpdateCmd(app *App) *cobra.Command {
	var flags ruleFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a rule; tasks already materialized keep their dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			current, err := app.Rules.Get(ctx, id)
			if err != nil {
				return err
			}
			d := current.Draft()
			flags.apply(&d, cmd.Flags())

			rule, err := app.Rules.Update(ctx, id, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated rule %s [%s] to version %d: %s\n",
				rule.Title, formatter.TruncID(rule.ID), rule.Version, recurrence.Describe(rule))
			return nil
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func newRuleActiveCmd(app *App, use string, active bool) *cobra.Command {
	short := "Resume materializing a rule"
	if !active {
		short = "Stop materializing a rule; existing tasks are kept"
	}
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			rule, err := app.Rules.SetActive(ctx, id, active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %s [%s] is now %s\n",
				rule.Title, formatter.TruncID(rule.ID), formatter.ActiveIndicator(rule.IsActive))
			return nil
		},
	}
}

func newRuleRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Delete a rule template; its materialized tasks are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			if err := app.Rules.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed rule [%s]. Materialized tasks were kept.\n", formatter.TruncID(id))
			return nil
		},
	}
}
