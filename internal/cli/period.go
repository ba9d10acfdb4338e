package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cycle-journal/internal/cycle"
)

// addPeriodCommands adds period log commands.
func addPeriodCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Period log",
		Long: `Log the days you had your period. Consecutive logged days form one
period; the start of the most recent one anchors the cycle.`,
	}

	cmd.AddCommand(newPeriodMarkCmd(app, true))
	cmd.AddCommand(newPeriodMarkCmd(app, false))
	cmd.AddCommand(newPeriodHistoryCmd(app))

	rootCmd.AddCommand(cmd)
}

func newPeriodMarkCmd(app *App, on bool) *cobra.Command {
	verb, short := "log", "Mark days as period days"
	if !on {
		verb, short = "unlog", "Clear the period flag of days"
	}
	return &cobra.Command{
		Use:     verb + " <date>...",
		Short:   short,
		Example: fmt.Sprintf("  cycle-journal period %s 2025-01-10 2025-01-11\n  cycle-journal period %s today", verb, verb),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			for _, arg := range args {
				d, err := parseDateArg("date", arg)
				if err != nil {
					return err
				}
				if _, err := app.Journal.LogPeriod(ctx, d, on); err != nil {
					return err
				}
			}

			anchor, err := app.Journal.Anchor(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"updated": len(args), "has_period": on, "anchor": anchor})
			}
			if on {
				output.Success("✓ Logged %d period day(s)", len(args))
			} else {
				output.Success("✓ Cleared %d day(s)", len(args))
			}
			output.Printf("  Cycle anchor: %s\n", anchor)
			return nil
		},
	}
}

func newPeriodHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List logged periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			h, err := app.Journal.PeriodHistory(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(h)
			}

			if len(h.Episodes) == 0 {
				output.Info("No periods logged yet.")
				return nil
			}
			table := NewTable(output, "Start", "End", "Days", "Cycle")
			for i, e := range h.Episodes {
				gap := "-"
				// episodes are most recent first
				if i+1 < len(h.Episodes) {
					gap = FormatDays(cycle.DaysBetween(h.Episodes[i+1].Start, e.Start))
				}
				table.AddRow(FormatDate(e.Start), FormatDate(e.End), fmt.Sprintf("%d", e.Days), gap)
			}
			table.Render()

			output.Println()
			output.Printf("  Configured cycle: %s\n", FormatDays(h.ConfiguredLength))
			if h.ObservedCycleLength > 0 {
				output.Printf("  Observed average: %.1f days\n", h.ObservedCycleLength)
			}
			output.Printf("  Anchor:           %s\n", h.Anchor)
			return nil
		},
	}
}
