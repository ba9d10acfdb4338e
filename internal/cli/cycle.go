package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
)

// parseDateArg parses a YYYY-MM-DD argument. "today" and "yesterday" are
// accepted too.
func parseDateArg(field, s string) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return cycle.DateOf(time.Now()), nil
	case "yesterday":
		return cycle.AddDays(cycle.DateOf(time.Now()), -1), nil
	}
	d, err := cycle.ParseDate(s)
	if err != nil {
		return time.Time{}, errors.NewValidationError(field, s, "must be YYYY-MM-DD")
	}
	return d, nil
}

// addCycleCommands adds cycle position commands.
func addCycleCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Cycle day and phase",
		Long:  "Show where a date falls in the menstrual cycle.",
	}

	cmd.AddCommand(newCycleTodayCmd(app))
	cmd.AddCommand(newCycleOnCmd(app))
	cmd.AddCommand(newCycleCalendarCmd(app))
	cmd.AddCommand(newCycleOutlookCmd(app))
	cmd.AddCommand(newCycleAnchorCmd(app))

	rootCmd.AddCommand(cmd)
}

func showPosition(cmd *cobra.Command, app *App, date time.Time) error {
	output := newAppOutput(cmd, app)
	ctx, cancel := app.context(cmd)
	defer cancel()

	pos, err := app.Journal.Position(ctx, date)
	if err != nil {
		return err
	}
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{"date": FormatDate(date), "position": pos})
	}
	output.Printf("%s  %s\n", date.Format(app.Config.UI.DateFormat), FormatPosition(output, pos))
	if !pos.Known {
		output.Dim("No period logged yet. Use 'period log <date>' or 'config set-cycle --fallback <date>'.")
	}
	return nil
}

func newCycleTodayCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's cycle day and phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPosition(cmd, app, app.Journal.Today())
		},
	}
}

func newCycleOnCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "on <date>",
		Short:   "Show the cycle day and phase of a date",
		Example: "  cycle-journal cycle on 2025-01-14",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateArg("date", args[0])
			if err != nil {
				return err
			}
			return showPosition(cmd, app, d)
		},
	}
}

func newCycleCalendarCmd(app *App) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show cycle days and phases for a range of dates",
		Long:  "Show cycle days and phases for a range of dates. Defaults to the next four weeks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			start := app.Journal.Today()
			if from != "" {
				d, err := parseDateArg("from", from)
				if err != nil {
					return err
				}
				start = d
			}
			end := cycle.AddDays(start, 27)
			if to != "" {
				d, err := parseDateArg("to", to)
				if err != nil {
					return err
				}
				end = d
			}

			days, err := app.Journal.Calendar(ctx, start, end)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(days)
			}

			log, err := app.Journal.PeriodLog(ctx)
			if err != nil {
				return err
			}
			table := NewTable(output, "Date", "Day", "Phase", "Logged")
			for _, d := range days {
				day, logged := "-", ""
				if d.Position.Known {
					day = strconv.Itoa(d.Position.CycleDay)
				}
				if log.Contains(d.Date) {
					logged = output.Red("●")
				}
				table.AddRow(d.Date.Format(app.Config.UI.DateFormat), day, output.Phase(d.Position.Phase), logged)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date (default today)")
	cmd.Flags().StringVar(&to, "to", "", "last date (default four weeks after --from)")
	return cmd
}

func newCycleOutlookCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "outlook",
		Short: "Show the current phase and the next period",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			o, err := app.Journal.Outlook(ctx, app.Journal.Today())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(o)
			}

			output.Bold("Cycle Outlook - %s", o.Date.Format(app.Config.UI.DateFormat))
			output.Printf("  Today:           %s\n", FormatPosition(output, o.Position))
			if !o.Position.Known {
				output.Dim("  No period logged yet.")
				return nil
			}
			output.Printf("  Phase Ends In:   %s\n", FormatDays(o.PhaseDaysRemaining))
			output.Printf("  Next Phase:      %s\n", output.Phase(o.NextPhase))
			output.Printf("  Next Period:     %s (in %s)\n", o.NextPeriodStart.Format(app.Config.UI.DateFormat), FormatDays(o.DaysUntilNextPeriod))
			output.Printf("  Anchor:          %s\n", o.Anchor)
			return nil
		},
	}
}

func newCycleAnchorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "anchor",
		Short: "Show the period start cycle days count from",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			a, err := app.Journal.Anchor(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(a)
			}
			if !a.Valid() {
				output.Warning("No anchor: log a period day or set a fallback period start.")
				return nil
			}
			output.Printf("%s (%s)\n", FormatDate(a.Start), a.Source)
			return nil
		},
	}
}
