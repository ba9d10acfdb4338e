package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cycle-journal/internal/security"
	"cycle-journal/internal/store"
)

// addJournalCommands adds journal entry commands.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Daily journal entries",
		Long:  "Review and annotate daily journal entries.",
	}

	cmd.AddCommand(newJournalShowCmd(app))
	cmd.AddCommand(newJournalListCmd(app))
	cmd.AddCommand(newJournalNoteCmd(app))

	rootCmd.AddCommand(cmd)
}

func newJournalShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show [date]",
		Short: "Show one day's entry and trades",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			date := app.Journal.Today()
			if len(args) == 1 {
				d, err := parseDateArg("date", args[0])
				if err != nil {
					return err
				}
				date = d
			}

			e, err := app.Journal.Entry(ctx, date)
			if err != nil {
				return err
			}
			pos, err := app.Journal.Position(ctx, date)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"entry": e, "position": pos})
			}

			output.Bold("Journal - %s", date.Format(app.Config.UI.DateFormat))
			output.Printf("  Cycle:   %s\n", FormatPosition(output, pos))
			if e.HasPeriod {
				output.Printf("  Period:  %s\n", output.Red("●"))
			}
			if e.Mood != "" {
				output.Printf("  Mood:    %s\n", e.Mood)
			}
			if e.Notes != "" {
				output.Printf("  Notes:   %s\n", e.Notes)
			}
			output.Println()

			if len(e.Trades) == 0 {
				output.Dim("No trades recorded.")
				return nil
			}
			renderTrades(output, app, e.Trades)
			return nil
		},
	}
}

func newJournalListCmd(app *App) *cobra.Command {
	var (
		from, to   string
		periodOnly bool
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			filter := store.EntryFilter{PeriodOnly: periodOnly, Limit: limit}
			var err error
			if filter.From, err = optionalDate("from", from); err != nil {
				return err
			}
			if filter.To, err = optionalDate("to", to); err != nil {
				return err
			}

			entries, err := app.Journal.Entries(ctx, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Info("No journal entries.")
				return nil
			}

			table := NewTable(output, "Date", "Period", "Trades", "Mood", "Notes")
			for _, e := range entries {
				period := ""
				if e.HasPeriod {
					period = output.Red("●")
				}
				table.AddRow(FormatDate(e.Date), period, strconv.Itoa(len(e.Trades)), e.Mood, TruncateString(e.Notes, 40))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&periodOnly, "period", false, "only days with a logged period")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries")
	return cmd
}

func newJournalNoteCmd(app *App) *cobra.Command {
	var notes, mood string
	cmd := &cobra.Command{
		Use:     "note <date>",
		Short:   "Set the notes and mood of a day",
		Example: `  cycle-journal journal note today --notes "Skipped the open, tired" --mood tired`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			d, err := parseDateArg("date", args[0])
			if err != nil {
				return err
			}
			v := security.NewInputValidator(false)
			notes = security.SanitizeText(notes)
			if err := v.ValidateText("notes", notes, security.MaxNotesLen); err != nil {
				return err
			}
			mood = security.SanitizeText(mood)
			if err := v.ValidateLabel("mood", mood); err != nil {
				return err
			}

			e, err := app.Journal.Annotate(ctx, d, notes, mood)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(e)
			}
			output.Success("✓ Saved journal entry for %s", FormatDate(d))
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&mood, "mood", "", "one-word mood")
	return cmd
}

// optionalDate parses a flag value that may be empty.
func optionalDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseDateArg(field, s)
}
