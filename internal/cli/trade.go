package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/ingest"
	"cycle-journal/internal/logging"
	"cycle-journal/internal/models"
	"cycle-journal/internal/store"
)

// addTradeCommands adds trade journal commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Record and review trades",
		Long: `Record trades in the journal. Each trade is tagged with the cycle day
and phase of its date when it is saved.`,
	}

	cmd.AddCommand(newTradeAddCmd(app))
	cmd.AddCommand(newTradeCloseCmd(app))
	cmd.AddCommand(newTradeShowCmd(app))
	cmd.AddCommand(newTradeRemoveCmd(app))
	cmd.AddCommand(newTradeListCmd(app))
	cmd.AddCommand(newTradeImportCmd(app))
	cmd.AddCommand(newTradeExportCmd(app))

	rootCmd.AddCommand(cmd)
}

func newTradeAddCmd(app *App) *cobra.Command {
	var raw ingest.RawTrade
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a trade",
		Long: `Add a trade. Leave --result unset for a trade that is still open and
close it later with 'trade close'.`,
		Example: `  cycle-journal trade add --instrument EURUSD --direction long --result win --pnl 120.50 --r 1.5
  cycle-journal trade add --date 2025-01-14 --instrument NAS100 --strategy breakout --direction short`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			if raw.Date == "" {
				raw.Date = "today"
			}
			d, err := parseDateArg("date", raw.Date)
			if err != nil {
				return err
			}
			raw.Date = cycle.FormatDate(d)

			t, err := ingest.ParseTrade(raw)
			if err != nil {
				return err
			}
			if err := app.Journal.AddTrade(ctx, &t); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(t)
			}
			output.Success("✓ Added trade %s", t.ID)
			printTrade(output, app, t)
			return nil
		},
	}
	cmd.Flags().StringVar(&raw.Date, "date", "", "trade date (default today)")
	cmd.Flags().StringVar(&raw.Instrument, "instrument", "", "instrument, e.g. EURUSD")
	cmd.Flags().StringVar(&raw.Strategy, "strategy", "", "strategy label")
	cmd.Flags().StringVar(&raw.Direction, "direction", "long", "long or short")
	cmd.Flags().StringVar(&raw.Result, "result", "", "win, loss or breakeven (empty while open)")
	cmd.Flags().StringVar(&raw.PnL, "pnl", "", "profit or loss in account currency")
	cmd.Flags().StringVar(&raw.RMultiple, "r", "", "R multiple")
	cmd.Flags().StringVar(&raw.Notes, "notes", "", "free-form notes")
	return cmd
}

func newTradeCloseCmd(app *App) *cobra.Command {
	var result, pnl, r string
	cmd := &cobra.Command{
		Use:     "close <id>",
		Short:   "Record the outcome of an open trade",
		Example: "  cycle-journal trade close 01JH5K3V7R --result loss --pnl -45 --r -1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			res, err := ingest.ParseResult(result)
			if err != nil {
				return err
			}
			p, err := ingest.ParseAmount("pnl", pnl)
			if err != nil {
				return err
			}
			rm, err := ingest.ParseAmount("r_multiple", r)
			if err != nil {
				return err
			}

			t, err := app.Journal.CloseTrade(ctx, args[0], res, p, rm)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(t)
			}
			output.Success("✓ Closed trade %s", t.ID)
			printTrade(output, app, *t)
			return nil
		},
	}
	cmd.Flags().StringVar(&result, "result", "", "win, loss or breakeven")
	cmd.Flags().StringVar(&pnl, "pnl", "", "profit or loss")
	cmd.Flags().StringVar(&r, "r", "", "R multiple")
	cmd.MarkFlagRequired("result")
	return cmd
}

func newTradeShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			t, err := app.Journal.Trade(ctx, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(t)
			}
			printTrade(output, app, *t)

			view, err := app.Journal.TradePhases(ctx, t.ID)
			if err != nil {
				return err
			}
			if view.Stale {
				output.Warning("Cached cycle tag is out of date: now day %d, %s. Run 'config refresh-phases' to update.",
					view.Current.CycleDay, view.Current.Phase.Label())
			}
			return nil
		},
	}
}

func newTradeRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete trades",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			for _, id := range args {
				if err := app.Journal.DeleteTrade(ctx, id); err != nil {
					return err
				}
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"deleted": args})
			}
			output.Success("✓ Deleted %d trade(s)", len(args))
			return nil
		},
	}
}

// tradeFilterFlags binds the trade filter flags shared by list, export and
// stats.
type tradeFilterFlags struct {
	from, to   string
	instrument string
	strategy   string
	closedOnly bool
	limit      int
}

func (f *tradeFilterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first trade date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "last trade date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.instrument, "instrument", "", "only this instrument")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "only this strategy")
}

func (f *tradeFilterFlags) filter() (store.TradeFilter, error) {
	filter := store.TradeFilter{
		Instrument: strings.TrimSpace(f.instrument),
		Strategy:   strings.TrimSpace(f.strategy),
		ClosedOnly: f.closedOnly,
		Limit:      f.limit,
	}
	var err error
	if filter.From, err = optionalDate("from", f.from); err != nil {
		return filter, err
	}
	if filter.To, err = optionalDate("to", f.to); err != nil {
		return filter, err
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, errors.NewValidationError("to", f.to, "must not be before --from")
	}
	return filter, nil
}

func newTradeListCmd(app *App) *cobra.Command {
	var flags tradeFilterFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			filter, err := flags.filter()
			if err != nil {
				return err
			}
			trades, err := app.Journal.Trades(ctx, filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Info("No trades found.")
				return nil
			}
			renderTrades(output, app, trades)
			output.Printf("\n%d trade(s)\n", len(trades))
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&flags.closedOnly, "closed", false, "only closed trades")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "maximum trades")
	return cmd
}

func newTradeImportCmd(app *App) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import trades from a CSV file",
		Long: `Import trades from a CSV file with a header row. Recognised columns:
id, date, instrument, strategy, direction, result, pnl, r_multiple,
cycle_phase and notes. Invalid rows are reported and skipped; trades whose
id already exists are skipped.`,
		Example: "  cycle-journal trade import trades.csv",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "failed to open import file")
			}
			defer f.Close()

			trades, rejected, err := ingest.ReadCSV(f)
			if err != nil {
				return err
			}

			result := &struct {
				Imported   int      `json:"imported"`
				Duplicates []string `json:"duplicates,omitempty"`
				Rejected   []string `json:"rejected,omitempty"`
				DryRun     bool     `json:"dry_run,omitempty"`
			}{DryRun: dryRun}
			for _, r := range rejected {
				result.Rejected = append(result.Rejected, r.Error())
			}
			if dryRun {
				result.Imported = len(trades)
			} else {
				res, err := app.Journal.ImportTrades(ctx, trades)
				if err != nil {
					return err
				}
				result.Imported, result.Duplicates = res.Imported, res.Duplicates
			}
			logger := logging.FromContext(ctx)
			logger.Info().
				Str("file", args[0]).
				Int("imported", result.Imported).
				Int("duplicates", len(result.Duplicates)).
				Int("rejected", len(result.Rejected)).
				Bool("dry_run", dryRun).
				Msg("CSV import finished")

			if output.IsJSON() {
				return output.JSON(result)
			}
			if dryRun {
				output.Info("%d trade(s) would be imported", result.Imported)
			} else {
				output.Success("✓ Imported %d trade(s)", result.Imported)
			}
			if len(result.Duplicates) > 0 {
				output.Warning("Skipped %d existing trade(s)", len(result.Duplicates))
			}
			for _, r := range result.Rejected {
				output.Error("  %s", r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate without saving")
	return cmd
}

func newTradeExportCmd(app *App) *cobra.Command {
	var (
		flags  tradeFilterFlags
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Export trades as CSV, JSON or YAML",
		Example: "  cycle-journal trade export --format csv --out trades.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			filter, err := flags.filter()
			if err != nil {
				return err
			}
			trades, err := app.Journal.Trades(ctx, filter)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrap(err, "failed to create export file")
				}
				defer f.Close()
				w = f
			}
			if err := writeTrades(w, strings.ToLower(format), trades); err != nil {
				return err
			}
			if out != "" {
				output.Success("✓ Exported %d trade(s) to %s", len(trades), out)
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "csv, json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func writeTrades(w io.Writer, format string, trades []models.TradeRecord) error {
	switch format {
	case "csv":
		return ingest.WriteCSV(w, trades)
	case "json":
		o := &Output{writer: w}
		return o.JSON(trades)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(trades); err != nil {
			return errors.Wrap(err, "failed to write yaml")
		}
		return enc.Close()
	}
	return errors.NewValidationError("format", format, "must be csv, json or yaml")
}

// renderTrades prints trades as a table.
func renderTrades(output *Output, app *App, trades []models.TradeRecord) {
	table := NewTable(output, "ID", "Date", "Instrument", "Strategy", "Dir", "Result", "P&L", "R", "Cycle")
	for _, t := range trades {
		table.AddRow(
			t.ID,
			FormatDate(t.Date),
			t.Instrument,
			TruncateString(t.Strategy, 16),
			string(t.Direction),
			formatResult(output, t.Result),
			output.FormatOptionalPnL(t.PnL),
			FormatOptionalR(t.RMultiple),
			cachedCycle(output, t),
		)
	}
	table.Render()
}

func printTrade(output *Output, app *App, t models.TradeRecord) {
	output.Printf("  ID:          %s\n", t.ID)
	output.Printf("  Date:        %s\n", t.Date.Format(app.Config.UI.DateFormat))
	if t.Instrument != "" {
		output.Printf("  Instrument:  %s\n", t.Instrument)
	}
	if t.Strategy != "" {
		output.Printf("  Strategy:    %s\n", t.Strategy)
	}
	output.Printf("  Direction:   %s\n", t.Direction)
	output.Printf("  Result:      %s\n", formatResult(output, t.Result))
	output.Printf("  P&L:         %s\n", output.FormatOptionalPnL(t.PnL))
	output.Printf("  R:           %s\n", FormatOptionalR(t.RMultiple))
	output.Printf("  Cycle:       %s\n", cachedCycle(output, t))
	if t.Notes != "" {
		output.Printf("  Notes:       %s\n", t.Notes)
	}
}

func formatResult(output *Output, r models.Result) string {
	switch r {
	case models.ResultWin:
		return output.Green(string(r))
	case models.ResultLoss:
		return output.Red(string(r))
	case models.ResultUnset:
		return output.DimText("open")
	}
	return string(r)
}

// cachedCycle renders the cycle day and phase saved with the trade.
func cachedCycle(output *Output, t models.TradeRecord) string {
	p, ok := cycle.ParsePhase(t.CyclePhase)
	if !ok {
		return output.DimText("-")
	}
	if t.CycleDay == nil {
		return output.Phase(p)
	}
	return fmt.Sprintf("%s %s", strconv.Itoa(*t.CycleDay), output.Phase(p))
}
