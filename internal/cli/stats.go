package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cycle-journal/internal/analytics"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/models"
)

// addStatsCommands adds performance analysis commands.
func addStatsCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Trading performance by cycle phase",
		Long: `Analyse closed trades. Every subcommand accepts --from/--to and
--instrument/--strategy filters, and --mode to choose between phases
recomputed from the current cycle settings and the phases saved with
each trade.`,
	}

	cmd.AddCommand(newStatsSummaryCmd(app))
	cmd.AddCommand(newStatsPhasesCmd(app))
	cmd.AddCommand(newStatsCycleDaysCmd(app))
	cmd.AddCommand(newStatsStreaksCmd(app))
	cmd.AddCommand(newStatsDrawdownCmd(app))
	cmd.AddCommand(newStatsDaysCmd(app))
	cmd.AddCommand(newStatsGroupsCmd(app))
	cmd.AddCommand(newStatsSeriesCmd(app))

	rootCmd.AddCommand(cmd)
}

// statsFlags are the flags every stats subcommand shares.
type statsFlags struct {
	tradeFilterFlags
	mode string
}

func (f *statsFlags) bind(cmd *cobra.Command) {
	f.tradeFilterFlags.bind(cmd)
	cmd.Flags().StringVar(&f.mode, "mode", "", "phase attribution: recomputed or recorded (default from config)")
}

// load runs the filter and returns the trades with their attributor.
func (f *statsFlags) load(cmd *cobra.Command, app *App) ([]models.TradeRecord, *analytics.Attributor, error) {
	filter, err := f.filter()
	if err != nil {
		return nil, nil, err
	}
	mode := app.Config.AttributionMode()
	if f.mode != "" {
		if mode, err = analytics.ParseMode(f.mode); err != nil {
			return nil, nil, err
		}
	}
	ctx, cancel := app.context(cmd)
	defer cancel()
	return app.Journal.Analyze(ctx, filter, mode)
}

func newStatsSummaryCmd(app *App) *cobra.Command {
	var (
		flags statsFlags
		top   int
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Overall performance with the best phase, weekday and instrument",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			trades, attr, err := flags.load(cmd, app)
			if err != nil {
				return err
			}
			opts := analytics.Options{TopDays: app.Config.Analytics.TopDays}
			if top > 0 {
				opts.TopDays = top
			}
			s := analytics.Summarize(trades, attr, opts)
			if output.IsJSON() {
				return output.JSON(s)
			}

			output.Bold("Performance Summary")
			output.Printf("  Trades:          %d (%d closed, %d open)\n", s.TotalTrades, s.ClosedTrades, s.OpenTrades)
			if s.ClosedTrades == 0 {
				output.Dim("  No closed trades yet.")
				return nil
			}
			output.Printf("  Wins/Losses/BE:  %d / %d / %d\n", s.Wins, s.Losses, s.Breakeven)
			output.Printf("  Win Rate:        %s\n", FormatWinRate(s.WinRate))
			output.Printf("  Total P&L:       %s\n", output.FormatPnL(s.TotalPnL))
			output.Printf("  Average P&L:     %s\n", output.FormatPnL(s.AveragePnL))
			output.Printf("  Average Win:     %s\n", output.FormatPnL(s.AverageWin))
			output.Printf("  Average Loss:    %s\n", output.FormatPnL(s.AverageLoss))
			output.Printf("  Largest Win:     %s\n", output.FormatPnL(s.LargestWin))
			output.Printf("  Largest Loss:    %s\n", output.FormatPnL(s.LargestLoss))
			output.Printf("  Expectancy:      %s\n", output.FormatPnL(s.Expectancy))
			output.Printf("  Average R:       %s\n", FormatR(s.AverageR))
			output.Printf("  Profit Factor:   %s\n", FormatProfitFactor(s.ProfitFactor))
			output.Printf("  Max Drawdown:    %s\n", output.FormatPnL(-s.Drawdown.Max))
			output.Println()

			output.Bold("Highlights (%s phases)", s.Mode)
			if s.BestPhase != nil {
				output.Printf("  Best Phase:      %s (%s win rate, %d trades)\n",
					output.Phase(s.BestPhase.Phase), FormatWinRate(s.BestPhase.WinRate), s.BestPhase.TradeCount)
			}
			printBestGroup(output, "Best Weekday:", s.BestWeekday)
			printBestGroup(output, "Best Instrument:", s.BestInstrument)
			printBestGroup(output, "Best Strategy:", s.BestStrategy)
			if s.Unattributed > 0 {
				output.Warning("  %d trade(s) have no cycle phase: log a period or set a fallback start", s.Unattributed)
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().IntVar(&top, "top", 0, "number of best and worst days (default from config)")
	return cmd
}

func printBestGroup(output *Output, title string, g *analytics.GroupStats) {
	if g == nil {
		return
	}
	output.Printf("  %-16s %s (%s, %s)\n", title, g.Key, output.FormatPnL(g.TotalPnL), FormatWinRate(g.WinRate))
}

func newStatsPhasesCmd(app *App) *cobra.Command {
	var flags statsFlags
	cmd := &cobra.Command{
		Use:   "phases",
		Short: "Win rate and P&L for each cycle phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			trades, attr, err := flags.load(cmd, app)
			if err != nil {
				return err
			}
			report := analytics.AggregateByPhase(trades, attr)
			best, hasBest := report.Best()
			if output.IsJSON() {
				resp := map[string]interface{}{
					"mode":         attr.Mode(),
					"phases":       report.Ordered(),
					"unattributed": report.Unattributed,
				}
				if hasBest {
					resp["best"] = best
				}
				return output.JSON(resp)
			}

			output.Bold("Performance by Phase (%s)", attr.Mode())
			table := NewTable(output, "Phase", "Trades", "Wins", "Losses", "Win Rate", "P&L", "Avg P&L", "Avg R")
			for _, b := range report.Ordered() {
				name := output.Phase(b.Phase)
				if hasBest && b.Phase == best.Phase {
					name += " ★"
				}
				table.AddRow(name, strconv.Itoa(b.TradeCount), strconv.Itoa(b.WinCount), strconv.Itoa(b.LossCount),
					FormatWinRate(b.WinRate), output.FormatPnL(b.TotalPnL), output.FormatPnL(b.AveragePnL), averageR(b.Stats))
			}
			table.Render()
			if n := report.Unattributed.TradeCount; n > 0 {
				output.Warning("%d trade(s) could not be placed in a phase", n)
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func averageR(s analytics.Stats) string {
	if s.RCount == 0 {
		return "-"
	}
	return FormatR(s.AverageR)
}

func newStatsCycleDaysCmd(app *App) *cobra.Command {
	var flags statsFlags
	cmd := &cobra.Command{
		Use:   "cycle-days",
		Short: "Results for each day of the cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			trades, attr, err := flags.load(cmd, app)
			if err != nil {
				return err
			}
			days := analytics.ByCycleDay(trades, attr)
			if output.IsJSON() {
				return output.JSON(days)
			}

			table := NewTable(output, "Day", "Phase", "Trades", "Win Rate", "P&L")
			for _, d := range days {
				if d.TradeCount == 0 {
					table.AddRow(strconv.Itoa(d.Day), output.Phase(d.Phase), output.DimText("0"), "", "")
					continue
				}
				table.AddRow(strconv.Itoa(d.Day), output.Phase(d.Phase), strconv.Itoa(d.TradeCount),
					FormatWinRate(d.WinRate), output.FormatPnL(d.TotalPnL))
			}
			table.Render()
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newStatsStreaksCmd(app *App) *cobra.Command {
	var flags statsFlags
	cmd := &cobra.Command{
		Use:   "streaks",
		Short: "Longest and current win and loss streaks",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			trades, _, err := flags.load(cmd, app)
			if err != nil {
				return err
			}
			s := analytics.Streaks(trades)
			if output.IsJSON() {
				return output.JSON(s)
			}
			output.Printf("  Longest Win Streak:   %d\n", s.LongestWin)
			output.Printf("  Longest Loss Streak:  %d\n", s.LongestLoss)
			switch s.Current.Kind {
			case analytics.StreakWin:
				output.Printf("  Current:              %s\n", output.Green(strconv.Itoa(s.Current.Length)+" win(s)"))
			case analytics.StreakLoss:
				output.Printf("  Current:              %s\n", output.Red(strconv.Itoa(s.Current.Length)+" loss(es)"))
			default:
				output.Printf("  Current:              %s\n", output.DimText("none"))
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newStatsDrawdownCmd(app *App) *cobra.Command {
	var (
		flags statsFlags
		curve bool
	)
	cmd := &cobra.Command{
		Use:   "drawdown",
		Short: "Maximum and current drawdown of cumulative P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			trades, _, err := flags.load(cmd, app)
			if err != nil {
				return err
			}
			d := analytics.Drawdown(trades)
			if output.IsJSON() {
				if !curve {
					d.Curve = nil
				}
				return output.JSON(d)
			}

			output.Printf("  Peak:           %s\n", output.FormatPnL(d.Peak))
			output.Printf("  Max Drawdown:   %s", output.FormatPnL(-d.Max))
			if d.MaxDate != nil {
				output.Printf(" (%s)", FormatDate(*d.MaxDate))
			}
			output.Println()
			if d.Recovered {
				output.Printf("  Current:        %s\n", output.Green("at peak"))
			} else {
				output.Printf("  Current:        %s\n", output.FormatPnL(-d.Current))
			}

			if curve && len(d.Curve) > 0 {
				output.Println()
				table := NewTable(output, "Date", "Trade", "P&L", "Cumulative", "Drawdown")
				for _, p := range d.Curve {
					table.AddRow(FormatDate(p.Date), p.TradeID, output.FormatPnL(p.PnL),
						FormatMoney(p.Cumulative, output.currency), FormatMoney(p.Drawdown, output.currency))
				}
				table.Render()
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&curve, "curve", false, "print the equity curve")
	return cmd
}

func newStatsDaysCmd(app *App) *cobra.Command {
	var (
		flags statsFlags
		top   int
	)
	cmd := &cobra.Command{
		Use:   "days",
		Short: "Best and worst trading days",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			trades, _, err := flags.load(cmd, app)
			if err != nil {
				return err
			}
			n := app.Config.Analytics.TopDays
			if top > 0 {
				n = top
			}
			best, worst := analytics.BestDays(trades, n), analytics.WorstDays(trades, n)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"best": best, "worst": worst})
			}

			for _, section := range []struct {
				title string
				days  []analytics.DayPnL
			}{{"Best Days", best}, {"Worst Days", worst}} {
				output.Bold(section.title)
				if len(section.days) == 0 {
					output.Dim("  none")
					continue
				}
				table := NewTable(output, "Date", "Trades", "P&L")
				for _, d := range section.days {
					table.AddRow(FormatDate(d.Date), strconv.Itoa(d.Trades), output.FormatPnL(d.PnL))
				}
				table.Render()
				output.Println()
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().IntVar(&top, "top", 0, "number of days (default from config)")
	return cmd
}

func groupNames() string {
	return strings.Join(analytics.KeyNames(), ", ")
}

func newStatsGroupsCmd(app *App) *cobra.Command {
	var (
		flags statsFlags
		by    string
	)
	cmd := &cobra.Command{
		Use:     "groups",
		Short:   "Results grouped by weekday, instrument, strategy and more",
		Example: `  cycle-journal stats groups --by instrument
  cycle-journal stats groups --by cycle-day`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			name := strings.ToLower(strings.TrimSpace(by))
			trades, attr, err := flags.load(cmd, app)
			if err != nil {
				return err
			}
			key, ok := analytics.KeyFor(name, attr)
			if !ok {
				return errors.NewValidationError("by", by, "must be one of "+groupNames())
			}
			groups := analytics.GroupBy(trades, key)
			if output.IsJSON() {
				return output.JSON(groups)
			}

			table := NewTable(output, strings.ToUpper(name[:1])+name[1:], "Trades", "Win Rate", "P&L", "Avg R", "PF")
			for _, g := range groups {
				table.AddRow(g.Key, strconv.Itoa(g.TradeCount), FormatWinRate(g.WinRate),
					output.FormatPnL(g.TotalPnL), averageR(g.Stats), FormatProfitFactor(g.ProfitFactor))
			}
			table.Render()
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&by, "by", "weekday", "grouping: "+groupNames())
	return cmd
}

func newStatsSeriesCmd(app *App) *cobra.Command {
	var (
		flags  statsFlags
		bucket string
	)
	cmd := &cobra.Command{
		Use:   "series",
		Short: "P&L over time",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			b, err := analytics.ParseBucket(bucket)
			if err != nil {
				return err
			}
			trades, _, err := flags.load(cmd, app)
			if err != nil {
				return err
			}
			points := analytics.TimeSeries(trades, b)
			if output.IsJSON() {
				return output.JSON(points)
			}
			if len(points) == 0 {
				output.Info("No closed trades.")
				return nil
			}

			table := NewTable(output, "Period", "Trades", "W/L", "P&L", "Cumulative")
			for _, p := range points {
				table.AddRow(p.Key, strconv.Itoa(p.Trades), strconv.Itoa(p.Wins)+"/"+strconv.Itoa(p.Losses),
					output.FormatPnL(p.PnL), output.FormatPnL(p.Cumulative))
			}
			table.Render()
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&bucket, "bucket", "day", "day, week or month")
	return cmd
}
