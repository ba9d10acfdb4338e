package cli

import (
	"time"

	"github.com/spf13/cobra"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/security"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage configuration and the saved cycle settings.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			settings, err := app.Journal.Settings(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"config":   redactedConfig(app),
					"settings": settings,
				})
			}
			return showConfig(output, app, settings.Cycle, settings.FallbackPeriodStart)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := newAppOutput(cmd, app)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Dir, "database": app.Config.Storage.DBPath})
			} else {
				output.Println(app.Config.Dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			cfg := app.Config
			if output.IsJSON() {
				return output.JSON(map[string]bool{
					"valid":  true,
					"sync":   cfg.SyncEnabled(),
					"notify": cfg.NotifyEnabled(),
				})
			}
			output.Success("✓ Configuration is valid")
			output.Printf("  Account sync:   %s\n", enabledLabel(cfg.SyncEnabled()))
			output.Printf("  Notifications:  %s\n", enabledLabel(cfg.NotifyEnabled()))
			return nil
		},
	})

	cmd.AddCommand(newSetCycleCmd(app))
	cmd.AddCommand(newRefreshPhasesCmd(app))

	return cmd
}

func newSetCycleCmd(app *App) *cobra.Command {
	var (
		length   int
		period   int
		fallback string
		clear    bool
	)
	cmd := &cobra.Command{
		Use:   "set-cycle",
		Short: "Save cycle settings",
		Long: `Save the average cycle length, period length and fallback period start.
Saved settings take precedence over config.toml. Trades keep the phase
recorded when they were saved; run 'config refresh-phases' to recompute.`,
		Example: `  cycle-journal config set-cycle --length 30 --period 6
  cycle-journal config set-cycle --fallback 2025-01-03
  cycle-journal config set-cycle --clear-fallback`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			current, err := app.Journal.Settings(ctx)
			if err != nil {
				return err
			}
			cfg := current.Cycle
			if cmd.Flags().Changed("length") {
				cfg.AverageCycleLength = length
			}
			if cmd.Flags().Changed("period") {
				cfg.PeriodLength = period
			}
			fb := current.FallbackPeriodStart
			switch {
			case clear:
				fb = nil
			case fallback != "":
				d, err := parseDateArg("fallback", fallback)
				if err != nil {
					return err
				}
				fb = &d
			}

			saved, err := app.Journal.UpdateSettings(ctx, cfg, fb)
			if err != nil {
				output.Error("Invalid cycle settings: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(saved)
			}
			output.Success("✓ Cycle settings saved")
			printCycleSettings(output, saved.Cycle, saved.FallbackPeriodStart)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", 0, "average cycle length in days")
	cmd.Flags().IntVar(&period, "period", 0, "period length in days")
	cmd.Flags().StringVar(&fallback, "fallback", "", "fallback period start (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clear, "clear-fallback", false, "remove the fallback period start")
	return cmd
}

func newRefreshPhasesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-phases",
		Short: "Recompute the phase saved with every trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			n, err := app.Journal.RefreshPhaseCache(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"updated": n})
			}
			output.Success("✓ Updated %d trade(s)", n)
			return nil
		},
	}
}

func printCycleSettings(output *Output, cfg cycle.Config, fallback *time.Time) {
	output.Printf("  Cycle Length:    %s\n", FormatDays(cfg.AverageCycleLength))
	output.Printf("  Period Length:   %s\n", FormatDays(cfg.PeriodLength))
	if fallback != nil {
		output.Printf("  Fallback Start:  %s\n", FormatDate(*fallback))
	} else {
		output.Printf("  Fallback Start:  %s\n", output.DimText("none"))
	}
	if b, err := cycle.PhaseBoundaries(cfg); err == nil {
		for _, p := range cycle.Phases() {
			if start, end, ok := b.Range(p); ok {
				output.Printf("  %-16s day %d-%d\n", p.Label()+":", start, end)
			}
		}
	}
}

func showConfig(output *Output, app *App, cfg cycle.Config, fallback *time.Time) error {
	c := app.Config

	output.Bold("Cycle Settings")
	printCycleSettings(output, cfg, fallback)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Config Dir:      %s\n", c.Dir)
	output.Printf("  Database:        %s\n", c.Storage.DBPath)
	output.Println()

	output.Bold("Analytics")
	output.Printf("  Attribution:     %s\n", c.AttributionMode())
	output.Printf("  Top Days:        %d\n", c.Analytics.TopDays)
	output.Println()

	output.Bold("Account Sync")
	if c.SyncEnabled() {
		output.Printf("  Service:         %s\n", c.Sync.BaseURL)
		output.Printf("  API Key:         %s\n", security.MaskCredential(c.Credentials.Sync.APIKey))
		output.Printf("  Schedule:        %s\n", c.Sync.Schedule)
		output.Printf("  Concurrency:     %d\n", c.Sync.Concurrency)
		output.Printf("  Passwords:       %d account(s)\n", len(c.Passwords()))
	} else {
		output.Printf("  Service:         %s\n", output.DimText("disabled"))
	}
	output.Println()

	output.Bold("Server")
	output.Printf("  Listen:          %s\n", c.Server.Listen)
	output.Printf("  Mode:            %s\n", c.Server.Mode)

	return nil
}

// redactedConfig is the config without secrets, for --json.
func redactedConfig(app *App) map[string]interface{} {
	c := app.Config
	return map[string]interface{}{
		"dir":       c.Dir,
		"cycle":     c.Cycle,
		"storage":   c.Storage,
		"analytics": c.Analytics,
		"sync": map[string]interface{}{
			"base_url":    c.Sync.BaseURL,
			"api_key":     security.MaskCredential(c.Credentials.Sync.APIKey),
			"timeout":     c.Sync.Timeout.String(),
			"schedule":    c.Sync.Schedule,
			"concurrency": c.Sync.Concurrency,
			"stale_after": c.Sync.StaleAfter.String(),
		},
		"server":  c.Server,
		"logging": c.Logging,
		"ui":      c.UI,
	}
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
