package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"cycle-journal/internal/accounts"
	"cycle-journal/internal/analytics"
	"cycle-journal/internal/api"
	"cycle-journal/internal/notify"
)

func newServeCmd(app *App) *cobra.Command {
	var (
		listen     string
		syncOnBoot bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the JSON API used by the dashboard. When account sync is configured,
linked accounts are refreshed on the [sync] schedule while the server runs.
Stop with Ctrl+C.`,
		Example: "  cycle-journal serve --listen 127.0.0.1:9090",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			cfg := app.Config
			if listen == "" {
				listen = cfg.Server.Listen
			}

			// main cancels the command context on SIGINT and SIGTERM.
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if cfg.SyncEnabled() {
				sched, err := accounts.NewScheduler(ctx, app.Syncer, cfg.Sync.Schedule, time.Duration(cfg.Sync.RetryAttempts)*cfg.Sync.Timeout, app.Logger)
				if err != nil {
					return err
				}
				if app.Notifier.Enabled() {
					sched.OnReport(func(ctx context.Context, r *accounts.SyncReport) {
						if err := app.Notifier.SendSyncReport(ctx, r); err != nil {
							app.Logger.Warn().Err(err).Msg("Failed to send sync report")
						}
					})
				}
				sched.Start()
				defer sched.Stop()
				if syncOnBoot {
					go sched.RunNow(ctx)
				}
				app.Logger.Info().Str("schedule", cfg.Sync.Schedule).Time("next", sched.Next()).Msg("Account sync enabled")
			} else {
				app.Logger.Info().Msg("Account sync disabled: no [sync] base_url configured")
			}

			if app.Notifier.Enabled() {
				reminder, err := notify.NewReminderJob(ctx, app.Journal, app.Notifier, cfg.Notify.ReminderSchedule, cfg.Notify.ReminderDays, app.Logger)
				if err != nil {
					return err
				}
				reminder.Start()
				defer reminder.Stop()
			}

			engine := api.NewEngine(api.Deps{
				Journal:   app.Journal,
				Syncer:    app.Syncer,
				Store:     app.Store,
				Mode:      cfg.AttributionMode(),
				Options:   analytics.Options{TopDays: cfg.Analytics.TopDays},
				Logger:    app.Logger,
				DebugMode: cfg.Server.Mode == "debug",
			})

			if !output.IsJSON() {
				output.Success("Cycle Journal API listening on http://%s", listen)
				output.Dim("Press Ctrl+C to stop")
			}
			return api.Serve(ctx, listen, engine, app.Logger)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&syncOnBoot, "sync-now", false, "refresh every account once at startup")
	return cmd
}
