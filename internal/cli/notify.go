package cli

import (
	"github.com/spf13/cobra"

	"cycle-journal/internal/errors"
	"cycle-journal/internal/notify"
)

func newNotifyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Webhook and Telegram notifications",
		Long: `Configure channels under [notify] in config.toml and the Telegram bot
token in credentials.toml. While 'serve' runs, failed account syncs and the
daily cycle reminder are sent to every channel.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			if !app.Notifier.Enabled() {
				return errors.NewValidationError("notify", "", "no channel configured: set webhook_url or telegram_chat_id")
			}
			ctx, cancel := app.context(cmd)
			defer cancel()

			err := app.Notifier.Send(ctx, notify.Notification{
				Type:    notify.TypeInfo,
				Title:   "Cycle Journal",
				Message: "Notifications are working.",
			})
			if err != nil {
				return err
			}
			output.Success("✓ Test notification sent")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remind",
		Short: "Send today's cycle reminder now, if there is one",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			o, err := app.Journal.Outlook(ctx, app.Journal.Today())
			if err != nil {
				return err
			}
			n, ok := notify.Reminder(o, app.Config.Notify.ReminderDays)
			if !ok {
				if output.IsJSON() {
					return output.JSON(map[string]interface{}{"sent": false})
				}
				output.Info("Nothing to remind today.")
				return nil
			}
			if app.Notifier.Enabled() {
				if err := app.Notifier.Send(ctx, n); err != nil {
					return err
				}
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"sent": app.Notifier.Enabled(), "notification": n})
			}
			output.Bold(n.Title)
			output.Println(n.Message)
			if !app.Notifier.Enabled() {
				output.Dim("No channel configured; shown here only.")
			}
			return nil
		},
	})

	return cmd
}
