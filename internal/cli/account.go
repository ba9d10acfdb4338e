package cli

import (
	"time"

	"github.com/spf13/cobra"

	"cycle-journal/internal/accounts"
	"cycle-journal/internal/models"
	"cycle-journal/internal/security"
)

// addAccountCommands adds prop-firm account commands.
func addAccountCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Linked trading accounts",
		Long: `Link MT4/MT5 prop-firm accounts and refresh their balance and equity
from the account-data service configured under [sync] in config.toml.
Passwords are read from credentials.toml, never from the command line.`,
	}

	cmd.AddCommand(newAccountLinkCmd(app))
	cmd.AddCommand(newAccountListCmd(app))
	cmd.AddCommand(newAccountRemoveCmd(app))
	cmd.AddCommand(newAccountSyncCmd(app))

	rootCmd.AddCommand(cmd)
}

func newAccountLinkCmd(app *App) *cobra.Command {
	var req accounts.LinkRequest
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link an account",
		Example: `  cycle-journal account link --firm FTMO --platform mt5 --login 5012345 --server FTMO-Demo --label "100k challenge"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			a, err := app.Syncer.Link(ctx, req)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(a)
			}
			output.Success("✓ Linked %s account %s", a.Firm, a.ID)
			output.Info("Add the password to %s:", app.Config.Path("credentials.toml"))
			output.Printf("\n  [accounts.%s]\n  password = \"...\"\n\n", a.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Firm, "firm", "", "prop firm name")
	cmd.Flags().StringVar(&req.Platform, "platform", "mt5", "mt4 or mt5")
	cmd.Flags().StringVar(&req.Login, "login", "", "account login")
	cmd.Flags().StringVar(&req.Server, "server", "", "broker server")
	cmd.Flags().StringVar(&req.Label, "label", "", "optional label")
	cmd.MarkFlagRequired("firm")
	cmd.MarkFlagRequired("login")
	cmd.MarkFlagRequired("server")
	return cmd
}

func newAccountListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List linked accounts with their latest balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			views, err := app.Syncer.Status(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(views)
			}
			if len(views) == 0 {
				output.Info("No accounts linked. Use 'account link'.")
				return nil
			}

			table := NewTable(output, "ID", "Firm", "Login", "Server", "Balance", "Equity", "Synced")
			for _, v := range views {
				a := v.Account
				login := security.MaskCredential(a.Login)
				if a.Label != "" {
					login += " (" + a.Label + ")"
				}
				balance, equity, synced := "-", "-", output.DimText("never")
				if s := v.Latest; s != nil {
					balance = FormatMoney(s.Balance, s.Currency)
					equity = FormatMoney(s.Equity, s.Currency)
					synced = syncedAgo(output, s, app.Config.Sync.StaleAfter)
				}
				if !v.HasPassword {
					synced = output.Yellow("no password")
				}
				table.AddRow(a.ID, a.Firm+" "+string(a.Platform), login, a.Server, balance, equity, synced)
			}
			table.Render()
			if !app.Config.SyncEnabled() {
				output.Println()
				output.Dim("Account sync is disabled: set [sync] base_url in config.toml.")
			}
			return nil
		},
	}
}

// syncedAgo renders the snapshot age, yellow once older than staleAfter.
func syncedAgo(output *Output, s *models.AccountSnapshot, staleAfter time.Duration) string {
	ago := FormatDuration(time.Since(s.SyncedAt)) + " ago"
	if !s.OK() {
		return output.Red("failed " + ago)
	}
	if staleAfter > 0 && time.Since(s.SyncedAt) > staleAfter {
		return output.Yellow(ago)
	}
	return ago
}

func newAccountRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"unlink"},
		Short:   "Unlink an account and delete its snapshots",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			if err := app.Syncer.Unlink(ctx, args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Unlinked %s", args[0])
			return nil
		},
	}
}

func newAccountSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [id]",
		Short: "Refresh one account, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := newAppOutput(cmd, app)
			ctx, cancel := app.context(cmd)
			defer cancel()

			if len(args) == 1 {
				snap, err := app.Syncer.SyncAccount(ctx, args[0])
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(snap)
				}
				output.Success("✓ %s: balance %s, equity %s", args[0],
					FormatMoney(snap.Balance, snap.Currency), FormatMoney(snap.Equity, snap.Currency))
				return nil
			}

			report, err := app.Syncer.SyncAll(ctx)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(report)
			}
			for _, r := range report.Results {
				if r.Error != "" {
					output.Error("✗ %s: %s", r.AccountID, r.Error)
					continue
				}
				output.Success("✓ %s: balance %s, equity %s", r.AccountID,
					FormatMoney(r.Snapshot.Balance, r.Snapshot.Currency), FormatMoney(r.Snapshot.Equity, r.Snapshot.Currency))
			}
			output.Printf("\n%d synced, %d failed in %s\n", report.Succeeded, report.Failed,
				FormatDuration(report.Finished.Sub(report.Started)))
			return nil
		},
	}
}
