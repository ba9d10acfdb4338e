package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cycle-journal/internal/accounts"
	"cycle-journal/internal/config"
	"cycle-journal/internal/journal"
	"cycle-journal/internal/logging"
	"cycle-journal/internal/notify"
	"cycle-journal/internal/store"
	"cycle-journal/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-01-01"
)

// skipInit marks commands that run without config or database.
const skipInit = "skip-init"

// commandTimeout bounds a single CLI command's database work.
const commandTimeout = 30 * time.Second

// App holds the application dependencies. They are built in the root
// command's pre-run, once flags are parsed.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.DataStore
	Journal  *journal.Service
	Syncer   *accounts.Syncer
	Client   *accounts.HTTPClient
	Notifier *notify.Notifier
}

// NewApp returns an App that logs to logger until config is loaded.
func NewApp(logger zerolog.Logger) *App {
	return &App{Logger: logger}
}

// Execute runs the CLI and closes the database afterwards, even when the
// command fails.
func Execute(ctx context.Context, logger zerolog.Logger) error {
	app := NewApp(logger)
	defer app.Close()
	return NewRootCmd(app).ExecuteContext(ctx)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cycle-journal",
		Short: "Cycle Journal - trade journal keyed to the menstrual cycle",
		Long: `Cycle Journal records trades alongside a period log and shows how
trading performance varies across the phases of the menstrual cycle.

Log period days with 'period log', record trades with 'trade add' or
'trade import', and review results with 'stats'. 'serve' runs the HTTP API
used by the dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipInit] == "true" {
				return nil
			}
			dir, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			return app.init(dir, debug)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/cycle-journal)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addCycleCommands(rootCmd, app)
	addPeriodCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)
	addTradeCommands(rootCmd, app)
	addStatsCommands(rootCmd, app)
	addAccountCommands(rootCmd, app)
	rootCmd.AddCommand(newNotifyCmd(app))
	rootCmd.AddCommand(newServeCmd(app))

	return rootCmd
}

// init loads configuration, opens the database and builds the services.
func (app *App) init(configDir string, debug bool) error {
	if app.Store != nil {
		return nil
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	app.Config = cfg

	app.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())
	if debug {
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}

	ds, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening journal database: %w", err)
	}
	app.Store = ds
	app.Logger.Debug().Str("path", cfg.Storage.DBPath).Msg("SQLite store initialized")

	fallback, err := cfg.Cycle.Fallback()
	if err != nil {
		return err
	}
	app.Journal, err = journal.NewService(ds, store.Settings{
		Cycle:               cfg.Cycle.Config(),
		FallbackPeriodStart: fallback,
	}, app.Logger)
	if err != nil {
		return err
	}

	// A nil *HTTPClient must not reach the Syncer as a non-nil Service.
	var service accounts.Service
	if cfg.SyncEnabled() {
		app.Client, err = accounts.NewHTTPClient(clientConfig(cfg), app.Logger)
		if err != nil {
			return err
		}
		service = app.Client
		app.Logger.Debug().Str("base_url", cfg.Sync.BaseURL).Msg("Account-data client initialized")
	}
	app.Syncer = accounts.NewSyncer(ds, service, accounts.Passwords(cfg.Passwords()), accounts.SyncerOptions{
		Concurrency: cfg.Sync.Concurrency,
		StaleAfter:  cfg.Sync.StaleAfter,
	}, app.Logger)

	app.Notifier = notify.New(notify.Config{
		Level:            notify.Level(cfg.Notify.Level),
		WebhookURL:       cfg.Notify.WebhookURL,
		TelegramBotToken: cfg.Credentials.Notify.TelegramBotToken,
		TelegramChatID:   cfg.Notify.TelegramChatID,
	}, app.Logger)
	return nil
}

func clientConfig(cfg *config.Config) accounts.ClientConfig {
	cc := accounts.DefaultClientConfig()
	cc.BaseURL = cfg.Sync.BaseURL
	cc.APIKey = cfg.Credentials.Sync.APIKey
	cc.Timeout = cfg.Sync.Timeout
	cc.Retry = utils.DefaultRetryConfig()
	cc.Retry.MaxAttempts = cfg.Sync.RetryAttempts
	if cfg.Sync.RetryDelay > 0 {
		cc.Retry.InitialDelay = cfg.Sync.RetryDelay
	}
	return cc
}

// Close releases the database.
func (app *App) Close() error {
	if app.Store == nil {
		return nil
	}
	err := app.Store.Close()
	app.Store = nil
	return err
}

// context returns the command context bounded by commandTimeout, carrying
// a logger tagged with the command path.
func (app *App) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithLogger(ctx, logging.WithOperation(app.Logger, cmd.CommandPath()))
	return context.WithTimeout(ctx, commandTimeout)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipInit: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Cycle Journal v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}
