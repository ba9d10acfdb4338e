// Package config provides configuration management for the journal.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"cycle-journal/internal/analytics"
	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Cycle       CycleConfig     `mapstructure:"cycle"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Analytics   AnalyticsConfig `mapstructure:"analytics"`
	Sync        SyncConfig      `mapstructure:"sync"`
	Server      ServerConfig    `mapstructure:"server"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	UI          UIConfig        `mapstructure:"ui"`
	Notify      NotifyConfig    `mapstructure:"notify"`
	Credentials Credentials     `mapstructure:"-"` // Loaded separately

	// Dir is the directory the files were loaded from.
	Dir string `mapstructure:"-"`
}

// CycleConfig holds the default cycle settings. Settings saved from the app
// take precedence.
type CycleConfig struct {
	AverageCycleLength  int    `mapstructure:"average_cycle_length"`
	PeriodLength        int    `mapstructure:"period_length"`
	FallbackPeriodStart string `mapstructure:"fallback_period_start"` // YYYY-MM-DD, optional
}

// StorageConfig holds database configuration.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// AnalyticsConfig holds dashboard configuration.
type AnalyticsConfig struct {
	TopDays     int    `mapstructure:"top_days"`
	Attribution string `mapstructure:"attribution"` // recomputed, recorded
}

// SyncConfig holds prop-firm account sync configuration.
type SyncConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Schedule      string        `mapstructure:"schedule"`
	Concurrency   int           `mapstructure:"concurrency"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	Mode   string `mapstructure:"mode"` // release, debug
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	Currency     string `mapstructure:"currency"`
}

// NotifyConfig holds notification configuration.
type NotifyConfig struct {
	Level            string `mapstructure:"level"` // all, errors_only
	WebhookURL       string `mapstructure:"webhook_url"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
	ReminderSchedule string `mapstructure:"reminder_schedule"`
	ReminderDays     int    `mapstructure:"reminder_days"`
}

// Credentials holds secrets from credentials.toml.
type Credentials struct {
	Sync     SyncCredentials               `mapstructure:"sync"`
	Notify   NotifyCredentials             `mapstructure:"notify"`
	Accounts map[string]AccountCredentials `mapstructure:"accounts"`
}

// NotifyCredentials holds the Telegram bot token.
type NotifyCredentials struct {
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
}

// SyncCredentials holds the account-data service key.
type SyncCredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// AccountCredentials holds the trading-platform password of one linked
// account, keyed by account ID.
type AccountCredentials struct {
	Password string `mapstructure:"password"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cycle-journal"
	}
	return filepath.Join(home, ".config", "cycle-journal")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	// Load main config
	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(configDir, "journal.db")
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = filepath.Join(configDir, "logs", "cycle-journal.log")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cycle.average_cycle_length", cycle.DefaultAverageCycleLength)
	v.SetDefault("cycle.period_length", cycle.DefaultPeriodLength)
	v.SetDefault("cycle.fallback_period_start", "")

	v.SetDefault("analytics.top_days", analytics.DefaultTopDays)
	v.SetDefault("analytics.attribution", string(analytics.AttributeRecomputed))

	v.SetDefault("sync.timeout", "30s")
	v.SetDefault("sync.schedule", "@every 15m")
	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("sync.stale_after", "1h")
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.retry_delay", "500ms")

	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "Mon 02 Jan 2006")
	v.SetDefault("ui.currency", "USD")

	v.SetDefault("notify.level", "all")
	v.SetDefault("notify.reminder_schedule", "0 0 8 * * *")
	v.SetDefault("notify.reminder_days", 2)
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template
		if err := createTemplate(configDir, "config.toml", configTemplate, 0644); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		return createTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CYCLE_JOURNAL_DB"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("CYCLE_JOURNAL_SYNC_URL"); v != "" {
		cfg.Sync.BaseURL = v
	}
	if v := os.Getenv("CYCLE_JOURNAL_SYNC_API_KEY"); v != "" {
		cfg.Credentials.Sync.APIKey = v
	}
	if v := os.Getenv("CYCLE_JOURNAL_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("CYCLE_JOURNAL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CYCLE_JOURNAL_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
}

// scheduleParser accepts what the sync scheduler accepts: six fields with
// seconds, or a descriptor.
var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate validates the configuration. Cycle settings are checked by the
// cycle model and fail with ErrInvalidConfiguration; everything else fails
// with ErrConfigInvalid.
func (c *Config) Validate() error {
	if err := c.Cycle.Config().Validate(); err != nil {
		return err
	}
	if _, err := c.Cycle.Fallback(); err != nil {
		return err
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("%w: storage.db_path must be set", errors.ErrConfigInvalid)
	}

	if c.Analytics.TopDays < 0 {
		return fmt.Errorf("%w: analytics.top_days must be non-negative", errors.ErrConfigInvalid)
	}
	if _, err := analytics.ParseMode(c.Analytics.Attribution); err != nil {
		return fmt.Errorf("%w: analytics.attribution: %v", errors.ErrConfigInvalid, err)
	}

	if c.Sync.BaseURL != "" {
		u, err := url.Parse(c.Sync.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: sync.base_url must be an http(s) URL", errors.ErrConfigInvalid)
		}
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("%w: sync.timeout must be positive", errors.ErrConfigInvalid)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("%w: sync.concurrency must be at least 1", errors.ErrConfigInvalid)
	}
	if c.Sync.RetryAttempts < 1 {
		return fmt.Errorf("%w: sync.retry_attempts must be at least 1", errors.ErrConfigInvalid)
	}
	if c.Sync.Schedule != "" {
		if _, err := scheduleParser.Parse(c.Sync.Schedule); err != nil {
			return fmt.Errorf("%w: sync.schedule: %v", errors.ErrConfigInvalid, err)
		}
	}

	if c.Server.Mode != "release" && c.Server.Mode != "debug" {
		return fmt.Errorf("%w: invalid server mode: %s (must be 'release' or 'debug')", errors.ErrConfigInvalid, c.Server.Mode)
	}

	switch c.Notify.Level {
	case "", "all", "errors_only":
	default:
		return fmt.Errorf("%w: notify.level must be 'all' or 'errors_only'", errors.ErrConfigInvalid)
	}
	if c.Notify.WebhookURL != "" {
		u, err := url.Parse(c.Notify.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: notify.webhook_url must be an http(s) URL", errors.ErrConfigInvalid)
		}
	}
	if c.Notify.ReminderDays < 0 {
		return fmt.Errorf("%w: notify.reminder_days must be non-negative", errors.ErrConfigInvalid)
	}
	if c.Notify.ReminderSchedule != "" {
		if _, err := scheduleParser.Parse(c.Notify.ReminderSchedule); err != nil {
			return fmt.Errorf("%w: notify.reminder_schedule: %v", errors.ErrConfigInvalid, err)
		}
	}

	return nil
}

// Config returns the cycle model configuration.
func (c CycleConfig) Config() cycle.Config {
	return cycle.Config{
		AverageCycleLength: c.AverageCycleLength,
		PeriodLength:       c.PeriodLength,
	}
}

// Fallback parses the fallback period start. Empty means none.
func (c CycleConfig) Fallback() (*time.Time, error) {
	raw := strings.TrimSpace(c.FallbackPeriodStart)
	if raw == "" {
		return nil, nil
	}
	d, err := cycle.ParseDate(raw)
	if err != nil {
		return nil, errors.NewConfigError("fallback_period_start", raw, "must be YYYY-MM-DD")
	}
	return &d, nil
}

// AttributionMode returns the configured attribution mode.
func (c *Config) AttributionMode() analytics.Mode {
	m, err := analytics.ParseMode(c.Analytics.Attribution)
	if err != nil {
		return analytics.AttributeRecomputed
	}
	return m
}

// LogConfig converts the [logging] section.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}

// Passwords returns the configured account passwords keyed by account ID.
func (c *Config) Passwords() map[string]string {
	out := make(map[string]string, len(c.Credentials.Accounts))
	for id, a := range c.Credentials.Accounts {
		if a.Password != "" {
			out[id] = a.Password
		}
	}
	return out
}

// SyncEnabled reports whether an account-data service is configured.
func (c *Config) SyncEnabled() bool {
	return c.Sync.BaseURL != ""
}

// NotifyEnabled reports whether any notification channel is configured.
func (c *Config) NotifyEnabled() bool {
	return c.Notify.WebhookURL != "" || (c.Notify.TelegramChatID != "" && c.Credentials.Notify.TelegramBotToken != "")
}

// Path returns the path of the named file in the config directory.
func (c *Config) Path(name string) string {
	return filepath.Join(c.Dir, name)
}
