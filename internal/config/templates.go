package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Cycle Journal Configuration

[cycle]
# Average cycle length in days (21 to 45 is typical)
average_cycle_length = 28
# Period length in days
period_length = 5
# Start of the last period, used until a period is logged (YYYY-MM-DD)
fallback_period_start = ""

[storage]
# SQLite database file; defaults to journal.db next to this file
db_path = ""

[analytics]
# Number of best and worst days on the dashboard
top_days = 3
# Phase attribution: "recomputed" uses the current settings,
# "recorded" uses the phase saved with each trade
attribution = "recomputed"

[sync]
# Account-data service base URL; leave empty to disable account sync
base_url = ""
# Request timeout
timeout = "30s"
# Cron spec for background sync while "serve" runs
schedule = "@every 15m"
# Accounts synced in parallel
concurrency = 4
# Snapshots older than this are reported as stale
stale_after = "1h"
retry_attempts = 3
retry_delay = "500ms"

[server]
# Address for the HTTP API
listen = "127.0.0.1:8080"
# Gin mode: "release" or "debug"
mode = "release"

[logging]
level = "info"
console = true
file = true
# Defaults to logs/cycle-journal.log next to this file
file_path = ""
max_size = 50
max_backups = 5
max_age = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "Mon 02 Jan 2006"
# Currency shown next to P&L
currency = "USD"

[notify]
# "all" or "errors_only"
level = "all"
# JSON webhook receiving every notification; leave empty to disable
webhook_url = ""
# Telegram chat; the bot token goes in credentials.toml
telegram_chat_id = ""
# Cron spec (with seconds) for the daily cycle reminder while "serve" runs
reminder_schedule = "0 0 8 * * *"
# Remind this many days before the next expected period
reminder_days = 2
`

const credentialsTemplate = `# Cycle Journal Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[sync]
api_key = ""

[notify]
telegram_bot_token = ""

# One section per linked account, keyed by the ID shown by "account list".
# [accounts.01J0EXAMPLEACCOUNTID]
# password = ""
`

func createTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}
