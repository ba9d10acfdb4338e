// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Journal entries
	GetEntry(ctx context.Context, date time.Time) (*models.JournalEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]models.JournalEntry, error)
	SaveEntry(ctx context.Context, entry *models.JournalEntry) error
	DeleteEntry(ctx context.Context, date time.Time) error
	SetPeriod(ctx context.Context, date time.Time, hasPeriod bool) error
	PeriodDates(ctx context.Context) ([]time.Time, error)

	// Trades
	AddTrade(ctx context.Context, trade *models.TradeRecord) error
	UpdateTrade(ctx context.Context, trade *models.TradeRecord) error
	DeleteTrade(ctx context.Context, id string) error
	GetTrade(ctx context.Context, id string) (*models.TradeRecord, error)
	ListTrades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error)

	// Settings
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, settings *Settings) error

	// Accounts
	SaveAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	SaveSnapshot(ctx context.Context, snapshot *models.AccountSnapshot) error
	LatestSnapshot(ctx context.Context, accountID string) (*models.AccountSnapshot, error)
	ListSnapshots(ctx context.Context, accountID string, limit int) ([]models.AccountSnapshot, error)

	// Sync
	GetLastSync(key string) time.Time
	SetLastSync(key string, t time.Time) error

	// Lifecycle
	Close() error
}

// Settings are the user's cycle settings as last saved from the app. They
// take precedence over the defaults in config.toml.
type Settings struct {
	Cycle               cycle.Config `json:"cycle"`
	FallbackPeriodStart *time.Time   `json:"fallback_period_start"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// EntryFilter represents filters for querying journal entries.
type EntryFilter struct {
	From       time.Time
	To         time.Time
	PeriodOnly bool
	Limit      int
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	From       time.Time
	To         time.Time
	Instrument string
	Strategy   string
	ClosedOnly bool
	Limit      int
}

// DateRange represents a date range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TradeFilter returns a trade filter covering the range.
func (r DateRange) TradeFilter() TradeFilter {
	return TradeFilter{From: r.Start, To: r.End}
}
