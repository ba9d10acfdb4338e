// Package models provides domain models for the journal.
package models

import (
	"strings"
	"time"
)

// Platform is the trading platform of a linked account.
type Platform string

const (
	PlatformMT4 Platform = "mt4"
	PlatformMT5 Platform = "mt5"
)

// ParsePlatform parses mt4/mt5, case-insensitively.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformMT4:
		return PlatformMT4, true
	case PlatformMT5:
		return PlatformMT5, true
	}
	return "", false
}

// Account is a linked prop-firm trading account. The password is never
// stored with the account.
type Account struct {
	ID        string    `json:"id" yaml:"id"`
	Firm      string    `json:"firm" yaml:"firm"`
	Platform  Platform  `json:"platform" yaml:"platform"`
	Login     string    `json:"login" yaml:"login"`
	Server    string    `json:"server" yaml:"server"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// AccountSnapshot is the balance and equity reported by the account-data
// service at a point in time.
type AccountSnapshot struct {
	AccountID string    `json:"account_id"`
	Balance   float64   `json:"balance"`
	Equity    float64   `json:"equity"`
	PnL       float64   `json:"pnl"`
	Currency  string    `json:"currency"`
	SyncedAt  time.Time `json:"synced_at"`
	Error     string    `json:"error,omitempty"`
}

// OK reports whether the snapshot was fetched successfully.
func (s AccountSnapshot) OK() bool {
	return s.Error == ""
}

// AccountStatus pairs an account with its latest snapshot.
type AccountStatus struct {
	Account Account          `json:"account"`
	Latest  *AccountSnapshot `json:"latest,omitempty"`
}
