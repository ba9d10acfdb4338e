package store

import (
	"fmt"
	"time"
)

// SyncDataType keys the last-sync bookkeeping.
type SyncDataType string

const (
	// SyncTypeAccounts is the last completed run over all linked accounts.
	SyncTypeAccounts SyncDataType = "accounts"
	// SyncTypeSettings is the last time cycle settings were saved.
	SyncTypeSettings SyncDataType = "settings"
)

// AccountSyncType is the per-account sync key.
func AccountSyncType(accountID string) SyncDataType {
	return SyncDataType("account:" + accountID)
}

// DataFreshness reports how old a synced value is.
type DataFreshness struct {
	DataType    SyncDataType  `json:"data_type"`
	LastUpdated time.Time     `json:"last_updated"`
	IsFresh     bool          `json:"is_fresh"`
	Age         time.Duration `json:"age"`
}

// SyncConfig sets how old synced data may get before it counts as stale.
type SyncConfig struct {
	// StaleAfter applies to every key without an override. Zero means an
	// hour.
	StaleAfter time.Duration
	// Overrides set a different threshold for specific keys.
	Overrides map[SyncDataType]time.Duration
}

func (c SyncConfig) threshold(dataType SyncDataType) time.Duration {
	if d, ok := c.Overrides[dataType]; ok && d > 0 {
		return d
	}
	if c.StaleAfter > 0 {
		return c.StaleAfter
	}
	return time.Hour
}

// SyncManager tracks when synced data was last refreshed, on top of the
// store's last-sync table.
type SyncManager struct {
	store  DataStore
	config SyncConfig
	now    func() time.Time
}

// NewSyncManager creates a sync manager.
func NewSyncManager(store DataStore, config SyncConfig) *SyncManager {
	return &SyncManager{store: store, config: config, now: time.Now}
}

// GetDataFreshness returns the freshness of a key. Data that was never
// synced is never fresh.
func (sm *SyncManager) GetDataFreshness(dataType SyncDataType) *DataFreshness {
	lastSync := sm.store.GetLastSync(string(dataType))
	if lastSync.IsZero() {
		return &DataFreshness{DataType: dataType}
	}
	age := sm.now().Sub(lastSync)
	return &DataFreshness{
		DataType:    dataType,
		LastUpdated: lastSync,
		IsFresh:     age < sm.config.threshold(dataType),
		Age:         age,
	}
}

// IsDataStale reports whether a key was never synced or has aged out.
func (sm *SyncManager) IsDataStale(dataType SyncDataType) bool {
	return !sm.GetDataFreshness(dataType).IsFresh
}

// MarkSynced records a sync of dataType now.
func (sm *SyncManager) MarkSynced(dataType SyncDataType) error {
	if err := sm.store.SetLastSync(string(dataType), sm.now()); err != nil {
		return fmt.Errorf("failed to mark %s as synced: %w", dataType, err)
	}
	return nil
}
