// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One row per journaled calendar day
	CREATE TABLE IF NOT EXISTS journal_entries (
		date TEXT PRIMARY KEY,
		has_period INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		mood TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Trades, listed under the entry they were journaled in
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		entry_date TEXT NOT NULL REFERENCES journal_entries(date) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		instrument TEXT NOT NULL DEFAULT '',
		strategy TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL,
		result TEXT NOT NULL,
		pnl REAL,
		r_multiple REAL,
		cycle_day INTEGER,
		cycle_phase TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Cycle settings and other key/value preferences
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Linked prop-firm accounts (no passwords)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		firm TEXT NOT NULL,
		platform TEXT NOT NULL,
		login TEXT NOT NULL,
		server TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(platform, server, login)
	);

	-- Balance history reported by the account-data service
	CREATE TABLE IF NOT EXISTS account_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		balance REAL NOT NULL DEFAULT 0,
		equity REAL NOT NULL DEFAULT 0,
		pnl REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT '',
		synced_at DATETIME NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	-- Sync status table
	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(date);
	CREATE INDEX IF NOT EXISTS idx_trades_entry ON trades(entry_date, seq);
	CREATE INDEX IF NOT EXISTS idx_entries_period ON journal_entries(has_period);
	CREATE INDEX IF NOT EXISTS idx_snapshots_account ON account_snapshots(account_id, synced_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// dbError tags a driver error so callers can match ErrDatabaseError.
func dbError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, errors.ErrDatabaseError, err)
}

func dateKey(t time.Time) string {
	return cycle.FormatDate(t)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// Journal Entry Methods
// ============================================================================

// GetEntry returns the entry for a date, with its trades.
func (s *SQLiteStore) GetEntry(ctx context.Context, date time.Time) (*models.JournalEntry, error) {
	entries, err := s.ListEntries(ctx, EntryFilter{From: date, To: date})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.NotFound("journal_entry", dateKey(date))
	}
	return &entries[0], nil
}

// ListEntries returns entries in ascending date order, each with its trades
// in journal order.
func (s *SQLiteStore) ListEntries(ctx context.Context, filter EntryFilter) ([]models.JournalEntry, error) {
	query := "SELECT date, has_period, notes, mood, updated_at FROM journal_entries WHERE 1=1"
	args := []interface{}{}

	if !filter.From.IsZero() {
		query += " AND date >= ?"
		args = append(args, dateKey(filter.From))
	}
	if !filter.To.IsZero() {
		query += " AND date <= ?"
		args = append(args, dateKey(filter.To))
	}
	if filter.PeriodOnly {
		query += " AND has_period = 1"
	}

	query += " ORDER BY date ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("query journal", err)
	}
	defer rows.Close()

	var entries []models.JournalEntry
	index := make(map[string]int)
	for rows.Next() {
		var e models.JournalEntry
		var date string
		var hasPeriod int
		var updated sql.NullTime
		if err := rows.Scan(&date, &hasPeriod, &e.Notes, &e.Mood, &updated); err != nil {
			return nil, dbError("scan journal entry", err)
		}
		if e.Date, err = cycle.ParseDate(date); err != nil {
			return nil, errors.NewDataError("journal_entry", date, "corrupt date", err)
		}
		e.HasPeriod = hasPeriod == 1
		e.UpdatedAt = updated.Time
		e.Trades = []models.TradeRecord{}
		index[date] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate journal", err)
	}
	if len(entries) == 0 {
		return entries, nil
	}

	// attach trades by entry date
	tq := "SELECT " + tradeColumns + " FROM trades WHERE entry_date >= ? AND entry_date <= ? ORDER BY entry_date ASC, seq ASC"
	trows, err := s.db.QueryContext(ctx, tq, dateKey(entries[0].Date), dateKey(entries[len(entries)-1].Date))
	if err != nil {
		return nil, dbError("query trades", err)
	}
	defer trows.Close()
	for trows.Next() {
		t, entryDate, err := scanTrade(trows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[entryDate]; ok {
			entries[i].Trades = append(entries[i].Trades, t)
		}
	}
	return entries, trows.Err()
}

// SaveEntry upserts the day-level fields of an entry. Trades are saved
// through AddTrade.
func (s *SQLiteStore) SaveEntry(ctx context.Context, entry *models.JournalEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (date, has_period, notes, mood, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			has_period = excluded.has_period,
			notes = excluded.notes,
			mood = excluded.mood,
			updated_at = excluded.updated_at
	`, dateKey(entry.Date), boolInt(entry.HasPeriod), entry.Notes, entry.Mood, entry.UpdatedAt)
	if err != nil {
		return dbError("save journal entry", err)
	}
	return nil
}

// DeleteEntry removes an entry and the trades journaled under it.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, date time.Time) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM journal_entries WHERE date = ?", dateKey(date))
	if err != nil {
		return dbError("delete journal entry", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("journal_entry", dateKey(date))
	}
	return nil
}

// SetPeriod flags or unflags a day as a period day, creating the entry if
// needed.
func (s *SQLiteStore) SetPeriod(ctx context.Context, date time.Time, hasPeriod bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (date, has_period, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			has_period = excluded.has_period,
			updated_at = excluded.updated_at
	`, dateKey(date), boolInt(hasPeriod), time.Now())
	if err != nil {
		return dbError("set period", err)
	}
	return nil
}

// PeriodDates returns every day flagged as a period day, ascending.
func (s *SQLiteStore) PeriodDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT date FROM journal_entries WHERE has_period = 1 ORDER BY date ASC")
	if err != nil {
		return nil, dbError("query period dates", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, dbError("scan period date", err)
		}
		d, err := cycle.ParseDate(raw)
		if err != nil {
			return nil, errors.NewDataError("journal_entry", raw, "corrupt date", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ============================================================================
// Trades Methods
// ============================================================================

const tradeColumns = "id, date, entry_date, instrument, strategy, direction, result, pnl, r_multiple, cycle_day, cycle_phase, notes, created_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (models.TradeRecord, string, error) {
	var (
		t                 models.TradeRecord
		date, entryDate   string
		direction, result string
		pnl, rMultiple    sql.NullFloat64
		cycleDay          sql.NullInt64
		created           sql.NullTime
	)
	if err := row.Scan(&t.ID, &date, &entryDate, &t.Instrument, &t.Strategy, &direction, &result,
		&pnl, &rMultiple, &cycleDay, &t.CyclePhase, &t.Notes, &created); err != nil {
		if err == sql.ErrNoRows {
			return t, "", err
		}
		return t, "", dbError("scan trade", err)
	}

	d, err := cycle.ParseDate(date)
	if err != nil {
		return t, "", errors.NewDataError("trade", t.ID, "corrupt date", err)
	}
	t.Date = d
	t.Direction = models.Direction(direction)
	t.Result = models.Result(result)
	if pnl.Valid {
		t.PnL = models.Float(pnl.Float64)
	}
	if rMultiple.Valid {
		t.RMultiple = models.Float(rMultiple.Float64)
	}
	if cycleDay.Valid {
		t.CycleDay = models.Int(int(cycleDay.Int64))
	}
	t.CreatedAt = created.Time
	return t, entryDate, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// AddTrade appends a trade to the entry for its date, creating the entry if
// needed.
func (s *SQLiteStore) AddTrade(ctx context.Context, trade *models.TradeRecord) error {
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now()
	}
	key := dateKey(trade.Date)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO journal_entries (date, updated_at) VALUES (?, ?)
	`, key, trade.CreatedAt); err != nil {
		return dbError("create journal entry", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (id, date, entry_date, seq, instrument, strategy, direction, result, pnl, r_multiple, cycle_day, cycle_phase, notes, created_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM trades WHERE entry_date = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, key, key, key, trade.Instrument, trade.Strategy, string(trade.Direction), string(trade.Result),
		nullFloat(trade.PnL), nullFloat(trade.RMultiple), nullInt(trade.CycleDay), trade.CyclePhase, trade.Notes, trade.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return errors.NewValidationError("id", trade.ID, "a trade with this id already exists")
		}
		return dbError("insert trade", err)
	}

	if err := tx.Commit(); err != nil {
		return dbError("commit transaction", err)
	}
	return nil
}

// UpdateTrade rewrites a trade. The trade stays listed under the entry it
// was journaled in even when its date changes.
func (s *SQLiteStore) UpdateTrade(ctx context.Context, trade *models.TradeRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET date = ?, instrument = ?, strategy = ?, direction = ?, result = ?,
			pnl = ?, r_multiple = ?, cycle_day = ?, cycle_phase = ?, notes = ?
		WHERE id = ?
	`, dateKey(trade.Date), trade.Instrument, trade.Strategy, string(trade.Direction), string(trade.Result),
		nullFloat(trade.PnL), nullFloat(trade.RMultiple), nullInt(trade.CycleDay), trade.CyclePhase, trade.Notes, trade.ID)
	if err != nil {
		return dbError("update trade", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("trade", trade.ID)
	}
	return nil
}

// DeleteTrade removes a trade.
func (s *SQLiteStore) DeleteTrade(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM trades WHERE id = ?", id)
	if err != nil {
		return dbError("delete trade", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("trade", id)
	}
	return nil
}

// GetTrade returns a trade by ID.
func (s *SQLiteStore) GetTrade(ctx context.Context, id string) (*models.TradeRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tradeColumns+" FROM trades WHERE id = ?", id)
	t, _, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("trade", id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTrades returns trades in date order, then journal order.
func (s *SQLiteStore) ListTrades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error) {
	query := "SELECT " + tradeColumns + " FROM trades WHERE 1=1"
	args := []interface{}{}

	if !filter.From.IsZero() {
		query += " AND date >= ?"
		args = append(args, dateKey(filter.From))
	}
	if !filter.To.IsZero() {
		query += " AND date <= ?"
		args = append(args, dateKey(filter.To))
	}
	if filter.Instrument != "" {
		query += " AND instrument = ?"
		args = append(args, strings.ToUpper(filter.Instrument))
	}
	if filter.Strategy != "" {
		query += " AND strategy = ? COLLATE NOCASE"
		args = append(args, filter.Strategy)
	}
	if filter.ClosedOnly {
		query += " AND result IN (?, ?, ?)"
		args = append(args, string(models.ResultWin), string(models.ResultLoss), string(models.ResultBreakeven))
	}

	query += " ORDER BY date ASC, entry_date ASC, seq ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("query trades", err)
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		t, _, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ============================================================================
// Settings Methods
// ============================================================================

const (
	keyCycleLength    = "cycle.average_cycle_length"
	keyPeriodLength   = "cycle.period_length"
	keyFallbackPeriod = "cycle.fallback_period_start"
)

// GetSettings returns the saved cycle settings, or a not-found error when
// none were saved yet.
func (s *SQLiteStore) GetSettings(ctx context.Context) (*Settings, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value, updated_at FROM settings WHERE key LIKE 'cycle.%'")
	if err != nil {
		return nil, dbError("query settings", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	var settings Settings
	for rows.Next() {
		var k, v string
		var updated sql.NullTime
		if err := rows.Scan(&k, &v, &updated); err != nil {
			return nil, dbError("scan setting", err)
		}
		values[k] = v
		if updated.Time.After(settings.UpdatedAt) {
			settings.UpdatedAt = updated.Time
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate settings", err)
	}
	if _, ok := values[keyCycleLength]; !ok {
		return nil, errors.NotFound("settings", "cycle")
	}

	if settings.Cycle.AverageCycleLength, err = strconv.Atoi(values[keyCycleLength]); err != nil {
		return nil, errors.NewDataError("settings", keyCycleLength, "corrupt value", err)
	}
	if settings.Cycle.PeriodLength, err = strconv.Atoi(values[keyPeriodLength]); err != nil {
		return nil, errors.NewDataError("settings", keyPeriodLength, "corrupt value", err)
	}
	if raw := values[keyFallbackPeriod]; raw != "" {
		d, err := cycle.ParseDate(raw)
		if err != nil {
			return nil, errors.NewDataError("settings", keyFallbackPeriod, "corrupt value", err)
		}
		settings.FallbackPeriodStart = &d
	}
	return &settings, nil
}

// SaveSettings stores the cycle settings. A nil fallback clears it.
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings *Settings) error {
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now()
	}
	fallback := ""
	if settings.FallbackPeriodStart != nil {
		fallback = dateKey(*settings.FallbackPeriodStart)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	`)
	if err != nil {
		return dbError("prepare statement", err)
	}
	defer stmt.Close()

	for k, v := range map[string]string{
		keyCycleLength:    strconv.Itoa(settings.Cycle.AverageCycleLength),
		keyPeriodLength:   strconv.Itoa(settings.Cycle.PeriodLength),
		keyFallbackPeriod: fallback,
	} {
		if _, err := stmt.ExecContext(ctx, k, v, settings.UpdatedAt); err != nil {
			return dbError("save setting", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError("commit transaction", err)
	}
	return nil
}

// ============================================================================
// Account Methods
// ============================================================================

// SaveAccount inserts or updates a linked account.
func (s *SQLiteStore) SaveAccount(ctx context.Context, account *models.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, firm, platform, login, server, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			firm = excluded.firm,
			platform = excluded.platform,
			login = excluded.login,
			server = excluded.server,
			label = excluded.label
	`, account.ID, account.Firm, string(account.Platform), account.Login, account.Server, account.Label, account.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return errors.NewValidationError("login", account.Login, "account already linked")
		}
		return dbError("save account", err)
	}
	return nil
}

const accountColumns = "id, firm, platform, login, server, label, created_at"

func scanAccount(row rowScanner) (models.Account, error) {
	var a models.Account
	var platform string
	var created sql.NullTime
	err := row.Scan(&a.ID, &a.Firm, &platform, &a.Login, &a.Server, &a.Label, &created)
	a.Platform = models.Platform(platform)
	a.CreatedAt = created.Time
	return a, err
}

// GetAccount returns a linked account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("account", id)
	}
	if err != nil {
		return nil, dbError("get account", err)
	}
	return &a, nil
}

// ListAccounts returns all linked accounts in the order they were linked.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, dbError("query accounts", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, dbError("scan account", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteAccount unlinks an account and drops its snapshots.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return dbError("delete account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("account", id)
	}
	return nil
}

// SaveSnapshot records a sync result, successful or not.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *models.AccountSnapshot) error {
	if snap.SyncedAt.IsZero() {
		snap.SyncedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_snapshots (account_id, balance, equity, pnl, currency, synced_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snap.AccountID, snap.Balance, snap.Equity, snap.PnL, snap.Currency, snap.SyncedAt, snap.Error)
	if err != nil {
		return dbError("save snapshot", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot of an account.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, accountID string) (*models.AccountSnapshot, error) {
	snaps, err := s.ListSnapshots(ctx, accountID, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, errors.NotFound("account_snapshot", accountID)
	}
	return &snaps[0], nil
}

// ListSnapshots returns an account's snapshots, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, accountID string, limit int) ([]models.AccountSnapshot, error) {
	query := `
		SELECT account_id, balance, equity, pnl, currency, synced_at, error
		FROM account_snapshots WHERE account_id = ?
		ORDER BY synced_at DESC, id DESC`
	args := []interface{}{accountID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("query snapshots", err)
	}
	defer rows.Close()

	var snaps []models.AccountSnapshot
	for rows.Next() {
		var sn models.AccountSnapshot
		if err := rows.Scan(&sn.AccountID, &sn.Balance, &sn.Equity, &sn.PnL, &sn.Currency, &sn.SyncedAt, &sn.Error); err != nil {
			return nil, dbError("scan snapshot", err)
		}
		snaps = append(snaps, sn)
	}
	return snaps, rows.Err()
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a key.
func (s *SQLiteStore) GetLastSync(key string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[key]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, key).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[key] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a key.
func (s *SQLiteStore) SetLastSync(key string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, key, t, time.Now())
	if err != nil {
		return dbError("set last sync", err)
	}

	s.mu.Lock()
	s.syncTimes[key] = t
	s.mu.Unlock()

	return nil
}
