// Package journal is the application service behind the CLI and the HTTP
// API. It owns the rules that span storage and the cycle model: which
// settings are in effect, how the anchor is derived from the period log,
// and when a trade's cached cycle tags are written.
package journal

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cycle-journal/internal/analytics"
	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/id"
	"cycle-journal/internal/logging"
	"cycle-journal/internal/models"
	"cycle-journal/internal/store"
)

// Service coordinates the journal store with the cycle model.
type Service struct {
	store    store.DataStore
	defaults store.Settings
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService builds a service. defaults are the cycle settings from the
// config file, used until settings are saved through UpdateSettings.
func NewService(ds store.DataStore, defaults store.Settings, logger zerolog.Logger) (*Service, error) {
	if err := defaults.Cycle.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		store:    ds,
		defaults: defaults,
		logger:   logger.With().Str("component", "journal").Logger(),
		now:      time.Now,
	}, nil
}

// Today returns the current civil date.
func (s *Service) Today() time.Time {
	return cycle.DateOf(s.now())
}

// Settings returns the saved settings, or the defaults when none were saved.
func (s *Service) Settings(ctx context.Context) (*store.Settings, error) {
	saved, err := s.store.GetSettings(ctx)
	if errors.Is(err, errors.ErrNotFound) {
		d := s.defaults
		return &d, nil
	}
	if err != nil {
		return nil, err
	}
	if err := saved.Cycle.Validate(); err != nil {
		return nil, errors.Wrap(err, "stored cycle settings")
	}
	return saved, nil
}

// UpdateSettings validates and saves cycle settings. Invalid settings are
// rejected before anything is written.
func (s *Service) UpdateSettings(ctx context.Context, cfg cycle.Config, fallback *time.Time) (*store.Settings, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fallback != nil {
		d := cycle.DateOf(*fallback)
		fallback = &d
	}
	settings := &store.Settings{Cycle: cfg, FallbackPeriodStart: fallback, UpdatedAt: s.now()}
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	if err := s.store.SetLastSync(string(store.SyncTypeSettings), settings.UpdatedAt); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record settings change")
	}
	s.logger.Info().
		Int("cycle_length", cfg.AverageCycleLength).
		Int("period_length", cfg.PeriodLength).
		Msg("Cycle settings updated")
	return settings, nil
}

// PeriodLog loads the period log from storage.
func (s *Service) PeriodLog(ctx context.Context) (*cycle.PeriodLog, error) {
	dates, err := s.store.PeriodDates(ctx)
	if err != nil {
		return nil, err
	}
	return cycle.NewPeriodLog(dates...), nil
}

// state is everything needed to place a date in the cycle.
type state struct {
	settings *store.Settings
	log      *cycle.PeriodLog
}

func (s *Service) load(ctx context.Context) (*state, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	log, err := s.PeriodLog(ctx)
	if err != nil {
		return nil, err
	}
	return &state{settings: settings, log: log}, nil
}

func (st *state) anchor() cycle.Anchor {
	return st.log.Anchor(st.settings.FallbackPeriodStart)
}

func (st *state) position(date time.Time) (cycle.Position, error) {
	return cycle.Resolve(date, st.settings.Cycle, st.log.AnchorOn(date, st.settings.FallbackPeriodStart))
}

// Anchor returns the current anchor, derived from the period log on every
// call.
func (s *Service) Anchor(ctx context.Context) (cycle.Anchor, error) {
	st, err := s.load(ctx)
	if err != nil {
		return cycle.NoAnchor(), err
	}
	return st.anchor(), nil
}

// Position returns the cycle position of a date, using the anchor in
// effect on that date.
func (s *Service) Position(ctx context.Context, date time.Time) (cycle.Position, error) {
	st, err := s.load(ctx)
	if err != nil {
		return cycle.Unknown(), err
	}
	return st.position(date)
}

// Outlook forecasts the cycle from today.
func (s *Service) Outlook(ctx context.Context, today time.Time) (cycle.Outlook, error) {
	st, err := s.load(ctx)
	if err != nil {
		return cycle.Outlook{}, err
	}
	return cycle.Forecast(today, st.settings.Cycle, st.anchor())
}

// Calendar resolves every date in [from, to] the way Position does, each
// against the anchor in effect on that date.
func (s *Service) Calendar(ctx context.Context, from, to time.Time) ([]cycle.Day, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return st.log.Calendar(from, to, st.settings.Cycle, st.settings.FallbackPeriodStart)
}

// History is the period log grouped into episodes.
type History struct {
	Anchor              cycle.Anchor    `json:"anchor"`
	Episodes            []cycle.Episode `json:"episodes"`
	ConfiguredLength    int             `json:"configured_cycle_length"`
	ObservedCycleLength float64         `json:"observed_cycle_length"`
}

// PeriodHistory returns logged periods, most recent first.
func (s *Service) PeriodHistory(ctx context.Context) (*History, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &History{
		Anchor:              st.anchor(),
		Episodes:            st.log.Episodes(),
		ConfiguredLength:    st.settings.Cycle.AverageCycleLength,
		ObservedCycleLength: st.log.ObservedCycleLength(),
	}, nil
}

// LogPeriod flags or unflags date as a period day and returns the anchor
// that results.
func (s *Service) LogPeriod(ctx context.Context, date time.Time, on bool) (cycle.Anchor, error) {
	if err := s.store.SetPeriod(ctx, date, on); err != nil {
		return cycle.NoAnchor(), err
	}
	anchor, err := s.Anchor(ctx)
	if err != nil {
		return anchor, err
	}
	logging.LogPeriod(s.logger, cycle.FormatDate(date), on, anchor.String())
	return anchor, nil
}

// Entries lists journal entries.
func (s *Service) Entries(ctx context.Context, filter store.EntryFilter) ([]models.JournalEntry, error) {
	return s.store.ListEntries(ctx, filter)
}

// Entry returns the entry of one day. A day with nothing logged is an
// empty entry, not an error.
func (s *Service) Entry(ctx context.Context, date time.Time) (*models.JournalEntry, error) {
	e, err := s.store.GetEntry(ctx, date)
	if errors.Is(err, errors.ErrNotFound) {
		return &models.JournalEntry{Date: cycle.DateOf(date), Trades: []models.TradeRecord{}}, nil
	}
	return e, err
}

// Annotate sets the notes and mood of a day, keeping its period flag.
func (s *Service) Annotate(ctx context.Context, date time.Time, notes, mood string) (*models.JournalEntry, error) {
	e, err := s.Entry(ctx, date)
	if err != nil {
		return nil, err
	}
	e.Notes = notes
	e.Mood = mood
	e.UpdatedAt = s.now()
	if err := s.store.SaveEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Trades lists trades.
func (s *Service) Trades(ctx context.Context, filter store.TradeFilter) ([]models.TradeRecord, error) {
	return s.store.ListTrades(ctx, filter)
}

// Trade returns one trade.
func (s *Service) Trade(ctx context.Context, tradeID string) (*models.TradeRecord, error) {
	return s.store.GetTrade(ctx, tradeID)
}

func validateTrade(t *models.TradeRecord) error {
	if t.Date.IsZero() {
		return errors.NewValidationError("date", "", "is required")
	}
	if !t.Direction.Valid() {
		return errors.NewValidationError("direction", t.Direction, "must be long or short")
	}
	if t.Result == "" {
		t.Result = models.ResultUnset
	}
	if !t.Result.Valid() {
		return errors.NewValidationError("result", t.Result, "must be win, loss, breakeven or unset")
	}
	return nil
}

// tag writes the cycle position in effect at save time onto the trade.
// Without an anchor the cached tags are cleared.
func (st *state) tag(t *models.TradeRecord) error {
	pos, err := st.position(t.Date)
	if err != nil {
		return err
	}
	if !pos.Known {
		t.CycleDay = nil
		t.CyclePhase = ""
		return nil
	}
	t.CycleDay = models.Int(pos.CycleDay)
	t.CyclePhase = string(pos.Phase)
	return nil
}

// AddTrade caches the trade's cycle position and saves it. IDs are
// assigned when missing.
func (s *Service) AddTrade(ctx context.Context, t *models.TradeRecord) error {
	if err := validateTrade(t); err != nil {
		return err
	}
	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	return s.addTagged(ctx, st, t)
}

func (s *Service) addTagged(ctx context.Context, st *state, t *models.TradeRecord) error {
	t.Date = cycle.DateOf(t.Date)
	if t.ID == "" {
		t.ID = id.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if err := st.tag(t); err != nil {
		return err
	}
	if err := s.store.AddTrade(ctx, t); err != nil {
		return err
	}

	day := 0
	if t.CycleDay != nil {
		day = *t.CycleDay
	}
	logging.LogTrade(s.logger, t.ID, t.Instrument, string(t.Result), day, t.CyclePhase)
	return nil
}

// UpdateTrade re-tags and saves a changed trade.
func (s *Service) UpdateTrade(ctx context.Context, t *models.TradeRecord) error {
	if err := validateTrade(t); err != nil {
		return err
	}
	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	t.Date = cycle.DateOf(t.Date)
	if err := st.tag(t); err != nil {
		return err
	}
	return s.store.UpdateTrade(ctx, t)
}

// CloseTrade records the outcome of an open trade. Nil pnl or r leave the
// stored values unchanged.
func (s *Service) CloseTrade(ctx context.Context, tradeID string, result models.Result, pnl, r *float64) (*models.TradeRecord, error) {
	if !result.Closed() {
		return nil, errors.NewValidationError("result", result, "must be win, loss or breakeven")
	}
	t, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	t.Result = result
	if pnl != nil {
		t.PnL = pnl
	}
	if r != nil {
		t.RMultiple = r
	}
	if err := s.UpdateTrade(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTrade removes a trade.
func (s *Service) DeleteTrade(ctx context.Context, tradeID string) error {
	if err := s.store.DeleteTrade(ctx, tradeID); err != nil {
		return err
	}
	s.logger.Info().Str("trade_id", tradeID).Msg("Trade deleted")
	return nil
}

// ImportResult reports a bulk import.
type ImportResult struct {
	Imported   int      `json:"imported"`
	Duplicates []string `json:"duplicates,omitempty"`
}

// ImportTrades saves trades in order. Trades whose ID already exists are
// skipped and reported; any other failure stops the import.
func (s *Service) ImportTrades(ctx context.Context, trades []models.TradeRecord) (*ImportResult, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{}
	for i := range trades {
		t := trades[i]
		if err := validateTrade(&t); err != nil {
			return res, errors.Wrapf(err, "trade %d", i+1)
		}
		if t.ID != "" {
			if _, err := s.store.GetTrade(ctx, t.ID); err == nil {
				res.Duplicates = append(res.Duplicates, t.ID)
				continue
			}
		}
		if err := s.addTagged(ctx, st, &t); err != nil {
			return res, errors.Wrapf(err, "trade %d", i+1)
		}
		res.Imported++
	}
	s.logger.Info().Int("imported", res.Imported).Int("duplicates", len(res.Duplicates)).Msg("Trades imported")
	return res, nil
}

// RefreshPhaseCache re-tags every trade from the current settings and
// period log, and returns how many trades changed.
func (s *Service) RefreshPhaseCache(ctx context.Context) (int, error) {
	st, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	trades, err := s.store.ListTrades(ctx, store.TradeFilter{})
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range trades {
		t := trades[i]
		before := t.CyclePhase
		beforeDay := t.CycleDay
		if err := st.tag(&t); err != nil {
			return changed, err
		}
		if before == t.CyclePhase && sameDay(beforeDay, t.CycleDay) {
			continue
		}
		if err := s.store.UpdateTrade(ctx, &t); err != nil {
			return changed, err
		}
		changed++
	}
	s.logger.Info().Int("trades", len(trades)).Int("changed", changed).Msg("Phase cache refreshed")
	return changed, nil
}

func sameDay(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Attributor builds an attributor from the settings and period log in
// effect now.
func (s *Service) Attributor(ctx context.Context, mode analytics.Mode) (*analytics.Attributor, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.NewAttributor(st.settings.Cycle, st.log, st.settings.FallbackPeriodStart, mode)
}

// TradePhases returns a trade's cached cycle tag next to the one the
// current settings and period log give it.
func (s *Service) TradePhases(ctx context.Context, tradeID string) (analytics.PhaseView, error) {
	t, err := s.Trade(ctx, tradeID)
	if err != nil {
		return analytics.PhaseView{}, err
	}
	attr, err := s.Attributor(ctx, analytics.AttributeRecomputed)
	if err != nil {
		return analytics.PhaseView{}, err
	}
	return attr.Views(*t), nil
}

// Analyze loads the trades matching filter together with an attributor.
func (s *Service) Analyze(ctx context.Context, filter store.TradeFilter, mode analytics.Mode) ([]models.TradeRecord, *analytics.Attributor, error) {
	attr, err := s.Attributor(ctx, mode)
	if err != nil {
		return nil, nil, err
	}
	trades, err := s.store.ListTrades(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return trades, attr, nil
}

// Summary computes the dashboard summary over the filtered trades.
func (s *Service) Summary(ctx context.Context, filter store.TradeFilter, mode analytics.Mode, opts analytics.Options) (analytics.Summary, error) {
	trades, attr, err := s.Analyze(ctx, filter, mode)
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(trades, attr, opts), nil
}

// Phases aggregates the filtered trades by cycle phase.
func (s *Service) Phases(ctx context.Context, filter store.TradeFilter, mode analytics.Mode) (analytics.PhaseReport, error) {
	trades, attr, err := s.Analyze(ctx, filter, mode)
	if err != nil {
		return analytics.PhaseReport{}, err
	}
	return analytics.AggregateByPhase(trades, attr), nil
}
