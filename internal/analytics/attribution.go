// Package analytics joins journaled trades with the cycle model and reduces
// them to per-phase and per-group statistics.
//
// All reductions are total: empty or partial trade collections produce
// zeroed results, never errors. Trades are always re-sorted by date before
// anything order-dependent (streaks, drawdown, series) is computed.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/models"
)

// Mode selects where a trade's phase comes from.
type Mode string

const (
	// AttributeRecomputed derives the phase from the trade date, the current
	// settings and the period anchor in effect on that date.
	AttributeRecomputed Mode = "recomputed"
	// AttributeRecorded trusts the phase cached on the trade when it was
	// saved, recomputing only when none was cached.
	AttributeRecorded Mode = "recorded"
)

// ParseMode parses an attribution mode. The empty string selects
// AttributeRecomputed.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", AttributeRecomputed:
		return AttributeRecomputed, nil
	case AttributeRecorded:
		return AttributeRecorded, nil
	}
	return "", errors.NewValidationError("mode", s, fmt.Sprintf("must be %q or %q", AttributeRecomputed, AttributeRecorded))
}

// Attributor assigns cycle positions to trades.
type Attributor struct {
	cfg      cycle.Config
	log      *cycle.PeriodLog
	fallback *time.Time
	mode     Mode
}

// NewAttributor validates cfg up front so that attribution itself can never
// fail. log may be nil when no period has been logged.
func NewAttributor(cfg cycle.Config, log *cycle.PeriodLog, fallback *time.Time, mode Mode) (*Attributor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = AttributeRecomputed
	}
	if log == nil {
		log = cycle.NewPeriodLog()
	}
	return &Attributor{cfg: cfg, log: log, fallback: fallback, mode: mode}, nil
}

// Config returns the cycle configuration used for attribution.
func (a *Attributor) Config() cycle.Config {
	return a.cfg
}

// Mode returns the attribution mode.
func (a *Attributor) Mode() Mode {
	return a.mode
}

// Position returns the cycle position a trade is attributed to. A nil
// Attributor only reads cached tags.
func (a *Attributor) Position(t models.TradeRecord) cycle.Position {
	if a == nil {
		if pos, ok := recorded(t); ok {
			return pos
		}
		return cycle.Unknown()
	}
	if a.mode == AttributeRecorded {
		if pos, ok := recorded(t); ok {
			return pos
		}
	}
	return a.current(t)
}

// Phase is shorthand for Position(t).Phase.
func (a *Attributor) Phase(t models.TradeRecord) cycle.Phase {
	return a.Position(t).Phase
}

func (a *Attributor) current(t models.TradeRecord) cycle.Position {
	anchor := a.log.AnchorOn(t.Date, a.fallback)
	pos, err := cycle.Resolve(t.Date, a.cfg, anchor)
	if err != nil {
		return cycle.Unknown()
	}
	return pos
}

func recorded(t models.TradeRecord) (cycle.Position, bool) {
	phase, ok := cycle.ParsePhase(t.CyclePhase)
	if !ok {
		return cycle.Position{}, false
	}
	pos := cycle.Position{Known: true, Phase: phase}
	if t.CycleDay != nil {
		pos.CycleDay = *t.CycleDay
	}
	return pos, true
}

// PhaseView shows both the cached and the freshly computed attribution of a
// trade.
type PhaseView struct {
	TradeID  string         `json:"trade_id"`
	Recorded cycle.Position `json:"recorded"`
	Current  cycle.Position `json:"current"`
	Stale    bool           `json:"stale"`
}

// Views returns the as-recorded and as-of-now positions of a trade. Stale is
// set when a cached tag exists and disagrees with the current one.
func (a *Attributor) Views(t models.TradeRecord) PhaseView {
	v := PhaseView{TradeID: t.ID, Recorded: cycle.Unknown(), Current: cycle.Unknown()}
	if pos, ok := recorded(t); ok {
		v.Recorded = pos
	}
	if a != nil {
		v.Current = a.current(t)
	}
	v.Stale = v.Recorded.Known && v.Recorded != v.Current
	return v
}
