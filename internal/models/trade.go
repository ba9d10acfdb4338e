package models

import "time"

// Direction is the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Valid reports whether d is long or short.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Result is the outcome of a trade. ResultUnset means the trade is still open.
type Result string

const (
	ResultWin       Result = "win"
	ResultLoss      Result = "loss"
	ResultBreakeven Result = "breakeven"
	ResultUnset     Result = "unset"
)

// Valid reports whether r is a known result.
func (r Result) Valid() bool {
	switch r {
	case ResultWin, ResultLoss, ResultBreakeven, ResultUnset:
		return true
	}
	return false
}

// Closed reports whether the result marks a finished trade.
func (r Result) Closed() bool {
	return r == ResultWin || r == ResultLoss || r == ResultBreakeven
}

// TradeRecord is a single journaled trade.
//
// CycleDay and CyclePhase are a snapshot taken when the trade was saved.
// They go stale when the cycle settings or the period log change.
type TradeRecord struct {
	ID         string    `json:"id" yaml:"id"`
	Date       time.Time `json:"date" yaml:"date"`
	Instrument string    `json:"instrument,omitempty" yaml:"instrument,omitempty"`
	Strategy   string    `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Direction  Direction `json:"direction" yaml:"direction"`
	Result     Result    `json:"result" yaml:"result"`
	PnL        *float64  `json:"pnl" yaml:"pnl"`
	RMultiple  *float64  `json:"r_multiple" yaml:"r_multiple"`
	CycleDay   *int      `json:"cycle_day,omitempty" yaml:"cycle_day,omitempty"`
	CyclePhase string    `json:"cycle_phase,omitempty" yaml:"cycle_phase,omitempty"`
	Notes      string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// IsClosed reports whether the trade has a final result.
func (t TradeRecord) IsClosed() bool {
	return t.Result.Closed()
}

// PnLValue returns the P&L, treating null as zero.
func (t TradeRecord) PnLValue() float64 {
	if t.PnL == nil {
		return 0
	}
	return *t.PnL
}

// RValue returns the R multiple and whether one was recorded.
func (t TradeRecord) RValue() (float64, bool) {
	if t.RMultiple == nil {
		return 0, false
	}
	return *t.RMultiple, true
}

// Float returns a pointer to v, for the nullable numeric fields.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// JournalEntry is everything logged for one calendar day.
type JournalEntry struct {
	Date      time.Time     `json:"date" yaml:"date"`
	HasPeriod bool          `json:"has_period" yaml:"has_period"`
	Notes     string        `json:"notes,omitempty" yaml:"notes,omitempty"`
	Mood      string        `json:"mood,omitempty" yaml:"mood,omitempty"`
	Trades    []TradeRecord `json:"trades" yaml:"trades"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
}

// Key returns the YYYY-MM-DD key of the entry.
func (e JournalEntry) Key() string {
	return e.Date.Format("2006-01-02")
}

// Trades flattens the trades of every entry, preserving entry order.
func Trades(entries []JournalEntry) []TradeRecord {
	var out []TradeRecord
	for _, e := range entries {
		out = append(out, e.Trades...)
	}
	return out
}
