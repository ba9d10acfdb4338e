// Package ingest is the coercion boundary between loosely typed input (CSV
// files, JSON request bodies, CLI flags) and validated trade records.
//
// Everything that reaches the analytics layer has passed through ParseTrade:
// numbers are parsed exactly once here, never inside aggregation code.
package ingest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/id"
	"cycle-journal/internal/models"
	"cycle-journal/internal/security"
)

// RawTrade is a trade as typed by a person: every field is text.
type RawTrade struct {
	ID         string `csv:"id" json:"id"`
	Date       string `csv:"date" json:"date"`
	Instrument string `csv:"instrument" json:"instrument"`
	Strategy   string `csv:"strategy" json:"strategy"`
	Direction  string `csv:"direction" json:"direction"`
	Result     string `csv:"result" json:"result"`
	PnL        string `csv:"pnl" json:"pnl"`
	RMultiple  string `csv:"r_multiple" json:"r_multiple"`
	CyclePhase string `csv:"cycle_phase" json:"cycle_phase"`
	Notes      string `csv:"notes" json:"notes"`
}

var validator = security.NewInputValidator(false)

// ParseTrade validates and converts a raw trade. IDs are assigned when
// missing. A cached cycle phase is carried over only when it names a real
// phase.
func ParseTrade(raw RawTrade) (models.TradeRecord, error) {
	var t models.TradeRecord

	date, err := cycle.ParseDate(raw.Date)
	if err != nil {
		return t, errors.NewValidationError("date", raw.Date, "must be YYYY-MM-DD")
	}
	t.Date = date

	t.ID = strings.TrimSpace(raw.ID)
	if t.ID == "" {
		t.ID = id.New()
	} else if err := validator.ValidateID("id", t.ID); err != nil {
		return t, err
	}

	if err := validator.ValidateInstrument(raw.Instrument); err != nil {
		return t, err
	}
	t.Instrument = security.SanitizeInstrument(raw.Instrument)

	t.Strategy = strings.TrimSpace(security.SanitizeText(raw.Strategy))
	if err := validator.ValidateLabel("strategy", t.Strategy); err != nil {
		return t, err
	}
	t.Notes = strings.TrimSpace(security.SanitizeText(raw.Notes))
	if err := validator.ValidateText("notes", t.Notes, security.MaxNotesLen); err != nil {
		return t, err
	}

	if t.Direction, err = ParseDirection(raw.Direction); err != nil {
		return t, err
	}
	if t.Result, err = ParseResult(raw.Result); err != nil {
		return t, err
	}
	if t.PnL, err = ParseAmount("pnl", raw.PnL); err != nil {
		return t, err
	}
	if t.RMultiple, err = ParseAmount("r_multiple", raw.RMultiple); err != nil {
		return t, err
	}
	if p, ok := cycle.ParsePhase(raw.CyclePhase); ok {
		t.CyclePhase = string(p)
	}
	return t, nil
}

// ParseDirection accepts long/short and buy/sell, case-insensitively.
func ParseDirection(s string) (models.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy", "l", "b":
		return models.DirectionLong, nil
	case "short", "sell", "s":
		return models.DirectionShort, nil
	}
	return "", errors.NewValidationError("direction", s, "must be long or short")
}

// ParseResult accepts win/loss/breakeven/unset and common shorthands. An
// empty result means the trade is still open.
func ParseResult(s string) (models.Result, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win", "w", "tp":
		return models.ResultWin, nil
	case "loss", "l", "sl":
		return models.ResultLoss, nil
	case "breakeven", "be", "b/e", "scratch":
		return models.ResultBreakeven, nil
	case "", "unset", "open":
		return models.ResultUnset, nil
	}
	return "", errors.NewValidationError("result", s, "must be win, loss, breakeven or unset")
}

// ParseAmount parses an optional signed number. Blank input is null.
// Thousands separators and a leading currency sign are tolerated; anything
// else that is not a plain decimal is rejected.
func ParseAmount(field, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	clean := strings.ReplaceAll(s, ",", "")
	neg := false
	if strings.HasPrefix(clean, "-") || strings.HasPrefix(clean, "+") {
		neg = clean[0] == '-'
		clean = clean[1:]
	}
	clean = strings.TrimPrefix(clean, "$")
	if clean == "" || strings.ContainsAny(clean, "+-eE") {
		return nil, errors.NewValidationError(field, s, "not a number")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return nil, errors.NewValidationError(field, s, "not a number")
	}
	if neg {
		d = d.Neg()
	}
	v := d.Round(8).InexactFloat64()
	return &v, nil
}

// FormatAmount renders a nullable amount the way ParseAmount reads it.
func FormatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).String()
}

// ToRaw converts a trade back to its text form, for export.
func ToRaw(t models.TradeRecord) RawTrade {
	return RawTrade{
		ID:         t.ID,
		Date:       cycle.FormatDate(t.Date),
		Instrument: t.Instrument,
		Strategy:   t.Strategy,
		Direction:  string(t.Direction),
		Result:     string(t.Result),
		PnL:        FormatAmount(t.PnL),
		RMultiple:  FormatAmount(t.RMultiple),
		CyclePhase: t.CyclePhase,
		Notes:      t.Notes,
	}
}

// RowError reports a rejected input row.
type RowError struct {
	Line int   `json:"line"`
	Err  error `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}
