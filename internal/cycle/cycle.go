// Package cycle maps calendar dates to menstrual-cycle days and phases.
//
// Everything in this package is a pure function of its arguments: the cycle
// configuration and the period anchor are always passed in explicitly.
package cycle

import (
	"strings"
	"time"

	"cycle-journal/internal/errors"
)

// Default configuration values.
const (
	DefaultAverageCycleLength = 28
	DefaultPeriodLength       = 5
)

// Phase offsets from the end of menstruation.
const (
	follicularSpan = 7
	ovulationSpan  = 11
)

// Config holds the user's cycle configuration.
type Config struct {
	AverageCycleLength int `json:"average_cycle_length" yaml:"average_cycle_length"`
	PeriodLength       int `json:"period_length" yaml:"period_length"`
}

// DefaultConfig returns a 28 day cycle with a 5 day period.
func DefaultConfig() Config {
	return Config{
		AverageCycleLength: DefaultAverageCycleLength,
		PeriodLength:       DefaultPeriodLength,
	}
}

// Validate rejects configurations that would produce meaningless phases.
func (c Config) Validate() error {
	if c.AverageCycleLength < 1 {
		return errors.NewConfigError("average_cycle_length", c.AverageCycleLength, "must be at least 1")
	}
	if c.PeriodLength < 0 {
		return errors.NewConfigError("period_length", c.PeriodLength, "must not be negative")
	}
	if c.PeriodLength > c.AverageCycleLength {
		return errors.NewConfigError("period_length", c.PeriodLength, "must not exceed average_cycle_length")
	}
	return nil
}

// Phase is a named segment of the cycle.
type Phase string

const (
	PhaseMenstruation Phase = "menstruation"
	PhaseFollicular   Phase = "follicular"
	PhaseOvulation    Phase = "ovulation"
	PhaseLuteal       Phase = "luteal"
	// PhaseUnknown is reported when no anchor is available.
	PhaseUnknown Phase = "unknown"
)

// Phases returns the four cycle phases in cycle order.
func Phases() []Phase {
	return []Phase{PhaseMenstruation, PhaseFollicular, PhaseOvulation, PhaseLuteal}
}

// Valid reports whether p is one of the four cycle phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseMenstruation, PhaseFollicular, PhaseOvulation, PhaseLuteal:
		return true
	}
	return false
}

// Label returns a display name.
func (p Phase) Label() string {
	switch p {
	case PhaseMenstruation:
		return "Menstruation"
	case PhaseFollicular:
		return "Follicular"
	case PhaseOvulation:
		return "Ovulation"
	case PhaseLuteal:
		return "Luteal"
	default:
		return "Unknown"
	}
}

// ParsePhase parses a phase name, case-insensitively.
func ParsePhase(s string) (Phase, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "menstruation", "menstrual", "period":
		return PhaseMenstruation, true
	case "follicular":
		return PhaseFollicular, true
	case "ovulation", "ovulatory":
		return PhaseOvulation, true
	case "luteal":
		return PhaseLuteal, true
	}
	return PhaseUnknown, false
}

// Position is the cycle day and phase of a single date.
type Position struct {
	Known    bool  `json:"known"`
	CycleDay int   `json:"cycle_day"`
	Phase    Phase `json:"phase"`
}

// Unknown is the position reported when there is no anchor.
func Unknown() Position {
	return Position{Phase: PhaseUnknown}
}

// ComputeCycleDay returns the 1-based day of the cycle that date falls on,
// counting from anchorStart. Dates before the anchor wrap backwards through
// the cycle, so the result is always in [1, averageCycleLength].
func ComputeCycleDay(date, anchorStart time.Time, averageCycleLength int) (int, error) {
	if averageCycleLength < 1 {
		return 0, errors.NewConfigError("average_cycle_length", averageCycleLength, "must be at least 1")
	}
	diff := DaysBetween(anchorStart, date)
	return ((diff%averageCycleLength)+averageCycleLength)%averageCycleLength + 1, nil
}

// ComputePhase classifies a cycle day. The first matching range wins, so a
// zero period length leaves menstruation empty and a period length equal to
// the cycle length makes every day menstruation.
func ComputePhase(cycleDay, periodLength, averageCycleLength int) (Phase, error) {
	b, err := PhaseBoundaries(Config{AverageCycleLength: averageCycleLength, PeriodLength: periodLength})
	if err != nil {
		return PhaseUnknown, err
	}
	return b.PhaseOf(cycleDay), nil
}

// Boundaries are the inclusive last days of each phase.
type Boundaries struct {
	MenstruationEnd int `json:"menstruation_end"`
	FollicularEnd   int `json:"follicular_end"`
	OvulationEnd    int `json:"ovulation_end"`
	CycleEnd        int `json:"cycle_end"`
}

// PhaseBoundaries computes the phase boundaries for cfg, clamped to the
// cycle length.
func PhaseBoundaries(cfg Config) (Boundaries, error) {
	if err := cfg.Validate(); err != nil {
		return Boundaries{}, err
	}
	return Boundaries{
		MenstruationEnd: cfg.PeriodLength,
		FollicularEnd:   min(cfg.PeriodLength+follicularSpan, cfg.AverageCycleLength),
		OvulationEnd:    min(cfg.PeriodLength+ovulationSpan, cfg.AverageCycleLength),
		CycleEnd:        cfg.AverageCycleLength,
	}, nil
}

// PhaseOf classifies a cycle day against the boundaries.
func (b Boundaries) PhaseOf(cycleDay int) Phase {
	switch {
	case cycleDay <= b.MenstruationEnd:
		return PhaseMenstruation
	case cycleDay <= b.FollicularEnd:
		return PhaseFollicular
	case cycleDay <= b.OvulationEnd:
		return PhaseOvulation
	default:
		return PhaseLuteal
	}
}

// Range returns the inclusive day range of a phase. ok is false when the
// phase is empty under this configuration.
func (b Boundaries) Range(p Phase) (start, end int, ok bool) {
	switch p {
	case PhaseMenstruation:
		start, end = 1, b.MenstruationEnd
	case PhaseFollicular:
		start, end = b.MenstruationEnd+1, b.FollicularEnd
	case PhaseOvulation:
		start, end = b.FollicularEnd+1, b.OvulationEnd
	case PhaseLuteal:
		start, end = b.OvulationEnd+1, b.CycleEnd
	default:
		return 0, 0, false
	}
	return start, end, start <= end
}

// Resolve returns the position of date under cfg and anchor. A missing
// anchor yields Unknown without an error; an invalid cfg is always rejected.
func Resolve(date time.Time, cfg Config, anchor Anchor) (Position, error) {
	if err := cfg.Validate(); err != nil {
		return Position{}, err
	}
	if !anchor.Valid() {
		return Unknown(), nil
	}
	day, err := ComputeCycleDay(date, anchor.Start, cfg.AverageCycleLength)
	if err != nil {
		return Position{}, err
	}
	phase, err := ComputePhase(day, cfg.PeriodLength, cfg.AverageCycleLength)
	if err != nil {
		return Position{}, err
	}
	return Position{Known: true, CycleDay: day, Phase: phase}, nil
}
