package cycle

import "time"

// Outlook describes where today sits in the cycle and what comes next.
type Outlook struct {
	Date                time.Time `json:"date"`
	Anchor              Anchor    `json:"anchor"`
	Position            Position  `json:"position"`
	NextPeriodStart     time.Time `json:"next_period_start"`
	DaysUntilNextPeriod int       `json:"days_until_next_period"`
	PhaseDaysRemaining  int       `json:"phase_days_remaining"`
	NextPhase           Phase     `json:"next_phase"`
}

// Forecast projects the cycle forward from today. Without an anchor only
// the date and an unknown position are filled in.
func Forecast(today time.Time, cfg Config, anchor Anchor) (Outlook, error) {
	pos, err := Resolve(today, cfg, anchor)
	if err != nil {
		return Outlook{}, err
	}
	out := Outlook{
		Date:      DateOf(today),
		Anchor:    anchor,
		Position:  pos,
		NextPhase: PhaseUnknown,
	}
	if !pos.Known {
		return out, nil
	}

	b, _ := PhaseBoundaries(cfg)
	out.DaysUntilNextPeriod = cfg.AverageCycleLength - pos.CycleDay + 1
	out.NextPeriodStart = AddDays(today, out.DaysUntilNextPeriod)
	if _, end, ok := b.Range(pos.Phase); ok {
		out.PhaseDaysRemaining = end - pos.CycleDay
	}
	out.NextPhase = nextPhase(b, pos.Phase)
	return out, nil
}

// nextPhase returns the first non-empty phase after p, wrapping around.
func nextPhase(b Boundaries, p Phase) Phase {
	phases := Phases()
	idx := 0
	for i, ph := range phases {
		if ph == p {
			idx = i
		}
	}
	for step := 1; step <= len(phases); step++ {
		cand := phases[(idx+step)%len(phases)]
		if _, _, ok := b.Range(cand); ok {
			return cand
		}
	}
	return p
}

// Day is one date of a cycle calendar.
type Day struct {
	Date     time.Time `json:"date"`
	Position Position  `json:"position"`
}

// Calendar resolves every date from `from` to `to`, both inclusive, against
// one anchor. An inverted range yields no days.
func Calendar(from, to time.Time, cfg Config, anchor Anchor) ([]Day, error) {
	return calendar(from, to, cfg, func(time.Time) Anchor { return anchor })
}

// Calendar resolves every date from `from` to `to` against the anchor in
// effect on that date, so past days agree with Resolve(d, cfg,
// l.AnchorOn(d, fallback)).
func (l *PeriodLog) Calendar(from, to time.Time, cfg Config, fallback *time.Time) ([]Day, error) {
	return calendar(from, to, cfg, func(d time.Time) Anchor { return l.AnchorOn(d, fallback) })
}

func calendar(from, to time.Time, cfg Config, anchorOn func(time.Time) Anchor) ([]Day, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := DaysBetween(from, to)
	if n < 0 {
		return nil, nil
	}
	days := make([]Day, 0, n+1)
	for i := 0; i <= n; i++ {
		d := AddDays(from, i)
		pos, err := Resolve(d, cfg, anchorOn(d))
		if err != nil {
			return nil, err
		}
		days = append(days, Day{Date: d, Position: pos})
	}
	return days, nil
}
