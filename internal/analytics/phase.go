package analytics

import (
	"cycle-journal/internal/cycle"
	"cycle-journal/internal/models"
)

// PhaseBucket holds the statistics of the closed trades attributed to one
// phase.
type PhaseBucket struct {
	Phase cycle.Phase `json:"phase"`
	Stats
}

// PhaseReport is the per-phase breakdown of a trade collection. All four
// phases are always present. Closed trades that could not be attributed
// because no anchor exists are counted in Unattributed.
type PhaseReport struct {
	Buckets      map[cycle.Phase]PhaseBucket `json:"buckets"`
	Unattributed PhaseBucket                 `json:"unattributed"`
}

// AggregateByPhase groups closed trades by the phase attr assigns to them.
// Open trades are ignored.
func AggregateByPhase(trades []models.TradeRecord, attr *Attributor) PhaseReport {
	tallies := make(map[cycle.Phase]*tally, 4)
	for _, p := range cycle.Phases() {
		tallies[p] = &tally{}
	}
	var unknown tally

	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		phase := attr.Phase(t)
		if tl, ok := tallies[phase]; ok {
			tl.add(t)
			continue
		}
		unknown.add(t)
	}

	report := PhaseReport{
		Buckets:      make(map[cycle.Phase]PhaseBucket, 4),
		Unattributed: PhaseBucket{Phase: cycle.PhaseUnknown, Stats: unknown.stats()},
	}
	for p, tl := range tallies {
		report.Buckets[p] = PhaseBucket{Phase: p, Stats: tl.stats()}
	}
	return report
}

// Ordered returns the four buckets in cycle order.
func (r PhaseReport) Ordered() []PhaseBucket {
	out := make([]PhaseBucket, 0, 4)
	for _, p := range cycle.Phases() {
		b, ok := r.Buckets[p]
		if !ok {
			b = PhaseBucket{Phase: p}
		}
		out = append(out, b)
	}
	return out
}

// Attributed returns the number of trades placed in a phase bucket.
func (r PhaseReport) Attributed() int {
	n := 0
	for _, b := range r.Buckets {
		n += b.TradeCount
	}
	return n
}

// Best returns the phase bucket with the highest win rate. Ties go to the
// phase that comes first in the cycle. ok is false when no phase has trades.
func (r PhaseReport) Best() (PhaseBucket, bool) {
	var best PhaseBucket
	found := false
	for _, b := range r.Ordered() {
		if b.TradeCount == 0 {
			continue
		}
		if !found || b.WinRate > best.WinRate {
			best, found = b, true
		}
	}
	return best, found
}

// CycleDayStats is one cell of the cycle-day heat map.
type CycleDayStats struct {
	Day   int         `json:"day"`
	Phase cycle.Phase `json:"phase"`
	Stats
}

// ByCycleDay returns one entry per day of the configured cycle, in order,
// with the closed trades attributed to that day. Trades whose position lacks
// a day number are skipped. A nil attr yields nil.
func ByCycleDay(trades []models.TradeRecord, attr *Attributor) []CycleDayStats {
	if attr == nil {
		return nil
	}
	cfg := attr.Config()
	b, err := cycle.PhaseBoundaries(cfg)
	if err != nil {
		return nil
	}

	tallies := make([]tally, cfg.AverageCycleLength)
	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		pos := attr.Position(t)
		if !pos.Known || pos.CycleDay < 1 || pos.CycleDay > cfg.AverageCycleLength {
			continue
		}
		tallies[pos.CycleDay-1].add(t)
	}

	out := make([]CycleDayStats, cfg.AverageCycleLength)
	for i := range tallies {
		day := i + 1
		out[i] = CycleDayStats{Day: day, Phase: b.PhaseOf(day), Stats: tallies[i].stats()}
	}
	return out
}
