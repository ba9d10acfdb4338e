package cycle

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// cfgGen generates valid cycle configurations, including the degenerate
// zero-length and full-length periods.
func cfgGen() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 60),
		gen.IntRange(0, 60),
	).Map(func(v []interface{}) Config {
		l := v[0].(int)
		p := v[1].(int) % (l + 1)
		return Config{AverageCycleLength: l, PeriodLength: p}
	})
}

// Property: for any date, anchor and cycle length L >= 1 the cycle day is
// in [1, L], including dates before the anchor.
func TestProperty_CycleDayInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("cycle day within [1, L]", prop.ForAll(
		func(dateOffset, anchorOffset, l int) bool {
			d := AddDays(epoch, dateOffset)
			a := AddDays(epoch, anchorOffset)
			day, err := ComputeCycleDay(d, a, l)
			if err != nil {
				return false
			}
			return day >= 1 && day <= l
		},
		gen.IntRange(-5000, 5000),
		gen.IntRange(-5000, 5000),
		gen.IntRange(1, 90),
	))

	properties.TestingRun(t)
}

// Property: the cycle day repeats every L days and advances by one each day
// except where it wraps from L back to 1.
func TestProperty_CycleDayPeriodic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("day(d) == day(d + k*L)", prop.ForAll(
		func(dateOffset, k, l int) bool {
			d := AddDays(epoch, dateOffset)
			a := epoch
			day1, err1 := ComputeCycleDay(d, a, l)
			day2, err2 := ComputeCycleDay(AddDays(d, k*l), a, l)
			return err1 == nil && err2 == nil && day1 == day2
		},
		gen.IntRange(-2000, 2000),
		gen.IntRange(-20, 20),
		gen.IntRange(1, 60),
	))

	properties.Property("next day advances or wraps", prop.ForAll(
		func(dateOffset, l int) bool {
			d := AddDays(epoch, dateOffset)
			today, _ := ComputeCycleDay(d, epoch, l)
			tomorrow, _ := ComputeCycleDay(AddDays(d, 1), epoch, l)
			if today == l {
				return tomorrow == 1
			}
			return tomorrow == today+1
		},
		gen.IntRange(-2000, 2000),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}

// Property: the four phases partition [1, L]. Every day gets exactly one
// phase, phases appear in cycle order and each phase covers a contiguous
// run whose length matches its boundaries.
func TestProperty_PhasePartition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("phases partition the cycle", prop.ForAll(
		func(cfg Config) bool {
			b, err := PhaseBoundaries(cfg)
			if err != nil {
				return false
			}

			order := map[Phase]int{}
			for i, p := range Phases() {
				order[p] = i
			}
			counts := map[Phase]int{}
			prev := -1
			for day := 1; day <= cfg.AverageCycleLength; day++ {
				phase, err := ComputePhase(day, cfg.PeriodLength, cfg.AverageCycleLength)
				if err != nil || !phase.Valid() {
					return false
				}
				if order[phase] < prev {
					return false
				}
				prev = order[phase]
				counts[phase]++
			}

			total := 0
			for _, p := range Phases() {
				start, end, ok := b.Range(p)
				want := 0
				if ok {
					want = end - start + 1
				}
				if counts[p] != want {
					return false
				}
				total += counts[p]
			}
			return total == cfg.AverageCycleLength && counts[PhaseMenstruation] == cfg.PeriodLength
		},
		cfgGen(),
	))

	properties.TestingRun(t)
}

// Property: Resolve is deterministic and agrees with the two primitives.
func TestProperty_ResolveConsistent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("resolve matches cycle day and phase", prop.ForAll(
		func(cfg Config, dateOffset int) bool {
			d := AddDays(epoch, dateOffset)
			anchor := Anchor{Start: epoch, Source: AnchorLogged}
			pos1, err1 := Resolve(d, cfg, anchor)
			pos2, err2 := Resolve(d, cfg, anchor)
			if err1 != nil || err2 != nil || pos1 != pos2 {
				return false
			}
			day, _ := ComputeCycleDay(d, epoch, cfg.AverageCycleLength)
			phase, _ := ComputePhase(day, cfg.PeriodLength, cfg.AverageCycleLength)
			return pos1.Known && pos1.CycleDay == day && pos1.Phase == phase
		},
		cfgGen(),
		gen.IntRange(-3000, 3000),
	))

	properties.TestingRun(t)
}

// Property: the anchor is always one of the logged days, no later than the
// most recent one, and independent of input order.
func TestProperty_AnchorFromLoggedDays(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("anchor is a logged day", prop.ForAll(
		func(offsets []int) bool {
			if len(offsets) == 0 {
				return !ReduceAnchor(nil, nil).Valid()
			}
			logged := make([]time.Time, len(offsets))
			latest := epoch
			for i, o := range offsets {
				logged[i] = AddDays(epoch, o)
				if logged[i].After(latest) {
					latest = logged[i]
				}
			}
			a := ReduceAnchor(logged, nil)
			if !a.Valid() || a.Start.After(latest) {
				return false
			}
			found := false
			for _, d := range logged {
				if d.Equal(a.Start) {
					found = true
				}
			}

			reversed := make([]time.Time, len(logged))
			for i := range logged {
				reversed[len(logged)-1-i] = logged[i]
			}
			return found && ReduceAnchor(reversed, nil).Start.Equal(a.Start)
		},
		gen.SliceOf(gen.IntRange(0, 120)),
	))

	properties.TestingRun(t)
}
