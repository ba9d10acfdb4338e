package analytics

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/models"
)

var (
	genEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	results  = []models.Result{models.ResultWin, models.ResultLoss, models.ResultBreakeven, models.ResultUnset}
)

// tradeGen generates trades within a quarter, with any result and an
// optional P&L.
func tradeGen() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 90),
		gen.IntRange(0, len(results)-1),
		gen.Float64Range(-500, 500),
		gen.Bool(),
		gen.OneConstOf("EURUSD", "NAS100", "XAUUSD", ""),
	).Map(func(v []interface{}) models.TradeRecord {
		t := models.TradeRecord{
			Date:       cycle.AddDays(genEpoch, v[0].(int)),
			Result:     results[v[1].(int)],
			Direction:  models.DirectionLong,
			Instrument: v[4].(string),
		}
		if v[3].(bool) {
			t.PnL = models.Float(math.Round(v[2].(float64)*100) / 100)
		}
		return t
	})
}

func closedCount(ts []models.TradeRecord) int {
	n := 0
	for _, t := range ts {
		if t.IsClosed() {
			n++
		}
	}
	return n
}

func testAttributor(t *testing.T) *Attributor {
	t.Helper()
	log := cycle.NewPeriodLog(genEpoch, cycle.AddDays(genEpoch, 1), cycle.AddDays(genEpoch, 29))
	attr, err := NewAttributor(cycle.DefaultConfig(), log, nil, AttributeRecomputed)
	if err != nil {
		t.Fatal(err)
	}
	return attr
}

// Property: with an anchor available, the phase buckets together hold
// exactly the closed trades.
func TestProperty_PhaseBucketsCountClosedTrades(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	attr := testAttributor(t)

	properties.Property("sum of bucket counts equals closed trades", prop.ForAll(
		func(trades []models.TradeRecord) bool {
			report := AggregateByPhase(trades, attr)
			return report.Attributed() == closedCount(trades) && report.Unattributed.TradeCount == 0
		},
		gen.SliceOf(tradeGen()),
	))

	properties.Property("without an anchor everything is unattributed", prop.ForAll(
		func(trades []models.TradeRecord) bool {
			noAnchor, err := NewAttributor(cycle.DefaultConfig(), nil, nil, AttributeRecomputed)
			if err != nil {
				return false
			}
			report := AggregateByPhase(trades, noAnchor)
			return report.Attributed() == 0 && report.Unattributed.TradeCount == closedCount(trades)
		},
		gen.SliceOf(tradeGen()),
	))

	properties.TestingRun(t)
}

// Property: a set of only winning trades has an infinite profit factor, and
// the factor is never NaN or Inf as a number.
func TestProperty_ProfitFactorSentinel(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("only wins is infinite", prop.ForAll(
		func(pnls []float64) bool {
			trades := make([]models.TradeRecord, len(pnls))
			for i, p := range pnls {
				trades[i] = models.TradeRecord{
					Date:   cycle.AddDays(genEpoch, i),
					Result: models.ResultWin,
					PnL:    models.Float(p),
				}
			}
			pf := ProfitFactorOf(trades)
			return pf.Infinite && pf.Value == 0
		},
		gen.SliceOfN(5, gen.Float64Range(0.01, 1000)).SuchThat(func(v []float64) bool { return len(v) > 0 }),
	))

	properties.Property("value is always finite", prop.ForAll(
		func(trades []models.TradeRecord) bool {
			pf := ProfitFactorOf(trades)
			return !math.IsNaN(pf.Value) && !math.IsInf(pf.Value, 0) && pf.Value >= 0
		},
		gen.SliceOf(tradeGen()),
	))

	properties.TestingRun(t)
}

// Property: when cumulative P&L never falls, the maximum drawdown is zero
// and the curve has recovered.
func TestProperty_DrawdownZeroBaseline(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("non-decreasing equity has no drawdown", prop.ForAll(
		func(pnls []float64) bool {
			trades := make([]models.TradeRecord, len(pnls))
			for i, p := range pnls {
				trades[i] = models.TradeRecord{
					Date:   cycle.AddDays(genEpoch, i),
					Result: models.ResultWin,
					PnL:    models.Float(p),
				}
			}
			dd := Drawdown(trades)
			return dd.Max == 0 && dd.Current == 0 && dd.Recovered && dd.MaxDate == nil
		},
		gen.SliceOf(gen.Float64Range(0, 1000)),
	))

	properties.Property("drawdown is never negative and max bounds current", prop.ForAll(
		func(trades []models.TradeRecord) bool {
			dd := Drawdown(trades)
			if dd.Max < 0 || dd.Current < 0 || dd.Current > dd.Max+1e-9 {
				return false
			}
			for _, p := range dd.Curve {
				if p.Drawdown < 0 || p.Drawdown > dd.Max+1e-9 {
					return false
				}
			}
			return len(dd.Curve) == closedCount(trades)
		},
		gen.SliceOf(tradeGen()),
	))

	properties.TestingRun(t)
}

// Property: reductions do not depend on the order trades are handed in.
func TestProperty_OrderIndependent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	attr := testAttributor(t)

	properties.Property("shuffled input gives the same report", prop.ForAll(
		func(trades []models.TradeRecord, seed int64) bool {
			// distinct days keep the date sort a total order
			for i := range trades {
				trades[i].Date = cycle.AddDays(genEpoch, i)
			}
			shuffled := make([]models.TradeRecord, len(trades))
			copy(shuffled, trades)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			a, b := AggregateByPhase(trades, attr), AggregateByPhase(shuffled, attr)
			for _, p := range cycle.Phases() {
				if a.Buckets[p].TradeCount != b.Buckets[p].TradeCount ||
					math.Abs(a.Buckets[p].TotalPnL-b.Buckets[p].TotalPnL) > 1e-6 {
					return false
				}
			}
			return Streaks(trades) == Streaks(shuffled) &&
				Drawdown(trades).Max == Drawdown(shuffled).Max
		},
		gen.SliceOf(tradeGen()),
		gen.Int64(),
	))

	properties.Property("best instrument is stable", prop.ForAll(
		func(trades []models.TradeRecord) bool {
			reversed := make([]models.TradeRecord, len(trades))
			for i := range trades {
				reversed[len(trades)-1-i] = trades[i]
			}
			a, okA := BestInstrument(trades)
			b, okB := BestInstrument(reversed)
			return okA == okB && a.Key == b.Key
		},
		gen.SliceOf(tradeGen()),
	))

	properties.TestingRun(t)
}

// Property: win rate stays within [0, 1] and breakeven trades never move it.
func TestProperty_WinRateBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("breakeven does not change win rate", prop.ForAll(
		func(trades []models.TradeRecord, extra int) bool {
			before := Summarize(trades, nil, Options{})
			padded := append([]models.TradeRecord{}, trades...)
			for i := 0; i < extra; i++ {
				padded = append(padded, models.TradeRecord{Date: genEpoch, Result: models.ResultBreakeven})
			}
			after := Summarize(padded, nil, Options{})
			return before.WinRate >= 0 && before.WinRate <= 1 &&
				before.WinRate == after.WinRate &&
				after.ClosedTrades == before.ClosedTrades+extra
		},
		gen.SliceOf(tradeGen()),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
