package analytics

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/models"
)

func day(s string) time.Time {
	d, err := cycle.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func trade(date string, result models.Result, pnl float64) models.TradeRecord {
	return models.TradeRecord{
		ID:        date + string(result),
		Date:      day(date),
		Direction: models.DirectionLong,
		Result:    result,
		PnL:       models.Float(pnl),
	}
}

func exampleAttributor(t *testing.T, mode Mode) *Attributor {
	t.Helper()
	log := cycle.NewPeriodLog(day("2025-01-01"), day("2025-01-02"))
	attr, err := NewAttributor(cycle.DefaultConfig(), log, nil, mode)
	require.NoError(t, err)
	return attr
}

func TestNewAttributor_RejectsInvalidConfig(t *testing.T) {
	_, err := NewAttributor(cycle.Config{AverageCycleLength: 28, PeriodLength: 30}, nil, nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
}

func TestAggregateByPhase(t *testing.T) {
	attr := exampleAttributor(t, AttributeRecomputed)
	trades := []models.TradeRecord{
		trade("2025-01-02", models.ResultWin, 100),       // day 2, menstruation
		trade("2025-01-03", models.ResultLoss, -40),      // day 3, menstruation
		trade("2025-01-04", models.ResultBreakeven, 0),   // day 4, menstruation
		trade("2025-01-06", models.ResultWin, 60),        // day 6, follicular
		trade("2025-01-14", models.ResultLoss, -30),      // day 14, ovulation
		trade("2025-01-20", models.ResultWin, 10),        // day 20, luteal
		trade("2025-01-20", models.ResultUnset, 999),     // open, ignored
	}
	r := trades[4]
	r.RMultiple = models.Float(-1)
	trades[4] = r

	report := AggregateByPhase(trades, attr)

	m := report.Buckets[cycle.PhaseMenstruation]
	assert.Equal(t, 3, m.TradeCount)
	assert.Equal(t, 1, m.WinCount)
	assert.Equal(t, 1, m.LossCount)
	assert.Equal(t, 1, m.BreakevenCount)
	assert.InDelta(t, 60, m.TotalPnL, 1e-9)
	assert.InDelta(t, 20, m.AveragePnL, 1e-9)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)

	o := report.Buckets[cycle.PhaseOvulation]
	assert.Equal(t, 1, o.TradeCount)
	assert.Equal(t, 0.0, o.WinRate)
	assert.Equal(t, 1, o.RCount)
	assert.InDelta(t, -1, o.AverageR, 1e-9)

	assert.Equal(t, 1, report.Buckets[cycle.PhaseFollicular].TradeCount)
	assert.Equal(t, 1, report.Buckets[cycle.PhaseLuteal].TradeCount)
	assert.Equal(t, 6, report.Attributed())
	assert.Equal(t, 0, report.Unattributed.TradeCount)

	ordered := report.Ordered()
	require.Len(t, ordered, 4)
	assert.Equal(t, cycle.PhaseMenstruation, ordered[0].Phase)
	assert.Equal(t, cycle.PhaseLuteal, ordered[3].Phase)

	best, ok := report.Best()
	require.True(t, ok)
	// follicular and luteal both win 100%; follicular comes first
	assert.Equal(t, cycle.PhaseFollicular, best.Phase)
}

func TestAggregateByPhase_Empty(t *testing.T) {
	report := AggregateByPhase(nil, exampleAttributor(t, AttributeRecomputed))
	require.Len(t, report.Buckets, 4)
	for _, b := range report.Ordered() {
		assert.Zero(t, b.TradeCount)
		assert.Zero(t, b.WinRate)
		assert.Zero(t, b.AveragePnL)
	}
	_, ok := report.Best()
	assert.False(t, ok)
}

func TestAttributionModes(t *testing.T) {
	tr := trade("2025-01-06", models.ResultWin, 10)
	tr.CyclePhase = string(cycle.PhaseLuteal)
	tr.CycleDay = models.Int(22)

	recomputed := exampleAttributor(t, AttributeRecomputed)
	assert.Equal(t, cycle.PhaseFollicular, recomputed.Phase(tr))

	recorded := exampleAttributor(t, AttributeRecorded)
	assert.Equal(t, cycle.PhaseLuteal, recorded.Phase(tr))
	assert.Equal(t, 22, recorded.Position(tr).CycleDay)

	// no cached tag falls back to recomputing
	untagged := trade("2025-01-06", models.ResultWin, 10)
	assert.Equal(t, cycle.PhaseFollicular, recorded.Phase(untagged))

	v := recomputed.Views(tr)
	assert.Equal(t, cycle.PhaseLuteal, v.Recorded.Phase)
	assert.Equal(t, cycle.PhaseFollicular, v.Current.Phase)
	assert.True(t, v.Stale)

	assert.False(t, recomputed.Views(untagged).Stale)
}

func TestAttribution_UsesAnchorInEffectOnTradeDate(t *testing.T) {
	log := cycle.NewPeriodLog(day("2025-01-01"), day("2025-02-03"))
	attr, err := NewAttributor(cycle.DefaultConfig(), log, nil, AttributeRecomputed)
	require.NoError(t, err)

	// 2025-01-30 sits in the first logged cycle, which ran 33 days
	pos := attr.Position(trade("2025-01-30", models.ResultWin, 1))
	assert.Equal(t, 2, pos.CycleDay)
	pos = attr.Position(trade("2025-02-04", models.ResultWin, 1))
	assert.Equal(t, 2, pos.CycleDay)
	assert.Equal(t, cycle.PhaseMenstruation, pos.Phase)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, AttributeRecomputed, m)

	m, err = ParseMode("Recorded")
	require.NoError(t, err)
	assert.Equal(t, AttributeRecorded, m)

	_, err = ParseMode("cached")
	assert.True(t, errors.Is(err, errors.ErrInputValidation))
}

func TestStreaks(t *testing.T) {
	trades := []models.TradeRecord{
		trade("2025-01-05", models.ResultLoss, -1),
		trade("2025-01-01", models.ResultWin, 1),
		trade("2025-01-02", models.ResultWin, 1),
		trade("2025-01-03", models.ResultWin, 1),
		trade("2025-01-04", models.ResultBreakeven, 0),
		trade("2025-01-06", models.ResultLoss, -1),
		trade("2025-01-07", models.ResultUnset, 0),
		trade("2025-01-08", models.ResultLoss, -1),
	}
	s := Streaks(trades)
	assert.Equal(t, 3, s.LongestWin)
	assert.Equal(t, 2, s.LongestLoss)
	assert.Equal(t, Streak{Kind: StreakLoss, Length: 1}, s.Current)

	assert.Equal(t, StreakStats{Current: Streak{Kind: StreakNone}}, Streaks(nil))
}

func TestProfitFactor(t *testing.T) {
	tests := []struct {
		name   string
		trades []models.TradeRecord
		want   ProfitFactor
	}{
		{"empty", nil, ProfitFactor{}},
		{"only breakeven", []models.TradeRecord{trade("2025-01-01", models.ResultBreakeven, 0)}, ProfitFactor{}},
		{"only wins", []models.TradeRecord{trade("2025-01-01", models.ResultWin, 50)}, ProfitFactor{Infinite: true}},
		{"only losses", []models.TradeRecord{trade("2025-01-01", models.ResultLoss, -50)}, ProfitFactor{Value: 0}},
		{
			"mixed",
			[]models.TradeRecord{
				trade("2025-01-01", models.ResultWin, 300),
				trade("2025-01-02", models.ResultLoss, -100),
				trade("2025-01-03", models.ResultLoss, -50),
				trade("2025-01-04", models.ResultUnset, -1000),
			},
			ProfitFactor{Value: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProfitFactorOf(tt.trades))
		})
	}

	b, err := json.Marshal(ProfitFactor{Infinite: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":0,"infinite":true}`, string(b))
	assert.Equal(t, "inf", ProfitFactor{Infinite: true}.String())
	assert.Equal(t, "2.00", ProfitFactor{Value: 2}.String())
}

func TestDrawdown(t *testing.T) {
	trades := []models.TradeRecord{
		trade("2025-01-01", models.ResultWin, 100),
		trade("2025-01-02", models.ResultLoss, -30),
		trade("2025-01-03", models.ResultLoss, -50),
		trade("2025-01-04", models.ResultWin, 40),
	}
	dd := Drawdown(trades)
	assert.InDelta(t, 80, dd.Max, 1e-9)
	require.NotNil(t, dd.MaxDate)
	assert.Equal(t, day("2025-01-03"), *dd.MaxDate)
	assert.InDelta(t, 40, dd.Current, 1e-9)
	assert.False(t, dd.Recovered)
	assert.InDelta(t, 100, dd.Peak, 1e-9)
	require.Len(t, dd.Curve, 4)
	assert.InDelta(t, 60, dd.Curve[3].Cumulative, 1e-9)

	trades = append(trades, trade("2025-01-05", models.ResultWin, 40))
	dd = Drawdown(trades)
	assert.True(t, dd.Recovered)
	assert.InDelta(t, 80, dd.Max, 1e-9)
}

func TestDrawdown_LossFromStart(t *testing.T) {
	dd := Drawdown([]models.TradeRecord{trade("2025-01-01", models.ResultLoss, -25)})
	assert.InDelta(t, 25, dd.Max, 1e-9)
	assert.InDelta(t, 0, dd.Peak, 1e-9)
}

func TestBestAndWorstDays(t *testing.T) {
	trades := []models.TradeRecord{
		trade("2025-01-01", models.ResultWin, 50),
		trade("2025-01-01", models.ResultLoss, -20),
		trade("2025-01-02", models.ResultWin, 100),
		trade("2025-01-03", models.ResultLoss, -70),
		trade("2025-01-04", models.ResultWin, 30),
		trade("2025-01-05", models.ResultWin, 5),
		trade("2025-01-06", models.ResultUnset, 1000),
	}

	best := BestDays(trades, 0)
	require.Len(t, best, DefaultTopDays)
	assert.Equal(t, day("2025-01-02"), best[0].Date)
	// 01-01 and 01-04 both net 30; the earlier date wins the tie
	assert.Equal(t, day("2025-01-01"), best[1].Date)
	assert.Equal(t, 2, best[1].Trades)
	assert.Equal(t, day("2025-01-04"), best[2].Date)

	worst := WorstDays(trades, 1)
	require.Len(t, worst, 1)
	assert.Equal(t, day("2025-01-03"), worst[0].Date)
	assert.InDelta(t, -70, worst[0].PnL, 1e-9)

	assert.Empty(t, BestDays(nil, 3))
}

func TestGroupBy(t *testing.T) {
	eur := trade("2025-01-06", models.ResultWin, 10) // Monday
	eur.Instrument = "eurusd"
	eur.Strategy = "breakout"
	nas := trade("2025-01-07", models.ResultLoss, -5) // Tuesday
	nas.Instrument = "NAS100"
	nas.Strategy = "breakout"
	gold := trade("2025-01-13", models.ResultWin, 30) // Monday
	gold.Instrument = "XAUUSD"
	none := trade("2025-01-14", models.ResultWin, 30) // Tuesday

	trades := []models.TradeRecord{eur, nas, gold, none}

	groups := GroupBy(trades, ByInstrument)
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	assert.Equal(t, []string{"EURUSD", "NAS100", Unspecified, "XAUUSD"}, keys)

	weekdays := GroupBy(trades, ByWeekday)
	require.Len(t, weekdays, 2)
	assert.Equal(t, "Monday", weekdays[0].Key)
	assert.InDelta(t, 1.0, weekdays[0].WinRate, 1e-9)
	assert.InDelta(t, 0.5, weekdays[1].WinRate, 1e-9)

	assert.Equal(t, "2025-W02", ByWeek(eur))
	assert.Equal(t, "2025-01", ByMonth(eur))
	assert.Equal(t, "2025-01-06", ByDay(eur))
	assert.Equal(t, "long", ByDirection(eur))

	w, ok := BestWeekday(trades)
	require.True(t, ok)
	assert.Equal(t, "Monday", w.Key)

	// XAUUSD and the unlabelled trade tie on 30; alphabetical order decides
	i, ok := BestInstrument(trades)
	require.True(t, ok)
	assert.Equal(t, Unspecified, i.Key)

	s, ok := BestStrategy(trades)
	require.True(t, ok)
	assert.Equal(t, Unspecified, s.Key)

	_, ok = BestStrategy(nil)
	assert.False(t, ok)
}

func TestByCycleDay(t *testing.T) {
	attr := exampleAttributor(t, AttributeRecomputed)
	trades := []models.TradeRecord{
		trade("2025-01-01", models.ResultWin, 10),
		trade("2025-01-29", models.ResultLoss, -4),
		trade("2025-01-14", models.ResultWin, 7),
	}
	days := ByCycleDay(trades, attr)
	require.Len(t, days, 28)
	assert.Equal(t, 1, days[0].Day)
	assert.Equal(t, 2, days[0].TradeCount)
	assert.InDelta(t, 6, days[0].TotalPnL, 1e-9)
	assert.Equal(t, cycle.PhaseOvulation, days[13].Phase)
	assert.Equal(t, 1, days[13].WinCount)

	assert.Nil(t, ByCycleDay(trades, nil))
}

func TestKeyFor_CycleKeys(t *testing.T) {
	attr := exampleAttributor(t, AttributeRecomputed)
	trades := []models.TradeRecord{
		trade("2025-01-01", models.ResultWin, 10),
		trade("2025-01-29", models.ResultLoss, -4),
		trade("2025-01-14", models.ResultWin, 7),
		trade("2025-01-10", models.ResultWin, 2),
	}

	key, ok := KeyFor("cycle-day", attr)
	require.True(t, ok)
	groups := GroupBy(trades, key)
	require.Len(t, groups, 3)
	assert.Equal(t, "Day 01", groups[0].Key)
	assert.Equal(t, 2, groups[0].TradeCount)
	assert.Equal(t, "Day 10", groups[1].Key)
	assert.Equal(t, "Day 14", groups[2].Key)

	key, ok = KeyFor("phase", attr)
	require.True(t, ok)
	assert.Equal(t, string(cycle.PhaseOvulation), key(trades[2]))

	// no anchor and nothing recorded
	key, ok = KeyFor("cycle-day", nil)
	require.True(t, ok)
	assert.Equal(t, Unspecified, key(trades[0]))

	key, ok = KeyFor("instrument", attr)
	require.True(t, ok)
	assert.Equal(t, "Unspecified", key(trades[0]))

	_, ok = KeyFor("moon", attr)
	assert.False(t, ok)
	assert.Contains(t, KeyNames(), "cycle-day")
	assert.True(t, sort.StringsAreSorted(KeyNames()))
}

func TestTimeSeries(t *testing.T) {
	trades := []models.TradeRecord{
		trade("2025-01-31", models.ResultLoss, -5),
		trade("2025-01-06", models.ResultWin, 10),
		trade("2025-01-08", models.ResultWin, 20),
		trade("2025-02-03", models.ResultWin, 15),
	}

	daily := TimeSeries(trades, BucketDay)
	require.Len(t, daily, 4)
	assert.Equal(t, "2025-01-06", daily[0].Key)
	assert.InDelta(t, 40, daily[3].Cumulative, 1e-9)

	weekly := TimeSeries(trades, BucketWeek)
	require.Len(t, weekly, 3)
	assert.Equal(t, "2025-W02", weekly[0].Key)
	assert.Equal(t, day("2025-01-06"), weekly[0].Start)
	assert.Equal(t, 2, weekly[0].Wins)
	assert.InDelta(t, 30, weekly[0].PnL, 1e-9)

	monthly := TimeSeries(trades, BucketMonth)
	require.Len(t, monthly, 2)
	assert.Equal(t, "2025-01", monthly[0].Key)
	assert.InDelta(t, 25, monthly[0].PnL, 1e-9)
	assert.InDelta(t, 40, monthly[1].Cumulative, 1e-9)

	_, err := ParseBucket("year")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	attr := exampleAttributor(t, AttributeRecomputed)
	trades := []models.TradeRecord{
		trade("2025-01-02", models.ResultWin, 100),
		trade("2025-01-03", models.ResultLoss, -50),
		trade("2025-01-06", models.ResultWin, 20),
		trade("2025-01-07", models.ResultBreakeven, 0),
		trade("2025-01-08", models.ResultUnset, 0),
	}

	s := Summarize(trades, attr, Options{TopDays: 2})
	assert.Equal(t, AttributeRecomputed, s.Mode)
	assert.Equal(t, 5, s.TotalTrades)
	assert.Equal(t, 4, s.ClosedTrades)
	assert.Equal(t, 1, s.OpenTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 1, s.Breakeven)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)
	assert.InDelta(t, 70, s.TotalPnL, 1e-9)
	assert.InDelta(t, 17.5, s.AveragePnL, 1e-9)
	assert.InDelta(t, 60, s.AverageWin, 1e-9)
	assert.InDelta(t, -50, s.AverageLoss, 1e-9)
	assert.InDelta(t, 100, s.LargestWin, 1e-9)
	assert.InDelta(t, -50, s.LargestLoss, 1e-9)
	assert.InDelta(t, 2.0/3.0*60-1.0/3.0*50, s.Expectancy, 1e-9)
	assert.InDelta(t, 2.4, s.ProfitFactor.Value, 1e-9)
	assert.Len(t, s.BestDays, 2)
	assert.Equal(t, 4, s.Phases.Attributed())
	require.NotNil(t, s.BestPhase)
	assert.Equal(t, cycle.PhaseFollicular, s.BestPhase.Phase)
	require.NotNil(t, s.BestInstrument)
	assert.Equal(t, Unspecified, s.BestInstrument.Key)

	empty := Summarize(nil, attr, Options{})
	assert.Zero(t, empty.TotalTrades)
	assert.Nil(t, empty.BestPhase)
	assert.Nil(t, empty.BestWeekday)
	assert.True(t, empty.Drawdown.Recovered)
	assert.Equal(t, ProfitFactor{}, empty.ProfitFactor)
}
