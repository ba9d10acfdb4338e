package analytics

import (
	"github.com/shopspring/decimal"

	"cycle-journal/internal/models"
)

// Options tune Summarize.
type Options struct {
	// TopDays is how many best and worst days to report.
	TopDays int
}

// Summary is the whole dashboard for a set of trades.
type Summary struct {
	Mode Mode `json:"mode"`

	TotalTrades  int `json:"total_trades"`
	ClosedTrades int `json:"closed_trades"`
	OpenTrades   int `json:"open_trades"`
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`
	Breakeven    int `json:"breakeven"`
	Unattributed int `json:"unattributed"`

	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
	AveragePnL  float64 `json:"average_pnl"`
	AverageWin  float64 `json:"average_win"`
	AverageLoss float64 `json:"average_loss"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`
	Expectancy  float64 `json:"expectancy"`
	AverageR    float64 `json:"average_r"`

	ProfitFactor ProfitFactor  `json:"profit_factor"`
	Streaks      StreakStats   `json:"streaks"`
	Drawdown     DrawdownStats `json:"drawdown"`
	BestDays     []DayPnL      `json:"best_days"`
	WorstDays    []DayPnL      `json:"worst_days"`
	Phases       PhaseReport   `json:"phases"`

	BestPhase      *PhaseBucket `json:"best_phase"`
	BestWeekday    *GroupStats  `json:"best_weekday"`
	BestInstrument *GroupStats  `json:"best_instrument"`
	BestStrategy   *GroupStats  `json:"best_strategy"`
}

// Summarize computes every statistic in one pass over the collection.
func Summarize(trades []models.TradeRecord, attr *Attributor, opts Options) Summary {
	var (
		all            tally
		winSum, losSum decimal.Decimal
		largestWin     float64
		largestLoss    float64
	)
	s := Summary{Mode: AttributeRecorded, TotalTrades: len(trades)}
	if attr != nil {
		s.Mode = attr.Mode()
	}

	for _, t := range trades {
		if !t.IsClosed() {
			s.OpenTrades++
			continue
		}
		all.add(t)
		pnl := t.PnLValue()
		switch t.Result {
		case models.ResultWin:
			winSum = winSum.Add(decimal.NewFromFloat(pnl))
		case models.ResultLoss:
			losSum = losSum.Add(decimal.NewFromFloat(pnl))
		}
		largestWin = max(largestWin, pnl)
		largestLoss = min(largestLoss, pnl)
	}

	st := all.stats()
	s.ClosedTrades = st.TradeCount
	s.Wins, s.Losses, s.Breakeven = st.WinCount, st.LossCount, st.BreakevenCount
	s.WinRate = st.WinRate
	s.TotalPnL = st.TotalPnL
	s.AveragePnL = st.AveragePnL
	s.AverageR = st.AverageR
	s.LargestWin, s.LargestLoss = largestWin, largestLoss
	if s.Wins > 0 {
		s.AverageWin = mean(winSum, s.Wins)
	}
	if s.Losses > 0 {
		s.AverageLoss = mean(losSum, s.Losses)
	}
	if s.Wins+s.Losses > 0 {
		s.Expectancy = s.WinRate*s.AverageWin + (1-s.WinRate)*s.AverageLoss
	}

	s.ProfitFactor = ProfitFactorOf(trades)
	s.Streaks = Streaks(trades)
	s.Drawdown = Drawdown(trades)
	s.BestDays = BestDays(trades, opts.TopDays)
	s.WorstDays = WorstDays(trades, opts.TopDays)
	s.Phases = AggregateByPhase(trades, attr)
	s.Unattributed = s.Phases.Unattributed.TradeCount

	if b, ok := s.Phases.Best(); ok {
		s.BestPhase = &b
	}
	if g, ok := BestWeekday(trades); ok {
		s.BestWeekday = &g
	}
	if g, ok := BestInstrument(trades); ok {
		s.BestInstrument = &g
	}
	if g, ok := BestStrategy(trades); ok {
		s.BestStrategy = &g
	}
	return s
}
