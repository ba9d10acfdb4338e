package analytics

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/models"
)

// StreakKind is the result a streak is made of.
type StreakKind string

const (
	StreakWin  StreakKind = "win"
	StreakLoss StreakKind = "loss"
	StreakNone StreakKind = "none"
)

// Streak is a run of consecutive identical results.
type Streak struct {
	Kind   StreakKind `json:"kind"`
	Length int        `json:"length"`
}

// StreakStats are the longest win and loss runs and the run still going at
// the latest trade.
type StreakStats struct {
	LongestWin  int    `json:"longest_win"`
	LongestLoss int    `json:"longest_loss"`
	Current     Streak `json:"current"`
}

// Streaks walks the trades in date order. Breakeven and open trades end any
// running streak.
func Streaks(trades []models.TradeRecord) StreakStats {
	var s StreakStats
	win, loss := 0, 0
	for _, t := range sorted(trades) {
		switch t.Result {
		case models.ResultWin:
			win++
			loss = 0
		case models.ResultLoss:
			loss++
			win = 0
		default:
			win, loss = 0, 0
		}
		s.LongestWin = max(s.LongestWin, win)
		s.LongestLoss = max(s.LongestLoss, loss)
	}

	switch {
	case win > 0:
		s.Current = Streak{Kind: StreakWin, Length: win}
	case loss > 0:
		s.Current = Streak{Kind: StreakLoss, Length: loss}
	default:
		s.Current = Streak{Kind: StreakNone}
	}
	return s
}

// ProfitFactor is gross profit over gross loss. Infinite is set when there
// are profits and no losses; Value is then 0.
type ProfitFactor struct {
	Value    float64 `json:"value"`
	Infinite bool    `json:"infinite"`
}

// String renders the factor with two decimals, or "inf".
func (pf ProfitFactor) String() string {
	if pf.Infinite {
		return "inf"
	}
	return strconv.FormatFloat(pf.Value, 'f', 2, 64)
}

// ProfitFactorOf sums positive and negative P&L over closed trades.
func ProfitFactorOf(trades []models.TradeRecord) ProfitFactor {
	gains, losses := decimal.Zero, decimal.Zero
	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		p := decimal.NewFromFloat(t.PnLValue())
		switch p.Sign() {
		case 1:
			gains = gains.Add(p)
		case -1:
			losses = losses.Add(p.Abs())
		}
	}
	switch {
	case losses.IsZero() && gains.IsPositive():
		return ProfitFactor{Infinite: true}
	case losses.IsZero():
		return ProfitFactor{}
	}
	return ProfitFactor{Value: gains.Div(losses).InexactFloat64()}
}

// EquityPoint is the running account curve after one closed trade.
type EquityPoint struct {
	Date       time.Time `json:"date"`
	TradeID    string    `json:"trade_id"`
	PnL        float64   `json:"pnl"`
	Cumulative float64   `json:"cumulative"`
	Peak       float64   `json:"peak"`
	Drawdown   float64   `json:"drawdown"`
}

// DrawdownStats describe the deepest and the current fall from a peak of
// cumulative P&L. The curve starts from zero.
type DrawdownStats struct {
	Max       float64       `json:"max"`
	MaxDate   *time.Time    `json:"max_date"`
	Current   float64       `json:"current"`
	Recovered bool          `json:"recovered"`
	Peak      float64       `json:"peak"`
	Curve     []EquityPoint `json:"curve"`
}

// Drawdown runs cumulative P&L over the closed trades in date order.
func Drawdown(trades []models.TradeRecord) DrawdownStats {
	cum, peak, maxDD := decimal.Zero, decimal.Zero, decimal.Zero
	var maxDate *time.Time
	cs := closed(trades)
	curve := make([]EquityPoint, 0, len(cs))

	for _, t := range cs {
		p := decimal.NewFromFloat(t.PnLValue())
		cum = cum.Add(p)
		if cum.GreaterThan(peak) {
			peak = cum
		}
		dd := peak.Sub(cum)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			d := t.Date
			maxDate = &d
		}
		curve = append(curve, EquityPoint{
			Date:       t.Date,
			TradeID:    t.ID,
			PnL:        p.InexactFloat64(),
			Cumulative: cum.InexactFloat64(),
			Peak:       peak.InexactFloat64(),
			Drawdown:   dd.InexactFloat64(),
		})
	}

	current := peak.Sub(cum)
	return DrawdownStats{
		Max:       maxDD.InexactFloat64(),
		MaxDate:   maxDate,
		Current:   current.InexactFloat64(),
		Recovered: current.IsZero(),
		Peak:      peak.InexactFloat64(),
		Curve:     curve,
	}
}

// DefaultTopDays is the number of days BestDays and WorstDays return when
// asked for n <= 0.
const DefaultTopDays = 3

// DayPnL is the summed P&L of one calendar day.
type DayPnL struct {
	Date   time.Time `json:"date"`
	PnL    float64   `json:"pnl"`
	Trades int       `json:"trades"`
}

// BestDays returns the n days with the highest summed P&L.
func BestDays(trades []models.TradeRecord, n int) []DayPnL {
	days := dailyPnL(trades)
	sort.SliceStable(days, func(i, j int) bool { return days[i].PnL > days[j].PnL })
	return top(days, n)
}

// WorstDays returns the n days with the lowest summed P&L.
func WorstDays(trades []models.TradeRecord, n int) []DayPnL {
	days := dailyPnL(trades)
	sort.SliceStable(days, func(i, j int) bool { return days[i].PnL < days[j].PnL })
	return top(days, n)
}

func top(days []DayPnL, n int) []DayPnL {
	if n <= 0 {
		n = DefaultTopDays
	}
	if len(days) > n {
		days = days[:n]
	}
	return days
}

// dailyPnL sums closed trades per calendar date, earliest date first.
func dailyPnL(trades []models.TradeRecord) []DayPnL {
	var out []DayPnL
	var sum decimal.Decimal
	flush := func() {
		if len(out) > 0 {
			out[len(out)-1].PnL = sum.InexactFloat64()
		}
	}
	for _, t := range closed(trades) {
		d := cycle.DateOf(t.Date)
		if len(out) == 0 || !out[len(out)-1].Date.Equal(d) {
			flush()
			out = append(out, DayPnL{Date: d})
			sum = decimal.Zero
		}
		sum = sum.Add(decimal.NewFromFloat(t.PnLValue()))
		out[len(out)-1].Trades++
	}
	flush()
	return out
}
