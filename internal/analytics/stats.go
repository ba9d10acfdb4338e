package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"cycle-journal/internal/models"
)

// Stats are the counters shared by every grouping. Only closed trades are
// counted. WinRate is wins / (wins + losses), leaving breakeven trades out.
type Stats struct {
	TradeCount     int     `json:"trade_count"`
	WinCount       int     `json:"win_count"`
	LossCount      int     `json:"loss_count"`
	BreakevenCount int     `json:"breakeven_count"`
	TotalPnL       float64 `json:"total_pnl"`
	AveragePnL     float64 `json:"average_pnl"`
	WinRate        float64 `json:"win_rate"`
	AverageR       float64 `json:"average_r"`
	RCount         int     `json:"r_count"`
}

// tally accumulates Stats. Sums are kept in decimal so totals over many
// trades do not drift.
type tally struct {
	count, wins, losses, breakeven int
	pnl                            decimal.Decimal
	r                              decimal.Decimal
	rCount                         int
}

func (t *tally) add(tr models.TradeRecord) {
	if !tr.IsClosed() {
		return
	}
	t.count++
	switch tr.Result {
	case models.ResultWin:
		t.wins++
	case models.ResultLoss:
		t.losses++
	case models.ResultBreakeven:
		t.breakeven++
	}
	t.pnl = t.pnl.Add(decimal.NewFromFloat(tr.PnLValue()))
	if r, ok := tr.RValue(); ok {
		t.r = t.r.Add(decimal.NewFromFloat(r))
		t.rCount++
	}
}

func (t *tally) stats() Stats {
	s := Stats{
		TradeCount:     t.count,
		WinCount:       t.wins,
		LossCount:      t.losses,
		BreakevenCount: t.breakeven,
		TotalPnL:       t.pnl.InexactFloat64(),
		WinRate:        winRate(t.wins, t.losses),
		RCount:         t.rCount,
	}
	if t.count > 0 {
		s.AveragePnL = mean(t.pnl, t.count)
	}
	if t.rCount > 0 {
		s.AverageR = mean(t.r, t.rCount)
	}
	return s
}

func winRate(wins, losses int) float64 {
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) / float64(wins+losses)
}

func mean(sum decimal.Decimal, n int) float64 {
	return sum.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
}

// closed returns the closed trades of ts, sorted by date.
func closed(ts []models.TradeRecord) []models.TradeRecord {
	out := make([]models.TradeRecord, 0, len(ts))
	for _, t := range ts {
		if t.IsClosed() {
			out = append(out, t)
		}
	}
	sortByDate(out)
	return out
}

// sortByDate orders trades by date, then creation time. The sort is stable
// so same-day trades keep their journal order.
func sortByDate(ts []models.TradeRecord) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].Date.Equal(ts[j].Date) {
			return ts[i].Date.Before(ts[j].Date)
		}
		return ts[i].CreatedAt.Before(ts[j].CreatedAt)
	})
}

// sorted returns a date-sorted copy of ts.
func sorted(ts []models.TradeRecord) []models.TradeRecord {
	out := make([]models.TradeRecord, len(ts))
	copy(out, ts)
	sortByDate(out)
	return out
}
