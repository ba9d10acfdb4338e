package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/models"
)

// Bucket is the width of a time-series point.
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

// ParseBucket parses day, week or month. The empty string selects day.
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BucketDay, nil
	case BucketDay, BucketWeek, BucketMonth:
		return b, nil
	}
	return "", errors.NewValidationError("bucket", s, "must be day, week or month")
}

// start returns the first day of the bucket containing t. Weeks start on
// Monday.
func (b Bucket) start(t time.Time) time.Time {
	d := cycle.DateOf(t)
	switch b {
	case BucketWeek:
		offset := (int(d.Weekday()) + 6) % 7
		return cycle.AddDays(d, -offset)
	case BucketMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

func (b Bucket) key(start time.Time) string {
	switch b {
	case BucketWeek:
		y, w := start.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case BucketMonth:
		return start.Format("2006-01")
	default:
		return cycle.FormatDate(start)
	}
}

// SeriesPoint is one bucket of the P&L time series.
type SeriesPoint struct {
	Key        string    `json:"key"`
	Start      time.Time `json:"start"`
	Trades     int       `json:"trades"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	PnL        float64   `json:"pnl"`
	Cumulative float64   `json:"cumulative"`
}

// TimeSeries buckets closed trades by date and carries a running total.
// Buckets without trades are omitted.
func TimeSeries(trades []models.TradeRecord, bucket Bucket) []SeriesPoint {
	if bucket == "" {
		bucket = BucketDay
	}
	var (
		out      []SeriesPoint
		sum, cum decimal.Decimal
	)
	flush := func() {
		if len(out) == 0 {
			return
		}
		cum = cum.Add(sum)
		out[len(out)-1].PnL = sum.InexactFloat64()
		out[len(out)-1].Cumulative = cum.InexactFloat64()
	}

	for _, t := range closed(trades) {
		start := bucket.start(t.Date)
		if len(out) == 0 || !out[len(out)-1].Start.Equal(start) {
			flush()
			out = append(out, SeriesPoint{Key: bucket.key(start), Start: start})
			sum = decimal.Zero
		}
		p := &out[len(out)-1]
		p.Trades++
		switch t.Result {
		case models.ResultWin:
			p.Wins++
		case models.ResultLoss:
			p.Losses++
		}
		sum = sum.Add(decimal.NewFromFloat(t.PnLValue()))
	}
	flush()
	return out
}
