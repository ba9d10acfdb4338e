package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cycle-journal/internal/analytics"
	"cycle-journal/internal/cycle"
)

// FormatMoney formats an amount with thousands separators and two decimals,
// followed by the currency code when one is set: 12,345.60 USD.
func FormatMoney(amount float64, currency string) string {
	str := decimal.NewFromFloat(amount).Abs().StringFixed(2)
	intPart, decPart, _ := strings.Cut(str, ".")

	result := groupThousands(intPart) + "." + decPart
	if amount < 0 && result != "0.00" {
		result = "-" + result
	}
	if currency != "" {
		result += " " + currency
	}
	return result
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPnL formats P&L with sign.
func FormatPnL(pnl float64, currency string) string {
	formatted := FormatMoney(pnl, currency)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatWinRate formats a 0..1 rate as a percentage.
func FormatWinRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// FormatR formats an R multiple.
func FormatR(r float64) string {
	return fmt.Sprintf("%+.2fR", r)
}

// FormatOptionalR formats an R multiple that may not be recorded.
func FormatOptionalR(r *float64) string {
	if r == nil {
		return "-"
	}
	return FormatR(*r)
}

// FormatDate formats a civil date.
func FormatDate(t time.Time) string {
	return cycle.FormatDate(t)
}

// FormatPosition renders "day 14 · Ovulation", or "unknown" without an
// anchor.
func FormatPosition(o *Output, p cycle.Position) string {
	if !p.Known {
		return o.DimText("unknown")
	}
	return fmt.Sprintf("day %d · %s", p.CycleDay, o.Phase(p.Phase))
}

// FormatProfitFactor formats a profit factor, "∞" when there are no losses.
func FormatProfitFactor(pf analytics.ProfitFactor) string {
	if pf.Infinite {
		return "∞"
	}
	return pf.String()
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatDays formats a day count: "1 day", "3 days".
func FormatDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
