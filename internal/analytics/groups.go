package analytics

import (
	"fmt"
	"sort"
	"strings"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/models"
)

// Unspecified is the group key for trades with an empty label.
const Unspecified = "Unspecified"

// KeyFunc extracts the group key of a trade.
type KeyFunc func(models.TradeRecord) string

// GroupStats is the reduction of one group of closed trades.
type GroupStats struct {
	Key string `json:"key"`
	Stats
	ProfitFactor ProfitFactor `json:"profit_factor"`
}

// Ready-made group keys.
var (
	ByWeekday KeyFunc = func(t models.TradeRecord) string {
		return t.Date.Weekday().String()
	}
	ByInstrument KeyFunc = func(t models.TradeRecord) string {
		return label(strings.ToUpper(t.Instrument))
	}
	ByStrategy KeyFunc = func(t models.TradeRecord) string {
		return label(t.Strategy)
	}
	ByDirection KeyFunc = func(t models.TradeRecord) string {
		return label(string(t.Direction))
	}
	ByMonth KeyFunc = func(t models.TradeRecord) string {
		return t.Date.Format("2006-01")
	}
	ByWeek KeyFunc = func(t models.TradeRecord) string {
		y, w := t.Date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	}
	ByDay KeyFunc = func(t models.TradeRecord) string {
		return cycle.FormatDate(t.Date)
	}
)

// KeyFuncs maps the names accepted on the command line and the API to
// group keys.
var KeyFuncs = map[string]KeyFunc{
	"weekday":    ByWeekday,
	"instrument": ByInstrument,
	"strategy":   ByStrategy,
	"direction":  ByDirection,
	"month":      ByMonth,
	"week":       ByWeek,
	"day":        ByDay,
}

// attributedKeys are group keys that need the cycle position of a trade.
var attributedKeys = map[string]func(*Attributor) KeyFunc{
	"cycle-day": (*Attributor).cycleDayKey,
	"phase":     (*Attributor).phaseKey,
}

// KeyFor returns the group key called name. Cycle keys attribute trades
// with attr, the same way the phase report does.
func KeyFor(name string, attr *Attributor) (KeyFunc, bool) {
	if key, ok := KeyFuncs[name]; ok {
		return key, true
	}
	if build, ok := attributedKeys[name]; ok {
		return build(attr), true
	}
	return nil, false
}

// KeyNames lists every group key name, sorted.
func KeyNames() []string {
	names := make([]string, 0, len(KeyFuncs)+len(attributedKeys))
	for name := range KeyFuncs {
		names = append(names, name)
	}
	for name := range attributedKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cycleDayKey groups by cycle day. Keys are zero padded so they sort in
// cycle order.
func (a *Attributor) cycleDayKey() KeyFunc {
	return func(t models.TradeRecord) string {
		pos := a.Position(t)
		if !pos.Known || pos.CycleDay < 1 {
			return Unspecified
		}
		return fmt.Sprintf("Day %02d", pos.CycleDay)
	}
}

func (a *Attributor) phaseKey() KeyFunc {
	return func(t models.TradeRecord) string {
		phase := a.Phase(t)
		if !phase.Valid() {
			return Unspecified
		}
		return string(phase)
	}
}

func label(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unspecified
	}
	return s
}

// GroupBy reduces closed trades per key. Groups are sorted by key.
func GroupBy(trades []models.TradeRecord, key KeyFunc) []GroupStats {
	tallies := make(map[string]*tally)
	members := make(map[string][]models.TradeRecord)
	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		k := key(t)
		tl, ok := tallies[k]
		if !ok {
			tl = &tally{}
			tallies[k] = tl
		}
		tl.add(t)
		members[k] = append(members[k], t)
	}

	keys := make([]string, 0, len(tallies))
	for k := range tallies {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]GroupStats, 0, len(keys))
	for _, k := range keys {
		out = append(out, GroupStats{
			Key:          k,
			Stats:        tallies[k].stats(),
			ProfitFactor: ProfitFactorOf(members[k]),
		})
	}
	return out
}

// BestWeekday returns the weekday with the highest win rate.
func BestWeekday(trades []models.TradeRecord) (GroupStats, bool) {
	return bestBy(GroupBy(trades, ByWeekday), func(g GroupStats) float64 { return g.WinRate })
}

// BestStrategy returns the strategy with the highest win rate.
func BestStrategy(trades []models.TradeRecord) (GroupStats, bool) {
	return bestBy(GroupBy(trades, ByStrategy), func(g GroupStats) float64 { return g.WinRate })
}

// BestInstrument returns the instrument with the highest total P&L.
func BestInstrument(trades []models.TradeRecord) (GroupStats, bool) {
	return bestBy(GroupBy(trades, ByInstrument), func(g GroupStats) float64 { return g.TotalPnL })
}

// bestBy picks the group with the highest metric. groups are sorted by key,
// so a tie keeps the alphabetically first one.
func bestBy(groups []GroupStats, metric func(GroupStats) float64) (GroupStats, bool) {
	if len(groups) == 0 {
		return GroupStats{}, false
	}
	best := groups[0]
	for _, g := range groups[1:] {
		if metric(g) > metric(best) {
			best = g
		}
	}
	return best, true
}
