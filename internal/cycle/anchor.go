package cycle

import (
	"encoding/json"
	"sort"
	"time"

	"cycle-journal/internal/models"
)

// MergeTolerance is the largest gap between two logged period days that
// still counts as the same bleeding episode. It absorbs a single skipped day.
const MergeTolerance = 36 * time.Hour

// AnchorSource tells where an anchor came from.
type AnchorSource string

const (
	AnchorLogged   AnchorSource = "logged"
	AnchorOverride AnchorSource = "override"
	AnchorNone     AnchorSource = "none"
)

// Anchor is day 1 of the most recent known period.
type Anchor struct {
	Start  time.Time
	Source AnchorSource
}

// NoAnchor is returned when neither a logged period nor an override exists.
func NoAnchor() Anchor {
	return Anchor{Source: AnchorNone}
}

// OverrideAnchor builds an anchor from a user-set period start.
func OverrideAnchor(start time.Time) Anchor {
	return Anchor{Start: DateOf(start), Source: AnchorOverride}
}

// Valid reports whether the anchor can be used for cycle arithmetic.
func (a Anchor) Valid() bool {
	return a.Source == AnchorLogged || a.Source == AnchorOverride
}

// String renders the anchor date, or "none".
func (a Anchor) String() string {
	if !a.Valid() {
		return string(AnchorNone)
	}
	return FormatDate(a.Start)
}

// MarshalJSON encodes the start as a calendar date, null when absent.
func (a Anchor) MarshalJSON() ([]byte, error) {
	type wire struct {
		Start  *string      `json:"start"`
		Source AnchorSource `json:"source"`
	}
	w := wire{Source: a.Source}
	if a.Source == "" {
		w.Source = AnchorNone
	}
	if a.Valid() {
		s := FormatDate(a.Start)
		w.Start = &s
	}
	return json.Marshal(w)
}

// ReduceAnchor finds the start of the most recent period in a sparse set of
// logged period days. Days no more than MergeTolerance apart belong to the
// same episode. With no logged days the fallback is used, if any.
func ReduceAnchor(periodDates []time.Time, fallback *time.Time) Anchor {
	dates := normalizeDates(periodDates)
	if len(dates) == 0 {
		if fallback != nil {
			return OverrideAnchor(*fallback)
		}
		return NoAnchor()
	}

	// most recent first
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	start := dates[0]
	for i := 0; i+1 < len(dates); i++ {
		if dates[i].Sub(dates[i+1]) > MergeTolerance {
			break
		}
		start = dates[i+1]
	}
	return Anchor{Start: start, Source: AnchorLogged}
}

// normalizeDates truncates to calendar dates and drops duplicates. The result
// is sorted ascending.
func normalizeDates(in []time.Time) []time.Time {
	seen := make(map[int64]bool, len(in))
	out := make([]time.Time, 0, len(in))
	for _, t := range in {
		d := DateOf(t)
		if seen[d.Unix()] {
			continue
		}
		seen[d.Unix()] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// PeriodLog is the set of days on which bleeding was logged.
type PeriodLog struct {
	dates []time.Time // ascending, unique
}

// NewPeriodLog builds a log from logged period days.
func NewPeriodLog(dates ...time.Time) *PeriodLog {
	return &PeriodLog{dates: normalizeDates(dates)}
}

// FromEntries builds a log from the journal entries flagged as period days.
func FromEntries(entries []models.JournalEntry) *PeriodLog {
	var dates []time.Time
	for _, e := range entries {
		if e.HasPeriod {
			dates = append(dates, e.Date)
		}
	}
	return NewPeriodLog(dates...)
}

// PeriodLogFromEntries builds a log from a date-keyed journal.
func PeriodLogFromEntries(journal map[string]models.JournalEntry) *PeriodLog {
	entries := make([]models.JournalEntry, 0, len(journal))
	for _, e := range journal {
		entries = append(entries, e)
	}
	return FromEntries(entries)
}

// Dates returns a copy of the logged days in ascending order.
func (l *PeriodLog) Dates() []time.Time {
	if l == nil {
		return nil
	}
	out := make([]time.Time, len(l.dates))
	copy(out, l.dates)
	return out
}

// Len returns the number of logged days.
func (l *PeriodLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.dates)
}

// Contains reports whether a period was logged on date.
func (l *PeriodLog) Contains(date time.Time) bool {
	if l == nil {
		return false
	}
	d := DateOf(date)
	i := sort.Search(len(l.dates), func(i int) bool { return !l.dates[i].Before(d) })
	return i < len(l.dates) && l.dates[i].Equal(d)
}

// Anchor returns the start of the most recent logged period.
func (l *PeriodLog) Anchor(fallback *time.Time) Anchor {
	return ReduceAnchor(l.Dates(), fallback)
}

// AnchorOn returns the anchor that was in effect on date: the most recent
// period start on or before it. Dates older than the whole log use the
// current anchor and wrap backwards.
func (l *PeriodLog) AnchorOn(date time.Time, fallback *time.Time) Anchor {
	d := DateOf(date)
	var upto []time.Time
	for _, p := range l.Dates() {
		if p.After(d) {
			break
		}
		upto = append(upto, p)
	}
	if a := ReduceAnchor(upto, nil); a.Valid() {
		return a
	}
	return l.Anchor(fallback)
}

// Episode is one contiguous run of logged period days.
type Episode struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days"`
}

// Episodes groups the log into periods, most recent first.
func (l *PeriodLog) Episodes() []Episode {
	dates := l.Dates()
	if len(dates) == 0 {
		return nil
	}

	var out []Episode
	cur := Episode{Start: dates[0], End: dates[0], Days: 1}
	for _, d := range dates[1:] {
		if d.Sub(cur.End) <= MergeTolerance {
			cur.End = d
			cur.Days++
			continue
		}
		out = append(out, cur)
		cur = Episode{Start: d, End: d, Days: 1}
	}
	out = append(out, cur)

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ObservedCycleLength is the mean number of days between consecutive
// episode starts, or 0 with fewer than two episodes.
func (l *PeriodLog) ObservedCycleLength() float64 {
	eps := l.Episodes()
	if len(eps) < 2 {
		return 0
	}
	span := DaysBetween(eps[len(eps)-1].Start, eps[0].Start)
	return float64(span) / float64(len(eps)-1)
}
