package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"cycle-journal/internal/analytics"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/journal"
	"cycle-journal/internal/models"
)

// StatsHandler serves the correlation dashboard.
type StatsHandler struct {
	Journal *journal.Service
	// Mode is used when a request does not pass ?mode=.
	Mode    analytics.Mode
	Options analytics.Options
}

func (h *StatsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/stats")
	g.GET("/summary", h.summary)
	g.GET("/phases", h.phases)
	g.GET("/cycle-days", h.cycleDays)
	g.GET("/series", h.series)
	g.GET("/groups", h.groups)
}

// load resolves the filter and mode of a request and loads the trades.
func (h *StatsHandler) load(c *gin.Context) ([]models.TradeRecord, *analytics.Attributor, bool) {
	filter, ok := tradeFilter(c)
	if !ok {
		return nil, nil, false
	}
	mode := h.Mode
	if raw := c.Query("mode"); raw != "" {
		m, err := analytics.ParseMode(raw)
		if err != nil {
			fail(c, err)
			return nil, nil, false
		}
		mode = m
	}
	trades, attr, err := h.Journal.Analyze(c.Request.Context(), filter, mode)
	if err != nil {
		fail(c, err)
		return nil, nil, false
	}
	return trades, attr, true
}

func (h *StatsHandler) summary(c *gin.Context) {
	trades, attr, ok := h.load(c)
	if !ok {
		return
	}
	opts := h.Options
	if n := intQuery(c, "top", 0); n > 0 {
		opts.TopDays = n
	}
	Ok(c, analytics.Summarize(trades, attr, opts), nil)
}

type phasesResponse struct {
	Mode         analytics.Mode          `json:"mode"`
	Phases       []analytics.PhaseBucket `json:"phases"`
	Unattributed analytics.PhaseBucket   `json:"unattributed"`
	Best         *analytics.PhaseBucket  `json:"best"`
}

func (h *StatsHandler) phases(c *gin.Context) {
	trades, attr, ok := h.load(c)
	if !ok {
		return
	}
	report := analytics.AggregateByPhase(trades, attr)
	resp := phasesResponse{Mode: attr.Mode(), Phases: report.Ordered(), Unattributed: report.Unattributed}
	if best, ok := report.Best(); ok {
		resp.Best = &best
	}
	Ok(c, resp, nil)
}

func (h *StatsHandler) cycleDays(c *gin.Context) {
	trades, attr, ok := h.load(c)
	if !ok {
		return
	}
	Ok(c, analytics.ByCycleDay(trades, attr), nil)
}

func (h *StatsHandler) series(c *gin.Context) {
	bucket, err := analytics.ParseBucket(c.Query("bucket"))
	if err != nil {
		fail(c, err)
		return
	}
	trades, _, ok := h.load(c)
	if !ok {
		return
	}
	Ok(c, analytics.TimeSeries(trades, bucket), map[string]any{"bucket": bucket})
}

func (h *StatsHandler) groups(c *gin.Context) {
	by := strings.ToLower(strings.TrimSpace(c.DefaultQuery("by", "weekday")))
	trades, attr, ok := h.load(c)
	if !ok {
		return
	}
	key, ok := analytics.KeyFor(by, attr)
	if !ok {
		fail(c, errors.NewValidationError("by", by, "must be one of "+strings.Join(analytics.KeyNames(), ", ")))
		return
	}
	Ok(c, analytics.GroupBy(trades, key), map[string]any{"by": by})
}
