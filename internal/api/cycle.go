package api

import (
	"github.com/gin-gonic/gin"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/journal"
)

// CycleHandler serves cycle positions, forecasts and the period log.
type CycleHandler struct {
	Journal *journal.Service
}

// maxCalendarDays bounds /api/cycle/calendar.
const maxCalendarDays = 400

func (h *CycleHandler) Register(r *gin.Engine) {
	g := r.Group("/api/cycle")
	g.GET("/today", h.today)
	g.GET("/outlook", h.outlook)
	g.GET("/calendar", h.calendar)
	g.GET("/anchor", h.anchor)
	g.GET("/history", h.history)
	g.GET("/:date", h.on)
}

type positionResponse struct {
	Date     string         `json:"date"`
	Position cycle.Position `json:"position"`
}

func (h *CycleHandler) today(c *gin.Context) {
	today := h.Journal.Today()
	pos, err := h.Journal.Position(c.Request.Context(), today)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, positionResponse{Date: cycle.FormatDate(today), Position: pos}, nil)
}

func (h *CycleHandler) on(c *gin.Context) {
	d, ok := dateParam(c, "date")
	if !ok {
		return
	}
	pos, err := h.Journal.Position(c.Request.Context(), d)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, positionResponse{Date: cycle.FormatDate(d), Position: pos}, nil)
}

func (h *CycleHandler) outlook(c *gin.Context) {
	o, err := h.Journal.Outlook(c.Request.Context(), h.Journal.Today())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, o, nil)
}

func (h *CycleHandler) calendar(c *gin.Context) {
	from, ok := dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return
	}
	if from.IsZero() {
		from = cycle.AddDays(h.Journal.Today(), -14)
	}
	if to.IsZero() {
		to = cycle.AddDays(from, 41)
	}
	if cycle.DaysBetween(from, to) > maxCalendarDays {
		fail(c, errors.NewValidationError("to", cycle.FormatDate(to), "range is limited to 400 days"))
		return
	}

	days, err := h.Journal.Calendar(c.Request.Context(), from, to)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, days, map[string]any{"from": cycle.FormatDate(from), "to": cycle.FormatDate(to)})
}

func (h *CycleHandler) anchor(c *gin.Context) {
	a, err := h.Journal.Anchor(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, a, nil)
}

func (h *CycleHandler) history(c *gin.Context) {
	hist, err := h.Journal.PeriodHistory(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, hist, nil)
}
