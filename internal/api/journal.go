package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/ingest"
	"cycle-journal/internal/journal"
	"cycle-journal/internal/security"
	"cycle-journal/internal/store"
)

// JournalHandler serves journal entries and trades.
type JournalHandler struct {
	Journal *journal.Service
}

func (h *JournalHandler) Register(r *gin.Engine) {
	g := r.Group("/api/journal")
	g.GET("", h.list)
	g.GET("/:date", h.get)
	g.PUT("/:date/period", h.putPeriod)
	g.PUT("/:date/notes", h.putNotes)

	t := r.Group("/api/trades")
	t.GET("", h.listTrades)
	t.POST("", h.addTrade)
	t.POST("/import", h.importTrades)
	t.GET("/:id", h.getTrade)
	t.GET("/:id/phases", h.tradePhases)
	t.PUT("/:id", h.updateTrade)
	t.DELETE("/:id", h.deleteTrade)
}

func (h *JournalHandler) list(c *gin.Context) {
	from, ok := dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return
	}
	entries, err := h.Journal.Entries(c.Request.Context(), store.EntryFilter{
		From:       from,
		To:         to,
		PeriodOnly: c.Query("period") == "true",
		Limit:      intQuery(c, "limit", 0),
	})
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, entries, map[string]any{"total": len(entries)})
}

func (h *JournalHandler) get(c *gin.Context) {
	d, ok := dateParam(c, "date")
	if !ok {
		return
	}
	e, err := h.Journal.Entry(c.Request.Context(), d)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, e, nil)
}

type putPeriodRequest struct {
	HasPeriod *bool `json:"has_period"`
}

func (h *JournalHandler) putPeriod(c *gin.Context) {
	d, ok := dateParam(c, "date")
	if !ok {
		return
	}
	var req putPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.HasPeriod == nil {
		fail(c, errors.NewValidationError("has_period", nil, "boolean required"))
		return
	}
	anchor, err := h.Journal.LogPeriod(c.Request.Context(), d, *req.HasPeriod)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, gin.H{"date": cycle.FormatDate(d), "has_period": *req.HasPeriod, "anchor": anchor}, nil)
}

type putNotesRequest struct {
	Notes string `json:"notes"`
	Mood  string `json:"mood"`
}

var textValidator = security.NewInputValidator(false)

func (h *JournalHandler) putNotes(c *gin.Context) {
	d, ok := dateParam(c, "date")
	if !ok {
		return
	}
	var req putNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.NewValidationError("body", nil, "invalid JSON"))
		return
	}
	notes := security.SanitizeText(req.Notes)
	if err := textValidator.ValidateText("notes", notes, security.MaxNotesLen); err != nil {
		fail(c, err)
		return
	}
	mood := security.SanitizeText(req.Mood)
	if err := textValidator.ValidateLabel("mood", mood); err != nil {
		fail(c, err)
		return
	}
	e, err := h.Journal.Annotate(c.Request.Context(), d, notes, mood)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, e, nil)
}

func (h *JournalHandler) listTrades(c *gin.Context) {
	filter, ok := tradeFilter(c)
	if !ok {
		return
	}
	filter.ClosedOnly = c.Query("closed") == "true"
	trades, err := h.Journal.Trades(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, trades, map[string]any{"total": len(trades)})
}

func (h *JournalHandler) getTrade(c *gin.Context) {
	t, err := h.Journal.Trade(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, t, nil)
}

// tradePhases shows whether a trade's cached phase still matches the
// current settings.
func (h *JournalHandler) tradePhases(c *gin.Context) {
	v, err := h.Journal.TradePhases(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, v, nil)
}

// addTrade accepts the same loosely typed fields as a CSV row; numbers
// may be sent as strings.
func (h *JournalHandler) addTrade(c *gin.Context) {
	var raw ingest.RawTrade
	if err := c.ShouldBindJSON(&raw); err != nil {
		fail(c, errors.NewValidationError("body", nil, "invalid JSON"))
		return
	}
	t, err := ingest.ParseTrade(raw)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Journal.AddTrade(c.Request.Context(), &t); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, apiResponse{Code: 0, Message: "created", Data: t})
}

func (h *JournalHandler) updateTrade(c *gin.Context) {
	var raw ingest.RawTrade
	if err := c.ShouldBindJSON(&raw); err != nil {
		fail(c, errors.NewValidationError("body", nil, "invalid JSON"))
		return
	}
	raw.ID = c.Param("id")
	t, err := ingest.ParseTrade(raw)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.Journal.UpdateTrade(c.Request.Context(), &t); err != nil {
		fail(c, err)
		return
	}
	Ok(c, t, nil)
}

func (h *JournalHandler) deleteTrade(c *gin.Context) {
	if err := h.Journal.DeleteTrade(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	Ok(c, gin.H{"deleted": c.Param("id")}, nil)
}

// importTrades takes a CSV body. Rejected rows are reported in meta and do
// not stop the import.
func (h *JournalHandler) importTrades(c *gin.Context) {
	trades, rejected, err := ingest.ReadCSV(c.Request.Body)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.Journal.ImportTrades(c.Request.Context(), trades)
	if err != nil {
		fail(c, err)
		return
	}
	rows := make([]gin.H, 0, len(rejected))
	for _, r := range rejected {
		rows = append(rows, gin.H{"line": r.Line, "error": r.Err.Error()})
	}
	Ok(c, res, map[string]any{"rejected": rows})
}
