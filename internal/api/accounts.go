package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cycle-journal/internal/accounts"
	"cycle-journal/internal/errors"
)

// AccountsHandler serves linked prop-firm accounts.
type AccountsHandler struct {
	Syncer *accounts.Syncer
}

func (h *AccountsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/accounts")
	g.GET("", h.list)
	g.POST("", h.link)
	g.POST("/sync", h.syncAll)
	g.POST("/:id/sync", h.syncOne)
	g.DELETE("/:id", h.unlink)
}

func (h *AccountsHandler) list(c *gin.Context) {
	views, err := h.Syncer.Status(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, views, map[string]any{"last_run": h.Syncer.LastRun()})
}

func (h *AccountsHandler) link(c *gin.Context) {
	var req accounts.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.NewValidationError("body", nil, "invalid JSON"))
		return
	}
	acct, err := h.Syncer.Link(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, apiResponse{Code: 0, Message: "created", Data: acct})
}

func (h *AccountsHandler) unlink(c *gin.Context) {
	if err := h.Syncer.Unlink(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	Ok(c, gin.H{"deleted": c.Param("id")}, nil)
}

func (h *AccountsHandler) syncAll(c *gin.Context) {
	report, err := h.Syncer.SyncAll(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, report, nil)
}

func (h *AccountsHandler) syncOne(c *gin.Context) {
	snap, err := h.Syncer.SyncAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, snap, nil)
}
