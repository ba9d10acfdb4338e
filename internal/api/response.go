// Package api serves the journal over HTTP for the dashboard front end.
// Every response uses the same envelope; code 0 means success.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/logging"
	"cycle-journal/internal/store"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Ok writes a success envelope.
func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

// Error writes an error envelope.
func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// StatusFor maps a domain error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrInvalidConfiguration), errors.Is(err, errors.ErrConfigInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrInputValidation):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrSyncFailed), errors.Is(err, errors.ErrMissingCredentials):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status StatusFor picks. Internal errors are not
// echoed to the client.
func fail(c *gin.Context, err error) {
	status := StatusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger := logging.FromContext(c.Request.Context())
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		msg = "internal error"
	}
	Error(c, status, msg, nil)
}

// dateParam parses a YYYY-MM-DD path parameter.
func dateParam(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Param(key)
	d, err := cycle.ParseDate(raw)
	if err != nil {
		fail(c, errors.NewValidationError(key, raw, "must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return d, true
}

// dateQuery parses an optional YYYY-MM-DD query parameter. Absent gives the
// zero time.
func dateQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, true
	}
	d, err := cycle.ParseDate(raw)
	if err != nil {
		fail(c, errors.NewValidationError(key, raw, "must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return d, true
}

// tradeFilter reads from, to, instrument and strategy.
func tradeFilter(c *gin.Context) (store.TradeFilter, bool) {
	from, ok := dateQuery(c, "from")
	if !ok {
		return store.TradeFilter{}, false
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return store.TradeFilter{}, false
	}
	return store.TradeFilter{
		From:       from,
		To:         to,
		Instrument: strings.TrimSpace(c.Query("instrument")),
		Strategy:   strings.TrimSpace(c.Query("strategy")),
		Limit:      intQuery(c, "limit", 0),
	}, true
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}
