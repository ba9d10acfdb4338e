package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"cycle-journal/internal/accounts"
	"cycle-journal/internal/analytics"
	"cycle-journal/internal/id"
	"cycle-journal/internal/journal"
	"cycle-journal/internal/logging"
	"cycle-journal/internal/store"
)

// Deps are the services the API is built on. Syncer may be nil, in which
// case the account routes are not registered.
type Deps struct {
	Journal   *journal.Service
	Syncer    *accounts.Syncer
	Store     store.DataStore
	Mode      analytics.Mode
	Options   analytics.Options
	Logger    zerolog.Logger
	DebugMode bool
}

// NewEngine builds the gin engine with every route registered.
func NewEngine(d Deps) *gin.Engine {
	if d.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(d.Logger))

	(&HealthHandler{Store: d.Store}).Register(engine)
	(&CycleHandler{Journal: d.Journal}).Register(engine)
	(&StatsHandler{Journal: d.Journal, Mode: d.Mode, Options: d.Options}).Register(engine)
	(&JournalHandler{Journal: d.Journal}).Register(engine)
	if d.Syncer != nil {
		(&AccountsHandler{Syncer: d.Syncer}).Register(engine)
	}
	return engine
}

// requestLogger tags each request with an ID, carries a request-scoped
// logger in the request context and logs the call when it completes.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = id.New()
		}
		c.Header("X-Request-ID", rid)
		reqLogger := logger.With().Str(string(logging.RequestIDKey), rid).Logger()
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), reqLogger))

		c.Next()
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		logging.LogAPICall(reqLogger, c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start), err)
	}
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	Store store.DataStore
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) ready(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	if _, err := h.Store.PeriodDates(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("HTTP server stopped")
	return nil
}
