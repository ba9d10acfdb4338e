package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-journal/internal/accounts"
	"cycle-journal/internal/analytics"
	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/id"
	"cycle-journal/internal/journal"
	"cycle-journal/internal/logging"
	"cycle-journal/internal/models"
	"cycle-journal/internal/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

type stubService struct{}

func (stubService) Fetch(_ context.Context, accountID string, _ accounts.Credentials) (*models.AccountSnapshot, error) {
	return &models.AccountSnapshot{AccountID: accountID, Balance: 50000, Equity: 50250, PnL: 250, Currency: "USD", SyncedAt: time.Now()}, nil
}

func newTestEngine(t *testing.T) (*gin.Engine, *journal.Service) {
	t.Helper()
	ds, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	svc, err := journal.NewService(ds, store.Settings{Cycle: cycle.DefaultConfig()}, zerolog.Nop())
	require.NoError(t, err)
	syncer := accounts.NewSyncer(ds, stubService{}, accounts.Passwords{}, accounts.SyncerOptions{}, zerolog.Nop())

	engine := NewEngine(Deps{
		Journal: svc,
		Syncer:  syncer,
		Store:   ds,
		Mode:    analytics.AttributeRecomputed,
		Options: analytics.Options{TopDays: 3},
		Logger:  zerolog.Nop(),
	})
	return engine, svc
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(errors.NewConfigError("period_length", 0, "must be at least 1")))
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.NewValidationError("date", "x", "bad")))
	assert.Equal(t, http.StatusNotFound, StatusFor(errors.ErrNotFound))
	assert.Equal(t, http.StatusBadGateway, StatusFor(&errors.SyncError{AccountID: "a", StatusCode: 503}))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.ErrDatabaseError))
}

func TestFail_InternalErrorIsLoggedNotEchoed(t *testing.T) {
	var buf bytes.Buffer
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	c.Request = req.WithContext(logging.WithLogger(req.Context(), zerolog.New(&buf)))

	fail(c, errors.Wrap(errors.ErrDatabaseError, "disk I/O error at /var/lib/journal.db"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "internal error", env.Message)
	assert.NotContains(t, w.Body.String(), "journal.db")
	assert.Contains(t, buf.String(), "Request failed")
	assert.Contains(t, buf.String(), "journal.db")

	// client errors are echoed and not logged
	buf.Reset()
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = req.WithContext(logging.WithLogger(req.Context(), zerolog.New(&buf)))
	fail(c, errors.NewValidationError("date", "x", "must be YYYY-MM-DD"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "YYYY-MM-DD")
	assert.Empty(t, buf.String())
}

func TestHealth(t *testing.T) {
	engine, _ := newTestEngine(t)

	code, _ := do(t, engine, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, engine, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestRequestID(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.True(t, id.Valid(w.Header().Get("X-Request-ID")))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestCycle_UnknownUntilPeriodLogged(t *testing.T) {
	engine, _ := newTestEngine(t)

	code, env := do(t, engine, http.MethodGet, "/api/cycle/2025-01-16", "")
	require.Equal(t, http.StatusOK, code)
	var resp positionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.False(t, resp.Position.Known)
	assert.Equal(t, cycle.PhaseUnknown, resp.Position.Phase)

	code, _ = do(t, engine, http.MethodPut, "/api/journal/2025-01-01/period", `{"has_period":true}`)
	require.Equal(t, http.StatusOK, code)

	_, env = do(t, engine, http.MethodGet, "/api/cycle/2025-01-16", "")
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "2025-01-16", resp.Date)
	assert.Equal(t, cycle.Position{Known: true, CycleDay: 16, Phase: cycle.PhaseOvulation}, resp.Position)

	_, env = do(t, engine, http.MethodGet, "/api/cycle/anchor", "")
	assert.JSONEq(t, `{"start":"2025-01-01","source":"logged"}`, string(env.Data))
}

func TestCycle_BadDate(t *testing.T) {
	engine, _ := newTestEngine(t)

	code, env := do(t, engine, http.MethodGet, "/api/cycle/16-01-2025", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, http.StatusBadRequest, env.Code)

	code, _ = do(t, engine, http.MethodGet, "/api/cycle/calendar?from=2025-01-01&to=2026-06-01", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCycle_Calendar(t *testing.T) {
	engine, _ := newTestEngine(t)
	do(t, engine, http.MethodPut, "/api/journal/2025-01-01/period", `{"has_period":true}`)

	code, env := do(t, engine, http.MethodGet, "/api/cycle/calendar?from=2025-01-01&to=2025-01-07", "")
	require.Equal(t, http.StatusOK, code)
	var days []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &days))
	assert.Len(t, days, 7)
	assert.Equal(t, "2025-01-01", env.Meta["from"])
}

func TestJournal_PeriodRequiresBoolean(t *testing.T) {
	engine, _ := newTestEngine(t)

	code, _ := do(t, engine, http.MethodPut, "/api/journal/2025-01-01/period", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, engine, http.MethodPut, "/api/journal/2025-01-01/period", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestJournal_Notes(t *testing.T) {
	engine, _ := newTestEngine(t)

	code, env := do(t, engine, http.MethodPut, "/api/journal/2025-01-02/notes", `{"notes":"slept badly","mood":"tired"}`)
	require.Equal(t, http.StatusOK, code)
	var e models.JournalEntry
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.Equal(t, "slept badly", e.Notes)
	assert.Equal(t, "tired", e.Mood)

	_, env = do(t, engine, http.MethodGet, "/api/journal/2025-01-02", "")
	require.NoError(t, json.Unmarshal(env.Data, &e))
	assert.Equal(t, "slept badly", e.Notes)
	assert.False(t, e.HasPeriod)
}

func TestTrades_CRUD(t *testing.T) {
	engine, _ := newTestEngine(t)
	do(t, engine, http.MethodPut, "/api/journal/2025-01-01/period", `{"has_period":true}`)

	code, env := do(t, engine, http.MethodPost, "/api/trades",
		`{"date":"2025-01-03","instrument":"eurusd","direction":"long","result":"win","pnl":"120.50","r_multiple":"2"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created models.TradeRecord
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "EURUSD", created.Instrument)
	require.NotNil(t, created.CycleDay)
	assert.Equal(t, 3, *created.CycleDay)
	assert.Equal(t, string(cycle.PhaseMenstruation), created.CyclePhase)

	code, env = do(t, engine, http.MethodGet, "/api/trades/"+created.ID, "")
	require.Equal(t, http.StatusOK, code)
	var got models.TradeRecord
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.NotNil(t, got.PnL)
	assert.Equal(t, 120.5, *got.PnL)

	code, _ = do(t, engine, http.MethodPut, "/api/trades/"+created.ID,
		`{"date":"2025-01-03","instrument":"EURUSD","direction":"long","result":"loss","pnl":"-40"}`)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, engine, http.MethodGet, "/api/trades?instrument=eurusd", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, env.Meta["total"])

	code, _ = do(t, engine, http.MethodDelete, "/api/trades/"+created.ID, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, engine, http.MethodGet, "/api/trades/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTrades_RejectsBadInput(t *testing.T) {
	engine, _ := newTestEngine(t)

	code, _ := do(t, engine, http.MethodPost, "/api/trades", `{"date":"2025-13-01","direction":"long"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, engine, http.MethodPost, "/api/trades", `{"date":"2025-01-03","direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, engine, http.MethodPost, "/api/trades", `{"date":"2025-01-03","direction":"long","pnl":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTrades_ImportCSV(t *testing.T) {
	engine, _ := newTestEngine(t)

	body := "Date,Instrument,Direction,Result,PnL\n" +
		"2025-01-03,NAS100,long,win,200\n" +
		"2025-01-04,NAS100,up,win,10\n" +
		"2025-01-20,XAUUSD,short,loss,-75\n"
	req := httptest.NewRequest(http.MethodPost, "/api/trades/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var res journal.ImportResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Imported)
	rejected, ok := env.Meta["rejected"].([]any)
	require.True(t, ok)
	require.Len(t, rejected, 1)
	assert.EqualValues(t, 3, rejected[0].(map[string]any)["line"])
}

func TestStats_Phases(t *testing.T) {
	engine, _ := newTestEngine(t)
	do(t, engine, http.MethodPut, "/api/journal/2025-01-01/period", `{"has_period":true}`)
	do(t, engine, http.MethodPost, "/api/trades", `{"date":"2025-01-03","direction":"long","result":"win","pnl":"100"}`)
	do(t, engine, http.MethodPost, "/api/trades", `{"date":"2025-01-04","direction":"long","result":"loss","pnl":"-40"}`)
	do(t, engine, http.MethodPost, "/api/trades", `{"date":"2025-01-20","direction":"short","result":"win","pnl":"60"}`)
	do(t, engine, http.MethodPost, "/api/trades", `{"date":"2025-01-21","direction":"short"}`)

	code, env := do(t, engine, http.MethodGet, "/api/stats/phases", "")
	require.Equal(t, http.StatusOK, code)
	var resp phasesResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.Phases, 4)

	men := resp.Phases[0]
	assert.Equal(t, cycle.PhaseMenstruation, men.Phase)
	assert.Equal(t, 2, men.TradeCount)
	assert.Equal(t, 60.0, men.TotalPnL)
	assert.Equal(t, 0.5, men.WinRate)

	lut := resp.Phases[3]
	assert.Equal(t, cycle.PhaseLuteal, lut.Phase)
	assert.Equal(t, 1, lut.TradeCount, "open trades are not counted")
	require.NotNil(t, resp.Best)
	assert.Equal(t, cycle.PhaseLuteal, resp.Best.Phase)

	code, _ = do(t, engine, http.MethodGet, "/api/stats/phases?mode=guess", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStats_SummaryAndGroups(t *testing.T) {
	engine, _ := newTestEngine(t)
	do(t, engine, http.MethodPost, "/api/trades", `{"date":"2025-01-06","instrument":"ES","direction":"long","result":"win","pnl":"50"}`)
	do(t, engine, http.MethodPost, "/api/trades", `{"date":"2025-01-07","instrument":"NQ","direction":"long","result":"loss","pnl":"-20"}`)

	code, env := do(t, engine, http.MethodGet, "/api/stats/summary", "")
	require.Equal(t, http.StatusOK, code)
	var s analytics.Summary
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.Equal(t, 2, s.ClosedTrades)
	assert.Equal(t, 30.0, s.TotalPnL)
	assert.Equal(t, 2, s.Unattributed, "no period logged")

	code, env = do(t, engine, http.MethodGet, "/api/stats/groups?by=instrument", "")
	require.Equal(t, http.StatusOK, code)
	var groups []analytics.GroupStats
	require.NoError(t, json.Unmarshal(env.Data, &groups))
	assert.Len(t, groups, 2)

	code, env = do(t, engine, http.MethodGet, "/api/stats/groups?by=cycle-day", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, analytics.Unspecified, groups[0].Key)

	code, _ = do(t, engine, http.MethodGet, "/api/stats/groups?by=moon", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, engine, http.MethodGet, "/api/stats/series?bucket=hour", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, engine, http.MethodGet, "/api/stats/series?bucket=week", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestAccounts_LinkAndSync(t *testing.T) {
	engine, _ := newTestEngine(t)

	code, env := do(t, engine, http.MethodPost, "/api/accounts", `{"firm":"FTMO","platform":"mt5","login":"5012345","server":"FTMO-Demo"}`)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var acct models.Account
	require.NoError(t, json.Unmarshal(env.Data, &acct))

	code, _ = do(t, engine, http.MethodPost, "/api/accounts", `{"firm":"FTMO","platform":"ctrader2","login":"1"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	// no password is configured, so the sync is recorded as failed
	code, env = do(t, engine, http.MethodPost, "/api/accounts/sync", "")
	require.Equal(t, http.StatusOK, code)
	var report accounts.SyncReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	code, _ = do(t, engine, http.MethodGet, "/api/accounts", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, engine, http.MethodDelete, "/api/accounts/"+acct.ID, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, engine, http.MethodDelete, "/api/accounts/"+acct.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}
