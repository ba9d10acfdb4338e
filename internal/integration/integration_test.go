// Package integration runs the journal end to end: the CLI and the HTTP API
// on one configuration directory and database.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"cycle-journal/internal/analytics"
	"cycle-journal/internal/api"
	"cycle-journal/internal/cli"
	"cycle-journal/internal/errors"
)

const importCSV = `Date,Instrument,Direction,Result,PnL,R Multiple,Notes
2025-01-04,EURUSD,long,win,40,1,
2025-01-05,GBPUSD,sideways,win,10,,bad direction
2025-01-14,XAUUSD,short,breakeven,0,0,scratch
`

type harness struct {
	t   *testing.T
	app *cli.App
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("CYCLE_JOURNAL_LOG_LEVEL", "error")
	h := &harness{t: t, app: cli.NewApp(zerolog.Nop()), dir: t.TempDir()}
	t.Cleanup(func() { h.app.Close() })
	return h
}

// run executes one CLI invocation and returns its stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	cmd := cli.NewRootCmd(h.app)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", h.dir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "cycle-journal %v\n%s", args, out)
	return out
}

func (h *harness) mustJSON(v interface{}, args ...string) {
	h.t.Helper()
	out := h.mustRun(append([]string{"--json"}, args...)...)
	require.NoError(h.t, json.Unmarshal([]byte(out), v), out)
}

type phaseRow struct {
	Phase      string  `json:"phase"`
	TradeCount int     `json:"trade_count"`
	WinCount   int     `json:"win_count"`
	TotalPnL   float64 `json:"total_pnl"`
	WinRate    float64 `json:"win_rate"`
}

type phasesOut struct {
	Mode   string     `json:"mode"`
	Phases []phaseRow `json:"phases"`
	Best   *phaseRow  `json:"best"`
}

func TestEndToEnd(t *testing.T) {
	h := newHarness(t)

	// First run writes the config templates.
	var pos struct {
		Date     string `json:"date"`
		Position struct {
			Known    bool   `json:"known"`
			CycleDay int    `json:"cycle_day"`
			Phase    string `json:"phase"`
		} `json:"position"`
	}
	h.mustJSON(&pos, "cycle", "on", "2025-01-14")
	assert.False(t, pos.Position.Known)
	assert.Equal(t, "unknown", pos.Position.Phase)
	assert.FileExists(t, filepath.Join(h.dir, "config.toml"))
	assert.FileExists(t, filepath.Join(h.dir, "credentials.toml"))

	h.mustRun("period", "log", "2025-01-01", "2025-01-02")
	h.mustJSON(&pos, "cycle", "on", "2025-01-14")
	assert.True(t, pos.Position.Known)
	assert.Equal(t, 14, pos.Position.CycleDay)
	assert.Equal(t, "ovulation", pos.Position.Phase)

	var trade struct {
		ID         string `json:"id"`
		CyclePhase string `json:"cycle_phase"`
		Result     string `json:"result"`
	}
	h.mustJSON(&trade, "trade", "add", "--date", "2025-01-03", "--instrument", "eurusd",
		"--direction", "long", "--result", "win", "--pnl", "100", "--r", "2")
	assert.Equal(t, "menstruation", trade.CyclePhase)

	h.mustRun("trade", "add", "--date", "2025-01-20", "--instrument", "NAS100",
		"--direction", "short", "--result", "loss", "--pnl", "-50", "--r", "-1")

	h.mustJSON(&trade, "trade", "add", "--date", "2025-01-21", "--instrument", "EURUSD")
	assert.Equal(t, "unset", trade.Result)
	h.mustJSON(&trade, "trade", "close", trade.ID, "--result", "win", "--pnl", "30")
	assert.Equal(t, "win", trade.Result)

	csvPath := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(importCSV), 0o600))
	var imported struct {
		Imported int      `json:"imported"`
		Rejected []string `json:"rejected"`
	}
	h.mustJSON(&imported, "trade", "import", csvPath)
	assert.Equal(t, 2, imported.Imported)
	require.Len(t, imported.Rejected, 1)
	assert.Contains(t, imported.Rejected[0], "line 3")

	var phases phasesOut
	h.mustJSON(&phases, "stats", "phases")
	assert.Equal(t, "recomputed", phases.Mode)
	require.Len(t, phases.Phases, 4)
	byPhase := map[string]phaseRow{}
	total := 0
	for _, p := range phases.Phases {
		byPhase[p.Phase] = p
		total += p.TradeCount
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, 2, byPhase["menstruation"].TradeCount)
	assert.InDelta(t, 140.0, byPhase["menstruation"].TotalPnL, 1e-9)
	assert.Equal(t, 0, byPhase["follicular"].TradeCount)
	assert.Equal(t, 1, byPhase["ovulation"].TradeCount)
	assert.Equal(t, 2, byPhase["luteal"].TradeCount)
	assert.InDelta(t, 0.5, byPhase["luteal"].WinRate, 1e-9)
	require.NotNil(t, phases.Best)
	assert.Equal(t, "menstruation", phases.Best.Phase)

	out := h.mustRun("trade", "export", "--format", "yaml")
	var exported []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &exported))
	assert.Len(t, exported, 5)

	// The API sees what the CLI wrote.
	engine := api.NewEngine(api.Deps{
		Journal: h.app.Journal,
		Syncer:  h.app.Syncer,
		Store:   h.app.Store,
		Mode:    analytics.AttributeRecomputed,
		Options: analytics.Options{TopDays: 3},
		Logger:  zerolog.Nop(),
	})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats/summary", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var env struct {
		Code int `json:"code"`
		Data struct {
			TotalTrades  int     `json:"total_trades"`
			ClosedTrades int     `json:"closed_trades"`
			TotalPnL     float64 `json:"total_pnl"`
			BestPhase    struct {
				Phase string `json:"phase"`
			} `json:"best_phase"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, 5, env.Data.TotalTrades)
	assert.Equal(t, 5, env.Data.ClosedTrades)
	assert.InDelta(t, 120.0, env.Data.TotalPnL, 1e-9)
	assert.Equal(t, "menstruation", env.Data.BestPhase.Phase)
}

func TestInvalidCycleSettings(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("config", "set-cycle", "--length", "20", "--period", "25")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))

	var settings struct {
		Settings struct {
			Cycle struct {
				AverageCycleLength int `json:"average_cycle_length"`
			} `json:"cycle"`
		} `json:"settings"`
	}
	h.mustJSON(&settings, "config", "show")
	assert.Equal(t, 28, settings.Settings.Cycle.AverageCycleLength)
}

func TestUnknownTradeIsNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("trade", "show", "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = h.run("cycle", "on", "14/01/2025")
	assert.True(t, errors.Is(err, errors.ErrInputValidation))
}
