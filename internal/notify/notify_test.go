package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-journal/internal/accounts"
	"cycle-journal/internal/cycle"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	body  []map[string]interface{}
}

func (r *recorder) server(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(req.Body).Decode(&payload)
		r.mu.Lock()
		r.paths = append(r.paths, req.URL.Path)
		r.body = append(r.body, payload)
		r.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := cycle.ParseDate(s)
	require.NoError(t, err)
	return d
}

func outlookOn(t *testing.T, date string) cycle.Outlook {
	t.Helper()
	o, err := cycle.Forecast(mustDate(t, date), cycle.DefaultConfig(), cycle.OverrideAnchor(mustDate(t, "2025-01-01")))
	require.NoError(t, err)
	return o
}

func TestWebhook(t *testing.T) {
	var rec recorder
	srv := rec.server(t, http.StatusNoContent)
	n := New(Config{WebhookURL: srv.URL + "/hook"}, zerolog.Nop())
	require.True(t, n.Enabled())

	err := n.Send(context.Background(), Notification{Type: TypeInfo, Title: "hello", Message: "world"})
	require.NoError(t, err)
	require.Len(t, rec.body, 1)
	assert.Equal(t, "/hook", rec.paths[0])
	assert.Equal(t, "info", rec.body[0]["type"])
	assert.Equal(t, "hello", rec.body[0]["title"])
	assert.NotEmpty(t, rec.body[0]["timestamp"])
}

func TestTelegram_MasksTokenOnFailure(t *testing.T) {
	var rec recorder
	srv := rec.server(t, http.StatusBadGateway)
	n := New(Config{
		TelegramBaseURL:  srv.URL,
		TelegramBotToken: "123456:ABCDEFGHIJKLMNOP",
		TelegramChatID:   "42",
	}, zerolog.Nop())

	err := n.Send(context.Background(), Notification{Type: TypeError, Title: "<b>", Message: "a & b"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "ABCDEFGHIJKLMNOP")
	assert.Contains(t, err.Error(), "502")

	require.Len(t, rec.body, 1)
	assert.Equal(t, "/bot123456:ABCDEFGHIJKLMNOP/sendMessage", rec.paths[0])
	assert.Equal(t, "42", rec.body[0]["chat_id"])
	assert.Equal(t, "<b>&lt;b&gt;</b>\n\na &amp; b", rec.body[0]["text"])
}

func TestLevelErrorsOnly(t *testing.T) {
	var rec recorder
	srv := rec.server(t, http.StatusOK)
	n := New(Config{Level: LevelErrorsOnly, WebhookURL: srv.URL}, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, n.Send(ctx, Notification{Type: TypeReminder, Title: "skip"}))
	require.NoError(t, n.SendError(ctx, assert.AnError, "sync"))
	require.Len(t, rec.body, 1)
	assert.Equal(t, "error", rec.body[0]["type"])
}

func TestNoChannels(t *testing.T) {
	n := New(Config{TelegramBotToken: "token-without-chat"}, zerolog.Nop())
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Send(context.Background(), Notification{Type: TypeInfo}))
}

func TestSendSyncReport(t *testing.T) {
	var rec recorder
	srv := rec.server(t, http.StatusOK)
	n := New(Config{WebhookURL: srv.URL}, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, n.SendSyncReport(ctx, &accounts.SyncReport{Succeeded: 2}))
	require.NoError(t, n.SendSyncReport(ctx, nil))
	assert.Empty(t, rec.body)

	report := &accounts.SyncReport{
		Succeeded: 1,
		Failed:    1,
		Results: []accounts.SyncResult{
			{AccountID: "A1"},
			{AccountID: "A2", Error: "status 503"},
		},
	}
	require.NoError(t, n.SendSyncReport(ctx, report))
	require.Len(t, rec.body, 1)
	assert.Equal(t, "sync", rec.body[0]["type"])
	assert.Contains(t, rec.body[0]["title"], "1 of 2 failed")
	assert.Equal(t, "A2: status 503", rec.body[0]["message"])
}

func TestReminder(t *testing.T) {
	tests := []struct {
		date    string
		days    int
		ok      bool
		message string
	}{
		{"2025-01-27", 2, true, "Period expected in 2 days (2025-01-29)."},
		{"2025-01-27", 1, false, ""},
		{"2025-01-28", 2, true, "Period expected tomorrow."},
		{"2025-01-05", 2, true, "Follicular starts tomorrow."},
		{"2025-01-08", 2, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			n, ok := Reminder(outlookOn(t, tt.date), tt.days)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, TypeReminder, n.Type)
				assert.Equal(t, tt.message, n.Message)
			}
		})
	}

	o, err := cycle.Forecast(mustDate(t, "2025-01-08"), cycle.DefaultConfig(), cycle.NoAnchor())
	require.NoError(t, err)
	_, ok := Reminder(o, 30)
	assert.False(t, ok)
}

type fixedOutlook struct {
	today time.Time
}

func (f fixedOutlook) Today() time.Time { return f.today }

func (f fixedOutlook) Outlook(_ context.Context, today time.Time) (cycle.Outlook, error) {
	return cycle.Forecast(today, cycle.DefaultConfig(), cycle.OverrideAnchor(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestReminderJob(t *testing.T) {
	var rec recorder
	srv := rec.server(t, http.StatusOK)
	n := New(Config{WebhookURL: srv.URL}, zerolog.Nop())

	_, err := NewReminderJob(context.Background(), fixedOutlook{}, n, "whenever", 2, zerolog.Nop())
	require.Error(t, err)

	job, err := NewReminderJob(context.Background(), fixedOutlook{today: mustDate(t, "2025-01-28")}, n, "", 2, zerolog.Nop())
	require.NoError(t, err)
	sent, err := job.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	require.Len(t, rec.body, 1)
	assert.Equal(t, "reminder", rec.body[0]["type"])

	job.Start()
	job.Stop()
}
