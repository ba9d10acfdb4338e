// Package notify sends journal notifications to a JSON webhook and to
// Telegram.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cycle-journal/internal/accounts"
	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
	"cycle-journal/internal/security"
)

// Type is the kind of a notification.
type Type string

const (
	TypeSync     Type = "sync"
	TypeReminder Type = "reminder"
	TypeError    Type = "error"
	TypeInfo     Type = "info"
)

// Level filters which notifications are sent.
type Level string

const (
	LevelAll        Level = "all"
	LevelErrorsOnly Level = "errors_only"
)

// Notification is one message.
type Notification struct {
	Type      Type                   `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Channel delivers notifications.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Config configures the channels. Channels with missing settings are left
// out.
type Config struct {
	Level            Level
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
	// TelegramBaseURL defaults to the public Bot API.
	TelegramBaseURL string
	Timeout         time.Duration
}

// Notifier sends to every configured channel.
type Notifier struct {
	channels []Channel
	level    Level
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// New builds a Notifier from cfg.
func New(cfg Config, logger zerolog.Logger) *Notifier {
	n := &Notifier{
		level:  cfg.Level,
		logger: logger.With().Str("component", "notify").Logger(),
	}
	if n.level == "" {
		n.level = LevelAll
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WebhookURL != "" {
		n.AddChannel(NewWebhookChannel(cfg.WebhookURL, cfg.Timeout))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		n.AddChannel(NewTelegramChannel(cfg.TelegramBaseURL, cfg.TelegramBotToken, cfg.TelegramChatID, cfg.Timeout))
	}
	return n
}

// AddChannel adds a channel.
func (n *Notifier) AddChannel(ch Channel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, ch)
}

// Enabled reports whether any channel is configured.
func (n *Notifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.channels) > 0
}

func (n *Notifier) shouldSend(t Type) bool {
	if n.level == LevelErrorsOnly {
		return t == TypeError || t == TypeSync
	}
	return true
}

// Send delivers msg to every channel. A failing channel does not stop the
// others; the failures are returned together.
func (n *Notifier) Send(ctx context.Context, msg Notification) error {
	if !n.shouldSend(msg.Type) {
		return nil
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	n.mu.RLock()
	channels := n.channels
	n.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if err := ch.Send(ctx, msg); err != nil {
			n.logger.Warn().Str("channel", ch.Name()).Err(err).Msg("Notification failed")
			errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
			continue
		}
		n.logger.Debug().Str("channel", ch.Name()).Str("type", string(msg.Type)).Msg("Notification sent")
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendSyncReport reports the accounts that failed to sync. Fully
// successful runs are not reported.
func (n *Notifier) SendSyncReport(ctx context.Context, report *accounts.SyncReport) error {
	if report == nil || report.Failed == 0 {
		return nil
	}
	var sb strings.Builder
	failed := make([]string, 0, report.Failed)
	for _, r := range report.Results {
		if r.Error == "" {
			continue
		}
		failed = append(failed, r.AccountID)
		fmt.Fprintf(&sb, "%s: %s\n", r.AccountID, security.MaskSensitive(r.Error))
	}
	return n.Send(ctx, Notification{
		Type:    TypeSync,
		Title:   fmt.Sprintf("⚠️ Account sync: %d of %d failed", report.Failed, report.Failed+report.Succeeded),
		Message: strings.TrimSpace(sb.String()),
		Data: map[string]interface{}{
			"failed":    failed,
			"succeeded": report.Succeeded,
			"started":   report.Started.Format(time.RFC3339),
		},
	})
}

// SendError reports an error.
func (n *Notifier) SendError(ctx context.Context, err error, errContext string) error {
	msg := security.MaskSensitive(err.Error())
	return n.Send(ctx, Notification{
		Type:    TypeError,
		Title:   "❌ Error",
		Message: fmt.Sprintf("Context: %s\nError: %s", errContext, msg),
		Data: map[string]interface{}{
			"context": errContext,
			"error":   msg,
		},
	})
}

// Reminder builds the cycle reminder for o. ok is false when there is
// nothing to say: no anchor, or the next period is more than days away and
// the phase does not change tomorrow.
func Reminder(o cycle.Outlook, days int) (Notification, bool) {
	if !o.Position.Known {
		return Notification{}, false
	}
	var lines []string
	if o.DaysUntilNextPeriod <= days {
		if o.DaysUntilNextPeriod == 1 {
			lines = append(lines, "Period expected tomorrow.")
		} else {
			lines = append(lines, fmt.Sprintf("Period expected in %d days (%s).", o.DaysUntilNextPeriod, cycle.FormatDate(o.NextPeriodStart)))
		}
	}
	if o.PhaseDaysRemaining == 0 && o.NextPhase != o.Position.Phase && o.NextPhase != cycle.PhaseMenstruation {
		lines = append(lines, fmt.Sprintf("%s starts tomorrow.", o.NextPhase.Label()))
	}
	if len(lines) == 0 {
		return Notification{}, false
	}
	return Notification{
		Type:    TypeReminder,
		Title:   fmt.Sprintf("🗓 Cycle day %d · %s", o.Position.CycleDay, o.Position.Phase.Label()),
		Message: strings.Join(lines, "\n"),
		Data: map[string]interface{}{
			"date":                   cycle.FormatDate(o.Date),
			"cycle_day":              o.Position.CycleDay,
			"phase":                  o.Position.Phase,
			"next_phase":             o.NextPhase,
			"days_until_next_period": o.DaysUntilNextPeriod,
		},
		Timestamp: time.Now(),
	}, true
}

// WebhookChannel posts notifications as JSON.
type WebhookChannel struct {
	url    string
	client *http.Client
}

// NewWebhookChannel creates a WebhookChannel.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{url: url, client: &http.Client{Timeout: timeout}}
}

// Name returns "webhook".
func (w *WebhookChannel) Name() string {
	return "webhook"
}

// Send posts n to the webhook.
func (w *WebhookChannel) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "marshaling webhook payload")
	}
	return post(ctx, w.client, w.url, body)
}

// DefaultTelegramBaseURL is the public Bot API.
const DefaultTelegramBaseURL = "https://api.telegram.org"

// TelegramChannel sends notifications through a Telegram bot.
type TelegramChannel struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramChannel creates a TelegramChannel. An empty baseURL selects
// DefaultTelegramBaseURL.
func NewTelegramChannel(baseURL, botToken, chatID string, timeout time.Duration) *TelegramChannel {
	if baseURL == "" {
		baseURL = DefaultTelegramBaseURL
	}
	return &TelegramChannel{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns "telegram".
func (t *TelegramChannel) Name() string {
	return "telegram"
}

// Send sends n as an HTML message.
func (t *TelegramChannel) Send(ctx context.Context, n Notification) error {
	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("<b>%s</b>\n\n%s", escapeHTML(n.Title), escapeHTML(n.Message)),
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshaling telegram payload")
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	if err := post(ctx, t.client, url, body); err != nil {
		// the URL carries the bot token
		return errors.New(strings.ReplaceAll(err.Error(), t.botToken, security.MaskCredential(t.botToken)))
	}
	return nil
}

func post(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CycleJournal/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending notification")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// escapeHTML escapes HTML special characters for Telegram.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
