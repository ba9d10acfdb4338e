package security

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// secretFields are log field names whose values are always masked.
var secretFields = map[string]bool{
	"password":           true,
	"investor_password":  true,
	"api_key":            true,
	"token":              true,
	"telegram_bot_token": true,
	"authorization":      true,
}

// maskedFields are shown partially so an account can still be recognised.
var maskedFields = map[string]bool{
	"login": true,
}

// inlineSecret matches "key=value" or "key: value" pairs for secret keys
// inside free text such as error messages.
var inlineSecret = regexp.MustCompile(`(?i)\b(password|api[_-]?key|token|bearer)(\s*[=:]\s*|\s+)["']?([^\s"',}]+)["']?`)

// SafeLogger wraps a zerolog.Logger for code that handles prop-firm
// credentials and the sync service API key.
type SafeLogger struct {
	logger zerolog.Logger
}

// NewSafeLogger wraps logger.
func NewSafeLogger(logger zerolog.Logger) *SafeLogger {
	return &SafeLogger{logger: logger}
}

// Logger returns the wrapped logger.
func (sl *SafeLogger) Logger() zerolog.Logger {
	return sl.logger
}

func (sl *SafeLogger) Debug() *SafeEvent { return &SafeEvent{event: sl.logger.Debug()} }
func (sl *SafeLogger) Info() *SafeEvent  { return &SafeEvent{event: sl.logger.Info()} }
func (sl *SafeLogger) Warn() *SafeEvent  { return &SafeEvent{event: sl.logger.Warn()} }
func (sl *SafeLogger) Error() *SafeEvent { return &SafeEvent{event: sl.logger.Error()} }

// SafeEvent is a zerolog.Event that scrubs string fields, errors and the
// message before they are written.
type SafeEvent struct {
	event *zerolog.Event
}

// Str adds a string field. Secret fields are masked entirely, logins
// partially, and anything else is scanned for inline secrets.
func (se *SafeEvent) Str(key, val string) *SafeEvent {
	k := strings.ToLower(key)
	switch {
	case secretFields[k]:
		val = redact(val)
	case maskedFields[k]:
		val = MaskCredential(val)
	default:
		val = scrub(val)
	}
	se.event = se.event.Str(key, val)
	return se
}

func (se *SafeEvent) Int(key string, val int) *SafeEvent {
	se.event = se.event.Int(key, val)
	return se
}

func (se *SafeEvent) Bool(key string, val bool) *SafeEvent {
	se.event = se.event.Bool(key, val)
	return se
}

func (se *SafeEvent) Float64(key string, val float64) *SafeEvent {
	se.event = se.event.Float64(key, val)
	return se
}

func (se *SafeEvent) Dur(key string, val time.Duration) *SafeEvent {
	se.event = se.event.Dur(key, val)
	return se
}

// Err adds err with inline secrets scrubbed from its message.
func (se *SafeEvent) Err(err error) *SafeEvent {
	if err != nil {
		se.event = se.event.Str(zerolog.ErrorFieldName, scrub(err.Error()))
	}
	return se
}

// Msg writes the event.
func (se *SafeEvent) Msg(msg string) {
	se.event.Msg(scrub(msg))
}

// Msgf writes the event with a formatted message.
func (se *SafeEvent) Msgf(format string, args ...interface{}) {
	se.Msg(fmt.Sprintf(format, args...))
}

// redact hides a secret completely, keeping only whether it was set.
func redact(val string) string {
	if val == "" {
		return ""
	}
	return "[redacted]"
}

// scrub masks inline secrets and known API key shapes in free text.
func scrub(s string) string {
	s = inlineSecret.ReplaceAllStringFunc(s, func(match string) string {
		m := inlineSecret.FindStringSubmatch(match)
		return m[1] + m[2] + MaskCredential(m[3])
	})
	return MaskSensitive(s)
}
