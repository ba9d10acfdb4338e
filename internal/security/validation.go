// Package security masks credentials before they reach logs and validates
// free-text journal input.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"cycle-journal/internal/errors"
)

// Validation limits.
const (
	MaxInstrumentLen = 20
	MaxLabelLen      = 60
	MaxNotesLen      = 2000
)

var (
	// Instrument pattern: uppercase letters, digits and the separators used
	// by brokers (EURUSD, NAS100, BTC-USD, ES_F, XAU/USD, US30.cash)
	instrumentPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9./_&-]{0,19}$`)

	// Trade and account IDs: ULIDs or user-supplied slugs
	idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	// API key patterns for detection (not validation)
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret|secret[_-]?key|access[_-]?token|auth[_-]?token|bearer)[=:\s]+["']?([A-Za-z0-9_\-\.]{20,})["']?`),
		regexp.MustCompile(`(?i)([A-Za-z0-9]{32,})`), // generic long tokens
	}
)

// InputValidator checks user-entered trade and account fields.
type InputValidator struct {
	strictMode bool
}

// NewInputValidator creates a validator. Strict mode also rejects control
// characters in notes instead of stripping them.
func NewInputValidator(strictMode bool) *InputValidator {
	return &InputValidator{strictMode: strictMode}
}

// ValidateInstrument validates an optional instrument symbol. The empty
// string is allowed.
func (v *InputValidator) ValidateInstrument(symbol string) error {
	symbol = SanitizeInstrument(symbol)
	if symbol == "" {
		return nil
	}
	if len(symbol) > MaxInstrumentLen {
		return errors.NewValidationError("instrument", symbol, fmt.Sprintf("too long (max %d characters)", MaxInstrumentLen))
	}
	if !instrumentPattern.MatchString(symbol) {
		return errors.NewValidationError("instrument", symbol, "invalid symbol format")
	}
	return nil
}

// ValidateID validates a trade or account identifier.
func (v *InputValidator) ValidateID(field, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.NewValidationError(field, id, "cannot be empty")
	}
	if !idPattern.MatchString(id) {
		return errors.NewValidationError(field, id, "invalid identifier format")
	}
	return nil
}

// ValidateLabel validates a short free-text label such as a strategy or
// prop-firm name.
func (v *InputValidator) ValidateLabel(field, label string) error {
	return v.ValidateText(field, label, MaxLabelLen)
}

// ValidateText validates free-form text input.
func (v *InputValidator) ValidateText(field, text string, maxLen int) error {
	if len([]rune(text)) > maxLen {
		return errors.NewValidationError(field, truncate(text, 50), fmt.Sprintf("text too long (max %d characters)", maxLen))
	}
	if v.strictMode && SanitizeText(text) != text {
		return errors.NewValidationError(field, MaskSensitive(truncate(text, 50)), "control characters are not allowed")
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// SanitizeInstrument trims and upper-cases a symbol and drops whitespace.
func SanitizeInstrument(symbol string) string {
	var result strings.Builder
	for _, r := range strings.ToUpper(symbol) {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// SanitizeText removes control characters other than newlines and tabs.
func SanitizeText(text string) string {
	var result strings.Builder
	for _, r := range text {
		if r == '\n' || r == '\t' || (r >= 32 && r != 127) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// MaskSensitive masks API keys and tokens inside a string.
func MaskSensitive(input string) string {
	result := input
	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if len(match) > 8 {
				return match[:4] + strings.Repeat("*", len(match)-8) + match[len(match)-4:]
			}
			return strings.Repeat("*", len(match))
		})
	}
	return result
}

// MaskCredential masks a credential value for logging.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

