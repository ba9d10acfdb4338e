// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidConfiguration = errors.New("invalid cycle configuration")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrNotFound             = errors.New("not found")
	ErrInputValidation      = errors.New("input validation failed")
	ErrDatabaseError        = errors.New("database error")
	ErrSyncFailed           = errors.New("account sync failed")
	ErrMissingCredentials   = errors.New("missing account credentials")
	ErrTimeout              = errors.New("operation timed out")
)

// ConfigError describes a rejected cycle or application configuration value.
// It always unwraps to ErrInvalidConfiguration so callers can match with Is.
type ConfigError struct {
	Field string
	Value interface{}
	Rule  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid cycle configuration: %s=%v: %s", e.Field, e.Value, e.Rule)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, rule string) *ConfigError {
	return &ConfigError{
		Field: field,
		Value: value,
		Rule:  rule,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Key      string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Key, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Key, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, key, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Key:      key,
		Message:  message,
		Err:      err,
	}
}

// NotFound returns a DataError that matches ErrNotFound.
func NotFound(dataType, key string) *DataError {
	return NewDataError(dataType, key, "not found", ErrNotFound)
}

// SyncError represents a failure reported by the account-data service.
type SyncError struct {
	AccountID  string
	StatusCode int
	Message    string
	Err        error
}

func (e *SyncError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sync error [%s] status %d: %s", e.AccountID, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("sync error [%s]: %s: %v", e.AccountID, e.Message, e.Err)
	}
	return fmt.Sprintf("sync error [%s]: %s", e.AccountID, e.Message)
}

func (e *SyncError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrSyncFailed
}

// Temporary reports whether retrying the request may succeed.
func (e *SyncError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// NewSyncError creates a new SyncError.
func NewSyncError(accountID string, statusCode int, message string, err error) *SyncError {
	return &SyncError{
		AccountID:  accountID,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
