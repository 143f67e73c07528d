// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Pipeline error classes. Every error returned by the core unwraps to one of these.
var (
	// ErrConfiguration marks an invalid window/stride relationship, scaler or class set.
	ErrConfiguration = errors.New("configuration error")
	// ErrInference marks a classifier failure or a malformed classifier output.
	ErrInference = errors.New("inference error")
	// ErrInsufficientData marks a recording that yields zero windows.
	ErrInsufficientData = errors.New("insufficient data")
)

// Storage errors.
var (
	ErrNotFound = errors.New("not found")
)

// ConfigError wraps ErrConfiguration with a field name.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigError creates a configuration error for the given field.
func NewConfigError(field, format string, args ...any) error {
	return &ConfigError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

// InferenceError reports a classifier failure for one window of one recording.
// Recording is empty until the pipeline attaches it.
type InferenceError struct {
	Err       error
	Recording string
	Window    int
}

func (e *InferenceError) Error() string {
	if e.Recording != "" {
		return fmt.Sprintf("%v: recording %q window %d: %v", ErrInference, e.Recording, e.Window, e.Err)
	}
	return fmt.Sprintf("%v: window %d: %v", ErrInference, e.Window, e.Err)
}

// Is reports ErrInference so callers can match the class without unwrapping the cause.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// InsufficientDataError reports a recording with no classifiable windows.
// Failed is non-zero when windows existed but every one failed inference.
type InsufficientDataError struct {
	Recording string
	Samples   int
	Window    int
	Failed    int
}

func (e *InsufficientDataError) Error() string {
	if e.Failed > 0 {
		return fmt.Sprintf("%v: recording %q: all %d windows failed inference", ErrInsufficientData, e.Recording, e.Failed)
	}
	if e.Recording == "" {
		return fmt.Sprintf("%v: no windows to aggregate", ErrInsufficientData)
	}
	return fmt.Sprintf("%v: recording %q has %d samples, window length %d", ErrInsufficientData, e.Recording, e.Samples, e.Window)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
// Configuration and data errors are never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrInsufficientData) {
		return false
	}

	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
