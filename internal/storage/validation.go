// Package storage persists evaluation runs and recording verdicts in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/motorsense/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrInvalidRun    = errors.New("invalid run")
	ErrInvalidRecord = errors.New("invalid verdict")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateRun(run *model.Run) error {
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if strings.TrimSpace(run.Command) == "" {
		return fmt.Errorf("%w: missing command", ErrInvalidRun)
	}
	if run.WindowLength < 1 || run.Stride < 1 {
		return fmt.Errorf("%w: window %d stride %d", ErrInvalidRun, run.WindowLength, run.Stride)
	}
	return nil
}

func validateVerdict(v *model.StoredVerdict) error {
	if v == nil {
		return fmt.Errorf("%w: verdict", ErrNilParameter)
	}
	if err := validateString(v.RunID, "runID"); err != nil {
		return err
	}
	if strings.TrimSpace(v.Recording) == "" {
		return fmt.Errorf("%w: missing recording", ErrInvalidRecord)
	}
	if v.Verdict.ClassName == "" || v.Verdict.WindowCount < 1 {
		return fmt.Errorf("%w: recording %q has no verdict", ErrInvalidRecord, v.Recording)
	}
	return nil
}
