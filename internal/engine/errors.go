package engine

import (
	"errors"
	"fmt"
)

// ExecError represents an error detected while executing a pipeline.
//
// ExecError includes structured fields for diagnostics: the failing stage
// index and kind, and a code callers can branch on.
type ExecError struct {
	// Code identifies the error category.
	Code ExecErrorCode

	// Message is a human-readable description.
	Message string

	// Stage is the index of the failing stage, -1 when not stage specific.
	Stage int

	// Kind is the stage kind, e.g. "$group".
	Kind string

	// Err is the underlying cause, if any.
	Err error
}

// ExecErrorCode categorizes execution errors.
type ExecErrorCode string

const (
	// ErrCodeUnsupportedStage indicates a stage kind the engine cannot run.
	ErrCodeUnsupportedStage ExecErrorCode = "UNSUPPORTED_STAGE"

	// ErrCodeInvalidStage indicates a supported stage with a malformed spec.
	ErrCodeInvalidStage ExecErrorCode = "INVALID_STAGE"

	// ErrCodeNoSource indicates the pipeline does not start with a Source stage.
	ErrCodeNoSource ExecErrorCode = "NO_SOURCE"

	// ErrCodeScanFailed indicates the source returned an error.
	ErrCodeScanFailed ExecErrorCode = "SCAN_FAILED"

	// ErrCodeMatchFailed indicates a predicate could not be evaluated.
	ErrCodeMatchFailed ExecErrorCode = "MATCH_FAILED"
)

// Error implements the error interface.
func (e *ExecError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stage >= 0 {
		return fmt.Sprintf("%s: stage %d (%s): %s", e.Code, e.Stage, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsUnsupportedStage returns true if the error is an unsupported stage error.
// Uses errors.As to handle wrapped errors.
func IsUnsupportedStage(err error) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeUnsupportedStage
	}
	return false
}

// IsInvalidStage returns true if the error is a malformed stage error.
func IsInvalidStage(err error) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeInvalidStage
	}
	return false
}

func stageError(code ExecErrorCode, idx int, kind, format string, args ...any) *ExecError {
	return &ExecError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stage:   idx,
		Kind:    kind,
	}
}
