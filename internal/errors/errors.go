package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a user-visible failure class.
type ErrorCode string

const (
	ErrNoData         ErrorCode = "NO_DATA"         // 409
	ErrGenerateFailed ErrorCode = "GENERATE_FAILED" // 502
	ErrInvalidOutput  ErrorCode = "INVALID_OUTPUT"  // 502
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrBusy           ErrorCode = "BUSY"            // 409
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// NudgeError is a structured failure surfaced to whoever asked for a nudge.
type NudgeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *NudgeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *NudgeError) Unwrap() error {
	return e.Err
}

// NewNoData reports that nothing has been captured to analyze.
func NewNoData() *NudgeError {
	return &NudgeError{
		Code:    ErrNoData,
		Status:  409,
		Message: "no data to analyze",
	}
}

// NewGenerateFailed wraps a model call failure.
func NewGenerateFailed(err error) *NudgeError {
	return &NudgeError{
		Code:    ErrGenerateFailed,
		Status:  502,
		Message: fmt.Sprintf("hint generation failed: %v", err),
		Err:     err,
	}
}

// NewInvalidOutput reports a model reply that could not be used.
func NewInvalidOutput(reason string) *NudgeError {
	return &NudgeError{
		Code:    ErrInvalidOutput,
		Status:  502,
		Message: reason,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *NudgeError {
	return &NudgeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewBusy reports that a hint for this session is already being generated.
func NewBusy() *NudgeError {
	return &NudgeError{
		Code:    ErrBusy,
		Status:  409,
		Message: "a hint is already being generated",
	}
}

// NewInternal creates a 500 error for unexpected failures.
func NewInternal(err error) *NudgeError {
	return &NudgeError{
		Code:    ErrInternal,
		Status:  500,
		Message: "internal error",
		Details: map[string]any{"cause": err.Error()},
		Err:     err,
	}
}

// Is reports whether err carries code.
func Is(err error, code ErrorCode) bool {
	var ne *NudgeError
	if stderrors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}

// StatusOf returns the HTTP status for err, 500 for unstructured errors.
func StatusOf(err error) int {
	var ne *NudgeError
	if stderrors.As(err, &ne) {
		return ne.Status
	}
	return 500
}
