package engine

import (
	"context"
	"errors"
	"fmt"
)

// Code is a stable machine-readable classification of terminal failures.
// Both entry points (SSE stream and MCP tool) report the same codes.
type Code string

const (
	CodeNotFound       Code = "not_found"       // resource does not exist upstream
	CodeUnavailable    Code = "unavailable"     // dependency unreachable or circuit open
	CodePolicyRejected Code = "policy_rejected" // input exceeds a configured limit
	CodeTimeout        Code = "timeout"         // step or run exceeded its budget
	CodeInternal       Code = "internal"
)

// ErrNotFound signals that the requested resource does not exist upstream.
// Fatal for the run; the caller may retry with a different input.
var ErrNotFound = errors.New("resource not found")

// PipelineError carries a stable code plus a human-readable message.
type PipelineError struct {
	Code    Code
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Errf builds a PipelineError with a formatted message.
func Errf(code Code, format string, args ...any) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a code and message to an underlying error.
func WrapErr(code Code, err error, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

// CodeOf classifies an arbitrary error into the terminal-error taxonomy.
func CodeOf(err error) Code {
	var pe *PipelineError
	switch {
	case errors.As(err, &pe):
		return pe.Code
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// MessageOf returns the human-readable message for a terminal error.
func MessageOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
