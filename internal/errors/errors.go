package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig   = "CONFIG"
	ErrAuth     = "AUTH"
	ErrPipeline = "PIPELINE"
	ErrTask     = "TASK"
	ErrExec     = "EXEC"
	ErrLock     = "LOCK"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// The multi-line rendering is:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrPipeline code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrPipeline,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface with the multi-line rendering.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	// Include cause if present (why it failed)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	// Include suggestion if present (how to fix)
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Summary returns the error on a single line: the message followed by the
// cause, without the suggestion.
func (e *Error) Summary() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + Summarize(e.Cause)
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var piErr *Error
	if errors.As(err, &piErr) {
		return piErr.Code == code
	}
	return false
}

// Summarize flattens any error into a single line. Structured errors use
// Summary; other errors have their newlines folded into spaces.
func Summarize(err error) string {
	if err == nil {
		return ""
	}
	var piErr *Error
	if errors.As(err, &piErr) && piErr == err {
		return piErr.Summary()
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}

// ExitError reports a process that ran to completion with a non-zero exit code.
type ExitError struct {
	Code int
}

// NewExitError creates an ExitError for the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// GetExitCode extracts the exit code from an ExitError anywhere in the chain.
func GetExitCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
