package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig      = "CONFIG"
	ErrUnreachable = "UNREACHABLE" // API server did not answer the startup health check
	ErrSnapshot    = "SNAPSHOT"    // initial topology query failed
	ErrRefresh     = "REFRESH"     // a single in-session refresh failed
	ErrConnLost    = "CONN_LOST"   // connection dropped mid-session
	ErrRender      = "RENDER"      // terminal surface unusable
	ErrInternal    = "INTERNAL"    // uncategorized
)

// Process exit statuses, following sysexits.h.
const (
	ExitOK          = 0
	ExitSoftware    = 70
	ExitUnavailable = 69
	ExitConfig      = 78
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
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

// Wrap adds a message to err. The code is taken from the first structured
// error in err's chain, or ErrInternal when there is none.
func Wrap(err error, message string) *Error {
	code := ErrInternal
	var pErr *Error
	if errors.As(err, &pErr) {
		code = pErr.Code
	}
	return &Error{
		Code:    code,
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

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Diagnostic returns a single-line description of the error, suitable for
// a status banner or a one-line stderr report.
func (e *Error) Diagnostic() string {
	if e.Cause == nil {
		return e.Message
	}
	cause := strings.Join(strings.Fields(e.Cause.Error()), " ")
	return e.Message + ": " + cause
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
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}

// Diagnostic collapses any error into one line. Structured errors use their
// message and cause; anything else uses Error() with whitespace folded.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Diagnostic()
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}

// ExitCode maps an error to the process exit status.
// Startup failures are UNAVAILABLE so callers can tell "never started" apart
// from a clean quit after the connection was lost.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var pErr *Error
	if !errors.As(err, &pErr) {
		return ExitSoftware
	}
	switch pErr.Code {
	case ErrUnreachable, ErrSnapshot:
		return ExitUnavailable
	case ErrConfig:
		return ExitConfig
	default:
		return ExitSoftware
	}
}
