// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     errors
// Description: Error taxonomy shared by the tokenizer, parser, router and
//              transports
// License:     MIT
// ============================================================================

// Package errors defines the structured errors raised while routing a
// terminal command. Every error carries a Code so transports can report the
// failure kind without inspecting messages.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Code represents a machine-readable error kind
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Configuration and registration
	CodeInvalidConfiguration Code = "INVALID_CONFIGURATION"
	CodeMissingOption        Code = "MISSING_OPTION"
	CodeMissingArgument      Code = "MISSING_ARGUMENT"
	CodeDuplicateOption      Code = "DUPLICATE_OPTION"
	CodeDuplicateArgument    Code = "DUPLICATE_ARGUMENT"

	// Request resolution
	CodeInvalidRequest  Code = "INVALID_REQUEST"
	CodeInvalidCommand  Code = "INVALID_COMMAND"
	CodeInvalidOption   Code = "INVALID_OPTION"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Licensing and authorization
	CodeUnsupportedCommand  Code = "UNSUPPORTED_COMMAND"
	CodeUnsupportedOption   Code = "UNSUPPORTED_OPTION"
	CodeUnsupportedArgument Code = "UNSUPPORTED_ARGUMENT"
	CodeUnauthorizedAccess  Code = "UNAUTHORIZED_ACCESS"

	// Transport and lifecycle
	CodeConnectionClosed Code = "CONNECTION_CLOSED"
	CodeRequestCanceled  Code = "REQUEST_CANCELED"
	CodeRequestTimeout   Code = "REQUEST_TIMEOUT"

	// Checker/runner resolution or unhandled failures
	CodeServerError Code = "SERVER_ERROR"
)

// String returns the string representation of the code
func (c Code) String() string {
	return string(c)
}

// Error is a routing error with a code, a message and an optional cause
type Error struct {
	code    Code
	message string
	cause   error
	details map[string]interface{}
}

// New creates an error with a formatted message
func New(code Code, format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{code: code, message: msg}
}

// Wrap wraps cause with a code and message. A nil cause returns nil.
func Wrap(cause error, code Code, format string, args ...interface{}) *Error {
	if cause == nil {
		return nil
	}
	e := New(code, format, args...)
	e.cause = cause
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause.Error())
	}
	return e.message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code. This lets
// callers compare against a bare code template: errors.Is(err, New(code, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.code == e.code && (t.message == "" || t.message == e.message)
}

// Code returns the error code
func (e *Error) Code() Code { return e.code }

// Message returns the error message without the cause
func (e *Error) Message() string { return e.message }

// Details returns the attached details (may be nil)
func (e *Error) Details() map[string]interface{} { return e.details }

// WithDetail attaches a detail value and returns the same error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// FromContext converts a context error into RequestCanceled or RequestTimeout
func FromContext(err error) *Error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(err, CodeRequestTimeout, "the request timed out")
	default:
		return Wrap(err, CodeRequestCanceled, "the request was canceled")
	}
}

// Normalize makes sure err is an *Error. Context errors map to cancellation
// codes, everything else becomes a ServerError.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return FromContext(err)
	}
	return Wrap(err, CodeServerError, "the request failed")
}

// IsCancellation reports whether err signals a canceled or timed out request
func IsCancellation(err error) bool {
	code := CodeOf(err)
	return code == CodeRequestCanceled || code == CodeRequestTimeout
}

// IsServerError reports whether err is a configuration or resolution failure
func IsServerError(err error) bool {
	return HasCode(err, CodeServerError)
}
