// Package domainerrors carries the error codes services return across package
// boundaries. Transport adapters translate codes into status lines; stores return
// sentinel errors instead (see pkg/platform/sentinel).
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure independent of its message.
type Code string

const (
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeValidation         Code = "validation_error"
	CodeUnauthorized       Code = "unauthorized"
	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeInvalidInput       Code = "invalid_input"
	CodeForbidden          Code = "forbidden"
	CodeConflict           Code = "conflict"
	CodeInvalidRequest     Code = "invalid_request"
	CodeTimeout            Code = "timeout"

	// Registration pipeline failures.
	CodeRateLimitExceeded        Code = "rate_limit_exceeded"
	CodeEnrichmentFailed         Code = "enrichment_failed"
	CodeAuthorizationDenied      Code = "authorization_denied"
	CodeComplianceRejected       Code = "compliance_rejected"
	CodeUnsupportedSchemaVersion Code = "unsupported_schema_version"
	CodeMissingRequiredField     Code = "missing_required_field"
	CodePublishFailed            Code = "publish_failed"
	CodeUnknownAction            Code = "unknown_action"
)

// Error is a coded domain error. Message is safe to show to callers; Err is the
// underlying cause and is never rendered on the wire.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a domain error with the same code and message.
// It lets tests use errors.Is against a freshly constructed expectation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and caller-facing message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.Err
			continue
		}
		return false
	}
	return false
}

// Is is shorthand for HasCode, kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost domain code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost domain message in err's chain. Errors that
// carry no domain error are reported with a generic message.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
