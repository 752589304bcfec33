// Package apperr defines the error kinds surfaced by the panel service.
//
// Every failure the tiling engine can report to a caller carries a Kind,
// which the HTTP layer maps to a status code and a machine-readable
// "kind" field. Errors without a Kind are treated as internal failures and
// are never echoed to clients.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	KindInvalidLayout     Kind = "invalid_layout"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindDecode            Kind = "decode_error"
	KindNoLayout          Kind = "no_layout"
	KindInvalidPanel      Kind = "invalid_panel"
	KindJobNotFound       Kind = "job_not_found"
	KindPayloadTooLarge   Kind = "payload_too_large"
	KindInvalidRequest    Kind = "invalid_request"
	KindInternal          Kind = "internal"
)

// Error is a structured error with a kind and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the client-safe message for err. Errors without a
// kind get a generic message so internal detail does not leak.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal server error"
}

func InvalidLayout(format string, args ...any) *Error {
	return New(KindInvalidLayout, format, args...)
}

func InvalidPanel(n, total int) *Error {
	return New(KindInvalidPanel, "Invalid panel number").withCause(fmt.Errorf("panel %d not in [1,%d]", n, total))
}

func NoLayout() *Error {
	return New(KindNoLayout, "No panels generated yet")
}

func JobNotFound(id string) *Error {
	return New(KindJobNotFound, "job %q not found or expired", id)
}

func (e *Error) withCause(err error) *Error {
	e.Cause = err
	return e
}
