// Package apperrors defines the core error taxonomy shared by the
// ingestion and diff subsystems, and the external collaborators that
// translate it into transport-specific responses.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the abstract error categories the core can return.
type Kind string

// The error kinds named in spec §7.
const (
	KindInvalidRequest  Kind = "invalid_request"
	KindNotFound        Kind = "not_found"
	KindAuthRequired    Kind = "auth_required"
	KindTimeout         Kind = "timeout"
	KindUpstreamFailure Kind = "upstream_failure"
	KindTooLarge        Kind = "too_large"
	KindInternal        Kind = "internal"
)

// HTTPStatus maps a Kind to the status code the HTTP layer should use.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamFailure:
		return http.StatusBadGateway
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Error is a structured error carrying a Kind, a short user-facing
// message, a stable machine-readable code and an optional underlying
// cause. Internal detail in Base never crosses an HTTP boundary; only
// Msg and Kind do.
type Error struct {
	Kind Kind
	Msg  string
	Base error
}

// Unwrap lets errors.Is/errors.As see through to the underlying cause.
func (e *Error) Unwrap() error {
	return e.Base
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Base != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Base)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Base: cause}
}

// KindOf returns the Kind of err, defaulting to KindInternal when err
// does not carry a Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return KindInternal
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
