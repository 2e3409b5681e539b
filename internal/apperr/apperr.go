// Package apperr implements the error taxonomy used across the system:
// Validation, NotFound, Upstream, Database and Critical, each carrying an
// HTTP status hint so handlers don't need a second switch to translate them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for both logging and HTTP translation.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindUpstream
	KindDatabase
	KindCritical
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindDatabase:
		return "database"
	case KindCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps a Kind to the status codes enumerated in the external
// interfaces section: 400 validation, 404 not found, 502 upstream failure,
// 503 reserved for circuit-open (not a Kind here, handled by streamproxy
// directly), everything else 500.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, nil, format, args...) }
func NotFound(format string, args ...any) *Error    { return newf(KindNotFound, nil, format, args...) }

func Upstream(cause error, format string, args ...any) *Error {
	return newf(KindUpstream, cause, format, args...)
}

func Database(cause error, format string, args ...any) *Error {
	return newf(KindDatabase, cause, format, args...)
}

func Critical(cause error, format string, args ...any) *Error {
	return newf(KindCritical, cause, format, args...)
}

// Is reports whether err (or any error it wraps) is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
