// Package apperr defines the user-facing error kinds returned by services.
// Anything that is not an *Error is treated as an unexpected failure.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Validation       Kind = "VALIDATION"
	NotFound         Kind = "NOT_FOUND"
	Conflict         Kind = "CONFLICT"
	CapacityExceeded Kind = "CAPACITY_EXCEEDED"
	Unauthorized     Kind = "UNAUTHORIZED"
	Forbidden        Kind = "FORBIDDEN"
	Upstream         Kind = "UPSTREAM_FAILURE"
)

// Error carries a kind and a message that is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error { return New(Validation, format, args...) }
func NotFoundf(format string, args ...any) *Error   { return New(NotFound, format, args...) }
func Conflictf(format string, args ...any) *Error   { return New(Conflict, format, args...) }
func Capacityf(format string, args ...any) *Error   { return New(CapacityExceeded, format, args...) }

// KindOf returns the kind of the first *Error in err's chain, or "" when
// the error is unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// HTTPStatus maps a kind to its response status. Unknown kinds are 500.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Validation, CapacityExceeded:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Upstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
