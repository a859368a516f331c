// Package apperr classifies failures returned by the service layer so the
// HTTP boundary can map them to status codes without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a service failure.
type Kind string

const (
	KindUnauthenticated   Kind = "unauthenticated"
	KindUnauthorized      Kind = "unauthorized"
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindAlreadyDecided    Kind = "already_decided"
	KindDependencyFailure Kind = "dependency_failure"
)

// Error is a classified failure. Message is safe to show to the caller;
// Err holds the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is checks. They carry no message so they match any
// error of the same kind.
var (
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAlreadyDecided    = &Error{Kind: KindAlreadyDecided}
	ErrDependencyFailure = &Error{Kind: KindDependencyFailure}
)

// Unauthenticated reports a request without a valid caller identity.
func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "authentication required"}
}

// Unauthorized reports a caller acting on something they do not own.
func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Validation reports bad input. The message is shown to the caller.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing item, offer or user.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyDecided reports a decision on an offer that is no longer pending.
func AlreadyDecided(format string, args ...any) *Error {
	return &Error{Kind: KindAlreadyDecided, Message: fmt.Sprintf(format, args...)}
}

// Dependency wraps an infrastructure error. The message shown to callers is
// generic; err is kept for logging.
func Dependency(err error, format string, args ...any) *Error {
	return &Error{Kind: KindDependencyFailure, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, treating unclassified errors as dependency failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependencyFailure
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindDependencyFailure {
			return "a required service is temporarily unavailable, please try again"
		}
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a Kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyDecided:
		return http.StatusConflict
	case KindDependencyFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
