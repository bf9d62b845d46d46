// Package apperr defines the closed error taxonomy shared by every service.
//
// Handlers never invent status codes: they classify failures into a Kind and
// let the HTTP layer map it. The taxonomy is deliberately small; anything that
// does not fit is an internal error.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind enumerates every error category the platform surfaces.
type Kind string

const (
	AuthMissing          Kind = "auth_missing"
	AuthInvalid          Kind = "auth_invalid"
	AuthInactive         Kind = "auth_inactive"
	AuthForbiddenRole    Kind = "auth_forbidden_role"
	NotFound             Kind = "not_found"
	ValidationError      Kind = "validation_error"
	RateLimited          Kind = "rate_limited"
	UpstreamTimeout      Kind = "upstream_timeout"
	UpstreamUnavailable  Kind = "upstream_unavailable"
	UpstreamOther        Kind = "upstream_other"
	MachineStateConflict Kind = "state_conflict"
)

// Error carries a Kind, a client-safe message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a taxonomy error with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a taxonomy error with a formatted client-safe message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a taxonomy error. The cause is for logs, the
// message is for clients.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// HTTPStatus maps the Kind to its HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case AuthMissing, AuthInvalid:
		return http.StatusUnauthorized
	case AuthInactive, AuthForbiddenRole:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case ValidationError:
		return http.StatusBadRequest
	case RateLimited:
		return http.StatusTooManyRequests
	case UpstreamTimeout:
		return http.StatusGatewayTimeout
	case UpstreamUnavailable:
		return http.StatusServiceUnavailable
	case UpstreamOther:
		return http.StatusBadGateway
	case MachineStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Retriable reports whether a caller may retry the operation.
// Timeouts are retriable only for idempotent requests; that judgement
// belongs to the caller, this only rules out the never-retriable kinds.
func (e *Error) Retriable() bool {
	switch e.Kind {
	case RateLimited, UpstreamTimeout, UpstreamUnavailable:
		return true
	default:
		return false
	}
}
