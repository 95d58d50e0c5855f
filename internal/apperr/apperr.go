// Package apperr defines the error kinds shared by every feature package and
// their mapping onto HTTP status codes.
//
// Feature packages declare their own sentinel errors with New, wrapping one of
// the kinds below. Handlers never inspect feature errors directly: they hand the
// error to Status / Message which walk the chain with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("service unavailable")
	ErrUpstream     = errors.New("upstream failure")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// Error is a client-facing error: Msg is safe to return in a response body.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// New returns an error of the given kind carrying a client-facing message.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalid, Msg: fmt.Sprintf(format, args...)}
}

func Upstreamf(format string, args ...any) error {
	return &Error{Kind: ErrUpstream, Msg: fmt.Sprintf(format, args...)}
}

// Status maps an error chain to an HTTP status. Unknown errors are 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Errors that do not carry
// one (driver errors, bugs) collapse to a generic message.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	for _, kind := range []error{ErrNotFound, ErrForbidden, ErrInvalid, ErrConflict, ErrUnauthorized, ErrUnavailable, ErrUpstream, ErrRateLimited} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal server error"
}
