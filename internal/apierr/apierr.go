// Package apierr defines the single typed error family used across the
// control plane. Every handler-visible failure is an *Error carrying a
// Kind; the HTTP boundary maps Kind to a status code in exactly one
// place (StatusCode) and never hand-rolls a status elsewhere.
package apierr

import "net/http"

// Kind enumerates the domain-level error categories from the control
// plane's external contract.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingAuthHeader
	KindInvalidAuthScheme
	KindPermissionDenied
	KindInvalidKeyFormat
	KindInvalidUsernameFormat
	KindMissingHost
	KindMissingContentType
	KindUnsupportedArchive
	KindInvalidURI
	KindModifyRoot
	KindNotFound
	KindDuplicate
	KindInstanceAlreadyRunning
	KindFunctionNotRunning
	KindNotAliased
	KindIO
)

// StatusCode maps a Kind to the HTTP status code it surfaces as,
// per the control plane's error envelope contract.
func (k Kind) StatusCode() int {
	switch k {
	case KindMissingAuthHeader, KindInvalidAuthScheme:
		return http.StatusUnauthorized
	case KindPermissionDenied, KindModifyRoot, KindInvalidUsernameFormat, KindInvalidKeyFormat, KindFunctionNotRunning, KindNotAliased:
		return http.StatusForbidden
	case KindMissingHost, KindMissingContentType, KindUnsupportedArchive, KindInvalidURI:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate, KindInstanceAlreadyRunning:
		return http.StatusConflict
	case KindIO:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the concrete error type surfaced by every control-plane
// operation that can fail in a way visible to an HTTP caller.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.cause != nil {
		return e.cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an *Error of the given kind with a human-readable
// message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind whose message is the
// underlying error's message, preserving it for errors.Is/As chains.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), cause: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
