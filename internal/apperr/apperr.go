// Package apperr is the error taxonomy every handler, service and the
// request context pipeline unwind through. It maps a small closed set of
// Kinds onto HTTP status codes so the transport layer never has to guess.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Kind is one of the seven error kinds the system recognizes.
type Kind string

const (
	Unauthenticated   Kind = "UNAUTHENTICATED"
	Forbidden         Kind = "FORBIDDEN"
	BadRequest        Kind = "BAD_REQUEST"
	NotFound          Kind = "NOT_FOUND"
	Conflict          Kind = "CONFLICT"
	ResourceExhausted Kind = "RESOURCE_EXHAUSTED"
	Internal          Kind = "INTERNAL"
)

var statusByKind = map[Kind]int{
	Unauthenticated:   http.StatusUnauthorized,
	Forbidden:         http.StatusForbidden,
	BadRequest:        http.StatusBadRequest,
	NotFound:          http.StatusNotFound,
	Conflict:          http.StatusConflict,
	ResourceExhausted: http.StatusServiceUnavailable,
	Internal:          http.StatusInternalServerError,
}

// Error is the application error type. Reason is a short machine-readable
// code nested under Kind (e.g. "invalid-or-used", "BALANCE_EXCEEDED");
// it is optional and only meaningful to callers that branch on it. Details
// carries extra structured fields a handler wants on the wire alongside
// Reason (e.g. balance exhaustion's balanceType) without inventing a
// bespoke body shape per error.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Cause   error
	Details map[string]any
}

// WithDetails attaches extra wire fields and returns the same error for
// chaining at the call site.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// ToHTTPStatus maps the error's Kind to an HTTP status code.
func (e *Error) ToHTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HTTPStatus maps err to an HTTP status code. Unrecognized errors (not
// *Error) map to 500.
func HTTPStatus(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.ToHTTPStatus()
	}
	return http.StatusInternalServerError
}

// KindOf extracts the Kind of err, defaulting to Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// ReasonOf extracts the Reason of err, or "" if absent.
func ReasonOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func WithReason(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Convenience constructors matching the error surface in spec §7.

func Unauthenticatedf(format string, args ...any) *Error {
	return New(Unauthenticated, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...any) *Error {
	return New(Forbidden, fmt.Sprintf(format, args...))
}

func BadRequestf(format string, args ...any) *Error {
	return New(BadRequest, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Conflictf(reason, format string, args ...any) *Error {
	return WithReason(Conflict, reason, fmt.Sprintf(format, args...))
}

func Internalf(cause error, format string, args ...any) *Error {
	return Wrap(Internal, fmt.Sprintf(format, args...), cause)
}

// WriteError writes err as a JSON error body with the status its Kind maps
// to. Non-*Error values are logged with their full detail and surfaced to
// the client as a bare 500 -- internal detail never leaks over the wire.
func WriteError(w http.ResponseWriter, err error) {
	var ae *Error
	if !errors.As(err, &ae) {
		slog.Error("unclassified error reached WriteError", "error", err)
		ae = &Error{Kind: Internal, Message: "internal error"}
	}
	if ae.Kind == Internal {
		slog.Error("internal error", "message", ae.Message, "cause", ae.Cause)
	}

	body := map[string]any{
		"error": ae.Error(),
		"kind":  ae.Kind,
	}
	if ae.Reason != "" {
		body["reason"] = ae.Reason
	}
	for k, v := range ae.Details {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.ToHTTPStatus())
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		slog.Error("failed to encode error response", "error", encErr)
	}
}
