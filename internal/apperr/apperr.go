// Package apperr defines the error taxonomy shared by the trip services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and presentation.
type Kind string

const (
	KindValidation  Kind = "VALIDATION_ERROR"
	KindForbidden   Kind = "FORBIDDEN"
	KindNotFound    Kind = "NOT_FOUND"
	KindConflict    Kind = "CONFLICT"
	KindTransient   Kind = "TRANSIENT"
	KindConsistency Kind = "CONSISTENCY_ERROR"
	KindInternal    Kind = "INTERNAL_ERROR"
)

// Error is a classified error. Message is safe to show to end users; Err is the
// underlying cause and is never rendered.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Validation reports bad input detected before any I/O.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Forbidden reports an operation attempted without the required role.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a state precondition failure (e.g. request already reviewed).
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Transient wraps a network, timeout or connectivity failure.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Message: "temporarily unavailable", Err: err}
}

// Consistency reports a partially applied multi-step write.
func Consistency(op, message string, err error) *Error {
	return &Error{Kind: KindConsistency, Op: op, Message: message, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	return Is(err, KindTransient)
}

// UserMessage returns the user-facing message for caller errors (validation, forbidden,
// not found, conflict). Other kinds return fallback so backend text never leaks.
func UserMessage(err error, fallback string) string {
	var e *Error
	if !errors.As(err, &e) {
		return fallback
	}
	switch e.Kind {
	case KindValidation, KindForbidden, KindNotFound, KindConflict:
		return e.Message
	}
	return fallback
}

// HTTPStatus maps a kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
