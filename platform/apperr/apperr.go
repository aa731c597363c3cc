// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors; the webhook layer maps them to HTTP
// status codes and the pipeline decides from the Kind whether a span is failed
// and whether the out-of-band alert channel is notified.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates a conflict with existing state (e.g., duplicate).
	KindConflict
	// KindForbidden indicates the action is not allowed for the caller.
	KindForbidden
	// KindUnauthorized indicates the shared secret is missing or wrong.
	KindUnauthorized
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest
	// KindInternal indicates a programming error.
	KindInternal
	// KindInput indicates a malformed update or unknown callback from the user.
	KindInput
	// KindPolicy indicates the update was refused by a gate (unsubscribed user, closed chat).
	KindPolicy
	// KindExternal indicates a CRM, LLM, sibling-service or provider failure.
	KindExternal
)

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
	// UserFacing errors carry a Message that is replied to the user as plain text.
	UserFacing bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest, KindInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden, KindPolicy:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// Internal creates an internal error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// Input creates an input error.
func Input(message string) *Error {
	return New(KindInput, message)
}

// Policy creates a policy error.
func Policy(message string) *Error {
	return New(KindPolicy, message)
}

// External wraps a failure of an outbound dependency.
func External(message string, err error) *Error {
	return Wrap(KindExternal, message, err)
}

// UserMessage creates an input error whose message is shown to the user as is.
func UserMessage(message string) *Error {
	return &Error{Kind: KindInput, Message: message, UserFacing: true}
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if the chain contains no *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// UserFacing reports whether err should be answered to the user instead of failing the update.
// It returns the message to reply with.
func UserFacing(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.UserFacing {
		return e.Message, true
	}
	return "", false
}

// IsInternal reports whether err is a programming error that deserves an alert.
// Untyped errors count as internal.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	switch GetKind(err) {
	case KindInternal, KindUnknown:
		return true
	default:
		return false
	}
}
