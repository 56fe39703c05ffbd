// Package errors provides shared error types that map to both CLI exit codes
// and HTTP status codes, enabling consistent error handling across the CLI and API.
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind represents the category of an error, which determines both the
// CLI exit code and HTTP status code.
type Kind int

const (
	// KindInvalidArgs represents invalid input arguments.
	// CLI exit code: 2, HTTP status: 400 Bad Request
	KindInvalidArgs Kind = iota

	// KindNotFound represents a missing resource, including inspections
	// outside the caller's shop.
	// CLI exit code: 3, HTTP status: 404 Not Found
	KindNotFound

	// KindInvalidTransition represents a transition with no edge in the
	// rule graph.
	// CLI exit code: 4, HTTP status: 422 Unprocessable Entity
	KindInvalidTransition

	// KindUnauthorized represents a caller role not permitted by the rule.
	// CLI exit code: 5, HTTP status: 403 Forbidden
	KindUnauthorized

	// KindConditionFailed represents one or more failed pre-conditions.
	// Carries the full reason list.
	// CLI exit code: 6, HTTP status: 422 Unprocessable Entity
	KindConditionFailed

	// KindValidationFailed represents one or more blocking validations.
	// Carries the full reason list.
	// CLI exit code: 7, HTTP status: 422 Unprocessable Entity
	KindValidationFailed

	// KindStateConflict represents an optimistic-concurrency mismatch:
	// the caller's view of the state was stale.
	// CLI exit code: 8, HTTP status: 409 Conflict
	KindStateConflict

	// KindInternal represents an internal/database error after rollback.
	// CLI exit code: 9, HTTP status: 500 Internal Server Error
	KindInternal

	// KindGeneral represents a general error that doesn't fit other categories.
	// CLI exit code: 1, HTTP status: 500 Internal Server Error
	KindGeneral
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgs:
		return "InvalidArgs"
	case KindNotFound:
		return "NotFound"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindUnauthorized:
		return "Unauthorized"
	case KindConditionFailed:
		return "ConditionFailed"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindStateConflict:
		return "StateConflict"
	case KindInternal:
		return "Internal"
	case KindGeneral:
		return "General"
	default:
		return "Unknown"
	}
}

// Error represents a structured error with kind, message, cause, and optional
// details. Reasons carries the complete list of failed checks for
// ConditionFailed/ValidationFailed so callers can surface every blocking
// reason at once instead of just the first.
type Error struct {
	Kind       Kind
	Message    string
	Reasons    []string
	Cause      error
	Details    map[string]interface{}
	Suggestion string // Optional suggestion for resolving the error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if len(e.Reasons) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Reasons, "; "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause, enabling errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// CLIExitCode returns the appropriate CLI exit code for this error.
func (e *Error) CLIExitCode() int {
	switch e.Kind {
	case KindInvalidArgs:
		return 2
	case KindNotFound:
		return 3
	case KindInvalidTransition:
		return 4
	case KindUnauthorized:
		return 5
	case KindConditionFailed:
		return 6
	case KindValidationFailed:
		return 7
	case KindStateConflict:
		return 8
	case KindInternal:
		return 9
	case KindGeneral:
		return 1
	default:
		return 1
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidArgs:
		return http.StatusBadRequest // 400
	case KindNotFound:
		return http.StatusNotFound // 404
	case KindInvalidTransition:
		return http.StatusUnprocessableEntity // 422
	case KindUnauthorized:
		return http.StatusForbidden // 403
	case KindConditionFailed:
		return http.StatusUnprocessableEntity // 422
	case KindValidationFailed:
		return http.StatusUnprocessableEntity // 422
	case KindStateConflict:
		return http.StatusConflict // 409
	case KindInternal:
		return http.StatusInternalServerError // 500
	case KindGeneral:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails adds details to the error and returns it for chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error and returns it for chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// Constructor functions

// NotFound creates an error for missing resources.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidArgs creates an error for invalid arguments.
func InvalidArgs(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindInvalidArgs,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidTransition creates an error for a move with no rule-graph edge.
func InvalidTransition(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf(format, args...),
	}
}

// Unauthorized creates an error for a role the rule does not permit.
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindUnauthorized,
		Message: fmt.Sprintf(format, args...),
	}
}

// ConditionFailed creates an error carrying every failed pre-condition.
func ConditionFailed(reasons []string) *Error {
	return &Error{
		Kind:    KindConditionFailed,
		Message: "transition conditions not met",
		Reasons: reasons,
	}
}

// ValidationFailed creates an error carrying every blocking validation.
func ValidationFailed(reasons []string) *Error {
	return &Error{
		Kind:    KindValidationFailed,
		Message: "transition validations failed",
		Reasons: reasons,
	}
}

// StateConflict creates an error for concurrent modification conflicts.
func StateConflict(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindStateConflict,
		Message: fmt.Sprintf(format, args...),
	}
}

// Internal creates an error for internal/database errors.
func Internal(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// General creates a general error.
func General(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindGeneral,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a specific kind and message.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(err error, format string, args ...interface{}) *Error {
	return Wrap(err, KindInternal, format, args...)
}

// Helper functions for extracting error information

// GetKind extracts the Kind from an error, returning KindGeneral if the error
// is not an *Error.
func GetKind(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindGeneral
}

// GetCLIExitCode extracts the CLI exit code from an error.
func GetCLIExitCode(err error) int {
	if e, ok := err.(*Error); ok {
		return e.CLIExitCode()
	}
	return 1 // General error
}

// GetHTTPStatus extracts the HTTP status code from an error.
func GetHTTPStatus(err error) int {
	if e, ok := err.(*Error); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetReasons extracts the reason list from an error, or nil.
func GetReasons(err error) []string {
	if e, ok := err.(*Error); ok {
		return e.Reasons
	}
	return nil
}

// Is returns true if the error is of the specified kind.
func Is(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}
