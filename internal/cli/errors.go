package cli

import (
	"errors"
	"fmt"
	"strings"

	rerrors "github.com/spannerworks/ratchet/internal/errors"
)

// Exit codes, mirroring errors.Error.CLIExitCode.
const (
	ExitSuccess           = 0
	ExitGeneralError      = 1
	ExitInvalidArgs       = 2
	ExitNotFound          = 3
	ExitInvalidTransition = 4
	ExitUnauthorized      = 5
	ExitConditionFailed   = 6
	ExitValidationFailed  = 7
	ExitStateConflict     = 8
	ExitInternalError     = 9
)

// ExitCode returns the exit code for any error.
func ExitCode(err error) int {
	var sharedErr *rerrors.Error
	if errors.As(err, &sharedErr) {
		return sharedErr.CLIExitCode()
	}
	return ExitGeneralError
}

// FormatErrorMessage returns a formatted error for stderr. Structured
// errors list every failed check on its own line and append the suggestion
// when one is set.
func FormatErrorMessage(err error) string {
	var sharedErr *rerrors.Error
	if !errors.As(err, &sharedErr) {
		return "Error: " + err.Error()
	}

	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(sharedErr.Message)
	if sharedErr.Cause != nil {
		b.WriteString(": ")
		b.WriteString(sharedErr.Cause.Error())
	}
	for _, reason := range sharedErr.Reasons {
		b.WriteString("\n  - ")
		b.WriteString(reason)
	}
	if sharedErr.Suggestion != "" {
		b.WriteString("\n\nSuggestion: ")
		b.WriteString(sharedErr.Suggestion)
	}
	return b.String()
}

// ErrInvalidArgs creates an invalid-argument error (exit code 2).
func ErrInvalidArgs(format string, args ...interface{}) error {
	return rerrors.InvalidArgs(format, args...)
}

// ErrNotFound creates a not-found error (exit code 3).
func ErrNotFound(format string, args ...interface{}) error {
	return rerrors.NotFound(format, args...)
}

// ErrGeneral creates a general error (exit code 1).
func ErrGeneral(format string, args ...interface{}) error {
	return rerrors.General(format, args...)
}

// ErrGeneralWithCause creates a general error wrapping a cause.
func ErrGeneralWithCause(cause error, format string, args ...interface{}) error {
	return rerrors.Wrap(cause, rerrors.KindGeneral, format, args...)
}

// Common suggestions
const (
	SuggestRunInit    = "Run 'ratchet init' to create a new database."
	SuggestActorFlags = "Pass the caller identity with --user, --role and --shop."
	SuggestShowState  = "Run 'ratchet inspection show %d' to check the inspection's current state."
)

// withSuggestion attaches a suggestion to structured errors and leaves
// other errors untouched.
func withSuggestion(err error, format string, args ...interface{}) error {
	var sharedErr *rerrors.Error
	if errors.As(err, &sharedErr) {
		return sharedErr.WithSuggestion(fmt.Sprintf(format, args...))
	}
	return err
}
