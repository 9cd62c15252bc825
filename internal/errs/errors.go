// Package errs defines the error taxonomy shared by every hubmapy layer.
//
// Each failure carries a Code identifying its category. Callers branch on
// the category with Is or CodeOf; both use errors.As so wrapped errors
// are recognised.
package errs

import (
	"errors"
	"fmt"
)

// Code categorizes a failure.
type Code string

const (
	// CodeConnection indicates the external engine could not be started or reached.
	CodeConnection Code = "CONNECTION"

	// CodeLoad indicates the ontology source is missing or malformed.
	CodeLoad Code = "LOAD"

	// CodeReasoning indicates classification/materialization failed.
	CodeReasoning Code = "REASONING"

	// CodeNotFound indicates an unknown built-in template or a missing results file.
	CodeNotFound Code = "NOT_FOUND"

	// CodeIO indicates a file or directory could not be read or written.
	CodeIO Code = "IO"

	// CodeQuery indicates the engine rejected the submitted query.
	CodeQuery Code = "QUERY"

	// CodeParse indicates malformed results exchange content.
	CodeParse Code = "PARSE"

	// CodeClosedSession indicates a call on a session that was already closed.
	CodeClosedSession Code = "CLOSED_SESSION"

	// CodeMissingBinding indicates a declared placeholder survived binding.
	CodeMissingBinding Code = "MISSING_BINDING"

	// CodeConfig indicates an invalid configuration value.
	CodeConfig Code = "CONFIG"
)

// Error is a categorized hubmapy failure.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed (e.g. "session.execute").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, preserved for diagnostics.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap creates an Error around an underlying cause.
// Returns nil if err is nil.
func Wrap(code Code, op, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// CodeOf returns the category of the outermost *Error in err's chain,
// or the empty Code if there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given category.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsClosedSession reports whether err is a closed-session error.
func IsClosedSession(err error) bool {
	return Is(err, CodeClosedSession)
}

// IsQuery reports whether err is a query error.
func IsQuery(err error) bool {
	return Is(err, CodeQuery)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return Is(err, CodeNotFound)
}

// Fatal reports whether err prevents a session from becoming usable.
// Connection, load and reasoning failures are fatal; the rest leave the
// session open.
func Fatal(err error) bool {
	switch CodeOf(err) {
	case CodeConnection, CodeLoad, CodeReasoning:
		return true
	}
	return false
}
