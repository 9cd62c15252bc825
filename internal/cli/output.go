package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/hubmapy/internal/errs"
	"github.com/roach88/hubmapy/internal/result"
)

// Exit codes for the hubmapy command.
const (
	ExitSuccess      = 0 // Query ran and results were written
	ExitFailure      = 1 // Query rejected or results unreadable
	ExitCommandError = 2 // Bad flags, configuration or query file
	ExitEngineError  = 3 // Engine could not start, load or reason
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ExitCodeFor maps an error category to an exit code.
func ExitCodeFor(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeConnection, errs.CodeLoad, errs.CodeReasoning:
		return ExitEngineError
	case errs.CodeConfig, errs.CodeIO, errs.CodeMissingBinding:
		return ExitCommandError
	default:
		return ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // error category, e.g. "QUERY"
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// QuerySummary describes a finished query.
type QuerySummary struct {
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Columns []string     `json:"columns"`
	Count   int          `json:"row_count"`
	Rows    []result.Row `json:"rows"`
}

// NewQuerySummary summarizes res under the given query name.
func NewQuerySummary(name string, res *result.Result) QuerySummary {
	return QuerySummary{
		Name:    name,
		Path:    res.Path,
		Columns: res.Columns,
		Count:   res.Len(),
		Rows:    res.Rows,
	}
}

func (s QuerySummary) String() string {
	noun := "rows"
	if s.Count == 1 {
		noun = "row"
	}
	return fmt.Sprintf("%s: %d %s written to %s", s.Name, s.Count, noun, s.Path)
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}
