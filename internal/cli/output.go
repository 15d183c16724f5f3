package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/greql/internal/eval"
	"github.com/roach88/greql/internal/syntax"
)

// Exit codes of the greql binary.
const (
	ExitSuccess      = 0 // query evaluated, scenarios passed
	ExitFailure      = 1 // invalid query, failed evaluation or scenario
	ExitCommandError = 2 // missing files, unreadable graph, bad bindings
)

// ExitError carries the process exit code of a failed command. cmd/greql
// reads it with GetExitCode.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError without cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results and failures as text or as a
// JSON CLIResponse. Session, once set, is attached to every JSON response.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output; defaults to Writer
	Verbose   bool
	Session   string
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status  string    `json:"status"`            // "ok" or "error"
	Data    any       `json:"data,omitempty"`    // success payload
	Error   *CLIError `json:"error,omitempty"`   // failure
	Session string    `json:"session,omitempty"` // evaluation session id
}

// CLIError is the failure part of a CLIResponse.
//
// Load failures use the E0xx codes of this package, validation failures the
// compiler's E2xx codes, and evaluation failures the evaluator's codes
// (TYPE_MISMATCH, ...). Node and Kind locate an evaluation failure in the
// query syntax graph.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Node    *int   `json:"node,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Describe classifies err into a CLIError. Context cancellation maps to
// CANCELLED and deadlines to TIMEOUT; unknown errors get ErrCodeGeneric.
func Describe(err error) *CLIError {
	var loadErr *LoadError
	var evalErr *eval.EvalError
	switch {
	case errors.As(err, &loadErr):
		ce := &CLIError{Code: loadErr.Code, Message: loadErr.describe()}
		if loadErr.Pos.IsValid() {
			ce.Details = map[string]any{
				"file":   loadErr.Pos.Filename(),
				"line":   loadErr.Pos.Line(),
				"column": loadErr.Pos.Column(),
			}
		}
		return ce
	case errors.As(err, &evalErr):
		ce := &CLIError{Code: string(evalErr.Code), Message: evalErr.Message}
		if evalErr.Node != syntax.NoNode {
			node := int(evalErr.Node)
			ce.Node, ce.Kind = &node, evalErr.Kind.String()
		}
		if len(evalErr.Details) > 0 {
			ce.Details = evalErr.Details
		}
		return ce
	case errors.Is(err, context.DeadlineExceeded):
		return &CLIError{Code: "TIMEOUT", Message: err.Error()}
	case errors.Is(err, context.Canceled):
		return &CLIError{Code: "CANCELLED", Message: err.Error()}
	}
	return &CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	return f.Fail(&CLIError{Code: code, Message: message, Details: details})
}

// Fail outputs a classified failure. Text output names the failing query
// node; details are printed in verbose mode only.
func (f *OutputFormatter) Fail(ce *CLIError) error {
	if f.Format == "json" {
		return f.Encode(CLIResponse{Status: "error", Error: ce})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", ce.Code, ce.Message)
	if ce.Node != nil {
		fmt.Fprintf(f.Writer, "  at node %d (%s)\n", *ce.Node, ce.Kind)
	}
	if f.Verbose && ce.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", ce.Details)
	}
	return nil
}

// Encode writes resp as indented JSON, stamping the formatter's session.
func (f *OutputFormatter) Encode(resp CLIResponse) error {
	if resp.Session == "" {
		resp.Session = f.Session
	}
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog writes a line to ErrWriter (or Writer) in verbose mode only,
// so JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
