package eval

import (
	"errors"
	"fmt"

	"github.com/roach88/greql/internal/automaton"
	"github.com/roach88/greql/internal/funlib"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
)

// EvalError represents an error detected while evaluating a query.
//
// Every EvalError aborts the whole evaluation; no partial result is
// returned and nothing is retried. Null operands of set and path operations
// are not errors: they yield empty results or false.
type EvalError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node identifies the syntax node being evaluated, or syntax.NoNode.
	Node syntax.NodeID

	// Kind is the kind of Node.
	Kind syntax.Kind

	// Details contains additional context.
	Details map[string]string

	err error
}

// ErrorCode categorizes evaluation errors.
type ErrorCode string

const (
	// ErrCodeTypeMismatch indicates an operand of unexpected runtime type,
	// such as a non-boolean condition or a non-integer exponent.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeUnknownFunction indicates a function application naming an
	// unregistered function.
	ErrCodeUnknownFunction ErrorCode = "UNKNOWN_FUNCTION"

	// ErrCodeUnresolvedVariable indicates a variable without binding or a
	// node without evaluator.
	ErrCodeUnresolvedVariable ErrorCode = "UNRESOLVED_VARIABLE"

	// ErrCodeMalformedAutomaton indicates a violated NFA or DFA invariant.
	ErrCodeMalformedAutomaton ErrorCode = "MALFORMED_AUTOMATON"

	// ErrCodeMalformedQuery indicates a syntax graph of unexpected shape:
	// a missing mandatory child, a bad arity or a declaration cycle.
	ErrCodeMalformedQuery ErrorCode = "MALFORMED_QUERY"

	// ErrCodeFunctionFailed indicates a library function that failed for a
	// reason other than operand types, such as division by zero.
	ErrCodeFunctionFailed ErrorCode = "FUNCTION_FAILED"
)

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Node != syntax.NoNode {
		return fmt.Sprintf("%s: %s (node=%d, kind=%s)", e.Code, e.Message, e.Node, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *EvalError) Unwrap() error { return e.err }

func hasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// CodeOf returns the code of the first EvalError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return "", false
}

// IsTypeMismatch returns true if the error is a type mismatch.
// Uses errors.As to handle wrapped errors.
func IsTypeMismatch(err error) bool { return hasCode(err, ErrCodeTypeMismatch) }

// IsUnknownFunction returns true if the error names an unknown function.
func IsUnknownFunction(err error) bool { return hasCode(err, ErrCodeUnknownFunction) }

// IsUnresolvedVariable returns true if the error is an unresolved variable.
func IsUnresolvedVariable(err error) bool { return hasCode(err, ErrCodeUnresolvedVariable) }

// IsMalformedAutomaton returns true if the error is an automaton fault.
func IsMalformedAutomaton(err error) bool { return hasCode(err, ErrCodeMalformedAutomaton) }

// IsMalformedQuery returns true if the error is a syntax graph fault.
func IsMalformedQuery(err error) bool { return hasCode(err, ErrCodeMalformedQuery) }

func newError(code ErrorCode, n *syntax.Node, format string, args ...any) *EvalError {
	e := &EvalError{Code: code, Message: fmt.Sprintf(format, args...), Node: syntax.NoNode}
	if n != nil {
		e.Node, e.Kind = n.ID, n.Kind
	}
	return e
}

// newTypeMismatch reports an operand of the wrong kind.
func newTypeMismatch(n *syntax.Node, what, want string, got ir.Value) *EvalError {
	e := newError(ErrCodeTypeMismatch, n, "%s must be %s, got %s", what, want, ir.KindName(got))
	e.Details = map[string]string{"want": want, "got": ir.KindName(got)}
	return e
}

func newUnresolvedVariable(n *syntax.Node, name string) *EvalError {
	e := newError(ErrCodeUnresolvedVariable, n, "variable %q is not bound", name)
	e.Details = map[string]string{"variable": name}
	return e
}

func newMalformedQuery(n *syntax.Node, format string, args ...any) *EvalError {
	return newError(ErrCodeMalformedQuery, n, format, args...)
}

// classify turns an error raised below the evaluator into an EvalError
// attributed to n. EvalErrors pass through unchanged so the innermost
// node keeps the blame.
func classify(n *syntax.Node, err error) error {
	if err == nil {
		return nil
	}
	var ee *EvalError
	if errors.As(err, &ee) {
		return err
	}

	var te *ir.TypeError
	var ufe *funlib.UnknownFunctionError
	var e *EvalError
	switch {
	case errors.As(err, &te):
		e = newError(ErrCodeTypeMismatch, n, "%s", te.Error())
		e.Details = map[string]string{"want": te.Want, "got": te.Got}
	case errors.As(err, &ufe):
		e = newError(ErrCodeUnknownFunction, n, "%s", ufe.Error())
		e.Details = map[string]string{"function": ufe.Name}
		if ufe.Suggestion != "" {
			e.Details["suggestion"] = ufe.Suggestion
		}
	case errors.Is(err, automaton.ErrMalformed):
		e = newError(ErrCodeMalformedAutomaton, n, "%s", err.Error())
	default:
		// Context cancellation and host graph faults propagate as they are.
		return err
	}
	e.err = err
	return e
}
