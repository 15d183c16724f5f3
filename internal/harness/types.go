package harness

import (
	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/eval"
	"github.com/roach88/greql/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if the expectation and all assertions hold.
	Pass bool

	// Value is the query result; nil if evaluation failed.
	Value ir.Value

	// Err is the evaluation error, if any.
	Err error

	// Plan is the cost oracle's estimate tree for the fixture graph.
	Plan *eval.Plan

	// Size is the fixture graph's statistics.
	Size costs.GraphSize

	// Errors contains failed expectation and assertion messages.
	// Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// ErrorCode returns the code of Err, or "" when evaluation succeeded.
func (r *Result) ErrorCode() string {
	if r.Err == nil {
		return ""
	}
	if code, ok := eval.CodeOf(r.Err); ok {
		return string(code)
	}
	return "ERROR"
}
