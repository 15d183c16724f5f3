// Package funlib is the function library consulted by function
// applications. Each entry carries an apply function and the estimates the
// cost oracle needs: a cost as a function of argument cardinalities, a
// result cardinality and, for predicates, a selectivity.
package funlib

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
)

// ErrUnknownFunction is wrapped by lookups of unregistered names.
var ErrUnknownFunction = errors.New("unknown function")

// maxSuggestionDistance bounds the edit distance of "did you mean" hints.
const maxSuggestionDistance = 3

// Env is what a function sees of the evaluation: the host graph and the
// active traversal context (nil for the whole graph).
type Env struct {
	Graph graph.Graph
	View  graph.View
}

// Func applies a function to already evaluated arguments.
type Func func(env Env, args []ir.Value) (ir.Value, error)

// FunctionInfo describes one library function.
type FunctionInfo struct {
	Name string
	// MinArgs and MaxArgs bound the arity. MaxArgs < 0 means variadic.
	MinArgs, MaxArgs int
	// Cost estimates one application from the argument cardinalities.
	// Nil means constant cost 1.
	Cost func(argCards []int64) int64
	// Cardinality estimates the result cardinality. Nil means 1.
	Cardinality func(argCards []int64) int64
	// Selectivity estimates the fraction of true results of a predicate
	// from the argument selectivities. Nil means 1.
	Selectivity func(argSels []float64) float64
	Apply       Func
}

// CheckArity returns an error if n arguments do not fit f.
func (f *FunctionInfo) CheckArity(n int) error {
	if n < f.MinArgs || (f.MaxArgs >= 0 && n > f.MaxArgs) {
		if f.MinArgs == f.MaxArgs {
			return fmt.Errorf("%s expects %d arguments, got %d", f.Name, f.MinArgs, n)
		}
		if f.MaxArgs < 0 {
			return fmt.Errorf("%s expects at least %d arguments, got %d", f.Name, f.MinArgs, n)
		}
		return fmt.Errorf("%s expects %d to %d arguments, got %d", f.Name, f.MinArgs, f.MaxArgs, n)
	}
	return nil
}

// EstimateCost returns the estimated cost of one application.
func (f *FunctionInfo) EstimateCost(argCards []int64) int64 {
	if f.Cost == nil {
		return 1
	}
	return max(f.Cost(argCards), 1)
}

// EstimateCardinality returns the estimated result cardinality.
func (f *FunctionInfo) EstimateCardinality(argCards []int64) int64 {
	if f.Cardinality == nil {
		return 1
	}
	return max(f.Cardinality(argCards), 0)
}

// EstimateSelectivity returns the estimated selectivity, clamped to [0,1].
func (f *FunctionInfo) EstimateSelectivity(argSels []float64) float64 {
	if f.Selectivity == nil {
		return 1
	}
	return min(max(f.Selectivity(argSels), 0), 1)
}

// UnknownFunctionError reports a lookup of an unregistered name together
// with the closest registered name, if any is near enough.
type UnknownFunctionError struct {
	Name       string
	Suggestion string
}

// Error implements the error interface.
func (e *UnknownFunctionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown function %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown function %q", e.Name)
}

// Unwrap lets errors.Is match ErrUnknownFunction.
func (e *UnknownFunctionError) Unwrap() error { return ErrUnknownFunction }

// Registry maps function names to their descriptions.
// A Registry is not safe for concurrent registration; lookups are read-only.
type Registry struct {
	funcs map[string]*FunctionInfo
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*FunctionInfo)}
}

// Default returns a new registry holding the built-in functions.
func Default() *Registry {
	r := NewRegistry()
	for _, f := range builtins() {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds f. Names must be unique and Apply must be set.
func (r *Registry) Register(f FunctionInfo) error {
	if f.Name == "" || f.Apply == nil {
		return errors.New("function needs a name and an apply function")
	}
	if _, dup := r.funcs[f.Name]; dup {
		return fmt.Errorf("function %q already registered", f.Name)
	}
	r.funcs[f.Name] = &f
	return nil
}

// Lookup returns the function registered under name. Unknown names yield an
// *UnknownFunctionError.
func (r *Registry) Lookup(name string) (*FunctionInfo, error) {
	if f, ok := r.funcs[name]; ok {
		return f, nil
	}
	return nil, &UnknownFunctionError{Name: name, Suggestion: r.suggest(name)}
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.funcs))
}

func (r *Registry) suggest(name string) string {
	best := ""
	bestDistance := maxSuggestionDistance
	for _, candidate := range r.Names() {
		d := levenshtein.DistanceForStrings([]rune(name), []rune(candidate), levenshtein.DefaultOptions)
		if d < bestDistance {
			best, bestDistance = candidate, d
		}
	}
	return best
}
