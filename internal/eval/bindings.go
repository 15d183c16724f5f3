package eval

import (
	"maps"
	"slices"

	"github.com/roach88/greql/internal/ir"
)

// Names under which the candidate element of a path restriction is bound
// while its predicate is evaluated.
const (
	ThisVertexName = "thisVertex"
	ThisEdgeName   = "thisEdge"
)

type binding struct {
	value ir.Value
	tick  int64
}

// Bindings is the explicit binding table: a stack of bindings per variable
// name. Inner scopes push, shadowing outer bindings of the same name, and
// pop on exit. Every push or rebinding takes a fresh tick from the clock.
type Bindings struct {
	clock *Clock
	vars  map[string][]binding
}

// NewBindings creates an empty table ticking from clock.
func NewBindings(clock *Clock) *Bindings {
	return &Bindings{clock: clock, vars: make(map[string][]binding)}
}

// Push binds name in a new inner scope.
func (b *Bindings) Push(name string, v ir.Value) {
	b.vars[name] = append(b.vars[name], binding{value: v, tick: b.clock.Next()})
}

// Set rebinds the innermost binding of name, pushing one if name is unbound.
func (b *Bindings) Set(name string, v ir.Value) {
	stack := b.vars[name]
	if len(stack) == 0 {
		b.Push(name, v)
		return
	}
	stack[len(stack)-1] = binding{value: v, tick: b.clock.Next()}
}

// Pop removes the innermost binding of name.
func (b *Bindings) Pop(name string) {
	stack := b.vars[name]
	if len(stack) == 0 {
		return
	}
	if len(stack) == 1 {
		delete(b.vars, name)
		return
	}
	b.vars[name] = stack[:len(stack)-1]
}

// Lookup returns the innermost value bound to name.
func (b *Bindings) Lookup(name string) (ir.Value, bool) {
	stack := b.vars[name]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1].value, true
}

// Tick returns the tick of the innermost binding of name, 0 if unbound.
func (b *Bindings) Tick(name string) int64 {
	stack := b.vars[name]
	if len(stack) == 0 {
		return 0
	}
	return stack[len(stack)-1].tick
}

// Names returns the currently bound names in sorted order.
func (b *Bindings) Names() []string {
	return slices.Sorted(maps.Keys(b.vars))
}
