// Package automaton builds the finite automata that drive path search.
//
// Path descriptions compile compositionally into NFAs. States live in an
// arena (a slice indexed by StateID) and transitions refer to their target
// by index, so automata have no internal pointers and copy cheaply.
// Every constructor returns a fresh automaton: inputs are copied, never
// mutated, which keeps a sub-automaton safe to reuse in several parents.
//
// Determinize turns an NFA into a DFA by subset construction over the
// static transition labels. Runtime guards stay attached to transitions
// and are evaluated by the search for each visited element.
package automaton

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/schema"
)

// ErrMalformed reports a violated automaton invariant.
var ErrMalformed = errors.New("malformed automaton")

// State holds the outgoing transitions of one automaton state.
type State struct {
	Transitions []Transition
}

// NFA is a nondeterministic finite automaton over graph traversal steps.
type NFA struct {
	States []State
	Start  StateID
	// Finals is sorted and free of duplicates.
	Finals []StateID
}

// Automaton is the search-facing view shared by NFA and DFA.
type Automaton interface {
	StartState() StateID
	IsFinal(s StateID) bool
	Transitions(s StateID) []Transition
	NumStates() int
}

var (
	_ Automaton = (*NFA)(nil)
	_ Automaton = (*DFA)(nil)
)

// StartState implements Automaton.
func (n *NFA) StartState() StateID { return n.Start }

// IsFinal implements Automaton.
func (n *NFA) IsFinal(s StateID) bool {
	_, ok := slices.BinarySearch(n.Finals, s)
	return ok
}

// Transitions implements Automaton.
func (n *NFA) Transitions(s StateID) []Transition { return n.States[s].Transitions }

// NumStates implements Automaton.
func (n *NFA) NumStates() int { return len(n.States) }

// NumTransitions returns the total number of transitions.
func (n *NFA) NumTransitions() int {
	total := 0
	for _, s := range n.States {
		total += len(s.Transitions)
	}
	return total
}

// Validate checks that start, finals and all transition targets are in range.
func (n *NFA) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: nil automaton", ErrMalformed)
	}
	inRange := func(s StateID) bool { return s >= 0 && int(s) < len(n.States) }
	if !inRange(n.Start) {
		return fmt.Errorf("%w: start state %d out of range [0,%d)", ErrMalformed, n.Start, len(n.States))
	}
	for _, f := range n.Finals {
		if !inRange(f) {
			return fmt.Errorf("%w: final state %d out of range", ErrMalformed, f)
		}
	}
	if !slices.IsSorted(n.Finals) || len(slices.Compact(slices.Clone(n.Finals))) != len(n.Finals) {
		return fmt.Errorf("%w: final states not a sorted set", ErrMalformed)
	}
	for i, s := range n.States {
		for _, t := range s.Transitions {
			if t == nil || !inRange(t.Target()) {
				return fmt.Errorf("%w: state %d has a transition out of range", ErrMalformed, i)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of n's state arena.
func (n *NFA) Clone() *NFA {
	out := &NFA{
		States: make([]State, len(n.States)),
		Start:  n.Start,
		Finals: slices.Clone(n.Finals),
	}
	for i, s := range n.States {
		out.States[i].Transitions = slices.Clone(s.Transitions)
	}
	return out
}

func (n *NFA) addState() StateID {
	n.States = append(n.States, State{})
	return StateID(len(n.States) - 1)
}

func (n *NFA) add(from StateID, t Transition) {
	n.States[from].Transitions = append(n.States[from].Transitions, t)
}

// embed copies other's states into n and returns the offset of other's
// state 0 inside n.
func (n *NFA) embed(other *NFA) StateID {
	offset := StateID(len(n.States))
	for _, s := range other.States {
		ts := make([]Transition, len(s.Transitions))
		for i, t := range s.Transitions {
			ts[i] = t.retarget(t.Target() + offset)
		}
		n.States = append(n.States, State{Transitions: ts})
	}
	return offset
}

func (n *NFA) setFinals(finals ...StateID) {
	slices.Sort(finals)
	n.Finals = slices.Compact(finals)
}

func shift(ids []StateID, offset StateID) []StateID {
	out := make([]StateID, len(ids))
	for i, id := range ids {
		out[i] = id + offset
	}
	return out
}

// single builds a two-state automaton with one transition.
func single(t Transition) *NFA {
	n := &NFA{}
	s := n.addState()
	f := n.addState()
	n.add(s, t.retarget(f))
	n.Start = s
	n.setFinals(f)
	return n
}

// Empty accepts exactly the empty path: start and end vertex coincide.
func Empty() *NFA {
	n := &NFA{}
	s := n.addState()
	n.Start = s
	n.setFinals(s)
	return n
}

// Simple accepts one edge matching t. t.To is ignored.
func Simple(t EdgeTransition) *NFA {
	return single(t)
}

// Edges accepts one edge in direction dir whose class passes types.
func Edges(dir graph.Direction, types *schema.TypeCollection) *NFA {
	return single(EdgeTransition{Dir: dir, Types: types})
}

// EdgeExpr accepts one edge in direction dir for which guard holds. The
// guard typically tests membership in the value of an edge expression.
func EdgeExpr(dir graph.Direction, guard EdgeGuard) *NFA {
	return single(EdgeTransition{Dir: dir, Guard: guard})
}

// Aggregation accepts one aggregation edge. With outward set the traversal
// runs from the whole to the part, otherwise from the part to the whole.
func Aggregation(outward bool, types *schema.TypeCollection, guard EdgeGuard) *NFA {
	end := EndFar
	if outward {
		end = EndNear
	}
	return single(EdgeTransition{
		Dir:      graph.Any,
		Types:    types,
		RoleEnd:  EndFar,
		Whole:    true,
		WholeEnd: end,
		Guard:    guard,
	})
}

// VertexCheck accepts the empty path at vertices passing t. t.To is ignored.
func VertexCheck(t VertexTransition) *NFA {
	return single(t)
}

// Sequence accepts the concatenation of parts. No parts yields Empty.
func Sequence(parts ...*NFA) *NFA {
	if len(parts) == 0 {
		return Empty()
	}
	out := parts[0].Clone()
	for _, p := range parts[1:] {
		offset := out.embed(p)
		for _, f := range out.Finals {
			out.add(f, Epsilon{To: p.Start + offset})
		}
		out.setFinals(shift(p.Finals, offset)...)
	}
	return out
}

// Alternative accepts any of parts.
func Alternative(parts ...*NFA) *NFA {
	out := &NFA{}
	s := out.addState()
	out.Start = s
	var finals []StateID
	for _, p := range parts {
		offset := out.embed(p)
		out.add(s, Epsilon{To: p.Start + offset})
		finals = append(finals, shift(p.Finals, offset)...)
	}
	out.setFinals(finals...)
	return out
}

// Iterated accepts one or more (plus) or zero or more repetitions of a.
func Iterated(a *NFA, plus bool) *NFA {
	out := &NFA{}
	s := out.addState()
	offset := out.embed(a)
	start := a.Start + offset
	out.add(s, Epsilon{To: start})
	finals := shift(a.Finals, offset)
	for _, f := range finals {
		out.add(f, Epsilon{To: start})
	}
	if !plus {
		finals = append(finals, s)
	}
	out.Start = s
	out.setFinals(finals...)
	return out
}

// Optional accepts a or the empty path.
func Optional(a *NFA) *NFA {
	out := &NFA{}
	s := out.addState()
	offset := out.embed(a)
	out.add(s, Epsilon{To: a.Start + offset})
	out.Start = s
	out.setFinals(append(shift(a.Finals, offset), s)...)
	return out
}

// MaxExponent bounds the unrolling done by Exponentiated.
const MaxExponent = 1 << 12

// Exponentiated accepts exactly n consecutive repetitions of a.
// n = 0 yields Empty.
func Exponentiated(a *NFA, n int64) (*NFA, error) {
	if n < 0 || n > MaxExponent {
		return nil, fmt.Errorf("%w: exponent %d outside [0,%d]", ErrMalformed, n, MaxExponent)
	}
	parts := make([]*NFA, n)
	for i := range parts {
		parts[i] = a
	}
	return Sequence(parts...), nil
}

// Intermediate accepts a, then a check of the intermediate vertex, then b.
func Intermediate(a *NFA, check VertexTransition, b *NFA) *NFA {
	return Sequence(a, VertexCheck(check), b)
}

// AddStartRestriction prepends a check of the start vertex.
func AddStartRestriction(a *NFA, check VertexTransition) *NFA {
	out := &NFA{}
	s := out.addState()
	offset := out.embed(a)
	out.add(s, check.retarget(a.Start+offset))
	out.Start = s
	out.setFinals(shift(a.Finals, offset)...)
	return out
}

// AddGoalRestriction appends a check of the end vertex.
func AddGoalRestriction(a *NFA, check VertexTransition) *NFA {
	out := a.Clone()
	f := out.addState()
	for _, old := range out.Finals {
		out.add(old, check.retarget(f))
	}
	out.setFinals(f)
	return out
}

// Reverse accepts the reversed paths of a: every transition is inverted,
// edge directions and incidence ends are flipped, and start and final
// states swap roles.
func Reverse(a *NFA) *NFA {
	out := &NFA{States: make([]State, len(a.States))}
	for from, s := range a.States {
		for _, t := range s.Transitions {
			out.add(t.Target(), t.reverse(StateID(from)))
		}
	}
	s := out.addState()
	for _, f := range a.Finals {
		out.add(s, Epsilon{To: f})
	}
	out.Start = s
	out.setFinals(a.Start)
	return out
}
