package automaton

import (
	"fmt"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
)

// StateID indexes a state of an NFA or DFA.
type StateID int

// Transition is a sealed interface over the three transition kinds.
// Only Epsilon, EdgeTransition and VertexTransition implement it.
type Transition interface {
	isTransition() // Sealed - only these types implement it

	// Target returns the state the transition leads to.
	Target() StateID

	// Label returns the static signature used as the determinization
	// alphabet. Epsilon transitions have an empty label. Guards contribute
	// their identity, never their outcome.
	Label() string

	retarget(to StateID) Transition
	reverse(to StateID) Transition
}

// EdgeGuard is a runtime predicate over a traversed edge, re-evaluated for
// every candidate incidence during search. Implementations must depend on
// inc.Edge only, so reversing an automaton keeps guard semantics intact.
type EdgeGuard interface {
	AcceptEdge(inc graph.Incidence) (bool, error)
	// GuardKey identifies the guard inside transition labels.
	GuardKey() string
}

// VertexGuard is a runtime predicate over the current vertex.
type VertexGuard interface {
	AcceptVertex(v ir.Vertex) (bool, error)
	GuardKey() string
}

// End selects an incidence end relative to the traversal: Near is the
// vertex the edge is left from, Far the vertex it leads to.
type End int

const (
	EndFar End = iota
	EndNear
)

func (e End) String() string {
	if e == EndNear {
		return "near"
	}
	return "far"
}

func (e End) flip() End {
	if e == EndNear {
		return EndFar
	}
	return EndNear
}

// Epsilon moves to To without consuming anything.
type Epsilon struct {
	To StateID
}

func (Epsilon) isTransition()                  {}
func (t Epsilon) Target() StateID              { return t.To }
func (Epsilon) Label() string                  { return "" }
func (Epsilon) retarget(to StateID) Transition { return Epsilon{To: to} }
func (Epsilon) reverse(to StateID) Transition  { return Epsilon{To: to} }

// EdgeTransition traverses one edge.
type EdgeTransition struct {
	To  StateID
	Dir graph.Direction
	// Types restricts the edge class. Its role set is checked against the
	// role at RoleEnd.
	Types   *schema.TypeCollection
	RoleEnd End
	// Whole, when set, requires the vertex at WholeEnd to be the whole of an
	// aggregation edge.
	Whole    bool
	WholeEnd End
	Guard    EdgeGuard
}

func (EdgeTransition) isTransition()     {}
func (t EdgeTransition) Target() StateID { return t.To }

// Label implements Transition.
func (t EdgeTransition) Label() string {
	s := fmt.Sprintf("edge %s %s", t.Dir, t.Types)
	if t.Types.HasRoles() {
		s += " role@" + t.RoleEnd.String()
	}
	if t.Whole {
		s += " whole@" + t.WholeEnd.String()
	}
	if t.Guard != nil {
		s += " guard=" + t.Guard.GuardKey()
	}
	return s
}

func (t EdgeTransition) retarget(to StateID) Transition {
	t.To = to
	return t
}

func (t EdgeTransition) reverse(to StateID) Transition {
	t.To = to
	t.Dir = t.Dir.Reverse()
	t.RoleEnd = t.RoleEnd.flip()
	t.WholeEnd = t.WholeEnd.flip()
	return t
}

// Accepts reports whether inc may be traversed.
func (t EdgeTransition) Accepts(g graph.Graph, inc graph.Incidence) (bool, error) {
	if !t.Dir.Matches(inc.Dir) {
		return false, nil
	}
	if !t.Types.IsEmpty() {
		class, err := g.EdgeClass(inc.Edge)
		if err != nil {
			return false, err
		}
		if !t.Types.Accepts(class) {
			return false, nil
		}
		role := inc.ThatRole
		if t.RoleEnd == EndNear {
			role = inc.ThisRole
		}
		if !t.Types.AcceptsRole(role) {
			return false, nil
		}
	}
	if t.Whole {
		agg := inc.ThatAggregation
		if t.WholeEnd == EndNear {
			agg = inc.ThisAggregation
		}
		if agg == schema.AggregationNone {
			return false, nil
		}
	}
	if t.Guard != nil {
		return t.Guard.AcceptEdge(inc)
	}
	return true, nil
}

// VertexTransition checks the current vertex without moving.
type VertexTransition struct {
	To    StateID
	Types *schema.TypeCollection
	Guard VertexGuard
}

func (VertexTransition) isTransition()     {}
func (t VertexTransition) Target() StateID { return t.To }

// Label implements Transition.
func (t VertexTransition) Label() string {
	s := "vertex " + t.Types.String()
	if t.Guard != nil {
		s += " guard=" + t.Guard.GuardKey()
	}
	return s
}

func (t VertexTransition) retarget(to StateID) Transition {
	t.To = to
	return t
}

func (t VertexTransition) reverse(to StateID) Transition {
	t.To = to
	return t
}

// Accepts reports whether the transition may be taken at v.
func (t VertexTransition) Accepts(g graph.Graph, v ir.Vertex) (bool, error) {
	if !t.Types.IsEmpty() {
		class, err := g.VertexClass(v)
		if err != nil {
			return false, err
		}
		if !t.Types.Accepts(class) {
			return false, nil
		}
	}
	if t.Guard != nil {
		return t.Guard.AcceptVertex(v)
	}
	return true, nil
}
