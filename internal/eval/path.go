package eval

import (
	"fmt"

	"github.com/roach88/greql/internal/automaton"
	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
	"github.com/roach88/greql/internal/search"
	"github.com/roach88/greql/internal/syntax"
)

// Restriction is the value of an EdgeRestriction: a type and role filter
// plus optional predicates over thisEdge.
type Restriction struct {
	Types      *schema.TypeCollection
	Predicates []syntax.NodeID
}

// CanonicalKey identifies a restriction inside an ir.Opaque.
func (r *Restriction) CanonicalKey() string {
	return fmt.Sprintf("restriction(%s,%v)", r.Types.CanonicalKey(), r.Predicates)
}

func (s *Session) restriction(n *syntax.Node) (*Restriction, error) {
	tc, err := s.typeCollection(n, s.q.Children(n.ID, syntax.RoleTypes))
	if err != nil {
		return nil, err
	}
	var roles []string
	for _, id := range s.q.Children(n.ID, syntax.RoleRoles) {
		r := s.node(id)
		if r.Kind != syntax.RoleID {
			return nil, newMalformedQuery(n, "role restriction child %s is not a RoleId", r.Label())
		}
		roles = append(roles, r.Name)
	}
	if len(roles) > 0 {
		tc = tc.WithRoles(roles...)
	}
	return &Restriction{Types: tc, Predicates: s.q.Children(n.ID, syntax.RolePredicate)}, nil
}

// restrictionOf evaluates the optional restriction child of a path
// description. A missing child restricts nothing.
func (s *Session) restrictionOf(c *Context, n *syntax.Node) (*Restriction, error) {
	id, ok := s.q.Child(n.ID, syntax.RoleRestriction)
	if !ok {
		return &Restriction{}, nil
	}
	v, err := s.value(c, id)
	if err != nil {
		return nil, err
	}
	op, _ := v.(ir.Opaque)
	r, ok := op.Payload.(*Restriction)
	if !ok {
		return nil, newTypeMismatch(n, "restriction", "edge restriction", v)
	}
	return r, nil
}

// predicateGuard holds when every predicate evaluates to true with the
// candidate element bound to name. Null counts as false.
type predicateGuard struct {
	s     *Session
	owner *syntax.Node
	preds []syntax.NodeID
	name  string
	key   string
}

func (g *predicateGuard) GuardKey() string { return g.key }

func (g *predicateGuard) AcceptEdge(inc graph.Incidence) (bool, error) {
	return g.test(inc.Edge)
}

func (g *predicateGuard) AcceptVertex(v ir.Vertex) (bool, error) {
	return g.test(v)
}

func (g *predicateGuard) test(elem ir.Value) (bool, error) {
	c := g.s.cur
	if c == nil {
		return false, newError(ErrCodeMalformedAutomaton, g.owner, "guard %s evaluated outside an evaluation", g.key)
	}
	c.bindings.Push(g.name, elem)
	defer c.bindings.Pop(g.name)

	for _, id := range g.preds {
		v, err := g.s.value(c, id)
		if err != nil {
			return false, err
		}
		b, known, err := truth(g.owner, "path restriction predicate", v)
		if err != nil {
			return false, err
		}
		if !known || !b {
			return false, nil
		}
	}
	return true, nil
}

// memberGuard holds when the candidate element equals the value of expr or
// is a member of it.
type memberGuard struct {
	s     *Session
	owner *syntax.Node
	expr  syntax.NodeID
}

func (g *memberGuard) GuardKey() string { return fmt.Sprintf("n%d", g.expr) }

func (g *memberGuard) AcceptEdge(inc graph.Incidence) (bool, error) {
	return g.test(inc.Edge)
}

func (g *memberGuard) AcceptVertex(v ir.Vertex) (bool, error) {
	return g.test(v)
}

func (g *memberGuard) test(elem ir.Value) (bool, error) {
	c := g.s.cur
	if c == nil {
		return false, newError(ErrCodeMalformedAutomaton, g.owner, "guard %s evaluated outside an evaluation", g.GuardKey())
	}
	v, err := g.s.value(c, g.expr)
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case nil, ir.Null:
		return false, nil
	case *ir.Set:
		return x.Contains(elem), nil
	case ir.Vertex, ir.Edge:
		return ir.Equal(x, elem), nil
	}
	elems, err := ir.Elements(v)
	if err != nil {
		return false, newTypeMismatch(g.owner, "path element", "element or collection", v)
	}
	for _, el := range elems {
		if ir.Equal(el, elem) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) subNFAs(c *Context, n *syntax.Node) ([]*automaton.NFA, error) {
	ids := s.q.Children(n.ID, syntax.RoleSubPath)
	out := make([]*automaton.NFA, len(ids))
	for i, id := range ids {
		nfa, err := s.nfaValue(c, n, id)
		if err != nil {
			return nil, err
		}
		out[i] = nfa
	}
	return out, nil
}

func (s *Session) nfaValue(c *Context, n *syntax.Node, id syntax.NodeID) (*automaton.NFA, error) {
	v, err := s.value(c, id)
	if err != nil {
		return nil, err
	}
	op, _ := v.(ir.Opaque)
	nfa, ok := op.Payload.(*automaton.NFA)
	if !ok {
		return nil, newTypeMismatch(n, "path", "path description", v)
	}
	return nfa, nil
}

func (s *Session) oneSub(c *Context, n *syntax.Node) (*automaton.NFA, error) {
	subs, err := s.subNFAs(c, n)
	if err != nil {
		return nil, err
	}
	if len(subs) != 1 {
		return nil, newMalformedQuery(n, "%s requires exactly one sub path, got %d", n.Kind, len(subs))
	}
	return subs[0], nil
}

// pathDescription compiles a path description node into an NFA. Children
// are compiled by their own evaluators; every construction copies them.
func (s *Session) pathDescription(c *Context, n *syntax.Node) (*automaton.NFA, error) {
	var (
		nfa *automaton.NFA
		err error
	)
	switch n.Kind {
	case syntax.SimplePathDescription, syntax.AggregationPathDescription:
		r, rerr := s.restrictionOf(c, n)
		if rerr != nil {
			return nil, rerr
		}
		var guard automaton.EdgeGuard
		if len(r.Predicates) > 0 {
			guard = &predicateGuard{s: s, owner: n, preds: r.Predicates, name: ThisEdgeName, key: fmt.Sprintf("n%d", n.ID)}
		}
		if n.Kind == syntax.AggregationPathDescription {
			nfa = automaton.Aggregation(n.Outward, r.Types, guard)
		} else {
			nfa = automaton.Simple(automaton.EdgeTransition{Dir: n.Dir, Types: r.Types, RoleEnd: automaton.EndFar, Guard: guard})
		}

	case syntax.EdgePathDescription:
		id, cerr := s.child(n, syntax.RoleEdge)
		if cerr != nil {
			return nil, cerr
		}
		nfa = automaton.EdgeExpr(n.Dir, &memberGuard{s: s, owner: n, expr: id})

	case syntax.SequentialPathDescription, syntax.AlternativePathDescription:
		subs, serr := s.subNFAs(c, n)
		if serr != nil {
			return nil, serr
		}
		if n.Kind == syntax.SequentialPathDescription {
			nfa = automaton.Sequence(subs...)
		} else {
			nfa = automaton.Alternative(subs...)
		}

	case syntax.IteratedPathDescription, syntax.OptionalPathDescription, syntax.TransposedPathDescription:
		sub, serr := s.oneSub(c, n)
		if serr != nil {
			return nil, serr
		}
		switch n.Kind {
		case syntax.IteratedPathDescription:
			nfa = automaton.Iterated(sub, n.Plus)
		case syntax.OptionalPathDescription:
			nfa = automaton.Optional(sub)
		default:
			nfa = automaton.Reverse(sub)
		}

	case syntax.ExponentiatedPathDescription:
		nfa, err = s.exponentiated(c, n)

	case syntax.IntermediateVertexPathDescription:
		subs, serr := s.subNFAs(c, n)
		if serr != nil {
			return nil, serr
		}
		if len(subs) != 2 {
			return nil, newMalformedQuery(n, "%s requires two sub paths, got %d", n.Kind, len(subs))
		}
		id, cerr := s.child(n, syntax.RoleIntermediate)
		if cerr != nil {
			return nil, cerr
		}
		check := automaton.VertexTransition{Guard: &memberGuard{s: s, owner: n, expr: id}}
		nfa = automaton.Intermediate(subs[0], check, subs[1])

	default:
		return nil, newMalformedQuery(n, "%s is not a path description", n.Kind)
	}
	if err != nil {
		return nil, err
	}
	return s.restrictEnds(n, nfa)
}

func (s *Session) exponentiated(c *Context, n *syntax.Node) (*automaton.NFA, error) {
	sub, err := s.oneSub(c, n)
	if err != nil {
		return nil, err
	}
	v, err := s.childValue(c, n, syntax.RoleExponent)
	if err != nil {
		return nil, err
	}
	// Integral doubles are rejected too; exponents are Int literals or
	// Int-valued expressions.
	i, ok := v.(ir.Int)
	if !ok {
		return nil, newTypeMismatch(n, "exponent", "Int", v)
	}
	k := int64(i)
	if k < 0 || k > automaton.MaxExponent {
		e := newError(ErrCodeTypeMismatch, n, "exponent %d outside [0,%d]", k, automaton.MaxExponent)
		e.Details = map[string]string{"want": "Int", "got": "Int"}
		return nil, e
	}
	return automaton.Exponentiated(sub, k)
}

// restrictEnds applies the start and goal restrictions attached to n.
// TypeId children restrict the vertex class; any other child is a
// predicate over thisVertex.
func (s *Session) restrictEnds(n *syntax.Node, nfa *automaton.NFA) (*automaton.NFA, error) {
	if ids := s.q.Children(n.ID, syntax.RoleStartRestriction); len(ids) > 0 {
		check, err := s.vertexCheck(n, ids, "start")
		if err != nil {
			return nil, err
		}
		nfa = automaton.AddStartRestriction(nfa, check)
	}
	if ids := s.q.Children(n.ID, syntax.RoleGoalRestriction); len(ids) > 0 {
		check, err := s.vertexCheck(n, ids, "goal")
		if err != nil {
			return nil, err
		}
		nfa = automaton.AddGoalRestriction(nfa, check)
	}
	return nfa, nil
}

func (s *Session) vertexCheck(n *syntax.Node, ids []syntax.NodeID, end string) (automaton.VertexTransition, error) {
	var types, preds []syntax.NodeID
	for _, id := range ids {
		if s.node(id).Kind == syntax.TypeID {
			types = append(types, id)
		} else {
			preds = append(preds, id)
		}
	}
	tc, err := s.typeCollection(n, types)
	if err != nil {
		return automaton.VertexTransition{}, err
	}
	check := automaton.VertexTransition{Types: tc}
	if len(preds) > 0 {
		check.Guard = &predicateGuard{
			s:     s,
			owner: n,
			preds: preds,
			name:  ThisVertexName,
			key:   fmt.Sprintf("n%d.%s", n.ID, end),
		}
	}
	return check, nil
}

// dfaCache holds the determinized automata of one path expression for the
// NFA they were built from.
type dfaCache struct {
	nfa      *automaton.NFA
	forward  *automaton.DFA
	backward *automaton.DFA
}

func (s *Session) dfa(e *evaluator, nfa *automaton.NFA, reversed bool) (*automaton.DFA, error) {
	if e.dfas.nfa != nfa {
		e.dfas = dfaCache{nfa: nfa}
	}
	slot := &e.dfas.forward
	if reversed {
		slot = &e.dfas.backward
	}
	if *slot != nil {
		return *slot, nil
	}
	src := nfa
	if reversed {
		src = automaton.Reverse(nfa)
	}
	d, err := automaton.Determinize(src)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("automaton determinized",
		"session", s.id,
		"node", int(e.node.ID),
		"reversed", reversed,
		"nfa_states", src.NumStates(),
		"dfa_states", d.NumStates(),
		"dfa_transitions", d.NumTransitions(),
	)
	*slot = d
	return d, nil
}

// elementOperand reads the start or target of a path expression, a vertex
// or an edge. Null yields ok=false; anything else is a type mismatch.
func elementOperand(n *syntax.Node, what string, v ir.Value) (ir.Value, bool, error) {
	switch v.(type) {
	case ir.Vertex, ir.Edge:
		return v, true, nil
	case nil, ir.Null:
		return nil, false, nil
	}
	return nil, false, newTypeMismatch(n, what, "Vertex or Edge", v)
}

func (s *Session) pathExpression(c *Context, e *evaluator) (ir.Value, error) {
	n := e.node
	pathID, err := s.child(n, syntax.RolePath)
	if err != nil {
		return nil, err
	}
	nfa, err := s.nfaValue(c, n, pathID)
	if err != nil {
		return nil, err
	}

	switch n.Kind {
	case syntax.ForwardVertexSet:
		sv, err := s.childValue(c, n, syntax.RoleStart)
		if err != nil {
			return nil, err
		}
		start, ok, err := elementOperand(n, "start", sv)
		if err != nil {
			return nil, err
		}
		if !ok {
			return ir.EmptySet(), nil
		}
		d, err := s.dfa(e, nfa, false)
		if err != nil {
			return nil, err
		}
		set, err := search.Forward(c.ctx, s.g, c.View(), d, start)
		if err != nil {
			return nil, err
		}
		return set, nil

	case syntax.BackwardVertexSet:
		tv, err := s.childValue(c, n, syntax.RoleTarget)
		if err != nil {
			return nil, err
		}
		target, ok, err := elementOperand(n, "target", tv)
		if err != nil {
			return nil, err
		}
		if !ok {
			return ir.EmptySet(), nil
		}
		d, err := s.dfa(e, nfa, true)
		if err != nil {
			return nil, err
		}
		set, err := search.Backward(c.ctx, s.g, c.View(), d, target)
		if err != nil {
			return nil, err
		}
		return set, nil
	}

	sv, err := s.childValue(c, n, syntax.RoleStart)
	if err != nil {
		return nil, err
	}
	tv, err := s.childValue(c, n, syntax.RoleTarget)
	if err != nil {
		return nil, err
	}
	start, okStart, err := elementOperand(n, "start", sv)
	if err != nil {
		return nil, err
	}
	target, okTarget, err := elementOperand(n, "target", tv)
	if err != nil {
		return nil, err
	}
	if !okStart || !okTarget {
		return ir.Bool(false), nil
	}
	d, err := s.dfa(e, nfa, false)
	if err != nil {
		return nil, err
	}
	found, err := search.Exists(c.ctx, s.g, c.View(), d, start, target)
	if err != nil {
		return nil, err
	}
	return ir.Bool(found), nil
}
