package eval

import (
	"errors"
	"math"
	"strconv"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
	"github.com/roach88/greql/internal/syntax"
)

// Opaque payload labels.
const (
	LabelTypes       = "types"
	LabelRestriction = "restriction"
	LabelSubgraph    = "subgraph"
	LabelNFA         = "nfa"
)

// compute evaluates one node from its children. It is the single dispatch
// point over node kinds.
func (s *Session) compute(c *Context, e *evaluator) (ir.Value, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	n := e.node

	switch n.Kind {
	case syntax.BoolLiteral, syntax.IntLiteral, syntax.DoubleLiteral,
		syntax.StringLiteral, syntax.NullLiteral:
		if n.Literal == nil {
			return ir.Null{}, nil
		}
		return n.Literal, nil

	case syntax.Variable:
		return s.lookup(c, n, n.Name)
	case syntax.ThisVertex:
		return s.lookup(c, n, ThisVertexName)
	case syntax.ThisEdge:
		return s.lookup(c, n, ThisEdgeName)
	case syntax.Identifier, syntax.RoleID:
		return ir.String(n.Name), nil

	case syntax.TypeID:
		tc, err := s.typeCollection(n, []syntax.NodeID{n.ID})
		if err != nil {
			return nil, err
		}
		return ir.Opaque{Label: LabelTypes, Payload: tc}, nil
	case syntax.EdgeRestriction:
		r, err := s.restriction(n)
		if err != nil {
			return nil, err
		}
		return ir.Opaque{Label: LabelRestriction, Payload: r}, nil

	case syntax.FunctionApplication:
		return s.apply(c, n)
	case syntax.ConditionalExpression:
		return s.conditional(c, n)
	case syntax.QuantifiedExpression:
		return s.quantified(c, n)
	case syntax.SetComprehension, syntax.ListComprehension, syntax.MapComprehension:
		return s.comprehension(c, n)
	case syntax.LetExpression, syntax.WhereExpression:
		return s.let(c, n)
	case syntax.Definition, syntax.RecordElement:
		return s.childValue(c, n, syntax.RoleExpression)

	case syntax.ListConstruction:
		vals, err := s.childValues(c, n, syntax.RoleElement)
		if err != nil {
			return nil, err
		}
		return ir.List(vals), nil
	case syntax.SetConstruction:
		vals, err := s.childValues(c, n, syntax.RoleElement)
		if err != nil {
			return nil, err
		}
		return ir.NewSet(vals...), nil
	case syntax.TupleConstruction:
		vals, err := s.childValues(c, n, syntax.RoleElement)
		if err != nil {
			return nil, err
		}
		return ir.Tuple(vals), nil
	case syntax.RecordConstruction:
		return s.record(c, n)
	case syntax.ListRangeConstruction:
		return s.listRange(c, n)

	case syntax.VertexSetExpression:
		return s.vertexSet(c, n)
	case syntax.EdgeSetExpression:
		return s.edgeSet(c, n)

	case syntax.VertexInducedSubgraph, syntax.EdgeInducedSubgraph, syntax.ExpressionDefinedSubgraph:
		m, err := s.subgraph(c, n)
		if err != nil {
			return nil, err
		}
		return ir.Opaque{Label: LabelSubgraph, Payload: m}, nil
	case syntax.SubgraphRestrictedExpression:
		return s.restricted(c, n)

	case syntax.SimpleDeclaration:
		return s.childValue(c, n, syntax.RoleDomain)
	case syntax.Declaration:
		return s.declarationValue(c, n)
	case syntax.Query:
		return s.query(c, n)

	case syntax.ForwardVertexSet, syntax.BackwardVertexSet, syntax.PathExistence:
		return s.pathExpression(c, e)
	}

	if n.Kind.IsPathDescription() {
		nfa, err := s.pathDescription(c, n)
		if err != nil {
			return nil, err
		}
		return ir.Opaque{Label: LabelNFA, Payload: nfa}, nil
	}
	return nil, newMalformedQuery(n, "no evaluation rule for %s", n.Kind)
}

func (s *Session) lookup(c *Context, n *syntax.Node, name string) (ir.Value, error) {
	v, ok := c.bindings.Lookup(name)
	if !ok {
		return nil, newUnresolvedVariable(n, name)
	}
	return v, nil
}

// typeCollection combines the TypeId nodes ids into one collection. No ids
// yields nil, which accepts every class.
func (s *Session) typeCollection(n *syntax.Node, ids []syntax.NodeID) (*schema.TypeCollection, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	specs := make([]schema.TypeSpec, 0, len(ids))
	for _, id := range ids {
		t := s.node(id)
		if t.Kind != syntax.TypeID {
			return nil, newMalformedQuery(n, "type restriction child %s is not a TypeId", t.Label())
		}
		specs = append(specs, schema.TypeSpec{Name: t.Name, Exact: t.Exact, Forbidden: t.Forbidden})
	}
	tc, err := schema.NewTypeCollection(s.g.Schema(), specs...)
	if err != nil {
		e := newMalformedQuery(n, "%v", err)
		e.err = err
		return nil, e
	}
	return tc, nil
}

func (s *Session) apply(c *Context, n *syntax.Node) (ir.Value, error) {
	info, err := s.funcs.Lookup(n.Name)
	if err != nil {
		return nil, classify(n, err)
	}
	args, err := s.childValues(c, n, syntax.RoleArgument)
	if err != nil {
		return nil, err
	}
	if err := info.CheckArity(len(args)); err != nil {
		return nil, newMalformedQuery(n, "%v", err)
	}
	v, err := info.Apply(s.env(c), args)
	if err != nil {
		var te *ir.TypeError
		var ee *EvalError
		if errors.As(err, &te) || errors.As(err, &ee) {
			return nil, classify(n, err)
		}
		fe := newError(ErrCodeFunctionFailed, n, "%s: %v", n.Name, err)
		fe.Details = map[string]string{"function": n.Name}
		fe.err = err
		return nil, fe
	}
	return v, nil
}

func (s *Session) conditional(c *Context, n *syntax.Node) (ir.Value, error) {
	cond, err := s.childValue(c, n, syntax.RoleCondition)
	if err != nil {
		return nil, err
	}
	switch b := cond.(type) {
	case ir.Bool:
		if b {
			return s.childValue(c, n, syntax.RoleTrue)
		}
		return s.childValue(c, n, syntax.RoleFalse)
	case nil, ir.Null:
		if _, ok := s.q.Child(n.ID, syntax.RoleNull); ok {
			return s.childValue(c, n, syntax.RoleNull)
		}
		return ir.Null{}, nil
	}
	return nil, newTypeMismatch(n, "condition", "Bool", cond)
}

// truth reads a predicate result: true, false or unknown (Null).
func truth(n *syntax.Node, what string, v ir.Value) (val, known bool, err error) {
	switch b := v.(type) {
	case ir.Bool:
		return bool(b), true, nil
	case nil, ir.Null:
		return false, false, nil
	}
	return false, false, newTypeMismatch(n, what, "Bool", v)
}

func (s *Session) quantified(c *Context, n *syntax.Node) (ir.Value, error) {
	declID, err := s.child(n, syntax.RoleDeclaration)
	if err != nil {
		return nil, err
	}
	predID, err := s.child(n, syntax.RoleResult)
	if err != nil {
		return nil, err
	}
	layer, err := s.newDeclLayer(declID)
	if err != nil {
		return nil, err
	}
	defer layer.Close()

	matches, unknown := 0, false
	for {
		ok, err := layer.Iterate(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		v, err := s.value(c, predID)
		if err != nil {
			return nil, err
		}
		b, known, err := truth(n, "quantified predicate", v)
		if err != nil {
			return nil, err
		}
		if !known {
			unknown = true
			continue
		}
		switch n.Quantifier {
		case syntax.ForAll:
			if !b {
				return ir.Bool(false), nil
			}
		case syntax.Exists:
			if b {
				return ir.Bool(true), nil
			}
		case syntax.ExistsExactlyOne:
			if b {
				matches++
				if matches > 1 {
					return ir.Bool(false), nil
				}
			}
		}
	}

	if unknown {
		return ir.Null{}, nil
	}
	switch n.Quantifier {
	case syntax.ForAll:
		return ir.Bool(true), nil
	case syntax.Exists:
		return ir.Bool(false), nil
	}
	return ir.Bool(matches == 1), nil
}

func (s *Session) comprehension(c *Context, n *syntax.Node) (ir.Value, error) {
	declID, err := s.child(n, syntax.RoleDeclaration)
	if err != nil {
		return nil, err
	}
	layer, err := s.newDeclLayer(declID)
	if err != nil {
		return nil, err
	}
	defer layer.Close()

	var (
		list ir.List
		set  *ir.SetBuilder
		m    *ir.MapBuilder
	)
	switch n.Kind {
	case syntax.SetComprehension:
		set = ir.NewSetBuilder(0)
	case syntax.MapComprehension:
		m = ir.NewMapBuilder()
	default:
		list = ir.List{}
	}

	for {
		ok, err := layer.Iterate(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if m != nil {
			k, err := s.childValue(c, n, syntax.RoleKey)
			if err != nil {
				return nil, err
			}
			v, err := s.childValue(c, n, syntax.RoleValue)
			if err != nil {
				return nil, err
			}
			m.Put(k, v)
			continue
		}
		v, err := s.childValue(c, n, syntax.RoleResult)
		if err != nil {
			return nil, err
		}
		if set != nil {
			set.Add(v)
		} else {
			list = append(list, v)
		}
	}

	switch {
	case set != nil:
		return set.Build(), nil
	case m != nil:
		return m.Build(), nil
	}
	return list, nil
}

// let evaluates definitions in order, each seeing the earlier ones, and
// then the result. Bindings are popped on every return path.
func (s *Session) let(c *Context, n *syntax.Node) (ir.Value, error) {
	var pushed []string
	defer func() {
		for i := len(pushed) - 1; i >= 0; i-- {
			c.bindings.Pop(pushed[i])
		}
	}()
	for _, id := range s.q.Children(n.ID, syntax.RoleDefinition) {
		def := s.node(id)
		if def.Kind != syntax.Definition {
			return nil, newMalformedQuery(n, "definition child %s is not a Definition", def.Label())
		}
		v, err := s.value(c, id)
		if err != nil {
			return nil, err
		}
		c.bindings.Push(def.Name, v)
		pushed = append(pushed, def.Name)
	}
	return s.childValue(c, n, syntax.RoleResult)
}

func (s *Session) record(c *Context, n *syntax.Node) (ir.Value, error) {
	r := make(ir.Record)
	for _, id := range s.q.Children(n.ID, syntax.RoleElement) {
		field := s.node(id)
		if field.Kind != syntax.RecordElement {
			return nil, newMalformedQuery(n, "record child %s is not a RecordElement", field.Label())
		}
		v, err := s.value(c, id)
		if err != nil {
			return nil, err
		}
		r[field.Name] = v
	}
	return r, nil
}

// MaxRangeLength bounds the number of elements of a list range.
const MaxRangeLength = 1 << 20

func (s *Session) listRange(c *Context, n *syntax.Node) (ir.Value, error) {
	first, err := s.childValue(c, n, syntax.RoleFirst)
	if err != nil {
		return nil, err
	}
	last, err := s.childValue(c, n, syntax.RoleLast)
	if err != nil {
		return nil, err
	}
	if ir.IsNull(first) || ir.IsNull(last) {
		return ir.List{}, nil
	}
	lo, err := ir.AsInt(first)
	if err != nil {
		return nil, newTypeMismatch(n, "range start", "Int", first)
	}
	hi, err := ir.AsInt(last)
	if err != nil {
		return nil, newTypeMismatch(n, "range end", "Int", last)
	}
	length := rangeLength(lo, hi)
	if length > MaxRangeLength {
		e := newError(ErrCodeTypeMismatch, n, "range %d..%d exceeds %d elements", lo, hi, MaxRangeLength)
		e.Details = map[string]string{"limit": strconv.Itoa(MaxRangeLength)}
		return nil, e
	}
	out := make(ir.List, 0, length)
	for k := range length {
		out = append(out, ir.Int(lo+int64(k)))
	}
	return out, nil
}

// rangeLength returns the number of integers in lo..hi, saturating at
// math.MaxUint64. The unsigned difference is exact for any lo <= hi.
func rangeLength(lo, hi int64) uint64 {
	if hi < lo {
		return 0
	}
	span := uint64(hi) - uint64(lo)
	if span == math.MaxUint64 {
		return span
	}
	return span + 1
}

func (s *Session) vertexSet(c *Context, n *syntax.Node) (ir.Value, error) {
	tc, err := s.typeCollection(n, s.q.Children(n.ID, syntax.RoleTypes))
	if err != nil {
		return nil, err
	}
	b := ir.NewSetBuilder(0)
	for v := range graph.VerticesIn(s.g, c.View()) {
		if tc != nil {
			class, err := s.g.VertexClass(v)
			if err != nil {
				return nil, err
			}
			if !tc.Accepts(class) {
				continue
			}
		}
		b.Add(v)
	}
	return b.Build(), nil
}

func (s *Session) edgeSet(c *Context, n *syntax.Node) (ir.Value, error) {
	tc, err := s.typeCollection(n, s.q.Children(n.ID, syntax.RoleTypes))
	if err != nil {
		return nil, err
	}
	b := ir.NewSetBuilder(0)
	for e := range graph.EdgesIn(s.g, c.View()) {
		if tc != nil {
			class, err := s.g.EdgeClass(e)
			if err != nil {
				return nil, err
			}
			if !tc.Accepts(class) {
				continue
			}
		}
		b.Add(e)
	}
	return b.Build(), nil
}

// subgraph materializes a subgraph definition as a marker. Only elements
// visible in the active context can be marked, so nested restrictions
// narrow monotonically.
func (s *Session) subgraph(c *Context, n *syntax.Node) (*graph.Marker, error) {
	m := graph.NewMarker()
	view := c.View()

	switch n.Kind {
	case syntax.VertexInducedSubgraph:
		tc, err := s.typeCollection(n, s.q.Children(n.ID, syntax.RoleTypes))
		if err != nil {
			return nil, err
		}
		for v := range graph.VerticesIn(s.g, view) {
			class, err := s.g.VertexClass(v)
			if err != nil {
				return nil, err
			}
			if tc.Accepts(class) {
				m.MarkVertex(v)
			}
		}
		for e := range graph.EdgesIn(s.g, view) {
			alpha, omega, err := s.ends(e)
			if err != nil {
				return nil, err
			}
			if m.ContainsVertex(alpha) && m.ContainsVertex(omega) {
				m.MarkEdge(e)
			}
		}

	case syntax.EdgeInducedSubgraph:
		tc, err := s.typeCollection(n, s.q.Children(n.ID, syntax.RoleTypes))
		if err != nil {
			return nil, err
		}
		for e := range graph.EdgesIn(s.g, view) {
			class, err := s.g.EdgeClass(e)
			if err != nil {
				return nil, err
			}
			if !tc.Accepts(class) {
				continue
			}
			alpha, omega, err := s.ends(e)
			if err != nil {
				return nil, err
			}
			m.MarkEdge(e)
			m.MarkVertex(alpha)
			m.MarkVertex(omega)
		}

	case syntax.ExpressionDefinedSubgraph:
		v, err := s.childValue(c, n, syntax.RoleExpression)
		if err != nil {
			return nil, err
		}
		elems := []ir.Value{v}
		if ir.IsCollection(v) || ir.IsNull(v) {
			elems, _ = ir.Elements(v)
		}
		for _, el := range elems {
			switch x := el.(type) {
			case ir.Vertex:
				if graph.VisibleVertex(s.g, view, x) {
					m.MarkVertex(x)
				}
			case ir.Edge:
				if graph.VisibleEdge(s.g, view, x) {
					m.MarkEdge(x)
				}
			default:
				return nil, newTypeMismatch(n, "subgraph element", "Vertex or Edge", el)
			}
		}
	}
	return m, nil
}

func (s *Session) ends(e ir.Edge) (ir.Vertex, ir.Vertex, error) {
	alpha, err := s.g.Alpha(e)
	if err != nil {
		return 0, 0, err
	}
	omega, err := s.g.Omega(e)
	if err != nil {
		return 0, 0, err
	}
	return alpha, omega, nil
}

// restricted evaluates its expression with the subgraph as traversal
// context. The previous context is restored even when evaluation fails.
func (s *Session) restricted(c *Context, n *syntax.Node) (ir.Value, error) {
	sub, err := s.childValue(c, n, syntax.RoleSubgraph)
	if err != nil {
		return nil, err
	}
	op, ok := sub.(ir.Opaque)
	m, isMarker := op.Payload.(*graph.Marker)
	if !ok || !isMarker {
		return nil, newTypeMismatch(n, "subgraph", "subgraph definition", sub)
	}
	defer c.PushView(m)()
	return s.childValue(c, n, syntax.RoleExpression)
}

func (s *Session) query(c *Context, n *syntax.Node) (ir.Value, error) {
	for _, id := range s.q.Children(n.ID, syntax.RoleBound) {
		v := s.node(id)
		if _, ok := c.bindings.Lookup(v.Name); !ok {
			return nil, newUnresolvedVariable(v, v.Name)
		}
	}
	return s.childValue(c, n, syntax.RoleResult)
}
