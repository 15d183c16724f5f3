package eval

import (
	"math"

	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
	"github.com/roach88/greql/internal/syntax"
)

// estimate is the cost oracle's memoized answer for one node and one
// GraphSize.
type estimate struct {
	costs costs.VertexCosts
	card  int64
	sel   float64
}

// Costs returns the cost triple of node id for a graph of the given size.
func (s *Session) Costs(id syntax.NodeID, size costs.GraphSize) (costs.VertexCosts, error) {
	r, err := s.lockedEstimate(id, size)
	return r.costs, err
}

// Cardinality returns the estimated number of values node id yields.
func (s *Session) Cardinality(id syntax.NodeID, size costs.GraphSize) (int64, error) {
	r, err := s.lockedEstimate(id, size)
	return r.card, err
}

// Selectivity returns the estimated fraction of bindings for which node id
// holds. Nodes that do not filter have selectivity 1.
func (s *Session) Selectivity(id syntax.NodeID, size costs.GraphSize) (float64, error) {
	r, err := s.lockedEstimate(id, size)
	return r.sel, err
}

// DefinedCombinations returns the product of the domain cardinalities of
// the variables a Declaration introduces.
func (s *Session) DefinedCombinations(id syntax.NodeID, size costs.GraphSize) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.q.Node(id)
	if n == nil || n.Kind != syntax.Declaration {
		return 0, newMalformedQuery(n, "node %d is not a Declaration", id)
	}
	return newEstimator(s, size).definedCombos(n), nil
}

func (s *Session) lockedEstimate(id syntax.NodeID, size costs.GraphSize) (estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.q.Node(id) == nil {
		return estimate{}, newError(ErrCodeUnresolvedVariable, nil, "node %d has no evaluator", id)
	}
	return newEstimator(s, size).of(id), nil
}

type estimator struct {
	s      *Session
	m      costs.Model
	size   costs.GraphSize
	key    string
	active map[syntax.NodeID]bool
}

func newEstimator(s *Session, size costs.GraphSize) *estimator {
	return &estimator{s: s, m: s.model, size: size, key: size.Key(), active: make(map[syntax.NodeID]bool)}
}

// of computes the estimate of id bottom-up. A node reached again while
// its own estimate is in progress (a domain referring to its variable)
// counts as a unit.
func (x *estimator) of(id syntax.NodeID) estimate {
	e := x.s.evals[id]
	if r, ok := e.est[x.key]; ok {
		return r
	}
	if x.active[id] {
		return estimate{costs: costs.NewVertexCosts(0, 1), card: 1, sel: 1}
	}
	x.active[id] = true
	defer delete(x.active, id)

	seen := make(map[syntax.NodeID]bool, len(e.node.Children))
	var children []costs.VertexCosts
	for _, inc := range e.node.Children {
		if seen[inc.Target] {
			continue
		}
		seen[inc.Target] = true
		children = append(children, x.of(inc.Target).costs)
	}

	own, card, sel := x.local(e.node)
	r := estimate{
		costs: costs.NewVertexCosts(own, x.combos(e.needed), children...),
		card:  max(card, 0),
		sel:   min(max(sel, 0), 1),
	}
	if e.est == nil {
		e.est = make(map[string]estimate)
	}
	e.est[x.key] = r
	return r
}

func (x *estimator) card(id syntax.NodeID) int64 { return x.of(id).card }
func (x *estimator) sel(id syntax.NodeID) float64 { return x.of(id).sel }
func (x *estimator) kids(n *syntax.Node, r syntax.Role) []syntax.NodeID {
	return x.s.q.Children(n.ID, r)
}

func (x *estimator) childCard(n *syntax.Node, r syntax.Role) int64 {
	if id, ok := x.s.q.Child(n.ID, r); ok {
		return x.card(id)
	}
	return 1
}

func (x *estimator) childSel(n *syntax.Node, r syntax.Role) float64 {
	if id, ok := x.s.q.Child(n.ID, r); ok {
		return x.sel(id)
	}
	return 1
}

// combos is the number of binding combinations a node with the given free
// variables is evaluated under: the product of the domain cardinalities of
// the declared ones. Definitions, externals and the path candidates
// thisVertex and thisEdge count once.
func (x *estimator) combos(needed []string) int64 {
	combos := int64(1)
	for _, name := range needed {
		var best int64
		for _, d := range x.s.domains[name] {
			best = max(best, x.card(d))
		}
		if best > 0 {
			combos = costs.SatMul(combos, best)
		}
	}
	return combos
}

func (x *estimator) definedCombos(n *syntax.Node) int64 {
	combos := int64(1)
	for _, sid := range x.kids(n, syntax.RoleSimple) {
		simple := x.s.node(sid)
		vars := len(x.kids(simple, syntax.RoleVariable))
		domain := x.childCard(simple, syntax.RoleDomain)
		for range vars {
			combos = costs.SatMul(combos, domain)
		}
	}
	return combos
}

func (x *estimator) types(n *syntax.Node) *schema.TypeCollection {
	specs := make([]schema.TypeSpec, 0)
	for _, id := range x.kids(n, syntax.RoleTypes) {
		t := x.s.node(id)
		if t.Kind == syntax.TypeID {
			specs = append(specs, schema.TypeSpec{Name: t.Name, Exact: t.Exact, Forbidden: t.Forbidden})
		}
	}
	if len(specs) == 0 {
		return nil
	}
	tc, err := schema.NewTypeCollection(x.s.g.Schema(), specs...)
	if err != nil {
		return nil
	}
	return tc
}

// pathSize counts the path description nodes below id, unrolling literal
// exponents.
func (x *estimator) pathSize(id syntax.NodeID) int64 {
	n := x.s.node(id)
	if n == nil || !n.Kind.IsPathDescription() {
		return 0
	}
	size := int64(1)
	for _, sub := range x.kids(n, syntax.RoleSubPath) {
		size = costs.SatAdd(size, x.pathSize(sub))
	}
	if n.Kind == syntax.ExponentiatedPathDescription {
		if eid, ok := x.s.q.Child(n.ID, syntax.RoleExponent); ok {
			if k, err := ir.AsInt(x.s.node(eid).Literal); err == nil && k > 1 {
				size = costs.SatMul(size, k)
			}
		}
	}
	return size
}

func (x *estimator) searchCost(n *syntax.Node) int64 {
	p := int64(1)
	if id, ok := x.s.q.Child(n.ID, syntax.RolePath); ok {
		p = max(x.pathSize(id), 1)
	}
	reach := math.Max(1, x.m.ReachableFraction*float64(x.size.VertexCount))
	degree := math.Max(1, x.size.AverageDegree())
	search := costs.Clamp(float64(x.m.SearchFactor) * float64(p) * reach * degree)
	return costs.SatAdd(costs.SatMul(x.m.DeterminizationFactor, p), search)
}

// local returns the own cost, cardinality and selectivity of n alone.
func (x *estimator) local(n *syntax.Node) (own, card int64, sel float64) {
	m := x.m
	card, sel = 1, 1

	switch n.Kind {
	case syntax.BoolLiteral:
		own = m.AtomCost
		if b, ok := n.Literal.(ir.Bool); ok && !bool(b) {
			sel = 0
		}
	case syntax.IntLiteral, syntax.DoubleLiteral, syntax.StringLiteral, syntax.NullLiteral,
		syntax.ThisVertex, syntax.ThisEdge, syntax.Identifier, syntax.TypeID, syntax.RoleID:
		own = m.AtomCost

	case syntax.Variable:
		own = m.AtomCost
		if defs := x.s.definitions[n.Name]; len(defs) > 0 {
			card = x.card(defs[0])
		}

	case syntax.EdgeRestriction:
		own = m.AtomCost
		sel = x.size.EdgeFraction(x.types(n))
		for _, p := range x.kids(n, syntax.RolePredicate) {
			sel *= x.sel(p)
		}

	case syntax.FunctionApplication:
		own = m.FunctionCallCost
		info, err := x.s.funcs.Lookup(n.Name)
		args := x.kids(n, syntax.RoleArgument)
		if err != nil || info.CheckArity(len(args)) != nil {
			break
		}
		cards := make([]int64, len(args))
		sels := make([]float64, len(args))
		for i, a := range args {
			cards[i], sels[i] = x.card(a), x.sel(a)
		}
		if info.Cost != nil {
			own = info.EstimateCost(cards)
		}
		card = info.EstimateCardinality(cards)
		sel = info.EstimateSelectivity(sels)

	case syntax.ConditionalExpression:
		own = m.ConditionCost
		card = max(x.childCard(n, syntax.RoleTrue), x.childCard(n, syntax.RoleFalse))
		sel = (x.childSel(n, syntax.RoleTrue) + x.childSel(n, syntax.RoleFalse)) / 2

	case syntax.QuantifiedExpression:
		own = costs.SatMul(m.ConditionCost, x.childCard(n, syntax.RoleDeclaration))
		sel = x.childSel(n, syntax.RoleResult)

	case syntax.SetComprehension, syntax.ListComprehension, syntax.MapComprehension:
		card = x.childCard(n, syntax.RoleDeclaration)
		own = costs.SatMul(m.ComprehensionElementCost, card)

	case syntax.Declaration:
		combos := x.definedCombos(n)
		own = costs.SatMul(m.DeclarationCost, combos)
		f := float64(combos)
		for _, c := range x.kids(n, syntax.RoleConstraint) {
			f *= x.sel(c)
		}
		card = costs.Clamp(f)

	case syntax.SimpleDeclaration:
		own = m.AtomCost
		card = x.childCard(n, syntax.RoleDomain)

	case syntax.LetExpression, syntax.WhereExpression, syntax.Query:
		own = m.AtomCost
		card, sel = x.childCard(n, syntax.RoleResult), x.childSel(n, syntax.RoleResult)

	case syntax.Definition, syntax.RecordElement, syntax.SubgraphRestrictedExpression:
		own = m.AtomCost
		card, sel = x.childCard(n, syntax.RoleExpression), x.childSel(n, syntax.RoleExpression)

	case syntax.ListConstruction, syntax.SetConstruction, syntax.TupleConstruction:
		card = int64(len(x.kids(n, syntax.RoleElement)))
		own = costs.SatMul(m.ConstructionElementCost, max(card, 1))
	case syntax.RecordConstruction:
		own = costs.SatMul(m.ConstructionElementCost, int64(max(len(x.kids(n, syntax.RoleElement)), 1)))

	case syntax.ListRangeConstruction:
		card = m.DefaultRangeCardinality
		first, okF := x.s.q.Child(n.ID, syntax.RoleFirst)
		last, okL := x.s.q.Child(n.ID, syntax.RoleLast)
		if okF && okL {
			lo, errF := ir.AsInt(x.s.node(first).Literal)
			hi, errL := ir.AsInt(x.s.node(last).Literal)
			if errF == nil && errL == nil {
				card = int64(min(rangeLength(lo, hi), MaxRangeLength))
			}
		}
		own = costs.SatMul(m.ConstructionElementCost, max(card, 1))

	case syntax.VertexSetExpression:
		own = costs.SatMul(m.VertexSetCostFactor, max(x.size.VertexCount, 1))
		card = x.size.VertexTypeCount(x.types(n))
	case syntax.EdgeSetExpression:
		own = costs.SatMul(m.EdgeSetCostFactor, max(x.size.EdgeCount, 1))
		card = x.size.EdgeTypeCount(x.types(n))

	case syntax.VertexInducedSubgraph, syntax.EdgeInducedSubgraph, syntax.ExpressionDefinedSubgraph:
		own = costs.SatMul(m.SubgraphCostFactor, max(costs.SatAdd(x.size.VertexCount, x.size.EdgeCount), 1))

	case syntax.ForwardVertexSet, syntax.BackwardVertexSet:
		own = x.searchCost(n)
		card = costs.Clamp(m.ReachableFraction * float64(x.size.VertexCount))
	case syntax.PathExistence:
		own = x.searchCost(n)
		sel = m.PathExistenceSelectivity

	default:
		if n.Kind.IsPathDescription() {
			own = costs.SatMul(m.TransitionCost, int64(max(len(n.Children), 1)))
			if r, ok := x.s.q.Child(n.ID, syntax.RoleRestriction); ok {
				sel = x.sel(r)
			}
		} else {
			own = m.AtomCost
		}
	}
	return own, card, sel
}
