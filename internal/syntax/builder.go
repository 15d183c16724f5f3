package syntax

import (
	"fmt"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
)

// Builder assembles a Graph. Node ids are assigned in creation order.
// Helper methods create a node, link the given children and return its id.
type Builder struct {
	nodes []*Node
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddNode appends n, assigning its ID.
func (b *Builder) AddNode(n Node) NodeID {
	n.ID = NodeID(len(b.nodes))
	n.Children = append([]Incidence(nil), n.Children...)
	b.nodes = append(b.nodes, &n)
	return n.ID
}

// Add appends a node of the given kind with no payload.
func (b *Builder) Add(kind Kind) NodeID {
	return b.AddNode(Node{Kind: kind})
}

// Link appends child to parent's incidences in role.
func (b *Builder) Link(parent NodeID, role Role, children ...NodeID) NodeID {
	n := b.nodes[parent]
	for _, c := range children {
		n.Children = append(n.Children, Incidence{Role: role, Target: c})
	}
	return parent
}

// Node gives access to a node under construction.
func (b *Builder) Node(id NodeID) *Node {
	return b.nodes[id]
}

// Build freezes the builder into a Graph rooted at root.
func (b *Builder) Build(root NodeID) (*Graph, error) {
	nodes := make([]*Node, len(b.nodes))
	for i, n := range b.nodes {
		cp := *n
		cp.Children = append([]Incidence(nil), n.Children...)
		nodes[i] = &cp
	}
	return newGraph(nodes, root)
}

// MustBuild is Build for tests and fixtures; it panics on error.
func (b *Builder) MustBuild(root NodeID) *Graph {
	g, err := b.Build(root)
	if err != nil {
		panic(err)
	}
	return g
}

func (b *Builder) withChildren(kind Kind, role Role, children ...NodeID) NodeID {
	return b.Link(b.Add(kind), role, children...)
}

// Lit creates a literal node of the kind matching v.
func (b *Builder) Lit(v ir.Value) NodeID {
	kind := NullLiteral
	switch v.(type) {
	case ir.Bool:
		kind = BoolLiteral
	case ir.Int:
		kind = IntLiteral
	case ir.Double:
		kind = DoubleLiteral
	case ir.String:
		kind = StringLiteral
	case nil, ir.Null:
		v = ir.Null{}
	default:
		panic(fmt.Sprintf("syntax: %s cannot be a literal", ir.KindName(v)))
	}
	return b.AddNode(Node{Kind: kind, Literal: v})
}

// Var creates a Variable node.
func (b *Builder) Var(name string) NodeID {
	return b.AddNode(Node{Kind: Variable, Name: name})
}

// ThisVertexNode creates a ThisVertex node.
func (b *Builder) ThisVertexNode() NodeID { return b.Add(ThisVertex) }

// ThisEdgeNode creates a ThisEdge node.
func (b *Builder) ThisEdgeNode() NodeID { return b.Add(ThisEdge) }

// Ident creates an Identifier node.
func (b *Builder) Ident(name string) NodeID {
	return b.AddNode(Node{Kind: Identifier, Name: name})
}

// Call creates a FunctionApplication.
func (b *Builder) Call(name string, args ...NodeID) NodeID {
	return b.Link(b.AddNode(Node{Kind: FunctionApplication, Name: name}), RoleArgument, args...)
}

// Type creates a TypeId node matching name and its subclasses.
func (b *Builder) Type(name string) NodeID {
	return b.AddNode(Node{Kind: TypeID, Name: name})
}

// ExactType creates a TypeId node matching name only.
func (b *Builder) ExactType(name string) NodeID {
	return b.AddNode(Node{Kind: TypeID, Name: name, Exact: true})
}

// NotType creates a forbidden TypeId node.
func (b *Builder) NotType(name string) NodeID {
	return b.AddNode(Node{Kind: TypeID, Name: name, Forbidden: true})
}

// RoleName creates a RoleId node.
func (b *Builder) RoleName(name string) NodeID {
	return b.AddNode(Node{Kind: RoleID, Name: name})
}

// Restriction creates an EdgeRestriction. pred may be NoNode.
func (b *Builder) Restriction(types, roles []NodeID, pred NodeID) NodeID {
	id := b.Add(EdgeRestriction)
	b.Link(id, RoleTypes, types...)
	b.Link(id, RoleRoles, roles...)
	if pred != NoNode {
		b.Link(id, RolePredicate, pred)
	}
	return id
}

// Edges creates a SimplePathDescription in direction dir, restricted to
// the given TypeId nodes.
func (b *Builder) Edges(dir graph.Direction, types ...NodeID) NodeID {
	id := b.AddNode(Node{Kind: SimplePathDescription, Dir: dir})
	if len(types) > 0 {
		b.Link(id, RoleRestriction, b.Restriction(types, nil, NoNode))
	}
	return id
}

// RestrictedEdges creates a SimplePathDescription with a full restriction.
func (b *Builder) RestrictedEdges(dir graph.Direction, restriction NodeID) NodeID {
	return b.Link(b.AddNode(Node{Kind: SimplePathDescription, Dir: dir}), RoleRestriction, restriction)
}

// EdgePath creates an EdgePathDescription traversing the edges edge
// evaluates to.
func (b *Builder) EdgePath(dir graph.Direction, edge NodeID) NodeID {
	return b.Link(b.AddNode(Node{Kind: EdgePathDescription, Dir: dir}), RoleEdge, edge)
}

// Aggregation creates an AggregationPathDescription. restriction may be NoNode.
func (b *Builder) Aggregation(outward bool, restriction NodeID) NodeID {
	id := b.AddNode(Node{Kind: AggregationPathDescription, Outward: outward})
	if restriction != NoNode {
		b.Link(id, RoleRestriction, restriction)
	}
	return id
}

// Seq creates a SequentialPathDescription.
func (b *Builder) Seq(parts ...NodeID) NodeID {
	return b.withChildren(SequentialPathDescription, RoleSubPath, parts...)
}

// Alt creates an AlternativePathDescription.
func (b *Builder) Alt(parts ...NodeID) NodeID {
	return b.withChildren(AlternativePathDescription, RoleSubPath, parts...)
}

// Star creates a zero-or-more IteratedPathDescription.
func (b *Builder) Star(p NodeID) NodeID {
	return b.withChildren(IteratedPathDescription, RoleSubPath, p)
}

// Plus creates a one-or-more IteratedPathDescription.
func (b *Builder) Plus(p NodeID) NodeID {
	return b.Link(b.AddNode(Node{Kind: IteratedPathDescription, Plus: true}), RoleSubPath, p)
}

// Opt creates an OptionalPathDescription.
func (b *Builder) Opt(p NodeID) NodeID {
	return b.withChildren(OptionalPathDescription, RoleSubPath, p)
}

// Transpose creates a TransposedPathDescription.
func (b *Builder) Transpose(p NodeID) NodeID {
	return b.withChildren(TransposedPathDescription, RoleSubPath, p)
}

// Exp creates an ExponentiatedPathDescription.
func (b *Builder) Exp(p, exponent NodeID) NodeID {
	id := b.withChildren(ExponentiatedPathDescription, RoleSubPath, p)
	return b.Link(id, RoleExponent, exponent)
}

// Intermediate creates p1 v p2, where v evaluates to the admissible
// intermediate vertices.
func (b *Builder) Intermediate(p1, v, p2 NodeID) NodeID {
	id := b.withChildren(IntermediateVertexPathDescription, RoleSubPath, p1, p2)
	return b.Link(id, RoleIntermediate, v)
}

// StartRestrict attaches start restrictions (TypeIds or a predicate over
// thisVertex) to path description p.
func (b *Builder) StartRestrict(p NodeID, restrictions ...NodeID) NodeID {
	return b.Link(p, RoleStartRestriction, restrictions...)
}

// GoalRestrict attaches goal restrictions to path description p.
func (b *Builder) GoalRestrict(p NodeID, restrictions ...NodeID) NodeID {
	return b.Link(p, RoleGoalRestriction, restrictions...)
}

// Forward creates a ForwardVertexSet.
func (b *Builder) Forward(start, path NodeID) NodeID {
	id := b.withChildren(ForwardVertexSet, RoleStart, start)
	return b.Link(id, RolePath, path)
}

// Backward creates a BackwardVertexSet.
func (b *Builder) Backward(target, path NodeID) NodeID {
	id := b.withChildren(BackwardVertexSet, RoleTarget, target)
	return b.Link(id, RolePath, path)
}

// Exists creates a PathExistence.
func (b *Builder) Exists(start, target, path NodeID) NodeID {
	id := b.withChildren(PathExistence, RoleStart, start)
	b.Link(id, RoleTarget, target)
	return b.Link(id, RolePath, path)
}

// VSet creates a VertexSetExpression.
func (b *Builder) VSet(types ...NodeID) NodeID {
	return b.withChildren(VertexSetExpression, RoleTypes, types...)
}

// ESet creates an EdgeSetExpression.
func (b *Builder) ESet(types ...NodeID) NodeID {
	return b.withChildren(EdgeSetExpression, RoleTypes, types...)
}

// SimpleDecl creates a SimpleDeclaration binding vars to domain.
func (b *Builder) SimpleDecl(domain NodeID, vars ...NodeID) NodeID {
	id := b.withChildren(SimpleDeclaration, RoleVariable, vars...)
	return b.Link(id, RoleDomain, domain)
}

// Decl creates a Declaration.
func (b *Builder) Decl(simple []NodeID, constraints ...NodeID) NodeID {
	id := b.withChildren(Declaration, RoleSimple, simple...)
	return b.Link(id, RoleConstraint, constraints...)
}

// SetComp creates a SetComprehension.
func (b *Builder) SetComp(decl, result NodeID) NodeID {
	return b.Link(b.withChildren(SetComprehension, RoleDeclaration, decl), RoleResult, result)
}

// ListComp creates a ListComprehension.
func (b *Builder) ListComp(decl, result NodeID) NodeID {
	return b.Link(b.withChildren(ListComprehension, RoleDeclaration, decl), RoleResult, result)
}

// MapComp creates a MapComprehension.
func (b *Builder) MapComp(decl, key, value NodeID) NodeID {
	id := b.withChildren(MapComprehension, RoleDeclaration, decl)
	b.Link(id, RoleKey, key)
	return b.Link(id, RoleValue, value)
}

// Quantified creates a QuantifiedExpression.
func (b *Builder) Quantified(q Quantifier, decl, pred NodeID) NodeID {
	id := b.AddNode(Node{Kind: QuantifiedExpression, Quantifier: q})
	b.Link(id, RoleDeclaration, decl)
	return b.Link(id, RoleResult, pred)
}

// Cond creates a ConditionalExpression.
func (b *Builder) Cond(cond, then, els NodeID) NodeID {
	id := b.withChildren(ConditionalExpression, RoleCondition, cond)
	b.Link(id, RoleTrue, then)
	return b.Link(id, RoleFalse, els)
}

// Def creates a Definition binding name to expr.
func (b *Builder) Def(name string, expr NodeID) NodeID {
	return b.Link(b.AddNode(Node{Kind: Definition, Name: name}), RoleExpression, expr)
}

// Let creates a LetExpression.
func (b *Builder) Let(result NodeID, defs ...NodeID) NodeID {
	id := b.withChildren(LetExpression, RoleDefinition, defs...)
	return b.Link(id, RoleResult, result)
}

// Where creates a WhereExpression.
func (b *Builder) Where(result NodeID, defs ...NodeID) NodeID {
	id := b.withChildren(WhereExpression, RoleResult, result)
	return b.Link(id, RoleDefinition, defs...)
}

// List creates a ListConstruction.
func (b *Builder) List(elems ...NodeID) NodeID {
	return b.withChildren(ListConstruction, RoleElement, elems...)
}

// SetOf creates a SetConstruction.
func (b *Builder) SetOf(elems ...NodeID) NodeID {
	return b.withChildren(SetConstruction, RoleElement, elems...)
}

// Tuple creates a TupleConstruction.
func (b *Builder) Tuple(elems ...NodeID) NodeID {
	return b.withChildren(TupleConstruction, RoleElement, elems...)
}

// Field creates a RecordElement.
func (b *Builder) Field(name string, expr NodeID) NodeID {
	return b.Link(b.AddNode(Node{Kind: RecordElement, Name: name}), RoleExpression, expr)
}

// Record creates a RecordConstruction from RecordElement nodes.
func (b *Builder) Record(fields ...NodeID) NodeID {
	return b.withChildren(RecordConstruction, RoleElement, fields...)
}

// Range creates a ListRangeConstruction.
func (b *Builder) Range(first, last NodeID) NodeID {
	return b.Link(b.withChildren(ListRangeConstruction, RoleFirst, first), RoleLast, last)
}

// Subgraph creates a SubgraphRestrictedExpression evaluating expr inside
// the subgraph def defines.
func (b *Builder) Subgraph(def, expr NodeID) NodeID {
	return b.Link(b.withChildren(SubgraphRestrictedExpression, RoleSubgraph, def), RoleExpression, expr)
}

// VertexInduced creates a VertexInducedSubgraph definition.
func (b *Builder) VertexInduced(types ...NodeID) NodeID {
	return b.withChildren(VertexInducedSubgraph, RoleTypes, types...)
}

// EdgeInduced creates an EdgeInducedSubgraph definition.
func (b *Builder) EdgeInduced(types ...NodeID) NodeID {
	return b.withChildren(EdgeInducedSubgraph, RoleTypes, types...)
}

// ExprSubgraph creates an ExpressionDefinedSubgraph definition.
func (b *Builder) ExprSubgraph(expr NodeID) NodeID {
	return b.withChildren(ExpressionDefinedSubgraph, RoleExpression, expr)
}

// QueryRoot creates a Query node with external variables bound.
func (b *Builder) QueryRoot(result NodeID, bound ...NodeID) NodeID {
	id := b.withChildren(Query, RoleBound, bound...)
	return b.Link(id, RoleResult, result)
}
