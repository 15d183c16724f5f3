package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateWellFormed(t *testing.T) {
	b := syntax.NewBuilder()
	decl := b.Decl([]syntax.NodeID{b.SimpleDecl(b.VSet(b.Type("V")), b.Var("v"))},
		b.Call("grThan", b.Call("outDegree", b.Var("v")), b.Lit(ir.Int(0))))
	pred := b.Call("hasType", b.ThisEdgeNode(), b.Lit(ir.String("T1")))
	path := b.Star(b.RestrictedEdges(graph.Out, b.Restriction(nil, nil, pred)))
	root := b.QueryRoot(b.SetComp(decl, b.Forward(b.Var("v"), path)))

	assert.Empty(t, Validate(b.MustBuild(root), nil))
}

func TestValidateShape(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *syntax.Builder) syntax.NodeID
		code  string
	}{
		{"missing else", func(b *syntax.Builder) syntax.NodeID {
			id := b.Add(syntax.ConditionalExpression)
			b.Link(id, syntax.RoleCondition, b.Lit(ir.Bool(true)))
			return b.Link(id, syntax.RoleTrue, b.Lit(ir.Int(1)))
		}, ErrMissingRole},
		{"two exponents", func(b *syntax.Builder) syntax.NodeID {
			p := b.Exp(b.Edges(graph.Out), b.Lit(ir.Int(1)))
			b.Link(p, syntax.RoleExponent, b.Lit(ir.Int(2)))
			return b.Forward(b.Var("a"), p)
		}, ErrRoleMultiplicity},
		{"unexpected role", func(b *syntax.Builder) syntax.NodeID {
			return b.Link(b.VSet(), syntax.RoleElement, b.Lit(ir.Int(1)))
		}, ErrUnexpectedRole},
		{"unnamed variable", func(b *syntax.Builder) syntax.NodeID {
			return b.Add(syntax.Variable)
		}, ErrMissingName},
		{"literal without value", func(b *syntax.Builder) syntax.NodeID {
			return b.AddNode(syntax.Node{Kind: syntax.IntLiteral})
		}, ErrMissingLiteral},
		{"non-type in types", func(b *syntax.Builder) syntax.NodeID {
			return b.VSet(b.Lit(ir.String("V")))
		}, ErrChildKind},
		{"expression as path", func(b *syntax.Builder) syntax.NodeID {
			return b.Forward(b.Var("a"), b.VSet())
		}, ErrChildKind},
		{"unknown function", func(b *syntax.Builder) syntax.NodeID {
			return b.Call("equal", b.Lit(ir.Int(1)), b.Lit(ir.Int(1)))
		}, ErrUnknownFunction},
		{"arity", func(b *syntax.Builder) syntax.NodeID {
			return b.Call("not")
		}, ErrFunctionArity},
		{"duplicate variable", func(b *syntax.Builder) syntax.NodeID {
			return b.Decl([]syntax.NodeID{
				b.SimpleDecl(b.VSet(), b.Var("x")),
				b.SimpleDecl(b.ESet(), b.Var("x")),
			})
		}, ErrDuplicateVariable},
		{"thisVertex outside a path", func(b *syntax.Builder) syntax.NodeID {
			return b.Call("isNull", b.ThisVertexNode())
		}, ErrUnboundThisElement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := syntax.NewBuilder()
			errs := Validate(b.MustBuild(tt.build(b)), nil)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)
		})
	}
}

func TestValidateSuggestsFunction(t *testing.T) {
	b := syntax.NewBuilder()
	errs := Validate(b.MustBuild(b.Call("outDegre", b.Var("v"))), nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownFunction, errs[0].Code)
	assert.Contains(t, errs[0].Message, `did you mean "outDegree"?`)
	assert.Contains(t, errs[0].Error(), "[E207]")
}

func TestValidateReportsAllErrors(t *testing.T) {
	b := syntax.NewBuilder()
	root := b.List(b.Call("nope"), b.Add(syntax.Variable), b.Add(syntax.ListRangeConstruction))
	errs := Validate(b.MustBuild(root), nil)
	assert.Subset(t, codes(errs), []string{ErrUnknownFunction, ErrMissingName, ErrMissingRole})
}

func TestValidateDeclarationCycle(t *testing.T) {
	b := syntax.NewBuilder()
	decl := b.Decl([]syntax.NodeID{
		b.SimpleDecl(b.List(b.Var("y")), b.Var("x")),
		b.SimpleDecl(b.List(b.Var("x")), b.Var("y")),
	})
	errs := Validate(b.MustBuild(decl), nil)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDeclarationCycle, errs[0].Code)
	assert.Equal(t, decl, errs[0].Node)
}
