package eval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/greql/internal/automaton"
	"github.com/roach88/greql/internal/funlib"
	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
	"github.com/roach88/greql/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSession(t *testing.T, g graph.Graph, b *syntax.Builder, root syntax.NodeID) *Session {
	t.Helper()
	s, err := New(g, b.MustBuild(root),
		WithLogger(quietLogger()),
		WithSessionIDs(testutil.NewSequenceIDs("test")),
	)
	require.NoError(t, err)
	return s
}

func eval(t *testing.T, g graph.Graph, b *syntax.Builder, root syntax.NodeID, external map[string]ir.Value) (ir.Value, error) {
	t.Helper()
	return newSession(t, g, b, root).Evaluate(context.Background(), external)
}

func mustEval(t *testing.T, g graph.Graph, b *syntax.Builder, root syntax.NodeID, external map[string]ir.Value) ir.Value {
	t.Helper()
	v, err := eval(t, g, b, root, external)
	require.NoError(t, err)
	return v
}

func elements(t *testing.T, v ir.Value) []ir.Value {
	t.Helper()
	set, ok := v.(*ir.Set)
	require.True(t, ok, "want a set, got %s", ir.KindName(v))
	return set.Elements()
}

func t1t2(b *syntax.Builder) syntax.NodeID {
	return b.Seq(b.Edges(graph.Out, b.Type("T1")), b.Edges(graph.Out, b.Type("T2")))
}

func TestChainScenario(t *testing.T) {
	c := testutil.NewChain()
	ext := map[string]ir.Value{"a": c.A, "b": c.B, "c": c.C}

	b := syntax.NewBuilder()
	fwd := mustEval(t, c.Graph, b, b.Forward(b.Var("a"), t1t2(b)), ext)
	assert.Equal(t, []ir.Value{c.C}, elements(t, fwd))

	b = syntax.NewBuilder()
	ok := mustEval(t, c.Graph, b, b.Exists(b.Var("a"), b.Var("c"), t1t2(b)), ext)
	assert.Equal(t, ir.Bool(true), ok)

	b = syntax.NewBuilder()
	ok = mustEval(t, c.Graph, b, b.Exists(b.Var("a"), b.Var("b"), t1t2(b)), ext)
	assert.Equal(t, ir.Bool(false), ok)

	b = syntax.NewBuilder()
	back := mustEval(t, c.Graph, b, b.Backward(b.Var("c"), t1t2(b)), ext)
	assert.Equal(t, []ir.Value{c.A}, elements(t, back))
}

func TestForbiddenTypeEdgeSet(t *testing.T) {
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	got := mustEval(t, c.Graph, b, b.ESet(b.NotType("T2")), nil)
	assert.Equal(t, []ir.Value{c.AB}, elements(t, got))
}

func TestPathOperands(t *testing.T) {
	c := testutil.NewChain()

	t.Run("null start yields empty set", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Forward(b.Lit(ir.Null{}), t1t2(b)), nil)
		assert.Empty(t, elements(t, got))
	})

	t.Run("null target yields false", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Exists(b.Var("a"), b.Lit(ir.Null{}), t1t2(b)), map[string]ir.Value{"a": c.A})
		assert.Equal(t, ir.Bool(false), got)
	})

	t.Run("edge start searches from both ends", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Forward(b.Var("e"), b.Edges(graph.Out)), map[string]ir.Value{"e": c.AB})
		assert.Equal(t, []ir.Value{c.B, c.C}, elements(t, got))
	})

	t.Run("edge start follows the sequence from alpha", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Forward(b.Var("e"), t1t2(b)), map[string]ir.Value{"e": c.AB})
		assert.Equal(t, []ir.Value{c.C}, elements(t, got))
	})

	t.Run("edge target of a backward set", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Backward(b.Var("e"), b.Edges(graph.Out)), map[string]ir.Value{"e": c.BC})
		assert.Equal(t, []ir.Value{c.A, c.B}, elements(t, got))
	})

	t.Run("edge target is reached at either end", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Exists(b.Var("a"), b.Var("e"), b.Edges(graph.Out)),
			map[string]ir.Value{"a": c.A, "e": c.BC})
		assert.Equal(t, ir.Bool(true), got)
	})

	t.Run("non-element start is a type mismatch", func(t *testing.T) {
		b := syntax.NewBuilder()
		_, err := eval(t, c.Graph, b, b.Forward(b.Lit(ir.String("ab")), t1t2(b)), nil)
		require.Error(t, err)
		assert.True(t, IsTypeMismatch(err))
	})
}

func TestPathDescriptions(t *testing.T) {
	c := testutil.NewChain()
	ext := map[string]ir.Value{"a": c.A, "b": c.B, "c": c.C, "e": c.AB}

	tests := []struct {
		name  string
		start string
		path  func(b *syntax.Builder) syntax.NodeID
		want  []ir.Value
	}{
		{"star", "a", func(b *syntax.Builder) syntax.NodeID {
			return b.Star(b.Edges(graph.Out))
		}, []ir.Value{c.A, c.B, c.C}},
		{"plus", "a", func(b *syntax.Builder) syntax.NodeID {
			return b.Plus(b.Edges(graph.Out))
		}, []ir.Value{c.B, c.C}},
		{"optional", "b", func(b *syntax.Builder) syntax.NodeID {
			return b.Opt(b.Edges(graph.Out))
		}, []ir.Value{c.B, c.C}},
		{"alternative", "b", func(b *syntax.Builder) syntax.NodeID {
			return b.Alt(b.Edges(graph.In, b.Type("T1")), b.Edges(graph.Out, b.Type("T2")))
		}, []ir.Value{c.A, c.C}},
		{"transposed", "c", func(b *syntax.Builder) syntax.NodeID {
			return b.Transpose(t1t2(b))
		}, []ir.Value{c.A}},
		{"exponent two", "a", func(b *syntax.Builder) syntax.NodeID {
			return b.Exp(b.Edges(graph.Out), b.Lit(ir.Int(2)))
		}, []ir.Value{c.C}},
		{"exponent zero", "a", func(b *syntax.Builder) syntax.NodeID {
			return b.Exp(b.Edges(graph.Out), b.Lit(ir.Int(0)))
		}, []ir.Value{c.A}},
		{"edge path", "a", func(b *syntax.Builder) syntax.NodeID {
			return b.EdgePath(graph.Out, b.Var("e"))
		}, []ir.Value{c.B}},
		{"intermediate vertex", "a", func(b *syntax.Builder) syntax.NodeID {
			return b.Intermediate(b.Edges(graph.Out), b.Var("b"), b.Edges(graph.Out))
		}, []ir.Value{c.C}},
		{"intermediate vertex excluded", "a", func(b *syntax.Builder) syntax.NodeID {
			return b.Intermediate(b.Edges(graph.Out), b.Var("c"), b.Edges(graph.Out))
		}, nil},
		{"start type restriction", "a", func(b *syntax.Builder) syntax.NodeID {
			return b.StartRestrict(b.Edges(graph.Out), b.Type("W"))
		}, nil},
		{"goal predicate", "a", func(b *syntax.Builder) syntax.NodeID {
			name := b.Call("getValue", b.ThisVertexNode(), b.Lit(ir.String("name")))
			return b.GoalRestrict(b.Star(b.Edges(graph.Out)), b.Call("equals", name, b.Lit(ir.String("C"))))
		}, []ir.Value{c.C}},
		{"edge predicate", "b", func(b *syntax.Builder) syntax.NodeID {
			pred := b.Call("hasType", b.ThisEdgeNode(), b.Lit(ir.String("T2")))
			return b.Star(b.RestrictedEdges(graph.Any, b.Restriction(nil, nil, pred)))
		}, []ir.Value{c.B, c.C}},
		{"role restriction", "b", func(b *syntax.Builder) syntax.NodeID {
			return b.RestrictedEdges(graph.Any, b.Restriction(nil, []syntax.NodeID{b.RoleName("src")}, syntax.NoNode))
		}, []ir.Value{c.A}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := syntax.NewBuilder()
			got := mustEval(t, c.Graph, b, b.Forward(b.Var(tc.start), tc.path(b)), ext)
			if tc.want == nil {
				assert.Empty(t, elements(t, got))
				return
			}
			assert.Equal(t, tc.want, elements(t, got))
		})
	}
}

func TestAggregationDirection(t *testing.T) {
	g := graph.NewMemory(testutil.Schema())
	whole, err := g.AddVertex("V", nil)
	require.NoError(t, err)
	part, err := g.AddVertex("V", nil)
	require.NoError(t, err)
	_, err = g.AddEdge("Contains", whole, part, nil)
	require.NoError(t, err)
	ext := map[string]ir.Value{"whole": whole, "part": part}

	b := syntax.NewBuilder()
	got := mustEval(t, g, b, b.Forward(b.Var("whole"), b.Aggregation(true, syntax.NoNode)), ext)
	assert.Equal(t, []ir.Value{part}, elements(t, got))

	b = syntax.NewBuilder()
	got = mustEval(t, g, b, b.Forward(b.Var("part"), b.Aggregation(false, syntax.NoNode)), ext)
	assert.Equal(t, []ir.Value{whole}, elements(t, got))

	b = syntax.NewBuilder()
	got = mustEval(t, g, b, b.Forward(b.Var("part"), b.Aggregation(true, syntax.NoNode)), ext)
	assert.Empty(t, elements(t, got))
}

func TestExponentErrors(t *testing.T) {
	c := testutil.NewChain()
	for name, exp := range map[string]ir.Value{
		"double":          ir.Double(1.5),
		"integral double": ir.Double(2),
		"string":          ir.String("2"),
		"negative":        ir.Int(-1),
		"too large":       ir.Int(automaton.MaxExponent + 1),
	} {
		t.Run(name, func(t *testing.T) {
			b := syntax.NewBuilder()
			_, err := eval(t, c.Graph, b, b.Forward(b.Var("a"), b.Exp(b.Edges(graph.Out), b.Lit(exp))), map[string]ir.Value{"a": c.A})
			require.Error(t, err)
			assert.True(t, IsTypeMismatch(err), err.Error())
		})
	}
}

func TestErrorCodes(t *testing.T) {
	c := testutil.NewChain()

	tests := []struct {
		name  string
		build func(b *syntax.Builder) syntax.NodeID
		code  ErrorCode
	}{
		{"non-boolean condition", func(b *syntax.Builder) syntax.NodeID {
			return b.Cond(b.Lit(ir.Int(1)), b.Lit(ir.Int(1)), b.Lit(ir.Int(2)))
		}, ErrCodeTypeMismatch},
		{"unknown function", func(b *syntax.Builder) syntax.NodeID {
			return b.Call("equal", b.Lit(ir.Int(1)), b.Lit(ir.Int(1)))
		}, ErrCodeUnknownFunction},
		{"bad arity", func(b *syntax.Builder) syntax.NodeID {
			return b.Call("not")
		}, ErrCodeMalformedQuery},
		{"operand type", func(b *syntax.Builder) syntax.NodeID {
			return b.Call("not", b.Lit(ir.Int(3)))
		}, ErrCodeTypeMismatch},
		{"modulo by zero", func(b *syntax.Builder) syntax.NodeID {
			return b.Call("modulo", b.Lit(ir.Int(1)), b.Lit(ir.Int(0)))
		}, ErrCodeFunctionFailed},
		{"unbound variable", func(b *syntax.Builder) syntax.NodeID {
			return b.Var("x")
		}, ErrCodeUnresolvedVariable},
		{"unbound query variable", func(b *syntax.Builder) syntax.NodeID {
			return b.QueryRoot(b.Lit(ir.Int(1)), b.Var("x"))
		}, ErrCodeUnresolvedVariable},
		{"unknown type", func(b *syntax.Builder) syntax.NodeID {
			return b.VSet(b.Type("Nope"))
		}, ErrCodeMalformedQuery},
		{"missing child", func(b *syntax.Builder) syntax.NodeID {
			return b.Add(syntax.ConditionalExpression)
		}, ErrCodeMalformedQuery},
		{"range bound", func(b *syntax.Builder) syntax.NodeID {
			return b.Range(b.Lit(ir.String("a")), b.Lit(ir.Int(3)))
		}, ErrCodeTypeMismatch},
		{"range too long", func(b *syntax.Builder) syntax.NodeID {
			return b.Range(b.Lit(ir.Int(math.MinInt64)), b.Lit(ir.Int(math.MaxInt64)))
		}, ErrCodeTypeMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := syntax.NewBuilder()
			_, err := eval(t, c.Graph, b, tc.build(b), nil)
			require.Error(t, err)
			var ee *EvalError
			require.True(t, errors.As(err, &ee), "want *EvalError, got %T", err)
			assert.Equal(t, tc.code, ee.Code, ee.Error())
		})
	}
}

func TestUnknownFunctionSuggestion(t *testing.T) {
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	_, err := eval(t, c.Graph, b, b.Call("outDegre", b.Var("a")), map[string]ir.Value{"a": c.A})
	require.Error(t, err)
	assert.True(t, IsUnknownFunction(err))

	var ee *EvalError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "outDegree", ee.Details["suggestion"])
	assert.True(t, errors.Is(err, funlib.ErrUnknownFunction))
}

func TestFunctionFailureWrapsCause(t *testing.T) {
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	_, err := eval(t, c.Graph, b, b.Call("modulo", b.Lit(ir.Int(1)), b.Lit(ir.Int(0))), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, funlib.ErrDivisionByZero))
}

func TestConditional(t *testing.T) {
	c := testutil.NewChain()

	b := syntax.NewBuilder()
	got := mustEval(t, c.Graph, b, b.Cond(b.Lit(ir.Bool(false)), b.Lit(ir.Int(1)), b.Lit(ir.Int(2))), nil)
	assert.Equal(t, ir.Int(2), got)

	b = syntax.NewBuilder()
	got = mustEval(t, c.Graph, b, b.Cond(b.Lit(ir.Null{}), b.Lit(ir.Int(1)), b.Lit(ir.Int(2))), nil)
	assert.Equal(t, ir.Null{}, got)

	b = syntax.NewBuilder()
	cond := b.Cond(b.Lit(ir.Null{}), b.Lit(ir.Int(1)), b.Lit(ir.Int(2)))
	b.Link(cond, syntax.RoleNull, b.Lit(ir.Int(3)))
	got = mustEval(t, c.Graph, b, cond, nil)
	assert.Equal(t, ir.Int(3), got)
}

func nameIs(b *syntax.Builder, v syntax.NodeID, name string) syntax.NodeID {
	return b.Call("equals", b.Call("getValue", v, b.Lit(ir.String("name"))), b.Lit(ir.String(name)))
}

func TestComprehensions(t *testing.T) {
	c := testutil.NewChain()

	t.Run("set with constraint", func(t *testing.T) {
		b := syntax.NewBuilder()
		decl := b.Decl([]syntax.NodeID{b.SimpleDecl(b.VSet(), b.Var("v"))}, nameIs(b, b.Var("v"), "B"))
		got := mustEval(t, c.Graph, b, b.SetComp(decl, b.Var("v")), nil)
		assert.Equal(t, []ir.Value{c.B}, elements(t, got))
	})

	t.Run("list over range", func(t *testing.T) {
		b := syntax.NewBuilder()
		decl := b.Decl([]syntax.NodeID{b.SimpleDecl(b.Range(b.Lit(ir.Int(1)), b.Lit(ir.Int(3))), b.Var("x"))})
		got := mustEval(t, c.Graph, b, b.ListComp(decl, b.Call("times", b.Var("x"), b.Var("x"))), nil)
		assert.Equal(t, ir.List{ir.Int(1), ir.Int(4), ir.Int(9)}, got)
	})

	t.Run("map", func(t *testing.T) {
		b := syntax.NewBuilder()
		decl := b.Decl([]syntax.NodeID{b.SimpleDecl(b.VSet(), b.Var("v"))})
		got := mustEval(t, c.Graph, b, b.MapComp(decl, b.Var("v"), b.Call("outDegree", b.Var("v"))), nil)
		m, ok := got.(*ir.Map)
		require.True(t, ok)
		assert.Equal(t, 3, m.Len())
		deg, ok := m.Get(c.C)
		require.True(t, ok)
		assert.Equal(t, ir.Int(0), deg)
	})

	t.Run("empty range", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Range(b.Lit(ir.Int(3)), b.Lit(ir.Int(1))), nil)
		assert.Equal(t, ir.List{}, got)
	})

	t.Run("range ending at max int", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Range(b.Lit(ir.Int(math.MaxInt64-1)), b.Lit(ir.Int(math.MaxInt64))), nil)
		assert.Equal(t, ir.List{ir.Int(math.MaxInt64 - 1), ir.Int(math.MaxInt64)}, got)
	})
}

func TestQuantifiers(t *testing.T) {
	c := testutil.NewChain()

	tests := []struct {
		name string
		q    syntax.Quantifier
		want ir.Value
	}{
		{"forall", syntax.ForAll, ir.Bool(false)},
		{"exists", syntax.Exists, ir.Bool(true)},
		{"exists exactly one", syntax.ExistsExactlyOne, ir.Bool(true)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := syntax.NewBuilder()
			decl := b.Decl([]syntax.NodeID{b.SimpleDecl(b.VSet(), b.Var("v"))})
			got := mustEval(t, c.Graph, b, b.Quantified(tc.q, decl, nameIs(b, b.Var("v"), "C")), nil)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("unknown predicate makes forall null", func(t *testing.T) {
		b := syntax.NewBuilder()
		dom := b.List(b.Lit(ir.Int(1)), b.Lit(ir.Null{}))
		decl := b.Decl([]syntax.NodeID{b.SimpleDecl(dom, b.Var("x"))})
		got := mustEval(t, c.Graph, b, b.Quantified(syntax.ForAll, decl, b.Call("grThan", b.Var("x"), b.Lit(ir.Int(0)))), nil)
		assert.Equal(t, ir.Null{}, got)
	})

	t.Run("exists over empty domain", func(t *testing.T) {
		b := syntax.NewBuilder()
		decl := b.Decl([]syntax.NodeID{b.SimpleDecl(b.List(), b.Var("x"))})
		got := mustEval(t, c.Graph, b, b.Quantified(syntax.Exists, decl, b.Lit(ir.Bool(true))), nil)
		assert.Equal(t, ir.Bool(false), got)
	})
}

func TestLetAndWhere(t *testing.T) {
	c := testutil.NewChain()

	b := syntax.NewBuilder()
	root := b.Let(b.Call("plus", b.Var("x"), b.Var("y")),
		b.Def("x", b.Lit(ir.Int(1))),
		b.Def("y", b.Call("plus", b.Var("x"), b.Lit(ir.Int(1)))),
	)
	assert.Equal(t, ir.Int(3), mustEval(t, c.Graph, b, root, nil))

	b = syntax.NewBuilder()
	root = b.Where(b.Call("times", b.Var("n"), b.Lit(ir.Int(2))), b.Def("n", b.Lit(ir.Int(21))))
	assert.Equal(t, ir.Int(42), mustEval(t, c.Graph, b, root, nil))

	t.Run("definition shadows external", func(t *testing.T) {
		b := syntax.NewBuilder()
		root := b.List(b.Let(b.Var("x"), b.Def("x", b.Lit(ir.Int(1)))), b.Var("x"))
		got := mustEval(t, c.Graph, b, root, map[string]ir.Value{"x": ir.Int(7)})
		assert.Equal(t, ir.List{ir.Int(1), ir.Int(7)}, got)
	})
}

func TestConstructions(t *testing.T) {
	c := testutil.NewChain()

	b := syntax.NewBuilder()
	got := mustEval(t, c.Graph, b, b.Record(b.Field("a", b.Lit(ir.Int(1))), b.Field("b", b.Lit(ir.String("x")))), nil)
	assert.Equal(t, ir.Record{"a": ir.Int(1), "b": ir.String("x")}, got)

	b = syntax.NewBuilder()
	got = mustEval(t, c.Graph, b, b.Tuple(b.Lit(ir.Int(1)), b.Lit(ir.Null{})), nil)
	assert.Equal(t, ir.Tuple{ir.Int(1), ir.Null{}}, got)

	b = syntax.NewBuilder()
	got = mustEval(t, c.Graph, b, b.SetOf(b.Lit(ir.Int(2)), b.Lit(ir.Int(1)), b.Lit(ir.Int(2))), nil)
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Int(2)}, elements(t, got))
}

func TestSubgraphs(t *testing.T) {
	c := testutil.NewChain()
	ext := map[string]ir.Value{"a": c.A, "b": c.B}

	t.Run("edge induced", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Subgraph(b.EdgeInduced(b.Type("T1")), b.VSet()), nil)
		assert.Equal(t, []ir.Value{c.A, c.B}, elements(t, got))
	})

	t.Run("vertex induced keeps inner edges", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Subgraph(b.VertexInduced(b.Type("V")), b.ESet()), nil)
		assert.Equal(t, []ir.Value{c.AB, c.BC}, elements(t, got))
	})

	t.Run("expression defined marks listed elements only", func(t *testing.T) {
		b := syntax.NewBuilder()
		sub := b.ExprSubgraph(b.SetOf(b.Var("a"), b.Var("b")))
		got := mustEval(t, c.Graph, b, b.Subgraph(sub, b.ESet()), ext)
		assert.Empty(t, elements(t, got))
	})

	t.Run("search stays inside the subgraph", func(t *testing.T) {
		b := syntax.NewBuilder()
		fwd := b.Forward(b.Var("a"), b.Star(b.Edges(graph.Out)))
		got := mustEval(t, c.Graph, b, b.Subgraph(b.EdgeInduced(b.Type("T1")), fwd), ext)
		assert.Equal(t, []ir.Value{c.A, c.B}, elements(t, got))
	})

	t.Run("degree is view aware", func(t *testing.T) {
		b := syntax.NewBuilder()
		got := mustEval(t, c.Graph, b, b.Subgraph(b.EdgeInduced(b.Type("T1")), b.Call("degree", b.Var("b"))), ext)
		assert.Equal(t, ir.Int(1), got)
	})
}

func TestTraversalContextRestoredOnError(t *testing.T) {
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	bad := b.Cond(b.Lit(ir.Int(1)), b.Lit(ir.Int(1)), b.Lit(ir.Int(2)))
	root := b.Subgraph(b.EdgeInduced(b.Type("T1")), bad)
	s := newSession(t, c.Graph, b, root)

	ctx := newContext(context.Background(), NewBindings(s.clock))
	s.cur = ctx
	_, err := s.value(ctx, root)
	require.Error(t, err)
	assert.True(t, IsTypeMismatch(err))
	assert.Zero(t, ctx.Depth())
	assert.Nil(t, ctx.View())
}

func TestResultsAreCachedUntilInputsChange(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	root := b.Forward(b.Var("a"), t1t2(b))
	s := newSession(t, c.Graph, b, root)

	first, err := s.Evaluate(ctx, map[string]ir.Value{"a": c.A})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{c.C}, elements(t, first))

	again, err := s.Evaluate(ctx, map[string]ir.Value{"a": c.A})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{c.C}, elements(t, again))

	fromB, err := s.Evaluate(ctx, map[string]ir.Value{"a": c.B})
	require.NoError(t, err)
	assert.Empty(t, elements(t, fromB), "rebinding a invalidates the cached result")

	d, err := c.Graph.AddVertex("V", nil)
	require.NoError(t, err)
	_, err = c.Graph.AddEdge("T2", c.B, d, nil)
	require.NoError(t, err)

	grown, err := s.Evaluate(ctx, map[string]ir.Value{"a": c.A})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{c.C, d}, elements(t, grown), "a graph change invalidates the cached result")
}

func TestQueryRootReevaluatesOnRebinding(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	root := b.QueryRoot(b.Forward(b.Var("a"), t1t2(b)), b.Var("a"))
	s := newSession(t, c.Graph, b, root)

	assert.Equal(t, []string{"a"}, s.NeededVariables(root))

	fromA, err := s.Evaluate(ctx, map[string]ir.Value{"a": c.A})
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{c.C}, elements(t, fromA))

	fromB, err := s.Evaluate(ctx, map[string]ir.Value{"a": c.B})
	require.NoError(t, err)
	assert.Empty(t, elements(t, fromB), "rebinding a bound variable invalidates the root")

	_, err = s.Evaluate(ctx, nil)
	require.Error(t, err)
	assert.True(t, IsUnresolvedVariable(err), "the bound variable check runs on every evaluation")
}

func TestCachedValueReusedWithinEvaluation(t *testing.T) {
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	shared := b.VSet()
	root := b.List(shared, shared)
	s := newSession(t, c.Graph, b, root)

	v, err := s.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	list := v.(ir.List)
	require.Len(t, list, 2)
	assert.Same(t, list[0].(*ir.Set), list[1].(*ir.Set))
}

func TestCancelledContext(t *testing.T) {
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	s := newSession(t, c.Graph, b, b.VSet())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Evaluate(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSharedPathDescriptionRejected(t *testing.T) {
	b := syntax.NewBuilder()
	p := b.Edges(graph.Out)
	_, err := b.Build(b.List(b.Forward(b.Var("a"), p), b.Forward(b.Var("b"), p)))
	require.Error(t, err)
}

func TestVariableAnalysis(t *testing.T) {
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	decl := b.Decl([]syntax.NodeID{b.SimpleDecl(b.VSet(), b.Var("v"))}, nameIs(b, b.Var("v"), "B"))
	result := b.List(b.Var("v"), b.Var("outer"))
	path := b.GoalRestrict(b.Edges(graph.Out), b.Call("hasType", b.ThisVertexNode(), b.Lit(ir.String("V"))))
	fwd := b.Forward(b.Var("v"), path)
	root := b.SetComp(decl, b.List(result, fwd))
	s := newSession(t, c.Graph, b, root)

	assert.Equal(t, []string{"outer"}, s.NeededVariables(root))
	assert.Equal(t, []string{"v"}, s.DefinedVariables(decl))
	assert.Empty(t, s.NeededVariables(decl))
	assert.Equal(t, []string{"outer", "v"}, s.NeededVariables(result))
	assert.Empty(t, s.NeededVariables(path), "thisVertex is bound by the search")
	assert.Equal(t, []string{"v"}, s.NeededVariables(fwd))
}
