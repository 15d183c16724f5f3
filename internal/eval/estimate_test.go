package eval

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
	"github.com/roach88/greql/internal/testutil"
)

func chainSize(t *testing.T) costs.GraphSize {
	t.Helper()
	size, err := costs.NewGraphSize(testutil.NewChain().Graph)
	require.NoError(t, err)
	return size
}

// mixedQuery exercises most node kinds in one tree.
func mixedQuery(b *syntax.Builder) syntax.NodeID {
	decl := b.Decl([]syntax.NodeID{
		b.SimpleDecl(b.VSet(b.Type("V")), b.Var("v")),
		b.SimpleDecl(b.Range(b.Lit(ir.Int(1)), b.Lit(ir.Int(4))), b.Var("k")),
	}, b.Call("grThan", b.Call("outDegree", b.Var("v")), b.Lit(ir.Int(0))))
	reach := b.Forward(b.Var("v"), b.Exp(b.Edges(graph.Out, b.Type("T1")), b.Var("k")))
	body := b.Cond(b.Call("isEmpty", reach), b.Lit(ir.Null{}), b.Record(b.Field("from", b.Var("v")), b.Field("n", b.Var("k"))))
	return b.Let(b.SetComp(decl, body), b.Def("unused", b.ESet()))
}

func TestEstimatesAreConsistent(t *testing.T) {
	b := syntax.NewBuilder()
	root := mixedQuery(b)
	g := b.MustBuild(root)
	s := newSession(t, testutil.NewChain().Graph, b, root)

	for _, size := range []costs.GraphSize{{}, chainSize(t), {VertexCount: 1000, EdgeCount: 5000}} {
		for _, n := range g.Nodes() {
			c, err := s.Costs(n.ID, size)
			require.NoError(t, err)
			assert.True(t, c.Valid(), "%s: %s", n.Label(), c)

			card, err := s.Cardinality(n.ID, size)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, card, int64(0))

			sel, err := s.Selectivity(n.ID, size)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, sel, 0.0)
			assert.LessOrEqual(t, sel, 1.0)
		}
	}
}

func TestEstimatesGrowWithGraph(t *testing.T) {
	b := syntax.NewBuilder()
	root := mixedQuery(b)
	s := newSession(t, testutil.NewChain().Graph, b, root)

	small := costs.GraphSize{VertexCount: 10, EdgeCount: 20}
	large := costs.GraphSize{VertexCount: 10000, EdgeCount: 40000}
	cs, err := s.Costs(root, small)
	require.NoError(t, err)
	cl, err := s.Costs(root, large)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cl.Subtree, cs.Subtree)
}

func TestDefinedCombinations(t *testing.T) {
	b := syntax.NewBuilder()
	decl := b.Decl([]syntax.NodeID{
		b.SimpleDecl(b.VSet(), b.Var("v")),
		b.SimpleDecl(b.List(b.Lit(ir.Int(1)), b.Lit(ir.Int(2))), b.Var("x")),
	})
	s := newSession(t, testutil.NewChain().Graph, b, decl)

	n, err := s.DefinedCombinations(decl, chainSize(t))
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	_, err = s.DefinedCombinations(b.Node(decl).Children[0].Target, chainSize(t))
	require.Error(t, err)
	assert.True(t, IsMalformedQuery(err))
}

func TestIteratedCostsFollowDeclaredDomains(t *testing.T) {
	b := syntax.NewBuilder()
	body := b.Call("outDegree", b.Var("v"))
	decl := b.Decl([]syntax.NodeID{b.SimpleDecl(b.VSet(), b.Var("v"))})
	root := b.ListComp(decl, body)
	s := newSession(t, testutil.NewChain().Graph, b, root)

	c, err := s.Costs(body, chainSize(t))
	require.NoError(t, err)
	assert.Equal(t, c.Own*3, c.Iterated, "evaluated once per vertex")
}

func TestSearchCardinality(t *testing.T) {
	b := syntax.NewBuilder()
	root := b.Forward(b.Var("a"), b.Star(b.Edges(graph.Out)))
	s := newSession(t, testutil.NewChain().Graph, b, root)

	size := costs.GraphSize{VertexCount: 250, EdgeCount: 500}
	card, err := s.Cardinality(root, size)
	require.NoError(t, err)
	assert.Equal(t, costs.Clamp(0.1*250), card)
}

func TestSelectivityOfTypedEdges(t *testing.T) {
	b := syntax.NewBuilder()
	p := b.Edges(graph.Out, b.Type("T1"))
	root := b.Forward(b.Var("a"), p)
	s := newSession(t, testutil.NewChain().Graph, b, root)

	sel, err := s.Selectivity(p, chainSize(t))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sel, 1e-9)
}

func TestExplainGolden(t *testing.T) {
	b := syntax.NewBuilder()
	a := b.Var("a")
	c := b.Var("c")
	root := b.Exists(a, c, t1t2(b))
	s := newSession(t, testutil.NewChain().Graph, b, root)

	plan, err := s.Explain(chainSize(t))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "chain_explain", []byte(plan.Text()))

	data, err := json.Marshal(plan)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"PathExistence"`)
}

func TestExplainMarksSharedNodes(t *testing.T) {
	b := syntax.NewBuilder()
	shared := b.Call("plus", b.Lit(ir.Int(1)), b.Lit(ir.Int(2)))
	root := b.List(shared, shared)
	s := newSession(t, testutil.NewChain().Graph, b, root)

	plan, err := s.Explain(costs.GraphSize{})
	require.NoError(t, err)
	require.Len(t, plan.Children, 2)
	assert.False(t, plan.Children[0].Shared)
	assert.NotEmpty(t, plan.Children[0].Children)
	assert.True(t, plan.Children[1].Shared)
	assert.Empty(t, plan.Children[1].Children)
}

func TestAutomatonOfPathExpression(t *testing.T) {
	c := testutil.NewChain()
	b := syntax.NewBuilder()
	root := b.Forward(b.Var("a"), t1t2(b))
	s := newSession(t, c.Graph, b, root)

	nfa, dfa, err := s.Automaton(t.Context(), root, map[string]ir.Value{"a": c.A})
	require.NoError(t, err)
	require.NotNil(t, nfa)
	require.NotNil(t, dfa)

	_, _, err = s.Automaton(t.Context(), b.Node(root).Children[0].Target, nil)
	require.Error(t, err)
	assert.True(t, IsMalformedQuery(err))
}
