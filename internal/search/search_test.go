package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/greql/internal/automaton"
	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
	"github.com/roach88/greql/internal/testutil"
)

func types(t testing.TB, specs ...schema.TypeSpec) *schema.TypeCollection {
	t.Helper()
	tc, err := schema.NewTypeCollection(testutil.Schema(), specs...)
	require.NoError(t, err)
	return tc
}

func edges(t testing.TB, dir graph.Direction, name string) *automaton.NFA {
	return automaton.Edges(dir, types(t, schema.TypeSpec{Name: name}))
}

func vertices(s *ir.Set) []ir.Vertex {
	out := make([]ir.Vertex, 0, s.Len())
	for _, v := range s.Elements() {
		out = append(out, v.(ir.Vertex))
	}
	return out
}

func dfa(t testing.TB, n *automaton.NFA) *automaton.DFA {
	t.Helper()
	d, err := automaton.Determinize(n)
	require.NoError(t, err)
	return d
}

func TestChainScenario(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewChain()
	seq := automaton.Sequence(edges(t, graph.Out, "T1"), edges(t, graph.Out, "T2"))
	d := dfa(t, seq)

	got, err := Forward(ctx, c.Graph, nil, d, c.A)
	require.NoError(t, err)
	assert.Equal(t, []ir.Vertex{c.C}, vertices(got))

	ok, err := Exists(ctx, c.Graph, nil, d, c.A, c.C)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Exists(ctx, c.Graph, nil, d, c.A, c.B)
	require.NoError(t, err)
	assert.False(t, ok)

	back, err := Backward(ctx, c.Graph, nil, dfa(t, automaton.Reverse(seq)), c.C)
	require.NoError(t, err)
	assert.Equal(t, []ir.Vertex{c.A}, vertices(back))
}

func TestForbiddenTypeExcludesEdges(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewChain()
	notT2 := automaton.Edges(graph.Any, types(t, schema.TypeSpec{Name: "T2", Forbidden: true}))

	fromB, err := Forward(ctx, c.Graph, nil, notT2, c.B)
	require.NoError(t, err)
	assert.Equal(t, []ir.Vertex{c.A}, vertices(fromB), "only the T1 edge is followed")

	fromC, err := Forward(ctx, c.Graph, nil, notT2, c.C)
	require.NoError(t, err)
	assert.Zero(t, fromC.Len())
}

func TestIterationTerminatesOnCycles(t *testing.T) {
	g, vs := testutil.NewCycle(5)
	star := automaton.Iterated(edges(t, graph.Out, "T1"), false)

	got, err := Forward(context.Background(), g, nil, dfa(t, star), vs[2])
	require.NoError(t, err)
	assert.Equal(t, vs, vertices(got))
}

func TestViewRestrictsSearch(t *testing.T) {
	ctx := context.Background()
	g, vs := testutil.NewCycle(4)
	star := dfa(t, automaton.Iterated(edges(t, graph.Out, "T1"), true))

	view := graph.NewMarker()
	for _, v := range vs[:3] {
		view.MarkVertex(v)
	}
	for e := range g.Edges() {
		view.MarkEdge(e)
	}

	got, err := Forward(ctx, g, view, star, vs[0])
	require.NoError(t, err)
	assert.Equal(t, []ir.Vertex{vs[1], vs[2]}, vertices(got))

	outside, err := Forward(ctx, g, view, star, vs[3])
	require.NoError(t, err)
	assert.Zero(t, outside.Len())
}

func TestMissingStartIsEmpty(t *testing.T) {
	c := testutil.NewChain()
	got, err := Forward(context.Background(), c.Graph, nil, automaton.Empty(), ir.Vertex(99))
	require.NoError(t, err)
	assert.Zero(t, got.Len())
}

func TestEdgeElements(t *testing.T) {
	ctx := context.Background()
	c := testutil.NewChain()
	seq := automaton.Sequence(edges(t, graph.Out, "T1"), edges(t, graph.Out, "T2"))

	ends, err := Forward(ctx, c.Graph, nil, automaton.Empty(), c.AB)
	require.NoError(t, err)
	assert.Equal(t, []ir.Vertex{c.A, c.B}, vertices(ends), "the empty path reaches both ends")

	got, err := Forward(ctx, c.Graph, nil, dfa(t, seq), c.AB)
	require.NoError(t, err)
	assert.Equal(t, []ir.Vertex{c.C}, vertices(got))

	ok, err := Exists(ctx, c.Graph, nil, dfa(t, seq), c.A, c.BC)
	require.NoError(t, err)
	assert.True(t, ok, "omega of the target edge is reached")

	back, err := Backward(ctx, c.Graph, nil, dfa(t, automaton.Reverse(edges(t, graph.Out, "T1"))), c.BC)
	require.NoError(t, err)
	assert.Equal(t, []ir.Vertex{c.A}, vertices(back))
}

func TestEnds(t *testing.T) {
	c := testutil.NewChain()

	view := graph.NewMarker()
	view.MarkVertex(c.A)
	view.MarkEdge(c.AB)

	ends, err := Ends(c.Graph, view, c.AB)
	require.NoError(t, err)
	assert.Equal(t, []ir.Vertex{c.A}, ends, "ends outside the view are dropped")

	ends, err = Ends(c.Graph, view, c.BC)
	require.NoError(t, err)
	assert.Empty(t, ends)

	_, err = Ends(c.Graph, nil, ir.String("ab"))
	var te *ir.TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "string", te.Got)
}

type failingGuard struct{ err error }

func (g failingGuard) AcceptEdge(graph.Incidence) (bool, error) { return false, g.err }
func (failingGuard) GuardKey() string                           { return "fail" }

func TestGuardErrorPropagates(t *testing.T) {
	c := testutil.NewChain()
	boom := errors.New("boom")
	n := automaton.EdgeExpr(graph.Out, failingGuard{boom})

	_, err := Forward(context.Background(), c.Graph, nil, n, c.A)
	assert.ErrorIs(t, err, boom)
}

type edgeSetGuard map[ir.Edge]bool

func (g edgeSetGuard) AcceptEdge(inc graph.Incidence) (bool, error) { return g[inc.Edge], nil }
func (edgeSetGuard) GuardKey() string                               { return "set" }

func TestGuardFiltersEdges(t *testing.T) {
	c := testutil.NewChain()
	n := automaton.Iterated(automaton.EdgeExpr(graph.Any, edgeSetGuard{c.BC: true}), true)

	got, err := Forward(context.Background(), c.Graph, nil, dfa(t, n), c.B)
	require.NoError(t, err)
	assert.Equal(t, []ir.Vertex{c.B, c.C}, vertices(got), "B is reached again over C")
}

func TestCancelledContextStopsSearch(t *testing.T) {
	g, vs := testutil.NewCycle(3 * cancelCheckInterval)
	star := automaton.Iterated(edges(t, graph.Out, "T1"), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Forward(ctx, g, nil, star, vs[0])
	assert.ErrorIs(t, err, context.Canceled)
}

// randomPath builds a random path automaton over the fixture schema.
func randomPath(t testing.TB, r *rand.Rand, depth int) *automaton.NFA {
	dirs := []graph.Direction{graph.Any, graph.Out, graph.In}
	leaf := func() *automaton.NFA {
		switch r.IntN(5) {
		case 0:
			return automaton.Aggregation(r.IntN(2) == 0, nil, nil)
		case 1:
			return automaton.Edges(dirs[r.IntN(3)], types(t, schema.TypeSpec{Name: "T2", Forbidden: true}))
		default:
			name := []string{"T1", "T2", "T3"}[r.IntN(3)]
			return edges(t, dirs[r.IntN(3)], name)
		}
	}
	if depth == 0 {
		return leaf()
	}
	sub := func() *automaton.NFA { return randomPath(t, r, depth-1) }
	switch r.IntN(8) {
	case 0:
		return automaton.Sequence(sub(), sub())
	case 1:
		return automaton.Alternative(sub(), sub())
	case 2:
		return automaton.Iterated(sub(), r.IntN(2) == 0)
	case 3:
		return automaton.Optional(sub())
	case 4:
		n, err := automaton.Exponentiated(sub(), int64(r.IntN(3)))
		require.NoError(t, err)
		return n
	case 5:
		check := automaton.VertexTransition{Types: types(t, schema.TypeSpec{Name: "W"})}
		return automaton.Intermediate(sub(), check, sub())
	case 6:
		return automaton.AddGoalRestriction(sub(), automaton.VertexTransition{Types: types(t, schema.TypeSpec{Name: "W"})})
	default:
		return leaf()
	}
}

func TestSearchProperties(t *testing.T) {
	ctx := context.Background()
	for seed := uint64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			g := testutil.NewRandom(seed, 8, 14)
			r := rand.New(rand.NewPCG(seed, 42))
			n := randomPath(t, r, 3)
			d := dfa(t, n)
			rev := dfa(t, automaton.Reverse(n))

			forward := make(map[ir.Vertex]*ir.Set)
			for v := range g.Vertices() {
				viaDFA, err := Forward(ctx, g, nil, d, v)
				require.NoError(t, err)
				viaNFA, err := ForwardNFA(ctx, g, nil, n, v)
				require.NoError(t, err)
				assert.Equal(t, vertices(viaNFA), vertices(viaDFA), "NFA and DFA disagree from v%d", v)
				forward[v] = viaDFA
			}

			for target := range g.Vertices() {
				back, err := Backward(ctx, g, nil, rev, target)
				require.NoError(t, err)
				for v := range g.Vertices() {
					assert.Equal(t, forward[v].Contains(target), back.Contains(v),
						"backward/forward mismatch for v%d -> v%d", v, target)

					ok, err := Exists(ctx, g, nil, d, v, target)
					require.NoError(t, err)
					assert.Equal(t, forward[v].Contains(target), ok, "exists v%d -> v%d", v, target)
				}
			}
		})
	}
}

func TestExponentUnrolling(t *testing.T) {
	ctx := context.Background()
	for seed := uint64(1); seed <= 10; seed++ {
		g := testutil.NewRandom(seed, 7, 12)
		r := rand.New(rand.NewPCG(seed, 7))
		p := randomPath(t, r, 2)

		squared, err := automaton.Exponentiated(p, 2)
		require.NoError(t, err)
		zero, err := automaton.Exponentiated(p, 0)
		require.NoError(t, err)

		for v := range g.Vertices() {
			once, err := Forward(ctx, g, nil, p, v)
			require.NoError(t, err)
			want := ir.NewSetBuilder(0)
			for _, u := range once.Elements() {
				twice, err := Forward(ctx, g, nil, p, u.(ir.Vertex))
				require.NoError(t, err)
				for _, w := range twice.Elements() {
					want.Add(w)
				}
			}

			got, err := Forward(ctx, g, nil, dfa(t, squared), v)
			require.NoError(t, err)
			assert.Equal(t, vertices(want.Build()), vertices(got), "seed %d v%d", seed, v)

			only, err := Forward(ctx, g, nil, zero, v)
			require.NoError(t, err)
			assert.Equal(t, []ir.Vertex{v}, vertices(only))
		}
	}
}
