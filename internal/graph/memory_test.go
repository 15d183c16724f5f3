package graph

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
)

func testSchema() *schema.Schema {
	return schema.New().
		MustAdd(schema.Class{Name: "Node", Kind: schema.VertexClass}).
		MustAdd(schema.Class{Name: "Abstract", Kind: schema.VertexClass, Abstract: true}).
		MustAdd(schema.Class{Name: "Link", Kind: schema.EdgeClass, From: "Node", To: "Node",
			FromRole: "src", ToRole: "dst"}).
		MustAdd(schema.Class{Name: "Contains", Kind: schema.EdgeClass, From: "Node", To: "Node",
			FromRole: "whole", ToRole: "part", FromAggregation: schema.AggregationComposite})
}

func TestMemoryAddAndIterate(t *testing.T) {
	g := NewMemory(testSchema())

	a, err := g.AddVertex("Node", ir.Record{"name": ir.String("a")})
	require.NoError(t, err)
	b, err := g.AddVertex("Node", nil)
	require.NoError(t, err)
	e, err := g.AddEdge("Link", a, b, nil)
	require.NoError(t, err)

	assert.Equal(t, []ir.Vertex{a, b}, slices.Collect(g.Vertices()))
	assert.Equal(t, []ir.Edge{e}, slices.Collect(g.Edges()))
	assert.Equal(t, 2, g.VertexCount())
	assert.Equal(t, 1, g.EdgeCount())

	alpha, err := g.Alpha(e)
	require.NoError(t, err)
	assert.Equal(t, a, alpha)

	name, err := g.Attribute(a, "name")
	require.NoError(t, err)
	assert.Equal(t, ir.String("a"), name)

	missing, err := g.Attribute(b, "name")
	require.NoError(t, err)
	assert.Equal(t, ir.Null{}, missing)
}

func TestMemoryIncidences(t *testing.T) {
	g := NewMemory(testSchema())
	a, _ := g.AddVertex("Node", nil)
	b, _ := g.AddVertex("Node", nil)
	e, _ := g.AddEdge("Contains", a, b, nil)

	out := slices.Collect(g.Incidences(a, Out))
	require.Len(t, out, 1)
	assert.Equal(t, Incidence{
		Edge: e, This: a, That: b, Dir: Out,
		ThisRole: "whole", ThatRole: "part",
		ThisAggregation: schema.AggregationComposite, ThatAggregation: schema.AggregationNone,
	}, out[0])

	assert.Empty(t, slices.Collect(g.Incidences(a, In)))

	in := slices.Collect(g.Incidences(b, Any))
	require.Len(t, in, 1)
	assert.Equal(t, In, in[0].Dir)
	assert.Equal(t, a, in[0].That)
	assert.Equal(t, "whole", in[0].ThatRole)
}

func TestMemorySelfLoop(t *testing.T) {
	g := NewMemory(testSchema())
	a, _ := g.AddVertex("Node", nil)
	_, err := g.AddEdge("Link", a, a, nil)
	require.NoError(t, err)

	assert.Len(t, slices.Collect(g.Incidences(a, Any)), 2)
	assert.Len(t, slices.Collect(g.Incidences(a, Out)), 1)
	assert.Len(t, slices.Collect(g.Incidences(a, In)), 1)
}

func TestMemoryRejectsInvalidElements(t *testing.T) {
	g := NewMemory(testSchema())
	a, _ := g.AddVertex("Node", nil)

	_, err := g.AddVertex("Abstract", nil)
	assert.Error(t, err)
	_, err = g.AddVertex("Link", nil)
	assert.Error(t, err)
	_, err = g.AddVertex("Missing", nil)
	assert.ErrorIs(t, err, schema.ErrUnknownClass)

	_, err = g.AddEdge("Link", a, 99, nil)
	assert.ErrorIs(t, err, ErrNoSuchElement)

	// Failed adds do not consume ids.
	b, err := g.AddVertex("Node", nil)
	require.NoError(t, err)
	assert.Equal(t, a+1, b)
}

func TestMemoryVersionBumpsOnWrite(t *testing.T) {
	g := NewMemory(testSchema())
	v0 := g.Version()

	a, _ := g.AddVertex("Node", nil)
	v1 := g.Version()
	assert.Greater(t, v1, v0)

	require.NoError(t, g.SetAttribute(a, "x", ir.Int(1)))
	v2 := g.Version()
	assert.Greater(t, v2, v1)

	require.NoError(t, g.RemoveVertex(a))
	assert.Greater(t, g.Version(), v2)
	assert.False(t, g.ContainsVertex(a))
}

func TestMemoryRemoveVertexRemovesEdges(t *testing.T) {
	g := NewMemory(testSchema())
	a, _ := g.AddVertex("Node", nil)
	b, _ := g.AddVertex("Node", nil)
	e, _ := g.AddEdge("Link", a, b, nil)

	require.NoError(t, g.RemoveVertex(a))
	assert.False(t, g.ContainsEdge(e))
	assert.Empty(t, slices.Collect(g.Incidences(b, Any)))
}

func TestMemoryPutKeepsIDs(t *testing.T) {
	g := NewMemory(testSchema())
	require.NoError(t, g.PutVertex(10, "Node", nil))
	require.NoError(t, g.PutVertex(3, "Node", nil))
	require.NoError(t, g.PutEdge(7, "Link", 10, 3, nil))

	assert.Equal(t, []ir.Vertex{3, 10}, slices.Collect(g.Vertices()))
	assert.Error(t, g.PutVertex(3, "Node", nil))

	next, err := g.AddVertex("Node", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Vertex(11), next)
}

func TestMarkerView(t *testing.T) {
	g := NewMemory(testSchema())
	a, _ := g.AddVertex("Node", nil)
	b, _ := g.AddVertex("Node", nil)
	c, _ := g.AddVertex("Node", nil)
	ab, _ := g.AddEdge("Link", a, b, nil)
	_, _ = g.AddEdge("Link", a, c, nil)

	m := NewMarker()
	m.MarkVertex(a)
	m.MarkVertex(b)
	m.MarkVertex(c)
	m.MarkEdge(ab)

	assert.NotEqual(t, m.ID(), NewMarker().ID())
	assert.Equal(t, []ir.Vertex{a, b, c}, slices.Collect(VerticesIn(g, m)))
	assert.Equal(t, []ir.Edge{ab}, slices.Collect(EdgesIn(g, m)))

	incs := slices.Collect(IncidencesIn(g, m, a, Out))
	require.Len(t, incs, 1)
	assert.Equal(t, b, incs[0].That)

	assert.Len(t, slices.Collect(IncidencesIn(g, nil, a, Out)), 2)
	assert.True(t, VisibleVertex(g, nil, a))
	assert.False(t, VisibleVertex(g, m, 42))
}

func TestDirection(t *testing.T) {
	assert.Equal(t, In, Out.Reverse())
	assert.Equal(t, Any, Any.Reverse())
	assert.True(t, Any.Matches(In))
	assert.False(t, Out.Matches(In))

	for _, d := range []Direction{Any, Out, In} {
		got, err := ParseDirection(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
}
