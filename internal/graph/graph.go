// Package graph defines the host graph boundary the query engine runs
// against, plus an in-memory reference implementation.
//
// Vertices and edges are identified by ir.Vertex and ir.Edge ids. Iteration
// is exposed as iter.Seq so callers can stop early without allocating.
// Traversal contexts (subgraph views) are modelled by View; a nil View means
// the whole graph is visible.
package graph

import (
	"errors"
	"fmt"
	"iter"

	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
)

// ErrNoSuchElement is returned for vertex or edge ids that are not part of
// the graph.
var ErrNoSuchElement = errors.New("no such graph element")

// Direction selects incidences relative to the vertex they are read from.
type Direction int

const (
	// Any matches both incoming and outgoing incidences.
	Any Direction = iota
	// Out matches incidences where the vertex is the edge's alpha.
	Out
	// In matches incidences where the vertex is the edge's omega.
	In
)

// String returns "any", "out" or "in".
func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	default:
		return "any"
	}
}

// Reverse swaps Out and In.
func (d Direction) Reverse() Direction {
	switch d {
	case Out:
		return In
	case In:
		return Out
	default:
		return Any
	}
}

// Matches reports whether an incidence with direction actual passes d.
func (d Direction) Matches(actual Direction) bool {
	return d == Any || d == actual
}

// ParseDirection parses the names produced by String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "any":
		return Any, nil
	case "out":
		return Out, nil
	case "in":
		return In, nil
	}
	return Any, fmt.Errorf("invalid direction %q", s)
}

// Incidence is an edge seen from one of its end vertices.
type Incidence struct {
	Edge ir.Edge
	// This is the vertex the incidence was read from, That the opposite end.
	This, That ir.Vertex
	// Dir is Out when This is the edge's alpha, In when it is the omega.
	Dir Direction

	ThisRole, ThatRole               string
	ThisAggregation, ThatAggregation schema.AggregationKind
}

// Graph is the read interface the evaluator consumes.
type Graph interface {
	Schema() *schema.Schema

	// Version changes whenever the graph is modified.
	Version() uint64

	Vertices() iter.Seq[ir.Vertex]
	Edges() iter.Seq[ir.Edge]
	// Incidences yields the incidences at v that match dir, in edge order.
	Incidences(v ir.Vertex, dir Direction) iter.Seq[Incidence]

	VertexCount() int
	EdgeCount() int
	ContainsVertex(v ir.Vertex) bool
	ContainsEdge(e ir.Edge) bool

	VertexClass(v ir.Vertex) (string, error)
	EdgeClass(e ir.Edge) (string, error)
	Alpha(e ir.Edge) (ir.Vertex, error)
	Omega(e ir.Edge) (ir.Vertex, error)

	// Attribute reads a vertex or edge attribute. Unset attributes are Null.
	Attribute(elem ir.Value, name string) (ir.Value, error)
}

// ClassOf returns the class name of a vertex or edge value.
func ClassOf(g Graph, elem ir.Value) (string, error) {
	switch el := elem.(type) {
	case ir.Vertex:
		return g.VertexClass(el)
	case ir.Edge:
		return g.EdgeClass(el)
	}
	return "", fmt.Errorf("%s is not a graph element", ir.KindName(elem))
}
