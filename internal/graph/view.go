package graph

import (
	"iter"
	"strconv"
	"sync/atomic"

	"github.com/roach88/greql/internal/ir"
)

// View is a traversal context restricting the visible part of a graph.
// ID distinguishes views for cache stamping; two views with the same ID
// must make the same elements visible.
type View interface {
	ID() uint64
	ContainsVertex(v ir.Vertex) bool
	ContainsEdge(e ir.Edge) bool
}

var markerIDs atomic.Uint64

// Marker is a boolean vertex/edge marker. It is the materialised result of
// a subgraph expression and implements View.
//
// A Marker is built once and then only read; it is not safe to mark
// elements while the marker is in use as a view.
type Marker struct {
	id       uint64
	vertices map[ir.Vertex]bool
	edges    map[ir.Edge]bool
}

// NewMarker creates an empty marker with a fresh view id.
func NewMarker() *Marker {
	return &Marker{
		id:       markerIDs.Add(1),
		vertices: make(map[ir.Vertex]bool),
		edges:    make(map[ir.Edge]bool),
	}
}

// ID implements View.
func (m *Marker) ID() uint64 { return m.id }

// MarkVertex marks v.
func (m *Marker) MarkVertex(v ir.Vertex) { m.vertices[v] = true }

// MarkEdge marks e.
func (m *Marker) MarkEdge(e ir.Edge) { m.edges[e] = true }

// ContainsVertex implements View.
func (m *Marker) ContainsVertex(v ir.Vertex) bool { return m.vertices[v] }

// ContainsEdge implements View.
func (m *Marker) ContainsEdge(e ir.Edge) bool { return m.edges[e] }

// VertexCount returns the number of marked vertices.
func (m *Marker) VertexCount() int { return len(m.vertices) }

// EdgeCount returns the number of marked edges.
func (m *Marker) EdgeCount() int { return len(m.edges) }

// CanonicalKey lets a marker be carried inside an ir.Opaque value.
func (m *Marker) CanonicalKey() string {
	return "view#" + strconv.FormatUint(m.id, 10)
}

// VisibleVertex reports whether v is part of g and visible in view.
func VisibleVertex(g Graph, view View, v ir.Vertex) bool {
	if !g.ContainsVertex(v) {
		return false
	}
	return view == nil || view.ContainsVertex(v)
}

// VisibleEdge reports whether e is part of g and visible in view.
func VisibleEdge(g Graph, view View, e ir.Edge) bool {
	if !g.ContainsEdge(e) {
		return false
	}
	return view == nil || view.ContainsEdge(e)
}

// VerticesIn yields the vertices of g visible in view.
func VerticesIn(g Graph, view View) iter.Seq[ir.Vertex] {
	if view == nil {
		return g.Vertices()
	}
	return func(yield func(ir.Vertex) bool) {
		for v := range g.Vertices() {
			if view.ContainsVertex(v) && !yield(v) {
				return
			}
		}
	}
}

// EdgesIn yields the edges of g visible in view.
func EdgesIn(g Graph, view View) iter.Seq[ir.Edge] {
	if view == nil {
		return g.Edges()
	}
	return func(yield func(ir.Edge) bool) {
		for e := range g.Edges() {
			if view.ContainsEdge(e) && !yield(e) {
				return
			}
		}
	}
}

// IncidencesIn yields the incidences at v whose edge and opposite vertex are
// both visible in view.
func IncidencesIn(g Graph, view View, v ir.Vertex, dir Direction) iter.Seq[Incidence] {
	if view == nil {
		return g.Incidences(v, dir)
	}
	return func(yield func(Incidence) bool) {
		for inc := range g.Incidences(v, dir) {
			if !view.ContainsEdge(inc.Edge) || !view.ContainsVertex(inc.That) {
				continue
			}
			if !yield(inc) {
				return
			}
		}
	}
}
