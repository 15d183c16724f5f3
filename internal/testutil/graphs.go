// Package testutil provides host graph fixtures and deterministic
// generators shared by package tests.
package testutil

import (
	"math/rand/v2"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
)

// Schema returns the fixture schema:
//
//	vertex classes: V, W <: V
//	edge classes:   T1, T2, T3 <: T1 (V -> V, roles src/dst)
//	                Contains (V -> V, roles whole/part, composite at whole)
func Schema() *schema.Schema {
	return schema.New().
		MustAdd(schema.Class{Name: "V", Kind: schema.VertexClass,
			Attributes: []schema.Attribute{{Name: "name", Domain: "String"}, {Name: "weight", Domain: "Integer"}}}).
		MustAdd(schema.Class{Name: "W", Kind: schema.VertexClass, Supers: []string{"V"}}).
		MustAdd(schema.Class{Name: "T1", Kind: schema.EdgeClass, From: "V", To: "V", FromRole: "src", ToRole: "dst"}).
		MustAdd(schema.Class{Name: "T2", Kind: schema.EdgeClass, From: "V", To: "V", FromRole: "src", ToRole: "dst"}).
		MustAdd(schema.Class{Name: "T3", Kind: schema.EdgeClass, Supers: []string{"T1"}, From: "V", To: "V",
			FromRole: "src", ToRole: "dst"}).
		MustAdd(schema.Class{Name: "Contains", Kind: schema.EdgeClass, From: "V", To: "V",
			FromRole: "whole", ToRole: "part", FromAggregation: schema.AggregationComposite})
}

// Chain is the three-vertex scenario graph A -T1-> B -T2-> C.
type Chain struct {
	Graph   *graph.Memory
	A, B, C ir.Vertex
	AB, BC  ir.Edge
}

// NewChain builds the Chain fixture. Vertices carry a name attribute.
func NewChain() *Chain {
	g := graph.NewMemory(Schema())
	c := &Chain{Graph: g}
	c.A = mustVertex(g, "V", "A")
	c.B = mustVertex(g, "V", "B")
	c.C = mustVertex(g, "V", "C")
	c.AB = mustEdge(g, "T1", c.A, c.B)
	c.BC = mustEdge(g, "T2", c.B, c.C)
	return c
}

// NewCycle builds a ring v1 -T1-> v2 -T1-> ... -T1-> v1 with n vertices.
func NewCycle(n int) (*graph.Memory, []ir.Vertex) {
	g := graph.NewMemory(Schema())
	vs := make([]ir.Vertex, n)
	for i := range vs {
		vs[i] = mustVertex(g, "V", string(rune('a'+i%26)))
	}
	for i := range vs {
		mustEdge(g, "T1", vs[i], vs[(i+1)%n])
	}
	return g, vs
}

var edgeClasses = []string{"T1", "T2", "T3", "Contains"}

// NewRandom builds a pseudo-random graph with the given numbers of vertices
// and edges. Equal seeds give equal graphs.
func NewRandom(seed uint64, vertices, edges int) *graph.Memory {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	g := graph.NewMemory(Schema())
	vs := make([]ir.Vertex, vertices)
	for i := range vs {
		class := "V"
		if r.IntN(3) == 0 {
			class = "W"
		}
		vs[i] = mustVertex(g, class, "")
		if r.IntN(2) == 0 {
			if err := g.SetAttribute(vs[i], "weight", ir.Int(r.IntN(10))); err != nil {
				panic(err)
			}
		}
	}
	if vertices == 0 {
		return g
	}
	for range edges {
		mustEdge(g, edgeClasses[r.IntN(len(edgeClasses))], vs[r.IntN(vertices)], vs[r.IntN(vertices)])
	}
	return g
}

func mustVertex(g *graph.Memory, class, name string) ir.Vertex {
	var attrs ir.Record
	if name != "" {
		attrs = ir.Record{"name": ir.String(name)}
	}
	v, err := g.AddVertex(class, attrs)
	if err != nil {
		panic(err)
	}
	return v
}

func mustEdge(g *graph.Memory, class string, alpha, omega ir.Vertex) ir.Edge {
	e, err := g.AddEdge(class, alpha, omega, nil)
	if err != nil {
		panic(err)
	}
	return e
}
