// Package syntax holds the parsed query as an attributed syntax graph.
//
// A Graph is an arena of Nodes indexed by dense NodeIDs. Nodes reference
// their children through typed incidences (Role + target id); a child may
// be shared by several parents, except that a path description node has at
// most one consuming parent. Graphs are immutable once built.
//
// The textual GReQL parser is not part of this module: graphs are built
// programmatically with Builder, decoded from YAML documents, or compiled
// from CUE documents by the compiler package.
package syntax

import (
	"fmt"
	"slices"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
)

// NodeID indexes a node in its Graph.
type NodeID int

// NoNode is the invalid node id.
const NoNode NodeID = -1

// Incidence links a parent to a child in a given role.
type Incidence struct {
	Role   Role
	Target NodeID
}

// Node is one vertex of the syntax graph. Which payload fields are
// meaningful depends on Kind.
type Node struct {
	ID   NodeID
	Kind Kind

	// Name holds variable, function, identifier, type, role, definition and
	// record component names.
	Name string
	// Literal holds the value of literal nodes.
	Literal ir.Value

	// Dir is the traversal direction of simple and edge path descriptions.
	Dir graph.Direction
	// Exact and Forbidden qualify TypeId nodes.
	Exact     bool
	Forbidden bool
	// Quantifier selects QuantifiedExpression semantics.
	Quantifier Quantifier
	// Plus marks a one-or-more IteratedPathDescription (star otherwise).
	Plus bool
	// Outward marks an AggregationPathDescription that runs from the whole
	// to the part.
	Outward bool

	Children []Incidence
}

// Graph is an immutable syntax graph.
type Graph struct {
	nodes   []*Node
	root    NodeID
	parents [][]Incidence
}

// Root returns the root node id.
func (g *Graph) Root() NodeID { return g.root }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with the given id, or nil if id is out of range.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Nodes returns all nodes in id order.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Children returns the ids of id's children in the given role, in order.
func (g *Graph) Children(id NodeID, role Role) []NodeID {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, inc := range n.Children {
		if inc.Role == role {
			out = append(out, inc.Target)
		}
	}
	return out
}

// Child returns the single child of id in role.
func (g *Graph) Child(id NodeID, role Role) (NodeID, bool) {
	ids := g.Children(id, role)
	if len(ids) == 0 {
		return NoNode, false
	}
	return ids[0], true
}

// Parents returns the incidences pointing at id, with Target set to the
// parent node.
func (g *Graph) Parents(id NodeID) []Incidence {
	if id < 0 || int(id) >= len(g.parents) {
		return nil
	}
	return g.parents[id]
}

// Walk visits the nodes reachable from the root in depth-first pre-order,
// each node once.
func (g *Graph) Walk(fn func(n *Node) bool) {
	seen := make([]bool, len(g.nodes))
	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		if seen[id] {
			return true
		}
		seen[id] = true
		n := g.nodes[id]
		if !fn(n) {
			return false
		}
		for _, inc := range n.Children {
			if !visit(inc.Target) {
				return false
			}
		}
		return true
	}
	visit(g.root)
}

// Label renders "Kind#id" or "Kind#id(name)" for diagnostics.
func (n *Node) Label() string {
	if n.Name != "" {
		return fmt.Sprintf("%s#%d(%s)", n.Kind, n.ID, n.Name)
	}
	return fmt.Sprintf("%s#%d", n.Kind, n.ID)
}

func newGraph(nodes []*Node, root NodeID) (*Graph, error) {
	g := &Graph{nodes: nodes, root: root, parents: make([][]Incidence, len(nodes))}
	if g.Node(root) == nil {
		return nil, fmt.Errorf("root node %d does not exist", root)
	}
	for _, n := range nodes {
		for _, inc := range n.Children {
			if g.Node(inc.Target) == nil {
				return nil, fmt.Errorf("%s: %s child %d does not exist", n.Label(), inc.Role, inc.Target)
			}
			g.parents[inc.Target] = append(g.parents[inc.Target], Incidence{Role: inc.Role, Target: n.ID})
		}
	}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	if err := ValidatePathOwnership(g); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) checkAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(g.nodes))
	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		switch color[id] {
		case grey:
			return fmt.Errorf("syntax graph has a cycle through %s", g.nodes[id].Label())
		case black:
			return nil
		}
		color[id] = grey
		for _, inc := range g.nodes[id].Children {
			if err := visit(inc.Target); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for id := range g.nodes {
		if err := visit(NodeID(id)); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePathOwnership checks that every path description node has at most
// one consuming parent. Automaton composition relies on it: a sub-automaton
// is owned by exactly one enclosing path description.
func ValidatePathOwnership(g *Graph) error {
	for _, n := range g.nodes {
		if !n.Kind.IsPathDescription() {
			continue
		}
		parents := g.Parents(n.ID)
		if len(parents) > 1 {
			owners := make([]string, len(parents))
			for i, p := range parents {
				owners[i] = g.nodes[p.Target].Label()
			}
			slices.Sort(owners)
			return fmt.Errorf("path description %s has %d consumers (%v); each path description must have a single owner",
				n.Label(), len(parents), owners)
		}
	}
	return nil
}
