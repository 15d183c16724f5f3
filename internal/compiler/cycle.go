package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/greql/internal/syntax"
)

// Cycle levels.
const (
	LevelWarning = "warning"
	LevelError   = "error"
)

// CycleWarning reports names of one scope that depend on each other.
//
// Declaration domains that read each other can never be ordered and are
// errors. A Let or Where definition that reads itself or a later sibling
// is a warning: it silently sees an outer binding of that name, if any.
type CycleWarning struct {
	Path    []string      `json:"path"`    // ["x", "y", "x"]
	Message string        `json:"message"` // Human-readable description
	Level   string        `json:"level"`   // "warning" or "error"
	Scope   string        `json:"scope"`   // label of the declaring node
	Node    syntax.NodeID `json:"node"`
}

// AnalyzeCycles performs static dependency analysis on the scopes of a
// query graph.
//
// For each Declaration the graph links a variable to the sibling variables
// its domain reads; for each Let/Where a definition is linked to the
// sibling definitions its expression reads. Strongly connected components
// (Tarjan) with more than one member, or a self-loop, are reported. Let and
// Where additionally report forward references, which are evaluated before
// the referenced definition is bound.
//
// References are collected syntactically, so a name shadowed by an inner
// declaration still counts.
func AnalyzeCycles(g *syntax.Graph) []CycleWarning {
	var warnings []CycleWarning
	for _, n := range g.Nodes() {
		switch n.Kind {
		case syntax.Declaration:
			deps, order := declarationGraph(g, n)
			for _, scc := range tarjanSCC(deps, order) {
				if len(scc) > 1 || hasSelfLoop(scc[0], deps) {
					w := cycleSCCToWarning(scc, deps)
					w.Level, w.Scope, w.Node = LevelError, n.Label(), n.ID
					w.Message = "declaration domains depend on each other: " + strings.Join(w.Path, " → ")
					warnings = append(warnings, w)
				}
			}
		case syntax.LetExpression, syntax.WhereExpression:
			warnings = append(warnings, definitionWarnings(g, n)...)
		}
	}
	return warnings
}

// dependencyGraph maps a name to the sibling names it reads.
type dependencyGraph map[string][]string

func declarationGraph(g *syntax.Graph, n *syntax.Node) (dependencyGraph, []string) {
	domains := make(map[string]syntax.NodeID)
	var order []string
	for _, sid := range g.Children(n.ID, syntax.RoleSimple) {
		domain, ok := g.Child(sid, syntax.RoleDomain)
		if !ok {
			continue
		}
		for _, vid := range g.Children(sid, syntax.RoleVariable) {
			name := g.Node(vid).Name
			if _, dup := domains[name]; !dup {
				order = append(order, name)
			}
			domains[name] = domain
		}
	}
	deps := make(dependencyGraph, len(order))
	for _, name := range order {
		deps[name] = []string{}
		for _, ref := range referencedNames(g, domains[name]) {
			if _, sibling := domains[ref]; sibling {
				deps[name] = append(deps[name], ref)
			}
		}
	}
	return deps, order
}

func definitionWarnings(g *syntax.Graph, n *syntax.Node) []CycleWarning {
	defs := g.Children(n.ID, syntax.RoleDefinition)
	position := make(map[string]int, len(defs))
	var order []string
	for i, id := range defs {
		name := g.Node(id).Name
		if _, dup := position[name]; !dup {
			order = append(order, name)
		}
		position[name] = i
	}

	var warnings []CycleWarning
	deps := make(dependencyGraph, len(order))
	for i, id := range defs {
		def := g.Node(id)
		if _, ok := deps[def.Name]; !ok {
			deps[def.Name] = []string{}
		}
		expr, ok := g.Child(id, syntax.RoleExpression)
		if !ok {
			continue
		}
		for _, ref := range referencedNames(g, expr) {
			at, sibling := position[ref]
			if !sibling {
				continue
			}
			deps[def.Name] = append(deps[def.Name], ref)
			if at >= i && ref != def.Name {
				warnings = append(warnings, CycleWarning{
					Path:    []string{def.Name, ref},
					Message: fmt.Sprintf("definition %q reads %q, which is bound after it", def.Name, ref),
					Level:   LevelWarning,
					Scope:   n.Label(),
					Node:    n.ID,
				})
			}
		}
	}
	for _, scc := range tarjanSCC(deps, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], deps) {
			w := cycleSCCToWarning(scc, deps)
			w.Level, w.Scope, w.Node = LevelWarning, n.Label(), n.ID
			warnings = append(warnings, w)
		}
	}
	return warnings
}

// referencedNames lists the distinct variable names read below id, in
// first-seen order.
func referencedNames(g *syntax.Graph, id syntax.NodeID) []string {
	var names []string
	seen := make(map[syntax.NodeID]bool)
	var walk func(id syntax.NodeID)
	walk = func(id syntax.NodeID) {
		if seen[id] {
			return
		}
		seen[id] = true
		n := g.Node(id)
		if n.Kind == syntax.Variable && !slices.Contains(names, n.Name) {
			names = append(names, n.Name)
		}
		for _, inc := range n.Children {
			walk(inc.Target)
		}
	}
	walk(id)
	return names
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order so results are deterministic.
//
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning with a cycle path
// through its members.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("%s depends on itself", name),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the first member, follow edges to other members until
// the start is reached again.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
