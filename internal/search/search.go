// Package search runs automaton-guided reachability over a host graph.
//
// The search explores (vertex, state) pairs breadth first, starting from
// the start element in the automaton's start state. A vertex is reached
// when it is paired with a final state. Every pair is expanded at most
// once, so searches terminate on cyclic graphs after at most
// |V| x |states| steps.
//
// Start and target elements are vertices or edges. An edge stands for its
// end vertices: a search from an edge starts at both of them, and an edge
// target is reached when either end is.
//
// Epsilon transitions change the state only. Vertex transitions check the
// current vertex and change the state. Edge transitions follow an incidence
// of the current vertex that passes the transition's direction, type, role
// and aggregation filters and its runtime guard. When a view is given, only
// the vertices and edges it contains are visited.
package search

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/greql/internal/automaton"
	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
)

// cancelCheckInterval is the number of expanded pairs between context checks.
const cancelCheckInterval = 1024

// Forward returns the vertices reachable from start along a path accepted
// by a. It works for NFAs and DFAs alike. A start element outside the graph
// or view yields the empty set.
func Forward(ctx context.Context, g graph.Graph, view graph.View, a automaton.Automaton, start ir.Value) (*ir.Set, error) {
	return collect(ctx, "forward", g, view, a, start)
}

// ForwardNFA is Forward over an NFA without determinizing it first.
func ForwardNFA(ctx context.Context, g graph.Graph, view graph.View, n *automaton.NFA, start ir.Value) (*ir.Set, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return collect(ctx, "forward_nfa", g, view, n, start)
}

// Backward returns the vertices from which target is reachable. reversed
// must accept the reversed paths of the path description, as built by
// automaton.Reverse (optionally determinized).
func Backward(ctx context.Context, g graph.Graph, view graph.View, reversed automaton.Automaton, target ir.Value) (*ir.Set, error) {
	return collect(ctx, "backward", g, view, reversed, target)
}

// Exists reports whether target is reachable from start along a path
// accepted by a. The search stops at the first acceptance of target.
func Exists(ctx context.Context, g graph.Graph, view graph.View, a automaton.Automaton, start, target ir.Value) (bool, error) {
	goals, err := Ends(g, view, target)
	if err != nil || len(goals) == 0 {
		return false, err
	}
	found := false
	_, err = run(ctx, "exists", g, view, a, start, func(v ir.Vertex) bool {
		if slices.Contains(goals, v) {
			found = true
			return true
		}
		return false
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Ends returns the visible vertices element el stands for in a search: el
// itself for a vertex, the distinct ends of el for an edge. Elements outside
// the graph or view have none. Any other value is an *ir.TypeError.
func Ends(g graph.Graph, view graph.View, el ir.Value) ([]ir.Vertex, error) {
	switch x := el.(type) {
	case ir.Vertex:
		if !graph.VisibleVertex(g, view, x) {
			return nil, nil
		}
		return []ir.Vertex{x}, nil
	case ir.Edge:
		if !graph.VisibleEdge(g, view, x) {
			return nil, nil
		}
		alpha, err := g.Alpha(x)
		if err != nil {
			return nil, err
		}
		omega, err := g.Omega(x)
		if err != nil {
			return nil, err
		}
		var ends []ir.Vertex
		for _, v := range []ir.Vertex{alpha, omega} {
			if graph.VisibleVertex(g, view, v) && !slices.Contains(ends, v) {
				ends = append(ends, v)
			}
		}
		return ends, nil
	}
	return nil, &ir.TypeError{Want: "Vertex or Edge", Got: ir.KindName(el)}
}

func collect(ctx context.Context, shape string, g graph.Graph, view graph.View, a automaton.Automaton, start ir.Value) (*ir.Set, error) {
	b := ir.NewSetBuilder(0)
	_, err := run(ctx, shape, g, view, a, start, func(v ir.Vertex) bool {
		b.Add(v)
		return false
	})
	if err != nil {
		return nil, err
	}
	return b.Build(), nil
}

type pair struct {
	v ir.Vertex
	s automaton.StateID
}

type walker struct {
	g    graph.Graph
	view graph.View
	a    automaton.Automaton

	seen  map[pair]bool
	queue []pair
	// incidences caches the visible incidences per expanded vertex.
	incidences map[ir.Vertex][]graph.Incidence
}

func (w *walker) push(p pair) {
	if w.seen[p] {
		return
	}
	w.seen[p] = true
	w.queue = append(w.queue, p)
}

func (w *walker) incidencesOf(v ir.Vertex) []graph.Incidence {
	incs, ok := w.incidences[v]
	if !ok {
		incs = slices.Collect(graph.IncidencesIn(w.g, w.view, v, graph.Any))
		w.incidences[v] = incs
	}
	return incs
}

// run drives the search and calls accept for every vertex paired with a
// final state, once per vertex. accept returns true to stop early.
// It returns the number of expanded pairs.
func run(ctx context.Context, shape string, g graph.Graph, view graph.View, a automaton.Automaton, start ir.Value, accept func(ir.Vertex) bool) (visited int, err error) {
	began := time.Now()
	ctx, span := startSearchSpan(ctx, shape, ir.Format(start), a.NumStates())
	defer span.End()

	reached := 0
	defer func() {
		setSearchSpanResult(span, visited, reached)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		recordSearchMetrics(ctx, shape, time.Since(began), visited, err == nil)
		slog.Debug("search finished",
			"shape", shape,
			"start", ir.Format(start),
			"states", a.NumStates(),
			"visited", visited,
			"reached", reached,
		)
	}()

	seeds, err := Ends(g, view, start)
	if err != nil || len(seeds) == 0 {
		return 0, err
	}

	w := &walker{
		g:          g,
		view:       view,
		a:          a,
		seen:       make(map[pair]bool),
		incidences: make(map[ir.Vertex][]graph.Incidence),
	}
	accepted := make(map[ir.Vertex]bool)
	for _, v := range seeds {
		w.push(pair{v, a.StartState()})
	}

	for len(w.queue) > 0 {
		p := w.queue[0]
		w.queue = w.queue[1:]
		visited++
		if visited%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return visited, err
			}
		}

		if a.IsFinal(p.s) && !accepted[p.v] {
			accepted[p.v] = true
			reached++
			if accept(p.v) {
				return visited, nil
			}
		}

		for _, t := range a.Transitions(p.s) {
			switch tr := t.(type) {
			case automaton.Epsilon:
				w.push(pair{p.v, tr.To})
			case automaton.VertexTransition:
				ok, err := tr.Accepts(g, p.v)
				if err != nil {
					return visited, err
				}
				if ok {
					w.push(pair{p.v, tr.To})
				}
			case automaton.EdgeTransition:
				for _, inc := range w.incidencesOf(p.v) {
					if w.seen[pair{inc.That, tr.To}] {
						continue
					}
					ok, err := tr.Accepts(g, inc)
					if err != nil {
						return visited, err
					}
					if ok {
						w.push(pair{inc.That, tr.To})
					}
				}
			}
		}
	}
	return visited, nil
}
