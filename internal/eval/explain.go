package eval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/greql/internal/automaton"
	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
)

// Plan is one node of the cost oracle's view of a query.
type Plan struct {
	ID          syntax.NodeID     `json:"id"`
	Kind        string            `json:"kind"`
	Name        string            `json:"name,omitempty"`
	Role        string            `json:"role,omitempty"`
	Costs       costs.VertexCosts `json:"costs"`
	Cardinality int64             `json:"cardinality"`
	Selectivity float64           `json:"selectivity"`
	Needed      []string          `json:"needed,omitempty"`
	Defined     []string          `json:"defined,omitempty"`
	// Shared marks a node already listed earlier in the plan; its children
	// are not repeated.
	Shared   bool    `json:"shared,omitempty"`
	Children []*Plan `json:"children,omitempty"`
}

// Explain returns the estimate tree of the query for a graph of the given
// size.
func (s *Session) Explain(size costs.GraphSize) (*Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x := newEstimator(s, size)
	seen := make(map[syntax.NodeID]bool)
	var build func(id syntax.NodeID, role string) *Plan
	build = func(id syntax.NodeID, role string) *Plan {
		e := s.evals[id]
		r := x.of(id)
		p := &Plan{
			ID:          id,
			Kind:        e.node.Kind.String(),
			Name:        e.node.Name,
			Role:        role,
			Costs:       r.costs,
			Cardinality: r.card,
			Selectivity: r.sel,
			Needed:      e.needed,
			Defined:     e.defined,
		}
		if seen[id] {
			p.Shared = true
			return p
		}
		seen[id] = true
		for _, inc := range e.node.Children {
			p.Children = append(p.Children, build(inc.Target, inc.Role.String()))
		}
		return p
	}
	return build(s.q.Root(), ""), nil
}

// Text renders the plan as an indented tree, one node per line:
//
//	Query#0 costs=1/1/57 card=1 sel=1
//	  result: ForwardVertexSet#5 costs=...
func (p *Plan) Text() string {
	var sb strings.Builder
	p.write(&sb, 0)
	return sb.String()
}

func (p *Plan) write(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if p.Role != "" {
		sb.WriteString(p.Role + ": ")
	}
	sb.WriteString(p.Kind + "#" + strconv.Itoa(int(p.ID)))
	if p.Name != "" {
		sb.WriteString("(" + p.Name + ")")
	}
	fmt.Fprintf(sb, " costs=%s card=%d sel=%s", p.Costs, p.Cardinality, strconv.FormatFloat(p.Selectivity, 'g', 4, 64))
	if len(p.Needed) > 0 {
		sb.WriteString(" needs=[" + strings.Join(p.Needed, ",") + "]")
	}
	if len(p.Defined) > 0 {
		sb.WriteString(" defines=[" + strings.Join(p.Defined, ",") + "]")
	}
	if p.Shared {
		sb.WriteString(" (shared)")
	}
	sb.WriteByte('\n')
	for _, c := range p.Children {
		c.write(sb, depth+1)
	}
}

// Automaton compiles the path description id, or the path of the path
// expression id, under the given external bindings and returns the NFA
// together with its DFA.
func (s *Session) Automaton(ctx context.Context, id syntax.NodeID, external map[string]ir.Value) (*automaton.NFA, *automaton.DFA, error) {
	n := s.q.Node(id)
	if n == nil {
		return nil, nil, newError(ErrCodeUnresolvedVariable, nil, "node %d has no evaluator", id)
	}
	switch n.Kind {
	case syntax.ForwardVertexSet, syntax.BackwardVertexSet, syntax.PathExistence:
		path, ok := s.q.Child(id, syntax.RolePath)
		if !ok {
			return nil, nil, newMalformedQuery(n, "%s requires a %q child", n.Kind, syntax.RolePath)
		}
		id, n = path, s.q.Node(path)
	}
	if !n.Kind.IsPathDescription() {
		return nil, nil, newMalformedQuery(n, "%s is not a path description", n.Kind)
	}

	v, err := s.EvaluateNode(ctx, id, external)
	if err != nil {
		return nil, nil, err
	}
	nfa := v.(ir.Opaque).Payload.(*automaton.NFA)
	dfa, err := automaton.Determinize(nfa)
	if err != nil {
		return nil, nil, classify(n, err)
	}
	return nfa, dfa, nil
}
