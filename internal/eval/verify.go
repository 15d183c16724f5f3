package eval

import (
	"context"

	"github.com/roach88/greql/internal/automaton"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/search"
	"github.com/roach88/greql/internal/syntax"
)

// VerifyAutomaton cross-checks the automaton of path description id (or of
// the path of path expression id) on the session's graph. From every
// vertex and every edge, searching the DFA must reach the same vertices as
// simulating the NFA. From each vertex reached from a vertex, the reversed
// automaton must lead back to that start. Disagreements are
// MALFORMED_AUTOMATON errors.
//
// Restriction predicates are evaluated under external, like Automaton.
func (s *Session) VerifyAutomaton(ctx context.Context, id syntax.NodeID, external map[string]ir.Value) error {
	nfa, dfa, err := s.Automaton(ctx, id, external)
	if err != nil {
		return err
	}
	n := s.q.Node(id)
	reversed, err := automaton.Determinize(automaton.Reverse(nfa))
	if err != nil {
		return classify(n, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bindings := NewBindings(s.clock)
	for _, name := range sortedKeys(external) {
		bindings.Push(name, external[name])
	}
	c := newContext(ctx, bindings)
	s.cur = c
	defer func() { s.cur = nil }()

	checked := 0
	for start := range s.g.Vertices() {
		viaDFA, err := search.Forward(ctx, s.g, c.View(), dfa, start)
		if err != nil {
			return classify(n, err)
		}
		viaNFA, err := search.ForwardNFA(ctx, s.g, c.View(), nfa, start)
		if err != nil {
			return classify(n, err)
		}
		if !ir.Equal(viaDFA, viaNFA) {
			return newError(ErrCodeMalformedAutomaton, n,
				"from %s the DFA reaches %s but the NFA reaches %s",
				ir.Format(start), ir.Format(viaDFA), ir.Format(viaNFA))
		}
		for _, el := range viaDFA.Elements() {
			back, err := search.Backward(ctx, s.g, c.View(), reversed, el.(ir.Vertex))
			if err != nil {
				return classify(n, err)
			}
			if !back.Contains(start) {
				return newError(ErrCodeMalformedAutomaton, n,
					"%s reaches %s but the reversed automaton does not lead back",
					ir.Format(start), ir.Format(el))
			}
		}
		checked++
	}
	for start := range s.g.Edges() {
		viaDFA, err := search.Forward(ctx, s.g, c.View(), dfa, start)
		if err != nil {
			return classify(n, err)
		}
		viaNFA, err := search.ForwardNFA(ctx, s.g, c.View(), nfa, start)
		if err != nil {
			return classify(n, err)
		}
		if !ir.Equal(viaDFA, viaNFA) {
			return newError(ErrCodeMalformedAutomaton, n,
				"from %s the DFA reaches %s but the NFA reaches %s",
				ir.Format(start), ir.Format(viaDFA), ir.Format(viaNFA))
		}
		checked++
	}
	s.logger.Debug("automaton verified",
		"session", s.id,
		"node", int(id),
		"starts", checked,
		"nfa_states", nfa.NumStates(),
		"dfa_states", dfa.NumStates(),
	)
	return nil
}
