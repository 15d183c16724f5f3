package automaton

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DState is one DFA state: the set of NFA states it stands for and at most
// one outgoing transition per label. Transition targets are DFA state ids.
type DState struct {
	NFAStates   []StateID
	Final       bool
	Transitions []Transition
}

// DFA is the subset-construction result of an NFA.
type DFA struct {
	States []DState
	Start  StateID
}

// StartState implements Automaton.
func (d *DFA) StartState() StateID { return d.Start }

// IsFinal implements Automaton.
func (d *DFA) IsFinal(s StateID) bool { return d.States[s].Final }

// Transitions implements Automaton.
func (d *DFA) Transitions(s StateID) []Transition { return d.States[s].Transitions }

// NumStates implements Automaton.
func (d *DFA) NumStates() int { return len(d.States) }

// NumTransitions returns the total number of transitions.
func (d *DFA) NumTransitions() int {
	total := 0
	for _, s := range d.States {
		total += len(s.Transitions)
	}
	return total
}

// Determinize builds the DFA of n by subset construction.
//
// The alphabet is the set of transition labels (direction, type and role
// signature, guard identity). Transitions whose labels are equal are merged;
// the merged transition keeps the guard, which the search evaluates per
// visited element. Distinct labels may still match the same element, in which
// case the search follows each of them.
func Determinize(n *NFA) (*DFA, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	d := &DFA{}
	index := make(map[string]StateID)
	var worklist []StateID

	intern := func(set []StateID) StateID {
		key := setKey(set)
		if id, ok := index[key]; ok {
			return id
		}
		id := StateID(len(d.States))
		final := false
		for _, s := range set {
			if n.IsFinal(s) {
				final = true
				break
			}
		}
		d.States = append(d.States, DState{NFAStates: set, Final: final})
		index[key] = id
		worklist = append(worklist, id)
		return id
	}

	d.Start = intern(epsilonClosure(n, []StateID{n.Start}))

	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]

		type move struct {
			repr    Transition
			targets []StateID
		}
		moves := make(map[string]*move)
		for _, s := range d.States[cur].NFAStates {
			for _, t := range n.States[s].Transitions {
				label := t.Label()
				if label == "" {
					continue
				}
				m, ok := moves[label]
				if !ok {
					m = &move{repr: t}
					moves[label] = m
				}
				m.targets = append(m.targets, t.Target())
			}
		}

		labels := make([]string, 0, len(moves))
		for l := range moves {
			labels = append(labels, l)
		}
		slices.Sort(labels)

		for _, l := range labels {
			m := moves[l]
			to := intern(epsilonClosure(n, m.targets))
			d.States[cur].Transitions = append(d.States[cur].Transitions, m.repr.retarget(to))
		}
	}
	return d, nil
}

// epsilonClosure returns the sorted set of states reachable from seeds via
// epsilon transitions.
func epsilonClosure(n *NFA, seeds []StateID) []StateID {
	seen := make(map[StateID]bool, len(seeds))
	stack := slices.Clone(seeds)
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[s] {
			continue
		}
		seen[s] = true
		for _, t := range n.States[s].Transitions {
			if e, ok := t.(Epsilon); ok && !seen[e.To] {
				stack = append(stack, e.To)
			}
		}
	}
	out := make([]StateID, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

func setKey(set []StateID) string {
	var sb strings.Builder
	for i, s := range set {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(s)))
	}
	return sb.String()
}

// Dump renders an automaton in a stable text form for golden tests and the
// CLI. NFA and DFA dumps share the layout:
//
//	start 0 finals [2]
//	0: edge out {T1} -> 1
func Dump(a Automaton) string {
	var sb strings.Builder
	var finals []string
	for s := 0; s < a.NumStates(); s++ {
		if a.IsFinal(StateID(s)) {
			finals = append(finals, strconv.Itoa(s))
		}
	}
	kind := "nfa"
	d, isDFA := a.(*DFA)
	if isDFA {
		kind = "dfa"
	}
	fmt.Fprintf(&sb, "%s start %d finals [%s]\n", kind, a.StartState(), strings.Join(finals, " "))
	for s := 0; s < a.NumStates(); s++ {
		if isDFA {
			fmt.Fprintf(&sb, "%d {%s}\n", s, setKey(d.States[s].NFAStates))
		}
		for _, t := range a.Transitions(StateID(s)) {
			label := t.Label()
			if label == "" {
				label = "eps"
			}
			fmt.Fprintf(&sb, "  %d: %s -> %d\n", s, label, t.Target())
		}
	}
	return sb.String()
}
