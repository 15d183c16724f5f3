package eval

import (
	"maps"
	"slices"

	"github.com/roach88/greql/internal/syntax"
)

type nameSet map[string]bool

func (ns nameSet) addAll(names []string) {
	for _, n := range names {
		ns[n] = true
	}
}

func (ns nameSet) removeAll(names ...string) {
	for _, n := range names {
		delete(ns, n)
	}
}

func (ns nameSet) sorted() []string {
	if len(ns) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(ns))
}

// collectDeclarations indexes which expressions declare or define each
// variable name, for cardinality estimates of variable nodes.
func (s *Session) collectDeclarations() {
	s.domains = make(map[string][]syntax.NodeID)
	s.definitions = make(map[string][]syntax.NodeID)
	for _, n := range s.q.Nodes() {
		switch n.Kind {
		case syntax.SimpleDeclaration:
			domain, ok := s.q.Child(n.ID, syntax.RoleDomain)
			if !ok {
				continue
			}
			for _, v := range s.q.Children(n.ID, syntax.RoleVariable) {
				name := s.node(v).Name
				s.domains[name] = append(s.domains[name], domain)
			}
		case syntax.Definition:
			if expr, ok := s.q.Child(n.ID, syntax.RoleExpression); ok {
				s.definitions[n.Name] = append(s.definitions[n.Name], expr)
			}
		}
	}
}

// variables computes the variables node id reads without defining them
// (needed) and the variables it introduces for its consumers (defined).
// Results are memoized on the evaluator.
func (s *Session) variables(id syntax.NodeID) (needed, defined []string) {
	e := s.evals[id]
	if e.analyzed {
		return e.needed, e.defined
	}
	n := e.node

	fromChildren := func(roles ...syntax.Role) nameSet {
		ns := nameSet{}
		for _, inc := range n.Children {
			if len(roles) > 0 && !slices.Contains(roles, inc.Role) {
				continue
			}
			childNeeded, _ := s.variables(inc.Target)
			ns.addAll(childNeeded)
		}
		return ns
	}
	definedBy := func(role syntax.Role) []string {
		var out []string
		for _, c := range s.q.Children(n.ID, role) {
			_, d := s.variables(c)
			out = append(out, d...)
		}
		return out
	}

	var need nameSet
	var def []string
	switch n.Kind {
	case syntax.Variable:
		need = nameSet{n.Name: true}
	case syntax.ThisVertex:
		need = nameSet{ThisVertexName: true}
	case syntax.ThisEdge:
		need = nameSet{ThisEdgeName: true}
	case syntax.SimpleDeclaration:
		need = fromChildren(syntax.RoleDomain)
		for _, v := range s.q.Children(n.ID, syntax.RoleVariable) {
			def = append(def, s.node(v).Name)
		}
	case syntax.Declaration:
		def = definedBy(syntax.RoleSimple)
		need = fromChildren()
		need.removeAll(def...)
	case syntax.SetComprehension, syntax.ListComprehension, syntax.MapComprehension,
		syntax.QuantifiedExpression:
		need = fromChildren()
		need.removeAll(definedBy(syntax.RoleDeclaration)...)
	case syntax.LetExpression, syntax.WhereExpression:
		need = fromChildren()
		need.removeAll(definedBy(syntax.RoleDefinition)...)
	case syntax.Definition:
		need = fromChildren()
		def = []string{n.Name}
	case syntax.Query:
		// Bound variables are read from the caller's bindings, so the
		// root depends on them like any other reader.
		need = fromChildren(syntax.RoleResult)
		for _, v := range s.q.Children(n.ID, syntax.RoleBound) {
			need[s.node(v).Name] = true
		}
	default:
		need = fromChildren()
		if n.Kind.IsPathDescription() {
			// Restriction predicates see the candidate element; the
			// automaton itself does not depend on it.
			need.removeAll(ThisVertexName, ThisEdgeName)
		}
	}

	e.needed = need.sorted()
	slices.Sort(def)
	e.defined = slices.Compact(def)
	e.analyzed = true
	return e.needed, e.defined
}

// NeededVariables returns the sorted names of the variables node id reads
// from its enclosing scopes.
func (s *Session) NeededVariables(id syntax.NodeID) []string {
	needed, _ := s.variables(id)
	return needed
}

// DefinedVariables returns the sorted names of the variables node id
// introduces.
func (s *Session) DefinedVariables(id syntax.NodeID) []string {
	_, defined := s.variables(id)
	return defined
}
