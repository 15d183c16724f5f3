package eval

import (
	"slices"

	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
)

type declVar struct {
	name   string
	domain syntax.NodeID
}

// declPlan is the static iteration order of a Declaration: variables
// sorted so that every domain only reads variables bound before it, and
// each constraint attached to the innermost level it depends on.
type declPlan struct {
	vars []declVar
	// pre holds constraints that read none of the declared variables.
	pre []syntax.NodeID
	// checks[i] holds constraints checked once vars[i] is bound.
	checks [][]syntax.NodeID
}

func (s *Session) planFor(id syntax.NodeID) (*declPlan, error) {
	e, err := s.evaluator(nil, id)
	if err != nil {
		return nil, err
	}
	if e.plan != nil {
		return e.plan, nil
	}
	n := e.node
	if n.Kind != syntax.Declaration {
		return nil, newMalformedQuery(n, "expected a Declaration, got %s", n.Kind)
	}

	var declared []declVar
	for _, sid := range s.q.Children(n.ID, syntax.RoleSimple) {
		simple := s.node(sid)
		if simple.Kind != syntax.SimpleDeclaration {
			return nil, newMalformedQuery(n, "declaration child %s is not a SimpleDeclaration", simple.Label())
		}
		domain, err := s.child(simple, syntax.RoleDomain)
		if err != nil {
			return nil, err
		}
		for _, vid := range s.q.Children(sid, syntax.RoleVariable) {
			name := s.node(vid).Name
			if slices.ContainsFunc(declared, func(d declVar) bool { return d.name == name }) {
				return nil, newMalformedQuery(n, "variable %q declared twice", name)
			}
			declared = append(declared, declVar{name: name, domain: domain})
		}
	}

	ordered, err := s.orderVars(n, declared)
	if err != nil {
		return nil, err
	}

	plan := &declPlan{vars: ordered, checks: make([][]syntax.NodeID, len(ordered))}
	for _, cid := range s.q.Children(n.ID, syntax.RoleConstraint) {
		level := -1
		for _, name := range s.NeededVariables(cid) {
			if i := slices.IndexFunc(ordered, func(d declVar) bool { return d.name == name }); i > level {
				level = i
			}
		}
		if level < 0 {
			plan.pre = append(plan.pre, cid)
		} else {
			plan.checks[level] = append(plan.checks[level], cid)
		}
	}

	names := make([]string, len(ordered))
	for i, d := range ordered {
		names[i] = d.name
	}
	s.logger.Debug("declaration ordered",
		"session", s.id,
		"node", int(n.ID),
		"order", names,
		"constraints", len(s.q.Children(n.ID, syntax.RoleConstraint)),
	)
	e.plan = plan
	return plan, nil
}

// orderVars sorts declared variables topologically by domain dependencies,
// keeping declaration order among independent variables.
func (s *Session) orderVars(n *syntax.Node, declared []declVar) ([]declVar, error) {
	deps := make([][]string, len(declared))
	for i, d := range declared {
		for _, name := range s.NeededVariables(d.domain) {
			if slices.ContainsFunc(declared, func(o declVar) bool { return o.name == name }) {
				deps[i] = append(deps[i], name)
			}
		}
	}

	placed := make(map[string]bool, len(declared))
	ordered := make([]declVar, 0, len(declared))
	for len(ordered) < len(declared) {
		progress := false
		for i, d := range declared {
			if placed[d.name] {
				continue
			}
			ready := true
			for _, dep := range deps[i] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				placed[d.name] = true
				ordered = append(ordered, d)
				progress = true
				break
			}
		}
		if !progress {
			var cyclic []string
			for _, d := range declared {
				if !placed[d.name] {
					cyclic = append(cyclic, d.name)
				}
			}
			return nil, newMalformedQuery(n, "declaration domains depend on each other cyclically: %v", cyclic)
		}
	}
	return ordered, nil
}

// declLayer iterates the variable combinations of one Declaration as an
// odometer: the innermost variable cycles fastest, a domain is evaluated
// each time its level is entered, and constraints are checked as soon as
// every variable they read is bound.
type declLayer struct {
	s    *Session
	n    *syntax.Node
	plan *declPlan

	domains [][]ir.Value
	pos     []int
	pushed  []bool
	c       *Context

	started bool
	done    bool
}

func (s *Session) newDeclLayer(id syntax.NodeID) (*declLayer, error) {
	plan, err := s.planFor(id)
	if err != nil {
		return nil, err
	}
	k := len(plan.vars)
	return &declLayer{
		s:       s,
		n:       s.node(id),
		plan:    plan,
		domains: make([][]ir.Value, k),
		pos:     make([]int, k),
		pushed:  make([]bool, k),
	}, nil
}

// Reset rewinds to before the first combination.
func (l *declLayer) Reset() {
	l.Close()
	l.started, l.done = false, false
}

// Close pops every binding the layer holds. Iterate returns false after it.
func (l *declLayer) Close() {
	for i := len(l.pushed) - 1; i >= 0; i-- {
		l.unbind(i)
	}
	l.done = true
}

// Iterate binds the next combination satisfying the constraints and
// reports whether there was one.
func (l *declLayer) Iterate(c *Context) (bool, error) {
	if l.done {
		return false, nil
	}
	l.c = c
	k := len(l.plan.vars)

	var level int
	if !l.started {
		l.started = true
		ok, err := l.check(l.plan.pre)
		if err != nil || !ok {
			l.Close()
			return false, err
		}
		if k == 0 {
			l.done = true
			return true, nil
		}
		if err := l.enter(0); err != nil {
			l.Close()
			return false, err
		}
	} else {
		level = k - 1
	}

	for {
		if err := c.Err(); err != nil {
			l.Close()
			return false, err
		}
		l.pos[level]++
		if l.pos[level] >= len(l.domains[level]) {
			l.unbind(level)
			if level == 0 {
				l.Close()
				return false, nil
			}
			level--
			continue
		}

		l.bind(level)
		ok, err := l.check(l.plan.checks[level])
		if err != nil {
			l.Close()
			return false, err
		}
		if !ok {
			continue
		}
		if level == k-1 {
			return true, nil
		}
		level++
		if err := l.enter(level); err != nil {
			l.Close()
			return false, err
		}
	}
}

// enter evaluates the domain of level under the bindings of the outer
// levels and rewinds the level.
func (l *declLayer) enter(level int) error {
	d := l.plan.vars[level]
	v, err := l.s.value(l.c, d.domain)
	if err != nil {
		return err
	}
	elems, err := ir.Elements(v)
	if err != nil {
		return newTypeMismatch(l.s.node(d.domain), "declaration domain", "collection", v)
	}
	l.domains[level] = elems
	l.pos[level] = -1
	return nil
}

func (l *declLayer) bind(level int) {
	d := l.plan.vars[level]
	v := l.domains[level][l.pos[level]]
	if l.pushed[level] {
		l.c.bindings.Set(d.name, v)
		return
	}
	l.c.bindings.Push(d.name, v)
	l.pushed[level] = true
}

func (l *declLayer) unbind(level int) {
	if !l.pushed[level] {
		return
	}
	l.c.bindings.Pop(l.plan.vars[level].name)
	l.pushed[level] = false
}

func (l *declLayer) check(constraints []syntax.NodeID) (bool, error) {
	for _, id := range constraints {
		v, err := l.s.value(l.c, id)
		if err != nil {
			return false, err
		}
		b, known, err := truth(l.s.node(id), "constraint", v)
		if err != nil {
			return false, err
		}
		if !known || !b {
			return false, nil
		}
	}
	return true, nil
}

// declarationValue lists the satisfying combinations as records mapping
// variable names to values.
func (s *Session) declarationValue(c *Context, n *syntax.Node) (ir.Value, error) {
	layer, err := s.newDeclLayer(n.ID)
	if err != nil {
		return nil, err
	}
	defer layer.Close()

	out := ir.List{}
	for {
		ok, err := layer.Iterate(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		r := make(ir.Record, len(layer.plan.vars))
		for _, d := range layer.plan.vars {
			v, _ := c.bindings.Lookup(d.name)
			r[d.name] = v
		}
		out = append(out, r)
	}
}
