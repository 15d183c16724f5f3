package compiler

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/greql/internal/funlib"
	"github.com/roach88/greql/internal/syntax"
)

// Validation error codes (E200-E299)
const (
	ErrMissingRole        = "E201" // mandatory incidence missing
	ErrRoleMultiplicity   = "E202" // more children than the role admits
	ErrUnexpectedRole     = "E203" // role not used by the node kind
	ErrMissingName        = "E204" // name payload required
	ErrMissingLiteral     = "E205" // literal without a value
	ErrChildKind          = "E206" // child of a kind the role does not admit
	ErrUnknownFunction    = "E207" // function not in the registry
	ErrFunctionArity      = "E208" // wrong number of arguments
	ErrDuplicateVariable  = "E209" // variable declared twice in one declaration
	ErrDeclarationCycle   = "E210" // declaration domains depend on each other
	ErrUnboundThisElement = "E211" // thisVertex/thisEdge outside a path restriction
)

// ValidationError represents a query validation error.
type ValidationError struct {
	Field   string        `json:"field"`
	Message string        `json:"message"`
	Code    string        `json:"code"`
	Node    syntax.NodeID `json:"node"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// arity bounds the number of children of one role. max < 0 is unbounded.
type arity struct{ min, max int }

var (
	one      = arity{1, 1}
	optional = arity{0, 1}
	many     = arity{0, -1}
	some     = arity{1, -1}
)

var pathRestrictions = map[syntax.Role]arity{
	syntax.RoleStartRestriction: many,
	syntax.RoleGoalRestriction:  many,
}

func withPathRestrictions(roles map[syntax.Role]arity) map[syntax.Role]arity {
	for r, a := range pathRestrictions {
		roles[r] = a
	}
	return roles
}

// shapes lists the roles each kind admits. Kinds missing from the table
// take no children.
var shapes = map[syntax.Kind]map[syntax.Role]arity{
	syntax.FunctionApplication:          {syntax.RoleArgument: many},
	syntax.ConditionalExpression:        {syntax.RoleCondition: one, syntax.RoleTrue: one, syntax.RoleFalse: one, syntax.RoleNull: optional},
	syntax.QuantifiedExpression:         {syntax.RoleDeclaration: one, syntax.RoleResult: one},
	syntax.SetComprehension:             {syntax.RoleDeclaration: one, syntax.RoleResult: one},
	syntax.ListComprehension:            {syntax.RoleDeclaration: one, syntax.RoleResult: one},
	syntax.MapComprehension:             {syntax.RoleDeclaration: one, syntax.RoleKey: one, syntax.RoleValue: one},
	syntax.LetExpression:                {syntax.RoleDefinition: many, syntax.RoleResult: one},
	syntax.WhereExpression:              {syntax.RoleDefinition: many, syntax.RoleResult: one},
	syntax.Definition:                   {syntax.RoleExpression: one},
	syntax.VertexSetExpression:          {syntax.RoleTypes: many},
	syntax.EdgeSetExpression:            {syntax.RoleTypes: many},
	syntax.EdgeRestriction:              {syntax.RoleTypes: many, syntax.RoleRoles: many, syntax.RolePredicate: optional},
	syntax.ListConstruction:             {syntax.RoleElement: many},
	syntax.SetConstruction:              {syntax.RoleElement: many},
	syntax.TupleConstruction:            {syntax.RoleElement: many},
	syntax.RecordConstruction:           {syntax.RoleElement: many},
	syntax.RecordElement:                {syntax.RoleExpression: one},
	syntax.ListRangeConstruction:        {syntax.RoleFirst: one, syntax.RoleLast: one},
	syntax.SubgraphRestrictedExpression: {syntax.RoleSubgraph: one, syntax.RoleExpression: one},
	syntax.VertexInducedSubgraph:        {syntax.RoleTypes: many},
	syntax.EdgeInducedSubgraph:          {syntax.RoleTypes: many},
	syntax.ExpressionDefinedSubgraph:    {syntax.RoleExpression: one},
	syntax.Declaration:                  {syntax.RoleSimple: many, syntax.RoleConstraint: many},
	syntax.SimpleDeclaration:            {syntax.RoleVariable: some, syntax.RoleDomain: one},
	syntax.Query:                        {syntax.RoleBound: many, syntax.RoleResult: one},
	syntax.ForwardVertexSet:             {syntax.RoleStart: one, syntax.RolePath: one},
	syntax.BackwardVertexSet:            {syntax.RoleTarget: one, syntax.RolePath: one},
	syntax.PathExistence:                {syntax.RoleStart: one, syntax.RoleTarget: one, syntax.RolePath: one},

	syntax.SimplePathDescription:             withPathRestrictions(map[syntax.Role]arity{syntax.RoleRestriction: optional}),
	syntax.EdgePathDescription:               withPathRestrictions(map[syntax.Role]arity{syntax.RoleEdge: one}),
	syntax.AggregationPathDescription:        withPathRestrictions(map[syntax.Role]arity{syntax.RoleRestriction: optional}),
	syntax.SequentialPathDescription:         withPathRestrictions(map[syntax.Role]arity{syntax.RoleSubPath: some}),
	syntax.AlternativePathDescription:        withPathRestrictions(map[syntax.Role]arity{syntax.RoleSubPath: some}),
	syntax.IteratedPathDescription:           withPathRestrictions(map[syntax.Role]arity{syntax.RoleSubPath: one}),
	syntax.OptionalPathDescription:           withPathRestrictions(map[syntax.Role]arity{syntax.RoleSubPath: one}),
	syntax.TransposedPathDescription:         withPathRestrictions(map[syntax.Role]arity{syntax.RoleSubPath: one}),
	syntax.ExponentiatedPathDescription:      withPathRestrictions(map[syntax.Role]arity{syntax.RoleSubPath: one, syntax.RoleExponent: one}),
	syntax.IntermediateVertexPathDescription: withPathRestrictions(map[syntax.Role]arity{syntax.RoleSubPath: {2, 2}, syntax.RoleIntermediate: one}),
}

// childKinds restricts the kinds admissible under a role.
var childKinds = map[syntax.Role]func(syntax.Kind) bool{
	syntax.RoleSimple:      is(syntax.SimpleDeclaration),
	syntax.RoleDeclaration: is(syntax.Declaration),
	syntax.RoleDefinition:  is(syntax.Definition),
	syntax.RoleVariable:    is(syntax.Variable),
	syntax.RoleBound:       is(syntax.Variable),
	syntax.RoleTypes:       is(syntax.TypeID),
	syntax.RoleRoles:       is(syntax.RoleID),
	syntax.RoleRestriction: is(syntax.EdgeRestriction),
	syntax.RolePath:        syntax.Kind.IsPathDescription,
	syntax.RoleSubPath:     syntax.Kind.IsPathDescription,
	syntax.RoleSubgraph:    syntax.Kind.IsSubgraphDefinition,
}

func is(kinds ...syntax.Kind) func(syntax.Kind) bool {
	return func(k syntax.Kind) bool { return slices.Contains(kinds, k) }
}

var named = map[syntax.Kind]bool{
	syntax.Variable:            true,
	syntax.Identifier:          true,
	syntax.FunctionApplication: true,
	syntax.Definition:          true,
	syntax.TypeID:              true,
	syntax.RoleID:              true,
	syntax.RecordElement:       true,
}

// Validate checks a compiled query graph against the shape rules of each
// node kind. Returns all errors found (does not fail-fast). A nil registry
// uses the built-in functions.
func Validate(g *syntax.Graph, funcs *funlib.Registry) []ValidationError {
	if funcs == nil {
		funcs = funlib.Default()
	}
	var errs []ValidationError
	add := func(n *syntax.Node, field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   n.Label() + field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Node:    n.ID,
		})
	}

	for _, n := range g.Nodes() {
		shape := shapes[n.Kind]
		counts := make(map[syntax.Role]int)
		for _, inc := range n.Children {
			counts[inc.Role]++
			if _, ok := shape[inc.Role]; !ok {
				if counts[inc.Role] == 1 {
					add(n, "."+inc.Role.String(), ErrUnexpectedRole, "%s takes no %q children", n.Kind, inc.Role)
				}
				continue
			}
			if admits := childKinds[inc.Role]; admits != nil {
				child := g.Node(inc.Target)
				if !admits(child.Kind) {
					add(n, "."+inc.Role.String(), ErrChildKind, "%s is not admissible as %q", child.Label(), inc.Role)
				}
			}
		}
		for _, role := range sortedRoles(shape) {
			a, c := shape[role], counts[role]
			switch {
			case c < a.min:
				add(n, "."+role.String(), ErrMissingRole, "%s requires %d %q children, has %d", n.Kind, a.min, role, c)
			case a.max >= 0 && c > a.max:
				add(n, "."+role.String(), ErrRoleMultiplicity, "%s admits at most %d %q children, has %d", n.Kind, a.max, role, c)
			}
		}

		if named[n.Kind] && n.Name == "" {
			add(n, ".name", ErrMissingName, "%s requires a name", n.Kind)
		}
		if n.Kind.IsLiteral() && n.Literal == nil {
			add(n, ".value", ErrMissingLiteral, "%s requires a value", n.Kind)
		}

		switch n.Kind {
		case syntax.FunctionApplication:
			if n.Name == "" {
				break
			}
			info, err := funcs.Lookup(n.Name)
			var ufe *funlib.UnknownFunctionError
			if errors.As(err, &ufe) {
				if ufe.Suggestion != "" {
					add(n, ".name", ErrUnknownFunction, "unknown function %q, did you mean %q?", n.Name, ufe.Suggestion)
				} else {
					add(n, ".name", ErrUnknownFunction, "unknown function %q", n.Name)
				}
				break
			}
			if err := info.CheckArity(counts[syntax.RoleArgument]); err != nil {
				add(n, ".args", ErrFunctionArity, "%v", err)
			}
		case syntax.Declaration:
			seen := make(map[string]bool)
			for _, sid := range g.Children(n.ID, syntax.RoleSimple) {
				for _, vid := range g.Children(sid, syntax.RoleVariable) {
					name := g.Node(vid).Name
					if seen[name] {
						add(n, ".simple", ErrDuplicateVariable, "variable %q declared twice", name)
					}
					seen[name] = true
				}
			}
		}
	}

	for _, w := range AnalyzeCycles(g) {
		if w.Level == LevelError {
			errs = append(errs, ValidationError{Field: w.Scope, Message: w.Message, Code: ErrDeclarationCycle, Node: w.Node})
		}
	}
	errs = append(errs, unboundThisElements(g)...)
	return errs
}

func sortedRoles(shape map[syntax.Role]arity) []syntax.Role {
	roles := make([]syntax.Role, 0, len(shape))
	for r := range shape {
		roles = append(roles, r)
	}
	slices.Sort(roles)
	return roles
}

// unboundThisElements reports thisVertex and thisEdge nodes not reachable
// through a path description's restriction, where the search binds them.
func unboundThisElements(g *syntax.Graph) []ValidationError {
	var errs []ValidationError
	covered := make(map[syntax.NodeID]bool)
	var mark func(id syntax.NodeID)
	mark = func(id syntax.NodeID) {
		if covered[id] {
			return
		}
		covered[id] = true
		for _, inc := range g.Node(id).Children {
			mark(inc.Target)
		}
	}
	for _, n := range g.Nodes() {
		if !n.Kind.IsPathDescription() {
			continue
		}
		for _, inc := range n.Children {
			switch inc.Role {
			case syntax.RoleRestriction, syntax.RoleStartRestriction, syntax.RoleGoalRestriction:
				mark(inc.Target)
			}
		}
	}
	for _, n := range g.Nodes() {
		if (n.Kind == syntax.ThisVertex || n.Kind == syntax.ThisEdge) && !covered[n.ID] {
			errs = append(errs, ValidationError{
				Field:   n.Label(),
				Message: fmt.Sprintf("%s is only bound inside path restrictions", n.Kind),
				Code:    ErrUnboundThisElement,
				Node:    n.ID,
			})
		}
	}
	return errs
}
