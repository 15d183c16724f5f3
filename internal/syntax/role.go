package syntax

import "fmt"

// Role types an incidence from a parent node to a child node.
// The role name doubles as the field name in query documents.
type Role int

const (
	RoleInvalid Role = iota
	RoleArgument
	RoleCondition
	RoleTrue
	RoleFalse
	RoleNull
	RoleDeclaration
	RoleResult
	RoleKey
	RoleValue
	RoleDefinition
	RoleExpression
	RoleSimple
	RoleVariable
	RoleDomain
	RoleConstraint
	RoleBound
	RoleTypes
	RoleRoles
	RolePredicate
	RoleElement
	RoleFirst
	RoleLast
	RoleSubgraph
	RoleStart
	RoleTarget
	RolePath
	RoleSubPath
	RoleRestriction
	RoleEdge
	RoleExponent
	RoleIntermediate
	RoleStartRestriction
	RoleGoalRestriction

	roleCount
)

var roleNames = [...]string{
	RoleInvalid:          "invalid",
	RoleArgument:         "args",
	RoleCondition:        "condition",
	RoleTrue:             "then",
	RoleFalse:            "else",
	RoleNull:             "null",
	RoleDeclaration:      "declaration",
	RoleResult:           "result",
	RoleKey:              "key",
	RoleValue:            "value",
	RoleDefinition:       "definitions",
	RoleExpression:       "expr",
	RoleSimple:           "simple",
	RoleVariable:         "vars",
	RoleDomain:           "domain",
	RoleConstraint:       "constraints",
	RoleBound:            "bound",
	RoleTypes:            "types",
	RoleRoles:            "roles",
	RolePredicate:        "predicate",
	RoleElement:          "elements",
	RoleFirst:            "first",
	RoleLast:             "last",
	RoleSubgraph:         "subgraph",
	RoleStart:            "start",
	RoleTarget:           "target",
	RolePath:             "path",
	RoleSubPath:          "sub",
	RoleRestriction:      "restriction",
	RoleEdge:             "edge",
	RoleExponent:         "exponent",
	RoleIntermediate:     "intermediate",
	RoleStartRestriction: "startRestriction",
	RoleGoalRestriction:  "goalRestriction",
}

// String returns the document field name of the role.
func (r Role) String() string {
	if r >= 0 && int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

var roleByName = func() map[string]Role {
	m := make(map[string]Role, len(roleNames))
	for r, name := range roleNames {
		if Role(r) != RoleInvalid {
			m[name] = Role(r)
		}
	}
	return m
}()

// ParseRole resolves a document field name to a role.
func ParseRole(name string) (Role, error) {
	if r, ok := roleByName[name]; ok {
		return r, nil
	}
	return RoleInvalid, fmt.Errorf("unknown role %q", name)
}
