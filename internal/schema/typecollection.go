package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// TypeSpec is one entry of a type restriction such as {A, B!, ^C}.
//
//   - Exact: match the named class only, not its subclasses (B!)
//   - Forbidden: reject instead of accept (^C)
type TypeSpec struct {
	Name      string
	Exact     bool
	Forbidden bool
}

// String renders the spec in restriction syntax.
func (t TypeSpec) String() string {
	var sb strings.Builder
	if t.Forbidden {
		sb.WriteByte('^')
	}
	sb.WriteString(t.Name)
	if t.Exact {
		sb.WriteByte('!')
	}
	return sb.String()
}

// TypeCollection decides whether a graph element class (and optionally the
// role at an incidence) passes a type restriction.
//
// Forbidden classes always take precedence over allowed ones. A collection
// without allowed entries and without forbidden entries accepts every class.
// A nil *TypeCollection behaves like the accept-all collection.
type TypeCollection struct {
	allowed   map[string]bool
	forbidden map[string]bool
	// restricted is true once an allowed set has been given. It stays true
	// when a combination empties the allowed set, so the result accepts nothing.
	restricted bool
	roles      map[string]bool
	// roleRestricted mirrors restricted for the role set.
	roleRestricted bool
}

// AnyType returns the collection accepting every class and role.
func AnyType() *TypeCollection {
	return &TypeCollection{}
}

// NewTypeCollection expands specs against s into a collection.
// Every named class must exist.
func NewTypeCollection(s *Schema, specs ...TypeSpec) (*TypeCollection, error) {
	tc := &TypeCollection{}
	for _, spec := range specs {
		name := Normalize(spec.Name)
		if _, ok := s.Lookup(name); !ok {
			return nil, fmt.Errorf("type restriction %s: %w", spec, ErrUnknownClass)
		}
		names := []string{name}
		if !spec.Exact {
			names = s.Subclasses(name)
		}
		target := &tc.allowed
		if spec.Forbidden {
			target = &tc.forbidden
		} else {
			tc.restricted = true
		}
		if *target == nil {
			*target = make(map[string]bool)
		}
		for _, n := range names {
			(*target)[n] = true
		}
	}
	return tc, nil
}

// WithRoles returns a copy of tc that also requires the role at the checked
// incidence end to be one of roles. No roles means any role.
func (tc *TypeCollection) WithRoles(roles ...string) *TypeCollection {
	out := tc.clone()
	if len(roles) == 0 {
		return out
	}
	want := make(map[string]bool, len(roles))
	for _, r := range roles {
		want[Normalize(r)] = true
	}
	return out.Combine(&TypeCollection{roles: want, roleRestricted: true})
}

func (tc *TypeCollection) clone() *TypeCollection {
	if tc == nil {
		return &TypeCollection{}
	}
	return &TypeCollection{
		allowed:        maps.Clone(tc.allowed),
		forbidden:      maps.Clone(tc.forbidden),
		restricted:     tc.restricted,
		roles:          maps.Clone(tc.roles),
		roleRestricted: tc.roleRestricted,
	}
}

// Accepts reports whether an element of the given class passes the filter.
func (tc *TypeCollection) Accepts(class string) bool {
	if tc == nil {
		return true
	}
	if tc.forbidden[class] {
		return false
	}
	if !tc.restricted {
		return true
	}
	return tc.allowed[class]
}

// AcceptsRole reports whether role passes the role restriction.
func (tc *TypeCollection) AcceptsRole(role string) bool {
	if tc == nil || !tc.roleRestricted {
		return true
	}
	return tc.roles[role]
}

// IsEmpty reports whether tc accepts every class and role.
func (tc *TypeCollection) IsEmpty() bool {
	return tc == nil || (!tc.restricted && len(tc.forbidden) == 0 && !tc.roleRestricted)
}

// HasRoles reports whether a role restriction is present.
func (tc *TypeCollection) HasRoles() bool {
	return tc != nil && tc.roleRestricted
}

// Combine returns the collection accepting what both tc and other accept.
// Forbidden sets are unioned, allowed sets intersected.
func (tc *TypeCollection) Combine(other *TypeCollection) *TypeCollection {
	if other.IsEmpty() {
		return tc.clone()
	}
	if tc.IsEmpty() {
		return other.clone()
	}
	out := tc.clone()
	for n := range other.forbidden {
		if out.forbidden == nil {
			out.forbidden = make(map[string]bool)
		}
		out.forbidden[n] = true
	}
	switch {
	case tc.restricted && other.restricted:
		inter := make(map[string]bool)
		for n := range tc.allowed {
			if other.allowed[n] {
				inter[n] = true
			}
		}
		out.allowed = inter
	case other.restricted:
		out.allowed = maps.Clone(other.allowed)
		out.restricted = true
	}
	switch {
	case tc.roleRestricted && other.roleRestricted:
		inter := make(map[string]bool)
		for r := range tc.roles {
			if other.roles[r] {
				inter[r] = true
			}
		}
		out.roles = inter
	case other.roleRestricted:
		out.roles = maps.Clone(other.roles)
		out.roleRestricted = true
	}
	return out
}

// Allowed returns the sorted allowed class names after forbidden ones are
// removed. The second result is false when every class is allowed.
func (tc *TypeCollection) Allowed() ([]string, bool) {
	if tc == nil || !tc.restricted {
		return nil, false
	}
	var out []string
	for n := range tc.allowed {
		if !tc.forbidden[n] {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out, true
}

// Forbidden returns the sorted forbidden class names.
func (tc *TypeCollection) Forbidden() []string {
	if tc == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(tc.forbidden))
}

// Roles returns the sorted role names, or nil when any role is accepted.
func (tc *TypeCollection) Roles() []string {
	if tc == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(tc.roles))
}

// String renders the expanded collection canonically, e.g.
// "{A,B,^C}@{src}". Equal collections render identically, so the string
// doubles as an automaton transition label.
func (tc *TypeCollection) String() string {
	if tc.IsEmpty() {
		return "{}"
	}
	var parts []string
	if allowed, ok := tc.Allowed(); ok {
		if len(allowed) == 0 {
			parts = append(parts, "∅")
		}
		parts = append(parts, allowed...)
	}
	for _, f := range tc.Forbidden() {
		parts = append(parts, "^"+f)
	}
	s := "{" + strings.Join(parts, ",") + "}"
	if tc.roleRestricted {
		s += "@{" + strings.Join(tc.Roles(), ",") + "}"
	}
	return s
}

// CanonicalKey lets a collection be carried inside an ir.Opaque value.
func (tc *TypeCollection) CanonicalKey() string {
	return tc.String()
}
