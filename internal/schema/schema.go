// Package schema describes the class hierarchy of a host graph and the
// TypeCollection filter used by path descriptions, set expressions and
// subgraph definitions to accept or reject graph elements.
//
// Class names and role names are NFC normalised on entry, so two spellings
// of the same Unicode name always refer to the same class.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// ErrUnknownClass is returned when a class name is not declared.
var ErrUnknownClass = errors.New("unknown class")

// ElementKind distinguishes vertex classes from edge classes.
type ElementKind int

const (
	VertexClass ElementKind = iota
	EdgeClass
)

// String returns "vertex" or "edge".
func (k ElementKind) String() string {
	if k == EdgeClass {
		return "edge"
	}
	return "vertex"
}

// AggregationKind marks the whole side of an aggregation edge.
// The vertex at an end whose kind is not AggregationNone is the whole
// (the diamond end), the opposite vertex is the part.
type AggregationKind int

const (
	AggregationNone AggregationKind = iota
	AggregationShared
	AggregationComposite
)

// String returns the lowercase name used in fixtures and the SQLite store.
func (a AggregationKind) String() string {
	switch a {
	case AggregationShared:
		return "shared"
	case AggregationComposite:
		return "composite"
	default:
		return "none"
	}
}

// ParseAggregationKind parses the names produced by String.
// The empty string is AggregationNone.
func ParseAggregationKind(s string) (AggregationKind, error) {
	switch s {
	case "", "none":
		return AggregationNone, nil
	case "shared":
		return AggregationShared, nil
	case "composite":
		return AggregationComposite, nil
	}
	return AggregationNone, fmt.Errorf("invalid aggregation kind %q", s)
}

// Attribute declares a named attribute with a free-form domain name.
// Domains are informational; attribute values are not type-checked.
type Attribute struct {
	Name   string `json:"name" yaml:"name"`
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// Class is a vertex or edge class.
//
// For edge classes From/To name the vertex classes at the alpha and omega
// ends, FromRole/ToRole the role names of those ends and
// FromAggregation/ToAggregation their aggregation kinds.
type Class struct {
	Name       string
	Kind       ElementKind
	Abstract   bool
	Supers     []string
	Attributes []Attribute

	From, To                       string
	FromRole, ToRole               string
	FromAggregation, ToAggregation AggregationKind
}

// Schema is a set of classes with multiple inheritance.
// A Schema is append-only: classes can be added but never removed.
type Schema struct {
	classes map[string]*Class
	order   []string

	// subs caches the reflexive-transitive subclass closure per class.
	// Concurrent sessions may share one schema, so it is guarded by mu.
	mu   sync.Mutex
	subs map[string][]string
}

// New creates an empty schema.
func New() *Schema {
	return &Schema{
		classes: make(map[string]*Class),
		subs:    make(map[string][]string),
	}
}

// Normalize returns the NFC form of a class or role name.
func Normalize(name string) string {
	return norm.NFC.String(name)
}

// Add declares a class. Superclasses must already exist and be of the same
// kind; the endpoint classes of an edge class must be vertex classes.
func (s *Schema) Add(c Class) error {
	c.Name = Normalize(c.Name)
	if c.Name == "" {
		return errors.New("class name is required")
	}
	if _, dup := s.classes[c.Name]; dup {
		return fmt.Errorf("class %q already declared", c.Name)
	}

	supers := make([]string, len(c.Supers))
	for i, sup := range c.Supers {
		sup = Normalize(sup)
		parent, ok := s.classes[sup]
		if !ok {
			return fmt.Errorf("class %q: superclass %q: %w", c.Name, sup, ErrUnknownClass)
		}
		if parent.Kind != c.Kind {
			return fmt.Errorf("class %q: superclass %q is a %s class", c.Name, sup, parent.Kind)
		}
		supers[i] = sup
	}
	c.Supers = supers

	if c.Kind == EdgeClass {
		for _, end := range []*string{&c.From, &c.To} {
			if *end == "" {
				continue
			}
			*end = Normalize(*end)
			vc, ok := s.classes[*end]
			if !ok {
				return fmt.Errorf("edge class %q: endpoint %q: %w", c.Name, *end, ErrUnknownClass)
			}
			if vc.Kind != VertexClass {
				return fmt.Errorf("edge class %q: endpoint %q is not a vertex class", c.Name, *end)
			}
		}
		c.FromRole = Normalize(c.FromRole)
		c.ToRole = Normalize(c.ToRole)
	}

	cc := c
	s.classes[c.Name] = &cc
	s.order = append(s.order, c.Name)
	s.mu.Lock()
	clear(s.subs)
	s.mu.Unlock()
	return nil
}

// MustAdd is Add for fixtures; it panics on error.
func (s *Schema) MustAdd(c Class) *Schema {
	if err := s.Add(c); err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the class with the given name.
func (s *Schema) Lookup(name string) (*Class, bool) {
	c, ok := s.classes[Normalize(name)]
	return c, ok
}

// Classes returns all classes of the given kind in declaration order.
func (s *Schema) Classes(kind ElementKind) []*Class {
	var out []*Class
	for _, name := range s.order {
		if c := s.classes[name]; c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// All returns every class in declaration order.
func (s *Schema) All() []*Class {
	out := make([]*Class, len(s.order))
	for i, name := range s.order {
		out[i] = s.classes[name]
	}
	return out
}

// IsSubclassOf reports whether sub equals super or inherits from it.
func (s *Schema) IsSubclassOf(sub, super string) bool {
	sub, super = Normalize(sub), Normalize(super)
	if sub == super {
		_, ok := s.classes[sub]
		return ok
	}
	c, ok := s.classes[sub]
	if !ok {
		return false
	}
	for _, p := range c.Supers {
		if s.IsSubclassOf(p, super) {
			return true
		}
	}
	return false
}

// Subclasses returns name and all its (transitive) subclasses, sorted.
func (s *Schema) Subclasses(name string) []string {
	name = Normalize(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.subs[name]; ok {
		return cached
	}
	var out []string
	for _, cand := range s.order {
		if s.IsSubclassOf(cand, name) {
			out = append(out, cand)
		}
	}
	slices.Sort(out)
	s.subs[name] = out
	return out
}

// Attribute looks up an attribute declared on class or any superclass.
func (s *Schema) Attribute(class, attr string) (Attribute, bool) {
	c, ok := s.Lookup(class)
	if !ok {
		return Attribute{}, false
	}
	for _, a := range c.Attributes {
		if a.Name == attr {
			return a, true
		}
	}
	for _, p := range c.Supers {
		if a, ok := s.Attribute(p, attr); ok {
			return a, true
		}
	}
	return Attribute{}, false
}
