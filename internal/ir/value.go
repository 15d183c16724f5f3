package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Value is a sealed interface representing a query value.
// Only the types declared in this file implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null is the absent value. Path operations treat a Null operand as an
// empty input rather than a fault.
type Null struct{}

func (Null) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Int is an integer value. Always int64.
type Int int64

func (Int) irValue() {}

// Double is a floating point value.
type Double float64

func (Double) irValue() {}

// String is a string value.
type String string

func (String) irValue() {}

// Vertex references a host graph vertex by id.
type Vertex int64

func (Vertex) irValue() {}

// Edge references a host graph edge by id.
type Edge int64

func (Edge) irValue() {}

// List is an ordered collection that may contain duplicates.
type List []Value

func (List) irValue() {}

// Tuple is a fixed-size heterogeneous sequence.
type Tuple []Value

func (Tuple) irValue() {}

// Record maps component names to values.
// Use SortedKeys() for deterministic iteration.
type Record map[string]Value

func (Record) irValue() {}

// SortedKeys returns the record component names in ascending order.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Opaque carries a host payload that is not a language value, such as a
// compiled automaton or a type collection. Label names the payload kind
// for diagnostics and participates in the canonical key together with the
// payload's identity.
type Opaque struct {
	Label   string
	Payload any
}

func (Opaque) irValue() {}

// Set is an immutable collection without duplicates. Elements are kept in
// canonical order, so iteration is deterministic.
type Set struct {
	elems []Value
	index map[string]int
}

func (*Set) irValue() {}

// NewSet builds a set from the given values, dropping duplicates.
func NewSet(vals ...Value) *Set {
	b := NewSetBuilder(len(vals))
	for _, v := range vals {
		b.Add(v)
	}
	return b.Build()
}

// EmptySet returns a set with no elements.
func EmptySet() *Set {
	return &Set{index: map[string]int{}}
}

// Len returns the number of elements.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.elems)
}

// Contains reports whether v is an element of the set.
func (s *Set) Contains(v Value) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[Key(v)]
	return ok
}

// Elements returns the elements in canonical order.
// The returned slice must not be modified.
func (s *Set) Elements() []Value {
	if s == nil {
		return nil
	}
	return s.elems
}

// SetBuilder accumulates set elements. Build may be called once.
type SetBuilder struct {
	elems []Value
	seen  map[string]bool
}

// NewSetBuilder creates a builder with the given capacity hint.
func NewSetBuilder(capacity int) *SetBuilder {
	return &SetBuilder{
		elems: make([]Value, 0, capacity),
		seen:  make(map[string]bool, capacity),
	}
}

// Add inserts v unless an equal value is already present.
// Returns true if the value was new.
func (b *SetBuilder) Add(v Value) bool {
	k := Key(v)
	if b.seen[k] {
		return false
	}
	b.seen[k] = true
	b.elems = append(b.elems, v)
	return true
}

// Len returns the number of distinct values added so far.
func (b *SetBuilder) Len() int {
	return len(b.elems)
}

// Build sorts the accumulated values canonically and returns the set.
func (b *SetBuilder) Build() *Set {
	slices.SortFunc(b.elems, Compare)
	index := make(map[string]int, len(b.elems))
	for i, v := range b.elems {
		index[Key(v)] = i
	}
	return &Set{elems: b.elems, index: index}
}

// Map is an immutable association of keys to values, ordered canonically by key.
type Map struct {
	keys  []Value
	vals  []Value
	index map[string]int
}

func (*Map) irValue() {}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value stored for key.
func (m *Map) Get(key Value) (Value, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[Key(key)]
	if !ok {
		return nil, false
	}
	return m.vals[i], true
}

// Entries returns keys and values in canonical key order.
func (m *Map) Entries() ([]Value, []Value) {
	if m == nil {
		return nil, nil
	}
	return m.keys, m.vals
}

// MapBuilder accumulates map entries. Later puts overwrite earlier ones.
type MapBuilder struct {
	entries map[string][2]Value
}

// NewMapBuilder creates an empty map builder.
func NewMapBuilder() *MapBuilder {
	return &MapBuilder{entries: make(map[string][2]Value)}
}

// Put stores value under key.
func (b *MapBuilder) Put(key, value Value) {
	b.entries[Key(key)] = [2]Value{key, value}
}

// Build returns the map in canonical key order.
func (b *MapBuilder) Build() *Map {
	keys := make([]Value, 0, len(b.entries))
	for _, e := range b.entries {
		keys = append(keys, e[0])
	}
	slices.SortFunc(keys, Compare)
	m := &Map{
		keys:  keys,
		vals:  make([]Value, len(keys)),
		index: make(map[string]int, len(keys)),
	}
	for i, k := range keys {
		kk := Key(k)
		m.vals[i] = b.entries[kk][1]
		m.index[kk] = i
	}
	return m
}

// KindName returns a short human-readable name of v's kind, used in
// diagnostics such as type mismatch messages.
func KindName(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Double:
		return "double"
	case String:
		return "string"
	case Vertex:
		return "vertex"
	case Edge:
		return "edge"
	case List:
		return "list"
	case Tuple:
		return "tuple"
	case Record:
		return "record"
	case *Set:
		return "set"
	case *Map:
		return "map"
	case Opaque:
		if val.Label != "" {
			return val.Label
		}
		return "opaque"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Format renders v in a compact human-readable form.
func Format(v Value) string {
	var sb strings.Builder
	writeFormat(&sb, v)
	return sb.String()
}

func writeFormat(sb *strings.Builder, v Value) {
	switch val := v.(type) {
	case nil, Null:
		sb.WriteString("null")
	case Bool:
		fmt.Fprintf(sb, "%t", bool(val))
	case Int:
		fmt.Fprintf(sb, "%d", int64(val))
	case Double:
		fmt.Fprintf(sb, "%g", float64(val))
	case String:
		fmt.Fprintf(sb, "%q", string(val))
	case Vertex:
		fmt.Fprintf(sb, "v%d", int64(val))
	case Edge:
		fmt.Fprintf(sb, "e%d", int64(val))
	case List:
		writeSeq(sb, "[", "]", val)
	case Tuple:
		writeSeq(sb, "(", ")", val)
	case *Set:
		writeSeq(sb, "{", "}", val.Elements())
	case Record:
		sb.WriteString("rec(")
		for i, k := range val.SortedKeys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			writeFormat(sb, val[k])
		}
		sb.WriteString(")")
	case *Map:
		sb.WriteString("map(")
		keys, vals := val.Entries()
		for i := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeFormat(sb, keys[i])
			sb.WriteString(" -> ")
			writeFormat(sb, vals[i])
		}
		sb.WriteString(")")
	case Opaque:
		fmt.Fprintf(sb, "<%s>", KindName(val))
	default:
		fmt.Fprintf(sb, "<%T>", v)
	}
}

func writeSeq(sb *strings.Builder, open, closing string, vals []Value) {
	sb.WriteString(open)
	for i, e := range vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeFormat(sb, e)
	}
	sb.WriteString(closing)
}
