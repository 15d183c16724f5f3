package graph

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
)

type vertexRecord struct {
	class string
	attrs ir.Record
	// incident edges in insertion order
	edges []ir.Edge
}

type edgeRecord struct {
	class        string
	alpha, omega ir.Vertex
	attrs        ir.Record
}

// Memory is an in-memory Graph. Ids are positive and assigned in increasing
// order; iteration follows id order.
//
// Reads may run concurrently with each other; writes take an exclusive lock.
// Every write bumps Version.
type Memory struct {
	mu     sync.RWMutex
	schema *schema.Schema

	version uint64
	nextV   int64
	nextE   int64

	vertices map[ir.Vertex]*vertexRecord
	edges    map[ir.Edge]*edgeRecord
	vorder   []ir.Vertex
	eorder   []ir.Edge
}

var _ Graph = (*Memory)(nil)

// NewMemory creates an empty graph over s.
func NewMemory(s *schema.Schema) *Memory {
	return &Memory{
		schema:   s,
		vertices: make(map[ir.Vertex]*vertexRecord),
		edges:    make(map[ir.Edge]*edgeRecord),
	}
}

// Schema implements Graph.
func (m *Memory) Schema() *schema.Schema { return m.schema }

// Version implements Graph.
func (m *Memory) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// AddVertex creates a vertex of a concrete vertex class.
func (m *Memory) AddVertex(class string, attrs ir.Record) (ir.Vertex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextV++
	v := ir.Vertex(m.nextV)
	if err := m.putVertexLocked(v, class, attrs); err != nil {
		m.nextV--
		return 0, err
	}
	return v, nil
}

// PutVertex creates a vertex with a caller-chosen id. Used when loading a
// persisted graph.
func (m *Memory) PutVertex(v ir.Vertex, class string, attrs ir.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v <= 0 {
		return fmt.Errorf("vertex id must be positive, got %d", v)
	}
	if _, dup := m.vertices[v]; dup {
		return fmt.Errorf("vertex %d already exists", v)
	}
	if err := m.putVertexLocked(v, class, attrs); err != nil {
		return err
	}
	m.nextV = max(m.nextV, int64(v))
	return nil
}

func (m *Memory) putVertexLocked(v ir.Vertex, class string, attrs ir.Record) error {
	c, err := m.concreteClass(class, schema.VertexClass)
	if err != nil {
		return err
	}
	m.vertices[v] = &vertexRecord{class: c.Name, attrs: cloneRecord(attrs)}
	m.vorder = insertSorted(m.vorder, v)
	m.version++
	return nil
}

// AddEdge creates an edge from alpha to omega.
func (m *Memory) AddEdge(class string, alpha, omega ir.Vertex, attrs ir.Record) (ir.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextE++
	e := ir.Edge(m.nextE)
	if err := m.putEdgeLocked(e, class, alpha, omega, attrs); err != nil {
		m.nextE--
		return 0, err
	}
	return e, nil
}

// PutEdge creates an edge with a caller-chosen id.
func (m *Memory) PutEdge(e ir.Edge, class string, alpha, omega ir.Vertex, attrs ir.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e <= 0 {
		return fmt.Errorf("edge id must be positive, got %d", e)
	}
	if _, dup := m.edges[e]; dup {
		return fmt.Errorf("edge %d already exists", e)
	}
	if err := m.putEdgeLocked(e, class, alpha, omega, attrs); err != nil {
		return err
	}
	m.nextE = max(m.nextE, int64(e))
	return nil
}

func (m *Memory) putEdgeLocked(e ir.Edge, class string, alpha, omega ir.Vertex, attrs ir.Record) error {
	c, err := m.concreteClass(class, schema.EdgeClass)
	if err != nil {
		return err
	}
	av, ok := m.vertices[alpha]
	if !ok {
		return fmt.Errorf("edge %s alpha v%d: %w", class, alpha, ErrNoSuchElement)
	}
	ov, ok := m.vertices[omega]
	if !ok {
		return fmt.Errorf("edge %s omega v%d: %w", class, omega, ErrNoSuchElement)
	}
	if c.From != "" && !m.schema.IsSubclassOf(av.class, c.From) {
		return fmt.Errorf("edge %s: alpha v%d is a %s, want %s", class, alpha, av.class, c.From)
	}
	if c.To != "" && !m.schema.IsSubclassOf(ov.class, c.To) {
		return fmt.Errorf("edge %s: omega v%d is a %s, want %s", class, omega, ov.class, c.To)
	}

	m.edges[e] = &edgeRecord{class: c.Name, alpha: alpha, omega: omega, attrs: cloneRecord(attrs)}
	m.eorder = insertSorted(m.eorder, e)
	av.edges = append(av.edges, e)
	if omega != alpha {
		ov.edges = append(ov.edges, e)
	}
	m.version++
	return nil
}

// RemoveEdge deletes e.
func (m *Memory) RemoveEdge(e ir.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeEdgeLocked(e)
}

func (m *Memory) removeEdgeLocked(e ir.Edge) error {
	rec, ok := m.edges[e]
	if !ok {
		return fmt.Errorf("e%d: %w", e, ErrNoSuchElement)
	}
	delete(m.edges, e)
	m.eorder = removeSorted(m.eorder, e)
	for _, v := range []ir.Vertex{rec.alpha, rec.omega} {
		if vr, ok := m.vertices[v]; ok {
			vr.edges = slices.DeleteFunc(vr.edges, func(x ir.Edge) bool { return x == e })
		}
	}
	m.version++
	return nil
}

// RemoveVertex deletes v and all its incident edges.
func (m *Memory) RemoveVertex(v ir.Vertex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.vertices[v]
	if !ok {
		return fmt.Errorf("v%d: %w", v, ErrNoSuchElement)
	}
	for _, e := range slices.Clone(rec.edges) {
		if err := m.removeEdgeLocked(e); err != nil {
			return err
		}
	}
	delete(m.vertices, v)
	m.vorder = removeSorted(m.vorder, v)
	m.version++
	return nil
}

// SetAttribute writes an attribute of a vertex or edge.
func (m *Memory) SetAttribute(elem ir.Value, name string, value ir.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attrs, err := m.attrsLocked(elem)
	if err != nil {
		return err
	}
	(*attrs)[name] = value
	m.version++
	return nil
}

func (m *Memory) attrsLocked(elem ir.Value) (*ir.Record, error) {
	switch el := elem.(type) {
	case ir.Vertex:
		rec, ok := m.vertices[el]
		if !ok {
			return nil, fmt.Errorf("v%d: %w", el, ErrNoSuchElement)
		}
		if rec.attrs == nil {
			rec.attrs = ir.Record{}
		}
		return &rec.attrs, nil
	case ir.Edge:
		rec, ok := m.edges[el]
		if !ok {
			return nil, fmt.Errorf("e%d: %w", el, ErrNoSuchElement)
		}
		if rec.attrs == nil {
			rec.attrs = ir.Record{}
		}
		return &rec.attrs, nil
	}
	return nil, fmt.Errorf("%s is not a graph element", ir.KindName(elem))
}

// Vertices implements Graph.
func (m *Memory) Vertices() iter.Seq[ir.Vertex] {
	m.mu.RLock()
	snapshot := slices.Clone(m.vorder)
	m.mu.RUnlock()
	return slices.Values(snapshot)
}

// Edges implements Graph.
func (m *Memory) Edges() iter.Seq[ir.Edge] {
	m.mu.RLock()
	snapshot := slices.Clone(m.eorder)
	m.mu.RUnlock()
	return slices.Values(snapshot)
}

// Incidences implements Graph. A self-loop yields an Out and an In incidence
// when dir is Any.
func (m *Memory) Incidences(v ir.Vertex, dir Direction) iter.Seq[Incidence] {
	m.mu.RLock()
	var incs []Incidence
	if rec, ok := m.vertices[v]; ok {
		for _, e := range rec.edges {
			er := m.edges[e]
			c, _ := m.schema.Lookup(er.class)
			if er.alpha == v && dir.Matches(Out) {
				incs = append(incs, Incidence{
					Edge: e, This: v, That: er.omega, Dir: Out,
					ThisRole: c.FromRole, ThatRole: c.ToRole,
					ThisAggregation: c.FromAggregation, ThatAggregation: c.ToAggregation,
				})
			}
			if er.omega == v && dir.Matches(In) {
				incs = append(incs, Incidence{
					Edge: e, This: v, That: er.alpha, Dir: In,
					ThisRole: c.ToRole, ThatRole: c.FromRole,
					ThisAggregation: c.ToAggregation, ThatAggregation: c.FromAggregation,
				})
			}
		}
	}
	m.mu.RUnlock()
	return slices.Values(incs)
}

// VertexCount implements Graph.
func (m *Memory) VertexCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vertices)
}

// EdgeCount implements Graph.
func (m *Memory) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.edges)
}

// ContainsVertex implements Graph.
func (m *Memory) ContainsVertex(v ir.Vertex) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vertices[v]
	return ok
}

// ContainsEdge implements Graph.
func (m *Memory) ContainsEdge(e ir.Edge) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.edges[e]
	return ok
}

// VertexClass implements Graph.
func (m *Memory) VertexClass(v ir.Vertex) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.vertices[v]
	if !ok {
		return "", fmt.Errorf("v%d: %w", v, ErrNoSuchElement)
	}
	return rec.class, nil
}

// EdgeClass implements Graph.
func (m *Memory) EdgeClass(e ir.Edge) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.edges[e]
	if !ok {
		return "", fmt.Errorf("e%d: %w", e, ErrNoSuchElement)
	}
	return rec.class, nil
}

// Alpha implements Graph.
func (m *Memory) Alpha(e ir.Edge) (ir.Vertex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.edges[e]
	if !ok {
		return 0, fmt.Errorf("e%d: %w", e, ErrNoSuchElement)
	}
	return rec.alpha, nil
}

// Omega implements Graph.
func (m *Memory) Omega(e ir.Edge) (ir.Vertex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.edges[e]
	if !ok {
		return 0, fmt.Errorf("e%d: %w", e, ErrNoSuchElement)
	}
	return rec.omega, nil
}

// Attribute implements Graph.
func (m *Memory) Attribute(elem ir.Value, name string) (ir.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var attrs ir.Record
	switch el := elem.(type) {
	case ir.Vertex:
		rec, ok := m.vertices[el]
		if !ok {
			return nil, fmt.Errorf("v%d: %w", el, ErrNoSuchElement)
		}
		attrs = rec.attrs
	case ir.Edge:
		rec, ok := m.edges[el]
		if !ok {
			return nil, fmt.Errorf("e%d: %w", el, ErrNoSuchElement)
		}
		attrs = rec.attrs
	default:
		return nil, fmt.Errorf("%s is not a graph element", ir.KindName(elem))
	}
	if v, ok := attrs[name]; ok {
		return v, nil
	}
	return ir.Null{}, nil
}

// Attributes returns a copy of all attributes of a vertex or edge.
func (m *Memory) Attributes(elem ir.Value) (ir.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch el := elem.(type) {
	case ir.Vertex:
		if rec, ok := m.vertices[el]; ok {
			return cloneRecord(rec.attrs), nil
		}
	case ir.Edge:
		if rec, ok := m.edges[el]; ok {
			return cloneRecord(rec.attrs), nil
		}
	default:
		return nil, fmt.Errorf("%s is not a graph element", ir.KindName(elem))
	}
	return nil, fmt.Errorf("%s: %w", ir.Format(elem), ErrNoSuchElement)
}

func (m *Memory) concreteClass(name string, kind schema.ElementKind) (*schema.Class, error) {
	c, ok := m.schema.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s class %q: %w", kind, name, schema.ErrUnknownClass)
	}
	if c.Kind != kind {
		return nil, fmt.Errorf("class %q is a %s class, not a %s class", name, c.Kind, kind)
	}
	if c.Abstract {
		return nil, fmt.Errorf("class %q is abstract", name)
	}
	return c, nil
}

func cloneRecord(r ir.Record) ir.Record {
	return maps.Clone(r)
}

func insertSorted[T ~int64](s []T, x T) []T {
	i, _ := slices.BinarySearch(s, x)
	return slices.Insert(s, i, x)
}

func removeSorted[T ~int64](s []T, x T) []T {
	if i, ok := slices.BinarySearch(s, x); ok {
		return slices.Delete(s, i, i+1)
	}
	return s
}
