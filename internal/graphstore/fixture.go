package graphstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
)

// Fixture is a host graph decoded from YAML together with the labels its
// document gave to vertices and edges.
type Fixture struct {
	Graph    *graph.Memory
	Vertices map[string]ir.Vertex
	Edges    map[string]ir.Edge
}

// Element resolves a vertex or edge label.
func (f *Fixture) Element(label string) (ir.Value, bool) {
	if v, ok := f.Vertices[label]; ok {
		return v, true
	}
	if e, ok := f.Edges[label]; ok {
		return e, true
	}
	return nil, false
}

// FixtureDoc is the YAML form of a host graph:
//
//	schema:
//	  - {name: V, kind: vertex, attributes: [{name: name, domain: String}]}
//	  - {name: T1, kind: edge, from: V, to: V, fromRole: src, toRole: dst}
//	vertices:
//	  - {id: a, class: V, attrs: {name: A}}
//	  - {id: b, class: V}
//	edges:
//	  - {id: ab, class: T1, from: a, to: b}
//
// Classes must be listed after their superclasses and endpoint classes.
// Edge ids are optional.
type FixtureDoc struct {
	Schema   []ClassDoc  `yaml:"schema"`
	Vertices []VertexDoc `yaml:"vertices"`
	Edges    []EdgeDoc   `yaml:"edges"`
}

// ClassDoc declares one schema class.
type ClassDoc struct {
	Name            string             `yaml:"name"`
	Kind            string             `yaml:"kind"`
	Abstract        bool               `yaml:"abstract,omitempty"`
	Supers          []string           `yaml:"supers,omitempty"`
	Attributes      []schema.Attribute `yaml:"attributes,omitempty"`
	From            string             `yaml:"from,omitempty"`
	To              string             `yaml:"to,omitempty"`
	FromRole        string             `yaml:"fromRole,omitempty"`
	ToRole          string             `yaml:"toRole,omitempty"`
	FromAggregation string             `yaml:"fromAggregation,omitempty"`
	ToAggregation   string             `yaml:"toAggregation,omitempty"`
}

// VertexDoc declares one vertex.
type VertexDoc struct {
	ID    string         `yaml:"id"`
	Class string         `yaml:"class"`
	Attrs map[string]any `yaml:"attrs,omitempty"`
}

// EdgeDoc declares one edge between two labelled vertices.
type EdgeDoc struct {
	ID    string         `yaml:"id,omitempty"`
	Class string         `yaml:"class"`
	From  string         `yaml:"from"`
	To    string         `yaml:"to"`
	Attrs map[string]any `yaml:"attrs,omitempty"`
}

// DecodeFixture reads a YAML graph document. Unknown fields are rejected.
func DecodeFixture(r io.Reader) (*Fixture, error) {
	var doc FixtureDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode fixture: empty document")
		}
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return doc.Build()
}

// LoadFixture reads a YAML graph document from path.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}
	f, err := DecodeFixture(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Build creates the graph described by doc.
func (doc *FixtureDoc) Build() (*Fixture, error) {
	sch := schema.New()
	for i, cd := range doc.Schema {
		c, err := cd.class()
		if err != nil {
			return nil, fmt.Errorf("schema[%d]: %w", i, err)
		}
		if err := sch.Add(c); err != nil {
			return nil, fmt.Errorf("schema[%d]: %w", i, err)
		}
	}

	f := &Fixture{
		Graph:    graph.NewMemory(sch),
		Vertices: make(map[string]ir.Vertex, len(doc.Vertices)),
		Edges:    make(map[string]ir.Edge),
	}
	for i, vd := range doc.Vertices {
		if vd.ID == "" {
			return nil, fmt.Errorf("vertices[%d]: id is required", i)
		}
		if _, dup := f.Vertices[vd.ID]; dup {
			return nil, fmt.Errorf("vertices[%d]: duplicate id %q", i, vd.ID)
		}
		attrs, err := attributes(vd.Attrs)
		if err != nil {
			return nil, fmt.Errorf("vertices[%d] %s: %w", i, vd.ID, err)
		}
		v, err := f.Graph.AddVertex(vd.Class, attrs)
		if err != nil {
			return nil, fmt.Errorf("vertices[%d] %s: %w", i, vd.ID, err)
		}
		f.Vertices[vd.ID] = v
	}

	for i, ed := range doc.Edges {
		alpha, ok := f.Vertices[ed.From]
		if !ok {
			return nil, fmt.Errorf("edges[%d]: unknown vertex %q", i, ed.From)
		}
		omega, ok := f.Vertices[ed.To]
		if !ok {
			return nil, fmt.Errorf("edges[%d]: unknown vertex %q", i, ed.To)
		}
		if ed.ID != "" {
			if _, dup := f.Edges[ed.ID]; dup {
				return nil, fmt.Errorf("edges[%d]: duplicate id %q", i, ed.ID)
			}
			if _, clash := f.Vertices[ed.ID]; clash {
				return nil, fmt.Errorf("edges[%d]: id %q is already a vertex id", i, ed.ID)
			}
		}
		attrs, err := attributes(ed.Attrs)
		if err != nil {
			return nil, fmt.Errorf("edges[%d]: %w", i, err)
		}
		e, err := f.Graph.AddEdge(ed.Class, alpha, omega, attrs)
		if err != nil {
			return nil, fmt.Errorf("edges[%d]: %w", i, err)
		}
		if ed.ID != "" {
			f.Edges[ed.ID] = e
		}
	}
	return f, nil
}

func (cd ClassDoc) class() (schema.Class, error) {
	c := schema.Class{
		Name:       cd.Name,
		Abstract:   cd.Abstract,
		Supers:     cd.Supers,
		Attributes: cd.Attributes,
		From:       cd.From,
		To:         cd.To,
		FromRole:   cd.FromRole,
		ToRole:     cd.ToRole,
	}
	switch cd.Kind {
	case "", "vertex":
		c.Kind = schema.VertexClass
	case "edge":
		c.Kind = schema.EdgeClass
	default:
		return schema.Class{}, fmt.Errorf("class %q: invalid kind %q", cd.Name, cd.Kind)
	}
	if c.Kind == schema.VertexClass && (cd.From != "" || cd.To != "" || cd.FromRole != "" || cd.ToRole != "") {
		return schema.Class{}, fmt.Errorf("vertex class %q cannot declare edge ends", cd.Name)
	}
	var err error
	if c.FromAggregation, err = schema.ParseAggregationKind(cd.FromAggregation); err != nil {
		return schema.Class{}, fmt.Errorf("class %q: %w", cd.Name, err)
	}
	if c.ToAggregation, err = schema.ParseAggregationKind(cd.ToAggregation); err != nil {
		return schema.Class{}, fmt.Errorf("class %q: %w", cd.Name, err)
	}
	return c, nil
}

func attributes(raw map[string]any) (ir.Record, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, fmt.Errorf("attrs: %w", err)
	}
	return v.(ir.Record), nil
}

// LoadGraph opens a host graph by file extension: .yaml and .yml files are
// fixtures, anything else is a SQLite database written by Save.
func LoadGraph(ctx context.Context, path string) (*graph.Memory, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := LoadFixture(path)
		if err != nil {
			return nil, err
		}
		return f.Graph, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	s, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", path, err)
	}
	defer s.Close()
	return s.Load(ctx)
}
