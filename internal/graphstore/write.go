package graphstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
)

// attributeLister is implemented by graphs that can enumerate every
// attribute of an element, including undeclared ones. graph.Memory does.
type attributeLister interface {
	Attributes(elem ir.Value) (ir.Record, error)
}

// Save replaces the stored graph with g. The previous contents are deleted
// and g is written in one transaction, so a failed Save leaves the old
// graph in place.
//
// Graphs that do not implement Attributes are saved with the attributes
// their classes declare; unset (Null) attributes are not stored.
func (s *Store) Save(ctx context.Context, g graph.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save graph: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Children before parents so foreign keys hold at every step.
	for _, table := range []string{"edges", "vertices", "class_attributes", "class_supers", "classes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save graph: clear %s: %w", table, err)
		}
	}

	if err := writeSchema(ctx, tx, g.Schema()); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}

	for v := range g.Vertices() {
		class, err := g.VertexClass(v)
		if err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
		attrs, err := elementAttributes(g, v, class)
		if err != nil {
			return fmt.Errorf("save graph: v%d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vertices (id, class, attrs) VALUES (?, ?, ?)",
			int64(v), class, attrs,
		); err != nil {
			return fmt.Errorf("save graph: insert v%d: %w", v, err)
		}
	}

	for e := range g.Edges() {
		class, err := g.EdgeClass(e)
		if err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
		alpha, err := g.Alpha(e)
		if err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
		omega, err := g.Omega(e)
		if err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
		attrs, err := elementAttributes(g, e, class)
		if err != nil {
			return fmt.Errorf("save graph: e%d: %w", e, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO edges (id, class, alpha, omega, attrs) VALUES (?, ?, ?, ?, ?)",
			int64(e), class, int64(alpha), int64(omega), attrs,
		); err != nil {
			return fmt.Errorf("save graph: insert e%d: %w", e, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save graph: commit: %w", err)
	}
	return nil
}

// writeSchema stores classes in declaration order. Superclasses are always
// declared first, so Load can replay the rows in seq order.
func writeSchema(ctx context.Context, tx *sql.Tx, s *schema.Schema) error {
	for i, c := range s.All() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO classes
			(seq, name, kind, abstract, from_class, to_class, from_role, to_role, from_aggregation, to_aggregation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			i+1,
			c.Name,
			c.Kind.String(),
			c.Abstract,
			c.From,
			c.To,
			c.FromRole,
			c.ToRole,
			c.FromAggregation.String(),
			c.ToAggregation.String(),
		)
		if err != nil {
			return fmt.Errorf("insert class %q: %w", c.Name, err)
		}
		for pos, sup := range c.Supers {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO class_supers (class, position, super) VALUES (?, ?, ?)",
				c.Name, pos, sup,
			); err != nil {
				return fmt.Errorf("insert superclass of %q: %w", c.Name, err)
			}
		}
		for pos, a := range c.Attributes {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO class_attributes (class, position, name, domain) VALUES (?, ?, ?, ?)",
				c.Name, pos, a.Name, a.Domain,
			); err != nil {
				return fmt.Errorf("insert attribute %s.%s: %w", c.Name, a.Name, err)
			}
		}
	}
	return nil
}

// elementAttributes returns the JSON encoded attribute record of elem.
func elementAttributes(g graph.Graph, elem ir.Value, class string) (string, error) {
	var attrs ir.Record
	if l, ok := g.(attributeLister); ok {
		rec, err := l.Attributes(elem)
		if err != nil {
			return "", err
		}
		attrs = rec
	} else {
		attrs = ir.Record{}
		for _, name := range declaredAttributes(g.Schema(), class) {
			val, err := g.Attribute(elem, name)
			if err != nil {
				return "", err
			}
			if _, null := val.(ir.Null); !null {
				attrs[name] = val
			}
		}
	}
	if attrs == nil {
		attrs = ir.Record{}
	}
	data, err := ir.MarshalValue(attrs)
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	return string(data), nil
}

// declaredAttributes lists the attribute names of class and all its
// superclasses, each name once.
func declaredAttributes(s *schema.Schema, class string) []string {
	var names []string
	seen := make(map[string]bool)
	visited := make(map[string]bool)
	var walk func(name string)
	walk = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		c, ok := s.Lookup(name)
		if !ok {
			return
		}
		for _, a := range c.Attributes {
			if !seen[a.Name] {
				seen[a.Name] = true
				names = append(names, a.Name)
			}
		}
		for _, sup := range c.Supers {
			walk(sup)
		}
	}
	walk(class)
	return names
}
