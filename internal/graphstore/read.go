package graphstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
)

// Load rebuilds the stored graph. Vertex and edge ids are preserved.
func (s *Store) Load(ctx context.Context) (*graph.Memory, error) {
	sch, err := s.loadSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	g := graph.NewMemory(sch)

	rows, err := s.db.QueryContext(ctx, "SELECT id, class, attrs FROM vertices ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("load graph: query vertices: %w", err)
	}
	err = scanEach(rows, func() error {
		var (
			id          int64
			class, data string
		)
		if err := rows.Scan(&id, &class, &data); err != nil {
			return err
		}
		attrs, err := unmarshalAttributes(data)
		if err != nil {
			return fmt.Errorf("v%d: %w", id, err)
		}
		return g.PutVertex(ir.Vertex(id), class, attrs)
	})
	if err != nil {
		return nil, fmt.Errorf("load graph: vertices: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, "SELECT id, class, alpha, omega, attrs FROM edges ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("load graph: query edges: %w", err)
	}
	err = scanEach(rows, func() error {
		var (
			id, alpha, omega int64
			class, data      string
		)
		if err := rows.Scan(&id, &class, &alpha, &omega, &data); err != nil {
			return err
		}
		attrs, err := unmarshalAttributes(data)
		if err != nil {
			return fmt.Errorf("e%d: %w", id, err)
		}
		return g.PutEdge(ir.Edge(id), class, ir.Vertex(alpha), ir.Vertex(omega), attrs)
	})
	if err != nil {
		return nil, fmt.Errorf("load graph: edges: %w", err)
	}

	return g, nil
}

// Size computes the estimation statistics of the stored graph without
// loading it.
func (s *Store) Size(ctx context.Context) (costs.GraphSize, error) {
	size := costs.GraphSize{
		VertexTypeCounts: make(map[string]int64),
		EdgeTypeCounts:   make(map[string]int64),
	}
	for _, q := range []struct {
		table  string
		total  *int64
		counts map[string]int64
	}{
		{"vertices", &size.VertexCount, size.VertexTypeCounts},
		{"edges", &size.EdgeCount, size.EdgeTypeCounts},
	} {
		rows, err := s.db.QueryContext(ctx,
			"SELECT class, COUNT(*) FROM "+q.table+" GROUP BY class ORDER BY class ASC")
		if err != nil {
			return costs.GraphSize{}, fmt.Errorf("size: query %s: %w", q.table, err)
		}
		err = scanEach(rows, func() error {
			var (
				class string
				n     int64
			)
			if err := rows.Scan(&class, &n); err != nil {
				return err
			}
			q.counts[class] = n
			*q.total += n
			return nil
		})
		if err != nil {
			return costs.GraphSize{}, fmt.Errorf("size: %s: %w", q.table, err)
		}
	}
	return size, nil
}

func (s *Store) loadSchema(ctx context.Context) (*schema.Schema, error) {
	supers, err := s.loadStrings(ctx, "SELECT class, super FROM class_supers ORDER BY class, position")
	if err != nil {
		return nil, fmt.Errorf("superclasses: %w", err)
	}
	attrs := make(map[string][]schema.Attribute)
	rows, err := s.db.QueryContext(ctx, "SELECT class, name, domain FROM class_attributes ORDER BY class, position")
	if err != nil {
		return nil, fmt.Errorf("query attributes: %w", err)
	}
	err = scanEach(rows, func() error {
		var class string
		var a schema.Attribute
		if err := rows.Scan(&class, &a.Name, &a.Domain); err != nil {
			return err
		}
		attrs[class] = append(attrs[class], a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}

	sch := schema.New()
	rows, err = s.db.QueryContext(ctx, `
		SELECT name, kind, abstract, from_class, to_class, from_role, to_role, from_aggregation, to_aggregation
		FROM classes ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	err = scanEach(rows, func() error {
		var (
			c              schema.Class
			kind           string
			fromAgg, toAgg string
		)
		if err := rows.Scan(&c.Name, &kind, &c.Abstract, &c.From, &c.To,
			&c.FromRole, &c.ToRole, &fromAgg, &toAgg); err != nil {
			return err
		}
		if kind == "edge" {
			c.Kind = schema.EdgeClass
		}
		var perr error
		if c.FromAggregation, perr = schema.ParseAggregationKind(fromAgg); perr != nil {
			return fmt.Errorf("class %q: %w", c.Name, perr)
		}
		if c.ToAggregation, perr = schema.ParseAggregationKind(toAgg); perr != nil {
			return fmt.Errorf("class %q: %w", c.Name, perr)
		}
		c.Supers = supers[c.Name]
		c.Attributes = attrs[c.Name]
		return sch.Add(c)
	})
	if err != nil {
		return nil, fmt.Errorf("classes: %w", err)
	}
	return sch, nil
}

// loadStrings groups the second column of a two-column query by the first.
func (s *Store) loadStrings(ctx context.Context, query string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	err = scanEach(rows, func() error {
		var key, val string
		if err := rows.Scan(&key, &val); err != nil {
			return err
		}
		out[key] = append(out[key], val)
		return nil
	})
	return out, err
}

// scanEach calls fn for every row and closes rows.
func scanEach(rows *sql.Rows, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return err
		}
	}
	return rows.Err()
}

func unmarshalAttributes(data string) (ir.Record, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	rec, ok := v.(ir.Record)
	if !ok {
		return nil, fmt.Errorf("attributes are a %s, not a record", ir.KindName(v))
	}
	return rec, nil
}
