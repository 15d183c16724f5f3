package harness

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/greql/internal/graphstore"
	"github.com/roach88/greql/internal/ir"
)

// decodeValue converts a YAML value to an ir.Value, resolving element
// labels against f.
func decodeValue(n *yaml.Node, f *graphstore.Fixture) (ir.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) != 1 {
			return nil, fmt.Errorf("line %d: expected a single value", n.Line)
		}
		return decodeValue(n.Content[0], f)
	case yaml.AliasNode:
		return decodeValue(n.Alias, f)
	case yaml.ScalarNode:
		return decodeScalar(n)
	case yaml.SequenceNode:
		elems, err := decodeSeq(n, f)
		if err != nil {
			return nil, err
		}
		return ir.List(elems), nil
	case yaml.MappingNode:
		if len(n.Content) == 2 {
			if v, ok, err := decodeTagged(n.Content[0].Value, n.Content[1], f); ok {
				return v, err
			}
		}
		rec := make(ir.Record, len(n.Content)/2)
		for i := 0; i < len(n.Content); i += 2 {
			k := n.Content[i].Value
			v, err := decodeValue(n.Content[i+1], f)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			rec[k] = v
		}
		return rec, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func decodeScalar(n *yaml.Node) (ir.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return ir.Null{}, nil
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return ir.Bool(b), nil
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return ir.Int(i), nil
	case "!!float":
		var d float64
		if err := n.Decode(&d); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return ir.Double(d), nil
	}
	return ir.String(n.Value), nil
}

func decodeSeq(n *yaml.Node, f *graphstore.Fixture) ([]ir.Value, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a sequence", n.Line)
	}
	out := make([]ir.Value, len(n.Content))
	for i, c := range n.Content {
		v, err := decodeValue(c, f)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// decodeTagged handles the single-key forms. ok is false for ordinary
// one-component records.
func decodeTagged(tag string, n *yaml.Node, f *graphstore.Fixture) (v ir.Value, ok bool, err error) {
	switch tag {
	case "vertex", "edge":
		if n.Kind != yaml.ScalarNode {
			return nil, true, fmt.Errorf("line %d: %s expects a label", n.Line, tag)
		}
		if f == nil {
			return nil, true, fmt.Errorf("line %d: no graph to resolve %q", n.Line, n.Value)
		}
		if tag == "vertex" {
			if vx, found := f.Vertices[n.Value]; found {
				return vx, true, nil
			}
		} else if e, found := f.Edges[n.Value]; found {
			return e, true, nil
		}
		return nil, true, fmt.Errorf("line %d: unknown %s %q", n.Line, tag, n.Value)
	case "set":
		elems, err := decodeSeq(n, f)
		if err != nil {
			return nil, true, err
		}
		return ir.NewSet(elems...), true, nil
	case "tuple":
		elems, err := decodeSeq(n, f)
		if err != nil {
			return nil, true, err
		}
		return ir.Tuple(elems), true, nil
	case "map":
		entries, err := decodeSeq(n, f)
		if err != nil {
			return nil, true, err
		}
		b := ir.NewMapBuilder()
		for i, e := range entries {
			pair, isList := e.(ir.List)
			if !isList || len(pair) != 2 {
				return nil, true, fmt.Errorf("map[%d]: expected a [key, value] pair", i)
			}
			b.Put(pair[0], pair[1])
		}
		return b.Build(), true, nil
	case "double":
		var d float64
		if err := n.Decode(&d); err != nil {
			return nil, true, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return ir.Double(d), true, nil
	}
	return nil, false, nil
}
