package syntax

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
)

// Field names with a fixed meaning in query documents. Every other field of
// a node mapping names a Role.
const (
	FieldKind       = "kind"
	FieldName       = "name"
	FieldValue      = "value"
	FieldDir        = "dir"
	FieldExact      = "exact"
	FieldForbidden  = "forbidden"
	FieldQuantifier = "quantifier"
	FieldPlus       = "plus"
	FieldOutward    = "outward"
	// FieldID labels a node so later parts of the document can share it.
	FieldID = "id"
	// FieldRef refers to a node labelled with FieldID.
	FieldRef = "ref"
)

// DecodeYAML reads a query document:
//
//	kind: ForwardVertexSet
//	start: {kind: Variable, name: a}
//	path:
//	  kind: SequentialPathDescription
//	  sub:
//	    - {kind: SimplePathDescription, dir: out, restriction: {kind: EdgeRestriction, types: [{kind: TypeId, name: T1}]}}
//	    - {kind: SimplePathDescription, dir: out}
//
// Role fields hold a single node mapping or a sequence of them. A node
// labelled with id can be reused later with {ref: label}.
func DecodeYAML(r io.Reader) (*Graph, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("query document must contain a single node")
	}
	return DecodeYAMLNode(doc.Content[0])
}

// DecodeYAMLNode builds a Graph from an already parsed YAML mapping.
func DecodeYAMLNode(n *yaml.Node) (*Graph, error) {
	d := &yamlDecoder{b: NewBuilder(), labels: make(map[string]NodeID)}
	root, err := d.node(n)
	if err != nil {
		return nil, err
	}
	return d.b.Build(root)
}

type yamlDecoder struct {
	b      *Builder
	labels map[string]NodeID
}

func (d *yamlDecoder) node(n *yaml.Node) (NodeID, error) {
	if n.Kind != yaml.MappingNode {
		return NoNode, fmt.Errorf("line %d: expected a node mapping", n.Line)
	}

	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	var order []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if _, dup := fields[key]; dup {
			return NoNode, fmt.Errorf("line %d: duplicate field %q", n.Content[i].Line, key)
		}
		fields[key] = n.Content[i+1]
		order = append(order, key)
	}

	if ref, ok := fields[FieldRef]; ok {
		if len(fields) != 1 {
			return NoNode, fmt.Errorf("line %d: a ref node cannot have other fields", n.Line)
		}
		id, ok := d.labels[ref.Value]
		if !ok {
			return NoNode, fmt.Errorf("line %d: unknown ref %q", ref.Line, ref.Value)
		}
		return id, nil
	}

	kindNode, ok := fields[FieldKind]
	if !ok {
		return NoNode, fmt.Errorf("line %d: node has no kind", n.Line)
	}
	kind, err := ParseKind(kindNode.Value)
	if err != nil {
		return NoNode, fmt.Errorf("line %d: %w", kindNode.Line, err)
	}

	node := Node{Kind: kind}
	var roles []string
	for _, key := range order {
		val := fields[key]
		switch key {
		case FieldKind, FieldID:
		case FieldName:
			node.Name = val.Value
		case FieldValue:
			// MapComprehension uses "value" as a role name.
			if !kind.IsLiteral() {
				roles = append(roles, key)
				continue
			}
			node.Literal, err = decodeLiteral(kind, val)
		case FieldDir:
			node.Dir, err = graph.ParseDirection(val.Value)
		case FieldQuantifier:
			node.Quantifier, err = ParseQuantifier(val.Value)
		case FieldExact:
			node.Exact, err = decodeBool(val)
		case FieldForbidden:
			node.Forbidden, err = decodeBool(val)
		case FieldPlus:
			node.Plus, err = decodeBool(val)
		case FieldOutward:
			node.Outward, err = decodeBool(val)
		default:
			roles = append(roles, key)
		}
		if err != nil {
			return NoNode, fmt.Errorf("line %d: %s: %w", val.Line, key, err)
		}
	}
	if kind.IsLiteral() && node.Literal == nil {
		if kind != NullLiteral {
			return NoNode, fmt.Errorf("line %d: %s requires a value", n.Line, kind)
		}
		node.Literal = ir.Null{}
	}

	id := d.b.AddNode(node)
	if label, ok := fields[FieldID]; ok {
		if _, dup := d.labels[label.Value]; dup {
			return NoNode, fmt.Errorf("line %d: duplicate id %q", label.Line, label.Value)
		}
		d.labels[label.Value] = id
	}

	for _, key := range roles {
		role, err := ParseRole(key)
		if err != nil {
			return NoNode, fmt.Errorf("line %d: %s: %w", fields[key].Line, kind, err)
		}
		val := fields[key]
		items := []*yaml.Node{val}
		if val.Kind == yaml.SequenceNode {
			items = val.Content
		}
		for _, item := range items {
			child, err := d.node(item)
			if err != nil {
				return NoNode, err
			}
			d.b.Link(id, role, child)
		}
	}
	return id, nil
}

func decodeBool(n *yaml.Node) (bool, error) {
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, err
	}
	return b, nil
}

func decodeLiteral(kind Kind, n *yaml.Node) (ir.Value, error) {
	switch kind {
	case BoolLiteral:
		b, err := decodeBool(n)
		return ir.Bool(b), err
	case IntLiteral:
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", n.Value)
		}
		return ir.Int(i), nil
	case DoubleLiteral:
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return ir.Double(f), nil
	case StringLiteral:
		return ir.String(n.Value), nil
	case NullLiteral:
		return ir.Null{}, nil
	}
	return nil, fmt.Errorf("%s does not take a value", kind)
}
