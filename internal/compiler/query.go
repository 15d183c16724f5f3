package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
)

// QueryField is the top-level field holding the query in a CUE file. A
// file without it is compiled as a single node.
const QueryField = "query"

// CompileQuery builds a syntax graph from a CUE node value. Uses the CUE
// SDK's Go API directly.
//
// Nodes are structs with a kind field; every field other than the payload
// fields of syntax.DecodeYAML names a role and holds a node, a list of
// nodes, or a bare scalar that becomes a literal:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`query: {
//		kind: "FunctionApplication", name: "plus"
//		args: [1, {kind: "Variable", name: "x"}]
//	}`)
//	g, err := CompileQuery(v.LookupPath(cue.ParsePath("query")))
func CompileQuery(v cue.Value) (*syntax.Graph, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	d := &cueDecoder{b: syntax.NewBuilder(), labels: make(map[string]syntax.NodeID)}
	root, err := d.node(v)
	if err != nil {
		return nil, err
	}
	g, err := d.b.Build(root)
	if err != nil {
		return nil, &CompileError{Field: "query", Message: err.Error(), Pos: v.Pos()}
	}
	return g, nil
}

// CompileQuerySource compiles CUE source text. filename is used in error
// positions only.
func CompileQuerySource(filename string, src []byte) (*syntax.Graph, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if q := v.LookupPath(cue.ParsePath(QueryField)); q.Exists() {
		v = q
	}
	return CompileQuery(v)
}

// LoadQueryFile reads and compiles a .cue query file.
func LoadQueryFile(path string) (*syntax.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	return CompileQuerySource(path, src)
}

type cueDecoder struct {
	b      *syntax.Builder
	labels map[string]syntax.NodeID
}

func (d *cueDecoder) node(v cue.Value) (syntax.NodeID, error) {
	switch v.IncompleteKind() {
	case cue.StructKind:
	case cue.BoolKind, cue.IntKind, cue.FloatKind, cue.NumberKind, cue.StringKind, cue.NullKind:
		lit, err := scalar(v)
		if err != nil {
			return syntax.NoNode, err
		}
		return d.b.Lit(lit), nil
	default:
		return syntax.NoNode, &CompileError{
			Field:   pathOf(v),
			Message: fmt.Sprintf("expected a node struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	if ref := v.LookupPath(cue.ParsePath(syntax.FieldRef)); ref.Exists() {
		label, err := ref.String()
		if err != nil {
			return syntax.NoNode, formatCUEError(err)
		}
		id, ok := d.labels[label]
		if !ok {
			return syntax.NoNode, &CompileError{Field: syntax.FieldRef, Message: fmt.Sprintf("unknown ref %q", label), Pos: ref.Pos()}
		}
		return id, nil
	}

	kindVal := v.LookupPath(cue.ParsePath(syntax.FieldKind))
	if !kindVal.Exists() {
		return syntax.NoNode, &CompileError{Field: pathOf(v), Message: "node has no kind", Pos: v.Pos()}
	}
	kindName, err := kindVal.String()
	if err != nil {
		return syntax.NoNode, formatCUEError(err)
	}
	kind, err := syntax.ParseKind(kindName)
	if err != nil {
		return syntax.NoNode, &CompileError{Field: syntax.FieldKind, Message: err.Error(), Pos: kindVal.Pos()}
	}

	node := syntax.Node{Kind: kind}
	type roleField struct {
		role syntax.Role
		val  cue.Value
	}
	var roles []roleField

	iter, err := v.Fields()
	if err != nil {
		return syntax.NoNode, formatCUEError(err)
	}
	for iter.Next() {
		key := iter.Selector().Unquoted()
		val := iter.Value()
		switch key {
		case syntax.FieldKind, syntax.FieldID:
		case syntax.FieldName:
			node.Name, err = val.String()
		case syntax.FieldValue:
			if !kind.IsLiteral() {
				roles = append(roles, roleField{syntax.RoleValue, val})
				continue
			}
			node.Literal, err = literal(kind, val)
		case syntax.FieldDir:
			var dir string
			if dir, err = val.String(); err == nil {
				node.Dir, err = graph.ParseDirection(dir)
			}
		case syntax.FieldQuantifier:
			var q string
			if q, err = val.String(); err == nil {
				node.Quantifier, err = syntax.ParseQuantifier(q)
			}
		case syntax.FieldExact:
			node.Exact, err = val.Bool()
		case syntax.FieldForbidden:
			node.Forbidden, err = val.Bool()
		case syntax.FieldPlus:
			node.Plus, err = val.Bool()
		case syntax.FieldOutward:
			node.Outward, err = val.Bool()
		default:
			role, rerr := syntax.ParseRole(key)
			if rerr != nil {
				return syntax.NoNode, &CompileError{Field: key, Message: rerr.Error(), Pos: val.Pos()}
			}
			roles = append(roles, roleField{role, val})
		}
		if err != nil {
			return syntax.NoNode, &CompileError{Field: key, Message: err.Error(), Pos: val.Pos()}
		}
	}

	if kind.IsLiteral() && node.Literal == nil {
		if kind != syntax.NullLiteral {
			return syntax.NoNode, &CompileError{Field: pathOf(v), Message: fmt.Sprintf("%s requires a value", kind), Pos: v.Pos()}
		}
		node.Literal = ir.Null{}
	}

	id := d.b.AddNode(node)
	if labelVal := v.LookupPath(cue.ParsePath(syntax.FieldID)); labelVal.Exists() {
		label, err := labelVal.String()
		if err != nil {
			return syntax.NoNode, formatCUEError(err)
		}
		if _, dup := d.labels[label]; dup {
			return syntax.NoNode, &CompileError{Field: syntax.FieldID, Message: fmt.Sprintf("duplicate id %q", label), Pos: labelVal.Pos()}
		}
		d.labels[label] = id
	}

	for _, rf := range roles {
		items := []cue.Value{rf.val}
		if rf.val.IncompleteKind() == cue.ListKind {
			items = items[:0]
			list, err := rf.val.List()
			if err != nil {
				return syntax.NoNode, formatCUEError(err)
			}
			for list.Next() {
				items = append(items, list.Value())
			}
		}
		for _, item := range items {
			child, err := d.node(item)
			if err != nil {
				return syntax.NoNode, err
			}
			d.b.Link(id, rf.role, child)
		}
	}
	return id, nil
}

// scalar converts a concrete CUE scalar into a value. Integral numbers stay
// Int; anything with a fraction is a Double.
func scalar(v cue.Value) (ir.Value, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return ir.Bool(b), err
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: pathOf(v), Message: err.Error(), Pos: v.Pos()}
		}
		return ir.Int(i), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		return ir.Double(f), err
	case cue.StringKind:
		s, err := v.String()
		return ir.String(s), err
	}
	return nil, &CompileError{Field: pathOf(v), Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()), Pos: v.Pos()}
}

// literal decodes the value field of a literal node of the given kind.
func literal(kind syntax.Kind, v cue.Value) (ir.Value, error) {
	lit, err := scalar(v)
	if err != nil {
		return nil, err
	}
	switch kind {
	case syntax.DoubleLiteral:
		if i, ok := lit.(ir.Int); ok {
			return ir.Double(i), nil
		}
	case syntax.NullLiteral:
		return ir.Null{}, nil
	}
	want := map[syntax.Kind]string{
		syntax.BoolLiteral:   "bool",
		syntax.IntLiteral:    "int",
		syntax.DoubleLiteral: "double",
		syntax.StringLiteral: "string",
	}[kind]
	if got := ir.KindName(lit); got != want {
		return nil, fmt.Errorf("%s value must be %s, got %s", kind, want, got)
	}
	return lit, nil
}

func pathOf(v cue.Value) string {
	if p := v.Path().String(); p != "" {
		return p
	}
	return "query"
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
