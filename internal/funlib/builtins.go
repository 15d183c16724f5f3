package funlib

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
)

// ErrDivisionByZero is returned by integer division and modulo by zero.
var ErrDivisionByZero = errors.New("division by zero")

// Selectivity defaults of the built-in predicates.
const (
	equalitySelectivity   = 0.1
	comparisonSelectivity = 0.5
	typeTestSelectivity   = 0.5
	nullTestSelectivity   = 0.1
)

func builtins() []FunctionInfo {
	return []FunctionInfo{
		// Logic uses three-valued semantics: null stands for unknown.
		{Name: "and", MinArgs: 2, MaxArgs: 2, Apply: and, Selectivity: func(s []float64) float64 { return s[0] * s[1] }},
		{Name: "or", MinArgs: 2, MaxArgs: 2, Apply: or, Selectivity: func(s []float64) float64 { return s[0] + s[1] - s[0]*s[1] }},
		{Name: "xor", MinArgs: 2, MaxArgs: 2, Apply: xor, Selectivity: func(s []float64) float64 { return s[0] + s[1] - 2*s[0]*s[1] }},
		{Name: "not", MinArgs: 1, MaxArgs: 1, Apply: not, Selectivity: func(s []float64) float64 { return 1 - s[0] }},

		{Name: "equals", MinArgs: 2, MaxArgs: 2, Apply: equals, Selectivity: constSel(equalitySelectivity)},
		{Name: "nequals", MinArgs: 2, MaxArgs: 2, Apply: nequals, Selectivity: constSel(1 - equalitySelectivity)},
		{Name: "grThan", MinArgs: 2, MaxArgs: 2, Apply: compareWith(func(c int) bool { return c > 0 }), Selectivity: constSel(comparisonSelectivity)},
		{Name: "grEqual", MinArgs: 2, MaxArgs: 2, Apply: compareWith(func(c int) bool { return c >= 0 }), Selectivity: constSel(comparisonSelectivity)},
		{Name: "leThan", MinArgs: 2, MaxArgs: 2, Apply: compareWith(func(c int) bool { return c < 0 }), Selectivity: constSel(comparisonSelectivity)},
		{Name: "leEqual", MinArgs: 2, MaxArgs: 2, Apply: compareWith(func(c int) bool { return c <= 0 }), Selectivity: constSel(comparisonSelectivity)},

		{Name: "plus", MinArgs: 2, MaxArgs: 2, Apply: plus},
		{Name: "minus", MinArgs: 2, MaxArgs: 2, Apply: arith(func(a, b int64) (int64, error) { return a - b, nil }, func(a, b float64) float64 { return a - b })},
		{Name: "times", MinArgs: 2, MaxArgs: 2, Apply: arith(func(a, b int64) (int64, error) { return a * b, nil }, func(a, b float64) float64 { return a * b })},
		{Name: "dividedBy", MinArgs: 2, MaxArgs: 2, Apply: dividedBy},
		{Name: "modulo", MinArgs: 2, MaxArgs: 2, Apply: arith(intModulo, math.Mod)},
		{Name: "neg", MinArgs: 1, MaxArgs: 1, Apply: neg},

		{Name: "count", MinArgs: 1, MaxArgs: 1, Apply: count, Cost: sumCards},
		{Name: "isEmpty", MinArgs: 1, MaxArgs: 1, Apply: isEmpty, Selectivity: constSel(nullTestSelectivity)},
		{Name: "contains", MinArgs: 2, MaxArgs: 2, Apply: contains, Cost: firstCard, Selectivity: constSel(equalitySelectivity)},
		{Name: "union", MinArgs: 2, MaxArgs: 2, Apply: union, Cost: sumCards, Cardinality: sumCards},
		{Name: "intersection", MinArgs: 2, MaxArgs: 2, Apply: intersection, Cost: sumCards, Cardinality: minCard},
		{Name: "difference", MinArgs: 2, MaxArgs: 2, Apply: difference, Cost: sumCards, Cardinality: firstCard},
		{Name: "concat", MinArgs: 2, MaxArgs: -1, Apply: concat, Cost: sumCards, Cardinality: sumCards},
		{Name: "max", MinArgs: 1, MaxArgs: 1, Apply: extremum(1), Cost: sumCards},
		{Name: "min", MinArgs: 1, MaxArgs: 1, Apply: extremum(-1), Cost: sumCards},
		{Name: "sum", MinArgs: 1, MaxArgs: 1, Apply: sum, Cost: sumCards},

		{Name: "isNull", MinArgs: 1, MaxArgs: 1, Apply: isNull, Selectivity: constSel(nullTestSelectivity)},
		{Name: "reMatch", MinArgs: 2, MaxArgs: 2, Apply: reMatch, Cost: func([]int64) int64 { return 10 }, Selectivity: constSel(comparisonSelectivity)},

		{Name: "getValue", MinArgs: 2, MaxArgs: 2, Apply: getValue},
		{Name: "typeName", MinArgs: 1, MaxArgs: 1, Apply: typeName},
		{Name: "hasType", MinArgs: 2, MaxArgs: 2, Apply: hasType, Selectivity: constSel(typeTestSelectivity)},
		{Name: "id", MinArgs: 1, MaxArgs: 1, Apply: id},
		{Name: "alpha", MinArgs: 1, MaxArgs: 1, Apply: endpoint(true)},
		{Name: "omega", MinArgs: 1, MaxArgs: 1, Apply: endpoint(false)},
		{Name: "degree", MinArgs: 1, MaxArgs: 2, Apply: degree(graph.Any), Cost: degreeCost},
		{Name: "inDegree", MinArgs: 1, MaxArgs: 2, Apply: degree(graph.In), Cost: degreeCost},
		{Name: "outDegree", MinArgs: 1, MaxArgs: 2, Apply: degree(graph.Out), Cost: degreeCost},
	}
}

func constSel(s float64) func([]float64) float64 {
	return func([]float64) float64 { return s }
}

func sumCards(cards []int64) int64 {
	var total int64
	for _, c := range cards {
		total += c
	}
	return total
}

func firstCard(cards []int64) int64 { return cards[0] }

func minCard(cards []int64) int64 { return min(cards[0], cards[1]) }

func degreeCost([]int64) int64 { return 4 }

func anyNull(args []ir.Value) bool {
	for _, a := range args {
		if ir.IsNull(a) {
			return true
		}
	}
	return false
}

// truth maps a logic operand to true, false or unknown (known=false).
func truth(v ir.Value) (val, known bool, err error) {
	if ir.IsNull(v) {
		return false, false, nil
	}
	b, err := ir.AsBool(v)
	return b, true, err
}

func and(_ Env, args []ir.Value) (ir.Value, error) {
	a, ka, err := truth(args[0])
	if err != nil {
		return nil, err
	}
	b, kb, err := truth(args[1])
	if err != nil {
		return nil, err
	}
	switch {
	case (ka && !a) || (kb && !b):
		return ir.Bool(false), nil
	case ka && kb:
		return ir.Bool(true), nil
	}
	return ir.Null{}, nil
}

func or(_ Env, args []ir.Value) (ir.Value, error) {
	a, ka, err := truth(args[0])
	if err != nil {
		return nil, err
	}
	b, kb, err := truth(args[1])
	if err != nil {
		return nil, err
	}
	switch {
	case (ka && a) || (kb && b):
		return ir.Bool(true), nil
	case ka && kb:
		return ir.Bool(false), nil
	}
	return ir.Null{}, nil
}

func xor(_ Env, args []ir.Value) (ir.Value, error) {
	a, ka, err := truth(args[0])
	if err != nil {
		return nil, err
	}
	b, kb, err := truth(args[1])
	if err != nil {
		return nil, err
	}
	if !ka || !kb {
		return ir.Null{}, nil
	}
	return ir.Bool(a != b), nil
}

func not(_ Env, args []ir.Value) (ir.Value, error) {
	a, ka, err := truth(args[0])
	if err != nil {
		return nil, err
	}
	if !ka {
		return ir.Null{}, nil
	}
	return ir.Bool(!a), nil
}

func isNumber(v ir.Value) bool {
	switch v.(type) {
	case ir.Int, ir.Double:
		return true
	}
	return false
}

// sameValue compares numbers numerically and everything else by identity.
func sameValue(a, b ir.Value) bool {
	if isNumber(a) && isNumber(b) {
		x, _ := ir.AsNumber(a)
		y, _ := ir.AsNumber(b)
		return x == y
	}
	return ir.Equal(a, b)
}

func equals(_ Env, args []ir.Value) (ir.Value, error) {
	return ir.Bool(sameValue(args[0], args[1])), nil
}

func nequals(_ Env, args []ir.Value) (ir.Value, error) {
	return ir.Bool(!sameValue(args[0], args[1])), nil
}

// compareWith orders numbers numerically and strings lexicographically.
// A null operand yields null.
func compareWith(test func(int) bool) Func {
	return func(_ Env, args []ir.Value) (ir.Value, error) {
		if anyNull(args) {
			return ir.Null{}, nil
		}
		a, b := args[0], args[1]
		switch {
		case isNumber(a) && isNumber(b):
			x, _ := ir.AsNumber(a)
			y, _ := ir.AsNumber(b)
			c := 0
			if x < y {
				c = -1
			} else if x > y {
				c = 1
			}
			return ir.Bool(test(c)), nil
		default:
			x, err := ir.AsString(a)
			if err != nil {
				return nil, err
			}
			y, err := ir.AsString(b)
			if err != nil {
				return nil, err
			}
			return ir.Bool(test(strings.Compare(x, y))), nil
		}
	}
}

// arith applies intOp to two Ints and floatOp when either operand is a
// Double. A null operand yields null.
func arith(intOp func(a, b int64) (int64, error), floatOp func(a, b float64) float64) Func {
	return func(_ Env, args []ir.Value) (ir.Value, error) {
		if anyNull(args) {
			return ir.Null{}, nil
		}
		x, xInt := args[0].(ir.Int)
		y, yInt := args[1].(ir.Int)
		if xInt && yInt {
			n, err := intOp(int64(x), int64(y))
			if err != nil {
				return nil, err
			}
			return ir.Int(n), nil
		}
		a, err := ir.AsNumber(args[0])
		if err != nil {
			return nil, err
		}
		b, err := ir.AsNumber(args[1])
		if err != nil {
			return nil, err
		}
		return ir.Double(floatOp(a, b)), nil
	}
}

var addNumbers = arith(func(a, b int64) (int64, error) { return a + b, nil }, func(a, b float64) float64 { return a + b })

// plus adds numbers and concatenates strings.
func plus(env Env, args []ir.Value) (ir.Value, error) {
	if a, ok := args[0].(ir.String); ok {
		b, err := ir.AsString(args[1])
		if err != nil {
			return nil, err
		}
		return a + ir.String(b), nil
	}
	return addNumbers(env, args)
}

func intModulo(a, b int64) (int64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a % b, nil
}

// dividedBy always yields a Double, so 1/0 is +Inf rather than an error.
func dividedBy(_ Env, args []ir.Value) (ir.Value, error) {
	if anyNull(args) {
		return ir.Null{}, nil
	}
	a, err := ir.AsNumber(args[0])
	if err != nil {
		return nil, err
	}
	b, err := ir.AsNumber(args[1])
	if err != nil {
		return nil, err
	}
	return ir.Double(a / b), nil
}

func neg(_ Env, args []ir.Value) (ir.Value, error) {
	switch n := args[0].(type) {
	case ir.Null:
		return n, nil
	case ir.Int:
		return -n, nil
	case ir.Double:
		return -n, nil
	}
	_, err := ir.AsNumber(args[0])
	return nil, err
}

func count(_ Env, args []ir.Value) (ir.Value, error) {
	elems, err := ir.Elements(args[0])
	if err != nil {
		return nil, err
	}
	return ir.Int(len(elems)), nil
}

func isEmpty(_ Env, args []ir.Value) (ir.Value, error) {
	elems, err := ir.Elements(args[0])
	if err != nil {
		return nil, err
	}
	return ir.Bool(len(elems) == 0), nil
}

func contains(_ Env, args []ir.Value) (ir.Value, error) {
	switch c := args[0].(type) {
	case *ir.Set:
		return ir.Bool(c.Contains(args[1])), nil
	case *ir.Map:
		_, ok := c.Get(args[1])
		return ir.Bool(ok), nil
	}
	elems, err := ir.Elements(args[0])
	if err != nil {
		return nil, err
	}
	for _, e := range elems {
		if ir.Equal(e, args[1]) {
			return ir.Bool(true), nil
		}
	}
	return ir.Bool(false), nil
}

func setOf(v ir.Value) (*ir.Set, error) {
	if s, ok := v.(*ir.Set); ok {
		return s, nil
	}
	elems, err := ir.Elements(v)
	if err != nil {
		return nil, err
	}
	return ir.NewSet(elems...), nil
}

func setOp(args []ir.Value, keep func(inA, inB bool) bool) (ir.Value, error) {
	a, err := setOf(args[0])
	if err != nil {
		return nil, err
	}
	b, err := setOf(args[1])
	if err != nil {
		return nil, err
	}
	out := ir.NewSetBuilder(a.Len() + b.Len())
	for _, e := range a.Elements() {
		if keep(true, b.Contains(e)) {
			out.Add(e)
		}
	}
	for _, e := range b.Elements() {
		if keep(a.Contains(e), true) {
			out.Add(e)
		}
	}
	return out.Build(), nil
}

func union(_ Env, args []ir.Value) (ir.Value, error) {
	return setOp(args, func(inA, inB bool) bool { return true })
}

func intersection(_ Env, args []ir.Value) (ir.Value, error) {
	return setOp(args, func(inA, inB bool) bool { return inA && inB })
}

func difference(_ Env, args []ir.Value) (ir.Value, error) {
	return setOp(args, func(inA, inB bool) bool { return inA && !inB })
}

// concat joins strings or lists. Null arguments are skipped.
func concat(_ Env, args []ir.Value) (ir.Value, error) {
	if _, ok := args[0].(ir.String); ok {
		var sb strings.Builder
		for _, a := range args {
			if ir.IsNull(a) {
				continue
			}
			s, err := ir.AsString(a)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s)
		}
		return ir.String(sb.String()), nil
	}
	var out ir.List
	for _, a := range args {
		elems, err := ir.Elements(a)
		if err != nil {
			return nil, err
		}
		out = append(out, elems...)
	}
	return out, nil
}

// extremum returns the largest (sign 1) or smallest (sign -1) element in
// canonical order. The empty collection yields null.
func extremum(sign int) Func {
	return func(_ Env, args []ir.Value) (ir.Value, error) {
		elems, err := ir.Elements(args[0])
		if err != nil {
			return nil, err
		}
		var best ir.Value = ir.Null{}
		for i, e := range elems {
			if i == 0 || sign*ir.Compare(e, best) > 0 {
				best = e
			}
		}
		return best, nil
	}
}

func sum(env Env, args []ir.Value) (ir.Value, error) {
	elems, err := ir.Elements(args[0])
	if err != nil {
		return nil, err
	}
	var total ir.Value = ir.Int(0)
	for _, e := range elems {
		if total, err = addNumbers(env, []ir.Value{total, e}); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func isNull(_ Env, args []ir.Value) (ir.Value, error) {
	return ir.Bool(ir.IsNull(args[0])), nil
}

func reMatch(_ Env, args []ir.Value) (ir.Value, error) {
	if anyNull(args) {
		return ir.Null{}, nil
	}
	s, err := ir.AsString(args[0])
	if err != nil {
		return nil, err
	}
	pattern, err := ir.AsString(args[1])
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("reMatch: %w", err)
	}
	return ir.Bool(re.MatchString(s)), nil
}

// getValue reads an attribute of a graph element or a field of a record.
func getValue(env Env, args []ir.Value) (ir.Value, error) {
	if ir.IsNull(args[0]) {
		return ir.Null{}, nil
	}
	name, err := ir.AsString(args[1])
	if err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case ir.Vertex, ir.Edge:
		return env.Graph.Attribute(v, name)
	case ir.Record:
		if f, ok := v[name]; ok {
			return f, nil
		}
		return ir.Null{}, nil
	}
	return nil, &ir.TypeError{Want: "graph element or record", Got: ir.KindName(args[0])}
}

func typeName(env Env, args []ir.Value) (ir.Value, error) {
	if ir.IsNull(args[0]) {
		return ir.Null{}, nil
	}
	class, err := elementClass(env, args[0])
	if err != nil {
		return nil, err
	}
	return ir.String(class), nil
}

func elementClass(env Env, v ir.Value) (string, error) {
	switch v.(type) {
	case ir.Vertex, ir.Edge:
		return graph.ClassOf(env.Graph, v)
	}
	return "", &ir.TypeError{Want: "graph element", Got: ir.KindName(v)}
}

// hasType tests an element against a class name (subclasses included) or a
// type collection value.
func hasType(env Env, args []ir.Value) (ir.Value, error) {
	if ir.IsNull(args[0]) {
		return ir.Bool(false), nil
	}
	class, err := elementClass(env, args[0])
	if err != nil {
		return nil, err
	}
	switch t := args[1].(type) {
	case ir.String:
		return ir.Bool(env.Graph.Schema().IsSubclassOf(class, schema.Normalize(string(t)))), nil
	case ir.Opaque:
		if tc, ok := t.Payload.(*schema.TypeCollection); ok {
			return ir.Bool(tc.Accepts(class)), nil
		}
	}
	return nil, &ir.TypeError{Want: "type name or type collection", Got: ir.KindName(args[1])}
}

func id(_ Env, args []ir.Value) (ir.Value, error) {
	switch v := args[0].(type) {
	case ir.Null:
		return v, nil
	case ir.Vertex:
		return ir.Int(v), nil
	case ir.Edge:
		return ir.Int(v), nil
	}
	return nil, &ir.TypeError{Want: "graph element", Got: ir.KindName(args[0])}
}

func endpoint(alpha bool) Func {
	return func(env Env, args []ir.Value) (ir.Value, error) {
		if ir.IsNull(args[0]) {
			return ir.Null{}, nil
		}
		e, err := ir.AsEdge(args[0])
		if err != nil {
			return nil, err
		}
		if alpha {
			return env.Graph.Alpha(e)
		}
		return env.Graph.Omega(e)
	}
}

// degree counts the visible incidences of a vertex, optionally restricted
// to edges whose class passes a type collection.
func degree(dir graph.Direction) Func {
	return func(env Env, args []ir.Value) (ir.Value, error) {
		if ir.IsNull(args[0]) {
			return ir.Null{}, nil
		}
		v, err := ir.AsVertex(args[0])
		if err != nil {
			return nil, err
		}
		var tc *schema.TypeCollection
		if len(args) == 2 {
			o, ok := args[1].(ir.Opaque)
			if tc, _ = o.Payload.(*schema.TypeCollection); !ok || tc == nil {
				return nil, &ir.TypeError{Want: "type collection", Got: ir.KindName(args[1])}
			}
		}
		n := 0
		for inc := range graph.IncidencesIn(env.Graph, env.View, v, dir) {
			if tc != nil {
				class, err := env.Graph.EdgeClass(inc.Edge)
				if err != nil {
					return nil, err
				}
				if !tc.Accepts(class) {
					continue
				}
			}
			n++
		}
		return ir.Int(n), nil
	}
}
