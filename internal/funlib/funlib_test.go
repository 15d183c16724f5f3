package funlib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/schema"
	"github.com/roach88/greql/internal/testutil"
)

func apply(t *testing.T, env Env, name string, args ...ir.Value) (ir.Value, error) {
	t.Helper()
	f, err := Default().Lookup(name)
	require.NoError(t, err)
	require.NoError(t, f.CheckArity(len(args)))
	return f.Apply(env, args)
}

func mustApply(t *testing.T, env Env, name string, args ...ir.Value) ir.Value {
	t.Helper()
	v, err := apply(t, env, name, args...)
	require.NoError(t, err)
	return v
}

func TestLookupUnknownSuggests(t *testing.T) {
	r := Default()

	_, err := r.Lookup("equls")
	require.ErrorIs(t, err, ErrUnknownFunction)
	var ufe *UnknownFunctionError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "equals", ufe.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "equals"`)

	_, err = r.Lookup("frobnicate")
	require.ErrorAs(t, err, &ufe)
	assert.Empty(t, ufe.Suggestion)
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	identity := FunctionInfo{Name: "identity", MinArgs: 1, MaxArgs: 1,
		Apply: func(_ Env, args []ir.Value) (ir.Value, error) { return args[0], nil }}

	require.NoError(t, r.Register(identity))
	assert.Error(t, r.Register(identity), "duplicate")
	assert.Error(t, r.Register(FunctionInfo{Name: "noop"}), "missing apply")
	assert.Equal(t, []string{"identity"}, r.Names())
}

func TestCheckArity(t *testing.T) {
	r := Default()
	and, _ := r.Lookup("and")
	concat, _ := r.Lookup("concat")
	degree, _ := r.Lookup("degree")

	assert.NoError(t, and.CheckArity(2))
	assert.ErrorContains(t, and.CheckArity(3), "expects 2 arguments")
	assert.NoError(t, concat.CheckArity(5))
	assert.ErrorContains(t, concat.CheckArity(1), "at least 2")
	assert.ErrorContains(t, degree.CheckArity(3), "1 to 2")
}

func TestThreeValuedLogic(t *testing.T) {
	T, F, N := ir.Bool(true), ir.Bool(false), ir.Null{}
	tests := []struct {
		fn   string
		a, b ir.Value
		want ir.Value
	}{
		{"and", T, T, T},
		{"and", T, F, F},
		{"and", N, F, F},
		{"and", N, T, N},
		{"or", F, F, F},
		{"or", N, T, T},
		{"or", N, F, N},
		{"xor", T, F, T},
		{"xor", T, N, N},
	}
	for _, tc := range tests {
		got := mustApply(t, Env{}, tc.fn, tc.a, tc.b)
		assert.Equal(t, tc.want, got, "%s(%s, %s)", tc.fn, ir.Format(tc.a), ir.Format(tc.b))
	}

	assert.Equal(t, F, mustApply(t, Env{}, "not", T))
	assert.Equal(t, N, mustApply(t, Env{}, "not", N))

	_, err := apply(t, Env{}, "and", ir.Int(1), T)
	var te *ir.TypeError
	assert.ErrorAs(t, err, &te)
}

func TestComparisonAndArithmetic(t *testing.T) {
	tests := []struct {
		fn   string
		args []ir.Value
		want ir.Value
	}{
		{"equals", []ir.Value{ir.Int(2), ir.Double(2)}, ir.Bool(true)},
		{"equals", []ir.Value{ir.String("a"), ir.String("b")}, ir.Bool(false)},
		{"nequals", []ir.Value{ir.Vertex(1), ir.Vertex(2)}, ir.Bool(true)},
		{"grThan", []ir.Value{ir.Int(3), ir.Double(2.5)}, ir.Bool(true)},
		{"leEqual", []ir.Value{ir.String("a"), ir.String("b")}, ir.Bool(true)},
		{"grEqual", []ir.Value{ir.Null{}, ir.Int(1)}, ir.Null{}},
		{"plus", []ir.Value{ir.Int(2), ir.Int(3)}, ir.Int(5)},
		{"plus", []ir.Value{ir.Int(2), ir.Double(0.5)}, ir.Double(2.5)},
		{"plus", []ir.Value{ir.String("ab"), ir.String("c")}, ir.String("abc")},
		{"minus", []ir.Value{ir.Int(2), ir.Int(3)}, ir.Int(-1)},
		{"times", []ir.Value{ir.Int(4), ir.Null{}}, ir.Null{}},
		{"dividedBy", []ir.Value{ir.Int(3), ir.Int(2)}, ir.Double(1.5)},
		{"modulo", []ir.Value{ir.Int(7), ir.Int(3)}, ir.Int(1)},
		{"neg", []ir.Value{ir.Double(1.5)}, ir.Double(-1.5)},
	}
	for _, tc := range tests {
		got := mustApply(t, Env{}, tc.fn, tc.args...)
		assert.Equal(t, tc.want, got, tc.fn)
	}

	inf := mustApply(t, Env{}, "dividedBy", ir.Int(1), ir.Int(0))
	assert.True(t, math.IsInf(float64(inf.(ir.Double)), 1))

	_, err := apply(t, Env{}, "modulo", ir.Int(1), ir.Int(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = apply(t, Env{}, "grThan", ir.Int(1), ir.String("x"))
	var te *ir.TypeError
	assert.ErrorAs(t, err, &te)
}

func TestCollections(t *testing.T) {
	a := ir.NewSet(ir.Int(1), ir.Int(2), ir.Int(3))
	b := ir.List{ir.Int(2), ir.Int(4)}

	assert.Equal(t, ir.Int(3), mustApply(t, Env{}, "count", a))
	assert.Equal(t, ir.Int(0), mustApply(t, Env{}, "count", ir.Null{}))
	assert.Equal(t, ir.Bool(true), mustApply(t, Env{}, "isEmpty", ir.EmptySet()))
	assert.Equal(t, ir.Bool(true), mustApply(t, Env{}, "contains", b, ir.Int(4)))
	assert.Equal(t, ir.Bool(false), mustApply(t, Env{}, "contains", a, ir.Int(4)))

	assert.True(t, ir.Equal(ir.NewSet(ir.Int(1), ir.Int(2), ir.Int(3), ir.Int(4)), mustApply(t, Env{}, "union", a, b)))
	assert.True(t, ir.Equal(ir.NewSet(ir.Int(2)), mustApply(t, Env{}, "intersection", a, b)))
	assert.True(t, ir.Equal(ir.NewSet(ir.Int(1), ir.Int(3)), mustApply(t, Env{}, "difference", a, b)))

	assert.Equal(t, ir.List{ir.Int(2), ir.Int(4), ir.Int(1)}, mustApply(t, Env{}, "concat", b, ir.List{ir.Int(1)}))
	assert.Equal(t, ir.String("xyz"), mustApply(t, Env{}, "concat", ir.String("x"), ir.Null{}, ir.String("yz")))

	assert.Equal(t, ir.Int(3), mustApply(t, Env{}, "max", a))
	assert.Equal(t, ir.Int(1), mustApply(t, Env{}, "min", a))
	assert.Equal(t, ir.Null{}, mustApply(t, Env{}, "max", ir.EmptySet()))
	assert.Equal(t, ir.Int(6), mustApply(t, Env{}, "sum", a))
	assert.Equal(t, ir.Double(6.5), mustApply(t, Env{}, "sum", ir.List{ir.Int(6), ir.Double(0.5)}))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, ir.Bool(true), mustApply(t, Env{}, "reMatch", ir.String("road-12"), ir.String(`road-\d+`)))
	assert.Equal(t, ir.Bool(false), mustApply(t, Env{}, "reMatch", ir.String("xroad-12"), ir.String(`road-\d+`)))
	assert.Equal(t, ir.Bool(true), mustApply(t, Env{}, "isNull", ir.Null{}))

	_, err := apply(t, Env{}, "reMatch", ir.String("x"), ir.String("("))
	assert.Error(t, err)
}

func TestGraphFunctions(t *testing.T) {
	c := testutil.NewChain()
	env := Env{Graph: c.Graph}

	assert.Equal(t, ir.String("B"), mustApply(t, env, "getValue", c.B, ir.String("name")))
	assert.Equal(t, ir.Null{}, mustApply(t, env, "getValue", c.B, ir.String("weight")))
	assert.Equal(t, ir.Int(1), mustApply(t, env, "getValue", ir.Record{"x": ir.Int(1)}, ir.String("x")))
	assert.Equal(t, ir.String("T2"), mustApply(t, env, "typeName", c.BC))
	assert.Equal(t, ir.Bool(true), mustApply(t, env, "hasType", c.A, ir.String("V")))
	assert.Equal(t, ir.Bool(false), mustApply(t, env, "hasType", c.AB, ir.String("T2")))
	assert.Equal(t, ir.Int(c.B), mustApply(t, env, "id", c.B))
	assert.Equal(t, c.A, mustApply(t, env, "alpha", c.AB))
	assert.Equal(t, c.C, mustApply(t, env, "omega", c.BC))

	assert.Equal(t, ir.Int(2), mustApply(t, env, "degree", c.B))
	assert.Equal(t, ir.Int(1), mustApply(t, env, "inDegree", c.B))
	assert.Equal(t, ir.Int(0), mustApply(t, env, "outDegree", c.C))

	t2, err := schema.NewTypeCollection(c.Graph.Schema(), schema.TypeSpec{Name: "T2"})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), mustApply(t, env, "degree", c.B, ir.Opaque{Label: "types", Payload: t2}))
	assert.Equal(t, ir.Bool(true), mustApply(t, env, "hasType", c.BC, ir.Opaque{Label: "types", Payload: t2}))

	view := graph.NewMarker()
	view.MarkVertex(c.A)
	view.MarkVertex(c.B)
	view.MarkEdge(c.AB)
	assert.Equal(t, ir.Int(1), mustApply(t, Env{Graph: c.Graph, View: view}, "degree", c.B))

	_, err = apply(t, env, "typeName", ir.Int(3))
	var te *ir.TypeError
	assert.ErrorAs(t, err, &te)
}

func TestEstimates(t *testing.T) {
	r := Default()
	and, _ := r.Lookup("and")
	not, _ := r.Lookup("not")
	union, _ := r.Lookup("union")
	plus, _ := r.Lookup("plus")

	assert.InDelta(t, 0.25, and.EstimateSelectivity([]float64{0.5, 0.5}), 1e-9)
	assert.InDelta(t, 0.9, not.EstimateSelectivity([]float64{0.1}), 1e-9)
	assert.Equal(t, 1.0, plus.EstimateSelectivity(nil))
	assert.Equal(t, int64(30), union.EstimateCardinality([]int64{10, 20}))
	assert.Equal(t, int64(30), union.EstimateCost([]int64{10, 20}))
	assert.Equal(t, int64(1), plus.EstimateCost([]int64{1, 1}))
}
