package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Verify all types implement Value (compile-time check via assignment)
	var _ Value = Null{}
	var _ Value = Bool(true)
	var _ Value = Int(42)
	var _ Value = Double(1.5)
	var _ Value = String("test")
	var _ Value = Vertex(1)
	var _ Value = Edge(1)
	var _ Value = List{Int(1)}
	var _ Value = Tuple{Int(1), String("a")}
	var _ Value = Record{"k": Int(1)}
	var _ Value = NewSet()
	var _ Value = NewMapBuilder().Build()
	var _ Value = Opaque{Label: "x"}
}

func TestSetDeduplicatesAndSorts(t *testing.T) {
	s := NewSet(Vertex(3), Vertex(1), Vertex(3), Vertex(2))

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []Value{Vertex(1), Vertex(2), Vertex(3)}, s.Elements())
	assert.True(t, s.Contains(Vertex(2)))
	assert.False(t, s.Contains(Vertex(4)))
	assert.False(t, s.Contains(Edge(2)), "edges and vertices with equal ids are distinct")
}

func TestSetBuilderAddReportsNovelty(t *testing.T) {
	b := NewSetBuilder(2)

	assert.True(t, b.Add(String("a")))
	assert.False(t, b.Add(String("a")))
	assert.True(t, b.Add(String("b")))
	assert.Equal(t, 2, b.Len())
}

func TestNilSetIsEmpty(t *testing.T) {
	var s *Set
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(Int(1)))
	assert.Nil(t, s.Elements())
}

func TestMapBuilderOverwrites(t *testing.T) {
	b := NewMapBuilder()
	b.Put(String("b"), Int(1))
	b.Put(String("a"), Int(2))
	b.Put(String("b"), Int(3))
	m := b.Build()

	require.Equal(t, 2, m.Len())
	keys, vals := m.Entries()
	assert.Equal(t, []Value{String("a"), String("b")}, keys)
	assert.Equal(t, []Value{Int(2), Int(3)}, vals)

	got, ok := m.Get(String("b"))
	require.True(t, ok)
	assert.Equal(t, Int(3), got)
}

func TestKindName(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null{}, "null"},
		{Bool(true), "bool"},
		{Int(1), "int"},
		{Double(1), "double"},
		{String("s"), "string"},
		{Vertex(1), "vertex"},
		{Edge(1), "edge"},
		{List{}, "list"},
		{Tuple{}, "tuple"},
		{Record{}, "record"},
		{NewSet(), "set"},
		{Opaque{Label: "nfa"}, "nfa"},
		{nil, "<nil>"},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, KindName(tc.v))
		})
	}
}

func TestFormat(t *testing.T) {
	v := Record{
		"path":  List{Vertex(1), Edge(2), Vertex(3)},
		"count": Int(2),
		"tags":  NewSet(String("b"), String("a")),
	}

	assert.Equal(t, `rec(count: 2, path: [v1, e2, v3], tags: {"a", "b"})`, Format(v))
}

func TestAsBoolTypeError(t *testing.T) {
	_, err := AsBool(Int(1))
	require.Error(t, err)

	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "bool", te.Want)
	assert.Equal(t, "int", te.Got)
}

func TestAsIntAcceptsIntegralDouble(t *testing.T) {
	n, err := AsInt(Double(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = AsInt(Double(2.5))
	assert.Error(t, err)

	_, err = AsInt(String("3"))
	assert.Error(t, err)
}

func TestElements(t *testing.T) {
	elems, err := Elements(Null{})
	require.NoError(t, err)
	assert.Empty(t, elems)

	elems, err = Elements(List{Int(1), Int(1)})
	require.NoError(t, err)
	assert.Len(t, elems, 2)

	_, err = Elements(Int(1))
	assert.Error(t, err)
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":   "A",
		"weight": 2,
		"ratio":  0.5,
		"tags":   []any{"x", true, nil},
	})
	require.NoError(t, err)

	assert.Equal(t, Record{
		"name":   String("A"),
		"weight": Int(2),
		"ratio":  Double(0.5),
		"tags":   List{String("x"), Bool(true), Null{}},
	}, v)

	_, err = FromGo(struct{}{})
	assert.Error(t, err)
}
