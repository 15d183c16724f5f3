package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeCollectionAccepts(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		name   string
		specs  []TypeSpec
		accept []string
		reject []string
	}{
		{
			name:   "empty accepts all",
			accept: []string{"City", "Capital", "Road"},
		},
		{
			name:   "allowed includes subclasses",
			specs:  []TypeSpec{{Name: "City"}},
			accept: []string{"City", "Capital"},
			reject: []string{"Node", "Road"},
		},
		{
			name:   "exact excludes subclasses",
			specs:  []TypeSpec{{Name: "City", Exact: true}},
			accept: []string{"City"},
			reject: []string{"Capital"},
		},
		{
			name:   "forbidden only",
			specs:  []TypeSpec{{Name: "Highway", Forbidden: true}},
			accept: []string{"Road", "City"},
			reject: []string{"Highway"},
		},
		{
			name:   "forbidden beats allowed",
			specs:  []TypeSpec{{Name: "Road"}, {Name: "Highway", Forbidden: true}},
			accept: []string{"Road"},
			reject: []string{"Highway", "City"},
		},
		{
			name:   "forbidden beats allowed regardless of order",
			specs:  []TypeSpec{{Name: "Highway", Forbidden: true}, {Name: "Highway"}},
			reject: []string{"Highway"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			coll, err := NewTypeCollection(s, tc.specs...)
			require.NoError(t, err)
			for _, c := range tc.accept {
				assert.True(t, coll.Accepts(c), "expected %s accepted", c)
			}
			for _, c := range tc.reject {
				assert.False(t, coll.Accepts(c), "expected %s rejected", c)
			}
		})
	}
}

func TestTypeCollectionUnknownClass(t *testing.T) {
	_, err := NewTypeCollection(testSchema(t), TypeSpec{Name: "Bridge"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestTypeCollectionNilAcceptsAll(t *testing.T) {
	var tc *TypeCollection
	assert.True(t, tc.Accepts("anything"))
	assert.True(t, tc.AcceptsRole("any"))
	assert.True(t, tc.IsEmpty())
	assert.Equal(t, "{}", tc.String())
}

func TestTypeCollectionCombine(t *testing.T) {
	s := testSchema(t)
	cities, err := NewTypeCollection(s, TypeSpec{Name: "City"})
	require.NoError(t, err)
	capitals, err := NewTypeCollection(s, TypeSpec{Name: "Capital"})
	require.NoError(t, err)
	noCapital, err := NewTypeCollection(s, TypeSpec{Name: "Capital", Forbidden: true})
	require.NoError(t, err)
	roads, err := NewTypeCollection(s, TypeSpec{Name: "Road"})
	require.NoError(t, err)

	both := cities.Combine(capitals)
	assert.True(t, both.Accepts("Capital"))
	assert.False(t, both.Accepts("City"))

	plainCities := cities.Combine(noCapital)
	assert.True(t, plainCities.Accepts("City"))
	assert.False(t, plainCities.Accepts("Capital"))

	disjoint := cities.Combine(roads)
	assert.False(t, disjoint.Accepts("City"))
	assert.False(t, disjoint.Accepts("Road"))
	assert.Equal(t, "{∅}", disjoint.String())

	// Combining never mutates the operands.
	assert.True(t, cities.Accepts("City"))
}

func TestTypeCollectionRoles(t *testing.T) {
	s := testSchema(t)
	roads, err := NewTypeCollection(s, TypeSpec{Name: "Road"})
	require.NoError(t, err)

	withDst := roads.WithRoles("dst")
	assert.True(t, withDst.AcceptsRole("dst"))
	assert.False(t, withDst.AcceptsRole("src"))
	assert.True(t, roads.AcceptsRole("src"), "WithRoles copies")

	none := withDst.WithRoles("src")
	assert.False(t, none.AcceptsRole("src"))
	assert.False(t, none.AcceptsRole("dst"))
	assert.Equal(t, "{Highway,Road}@{}", none.String())
}

func TestTypeCollectionStringIsCanonical(t *testing.T) {
	s := testSchema(t)
	a, err := NewTypeCollection(s, TypeSpec{Name: "Capital"}, TypeSpec{Name: "City", Exact: true})
	require.NoError(t, err)
	b, err := NewTypeCollection(s, TypeSpec{Name: "City"})
	require.NoError(t, err)

	assert.Equal(t, "{Capital,City}", a.String())
	assert.Equal(t, a.CanonicalKey(), b.CanonicalKey())
}
