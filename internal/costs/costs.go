// Package costs holds the statistics and cost records used by the
// evaluator's cost oracle.
//
// GraphSize is an immutable snapshot of host graph statistics. VertexCosts
// is the (own, iterated, subtree) triple every evaluator node produces.
// Model collects the tunable heuristic constants. None of the numbers are
// load-bearing for correctness; they only rank alternative evaluation orders.
package costs

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/schema"
)

// GraphSize summarises a host graph for estimation.
// Treat values as immutable after construction.
type GraphSize struct {
	VertexCount int64
	EdgeCount   int64
	// Per concrete class counts. Subclass instances are counted under their
	// own class only.
	VertexTypeCounts map[string]int64
	EdgeTypeCounts   map[string]int64
}

// NewGraphSize counts the vertices and edges of g per class.
func NewGraphSize(g graph.Graph) (GraphSize, error) {
	size := GraphSize{
		VertexTypeCounts: make(map[string]int64),
		EdgeTypeCounts:   make(map[string]int64),
	}
	for v := range g.Vertices() {
		c, err := g.VertexClass(v)
		if err != nil {
			return GraphSize{}, err
		}
		size.VertexCount++
		size.VertexTypeCounts[c]++
	}
	for e := range g.Edges() {
		c, err := g.EdgeClass(e)
		if err != nil {
			return GraphSize{}, err
		}
		size.EdgeCount++
		size.EdgeTypeCounts[c]++
	}
	return size, nil
}

// Key returns a deterministic identity of the snapshot. Cost memos are
// keyed by it, so a changed GraphSize forces recomputation.
func (s GraphSize) Key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "V%d/E%d", s.VertexCount, s.EdgeCount)
	for _, k := range slices.Sorted(maps.Keys(s.VertexTypeCounts)) {
		fmt.Fprintf(&sb, "|v:%s=%d", k, s.VertexTypeCounts[k])
	}
	for _, k := range slices.Sorted(maps.Keys(s.EdgeTypeCounts)) {
		fmt.Fprintf(&sb, "|e:%s=%d", k, s.EdgeTypeCounts[k])
	}
	return sb.String()
}

// AverageDegree returns the mean number of incidences per vertex.
func (s GraphSize) AverageDegree() float64 {
	if s.VertexCount == 0 {
		return 0
	}
	return 2 * float64(s.EdgeCount) / float64(s.VertexCount)
}

// VertexTypeCount returns how many vertices tc accepts.
func (s GraphSize) VertexTypeCount(tc *schema.TypeCollection) int64 {
	if tc.IsEmpty() {
		return s.VertexCount
	}
	return countAccepted(s.VertexTypeCounts, tc)
}

// EdgeTypeCount returns how many edges tc accepts.
func (s GraphSize) EdgeTypeCount(tc *schema.TypeCollection) int64 {
	if tc.IsEmpty() {
		return s.EdgeCount
	}
	return countAccepted(s.EdgeTypeCounts, tc)
}

func countAccepted(counts map[string]int64, tc *schema.TypeCollection) int64 {
	var n int64
	for class, c := range counts {
		if tc.Accepts(class) {
			n += c
		}
	}
	return n
}

// VertexFraction returns the share of vertices tc accepts, in [0,1].
// An empty graph yields 1 so that estimates stay neutral.
func (s GraphSize) VertexFraction(tc *schema.TypeCollection) float64 {
	if s.VertexCount == 0 {
		return 1
	}
	return float64(s.VertexTypeCount(tc)) / float64(s.VertexCount)
}

// EdgeFraction returns the share of edges tc accepts, in [0,1].
func (s GraphSize) EdgeFraction(tc *schema.TypeCollection) float64 {
	if s.EdgeCount == 0 {
		return 1
	}
	return float64(s.EdgeTypeCount(tc)) / float64(s.EdgeCount)
}

// VertexCosts is the cost triple of one evaluator node.
//
//   - Own: one evaluation of the node itself
//   - Iterated: Own times the variable-binding combinations in scope
//   - Subtree: Iterated plus the Subtree costs of all children
type VertexCosts struct {
	Own      int64 `json:"own"`
	Iterated int64 `json:"iterated"`
	Subtree  int64 `json:"subtree"`
}

// NewVertexCosts derives the triple from a node's own cost, its binding
// combinations and its children. combos below 1 count as 1; negative own
// costs count as 0. Arithmetic saturates at math.MaxInt64.
func NewVertexCosts(own, combos int64, children ...VertexCosts) VertexCosts {
	own = max(own, 0)
	combos = max(combos, 1)
	iterated := SatMul(own, combos)
	subtree := iterated
	for _, c := range children {
		subtree = SatAdd(subtree, c.Subtree)
	}
	return VertexCosts{Own: own, Iterated: iterated, Subtree: subtree}
}

// Valid reports whether Subtree >= Iterated >= Own >= 0.
func (c VertexCosts) Valid() bool {
	return c.Subtree >= c.Iterated && c.Iterated >= c.Own && c.Own >= 0
}

// String renders the triple as "own/iterated/subtree".
func (c VertexCosts) String() string {
	return strconv.FormatInt(c.Own, 10) + "/" +
		strconv.FormatInt(c.Iterated, 10) + "/" +
		strconv.FormatInt(c.Subtree, 10)
}

// SatAdd adds non-negative a and b, saturating at math.MaxInt64.
func SatAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// SatMul multiplies non-negative a and b, saturating at math.MaxInt64.
func SatMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

// Clamp converts a float estimate to a non-negative int64.
func Clamp(f float64) int64 {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(math.Ceil(f))
}
