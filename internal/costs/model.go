package costs

// Model carries the heuristic constants of the cost oracle.
// Values are relative units; only their ratios matter.
type Model struct {
	// AtomCost is the cost of evaluating a literal, variable or identifier.
	AtomCost int64
	// ConstructionElementCost is paid per element of a collection construction.
	ConstructionElementCost int64
	// FunctionCallCost is the fallback for functions without a cost estimate.
	FunctionCallCost int64
	// ConditionCost covers conditional and quantified expression bookkeeping.
	ConditionCost int64

	// DeclarationCost is paid per variable combination a declaration visits.
	DeclarationCost int64
	// ComprehensionElementCost is paid per result element of a comprehension.
	ComprehensionElementCost int64

	// VertexSetCostFactor and EdgeSetCostFactor scale V{} and E{} scans.
	VertexSetCostFactor int64
	EdgeSetCostFactor   int64

	// TransitionCost is paid per automaton transition built; the
	// determinization overhead of an automaton is its transition count
	// times DeterminizationFactor.
	TransitionCost        int64
	DeterminizationFactor int64

	// SearchFactor scales the (vertex + edge) term of a reachability search.
	SearchFactor int64
	// SubgraphCostFactor scales marking a subgraph.
	SubgraphCostFactor int64

	// ReachableFraction estimates which share of vertices a forward or
	// backward search returns.
	ReachableFraction float64
	// PathExistenceSelectivity is the assumed probability of a path existing.
	PathExistenceSelectivity float64
	// ComparisonSelectivity is used for relational comparisons.
	ComparisonSelectivity float64
	// EqualitySelectivity is used for equality tests.
	EqualitySelectivity float64
	// DefaultRangeCardinality is assumed for list ranges with unknown bounds.
	DefaultRangeCardinality int64
}

// DefaultModel returns the calibration used when no other model is given.
func DefaultModel() Model {
	return Model{
		AtomCost:                 1,
		ConstructionElementCost:  1,
		FunctionCallCost:         2,
		ConditionCost:            1,
		DeclarationCost:          2,
		ComprehensionElementCost: 2,
		VertexSetCostFactor:      1,
		EdgeSetCostFactor:        1,
		TransitionCost:           2,
		DeterminizationFactor:    4,
		SearchFactor:             3,
		SubgraphCostFactor:       2,
		ReachableFraction:        0.1,
		PathExistenceSelectivity: 0.1,
		ComparisonSelectivity:    0.5,
		EqualitySelectivity:      0.1,
		DefaultRangeCardinality:  10,
	}
}
