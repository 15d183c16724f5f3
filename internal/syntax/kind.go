package syntax

import "fmt"

// Kind tags a syntax node with the language construct it represents.
type Kind int

const (
	KindInvalid Kind = iota

	// Literals
	BoolLiteral
	IntLiteral
	DoubleLiteral
	StringLiteral
	NullLiteral

	// Variables and names
	Variable
	ThisVertex
	ThisEdge
	Identifier

	// Expressions
	FunctionApplication
	ConditionalExpression
	QuantifiedExpression
	SetComprehension
	ListComprehension
	MapComprehension
	LetExpression
	WhereExpression
	Definition
	VertexSetExpression
	EdgeSetExpression
	TypeID
	RoleID
	EdgeRestriction
	ListConstruction
	SetConstruction
	TupleConstruction
	RecordConstruction
	RecordElement
	ListRangeConstruction
	SubgraphRestrictedExpression
	VertexInducedSubgraph
	EdgeInducedSubgraph
	ExpressionDefinedSubgraph
	Declaration
	SimpleDeclaration
	Query

	// Path expressions
	ForwardVertexSet
	BackwardVertexSet
	PathExistence

	// Path descriptions
	SimplePathDescription
	EdgePathDescription
	AggregationPathDescription
	SequentialPathDescription
	AlternativePathDescription
	IteratedPathDescription
	OptionalPathDescription
	TransposedPathDescription
	ExponentiatedPathDescription
	IntermediateVertexPathDescription

	kindCount
)

var kindNames = [...]string{
	KindInvalid:                       "Invalid",
	BoolLiteral:                       "BoolLiteral",
	IntLiteral:                        "IntLiteral",
	DoubleLiteral:                     "DoubleLiteral",
	StringLiteral:                     "StringLiteral",
	NullLiteral:                       "NullLiteral",
	Variable:                          "Variable",
	ThisVertex:                        "ThisVertex",
	ThisEdge:                          "ThisEdge",
	Identifier:                        "Identifier",
	FunctionApplication:               "FunctionApplication",
	ConditionalExpression:             "ConditionalExpression",
	QuantifiedExpression:              "QuantifiedExpression",
	SetComprehension:                  "SetComprehension",
	ListComprehension:                 "ListComprehension",
	MapComprehension:                  "MapComprehension",
	LetExpression:                     "LetExpression",
	WhereExpression:                   "WhereExpression",
	Definition:                        "Definition",
	VertexSetExpression:               "VertexSetExpression",
	EdgeSetExpression:                 "EdgeSetExpression",
	TypeID:                            "TypeId",
	RoleID:                            "RoleId",
	EdgeRestriction:                   "EdgeRestriction",
	ListConstruction:                  "ListConstruction",
	SetConstruction:                   "SetConstruction",
	TupleConstruction:                 "TupleConstruction",
	RecordConstruction:                "RecordConstruction",
	RecordElement:                     "RecordElement",
	ListRangeConstruction:             "ListRangeConstruction",
	SubgraphRestrictedExpression:      "SubgraphRestrictedExpression",
	VertexInducedSubgraph:             "VertexInducedSubgraph",
	EdgeInducedSubgraph:               "EdgeInducedSubgraph",
	ExpressionDefinedSubgraph:         "ExpressionDefinedSubgraph",
	Declaration:                       "Declaration",
	SimpleDeclaration:                 "SimpleDeclaration",
	Query:                             "Query",
	ForwardVertexSet:                  "ForwardVertexSet",
	BackwardVertexSet:                 "BackwardVertexSet",
	PathExistence:                     "PathExistence",
	SimplePathDescription:             "SimplePathDescription",
	EdgePathDescription:               "EdgePathDescription",
	AggregationPathDescription:        "AggregationPathDescription",
	SequentialPathDescription:         "SequentialPathDescription",
	AlternativePathDescription:        "AlternativePathDescription",
	IteratedPathDescription:           "IteratedPathDescription",
	OptionalPathDescription:           "OptionalPathDescription",
	TransposedPathDescription:         "TransposedPathDescription",
	ExponentiatedPathDescription:      "ExponentiatedPathDescription",
	IntermediateVertexPathDescription: "IntermediateVertexPathDescription",
}

// String returns the construct name used in query documents.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		if Kind(k) != KindInvalid {
			m[name] = Kind(k)
		}
	}
	return m
}()

// ParseKind resolves a construct name.
func ParseKind(name string) (Kind, error) {
	if k, ok := kindByName[name]; ok {
		return k, nil
	}
	return KindInvalid, fmt.Errorf("unknown node kind %q", name)
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindInvalid + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// IsPathDescription reports whether k compiles to an automaton.
func (k Kind) IsPathDescription() bool {
	return k >= SimplePathDescription && k <= IntermediateVertexPathDescription
}

// IsLiteral reports whether k is a literal kind.
func (k Kind) IsLiteral() bool {
	return k >= BoolLiteral && k <= NullLiteral
}

// IsSubgraphDefinition reports whether k defines a subgraph view.
func (k Kind) IsSubgraphDefinition() bool {
	return k == VertexInducedSubgraph || k == EdgeInducedSubgraph || k == ExpressionDefinedSubgraph
}

// Quantifier selects the semantics of a QuantifiedExpression.
type Quantifier int

const (
	ForAll Quantifier = iota
	Exists
	ExistsExactlyOne
)

// String returns "forall", "exists" or "exists!".
func (q Quantifier) String() string {
	switch q {
	case Exists:
		return "exists"
	case ExistsExactlyOne:
		return "exists!"
	default:
		return "forall"
	}
}

// ParseQuantifier parses the names produced by String.
func ParseQuantifier(s string) (Quantifier, error) {
	switch s {
	case "", "forall":
		return ForAll, nil
	case "exists":
		return Exists, nil
	case "exists!":
		return ExistsExactlyOne, nil
	}
	return ForAll, fmt.Errorf("invalid quantifier %q", s)
}
