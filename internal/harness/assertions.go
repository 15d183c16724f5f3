package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/greql/internal/eval"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
)

// evaluateAssertion runs one assertion. It returns a failure message, or ""
// when the assertion holds. Errors are reserved for malformed assertions.
func (h *Harness) evaluateAssertion(ctx context.Context, a Assertion, result *Result) (string, error) {
	switch a.Type {
	case AssertResultEquals:
		want, err := decodeValue(a.Value, h.fixture)
		if err != nil {
			return "", fmt.Errorf("value: %w", err)
		}
		if result.Err != nil {
			return "evaluation failed: " + result.Err.Error(), nil
		}
		if !ir.Equal(want, result.Value) {
			return fmt.Sprintf("expected %s, got %s", ir.Format(want), ir.Format(result.Value)), nil
		}
		return "", nil

	case AssertResultContains:
		elems, err := h.resultElements(result)
		if err != nil || elems == nil {
			return failure(err, result), nil
		}
		var missing []string
		for i := range a.Elements {
			want, err := decodeValue(&a.Elements[i], h.fixture)
			if err != nil {
				return "", fmt.Errorf("elements[%d]: %w", i, err)
			}
			if !containsValue(elems, want) {
				missing = append(missing, ir.Format(want))
			}
		}
		if len(missing) > 0 {
			return fmt.Sprintf("%s lacks %s", ir.Format(result.Value), strings.Join(missing, ", ")), nil
		}
		return "", nil

	case AssertResultSize:
		elems, err := h.resultElements(result)
		if err != nil || elems == nil {
			return failure(err, result), nil
		}
		if len(elems) != a.Count {
			return fmt.Sprintf("expected %d elements, got %d in %s", a.Count, len(elems), ir.Format(result.Value)), nil
		}
		return "", nil

	case AssertCostsValid:
		return checkPlan(result.Plan), nil

	case AssertCostBound:
		if got := result.Plan.Costs.Subtree; got > a.Max {
			return fmt.Sprintf("root subtree cost %d exceeds %d", got, a.Max), nil
		}
		return "", nil

	case AssertDFAStates:
		_, dfa, err := h.session.Automaton(ctx, h.node(a), h.bind)
		if err != nil {
			return "automaton: " + err.Error(), nil
		}
		if dfa.NumStates() != a.Count {
			return fmt.Sprintf("expected %d DFA states, got %d", a.Count, dfa.NumStates()), nil
		}
		return "", nil

	case AssertAutomatonEquivalence:
		if err := h.session.VerifyAutomaton(ctx, h.node(a), h.bind); err != nil {
			return err.Error(), nil
		}
		return "", nil
	}
	return "", fmt.Errorf("unknown assertion type %q", a.Type)
}

func (h *Harness) node(a Assertion) syntax.NodeID {
	if a.Node == nil {
		return h.query.Root()
	}
	return syntax.NodeID(*a.Node)
}

// resultElements returns the members of a collection result. A nil slice
// without error means evaluation failed.
func (h *Harness) resultElements(result *Result) ([]ir.Value, error) {
	if result.Err != nil {
		return nil, nil
	}
	if !ir.IsCollection(result.Value) {
		return nil, fmt.Errorf("result %s is not a collection", ir.Format(result.Value))
	}
	elems, err := ir.Elements(result.Value)
	if err != nil {
		return nil, err
	}
	if elems == nil {
		elems = []ir.Value{}
	}
	return elems, nil
}

func failure(err error, result *Result) string {
	if err != nil {
		return err.Error()
	}
	return "evaluation failed: " + result.Err.Error()
}

func containsValue(elems []ir.Value, want ir.Value) bool {
	for _, e := range elems {
		if ir.Equal(e, want) {
			return true
		}
	}
	return false
}

// checkPlan walks the cost plan and reports the first inconsistent node.
func checkPlan(p *eval.Plan) string {
	if p == nil {
		return "no cost plan"
	}
	if !p.Costs.Valid() {
		return fmt.Sprintf("%s#%d has inconsistent costs %s", p.Kind, p.ID, p.Costs)
	}
	if p.Cardinality < 0 {
		return fmt.Sprintf("%s#%d has negative cardinality %d", p.Kind, p.ID, p.Cardinality)
	}
	if p.Selectivity < 0 || p.Selectivity > 1 {
		return fmt.Sprintf("%s#%d has selectivity %g outside [0, 1]", p.Kind, p.ID, p.Selectivity)
	}
	for _, c := range p.Children {
		if msg := checkPlan(c); msg != "" {
			return msg
		}
	}
	return ""
}
