package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/ir"
)

// Snapshot captures the observable outcome of a scenario execution.
type Snapshot struct {
	ScenarioName string            `json:"scenario_name"`
	Result       json.RawMessage   `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	Costs        costs.VertexCosts `json:"costs"`
	Cardinality  int64             `json:"cardinality"`
	Selectivity  float64           `json:"selectivity"`
	Failures     []string          `json:"failures,omitempty"`
}

// NewSnapshot builds the snapshot of result.
func NewSnapshot(name string, result *Result) (*Snapshot, error) {
	s := &Snapshot{
		ScenarioName: name,
		Error:        result.ErrorCode(),
		Failures:     result.Errors,
	}
	if result.Err == nil && result.Value != nil {
		data, err := ir.MarshalValue(result.Value)
		if err != nil {
			return nil, err
		}
		s.Result = data
	}
	if result.Plan != nil {
		s.Costs = result.Plan.Costs
		s.Cardinality = result.Plan.Cardinality
		s.Selectivity = result.Plan.Selectivity
	}
	return s, nil
}

// Encode renders the snapshot in golden file form: indented JSON with a
// trailing newline.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := NewSnapshot(scenarioName, result)
	if err != nil {
		return err
	}
	data, err := snapshot.Encode()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
