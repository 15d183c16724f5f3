package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/greql/internal/eval"
	"github.com/roach88/greql/internal/graphstore"
)

// Scenario is one query run against one host graph with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the path of a graph fixture, relative to the scenario file.
	Graph string `yaml:"graph,omitempty"`

	// GraphInline is a fixture document embedded in the scenario.
	GraphInline *graphstore.FixtureDoc `yaml:"graph_inline,omitempty"`

	// Query is an inline YAML query document.
	Query yaml.Node `yaml:"query,omitempty"`

	// QueryFile is a .cue or .yaml query document, relative to the
	// scenario file.
	QueryFile string `yaml:"query_file,omitempty"`

	// Bind supplies external variable values, keyed by variable name.
	Bind map[string]yaml.Node `yaml:"bind,omitempty"`

	// Expect checks the evaluation outcome. Without it any successful
	// evaluation passes.
	Expect *Expectation `yaml:"expect,omitempty"`

	// Assertions are further checks on the result and the cost oracle.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expectation is either a result value or an error code.
type Expectation struct {
	Result *yaml.Node `yaml:"result,omitempty"`
	Error  string     `yaml:"error,omitempty"`
}

// Assertion is one check of a scenario.
type Assertion struct {
	// Type selects the check, see the package documentation.
	Type string `yaml:"type"`

	// Value is the expected value (result_equals).
	Value *yaml.Node `yaml:"value,omitempty"`

	// Elements must all be members of the result (result_contains).
	Elements []yaml.Node `yaml:"elements,omitempty"`

	// Count is the expected size (result_size, dfa_states).
	Count int `yaml:"count,omitempty"`

	// Max is the cost limit (cost_bound).
	Max int64 `yaml:"max,omitempty"`

	// Node selects a query node by id (dfa_states, automaton_equivalence).
	// Nil means the query root.
	Node *int `yaml:"node,omitempty"`
}

// Assertion type constants.
const (
	AssertResultEquals         = "result_equals"
	AssertResultContains       = "result_contains"
	AssertResultSize           = "result_size"
	AssertCostsValid           = "costs_valid"
	AssertCostBound            = "cost_bound"
	AssertDFAStates            = "dfa_states"
	AssertAutomatonEquivalence = "automaton_equivalence"
)

var errorCodes = []eval.ErrorCode{
	eval.ErrCodeTypeMismatch,
	eval.ErrCodeUnknownFunction,
	eval.ErrCodeUnresolvedVariable,
	eval.ErrCodeMalformedAutomaton,
	eval.ErrCodeMalformedQuery,
	eval.ErrCodeFunctionFailed,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses a scenario document. Relative graph and query paths
// resolve against dir.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for _, p := range []*string{&scenario.Graph, &scenario.QueryFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario of dir in file name order.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", dir)
	}
	slices.Sort(paths)
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Graph == "" && s.GraphInline == nil:
		return fmt.Errorf("graph or graph_inline is required")
	case s.Graph != "" && s.GraphInline != nil:
		return fmt.Errorf("graph and graph_inline are mutually exclusive")
	}
	if s.Graph != "" {
		if _, err := os.Stat(s.Graph); os.IsNotExist(err) {
			return fmt.Errorf("graph file not found: %s", s.Graph)
		}
	}

	hasQuery := s.Query.Kind != 0
	switch {
	case !hasQuery && s.QueryFile == "":
		return fmt.Errorf("query or query_file is required")
	case hasQuery && s.QueryFile != "":
		return fmt.Errorf("query and query_file are mutually exclusive")
	}
	if s.QueryFile != "" {
		if _, err := os.Stat(s.QueryFile); os.IsNotExist(err) {
			return fmt.Errorf("query file not found: %s", s.QueryFile)
		}
	}

	if e := s.Expect; e != nil {
		if (e.Result == nil) == (e.Error == "") {
			return fmt.Errorf("expect: exactly one of result and error is required")
		}
		if e.Error != "" && !slices.Contains(errorCodes, eval.ErrorCode(e.Error)) {
			return fmt.Errorf("expect: unknown error code %q", e.Error)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertResultEquals:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for result_equals", index)
		}
	case AssertResultContains:
		if len(a.Elements) == 0 {
			return fmt.Errorf("assertions[%d]: elements list is required for result_contains", index)
		}
	case AssertResultSize, AssertDFAStates:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertCostBound:
		if a.Max <= 0 {
			return fmt.Errorf("assertions[%d]: max must be positive for cost_bound", index)
		}
	case AssertCostsValid, AssertAutomatonEquivalence:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
