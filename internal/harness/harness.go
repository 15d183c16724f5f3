package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/greql/internal/compiler"
	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/eval"
	"github.com/roach88/greql/internal/graphstore"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
	"github.com/roach88/greql/internal/testutil"
)

// Harness holds what one scenario execution needs.
type Harness struct {
	fixture *graphstore.Fixture
	query   *syntax.Graph
	session *eval.Session
	bind    map[string]ir.Value
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger of the evaluation session. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Run executes a scenario and returns the result.
//
// Setup problems (unreadable graph or query, invalid query, bad bindings)
// are returned as errors. Evaluation errors are part of the result and only
// fail it when the scenario did not expect them.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	h, err := setup(scenario, cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	size, err := costs.NewGraphSize(h.fixture.Graph)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	result.Size = size
	if result.Plan, err = h.session.Explain(size); err != nil {
		return nil, fmt.Errorf("scenario %s: explain: %w", scenario.Name, err)
	}

	result.Value, result.Err = h.session.Evaluate(ctx, h.bind)

	if err := h.checkExpectation(scenario.Expect, result); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	for i, a := range scenario.Assertions {
		msg, err := h.evaluateAssertion(ctx, a, result)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: assertions[%d]: %w", scenario.Name, i, err)
		}
		if msg != "" {
			result.AddError(fmt.Sprintf("assertions[%d] %s: %s", i, a.Type, msg))
		}
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}

func setup(scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	h := &Harness{logger: logger}

	var err error
	if scenario.GraphInline != nil {
		h.fixture, err = scenario.GraphInline.Build()
	} else {
		h.fixture, err = graphstore.LoadFixture(scenario.Graph)
	}
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}

	if h.query, err = loadQuery(scenario); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if errs := compiler.Validate(h.query, nil); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid query:\n  %s", strings.Join(msgs, "\n  "))
	}

	h.bind = make(map[string]ir.Value, len(scenario.Bind))
	for name, node := range scenario.Bind {
		v, err := decodeValue(&node, h.fixture)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
		h.bind[name] = v
	}

	h.session, err = eval.New(h.fixture.Graph, h.query,
		eval.WithLogger(logger),
		eval.WithSessionIDs(testutil.NewSequenceIDs(scenario.Name)),
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func loadQuery(scenario *Scenario) (*syntax.Graph, error) {
	if scenario.QueryFile == "" {
		return syntax.DecodeYAMLNode(&scenario.Query)
	}
	switch strings.ToLower(filepath.Ext(scenario.QueryFile)) {
	case ".cue":
		return compiler.LoadQueryFile(scenario.QueryFile)
	case ".yaml", ".yml":
		data, err := os.ReadFile(scenario.QueryFile)
		if err != nil {
			return nil, err
		}
		return syntax.DecodeYAML(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("unsupported query file %s", scenario.QueryFile)
}

// checkExpectation compares the evaluation outcome with expect.
func (h *Harness) checkExpectation(expect *Expectation, result *Result) error {
	switch {
	case expect == nil:
		if result.Err != nil {
			result.AddError(fmt.Sprintf("evaluation failed: %v", result.Err))
		}
	case expect.Error != "":
		if got := result.ErrorCode(); got != expect.Error {
			actual := "success"
			if result.Err != nil {
				actual = result.Err.Error()
			}
			result.AddError(fmt.Sprintf("expected error %s, got %s", expect.Error, actual))
		}
	default:
		want, err := decodeValue(expect.Result, h.fixture)
		if err != nil {
			return fmt.Errorf("expect.result: %w", err)
		}
		switch {
		case result.Err != nil:
			result.AddError(fmt.Sprintf("expected %s, evaluation failed: %v", ir.Format(want), result.Err))
		case !ir.Equal(want, result.Value):
			result.AddError(fmt.Sprintf("expected %s, got %s", ir.Format(want), ir.Format(result.Value)))
		}
	}
	return nil
}
