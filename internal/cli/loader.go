package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/greql/internal/compiler"
	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/graphstore"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
)

// LoadError represents an error that occurred while loading a query, a
// host graph or bindings.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	return e.Code + ": " + e.describe()
}

// describe returns the message prefixed with the CUE position, if any.
func (e *LoadError) describe() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Error code constants - unified across all CLI commands. Evaluation
// failures use the evaluator's own codes instead.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeUnsupported   = "E003" // Unsupported file extension
	ErrCodeCompileFailed = "E004" // Query compilation failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeGraphFailed   = "E006" // Host graph could not be loaded
	ErrCodeWriteFailed   = "E007" // Database write error
	ErrCodeBadBinding    = "E008" // Malformed --bind value
)

// LoadQuery reads a query syntax graph. .cue files are compiled with the
// CUE query compiler, .yaml and .yml files are decoded directly.
func LoadQuery(path string) (*syntax.Graph, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query file not found: %s", path)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		g, err := compiler.LoadQueryFile(path)
		if err != nil {
			return nil, convertCompileError(err, path)
		}
		return g, nil
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
		}
		defer f.Close()
		g, err := syntax.DecodeYAML(f)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeCompileFailed, Message: fmt.Sprintf("%s: %v", path, err)}
		}
		return g, nil
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported query file %s: want .cue, .yaml or .yml", path)}
	}
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeCompileFailed,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// HostGraph is a loaded host graph. Fixture is set for YAML fixtures and
// resolves the element labels used by --bind.
type HostGraph struct {
	Graph   *graph.Memory
	Fixture *graphstore.Fixture
}

// LoadHostGraph opens a YAML fixture or a SQLite graph database.
func LoadHostGraph(ctx context.Context, path string) (*HostGraph, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph not found: %s", path)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := graphstore.LoadFixture(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeGraphFailed, Message: err.Error()}
		}
		return &HostGraph{Graph: f.Graph, Fixture: f}, nil
	}
	g, err := graphstore.LoadGraph(ctx, path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGraphFailed, Message: err.Error()}
	}
	return &HostGraph{Graph: g}, nil
}

// ParseBindings parses name=value pairs into external variable bindings.
//
// A value starting with @ names a fixture element (@a). Anything else is
// the JSON form of a value: 3, "x", {"$vertex": 1}, {"$set": [...]}.
func ParseBindings(raw []string, h *HostGraph) (map[string]ir.Value, error) {
	bindings := make(map[string]ir.Value, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, &LoadError{Code: ErrCodeBadBinding, Message: fmt.Sprintf("binding %q: want name=value", kv)}
		}
		if _, dup := bindings[name]; dup {
			return nil, &LoadError{Code: ErrCodeBadBinding, Message: fmt.Sprintf("variable %q bound twice", name)}
		}

		if label, isLabel := strings.CutPrefix(value, "@"); isLabel {
			if h == nil || h.Fixture == nil {
				return nil, &LoadError{Code: ErrCodeBadBinding, Message: fmt.Sprintf("binding %q: element labels need a YAML graph", kv)}
			}
			el, found := h.Fixture.Element(label)
			if !found {
				return nil, &LoadError{Code: ErrCodeBadBinding, Message: fmt.Sprintf("binding %q: unknown element %q", kv, label)}
			}
			bindings[name] = el
			continue
		}

		v, err := ir.UnmarshalValue([]byte(value))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadBinding, Message: fmt.Sprintf("binding %q: %v", kv, err)}
		}
		bindings[name] = v
	}
	return bindings, nil
}

// reportLoadError prints err and returns the matching exit error.
func reportLoadError(f *OutputFormatter, err error) error {
	_ = f.Fail(Describe(err))
	return WrapExitError(ExitCommandError, "load failed", err)
}
