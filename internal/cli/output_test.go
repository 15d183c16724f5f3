package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/greql/internal/eval"
	"github.com/roach88/greql/internal/graph"
	"github.com/roach88/greql/internal/ir"
	"github.com/roach88/greql/internal/syntax"
	"github.com/roach88/greql/internal/testutil"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E004", "query compilation failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "E004", resp.Error.Code)
	assert.Equal(t, "query compilation failed", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"variable": "a"}
	err := formatter.Error("UNRESOLVED_VARIABLE", "variable \"a\" is not bound", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("{v3}")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "{v3}")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E004", "query compilation failed", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E004]")
	assert.Contains(t, buf.String(), "query compilation failed")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"want": "vertex", "got": "edge"}
	err := formatter.Error("E004", "query compilation failed", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E004]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Loaded graph %s", "chain.yaml")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Loaded graph chain.yaml")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E207",
		Message: "validation failed",
		Details: []string{`unknown function "outDegre"`},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E207", decoded.Code)
	assert.Equal(t, "validation failed", decoded.Message)
}

func TestOutputFormatter_EncodeIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Encode(CLIResponse{Status: "ok", Session: "s-1"}))
	assert.Equal(t, "{\n  \"status\": \"ok\",\n  \"session\": \"s-1\"\n}\n", buf.String())
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("Evaluated in %s", "1ms")
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Evaluated in 1ms")
}

func TestOutputFormatter_EncodeStampsSession(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf, Session: "s-7"}

	require.NoError(t, formatter.Success("{v3}"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "s-7", resp.Session)
}

func TestDescribe(t *testing.T) {
	evalErr := func(t *testing.T) error {
		t.Helper()
		b := syntax.NewBuilder()
		root := b.Forward(b.Lit(ir.String("ab")), b.Edges(graph.Out))
		s, err := eval.New(graph.NewMemory(testutil.Schema()), b.MustBuild(root),
			eval.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		require.NoError(t, err)
		_, err = s.Evaluate(context.Background(), nil)
		require.Error(t, err)
		return err
	}

	t.Run("evaluation error keeps node and kind", func(t *testing.T) {
		ce := Describe(fmt.Errorf("wrapped: %w", evalErr(t)))
		assert.Equal(t, "TYPE_MISMATCH", ce.Code)
		require.NotNil(t, ce.Node)
		assert.Equal(t, "ForwardVertexSet", ce.Kind)
		assert.NotNil(t, ce.Details)
	})

	t.Run("load error", func(t *testing.T) {
		ce := Describe(&LoadError{Code: ErrCodeBadBinding, Message: "want name=value"})
		assert.Equal(t, ErrCodeBadBinding, ce.Code)
		assert.Equal(t, "want name=value", ce.Message)
		assert.Nil(t, ce.Node)
	})

	t.Run("timeout and cancellation", func(t *testing.T) {
		assert.Equal(t, "TIMEOUT", Describe(context.DeadlineExceeded).Code)
		assert.Equal(t, "CANCELLED", Describe(fmt.Errorf("search: %w", context.Canceled)).Code)
	})

	t.Run("anything else", func(t *testing.T) {
		assert.Equal(t, ErrCodeGeneric, Describe(errors.New("boom")).Code)
	})
}

func TestOutputFormatter_TextFailNamesNode(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	node := 4
	require.NoError(t, formatter.Fail(&CLIError{Code: "TYPE_MISMATCH", Message: "start must be Vertex or Edge", Node: &node, Kind: "ForwardVertexSet"}))
	assert.Equal(t, "Error [TYPE_MISMATCH]: start must be Vertex or Edge\n  at node 4 (ForwardVertexSet)\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "missing graph")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitFailure, "evaluation failed", errors.New("boom")))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	err := WrapExitError(ExitFailure, "evaluation failed", errors.New("boom"))
	assert.Equal(t, "evaluation failed: boom", err.Error())
}
