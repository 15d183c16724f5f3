package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chain.db")

	out, err := execute(t, NewImportCommand(&RootOptions{Format: "text"}), "testdata/chain.yaml", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Imported 3 vertices and 2 edges")

	// The stored graph keeps element ids, so tagged bindings still apply.
	out, err = execute(t, newEvalCommand("text"),
		"--graph", db, "--bind", `a={"$vertex": 1}`, "testdata/reach.cue")
	require.NoError(t, err)
	assert.Equal(t, "{v3}", strings.TrimSpace(out))
}

func TestImportCommandJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chain.db")

	out, err := execute(t, NewImportCommand(&RootOptions{Format: "json"}), "testdata/chain.yaml", db)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ImportResult{Database: db, Vertices: 3, Edges: 2}, resp.Data)
}

func TestImportCommandRejectsDatabaseSource(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "chain.db")
	_, err := execute(t, NewImportCommand(&RootOptions{Format: "text"}), "testdata/chain.yaml", db)
	require.NoError(t, err)

	out, err := execute(t, NewImportCommand(&RootOptions{Format: "text"}), db, filepath.Join(dir, "copy.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "not a YAML fixture")
}

func TestImportedGraphRejectsLabels(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chain.db")
	_, err := execute(t, NewImportCommand(&RootOptions{Format: "text"}), "testdata/chain.yaml", db)
	require.NoError(t, err)

	out, err := execute(t, newEvalCommand("text"), "--graph", db, "--bind", "a=@a", "testdata/reach.cue")
	require.Error(t, err)
	assert.Contains(t, out, "need a YAML graph")
}
