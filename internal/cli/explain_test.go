package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainCommand(t *testing.T) {
	out, err := execute(t, NewExplainCommand(&RootOptions{Format: "text"}),
		"--graph", "testdata/chain.yaml", "testdata/reach.cue")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "graph: 3 vertices, 2 edges", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "ForwardVertexSet#"), lines[1])
	assert.Contains(t, lines[1], "costs=24/24/37 card=1 sel=1")
	assert.Contains(t, lines[1], "needs=[a]")
	assert.Contains(t, out, "  start: Variable#")
	assert.Contains(t, out, "  path: SequentialPathDescription#")
}

func TestExplainCommandJSON(t *testing.T) {
	out, err := execute(t, NewExplainCommand(&RootOptions{Format: "json"}),
		"--graph", "testdata/chain.yaml", "testdata/reach.cue")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ExplainResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(3), resp.Data.Size.VertexCount)
	assert.Equal(t, int64(2), resp.Data.Size.EdgeCount)
	require.NotNil(t, resp.Data.Plan)
	assert.Equal(t, "ForwardVertexSet", resp.Data.Plan.Kind)
	assert.Equal(t, int64(37), resp.Data.Plan.Costs.Subtree)
	assert.Len(t, resp.Data.Plan.Children, 2)
}

func TestExplainCommandNeedsNoBindings(t *testing.T) {
	// Estimates are computed without evaluating, so an unbound start is fine.
	_, err := execute(t, NewExplainCommand(&RootOptions{Format: "text"}),
		"--graph", "testdata/chain.yaml", "testdata/reach.yaml")
	require.NoError(t, err)
}
