package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/eval"
)

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Size costs.GraphSize `json:"size"`
	Plan *eval.Plan      `json:"plan"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Show the cost oracle's estimates for a query",
		Long: `Show the estimate tree of a query for the size of a host graph.

Every node lists its own, iterated and subtree costs, the estimated
cardinality and selectivity, and the variables it needs or defines.
Nothing is evaluated.

Examples:
  greql explain --graph chain.yaml reach.cue
  greql explain --graph chain.db reach.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}
	opts.registerGraph(cmd)

	return cmd
}

func runExplain(opts *QueryOptions, queryPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx, cancel := opts.commandContext(cmd)
	defer cancel()

	p, err := opts.prepare(ctx, queryPath, cmd, formatter)
	if err != nil {
		return err
	}

	size, err := costs.NewGraphSize(p.host.Graph)
	if err != nil {
		return reportLoadError(formatter, &LoadError{Code: ErrCodeGraphFailed, Message: err.Error()})
	}
	plan, err := p.session.Explain(size)
	if err != nil {
		return reportEvalError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ExplainResult{Size: size, Plan: plan})
	}

	fmt.Fprintf(formatter.Writer, "graph: %d vertices, %d edges\n", size.VertexCount, size.EdgeCount)
	fmt.Fprint(formatter.Writer, plan.Text())
	return nil
}
