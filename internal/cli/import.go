package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/greql/internal/costs"
	"github.com/roach88/greql/internal/graphstore"
)

// ImportResult is the JSON payload of the import command.
type ImportResult struct {
	Database string `json:"database"`
	Vertices int64  `json:"vertices"`
	Edges    int64  `json:"edges"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <graph.yaml> <database>",
		Short: "Store a YAML graph fixture in a SQLite database",
		Long: `Store a YAML graph fixture, schema included, in a SQLite database.

The database is created if it does not exist. A graph already stored in
it is replaced. Element ids are kept, so bindings written as tagged
values ({"$vertex": 1}) select the same elements in both forms.

Example:
  greql import chain.yaml chain.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runImport(opts *RootOptions, fixturePath, dbPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	host, err := LoadHostGraph(ctx, fixturePath)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	if host.Fixture == nil {
		return reportLoadError(formatter, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("not a YAML fixture: %s", fixturePath)})
	}

	st, err := graphstore.Open(dbPath)
	if err != nil {
		return reportLoadError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error()})
	}
	defer st.Close()

	if err := st.Save(ctx, host.Graph); err != nil {
		return reportLoadError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error()})
	}
	size, err := st.Size(ctx)
	if err != nil {
		return reportLoadError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error()})
	}
	formatter.VerboseLog("Stored %s into %s", fixturePath, dbPath)

	return outputImport(formatter, dbPath, size)
}

func outputImport(f *OutputFormatter, dbPath string, size costs.GraphSize) error {
	result := ImportResult{Database: dbPath, Vertices: size.VertexCount, Edges: size.EdgeCount}
	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ Imported %d vertices and %d edges into %s\n", result.Vertices, result.Edges, dbPath)
	return nil
}
