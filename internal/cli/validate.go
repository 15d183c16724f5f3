package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/greql/internal/compiler"
	"github.com/roach88/greql/internal/syntax"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                        `json:"valid"`
	Nodes    int                         `json:"nodes"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <query>",
		Short: "Validate a query without evaluating it",
		Long: `Validate a query syntax graph without a host graph.

Checks the shape of every node, function names and arities, duplicate
variables and declaration cycles. Definition cycles are reported as
warnings and do not fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	q, err := LoadQuery(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d query node(s) from %s", q.Len(), path)

	result := validateQuery(q)
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateQuery runs static validation and cycle analysis. Cycle errors
// are already reported by Validate.
func validateQuery(q *syntax.Graph) ValidationResult {
	result := ValidationResult{Nodes: q.Len(), Errors: compiler.Validate(q, nil)}
	for _, w := range compiler.AnalyzeCycles(q) {
		if w.Level == compiler.LevelWarning {
			result.Warnings = append(result.Warnings, w)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Query valid (%d nodes)\n", result.Nodes)
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s (%s)\n", w.Message, w.Scope)
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "node %d %s\n", err.Node, err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
