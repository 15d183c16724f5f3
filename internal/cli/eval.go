package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/greql/internal/eval"
	"github.com/roach88/greql/internal/ir"
)

// QueryOptions holds the flags shared by commands that evaluate a query
// against a host graph.
type QueryOptions struct {
	*RootOptions
	Graph    string
	Bindings []string
	Timeout  time.Duration

	// SessionIDs allows overriding the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionIDs eval.SessionIDGenerator
}

func (o *QueryOptions) register(cmd *cobra.Command) {
	o.registerGraph(cmd)
	cmd.Flags().StringArrayVar(&o.Bindings, "bind", nil, "external variable binding name=value (repeatable)")
	cmd.Flags().DurationVar(&o.Timeout, "timeout", 0, "abort evaluation after this duration (0 = no limit)")
}

func (o *QueryOptions) registerGraph(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Graph, "graph", "", "host graph: YAML fixture or SQLite database (required)")
	_ = cmd.MarkFlagRequired("graph")
}

// prepared is a session ready to run together with what it was built from.
type prepared struct {
	host     *HostGraph
	session  *eval.Session
	bindings map[string]ir.Value
}

// prepare loads the host graph and the query, validates the query and
// creates an evaluation session.
func (o *QueryOptions) prepare(ctx context.Context, queryPath string, cmd *cobra.Command, f *OutputFormatter) (*prepared, error) {
	host, err := LoadHostGraph(ctx, o.Graph)
	if err != nil {
		return nil, reportLoadError(f, err)
	}
	f.VerboseLog("Loaded graph %s", o.Graph)

	q, err := LoadQuery(queryPath)
	if err != nil {
		return nil, reportLoadError(f, err)
	}
	if result := validateQuery(q); !result.Valid {
		return nil, outputValidationErrors(f, result)
	}

	bindings, err := ParseBindings(o.Bindings, host)
	if err != nil {
		return nil, reportLoadError(f, err)
	}

	ids := o.SessionIDs
	if ids == nil {
		ids = eval.UUIDv7Generator{}
	}
	s, err := eval.New(host.Graph, q,
		eval.WithLogger(newLogger(o.RootOptions, cmd.ErrOrStderr())),
		eval.WithSessionIDs(ids),
	)
	if err != nil {
		return nil, reportEvalError(f, err)
	}
	f.Session = s.ID()
	return &prepared{host: host, session: s, bindings: bindings}, nil
}

// commandContext derives the command context: cancelled on SIGINT/SIGTERM and
// after --timeout.
func (o *QueryOptions) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if o.Timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// EvalResult is the JSON payload of the eval command.
type EvalResult struct {
	Value json.RawMessage `json:"value"`
	Text  string          `json:"text"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	return evalCommand(&QueryOptions{RootOptions: rootOpts})
}

func evalCommand(opts *QueryOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <query>",
		Short: "Evaluate a query against a host graph",
		Long: `Evaluate a query against a host graph.

External variables are bound with --bind. Values are JSON in the tagged
value format, or @label to name an element of a YAML fixture.

Exit codes:
  0 - Query evaluated
  1 - Query invalid or evaluation failed
  2 - Command error (missing files, unreadable graph, bad bindings)

Examples:
  greql eval --graph chain.yaml --bind a=@a reach.cue
  greql eval --graph chain.db --bind 'a={"$vertex":1}' reach.yaml
  greql eval --graph chain.yaml query.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}
	opts.register(cmd)

	return cmd
}

func runEval(opts *QueryOptions, queryPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx, cancel := opts.commandContext(cmd)
	defer cancel()

	p, err := opts.prepare(ctx, queryPath, cmd, formatter)
	if err != nil {
		return err
	}

	start := time.Now()
	value, err := p.session.Evaluate(ctx, p.bindings)
	if err != nil {
		return reportEvalError(formatter, err)
	}
	formatter.VerboseLog("Evaluated in %s (session %s)", time.Since(start), p.session.ID())

	if formatter.Format == "json" {
		data, err := ir.MarshalValue(value)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode result", err)
		}
		return formatter.Success(EvalResult{Value: data, Text: ir.Format(value)})
	}

	fmt.Fprintln(formatter.Writer, ir.Format(value))
	return nil
}

// reportEvalError prints an evaluation failure with its error code and
// returns ExitFailure. Cancellation and timeouts are reported as such.
func reportEvalError(f *OutputFormatter, err error) error {
	_ = f.Fail(Describe(err))
	return WrapExitError(ExitFailure, "evaluation failed", err)
}
