package eval

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/greql/internal/syntax"
)

var (
	tracer = otel.Tracer("greql.eval")
	meter  = otel.Meter("greql.eval")
)

var (
	evalLatency metric.Float64Histogram
	evalTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		evalLatency, err = meter.Float64Histogram(
			"greql_eval_duration_seconds",
			metric.WithDescription("Duration of query evaluations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		evalTotal, err = meter.Int64Counter(
			"greql_eval_total",
			metric.WithDescription("Total number of query evaluations"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordEvalMetrics(ctx context.Context, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	evalLatency.Record(ctx, duration.Seconds(), attrs)
	evalTotal.Add(ctx, 1, attrs)
}

func startEvalSpan(ctx context.Context, t trace.Tracer, session string, n *syntax.Node) (context.Context, trace.Span) {
	return t.Start(ctx, "eval.evaluate",
		trace.WithAttributes(
			attribute.String("eval.session", session),
			attribute.Int("eval.node", int(n.ID)),
			attribute.String("eval.kind", n.Kind.String()),
		),
	)
}
