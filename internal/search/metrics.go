package search

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("greql.search")
	meter  = otel.Meter("greql.search")
)

var (
	searchLatency metric.Float64Histogram
	searchTotal   metric.Int64Counter
	visitedPairs  metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		searchLatency, err = meter.Float64Histogram(
			"greql_search_duration_seconds",
			metric.WithDescription("Duration of automaton-guided searches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchTotal, err = meter.Int64Counter(
			"greql_search_total",
			metric.WithDescription("Total number of automaton-guided searches"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		visitedPairs, err = meter.Int64Histogram(
			"greql_search_visited_pairs",
			metric.WithDescription("Number of (vertex, state) pairs visited per search"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordSearchMetrics(ctx context.Context, shape string, duration time.Duration, visited int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("shape", shape),
		attribute.Bool("success", success),
	)
	searchLatency.Record(ctx, duration.Seconds(), attrs)
	searchTotal.Add(ctx, 1, attrs)
	visitedPairs.Record(ctx, int64(visited), attrs)
}

func startSearchSpan(ctx context.Context, shape string, start string, states int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "search."+shape,
		trace.WithAttributes(
			attribute.String("search.start", start),
			attribute.Int("search.automaton_states", states),
		),
	)
}

func setSearchSpanResult(span trace.Span, visited, reached int) {
	span.SetAttributes(
		attribute.Int("search.visited_pairs", visited),
		attribute.Int("search.reached", reached),
	)
}
