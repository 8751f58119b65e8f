package vcall

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("tracejit.vcall")
	meter  = otel.Meter("tracejit.vcall")
)

var (
	dispatchLatency metric.Float64Histogram
	dispatchTotal   metric.Int64Counter
	groupsTotal     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		dispatchLatency, err = meter.Float64Histogram(
			"vcall_dispatch_duration_seconds",
			metric.WithDescription("Duration of vectorized call dispatches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		dispatchTotal, err = meter.Int64Counter(
			"vcall_dispatch_total",
			metric.WithDescription("Total number of vectorized call dispatches"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		groupsTotal, err = meter.Int64Counter(
			"vcall_groups_total",
			metric.WithDescription("Total number of per-instance groups invoked"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordDispatchMetrics(ctx context.Context, domain, method string, duration time.Duration, groups int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("method", method),
		attribute.Bool("success", success),
	)
	dispatchLatency.Record(ctx, duration.Seconds(), attrs)
	dispatchTotal.Add(ctx, 1, attrs)
	groupsTotal.Add(ctx, int64(groups), attrs)
}

func startDispatchSpan(ctx context.Context, domain, method string, width int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "vcall.Dispatch",
		trace.WithAttributes(
			attribute.String("vcall.domain", domain),
			attribute.String("vcall.method", method),
			attribute.Int("vcall.width", width),
		),
	)
}

func setDispatchSpanResult(span trace.Span, groups int, deferred bool, err error) {
	span.SetAttributes(
		attribute.Int("vcall.groups", groups),
		attribute.Bool("vcall.deferred", deferred),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
