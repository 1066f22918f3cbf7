package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shiningyao/imixs-workflow/kernel"
)

// MetricsHook records OpenTelemetry instruments for kernel calls.
type MetricsHook struct {
	activities metric.Int64Counter
	calls      metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewMetricsHook creates the instruments on meter.
func NewMetricsHook(meter metric.Meter) (*MetricsHook, error) {
	activities, err := meter.Int64Counter("workflow.activity.executions",
		metric.WithDescription("Number of executed activities"),
	)
	if err != nil {
		return nil, err
	}

	calls, err := meter.Int64Counter("workflow.process.calls",
		metric.WithDescription("Number of finished Process calls by outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("workflow.process.duration",
		metric.WithDescription("Duration of Process calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHook{activities: activities, calls: calls, duration: duration}, nil
}

// Notify implements kernel.Hook.
func (h *MetricsHook) Notify(ctx context.Context, evt kernel.Event) error {
	switch {
	case evt.Phase == kernel.PhaseActivity:
		h.activities.Add(ctx, 1, metric.WithAttributes(
			attribute.String("model_version", evt.ModelVersion),
			attribute.Int("task", evt.TaskID),
			attribute.Int("activity", evt.ActivityID),
		))
	case evt.Phase.IsTerminal():
		attrs := metric.WithAttributes(
			attribute.String("model_version", evt.ModelVersion),
			attribute.String("outcome", string(evt.Phase)),
			attribute.String("error_code", evt.ErrorCode),
		)
		h.calls.Add(ctx, 1, attrs)
		h.duration.Record(ctx, evt.Duration.Seconds(), attrs)
	}
	return nil
}
