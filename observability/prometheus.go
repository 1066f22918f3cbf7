package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shiningyao/imixs-workflow/kernel"
)

// PrometheusHook exports kernel activity as Prometheus collectors.
type PrometheusHook struct {
	activities *prometheus.CounterVec
	calls      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheusHook creates the collectors under namespace and registers
// them with reg. A nil reg uses the default registerer.
func NewPrometheusHook(namespace string, reg prometheus.Registerer) (*PrometheusHook, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	h := &PrometheusHook{
		activities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activity_executions_total",
				Help:      "Number of executed activities",
			},
			[]string{"model_version", "task", "activity"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "process_calls_total",
				Help:      "Number of finished Process calls by outcome",
			},
			[]string{"model_version", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "process_duration_seconds",
				Help:      "Duration of Process calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model_version", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{h.activities, h.calls, h.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Notify implements kernel.Hook.
func (h *PrometheusHook) Notify(_ context.Context, evt kernel.Event) error {
	switch {
	case evt.Phase == kernel.PhaseActivity:
		h.activities.WithLabelValues(evt.ModelVersion, strconv.Itoa(evt.TaskID), strconv.Itoa(evt.ActivityID)).Inc()
	case evt.Phase.IsTerminal():
		h.calls.WithLabelValues(evt.ModelVersion, string(evt.Phase)).Inc()
		h.duration.WithLabelValues(evt.ModelVersion, string(evt.Phase)).Observe(evt.Duration.Seconds())
	}
	return nil
}
