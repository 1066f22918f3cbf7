// Package observability turns kernel lifecycle events into traces and
// metrics.
package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shiningyao/imixs-workflow/kernel"
)

// TracingHook records one span per Process call and a child span per
// executed activity. Spans are keyed by execution ID so a single hook can
// serve concurrent calls.
type TracingHook struct {
	tracer trace.Tracer

	mu       sync.Mutex
	calls    map[string]trace.Span
	callCtxs map[string]context.Context
	steps    map[string]trace.Span
}

// NewTracingHook creates a TracingHook backed by tracer.
func NewTracingHook(tracer trace.Tracer) *TracingHook {
	return &TracingHook{
		tracer:   tracer,
		calls:    make(map[string]trace.Span),
		callCtxs: make(map[string]context.Context),
		steps:    make(map[string]trace.Span),
	}
}

// Notify implements kernel.Hook.
func (h *TracingHook) Notify(ctx context.Context, evt kernel.Event) error {
	switch evt.Phase {
	case kernel.PhaseStarted:
		h.start(ctx, evt)
	case kernel.PhaseActivity:
		h.startStep(evt)
	case kernel.PhaseTransitioned:
		h.endStep(evt, nil)
	case kernel.PhaseCommitted, kernel.PhaseRolledBack, kernel.PhaseFailed:
		h.finish(evt)
	}
	return nil
}

func (h *TracingHook) start(ctx context.Context, evt kernel.Event) {
	ctx, span := h.tracer.Start(ctx, "workflow.process",
		trace.WithAttributes(
			attribute.String("workflow.execution_id", evt.ExecutionID),
			attribute.String("workflow.model_version", evt.ModelVersion),
			attribute.Int("workflow.task", evt.TaskID),
			attribute.Int("workflow.activity", evt.ActivityID),
			attribute.String("workflow.caller", evt.CallerName),
		),
		trace.WithTimestamp(evt.OccurredAt),
	)

	h.mu.Lock()
	h.calls[evt.ExecutionID] = span
	h.callCtxs[evt.ExecutionID] = ctx
	h.mu.Unlock()
}

func (h *TracingHook) startStep(evt kernel.Event) {
	h.mu.Lock()
	parent, ok := h.callCtxs[evt.ExecutionID]
	h.mu.Unlock()
	if !ok {
		parent = context.Background()
	}

	_, span := h.tracer.Start(parent, fmt.Sprintf("activity %d.%d", evt.TaskID, evt.ActivityID),
		trace.WithAttributes(
			attribute.String("workflow.execution_id", evt.ExecutionID),
			attribute.Int("workflow.task", evt.TaskID),
			attribute.Int("workflow.activity", evt.ActivityID),
			attribute.Int("workflow.iteration", evt.Iteration),
		),
		trace.WithTimestamp(evt.OccurredAt),
	)

	h.mu.Lock()
	h.steps[evt.ExecutionID] = span
	h.mu.Unlock()
}

func (h *TracingHook) endStep(evt kernel.Event, err error) {
	h.mu.Lock()
	span, ok := h.steps[evt.ExecutionID]
	delete(h.steps, evt.ExecutionID)
	h.mu.Unlock()
	if !ok {
		return
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err, trace.WithTimestamp(evt.OccurredAt))
	} else {
		span.SetAttributes(attribute.Int("workflow.target", evt.TargetID))
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(evt.OccurredAt))
}

func (h *TracingHook) finish(evt kernel.Event) {
	var err error
	if evt.Phase != kernel.PhaseCommitted {
		err = errors.New(evt.ErrorMessage)
	}
	// A failure inside an activity leaves its span open.
	h.endStep(evt, err)

	h.mu.Lock()
	span, ok := h.calls[evt.ExecutionID]
	delete(h.calls, evt.ExecutionID)
	delete(h.callCtxs, evt.ExecutionID)
	h.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(
		attribute.String("workflow.outcome", string(evt.Phase)),
		attribute.Int("workflow.iterations", evt.Iteration),
	)
	if err != nil {
		span.SetAttributes(attribute.String("workflow.error_code", evt.ErrorCode))
		span.SetStatus(codes.Error, evt.ErrorMessage)
	} else {
		span.SetAttributes(attribute.Int("workflow.target", evt.TargetID))
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(evt.OccurredAt))
}
