package kernel

import (
	"context"
	"fmt"
	"strings"
	"time"

	workflow "github.com/shiningyao/imixs-workflow"
)

// Phase identifies a lifecycle emission point of a Process call.
type Phase string

const (
	PhaseStarted      Phase = "started"
	PhaseActivity     Phase = "activity"
	PhaseTransitioned Phase = "transitioned"
	PhaseCommitted    Phase = "committed"
	PhaseRolledBack   Phase = "rolled_back"
	PhaseFailed       Phase = "failed"
)

// IsTerminal reports whether p ends a call. Every call emits exactly one
// terminal phase.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseCommitted, PhaseRolledBack, PhaseFailed:
		return true
	}
	return false
}

// HookFailureMode controls what a hook error does to the call.
type HookFailureMode string

const (
	// HookFailureModeFailOpen logs hook errors and carries on.
	HookFailureModeFailOpen HookFailureMode = "fail_open"
	// HookFailureModeFailClosed aborts the call when a hook fails in a
	// non-terminal phase.
	HookFailureModeFailClosed HookFailureMode = "fail_closed"
)

func normalizeHookFailureMode(mode HookFailureMode) HookFailureMode {
	if HookFailureMode(strings.ToLower(strings.TrimSpace(string(mode)))) == HookFailureModeFailClosed {
		return HookFailureModeFailClosed
	}
	return HookFailureModeFailOpen
}

// Event describes one lifecycle step.
type Event struct {
	Phase        Phase
	ExecutionID  string
	ModelVersion string
	// TaskID is the state the step started from.
	TaskID     int
	ActivityID int
	// TargetID is set on transitioned and on the terminal phase of a
	// successful call.
	TargetID     int
	Iteration    int
	CallerName   string
	ErrorCode    string
	ErrorMessage string
	// Duration is the time since the call started.
	Duration   time.Duration
	OccurredAt time.Time
	Metadata   map[string]any
}

// Hook receives lifecycle events. Hooks run synchronously on the calling
// goroutine and must be safe for concurrent calls.
type Hook interface {
	Notify(ctx context.Context, evt Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, evt Event) error

func (f HookFunc) Notify(ctx context.Context, evt Event) error { return f(ctx, evt) }

func (k *Kernel) notify(ctx context.Context, logger Logger, evt Event) error {
	if len(k.hooks) == 0 {
		return nil
	}
	for idx, hook := range k.hooks {
		if hook == nil {
			continue
		}
		err := notifyHook(ctx, hook, cloneEvent(evt))
		if err == nil {
			continue
		}
		if k.hookMode == HookFailureModeFailClosed && !evt.Phase.IsTerminal() {
			return workflow.NewError(workflow.ErrPrecondition, "lifecycle hook failed", err, map[string]any{
				"phase":      string(evt.Phase),
				"hook_index": idx,
				"task":       evt.TaskID,
				"activity":   evt.ActivityID,
			})
		}
		logger.Warn("lifecycle hook %d failed in phase %s: %v", idx, evt.Phase, err)
	}
	return nil
}

func notifyHook(ctx context.Context, hook Hook, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()
	return hook.Notify(ctx, evt)
}

func cloneEvent(evt Event) Event {
	if evt.Metadata != nil {
		meta := make(map[string]any, len(evt.Metadata))
		for k, v := range evt.Metadata {
			meta[k] = v
		}
		evt.Metadata = meta
	}
	return evt
}
