package kernel

import (
	"context"
	"fmt"
	"time"

	workflow "github.com/shiningyao/imixs-workflow"
	"github.com/shiningyao/imixs-workflow/model"
)

type transition struct {
	task     int
	activity int
}

// call holds the state of one Process invocation.
type call struct {
	k       *Kernel
	model   *model.Model
	id      string
	caller  string
	started time.Time
	logger  Logger
	chain   *chain
	values  map[string]any
	visited map[transition]struct{}

	iteration int
	task      int
	activity  int
}

// Process advances rec through its model and returns the resulting record.
// rec itself is never modified. On error the returned record is nil.
func (k *Kernel) Process(ctx context.Context, rec *workflow.Record) (*workflow.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	plugins := k.seal()

	if rec == nil {
		return nil, workflow.NewError(workflow.ErrPrecondition, "record is nil", nil, nil)
	}
	version := rec.ModelVersion()
	if version == "" {
		return nil, workflow.ModelLookupError(workflow.ReasonMissingVersion,
			"record has no "+workflow.ItemModelVersion, nil, nil)
	}

	m, err := k.models.GetModel(ctx, version)
	switch {
	case err != nil && !workflow.IsModelLookup(err):
		return nil, workflow.ModelLookupError(workflow.ReasonManagerFailed,
			fmt.Sprintf("model manager failed for version %q", version), err,
			map[string]any{"model_version": version})
	case err != nil:
		return nil, err
	case m == nil:
		return nil, workflow.ModelLookupError(workflow.ReasonVersionNotFound,
			fmt.Sprintf("model version %q not found", version), nil,
			map[string]any{"model_version": version})
	}

	task := rec.ProcessID()
	if _, ok := m.Task(task); !ok {
		return nil, workflow.ModelLookupError(workflow.ReasonTaskNotFound,
			fmt.Sprintf("task %d not found in model %q", task, version), nil,
			map[string]any{"model_version": version, "task": task})
	}

	c := &call{
		k:        k,
		model:    m,
		id:       k.newID(),
		caller:   k.caller.CallerName(),
		started:  k.now(),
		values:   make(map[string]any),
		visited:  make(map[transition]struct{}),
		task:     task,
		activity: rec.ActivityID(),
	}
	c.logger = withLoggerFields(k.logger.WithContext(ctx), map[string]any{
		"execution_id":  c.id,
		"model_version": version,
		"task":          task,
		"activity":      c.activity,
	})
	c.chain = newChain(plugins, c.logger)

	return c.run(ctx, rec.Clone())
}

func (c *call) run(ctx context.Context, work *workflow.Record) (*workflow.Record, error) {
	c.logger.Debug("processing started")
	if err := c.k.notify(ctx, c.logger, c.event(PhaseStarted)); err != nil {
		return c.fail(ctx, err)
	}

	for {
		c.iteration++
		c.activity = work.ActivityID()

		act, ok := c.model.Activity(c.task, c.activity)
		if !ok {
			return c.fail(ctx, workflow.NewError(workflow.ErrActivityNotFound,
				fmt.Sprintf("activity %d.%d not defined in model %q", c.task, c.activity, c.model.Version()), nil,
				c.meta()))
		}

		step := transition{task: c.task, activity: c.activity}
		if _, seen := c.visited[step]; seen {
			return c.fail(ctx, workflow.NewError(workflow.ErrCycleDetected,
				fmt.Sprintf("activity %d.%d executed twice in one call", c.task, c.activity), nil,
				c.meta()))
		}
		c.visited[step] = struct{}{}

		if err := c.k.notify(ctx, c.logger, c.event(PhaseActivity)); err != nil {
			return c.fail(ctx, err)
		}

		next, err := c.chain.execute(ctx, work, c.activityContext(act))
		if err != nil {
			return c.fail(ctx, err)
		}
		work = next

		target, err := act.ResolveTarget(ctx, work, c.k.evaluator)
		if err != nil {
			return c.fail(ctx, err)
		}
		work.ReplaceItemValue(workflow.ItemProcessID, target)

		targetTask, ok := c.model.Task(target)
		if !ok {
			return c.fail(ctx, workflow.ModelLookupError(workflow.ReasonTaskNotFound,
				fmt.Sprintf("target task %d of activity %d.%d not found", target, c.task, c.activity), nil,
				c.meta()))
		}

		evt := c.event(PhaseTransitioned)
		evt.TargetID = target
		if err := c.k.notify(ctx, c.logger, evt); err != nil {
			return c.fail(ctx, err)
		}
		c.logger.Debug("activity %d.%d -> task %d", c.task, c.activity, target)

		c.task = target
		if targetTask.IsWaitState() {
			break
		}
		work.ReplaceItemValue(workflow.ItemActivityID, targetTask.FollowUp)
	}

	return c.commit(ctx, work)
}

func (c *call) commit(ctx context.Context, work *workflow.Record) (*workflow.Record, error) {
	c.chain.finalize(ctx, true)

	evt := c.event(PhaseCommitted)
	evt.TargetID = c.task
	_ = c.k.notify(ctx, c.logger, evt)
	c.logger.Info("processing committed at task %d after %d activities", c.task, c.iteration)
	return work, nil
}

func (c *call) fail(ctx context.Context, err error) (*workflow.Record, error) {
	phase := PhaseFailed
	if c.chain.finalize(ctx, false) > 0 {
		phase = PhaseRolledBack
	}

	evt := c.event(phase)
	evt.ErrorCode = workflow.ErrorCode(err)
	evt.ErrorMessage = err.Error()
	_ = c.k.notify(ctx, c.logger, evt)
	c.logger.Error("processing %s: %v", phase, err)
	return nil, err
}

func (c *call) activityContext(act model.Activity) *workflow.ActivityContext {
	return &workflow.ActivityContext{
		ExecutionID:  c.id,
		ModelVersion: c.model.Version(),
		TaskID:       c.task,
		ActivityID:   act.ID,
		ActivityName: act.Name,
		Rule:         act.Rule,
		Metadata:     act.Metadata,
		Iteration:    c.iteration,
		CallerName:   c.caller,
		StartedAt:    c.started,
		Values:       c.values,
	}
}

func (c *call) event(phase Phase) Event {
	now := c.k.now()
	return Event{
		Phase:        phase,
		ExecutionID:  c.id,
		ModelVersion: c.model.Version(),
		TaskID:       c.task,
		ActivityID:   c.activity,
		Iteration:    c.iteration,
		CallerName:   c.caller,
		Duration:     now.Sub(c.started),
		OccurredAt:   now,
	}
}

func (c *call) meta() map[string]any {
	return map[string]any{
		"model_version": c.model.Version(),
		"task":          c.task,
		"activity":      c.activity,
		"iteration":     c.iteration,
		"execution_id":  c.id,
	}
}
