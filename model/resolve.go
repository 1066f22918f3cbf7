package model

import (
	"context"
	"fmt"

	workflow "github.com/shiningyao/imixs-workflow"
)

// ResolveTarget returns the task the activity leads to for rec. Branches are
// checked in declared order and the first true condition wins; Default is
// used when none holds. Having neither is a model lookup error.
func (a Activity) ResolveTarget(ctx context.Context, rec *workflow.Record, evaluator ConditionEvaluator) (int, error) {
	meta := map[string]any{"task": a.TaskID, "activity": a.ID}

	if !a.IsGuarded() {
		if a.Target <= 0 {
			return 0, workflow.ModelLookupError(workflow.ReasonUnreachableBranch,
				fmt.Sprintf("activity %d.%d has no target", a.TaskID, a.ID), nil, meta)
		}
		return a.Target, nil
	}

	if evaluator == nil {
		return 0, workflow.ModelLookupError(workflow.ReasonInvalidCondition,
			fmt.Sprintf("activity %d.%d has branches but no condition evaluator is configured", a.TaskID, a.ID), nil, meta)
	}

	for i, branch := range a.Branches {
		ok, err := evaluator.Evaluate(ctx, branch.Condition, rec)
		if err != nil {
			meta["branch"] = i
			meta["condition"] = branch.Condition
			return 0, workflow.ModelLookupError(workflow.ReasonInvalidCondition,
				fmt.Sprintf("activity %d.%d: condition %q failed", a.TaskID, a.ID, branch.Condition), err, meta)
		}
		if ok {
			return branch.Target, nil
		}
	}

	if a.Default > 0 {
		return a.Default, nil
	}
	return 0, workflow.ModelLookupError(workflow.ReasonUnreachableBranch,
		fmt.Sprintf("activity %d.%d: no branch condition holds and no default is set", a.TaskID, a.ID), nil, meta)
}
