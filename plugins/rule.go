package plugins

import (
	"context"
	"fmt"
	"strings"

	workflow "github.com/shiningyao/imixs-workflow"
	"github.com/shiningyao/imixs-workflow/expr"
	"github.com/shiningyao/imixs-workflow/model"
)

// Rule vetoes an activity whose rule expression evaluates to false.
// Activities without a rule pass through.
type Rule struct {
	evaluator model.ConditionEvaluator
}

// NewRule returns a Rule plugin. A nil evaluator uses the expr language.
func NewRule(evaluator model.ConditionEvaluator) *Rule {
	if evaluator == nil {
		evaluator = expr.NewEvaluator()
	}
	return &Rule{evaluator: evaluator}
}

func (r *Rule) Name() string { return "rule" }

func (r *Rule) Execute(ctx context.Context, rec *workflow.Record, actx *workflow.ActivityContext) (*workflow.Record, error) {
	rule := strings.TrimSpace(actx.Rule)
	if rule == "" {
		return rec, nil
	}
	ok, err := r.evaluator.Evaluate(ctx, rule, rec)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule, err)
	}
	if !ok {
		return nil, workflow.Veto(fmt.Sprintf("rule %q rejected activity %d.%d", rule, actx.TaskID, actx.ActivityID))
	}
	return rec, nil
}

func (r *Rule) Finalize(context.Context, bool) error { return nil }
