package model

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	workflow "github.com/shiningyao/imixs-workflow"
	"github.com/shiningyao/imixs-workflow/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvaluator map[string]bool

func (s stubEvaluator) Evaluate(_ context.Context, condition string, _ *workflow.Record) (bool, error) {
	v, ok := s[condition]
	if !ok {
		return false, errors.New("unknown condition")
	}
	return v, nil
}

func conditionalModel(t *testing.T) *Model {
	t.Helper()
	m, err := New("conditional",
		[]Task{{ID: 1000}, {ID: 1010, FollowUp: 20}, {ID: 1100}, {ID: 1200}},
		[]Activity{
			{TaskID: 1000, ID: 10, Target: 1010},
			{TaskID: 1010, ID: 20, Branches: []Branch{
				{Condition: "big", Target: 1100},
				{Condition: "small", Target: 1200},
			}, Default: 1200},
		})
	require.NoError(t, err)
	return m
}

func TestNewModelReadAccess(t *testing.T) {
	m := conditionalModel(t)

	assert.Equal(t, "conditional", m.Version())
	task, ok := m.Task(1010)
	require.True(t, ok)
	assert.False(t, task.IsWaitState())
	assert.Equal(t, 20, task.FollowUp)

	_, ok = m.Task(4242)
	assert.False(t, ok)

	act, ok := m.Activity(1010, 20)
	require.True(t, ok)
	assert.True(t, act.IsGuarded())

	_, ok = m.Activity(1000, 20)
	assert.False(t, ok)

	assert.Len(t, m.Tasks(), 4)
	assert.Equal(t, 1000, m.Tasks()[0].ID)
	assert.Len(t, m.ActivitiesOf(1010), 1)
	assert.Empty(t, m.ActivitiesOf(1100))
}

func TestModelIsImmutable(t *testing.T) {
	branches := []Branch{{Condition: "big", Target: 2}}
	m, err := New("v", []Task{{ID: 1}, {ID: 2}}, []Activity{{TaskID: 1, ID: 1, Branches: branches, Default: 2}})
	require.NoError(t, err)

	branches[0].Target = 99
	act, _ := m.Activity(1, 1)
	assert.Equal(t, 2, act.Branches[0].Target)

	act.Branches[0].Target = 77
	again, _ := m.Activity(1, 1)
	assert.Equal(t, 2, again.Branches[0].Target)
}

func TestNewModelValidation(t *testing.T) {
	cases := []struct {
		name       string
		version    string
		tasks      []Task
		activities []Activity
		contains   string
	}{
		{name: "missing version", tasks: []Task{{ID: 1}}, contains: "version is required"},
		{name: "duplicate task", version: "v", tasks: []Task{{ID: 1}, {ID: 1}}, contains: "duplicate id"},
		{
			name: "duplicate activity", version: "v", tasks: []Task{{ID: 1}},
			activities: []Activity{{TaskID: 1, ID: 1, Target: 1}, {TaskID: 1, ID: 1, Target: 1}},
			contains:   "activity 1.1: duplicate id",
		},
		{
			name: "dangling target", version: "v", tasks: []Task{{ID: 1}},
			activities: []Activity{{TaskID: 1, ID: 1, Target: 9}},
			contains:   "targets unknown task 9",
		},
		{
			name: "no target", version: "v", tasks: []Task{{ID: 1}},
			activities: []Activity{{TaskID: 1, ID: 1}},
			contains:   "requires a target or branches",
		},
		{
			name: "unknown source task", version: "v", tasks: []Task{{ID: 1}},
			activities: []Activity{{TaskID: 5, ID: 1, Target: 1}},
			contains:   "unknown task 5",
		},
		{
			name: "missing follow-up activity", version: "v", tasks: []Task{{ID: 1, FollowUp: 30}},
			contains: "follow-up activity 30 not defined",
		},
		{
			name: "branch without condition", version: "v", tasks: []Task{{ID: 1}},
			activities: []Activity{{TaskID: 1, ID: 1, Branches: []Branch{{Target: 1}}}},
			contains:   "has no condition",
		},
		{
			name: "target and branches", version: "v", tasks: []Task{{ID: 1}},
			activities: []Activity{{TaskID: 1, ID: 1, Target: 1, Branches: []Branch{{Condition: "x", Target: 1}}}},
			contains:   "exclusive",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.version, tt.tasks, tt.activities)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestResolveTargetDeterministic(t *testing.T) {
	m := conditionalModel(t)
	act, _ := m.Activity(1000, 10)

	target, err := act.ResolveTarget(context.Background(), workflow.NewRecord(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1010, target)
}

func TestResolveTargetFirstTrueBranchWins(t *testing.T) {
	m := conditionalModel(t)
	act, _ := m.Activity(1010, 20)
	ctx := context.Background()

	target, err := act.ResolveTarget(ctx, nil, stubEvaluator{"big": true, "small": true})
	require.NoError(t, err)
	assert.Equal(t, 1100, target)

	target, err = act.ResolveTarget(ctx, nil, stubEvaluator{"big": false, "small": true})
	require.NoError(t, err)
	assert.Equal(t, 1200, target)
}

func TestResolveTargetDefaultAndUnreachable(t *testing.T) {
	act := Activity{TaskID: 1, ID: 2, Branches: []Branch{{Condition: "c", Target: 3}}, Default: 4}
	ctx := context.Background()

	target, err := act.ResolveTarget(ctx, nil, stubEvaluator{"c": false})
	require.NoError(t, err)
	assert.Equal(t, 4, target)

	act.Default = 0
	_, err = act.ResolveTarget(ctx, nil, stubEvaluator{"c": false})
	require.Error(t, err)
	assert.True(t, workflow.IsModelLookup(err))
	assert.Equal(t, workflow.ReasonUnreachableBranch, workflow.ErrorReason(err))
}

func TestResolveTargetEvaluationFailure(t *testing.T) {
	act := Activity{TaskID: 1, ID: 2, Branches: []Branch{{Condition: "boom", Target: 3}}, Default: 4}

	_, err := act.ResolveTarget(context.Background(), nil, stubEvaluator{})
	require.Error(t, err)
	assert.True(t, workflow.IsModelLookup(err))
	assert.Equal(t, workflow.ReasonInvalidCondition, workflow.ErrorReason(err))

	_, err = act.ResolveTarget(context.Background(), nil, nil)
	assert.Equal(t, workflow.ReasonInvalidCondition, workflow.ErrorReason(err))
}

func TestResolveTargetWithExpressions(t *testing.T) {
	act := Activity{TaskID: 1010, ID: 20, Branches: []Branch{
		{Condition: "workitem._budget[0] > 100", Target: 1100},
	}, Default: 1200}
	ev := expr.NewEvaluator()
	ctx := context.Background()

	small := workflow.NewRecord().ReplaceItemValue("_budget", 99)
	target, err := act.ResolveTarget(ctx, small, ev)
	require.NoError(t, err)
	assert.Equal(t, 1200, target)

	large := workflow.NewRecord().ReplaceItemValue("_budget", 9999)
	target, err = act.ResolveTarget(ctx, large, ev)
	require.NoError(t, err)
	assert.Equal(t, 1100, target)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	require.NoError(t, reg.AddModel(conditionalModel(t)))
	require.Error(t, reg.AddModel(nil))

	m, err := reg.GetModel(ctx, " conditional ")
	require.NoError(t, err)
	assert.Equal(t, "conditional", m.Version())

	_, err = reg.GetModel(ctx, "missing")
	require.Error(t, err)
	assert.True(t, workflow.IsModelLookup(err))
	assert.Equal(t, workflow.ReasonVersionNotFound, workflow.ErrorReason(err))

	_, err = reg.GetModel(ctx, "")
	assert.Equal(t, workflow.ReasonMissingVersion, workflow.ErrorReason(err))

	assert.Equal(t, []string{"conditional"}, reg.Versions())
	assert.True(t, reg.RemoveModel("conditional"))
	assert.False(t, reg.RemoveModel("conditional"))
	assert.Empty(t, reg.Versions())
}

func TestManagerFunc(t *testing.T) {
	m := conditionalModel(t)
	var mgr Manager = ManagerFunc(func(_ context.Context, version string) (*Model, error) {
		return m, nil
	})
	got, err := mgr.GetModel(context.Background(), "any")
	require.NoError(t, err)
	assert.Same(t, m, got)
}

func TestLoadDirRegistersModels(t *testing.T) {
	reg := NewRegistry()
	loaded, err := LoadDir(reg, "testdata/models")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"conditional", "simple", "ticket"}, loaded)
	assert.Equal(t, []string{"conditional", "simple", "ticket"}, reg.Versions())

	m, err := reg.GetModel(context.Background(), "ticket")
	require.NoError(t, err)
	reject, ok := m.Activity(1100, 30)
	require.True(t, ok)
	assert.Equal(t, "txtcomment != null", reject.Rule)
	assert.Equal(t, "owner", reject.Metadata["notify"])

	cond, err := reg.GetModel(context.Background(), "conditional")
	require.NoError(t, err)
	review, _ := cond.Task(1010)
	assert.Equal(t, 20, review.FollowUp)
	assert.Equal(t, "Budget review routing. Large budgets need approval.", cond.Description())
}

func TestLoadDirReportsBrokenModels(t *testing.T) {
	reg := NewRegistry()
	loaded, err := LoadDir(reg, "testdata/broken")
	require.Error(t, err)
	assert.Empty(t, loaded)
	assert.Contains(t, err.Error(), "dangling.yaml")
	assert.Contains(t, err.Error(), "targets unknown task 4242")
	assert.Contains(t, err.Error(), "syntax.json")
	assert.Contains(t, err.Error(), "position")
}

func TestLoadFSWithoutCompilerSkipsConditionChecks(t *testing.T) {
	fsys := fstest.MapFS{
		"m.json": {Data: []byte(`{"version":"loose","tasks":[{"id":1},{"id":2}],` +
			`"activities":[{"task":1,"id":1,"branches":[{"condition":"a >","target":2}]}]}`)},
		"notes.txt": {Data: []byte("ignored")},
	}
	reg := NewRegistry()
	loaded, err := LoadFS(reg, fsys, ".", WithCompiler(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"loose"}, loaded)
}

func TestParseDefinitionRequiresVersion(t *testing.T) {
	_, err := ParseDefinition([]byte("tasks:\n  - id: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version is required")
}
