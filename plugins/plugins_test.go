package plugins

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	workflow "github.com/shiningyao/imixs-workflow"
	"github.com/shiningyao/imixs-workflow/kernel"
	"github.com/shiningyao/imixs-workflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKernel(t *testing.T, opts ...kernel.Option) *kernel.Kernel {
	t.Helper()
	reg := model.NewRegistry()
	_, err := model.LoadDir(reg, "../model/testdata/models")
	require.NoError(t, err)

	opts = append([]kernel.Option{kernel.WithLogger(kernel.NopLogger{})}, opts...)
	k, err := kernel.New(reg, opts...)
	require.NoError(t, err)
	return k
}

func record(version string, task, activity int) *workflow.Record {
	return workflow.NewRecord().
		ReplaceItemValue(workflow.ItemModelVersion, version).
		ReplaceItemValue(workflow.ItemProcessID, task).
		ReplaceItemValue(workflow.ItemActivityID, activity)
}

func TestAuditStampsEveryActivity(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	k := newKernel(t,
		kernel.WithCaller(workflow.StaticCaller("manfred")),
		kernel.WithPlugins(NewAudit(WithAuditClock(func() time.Time { return fixed }))),
	)

	out, err := k.Process(context.Background(), record("conditional", 1000, 10).ReplaceItemValue("_budget", 99))
	require.NoError(t, err)

	assert.Equal(t, "manfred", out.ItemValueString(ItemEditor))
	assert.Equal(t, "manfred", out.ItemValueString(ItemCreator))
	assert.Equal(t, 20, out.ItemValueInteger(ItemLastEvent))
	assert.Equal(t, 1010, out.ItemValueInteger(ItemLastTask))
	modified, ok := out.ItemValueTime(ItemModified)
	require.True(t, ok)
	assert.Equal(t, fixed, modified)
	assert.Equal(t, []any{
		"2024-03-01T10:00:00Z|1000.10|manfred",
		"2024-03-01T10:00:00Z|1010.20|manfred",
	}, out.ItemValue(ItemEventLog))
}

func TestAuditKeepsCreator(t *testing.T) {
	a := NewAudit()
	rec := workflow.NewRecord().ReplaceItemValue(ItemCreator, "anna")

	out, err := a.Execute(context.Background(), rec, &workflow.ActivityContext{CallerName: "tom", TaskID: 1, ActivityID: 2})
	require.NoError(t, err)
	assert.Equal(t, "anna", out.ItemValueString(ItemCreator))
	assert.Equal(t, "tom", out.ItemValueString(ItemEditor))
}

func TestAuditEventLogLimit(t *testing.T) {
	a := NewAudit(WithEventLogLimit(2))
	rec := workflow.NewRecord()
	for i := 1; i <= 3; i++ {
		var err error
		rec, err = a.Execute(context.Background(), rec, &workflow.ActivityContext{TaskID: i, ActivityID: 10, CallerName: "x"})
		require.NoError(t, err)
	}
	entries := rec.ItemValue(ItemEventLog)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0], "|2.10|")
	assert.Contains(t, entries[1], "|3.10|")
}

func TestRuleVetoesTransition(t *testing.T) {
	k := newKernel(t, kernel.WithPlugins(NewRule(nil)))

	in := record("ticket", 1100, 30)
	out, err := k.Process(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, workflow.IsPluginExecution(err))

	var ge *goerrors.Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "rule", ge.Metadata["plugin"])
	assert.True(t, workflow.IsVeto(ge.Source))

	out, err = k.Process(context.Background(), in.ReplaceItemValue("txtComment", "duplicate"))
	require.NoError(t, err)
	assert.Equal(t, 1900, out.ProcessID())
}

func TestRuleWithoutExpressionPasses(t *testing.T) {
	k := newKernel(t, kernel.WithPlugins(NewRule(nil)))
	out, err := k.Process(context.Background(), record("ticket", 1100, 20))
	require.NoError(t, err)
	assert.Equal(t, 1200, out.ProcessID())
}

func TestRuleEvaluationErrorIsNotVeto(t *testing.T) {
	r := NewRule(nil)
	_, err := r.Execute(context.Background(), workflow.NewRecord(), &workflow.ActivityContext{Rule: "a >"})
	require.Error(t, err)
	assert.False(t, workflow.IsVeto(err))
}

func TestAuditRollsBackWithFailedCall(t *testing.T) {
	k := newKernel(t, kernel.WithPlugins(NewAudit(), NewRule(nil)))

	in := record("ticket", 1100, 30)
	_, err := k.Process(context.Background(), in)
	require.Error(t, err)
	assert.False(t, in.HasItem(ItemEditor))
	assert.False(t, in.HasItem(ItemEventLog))
}
