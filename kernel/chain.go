package kernel

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	workflow "github.com/shiningyao/imixs-workflow"
)

var reservedItems = []string{workflow.ItemProcessID, workflow.ItemActivityID, workflow.ItemModelVersion}

// chain runs the registered plugins for one Process call and remembers which
// of them ran so each is finalized exactly once.
type chain struct {
	plugins   []workflow.Plugin
	ran       []bool
	finalized bool
	logger    Logger
}

func newChain(plugins []workflow.Plugin, logger Logger) *chain {
	return &chain{plugins: plugins, ran: make([]bool, len(plugins)), logger: logger}
}

// execute runs every plugin in registration order against rec and returns
// the record produced by the last one.
func (c *chain) execute(ctx context.Context, rec *workflow.Record, actx *workflow.ActivityContext) (*workflow.Record, error) {
	for i, p := range c.plugins {
		c.ran[i] = true
		snapshot := snapshotReserved(rec)

		out, err := runPlugin(ctx, p, rec, actx)
		if err != nil {
			return nil, c.pluginError(p, actx, err)
		}
		if out != nil {
			rec = out
		}
		if changed := restoreReserved(rec, snapshot); len(changed) > 0 {
			c.logger.Warn("plugin %s changed kernel-controlled items %v, reverted", p.Name(), changed)
		}
	}
	return rec, nil
}

func (c *chain) pluginError(p workflow.Plugin, actx *workflow.ActivityContext, err error) error {
	meta := map[string]any{
		"plugin":        p.Name(),
		"task":          actx.TaskID,
		"activity":      actx.ActivityID,
		"model_version": actx.ModelVersion,
	}
	msg := fmt.Sprintf("plugin %s failed on activity %d.%d", p.Name(), actx.TaskID, actx.ActivityID)

	var pe *panicError
	switch {
	case errors.As(err, &pe):
		meta["panic"] = true
		c.logger.Error("plugin %s panicked: %v\n%s", p.Name(), pe.value, pe.stack)
	case workflow.IsVeto(err):
		meta["veto"] = true
		msg = fmt.Sprintf("plugin %s vetoed activity %d.%d", p.Name(), actx.TaskID, actx.ActivityID)
	}
	return workflow.NewError(workflow.ErrPluginExecution, msg, err, meta)
}

// finalize calls Finalize on every plugin that ran: registration order on
// commit, reverse order on rollback. It returns the number of plugins
// finalized; later calls are no-ops.
func (c *chain) finalize(ctx context.Context, committed bool) int {
	if c.finalized {
		return 0
	}
	c.finalized = true

	count := 0
	visit := func(i int) {
		if !c.ran[i] {
			return
		}
		count++
		p := c.plugins[i]
		if err := finalizePlugin(ctx, p, committed); err != nil {
			c.logger.Error("plugin %s finalize(committed=%t) failed: %v", p.Name(), committed, err)
		}
	}
	if committed {
		for i := range c.plugins {
			visit(i)
		}
	} else {
		for i := len(c.plugins) - 1; i >= 0; i-- {
			visit(i)
		}
	}
	return count
}

func runPlugin(ctx context.Context, p workflow.Plugin, rec *workflow.Record, actx *workflow.ActivityContext) (out *workflow.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, newPanicError(r)
		}
	}()
	return p.Execute(ctx, rec, actx)
}

func finalizePlugin(ctx context.Context, p workflow.Plugin, committed bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return p.Finalize(ctx, committed)
}

func snapshotReserved(rec *workflow.Record) map[string][]any {
	out := make(map[string][]any, len(reservedItems))
	for _, name := range reservedItems {
		if rec.HasItem(name) {
			out[name] = rec.ItemValue(name)
		}
	}
	return out
}

// restoreReserved puts the reserved items back to snapshot and returns the
// names that had been changed.
func restoreReserved(rec *workflow.Record, snapshot map[string][]any) []string {
	var changed []string
	for _, name := range reservedItems {
		before, had := snapshot[name]
		switch {
		case !had && rec.HasItem(name):
			rec.RemoveItem(name)
			changed = append(changed, name)
		case had && !reflect.DeepEqual(before, rec.ItemValue(name)):
			rec.ReplaceItemValue(name, before)
			changed = append(changed, name)
		}
	}
	return changed
}
