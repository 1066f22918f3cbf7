package workflow

import (
	"context"
	"time"
)

// Plugin is a unit of business logic invoked once per activity execution.
//
// Execute may mutate the record and return it (or a replacement). Returning
// nil keeps the record as passed in. Any error vetoes the transition and
// aborts the whole call.
//
// Finalize is called once per call for every plugin whose Execute ran,
// with committed reporting the outcome. Errors from Finalize are logged and
// never change the outcome.
//
// Plugins are shared between concurrent calls; per-call state belongs in
// ActivityContext.Values.
type Plugin interface {
	Name() string
	Execute(ctx context.Context, rec *Record, actx *ActivityContext) (*Record, error)
	Finalize(ctx context.Context, committed bool) error
}

// ActivityContext describes the activity being executed.
type ActivityContext struct {
	ExecutionID  string
	ModelVersion string
	TaskID       int
	ActivityID   int
	ActivityName string
	Rule         string
	Metadata     map[string]any
	Iteration    int
	CallerName   string
	StartedAt    time.Time
	// Values is scratch space shared by all plugins of one call.
	Values map[string]any
}

// PluginFunc adapts a function to the Execute half of Plugin.
type PluginFunc func(ctx context.Context, rec *Record, actx *ActivityContext) (*Record, error)

type funcPlugin struct {
	name string
	fn   PluginFunc
}

// NewPlugin wraps fn as a named plugin with a no-op Finalize.
func NewPlugin(name string, fn PluginFunc) Plugin {
	return &funcPlugin{name: name, fn: fn}
}

func (p *funcPlugin) Name() string { return p.name }

func (p *funcPlugin) Execute(ctx context.Context, rec *Record, actx *ActivityContext) (*Record, error) {
	if p.fn == nil {
		return rec, nil
	}
	return p.fn(ctx, rec, actx)
}

func (p *funcPlugin) Finalize(context.Context, bool) error { return nil }
