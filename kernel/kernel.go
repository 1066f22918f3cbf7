// Package kernel runs records through process models. A Process call
// resolves the record's model, executes the requested activity through the
// plugin chain, follows automatic follow-up activities and stops at the
// next wait state. Either every step commits or the caller sees no change.
package kernel

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	workflow "github.com/shiningyao/imixs-workflow"
	"github.com/shiningyao/imixs-workflow/expr"
	"github.com/shiningyao/imixs-workflow/model"
)

// Kernel is safe for concurrent Process calls on distinct records. Plugins
// must be registered before the first call.
type Kernel struct {
	models    model.Manager
	evaluator model.ConditionEvaluator
	caller    workflow.Caller
	logger    Logger
	hooks     []Hook
	hookMode  HookFailureMode
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	plugins []workflow.Plugin
	names   map[string]struct{}
	sealed  bool
}

// New builds a kernel reading models from models.
func New(models model.Manager, opts ...Option) (*Kernel, error) {
	if models == nil {
		return nil, workflow.NewError(workflow.ErrPrecondition, "kernel requires a model manager", nil, nil)
	}
	k := &Kernel{
		models:    models,
		evaluator: expr.NewEvaluator(),
		caller:    workflow.AnonymousCaller,
		logger:    NewDefaultLogger(nil),
		hookMode:  HookFailureModeFailOpen,
		now:       time.Now,
		newID:     uuid.NewString,
		names:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(k); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// RegisterPlugin appends p to the chain. Registration order is execution
// order. It fails once the kernel has processed a record, for nil plugins
// and for duplicate names.
func (k *Kernel) RegisterPlugin(p workflow.Plugin) error {
	if p == nil {
		return workflow.NewError(workflow.ErrPrecondition, "plugin is nil", nil, nil)
	}
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return workflow.NewError(workflow.ErrPrecondition, "plugin name is required", nil, nil)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	meta := map[string]any{"plugin": name}
	if k.sealed {
		return workflow.NewError(workflow.ErrPrecondition,
			fmt.Sprintf("cannot register plugin %s after processing started", name), nil, meta)
	}
	if _, dup := k.names[name]; dup {
		return workflow.NewError(workflow.ErrPrecondition,
			fmt.Sprintf("plugin %s already registered", name), nil, meta)
	}
	k.names[name] = struct{}{}
	k.plugins = append(k.plugins, p)
	return nil
}

// Plugins returns the registered plugin names in execution order.
func (k *Kernel) Plugins() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, len(k.plugins))
	for i, p := range k.plugins {
		out[i] = p.Name()
	}
	return out
}

// seal freezes the plugin registry and returns it.
func (k *Kernel) seal() []workflow.Plugin {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sealed = true
	return k.plugins
}
