package model

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	workflow "github.com/shiningyao/imixs-workflow"
)

// Manager resolves a model version. A miss is a model lookup error.
type Manager interface {
	GetModel(ctx context.Context, version string) (*Model, error)
}

// ManagerFunc adapts a function to Manager.
type ManagerFunc func(ctx context.Context, version string) (*Model, error)

func (f ManagerFunc) GetModel(ctx context.Context, version string) (*Model, error) {
	return f(ctx, version)
}

// Registry is an in-memory Manager. Adding a model with an existing version
// replaces it.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// AddModel registers m under its version.
func (r *Registry) AddModel(m *Model) error {
	if m == nil {
		return fmt.Errorf("model registry: nil model")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.models == nil {
		r.models = make(map[string]*Model)
	}
	r.models[m.version] = m
	return nil
}

// GetModel returns the model for version.
func (r *Registry) GetModel(ctx context.Context, version string) (*Model, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, workflow.ModelLookupError(workflow.ReasonMissingVersion, "model version is empty", nil, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	m, ok := r.models[version]
	r.mu.RUnlock()
	if !ok {
		return nil, workflow.ModelLookupError(workflow.ReasonVersionNotFound,
			fmt.Sprintf("model version %q not found", version), nil,
			map[string]any{"model_version": version})
	}
	return m, nil
}

// RemoveModel drops a version and reports whether it was present.
func (r *Registry) RemoveModel(version string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[version]; !ok {
		return false
	}
	delete(r.models, version)
	return true
}

// Versions returns the registered versions, sorted.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.models))
	for v := range r.models {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
