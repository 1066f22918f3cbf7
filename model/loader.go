package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/shiningyao/imixs-workflow/expr"
	"gopkg.in/yaml.v3"
)

// Definition is the file form of a model.
type Definition struct {
	Version     string     `json:"version" yaml:"version"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       []Task     `json:"tasks" yaml:"tasks"`
	Activities  []Activity `json:"activities" yaml:"activities"`
}

// Validate performs structural checks without building the model.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Version) == "" {
		return fmt.Errorf("version is required")
	}
	if len(d.Tasks) == 0 {
		return fmt.Errorf("model %q: at least one task is required", d.Version)
	}
	return nil
}

// Build turns the definition into a model. Conditions are compiled when a
// compiler is given.
func (d Definition) Build(compiler ConditionCompiler) (*Model, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	m, err := New(d.Version, d.Tasks, d.Activities)
	if err != nil {
		return nil, err
	}
	m.description = strings.TrimSpace(d.Description)
	if err := m.CheckConditions(compiler); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseDefinition decodes a YAML or JSON model definition.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	// yaml.v3 reads JSON as well
	if err := yaml.Unmarshal(data, &def); err != nil {
		return def, err
	}
	return def, def.Validate()
}

// LoadOption customizes model loading.
type LoadOption func(*loadConfig)

type loadConfig struct {
	compiler ConditionCompiler
}

// WithCompiler replaces the condition compiler used to validate guards.
// Passing nil disables condition checks.
func WithCompiler(c ConditionCompiler) LoadOption {
	return func(cfg *loadConfig) {
		cfg.compiler = c
	}
}

// LoadFS registers every *.yaml, *.yml and *.json model below root in fsys
// and returns the loaded versions. Files that fail are reported together;
// valid files are still registered.
func LoadFS(reg *Registry, fsys fs.FS, root string, opts ...LoadOption) ([]string, error) {
	if reg == nil {
		return nil, fmt.Errorf("model loader: registry is nil")
	}
	cfg := loadConfig{compiler: expr.NewEvaluator()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	var (
		loaded []string
		errs   []error
	)
	walkErr := fs.WalkDir(fsys, root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !isModelFile(p) {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			return nil
		}
		def, err := ParseDefinition(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			return nil
		}
		m, err := def.Build(cfg.compiler)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			return nil
		}
		if err := reg.AddModel(m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			return nil
		}
		loaded = append(loaded, m.Version())
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return loaded, errors.Join(errs...)
}

// LoadDir is LoadFS over a directory on disk.
func LoadDir(reg *Registry, dir string, opts ...LoadOption) ([]string, error) {
	return LoadFS(reg, os.DirFS(dir), ".", opts...)
}

func isModelFile(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
