package kernel

import (
	"time"

	workflow "github.com/shiningyao/imixs-workflow"
	"github.com/shiningyao/imixs-workflow/model"
)

// Option configures a Kernel.
type Option func(*Kernel) error

// WithLogger sets the kernel logger. nil falls back to NewDefaultLogger.
func WithLogger(logger Logger) Option {
	return func(k *Kernel) error {
		k.logger = normalizeLogger(logger)
		return nil
	}
}

// WithCaller sets the identity exposed to plugins.
func WithCaller(caller workflow.Caller) Option {
	return func(k *Kernel) error {
		if caller != nil {
			k.caller = caller
		}
		return nil
	}
}

// WithEvaluator replaces the branch condition evaluator.
func WithEvaluator(evaluator model.ConditionEvaluator) Option {
	return func(k *Kernel) error {
		if evaluator != nil {
			k.evaluator = evaluator
		}
		return nil
	}
}

// WithPlugins registers plugins in the given order.
func WithPlugins(plugins ...workflow.Plugin) Option {
	return func(k *Kernel) error {
		for _, p := range plugins {
			if err := k.RegisterPlugin(p); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithHooks appends lifecycle hooks.
func WithHooks(hooks ...Hook) Option {
	return func(k *Kernel) error {
		k.hooks = append(k.hooks, hooks...)
		return nil
	}
}

// WithHookFailureMode selects fail-open (default) or fail-closed hooks.
func WithHookFailureMode(mode HookFailureMode) Option {
	return func(k *Kernel) error {
		k.hookMode = normalizeHookFailureMode(mode)
		return nil
	}
}

// WithClock overrides the time source used for events and activity contexts.
func WithClock(now func() time.Time) Option {
	return func(k *Kernel) error {
		if now != nil {
			k.now = now
		}
		return nil
	}
}

// WithIDGenerator overrides execution id generation.
func WithIDGenerator(next func() string) Option {
	return func(k *Kernel) error {
		if next != nil {
			k.newID = next
		}
		return nil
	}
}
