// Package model holds versioned process models: tasks (states), activities
// (transitions) and the guarded branches that pick a transition's target.
package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	workflow "github.com/shiningyao/imixs-workflow"
)

// Task is a process state. A task with FollowUp > 0 is an automatic state:
// the kernel fires activity FollowUp on it without caller input. Other tasks
// are wait states.
type Task struct {
	ID       int    `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	FollowUp int    `json:"follow_up,omitempty" yaml:"follow_up,omitempty"`
}

// IsWaitState reports whether the kernel stops at this task.
func (t Task) IsWaitState() bool { return t.FollowUp <= 0 }

// Branch routes to Target when Condition holds.
type Branch struct {
	Condition string `json:"condition" yaml:"condition"`
	Target    int    `json:"target" yaml:"target"`
}

// Activity is a transition leaving TaskID. It either has a fixed Target or
// a list of Branches checked in order, falling back to Default.
type Activity struct {
	TaskID   int            `json:"task" yaml:"task"`
	ID       int            `json:"id" yaml:"id"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Target   int            `json:"target,omitempty" yaml:"target,omitempty"`
	Branches []Branch       `json:"branches,omitempty" yaml:"branches,omitempty"`
	Default  int            `json:"default,omitempty" yaml:"default,omitempty"`
	Rule     string         `json:"rule,omitempty" yaml:"rule,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// IsGuarded reports whether the target depends on branch conditions.
func (a Activity) IsGuarded() bool { return len(a.Branches) > 0 }

// ConditionEvaluator decides branch conditions against a record.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, condition string, rec *workflow.Record) (bool, error)
}

// ConditionCompiler checks condition syntax ahead of evaluation.
type ConditionCompiler interface {
	Compile(condition string) error
}

type activityKey struct {
	task     int
	activity int
}

// Model is an immutable process graph for one version.
type Model struct {
	version     string
	description string
	tasks       map[int]Task
	taskOrder   []int
	activities  map[activityKey]Activity
	byTask      map[int][]int
}

// New builds and validates a model. The slices are copied.
func New(version string, tasks []Task, activities []Activity) (*Model, error) {
	m := &Model{
		version:    strings.TrimSpace(version),
		tasks:      make(map[int]Task, len(tasks)),
		activities: make(map[activityKey]Activity, len(activities)),
		byTask:     make(map[int][]int),
	}

	var errs []error
	if m.version == "" {
		errs = append(errs, fmt.Errorf("version is required"))
	}
	for _, t := range tasks {
		if t.ID <= 0 {
			errs = append(errs, fmt.Errorf("task %d: id must be positive", t.ID))
			continue
		}
		if _, dup := m.tasks[t.ID]; dup {
			errs = append(errs, fmt.Errorf("task %d: duplicate id", t.ID))
			continue
		}
		m.tasks[t.ID] = t
		m.taskOrder = append(m.taskOrder, t.ID)
	}
	for _, a := range activities {
		key := activityKey{task: a.TaskID, activity: a.ID}
		if _, dup := m.activities[key]; dup {
			errs = append(errs, fmt.Errorf("activity %d.%d: duplicate id", a.TaskID, a.ID))
			continue
		}
		m.activities[key] = cloneActivity(a)
		m.byTask[a.TaskID] = append(m.byTask[a.TaskID], a.ID)
	}
	errs = append(errs, m.checkReferences()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("model %q: %w", m.version, errors.Join(errs...))
	}
	for id := range m.byTask {
		sort.Ints(m.byTask[id])
	}
	return m, nil
}

func (m *Model) checkReferences() []error {
	var errs []error
	taskExists := func(id int) bool {
		_, ok := m.tasks[id]
		return ok
	}
	for _, key := range m.sortedActivityKeys() {
		a := m.activities[key]
		where := fmt.Sprintf("activity %d.%d", a.TaskID, a.ID)
		if a.ID <= 0 {
			errs = append(errs, fmt.Errorf("%s: id must be positive", where))
		}
		if !taskExists(a.TaskID) {
			errs = append(errs, fmt.Errorf("%s: unknown task %d", where, a.TaskID))
		}
		switch {
		case a.IsGuarded():
			if a.Target > 0 {
				errs = append(errs, fmt.Errorf("%s: target and branches are exclusive", where))
			}
			for i, b := range a.Branches {
				if strings.TrimSpace(b.Condition) == "" {
					errs = append(errs, fmt.Errorf("%s: branch %d has no condition", where, i))
				}
				if !taskExists(b.Target) {
					errs = append(errs, fmt.Errorf("%s: branch %d targets unknown task %d", where, i, b.Target))
				}
			}
			if a.Default > 0 && !taskExists(a.Default) {
				errs = append(errs, fmt.Errorf("%s: default targets unknown task %d", where, a.Default))
			}
		case a.Target <= 0:
			errs = append(errs, fmt.Errorf("%s: requires a target or branches", where))
		case !taskExists(a.Target):
			errs = append(errs, fmt.Errorf("%s: targets unknown task %d", where, a.Target))
		}
	}
	for _, id := range m.taskOrder {
		t := m.tasks[id]
		if t.FollowUp <= 0 {
			continue
		}
		if _, ok := m.activities[activityKey{task: t.ID, activity: t.FollowUp}]; !ok {
			errs = append(errs, fmt.Errorf("task %d: follow-up activity %d not defined", t.ID, t.FollowUp))
		}
	}
	return errs
}

// CheckConditions compiles every branch condition and activity rule.
func (m *Model) CheckConditions(compiler ConditionCompiler) error {
	if compiler == nil {
		return nil
	}
	var errs []error
	for _, key := range m.sortedActivityKeys() {
		a := m.activities[key]
		for i, b := range a.Branches {
			if err := compiler.Compile(b.Condition); err != nil {
				errs = append(errs, fmt.Errorf("activity %d.%d branch %d: %w", a.TaskID, a.ID, i, err))
			}
		}
		if strings.TrimSpace(a.Rule) != "" {
			if err := compiler.Compile(a.Rule); err != nil {
				errs = append(errs, fmt.Errorf("activity %d.%d rule: %w", a.TaskID, a.ID, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("model %q: %w", m.version, errors.Join(errs...))
	}
	return nil
}

// Version returns the model version.
func (m *Model) Version() string { return m.version }

// Description returns the free-text description, if any.
func (m *Model) Description() string { return m.description }

// Task returns the task with id.
func (m *Model) Task(id int) (Task, bool) {
	t, ok := m.tasks[id]
	return t, ok
}

// Activity returns the activity id leaving taskID.
func (m *Model) Activity(taskID, activityID int) (Activity, bool) {
	a, ok := m.activities[activityKey{task: taskID, activity: activityID}]
	if !ok {
		return Activity{}, false
	}
	return cloneActivity(a), true
}

// Tasks returns all tasks in declaration order.
func (m *Model) Tasks() []Task {
	out := make([]Task, 0, len(m.taskOrder))
	for _, id := range m.taskOrder {
		out = append(out, m.tasks[id])
	}
	return out
}

// ActivitiesOf returns the activities leaving taskID, ordered by id.
func (m *Model) ActivitiesOf(taskID int) []Activity {
	ids := m.byTask[taskID]
	out := make([]Activity, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneActivity(m.activities[activityKey{task: taskID, activity: id}]))
	}
	return out
}

func (m *Model) sortedActivityKeys() []activityKey {
	keys := make([]activityKey, 0, len(m.activities))
	for k := range m.activities {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].task != keys[j].task {
			return keys[i].task < keys[j].task
		}
		return keys[i].activity < keys[j].activity
	})
	return keys
}

func cloneActivity(a Activity) Activity {
	if a.Branches != nil {
		a.Branches = append([]Branch(nil), a.Branches...)
	}
	if a.Metadata != nil {
		meta := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			meta[k] = v
		}
		a.Metadata = meta
	}
	return a
}
