package expr

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	workflow "github.com/shiningyao/imixs-workflow"
)

// DefaultCacheSize is the number of parsed expressions an Evaluator keeps.
const DefaultCacheSize = 1024

// Names that resolve to the whole record instead of a single item.
const (
	WorkitemName = "workitem"
	RecordName   = "record"
)

// Evaluator evaluates guard expressions against records. Parsed expressions
// are kept in a bounded LRU keyed by source text; an Evaluator is safe for
// concurrent use.
type Evaluator struct {
	cache *lru.Cache[string, Node]
}

// NewEvaluator returns an evaluator caching up to DefaultCacheSize expressions.
func NewEvaluator() *Evaluator {
	return NewEvaluatorSize(DefaultCacheSize)
}

// NewEvaluatorSize returns an evaluator caching up to size expressions.
// A size below 1 is treated as 1.
func NewEvaluatorSize(size int) *Evaluator {
	if size < 1 {
		size = 1
	}
	cache, _ := lru.New[string, Node](size)
	return &Evaluator{cache: cache}
}

// Cached reports how many parsed expressions are held.
func (e *Evaluator) Cached() int {
	return e.cache.Len()
}

// Compile parses src and caches the result.
func (e *Evaluator) Compile(src string) error {
	_, err := e.compile(src)
	return err
}

func (e *Evaluator) compile(src string) (Node, error) {
	key := strings.TrimSpace(src)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}
	n, err := Parse(key)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, n)
	return n, nil
}

// Value evaluates src against rec and returns the raw result.
func (e *Evaluator) Value(ctx context.Context, src string, rec *workflow.Record) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := e.compile(src)
	if err != nil {
		return nil, err
	}
	return Eval(n, RecordScope(rec))
}

// Evaluate evaluates src against rec and applies truthiness to the result.
func (e *Evaluator) Evaluate(ctx context.Context, src string, rec *workflow.Record) (bool, error) {
	v, err := e.Value(ctx, src, rec)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

// RecordScope exposes rec to expressions. Identifiers match item names
// case-insensitively and yield the item's first value.
func RecordScope(rec *workflow.Record) Scope {
	return recordScope{rec: rec}
}

type recordScope struct {
	rec *workflow.Record
}

func (s recordScope) Lookup(name string) (any, bool) {
	switch key := strings.ToLower(name); key {
	case WorkitemName, RecordName:
		if s.rec.HasItem(key) {
			break
		}
		return Items(s.rec.Items()), true
	}
	return s.rec.FirstValue(name)
}
