// Package plugins holds reference plugins for the workflow kernel.
package plugins

import (
	"context"
	"fmt"
	"time"

	workflow "github.com/shiningyao/imixs-workflow"
)

// Items written by Audit.
const (
	ItemCreator       = "$creator"
	ItemCreated       = "$created"
	ItemEditor        = "$editor"
	ItemModified      = "$modified"
	ItemLastEvent     = "$lastevent"
	ItemLastEventDate = "$lasteventdate"
	ItemLastTask      = "$lasttask"
	ItemEventLog      = "$eventlog"
)

// Audit stamps every executed activity on the record: who ran it, when,
// and from which task. Each activity also appends an entry of the form
// "<RFC3339 time>|<task>.<activity>|<caller>" to $eventlog.
type Audit struct {
	now      func() time.Time
	logLimit int
}

// AuditOption configures Audit.
type AuditOption func(*Audit)

// WithAuditClock sets the time source.
func WithAuditClock(now func() time.Time) AuditOption {
	return func(a *Audit) {
		if now != nil {
			a.now = now
		}
	}
}

// WithEventLogLimit keeps only the newest n event log entries. Zero keeps all.
func WithEventLogLimit(n int) AuditOption {
	return func(a *Audit) {
		if n >= 0 {
			a.logLimit = n
		}
	}
}

// NewAudit returns an Audit plugin.
func NewAudit(opts ...AuditOption) *Audit {
	a := &Audit{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Audit) Name() string { return "audit" }

func (a *Audit) Execute(_ context.Context, rec *workflow.Record, actx *workflow.ActivityContext) (*workflow.Record, error) {
	now := a.now().UTC()

	if !rec.HasItem(ItemCreator) {
		rec.ReplaceItemValue(ItemCreator, actx.CallerName)
		rec.ReplaceItemValue(ItemCreated, now)
	}
	rec.ReplaceItemValue(ItemEditor, actx.CallerName)
	rec.ReplaceItemValue(ItemModified, now)
	rec.ReplaceItemValue(ItemLastEvent, actx.ActivityID)
	rec.ReplaceItemValue(ItemLastEventDate, now)
	rec.ReplaceItemValue(ItemLastTask, actx.TaskID)

	entry := fmt.Sprintf("%s|%d.%d|%s", now.Format(time.RFC3339), actx.TaskID, actx.ActivityID, actx.CallerName)
	rec.AppendItemValue(ItemEventLog, entry)
	if a.logLimit > 0 {
		if entries := rec.ItemValue(ItemEventLog); len(entries) > a.logLimit {
			rec.ReplaceItemValue(ItemEventLog, entries[len(entries)-a.logLimit:])
		}
	}
	return rec, nil
}

func (a *Audit) Finalize(context.Context, bool) error { return nil }
