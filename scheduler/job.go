package scheduler

import (
	"context"
	"time"

	workflow "github.com/shiningyao/imixs-workflow"
)

// Processor advances a record through its model. *kernel.Kernel satisfies it.
type Processor interface {
	Process(ctx context.Context, rec *workflow.Record) (*workflow.Record, error)
}

// Source lists the records a job should process on a tick.
type Source interface {
	Due(ctx context.Context, job string) ([]*workflow.Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, job string) ([]*workflow.Record, error)

func (f SourceFunc) Due(ctx context.Context, job string) ([]*workflow.Record, error) {
	return f(ctx, job)
}

// Sink receives the outcome of every processed record.
type Sink interface {
	// Save receives the record returned by the processor.
	Save(ctx context.Context, rec *workflow.Record) error
	// Failed receives the input record and the processing error.
	Failed(ctx context.Context, rec *workflow.Record, err error)
}

// Job describes a recurring timer activity.
type Job struct {
	Name string
	// Spec is a cron expression or descriptor such as "@every 5m".
	Spec string
	// ActivityID is written to $activityid before processing. Zero keeps
	// the record's own activity.
	ActivityID int
	// Timeout bounds a single tick. Zero means no limit.
	Timeout time.Duration
	Source  Source
	Sink    Sink
}

// Report summarizes one run of a job.
type Report struct {
	Job       string
	Started   time.Time
	Finished  time.Time
	Due       int
	Processed int
	Failed    int
	// Err is set when the source itself failed.
	Err error
}
