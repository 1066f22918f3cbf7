// Package scheduler runs timer activities: on a cron schedule it collects
// due records from a Source, pushes each through the kernel and hands the
// results to a Sink.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	workflow "github.com/shiningyao/imixs-workflow"
	"github.com/shiningyao/imixs-workflow/kernel"
)

// Scheduler owns a cron instance and the jobs registered on it.
type Scheduler struct {
	proc     Processor
	logger   kernel.Logger
	location *time.Location
	seconds  bool
	now      func() time.Time
	onReport func(Report)

	parser rcron.Parser
	cron   *rcron.Cron

	mu   sync.Mutex
	jobs map[string]*entry
}

type entry struct {
	job     Job
	id      rcron.EntryID
	running bool
	last    *Report
}

// New creates a scheduler that processes records with proc.
func New(proc Processor, opts ...Option) (*Scheduler, error) {
	if proc == nil {
		return nil, workflow.NewError(workflow.ErrPrecondition, "scheduler requires a processor", nil, nil)
	}

	s := &Scheduler{
		proc:     proc,
		logger:   kernel.NopLogger{},
		location: time.Local,
		now:      time.Now,
		jobs:     make(map[string]*entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	fields := rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor
	if s.seconds {
		fields |= rcron.SecondOptional
	}
	s.parser = rcron.NewParser(fields)
	s.cron = rcron.New(
		rcron.WithLocation(s.location),
		rcron.WithParser(s.parser),
		rcron.WithLogger(cronLogger{logger: s.logger}),
		rcron.WithChain(rcron.Recover(cronLogger{logger: s.logger})),
	)
	return s, nil
}

// Add validates and schedules job. Names are unique per scheduler.
func (s *Scheduler) Add(job Job) error {
	job.Name = strings.TrimSpace(job.Name)
	if err := s.validate(job); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return workflow.NewError(workflow.ErrPrecondition,
			fmt.Sprintf("job %q already scheduled", job.Name), nil, map[string]any{"job": job.Name})
	}

	name := job.Name
	id, err := s.cron.AddFunc(job.Spec, func() {
		if _, err := s.RunOnce(context.Background(), name); err != nil {
			s.logger.Warn("job %s: %v", name, err)
		}
	})
	if err != nil {
		return workflow.NewError(workflow.ErrPrecondition,
			fmt.Sprintf("job %q: invalid spec %q", job.Name, job.Spec), err, map[string]any{"job": job.Name})
	}
	s.jobs[name] = &entry{job: job, id: id}
	return nil
}

func (s *Scheduler) validate(job Job) error {
	var problem string
	switch {
	case job.Name == "":
		problem = "job name is required"
	case job.Source == nil:
		problem = fmt.Sprintf("job %q has no source", job.Name)
	case job.Sink == nil:
		problem = fmt.Sprintf("job %q has no sink", job.Name)
	case job.ActivityID < 0:
		problem = fmt.Sprintf("job %q has a negative activity", job.Name)
	}
	if problem != "" {
		return workflow.NewError(workflow.ErrPrecondition, problem, nil, map[string]any{"job": job.Name})
	}
	return nil
}

// Remove unschedules the named job.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	e, ok := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()
	if ok {
		s.cron.Remove(e.id)
	}
	return ok
}

// Jobs returns the scheduled job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next returns the next activation time of the named job once the
// scheduler is started.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(e.id).Next, true
}

// LastReport returns the report of the named job's most recent run.
func (s *Scheduler) LastReport(name string) (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok || e.last == nil {
		return Report{}, false
	}
	return *e.last, true
}

// RunOnce runs the named job synchronously. A job never overlaps with
// itself: calling RunOnce while the job is running returns an error.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (Report, error) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	switch {
	case !ok:
		s.mu.Unlock()
		return Report{}, workflow.NewError(workflow.ErrPrecondition,
			fmt.Sprintf("job %q not found", name), nil, map[string]any{"job": name})
	case e.running:
		s.mu.Unlock()
		return Report{}, workflow.NewError(workflow.ErrPrecondition,
			fmt.Sprintf("job %q is already running", name), nil, map[string]any{"job": name})
	}
	e.running = true
	job := e.job
	s.mu.Unlock()

	report := s.run(ctx, job)

	s.mu.Lock()
	e.running = false
	e.last = &report
	s.mu.Unlock()

	if s.onReport != nil {
		s.onReport(report)
	}
	return report, nil
}

func (s *Scheduler) run(ctx context.Context, job Job) Report {
	if ctx == nil {
		ctx = context.Background()
	}
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	report := Report{Job: job.Name, Started: s.now()}
	logger := s.logger.WithContext(ctx)

	records, err := job.Source.Due(ctx, job.Name)
	if err != nil {
		report.Err = err
		report.Finished = s.now()
		logger.Error("job %s: source failed: %v", job.Name, err)
		return report
	}
	report.Due = len(records)

	for _, rec := range records {
		if rec == nil {
			continue
		}
		if ctx.Err() != nil {
			report.Failed++
			job.Sink.Failed(ctx, rec, ctx.Err())
			continue
		}

		in := rec
		if job.ActivityID > 0 {
			in = rec.Clone().ReplaceItemValue(workflow.ItemActivityID, job.ActivityID)
		}

		out, err := s.proc.Process(ctx, in)
		if err == nil {
			err = job.Sink.Save(ctx, out)
		}
		if err != nil {
			report.Failed++
			job.Sink.Failed(ctx, rec, err)
			logger.Warn("job %s: task %d: %v", job.Name, rec.ProcessID(), err)
			continue
		}
		report.Processed++
	}

	report.Finished = s.now()
	logger.Info("job %s: %d due, %d processed, %d failed", job.Name, report.Due, report.Processed, report.Failed)
	return report
}

// Start begins firing jobs on their schedules.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	if ctx == nil {
		<-done.Done()
		return nil
	}
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
