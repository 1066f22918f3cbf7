package scheduler

import (
	"time"

	"github.com/shiningyao/imixs-workflow/kernel"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone cron specs are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithSeconds accepts an optional leading seconds field in specs.
func WithSeconds() Option {
	return func(s *Scheduler) {
		s.seconds = true
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(logger kernel.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used in reports.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReportHandler is called after every job run.
func WithReportHandler(fn func(Report)) Option {
	return func(s *Scheduler) {
		s.onReport = fn
	}
}

// cronLogger adapts kernel.Logger to the robfig/cron logger.
type cronLogger struct {
	logger kernel.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: %s %v: %v", msg, keysAndValues, err)
}
