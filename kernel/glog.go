package kernel

import (
	"context"
	"io"
	"os"

	"github.com/goliatone/go-logger/glog"
)

// NewDefaultLogger is the logger used when none is configured: a go-logger
// instance at info level writing to out, or stdout when out is nil.
func NewDefaultLogger(out io.Writer) Logger {
	if out == nil {
		out = os.Stdout
	}
	return NewGlogLogger(glog.NewLogger(
		glog.WithWriter(out),
		glog.WithLevel("info"),
	))
}

// NewGlogLogger adapts a go-logger logger to the kernel Logger contract.
// Fields are forwarded when the underlying logger supports them.
func NewGlogLogger(logger glog.Logger) Logger {
	if logger == nil {
		return NewDefaultLogger(nil)
	}
	return glogLogger{logger: logger}
}

type glogLogger struct {
	logger glog.Logger
}

func (l glogLogger) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l glogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l glogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l glogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l glogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l glogLogger) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l glogLogger) WithContext(ctx context.Context) Logger {
	return glogLogger{logger: l.logger.WithContext(ctx)}
}

func (l glogLogger) WithFields(fields map[string]any) Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogLogger{logger: fl.WithFields(fields)}
	}
	return prefixLogger{base: l, prefix: "[" + formatFields(fields) + "] "}
}
