package kernel

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Logger is the kernel logging contract. Messages use printf formatting.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger extends Logger with structured fields.
type FieldsLogger interface {
	WithFields(map[string]any) Logger
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Trace(string, ...any)                 {}
func (NopLogger) Debug(string, ...any)                 {}
func (NopLogger) Info(string, ...any)                  {}
func (NopLogger) Warn(string, ...any)                  {}
func (NopLogger) Error(string, ...any)                 {}
func (NopLogger) Fatal(string, ...any)                 {}
func (n NopLogger) WithContext(context.Context) Logger { return n }
func (n NopLogger) WithFields(map[string]any) Logger   { return n }

func normalizeLogger(logger Logger) Logger {
	if logger == nil {
		return NewDefaultLogger(nil)
	}
	return logger
}

// withLoggerFields attaches the call correlation fields. Loggers without
// structured fields get them as a "[key=value ...]" message prefix.
func withLoggerFields(logger Logger, fields map[string]any) Logger {
	logger = normalizeLogger(logger)
	if len(fields) == 0 {
		return logger
	}
	if fl, ok := logger.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return prefixLogger{base: logger, prefix: "[" + formatFields(fields) + "] "}
}

type prefixLogger struct {
	base   Logger
	prefix string
}

func (l prefixLogger) Trace(msg string, args ...any) { l.base.Trace(l.prefix+msg, args...) }
func (l prefixLogger) Debug(msg string, args ...any) { l.base.Debug(l.prefix+msg, args...) }
func (l prefixLogger) Info(msg string, args ...any)  { l.base.Info(l.prefix+msg, args...) }
func (l prefixLogger) Warn(msg string, args ...any)  { l.base.Warn(l.prefix+msg, args...) }
func (l prefixLogger) Error(msg string, args ...any) { l.base.Error(l.prefix+msg, args...) }
func (l prefixLogger) Fatal(msg string, args ...any) { l.base.Fatal(l.prefix+msg, args...) }

func (l prefixLogger) WithContext(ctx context.Context) Logger {
	return prefixLogger{base: l.base.WithContext(ctx), prefix: l.prefix}
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}
