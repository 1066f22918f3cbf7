package workflow

// Caller exposes the identity of whoever triggered the current call.
type Caller interface {
	CallerName() string
}

// CallerFunc adapts a function to Caller.
type CallerFunc func() string

func (f CallerFunc) CallerName() string { return f() }

// StaticCaller always reports the same name.
type StaticCaller string

func (c StaticCaller) CallerName() string { return string(c) }

// AnonymousCaller is used when no caller is configured.
const AnonymousCaller = StaticCaller("anonymous")
