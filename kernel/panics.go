package kernel

import (
	"fmt"
	"runtime"
	"strings"
)

// panicError carries a recovered panic value and the trimmed stack.
type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func (e *panicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(value any) *panicError {
	buf := make([]byte, 8192)
	buf = buf[:runtime.Stack(buf, false)]
	return &panicError{value: value, stack: cleanStackTrace(string(buf))}
}

// cleanStackTrace drops the frames up to and including the runtime panic
// call so the trace starts at the panicking function.
func cleanStackTrace(stack string) string {
	lines := strings.Split(stack, "\n")
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			// the panic call line is followed by its file reference
			if i+2 < len(lines) {
				return strings.Join(lines[i+2:], "\n")
			}
			break
		}
	}
	return stack
}
