package concurrency

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// SafeGo runs fn in a goroutine. A panic is logged with its stack and handed
// to onPanic instead of crashing the process.
func SafeGo(name string, fn func(), onPanic func(error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic recovered", "routine", name, "panic", r, "stack", string(debug.Stack()))
				if onPanic != nil {
					onPanic(PanicError(r))
				}
			}
		}()
		fn()
	}()
}

// Recover converts a recovered panic value into an error. Call as
// `defer concurrency.Recover(&err)`.
func Recover(errp *error) {
	if r := recover(); r != nil {
		slog.Error("Panic recovered", "panic", r)
		*errp = PanicError(r)
	}
}

func PanicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
