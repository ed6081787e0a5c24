package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace.
// Call it in a defer statement. The panic is not re-raised.
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "limiter cleanup")
//	    limiter.Cleanup()
//	}()
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logger.WithField("panic", fmt.Sprint(r)).
			WithField("stack", string(debug.Stack())).
			WithField("context", where).
			Error("PANIC recovered")
	}
}

// Guard wraps fn so that a panic inside it is logged instead of crashing
// the process. Intended for scheduled jobs.
func Guard(logger *Logger, where string, fn func()) func() {
	return func() {
		defer RecoverPanic(logger, where)
		fn()
	}
}

// PanicError converts a recovered value to an error, or nil
func PanicError(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
