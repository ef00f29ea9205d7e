// Package recovery guards calls into backend implementations with panic
// recovery, so a misbehaving storage driver fails one query instead of the
// whole process.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ToValue runs fn, converting a panic into an error. The panic and its
// stack are logged before the error is returned.
func ToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			var zero T
			result = zero
			err = fmt.Errorf("%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// Quiet runs fn, logging a panic without propagating it. For cleanup paths
// where no error can be returned.
func Quiet(logger *slog.Logger, operation string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic recovered in cleanup",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	fn()
}
