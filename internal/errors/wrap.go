package errors

import (
	"errors"
	"fmt"
)

// ErrorWrapper provides context-aware error wrapping.
type ErrorWrapper struct {
	operation string
	module    string
}

// NewWrapper creates a new error wrapper with operation and module context.
func NewWrapper(module, operation string) *ErrorWrapper {
	return &ErrorWrapper{
		module:    module,
		operation: operation,
	}
}

// Wrap wraps an error with operation context.
// Returns nil if err is nil.
func (w *ErrorWrapper) Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &WrappedError{
		Operation: w.operation,
		Module:    w.module,
		Cause:     err,
		Message:   message,
	}
}

// Wrapf wraps an error with formatted message.
func (w *ErrorWrapper) Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return w.Wrap(err, fmt.Sprintf(format, args...))
}

// WrappedError carries the module and operation that failed.
type WrappedError struct {
	Operation string // e.g. "reply", "mark_read", "lookup"
	Module    string // e.g. "forum", "directory", "ledger"
	Cause     error
	Message   string
}

func (e *WrappedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s: %v", e.Module, e.Operation, e.Message, e.Cause)
}

func (e *WrappedError) Unwrap() error {
	return e.Cause
}

// Operation returns "module:operation" for the outermost WrappedError in err's chain,
// or "unknown" when there is none. Used as a low-cardinality metric label.
func Operation(err error) string {
	var wrapped *WrappedError
	if errors.As(err, &wrapped) {
		return wrapped.Module + ":" + wrapped.Operation
	}
	return "unknown"
}
