package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned for jobs submitted to, or still queued on, a
	// closed pool.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrNilJob is returned by Execute for a nil Job.
	ErrNilJob = errors.New("nil job")
)

// PanicError is returned for a job that panicked. Stack holds the stack of
// the worker goroutine at the point of the panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v", e.Value)
}

// StackTrace returns the captured stack as text.
func (e *PanicError) StackTrace() string {
	return fmt.Sprintf("worker panic: %v\nstack trace:\n%s", e.Value, e.Stack)
}
