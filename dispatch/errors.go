package dispatch

import (
	"errors"
	"fmt"

	"github.com/utkarsh5026/taskprof/pool"
)

var (
	// ErrDispatcherClosed is returned for work submitted after Close, and is
	// the cause of tasks still running when Close is called.
	ErrDispatcherClosed = errors.New("dispatcher is closed")
	// ErrInvalidEngine is returned by New for a nil engine, an engine without
	// a class, or two engines claiming the same class.
	ErrInvalidEngine = errors.New("invalid engine")

	// ErrTaskTimeout is the cause of a task that exceeded its TimeoutMs.
	ErrTaskTimeout = errors.New("task timed out")
	// ErrTaskCancelled is the cause of a task stopped through Cancel.
	ErrTaskCancelled = errors.New("task cancelled")
)

// PoolNotFoundError reports a descriptor naming a lane the dispatcher does
// not own.
type PoolNotFoundError struct {
	Class pool.Class
}

func (e *PoolNotFoundError) Error() string {
	return fmt.Sprintf("pool %q not found", e.Class)
}

// OperationNotRegisteredError reports a descriptor naming an unknown operation.
type OperationNotRegisteredError struct {
	Operation string
}

func (e *OperationNotRegisteredError) Error() string {
	return fmt.Sprintf("operation %q is not registered", e.Operation)
}

// DuplicateTaskError reports an id that is already in flight, or, when
// InBatch is set, an id repeated within one batch.
type DuplicateTaskError struct {
	ID      string
	InBatch bool
}

func (e *DuplicateTaskError) Error() string {
	if e.InBatch {
		return fmt.Sprintf("task %q appears more than once in the batch", e.ID)
	}
	return fmt.Sprintf("task %q is already in flight", e.ID)
}

// TaskExecutionError wraps the failure of a handler, including recovered
// panics, timeouts and cancellations.
type TaskExecutionError struct {
	TaskID    string
	Operation string
	Pool      pool.Class
	Err       error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s (%s on %s pool): %v", e.TaskID, e.Operation, e.Pool, e.Err)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}
