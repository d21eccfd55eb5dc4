package dispatch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime/metrics"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/taskprof/pool"
	"github.com/utkarsh5026/taskprof/profiler"
	"github.com/utkarsh5026/taskprof/registry"
)

// Dispatcher routes tasks to lanes and traces their execution.
// It is safe for concurrent use.
type Dispatcher struct {
	logger   *zap.Logger
	prof     *profiler.Profiler
	registry *registry.Registry
	engines  map[pool.Class]pool.Engine

	mu     sync.Mutex
	active map[string]context.CancelCauseFunc
	closed bool
}

// New creates a Dispatcher that reports to prof. A nil prof gets a private
// profiler sharing the dispatcher's logger.
//
// Every built-in lane without an engine from WithEngine gets a pool.WorkerPool
// sized by pool.DefaultSizes.
func New(prof *profiler.Profiler, opts ...Option) (*Dispatcher, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	engines := make(map[pool.Class]pool.Engine)
	for _, e := range cfg.engines {
		if e == nil || e.Class() == "" {
			closeAll(engines)
			return nil, fmt.Errorf("%w: nil engine or empty class", ErrInvalidEngine)
		}
		if _, dup := engines[e.Class()]; dup {
			closeAll(engines)
			return nil, fmt.Errorf("%w: two engines for class %q", ErrInvalidEngine, e.Class())
		}
		engines[e.Class()] = e
	}
	for _, c := range pool.Classes() {
		if _, ok := engines[c]; !ok {
			engines[c] = pool.NewSizedPool(c, cfg.parallelism, cfg.poolOpts[c]...)
		}
	}

	if prof == nil {
		prof = profiler.New(profiler.WithLogger(cfg.logger))
	}
	reg := cfg.registry
	if reg == nil {
		reg = registry.New()
	}

	return &Dispatcher{
		logger:   cfg.logger.Named("dispatch"),
		prof:     prof,
		registry: reg,
		engines:  engines,
		active:   make(map[string]context.CancelCauseFunc),
	}, nil
}

// RegisterOperation binds name to handler, replacing any earlier binding.
func (d *Dispatcher) RegisterOperation(name string, handler registry.Handler) error {
	return d.registry.Register(name, handler)
}

// ExecuteTask runs a single task and waits for it to finish.
//
// Resolution problems are returned as errors and leave no trace behind:
//   - *PoolNotFoundError when task.PoolClass names no lane
//   - *OperationNotRegisteredError when task.Operation is unknown
//   - *DuplicateTaskError when task.ID is already in flight
//   - ErrDispatcherClosed after Close
//
// Once resolved, the returned error is nil and the outcome is in the result:
// a failing, panicking, timed out or cancelled handler yields
// TaskResult{Success: false} whose Error is a *TaskExecutionError.
//
// Example:
//
//	res, err := d.ExecuteTask(ctx, dispatch.TaskDescriptor{
//	    ID: "t1", Operation: "resize", Payload: img, PoolClass: pool.Throughput,
//	})
//	if err != nil {
//	    return err // nothing ran
//	}
//	if !res.Success {
//	    log.Printf("resize failed: %v", res.Error)
//	}
func (d *Dispatcher) ExecuteTask(ctx context.Context, task TaskDescriptor) (TaskResult, error) {
	engine, handler, err := d.resolve(task)
	if err != nil {
		return failedResult(task, err), err
	}

	taskCtx, cancel, err := d.admit(ctx, task)
	if err != nil {
		return failedResult(task, err), err
	}
	defer d.release(task.ID, cancel)

	if _, err := d.prof.StartTrace(task.ID, task.Operation, task.PoolClass, traceMetadata(task)); err != nil {
		err = fmt.Errorf("%w: %w", &DuplicateTaskError{ID: task.ID}, err)
		return failedResult(task, err), err
	}

	return d.run(taskCtx, task, engine, handler), nil
}

func (d *Dispatcher) resolve(task TaskDescriptor) (pool.Engine, registry.Handler, error) {
	engine, ok := d.engines[task.PoolClass]
	if !ok {
		return nil, nil, &PoolNotFoundError{Class: task.PoolClass}
	}
	handler, ok := d.registry.Lookup(task.Operation)
	if !ok {
		return nil, nil, &OperationNotRegisteredError{Operation: task.Operation}
	}
	return engine, handler, nil
}

// admit claims task.ID in the active set and derives the task's context.
func (d *Dispatcher) admit(ctx context.Context, task TaskDescriptor) (context.Context, context.CancelCauseFunc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, nil, ErrDispatcherClosed
	}
	if _, ok := d.active[task.ID]; ok {
		return nil, nil, &DuplicateTaskError{ID: task.ID}
	}

	taskCtx, cancel := context.WithCancelCause(ctx)
	if task.TimeoutMs > 0 {
		var stop context.CancelFunc
		taskCtx, stop = context.WithTimeoutCause(taskCtx, time.Duration(task.TimeoutMs)*time.Millisecond, ErrTaskTimeout)
		cancelCause := cancel
		cancel = func(cause error) {
			cancelCause(cause)
			stop()
		}
	}

	d.active[task.ID] = cancel
	return taskCtx, cancel, nil
}

func (d *Dispatcher) release(id string, cancel context.CancelCauseFunc) {
	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()
	cancel(nil)
}

func (d *Dispatcher) run(ctx context.Context, task TaskDescriptor, engine pool.Engine, handler registry.Handler) TaskResult {
	fields := []zap.Field{
		zap.String("task_id", task.ID),
		zap.String("operation", task.Operation),
		zap.String("pool", string(task.PoolClass)),
	}
	d.logger.Debug("dispatching task", fields...)

	ec := registry.ExecContext{PoolClass: task.PoolClass, OptimizationHint: task.PoolClass.Hint()}
	job := func(ctx context.Context, _ pool.WorkerInfo) (any, error) {
		return handler(ctx, task.Payload, ec)
	}

	allocBefore := heapAllocated()
	start := time.Now()
	value, worker, err := engine.Execute(ctx, job)
	elapsed := time.Since(start)
	memoryUsed := int64(heapAllocated() - allocBefore)

	result := TaskResult{
		ID:              task.ID,
		ExecutionTimeMs: float64(elapsed) / float64(time.Millisecond),
		ThreadInfo:      threadInfoOf(task.PoolClass, worker),
	}
	fields = append(fields, zap.Duration("elapsed", elapsed))

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			err = context.Cause(ctx)
		}
		taskErr := &TaskExecutionError{TaskID: task.ID, Operation: task.Operation, Pool: task.PoolClass, Err: err}
		d.prof.FailTrace(task.ID, taskErr, memoryUsed)
		d.logger.Warn("task failed", append(fields, zap.Error(err))...)

		result.Error = taskErr
		return result
	}

	d.prof.EndTrace(task.ID, true, memoryUsed)
	d.logger.Debug("task completed", fields...)

	result.Success = true
	result.Result = value
	return result
}

func traceMetadata(task TaskDescriptor) map[string]any {
	meta := map[string]any{"priority": task.Priority}
	if task.TimeoutMs > 0 {
		meta["timeout_ms"] = task.TimeoutMs
	}
	return meta
}

// heapAllocated reads the cumulative bytes allocated on the heap by the whole
// process. Deltas across a task include allocations of concurrent tasks.
func heapAllocated() uint64 {
	sample := []metrics.Sample{{Name: "/gc/heap/allocs:bytes"}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}

// ActiveTasks returns the ids of the tasks in flight, sorted.
func (d *Dispatcher) ActiveTasks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.active))
}

// Cancel stops the in-flight task id. The task finishes as failed with
// ErrTaskCancelled as its cause. It reports whether id was in flight.
//
// A handler that ignores its context keeps its worker busy until it returns;
// the caller of ExecuteTask is released immediately.
func (d *Dispatcher) Cancel(id string) bool {
	d.mu.Lock()
	cancel, ok := d.active[id]
	d.mu.Unlock()

	if ok {
		cancel(ErrTaskCancelled)
	}
	return ok
}

// Profiler returns the profiler the dispatcher reports to.
func (d *Dispatcher) Profiler() *profiler.Profiler {
	return d.prof
}

// Registry returns the operation registry, for typed registration through
// registry.Register.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Operations returns the registered operation names, sorted.
func (d *Dispatcher) Operations() []string {
	return d.registry.Names()
}

// Pools returns the stats of every lane.
func (d *Dispatcher) Pools() map[pool.Class]pool.Stats {
	out := make(map[pool.Class]pool.Stats, len(d.engines))
	for c, e := range d.engines {
		out[c] = e.Stats()
	}
	return out
}

// PoolUtilization returns the busy share of every lane's workers.
func (d *Dispatcher) PoolUtilization() map[pool.Class]float64 {
	out := make(map[pool.Class]float64, len(d.engines))
	for c, e := range d.engines {
		out[c] = e.Stats().Utilization()
	}
	return out
}

// Close rejects new tasks, cancels the ones in flight and closes every lane.
// It is safe to call more than once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, cancel := range d.active {
		cancel(ErrDispatcherClosed)
	}
	d.mu.Unlock()

	return closeAll(d.engines)
}

func closeAll(engines map[pool.Class]pool.Engine) error {
	var errs []error
	for _, c := range slices.Sorted(maps.Keys(engines)) {
		if err := engines[c].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pool: %w", c, err))
		}
	}
	return errors.Join(errs...)
}
