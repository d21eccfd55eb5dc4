package benchmarks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/utkarsh5026/taskprof/dispatch"
	"github.com/utkarsh5026/taskprof/pool"
	"github.com/utkarsh5026/taskprof/profiler"
	"github.com/utkarsh5026/taskprof/registry"
)

// =============================================================================
// Benchmark Workload Generators
// =============================================================================

// cpuBoundWork simulates a CPU-intensive operation
func cpuBoundWork(iterations int) registry.TypedFunc[int, int] {
	return func(_ context.Context, task int, _ registry.ExecContext) (int, error) {
		result := 0
		for i := range iterations {
			result += i * task
		}
		return result, nil
	}
}

// ioBoundWork simulates an I/O operation with a delay
func ioBoundWork(delay time.Duration) registry.TypedFunc[int, int] {
	return func(ctx context.Context, task int, _ registry.ExecContext) (int, error) {
		select {
		case <-time.After(delay):
			return task * 2, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// mixedWork simulates a realistic workload with variable processing time
func mixedWork() registry.TypedFunc[int, int] {
	return func(_ context.Context, task int, _ registry.ExecContext) (int, error) {
		time.Sleep(time.Duration(task%4) * 250 * time.Microsecond)

		result := 0
		for i := range 1000 {
			result += i
		}
		return result + task, nil
	}
}

// errorProneWork fails every nth task
func errorProneWork(n int) registry.TypedFunc[int, int] {
	return func(_ context.Context, task int, _ registry.ExecContext) (int, error) {
		if n > 0 && task%n == 0 {
			return 0, fmt.Errorf("task %d failed", task)
		}
		return task, nil
	}
}

// =============================================================================
// Setup
// =============================================================================

// newBenchDispatcher returns a dispatcher with the benchmark workloads
// registered as "cpu", "io", "mixed" and "flaky".
func newBenchDispatcher(b *testing.B, opts ...dispatch.Option) *dispatch.Dispatcher {
	b.Helper()

	d, err := dispatch.New(profiler.New(), opts...)
	if err != nil {
		b.Fatalf("dispatch.New: %v", err)
	}
	b.Cleanup(func() { _ = d.Close() })

	workloads := map[string]registry.TypedFunc[int, int]{
		"cpu":   cpuBoundWork(10_000),
		"io":    ioBoundWork(time.Millisecond),
		"mixed": mixedWork(),
		"flaky": errorProneWork(10),
	}
	for name, fn := range workloads {
		if err := registry.Register(d.Registry(), name, fn); err != nil {
			b.Fatalf("register %s: %v", name, err)
		}
	}
	return d
}

// makeBatch builds n descriptors for operation on class with unique ids.
func makeBatch(prefix string, n int, operation string, class pool.Class) []dispatch.TaskDescriptor {
	batch := make([]dispatch.TaskDescriptor, n)
	for i := range batch {
		batch[i] = dispatch.TaskDescriptor{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Operation: operation,
			Payload:   i,
			PoolClass: class,
		}
	}
	return batch
}

// makeMixedBatch spreads n descriptors round-robin over every lane.
func makeMixedBatch(prefix string, n int) []dispatch.TaskDescriptor {
	ops := map[pool.Class]string{pool.CPU: "cpu", pool.IO: "io", pool.Throughput: "cpu", pool.Mixed: "mixed"}
	classes := pool.Classes()

	batch := make([]dispatch.TaskDescriptor, n)
	for i := range batch {
		c := classes[i%len(classes)]
		batch[i] = dispatch.TaskDescriptor{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Operation: ops[c],
			Payload:   i,
			PoolClass: c,
		}
	}
	return batch
}

func registryContext(c pool.Class) registry.ExecContext {
	return registry.ExecContext{PoolClass: c, OptimizationHint: c.Hint()}
}
