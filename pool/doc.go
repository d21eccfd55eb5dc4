// Package pool provides the execution lanes a dispatcher routes work into.
//
// A lane is identified by its Class (cpu, io, throughput, mixed) and is backed
// by an Engine. The Engine contract is small: accept a Job,
// eventually return its value or an error. WorkerPool is the engine shipped
// with this module; any other engine (an external reactor, a remote executor)
// can be plugged in by implementing Engine.
//
// # Basic Usage
//
//	wp := pool.NewWorkerPool(pool.CPU, pool.WithWorkerCount(4))
//	defer wp.Close()
//
//	v, worker, err := wp.Execute(ctx, func(ctx context.Context, w pool.WorkerInfo) (any, error) {
//	    return crunch(ctx), nil
//	})
//
// # Sizing
//
// DefaultSizes derives the per-class worker counts from the available
// parallelism n:
//
//   - cpu: n workers
//   - io: max(4, n/2) workers, for concurrency over raw parallelism
//   - throughput: max(1, n-1) workers with a larger memory budget per worker
//   - mixed: max(1, 0.75*n) workers
//
// NewDefaultEngines builds one WorkerPool per class using that policy.
//
// # Configuration Options
//
//   - WithWorkerCount(n): number of long-lived workers (default: GOMAXPROCS)
//   - WithTaskBuffer(n): queue capacity in front of the workers (default: worker count)
//   - WithRetryPolicy(maxAttempts, initialDelay, maxDelay): retry failed jobs with exponential backoff
//   - WithRetryJitter(factor): randomize each retry delay by up to ±factor
//   - WithDecorrelatedRetry(): pick each delay between initialDelay and 3x the previous one
//   - WithRateLimit(jobsPerSecond, burst): token bucket applied before each job starts
//   - WithCPUAffinity(): lock each worker to an OS thread pinned to one core
//   - WithMemoryBudget(bytes): advisory per-worker memory budget reported in Stats
//
// # Error Handling
//
// A panicking job never takes its worker down: the panic is converted into a
// *PanicError carrying the stack of the failing goroutine. Jobs queued on a
// pool that is closed complete with ErrPoolClosed.
package pool
