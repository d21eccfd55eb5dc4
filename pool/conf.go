package pool

import (
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/utkarsh5026/taskprof/internal/backoff"
)

// Option is a functional option for configuring a WorkerPool.
type Option func(*config)

type config struct {
	workerCount  int
	taskBuffer   int
	maxAttempts  int
	backoff      backoff.Policy
	rateLimiter  *rate.Limiter
	pinWorkers   bool
	memoryBudget int64
}

func defaultConfig() *config {
	return &config{
		workerCount: runtime.GOMAXPROCS(0),
		maxAttempts: 1,
	}
}

// WithWorkerCount sets the number of long-lived workers.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithWorkerCount(count int) Option {
	return func(cfg *config) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithTaskBuffer sets the capacity of the queue in front of the workers.
// If not specified, defaults to the number of workers.
func WithTaskBuffer(size int) Option {
	return func(cfg *config) {
		if size >= 0 {
			cfg.taskBuffer = size
		}
	}
}

// WithRetryPolicy retries a failed job up to maxAttempts times in total.
// Delays start at initialDelay and double on each retry, capped at maxDelay
// when maxDelay is positive. Panics are never retried.
func WithRetryPolicy(maxAttempts int, initialDelay, maxDelay time.Duration) Option {
	return func(cfg *config) {
		if maxAttempts > 0 {
			cfg.maxAttempts = maxAttempts
		}
		if initialDelay > 0 {
			cfg.backoff.Initial = initialDelay
		}
		if maxDelay > 0 {
			cfg.backoff.Max = maxDelay
		}
	}
}

// WithRetryJitter randomizes retry delays by up to ±factor of the
// exponential delay, so jobs failing together spread their retries.
// factor is clamped to [0, 1].
func WithRetryJitter(factor float64) Option {
	return func(cfg *config) {
		cfg.backoff.Kind = backoff.Jittered
		cfg.backoff.Jitter = factor
	}
}

// WithDecorrelatedRetry picks each retry delay at random between the initial
// delay and three times the previous one, capped at the retry policy's max.
func WithDecorrelatedRetry() Option {
	return func(cfg *config) {
		cfg.backoff.Kind = backoff.Decorrelated
	}
}

// WithRateLimit applies a token bucket before each job starts.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 jobs/sec with burst of 5
func WithRateLimit(jobsPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if jobsPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(jobsPerSecond), burst)
		}
	}
}

// WithCPUAffinity locks every worker to its own OS thread and pins that
// thread to a core (worker i to core i mod NumCPU). Pinning is best effort;
// platforms without affinity support only lock the thread.
func WithCPUAffinity() Option {
	return func(cfg *config) {
		cfg.pinWorkers = true
	}
}

// WithMemoryBudget records an advisory per-worker memory budget in bytes.
// Goroutine stacks grow on demand, so the budget is reported, not enforced.
func WithMemoryBudget(bytes int64) Option {
	return func(cfg *config) {
		if bytes > 0 {
			cfg.memoryBudget = bytes
		}
	}
}
