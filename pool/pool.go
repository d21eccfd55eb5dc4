package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// WorkerPool is the goroutine-backed Engine: a fixed set of long-lived
// workers consuming a FIFO queue of jobs.
type WorkerPool struct {
	class Class
	conf  *config

	jobs chan *submission
	quit chan struct{}
	wg   sync.WaitGroup

	// mu orders sends on jobs against Close, so every accepted submission
	// is either run or drained.
	mu     sync.RWMutex
	closed bool

	busy      atomic.Int64
	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

type submission struct {
	ctx  context.Context
	job  Job
	done chan outcome
}

type outcome struct {
	value  any
	worker WorkerInfo
	err    error
}

var _ Engine = (*WorkerPool)(nil)

// NewWorkerPool creates a pool for class c and starts its workers.
// Default configuration: workers = GOMAXPROCS, buffer = worker count.
func NewWorkerPool(c Class, opts ...Option) *WorkerPool {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.taskBuffer == 0 {
		cfg.taskBuffer = cfg.workerCount
	}

	wp := &WorkerPool{
		class: c,
		conf:  cfg,
		jobs:  make(chan *submission, cfg.taskBuffer),
		quit:  make(chan struct{}),
	}

	wp.wg.Add(cfg.workerCount)
	for i := range cfg.workerCount {
		go wp.worker(i)
	}
	return wp
}

// Class returns the lane this pool serves.
func (wp *WorkerPool) Class() Class {
	return wp.class
}

// Execute queues job and waits for its outcome.
func (wp *WorkerPool) Execute(ctx context.Context, job Job) (any, WorkerInfo, error) {
	none := WorkerInfo{Pool: wp.class, CoreID: -1}
	if job == nil {
		return nil, none, ErrNilJob
	}
	if err := ctx.Err(); err != nil {
		return nil, none, err
	}

	s := &submission{ctx: ctx, job: job, done: make(chan outcome, 1)}
	if err := wp.enqueue(ctx, s); err != nil {
		return nil, none, err
	}

	select {
	case o := <-s.done:
		return o.value, o.worker, o.err
	case <-ctx.Done():
		return nil, none, ctx.Err()
	}
}

func (wp *WorkerPool) enqueue(ctx context.Context, s *submission) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return ErrPoolClosed
	}

	wp.queued.Add(1)
	select {
	case wp.jobs <- s:
		return nil
	case <-ctx.Done():
		wp.queued.Add(-1)
		return ctx.Err()
	}
}

// Stats returns a point-in-time view of the pool.
func (wp *WorkerPool) Stats() Stats {
	wp.mu.RLock()
	closed := wp.closed
	wp.mu.RUnlock()

	return Stats{
		Class:        wp.class,
		Workers:      wp.conf.workerCount,
		Busy:         int(wp.busy.Load()),
		Queued:       int(max(wp.queued.Load(), 0)),
		Completed:    wp.completed.Load(),
		Failed:       wp.failed.Load(),
		MemoryBudget: wp.conf.memoryBudget,
		Closed:       closed,
	}
}

// Close stops the workers after their current job and fails queued jobs
// with ErrPoolClosed. It blocks until every worker has exited and is safe to
// call more than once.
func (wp *WorkerPool) Close() error {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return nil
	}
	wp.closed = true
	close(wp.quit)
	wp.mu.Unlock()

	wp.wg.Wait()
	return nil
}
