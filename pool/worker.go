package pool

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/utkarsh5026/taskprof/internal/cpu"
)

// worker is the event loop of one long-lived worker. It exits once the pool
// is closed, failing whatever is still queued with ErrPoolClosed.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	info := WorkerInfo{Pool: wp.class, WorkerID: workerName(wp.class, id), CoreID: -1}
	if wp.conf.pinWorkers {
		core, pinned, release := cpu.Pin(id)
		defer release()
		info.CoreID, info.Pinned = core, pinned
	}

	for {
		// Prefer quit over queued work once the pool is closing.
		select {
		case <-wp.quit:
			wp.drain(info)
			return
		default:
		}

		select {
		case <-wp.quit:
			wp.drain(info)
			return
		case s := <-wp.jobs:
			wp.run(s, info)
		}
	}
}

// drain fails every queued submission without running it.
func (wp *WorkerPool) drain(info WorkerInfo) {
	for {
		select {
		case s := <-wp.jobs:
			wp.queued.Add(-1)
			s.done <- outcome{worker: info, err: ErrPoolClosed}
		default:
			return
		}
	}
}

// run executes one submission. Submissions whose caller already gave up are
// skipped so an abandoned queue does not keep workers busy.
func (wp *WorkerPool) run(s *submission, info WorkerInfo) {
	wp.queued.Add(-1)

	if err := s.ctx.Err(); err != nil {
		s.done <- outcome{worker: info, err: err}
		return
	}

	wp.busy.Add(1)
	defer wp.busy.Add(-1)

	if wp.conf.rateLimiter != nil {
		if err := wp.conf.rateLimiter.Wait(s.ctx); err != nil {
			// Rate limiter's error doesn't wrap context errors, so check context explicitly
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			wp.failed.Add(1)
			s.done <- outcome{worker: info, err: err}
			return
		}
	}

	value, err := wp.processWithRetry(s.ctx, s.job, info)
	if err != nil {
		wp.failed.Add(1)
	} else {
		wp.completed.Add(1)
	}
	s.done <- outcome{value: value, worker: info, err: err}
}

// processWithRetry runs the job up to maxAttempts times, sleeping for the
// configured backoff policy's delay between attempts. Panics and context errors end the
// loop immediately.
func (wp *WorkerPool) processWithRetry(ctx context.Context, job Job, info WorkerInfo) (any, error) {
	var value any
	var err error
	var delay time.Duration
	maxAttempts := max(wp.conf.maxAttempts, 1)

	for attempt := range maxAttempts {
		if attempt > 0 {
			delay = wp.conf.backoff.Delay(attempt-1, delay)
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return value, ctx.Err()
				}
			}
		}

		value, err = processWithRecovery(ctx, job, info)
		if err == nil {
			return value, nil
		}

		var pe *PanicError
		if errors.As(err, &pe) || ctx.Err() != nil {
			return value, err
		}
	}

	return value, err
}

// processWithRecovery executes a job with panic recovery.
// If a panic occurs, it's converted to an error to prevent crashing the worker.
func processWithRecovery(ctx context.Context, job Job, info WorkerInfo) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			value, err = nil, &PanicError{Value: r, Stack: buf[:n]}
		}
	}()

	return job(ctx, info)
}
