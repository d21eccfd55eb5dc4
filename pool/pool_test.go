package pool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Execute_BasicFunctionality(t *testing.T) {
	wp := NewWorkerPool(CPU, WithWorkerCount(4))
	defer wp.Close()

	v, w, err := wp.Execute(context.Background(), func(ctx context.Context, w WorkerInfo) (any, error) {
		return 21 * 2, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(int) != 42 {
		t.Errorf("expected 42, got %v", v)
	}
	if w.Pool != CPU {
		t.Errorf("expected pool cpu, got %s", w.Pool)
	}
	if !strings.HasPrefix(w.WorkerID, "cpu-worker-") {
		t.Errorf("unexpected worker id %q", w.WorkerID)
	}
	if w.Pinned {
		t.Error("worker should not be pinned without WithCPUAffinity")
	}
}

func TestWorkerPool_Execute_ErrorHandling(t *testing.T) {
	wp := NewWorkerPool(IO, WithWorkerCount(2))
	defer wp.Close()

	boom := errors.New("boom")
	_, _, err := wp.Execute(context.Background(), func(ctx context.Context, w WorkerInfo) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	stats := wp.Stats()
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed job, got %d", stats.Failed)
	}
}

func TestWorkerPool_Execute_PanicRecovery(t *testing.T) {
	wp := NewWorkerPool(Mixed, WithWorkerCount(1))
	defer wp.Close()

	_, _, err := wp.Execute(context.Background(), func(ctx context.Context, w WorkerInfo) (any, error) {
		panic("kaboom")
	})

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %T (%v)", err, err)
	}
	if pe.Value != "kaboom" {
		t.Errorf("expected panic value kaboom, got %v", pe.Value)
	}
	if !strings.Contains(pe.StackTrace(), "stack trace:") {
		t.Errorf("stack trace missing from %q", pe.StackTrace())
	}

	// The worker must survive the panic.
	v, _, err := wp.Execute(context.Background(), func(ctx context.Context, w WorkerInfo) (any, error) {
		return "alive", nil
	})
	if err != nil || v != "alive" {
		t.Fatalf("worker did not survive panic: %v, %v", v, err)
	}
}

func TestWorkerPool_Execute_NilJob(t *testing.T) {
	wp := NewWorkerPool(CPU, WithWorkerCount(1))
	defer wp.Close()

	if _, _, err := wp.Execute(context.Background(), nil); !errors.Is(err, ErrNilJob) {
		t.Fatalf("expected ErrNilJob, got %v", err)
	}
}

func TestWorkerPool_Execute_BoundedConcurrency(t *testing.T) {
	const workers = 3
	wp := NewWorkerPool(CPU, WithWorkerCount(workers), WithTaskBuffer(32))
	defer wp.Close()

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := wp.Execute(context.Background(), func(ctx context.Context, w WorkerInfo) (any, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				current.Add(-1)
				return nil, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() > workers {
		t.Errorf("expected at most %d concurrent jobs, observed %d", workers, peak.Load())
	}
	if got := wp.Stats().Completed; got != 12 {
		t.Errorf("expected 12 completed jobs, got %d", got)
	}
}

func TestWorkerPool_Execute_ContextCancelledWhileRunning(t *testing.T) {
	wp := NewWorkerPool(IO, WithWorkerCount(1))
	defer wp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	_, _, err := wp.Execute(ctx, func(ctx context.Context, w WorkerInfo) (any, error) {
		<-release
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWorkerPool_Execute_AlreadyCancelled(t *testing.T) {
	wp := NewWorkerPool(IO, WithWorkerCount(1))
	defer wp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	_, _, err := wp.Execute(ctx, func(ctx context.Context, w WorkerInfo) (any, error) {
		ran.Store(true)
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran.Load() {
		t.Error("job should not run for an already cancelled context")
	}
}

func TestWorkerPool_Stats_Utilization(t *testing.T) {
	wp := NewWorkerPool(Throughput, WithWorkerCount(2), WithMemoryBudget(1<<20))
	defer wp.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = wp.Execute(context.Background(), func(ctx context.Context, w WorkerInfo) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()

	<-started
	stats := wp.Stats()
	if stats.Busy != 1 {
		t.Errorf("expected 1 busy worker, got %d", stats.Busy)
	}
	if u := stats.Utilization(); u != 0.5 {
		t.Errorf("expected utilization 0.5, got %v", u)
	}
	if stats.MemoryBudget != 1<<20 {
		t.Errorf("expected memory budget %d, got %d", 1<<20, stats.MemoryBudget)
	}

	close(release)
	<-done
}

func TestStats_Utilization_ZeroWorkers(t *testing.T) {
	if u := (Stats{}).Utilization(); u != 0 {
		t.Errorf("expected 0, got %v", u)
	}
}

func TestClass_Hint(t *testing.T) {
	tests := []struct {
		class Class
		hint  string
		valid bool
	}{
		{CPU, "simd", true},
		{IO, "async", true},
		{Throughput, "memory", true},
		{Mixed, "balanced", true},
		{Class("gpu"), "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := tt.class.Hint(); got != tt.hint {
				t.Errorf("Hint() = %q, want %q", got, tt.hint)
			}
			if got := tt.class.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}
