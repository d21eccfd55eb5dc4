package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/utkarsh5026/taskprof/pool"
	"github.com/utkarsh5026/taskprof/registry"
)

func TestExecuteBatch_PreservesInputOrder(t *testing.T) {
	d, _ := newTestDispatcher(t)
	mustRegister(t, d, "sleep", sleepy)

	var mu sync.Mutex
	var finished []string
	mustRegister(t, d, "track", func(ctx context.Context, payload any, ec registry.ExecContext) (any, error) {
		v, err := sleepy(ctx, payload, ec)
		mu.Lock()
		finished = append(finished, fmt.Sprint(payload))
		mu.Unlock()
		return v, err
	})

	batch := []TaskDescriptor{
		{ID: "A", Operation: "track", Payload: 5 * time.Millisecond, PoolClass: pool.CPU},
		{ID: "B", Operation: "track", Payload: 80 * time.Millisecond, PoolClass: pool.IO},
		{ID: "C", Operation: "track", Payload: 1 * time.Millisecond, PoolClass: pool.CPU},
	}

	results, err := d.ExecuteBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"A", "B", "C"} {
		if results[i].ID != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].ID, want)
		}
		if !results[i].Success {
			t.Errorf("%s failed: %v", want, results[i].Error)
		}
	}
	if results[1].ThreadInfo.PoolClass != pool.IO {
		t.Errorf("B should run on the io lane, got %s", results[1].ThreadInfo.PoolClass)
	}

	mu.Lock()
	defer mu.Unlock()
	if finished[len(finished)-1] != (80 * time.Millisecond).String() {
		t.Errorf("B was expected to finish last, order was %v", finished)
	}
}

func TestExecuteBatch_LengthAndIDs(t *testing.T) {
	d, _ := newTestDispatcher(t)
	mustRegister(t, d, "sleep", sleepy)

	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 2, 10, 64} {
		batch := make([]TaskDescriptor, n)
		for i := range batch {
			batch[i] = TaskDescriptor{
				ID:        fmt.Sprintf("n%d-%d", n, i),
				Operation: "sleep",
				Payload:   time.Duration(rng.Intn(3)) * time.Millisecond,
				PoolClass: pool.Classes()[rng.Intn(4)],
			}
		}

		results, err := d.ExecuteBatch(context.Background(), batch)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(results) != n {
			t.Fatalf("n=%d: got %d results", n, len(results))
		}
		for i := range batch {
			if results[i].ID != batch[i].ID {
				t.Fatalf("n=%d: results[%d].ID = %s, want %s", n, i, results[i].ID, batch[i].ID)
			}
		}
	}
}

func TestExecuteBatch_FailureIsolation(t *testing.T) {
	d, prof := newTestDispatcher(t)
	mustRegister(t, d, "echo", echo)
	mustRegister(t, d, "fail", func(context.Context, any, registry.ExecContext) (any, error) {
		return nil, errors.New("nope")
	})

	batch := []TaskDescriptor{
		{ID: "ok-1", Operation: "echo", Payload: 1, PoolClass: pool.CPU},
		{ID: "bad", Operation: "fail", PoolClass: pool.CPU},
		{ID: "unknown-op", Operation: "missing", PoolClass: pool.IO},
		{ID: "unknown-pool", Operation: "echo", PoolClass: "gpu"},
		{ID: "ok-2", Operation: "echo", Payload: 2, PoolClass: pool.Mixed},
	}

	results, err := d.ExecuteBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("task failures must not fail the batch: %v", err)
	}

	if !results[0].Success || results[0].Result != 1 || !results[4].Success || results[4].Result != 2 {
		t.Errorf("healthy tasks should succeed: %+v / %+v", results[0], results[4])
	}

	var te *TaskExecutionError
	if results[1].Success || !errors.As(results[1].Error, &te) {
		t.Errorf("expected a TaskExecutionError, got %+v", results[1])
	}
	var onr *OperationNotRegisteredError
	if results[2].Success || !errors.As(results[2].Error, &onr) {
		t.Errorf("expected OperationNotRegisteredError, got %+v", results[2])
	}
	var pnf *PoolNotFoundError
	if results[3].Success || !errors.As(results[3].Error, &pnf) {
		t.Errorf("expected PoolNotFoundError, got %+v", results[3])
	}

	// Only resolved tasks are traced.
	if got := len(prof.CompletedTraces()); got != 3 {
		t.Errorf("expected 3 traces, got %d", got)
	}
}

func TestExecuteBatch_DuplicateIDs(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var calls atomic.Int64
	mustRegister(t, d, "count", func(context.Context, any, registry.ExecContext) (any, error) {
		calls.Add(1)
		return nil, nil
	})

	_, err := d.ExecuteBatch(context.Background(), []TaskDescriptor{
		{ID: "x", Operation: "count", PoolClass: pool.CPU},
		{ID: "y", Operation: "count", PoolClass: pool.CPU},
		{ID: "x", Operation: "count", PoolClass: pool.IO},
	})

	var dup *DuplicateTaskError
	if !errors.As(err, &dup) || dup.ID != "x" {
		t.Fatalf("expected DuplicateTaskError for x, got %v", err)
	}
	if !dup.InBatch {
		t.Error("a repeated batch id should be reported as a batch duplicate")
	}
	if want := `task "x" appears more than once in the batch`; err.Error() != want {
		t.Errorf("unexpected message %q", err.Error())
	}
	if calls.Load() != 0 {
		t.Errorf("nothing should run, got %d calls", calls.Load())
	}
}

func TestExecuteBatch_Empty(t *testing.T) {
	d, _ := newTestDispatcher(t)

	results, err := d.ExecuteBatch(context.Background(), nil)
	if err != nil || len(results) != 0 {
		t.Errorf("expected empty results, got %v, %v", results, err)
	}
}

func TestExecuteBatch_RunsConcurrently(t *testing.T) {
	d, _ := newTestDispatcher(t, WithPoolOptions(pool.IO, pool.WithWorkerCount(8)))
	mustRegister(t, d, "sleep", sleepy)

	batch := make([]TaskDescriptor, 8)
	for i := range batch {
		batch[i] = TaskDescriptor{ID: fmt.Sprint(i), Operation: "sleep", Payload: 50 * time.Millisecond, PoolClass: pool.IO}
	}

	start := time.Now()
	if _, err := d.ExecuteBatch(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("8 tasks on 8 workers should overlap, took %v", elapsed)
	}
}

func TestExecuteBatch_Closed(t *testing.T) {
	d, _ := newTestDispatcher(t)
	mustRegister(t, d, "echo", echo)
	_ = d.Close()

	_, err := d.ExecuteBatch(context.Background(), []TaskDescriptor{{ID: "a", Operation: "echo", PoolClass: pool.CPU}})
	if !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("expected ErrDispatcherClosed, got %v", err)
	}
}

func TestExecuteBatch_FeedsProfiler(t *testing.T) {
	d, prof := newTestDispatcher(t)
	mustRegister(t, d, "sleep", sleepy)

	batch := make([]TaskDescriptor, 12)
	for i := range batch {
		batch[i] = TaskDescriptor{ID: fmt.Sprint(i), Operation: "sleep", Payload: time.Millisecond, PoolClass: pool.Classes()[i%4]}
	}
	if _, err := d.ExecuteBatch(context.Background(), batch); err != nil {
		t.Fatal(err)
	}

	if got := len(prof.History()); got != 12 {
		t.Errorf("expected one snapshot per task, got %d", got)
	}
	root := prof.GenerateFlameGraph()
	if len(root.Children) != 1 || len(root.Children[0].Children) != 4 {
		t.Errorf("expected sleep split across 4 lanes, got %+v", root)
	}
}

func TestPartition(t *testing.T) {
	tasks := []TaskDescriptor{
		{ID: "1", PoolClass: pool.IO},
		{ID: "2", PoolClass: pool.CPU},
		{ID: "3", PoolClass: pool.IO},
		{ID: "4", PoolClass: pool.CPU},
	}

	classes, parts := partition(tasks)
	if len(classes) != 2 || classes[0] != pool.IO || classes[1] != pool.CPU {
		t.Errorf("unexpected class order %v", classes)
	}
	if ids := []string{parts[pool.IO][0].ID, parts[pool.IO][1].ID}; ids[0] != "1" || ids[1] != "3" {
		t.Errorf("io partition out of order: %v", ids)
	}
	if ids := []string{parts[pool.CPU][0].ID, parts[pool.CPU][1].ID}; ids[0] != "2" || ids[1] != "4" {
		t.Errorf("cpu partition out of order: %v", ids)
	}
}
