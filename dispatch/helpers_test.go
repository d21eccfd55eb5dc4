package dispatch

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/utkarsh5026/taskprof/profiler"
	"github.com/utkarsh5026/taskprof/registry"
)

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *profiler.Profiler) {
	t.Helper()
	prof := profiler.New()
	d, err := New(prof, append([]Option{WithParallelism(4)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, prof
}

func mustRegister(t *testing.T, d *Dispatcher, name string, h registry.Handler) {
	t.Helper()
	if err := d.RegisterOperation(name, h); err != nil {
		t.Fatalf("RegisterOperation(%s): %v", name, err)
	}
}

func echo(_ context.Context, payload any, _ registry.ExecContext) (any, error) {
	return payload, nil
}

// sleepy sleeps for the duration given as payload, honoring ctx.
func sleepy(ctx context.Context, payload any, _ registry.ExecContext) (any, error) {
	d, _ := payload.(time.Duration)
	select {
	case <-time.After(d):
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// blockUntilCancelled never finishes on its own.
func blockUntilCancelled(ctx context.Context, _ any, _ registry.ExecContext) (any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func waitForActive(t *testing.T, d *Dispatcher, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if slices.Contains(d.ActiveTasks(), id) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task %s never became active", id)
}
