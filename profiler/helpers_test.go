package profiler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/utkarsh5026/taskprof/pool"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixedProvider struct {
	mu    sync.Mutex
	usage ResourceUtilization
	err   error
}

func (f *fixedProvider) Sample(context.Context) (ResourceUtilization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage, f.err
}

// runTrace opens a trace, advances the clock by d and closes it.
func runTrace(t *testing.T, p *Profiler, clock *fakeClock, id, op string, class pool.Class, d time.Duration, success bool) Trace {
	t.Helper()
	if _, err := p.StartTrace(id, op, class, nil); err != nil {
		t.Fatalf("StartTrace(%s): %v", id, err)
	}
	clock.Advance(d)
	tr, ok := p.EndTrace(id, success, 0)
	if !ok {
		t.Fatalf("EndTrace(%s) reported unknown id", id)
	}
	return tr
}

func mustLatest(t *testing.T, p *Profiler) MetricsSnapshot {
	t.Helper()
	snap, ok := p.Latest()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	return snap
}
