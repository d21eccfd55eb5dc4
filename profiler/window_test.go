package profiler

import (
	"slices"
	"testing"
	"time"

	"github.com/utkarsh5026/taskprof/pool"
)

func TestWindow_AddAndPrune(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := newWindow(10 * time.Second)

	add := func(offset time.Duration, d time.Duration, op string, class pool.Class, status TraceStatus) {
		w.add(Trace{StartTime: base.Add(offset), Duration: d, Operation: op, PoolClass: class, Status: status})
	}

	// Completion order differs from start order: "slow" started first.
	add(2*time.Second, 30*time.Millisecond, "fetch", pool.IO, StatusCompleted)
	add(4*time.Second, 10*time.Millisecond, "hash", pool.CPU, StatusFailed)
	add(0, 50*time.Millisecond, "slow", pool.IO, StatusCompleted)
	add(6*time.Second, 20*time.Millisecond, "fetch", pool.IO, StatusCompleted)

	ws := w.stats()
	if ws.count != 4 || ws.failed != 1 {
		t.Fatalf("expected 4 entries with 1 failure, got %d/%d", ws.count, ws.failed)
	}
	if ws.latency.P50 != 20*time.Millisecond || ws.latency.P99 != 50*time.Millisecond {
		t.Errorf("unexpected latency %+v", ws.latency)
	}
	io := ws.lanes[pool.IO]
	if io.count != 3 || io.total != 100*time.Millisecond {
		t.Errorf("unexpected io lane %+v", io)
	}
	if !slices.Equal(io.operations, []string{"fetch", "slow"}) {
		t.Errorf("unexpected io operations %v", io.operations)
	}

	// cutoff at 3s drops the entries started at 0s and 2s
	w.prune(base.Add(13 * time.Second))
	ws = w.stats()
	if ws.count != 2 || w.len() != 2 {
		t.Fatalf("expected 2 entries after prune, got %d", ws.count)
	}
	if ws.latency.P99 != 20*time.Millisecond {
		t.Errorf("pruned durations should leave the percentiles, got %+v", ws.latency)
	}
	io = ws.lanes[pool.IO]
	if io.count != 1 || !slices.Equal(io.operations, []string{"fetch"}) {
		t.Errorf("unexpected io lane after prune %+v", io)
	}

	w.prune(base.Add(time.Minute))
	ws = w.stats()
	if ws.count != 0 || ws.failed != 0 || len(ws.lanes) != 0 || ws.latency != (Latency{}) {
		t.Errorf("expected an empty window, got %+v", ws)
	}
}

func TestWindow_MatchesFullScan(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := newWindow(5 * time.Second)

	var all []Trace
	for i := range 500 {
		tr := Trace{
			StartTime: base.Add(time.Duration(i*37%997) * 10 * time.Millisecond),
			Duration:  time.Duration(i%13+1) * time.Millisecond,
			Operation: "op",
			PoolClass: pool.Classes()[i%4],
			Status:    StatusCompleted,
		}
		if i%7 == 0 {
			tr.Status = StatusFailed
		}
		all = append(all, tr)
		w.add(tr)
	}

	for _, at := range []time.Duration{5 * time.Second, 7 * time.Second, 9 * time.Second, 12 * time.Second} {
		now := base.Add(at)
		w.prune(now)
		ws := w.stats()

		cutoff := now.Add(-5 * time.Second)
		var durations []time.Duration
		var failed int
		for _, tr := range all {
			if tr.StartTime.Before(cutoff) {
				continue
			}
			durations = append(durations, tr.Duration)
			if tr.Status == StatusFailed {
				failed++
			}
		}

		if ws.count != len(durations) || ws.failed != failed {
			t.Errorf("at %v: got %d/%d, want %d/%d", at, ws.count, ws.failed, len(durations), failed)
		}
		if want := latencyOf(durations); ws.latency != want {
			t.Errorf("at %v: latency %+v, want %+v", at, ws.latency, want)
		}
	}
}
