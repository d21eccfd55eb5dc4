package profiler

import (
	"container/heap"
	"maps"
	"slices"
	"time"

	"github.com/utkarsh5026/taskprof/pool"
)

// windowEntry is the part of a finished trace the rolling window needs.
type windowEntry struct {
	start     time.Time
	duration  time.Duration
	operation string
	class     pool.Class
	failed    bool
}

// byStart is a min-heap of window entries ordered by start time.
type byStart []windowEntry

func (h byStart) Len() int           { return len(h) }
func (h byStart) Less(i, j int) bool { return h[i].start.Before(h[j].start) }
func (h byStart) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *byStart) Push(x any) {
	*h = append(*h, x.(windowEntry))
}

func (h *byStart) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = windowEntry{}
	*h = old[:n-1]
	return e
}

// lane aggregates the window entries of one pool class.
type lane struct {
	count      int
	total      time.Duration
	operations map[string]int
}

// window holds every finished trace that started within span of the last
// prune. Entries leave by age only, never by count. Aggregates are kept up to
// date on add and prune so reading them does not scan the entries.
type window struct {
	span      time.Duration
	entries   byStart
	durations []time.Duration // ascending
	failed    int
	lanes     map[pool.Class]*lane
}

func newWindow(span time.Duration) *window {
	return &window{span: span, lanes: make(map[pool.Class]*lane)}
}

func (w *window) add(t Trace) {
	e := windowEntry{
		start:     t.StartTime,
		duration:  t.Duration,
		operation: t.Operation,
		class:     t.PoolClass,
		failed:    t.Status == StatusFailed,
	}
	heap.Push(&w.entries, e)

	i, _ := slices.BinarySearch(w.durations, e.duration)
	w.durations = slices.Insert(w.durations, i, e.duration)

	if e.failed {
		w.failed++
	}

	l, ok := w.lanes[e.class]
	if !ok {
		l = &lane{operations: make(map[string]int)}
		w.lanes[e.class] = l
	}
	l.count++
	l.total += e.duration
	l.operations[e.operation]++
}

// prune drops the entries that started before now minus the span.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	for len(w.entries) > 0 && w.entries[0].start.Before(cutoff) {
		w.remove(heap.Pop(&w.entries).(windowEntry))
	}
}

func (w *window) remove(e windowEntry) {
	if i, found := slices.BinarySearch(w.durations, e.duration); found {
		w.durations = slices.Delete(w.durations, i, i+1)
	}

	if e.failed {
		w.failed--
	}

	l := w.lanes[e.class]
	l.count--
	l.total -= e.duration
	l.operations[e.operation]--
	if l.operations[e.operation] == 0 {
		delete(l.operations, e.operation)
	}
	if l.count == 0 {
		delete(w.lanes, e.class)
	}
}

func (w *window) len() int {
	return len(w.entries)
}

// stats summarizes the current entries.
func (w *window) stats() windowStats {
	ws := windowStats{
		count:   len(w.entries),
		failed:  w.failed,
		latency: latencyOfSorted(w.durations),
		lanes:   make(map[pool.Class]laneStats, len(w.lanes)),
	}
	for c, l := range w.lanes {
		ws.lanes[c] = laneStats{
			count:      l.count,
			total:      l.total,
			operations: slices.Sorted(maps.Keys(l.operations)),
		}
	}
	return ws
}
