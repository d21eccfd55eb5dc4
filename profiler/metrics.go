package profiler

import (
	"context"
	"maps"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/taskprof/pool"
)

// windowStats summarizes the finished traces inside the trailing window.
type windowStats struct {
	count   int
	failed  int
	latency Latency
	lanes   map[pool.Class]laneStats
}

// laneStats is the window summary of one pool class.
type laneStats struct {
	count      int
	total      time.Duration
	operations []string
}

// delivery is a snapshot waiting to be handed to the subscribers that were
// registered when it was produced.
type delivery struct {
	snap MetricsSnapshot
	subs []func(MetricsSnapshot)
}

// recompute derives a new snapshot from the trailing window, appends it to
// the history and notifies subscribers. Snapshots are produced one at a time
// and delivered in the order they were produced.
func (p *Profiler) recompute() {
	p.recomputeMu.Lock()

	usage := p.sample()
	now := p.conf.clock()

	p.mu.Lock()
	p.window.prune(now)
	ws := p.window.stats()

	snap := MetricsSnapshot{
		Timestamp:           now,
		Throughput:          float64(ws.count) / p.conf.window.Seconds(),
		Latency:             ws.latency,
		ResourceUtilization: usage,
		ErrorRate:           float64(ws.failed) / float64(max(ws.count, 1)),
	}
	snap.Bottlenecks = p.detectBottlenecks(usage, ws)

	p.throughputTrend.push(snap.Throughput)
	p.latencyTrend.push(snap.Latency.P95)
	p.errorTrend.push(snap.ErrorRate)
	snap.Trends = Trends{
		Throughput: p.throughputTrend.all(),
		Latency:    p.latencyTrend.all(),
		Error:      p.errorTrend.all(),
	}

	p.history.push(snap)
	ids := slices.Sorted(maps.Keys(p.subscribers))
	subs := make([]func(MetricsSnapshot), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, p.subscribers[id])
	}
	p.mu.Unlock()

	if len(subs) > 0 {
		p.notifyMu.Lock()
		p.pending = append(p.pending, delivery{snap: snap, subs: subs})
		p.notifyMu.Unlock()
	}
	p.recomputeMu.Unlock()

	p.deliver()
}

// deliver hands queued snapshots to their subscribers. Only one goroutine
// delivers at a time; any other caller, including a subscriber closing a
// trace from inside its callback, leaves its snapshot in the queue for the
// active deliverer and returns.
func (p *Profiler) deliver() {
	p.notifyMu.Lock()
	if p.delivering {
		p.notifyMu.Unlock()
		return
	}
	p.delivering = true

	for len(p.pending) > 0 {
		d := p.pending[0]
		p.pending[0] = delivery{}
		p.pending = p.pending[1:]
		p.notifyMu.Unlock()

		for _, fn := range d.subs {
			p.notify(fn, d.snap)
		}

		p.notifyMu.Lock()
	}

	p.delivering = false
	p.notifyMu.Unlock()
}

func (p *Profiler) notify(fn func(MetricsSnapshot), snap MetricsSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("metrics subscriber panicked", zap.Any("panic", r))
		}
	}()
	fn(snap)
}

// sample polls the resource provider. Failures are logged and reported as
// zero utilization.
func (p *Profiler) sample() ResourceUtilization {
	ctx, cancel := context.WithTimeout(context.Background(), p.conf.sampleTimeout)
	defer cancel()

	usage, err := p.conf.provider.Sample(ctx)
	if err != nil {
		p.logger.Warn("resource sampling failed", zap.Error(err))
		return ResourceUtilization{}
	}
	usage.CPU = clamp01(usage.CPU)
	usage.Memory = clamp01(usage.Memory)
	if usage.PerPool != nil {
		perPool := maps.Clone(usage.PerPool)
		for c, v := range perPool {
			perPool[c] = clamp01(v)
		}
		usage.PerPool = perPool
	}
	return usage
}

func latencyOf(durations []time.Duration) Latency {
	sorted := slices.Clone(durations)
	slices.Sort(sorted)
	return latencyOfSorted(sorted)
}

// latencyOfSorted expects ascending durations.
func latencyOfSorted(sorted []time.Duration) Latency {
	if len(sorted) == 0 {
		return Latency{}
	}
	return Latency{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}

// percentile picks sorted[clamp(ceil(n*p)-1, 0, n-1)]. sorted must be
// ascending and non-empty.
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	idx := int(math.Ceil(float64(n)*p)) - 1
	idx = min(max(idx, 0), n-1)
	return sorted[idx]
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
