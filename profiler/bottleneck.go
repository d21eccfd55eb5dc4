package profiler

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/utkarsh5026/taskprof/pool"
)

const (
	cpuLookback  = 10
	poolLookback = 5

	cpuCriticalThreshold    = 0.90
	memoryHighThreshold     = 0.85
	memoryCriticalThreshold = 0.95
	poolHighThreshold       = 0.90

	ioHighLatency     = 1000 * time.Millisecond
	ioCriticalLatency = 5000 * time.Millisecond
)

// detectBottlenecks evaluates the fixed-threshold rules. Resource rules
// average the current reading with the preceding snapshots. The result is
// sorted by descending impact. Must be called with p.mu held.
func (p *Profiler) detectBottlenecks(current ResourceUtilization, ws windowStats) []BottleneckAnalysis {
	recent := p.history.last(cpuLookback - 1)
	allOps := operationsOf(ws, "")

	var out []BottleneckAnalysis

	cpuAvg := averageOf(recent, current, func(r ResourceUtilization) (float64, bool) { return r.CPU, true })
	if cpuAvg > cpuCriticalThreshold {
		out = append(out, BottleneckAnalysis{
			Type:               BottleneckCPU,
			Severity:           SeverityCritical,
			Description:        fmt.Sprintf("CPU utilization averaged %.0f%% over the last %d snapshots", cpuAvg*100, len(recent)+1),
			AffectedOperations: allOps,
			Recommendation:     "Move CPU-heavy operations to the throughput lane or reduce cpu lane parallelism",
			Impact:             cpuAvg,
		})
	}

	memAvg := averageOf(recent, current, func(r ResourceUtilization) (float64, bool) { return r.Memory, true })
	if memAvg > memoryHighThreshold {
		severity := SeverityHigh
		if memAvg > memoryCriticalThreshold {
			severity = SeverityCritical
		}
		out = append(out, BottleneckAnalysis{
			Type:               BottleneckMemory,
			Severity:           severity,
			Description:        fmt.Sprintf("Memory utilization averaged %.0f%% over the last %d snapshots", memAvg*100, len(recent)+1),
			AffectedOperations: allOps,
			Recommendation:     "Reduce payload sizes or lower the worker count of memory-heavy lanes",
			Impact:             memAvg,
		})
	}

	out = append(out, p.poolContention(current, ws)...)

	if b, ok := ioLatency(ws); ok {
		out = append(out, b)
	}

	slices.SortStableFunc(out, func(a, b BottleneckAnalysis) int {
		return cmp.Compare(b.Impact, a.Impact)
	})
	return out
}

func (p *Profiler) poolContention(current ResourceUtilization, ws windowStats) []BottleneckAnalysis {
	recent := p.history.last(poolLookback - 1)

	var out []BottleneckAnalysis
	for _, c := range slices.Sorted(maps.Keys(current.PerPool)) {
		avg := averageOf(recent, current, func(r ResourceUtilization) (float64, bool) {
			v, ok := r.PerPool[c]
			return v, ok
		})
		if avg <= poolHighThreshold {
			continue
		}
		out = append(out, BottleneckAnalysis{
			Type:               BottleneckPoolContention,
			Severity:           SeverityHigh,
			Description:        fmt.Sprintf("Pool %q averaged %.0f%% worker utilization", c, avg*100),
			AffectedOperations: operationsOf(ws, c),
			Recommendation:     fmt.Sprintf("Increase the %s pool size or route part of its operations to another lane", c),
			Impact:             avg,
		})
	}
	return out
}

func ioLatency(ws windowStats) (BottleneckAnalysis, bool) {
	io := ws.lanes[pool.IO]
	if io.count == 0 {
		return BottleneckAnalysis{}, false
	}

	avg := io.total / time.Duration(io.count)
	if avg <= ioHighLatency {
		return BottleneckAnalysis{}, false
	}

	severity := SeverityHigh
	if avg > ioCriticalLatency {
		severity = SeverityCritical
	}
	return BottleneckAnalysis{
		Type:               BottleneckIO,
		Severity:           severity,
		Description:        fmt.Sprintf("io lane tasks averaged %s", avg.Round(time.Millisecond)),
		AffectedOperations: operationsOf(ws, pool.IO),
		Recommendation:     "Add timeouts, batch remote calls or raise io lane concurrency",
		Impact:             min(1, float64(avg)/float64(ioCriticalLatency)),
	}, true
}

// averageOf averages pick over the history snapshots and the current reading,
// skipping snapshots for which pick reports no value.
func averageOf(history []MetricsSnapshot, current ResourceUtilization, pick func(ResourceUtilization) (float64, bool)) float64 {
	var sum float64
	var n int
	for _, s := range history {
		if v, ok := pick(s.ResourceUtilization); ok {
			sum += v
			n++
		}
	}
	if v, ok := pick(current); ok {
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// operationsOf returns the sorted distinct operations in the window,
// restricted to class when class is non-empty.
func operationsOf(ws windowStats, class pool.Class) []string {
	seen := make(map[string]struct{})
	for c, l := range ws.lanes {
		if class != "" && c != class {
			continue
		}
		for _, op := range l.operations {
			seen[op] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}
