package profiler

import (
	"slices"

	"github.com/google/uuid"
)

// ExportData returns a self-contained copy of the profiler state: finished
// and running traces, the snapshot history, a fresh flame graph and the
// bottlenecks of the latest snapshot.
func (p *Profiler) ExportData() ExportData {
	exportedAt := p.conf.clock()

	p.mu.RLock()
	defer p.mu.RUnlock()

	traces := p.completed.all()
	for _, t := range p.active {
		traces = append(traces, *t)
	}

	var bottlenecks []BottleneckAnalysis
	if latest, ok := p.history.newest(); ok {
		bottlenecks = slices.Clone(latest.Bottlenecks)
	}

	return ExportData{
		ID:             uuid.NewString(),
		Traces:         traces,
		MetricsHistory: p.history.all(),
		FlameGraph:     p.flameGraphLocked(),
		Bottlenecks:    bottlenecks,
		ExportedAt:     exportedAt,
	}
}
