package profiler

import (
	"maps"
	"slices"
	"time"
)

const flameGraphRoot = "root"

// GenerateFlameGraph builds a root -> operation -> pool tree from every trace
// that completed successfully since the Profiler was created. Values are
// summed durations; X and Width are percentages of the root value. The result
// is a snapshot; call again to refresh.
func (p *Profiler) GenerateFlameGraph() FlameGraphNode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flameGraphLocked()
}

func (p *Profiler) flameGraphLocked() FlameGraphNode {
	total := p.flameTotal

	root := FlameGraphNode{Name: flameGraphRoot, Value: total, Width: 100}
	if total == 0 {
		return root
	}

	var opOffset time.Duration
	for _, op := range slices.Sorted(maps.Keys(p.flame)) {
		pools := p.flame[op]

		opNode := FlameGraphNode{Name: op, Depth: 1, X: percentOf(opOffset, total)}
		poolOffset := opOffset
		for _, c := range slices.Sorted(maps.Keys(pools)) {
			v := pools[c]
			opNode.Children = append(opNode.Children, FlameGraphNode{
				Name:  string(c),
				Value: v,
				X:     percentOf(poolOffset, total),
				Width: percentOf(v, total),
				Depth: 2,
			})
			opNode.Value += v
			poolOffset += v
		}
		opNode.Width = percentOf(opNode.Value, total)

		root.Children = append(root.Children, opNode)
		opOffset += opNode.Value
	}
	return root
}

func percentOf(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
