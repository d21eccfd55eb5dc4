package sysmetrics

import (
	"context"
	"maps"
	"sync"

	"github.com/utkarsh5026/taskprof/pool"
	"github.com/utkarsh5026/taskprof/profiler"
)

// Static reports values set by the caller.
type Static struct {
	mu    sync.RWMutex
	usage profiler.ResourceUtilization
}

var _ profiler.SystemMetricsProvider = (*Static)(nil)

func NewStatic(cpu, memory float64) *Static {
	return &Static{usage: profiler.ResourceUtilization{CPU: cpu, Memory: memory}}
}

// Set replaces the CPU and memory gauges.
func (s *Static) Set(cpu, memory float64) {
	s.mu.Lock()
	s.usage.CPU, s.usage.Memory = cpu, memory
	s.mu.Unlock()
}

// SetPool sets the utilization reported for class.
func (s *Static) SetPool(class pool.Class, utilization float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usage.PerPool == nil {
		s.usage.PerPool = make(map[pool.Class]float64)
	}
	s.usage.PerPool[class] = utilization
}

func (s *Static) Sample(context.Context) (profiler.ResourceUtilization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	usage := s.usage
	usage.PerPool = maps.Clone(s.usage.PerPool)
	return usage, nil
}

// Func adapts a function to profiler.SystemMetricsProvider.
type Func func(ctx context.Context) (profiler.ResourceUtilization, error)

func (f Func) Sample(ctx context.Context) (profiler.ResourceUtilization, error) {
	return f(ctx)
}
