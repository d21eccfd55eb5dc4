package profiler

import (
	"context"
	"time"

	"github.com/utkarsh5026/taskprof/pool"
)

// TraceStatus is the lifecycle state of a Trace.
type TraceStatus string

const (
	StatusRunning   TraceStatus = "running"
	StatusCompleted TraceStatus = "completed"
	StatusFailed    TraceStatus = "failed"
)

// Trace is the timed record of one task.
type Trace struct {
	ID         string         `json:"id"`
	Operation  string         `json:"operation"`
	PoolClass  pool.Class     `json:"pool_class"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time,omitzero"`
	Duration   time.Duration  `json:"duration,omitempty"`
	Status     TraceStatus    `json:"status"`
	MemoryUsed int64          `json:"memory_used"`
	Error      string         `json:"error,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Finished reports whether the trace reached a terminal status.
func (t Trace) Finished() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Latency holds duration percentiles of the trailing window.
type Latency struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// ResourceUtilization is a gauge reading, each value in [0,1].
type ResourceUtilization struct {
	CPU     float64                `json:"cpu"`
	Memory  float64                `json:"memory"`
	PerPool map[pool.Class]float64 `json:"per_pool,omitempty"`
}

// Trends are the most recent per-snapshot values, oldest first.
type Trends struct {
	Throughput []float64       `json:"throughput"`
	Latency    []time.Duration `json:"latency"`
	Error      []float64       `json:"error"`
}

// MetricsSnapshot is the outcome of one recomputation.
type MetricsSnapshot struct {
	Timestamp           time.Time            `json:"timestamp"`
	Throughput          float64              `json:"throughput"`
	Latency             Latency              `json:"latency"`
	ResourceUtilization ResourceUtilization  `json:"resource_utilization"`
	ErrorRate           float64              `json:"error_rate"`
	Bottlenecks         []BottleneckAnalysis `json:"bottlenecks"`
	Trends              Trends               `json:"trends"`
}

// BottleneckType classifies a bottleneck.
type BottleneckType string

const (
	BottleneckCPU            BottleneckType = "cpu"
	BottleneckMemory         BottleneckType = "memory"
	BottleneckIO             BottleneckType = "io"
	BottleneckPoolContention BottleneckType = "pool-contention"
)

// Severity grades a bottleneck.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// BottleneckAnalysis is an advisory diagnostic embedded in a snapshot.
type BottleneckAnalysis struct {
	Type               BottleneckType `json:"type"`
	Severity           Severity       `json:"severity"`
	Description        string         `json:"description"`
	AffectedOperations []string       `json:"affected_operations"`
	Recommendation     string         `json:"recommendation"`
	Impact             float64        `json:"impact"`
}

// FlameGraphNode is one frame of the operation -> pool flame graph.
// X and Width are percentages of the grand total duration.
type FlameGraphNode struct {
	Name     string           `json:"name"`
	Value    time.Duration    `json:"value"`
	Children []FlameGraphNode `json:"children,omitempty"`
	X        float64          `json:"x"`
	Width    float64          `json:"width"`
	Depth    int              `json:"depth"`
}

// ExportData bundles the profiler state for offline analysis.
type ExportData struct {
	ID             string               `json:"id"`
	Traces         []Trace              `json:"traces"`
	MetricsHistory []MetricsSnapshot    `json:"metrics_history"`
	FlameGraph     FlameGraphNode       `json:"flame_graph"`
	Bottlenecks    []BottleneckAnalysis `json:"bottlenecks"`
	ExportedAt     time.Time            `json:"exported_at"`
}

// SystemMetricsProvider supplies resource gauges. It is polled once per
// recomputation.
type SystemMetricsProvider interface {
	Sample(ctx context.Context) (ResourceUtilization, error)
}

type nopProvider struct{}

func (nopProvider) Sample(context.Context) (ResourceUtilization, error) {
	return ResourceUtilization{}, nil
}
