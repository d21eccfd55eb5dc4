package pool

import (
	"context"
	"fmt"
)

// Class names an execution lane.
type Class string

const (
	CPU        Class = "cpu"
	IO         Class = "io"
	Throughput Class = "throughput"
	Mixed      Class = "mixed"
)

// Classes returns every known class in a stable order.
func Classes() []Class {
	return []Class{CPU, IO, Throughput, Mixed}
}

// Valid reports whether c is one of the known classes.
func (c Class) Valid() bool {
	switch c {
	case CPU, IO, Throughput, Mixed:
		return true
	}
	return false
}

// Hint returns the advisory optimization label handed to operation handlers.
// It documents the lane's intent and carries no scheduling semantics.
func (c Class) Hint() string {
	switch c {
	case CPU:
		return "simd"
	case IO:
		return "async"
	case Throughput:
		return "memory"
	case Mixed:
		return "balanced"
	default:
		return ""
	}
}

// WorkerInfo identifies the worker that ran a job.
type WorkerInfo struct {
	Pool     Class
	WorkerID string
	// CoreID is the core the worker is pinned to; only meaningful when Pinned.
	CoreID int
	Pinned bool
}

func workerName(c Class, id int) string {
	return fmt.Sprintf("%s-worker-%d", c, id)
}

// Job is a unit of work executed by an Engine.
type Job func(ctx context.Context, w WorkerInfo) (any, error)

// Engine is the contract a dispatcher expects from an execution lane.
//
// Execute suspends the caller until the job completes or ctx is done. When
// ctx ends first, Execute returns ctx.Err(); the job itself may still be
// running on its worker.
type Engine interface {
	Class() Class
	Execute(ctx context.Context, job Job) (any, WorkerInfo, error)
	Stats() Stats
	Close() error
}

// Stats is a point-in-time view of an engine.
type Stats struct {
	Class        Class `json:"class"`
	Workers      int   `json:"workers"`
	Busy         int   `json:"busy"`
	Queued       int   `json:"queued"`
	Completed    int64 `json:"completed"`
	Failed       int64 `json:"failed"`
	MemoryBudget int64 `json:"memory_budget"`
	Closed       bool  `json:"closed"`
}

// Utilization is the fraction of workers currently running a job.
func (s Stats) Utilization() float64 {
	if s.Workers <= 0 {
		return 0
	}
	u := float64(s.Busy) / float64(s.Workers)
	if u > 1 {
		return 1
	}
	return u
}
