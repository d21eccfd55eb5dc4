// Package sysmetrics provides resource gauges for the profiler.
//
// Host samples the machine through /proc and, once a PoolSource is attached,
// reports per-pool worker utilization alongside. Static and Func exist for
// tests and for embedding programs that already collect their own gauges.
package sysmetrics
