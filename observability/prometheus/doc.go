// Package prometheus exports profiler snapshots and pool stats as
// Prometheus metrics.
package prometheus
