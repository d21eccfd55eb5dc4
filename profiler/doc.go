// Package profiler records the lifecycle of dispatched tasks and derives
// rolling diagnostics from them.
//
// Every task is tracked as a Trace: StartTrace opens it, EndTrace or
// RecordError closes it exactly once. Each closed trace triggers one metrics
// recomputation over the trailing window (60s by default):
//
//   - throughput: finished traces in the window / window seconds
//   - latency: p50/p95/p99 of window durations, index clamp(ceil(n*p)-1, 0, n-1)
//   - error rate: failed / max(total, 1)
//   - resource utilization: sampled from a SystemMetricsProvider
//   - bottlenecks: fixed-threshold rules over recent snapshots, sorted by impact
//
// The window keeps every finished trace that started inside it, however many
// there are; its aggregates are updated as traces enter and age out, so a
// recomputation does not rescan them.
//
// Snapshots are kept in a bounded history (60 entries) and pushed to
// subscribers in computation order. Recomputations are serialized, but
// delivery happens outside them: a subscriber may read the profiler and may
// also open and close traces from inside its callback.
//
// GenerateFlameGraph covers every completed trace. ExportData returns the
// most recent finished traces, up to the retention set by WithTraceRetention.
package profiler
