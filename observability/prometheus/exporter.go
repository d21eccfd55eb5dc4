package prometheus

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/utkarsh5026/taskprof/pool"
	"github.com/utkarsh5026/taskprof/profiler"
)

// Exporter mirrors profiler snapshots and pool stats into Prometheus gauges.
// Register Observe with profiler.Subscribe.
type Exporter struct {
	throughput       prom.Gauge
	errorRate        prom.Gauge
	latency          *prom.GaugeVec
	resource         *prom.GaugeVec
	poolUtilization  *prom.GaugeVec
	bottleneckImpact *prom.GaugeVec
	snapshots        prom.Counter

	poolWorkers   *prom.GaugeVec
	poolQueued    *prom.GaugeVec
	poolCompleted *prom.GaugeVec
	poolFailed    *prom.GaugeVec
}

// NewExporter creates and registers the collectors. An empty namespace
// defaults to "taskprof" and a nil registerer to the default registry.
// Collectors already registered under the same names are reused.
func NewExporter(namespace string, reg prom.Registerer) (*Exporter, error) {
	if namespace == "" {
		namespace = "taskprof"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	gauge := func(name, help string) prom.Gauge {
		return prom.NewGauge(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	gaugeVec := func(name, help, label string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: namespace, Name: name, Help: help}, []string{label})
	}

	e := &Exporter{
		throughput:       gauge("throughput_ops", "Finished tasks per second over the trailing window."),
		errorRate:        gauge("error_rate", "Share of failed tasks over the trailing window."),
		latency:          gaugeVec("latency_seconds", "Task latency percentiles over the trailing window.", "quantile"),
		resource:         gaugeVec("resource_utilization", "Sampled host utilization in [0,1].", "resource"),
		poolUtilization:  gaugeVec("pool_utilization", "Busy share of a pool's workers in [0,1].", "pool"),
		bottleneckImpact: gaugeVec("bottleneck_impact", "Impact of each detected bottleneck; absent when none.", "type"),
		snapshots: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total number of metrics snapshots observed.",
		}),
		poolWorkers:   gaugeVec("pool_workers", "Number of workers per pool.", "pool"),
		poolQueued:    gaugeVec("pool_queued", "Jobs waiting for a worker per pool.", "pool"),
		poolCompleted: gaugeVec("pool_completed", "Jobs completed per pool since start.", "pool"),
		poolFailed:    gaugeVec("pool_failed", "Jobs failed per pool since start.", "pool"),
	}

	var err error
	if e.throughput, err = registerCollector(reg, e.throughput); err != nil {
		return nil, err
	}
	if e.errorRate, err = registerCollector(reg, e.errorRate); err != nil {
		return nil, err
	}
	if e.snapshots, err = registerCollector(reg, e.snapshots); err != nil {
		return nil, err
	}
	for _, vec := range []**prom.GaugeVec{
		&e.latency, &e.resource, &e.poolUtilization, &e.bottleneckImpact,
		&e.poolWorkers, &e.poolQueued, &e.poolCompleted, &e.poolFailed,
	} {
		if *vec, err = registerCollector(reg, *vec); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Observe records snap. It has the signature of a profiler subscriber.
func (e *Exporter) Observe(snap profiler.MetricsSnapshot) {
	if e == nil {
		return
	}

	e.snapshots.Inc()
	e.throughput.Set(snap.Throughput)
	e.errorRate.Set(snap.ErrorRate)

	e.latency.WithLabelValues("0.5").Set(snap.Latency.P50.Seconds())
	e.latency.WithLabelValues("0.95").Set(snap.Latency.P95.Seconds())
	e.latency.WithLabelValues("0.99").Set(snap.Latency.P99.Seconds())

	e.resource.WithLabelValues("cpu").Set(snap.ResourceUtilization.CPU)
	e.resource.WithLabelValues("memory").Set(snap.ResourceUtilization.Memory)
	for c, v := range snap.ResourceUtilization.PerPool {
		e.poolUtilization.WithLabelValues(string(c)).Set(v)
	}

	// Several pool-contention findings collapse to the worst one.
	worst := make(map[profiler.BottleneckType]float64, len(snap.Bottlenecks))
	for _, b := range snap.Bottlenecks {
		worst[b.Type] = max(worst[b.Type], b.Impact)
	}
	e.bottleneckImpact.Reset()
	for typ, impact := range worst {
		e.bottleneckImpact.WithLabelValues(string(typ)).Set(impact)
	}
}

// ObservePools records pool stats, typically from Dispatcher.Pools.
func (e *Exporter) ObservePools(stats map[pool.Class]pool.Stats) {
	if e == nil {
		return
	}
	for c, s := range stats {
		label := string(c)
		e.poolWorkers.WithLabelValues(label).Set(float64(s.Workers))
		e.poolQueued.WithLabelValues(label).Set(float64(s.Queued))
		e.poolCompleted.WithLabelValues(label).Set(float64(s.Completed))
		e.poolFailed.WithLabelValues(label).Set(float64(s.Failed))
		e.poolUtilization.WithLabelValues(label).Set(s.Utilization())
	}
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
