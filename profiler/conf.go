package profiler

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultWindow         = 60 * time.Second
	defaultHistorySize    = 60
	defaultTraceRetention = 10000
	defaultSampleTimeout  = time.Second
)

// Option is a functional option for configuring a Profiler.
type Option func(*config)

type config struct {
	provider       SystemMetricsProvider
	logger         *zap.Logger
	clock          func() time.Time
	window         time.Duration
	historySize    int
	traceRetention int
	sampleTimeout  time.Duration
}

func defaultConfig() *config {
	return &config{
		provider:       nopProvider{},
		logger:         zap.NewNop(),
		clock:          time.Now,
		window:         defaultWindow,
		historySize:    defaultHistorySize,
		traceRetention: defaultTraceRetention,
		sampleTimeout:  defaultSampleTimeout,
	}
}

// WithResourceProvider sets the source of resource gauges.
// Without one, snapshots report zero utilization.
func WithResourceProvider(p SystemMetricsProvider) Option {
	return func(cfg *config) {
		if p != nil {
			cfg.provider = p
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		if now != nil {
			cfg.clock = now
		}
	}
}

// WithWindow sets the trailing window used for throughput, latency and error
// rate. Defaults to 60s.
func WithWindow(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.window = d
		}
	}
}

// WithHistorySize caps the snapshot history and the trend arrays.
// Defaults to 60.
func WithHistorySize(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.historySize = n
		}
	}
}

// WithTraceRetention caps how many finished traces CompletedTraces and
// ExportData return. Oldest traces are evicted first. Rolling metrics and the
// flame graph do not depend on it: the window keeps every trace younger than
// the window span. Defaults to 10000.
func WithTraceRetention(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.traceRetention = n
		}
	}
}

// WithSampleTimeout bounds each call into the resource provider.
func WithSampleTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.sampleTimeout = d
		}
	}
}
