package dispatch

import (
	"go.uber.org/zap"

	"github.com/utkarsh5026/taskprof/pool"
	"github.com/utkarsh5026/taskprof/registry"
)

// Option is a functional option for configuring a Dispatcher.
type Option func(*config)

type config struct {
	logger      *zap.Logger
	parallelism int
	registry    *registry.Registry
	engines     []pool.Engine
	poolOpts    map[pool.Class][]pool.Option
}

func defaultConfig() *config {
	return &config{
		logger:   zap.NewNop(),
		poolOpts: make(map[pool.Class][]pool.Option),
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

// WithParallelism sets the parallelism the default lanes are sized from.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithParallelism(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.parallelism = n
		}
	}
}

// WithRegistry shares an existing operation registry.
func WithRegistry(r *registry.Registry) Option {
	return func(cfg *config) {
		if r != nil {
			cfg.registry = r
		}
	}
}

// WithEngine installs e as the lane for e.Class(), replacing the default
// pool for that class. Classes outside the built-in four add a new lane.
// The dispatcher takes ownership and closes e on Close.
func WithEngine(e pool.Engine) Option {
	return func(cfg *config) {
		cfg.engines = append(cfg.engines, e)
	}
}

// WithPoolOptions appends options to the default pool of class c.
// They have no effect on engines installed with WithEngine.
func WithPoolOptions(c pool.Class, opts ...pool.Option) Option {
	return func(cfg *config) {
		cfg.poolOpts[c] = append(cfg.poolOpts[c], opts...)
	}
}
