// Package registry maps operation names to the handlers that implement them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/utkarsh5026/taskprof/pool"
)

// ErrInvalidRegistration is returned by Register for an empty name or a nil
// handler.
var ErrInvalidRegistration = errors.New("invalid operation registration")

// ExecContext is handed to every handler invocation.
type ExecContext struct {
	PoolClass pool.Class
	// OptimizationHint is an advisory label for the lane (simd, async, memory,
	// balanced). Handlers may ignore it.
	OptimizationHint string
}

// Handler implements one named operation.
type Handler func(ctx context.Context, payload any, ec ExecContext) (any, error)

// Registry is a concurrency-safe name -> Handler map.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds name to h, replacing any previous binding.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("%w: empty operation name", ErrInvalidRegistration)
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrInvalidRegistration, name)
	}

	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
	return nil
}

// Lookup returns the handler bound to name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	return h, ok
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
