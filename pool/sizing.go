package pool

import "runtime"

// The throughput lane gets throughputMemoryFactor times the per-worker
// memory budget of the other lanes.
const (
	baseWorkerMemory       = 64 << 20
	throughputMemoryFactor = 4
)

// Sizes holds the worker count of each lane.
type Sizes map[Class]int

// DefaultSizes derives lane sizes from the available parallelism n.
// n <= 0 means runtime.GOMAXPROCS(0).
func DefaultSizes(n int) Sizes {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return Sizes{
		CPU:        n,
		IO:         max(4, n/2),
		Throughput: max(1, n-1),
		Mixed:      max(1, n*3/4),
	}
}

// NewDefaultEngines builds one WorkerPool per class with NewSizedPool.
func NewDefaultEngines(n int, extra map[Class][]Option) map[Class]Engine {
	engines := make(map[Class]Engine, len(Classes()))
	for _, c := range Classes() {
		engines[c] = NewSizedPool(c, n, extra[c]...)
	}
	return engines
}

// NewSizedPool builds the WorkerPool for class c sized by DefaultSizes(n).
// extra options are applied after the sizing options, so they can override
// them.
func NewSizedPool(c Class, n int, extra ...Option) *WorkerPool {
	size := DefaultSizes(n)[c]
	if size == 0 {
		size = max(1, n)
	}

	opts := []Option{
		WithWorkerCount(size),
		WithMemoryBudget(baseWorkerMemory),
	}
	switch c {
	case IO:
		// io lanes mostly wait; a deeper queue keeps callers from blocking on enqueue.
		opts = append(opts, WithTaskBuffer(size*4))
	case Throughput:
		opts = append(opts, WithMemoryBudget(baseWorkerMemory*throughputMemoryFactor))
	}
	opts = append(opts, extra...)
	return NewWorkerPool(c, opts...)
}
