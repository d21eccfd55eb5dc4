package profiler

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/taskprof/pool"
)

// ErrTraceActive is returned by StartTrace when a trace with the same id is
// still running.
var ErrTraceActive = errors.New("trace already active")

// Profiler records traces and maintains rolling metrics. The zero value is
// not usable; construct with New.
type Profiler struct {
	conf   *config
	logger *zap.Logger

	// mu guards the trace and snapshot state. recomputeMu serializes
	// recomputation so snapshots are produced and queued in order. notifyMu
	// guards the delivery queue, which is drained outside both.
	mu          sync.RWMutex
	recomputeMu sync.Mutex
	notifyMu    sync.Mutex

	active    map[string]*Trace
	window    *window
	completed *ring[Trace]
	history   *ring[MetricsSnapshot]

	// flame accumulates the durations of every completed trace by operation
	// and pool class.
	flame      map[string]map[pool.Class]time.Duration
	flameTotal time.Duration

	throughputTrend *ring[float64]
	latencyTrend    *ring[time.Duration]
	errorTrend      *ring[float64]

	subscribers map[uint64]func(MetricsSnapshot)
	nextSubID   uint64

	pending    []delivery
	delivering bool
}

// New creates a Profiler.
func New(opts ...Option) *Profiler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Profiler{
		conf:            cfg,
		logger:          cfg.logger.Named("profiler"),
		active:          make(map[string]*Trace),
		window:          newWindow(cfg.window),
		flame:           make(map[string]map[pool.Class]time.Duration),
		completed:       newRing[Trace](cfg.traceRetention),
		history:         newRing[MetricsSnapshot](cfg.historySize),
		throughputTrend: newRing[float64](cfg.historySize),
		latencyTrend:    newRing[time.Duration](cfg.historySize),
		errorTrend:      newRing[float64](cfg.historySize),
		subscribers:     make(map[uint64]func(MetricsSnapshot)),
	}
}

// StartTrace opens a running trace for id. It fails with ErrTraceActive if
// a trace with the same id is still running.
func (p *Profiler) StartTrace(id, operation string, class pool.Class, metadata map[string]any) (Trace, error) {
	t := &Trace{
		ID:        id,
		Operation: operation,
		PoolClass: class,
		StartTime: p.conf.clock(),
		Status:    StatusRunning,
		Metadata:  maps.Clone(metadata),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.active[id]; ok {
		return Trace{}, fmt.Errorf("%w: %s", ErrTraceActive, id)
	}
	p.active[id] = t
	return *t, nil
}

// EndTrace closes the running trace for id as completed or failed and
// recomputes metrics. Unknown ids return false and leave state untouched.
func (p *Profiler) EndTrace(id string, success bool, memoryUsed int64) (Trace, bool) {
	status := StatusFailed
	if success {
		status = StatusCompleted
	}
	return p.end(id, status, memoryUsed, nil)
}

// RecordError closes the running trace for id as failed, attaching a stack
// representation of err. Unknown ids return false and leave state untouched.
func (p *Profiler) RecordError(id string, err error) (Trace, bool) {
	return p.FailTrace(id, err, 0)
}

// FailTrace is RecordError with the memory attributed to the task.
func (p *Profiler) FailTrace(id string, err error, memoryUsed int64) (Trace, bool) {
	return p.end(id, StatusFailed, memoryUsed, err)
}

func (p *Profiler) end(id string, status TraceStatus, memoryUsed int64, cause error) (Trace, bool) {
	now := p.conf.clock()

	p.mu.Lock()
	t, ok := p.active[id]
	if !ok {
		p.mu.Unlock()
		p.logger.Debug("ignoring unknown trace", zap.String("trace_id", id))
		return Trace{}, false
	}
	delete(p.active, id)

	t.EndTime = now
	t.Duration = max(now.Sub(t.StartTime), 0)
	t.Status = status
	t.MemoryUsed = memoryUsed
	if cause != nil {
		t.Error = cause.Error()
		t.StackTrace = stackOf(cause)
	}
	finished := *t
	p.window.add(finished)
	p.completed.push(finished)
	if status == StatusCompleted {
		p.addToFlame(finished)
	}
	p.mu.Unlock()

	p.recompute()
	return finished, true
}

func (p *Profiler) addToFlame(t Trace) {
	pools, ok := p.flame[t.Operation]
	if !ok {
		pools = make(map[pool.Class]time.Duration)
		p.flame[t.Operation] = pools
	}
	pools[t.PoolClass] += t.Duration
	p.flameTotal += t.Duration
}

// stackOf renders err the way a stack trace is expected: errors that carry
// their own trace (panics recovered by a pool) provide it, others fall back
// to the error chain.
func stackOf(err error) string {
	var st interface{ StackTrace() string }
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return fmt.Sprintf("%+v", err)
}

// Subscribe registers fn to receive every new snapshot. The returned func
// unsubscribes.
//
// Snapshots are delivered one at a time, in the order they were produced,
// on a goroutine that closed a trace. fn may call back into the Profiler,
// including StartTrace and EndTrace: a snapshot produced from inside fn is
// delivered after fn returns. By the time every EndTrace call has returned,
// every snapshot has been delivered.
func (p *Profiler) Subscribe(fn func(MetricsSnapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			p.mu.Unlock()
		})
	}
}

// Latest returns the most recent snapshot.
func (p *Profiler) Latest() (MetricsSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.history.newest()
}

// History returns the retained snapshots, oldest first.
func (p *Profiler) History() []MetricsSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.history.all()
}

// ActiveTraces returns the running traces.
func (p *Profiler) ActiveTraces() []Trace {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Trace, 0, len(p.active))
	for _, t := range p.active {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b Trace) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// CompletedTraces returns the retained finished traces, oldest first. At
// most WithTraceRetention traces are kept.
func (p *Profiler) CompletedTraces() []Trace {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.completed.all()
}
