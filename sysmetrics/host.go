package sysmetrics

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/prometheus/procfs"

	"github.com/utkarsh5026/taskprof/pool"
	"github.com/utkarsh5026/taskprof/profiler"
)

// ErrNoMemTotal is returned by Host.Sample when /proc/meminfo reports no
// usable MemTotal.
var ErrNoMemTotal = errors.New("meminfo: MemTotal unavailable")

// PoolSource reports the busy/worker ratio of every pool.
type PoolSource interface {
	PoolUtilization() map[pool.Class]float64
}

type poolSourceBox struct {
	src PoolSource
}

// Host samples CPU and memory utilization from procfs. CPU utilization is the
// busy share of jiffies elapsed since the previous sample; the first sample
// covers the time since boot.
type Host struct {
	readCPU func() (procfs.CPUStat, error)
	readMem func() (procfs.Meminfo, error)

	mu      sync.Mutex
	prev    procfs.CPUStat
	hasPrev bool

	pools atomic.Pointer[poolSourceBox]
}

var _ profiler.SystemMetricsProvider = (*Host)(nil)

// NewHost reads from the default /proc mount.
func NewHost() (*Host, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return newHost(fs), nil
}

// NewHostAt reads from a procfs mounted at mountPoint.
func NewHostAt(mountPoint string) (*Host, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs at %s: %w", mountPoint, err)
	}
	return newHost(fs), nil
}

func newHost(fs procfs.FS) *Host {
	return &Host{
		readCPU: func() (procfs.CPUStat, error) {
			st, err := fs.Stat()
			if err != nil {
				return procfs.CPUStat{}, err
			}
			return st.CPUTotal, nil
		},
		readMem: fs.Meminfo,
	}
}

// TrackPools attaches src as the per-pool utilization source. Passing nil
// detaches it.
func (h *Host) TrackPools(src PoolSource) {
	if src == nil {
		h.pools.Store(nil)
		return
	}
	h.pools.Store(&poolSourceBox{src: src})
}

// Sample implements profiler.SystemMetricsProvider.
func (h *Host) Sample(ctx context.Context) (profiler.ResourceUtilization, error) {
	if err := ctx.Err(); err != nil {
		return profiler.ResourceUtilization{}, err
	}

	cpuUsage, err := h.cpuUtilization()
	if err != nil {
		return profiler.ResourceUtilization{}, err
	}

	mem, err := h.readMem()
	if err != nil {
		return profiler.ResourceUtilization{}, fmt.Errorf("read meminfo: %w", err)
	}
	memUsage, err := memoryUtilization(mem)
	if err != nil {
		return profiler.ResourceUtilization{}, err
	}

	usage := profiler.ResourceUtilization{CPU: cpuUsage, Memory: memUsage}
	if box := h.pools.Load(); box != nil {
		usage.PerPool = maps.Clone(box.src.PoolUtilization())
	}
	return usage, nil
}

func (h *Host) cpuUtilization() (float64, error) {
	cur, err := h.readCPU()
	if err != nil {
		return 0, fmt.Errorf("read cpu stat: %w", err)
	}

	h.mu.Lock()
	prev, hasPrev := h.prev, h.hasPrev
	h.prev, h.hasPrev = cur, true
	h.mu.Unlock()

	busy, idle := split(cur)
	if hasPrev {
		prevBusy, prevIdle := split(prev)
		busy -= prevBusy
		idle -= prevIdle
	}

	total := busy + idle
	if total <= 0 {
		return 0, nil
	}
	return min(max(busy/total, 0), 1), nil
}

// split returns busy and idle time. Guest time is already part of User and
// Nice and is not counted twice.
func split(s procfs.CPUStat) (busy, idle float64) {
	busy = s.User + s.Nice + s.System + s.IRQ + s.SoftIRQ + s.Steal
	idle = s.Idle + s.Iowait
	return busy, idle
}

func memoryUtilization(m procfs.Meminfo) (float64, error) {
	if m.MemTotal == nil || *m.MemTotal == 0 {
		return 0, ErrNoMemTotal
	}
	total := float64(*m.MemTotal)

	var available float64
	switch {
	case m.MemAvailable != nil:
		available = float64(*m.MemAvailable)
	case m.MemFree != nil:
		// Kernels before 3.14 do not report MemAvailable.
		available = float64(*m.MemFree)
		if m.Buffers != nil {
			available += float64(*m.Buffers)
		}
		if m.Cached != nil {
			available += float64(*m.Cached)
		}
	}
	return min(max(1-available/total, 0), 1), nil
}
