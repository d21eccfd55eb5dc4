//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore pins the current OS thread to a specific CPU core.
// Must be called after runtime.LockOSThread().
func pinToCore(cpuID int) (int, error) {
	cpuID = normalize(cpuID)

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpuID)

	if err := unix.SchedSetaffinity(0, &mask); err != nil { // 0 = current thread
		return 0, err
	}
	return cpuID, nil
}

// Pin locks the calling goroutine to an OS thread and pins that thread to
// core workerID mod NumCPU. The returned release func must be deferred by the
// goroutine that called Pin. pinned is false when the kernel refused the
// mask (e.g. the core is outside the process cpuset).
func Pin(workerID int) (coreID int, pinned bool, release func()) {
	runtime.LockOSThread()

	core, err := pinToCore(workerID)
	if err != nil {
		return -1, false, runtime.UnlockOSThread
	}
	// The thread keeps its narrowed mask, so it is never handed back to the
	// scheduler: it exits together with the locked goroutine.
	return core, true, func() {}
}
