//go:build windows

package cpu

import (
	"runtime"
	"syscall"
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
)

// pinToCore pins the current OS thread to a specific CPU core.
// Must be called after runtime.LockOSThread().
func pinToCore(cpuID int) (int, error) {
	cpuID = normalize(cpuID)

	handle, _, _ := getCurrentThread.Call()

	// Bit N = CPU N
	mask := uintptr(1) << uint(cpuID)

	prevMask, _, err := setThreadAffinityMask.Call(handle, mask)
	if prevMask == 0 {
		return 0, err
	}
	return cpuID, nil
}

// Pin locks the calling goroutine to an OS thread and pins that thread to
// core workerID mod NumCPU. The returned release func must be deferred by the
// goroutine that called Pin.
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
