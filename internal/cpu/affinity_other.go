//go:build !linux && !windows

package cpu

import "runtime"

// Pin locks the calling goroutine to an OS thread.
// Core pinning is not available on this platform, so pinned is always false.
func Pin(workerID int) (coreID int, pinned bool, release func()) {
	runtime.LockOSThread()
	return -1, false, runtime.UnlockOSThread
}
