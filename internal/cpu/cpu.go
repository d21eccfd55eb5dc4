// Package cpu pins worker goroutines to cores.
package cpu

import "runtime"

// NumCPU returns the number of logical CPUs available.
func NumCPU() int {
	return runtime.NumCPU()
}

func normalize(cpuID int) int {
	n := runtime.NumCPU()
	if cpuID < 0 {
		cpuID = -cpuID
	}
	return cpuID % n
}
