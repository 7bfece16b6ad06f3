//go:build darwin

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect detects available system resources. Total memory comes from the
// hw.memsize sysctl; half of it is assumed available, since macOS keeps
// most free memory as file cache.
func Detect() (SystemResources, error) {
	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return fallback(runtime.NumCPU()), fmt.Errorf("sysctl hw.memsize: %w", err)
	}

	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     int64(memsize),
		AvailableRAM: int64(memsize) / 2,
	}, nil
}
