//go:build linux

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect detects available system resources using sysinfo(2). Available
// memory counts free RAM plus buffers.
func Detect() (SystemResources, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return fallback(runtime.NumCPU()), fmt.Errorf("sysinfo: %w", err)
	}

	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     int64(uint64(info.Totalram) * unit),
		AvailableRAM: int64((uint64(info.Freeram) + uint64(info.Bufferram)) * unit),
	}, nil
}
