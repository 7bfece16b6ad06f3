//go:build !linux && !darwin

package tuner

import (
	"runtime"
)

// Detect reports the CPU count and the default memory estimate.
func Detect() (SystemResources, error) {
	return fallback(runtime.NumCPU()), nil
}
