// Package tuner sizes binmin's worker pools from the detected system
// resources. Identity hashing is I/O bound and gets several workers per
// core, bounded by how many read buffers fit in a small share of memory.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the available (free) RAM in bytes.
	// This may be an estimate based on system heuristics.
	AvailableRAM int64
}

// defaultTotalRAM is the fallback when memory cannot be detected.
const defaultTotalRAM = 8 * 1024 * 1024 * 1024

// fallback returns resources for cores with the default memory estimate.
func fallback(cores int) SystemResources {
	return SystemResources{
		CPUCores:     cores,
		TotalRAM:     defaultTotalRAM,
		AvailableRAM: defaultTotalRAM / 2,
	}
}
