package tuner

// Worker limits.
const (
	// maxWorkers caps every pool to avoid excessive context switching.
	maxWorkers = 64

	// minHashWorkers keeps a few reads in flight even on one core.
	minHashWorkers = 4

	// minWalkWorkers is the floor for directory traversal.
	minWalkWorkers = 4

	// bytesPerHashWorker is the memory one identity computation holds:
	// a read buffer plus hasher state.
	bytesPerHashWorker = 1 << 20

	// hashMemoryFraction is the share of available RAM hashing may use.
	hashMemoryFraction = 0.02
)

// Workers is a tuned pool configuration.
type Workers struct {
	// Hash is the number of identity computations in flight.
	Hash int

	// Walk is the number of directory walking goroutines.
	Walk int
}

// Calculate returns worker counts for resources:
//   - Hash: CPUCores*4, at least minHashWorkers, at most what
//     hashMemoryFraction of AvailableRAM can buffer
//   - Walk: CPUCores, at least minWalkWorkers
//
// Both are capped at maxWorkers.
func Calculate(resources SystemResources) Workers {
	hash := max(resources.CPUCores*4, minHashWorkers)
	if resources.AvailableRAM > 0 {
		byMemory := int(float64(resources.AvailableRAM) * hashMemoryFraction / bytesPerHashWorker)
		hash = min(hash, max(byMemory, minHashWorkers))
	}

	return Workers{
		Hash: min(hash, maxWorkers),
		Walk: min(max(resources.CPUCores, minWalkWorkers), maxWorkers),
	}
}

// CalculateWithOverride applies a user override to the hash pool. Values
// of 0 or less keep the calculated count; the cap still applies.
func CalculateWithOverride(resources SystemResources, hashWorkers int) Workers {
	w := Calculate(resources)
	if hashWorkers > 0 {
		w.Hash = min(hashWorkers, maxWorkers)
	}
	return w
}

// Auto detects resources and calculates workers, falling back to the
// default memory estimate when detection fails.
func Auto() Workers {
	resources, err := Detect()
	if err != nil || resources.CPUCores < 1 {
		resources = fallback(max(resources.CPUCores, 1))
	}
	return Calculate(resources)
}
