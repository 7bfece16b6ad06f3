//go:build !linux

package content

import "os"

// openSequential opens path for reading.
func openSequential(path string) (*os.File, error) {
	return os.Open(path)
}
