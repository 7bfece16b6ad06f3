//go:build linux

package content

import (
	"os"

	"golang.org/x/sys/unix"
)

// openSequential opens path for reading and hints the kernel that it will
// be read front to back once.
func openSequential(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	// Advisory only; ignore failures on filesystems that don't support it.
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	return f, nil
}
