package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrBusy indicates another live process holds the cache open.
var ErrBusy = errors.New("cache in use by another process")

const (
	ownerFile = "owner.pid"
	lockFile  = "LOCK"
)

// BusyError reports the process holding the cache.
type BusyError struct {
	Path string
	PID  int
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("cache %s in use by process %d", e.Path, e.PID)
}

// Is reports whether target matches this error type.
func (e *BusyError) Is(target error) bool {
	return target == ErrBusy
}

// readOwner returns the PID recorded in the cache directory.
func readOwner(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, ownerFile))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid owner pid %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

func writeOwner(dir string) error {
	return os.WriteFile(filepath.Join(dir, ownerFile), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removeOwner(dir string) {
	_ = os.Remove(filepath.Join(dir, ownerFile))
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// recoverStale decides what to do after the store failed to open. A live
// owner yields a *BusyError. A dead owner has its artifacts removed and
// recovered is true, so the open can be retried once. Without an owner
// record nothing is touched.
func recoverStale(dir string) (recovered bool, err error) {
	pid, err := readOwner(dir)
	if err != nil {
		return false, nil //nolint:nilerr // no owner record means nothing to recover
	}
	if isProcessRunning(pid) {
		return false, &BusyError{Path: dir, PID: pid}
	}

	logger.Warn("cleaning up stale cache lock", "path", dir, "stale_pid", pid)
	removeOwner(dir)
	if err := os.Remove(filepath.Join(dir, lockFile)); err != nil {
		return false, nil //nolint:nilerr // the original open error is reported instead
	}
	return true, nil
}
