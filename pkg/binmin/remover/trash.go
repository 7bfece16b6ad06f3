package remover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// commandTimeout is the maximum time to wait for one trash command.
const commandTimeout = 30 * time.Second

// ErrNoTrash is returned when no trash backend worked and fallback to
// permanent deletion is disabled.
var ErrNoTrash = errors.New("no usable system trash")

// Trash moves paths to the system trash.
// On macOS it asks Finder through AppleScript; on Linux it tries gio, then
// trash-put. Elsewhere, or when every backend fails, it deletes permanently
// unless NoFallback is set.
type Trash struct {
	// NoFallback returns ErrNoTrash instead of deleting permanently.
	NoFallback bool

	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewTrash returns a Trash remover for the running platform.
func NewTrash() *Trash {
	return &Trash{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Remove implements Remover.
func (t *Trash) Remove(ctx context.Context, paths []string) ([]string, error) {
	return removeEach(ctx, paths, t.moveToTrash)
}

// moveToTrash moves one path to the trash.
func (t *Trash) moveToTrash(ctx context.Context, path string) error {
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("cannot trash %q: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path for %q: %w", path, err)
	}

	var trashed bool
	switch t.goos {
	case "darwin":
		trashed = t.moveToTrashMacOS(ctx, absPath)
	case "linux":
		trashed = t.moveToTrashLinux(ctx, absPath)
	}
	if trashed {
		return nil
	}

	if t.NoFallback {
		return fmt.Errorf("cannot trash %q: %w", absPath, ErrNoTrash)
	}
	logger.Warn("no system trash available, deleting permanently", "path", absPath)
	return deleteFile(ctx, absPath)
}

// moveToTrashMacOS uses AppleScript so Finder's "Put Back" works.
func (t *Trash) moveToTrashMacOS(ctx context.Context, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	script := fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, path)
	return t.run(ctx, "osascript", "-e", script) == nil
}

// moveToTrashLinux tries gio (GNOME/GTK), then trash-cli (XDG).
func (t *Trash) moveToTrashLinux(ctx context.Context, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if gioPath, err := t.lookPath("gio"); err == nil {
		if err := t.run(ctx, gioPath, "trash", path); err == nil && gone(path) {
			return true
		}
	}

	if trashPath, err := t.lookPath("trash-put"); err == nil {
		if err := t.run(ctx, trashPath, path); err == nil && gone(path) {
			return true
		}
	}

	return false
}

// gone reports whether nothing is left at path.
func gone(path string) bool {
	_, err := os.Lstat(path)
	return os.IsNotExist(err)
}
