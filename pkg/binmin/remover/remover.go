// Package remover deletes derived paths during commit, either permanently
// or by moving them to the system trash.
package remover

import (
	"context"
	"fmt"
	"os"

	"github.com/jamesainslie/binmin/pkg/binmin/logging"
)

var logger = logging.Get("remover")

// Remover deletes paths. Remove stops at the first failure and returns the
// paths removed before it, in order.
type Remover interface {
	Remove(ctx context.Context, paths []string) ([]string, error)
}

// Permanent unlinks paths. Symlinks are removed, never followed, and
// directories are refused.
type Permanent struct{}

// NewPermanent returns a Permanent remover.
func NewPermanent() *Permanent {
	return &Permanent{}
}

// Remove implements Remover.
func (p *Permanent) Remove(ctx context.Context, paths []string) ([]string, error) {
	return removeEach(ctx, paths, deleteFile)
}

// removeEach applies fn to every path, checking ctx between paths.
func removeEach(ctx context.Context, paths []string, fn func(context.Context, string) error) ([]string, error) {
	removed := make([]string, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := fn(ctx, p); err != nil {
			logger.Error("removal failed", "path", p, "error", err)
			return removed, err
		}
		removed = append(removed, p)
	}
	logger.Debug("removed paths", "count", len(removed))
	return removed, nil
}

// deleteFile removes a file or symlink. It refuses directories because a
// derived path is never one.
func deleteFile(_ context.Context, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("cannot remove %q: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot remove %q: is a directory", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %q: %w", path, err)
	}
	return nil
}
