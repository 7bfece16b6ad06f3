// Package guard detects changes to a source tree while a run is in flight.
//
// A Guard watches every directory under a root with fsnotify. The first
// create, write, remove or rename event is remembered, and Check reports it
// as binerrors.ErrTreeModified. Attribute-only events are ignored: creating
// a hard link to a source file changes its link count. Symlinks are not
// followed.
package guard

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/logging"
)

var logger = logging.Get("guard")

// ModifiedError reports the first change seen under the guarded root.
type ModifiedError struct {
	Path string
	Op   fsnotify.Op
}

func (e *ModifiedError) Error() string {
	return fmt.Sprintf("%s: %s %s", binerrors.ErrTreeModified, e.Op, e.Path)
}

// Unwrap returns ErrTreeModified.
func (e *ModifiedError) Unwrap() error {
	return binerrors.ErrTreeModified
}

// Guard watches a directory tree.
type Guard struct {
	watcher *fsnotify.Watcher
	root    string

	mu      sync.Mutex
	paths   map[string]bool
	changed *ModifiedError
	failure error
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// Start watches root and every directory below it until Close.
func Start(ctx context.Context, root string) (*Guard, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	g := &Guard{
		watcher: fsw,
		root:    absRoot,
		paths:   make(map[string]bool),
		done:    make(chan struct{}),
	}

	if err := g.watchTree(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	go g.run(runCtx)

	logger.Debug("guard started", "root", absRoot, "directories", g.watched())
	return g, nil
}

// watchTree adds a watch for dir and each directory below it.
func (g *Guard) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		return g.addWatch(path)
	})
}

func (g *Guard) addWatch(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.paths[path] {
		return nil
	}
	if err := g.watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	g.paths[path] = true
	return nil
}

func (g *Guard) watched() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.paths)
}

// run records events until ctx is canceled or the watcher closes.
func (g *Guard) run(ctx context.Context) {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			g.record(event)

		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("watcher error", "error", err)
			g.mu.Lock()
			if g.failure == nil {
				g.failure = err
			}
			g.mu.Unlock()
		}
	}
}

func (g *Guard) record(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	g.mu.Lock()
	first := g.changed == nil
	if first {
		g.changed = &ModifiedError{Path: event.Name, Op: event.Op}
	}
	g.mu.Unlock()

	if first {
		logger.Warn("source tree modified", "path", event.Name, "op", event.Op.String())
	}

	// New directories are watched so later changes inside them count too.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			_ = g.watchTree(event.Name)
		}
	}
}

// Check returns a *ModifiedError for the first change seen, or the first
// watcher error, or nil.
func (g *Guard) Check() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.changed != nil {
		changed := *g.changed
		return &changed
	}
	if g.failure != nil {
		return fmt.Errorf("%w: watcher failed: %w", binerrors.ErrTreeModified, g.failure)
	}
	return nil
}

// Close stops watching. It is safe to call more than once.
func (g *Guard) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.paths = make(map[string]bool)
	g.mu.Unlock()

	g.cancel()
	err := g.watcher.Close()
	<-g.done
	return err
}
