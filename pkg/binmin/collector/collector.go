// Package collector walks a tree and classifies every entry into the
// manifest draft: folders, regular-file candidates, and symlinks registered
// as derived members of their targets.
package collector

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/binmin/pkg/binmin/logging"
	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

var logger = logging.Get("collector")

// Options configures collection.
type Options struct {
	// RawSymlinkTargets takes a relative link target as root-relative.
	// By default it is resolved against the link's own directory.
	RawSymlinkTargets bool

	// Workers is the number of walking goroutines. Zero uses the fastwalk
	// default.
	Workers int
}

// DefaultOptions returns the default collection options.
func DefaultOptions() Options {
	return Options{}
}

// Collection is the output of a walk.
type Collection struct {
	// Root is the absolute tree root.
	Root string

	// Builder holds folders and the pack draft.
	Builder *manifest.Builder

	// Tasks are the regular files, in natural path order.
	Tasks []types.FileTask

	// Symlinks is the set of symlink paths seen.
	Symlinks map[string]struct{}

	// Files is the set of regular file paths seen.
	Files map[string]struct{}

	// Folders lists the directories seen, root excluded, in natural order.
	Folders []string
}

// IsSymlink reports whether p was collected as a symlink.
func (c *Collection) IsSymlink(p string) bool {
	_, ok := c.Symlinks[p]
	return ok
}

// IsFile reports whether p was collected as a regular file.
func (c *Collection) IsFile(p string) bool {
	_, ok := c.Files[p]
	return ok
}

// collector carries walk state shared by the concurrent fastwalk callbacks.
type collector struct {
	root string
	opts Options

	mu       sync.Mutex
	builder  *manifest.Builder
	tasks    []types.FileTask
	symlinks map[string]struct{}
	files    map[string]struct{}
	folders  []string
}

// Collect walks root and returns its classification. Any filesystem error
// stops the walk and is returned.
func Collect(ctx context.Context, root string, opts Options) (*Collection, error) {
	abs, err := validateRoot(root)
	if err != nil {
		return nil, err
	}

	c := &collector{
		root:     abs,
		opts:     opts,
		builder:  manifest.NewBuilder(),
		symlinks: make(map[string]struct{}),
		files:    make(map[string]struct{}),
	}

	conf := fastwalk.Config{Follow: false, NumWorkers: opts.Workers}
	if err := fastwalk.Walk(&conf, abs, c.visit(ctx)); err != nil {
		return nil, err
	}

	for _, f := range c.folders {
		c.builder.AddFolder(f)
	}
	types.SortNatural(c.folders)
	sortTasks(c.tasks)

	logger.Debug("collected tree",
		"root", abs,
		"folders", len(c.folders),
		"files", len(c.tasks),
		"symlinks", len(c.symlinks))

	return &Collection{
		Root:     abs,
		Builder:  c.builder,
		Tasks:    c.tasks,
		Symlinks: c.symlinks,
		Files:    c.files,
		Folders:  c.folders,
	}, nil
}

// visit returns the fastwalk callback.
func (c *collector) visit(ctx context.Context) fs.WalkDirFunc {
	return func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", full, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, ok := types.RelPath(c.root, full)
		if !ok {
			return fmt.Errorf("path %s escapes root %s", full, c.root)
		}

		switch {
		case d.IsDir():
			if rel != "" {
				c.addFolder(rel)
			}
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			return c.addSymlink(full, rel)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", full, err)
			}
			c.addFile(rel, info)
			return nil
		default:
			// Devices, sockets and pipes are not artifacts.
			logger.Debug("skipping special file", "path", rel, "mode", d.Type().String())
			return nil
		}
	}
}

func (c *collector) addFolder(rel string) {
	c.mu.Lock()
	c.folders = append(c.folders, rel)
	c.mu.Unlock()
}

func (c *collector) addFile(rel string, info fs.FileInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.builder.EnsureKey(rel)
	c.files[rel] = struct{}{}
	c.tasks = append(c.tasks, types.FileTask{
		Path:    rel,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	})
}

func (c *collector) addSymlink(full, rel string) error {
	target, err := os.Readlink(full)
	if err != nil {
		return fmt.Errorf("reading link %s: %w", full, err)
	}
	resolved := c.resolveTarget(full, rel, target)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.builder.AddDerived(resolved, rel)
	c.symlinks[rel] = struct{}{}
	return nil
}

// resolveTarget maps a link target to a root-relative path. Targets that
// leave the tree keep their absolute OS form, which never matches a
// collected path.
func (c *collector) resolveTarget(full, rel, target string) string {
	if filepath.IsAbs(target) {
		if inside, ok := types.RelPath(c.root, filepath.Clean(target)); ok && inside != "" {
			return inside
		}
		return filepath.Clean(target)
	}

	slashTarget := filepath.ToSlash(target)
	if c.opts.RawSymlinkTargets {
		return types.CleanRel(slashTarget)
	}

	joined := path.Join(path.Dir(rel), slashTarget)
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return filepath.Clean(filepath.Join(filepath.Dir(full), target))
	}
	return types.CleanRel(joined)
}

// validateRoot resolves the root to an absolute path and verifies it is a
// directory.
func validateRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s: %w", abs, os.ErrInvalid)
	}
	return abs, nil
}

func sortTasks(tasks []types.FileTask) {
	paths := make([]string, len(tasks))
	byPath := make(map[string]types.FileTask, len(tasks))
	for i, t := range tasks {
		paths[i] = t.Path
		byPath[t.Path] = t
	}
	types.SortNatural(paths)
	for i, p := range paths {
		tasks[i] = byPath[p]
	}
}
