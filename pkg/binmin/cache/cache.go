// Package cache persists content identity tokens between runs so unchanged
// files are not re-hashed. Entries are keyed by tree root and root-relative
// path and are only trusted while the file's size and mtime still match.
package cache

import (
	"errors"
	"sync/atomic"

	"github.com/jamesainslie/binmin/pkg/binmin/logging"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

var logger = logging.Get("cache")

// Cache provides identity token lookups backed by a badger Store.
type Cache struct {
	dir    string
	store  *Store
	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens or creates a cache at the given directory. Only one process
// may hold a cache; when another live process does, Open returns a
// *BusyError. Lock files left by a dead process are removed and the open
// retried.
func Open(path string) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		recovered, busy := recoverStale(path)
		if busy != nil {
			return nil, busy
		}
		if !recovered {
			return nil, err
		}
		if store, err = OpenStore(path); err != nil {
			return nil, err
		}
	}

	if err := writeOwner(path); err != nil {
		logger.Warn("could not record cache owner", "path", path, "error", err)
	}
	return &Cache{dir: path, store: store}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	removeOwner(c.dir)
	return c.store.Close()
}

// Lookup returns the cached token for task under root when it was computed
// with the same algorithm and the file's size and mtime are unchanged.
func (c *Cache) Lookup(root, algorithm string, task types.FileTask) (string, bool) {
	entry, err := c.store.Get(root, task.Path)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("cache read failed", "path", task.Path, "error", err)
		}
		c.misses.Add(1)
		return "", false
	}
	if !entry.Matches(algorithm, task.Size, task.ModTime.UnixNano()) {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return entry.Token, true
}

// Update records freshly computed tokens for root.
func (c *Cache) Update(root, algorithm string, ids []types.Identity) error {
	if len(ids) == 0 {
		return nil
	}
	entries := make(map[string]*CachedToken, len(ids))
	for _, id := range ids {
		entries[id.Task.Path] = &CachedToken{
			Version:   CacheVersion,
			Algorithm: algorithm,
			Token:     id.Token,
			Size:      id.Task.Size,
			Mtime:     id.Task.ModTime.UnixNano(),
		}
	}
	logger.Debug("updating cache", "root", root, "entries", len(entries))
	return c.store.PutBatch(root, entries)
}

// Forget drops the entries of paths under root, typically after they were
// removed from disk.
func (c *Cache) Forget(root string, paths []string) error {
	for _, p := range paths {
		if err := c.store.Delete(root, p); err != nil {
			return err
		}
	}
	return nil
}

// Hits returns the number of successful lookups since Open.
func (c *Cache) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of failed lookups since Open.
func (c *Cache) Misses() int64 {
	return c.misses.Load()
}

// Count returns the number of cached entries under root (all roots when
// empty).
func (c *Cache) Count(root string) (int, error) {
	return c.store.Count(root)
}

// Clear removes all cached entries for a root.
func (c *Cache) Clear(root string) error {
	return c.store.DeletePrefix(root)
}

// ClearAll removes all cached entries.
func (c *Cache) ClearAll() error {
	return c.store.DeletePrefix("")
}
