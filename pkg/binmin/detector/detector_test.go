package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/content"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

// tree writes files under a temp root and returns the root and the tasks.
func tree(t *testing.T, files map[string]string) (string, []types.FileTask) {
	t.Helper()
	root := t.TempDir()
	var tasks []types.FileTask
	for rel, data := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(data), 0o644))
		info, err := os.Stat(full)
		require.NoError(t, err)
		tasks = append(tasks, types.FileTask{Path: rel, Size: info.Size(), ModTime: info.ModTime()})
	}
	return root, tasks
}

func opts(root string) Options {
	o := DefaultOptions()
	o.Root = root
	return o
}

func TestDetect_Fixture(t *testing.T) {
	root, tasks := tree(t, map[string]string{
		"duplicate.txt":     "abc",
		"hardlink.txt":      "abc",
		"hardlink2.txt":     "abc",
		"regular_file.txt":  "abc",
		"folder/unique.txt": "xyz",
	})

	res, err := Detect(context.Background(), tasks, opts(root))
	require.NoError(t, err)

	require.Len(t, res.Clusters, 1)
	assert.Equal(t, Cluster{
		Canonical: "duplicate.txt",
		Members:   []string{"hardlink.txt", "hardlink2.txt", "regular_file.txt"},
		Size:      3,
	}, res.Clusters[0])
	assert.Equal(t, 3, res.Stats.DupCount)
	assert.Equal(t, int64(9), res.Stats.BytesReclaimable)
	assert.Equal(t, 0, res.Stats.UniqueCount)
	assert.Equal(t, 5, res.Hashed)
}

func TestDetect_NaturalCanonicalAndOrder(t *testing.T) {
	root, tasks := tree(t, map[string]string{
		"b/file10": "same",
		"b/file9":  "same",
		"a/x":      "other",
		"a/y":      "other",
		"solo":     "different length",
		"empty1":   "",
		"empty2":   "",
	})

	res, err := Detect(context.Background(), tasks, opts(root))
	require.NoError(t, err)

	require.Len(t, res.Clusters, 2)
	assert.Equal(t, "a/x", res.Clusters[0].Canonical)
	assert.Equal(t, []string{"a/y"}, res.Clusters[0].Members)
	assert.Equal(t, "b/file9", res.Clusters[1].Canonical)
	assert.Equal(t, []string{"b/file10"}, res.Clusters[1].Members)
	assert.Equal(t, []string{"b/file9", "b/file10"}, res.Clusters[1].Paths())

	assert.Equal(t, 2, res.Stats.EmptyCount)
	assert.Equal(t, 1, res.Stats.UniqueCount)
	assert.Equal(t, 2, res.Stats.DupCount)
}

func TestDetect_DupCountIsMembersNotCanonicals(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 4; i++ {
		files[fmt.Sprintf("x%d", i)] = "xxxx"
		files[fmt.Sprintf("y%d", i)] = "yyyy"
	}
	root, tasks := tree(t, files)

	res, err := Detect(context.Background(), tasks, opts(root))
	require.NoError(t, err)
	assert.Len(t, res.Clusters, 2)
	assert.Equal(t, 6, res.Stats.DupCount)
}

func TestDetect_Errors(t *testing.T) {
	t.Run("empty tree", func(t *testing.T) {
		_, err := Detect(context.Background(), nil, opts(t.TempDir()))
		assert.ErrorIs(t, err, binerrors.ErrEmptyTree)
	})

	t.Run("all unique sizes", func(t *testing.T) {
		root, tasks := tree(t, map[string]string{"a": "1", "b": "22", "c": ""})
		_, err := Detect(context.Background(), tasks, opts(root))
		assert.ErrorIs(t, err, binerrors.ErrNoDuplicates)
	})

	t.Run("same size different content", func(t *testing.T) {
		root, tasks := tree(t, map[string]string{"a": "abc", "b": "abd"})
		_, err := Detect(context.Background(), tasks, opts(root))
		assert.ErrorIs(t, err, binerrors.ErrNoDuplicates)
	})

	t.Run("missing file", func(t *testing.T) {
		root, tasks := tree(t, map[string]string{"a": "abc", "b": "abc"})
		require.NoError(t, os.Remove(filepath.Join(root, "b")))

		res, err := Detect(context.Background(), tasks, opts(root))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, binerrors.ErrComparison)
		var cmp *binerrors.ComparisonError
		require.ErrorAs(t, err, &cmp)
		assert.Equal(t, filepath.Join(root, "b"), cmp.Path)
	})
}

type failingIdentifier struct{ err error }

func (f failingIdentifier) Identity(string, int64) (string, error) { return "", f.err }

func TestDetect_IdentifierErrorIsWrapped(t *testing.T) {
	root, tasks := tree(t, map[string]string{"a": "abc", "b": "abc"})
	o := opts(root)
	boom := errors.New("boom")
	o.Identifier = failingIdentifier{err: boom}

	_, err := Detect(context.Background(), tasks, o)
	assert.ErrorIs(t, err, binerrors.ErrComparison)
	assert.ErrorIs(t, err, boom)
}

// countingIdentifier records the peak number of concurrent calls.
type countingIdentifier struct {
	inner   content.Identifier
	active  atomic.Int64
	peak    atomic.Int64
	calls   atomic.Int64
	barrier time.Duration
}

func (c *countingIdentifier) Identity(path string, size int64) (string, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	c.calls.Add(1)
	time.Sleep(c.barrier)
	return c.inner.Identity(path, size)
}

func TestDetect_WorkerLimit(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("f%02d", i)] = "same"
	}
	root, tasks := tree(t, files)

	id := &countingIdentifier{inner: content.NewHasher(content.SHA256), barrier: 2 * time.Millisecond}
	o := opts(root)
	o.Workers = 3
	o.Identifier = id

	res, err := Detect(context.Background(), tasks, o)
	require.NoError(t, err)
	assert.Equal(t, int64(40), id.calls.Load())
	assert.LessOrEqual(t, id.peak.Load(), int64(3))
	assert.Equal(t, 39, res.Stats.DupCount)
}

func TestDetect_Canceled(t *testing.T) {
	root, tasks := tree(t, map[string]string{"a": "abc", "b": "abc"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Detect(ctx, tasks, opts(root))
	assert.ErrorIs(t, err, context.Canceled)
}

// memCache is an in-memory TokenCache.
type memCache struct {
	mu      sync.Mutex
	tokens  map[string]string
	updates int
}

func (m *memCache) Lookup(root, algorithm string, task types.FileTask) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[root+"|"+algorithm+"|"+task.Path]
	return tok, ok
}

func (m *memCache) Update(root, algorithm string, ids []types.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	for _, id := range ids {
		m.tokens[root+"|"+algorithm+"|"+id.Task.Path] = id.Token
	}
	return nil
}

func TestDetect_Cache(t *testing.T) {
	root, tasks := tree(t, map[string]string{"a": "abc", "b": "abc", "c": "abd"})
	cache := &memCache{tokens: map[string]string{}}

	o := opts(root)
	o.Cache = cache
	first, err := Detect(context.Background(), tasks, o)
	require.NoError(t, err)
	assert.Equal(t, 0, first.CacheHits)
	assert.Len(t, cache.tokens, 3)

	id := &countingIdentifier{inner: content.NewHasher(content.SHA256)}
	o.Identifier = id
	second, err := Detect(context.Background(), tasks, o)
	require.NoError(t, err)
	// countingIdentifier has no Algorithm method, so its tokens live in a
	// separate namespace and nothing is reused.
	assert.Equal(t, 0, second.CacheHits)
	assert.Equal(t, int64(3), id.calls.Load())
	assert.Equal(t, first.Clusters, second.Clusters)

	o.Identifier = content.NewHasher(content.SHA256)
	third, err := Detect(context.Background(), tasks, o)
	require.NoError(t, err)
	assert.Equal(t, 3, third.CacheHits)
}

func TestDetect_Progress(t *testing.T) {
	root, tasks := tree(t, map[string]string{"a": "abc", "b": "abc"})
	var last atomic.Value
	o := opts(root)
	o.OnProgress = func(p types.HashProgress) { last.Store(p) }

	_, err := Detect(context.Background(), tasks, o)
	require.NoError(t, err)

	p, ok := last.Load().(types.HashProgress)
	require.True(t, ok)
	assert.Equal(t, int64(2), p.Total)
	assert.Equal(t, int64(2), p.Hashed)
	assert.Equal(t, int64(6), p.BytesHashed)
}
