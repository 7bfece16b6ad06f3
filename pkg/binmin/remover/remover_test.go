package remover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
		paths = append(paths, p)
	}
	return paths
}

// fakeTrash returns a Trash for goos whose commands delete the last
// argument when succeed is true.
func fakeTrash(goos string, succeed bool, calls *[]string) *Trash {
	return &Trash{
		goos:     goos,
		lookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
		run: func(_ context.Context, name string, args ...string) error {
			*calls = append(*calls, filepath.Base(name))
			if !succeed {
				return errors.New("exit status 1")
			}
			return os.Remove(args[len(args)-1])
		},
	}
}

func TestPermanent_Remove(t *testing.T) {
	dir := t.TempDir()
	paths := createFiles(t, dir, "a", "b")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(paths[0], link))

	removed, err := NewPermanent().Remove(context.Background(), []string{paths[1], link})
	require.NoError(t, err)
	assert.Equal(t, []string{paths[1], link}, removed)

	_, err = os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(paths[0])
	assert.NoError(t, err, "symlink target must survive")
}

func TestPermanent_StopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	paths := createFiles(t, dir, "a", "c")
	missing := filepath.Join(dir, "b")

	removed, err := NewPermanent().Remove(context.Background(), []string{paths[0], missing, paths[1]})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, []string{paths[0]}, removed)

	_, err = os.Stat(paths[1])
	assert.NoError(t, err)
}

func TestPermanent_RefusesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	require.NoError(t, os.Mkdir(dir, 0o755))

	removed, err := NewPermanent().Remove(context.Background(), []string{dir})
	assert.Error(t, err)
	assert.Empty(t, removed)
	assert.DirExists(t, dir)
}

func TestPermanent_Canceled(t *testing.T) {
	paths := createFiles(t, t.TempDir(), "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	removed, err := NewPermanent().Remove(ctx, paths)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, removed)
	assert.FileExists(t, paths[0])
}

func TestTrash_Backends(t *testing.T) {
	tests := []struct {
		goos      string
		wantCalls []string
	}{
		{"darwin", []string{"osascript"}},
		{"linux", []string{"gio"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			paths := createFiles(t, t.TempDir(), "dup")
			if tt.goos == "darwin" {
				// The AppleScript argument is not a path; pretend Finder removed it.
				var calls []string
				tr := fakeTrash(tt.goos, true, &calls)
				tr.run = func(_ context.Context, name string, _ ...string) error {
					calls = append(calls, name)
					return os.Remove(paths[0])
				}
				removed, err := tr.Remove(context.Background(), paths)
				require.NoError(t, err)
				assert.Equal(t, paths, removed)
				assert.Equal(t, tt.wantCalls, calls)
				return
			}

			var calls []string
			removed, err := fakeTrash(tt.goos, true, &calls).Remove(context.Background(), paths)
			require.NoError(t, err)
			assert.Equal(t, paths, removed)
			assert.Equal(t, tt.wantCalls, calls)
			assert.NoFileExists(t, paths[0])
		})
	}
}

func TestTrash_LinuxFallsThroughToTrashPut(t *testing.T) {
	paths := createFiles(t, t.TempDir(), "dup")
	var calls []string
	tr := fakeTrash("linux", true, &calls)
	tr.run = func(_ context.Context, name string, args ...string) error {
		calls = append(calls, filepath.Base(name))
		if filepath.Base(name) == "gio" {
			return errors.New("gio: operation not supported")
		}
		return os.Remove(args[len(args)-1])
	}

	_, err := tr.Remove(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, []string{"gio", "trash-put"}, calls)
}

func TestTrash_FallbackDelete(t *testing.T) {
	paths := createFiles(t, t.TempDir(), "dup")
	var calls []string

	removed, err := fakeTrash("linux", false, &calls).Remove(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, paths, removed)
	assert.Equal(t, []string{"gio", "trash-put"}, calls)
	assert.NoFileExists(t, paths[0])
}

func TestTrash_NoFallback(t *testing.T) {
	paths := createFiles(t, t.TempDir(), "dup")
	var calls []string
	tr := fakeTrash("plan9", false, &calls)
	tr.NoFallback = true

	removed, err := tr.Remove(context.Background(), paths)
	assert.ErrorIs(t, err, ErrNoTrash)
	assert.Empty(t, removed)
	assert.Empty(t, calls)
	assert.FileExists(t, paths[0])
}

func TestTrash_DanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "dangling")
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), link))
	var calls []string

	removed, err := fakeTrash("linux", true, &calls).Remove(context.Background(), []string{link})
	require.NoError(t, err)
	assert.Equal(t, []string{link}, removed)
	_, err = os.Lstat(link)
	assert.True(t, os.IsNotExist(err))
}

func TestTrash_MissingPath(t *testing.T) {
	var calls []string
	_, err := fakeTrash("linux", true, &calls).Remove(context.Background(), []string{"/nonexistent/binmin/x"})
	assert.Error(t, err)
	assert.Empty(t, calls)
}
