package restore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
)

func sourceTree(t *testing.T) (string, *manifest.Manifest) {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "a.so"), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("readme"), 0o644))

	m := manifest.New(
		[]string{"lib", "empty", "deep/er"},
		map[string][]string{"lib/a.so": {"lib/b.so", "other/c.so"}},
		[]string{"README"},
		nil,
	)
	return src, m
}

func TestParseLinkKind(t *testing.T) {
	tests := []struct {
		in      string
		want    LinkKind
		wantErr bool
	}{
		{"", Symlink, false},
		{"symlink", Symlink, false},
		{"SOFT", Symlink, false},
		{"hardlink", Hardlink, false},
		{"hard", Hardlink, false},
		{"junction", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLinkKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownLinkKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaterialize_Symlinks(t *testing.T) {
	src, m := sourceTree(t)
	shadow := filepath.Join(t.TempDir(), "shadow")

	status, err := Materialize(m, src, shadow, Symlink, Options{})
	require.NoError(t, err)
	assert.True(t, status.Loaded)
	assert.Equal(t, 4, status.Links)
	assert.Zero(t, status.Folders)

	for _, rel := range []string{"lib/a.so", "lib/b.so", "other/c.so"} {
		target, err := os.Readlink(filepath.Join(shadow, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, filepath.Join(src, "lib", "a.so"), target, rel)

		data, err := os.ReadFile(filepath.Join(shadow, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, "abc", string(data))
	}

	target, err := os.Readlink(filepath.Join(shadow, "README"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(src, "README"), target)

	_, err = os.Stat(filepath.Join(shadow, "empty"))
	assert.True(t, os.IsNotExist(err))
}

func TestMaterialize_Hardlinks(t *testing.T) {
	src, m := sourceTree(t)
	shadow := filepath.Join(t.TempDir(), "shadow")

	_, err := Materialize(m, src, shadow, Hardlink, Options{})
	require.NoError(t, err)

	orig, err := os.Stat(filepath.Join(src, "lib", "a.so"))
	require.NoError(t, err)
	for _, rel := range []string{"lib/a.so", "lib/b.so", "other/c.so"} {
		info, err := os.Lstat(filepath.Join(shadow, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.True(t, info.Mode().IsRegular(), rel)
		assert.True(t, os.SameFile(orig, info), rel)
	}
}

func TestMaterialize_Folders(t *testing.T) {
	src, m := sourceTree(t)
	shadow := filepath.Join(t.TempDir(), "shadow")

	status, err := Materialize(m, src, shadow, Symlink, Options{Folders: true})
	require.NoError(t, err)
	assert.Equal(t, 3, status.Folders)

	for _, dir := range []string{"empty", "deep/er", "lib"} {
		info, err := os.Stat(filepath.Join(shadow, filepath.FromSlash(dir)))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
}

func TestMaterialize_FolderLinks(t *testing.T) {
	for _, kind := range []LinkKind{Symlink, Hardlink} {
		t.Run(string(kind), func(t *testing.T) {
			src := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(src, "v1"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(src, "v1", "lib.so"), []byte("xyz"), 0o644))

			m := manifest.New(
				[]string{"v1"},
				map[string][]string{"v1": {"current", "alias/latest"}},
				[]string{"v1/lib.so"},
				nil,
			)
			shadow := filepath.Join(t.TempDir(), "shadow")

			status, err := Materialize(m, src, shadow, kind, Options{})
			require.NoError(t, err)
			assert.Equal(t, 3, status.Links)

			info, err := os.Lstat(filepath.Join(shadow, "v1"))
			require.NoError(t, err)
			assert.True(t, info.IsDir())

			for _, rel := range []string{"current", "alias/latest"} {
				target, err := os.Readlink(filepath.Join(shadow, filepath.FromSlash(rel)))
				require.NoError(t, err, rel)
				assert.Equal(t, filepath.Join(src, "v1"), target, rel)
			}
		})
	}
}

func TestMaterialize_ExistingTargetIsNoop(t *testing.T) {
	src, m := sourceTree(t)
	shadow := filepath.Join(t.TempDir(), "shadow")

	first, err := Materialize(m, src, shadow, Symlink, Options{})
	require.NoError(t, err)
	require.True(t, first.Loaded)

	before, err := os.ReadDir(shadow)
	require.NoError(t, err)
	marker := filepath.Join(shadow, "lib")
	infoBefore, err := os.Stat(marker)
	require.NoError(t, err)

	second, err := Materialize(m, src, shadow, Symlink, Options{Folders: true})
	require.NoError(t, err)
	assert.False(t, second.Loaded)
	assert.Zero(t, second.Links)

	after, err := os.ReadDir(shadow)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
	infoAfter, err := os.Stat(marker)
	require.NoError(t, err)
	assert.Equal(t, infoBefore.ModTime(), infoAfter.ModTime())
	_, err = os.Stat(filepath.Join(shadow, "empty"))
	assert.True(t, os.IsNotExist(err))
}

func TestMaterialize_ExistingFileTarget(t *testing.T) {
	src, m := sourceTree(t)
	shadow := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(shadow, []byte("x"), 0o644))

	status, err := Materialize(m, src, shadow, Symlink, Options{})
	require.NoError(t, err)
	assert.False(t, status.Loaded)
}

func TestMaterialize_Errors(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		src, m := sourceTree(t)
		_, err := Materialize(m, src, filepath.Join(t.TempDir(), "s"), LinkKind("junction"), Options{})
		assert.ErrorIs(t, err, ErrUnknownLinkKind)
	})

	t.Run("hardlink to missing canonical", func(t *testing.T) {
		src := t.TempDir()
		m := manifest.New(nil, map[string][]string{"gone": {"copy"}}, nil, nil)

		_, err := Materialize(m, src, filepath.Join(t.TempDir(), "s"), Hardlink, Options{})
		assert.ErrorIs(t, err, binerrors.ErrMaterialization)
		var me *binerrors.MaterializationError
		require.ErrorAs(t, err, &me)
		assert.Contains(t, me.Path, "gone")
	})

	t.Run("path collision", func(t *testing.T) {
		src, _ := sourceTree(t)
		// "lib" as both a derived file and the parent of another.
		m := manifest.New(nil, map[string][]string{"lib/a.so": {"x", "x/y"}}, nil, nil)

		_, err := Materialize(m, src, filepath.Join(t.TempDir(), "s"), Symlink, Options{})
		assert.ErrorIs(t, err, binerrors.ErrMaterialization)
	})
}
