package types

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "dir", KindDir.String())
	assert.Equal(t, "file", KindFile.String())
	assert.Equal(t, "symlink", KindSymlink.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{3 * 1024 * 1024, "3.0 MiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.in))
	}
}

func TestNaturalOrder(t *testing.T) {
	assert.True(t, NaturalLess("file2", "file10"))
	assert.False(t, NaturalLess("file10", "file2"))

	paths := []string{"b/x10", "a", "b/x2", "b/x1"}
	SortNatural(paths)
	assert.Equal(t, []string{"a", "b/x1", "b/x2", "b/x10"}, paths)
}

func TestRelPath(t *testing.T) {
	root := filepath.FromSlash("/data/tree")
	tests := []struct {
		name   string
		full   string
		want   string
		wantOK bool
	}{
		{"root itself", root, "", true},
		{"nested", filepath.Join(root, "a", "b.txt"), "a/b.txt", true},
		{"sibling", filepath.FromSlash("/data/other"), "", false},
		{"parent", filepath.FromSlash("/data"), "", false},
		{"dotdot prefix name", filepath.Join(root, "..x"), "..x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RelPath(root, tt.full)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinRelAndCleanRel(t *testing.T) {
	assert.Equal(t, filepath.Join("/r", "a", "b"), JoinRel("/r", "a/b"))
	assert.Equal(t, "a/b", CleanRel("/a/./b/"))
	assert.Equal(t, "b", CleanRel("a/../b"))
	assert.Equal(t, "", CleanRel("/"))
	assert.Equal(t, "x", CleanRel("../../x"))
}
