package content

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", SHA256, false},
		{"sha256", SHA256, false},
		{"SHA256", SHA256, false},
		{"xxhash", XXHash, false},
		{"xxh64", XXHash, false},
		{"md5", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasher_Identity(t *testing.T) {
	for _, algo := range []Algorithm{SHA256, XXHash} {
		t.Run(string(algo), func(t *testing.T) {
			dir := t.TempDir()
			a := writeFile(t, dir, "a.bin", "abc")
			b := writeFile(t, dir, "b.bin", "abc")
			c := writeFile(t, dir, "c.bin", "xyz")

			h := NewHasher(algo)
			ta, err := h.Identity(a, 3)
			require.NoError(t, err)
			tb, err := h.Identity(b, 3)
			require.NoError(t, err)
			tc, err := h.Identity(c, 3)
			require.NoError(t, err)

			assert.Equal(t, ta, tb)
			assert.NotEqual(t, ta, tc)
			assert.True(t, strings.HasPrefix(ta, "3:"+string(algo)+":"))
		})
	}
}

func TestHasher_Identity_SizeMismatch(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.bin", "abcdef")

	_, err := NewHasher(SHA256).Identity(a, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, binerrors.ErrComparison)
}

func TestHasher_Identity_Missing(t *testing.T) {
	_, err := NewHasher("").Identity(filepath.Join(t.TempDir(), "missing"), 1)

	var cmpErr *binerrors.ComparisonError
	require.ErrorAs(t, err, &cmpErr)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEqual(t *testing.T) {
	dir := t.TempDir()
	big := bytes.Repeat([]byte("0123456789"), readBufferSize/5)
	bigOther := append([]byte{}, big...)
	bigOther[len(bigOther)-1] = 'x'

	a := writeFile(t, dir, "a", "abc")
	b := writeFile(t, dir, "b", "abc")
	c := writeFile(t, dir, "c", "abd")
	d := writeFile(t, dir, "d", "abcd")
	e := writeFile(t, dir, "e", string(big))
	f := writeFile(t, dir, "f", string(big))
	g := writeFile(t, dir, "g", string(bigOther))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(a, link))

	tests := []struct {
		name string
		x, y string
		want bool
	}{
		{"same content", a, b, true},
		{"same size different content", a, c, false},
		{"different size", a, d, false},
		{"large equal", e, f, true},
		{"large differs at end", e, g, false},
		{"symlink followed", link, b, true},
		{"same file", a, a, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Equal(tt.x, tt.y)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEqual_Directory(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", "abc")

	got, err := Equal(dir, a)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEqual_Missing(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", "abc")

	_, err := Equal(a, filepath.Join(dir, "nope"))
	assert.ErrorIs(t, err, binerrors.ErrComparison)
}
