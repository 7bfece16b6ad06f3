package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Manifest {
	return New(
		[]string{"lib", "bin", "lib", "lib10", "lib9"},
		map[string][]string{
			"bin/tool":  {"bin/tool-copy", "lib/tool"},
			"lib/a.so":  {"lib/b.so"},
			"lib/x2.so": {},
		},
		[]string{"README", "LICENSE"},
		[]string{"missing"},
	)
}

func TestNew_NormalizesAndCopies(t *testing.T) {
	pack := map[string][]string{"a": {"b"}}
	folders := []string{"z", "a"}
	m := New(folders, pack, nil, nil)

	pack["a"][0] = "mutated"
	folders[0] = "mutated"

	assert.Equal(t, []string{"b"}, m.Derived("a"))
	assert.Equal(t, []string{"a", "z"}, m.Folders())

	got := m.Pack()
	got["a"] = nil
	assert.Equal(t, []string{"b"}, m.Derived("a"))
}

func TestManifest_Accessors(t *testing.T) {
	m := sample()

	assert.Equal(t, []string{"bin", "lib", "lib9", "lib10"}, m.Folders())
	assert.Equal(t, []string{"bin/tool", "lib/a.so", "lib/x2.so"}, m.Canonicals())
	assert.Equal(t, []string{"LICENSE", "README"}, m.Unique())
	assert.Equal(t, []string{"missing"}, m.NotFound())
	assert.True(t, m.Has("lib/a.so"))
	assert.False(t, m.Has("lib/b.so"))
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 3, m.DerivedCount())
	assert.Empty(t, m.Derived("nope"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		m       *Manifest
		wantErr string
	}{
		{"valid", sample(), ""},
		{
			"derived is a key",
			New(nil, map[string][]string{"a": {"b"}, "b": {}}, nil, nil),
			"also a canonical path",
		},
		{
			"derived twice",
			New(nil, map[string][]string{"a": {"c"}, "b": {"c"}}, nil, nil),
			"listed under both",
		},
		{
			"unique is a key",
			New(nil, map[string][]string{"a": {"b"}}, []string{"a"}, nil),
			"unique path",
		},
		{
			"unique is derived",
			New(nil, map[string][]string{"a": {"b"}}, []string{"b"}, nil),
			"also derived",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJSON_WireShape(t *testing.T) {
	m := New([]string{"folder"}, map[string][]string{"a.txt": {"b.txt"}}, nil, nil)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"folders":["folder"],"pack":{"a.txt":["b.txt"]},"notFound":[]}`, string(data))
}

func TestJSON_DecodesOriginalShape(t *testing.T) {
	data := []byte(`{
		"folders": ["folder"],
		"pack": {"duplicate.txt": ["hardlink.txt"], "folder/unique.txt": []},
		"notFound": []
	}`)

	m, err := Decode(data, "manifest.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"duplicate.txt", "folder/unique.txt"}, m.Canonicals())
	assert.Empty(t, m.Derived("folder/unique.txt"))
	assert.Empty(t, m.Unique())
}

func TestSaveLoad(t *testing.T) {
	for _, name := range []string{"manifest.json", "manifest.yaml", "manifest.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, Save(sample(), path))

			_, err := os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, sample().Pack(), got.Pack())
			assert.Equal(t, sample().Folders(), got.Folders())
			assert.Equal(t, sample().Unique(), got.Unique())
			assert.Equal(t, sample().NotFound(), got.NotFound())
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	a, err := Encode(sample(), "m.json")
	require.NoError(t, err)
	b, err := Encode(sample(), "m.json")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"pack":`), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	inconsistent := filepath.Join(dir, "inconsistent.json")
	require.NoError(t, os.WriteFile(inconsistent, []byte(`{"pack":{"a":["b"],"b":[]}}`), 0o644))
	_, err = Load(inconsistent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid manifest")

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	b.AddFolder("dir")
	b.EnsureKey("file10")
	b.EnsureKey("file10")
	b.AddDerived("target", "link10")
	b.AddDerived("target", "link9")
	b.AddNotFound("gone")

	draft := b.Draft()
	assert.Equal(t, []string{"link9", "link10"}, draft["target"])
	assert.Equal(t, []string{}, draft["file10"])

	draft["target"] = nil
	assert.Len(t, b.Draft()["target"], 2)

	first := b.Build()
	b.ReplacePack(map[string][]string{"target": {"file10"}})
	b.SetUnique([]string{"other"})
	second := b.Build()

	assert.Equal(t, []string{"file10", "target"}, first.Canonicals())
	assert.Equal(t, []string{"target"}, second.Canonicals())
	assert.Equal(t, []string{"other"}, second.Unique())
	assert.Empty(t, first.Unique())
	assert.Equal(t, []string{"gone"}, second.NotFound())
	assert.Equal(t, []string{"dir"}, second.Folders())
}
