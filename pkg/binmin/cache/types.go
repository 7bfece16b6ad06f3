package cache

import (
	"bytes"
	"encoding/gob"
)

// CacheVersion is incremented when the entry format changes. Entries with
// another version are treated as misses.
const CacheVersion = 1

// KeySeparator separates root from relative path in cache keys.
const KeySeparator = '\x00'

// CachedToken is the stored identity of one file.
type CachedToken struct {
	Version   int
	Algorithm string
	Token     string
	Size      int64 // File size in bytes at hashing time
	Mtime     int64 // Modification time as UnixNano at hashing time
}

// Encode serializes the entry to bytes using gob.
func (e *CachedToken) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *CachedToken) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// Matches reports whether the entry is still valid for a file with the given
// algorithm, size and modification time.
func (e *CachedToken) Matches(algorithm string, size, mtime int64) bool {
	return e.Version == CacheVersion &&
		e.Algorithm == algorithm &&
		e.Size == size &&
		e.Mtime == mtime &&
		e.Token != ""
}

// MakeKey creates a cache key from root and relative path.
// Format: <root>\x00<relative_path>
func MakeKey(root, relPath string) []byte {
	return []byte(root + string(KeySeparator) + relPath)
}

// ParseKey extracts root and relative path from a cache key.
func ParseKey(key []byte) (root, relPath string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}

// MakeKeyPrefix returns the prefix for all keys under a root.
func MakeKeyPrefix(root string) []byte {
	return []byte(root + string(KeySeparator))
}
