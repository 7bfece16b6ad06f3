// Package types provides core data types for the binmin tree minimizer.
// It includes entry classification, candidate file tasks, run statistics,
// and helpers for root-relative paths, natural ordering and size formatting.
package types

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maruel/natural"
)

// Kind classifies a tree entry.
type Kind int

// Entry kinds recognized by the collector.
const (
	KindDir Kind = iota
	KindFile
	KindSymlink
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Entry is a single classified path under a tree root.
type Entry struct {
	// Path is root-relative, slash separated, without a leading slash.
	Path string `json:"path"`

	// Kind is the entry classification.
	Kind Kind `json:"kind"`
}

// FileTask is a regular file that is a candidate for duplicate detection.
type FileTask struct {
	// Path is root-relative, slash separated.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModTime is the last modification time of the file.
	ModTime time.Time `json:"mod_time"`
}

// Identity pairs a file task with the content token computed for it.
type Identity struct {
	Task  FileTask
	Token string
}

// HashProgress reports duplicate detection progress.
type HashProgress struct {
	// Hashed is the number of candidates whose identity is known.
	Hashed int64

	// Total is the number of candidates to identify.
	Total int64

	// BytesHashed is the total size of the identified candidates.
	BytesHashed int64

	// CacheHits is the number of identities served from the cache.
	CacheHits int64

	// CurrentPath is the most recently identified path.
	CurrentPath string
}

// Stats summarizes a run. It is informational only.
type Stats struct {
	// EmptyCount is the number of zero-length files skipped.
	EmptyCount int `json:"empty_count" yaml:"empty_count"`

	// UniqueCount is the number of files skipped because their size is unique.
	UniqueCount int `json:"unique_count" yaml:"unique_count"`

	// DupCount is the number of files found to duplicate a canonical file.
	DupCount int `json:"dup_count" yaml:"dup_count"`

	// DelCount is the number of derived paths removed by commit.
	DelCount int `json:"del_count" yaml:"del_count"`

	// BytesReclaimable is the total size of the duplicate files.
	BytesReclaimable int64 `json:"bytes_reclaimable" yaml:"bytes_reclaimable"`
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// NaturalLess reports whether a sorts before b in natural order, where
// embedded numbers compare by value ("file2" < "file10").
func NaturalLess(a, b string) bool {
	return natural.Less(a, b)
}

// SortNatural sorts paths in place in natural order.
func SortNatural(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return natural.Less(paths[i], paths[j])
	})
}

// RelPath converts an absolute OS path under root into the root-relative
// slash form used by manifests. The root itself maps to "".
func RelPath(root, full string) (string, bool) {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// JoinRel joins a manifest path onto an OS root.
func JoinRel(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// CleanRel normalizes a slash separated path so that it has no leading
// slash and no dot segments.
func CleanRel(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}
