// Package treediff lists directory trees and computes the ordered patch
// that turns one tree into another.
//
// Symlinks are never descended. A symlink to a regular file is compared as
// that file, a symlink to a directory only ever equals another link to the
// same directory, and a dangling symlink never equals anything.
package treediff

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/binmin/pkg/binmin/logging"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

var logger = logging.Get("verify")

// OpKind is the kind of a patch operation.
type OpKind string

// Patch operation kinds.
const (
	Mkdir  OpKind = "mkdir"
	Rmdir  OpKind = "rmdir"
	Create OpKind = "create"
	Remove OpKind = "remove"
	Change OpKind = "change"
)

// IsDir reports whether the operation only touches a directory.
func (k OpKind) IsDir() bool {
	return k == Mkdir || k == Rmdir
}

// Op is one patch operation on a root-relative path.
type Op struct {
	Kind OpKind `json:"kind" yaml:"kind"`
	Path string `json:"path" yaml:"path"`
}

// String renders the op as "<kind> /<path>".
func (o Op) String() string {
	return string(o.Kind) + " /" + o.Path
}

// Patch is an ordered list of operations.
type Patch []Op

// Empty reports whether the trees were identical.
func (p Patch) Empty() bool {
	return len(p) == 0
}

// OnlyDirs reports whether every operation is a mkdir or rmdir.
func (p Patch) OnlyDirs() bool {
	for _, op := range p {
		if !op.Kind.IsDir() {
			return false
		}
	}
	return true
}

// Strings renders every op with Op.String.
func (p Patch) Strings() []string {
	out := make([]string, len(p))
	for i, op := range p {
		out[i] = op.String()
	}
	return out
}

// Count returns the number of operations per kind.
func (p Patch) Count() map[OpKind]int {
	out := make(map[OpKind]int)
	for _, op := range p {
		out[op.Kind]++
	}
	return out
}

// EqualFunc reports whether two files hold the same content.
type EqualFunc func(a, b string) (bool, error)

// Entry is one listed path.
type Entry struct {
	// Path is root-relative and slash separated.
	Path string

	// Full is the OS path.
	Full string

	// Dir is true for real directories.
	Dir bool

	// Symlink is true when the entry is a symlink.
	Symlink bool

	// DirLink is true for a symlink resolving to a directory.
	DirLink bool

	// Broken is true for a symlink whose target does not exist.
	Broken bool
}

// List returns every entry under root, root excluded, in natural order.
func List(root string) ([]Entry, error) {
	var (
		mu      sync.Mutex
		entries []Entry
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", full, err)
		}
		rel, ok := types.RelPath(root, full)
		if !ok {
			return fmt.Errorf("path %s escapes root %s", full, root)
		}
		if rel == "" {
			return nil
		}

		e := Entry{Path: rel, Full: full, Dir: d.IsDir()}
		if d.Type()&fs.ModeSymlink != 0 {
			e.Symlink = true
			info, statErr := os.Stat(full)
			switch {
			case statErr != nil:
				e.Broken = true
			case info.IsDir():
				e.DirLink = true
			}
		}

		mu.Lock()
		entries = append(entries, e)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return types.NaturalLess(entries[i].Path, entries[j].Path)
	})
	return entries, nil
}

// Diff returns the patch that turns tree a into tree b.
//
// Operations are ordered so the patch can be replayed: removals deepest
// first, then additions parents first, then changes. Files present on both
// sides are compared with eq; an error from eq aborts the diff.
func Diff(a, b string, eq EqualFunc) (Patch, error) {
	left, err := List(a)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", a, err)
	}
	right, err := List(b)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", b, err)
	}
	return diffEntries(left, right, eq)
}

func diffEntries(left, right []Entry, eq EqualFunc) (Patch, error) {
	rightByPath := make(map[string]Entry, len(right))
	for _, e := range right {
		rightByPath[e.Path] = e
	}
	leftByPath := make(map[string]Entry, len(left))
	for _, e := range left {
		leftByPath[e.Path] = e
	}

	var removals, additions, changes Patch

	for _, l := range left {
		r, ok := rightByPath[l.Path]
		if !ok {
			removals = append(removals, Op{Kind: removeKind(l), Path: l.Path})
			continue
		}
		if l.Dir != r.Dir {
			removals = append(removals, Op{Kind: removeKind(l), Path: l.Path})
			additions = append(additions, Op{Kind: addKind(r), Path: r.Path})
			continue
		}
		if l.Dir {
			continue
		}
		same, err := sameFile(l, r, eq)
		if err != nil {
			return nil, err
		}
		if !same {
			changes = append(changes, Op{Kind: Change, Path: l.Path})
		}
	}

	for _, r := range right {
		if _, ok := leftByPath[r.Path]; !ok {
			additions = append(additions, Op{Kind: addKind(r), Path: r.Path})
		}
	}

	// Children before parents.
	sort.SliceStable(removals, func(i, j int) bool {
		di, dj := depth(removals[i].Path), depth(removals[j].Path)
		if di != dj {
			return di > dj
		}
		return types.NaturalLess(removals[j].Path, removals[i].Path)
	})
	sort.SliceStable(additions, func(i, j int) bool {
		return types.NaturalLess(additions[i].Path, additions[j].Path)
	})

	patch := make(Patch, 0, len(removals)+len(additions)+len(changes))
	patch = append(patch, removals...)
	patch = append(patch, additions...)
	patch = append(patch, changes...)

	if len(patch) > 0 {
		logger.Debug("trees differ", "ops", len(patch), "counts", patch.Count())
	}
	return patch, nil
}

// sameFile compares two non-directory entries.
func sameFile(l, r Entry, eq EqualFunc) (bool, error) {
	if l.Broken || r.Broken {
		return false, nil
	}
	if l.DirLink || r.DirLink {
		if !l.DirLink || !r.DirLink {
			return false, nil
		}
		li, err := os.Stat(l.Full)
		if err != nil {
			return false, err
		}
		ri, err := os.Stat(r.Full)
		if err != nil {
			return false, err
		}
		return os.SameFile(li, ri), nil
	}
	return eq(l.Full, r.Full)
}

func removeKind(e Entry) OpKind {
	if e.Dir {
		return Rmdir
	}
	return Remove
}

func addKind(e Entry) OpKind {
	if e.Dir {
		return Mkdir
	}
	return Create
}

func depth(p string) int {
	return strings.Count(p, "/")
}
