// Package consolidate folds duplicate clusters and pre-existing symlinks
// into a single chain-collapsed pack where every derived path points
// straight at one canonical file, or at a folder for directory links.
//
// Consolidate is a pure function: it copies its inputs and reports all of
// its bookkeeping, including the removed-key map, in its Output.
package consolidate

import (
	"fmt"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/detector"
	"github.com/jamesainslie/binmin/pkg/binmin/logging"
	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

var logger = logging.Get("consolidate")

// Input is everything consolidation reads.
type Input struct {
	// Pack is the collector's draft: every regular file and every symlink
	// target is a key, symlinks are listed under their target.
	Pack map[string][]string

	// Symlinks is the set of symlink paths in the tree.
	Symlinks map[string]struct{}

	// Files is the set of regular file paths in the tree.
	Files map[string]struct{}

	// Folders is the set of directory paths in the tree, root excluded.
	Folders map[string]struct{}

	// Clusters are the duplicate sets, in natural canonical order.
	Clusters []detector.Cluster

	// Removed maps keys already folded away to the canonical that absorbed
	// them. It may be nil.
	Removed map[string]string
}

// Output is the consolidated result.
type Output struct {
	// Pack maps each canonical to its derived paths. Keys never appear as
	// derived paths.
	Pack map[string][]string

	// Unique lists regular files with no duplicates and no links.
	Unique []string

	// Removed maps every folded-away key to the canonical that absorbed it.
	Removed map[string]string

	// NotFound lists references that do not resolve to a file or folder
	// in the tree.
	NotFound []string
}

// state is the working copy threaded through the passes.
type state struct {
	pack     map[string][]string
	removed  map[string]string
	notFound []string
	symlinks map[string]struct{}
	files    map[string]struct{}
	folders  map[string]struct{}
	folded   map[string]bool
}

// Consolidate resolves clusters and symlinks into the final pack.
//
// Passes, each in natural key order:
//  1. every cluster canonical absorbs its members, the symlinks already
//     pointing at it, and everything reachable from those;
//  2. every remaining regular file absorbs the symlink chains ending at it;
//  3. every remaining key that is a folder absorbs the links to it and
//     stays in the pack, so the links are rebuilt as directory links;
//  4. every remaining key that is neither a file, a folder nor a symlink (a
//     dangling or outside target) absorbs its chains and is then dropped
//     from the pack and reported in NotFound.
//
// A symlink key still present afterwards can only belong to a loop and
// yields a *binerrors.CycleError, as does any path reached twice while
// folding one canonical.
func Consolidate(in Input) (Output, error) {
	s := &state{
		pack:     make(map[string][]string, len(in.Pack)),
		removed:  make(map[string]string, len(in.Removed)),
		symlinks: in.Symlinks,
		files:    in.Files,
		folders:  in.Folders,
		folded:   make(map[string]bool),
	}
	for k, v := range in.Pack {
		s.pack[k] = append([]string{}, v...)
	}
	for k, v := range in.Removed {
		s.removed[k] = v
	}

	for _, c := range in.Clusters {
		seeds := append(append([]string{}, c.Members...), s.pack[c.Canonical]...)
		if err := s.fold(c.Canonical, seeds); err != nil {
			return Output{}, err
		}
	}

	for _, k := range sortedKeys(s.pack) {
		if _, ok := s.pack[k]; !ok || !s.isFile(k) || s.folded[k] {
			continue
		}
		if err := s.fold(k, s.pack[k]); err != nil {
			return Output{}, err
		}
	}

	for _, k := range sortedKeys(s.pack) {
		if _, ok := s.pack[k]; !ok || !s.isFolder(k) || s.folded[k] {
			continue
		}
		if err := s.fold(k, s.pack[k]); err != nil {
			return Output{}, err
		}
	}

	for _, k := range sortedKeys(s.pack) {
		if _, ok := s.pack[k]; !ok || s.isFile(k) || s.isFolder(k) || s.isSymlink(k) {
			continue
		}
		if err := s.fold(k, s.pack[k]); err != nil {
			return Output{}, err
		}
		logger.Warn("links point at a path that is not in the tree",
			"target", k, "links", len(s.pack[k]))
		delete(s.pack, k)
		s.notFound = append(s.notFound, k)
	}

	var loop []string
	for _, k := range sortedKeys(s.pack) {
		if s.isSymlink(k) {
			loop = append(loop, k)
		}
	}
	if len(loop) > 0 {
		return Output{}, &binerrors.CycleError{Paths: loop}
	}

	var unique []string
	for _, k := range sortedKeys(s.pack) {
		if len(s.pack[k]) == 0 {
			unique = append(unique, k)
			delete(s.pack, k)
		}
	}

	if err := manifest.ValidatePack(s.pack); err != nil {
		return Output{}, fmt.Errorf("consolidated pack is inconsistent: %w", err)
	}

	logger.Debug("consolidated",
		"canonicals", len(s.pack),
		"unique", len(unique),
		"removed", len(s.removed),
		"not_found", len(s.notFound))

	return Output{
		Pack:     s.pack,
		Unique:   unique,
		Removed:  s.removed,
		NotFound: s.notFound,
	}, nil
}

// fold makes c the canonical of seeds and of every path reachable from
// them, then stores the result as c's derived list.
func (s *state) fold(c string, seeds []string) error {
	worklist := append([]string{}, seeds...)
	seen := map[string]bool{c: true}
	queued := make(map[string]bool)
	trail := []string{c}
	var derived []string

	for i := 0; i < len(worklist); i++ {
		p := worklist[i]
		if seen[p] {
			return &binerrors.CycleError{Paths: append(trail, p)}
		}

		if list, isKey := s.pack[p]; isKey {
			seen[p] = true
			trail = append(trail, p)
			derived = append(derived, p)
			worklist = append(worklist, list...)
			s.removed[p] = c
			delete(s.pack, p)
			continue
		}

		if owner, ok := s.owner(p); ok {
			if owner == c {
				seen[p] = true
				derived = append(derived, p)
				continue
			}
			// p belongs to a canonical folded earlier; take that whole
			// group over. p comes back through the owner's list.
			if _, isKey := s.pack[owner]; isKey {
				if !queued[owner] {
					queued[owner] = true
					worklist = append(worklist, owner)
				}
				continue
			}
		}

		seen[p] = true
		if !s.isSymlink(p) && !s.isFile(p) {
			s.notFound = append(s.notFound, p)
			continue
		}
		derived = append(derived, p)
	}

	if derived == nil {
		derived = []string{}
	}
	s.pack[c] = derived
	s.folded[c] = true
	return nil
}

// owner resolves the canonical a removed key ended up under.
func (s *state) owner(p string) (string, bool) {
	cur, ok := s.removed[p]
	if !ok {
		return "", false
	}
	hops := map[string]bool{p: true}
	for {
		next, ok := s.removed[cur]
		if !ok || hops[cur] {
			return cur, true
		}
		hops[cur] = true
		cur = next
	}
}

func (s *state) isSymlink(p string) bool {
	_, ok := s.symlinks[p]
	return ok
}

func (s *state) isFile(p string) bool {
	_, ok := s.files[p]
	return ok
}

func (s *state) isFolder(p string) bool {
	_, ok := s.folders[p]
	return ok
}

func sortedKeys(pack map[string][]string) []string {
	keys := make([]string, 0, len(pack))
	for k := range pack {
		keys = append(keys, k)
	}
	types.SortNatural(keys)
	return keys
}
