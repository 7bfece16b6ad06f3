// Package restore rebuilds a tree from a manifest by linking every path to
// its canonical file in a source tree.
package restore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/logging"
	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

var logger = logging.Get("restore")

// LinkKind selects the kind of link created in the target tree.
type LinkKind string

// Supported link kinds.
const (
	Symlink  LinkKind = "symlink"
	Hardlink LinkKind = "hardlink"
)

// ErrUnknownLinkKind is returned for an unsupported link kind name.
var ErrUnknownLinkKind = errors.New("unknown link kind")

// ParseLinkKind parses a link kind; empty means Symlink.
func ParseLinkKind(s string) (LinkKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "symlink", "soft":
		return Symlink, nil
	case "hardlink", "hard":
		return Hardlink, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownLinkKind, s)
	}
}

// Options tunes materialization.
type Options struct {
	// Folders also creates every folder recorded in the manifest, so empty
	// directories come back.
	Folders bool
}

// Status reports the outcome of Materialize.
type Status struct {
	// Loaded is false when the target already existed and nothing was
	// written.
	Loaded bool

	// Links is the number of links created.
	Links int

	// Folders is the number of folders created through Options.Folders.
	Folders int
}

// Materialize creates shadowRoot and fills it with links into sourceRoot:
// each canonical and each of its derived paths link to the canonical
// source file, and each unique file links to itself. Every derived path is
// one hop from its canonical, whatever chain it came from.
//
// A canonical that is a recorded folder is created as a directory and its
// derived paths become symlinks to the source folder, whatever kind is,
// since directories cannot be hard linked.
//
// If shadowRoot already exists nothing is written and Status.Loaded is
// false. Failures are returned as *binerrors.MaterializationError; links
// already created are left in place.
func Materialize(m *manifest.Manifest, sourceRoot, shadowRoot string, kind LinkKind, opts Options) (Status, error) {
	if kind == "" {
		kind = Symlink
	}
	if kind != Symlink && kind != Hardlink {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownLinkKind, kind)
	}

	if _, err := os.Lstat(shadowRoot); err == nil {
		logger.Warn("target already exists, not materializing", "path", shadowRoot)
		return Status{Loaded: false}, nil
	} else if !os.IsNotExist(err) {
		return Status{}, &binerrors.MaterializationError{Path: shadowRoot, Cause: err}
	}

	source, err := filepath.Abs(sourceRoot)
	if err != nil {
		return Status{}, &binerrors.MaterializationError{Path: sourceRoot, Cause: err}
	}

	if err := os.MkdirAll(shadowRoot, 0o755); err != nil {
		return Status{}, &binerrors.MaterializationError{Path: shadowRoot, Cause: err}
	}

	l := &linker{source: source, target: shadowRoot, kind: kind}
	status := Status{Loaded: true}

	if opts.Folders {
		for _, f := range m.Folders() {
			dir := types.JoinRel(shadowRoot, f)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return status, &binerrors.MaterializationError{Path: dir, Cause: err}
			}
			status.Folders++
		}
	}

	folders := make(map[string]bool)
	for _, f := range m.Folders() {
		folders[f] = true
	}

	for _, c := range m.Canonicals() {
		if folders[c] {
			n, err := l.linkFolder(c, m.Derived(c))
			status.Links += n
			if err != nil {
				return status, err
			}
			continue
		}
		if err := l.link(c, c); err != nil {
			return status, err
		}
		status.Links++
		for _, d := range m.Derived(c) {
			if err := l.link(c, d); err != nil {
				return status, err
			}
			status.Links++
		}
	}

	for _, u := range m.Unique() {
		if err := l.link(u, u); err != nil {
			return status, err
		}
		status.Links++
	}

	logger.Info("materialized tree",
		"source", source,
		"target", shadowRoot,
		"kind", string(kind),
		"links", status.Links,
		"folders", status.Folders)

	return status, nil
}

// linker creates links of one kind from a source tree into a target tree.
type linker struct {
	source string
	target string
	kind   LinkKind
}

// link makes target/rel point at source/canonical.
func (l *linker) link(canonical, rel string) error {
	from := types.JoinRel(l.source, canonical)
	to := types.JoinRel(l.target, rel)

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return &binerrors.MaterializationError{Path: to, Cause: err}
	}

	var err error
	switch l.kind {
	case Hardlink:
		err = os.Link(from, to)
	default:
		err = os.Symlink(from, to)
	}
	if err != nil {
		return &binerrors.MaterializationError{Path: to, Cause: err}
	}
	return nil
}

// linkFolder creates target/dir and a symlink to source/dir at each of
// links. It returns the number of links made.
func (l *linker) linkFolder(dir string, links []string) (int, error) {
	full := types.JoinRel(l.target, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return 0, &binerrors.MaterializationError{Path: full, Cause: err}
	}

	from := types.JoinRel(l.source, dir)
	for i, rel := range links {
		to := types.JoinRel(l.target, rel)
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return i, &binerrors.MaterializationError{Path: to, Cause: err}
		}
		if err := os.Symlink(from, to); err != nil {
			return i, &binerrors.MaterializationError{Path: to, Cause: err}
		}
	}
	return len(links), nil
}
