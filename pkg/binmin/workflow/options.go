// Package workflow runs the verify-then-commit minimization of a tree:
// collect, detect duplicates, consolidate links, materialize a shadow tree
// from the manifest, diff it against the source, and only then delete the
// derived paths.
package workflow

import (
	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/content"
	"github.com/jamesainslie/binmin/pkg/binmin/detector"
	"github.com/jamesainslie/binmin/pkg/binmin/journal"
	"github.com/jamesainslie/binmin/pkg/binmin/metrics"
	"github.com/jamesainslie/binmin/pkg/binmin/remover"
	"github.com/jamesainslie/binmin/pkg/binmin/restore"
	"github.com/jamesainslie/binmin/pkg/binmin/treediff"
	"github.com/jamesainslie/binmin/pkg/binmin/tuner"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

// Differ computes the patch from the source tree to the shadow tree.
type Differ func(source, shadow string) (treediff.Patch, error)

// Options configures a run.
type Options struct {
	// SendToTrash moves derived paths to the system trash instead of
	// deleting them.
	SendToTrash bool

	// DryRun stops after verification; nothing is deleted.
	DryRun bool

	// Strict rejects any difference, including directory-only ones.
	Strict bool

	// LinkKind is used to materialize the shadow tree.
	LinkKind restore.LinkKind

	// Workers bounds concurrent identity computations. Zero sizes the
	// pool from the CPU count and available memory.
	Workers int

	// WalkWorkers is the number of directory walking goroutines. Zero
	// sizes it from the CPU count.
	WalkWorkers int

	// Hash selects the identity algorithm. Ignored when Identifier is set.
	Hash content.Algorithm

	// Identifier overrides the content hasher.
	Identifier content.Identifier

	// RawSymlinkTargets takes relative link targets as root-relative
	// instead of resolving them against the link's directory.
	RawSymlinkTargets bool

	// ShadowDir is the parent for the private shadow directory. Empty
	// means the system temp dir for symlinks and the target's parent
	// directory for hardlinks, which must share a filesystem.
	ShadowDir string

	// KeepShadow leaves the shadow tree on disk after the run.
	KeepShadow bool

	// ManifestPath, when set, receives the manifest before anything is
	// deleted.
	ManifestPath string

	// Guard watches the source tree and aborts if it changes before commit.
	Guard bool

	// Cache is an optional identity token cache.
	Cache detector.TokenCache

	// Remover overrides the removal backend chosen by SendToTrash.
	Remover remover.Remover

	// Differ overrides the tree comparison.
	Differ Differ

	// Journal records the run when set.
	Journal *journal.Journal

	// Metrics records run metrics when set.
	Metrics *metrics.Metrics

	// OnPhase is called as each phase starts.
	OnPhase func(binerrors.Phase)

	// OnProgress receives duplicate detection progress.
	OnProgress func(types.HashProgress)
}

// DefaultOptions returns options for a non-strict, permanent-delete run
// with symlinks and auto-sized worker pools.
func DefaultOptions() Options {
	return Options{
		LinkKind: restore.Symlink,
		Hash:     content.SHA256,
		Guard:    true,
	}
}

// Validate fills in defaults for unset values and rejects invalid ones.
func (o *Options) Validate() error {
	if o.Workers < 1 || o.WalkWorkers < 1 {
		auto := tuner.Auto()
		if o.Workers < 1 {
			o.Workers = auto.Hash
		}
		if o.WalkWorkers < 1 {
			o.WalkWorkers = auto.Walk
		}
	}
	kind, err := restore.ParseLinkKind(string(o.LinkKind))
	if err != nil {
		return err
	}
	o.LinkKind = kind
	if o.Identifier == nil {
		algo, err := content.ParseAlgorithm(string(o.Hash))
		if err != nil {
			return err
		}
		o.Hash = algo
		o.Identifier = content.NewHasher(algo)
	}
	if o.Differ == nil {
		o.Differ = diffTrees
	}
	if o.Remover == nil {
		if o.SendToTrash {
			o.Remover = remover.NewTrash()
		} else {
			o.Remover = remover.NewPermanent()
		}
	}
	return nil
}

// diffTrees compares trees byte for byte.
func diffTrees(source, shadow string) (treediff.Patch, error) {
	return treediff.Diff(source, shadow, content.Equal)
}
