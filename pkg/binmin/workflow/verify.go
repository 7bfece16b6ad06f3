package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
	"github.com/jamesainslie/binmin/pkg/binmin/restore"
	"github.com/jamesainslie/binmin/pkg/binmin/treediff"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

// shadow is a materialized tree inside its private temp directory.
type shadow struct {
	dir  string
	root string
}

func (s *shadow) cleanup(keep bool) {
	if keep {
		logger.Info("shadow tree kept", "path", s.root)
		return
	}
	if err := os.RemoveAll(s.dir); err != nil {
		logger.Warn("failed to remove shadow tree", "path", s.dir, "error", err)
	}
}

// materializeShadow links m into a fresh private directory. The shadow
// root is named after the source root so both trees share a base name.
func materializeShadow(m *manifest.Manifest, sourceRoot string, kind restore.LinkKind, parent string) (*shadow, error) {
	if parent == "" {
		parent = os.TempDir()
		if kind == restore.Hardlink {
			parent = filepath.Dir(sourceRoot)
		}
	}
	parent, err := filepath.Abs(parent)
	if err != nil {
		return nil, err
	}
	if _, inside := types.RelPath(sourceRoot, parent); inside {
		return nil, fmt.Errorf("shadow directory %s is inside the source tree %s", parent, sourceRoot)
	}

	dir, err := os.MkdirTemp(parent, "binmin-shadow-")
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow directory: %w", err)
	}
	sh := &shadow{dir: dir, root: filepath.Join(dir, filepath.Base(sourceRoot))}

	status, err := restore.Materialize(m, sourceRoot, sh.root, kind, restore.Options{})
	if err != nil {
		sh.cleanup(false)
		return nil, err
	}
	if !status.Loaded {
		sh.cleanup(false)
		return nil, &binerrors.ShadowConflictError{Path: sh.root}
	}
	logger.Debug("shadow materialized", "path", sh.root, "links", status.Links, "kind", kind)
	return sh, nil
}

// gate diffs source against shadow and decides whether commit may proceed.
// An empty patch passes; a directory-only patch passes unless strict.
func gate(source, shadowRoot string, differ Differ, strict bool) (treediff.Patch, error) {
	patch, err := differ(source, shadowRoot)
	if err != nil {
		return nil, err
	}
	if patch.Empty() || (!strict && patch.OnlyDirs()) {
		if !patch.Empty() {
			logger.Info("only directories differ", "ops", len(patch))
		}
		return patch, nil
	}
	return patch, &binerrors.VerificationMismatchError{Strict: strict, Ops: patch.Strings()}
}

// VerifyOptions configures Verify.
type VerifyOptions struct {
	LinkKind   restore.LinkKind
	Strict     bool
	ShadowDir  string
	KeepShadow bool
	Differ     Differ
}

// Verification is the outcome of Verify.
type Verification struct {
	// Patch is the difference between the source and the rebuilt tree.
	Patch treediff.Patch

	// ShadowPath is the kept shadow tree, when KeepShadow is set.
	ShadowPath string
}

// Verify rebuilds m from sourceRoot into a private shadow tree and diffs it
// against sourceRoot. It returns the patch with a
// *binerrors.VerificationMismatchError when the patch is not acceptable.
// Verify never writes to sourceRoot.
func Verify(ctx context.Context, m *manifest.Manifest, sourceRoot string, opts VerifyOptions) (*Verification, error) {
	kind, err := restore.ParseLinkKind(string(opts.LinkKind))
	if err != nil {
		return nil, err
	}
	if opts.Differ == nil {
		opts.Differ = diffTrees
	}
	root, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, err
	}

	r := newRun(Options{})
	var sh *shadow
	err = r.phase(binerrors.PhaseMaterialize, func() error {
		var err error
		sh, err = materializeShadow(m, root, kind, opts.ShadowDir)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer sh.cleanup(opts.KeepShadow)

	if err := ctx.Err(); err != nil {
		return nil, binerrors.InPhase(binerrors.PhaseVerify, err)
	}

	v := &Verification{}
	if opts.KeepShadow {
		v.ShadowPath = sh.root
	}
	err = r.phase(binerrors.PhaseVerify, func() error {
		var err error
		v.Patch, err = gate(root, sh.root, opts.Differ, opts.Strict)
		return err
	})
	return v, err
}
