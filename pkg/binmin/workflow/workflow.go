package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/collector"
	"github.com/jamesainslie/binmin/pkg/binmin/consolidate"
	"github.com/jamesainslie/binmin/pkg/binmin/detector"
	"github.com/jamesainslie/binmin/pkg/binmin/guard"
	"github.com/jamesainslie/binmin/pkg/binmin/journal"
	"github.com/jamesainslie/binmin/pkg/binmin/logging"
	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
	"github.com/jamesainslie/binmin/pkg/binmin/treediff"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

var logger = logging.Get("workflow")

// State is a workflow state.
type State string

// Workflow states. Committed, DryRunStopped and Aborted are terminal.
const (
	StateInit          State = "init"
	StateManifestBuilt State = "manifest-built"
	StateMaterialized  State = "materialized"
	StateVerified      State = "verified"
	StateCommitted     State = "committed"
	StateDryRunStopped State = "dry-run"
	StateAborted       State = "aborted"
)

// Deletion is one derived path removed by commit.
type Deletion struct {
	Path      string `json:"path" yaml:"path"`
	Canonical string `json:"canonical" yaml:"canonical"`
	Size      int64  `json:"size" yaml:"size"`
}

// Plan is a built manifest together with what detection found.
type Plan struct {
	// Root is the absolute tree root.
	Root string

	Manifest *manifest.Manifest
	Clusters []detector.Cluster
	Stats    types.Stats

	// Hashed and CacheHits count identity computations.
	Hashed    int
	CacheHits int

	// Removed maps every key folded away during consolidation to the
	// canonical that absorbed it.
	Removed map[string]string
}

// Result is a successful run.
type Result struct {
	Root     string
	Manifest *manifest.Manifest
	Clusters []detector.Cluster
	Stats    types.Stats
	State    State

	// Diff is the accepted verification patch; empty or directory-only.
	Diff treediff.Patch

	// Deleted lists removed derived paths in removal order.
	Deleted []Deletion

	// ShadowPath is the kept shadow tree, when KeepShadow is set.
	ShadowPath string

	// Durations maps each phase that ran to its duration.
	Durations map[binerrors.Phase]time.Duration
}

// run carries the state of one workflow execution.
type run struct {
	opts      Options
	root      string
	state     State
	plan      *Plan
	diff      treediff.Patch
	deleted   []Deletion
	shadow    string
	durations map[binerrors.Phase]time.Duration
}

func newRun(opts Options) *run {
	return &run{
		opts:      opts,
		state:     StateInit,
		durations: make(map[binerrors.Phase]time.Duration),
	}
}

// phase runs fn as phase p, timing it and tagging its error.
func (r *run) phase(p binerrors.Phase, fn func() error) error {
	if r.opts.OnPhase != nil {
		r.opts.OnPhase(p)
	}
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	r.durations[p] = elapsed
	r.opts.Metrics.ObservePhase(string(p), elapsed)

	if err != nil {
		logger.Error("phase failed", "phase", p, "error", err)
		return binerrors.InPhase(p, err)
	}
	logger.Debug("phase done", "phase", p, "elapsed", elapsed)
	return nil
}

// BuildPlan collects target, detects duplicates and consolidates links
// into a manifest. It never writes to target.
func BuildPlan(ctx context.Context, target string, opts Options) (*Plan, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r := newRun(opts)
	if err := r.buildPlan(ctx, target); err != nil {
		return nil, err
	}
	return r.plan, nil
}

func (r *run) buildPlan(ctx context.Context, target string) error {
	var coll *collector.Collection
	err := r.phase(binerrors.PhaseCollect, func() error {
		var err error
		coll, err = collector.Collect(ctx, target, collector.Options{
			RawSymlinkTargets: r.opts.RawSymlinkTargets,
			Workers:           r.opts.WalkWorkers,
		})
		return err
	})
	if err != nil {
		return err
	}
	r.root = coll.Root
	r.opts.Metrics.RecordCollection(len(coll.Tasks))

	var found *detector.Result
	err = r.phase(binerrors.PhaseDetect, func() error {
		var err error
		found, err = detector.Detect(ctx, coll.Tasks, detector.Options{
			Root:       coll.Root,
			Workers:    r.opts.Workers,
			Identifier: r.opts.Identifier,
			Cache:      r.opts.Cache,
			OnProgress: r.opts.OnProgress,
		})
		return err
	})
	if err != nil {
		return err
	}
	r.opts.Metrics.RecordDetection(found.Stats.DupCount, found.Stats.BytesReclaimable, found.Hashed, found.CacheHits)

	var out consolidate.Output
	err = r.phase(binerrors.PhaseConsolidate, func() error {
		var err error
		out, err = consolidate.Consolidate(consolidate.Input{
			Pack:     coll.Builder.Draft(),
			Symlinks: coll.Symlinks,
			Files:    coll.Files,
			Folders:  pathSet(coll.Folders),
			Clusters: found.Clusters,
		})
		return err
	})
	if err != nil {
		return err
	}

	coll.Builder.ReplacePack(out.Pack)
	coll.Builder.SetUnique(out.Unique)
	coll.Builder.AddNotFound(out.NotFound...)

	r.plan = &Plan{
		Root:      coll.Root,
		Manifest:  coll.Builder.Build(),
		Clusters:  found.Clusters,
		Stats:     found.Stats,
		Hashed:    found.Hashed,
		CacheHits: found.CacheHits,
		Removed:   out.Removed,
	}
	r.state = StateManifestBuilt

	logger.Info("manifest built",
		"root", coll.Root,
		"canonicals", r.plan.Manifest.Len(),
		"derived", r.plan.Manifest.DerivedCount(),
		"not_found", len(r.plan.Manifest.NotFound()),
		"reclaimable", types.FormatSize(found.Stats.BytesReclaimable))
	return nil
}

// Run minimizes target. It either returns a Result in a terminal state
// (Committed or DryRunStopped) or one error tagged with the failing phase.
// Nothing is deleted unless the shadow tree rebuilt from the manifest
// matches the source.
func Run(ctx context.Context, target string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r := newRun(opts)
	r.root, _ = filepath.Abs(target)
	started := time.Now()

	err := r.execute(ctx, target)
	if err != nil {
		r.state = StateAborted
	}
	r.finish(err, started)
	if err != nil {
		return nil, err
	}

	return &Result{
		Root:       r.root,
		Manifest:   r.plan.Manifest,
		Clusters:   r.plan.Clusters,
		Stats:      r.stats(),
		State:      r.state,
		Diff:       r.diff,
		Deleted:    r.deleted,
		ShadowPath: r.shadow,
		Durations:  r.durations,
	}, nil
}

func (r *run) execute(ctx context.Context, target string) error {
	var g *guard.Guard
	if r.opts.Guard {
		var err error
		if g, err = guard.Start(ctx, target); err != nil {
			return binerrors.InPhase(binerrors.PhaseCollect, fmt.Errorf("failed to watch source tree: %w", err))
		}
		defer func() { _ = g.Close() }()
	}

	if err := r.buildPlan(ctx, target); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return binerrors.InPhase(binerrors.PhaseMaterialize, err)
	}

	sh, err := r.materialize()
	if err != nil {
		return err
	}
	defer sh.cleanup(r.opts.KeepShadow)
	if r.opts.KeepShadow {
		r.shadow = sh.root
	}

	if err := ctx.Err(); err != nil {
		return binerrors.InPhase(binerrors.PhaseVerify, err)
	}
	if err := r.verify(sh.root); err != nil {
		return err
	}
	if g != nil {
		if err := g.Check(); err != nil {
			return binerrors.InPhase(binerrors.PhaseVerify, err)
		}
	}

	if r.opts.ManifestPath != "" {
		if err := manifest.Save(r.plan.Manifest, r.opts.ManifestPath); err != nil {
			return binerrors.InPhase(binerrors.PhaseVerify, fmt.Errorf("failed to persist manifest: %w", err))
		}
		logger.Info("manifest saved", "path", r.opts.ManifestPath)
	}

	if r.opts.DryRun {
		r.state = StateDryRunStopped
		logger.Info("dry run, nothing deleted", "would_delete", r.plan.Manifest.DerivedCount())
		return nil
	}

	if g != nil {
		// The tree is about to change on purpose.
		if err := g.Close(); err != nil {
			logger.Warn("failed to stop guard", "error", err)
		}
	}
	return r.commit(ctx)
}

func (r *run) materialize() (*shadow, error) {
	var sh *shadow
	err := r.phase(binerrors.PhaseMaterialize, func() error {
		var err error
		sh, err = materializeShadow(r.plan.Manifest, r.root, r.opts.LinkKind, r.opts.ShadowDir)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.state = StateMaterialized
	return sh, nil
}

func (r *run) verify(shadowRoot string) error {
	err := r.phase(binerrors.PhaseVerify, func() error {
		var err error
		r.diff, err = gate(r.root, shadowRoot, r.opts.Differ, r.opts.Strict)
		r.opts.Metrics.RecordVerify(countOps(r.diff))
		return err
	})
	if err != nil {
		return err
	}
	r.state = StateVerified
	return nil
}

// commit removes every derived path, never a canonical.
func (r *run) commit(ctx context.Context) error {
	m := r.plan.Manifest
	sizes := r.sizes()

	var paths []string
	owner := make(map[string]string)
	for _, c := range m.Canonicals() {
		for _, d := range m.Derived(c) {
			paths = append(paths, filepath.Join(r.root, filepath.FromSlash(d)))
			owner[d] = c
		}
	}

	return r.phase(binerrors.PhaseCommit, func() error {
		removed, err := r.opts.Remover.Remove(ctx, paths)
		for _, full := range removed {
			rel, _ := types.RelPath(r.root, full)
			r.deleted = append(r.deleted, Deletion{Path: rel, Canonical: owner[rel], Size: sizes[rel]})
		}
		r.opts.Metrics.RecordDeleted(len(removed))
		r.forgetDeleted()

		if err != nil {
			return &binerrors.DeletionError{
				Attempted: len(paths),
				Completed: len(removed),
				Removed:   r.deletedPaths(),
				Cause:     err,
			}
		}
		r.state = StateCommitted
		logger.Info("committed", "deleted", len(removed))
		return nil
	})
}

// forgetDeleted drops cache entries for deleted paths when the cache
// supports it.
func (r *run) forgetDeleted() {
	f, ok := r.opts.Cache.(interface {
		Forget(root string, paths []string) error
	})
	if !ok || len(r.deleted) == 0 {
		return
	}
	if err := f.Forget(r.root, r.deletedPaths()); err != nil {
		logger.Warn("failed to drop cache entries", "error", err)
	}
}

func (r *run) deletedPaths() []string {
	out := make([]string, len(r.deleted))
	for i, d := range r.deleted {
		out[i] = d.Path
	}
	return out
}

// sizes maps every clustered path to its size. Symlinks reclaim nothing
// and are absent.
func (r *run) sizes() map[string]int64 {
	out := make(map[string]int64)
	for _, c := range r.plan.Clusters {
		for _, p := range c.Paths() {
			out[p] = c.Size
		}
	}
	return out
}

// stats returns the run statistics with DelCount filled in.
func (r *run) stats() types.Stats {
	if r.plan == nil {
		return types.Stats{}
	}
	s := r.plan.Stats
	s.DelCount = len(r.deleted)
	return s
}

// finish records the run in the journal and metrics.
func (r *run) finish(runErr error, started time.Time) {
	r.opts.Metrics.RecordRun(string(r.state), time.Now())
	logger.Info("run finished", "root", r.root, "state", r.state, "elapsed", time.Since(started))

	if r.opts.Journal == nil {
		return
	}

	rec := journal.Record{
		Root:         r.root,
		Strict:       r.opts.Strict,
		Trash:        r.opts.SendToTrash,
		LinkKind:     string(r.opts.LinkKind),
		ManifestPath: r.opts.ManifestPath,
		Stats:        r.stats(),
	}
	switch r.state {
	case StateCommitted:
		rec.Outcome = journal.OutcomeCommitted
	case StateDryRunStopped:
		rec.Outcome = journal.OutcomeDryRun
	default:
		rec.Outcome = journal.OutcomeAborted
	}
	if runErr != nil {
		rec.Error = runErr.Error()
		if p, ok := binerrors.PhaseOf(runErr); ok {
			rec.Phase = string(p)
		}
	}
	for _, d := range r.deleted {
		rec.Deleted = append(rec.Deleted, journal.DeletedRecord{Path: d.Path, Canonical: d.Canonical, Size: d.Size})
	}

	if _, err := r.opts.Journal.Append(rec); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

func pathSet(paths []string) map[string]struct{} {
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[p] = struct{}{}
	}
	return out
}

func countOps(p treediff.Patch) map[string]int {
	out := make(map[string]int)
	for k, n := range p.Count() {
		out[string(k)] = n
	}
	return out
}
