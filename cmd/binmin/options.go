package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/binmin/pkg/binmin/cache"
	"github.com/jamesainslie/binmin/pkg/binmin/config"
	"github.com/jamesainslie/binmin/pkg/binmin/content"
	"github.com/jamesainslie/binmin/pkg/binmin/journal"
	"github.com/jamesainslie/binmin/pkg/binmin/metrics"
	"github.com/jamesainslie/binmin/pkg/binmin/restore"
	"github.com/jamesainslie/binmin/pkg/binmin/workflow"
	"github.com/spf13/pflag"
)

// runFlags holds the per-command flags shared by run and plan. Flags only
// override the config when set on the command line.
type runFlags struct {
	dryRun      bool
	strict      bool
	trash       bool
	noGuard     bool
	noCache     bool
	keepShadow  bool
	linkKind    string
	hash        string
	workers     int
	manifest    string
	shadowDir   string
	output      string
	metricsFile string
}

// register adds the flags to fs. Verification flags are skipped for plan.
func (f *runFlags) register(fs *pflag.FlagSet, verification bool) {
	fs.StringVar(&f.hash, "hash", "", "identity hash: sha256 or xxhash")
	fs.IntVarP(&f.workers, "workers", "w", 0, "identity computations in flight (0=config)")
	fs.BoolVar(&f.noCache, "no-cache", false, "bypass the identity cache")
	fs.StringVarP(&f.manifest, "manifest", "m", "", "write the manifest to this file (.json or .yaml)")
	fs.StringVarP(&f.output, "output", "o", "pretty", "output format: pretty, plain, json, yaml")
	if !verification {
		return
	}
	fs.BoolVarP(&f.dryRun, "dry-run", "d", false, "verify but never delete")
	fs.BoolVar(&f.strict, "strict", false, "reject directory-only differences")
	fs.BoolVar(&f.trash, "trash", false, "send duplicates to the system trash")
	fs.BoolVar(&f.noGuard, "no-guard", false, "do not watch the tree for changes during the run")
	fs.BoolVar(&f.keepShadow, "keep-shadow", false, "keep the shadow tree after the run")
	fs.StringVar(&f.linkKind, "link-kind", "", "shadow link kind: symlink or hardlink")
	fs.StringVar(&f.shadowDir, "shadow-dir", "", "parent directory for the shadow tree")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write prometheus metrics to this file")
}

// apply overlays the flags that were set on cfg.
func (f *runFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("hash") {
		cfg.Hash = f.hash
	}
	if fs.Changed("workers") && f.workers > 0 {
		cfg.Workers = f.workers
	}
	if fs.Changed("no-cache") && f.noCache {
		cfg.Cache.Enabled = false
	}
	if fs.Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if fs.Changed("strict") {
		cfg.Strict = f.strict
	}
	if fs.Changed("trash") {
		cfg.Trash = f.trash
	}
	if fs.Changed("no-guard") && f.noGuard {
		cfg.Guard = false
	}
	if fs.Changed("link-kind") {
		cfg.LinkKind = f.linkKind
	}
	if fs.Changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
}

// workflowOptions maps a config onto workflow options. Collaborators that
// need opening (cache, journal, metrics) are attached by openSupport.
func workflowOptions(cfg *config.Config) (workflow.Options, error) {
	opts := workflow.DefaultOptions()
	opts.Workers = cfg.Workers
	opts.RawSymlinkTargets = !cfg.RelativeSymlinks
	opts.Strict = cfg.Strict
	opts.DryRun = cfg.DryRun
	opts.SendToTrash = cfg.Trash
	opts.Guard = cfg.Guard

	algo, err := content.ParseAlgorithm(cfg.Hash)
	if err != nil {
		return opts, err
	}
	opts.Hash = algo

	kind, err := restore.ParseLinkKind(cfg.LinkKind)
	if err != nil {
		return opts, err
	}
	opts.LinkKind = kind
	return opts, nil
}

// support holds the collaborators opened for one command.
type support struct {
	cache       *cache.Cache
	journal     *journal.Journal
	metrics     *metrics.Metrics
	metricsFile string
}

// openSupport opens the cache, journal and metrics the config enables and
// attaches them to opts. A cache that cannot be opened is skipped with a
// warning; another process may hold its lock.
func openSupport(cfg *config.Config, opts *workflow.Options, withJournal bool) (*support, error) {
	s := &support{metricsFile: cfg.MetricsFile}

	if cfg.Cache.Enabled && cfg.Cache.Path != "" {
		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			printVerbose("Cache unavailable, continuing without it: %v", err)
		} else {
			s.cache = c
			opts.Cache = c
		}
	}

	if withJournal && cfg.Journal.Enabled && cfg.Journal.Path != "" {
		j, err := journal.New(cfg.Journal.Path)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		s.journal = j
		opts.Journal = j
	}

	if cfg.MetricsFile != "" {
		s.metrics = metrics.New()
		opts.Metrics = s.metrics
	}
	return s, nil
}

// close flushes metrics and closes the cache.
func (s *support) close() error {
	var errs []error
	if s.metrics != nil && s.metricsFile != "" {
		if err := os.MkdirAll(filepath.Dir(s.metricsFile), 0o755); err != nil {
			errs = append(errs, err)
		} else if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
		}
	}
	return errors.Join(errs...)
}
