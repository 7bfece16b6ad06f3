package detector

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/logging"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

var logger = logging.Get("detector")

// Cluster is a set of content-identical files.
type Cluster struct {
	// Canonical is the natural minimum of the set; it is kept.
	Canonical string `json:"canonical"`

	// Members are the other paths of the set in natural order.
	Members []string `json:"members"`

	// Size is the shared file size in bytes.
	Size int64 `json:"size"`
}

// Result is the outcome of duplicate detection.
type Result struct {
	// Clusters in natural order of their canonical path.
	Clusters []Cluster

	// Stats carries EmptyCount, UniqueCount, DupCount and BytesReclaimable.
	Stats types.Stats

	// Hashed is the number of candidates identified.
	Hashed int

	// CacheHits is the number of identities served from the cache.
	CacheHits int

	// Elapsed is the time spent in Detect.
	Elapsed time.Duration
}

// identified is one worker result sent to the aggregator.
type identified struct {
	task   types.FileTask
	token  string
	cached bool
}

// detection carries progress counters shared by the workers.
type detection struct {
	opts Options

	hashed       atomic.Int64
	bytesHashed  atomic.Int64
	cacheHits    atomic.Int64
	total        int64
	lastProgress atomic.Int64
	currentPath  atomic.Value
}

// Detect groups tasks into clusters of identical content.
//
// It returns binerrors.ErrEmptyTree when tasks is empty and
// binerrors.ErrNoDuplicates when no two files share content. Any identity
// failure aborts detection with a *binerrors.ComparisonError; no partial
// result is returned.
func Detect(ctx context.Context, tasks []types.FileTask, opts Options) (*Result, error) {
	start := time.Now()
	_ = opts.Validate()

	if len(tasks) == 0 {
		return nil, binerrors.ErrEmptyTree
	}

	candidates, stats := filterBySize(tasks)
	if len(candidates) == 0 {
		logger.Info("no candidates share a size",
			"files", len(tasks), "empty", stats.EmptyCount, "unique", stats.UniqueCount)
		return nil, binerrors.ErrNoDuplicates
	}

	d := &detection{opts: opts, total: int64(len(candidates))}
	d.currentPath.Store("")

	byToken, fresh, err := d.identifyAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	if opts.Cache != nil && len(fresh) > 0 {
		if err := opts.Cache.Update(opts.Root, opts.algorithm(), fresh); err != nil {
			logger.Warn("failed to update identity cache", "error", err)
		}
	}

	clusters := buildClusters(byToken)
	for _, c := range clusters {
		stats.DupCount += len(c.Members)
		stats.BytesReclaimable += int64(len(c.Members)) * c.Size
	}

	result := &Result{
		Clusters:  clusters,
		Stats:     stats,
		Hashed:    len(candidates),
		CacheHits: int(d.cacheHits.Load()),
		Elapsed:   time.Since(start),
	}

	logger.Info("duplicate detection finished",
		"candidates", len(candidates),
		"clusters", len(clusters),
		"duplicates", stats.DupCount,
		"reclaimable", types.FormatSize(stats.BytesReclaimable),
		"cache_hits", result.CacheHits,
		"elapsed", result.Elapsed)

	if len(clusters) == 0 {
		return nil, binerrors.ErrNoDuplicates
	}
	return result, nil
}

// filterBySize drops empty files and files whose size no other file shares.
// The survivors keep their input order.
func filterBySize(tasks []types.FileTask) ([]types.FileTask, types.Stats) {
	var stats types.Stats
	sizes := make(map[int64]int, len(tasks))
	for _, t := range tasks {
		if t.Size == 0 {
			stats.EmptyCount++
			continue
		}
		sizes[t.Size]++
	}

	candidates := make([]types.FileTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Size == 0 {
			continue
		}
		if sizes[t.Size] < 2 {
			stats.UniqueCount++
			continue
		}
		candidates = append(candidates, t)
	}
	return candidates, stats
}

// identifyAll runs the worker pool. Workers send results on a channel owned
// by a single aggregator goroutine; the returned map is only read after both
// the pool and the aggregator have finished.
func (d *detection) identifyAll(ctx context.Context, candidates []types.FileTask) (map[string][]types.FileTask, []types.Identity, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

	results := make(chan identified, d.opts.Workers)
	byToken := make(map[string][]types.FileTask)
	var fresh []types.Identity

	aggregated := make(chan struct{})
	go func() {
		defer close(aggregated)
		for r := range results {
			byToken[r.token] = append(byToken[r.token], r.task)
			if !r.cached {
				fresh = append(fresh, types.Identity{Task: r.task, Token: r.token})
			}
		}
	}()

	d.reportProgressForce()

submit:
	for _, task := range candidates {
		if gctx.Err() != nil {
			break submit
		}
		g.Go(func() error {
			r, err := d.identify(task)
			if err != nil {
				return err
			}
			select {
			case results <- r:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	err := g.Wait()
	close(results)
	<-aggregated

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, nil, err
	}

	d.reportProgressForce()
	return byToken, fresh, nil
}

// identify returns the token of one task, from the cache when possible.
func (d *detection) identify(task types.FileTask) (identified, error) {
	if d.opts.Cache != nil {
		if token, ok := d.opts.Cache.Lookup(d.opts.Root, d.opts.algorithm(), task); ok {
			d.cacheHits.Add(1)
			d.progress(task)
			return identified{task: task, token: token, cached: true}, nil
		}
	}

	full := types.JoinRel(d.opts.Root, task.Path)
	token, err := d.opts.Identifier.Identity(full, task.Size)
	if err != nil {
		var cmp *binerrors.ComparisonError
		if !errors.As(err, &cmp) {
			err = &binerrors.ComparisonError{Path: full, Cause: err}
		}
		logger.Error("identity failed", "path", task.Path, "error", err)
		return identified{}, err
	}

	d.progress(task)
	return identified{task: task, token: token}, nil
}

func (d *detection) progress(task types.FileTask) {
	d.hashed.Add(1)
	d.bytesHashed.Add(task.Size)
	d.currentPath.Store(task.Path)
	d.reportProgress()
}

// reportProgress calls the progress callback at most every 10ms.
func (d *detection) reportProgress() {
	if d.opts.OnProgress == nil {
		return
	}

	now := time.Now().UnixMilli()
	last := d.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !d.lastProgress.CompareAndSwap(last, now) {
		return
	}
	d.sendProgress()
}

// reportProgressForce calls the progress callback immediately.
func (d *detection) reportProgressForce() {
	if d.opts.OnProgress == nil {
		return
	}
	d.lastProgress.Store(time.Now().UnixMilli())
	d.sendProgress()
}

func (d *detection) sendProgress() {
	current, _ := d.currentPath.Load().(string)
	d.opts.OnProgress(types.HashProgress{
		Hashed:      d.hashed.Load(),
		Total:       d.total,
		BytesHashed: d.bytesHashed.Load(),
		CacheHits:   d.cacheHits.Load(),
		CurrentPath: current,
	})
}

// buildClusters turns every token shared by two or more files into a
// cluster whose canonical is the natural minimum.
func buildClusters(byToken map[string][]types.FileTask) []Cluster {
	var clusters []Cluster
	for _, group := range byToken {
		if len(group) < 2 {
			continue
		}
		paths := make([]string, len(group))
		for i, t := range group {
			paths[i] = t.Path
		}
		types.SortNatural(paths)
		clusters = append(clusters, Cluster{
			Canonical: paths[0],
			Members:   paths[1:],
			Size:      group[0].Size,
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return types.NaturalLess(clusters[i].Canonical, clusters[j].Canonical)
	})
	return clusters
}

// Paths returns the canonical followed by the members.
func (c Cluster) Paths() []string {
	return append([]string{c.Canonical}, c.Members...)
}
