package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/jamesainslie/binmin/pkg/binmin/detector"
	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
	"github.com/jamesainslie/binmin/pkg/binmin/output"
	"github.com/jamesainslie/binmin/pkg/binmin/workflow"
)

// statePlanned labels reports built from a plan that was never verified.
const statePlanned = "planned"

// groupsOf lists the manifest's canonicals with their derived paths, sized
// from the detected clusters.
func groupsOf(m *manifest.Manifest, clusters []detector.Cluster) []output.Group {
	sizes := make(map[string]int64)
	for _, c := range clusters {
		sizes[c.Canonical] = c.Size
		for _, p := range c.Members {
			sizes[p] = c.Size
		}
	}

	var groups []output.Group
	for _, c := range m.Canonicals() {
		groups = append(groups, output.Group{
			Canonical: c,
			Derived:   m.Derived(c),
			Size:      sizes[c],
		})
	}
	return groups
}

// reportFromResult builds the report for a finished run.
func reportFromResult(res *workflow.Result, opts workflow.Options, manifestPath string, took time.Duration) *output.Report {
	r := &output.Report{
		Source:       res.Root,
		State:        string(res.State),
		Strict:       opts.Strict,
		Trash:        opts.SendToTrash,
		Stats:        res.Stats,
		Groups:       groupsOf(res.Manifest, res.Clusters),
		Unique:       len(res.Manifest.Unique()),
		Diff:         res.Diff.Strings(),
		NotFound:     res.Manifest.NotFound(),
		ManifestPath: manifestPath,
		ShadowPath:   res.ShadowPath,
		Duration:     took,
	}
	for _, d := range res.Deleted {
		r.Deleted = append(r.Deleted, output.Deleted{Path: d.Path, Canonical: d.Canonical, Size: d.Size})
	}
	return r
}

// reportFromPlan builds the report for an unverified plan.
func reportFromPlan(p *workflow.Plan, manifestPath string, took time.Duration) *output.Report {
	return &output.Report{
		Source:       p.Root,
		State:        statePlanned,
		Stats:        p.Stats,
		Groups:       groupsOf(p.Manifest, p.Clusters),
		Unique:       len(p.Manifest.Unique()),
		NotFound:     p.Manifest.NotFound(),
		ManifestPath: manifestPath,
		Duration:     took,
	}
}

// render writes r to stdout in the named format.
func render(format string, r *output.Report) error {
	formatter, err := output.Get(format)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}
