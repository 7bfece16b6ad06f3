package main

import (
	"fmt"
	"time"

	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
	"github.com/jamesainslie/binmin/pkg/binmin/output"
	"github.com/jamesainslie/binmin/pkg/binmin/workflow"
	"github.com/spf13/cobra"
)

var planOpts runFlags

var planCmd = &cobra.Command{
	Use:   "plan <dir>",
	Short: "Show the manifest a run would build, without verifying or deleting",
	Long: `Plan collects dir, finds duplicate files and consolidates links into a
manifest, then prints it. Nothing is written to dir. Use --manifest to save
the manifest for a later restore or verify.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planOpts.register(planCmd.Flags(), false)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	root, err := resolveDir(args[0])
	if err != nil {
		return err
	}
	if _, err := output.Get(planOpts.output); err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", planOpts.output, output.Available())
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	planOpts.apply(cmd.Flags(), cfg)

	opts, err := workflowOptions(cfg)
	if err != nil {
		return err
	}
	opts.OnPhase = reportPhase
	opts.OnProgress = reportProgress

	sup, err := openSupport(cfg, &opts, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := sup.close(); err != nil {
			printError("%v", err)
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	started := time.Now()
	plan, err := workflow.BuildPlan(ctx, root, opts)
	if err != nil {
		return err
	}

	if planOpts.manifest != "" {
		if err := manifest.Save(plan.Manifest, planOpts.manifest); err != nil {
			return fmt.Errorf("failed to save manifest: %w", err)
		}
	}
	return render(planOpts.output, reportFromPlan(plan, planOpts.manifest, time.Since(started)))
}
