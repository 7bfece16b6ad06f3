package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/config"
	"github.com/jamesainslie/binmin/pkg/binmin/output"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
	"github.com/jamesainslie/binmin/pkg/binmin/workflow"
	"github.com/spf13/cobra"
)

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run <dir>",
	Short: "Minimize a tree, deleting duplicates after verification",
	Long: `Run finds duplicate files under dir, builds the link manifest, rebuilds the
tree from the manifest into a private shadow directory and compares it with
dir. Duplicates are deleted only when the two trees match.

With --strict any difference aborts the run. Without it, differences that
only concern directories (an empty folder the manifest cannot recreate) are
accepted and reported.

Examples:
  binmin run --dry-run ./dist
  binmin run --trash -m ./dist.binmin.json ./dist
  binmin run --link-kind hardlink --shadow-dir /mnt/scratch ./dist`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runOpts.register(runCmd.Flags(), true)
	rootCmd.AddCommand(runCmd)
}

// resolveDir expands and absolutizes path, which must be a directory.
func resolveDir(path string) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}
	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", absPath)
		}
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", absPath)
	}
	return absPath, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// reportPhase logs phase transitions in verbose mode.
func reportPhase(p binerrors.Phase) {
	printVerbose("Phase: %s", p)
}

// reportProgress logs hashing progress in verbose mode.
func reportProgress(p types.HashProgress) {
	printVerbose("Identified %d/%d files (%s, %d cached)",
		p.Hashed, p.Total, types.FormatSize(p.BytesHashed), p.CacheHits)
}

func runRun(cmd *cobra.Command, args []string) error {
	root, err := resolveDir(args[0])
	if err != nil {
		return err
	}
	if _, err := output.Get(runOpts.output); err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", runOpts.output, output.Available())
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runOpts.apply(cmd.Flags(), cfg)

	opts, err := workflowOptions(cfg)
	if err != nil {
		return err
	}
	opts.ManifestPath = runOpts.manifest
	opts.ShadowDir = runOpts.shadowDir
	opts.KeepShadow = runOpts.keepShadow
	opts.OnPhase = reportPhase
	opts.OnProgress = reportProgress

	sup, err := openSupport(cfg, &opts, true)
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
	res, err := workflow.Run(ctx, root, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printInfo("Run cancelled")
		}
		printMismatch(err)
		return err
	}

	if err := render(runOpts.output, reportFromResult(res, opts, runOpts.manifest, time.Since(started))); err != nil {
		return err
	}

	if sup.journal != nil {
		pruneJournal(sup.journal, cfg.Journal.RetentionDays)
	}
	return nil
}

// printMismatch lists the operations of a rejected verification.
func printMismatch(err error) {
	var mismatch *binerrors.VerificationMismatchError
	if !errors.As(err, &mismatch) || getQuiet() {
		return
	}
	fmt.Fprintln(os.Stderr, "Shadow tree differs from the source:")
	for _, op := range mismatch.Ops {
		fmt.Fprintf(os.Stderr, "  %s\n", op)
	}
}
