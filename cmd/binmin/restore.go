package main

import (
	"fmt"
	"path/filepath"

	"github.com/jamesainslie/binmin/pkg/binmin/config"
	"github.com/jamesainslie/binmin/pkg/binmin/manifest"
	"github.com/jamesainslie/binmin/pkg/binmin/restore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	restoreLinkKind string
	restoreFolders  bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <manifest> <source-root> <dest>",
	Short: "Rebuild a minimized tree as links",
	Long: `Restore reads a manifest and recreates every canonical, derived and unique path under
dest as a link to its canonical file in source-root. dest must not exist;
when it does, nothing is written.

Examples:
  binmin restore dist.binmin.json ./dist ./dist-full
  binmin restore --link-kind hardlink --folders dist.binmin.json ./dist ./out`,
	Args: cobra.ExactArgs(3),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVar(&restoreLinkKind, "link-kind", "", "link kind: symlink or hardlink (default from config)")
	restoreCmd.Flags().BoolVar(&restoreFolders, "folders", false, "also recreate every recorded folder, including empty ones")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(_ *cobra.Command, args []string) error {
	m, err := manifest.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	source, err := resolveDir(args[1])
	if err != nil {
		return err
	}
	dest, err := config.ExpandPath(args[2])
	if err != nil {
		return fmt.Errorf("failed to expand path: %w", err)
	}
	if dest, err = filepath.Abs(dest); err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	kindName := restoreLinkKind
	if kindName == "" {
		kindName = viper.GetString("link_kind")
	}
	kind, err := restore.ParseLinkKind(kindName)
	if err != nil {
		return err
	}

	status, err := restore.Materialize(m, source, dest, kind, restore.Options{Folders: restoreFolders})
	if err != nil {
		return err
	}
	if !status.Loaded {
		return fmt.Errorf("destination already exists: %s", dest)
	}

	printInfo("Restored %d links (%s) into %s", status.Links, kind, dest)
	if status.Folders > 0 {
		printVerbose("Created %d folders", status.Folders)
	}
	return nil
}
