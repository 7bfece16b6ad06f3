package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/binmin/pkg/binmin/cache"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the identity cache",
	Long: `Commands for managing the identity token cache.

The cache stores content hashes keyed by tree root and path so that files
whose size and mtime are unchanged are not hashed again. Enable it with
cache.enabled in the config file.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [dir]",
	Short: "Clear cached identities",
	Long:  `Removes the cached identities for dir, or for every tree when dir is omitted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats [dir]",
	Short: "Show cache statistics",
	Long:  `Displays the cache location, its size on disk and the number of cached identities.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheStats,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}

// cachePath returns the configured cache directory.
func cachePath() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Cache.Path, nil
}

// cacheRoot resolves the optional dir argument; empty means every root.
func cacheRoot(args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	return resolveDir(args[0])
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	path, err := cachePath()
	if err != nil {
		return err
	}
	root, err := cacheRoot(args)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("Cache is already empty.")
		return nil
	}

	if root == "" {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Cache cleared.")
		return nil
	}

	c, err := cache.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Clear(root); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Printf("Cache cleared for %s.\n", root)
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	path, err := cachePath()
	if err != nil {
		return err
	}
	root, err := cacheRoot(args)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Println("Cache: empty (no cache directory)")
		fmt.Printf("Cache location: %s\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat cache: %w", err)
	}

	var size int64
	var fileCount int
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
			fileCount++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to calculate cache size: %w", err)
	}

	c, err := cache.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() { _ = c.Close() }()

	entries, err := c.Count(root)
	if err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}

	fmt.Printf("Cache location: %s\n", path)
	fmt.Printf("Cache size: %s\n", types.FormatSize(size))
	fmt.Printf("Cache files: %d\n", fileCount)
	if root != "" {
		fmt.Printf("Identities for %s: %d\n", root, entries)
	} else {
		fmt.Printf("Identities: %d\n", entries)
	}
	fmt.Printf("Last modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))

	return nil
}
