package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/jamesainslie/binmin/pkg/binmin/config"
	"github.com/jamesainslie/binmin/pkg/binmin/content"
	"github.com/jamesainslie/binmin/pkg/binmin/tuner"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build defaults",
	Long: `Display the binmin version and build, the identity hashes this build
supports, the default hash and link kind, and the worker pool sizes the
tuner picks on this machine.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		writeVersion(cmd.OutOrStdout(), versionShort, tuner.Auto())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version")
	rootCmd.AddCommand(versionCmd)
}

func writeVersion(w io.Writer, short bool, workers tuner.Workers) {
	if short {
		fmt.Fprintln(w, version)
		return
	}
	fmt.Fprintf(w, "binmin %s (%s, built %s)\n", version, commit, date)
	fmt.Fprintf(w, "  go:        %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "  hashes:    %s, %s (default %s)\n", content.SHA256, content.XXHash, config.DefaultHash)
	fmt.Fprintf(w, "  link kind: %s\n", config.DefaultLinkKind)
	fmt.Fprintf(w, "  workers:   %d hash, %d walk\n", workers.Hash, workers.Walk)
}
