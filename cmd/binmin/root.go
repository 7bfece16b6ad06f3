package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
	"github.com/jamesainslie/binmin/pkg/binmin/config"
	"github.com/jamesainslie/binmin/pkg/binmin/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes. A rejected tree (nothing to do) is distinct from a failure.
const (
	exitOK       = 0
	exitFailure  = 1
	exitRejected = 2
	exitMismatch = 3
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "binmin",
		Short: "Replace duplicate files in a tree with a link manifest",
		Long: `binmin finds byte-identical files in a directory tree, records them in a
manifest of canonical files and the paths derived from them, proves the
manifest rebuilds the tree exactly, and only then deletes the duplicates.

Examples:
  binmin plan ./dist                    # Show what would be removed
  binmin run --dry-run ./dist           # Verify without deleting
  binmin run -m dist.json ./dist        # Minimize, keeping the manifest
  binmin restore dist.json ./dist ./out # Rebuild the tree as links
  binmin history                        # View past runs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initLogging,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/binmin/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output on stderr")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().String("log-level", "", "log file level (debug, info, warn, error)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	config.Configure(viper.GetViper(), cfgFile)
	if err := config.ReadInConfig(viper.GetViper()); err != nil {
		printError("%v", err)
	}
}

// loadConfig decodes the merged configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initLogging configures file logging from the config and console output
// from --verbose/--quiet.
func initLogging(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	console := "warn"
	switch {
	case getVerbose():
		console = "debug"
	case getQuiet():
		console = "error"
	}

	level := cfg.Logging.Level
	if level == "" {
		level = config.DefaultLogLevel
	}
	return logging.Init(logging.Config{
		Level:        level,
		Path:         cfg.Logging.Path,
		Components:   cfg.Logging.Components,
		ConsoleLevel: console,
	})
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logging.Close() }()
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	var mismatch *binerrors.VerificationMismatchError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, binerrors.ErrNoDuplicates), errors.Is(err, binerrors.ErrEmptyTree):
		return exitRejected
	case errors.As(err, &mismatch):
		return exitMismatch
	default:
		return exitFailure
	}
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
