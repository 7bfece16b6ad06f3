package main

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/jamesainslie/binmin/pkg/binmin/config"
	"github.com/jamesainslie/binmin/pkg/binmin/tuner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage binmin configuration settings.

Configuration is loaded from $XDG_CONFIG_HOME/binmin/config.yaml
(~/.config/binmin/config.yaml when unset), or the file given with --config.

Environment variables override config file settings using the BINMIN_ prefix:
  BINMIN_WORKERS=8
  BINMIN_LINK_KIND=hardlink
  BINMIN_JOURNAL_ENABLED=false`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configFilePath is the --config file, or the default location.
func configFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ConfigFile()
}

// envOverrides returns the BINMIN_ variables set in env, sorted.
func envOverrides(env []string) []string {
	var out []string
	for _, kv := range env {
		if strings.HasPrefix(kv, "BINMIN_") {
			out = append(out, kv)
		}
	}
	sort.Strings(out)
	return out
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Printf("Config file: %s\n\n", configFile)
	} else {
		fmt.Println("Config file: (using defaults, no file found)")
		fmt.Println()
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	if cfg.Workers > 0 {
		fmt.Printf("workers:                %d\n", cfg.Workers)
	} else {
		w := tuner.Auto()
		fmt.Printf("workers:                auto (%d hash, %d walk)\n", w.Hash, w.Walk)
	}
	fmt.Printf("hash:                   %s\n", cfg.Hash)
	fmt.Printf("link_kind:              %s\n", cfg.LinkKind)
	fmt.Printf("relative_symlinks:      %t\n", cfg.RelativeSymlinks)
	fmt.Printf("strict:                 %t\n", cfg.Strict)
	fmt.Printf("dry_run:                %t\n", cfg.DryRun)
	fmt.Printf("trash:                  %t\n", cfg.Trash)
	fmt.Printf("guard:                  %t\n", cfg.Guard)
	fmt.Printf("metrics_file:           %s\n", cfg.MetricsFile)
	fmt.Printf("cache.enabled:          %t\n", cfg.Cache.Enabled)
	fmt.Printf("cache.path:             %s\n", cfg.Cache.Path)
	fmt.Printf("journal.enabled:        %t\n", cfg.Journal.Enabled)
	fmt.Printf("journal.path:           %s\n", cfg.Journal.Path)
	fmt.Printf("journal.retention_days: %d\n", cfg.Journal.RetentionDays)
	fmt.Printf("logging.level:          %s\n", cfg.Logging.Level)
	fmt.Printf("logging.path:           %s\n", cfg.Logging.Path)

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	overrides := envOverrides(os.Environ())
	for _, kv := range overrides {
		fmt.Println(kv)
	}
	if len(overrides) == 0 {
		fmt.Println("(none)")
	}

	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, err := config.WriteDefault(configFilePath())
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFilePath()

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'binmin config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configPath := configFilePath()
	fmt.Println(configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
