package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Components map[string]string `mapstructure:"components"`
}

// CacheConfig configures the identity token cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// JournalConfig configures the run history.
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Workers          int           `mapstructure:"workers"`
	Hash             string        `mapstructure:"hash"`
	LinkKind         string        `mapstructure:"link_kind"`
	RelativeSymlinks bool          `mapstructure:"relative_symlinks"`
	Strict           bool          `mapstructure:"strict"`
	DryRun           bool          `mapstructure:"dry_run"`
	Trash            bool          `mapstructure:"trash"`
	Guard            bool          `mapstructure:"guard"`
	MetricsFile      string        `mapstructure:"metrics_file"`
	Cache            CacheConfig   `mapstructure:"cache"`
	Journal          JournalConfig `mapstructure:"journal"`
	Logging          LoggingConfig `mapstructure:"logging"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workers", 0)
	v.SetDefault("hash", DefaultHash)
	v.SetDefault("link_kind", DefaultLinkKind)
	v.SetDefault("relative_symlinks", true)
	v.SetDefault("strict", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("trash", false)
	v.SetDefault("guard", true)
	v.SetDefault("metrics_file", "")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", DefaultCachePath())

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", DefaultJournalDir())
	v.SetDefault("journal.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.components", map[string]string{})
}

// Configure prepares v to read the config file and BINMIN_ environment
// variables. An explicit file overrides the search path.
func Configure(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
	}

	v.SetEnvPrefix("BINMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
}

// ReadInConfig reads the config file, ignoring a missing one.
func ReadInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load reads configuration from file and environment into a fresh viper.
func Load(file string) (*Config, error) {
	v := viper.New()
	Configure(v, file)
	if err := ReadInConfig(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes a Config from an already configured viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	if cfg.Cache.Path, err = ExpandPath(cfg.Cache.Path); err != nil {
		return nil, err
	}
	if cfg.Journal.Path, err = ExpandPath(cfg.Journal.Path); err != nil {
		return nil, err
	}
	if cfg.Logging.Path, err = ExpandPath(cfg.Logging.Path); err != nil {
		return nil, err
	}
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	return &cfg, nil
}

// ConfigDir returns $XDG_CONFIG_HOME/binmin.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "binmin")
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns $XDG_DATA_HOME/binmin for the journal.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "binmin")
}

// CacheDir returns $XDG_CACHE_HOME/binmin.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "binmin")
}

// DefaultCachePath returns the default identity cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "identity")
}

// DefaultJournalDir returns the default journal directory.
func DefaultJournalDir() string {
	return filepath.Join(DataDir(), "journal")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a default config file to path if none exists.
// Returns the path written (or found).
func WriteDefault(path string) (string, error) {
	if path == "" {
		path = ConfigFile()
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# binmin configuration

# Identity computations kept in flight while looking for duplicates.
# 0 sizes the pool from the CPU count and available memory.
workers: 0

# Identity hash: sha256 or xxhash
hash: %s

# Link kind used to build the verification shadow tree: symlink or hardlink
link_kind: %s

# Resolve relative symlink targets against the link's own directory
relative_symlinks: true

# Reject any difference between source and shadow tree, even empty folders
strict: false

# Verify but never delete
dry_run: false

# Send removed duplicates to the system trash instead of deleting them
trash: false

# Abort if the source tree changes while a run is in progress
guard: true

# Write prometheus metrics to this file after each run (textfile collector)
metrics_file: ""

# Identity token cache, validated by size and mtime
cache:
  enabled: false
  path: %s

# Run history
journal:
  enabled: true
  path: %s
  retention_days: %d

logging:
  # debug, info, warn, error
  level: %s
  # empty means $XDG_STATE_HOME/binmin/binmin.log
  path: ""
  components: {}
`, DefaultHash, DefaultLinkKind, DefaultCachePath(), DefaultJournalDir(), DefaultRetentionDays, DefaultLogLevel)

	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}
