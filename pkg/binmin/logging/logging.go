// Package logging provides component loggers for binmin, backed by
// charmbracelet/log and a size-rotated log file.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("detector")
//	logger.Info("hashing candidates", "count", 42)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	// "-" disables the log file.
	Path string

	// MaxSize is the size in bytes at which the log file is rotated.
	// Zero uses DefaultMaxSize.
	MaxSize int64

	// MaxBackups is the number of rotated files to keep. Zero keeps
	// DefaultMaxBackups.
	MaxBackups int

	// Components maps component names to level overrides.
	Components map[string]string

	// ConsoleLevel enables stderr output at the given level.
	// Empty disables console output.
	ConsoleLevel string

	// Console overrides the console writer (stderr when nil).
	Console io.Writer
}

// Logger is a component-scoped logger writing to the log file and,
// optionally, the console.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.file.Debug(msg, args...)
	if l.console != nil {
		l.console.Debug(msg, args...)
	}
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.file.Info(msg, args...)
	if l.console != nil {
		l.console.Info(msg, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.file.Warn(msg, args...)
	if l.console != nil {
		l.console.Warn(msg, args...)
	}
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.file.Error(msg, args...)
	if l.console != nil {
		l.console.Error(msg, args...)
	}
}

// With returns a logger carrying additional key/value context.
func (l *Logger) With(args ...interface{}) *Logger {
	out := &Logger{file: l.file.With(args...), component: l.component}
	if l.console != nil {
		out.console = l.console.With(args...)
	}
	return out
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       Level
	components  map[string]Level
	console     io.Writer
	consoleOn   bool
	consoleLvl  Level
	loggers     map[string]*Logger
}

var global = &state{
	loggers:    make(map[string]*Logger),
	components: make(map[string]Level),
}

// Init configures the logging system. Loggers obtained earlier through Get
// pick up the new configuration.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.writer != nil {
		if err := global.writer.Close(); err != nil {
			return fmt.Errorf("closing existing writer: %w", err)
		}
		global.writer = nil
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	global.consoleOn = false
	if cfg.ConsoleLevel != "" {
		consoleLvl, err := ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		global.consoleOn = true
		global.consoleLvl = consoleLvl
		global.console = cfg.Console
		if global.console == nil {
			global.console = os.Stderr
		}
	}

	if cfg.Path != "-" {
		path := cfg.Path
		if path == "" {
			path = DefaultLogPath()
		}
		writer, err := NewRotatingWriter(path, cfg.MaxSize, cfg.MaxBackups)
		if err != nil {
			return fmt.Errorf("creating log writer: %w", err)
		}
		global.writer = writer
	}

	global.level = level
	global.components = components
	global.initialized = true

	// Update in place so package-level loggers captured before Init
	// start writing to the new destinations.
	for component, l := range global.loggers {
		fresh := newLogger(component)
		l.file, l.console = fresh.file, fresh.console
	}
	return nil
}

// Get returns the logger for a component. Before Init, loggers discard
// everything.
func Get(component string) *Logger {
	global.mu.RLock()
	if l, ok := global.loggers[component]; ok {
		global.mu.RUnlock()
		return l
	}
	global.mu.RUnlock()

	global.mu.Lock()
	defer global.mu.Unlock()
	if l, ok := global.loggers[component]; ok {
		return l
	}
	l := newLogger(component)
	global.loggers[component] = l
	return l
}

// newLogger must be called with global.mu held.
func newLogger(component string) *Logger {
	level := global.level
	if override, ok := global.components[component]; ok {
		level = override
	}

	var out io.Writer = io.Discard
	if global.initialized && global.writer != nil {
		out = global.writer
	}

	l := &Logger{
		component: component,
		file: log.NewWithOptions(out, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
	}

	if global.initialized && global.consoleOn {
		consoleLevel := global.consoleLvl
		if override, ok := global.components[component]; ok && override > consoleLevel {
			consoleLevel = override
		}
		l.console = log.NewWithOptions(global.console, log.Options{
			Level:           consoleLevel.charm(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}
	return l
}

// Close flushes and closes the log file and points every logger at io.Discard.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}
	global.initialized = false
	global.consoleOn = false
	global.components = make(map[string]Level)
	for component, l := range global.loggers {
		fresh := newLogger(component)
		l.file, l.console = fresh.file, fresh.console
	}
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// DefaultLogPath returns $XDG_STATE_HOME/binmin/binmin.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "binmin", "binmin.log")
}
