// Package output renders binmin run reports in several formats
// (pretty, plain, json, yaml).
//
// Formatters are looked up by name in a registry:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, report); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

// Group is one canonical file and the paths derived from it.
type Group struct {
	Canonical string   `json:"canonical" yaml:"canonical"`
	Derived   []string `json:"derived" yaml:"derived"`

	// Size is the canonical's size, zero when unknown.
	Size int64 `json:"size" yaml:"size"`
}

// Deleted is one removed path.
type Deleted struct {
	Path      string `json:"path" yaml:"path"`
	Canonical string `json:"canonical" yaml:"canonical"`
	Size      int64  `json:"size" yaml:"size"`
}

// Report is everything a formatter renders about a run or plan.
type Report struct {
	// Source is the tree root.
	Source string

	// State is the final workflow state, or "planned" for a plan.
	State string

	Strict bool
	Trash  bool

	Stats types.Stats

	// Groups are the consolidated manifest entries in canonical order.
	Groups []Group

	// Unique is the number of files kept as they are.
	Unique int

	// Deleted lists the paths removed by commit.
	Deleted []Deleted

	// Diff lists accepted verification operations.
	Diff []string

	// NotFound lists references that do not resolve to a file.
	NotFound []string

	// ManifestPath is where the manifest was saved, if anywhere.
	ManifestPath string

	// ShadowPath is the kept shadow tree, if any.
	ShadowPath string

	Duration time.Duration
}

// DerivedCount returns the number of derived paths across all groups.
func (r *Report) DerivedCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Derived)
	}
	return n
}

// DeletedBytes returns the total size of the deleted paths.
func (r *Report) DeletedBytes() int64 {
	var total int64
	for _, d := range r.Deleted {
		total += d.Size
	}
	return total
}

// Formatter renders a Report.
type Formatter interface {
	// Format writes the formatted report to the buffer.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the registered formatter names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
