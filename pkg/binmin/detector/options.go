// Package detector finds byte-identical regular files. Candidates are
// pre-filtered by size, then identified by a bounded pool of workers whose
// results fan in to a single aggregator goroutine.
package detector

import (
	"github.com/jamesainslie/binmin/pkg/binmin/config"
	"github.com/jamesainslie/binmin/pkg/binmin/content"
	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

// TokenCache stores identity tokens between runs.
type TokenCache interface {
	// Lookup returns a token still valid for task, if any.
	Lookup(root, algorithm string, task types.FileTask) (string, bool)

	// Update records freshly computed tokens.
	Update(root, algorithm string, ids []types.Identity) error
}

// Options configures duplicate detection.
type Options struct {
	// Root is the absolute tree root the task paths are relative to.
	Root string

	// Workers bounds the number of identity computations in flight.
	Workers int

	// Identifier computes content tokens. Defaults to a SHA-256 hasher.
	Identifier content.Identifier

	// Cache is an optional token cache. If nil, caching is disabled.
	Cache TokenCache

	// OnProgress is called periodically with progress updates.
	// It must be safe to call from multiple goroutines.
	OnProgress func(types.HashProgress)
}

// DefaultOptions returns options with the default worker count and hasher.
func DefaultOptions() Options {
	return Options{
		Workers:    config.DefaultWorkers,
		Identifier: content.NewHasher(content.SHA256),
	}
}

// Validate fills in defaults for unset or invalid values.
func (o *Options) Validate() error {
	if o.Workers < 1 {
		o.Workers = config.DefaultWorkers
	}
	if o.Identifier == nil {
		o.Identifier = content.NewHasher(content.SHA256)
	}
	return nil
}

// algorithm names the identity scheme for cache entries.
func (o *Options) algorithm() string {
	if h, ok := o.Identifier.(interface{ Algorithm() content.Algorithm }); ok {
		return string(h.Algorithm())
	}
	return "custom"
}
