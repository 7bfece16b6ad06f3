// Package config provides configuration management for binmin.
package config

// Default configuration values for binmin.
const (
	// DefaultWorkers is the number of identity computations kept in flight
	// by a detector configured without a worker count.
	DefaultWorkers = 32

	// DefaultHash is the identity hash algorithm.
	DefaultHash = "sha256"

	// DefaultLinkKind is the kind of link the shadow tree is built from.
	DefaultLinkKind = "symlink"

	// DefaultRetentionDays is the default number of days to keep journal entries.
	DefaultRetentionDays = 30

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"
)
