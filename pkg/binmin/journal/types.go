// Package journal keeps a history of minimization runs on disk.
//
// Each run is one JSON file named after its ID. The journal answers
// "what did binmin delete, from where, and when" long after the run.
package journal

import (
	"time"

	"github.com/jamesainslie/binmin/pkg/binmin/types"
)

// Outcome is the final state of a recorded run.
type Outcome string

const (
	// OutcomeCommitted means derived paths were deleted.
	OutcomeCommitted Outcome = "committed"
	// OutcomeDryRun means the run verified and stopped before deleting.
	OutcomeDryRun Outcome = "dry-run"
	// OutcomeAborted means the run failed before or during commit.
	OutcomeAborted Outcome = "aborted"
)

// Record describes one run.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Root      string    `json:"root"`
	Outcome   Outcome   `json:"outcome"`

	// Phase names the failing phase of an aborted run.
	Phase string `json:"phase,omitempty"`
	Error string `json:"error,omitempty"`

	Strict       bool   `json:"strict"`
	Trash        bool   `json:"trash"`
	LinkKind     string `json:"link_kind"`
	ManifestPath string `json:"manifest_path,omitempty"`

	Stats   types.Stats     `json:"stats"`
	Deleted []DeletedRecord `json:"deleted,omitempty"`
	Summary Summary         `json:"summary"`
}

// DeletedRecord is one derived path removed by commit.
type DeletedRecord struct {
	Path      string `json:"path"`
	Canonical string `json:"canonical"`
	Size      int64  `json:"size"`
}

// Summary totals the deleted paths.
type Summary struct {
	TotalFiles int64 `json:"total_files"`
	TotalBytes int64 `json:"total_bytes"`
}
