// Package binerrors provides structured error types for binmin.
//
// Every phase of a minimization run fails fast and whole. The workflow
// surfaces exactly one error, wrapped in a [PhaseError] naming the phase
// that failed, so callers can branch with [errors.Is] on the sentinels or
// extract details with [errors.As]:
//
//	_, err := workflow.Run(ctx, root, opts)
//	var mismatch *binerrors.VerificationMismatchError
//	if errors.As(err, &mismatch) {
//	    for _, op := range mismatch.Ops {
//	        fmt.Println(op)
//	    }
//	}
//	if errors.Is(err, binerrors.ErrNoDuplicates) {
//	    // nothing to do
//	}
package binerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrEmptyTree indicates the tree holds no regular files.
	ErrEmptyTree = errors.New("the folder is empty")

	// ErrNoDuplicates indicates no two files share content.
	ErrNoDuplicates = errors.New("no duplicate files were found")

	// ErrComparison indicates a content identity or equality check failed.
	ErrComparison = errors.New("comparison error")

	// ErrShadowConflict indicates the shadow root already exists.
	ErrShadowConflict = errors.New("shadow tree already exists")

	// ErrMaterialization indicates link creation failed.
	ErrMaterialization = errors.New("materialization error")

	// ErrVerificationMismatch indicates the shadow tree differs from the source.
	ErrVerificationMismatch = errors.New("verification mismatch")

	// ErrDeletion indicates the removal backend failed.
	ErrDeletion = errors.New("deletion error")

	// ErrCycle indicates a cycle in the derived-path graph.
	ErrCycle = errors.New("link cycle detected")

	// ErrTreeModified indicates the source tree changed during a run.
	ErrTreeModified = errors.New("source tree modified during run")
)

// Phase names a workflow stage.
type Phase string

// Workflow phases, in execution order.
const (
	PhaseCollect     Phase = "collect"
	PhaseDetect      Phase = "detect"
	PhaseConsolidate Phase = "consolidate"
	PhaseMaterialize Phase = "materialize"
	PhaseVerify      Phase = "verify"
	PhaseCommit      Phase = "commit"
)

// PhaseError tags an error with the phase that produced it.
type PhaseError struct {
	Phase Phase
	Cause error
}

// Error returns a human-readable error message.
func (e *PhaseError) Error() string {
	if e.Cause == nil {
		return string(e.Phase) + " failed"
	}
	return string(e.Phase) + " failed: " + e.Cause.Error()
}

// Unwrap returns the underlying cause for error chaining.
func (e *PhaseError) Unwrap() error {
	return e.Cause
}

// InPhase wraps err in a PhaseError unless it is nil or already tagged.
func InPhase(phase Phase, err error) error {
	if err == nil {
		return nil
	}
	var pe *PhaseError
	if errors.As(err, &pe) {
		return err
	}
	return &PhaseError{Phase: phase, Cause: err}
}

// PhaseOf returns the phase an error was tagged with, if any.
func PhaseOf(err error) (Phase, bool) {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase, true
	}
	return "", false
}

// ComparisonError is a failure of the identity or equality collaborator.
type ComparisonError struct {
	// Path is the file being read when the failure happened.
	Path string
	// Other is the second file for pairwise comparisons, empty otherwise.
	Other string
	// Cause is the underlying error
	Cause error
}

// Error returns a human-readable error message.
func (e *ComparisonError) Error() string {
	msg := "comparison error"
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Other != "" {
		msg += " vs " + e.Other
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ComparisonError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ComparisonError) Is(target error) bool {
	return target == ErrComparison
}

// ShadowConflictError reports a pre-existing shadow root.
type ShadowConflictError struct {
	Path string
}

// Error returns a human-readable error message.
func (e *ShadowConflictError) Error() string {
	return fmt.Sprintf("folder %s already exists", e.Path)
}

// Is reports whether target matches this error type.
func (e *ShadowConflictError) Is(target error) bool {
	return target == ErrShadowConflict
}

// MaterializationError is a link or directory creation failure.
type MaterializationError struct {
	// Path is the shadow path being created.
	Path string
	// Cause is the underlying error
	Cause error
}

// Error returns a human-readable error message.
func (e *MaterializationError) Error() string {
	msg := "materialization error"
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *MaterializationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *MaterializationError) Is(target error) bool {
	return target == ErrMaterialization
}

// VerificationMismatchError carries the diff that was rejected.
// Ops are rendered as "<kind> <path>" so this package stays free of
// the diff types.
type VerificationMismatchError struct {
	Strict bool
	Ops    []string
}

// Error returns a human-readable error message.
func (e *VerificationMismatchError) Error() string {
	const maxShown = 10
	shown := e.Ops
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	msg := fmt.Sprintf("folders differ (%d operations", len(e.Ops))
	if e.Strict {
		msg += ", strict"
	}
	msg += ")"
	if len(shown) > 0 {
		msg += ": " + strings.Join(shown, ", ")
	}
	if len(e.Ops) > maxShown {
		msg += ", ..."
	}
	return msg
}

// Is reports whether target matches this error type.
func (e *VerificationMismatchError) Is(target error) bool {
	return target == ErrVerificationMismatch
}

// DeletionError reports a removal backend failure part way through commit.
// Deletions already performed are not undone.
type DeletionError struct {
	Attempted int
	Completed int
	// Removed lists the paths that were deleted before the failure.
	Removed []string
	Cause   error
}

// Error returns a human-readable error message.
func (e *DeletionError) Error() string {
	msg := fmt.Sprintf("could not remove files (%d of %d removed)", e.Completed, e.Attempted)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *DeletionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *DeletionError) Is(target error) bool {
	return target == ErrDeletion
}

// CycleError reports paths that form a loop in the derived-path graph.
type CycleError struct {
	Paths []string
}

// Error returns a human-readable error message.
func (e *CycleError) Error() string {
	return "link cycle detected: " + strings.Join(e.Paths, " -> ")
}

// Is reports whether target matches this error type.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}
