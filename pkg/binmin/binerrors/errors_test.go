package binerrors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"comparison", &ComparisonError{Path: "a", Cause: fs.ErrPermission}, ErrComparison},
		{"shadow conflict", &ShadowConflictError{Path: "/tmp/x"}, ErrShadowConflict},
		{"materialization", &MaterializationError{Path: "a"}, ErrMaterialization},
		{"mismatch", &VerificationMismatchError{Ops: []string{"remove /a"}}, ErrVerificationMismatch},
		{"deletion", &DeletionError{Attempted: 2, Completed: 1}, ErrDeletion},
		{"cycle", &CycleError{Paths: []string{"a", "b", "a"}}, ErrCycle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, InPhase(PhaseVerify, tt.err), tt.sentinel)
			assert.NotErrorIs(t, tt.err, ErrTreeModified)
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := fs.ErrNotExist
	assert.ErrorIs(t, &ComparisonError{Path: "a", Cause: cause}, cause)
	assert.ErrorIs(t, &MaterializationError{Path: "a", Cause: cause}, cause)
	assert.ErrorIs(t, &DeletionError{Cause: cause}, cause)
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "comparison pair",
			err:  &ComparisonError{Path: "a", Other: "b", Cause: errors.New("short read")},
			want: "comparison error: a vs b: short read",
		},
		{
			name: "shadow conflict",
			err:  &ShadowConflictError{Path: "/tmp/x"},
			want: "folder /tmp/x already exists",
		},
		{
			name: "deletion",
			err:  &DeletionError{Attempted: 4, Completed: 1, Cause: errors.New("busy")},
			want: "could not remove files (1 of 4 removed): busy",
		},
		{
			name: "cycle",
			err:  &CycleError{Paths: []string{"a", "b", "a"}},
			want: "link cycle detected: a -> b -> a",
		},
		{
			name: "strict mismatch",
			err:  &VerificationMismatchError{Strict: true, Ops: []string{"rmdir /empty"}},
			want: "folders differ (1 operations, strict): rmdir /empty",
		},
		{
			name: "phase",
			err:  &PhaseError{Phase: PhaseCommit, Cause: errors.New("boom")},
			want: "commit failed: boom",
		},
		{
			name: "phase without cause",
			err:  &PhaseError{Phase: PhaseCollect},
			want: "collect failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestVerificationMismatchError_TruncatesOps(t *testing.T) {
	var ops []string
	for i := range 12 {
		ops = append(ops, fmt.Sprintf("create /f%d", i))
	}
	msg := (&VerificationMismatchError{Ops: ops}).Error()
	assert.Contains(t, msg, "12 operations")
	assert.Contains(t, msg, "create /f9")
	assert.NotContains(t, msg, "create /f10")
	assert.Contains(t, msg, ", ...")
}

func TestInPhase(t *testing.T) {
	assert.NoError(t, InPhase(PhaseCollect, nil))

	err := InPhase(PhaseDetect, ErrNoDuplicates)
	phase, ok := PhaseOf(err)
	require.True(t, ok)
	assert.Equal(t, PhaseDetect, phase)
	assert.ErrorIs(t, err, ErrNoDuplicates)

	// An already tagged error keeps its first phase.
	again := InPhase(PhaseCommit, fmt.Errorf("wrapped: %w", err))
	phase, ok = PhaseOf(again)
	require.True(t, ok)
	assert.Equal(t, PhaseDetect, phase)

	_, ok = PhaseOf(errors.New("plain"))
	assert.False(t, ok)
}
