// Package content answers the two content questions binmin asks of a file:
// "what is its identity token" (used to cluster candidates) and "are these
// two files byte-for-byte equal" (used by verification).
package content

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/jamesainslie/binmin/pkg/binmin/binerrors"
)

// Algorithm selects the identity hash.
type Algorithm string

// Supported identity algorithms.
const (
	// SHA256 is collision resistant and the default.
	SHA256 Algorithm = "sha256"

	// XXHash is much faster but not collision resistant. A collision can
	// only cause a verification mismatch, never a lossy commit, because
	// verification compares bytes.
	XXHash Algorithm = "xxhash"
)

// ErrUnknownAlgorithm is returned for an unsupported algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// ParseAlgorithm parses an algorithm name; empty means SHA256.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sha256":
		return SHA256, nil
	case "xxhash", "xxh64":
		return XXHash, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAlgorithm, s)
	}
}

// readBufferSize is the buffer used for hashing and comparison reads.
const readBufferSize = 128 * 1024

// Identifier produces a content identity token for a file.
type Identifier interface {
	Identity(path string, size int64) (string, error)
}

// Hasher computes identity tokens by hashing the whole file.
type Hasher struct {
	algo Algorithm
}

// NewHasher returns a Hasher for the given algorithm.
func NewHasher(algo Algorithm) *Hasher {
	if algo == "" {
		algo = SHA256
	}
	return &Hasher{algo: algo}
}

// Algorithm returns the hash algorithm in use.
func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

// Identity returns "<size>:<algo>:<hex digest>" for path. The size is part
// of the token so files of different lengths can never share one.
func (h *Hasher) Identity(path string, size int64) (string, error) {
	f, err := openSequential(path)
	if err != nil {
		return "", &binerrors.ComparisonError{Path: path, Cause: err}
	}
	defer f.Close()

	var digest hash.Hash
	switch h.algo {
	case XXHash:
		digest = xxhash.New()
	default:
		digest = sha256.New()
	}

	buf := make([]byte, readBufferSize)
	n, err := io.CopyBuffer(digest, f, buf)
	if err != nil {
		return "", &binerrors.ComparisonError{Path: path, Cause: err}
	}
	if size >= 0 && n != size {
		return "", &binerrors.ComparisonError{
			Path:  path,
			Cause: fmt.Errorf("file changed size while hashing: expected %d bytes, read %d", size, n),
		}
	}

	return fmt.Sprintf("%d:%s:%s", n, h.algo, hex.EncodeToString(digest.Sum(nil))), nil
}

// Equal reports whether the files at a and b hold identical bytes. Symlinks
// are followed.
func Equal(a, b string) (bool, error) {
	ia, err := os.Stat(a)
	if err != nil {
		return false, &binerrors.ComparisonError{Path: a, Other: b, Cause: err}
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false, &binerrors.ComparisonError{Path: b, Other: a, Cause: err}
	}
	if !ia.Mode().IsRegular() || !ib.Mode().IsRegular() {
		return false, nil
	}
	if ia.Size() != ib.Size() {
		return false, nil
	}
	if os.SameFile(ia, ib) {
		return true, nil
	}

	fa, err := openSequential(a)
	if err != nil {
		return false, &binerrors.ComparisonError{Path: a, Other: b, Cause: err}
	}
	defer fa.Close()

	fb, err := openSequential(b)
	if err != nil {
		return false, &binerrors.ComparisonError{Path: b, Other: a, Cause: err}
	}
	defer fb.Close()

	eq, err := equalReaders(fa, fb)
	if err != nil {
		return false, &binerrors.ComparisonError{Path: a, Other: b, Cause: err}
	}
	return eq, nil
}

// equalReaders compares two streams chunk by chunk.
func equalReaders(a, b io.Reader) (bool, error) {
	ra := bufio.NewReaderSize(a, readBufferSize)
	rb := bufio.NewReaderSize(b, readBufferSize)
	bufA := make([]byte, readBufferSize)
	bufB := make([]byte, readBufferSize)

	for {
		na, errA := io.ReadFull(ra, bufA)
		nb, errB := io.ReadFull(rb, bufB)
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}

		doneA := errors.Is(errA, io.EOF) || errors.Is(errA, io.ErrUnexpectedEOF)
		doneB := errors.Is(errB, io.EOF) || errors.Is(errB, io.ErrUnexpectedEOF)
		if errA != nil && !doneA {
			return false, errA
		}
		if errB != nil && !doneB {
			return false, errB
		}
		if doneA || doneB {
			return doneA == doneB, nil
		}
	}
}
