// Package hasher computes content fingerprints for files.
//
// Two constructions are provided over MD5:
//
//   - Full: a sequential read of the entire file in 64 KiB chunks.
//   - Partial: three 64 KiB-chunked reads of a fixed segment size, taken
//     from the head, middle and tail of a file, fed into a single MD5
//     instance in that order. Used only as a pre-filter for files larger
//     than the large-file threshold; Pass 3 of the duplicate finder
//     always re-verifies matches with the full construction before
//     trusting them, so a theoretical partial-hash collision can never
//     produce a wrong final answer.
//
// The two constructions are never compared against each other — a
// Fingerprint only means something relative to the rule that produced it
// for a given file's size class.
package hasher

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// blockSize is the read buffer used by both constructions.
const blockSize = 64 * 1024

// HashFailed wraps any read error encountered while fingerprinting a
// file. Callers log it and skip the file; it is never fatal.
type HashFailed struct {
	Path  string
	Cause error
}

func (e *HashFailed) Error() string {
	return fmt.Sprintf("hash %s: %v", e.Path, e.Cause)
}

func (e *HashFailed) Unwrap() error { return e.Cause }

// Hasher computes fingerprints using a configured large-file threshold
// and partial-segment size. Both are immutable once constructed.
type Hasher struct {
	largeFileThreshold int64
	partialHashSize    int64
}

// New creates a Hasher. largeFileThreshold and partialHashSize must be
// positive; callers typically pass config.Options's matching fields.
func New(largeFileThreshold, partialHashSize int64) *Hasher {
	return &Hasher{
		largeFileThreshold: largeFileThreshold,
		partialHashSize:    partialHashSize,
	}
}

// Hash returns a fingerprint for the file at path. Given full=false, it
// returns the partial construction for files strictly larger than the
// large-file threshold, and the full construction otherwise. Given
// full=true, it always returns the full construction.
func (h *Hasher) Hash(path string, size int64, full bool) (string, error) {
	if !full && size > h.largeFileThreshold {
		return h.hashPartial(path, size)
	}
	return h.hashFull(path)
}

// hashFull reads the entire file sequentially through MD5.
func (h *Hasher) hashFull(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &HashFailed{Path: path, Cause: err}
	}
	defer func() { _ = f.Close() }()

	digest := md5.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(digest, f, buf); err != nil {
		return "", &HashFailed{Path: path, Cause: err}
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// hashPartial feeds three segments — prefix, middle, suffix — into a
// single MD5 instance, in that order. Offsets are:
//
//	prefix: 0
//	middle: (size - segment) / 2   (integer division, floored)
//	suffix: size - segment
//
// At small file sizes these ranges may overlap; that is allowed and
// deterministic, not special-cased. If a segment hits EOF before reading
// segment bytes, that segment simply stops short — the read is bounded
// by the file's own length, not treated as an error.
func (h *Hasher) hashPartial(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &HashFailed{Path: path, Cause: err}
	}
	defer func() { _ = f.Close() }()

	segment := h.partialHashSize
	digest := md5.New()
	buf := make([]byte, blockSize)

	offsets := [3]int64{
		0,
		(size - segment) / 2,
		size - segment,
	}
	for _, offset := range offsets {
		if offset < 0 {
			offset = 0
		}
		if err := hashSegment(f, digest, buf, offset, segment); err != nil {
			return "", &HashFailed{Path: path, Cause: err}
		}
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// hashSegment seeks to offset and feeds up to size bytes into digest,
// stopping early (without error) on EOF.
func hashSegment(f *os.File, digest io.Writer, buf []byte, offset, size int64) error {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.CopyBuffer(digest, io.LimitReader(f, size), buf)
	return err
}
