// Package types provides the shared data model used across the dedup
// pipeline: canonicalized paths, per-file metadata, fingerprints, and the
// duplicate-group map produced by the detection core.
package types

import (
	"math"
	"time"
)

// AbsolutePath is a canonicalized, symlink-resolved path. All identity
// comparisons inside the core use this form.
type AbsolutePath = string

// Fingerprint is a 128-bit MD5 digest rendered as 32 lowercase hex
// characters. It has two constructions (full vs partial, see package
// hasher) that are never compared against each other; a Fingerprint is
// only meaningful relative to the construction rule that produced it for
// a given file's size class.
type Fingerprint = string

// FileEntry holds the metadata Walker collects for one file. Fingerprint
// is populated lazily — only once something demands it (a size
// collision) — and is nil until then.
type FileEntry struct {
	Path        AbsolutePath
	Dir         AbsolutePath
	Size        int64
	ModTime     time.Time
	Fingerprint *Fingerprint
}

// RoundedModTime returns ModTime as Unix seconds rounded to two decimal
// places, matching the freshness rule DirCache uses to decide whether a
// cached fingerprint still applies: round(mtime, 2) must equal the
// cached value.
func (f *FileEntry) RoundedModTime() float64 {
	return RoundSeconds(f.ModTime)
}

// RoundSeconds rounds a time.Time to two decimal places of Unix seconds.
func RoundSeconds(t time.Time) float64 {
	secs := float64(t.UnixNano()) / float64(time.Second)
	return math.Round(secs*100) / 100
}

// DuplicateGroups maps a Fingerprint to the set of paths sharing it.
// Every group has length >= 2; the key is an opaque identifier — it may
// be a full hash or an unverified partial hash depending on whether Pass
// 3 ran — downstream code must not interpret it.
type DuplicateGroups map[Fingerprint][]AbsolutePath
