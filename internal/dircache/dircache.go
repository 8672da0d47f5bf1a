// Package dircache provides the per-directory persistent metadata cache
// that lets Walker skip re-hashing files that have not changed since the
// previous scan.
//
// Each cache is a single bbolt file, one per scanned directory, at
// <dir>/.dedup-meta.cpl. bbolt gives us transactional, self-describing
// storage for free; on top of it we keep a tiny "meta" bucket holding an
// explicit format version, so a future encoding change can tell an old
// cache apart from a corrupt one and fall back to an empty cache rather
// than aborting.
//
// Writes are atomic: Store builds a brand-new bbolt file at a ".new"
// suffix, closes it, then renames it over the original. A crash
// mid-write leaves the previous cache file untouched.
package dircache

import (
	"encoding/binary"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dedup/dedup/internal/types"
)

const (
	bucketEntries = "entries"
	bucketMeta    = "meta"
	metaVersion   = "version"

	// formatVersion is bumped whenever the entry encoding changes.
	formatVersion = 1

	fingerprintSize = 32 // hex-encoded MD5
)

// DirCache is the persistent metadata memo for one directory.
type DirCache struct {
	dir     string
	path    string
	dryRun  bool
	entries map[types.AbsolutePath]*types.FileEntry
	dirty   bool
}

// New returns an empty cache for dir, without touching disk. Walker uses
// this as the write side of a reconciliation: entries carried forward or
// freshly stated are Put here, so files that vanished since the last
// scan never survive into the stored cache.
func New(dir, cachePath string, dryRun bool) *DirCache {
	return &DirCache{
		dir:     dir,
		path:    cachePath,
		dryRun:  dryRun,
		entries: make(map[types.AbsolutePath]*types.FileEntry),
	}
}

// Load opens the cache for dir at cachePath. If the file is missing,
// unreadable, or carries an unrecognized format version, it logs nothing
// itself (the caller decides how to surface that) and returns an empty,
// usable cache: a corrupt cache is never fatal, only a full rescan.
func Load(dir, cachePath string, dryRun bool) *DirCache {
	c := New(dir, cachePath, dryRun)

	// bbolt creates a missing file even when opening read-only, so a
	// missing cache is detected here and never created by Load.
	if _, err := os.Stat(cachePath); err != nil {
		return c
	}

	db, err := bolt.Open(cachePath, 0o600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return c
	}
	defer func() { _ = db.Close() }()

	_ = db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		if meta == nil || !validVersion(meta.Get([]byte(metaVersion))) {
			return nil
		}
		entries := tx.Bucket([]byte(bucketEntries))
		if entries == nil {
			return nil
		}
		return entries.ForEach(func(k, v []byte) error {
			entry, ok := decodeEntry(dir, string(k), v)
			if ok {
				c.entries[string(k)] = entry
			}
			return nil
		})
	})

	return c
}

func validVersion(b []byte) bool {
	return len(b) == 1 && b[0] == formatVersion
}

// Get returns the cached entry for path, if any.
func (c *DirCache) Get(path types.AbsolutePath) (*types.FileEntry, bool) {
	e, ok := c.entries[path]
	return e, ok
}

// Put records (or replaces) the entry for path and marks the cache dirty
// so the next Store() call actually rewrites the file.
func (c *DirCache) Put(path types.AbsolutePath, entry *types.FileEntry) {
	c.entries[path] = entry
	c.dirty = true
}

// Dirty reports whether any entry changed since Load.
func (c *DirCache) Dirty() bool { return c.dirty }

// MarkClean clears the dirty flag without writing. Walker calls it after
// a reconciliation finds a directory identical to its stored cache, so a
// later Store only fires if the entries are mutated again (a freshly
// computed fingerprint, typically).
func (c *DirCache) MarkClean() { c.dirty = false }

// Len returns the number of cached entries.
func (c *DirCache) Len() int { return len(c.entries) }

// Paths returns every path currently held by the cache, in no particular
// order. Used when a directory's progress entry is trusted wholesale on
// resume, so its cached entries can be adopted without re-statting.
func (c *DirCache) Paths() []types.AbsolutePath {
	paths := make([]types.AbsolutePath, 0, len(c.entries))
	for path := range c.entries {
		paths = append(paths, path)
	}
	return paths
}

// Store atomically replaces the cache file with the current entries. A
// no-op in dry-run mode, and a no-op when nothing changed.
func (c *DirCache) Store() error {
	if c.dryRun || !c.dirty {
		return nil
	}

	tmpPath := c.path + ".new"
	db, err := bolt.Open(tmpPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(metaVersion), []byte{formatVersion}); err != nil {
			return err
		}
		entries, err := tx.CreateBucketIfNotExists([]byte(bucketEntries))
		if err != nil {
			return err
		}
		for path, entry := range c.entries {
			if err := entries.Put([]byte(path), encodeEntry(entry)); err != nil {
				return err
			}
		}
		return nil
	})
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	c.dirty = false
	return nil
}

// Wipe deletes the cache file from disk. Missing files are not an error.
func Wipe(cachePath string) error {
	err := os.Remove(cachePath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Fresh reports whether the cached entry for path is still valid given
// the file's current size and mtime: accept iff (size, round(mtime,2))
// on disk matches the cached pair. A stale entry still carries size and
// mtime forward — only its fingerprint is considered unusable.
func Fresh(cached *types.FileEntry, size int64, modTime time.Time) bool {
	if cached.Size != size {
		return false
	}
	return cached.RoundedModTime() == types.RoundSeconds(modTime)
}

// encodeEntry packs a FileEntry into a fixed binary layout:
// size(8) + mtimeUnixNano(8) + hasFingerprint(1) + fingerprint(32 if present).
func encodeEntry(e *types.FileEntry) []byte {
	hasFP := e.Fingerprint != nil
	n := 8 + 8 + 1
	if hasFP {
		n += fingerprintSize
	}
	buf := make([]byte, n)
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.Size))
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.ModTime.UnixNano()))
	if hasFP {
		buf[16] = 1
		copy(buf[17:17+fingerprintSize], []byte(*e.Fingerprint))
	}
	return buf
}

func decodeEntry(dir, path string, buf []byte) (*types.FileEntry, bool) {
	if len(buf) < 17 {
		return nil, false
	}
	size := int64(binary.BigEndian.Uint64(buf[0:8]))
	modTime := time.Unix(0, int64(binary.BigEndian.Uint64(buf[8:16])))
	entry := &types.FileEntry{
		Path:    path,
		Dir:     dir,
		Size:    size,
		ModTime: modTime,
	}
	if buf[16] == 1 {
		if len(buf) < 17+fingerprintSize {
			return nil, false
		}
		fp := string(buf[17 : 17+fingerprintSize])
		entry.Fingerprint = &fp
	}
	return entry, true
}
