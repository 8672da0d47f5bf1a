package dircache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dedup/dedup/internal/types"
)

func statNoFollow(path string) (os.FileInfo, error) { return os.Lstat(path) }

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte("not a bbolt file"), 0o644)
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, ".dedup-meta.cpl")

	c1 := Load(dir, cachePath, false)
	fp := "abcdefabcdefabcdefabcdefabcdefab"
	entry := &types.FileEntry{
		Path:        filepath.Join(dir, "a.txt"),
		Dir:         dir,
		Size:        123,
		ModTime:     time.Unix(1700000000, 0),
		Fingerprint: &fp,
	}
	c1.Put(entry.Path, entry)
	if err := c1.Store(); err != nil {
		t.Fatalf("Store: %v", err)
	}

	c2 := Load(dir, cachePath, false)
	got, ok := c2.Get(entry.Path)
	if !ok {
		t.Fatalf("expected entry to round-trip")
	}
	if got.Size != entry.Size || got.Fingerprint == nil || *got.Fingerprint != fp {
		t.Fatalf("round-tripped entry mismatch: %+v", got)
	}
}

func TestEntryWithoutFingerprint(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, ".dedup-meta.cpl")

	c := Load(dir, cachePath, false)
	entry := &types.FileEntry{Path: filepath.Join(dir, "b.txt"), Dir: dir, Size: 10, ModTime: time.Now()}
	c.Put(entry.Path, entry)
	if err := c.Store(); err != nil {
		t.Fatalf("Store: %v", err)
	}

	c2 := Load(dir, cachePath, false)
	got, ok := c2.Get(entry.Path)
	if !ok || got.Fingerprint != nil {
		t.Fatalf("expected entry without fingerprint, got %+v ok=%v", got, ok)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	c := Load(dir, filepath.Join(dir, "nope.cpl"), false)
	if _, ok := c.Get("anything"); ok {
		t.Fatal("expected empty cache")
	}
}

func TestLoadCorruptFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, ".dedup-meta.cpl")
	if err := writeGarbage(cachePath); err != nil {
		t.Fatalf("writeGarbage: %v", err)
	}
	c := Load(dir, cachePath, false)
	if _, ok := c.Get("anything"); ok {
		t.Fatal("expected empty cache on corrupt file")
	}
}

func TestDryRunStoreIsNoop(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, ".dedup-meta.cpl")
	c := Load(dir, cachePath, true)
	entry := &types.FileEntry{Path: "x", Dir: dir, Size: 1, ModTime: time.Now()}
	c.Put(entry.Path, entry)
	if err := c.Store(); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := statNoFollow(cachePath); err == nil {
		t.Fatal("expected no cache file to be written in dry-run")
	}
}

func TestFreshness(t *testing.T) {
	fp := "f"
	base := time.Unix(1700000000, 0)
	entry := &types.FileEntry{Size: 100, ModTime: base, Fingerprint: &fp}

	if !Fresh(entry, 100, base) {
		t.Fatal("expected identical size/mtime to be fresh")
	}
	if Fresh(entry, 101, base) {
		t.Fatal("expected size change to invalidate")
	}
	if Fresh(entry, 100, base.Add(time.Second)) {
		t.Fatal("expected mtime change to invalidate")
	}
	// sub-10ms jitter rounds away at two decimal places of a second.
	if !Fresh(entry, 100, base.Add(2*time.Millisecond)) {
		t.Fatal("expected sub-rounding jitter to still be fresh")
	}
}

func TestWipe(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, ".dedup-meta.cpl")
	c := Load(dir, cachePath, false)
	entry := &types.FileEntry{Path: "x", Dir: dir, Size: 1, ModTime: time.Now()}
	c.Put(entry.Path, entry)
	if err := c.Store(); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := Wipe(cachePath); err != nil {
		t.Fatalf("Wipe: %v", err)
	}
	if _, err := statNoFollow(cachePath); err == nil {
		t.Fatal("expected cache file removed")
	}
	// wiping an already-missing file is not an error.
	if err := Wipe(cachePath); err != nil {
		t.Fatalf("Wipe of missing file: %v", err)
	}
}
