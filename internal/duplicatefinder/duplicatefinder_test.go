package duplicatefinder

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dedup/dedup/internal/hasher"
	"github.com/dedup/dedup/internal/types"
)

func writeFile(t *testing.T, dir, name string, content []byte) *types.FileEntry {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	return &types.FileEntry{Path: path, Dir: dir, Size: info.Size(), ModTime: info.ModTime()}
}

func sortedGroup(paths []types.AbsolutePath) []string {
	out := append([]string{}, paths...)
	sort.Strings(out)
	return out
}

func TestFindsSimpleDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("hello"))
	b := writeFile(t, dir, "b.txt", []byte("hello"))
	c := writeFile(t, dir, "c.txt", []byte("different"))

	files := map[types.AbsolutePath]*types.FileEntry{a.Path: a, b.Path: b, c.Path: c}

	h := hasher.New(1000, 100)
	f := New(h, 1000, 2, false, nil)
	groups := f.Run(files)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d: %+v", len(groups), groups)
	}
	for _, paths := range groups {
		got := sortedGroup(paths)
		want := sortedGroup([]types.AbsolutePath{a.Path, b.Path})
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("unexpected group: %v", got)
		}
	}
}

func TestUniqueSizeNeverHashed(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("short"))
	b := writeFile(t, dir, "b.txt", []byte("much longer content here"))

	files := map[types.AbsolutePath]*types.FileEntry{a.Path: a, b.Path: b}

	h := hasher.New(1000, 100)
	f := New(h, 1000, 2, false, nil)
	groups := f.Run(files)

	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}

func TestLargeFilePartialCollisionIsRejectedByFullVerify(t *testing.T) {
	dir := t.TempDir()

	// size=120, segment=10 puts the three probes at [0,10), [55,65),
	// [110,120); the diffByte filler occupies [10,55) and [65,110),
	// outside all three, so the partial hash collides while the full
	// hash does not.
	build := func(diffByte byte) []byte {
		fill := func(n int, b byte) []byte {
			buf := make([]byte, n)
			for i := range buf {
				buf[i] = b
			}
			return buf
		}
		out := append([]byte{}, fill(10, 'A')...)
		out = append(out, fill(45, diffByte)...)
		out = append(out, fill(10, 'M')...)
		out = append(out, fill(45, diffByte)...)
		out = append(out, fill(10, 'Z')...)
		return out
	}

	a := writeFile(t, dir, "a.bin", build('x'))
	b := writeFile(t, dir, "b.bin", build('y'))

	files := map[types.AbsolutePath]*types.FileEntry{a.Path: a, b.Path: b}

	// threshold=100 means both 120-byte files are "large" and get
	// full-verified in Pass 3, even though their Pass 2 partial hashes
	// (segment=10) collide on the shared head/mid-edge/tail probes.
	h := hasher.New(100, 10)
	f := New(h, 100, 2, false, nil)
	groups := f.Run(files)

	if len(groups) != 0 {
		t.Fatalf("expected large-file partial collision to be rejected, got %d groups: %+v", len(groups), groups)
	}
}

func TestSmallFileGroupTrustedWithoutReverify(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("twin"))
	b := writeFile(t, dir, "b.txt", []byte("twin"))

	files := map[types.AbsolutePath]*types.FileEntry{a.Path: a, b.Path: b}

	h := hasher.New(1000, 100)
	f := New(h, 1000, 2, false, nil)
	groups := f.Run(files)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
}

func TestMissingFileDuringVerifyIsDropped(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.bin", make([]byte, 200))
	b := writeFile(t, dir, "b.bin", make([]byte, 200))

	files := map[types.AbsolutePath]*types.FileEntry{a.Path: a, b.Path: b}

	if err := os.Remove(b.Path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	errCh := make(chan error, 10)
	h := hasher.New(100, 10)
	f := New(h, 100, 2, false, errCh)
	groups := f.Run(files)

	if len(groups) != 0 {
		t.Fatalf("expected no surviving groups once a member vanished, got %d", len(groups))
	}
	close(errCh)
	if _, ok := <-errCh; !ok {
		t.Fatal("expected an error to be reported for the missing file")
	}
}

func TestNoCandidatesReturnsEmptyMap(t *testing.T) {
	h := hasher.New(1000, 100)
	f := New(h, 1000, 2, false, nil)
	groups := f.Run(map[types.AbsolutePath]*types.FileEntry{})
	if len(groups) != 0 {
		t.Fatalf("expected empty result, got %d", len(groups))
	}
}
