package trash

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalDeletePermanentRemovesFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "f")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d := LocalDeleter{}
	if err := d.Delete(path, true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be gone, stat err = %v", path, err)
	}
}

func TestLocalDeleteNonPermanentMovesToTrashDir(t *testing.T) {
	tmp := t.TempDir()
	trashDir := filepath.Join(tmp, "trash")
	path := filepath.Join(tmp, "f")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d := LocalDeleter{Dir: trashDir}
	if err := d.Delete(path, false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected original path gone")
	}

	entries, err := os.ReadDir(trashDir)
	if err != nil {
		t.Fatalf("ReadDir(trashDir): %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file staged in trash dir, got %d", len(entries))
	}
}
