// Package trash provides the deletion capability Purger depends on as a
// collaborator rather than a core concern: a single delete(path,
// permanent) operation, permanent meaning unlink and non-permanent
// meaning route to the OS trash.
//
// Deleter is the seam Purger depends on. LocalDeleter is a dependency-
// free default suitable for the environments this module's tests run
// in; a real deployment would swap it for a platform trash integration
// without touching Purger at all.
package trash

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Deleter deletes a single file, either permanently or by routing it
// somewhere recoverable.
type Deleter interface {
	Delete(path string, permanent bool) error
}

// LocalDeleter unlinks permanently, or moves the file into Dir (a flat
// staging area, not a full trash implementation) when permanent is
// false. Name collisions are avoided by prefixing the destination with
// a nanosecond timestamp.
type LocalDeleter struct {
	Dir string // defaults to filepath.Join(os.TempDir(), "dedup-trash")
}

// Delete implements Deleter.
func (d LocalDeleter) Delete(path string, permanent bool) error {
	if permanent {
		return os.Remove(path)
	}

	dir := d.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "dedup-trash")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create trash dir: %w", err)
	}

	dest := filepath.Join(dir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(path)))
	return os.Rename(path, dest)
}
