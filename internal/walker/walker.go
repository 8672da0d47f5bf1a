// Package walker recursively enumerates a root directory, reconciling
// each directory it visits against its DirCache so unchanged files never
// get re-stated work beyond a single stat(2) call.
//
// # Traversal
//
// The walk is depth-first and single-threaded; see internal/duplicatefinder
// for where this codebase does choose to parallelize, once candidate
// files are known and I/O-bound hashing dominates. Hidden directories
// (basename starting with ".") are skipped entirely. Files are not
// filtered by a leading "."; the DirCache file itself is excluded by its
// name when listing a directory's regular entries.
//
// # Failure model
//
// A stat error on one file marks its directory as an "exception": the
// directory's progress entry is not committed, so it will be fully
// re-scanned on the next run, but every other file in that directory is
// still emitted to the caller.
package walker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dedup/dedup/internal/config"
	"github.com/dedup/dedup/internal/dircache"
	"github.com/dedup/dedup/internal/progress"
	"github.com/dedup/dedup/internal/types"
)

// Result is the output of a single Walk call. Dirs holds the reconciled
// cache for every visited directory that stated cleanly; directories
// where a stat failed are absent, so later fingerprint persistence never
// writes a cache for a directory that must be re-scanned anyway.
type Result struct {
	Files map[types.AbsolutePath]*types.FileEntry
	Dirs  map[types.AbsolutePath]*dircache.DirCache
}

// Walker enumerates files under a root directory.
type Walker struct {
	opts         config.Options
	showProgress bool
	errCh        chan<- error

	progressSeen      map[string]bool
	progressFile      *os.File
	progressTruncated bool
}

// New creates a Walker using opts for thresholds, resume mode and
// dry-run behavior. errCh, if non-nil, receives non-fatal per-file and
// per-directory errors; the caller drains it.
func New(opts config.Options, showProgress bool, errCh chan<- error) *Walker {
	return &Walker{opts: opts, showProgress: showProgress, errCh: errCh}
}

type stats struct {
	scannedFiles int64
	scannedBytes int64
}

func (s *stats) String() string {
	return fmt.Sprintf("Scanned %d files (%s)", s.scannedFiles, humanize.IBytes(uint64(s.scannedBytes)))
}

// Walk canonicalizes root and recursively enumerates it, returning every
// file found and the DirCache for every cleanly-scanned directory (the
// latter is how freshly computed fingerprints find their way back to
// disk after the duplicate finder runs).
func (w *Walker) Walk(root string) (*Result, error) {
	resolved, err := canonicalize(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	w.loadProgress()
	if err := w.openProgressAppend(); err != nil {
		return nil, err
	}
	defer func() {
		if w.progressFile != nil {
			_ = w.progressFile.Close()
		}
	}()

	result := &Result{
		Files: make(map[types.AbsolutePath]*types.FileEntry),
		Dirs:  make(map[types.AbsolutePath]*dircache.DirCache),
	}

	bar := progress.New(w.showProgress, -1)
	st := &stats{}
	bar.Describe(st)

	w.walkDir(resolved, result, st, bar)

	bar.Finish(st)
	return result, nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// loadProgress reads the committed-directories set, if resume mode is
// active. Any read error (including a missing file) yields an empty set
// — resume degrades to a full rescan of the affected directories, it
// never aborts.
func (w *Walker) loadProgress() {
	w.progressSeen = make(map[string]bool)
	if !w.opts.Resume {
		return
	}
	f, err := os.Open(w.opts.Paths.ProgressPath())
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			w.progressSeen[line] = true
		}
	}
}

func (w *Walker) openProgressAppend() error {
	if w.opts.DryRun {
		return nil
	}
	// A fresh (non-resume) session starts the progress file over, but
	// only on the first root: later Walk calls on the same Walker append,
	// so scanning several roots accumulates one combined progress set.
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !w.opts.Resume && !w.progressTruncated {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		w.progressTruncated = true
	}
	f, err := os.OpenFile(w.opts.Paths.ProgressPath(), flags, 0o644)
	if err != nil {
		return fmt.Errorf("open progress file: %w", err)
	}
	w.progressFile = f
	return nil
}

// walkDir processes one directory and recurses into its subdirectories,
// in sorted order (caller-visible ordering is not a pipeline guarantee,
// but deterministic traversal makes test fixtures reproducible).
func (w *Walker) walkDir(dir string, result *Result, st *stats, bar *progress.Bar) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.sendError(fmt.Errorf("read dir %s: %w", dir, err))
		return
	}

	var subdirs []string
	for _, de := range entries {
		if de.IsDir() && !strings.HasPrefix(de.Name(), ".") {
			subdirs = append(subdirs, filepath.Join(dir, de.Name()))
		}
	}
	sort.Strings(subdirs)

	if w.opts.Resume && w.progressSeen[dir] {
		oldCache := dircache.Load(dir, w.opts.Paths.DirCachePath(dir), w.opts.DryRun)
		result.Dirs[dir] = oldCache
		for _, path := range oldCache.Paths() {
			entry, _ := oldCache.Get(path)
			result.Files[path] = entry
			st.scannedFiles++
			st.scannedBytes += entry.Size
		}
		bar.Describe(st)
		for _, sub := range subdirs {
			w.walkDir(sub, result, st, bar)
		}
		return
	}

	w.reconcile(dir, entries, result, st, bar)
	for _, sub := range subdirs {
		w.walkDir(sub, result, st, bar)
	}
}

// reconcile lists dir's regular files, carries forward fresh cache
// entries, stats the rest, and commits the directory's progress+cache
// when everything stated cleanly and something actually changed.
func (w *Walker) reconcile(dir string, entries []os.DirEntry, result *Result, st *stats, bar *progress.Bar) {
	cachePath := w.opts.Paths.DirCachePath(dir)
	oldCache := dircache.Load(dir, cachePath, w.opts.DryRun)
	newCache := dircache.New(dir, cachePath, w.opts.DryRun)

	changed := false
	exception := false

	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || name == w.opts.Paths.DirCacheName {
			continue
		}
		if de.Type()&os.ModeSymlink != 0 {
			continue
		}
		if de.Type()&os.ModeType != 0 && !de.Type().IsRegular() {
			continue // devices, sockets, etc.
		}

		path := filepath.Join(dir, name)
		info, err := de.Info()
		if err != nil {
			w.sendError(fmt.Errorf("stat %s: %w", path, err))
			exception = true
			continue
		}

		entry := &types.FileEntry{Path: path, Dir: dir, Size: info.Size(), ModTime: info.ModTime()}
		if cached, ok := oldCache.Get(path); ok && dircache.Fresh(cached, info.Size(), info.ModTime()) {
			entry.Fingerprint = cached.Fingerprint
		} else {
			changed = true
		}
		newCache.Put(path, entry)
		result.Files[path] = entry
		st.scannedFiles++
		st.scannedBytes += entry.Size
		bar.Describe(st)
	}

	if exception {
		// Progress is not committed and the cache is left out of the
		// result, so the whole directory is re-scanned next run. The
		// files that did stat cleanly were still emitted above.
		return
	}

	result.Dirs[dir] = newCache

	// A file that vanished since the last scan also counts as a change:
	// the stale entry must not survive into the stored cache.
	if !changed && newCache.Len() != oldCache.Len() {
		changed = true
	}
	if !changed {
		newCache.MarkClean()
		return
	}

	if newCache.Len() == 0 {
		if !w.opts.DryRun {
			if err := dircache.Wipe(cachePath); err != nil {
				w.sendError(fmt.Errorf("wipe cache %s: %w", dir, err))
				return
			}
		}
	} else if err := newCache.Store(); err != nil {
		w.sendError(fmt.Errorf("store cache %s: %w", dir, err))
		return
	}
	w.commitProgress(dir)
}

func (w *Walker) commitProgress(dir string) {
	w.progressSeen[dir] = true
	if w.progressFile == nil {
		return
	}
	if _, err := fmt.Fprintln(w.progressFile, dir); err != nil {
		w.sendError(fmt.Errorf("write progress: %w", err))
		return
	}
	if err := w.progressFile.Sync(); err != nil {
		w.sendError(fmt.Errorf("sync progress: %w", err))
	}
}

func (w *Walker) sendError(err error) {
	if w.errCh != nil {
		w.errCh <- err
	}
}
