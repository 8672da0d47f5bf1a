// Package session wires the leaf components — Walker, DuplicateFinder,
// Checkpointer, Press, Purger — into the three CLI-visible operations:
// stats, dedup, and clear_cache. It is the thin "processor" layer the
// command dispatcher calls into; the dispatcher itself (cmd/dedup) only
// parses flags and calls these methods.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dedup/dedup/internal/appraiser"
	"github.com/dedup/dedup/internal/checkpoint"
	"github.com/dedup/dedup/internal/config"
	"github.com/dedup/dedup/internal/dircache"
	"github.com/dedup/dedup/internal/duplicatefinder"
	"github.com/dedup/dedup/internal/hasher"
	"github.com/dedup/dedup/internal/press"
	"github.com/dedup/dedup/internal/prompt"
	"github.com/dedup/dedup/internal/purger"
	"github.com/dedup/dedup/internal/trash"
	"github.com/dedup/dedup/internal/types"
	"github.com/dedup/dedup/internal/walker"
)

// Runner executes the CLI-visible operations against a fixed
// configuration and a set of collaborators it does not own: the
// terminal prompter and the delete backend are both injected so tests
// can substitute doubles for either.
type Runner struct {
	opts     config.Options
	prompter prompt.Prompter
	deleter  trash.Deleter
}

// New creates a Runner.
func New(opts config.Options, prompter prompt.Prompter, deleter trash.Deleter) *Runner {
	return &Runner{opts: opts, prompter: prompter, deleter: deleter}
}

// Scan runs Walker over every root and then the three-pass
// DuplicateFinder, returning the confirmed duplicate groups. Non-fatal
// per-file and per-directory errors are printed to stderr as they occur;
// the scan itself never aborts because of them.
func (r *Runner) Scan(roots []string) (types.DuplicateGroups, error) {
	errCh := make(chan error, 256)
	done := make(chan struct{})
	go func() {
		for err := range errCh {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
		close(done)
	}()
	defer func() {
		close(errCh)
		<-done
	}()

	files := make(map[types.AbsolutePath]*types.FileEntry)
	dirs := make(map[types.AbsolutePath]*dircache.DirCache)
	w := walker.New(r.opts, !r.opts.NoProgress, errCh)
	for _, root := range roots {
		result, err := w.Walk(root)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
		for path, entry := range result.Files {
			files[path] = entry
		}
		for dir, cache := range result.Dirs {
			dirs[dir] = cache
		}
	}

	h := hasher.New(r.opts.LargeFileThreshold, r.opts.PartialHashSize)
	finder := duplicatefinder.New(h, r.opts.LargeFileThreshold, r.opts.Workers, !r.opts.NoProgress, errCh)
	groups := finder.Run(files)

	// Fingerprints computed in Pass 2 go back into their directory
	// caches, so the next scan of an unchanged tree hashes nothing.
	for _, entry := range finder.FreshlyHashed() {
		if cache, ok := dirs[entry.Dir]; ok {
			cache.Put(entry.Path, entry)
		}
	}
	for dir, cache := range dirs {
		if err := cache.Store(); err != nil {
			errCh <- fmt.Errorf("store cache %s: %w", dir, err)
		}
	}

	return groups, nil
}

// Stats runs a scan and returns the duplicate groups unresolved, for the
// "stats" command's read-only report.
func (r *Runner) Stats(roots []string) (types.DuplicateGroups, error) {
	return r.Scan(roots)
}

// Dedup runs the full scan -> checkpoint -> press -> checkpoint -> purge
// flow, honoring resume mode at both checkpoint boundaries.
func (r *Runner) Dedup(roots []string) error {
	cp, err := checkpoint.Open(r.opts.Paths.SessionCachePath())
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() { _ = cp.Close() }()

	groups, resumed := r.loadGroups(cp)
	if !resumed {
		groups, err = r.Scan(roots)
		if err != nil {
			return err
		}
		if err := cp.SaveGroups(groups); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}

	if len(groups) == 0 {
		fmt.Println("no duplicates")
		return nil
	}

	redundant, pendingMoves, resumed := r.loadResolution(cp)
	if !resumed {
		rb := appraiser.Load(r.opts.Paths)
		errCh := make(chan error, 256)
		done := make(chan struct{})
		go func() {
			for err := range errCh {
				fmt.Fprintln(os.Stderr, "warning:", err)
			}
			close(done)
		}()

		pr := press.New(rb, r.prompter, !r.opts.NoProgress, errCh)
		redundant, pendingMoves, err = pr.Run(groups)
		close(errCh)
		<-done
		if err != nil {
			return fmt.Errorf("press: %w", err)
		}
		if err := cp.SaveResolution(redundant, pendingMoves); err != nil {
			return fmt.Errorf("save resolution: %w", err)
		}
	}

	fmt.Printf("processing: %d deletions, %d moves\n", len(redundant), len(pendingMoves))

	errCh := make(chan error, 256)
	done := make(chan struct{})
	go func() {
		for err := range errCh {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
		close(done)
	}()
	pg := purger.New(r.opts.Paths, r.prompter, r.deleter, r.opts.DryRun, r.opts.Unlink, errCh)
	err = pg.Run(redundant, pendingMoves, groups)
	close(errCh)
	<-done
	return err
}

func (r *Runner) loadGroups(cp *checkpoint.Store) (types.DuplicateGroups, bool) {
	if !r.opts.Resume {
		return nil, false
	}
	groups, ok := cp.LoadGroups()
	return groups, ok
}

func (r *Runner) loadResolution(cp *checkpoint.Store) ([]string, map[string]string, bool) {
	if !r.opts.Resume {
		return nil, nil, false
	}
	return cp.LoadResolution()
}

// ClearTarget names one group of state clear_cache can wipe.
type ClearTarget int

const (
	ClearHashCache ClearTarget = iota
	ClearSession
	ClearAnswers
	ClearRules
)

// ClearCache wipes the requested state groups for every root. Hash
// caches are cleared per-directory by walking the tree (without
// hashing); the rest are single files rooted at the session's Paths.
func (r *Runner) ClearCache(roots []string, targets []ClearTarget) error {
	want := make(map[ClearTarget]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}

	if want[ClearHashCache] {
		for _, root := range roots {
			if err := clearDirCaches(root, r.opts.Paths.DirCacheName); err != nil {
				return fmt.Errorf("clear hash cache under %s: %w", root, err)
			}
		}
	}

	if want[ClearSession] {
		removeAll(r.opts.Paths.SessionCachePath(), r.opts.Paths.ProgressPath())
	}
	if want[ClearAnswers] {
		removeAll(r.opts.Paths.AnswersPath(), r.opts.Paths.NewDirsPath())
	}
	if want[ClearRules] {
		removeAll(r.opts.Paths.RulesPath(), r.opts.Paths.IgnorePath(), r.opts.Paths.RemovePath())
	}
	return nil
}

func clearDirCaches(root, cacheName string) error {
	return walkDirs(root, func(dir string) error {
		return dircache.Wipe(filepath.Join(dir, cacheName))
	})
}

func walkDirs(root string, fn func(dir string) error) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	if err := fn(root); err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && e.Name()[0] != '.' {
			if err := walkDirs(filepath.Join(root, e.Name()), fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func removeAll(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: remove %s: %v\n", p, err)
		}
	}
}
