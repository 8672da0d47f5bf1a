// Package purger applies the moves and deletions Press queued, after one
// final interactive confirmation. Execution order is fixed: moves, then
// deletions, then empty-directory pruning. Every individual failure is
// logged and skipped — only the operator's "no" answer stops the whole
// pass, and dry-run never touches the filesystem.
package purger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dedup/dedup/internal/config"
	"github.com/dedup/dedup/internal/dircache"
	"github.com/dedup/dedup/internal/prompt"
	"github.com/dedup/dedup/internal/trash"
	"github.com/dedup/dedup/internal/types"
)

// Purger executes a confirmed resolution against the filesystem.
type Purger struct {
	paths     config.Paths
	prompter  prompt.Prompter
	deleter   trash.Deleter
	dryRun    bool
	permanent bool
	errCh     chan<- error
}

// New creates a Purger. permanent selects unlink over trash for every
// deletion in this run (the "-u" CLI flag).
func New(paths config.Paths, prompter prompt.Prompter, deleter trash.Deleter, dryRun, permanent bool, errCh chan<- error) *Purger {
	return &Purger{paths: paths, prompter: prompter, deleter: deleter, dryRun: dryRun, permanent: permanent, errCh: errCh}
}

// Run prompts the operator with yes/no/list, looping on "list" until
// they answer yes or no. "no" returns nil without touching the
// filesystem; "yes" executes moves, deletions, then prunes directories
// that became empty.
func (p *Purger) Run(redundant []string, pendingMoves map[string]string, groups types.DuplicateGroups) error {
	for {
		label := fmt.Sprintf("remove %d files and move %d files? yes/no/list", len(redundant), len(pendingMoves))
		idx, err := p.prompter.Select(label, []string{"yes", "no", "list"})
		if err != nil {
			return err
		}
		switch idx {
		case 0: // yes
			p.execute(redundant, pendingMoves)
			return nil
		case 1: // no
			return nil
		case 2: // list
			p.printList(redundant, pendingMoves, groups)
		}
	}
}

func (p *Purger) printList(redundant []string, pendingMoves map[string]string, groups types.DuplicateGroups) {
	if len(pendingMoves) > 0 {
		fmt.Println("=== MOVES ===")
		srcs := make([]string, 0, len(pendingMoves))
		for src := range pendingMoves {
			srcs = append(srcs, src)
		}
		sort.Strings(srcs)
		for _, src := range srcs {
			fmt.Printf("%s -> %s\n", src, pendingMoves[src])
		}
	}

	fmt.Println("=== DELETIONS ===")
	owner := make(map[string]string) // path -> fingerprint
	for fp, paths := range groups {
		for _, pth := range paths {
			owner[pth] = fp
		}
	}

	deletedByGroup := make(map[string][]string)
	for _, pth := range redundant {
		if fp, ok := owner[pth]; ok {
			deletedByGroup[fp] = append(deletedByGroup[fp], pth)
		}
	}

	fps := make([]string, 0, len(deletedByGroup))
	for fp := range deletedByGroup {
		fps = append(fps, fp)
	}
	sort.Strings(fps)

	for _, fp := range fps {
		deleted := deletedByGroup[fp]
		deletedSet := make(map[string]bool, len(deleted))
		for _, d := range deleted {
			deletedSet[d] = true
		}
		var kept []string
		for _, pth := range groups[fp] {
			if !deletedSet[pth] {
				kept = append(kept, pth)
			}
		}
		fmt.Println(strings.Join(kept, "\n"))
		sort.Strings(deleted)
		for i, d := range deleted {
			fmt.Printf("\t%3d. %s\n", i, d)
		}
	}
}

// execute runs moves, then deletions, then empty-directory pruning. No
// individual failure is fatal; every step is logged and skipped.
func (p *Purger) execute(redundant []string, pendingMoves map[string]string) {
	srcs := make([]string, 0, len(pendingMoves))
	for src := range pendingMoves {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	for _, src := range srcs {
		p.move(src, pendingMoves[src])
	}

	for _, pth := range redundant {
		p.delete(pth)
	}

	p.pruneEmptyDirs(redundant)
}

func (p *Purger) move(src, dst string) {
	if _, err := os.Stat(src); err != nil {
		p.sendError(fmt.Errorf("move source not found, skipping: %s", src))
		return
	}
	if p.dryRun {
		return
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		p.sendError(fmt.Errorf("create %s: %w", filepath.Dir(dst), err))
		return
	}
	if err := os.Rename(src, dst); err != nil {
		p.sendError(fmt.Errorf("move %s -> %s: %w", src, dst, err))
	}
}

func (p *Purger) delete(path string) {
	if p.dryRun {
		return
	}
	if err := p.deleter.Delete(path, p.permanent); err != nil {
		p.sendError(fmt.Errorf("delete %s: %w", path, err))
	}
}

// pruneEmptyDirs wipes the DirCache and removes every directory that
// held a redundant file and is now empty, deepest first so a now-empty
// parent is only examined after its children have been pruned.
func (p *Purger) pruneEmptyDirs(redundant []string) {
	seen := make(map[string]bool)
	var dirs []string
	for _, pth := range redundant {
		dir := filepath.Dir(pth)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Slice(dirs, func(i, j int) bool {
		return depth(dirs[i]) > depth(dirs[j])
	})

	for _, dir := range dirs {
		if p.dryRun {
			continue
		}
		if err := dircache.Wipe(p.paths.DirCachePath(dir)); err != nil {
			p.sendError(fmt.Errorf("wipe cache %s: %w", dir, err))
		}
		p.rmdirIfEmpty(dir)
	}
}

func (p *Purger) rmdirIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 0 {
		return
	}
	if err := os.Remove(dir); err != nil {
		if os.IsPermission(err) {
			_ = os.Chmod(dir, 0o700)
			if err2 := os.Remove(dir); err2 != nil {
				p.sendError(fmt.Errorf("rmdir %s: %w", dir, err2))
			}
			return
		}
		p.sendError(fmt.Errorf("rmdir %s: %w", dir, err))
	}
}

func depth(path string) int {
	return strings.Count(filepath.Clean(path), string(filepath.Separator))
}

func (p *Purger) sendError(err error) {
	if p.errCh != nil {
		p.errCh <- err
	}
}
