// Package press drives interactive resolution of every duplicate group
// the finder produced: consult the appraiser, fall back to a human
// prompt when it cannot decide alone, and record the resulting keep,
// redundant and pending-move decisions.
//
// Per group, the flow is a small state machine:
//
//	Start -> decide -> Decided
//	Decided, keep <= 1        -> Done
//	Decided, keep > 1         -> Interactive
//	Interactive, -/+/numeric  -> Done
//	Interactive, r            -> reload rules -> Start
//	Interactive, n/letter     -> Relocate -> Done
//
// Only the Interactive branch ever mutates the appraiser's rule weights
// (a group decide() already resolves unattended earns no extra weight).
package press

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dedup/dedup/internal/appraiser"
	"github.com/dedup/dedup/internal/progress"
	"github.com/dedup/dedup/internal/prompt"
	"github.com/dedup/dedup/internal/types"
)

// progressEvery controls how often Run reports throughput: once every
// this many resolved groups.
const progressEvery = 100

// choiceKind tags what the operator picked from the interactive menu.
type choiceKind int

const (
	kindRemoveAll choiceKind = iota
	kindKeepAll
	kindNumeric
	kindRelocate
)

type choice struct {
	kind  choiceKind
	index int    // valid for kindNumeric: index into the sorted keep list
	dest  string // valid for kindRelocate: "" means prompt for a new one
}

// Press resolves every group in a DuplicateGroups map.
type Press struct {
	rb           *appraiser.RuleBook
	prompter     prompt.Prompter
	showProgress bool
	errCh        chan<- error

	pendingMoves map[string]string
}

// New creates a Press. rb supplies ranking and persistence; prompter
// supplies the human interaction Press cannot resolve alone.
func New(rb *appraiser.RuleBook, prompter prompt.Prompter, showProgress bool, errCh chan<- error) *Press {
	return &Press{
		rb:           rb,
		prompter:     prompter,
		showProgress: showProgress,
		errCh:        errCh,
		pendingMoves: make(map[string]string),
	}
}

type rateStats struct {
	remaining int
	perSecond float64
}

func (s rateStats) String() string {
	return fmt.Sprintf("%d groups left, %.2f groups/second", s.remaining, s.perSecond)
}

// Run resolves every group and returns the accumulated redundant-path
// list and the pending-move map (source -> destination).
func (p *Press) Run(groups types.DuplicateGroups) ([]string, map[string]string, error) {
	keys := make([]string, 0, len(groups))
	for fp := range groups {
		keys = append(keys, fp)
	}
	sort.Strings(keys)

	var allRedundant []string
	bar := progress.New(p.showProgress, -1)
	start := time.Now()

	for i, fp := range keys {
		_, redundant, err := p.resolveGroup(groups[fp])
		if err != nil {
			return nil, nil, err
		}
		allRedundant = append(allRedundant, redundant...)

		if i > 0 && i%progressEvery == 0 {
			elapsed := time.Since(start).Seconds()
			rate := 0.0
			if elapsed > 0 {
				rate = progressEvery / elapsed
			}
			bar.Describe(rateStats{remaining: len(keys) - i, perSecond: rate})
			start = time.Now()
		}
	}
	bar.Finish(rateStats{remaining: 0})
	return allRedundant, p.pendingMoves, nil
}

// resolveGroup runs the per-group state machine to completion, looping
// back to Start whenever the operator asks to reload rules.
func (p *Press) resolveGroup(paths []string) (kept []string, redundant []string, err error) {
	for {
		keep, red := p.rb.Decide(paths)
		if len(keep) <= 1 {
			return keep, red, nil
		}
		sort.Strings(keep)

		suggested := p.rb.SuggestedNewDirs(keep)
		if dest := firstAutoDest(suggested, p.rb); dest != "" {
			newKeep, extra, merr := p.moveToNewLocation(keep, dest)
			if merr != nil {
				return nil, nil, merr
			}
			p.addFromFile(newKeep)
			return newKeep, append(red, extra...), nil
		}

		c, reload, perr := p.promptChoice(keep, suggested)
		if perr != nil {
			return nil, nil, perr
		}
		if reload {
			p.rb.ReloadRules()
			continue
		}

		finalKeep, extra, rerr := p.applyChoice(c, keep)
		if rerr != nil {
			return nil, nil, rerr
		}
		p.addFromFile(finalKeep)
		return finalKeep, append(red, extra...), nil
	}
}

func (p *Press) applyChoice(c choice, keep []string) (finalKeep, extraRedundant []string, err error) {
	switch c.kind {
	case kindRemoveAll:
		return nil, keep, nil
	case kindKeepAll:
		if e := p.rb.SaveAnswer(keep); e != nil {
			p.sendError(e)
		}
		return keep, nil, nil
	case kindNumeric:
		chosen := keep[c.index]
		rest := make([]string, 0, len(keep)-1)
		for i, pth := range keep {
			if i != c.index {
				rest = append(rest, pth)
			}
		}
		if e := p.rb.SaveAnswer([]string{chosen}); e != nil {
			p.sendError(e)
		}
		return []string{chosen}, rest, nil
	case kindRelocate:
		newKeep, extra, merr := p.moveToNewLocation(keep, c.dest)
		if merr != nil {
			return nil, nil, merr
		}
		p.rb.EnableAutoNewDir(resolvedDest(c.dest, newKeep))
		return newKeep, extra, nil
	default:
		return nil, nil, fmt.Errorf("press: unknown choice kind %d", c.kind)
	}
}

// resolvedDest recovers the destination directory actually used for a
// relocation, for EnableAutoNewDir, covering the "n" case where dest was
// empty and the operator typed one interactively.
func resolvedDest(dest string, newKeep []string) string {
	if dest != "" {
		return dest
	}
	if len(newKeep) == 0 {
		return ""
	}
	return filepath.Dir(newKeep[0])
}

func (p *Press) addFromFile(paths []string) {
	for _, pth := range paths {
		if err := p.rb.AddFromFile(pth); err != nil {
			p.sendError(err)
		}
	}
}

// firstAutoDest returns the first suggested destination already enabled
// for automatic reuse this session, or "" if none is.
func firstAutoDest(suggested []string, rb *appraiser.RuleBook) string {
	for _, dest := range suggested {
		if rb.AutoNewDir(dest) {
			return dest
		}
	}
	return ""
}

// promptChoice builds the menu and translates the chosen index back into
// a choice. reload=true means the operator picked "r".
func (p *Press) promptChoice(keep []string, suggested []string) (c choice, reload bool, err error) {
	items := []string{"- remove all", "+ keep all", "r reload rules", "n move to a new location"}

	letterCount := len(suggested)
	if letterCount > 26 {
		letterCount = 26 // menu exhausts the alphabet past z; remaining suggestions are dropped
	}
	for i := 0; i < letterCount; i++ {
		letter := string(rune('a' + i))
		items = append(items, fmt.Sprintf("%s move to %s", letter, suggested[i]))
	}

	numericBase := len(items)
	for i, pth := range keep {
		items = append(items, fmt.Sprintf("%d keep %s", i, pth))
	}

	idx, err := p.prompter.Select("what do you want to keep?", items)
	if err != nil {
		return choice{}, false, err
	}

	switch {
	case idx == 0:
		return choice{kind: kindRemoveAll}, false, nil
	case idx == 1:
		return choice{kind: kindKeepAll}, false, nil
	case idx == 2:
		return choice{}, true, nil
	case idx == 3:
		return choice{kind: kindRelocate, dest: ""}, false, nil
	case idx < numericBase:
		return choice{kind: kindRelocate, dest: suggested[idx-4]}, false, nil
	default:
		return choice{kind: kindNumeric, index: idx - numericBase}, false, nil
	}
}

// moveToNewLocation queues a relocation for the first path in paths that
// still exists, recording the learned source->dest mapping and the new
// path's rule weight and answer. If dest is "", the operator is prompted
// for one interactively.
func (p *Press) moveToNewLocation(paths []string, dest string) (keep []string, redundant []string, err error) {
	if dest == "" {
		raw, ierr := p.prompter.Input("new directory")
		if ierr != nil {
			return nil, nil, ierr
		}
		dest = expandAndAbs(raw)
	}

	if rerr := p.rb.RecordNewDir(uniqueDirs(paths), dest); rerr != nil {
		p.sendError(rerr)
	}

	var source string
	for _, pth := range paths {
		if _, statErr := os.Stat(pth); statErr == nil {
			source = pth
			break
		}
	}
	if source == "" {
		p.sendError(fmt.Errorf("move to new location: no source file exists among %v", paths))
		return nil, nil, nil
	}

	newPath := filepath.Join(dest, filepath.Base(source))
	p.pendingMoves[source] = newPath

	if e := p.rb.AddFromFile(newPath); e != nil {
		p.sendError(e)
	}
	if e := p.rb.SaveAnswer([]string{newPath}); e != nil {
		p.sendError(e)
	}

	for _, pth := range paths {
		if pth != source {
			redundant = append(redundant, pth)
		}
	}
	return []string{newPath}, redundant, nil
}

func uniqueDirs(paths []string) []string {
	seen := make(map[string]struct{})
	var dirs []string
	for _, pth := range paths {
		dir := filepath.Dir(pth)
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func expandAndAbs(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func (p *Press) sendError(err error) {
	if p.errCh != nil {
		p.errCh <- err
	}
}
