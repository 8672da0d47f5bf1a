// Package appraiser ranks the members of a duplicate group, deciding
// which path to keep and which to treat as redundant. It learns from
// operator choices across the life of a project: every confirmed keep
// adds weight to its directory, and every confirmed decision is
// remembered so later runs over the same tree never ask twice.
//
// A RuleBook holds five independently-persisted tables — weighted
// directory rules, ignore patterns, remove patterns, prior answers, and
// learned relocation suggestions (newdirs) — each a plain line-oriented
// text file so an operator can hand-edit them between runs. A sixth
// table, auto_newdirs, lives only in memory for the life of one session.
// The ignore/remove type codes (`=`/`~` and `f`/`d`/`~`) are modeled as a
// small tagged variant (IgnoreKind / RemoveKind) instead of the dynamic
// string-keyed dispatch an interpreted original might use.
package appraiser

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dedup/dedup/internal/config"
)

// IgnoreKind tags an ignore-file entry.
type IgnoreKind int

const (
	IgnoreExact     IgnoreKind = iota // "=" — path or an ancestor directory matches exactly
	IgnoreSubstring                   // "~" — substring of the path
)

// RemoveKind tags a remove-file entry.
type RemoveKind int

const (
	RemoveBasename RemoveKind = iota // "f" — basename equals
	RemoveDir                        // "d" — directory equals
	RemoveSubstring                  // "~" — substring of the path
)

// RuleBook holds the Appraiser's persistent, in-memory state. All tables
// start empty; the persisted ones are populated by ReloadRules,
// LoadAnswers and LoadNewDirs. A fresh RuleBook (first run, no files
// yet) is simply permissive.
type RuleBook struct {
	paths config.Paths

	rules map[string]int64 // directory -> weight

	ignoreExact  map[string]struct{}
	ignoreSubstr []string

	removeBasename map[string]struct{}
	removeDir      map[string]struct{}
	removeSubstr   []string

	answers map[string]struct{}

	// newdirs maps a source directory to the set of destination
	// directories the operator has relocated duplicates from it to.
	// auto_newdirs is session-only: destinations the operator has
	// enabled for automatic reuse within the current run (§4.6).
	newdirs     map[string]map[string]struct{}
	autoNewdirs map[string]struct{}
}

// New creates an empty RuleBook. Callers typically follow with
// ReloadRules, LoadAnswers and LoadNewDirs to populate it from disk.
func New(paths config.Paths) *RuleBook {
	return &RuleBook{
		paths:          paths,
		rules:          make(map[string]int64),
		ignoreExact:    make(map[string]struct{}),
		removeBasename: make(map[string]struct{}),
		removeDir:      make(map[string]struct{}),
		answers:        make(map[string]struct{}),
		newdirs:        make(map[string]map[string]struct{}),
		autoNewdirs:    make(map[string]struct{}),
	}
}

// Load builds a RuleBook and immediately populates it from disk. Any
// individual file that is absent or unreadable is treated as empty —
// there is no rulebook state a missing file can corrupt.
func Load(paths config.Paths) *RuleBook {
	rb := New(paths)
	rb.ReloadRules()
	rb.LoadAnswers()
	rb.LoadNewDirs()
	return rb
}

// ReloadRules rereads the rules/ignore/remove files from disk,
// replacing all three tables. This is the only trigger for a re-read —
// normal operation keeps everything in memory across an entire session,
// and only the interactive "reload rules" signal calls this again
// mid-run.
func (rb *RuleBook) ReloadRules() {
	rb.rules = readRules(rb.paths.RulesPath())

	ignoreExact, ignoreSubstr := readIgnore(rb.paths.IgnorePath())
	rb.ignoreExact, rb.ignoreSubstr = ignoreExact, ignoreSubstr

	removeBasename, removeDir, removeSubstr := readRemove(rb.paths.RemovePath())
	rb.removeBasename, rb.removeDir, rb.removeSubstr = removeBasename, removeDir, removeSubstr
}

// LoadAnswers rereads the answers file from disk, replacing the
// in-memory answer set.
func (rb *RuleBook) LoadAnswers() {
	rb.answers = make(map[string]struct{})
	lines, err := readLines(rb.paths.AnswersPath())
	if err != nil {
		return
	}
	for _, line := range lines {
		rb.answers[line] = struct{}{}
	}
}

// LoadNewDirs rereads the newdirs file from disk, replacing the
// in-memory suggestion table. auto_newdirs is never touched here — it
// is populated only by EnableAutoNewDir, during the session itself.
func (rb *RuleBook) LoadNewDirs() {
	rb.newdirs = make(map[string]map[string]struct{})
	lines, err := readLines(rb.paths.NewDirsPath())
	if err != nil {
		return
	}
	for _, line := range lines {
		src, dest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if rb.newdirs[src] == nil {
			rb.newdirs[src] = make(map[string]struct{})
		}
		rb.newdirs[src][dest] = struct{}{}
	}
}

// SuggestedNewDirs returns the union of newdirs[dirname(p)] over every p
// in paths, sorted — the lettered menu options Press offers.
func (rb *RuleBook) SuggestedNewDirs(paths []string) []string {
	set := make(map[string]struct{})
	for _, p := range paths {
		for dest := range rb.newdirs[filepath.Dir(p)] {
			set[dest] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for dest := range set {
		out = append(out, dest)
	}
	sort.Strings(out)
	return out
}

// RecordNewDir adds dest as a relocation suggestion for every directory
// in sourceDirs and appends only the newly-seen pairs to the newdirs
// file.
func (rb *RuleBook) RecordNewDir(sourceDirs []string, dest string) error {
	var fresh [][2]string
	for _, src := range sourceDirs {
		if rb.newdirs[src] == nil {
			rb.newdirs[src] = make(map[string]struct{})
		}
		if _, ok := rb.newdirs[src][dest]; ok {
			continue
		}
		rb.newdirs[src][dest] = struct{}{}
		fresh = append(fresh, [2]string{src, dest})
	}
	if len(fresh) == 0 {
		return nil
	}

	f, err := os.OpenFile(rb.paths.NewDirsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for _, pair := range fresh {
		if _, err := fmt.Fprintf(f, "%s:%s\n", pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

// EnableAutoNewDir marks dest as auto-routed for the rest of the
// session: subsequent groups whose suggested destinations include dest
// skip the interactive prompt entirely.
func (rb *RuleBook) EnableAutoNewDir(dest string) {
	rb.autoNewdirs[dest] = struct{}{}
}

// AutoNewDir reports whether dest was enabled for auto-routing earlier
// in this session.
func (rb *RuleBook) AutoNewDir(dest string) bool {
	_, ok := rb.autoNewdirs[dest]
	return ok
}

// Decide applies the full appraiser pipeline to one duplicate group:
//
//  1. Drop ignored paths; an empty result after filtering returns ([], []).
//  2. If any survivor was previously answered, keep every answered path
//     and treat the rest as redundant immediately.
//  3. Otherwise weight survivors (remove filter + one-per-directory +
//     rule weight), keeping the highest-weight bucket.
//  4. If the remove filter eliminated every survivor, redo the weighting
//     without it, so a non-empty input never yields an empty keep set.
func (rb *RuleBook) Decide(paths []string) (keep []string, redundant []string) {
	var survivors []string
	for _, p := range paths {
		if !rb.IsIgnored(p) {
			survivors = append(survivors, p)
		}
	}
	if len(survivors) == 0 {
		return nil, nil
	}

	var answered, unanswered []string
	for _, p := range survivors {
		if rb.Answered(p) {
			answered = append(answered, p)
		} else {
			unanswered = append(unanswered, p)
		}
	}
	if len(answered) > 0 {
		return answered, unanswered
	}

	keep, redundant = rb.weigh(survivors, true)
	if len(keep) == 0 {
		keep, redundant = rb.weigh(survivors, false)
	}
	return keep, redundant
}

// weigh applies one-candidate-per-directory dedup and rule weighting to
// paths, optionally honoring the remove filter first. It returns the
// highest-weight bucket as keep and every other survivor as redundant.
func (rb *RuleBook) weigh(paths []string, filterRemove bool) (keep, redundant []string) {
	byWeight := make(map[int64][]string)
	seenDirs := make(map[string]bool)

	for _, p := range paths {
		dir := filepath.Dir(p)
		if filterRemove && rb.InRemove(dir, p) {
			redundant = append(redundant, p)
			continue
		}
		if seenDirs[dir] {
			redundant = append(redundant, p)
			continue
		}
		seenDirs[dir] = true
		byWeight[rb.CalcWeight(p)] = append(byWeight[rb.CalcWeight(p)], p)
	}

	if len(byWeight) == 0 {
		return nil, redundant
	}

	best, first := int64(0), true
	for w := range byWeight {
		if first || w > best {
			best, first = w, false
		}
	}
	keep = byWeight[best]
	for w, ps := range byWeight {
		if w != best {
			redundant = append(redundant, ps...)
		}
	}
	return keep, redundant
}

func readRules(path string) map[string]int64 {
	rules := make(map[string]int64)
	lines, err := readLines(path)
	if err != nil {
		return rules
	}
	for _, line := range lines {
		weightStr, dir, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		weight, err := strconv.ParseInt(weightStr, 10, 64)
		if err != nil {
			continue
		}
		rules[dir] = weight
	}
	return rules
}

func readIgnore(path string) (exact map[string]struct{}, substr []string) {
	exact = make(map[string]struct{})
	lines, err := readLines(path)
	if err != nil {
		return exact, nil
	}
	for _, line := range lines {
		kind, text, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch kind {
		case "=":
			exact[text] = struct{}{}
		case "~":
			substr = append(substr, text)
		}
	}
	return exact, substr
}

func readRemove(path string) (basename, dir map[string]struct{}, substr []string) {
	basename = make(map[string]struct{})
	dir = make(map[string]struct{})
	lines, err := readLines(path)
	if err != nil {
		return basename, dir, nil
	}
	for _, line := range lines {
		kind, text, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch kind {
		case "f":
			basename[text] = struct{}{}
		case "d":
			dir[text] = struct{}{}
		case "~":
			substr = append(substr, text)
		}
	}
	return basename, dir, substr
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// IsIgnored reports whether path, or any ancestor directory of path,
// matches an exact-ignore entry, or whether any substring-ignore
// pattern appears anywhere in path.
func (rb *RuleBook) IsIgnored(path string) bool {
	for _, pat := range rb.ignoreSubstr {
		if strings.Contains(path, pat) {
			return true
		}
	}
	for file := path; ; {
		if _, ok := rb.ignoreExact[file]; ok {
			return true
		}
		dir := filepath.Dir(file)
		if dir == file {
			return false
		}
		file = dir
	}
}

// InRemove reports whether filename in directory matches the remove
// filter: basename match, directory match, or substring match.
func (rb *RuleBook) InRemove(directory, filename string) bool {
	if _, ok := rb.removeBasename[filepath.Base(filename)]; ok {
		return true
	}
	if _, ok := rb.removeDir[directory]; ok {
		return true
	}
	for _, pat := range rb.removeSubstr {
		if strings.Contains(filename, pat) {
			return true
		}
	}
	return false
}

// CalcWeight sums rules[r] over every rule directory r that is a
// prefix of filePath, plus one additional rules[r] when r equals
// filePath's own directory exactly (an exact-directory match counts
// double).
func (rb *RuleBook) CalcWeight(filePath string) int64 {
	var weight int64
	dir := filepath.Dir(filePath)
	for rule, w := range rb.rules {
		if strings.HasPrefix(filePath, rule) {
			weight += w
		}
		if dir == rule {
			weight += w
		}
	}
	return weight
}

// Answered reports whether path was previously recorded as a confirmed
// keep.
func (rb *RuleBook) Answered(path string) bool {
	_, ok := rb.answers[path]
	return ok
}

// AddFromFile increments the rule weight for path's directory by one
// and rewrites the rules file in full.
func (rb *RuleBook) AddFromFile(path string) error {
	dir := filepath.Dir(path)
	rb.rules[dir]++

	var buf strings.Builder
	for d, w := range rb.rules {
		fmt.Fprintf(&buf, "%d:%s\n", w, d)
	}
	return os.WriteFile(rb.paths.RulesPath(), []byte(buf.String()), 0o644)
}

// SaveAnswer appends every path not already recorded to the answers
// file and the in-memory set, skipping duplicates.
func (rb *RuleBook) SaveAnswer(paths []string) error {
	var fresh []string
	for _, p := range paths {
		if _, ok := rb.answers[p]; !ok {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	f, err := os.OpenFile(rb.paths.AnswersPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	for _, p := range fresh {
		if _, err := fmt.Fprintln(f, p); err != nil {
			return err
		}
		rb.answers[p] = struct{}{}
	}
	return nil
}
