package press

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dedup/dedup/internal/appraiser"
	"github.com/dedup/dedup/internal/config"
	"github.com/dedup/dedup/internal/types"
)

// scriptedPrompter answers Select/Input calls from fixed scripts, in
// order, failing the test (via t.Fatalf through the recorded testing.T)
// if a script runs out before the test does.
type scriptedPrompter struct {
	t       *testing.T
	selects []int
	inputs  []string
}

func (p *scriptedPrompter) Select(label string, items []string) (int, error) {
	if len(p.selects) == 0 {
		p.t.Fatalf("unexpected Select(%q, %v) with no scripted answers left", label, items)
	}
	idx := p.selects[0]
	p.selects = p.selects[1:]
	return idx, nil
}

func (p *scriptedPrompter) Input(label string) (string, error) {
	if len(p.inputs) == 0 {
		p.t.Fatalf("unexpected Input(%q) with no scripted answers left", label)
	}
	v := p.inputs[0]
	p.inputs = p.inputs[1:]
	return v, nil
}

func newRuleBook(t *testing.T) *appraiser.RuleBook {
	t.Helper()
	paths := config.DefaultPaths(t.TempDir())
	return appraiser.Load(paths)
}

func writeDupFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("dup"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// TestSameDirTriplicateResolvesWithoutPrompt exercises all three
// candidates sharing a directory, so the dedupe-by-directory step
// narrows the weighted set to one before any prompt is needed.
func TestSameDirTriplicateResolvesWithoutPrompt(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "d", "a")
	b := filepath.Join(tmp, "d", "b")
	c := filepath.Join(tmp, "d", "c")
	for _, p := range []string{a, b, c} {
		writeDupFile(t, p)
	}

	rb := newRuleBook(t)
	prompter := &scriptedPrompter{t: t}
	pr := New(rb, prompter, false, nil)

	groups := types.DuplicateGroups{"fp1": {a, b, c}}
	redundant, moves, err := pr.Run(groups)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(moves) != 0 {
		t.Fatalf("expected no moves, got %v", moves)
	}
	if len(redundant) != 2 {
		t.Fatalf("expected 2 redundant paths, got %v", redundant)
	}
}

// TestMoveToNewLocation exercises the operator picking "n", typing a
// destination, and the first existing path becoming the move source.
func TestMoveToNewLocation(t *testing.T) {
	tmp := t.TempDir()
	dirA := filepath.Join(tmp, "dir_a")
	dirB := filepath.Join(tmp, "dir_b")
	f := filepath.Join(dirA, "f")
	f2 := filepath.Join(dirB, "f2")
	writeDupFile(t, f)
	writeDupFile(t, f2)

	dest := filepath.Join(tmp, "new")

	rb := newRuleBook(t)
	prompter := &scriptedPrompter{t: t, selects: []int{3}, inputs: []string{dest}}
	pr := New(rb, prompter, false, nil)

	sorted := []string{f, f2}
	sort.Strings(sorted)
	source := sorted[0]
	other := sorted[1]

	groups := types.DuplicateGroups{"fp1": {f, f2}}
	redundant, moves, err := pr.Run(groups)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantDest := filepath.Join(dest, filepath.Base(source))
	if got := moves[source]; got != wantDest {
		t.Fatalf("pendingMoves[%s] = %q, want %q (moves=%v)", source, got, wantDest, moves)
	}
	if len(redundant) != 1 || redundant[0] != other {
		t.Fatalf("redundant = %v, want [%s]", redundant, other)
	}

	suggested := rb.SuggestedNewDirs([]string{f})
	if len(suggested) != 1 || suggested[0] != dest {
		t.Fatalf("newdirs not recorded for dir_a: %v", suggested)
	}
	suggestedB := rb.SuggestedNewDirs([]string{f2})
	if len(suggestedB) != 1 || suggestedB[0] != dest {
		t.Fatalf("newdirs not recorded for dir_b: %v", suggestedB)
	}
}

// TestAnsweredPathIsIdempotent verifies end to end through Press that
// once a path has been saved as an answer, subsequent runs over the
// same group always keep it and never prompt.
func TestAnsweredPathIsIdempotent(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "d1", "a")
	b := filepath.Join(tmp, "d2", "b")
	writeDupFile(t, a)
	writeDupFile(t, b)

	rb := newRuleBook(t)
	if err := rb.SaveAnswer([]string{a}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	prompter := &scriptedPrompter{t: t}
	pr := New(rb, prompter, false, nil)

	groups := types.DuplicateGroups{"fp1": {a, b}}
	redundant, moves, err := pr.Run(groups)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(moves) != 0 {
		t.Fatalf("expected no moves, got %v", moves)
	}
	if len(redundant) != 1 || redundant[0] != b {
		t.Fatalf("redundant = %v, want [%s]", redundant, b)
	}
}

// TestRemoveAll exercises the "-" branch: every candidate becomes
// redundant and none is kept.
func TestRemoveAll(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "d1", "a")
	b := filepath.Join(tmp, "d2", "b")
	writeDupFile(t, a)
	writeDupFile(t, b)

	rb := newRuleBook(t)
	prompter := &scriptedPrompter{t: t, selects: []int{0}}
	pr := New(rb, prompter, false, nil)

	groups := types.DuplicateGroups{"fp1": {a, b}}
	redundant, moves, err := pr.Run(groups)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(moves) != 0 {
		t.Fatalf("expected no moves, got %v", moves)
	}
	sort.Strings(redundant)
	want := []string{a, b}
	sort.Strings(want)
	if len(redundant) != 2 || redundant[0] != want[0] || redundant[1] != want[1] {
		t.Fatalf("redundant = %v, want %v", redundant, want)
	}
}
