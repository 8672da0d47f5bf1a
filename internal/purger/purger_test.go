package purger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dedup/dedup/internal/config"
	"github.com/dedup/dedup/internal/trash"
	"github.com/dedup/dedup/internal/types"
)

type scriptedPrompter struct {
	t       *testing.T
	selects []int
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
	p.t.Fatalf("unexpected Input(%q)", label)
	return "", nil
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestRunYesExecutesMovesDeletionsAndPrunes(t *testing.T) {
	tmp := t.TempDir()
	srcDir := filepath.Join(tmp, "src")
	dupDir := filepath.Join(tmp, "dup")
	destDir := filepath.Join(tmp, "dest")

	moveSrc := filepath.Join(srcDir, "keep")
	writeFile(t, moveSrc)
	dupFile := filepath.Join(dupDir, "extra")
	writeFile(t, dupFile)

	paths := config.DefaultPaths(tmp)
	prompter := &scriptedPrompter{t: t, selects: []int{0}}
	deleter := trash.LocalDeleter{Dir: filepath.Join(tmp, "trash")}
	p := New(paths, prompter, deleter, false, false, nil)

	moveDest := filepath.Join(destDir, "keep")
	pendingMoves := map[string]string{moveSrc: moveDest}
	redundant := []string{dupFile}
	groups := types.DuplicateGroups{"fp1": {moveSrc, dupFile}}

	if err := p.Run(redundant, pendingMoves, groups); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(moveDest); err != nil {
		t.Fatalf("expected file moved to %s: %v", moveDest, err)
	}
	if _, err := os.Stat(moveSrc); !os.IsNotExist(err) {
		t.Fatalf("expected move source gone, got err=%v", err)
	}
	if _, err := os.Stat(dupFile); !os.IsNotExist(err) {
		t.Fatalf("expected redundant file deleted, got err=%v", err)
	}
	if _, err := os.Stat(dupDir); !os.IsNotExist(err) {
		t.Fatalf("expected empty dup dir pruned, got err=%v", err)
	}
}

func TestRunNoLeavesFilesUntouched(t *testing.T) {
	tmp := t.TempDir()
	dupFile := filepath.Join(tmp, "dup", "extra")
	writeFile(t, dupFile)

	paths := config.DefaultPaths(tmp)
	prompter := &scriptedPrompter{t: t, selects: []int{1}}
	deleter := trash.LocalDeleter{Dir: filepath.Join(tmp, "trash")}
	p := New(paths, prompter, deleter, false, false, nil)

	if err := p.Run([]string{dupFile}, nil, types.DuplicateGroups{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(dupFile); err != nil {
		t.Fatalf("expected file untouched: %v", err)
	}
}

func TestRunListLoopsThenYes(t *testing.T) {
	tmp := t.TempDir()
	dupFile := filepath.Join(tmp, "dup", "extra")
	writeFile(t, dupFile)

	paths := config.DefaultPaths(tmp)
	prompter := &scriptedPrompter{t: t, selects: []int{2, 0}}
	deleter := trash.LocalDeleter{Dir: filepath.Join(tmp, "trash")}
	p := New(paths, prompter, deleter, false, false, nil)

	groups := types.DuplicateGroups{"fp1": {dupFile, filepath.Join(tmp, "kept")}}
	if err := p.Run([]string{dupFile}, nil, groups); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(dupFile); !os.IsNotExist(err) {
		t.Fatalf("expected file deleted after list+yes, got err=%v", err)
	}
}

func TestDryRunMakesNoFilesystemChanges(t *testing.T) {
	tmp := t.TempDir()
	dupFile := filepath.Join(tmp, "dup", "extra")
	writeFile(t, dupFile)

	paths := config.DefaultPaths(tmp)
	prompter := &scriptedPrompter{t: t, selects: []int{0}}
	deleter := trash.LocalDeleter{Dir: filepath.Join(tmp, "trash")}
	p := New(paths, prompter, deleter, true, false, nil)

	if err := p.Run([]string{dupFile}, nil, types.DuplicateGroups{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(dupFile); err != nil {
		t.Fatalf("expected dry-run to leave file untouched: %v", err)
	}
}

func TestPermanentDeleteUnlinksInsteadOfTrashing(t *testing.T) {
	tmp := t.TempDir()
	dupFile := filepath.Join(tmp, "dup", "extra")
	writeFile(t, dupFile)
	trashDir := filepath.Join(tmp, "trash")

	paths := config.DefaultPaths(tmp)
	prompter := &scriptedPrompter{t: t, selects: []int{0}}
	deleter := trash.LocalDeleter{Dir: trashDir}
	p := New(paths, prompter, deleter, false, true, nil)

	if err := p.Run([]string{dupFile}, nil, types.DuplicateGroups{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(dupFile); !os.IsNotExist(err) {
		t.Fatalf("expected file deleted, got err=%v", err)
	}
	if _, err := os.Stat(trashDir); !os.IsNotExist(err) {
		t.Fatalf("expected no trash dir created for a permanent delete")
	}
}
