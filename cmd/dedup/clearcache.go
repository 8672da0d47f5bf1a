package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dedup/dedup/internal/session"
	"github.com/dedup/dedup/internal/terminal"
	"github.com/dedup/dedup/internal/trash"
)

func newClearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear_cache",
		Short: "Interactively clear cached state",
		RunE: func(*cobra.Command, []string) error {
			return runClearCache()
		},
	}
}

func runClearCache() error {
	if err := requireDirs(); err != nil {
		return err
	}

	fmt.Println(`What do you want to clear?
  1. Hash cache      - .dedup-meta.cpl files in scanned directories (speeds up re-scans)
  2. Session files   - checkpoint, final_redundant, pending_moves (current dedup session)
  3. Saved answers   - answers, newdirs (user decisions from previous runs)
  4. Rules           - rules, ignore, remove lists (appraiser patterns)
  5. All of the above
  q. Cancel`)

	t := terminal.New()
	answer, err := t.Input("choice (e.g. 1,3)")
	if err != nil {
		return err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "q" || answer == "" {
		fmt.Println("cancelled")
		return nil
	}

	chosen := make(map[string]bool)
	for _, field := range strings.FieldsFunc(answer, func(r rune) bool { return r == ',' || r == ' ' }) {
		chosen[field] = true
	}
	if chosen["5"] {
		chosen["1"], chosen["2"], chosen["3"], chosen["4"] = true, true, true, true
	}

	var targets []session.ClearTarget
	if chosen["1"] {
		targets = append(targets, session.ClearHashCache)
	}
	if chosen["2"] {
		targets = append(targets, session.ClearSession)
	}
	if chosen["3"] {
		targets = append(targets, session.ClearAnswers)
	}
	if chosen["4"] {
		targets = append(targets, session.ClearRules)
	}

	cfg := buildOptions(false, false)
	runner := session.New(cfg, t, trash.LocalDeleter{})
	if err := runner.ClearCache(rootOpts.dirs, targets); err != nil {
		return err
	}
	fmt.Println("cleared")
	return nil
}
