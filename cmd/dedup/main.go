package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "dedup",
		Short:   "Find and interactively deduplicate files",
		Version: version,
	}

	root.PersistentFlags().StringSliceVarP(&rootOpts.dirs, "dirs", "d", nil, "directories to operate on")
	root.PersistentFlags().BoolVarP(&rootOpts.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVar(&rootOpts.dryRun, "dry-run", false, "preview without making changes")
	root.PersistentFlags().BoolVar(&rootOpts.noProgress, "no-progress", false, "disable progress output")

	root.AddCommand(newStatsCmd())
	root.AddCommand(newDedupCmd())
	root.AddCommand(newClearCacheCmd())
	root.AddCommand(newTidyCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	dirs       []string
	verbose    bool
	dryRun     bool
	noProgress bool
}

var rootOpts rootOptions

func requireDirs() error {
	if len(rootOpts.dirs) == 0 {
		return errMissingDirs
	}
	return nil
}
