package main

import (
	"github.com/spf13/cobra"

	"github.com/dedup/dedup/internal/session"
	"github.com/dedup/dedup/internal/terminal"
	"github.com/dedup/dedup/internal/trash"
)

type dedupOptions struct {
	unlink bool
	resume bool
}

func newDedupCmd() *cobra.Command {
	opts := &dedupOptions{}

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Scan, resolve and purge duplicate files",
		RunE: func(*cobra.Command, []string) error {
			return runDedup(opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.unlink, "unlink", "u", false, "permanently delete instead of moving to trash")
	cmd.Flags().BoolVarP(&opts.resume, "continue", "c", false, "continue a previous run")

	return cmd
}

func runDedup(opts *dedupOptions) error {
	if err := requireDirs(); err != nil {
		return err
	}

	cfg := buildOptions(opts.resume, opts.unlink)
	runner := session.New(cfg, terminal.New(), trash.LocalDeleter{})
	return runner.Dedup(rootOpts.dirs)
}
