package main

import (
	"errors"
	"os"

	"github.com/dedup/dedup/internal/config"
)

var errMissingDirs = errors.New("missing required option -d/--dirs")

// buildOptions turns the parsed root flags plus per-command switches
// into a config.Options value, rooted at the invocation working
// directory (session artifacts are not scoped per scanned root).
func buildOptions(resume, unlink bool) config.Options {
	opts := config.NewOptions(".")
	opts.Verbose = rootOpts.verbose
	opts.DryRun = rootOpts.dryRun
	opts.NoProgress = rootOpts.noProgress
	opts.Resume = resume
	opts.Unlink = unlink
	return opts
}

func fileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}
