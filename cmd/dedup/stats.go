package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dedup/dedup/internal/session"
	"github.com/dedup/dedup/internal/terminal"
	"github.com/dedup/dedup/internal/trash"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Scan and print every duplicate group",
		RunE: func(*cobra.Command, []string) error {
			return runStats()
		},
	}
}

func runStats() error {
	if err := requireDirs(); err != nil {
		return err
	}

	opts := buildOptions(false, false)
	runner := session.New(opts, terminal.New(), trash.LocalDeleter{})

	groups, err := runner.Stats(rootOpts.dirs)
	if err != nil {
		return err
	}

	fps := make([]string, 0, len(groups))
	for fp := range groups {
		fps = append(fps, fp)
	}
	sort.Strings(fps)

	var totalReclaimable uint64
	for _, fp := range fps {
		paths := groups[fp]
		fmt.Println(fp)
		for _, p := range paths {
			fmt.Printf("\t%s\n", p)
		}
		if size, err := fileSize(paths[0]); err == nil {
			totalReclaimable += size * uint64(len(paths)-1)
		}
	}

	fmt.Printf("\n%d duplicate groups, %s reclaimable\n", len(fps), humanize.IBytes(totalReclaimable))
	return nil
}
