package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newTidyCmd implements the "tidy" sidecar command. It buckets the files
// directly inside PATH into YYYY-MM-DD subdirectories by modification
// time; it shares no state or code with the dedup pipeline.
func newTidyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tidy PATH",
		Short: "Bucket files by modification date",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runTidy(args[0])
		},
	}
}

func runTidy(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: stat %s: %v\n", e.Name(), err)
			continue
		}

		bucket := filepath.Join(path, info.ModTime().UTC().Format("2006-01-02"))
		target := filepath.Join(bucket, e.Name())
		fmt.Printf("%s -> %s\n", filepath.Join(path, e.Name()), target)

		if rootOpts.dryRun {
			continue
		}
		if err := os.MkdirAll(bucket, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "warning: mkdir %s: %v\n", bucket, err)
			continue
		}
		if err := os.Rename(filepath.Join(path, e.Name()), target); err != nil {
			fmt.Fprintf(os.Stderr, "warning: move %s: %v\n", e.Name(), err)
		}
	}
	return nil
}
