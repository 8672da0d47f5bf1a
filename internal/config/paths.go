// Package config holds the run-wide configuration threaded through every
// component constructor. There is no module-level mutable state anywhere
// in this codebase; verbosity, dry-run, thresholds and file locations all
// flow through values of this package.
package config

import "path/filepath"

// Paths names every on-disk artifact the core touches, relative to the
// invocation working directory (session state) or to a scanned directory
// (the per-directory hash cache). All fields have defaults matching the
// original tool so a fresh Options picks them up automatically; tests
// override Root to redirect everything under t.TempDir().
type Paths struct {
	// Root is the directory session artifacts are read from and written
	// to. Defaults to "." (the invocation working directory).
	Root string

	DirCacheName     string // per-directory hash cache, e.g. dir/.dedup-meta.cpl
	ProgressName     string // newline-delimited committed directories
	RulesName        string // appraiser weight rules
	IgnoreName       string // appraiser ignore patterns
	RemoveName       string // appraiser auto-remove patterns
	AnswersName      string // confirmed keep decisions
	NewDirsName      string // learned relocation suggestions
	SessionCacheName string // bbolt file: checkpoint + final_redundant + pending_moves
}

// DefaultPaths returns the standard artifact names, rooted at root.
// An empty root means the current working directory.
func DefaultPaths(root string) Paths {
	return Paths{
		Root:             root,
		DirCacheName:     ".dedup-meta.cpl",
		ProgressName:     ".dedup.progress",
		RulesName:        ".dedup.rules.list",
		IgnoreName:       ".dedup.ignore.list",
		RemoveName:       ".dedup.remove.list",
		AnswersName:      ".dedup.answers.list",
		NewDirsName:      ".dedup.newdirs.list",
		SessionCacheName: ".dedup.session.cpl",
	}
}

func (p Paths) join(name string) string {
	return filepath.Join(p.Root, name)
}

func (p Paths) ProgressPath() string { return p.join(p.ProgressName) }
func (p Paths) RulesPath() string { return p.join(p.RulesName) }
func (p Paths) IgnorePath() string { return p.join(p.IgnoreName) }
func (p Paths) RemovePath() string { return p.join(p.RemoveName) }
func (p Paths) AnswersPath() string { return p.join(p.AnswersName) }
func (p Paths) NewDirsPath() string { return p.join(p.NewDirsName) }
func (p Paths) SessionCachePath() string { return p.join(p.SessionCacheName) }

// DirCachePath returns the hash-cache path for a specific scanned directory.
func (p Paths) DirCachePath(dir string) string {
	return filepath.Join(dir, p.DirCacheName)
}

// Options carries the run-wide switches that used to be a mutable global
// context (verbose/dry-run/paths/thresholds) in the source tool. Every
// component that needs one of these takes an Options value (or the
// specific fields it needs) at construction time.
type Options struct {
	Verbose    bool
	DryRun     bool
	Resume     bool // "-c": continue a previous run
	Unlink     bool // permanent delete instead of trash
	NoProgress bool
	Workers    int

	LargeFileThreshold int64 // default 100 MiB
	PartialHashSize    int64 // default 10 MiB

	Paths Paths
}

const (
	DefaultLargeFileThreshold = 100 * 1024 * 1024
	DefaultPartialHashSize    = 10 * 1024 * 1024
)

// NewOptions returns Options with the tool's documented defaults, rooted
// at the given session directory.
func NewOptions(root string) Options {
	return Options{
		Workers:            4,
		LargeFileThreshold: DefaultLargeFileThreshold,
		PartialHashSize:    DefaultPartialHashSize,
		Paths:              DefaultPaths(root),
	}
}
