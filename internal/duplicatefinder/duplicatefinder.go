// Package duplicatefinder runs the three-pass grouping that narrows every
// scanned file down to confirmed byte-identical groups.
//
//  1. Size bucket — group by size, drop anything globally unique.
//  2. Hash bucket — fingerprint survivors (partial construction for files
//     over the large-file threshold, full construction otherwise) and
//     group by fingerprint. This is the candidate set.
//  3. Full-hash verification — any candidate group containing a large
//     file gets every member re-hashed with the full construction and
//     regrouped; small-file-only groups are trusted as-is, since their
//     Pass 2 fingerprint already was the full hash.
//
// Passes 2 and 3 are the I/O-heavy steps, so both are sharded across a
// fixed worker pool: a job channel feeds a bounded number of goroutines,
// a WaitGroup signals completion, and a results channel is collected by
// the caller. Each hash is a single full read of the file (or of its
// three probes), so one job produces at most one result (none when the
// hash fails) — there is no progressive, multi-round requeueing of
// partially-read files.
package duplicatefinder

import (
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/dedup/dedup/internal/hasher"
	"github.com/dedup/dedup/internal/progress"
	"github.com/dedup/dedup/internal/types"
)

// Finder runs the staged duplicate-detection pipeline.
type Finder struct {
	hasher       *hasher.Hasher
	threshold    int64
	workers      int
	showProgress bool
	errCh        chan<- error

	// candidateGroups holds Pass 2's fingerprint groups between
	// hashBucket and verify; Run always calls them in sequence on the
	// same Finder, so this is not meant for concurrent reuse.
	candidateGroups map[types.Fingerprint][]*types.FileEntry

	// hashed collects entries whose fingerprint was computed this run
	// (as opposed to carried over from a DirCache), so the caller can
	// persist exactly those back to their directory caches.
	hashed []*types.FileEntry
}

// New creates a Finder. threshold is the large-file threshold used to
// decide which groups need Pass 3 verification; it should match the
// Hasher's own threshold.
func New(h *hasher.Hasher, threshold int64, workers int, showProgress bool, errCh chan<- error) *Finder {
	if workers <= 0 {
		workers = 1
	}
	return &Finder{hasher: h, threshold: threshold, workers: workers, showProgress: showProgress, errCh: errCh}
}

// Run executes all three passes and returns the confirmed duplicate
// groups, every one of size >= 2.
func (f *Finder) Run(files map[types.AbsolutePath]*types.FileEntry) types.DuplicateGroups {
	bySize := f.bucketBySize(files)
	f.hashBucket(bySize)
	return f.verify()
}

// bucketBySize groups entries by size, discarding anything globally
// unique — the cheapest possible filter, and it runs with no I/O at all.
func (f *Finder) bucketBySize(files map[types.AbsolutePath]*types.FileEntry) [][]*types.FileEntry {
	bySize := make(map[int64][]*types.FileEntry)
	for _, entry := range files {
		bySize[entry.Size] = append(bySize[entry.Size], entry)
	}

	var buckets [][]*types.FileEntry
	for _, group := range bySize {
		if len(group) >= 2 {
			buckets = append(buckets, group)
		}
	}
	return buckets
}

type hashJob struct {
	entry *types.FileEntry
	full  bool
}

type hashOutcome struct {
	entry       *types.FileEntry
	fingerprint string
}

// hashFan runs hash jobs across a bounded worker pool and returns the
// successful outcomes. Entries that fail to hash (typically: the file
// vanished between scan and hash) are dropped from the outcomes; their
// error is sent to errCh, if one was given.
func (f *Finder) hashFan(jobs []hashJob, label string) []hashOutcome {
	jobCh := make(chan hashJob, len(jobs))
	outCh := make(chan hashOutcome, len(jobs))

	st := &hashStats{total: len(jobs), label: label}
	bar := progress.New(f.showProgress, -1)
	bar.Describe(st)

	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				fp, err := f.hasher.Hash(job.entry.Path, job.entry.Size, job.full)
				if err != nil {
					f.sendError(err)
					st.add()
					bar.Describe(st)
					continue
				}
				st.add()
				bar.Describe(st)
				outCh <- hashOutcome{entry: job.entry, fingerprint: fp}
			}
		}()
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(outCh)
	}()

	outcomes := make([]hashOutcome, 0, len(jobs))
	for o := range outCh {
		outcomes = append(outcomes, o)
	}
	bar.Finish(st)
	return outcomes
}

// hashStats is shared between the worker goroutines (add) and the
// progress bar (String), so the counter is atomic.
type hashStats struct {
	total int
	done  atomic.Int64
	label string
}

func (s *hashStats) add() { s.done.Add(1) }

func (s *hashStats) String() string {
	return humanize.Comma(s.done.Load()) + "/" + humanize.Comma(int64(s.total)) + " " + s.label
}

// hashBucket is Pass 2: ensure every candidate has a fingerprint
// (selection rule applied per-file; entries that already carry one from
// a DirCache are trusted as-is) and group by fingerprint, retaining only
// groups of size >= 2. Results are stashed on f.candidateGroups for
// verify().
func (f *Finder) hashBucket(buckets [][]*types.FileEntry) {
	byFingerprint := make(map[types.Fingerprint][]*types.FileEntry)

	var jobs []hashJob
	for _, bucket := range buckets {
		for _, entry := range bucket {
			if entry.Fingerprint != nil {
				byFingerprint[*entry.Fingerprint] = append(byFingerprint[*entry.Fingerprint], entry)
				continue
			}
			jobs = append(jobs, hashJob{entry: entry, full: false})
		}
	}

	outcomes := f.hashFan(jobs, "hashed")

	for _, o := range outcomes {
		fp := o.fingerprint
		o.entry.Fingerprint = &fp
		f.hashed = append(f.hashed, o.entry)
		byFingerprint[fp] = append(byFingerprint[fp], o.entry)
	}
	f.candidateGroups = byFingerprint
}

// FreshlyHashed returns the entries whose fingerprint was computed by
// this Run, in no particular order. Entries resolved from a DirCache are
// excluded, so persisting exactly this set keeps cache writes limited to
// directories where something actually changed.
func (f *Finder) FreshlyHashed() []*types.FileEntry {
	return f.hashed
}

// verify is Pass 3: groups with no large-file member are trusted as-is;
// groups containing a large file are fully re-hashed and regrouped.
func (f *Finder) verify() types.DuplicateGroups {
	result := make(types.DuplicateGroups)

	var toVerify []*types.FileEntry
	for fp, group := range f.candidateGroups {
		if len(group) < 2 {
			continue
		}
		if !anyLarge(group, f.threshold) {
			result[fp] = pathsOf(group)
			continue
		}
		toVerify = append(toVerify, group...)
	}

	if len(toVerify) == 0 {
		return result
	}

	jobs := make([]hashJob, 0, len(toVerify))
	for _, entry := range toVerify {
		jobs = append(jobs, hashJob{entry: entry, full: true})
	}
	outcomes := f.hashFan(jobs, "verified")

	byFullHash := make(map[types.Fingerprint][]*types.FileEntry)
	for _, o := range outcomes {
		byFullHash[o.fingerprint] = append(byFullHash[o.fingerprint], o.entry)
	}

	// The full hash becomes the group key only. Entries keep their
	// selection-rule fingerprint: that is what DirCache persists, and the
	// two constructions must never leak into each other's namespace.
	for fp, group := range byFullHash {
		if len(group) >= 2 {
			result[fp] = pathsOf(group)
		}
	}

	return result
}

func anyLarge(group []*types.FileEntry, threshold int64) bool {
	for _, e := range group {
		if e.Size > threshold {
			return true
		}
	}
	return false
}

func pathsOf(group []*types.FileEntry) []types.AbsolutePath {
	paths := make([]types.AbsolutePath, len(group))
	for i, e := range group {
		paths[i] = e.Path
	}
	return paths
}

func (f *Finder) sendError(err error) {
	if f.errCh != nil {
		f.errCh <- err
	}
}
