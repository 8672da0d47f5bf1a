// Package checkpoint persists the session artifacts that make an
// interactive dedup run resumable after a crash: the detected
// DuplicateGroups map, the final redundant-path list, and the
// pending-move map. All three live in one bbolt file so a single
// transactional commit can never leave one artifact stale relative to
// another.
//
// Like internal/dircache, the store carries an explicit format version
// in a "meta" bucket; an unrecognized version is treated as "nothing
// checkpointed" rather than aborting.
package checkpoint

import (
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dedup/dedup/internal/types"
)

const (
	bucketMeta      = "meta"
	bucketGroups    = "groups"
	bucketRedundant = "redundant"
	bucketMoves     = "moves"

	metaVersion   = "version"
	formatVersion = 1

	redundantKey = "paths"
)

// Store is an open session-checkpoint file.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the checkpoint file at path and stamps its
// format version. A file stamped with an unrecognized version has its
// checkpointed data discarded first.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return err
		}
		if v := meta.Get([]byte(metaVersion)); v != nil && !(len(v) == 1 && v[0] == formatVersion) {
			for _, name := range []string{bucketGroups, bucketRedundant, bucketMoves} {
				_ = tx.DeleteBucket([]byte(name))
			}
		}
		return meta.Put([]byte(metaVersion), []byte{formatVersion})
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) validVersion() bool {
	var ok bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		if meta == nil {
			return nil
		}
		v := meta.Get([]byte(metaVersion))
		ok = len(v) == 1 && v[0] == formatVersion
		return nil
	})
	return ok
}

// SaveGroups persists the duplicate groups detected this run, replacing
// any previously checkpointed set. A resolution saved for an earlier set
// of groups is discarded in the same transaction.
func (s *Store) SaveGroups(groups types.DuplicateGroups) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_ = tx.DeleteBucket([]byte(bucketRedundant))
		_ = tx.DeleteBucket([]byte(bucketMoves))
		_ = tx.DeleteBucket([]byte(bucketGroups))
		b, err := tx.CreateBucket([]byte(bucketGroups))
		if err != nil {
			return err
		}
		for fp, paths := range groups {
			if err := b.Put([]byte(fp), []byte(strings.Join(paths, "\n"))); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadGroups returns the checkpointed duplicate groups, if a valid
// checkpoint is present. ok is false when there is nothing usable to
// resume from — callers fall back to running DuplicateFinder fresh.
func (s *Store) LoadGroups() (groups types.DuplicateGroups, ok bool) {
	if !s.validVersion() {
		return nil, false
	}
	groups = make(types.DuplicateGroups)
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketGroups))
		if b == nil {
			return nil
		}
		ok = true
		return b.ForEach(func(k, v []byte) error {
			groups[string(k)] = splitNonEmpty(string(v))
			return nil
		})
	})
	return groups, ok
}

// SaveResolution persists Press's output: the redundant-path list and
// the pending-move map.
func (s *Store) SaveResolution(redundant []string, pendingMoves map[string]string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_ = tx.DeleteBucket([]byte(bucketRedundant))
		rb, err := tx.CreateBucket([]byte(bucketRedundant))
		if err != nil {
			return err
		}
		if err := rb.Put([]byte(redundantKey), []byte(strings.Join(redundant, "\n"))); err != nil {
			return err
		}

		_ = tx.DeleteBucket([]byte(bucketMoves))
		mb, err := tx.CreateBucket([]byte(bucketMoves))
		if err != nil {
			return err
		}
		for src, dst := range pendingMoves {
			if err := mb.Put([]byte(src), []byte(dst)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadResolution returns the checkpointed redundant-path list and
// pending-move map. ok is false when neither has been saved yet.
func (s *Store) LoadResolution() (redundant []string, pendingMoves map[string]string, ok bool) {
	if !s.validVersion() {
		return nil, nil, false
	}
	pendingMoves = make(map[string]string)
	_ = s.db.View(func(tx *bolt.Tx) error {
		rb := tx.Bucket([]byte(bucketRedundant))
		mb := tx.Bucket([]byte(bucketMoves))
		if rb == nil || mb == nil {
			return nil
		}
		ok = true
		redundant = splitNonEmpty(string(rb.Get([]byte(redundantKey))))
		return mb.ForEach(func(k, v []byte) error {
			pendingMoves[string(k)] = string(v)
			return nil
		})
	})
	return redundant, pendingMoves, ok
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
