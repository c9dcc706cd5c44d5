// Package storage is the persistent group store.
//
// Every §6-style entry point runs inside exactly one write transaction:
// all table writes, counter bumps, authority rewrites and archive
// snapshots triggered by a call commit together or not at all. The
// single-writer transaction model is also the concurrency model - no
// component takes locks of its own.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("storage: record not found")

// Bucket names, one per persisted table.
const (
	bucketConf        = "conf"
	bucketState       = "state"
	bucketCustodians  = "custodians"
	bucketThresholds  = "thresholds"
	bucketLinks       = "threshlinks"
	bucketLinksByName = "threshlinks_bythreshold"
	bucketProposals   = "proposals"
	bucketArchive     = "archive"
	bucketMembers     = "members"
	bucketModules     = "modules"
	bucketBalances    = "balances"
	bucketAuthority   = "authority"
)

// Store is a bbolt-backed group store.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the group store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open group store: %w", err)
	}
	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Update runs fn inside a single write transaction. An error from fn
// unwinds every write made within it.
func (s *Store) Update(fn func(tx *Tx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// View runs fn inside a read-only transaction.
func (s *Store) View(fn func(tx *Tx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.View(func(btx *bbolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

func (s *Store) ensureBuckets() error {
	names := []string{
		bucketConf, bucketState, bucketCustodians, bucketThresholds,
		bucketLinks, bucketLinksByName, bucketProposals, bucketArchive,
		bucketMembers, bucketModules, bucketBalances, bucketAuthority,
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range names {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}
