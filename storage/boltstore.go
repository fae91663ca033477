package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketLedger = []byte("ledger")

// BoltStore is a Store backed by a single-file bbolt database. All records
// live in one bucket; key prefixes separate record kinds.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrIOFailure, err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %w", ErrIOFailure, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketLedger); err != nil {
			return fmt.Errorf("boltstore: create bucket %q: %w", bucketLedger, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return &BoltStore{db: db}, nil
}

// Get returns a copy of the value at key.
func (s *BoltStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketLedger).Get(key)
		if v == nil {
			return ErrNotFound
		}
		out = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, wrapBoltErr(err)
	}
	return out, nil
}

// IteratePrefix visits keys with the given prefix in a single read
// transaction. fn must not write to the store.
func (s *BoltStore) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketLedger).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(bytes.Clone(k), bytes.Clone(v)); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapBoltErr(err)
}

// Commit stages the batch in a read-write transaction, runs effect, and
// commits. An effect error rolls the transaction back.
func (s *BoltStore) Commit(b *Batch, effect func() error) error {
	if err := b.validate(); err != nil {
		return err
	}

	effectDone := false
	var effectErr error
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketLedger)
		if b != nil {
			for _, o := range b.ops {
				var err error
				if o.kind == opDelete {
					err = bucket.Delete(o.key)
				} else {
					err = bucket.Put(o.key, o.value)
				}
				if err != nil {
					return fmt.Errorf("boltstore: stage %x: %w", o.key, err)
				}
			}
		}
		if effect != nil {
			if effectErr = effect(); effectErr != nil {
				return effectErr
			}
		}
		effectDone = true
		return nil
	})
	switch {
	case err == nil:
		return nil
	case effectErr != nil:
		return effectErr
	case effectDone && effect != nil:
		return fmt.Errorf("%w: %w", ErrCommitAfterEffect, err)
	default:
		return wrapBoltErr(err)
	}
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func wrapBoltErr(err error) error {
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, bbolt.ErrDatabaseNotOpen):
		return ErrClosed
	default:
		return err
	}
}
