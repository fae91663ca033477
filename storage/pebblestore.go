package storage

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cockroachdb/pebble"
)

// PebbleStore is a Store backed by a Pebble LSM database. Every commit is
// written with pebble.Sync so a returned nil means the batch is durable.
type PebbleStore struct {
	db *pebble.DB
}

// Compile-time interface check.
var _ Store = (*PebbleStore)(nil)

// pebbleLogger routes pebble's internal messages (WAL replay, compaction
// errors) to a slog logger.
type pebbleLogger struct {
	log *slog.Logger
}

func (p pebbleLogger) Infof(format string, args ...interface{}) {
	p.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "pebble")
}

func (p pebbleLogger) Errorf(format string, args ...interface{}) {
	p.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "pebble")
}

// Fatalf logs and panics; pebble does not expect it to return.
func (p pebbleLogger) Fatalf(format string, args ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	p.log.Error(msg, "component", "pebble", "fatal", true)
	panic("pebble: " + msg)
}

// OpenPebbleStore opens or creates a Pebble database in dir. Pebble's own
// log output goes to logger; nil discards it.
func OpenPebbleStore(dir string, logger *slog.Logger) (*PebbleStore, error) {
	if dir == "" {
		return nil, ErrInvalidBaseDir
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := &pebble.Options{
		MemTableSize:                16 << 20, // 16 MB memtable
		MemTableStopWritesThreshold: 2,
		Logger:                      pebbleLogger{log: logger},
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open pebble db: %w", ErrIOFailure, err)
	}
	return &PebbleStore{db: db}, nil
}

// Get returns a copy of the value at key.
func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapPebbleErr(err)
	}
	defer closer.Close()

	// Copy the value since it's invalid after closer.Close()
	return bytes.Clone(value), nil
}

// IteratePrefix calls fn for each key-value pair with the given prefix.
// Uses Pebble's iterator bounds for efficient prefix scanning.
func (s *PebbleStore) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return wrapPebbleErr(err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}
		if err := fn(bytes.Clone(iter.Key()), bytes.Clone(value)); err != nil {
			return err
		}
	}

	return iter.Error()
}

// Commit builds a Pebble batch, runs effect, then commits synchronously.
// An effect error discards the batch.
func (s *PebbleStore) Commit(b *Batch, effect func() error) error {
	if err := b.validate(); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if b != nil {
		for _, o := range b.ops {
			var err error
			if o.kind == opDelete {
				err = batch.Delete(o.key, nil)
			} else {
				err = batch.Set(o.key, o.value, nil)
			}
			if err != nil {
				return fmt.Errorf("pebblestore: stage %x: %w", o.key, wrapPebbleErr(err))
			}
		}
	}

	if effect != nil {
		if err := effect(); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		if effect != nil {
			return fmt.Errorf("%w: %w", ErrCommitAfterEffect, err)
		}
		return wrapPebbleErr(err)
	}
	return nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

func wrapPebbleErr(err error) error {
	if errors.Is(err, pebble.ErrClosed) {
		return ErrClosed
	}
	return err
}
