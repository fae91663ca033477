package storage

import "bytes"

// Store is an ordered key/value store with atomic batch commits.
//
// Commit applies every operation in the batch or none of them. The effect,
// if non-nil, runs exactly once while the commit is in progress and before
// the writes become visible. If the effect fails its error is returned
// unchanged and nothing is written. If the effect succeeds but the writes
// cannot be made durable the error wraps ErrCommitAfterEffect.
type Store interface {
	// Get returns a copy of the value at key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// IteratePrefix calls fn for every key starting with prefix in
	// lexicographic order. Returning an error from fn stops iteration.
	IteratePrefix(prefix []byte, fn func(key, value []byte) error) error

	// Commit atomically applies b, running effect inside the commit.
	Commit(b *Batch, effect func() error) error

	// Close releases the store.
	Close() error
}

type opKind uint8

const (
	opPut opKind = iota
	opDelete
)

type op struct {
	kind  opKind
	key   []byte
	value []byte
}

// Batch collects writes for a single atomic Commit. Later operations on the
// same key override earlier ones. Keys and values are copied.
type Batch struct {
	ops []op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// Put stages key=value.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, op{kind: opPut, key: clone(key), value: clone(value)})
}

// Delete stages removal of key.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, op{kind: opDelete, key: clone(key)})
}

// Len returns the number of staged operations.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ops)
}

func (b *Batch) validate() error {
	if b == nil {
		return nil
	}
	for _, o := range b.ops {
		if len(o.key) == 0 {
			return ErrEmptyKey
		}
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return bytes.Clone(b)
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Increments the last byte; returns nil if prefix is all 0xFF (full range).
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil
}
