package storage

import (
	"bytes"
	"sort"
	"sync"
)

// MemStore is an in-memory Store. It is used for tests and for the
// "memory" backend; nothing survives Close.
type MemStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

// Get returns a copy of the value at key.
func (s *MemStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	v, ok := s.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

// IteratePrefix visits keys with the given prefix in sorted order. The
// visited set is fixed when iteration starts.
func (s *MemStore) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	var keys []string
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = bytes.Clone(s.data[k])
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Commit runs effect and then applies the batch under the write lock.
func (s *MemStore) Commit(b *Batch, effect func() error) error {
	if err := b.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if effect != nil {
		if err := effect(); err != nil {
			return err
		}
	}
	if b == nil {
		return nil
	}
	for _, o := range b.ops {
		if o.kind == opDelete {
			delete(s.data, string(o.key))
			continue
		}
		s.data[string(o.key)] = o.value
	}
	return nil
}

// Close marks the store closed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
