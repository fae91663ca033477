package factory

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/bitfsorg/libroyalty-go/storage"
)

// Metadata is display information for an asset. The ledger never reads it.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ContentURI  string `json:"content_uri,omitempty"`
	TokenName   string `json:"token_name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
}

// MetadataStore is a content-addressed blob store. storage.BlobStore
// satisfies it.
type MetadataStore interface {
	Put(content []byte) ([]byte, error)
	Get(keyHash []byte) ([]byte, error)
}

var _ MetadataStore = (*storage.BlobStore)(nil)

// MemMetadataStore is an in-memory MetadataStore.
type MemMetadataStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemMetadataStore returns an empty in-memory metadata store.
func NewMemMetadataStore() *MemMetadataStore {
	return &MemMetadataStore{blobs: make(map[string][]byte)}
}

// Put stores content under its blob hash.
func (m *MemMetadataStore) Put(content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, storage.ErrEmptyContent
	}
	hash := storage.BlobHash(content)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[string(hash)] = bytes.Clone(content)
	return hash, nil
}

// Get returns the content stored under keyHash.
func (m *MemMetadataStore) Get(keyHash []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.blobs[string(keyHash)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func encodeMetadata(m Metadata) ([]byte, error) {
	return json.Marshal(m)
}

func decodeMetadata(data []byte) (Metadata, error) {
	var m Metadata
	err := json.Unmarshal(data, &m)
	return m, err
}
