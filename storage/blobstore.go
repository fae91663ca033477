package storage

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bsv-blockchain/go-sdk/chainhash"
)

// KeyHashSize is the length of a blob key hash (SHA256 output = 32 bytes).
const KeyHashSize = 32

// BlobStore is a content-addressed file store for small display documents
// such as asset metadata. Blobs are gzip-compressed on disk at
// {baseDir}/{hex(hash[:1])}/{hex(hash)} where hash = SHA256(SHA256(content)).
type BlobStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewBlobStore creates a blob store rooted at baseDir, creating the
// directory if it does not exist.
func NewBlobStore(baseDir string) (*BlobStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &BlobStore{baseDir: baseDir}, nil
}

// BlobHash returns SHA256(SHA256(content)).
func BlobHash(content []byte) []byte {
	return chainhash.DoubleHashB(content)
}

// KeyHashToPath converts a key hash to its filesystem path.
// Uses first byte as subdirectory for sharding: {base}/{ab}/{abcdef...}
func KeyHashToPath(baseDir string, keyHash []byte) string {
	hexHash := hex.EncodeToString(keyHash)
	return filepath.Join(baseDir, hexHash[:2], hexHash)
}

func validateKeyHash(keyHash []byte) error {
	if len(keyHash) != KeyHashSize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidKeyHash, len(keyHash))
	}
	return nil
}

// Put stores content and returns its key hash. Storing the same content
// twice is a no-op.
func (bs *BlobStore) Put(content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, ErrEmptyContent
	}
	if len(content) > MaxBlobSize {
		return nil, ErrDecompressedTooLarge
	}
	keyHash := BlobHash(content)
	packed, err := compressGZIP(content)
	if err != nil {
		return nil, fmt.Errorf("%w: compress: %w", ErrIOFailure, err)
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	path := KeyHashToPath(bs.baseDir, keyHash)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.WriteFile(path, packed, 0600); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return keyHash, nil
}

// Get returns the content stored under keyHash. Content whose hash does not
// match keyHash is reported as ErrIOFailure.
func (bs *BlobStore) Get(keyHash []byte) ([]byte, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return nil, err
	}

	bs.mu.RLock()
	packed, err := os.ReadFile(KeyHashToPath(bs.baseDir, keyHash))
	bs.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	content, err := decompressGZIP(packed)
	if err != nil {
		if errors.Is(err, ErrDecompressedTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: decompress: %w", ErrIOFailure, err)
	}
	if !bytes.Equal(BlobHash(content), keyHash) {
		return nil, fmt.Errorf("%w: content hash mismatch", ErrIOFailure)
	}
	return content, nil
}

// Has reports whether content exists for keyHash.
func (bs *BlobStore) Has(keyHash []byte) (bool, error) {
	if err := validateKeyHash(keyHash); err != nil {
		return false, err
	}

	bs.mu.RLock()
	defer bs.mu.RUnlock()

	_, err := os.Stat(KeyHashToPath(bs.baseDir, keyHash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return true, nil
}

// List returns all stored key hashes in sorted order.
func (bs *BlobStore) List() ([][]byte, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	entries, err := os.ReadDir(bs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var result [][]byte
	for _, entry := range entries {
		// Shard directories are 2-character hex strings
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(bs.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			keyHash, err := hex.DecodeString(f.Name())
			if err != nil || len(keyHash) != KeyHashSize {
				continue
			}
			result = append(result, keyHash)
		}
	}
	sort.Slice(result, func(i, j int) bool { return bytes.Compare(result[i], result[j]) < 0 })
	return result, nil
}
