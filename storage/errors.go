package storage

import "errors"

var (
	// ErrNotFound indicates no value exists for the given key.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidKeyHash indicates the blob key hash is not exactly 32 bytes.
	ErrInvalidKeyHash = errors.New("storage: key hash must be 32 bytes")

	// ErrIOFailure indicates a file or database read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrEmptyContent indicates an attempt to store an empty blob.
	ErrEmptyContent = errors.New("storage: content is empty")

	// ErrEmptyKey indicates a batch operation with an empty key.
	ErrEmptyKey = errors.New("storage: key is empty")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("storage: store closed")

	// ErrCommitAfterEffect indicates the external effect completed but the
	// staged writes could not be made durable. State on disk and the effect
	// disagree; callers must treat this as fatal.
	ErrCommitAfterEffect = errors.New("storage: commit failed after effect applied")

	// ErrDecompressedTooLarge indicates decompressed data exceeds the safety limit.
	ErrDecompressedTooLarge = errors.New("storage: decompressed data exceeds maximum size")
)
