package ledger

import "errors"

var (
	// ErrLocked indicates another process holds the data directory.
	ErrLocked = errors.New("ledger: data directory is locked by another process")

	// ErrClosed indicates the ledger was already closed.
	ErrClosed = errors.New("ledger: closed")

	// ErrInvalidRecord indicates a malformed ledger-level record.
	ErrInvalidRecord = errors.New("ledger: invalid record")

	// ErrInvalidApproval indicates an approval that cannot be recorded.
	ErrInvalidApproval = errors.New("ledger: invalid approval")

	// ErrNoBlobIndex indicates the metadata store cannot enumerate blobs.
	ErrNoBlobIndex = errors.New("ledger: metadata store cannot list blobs")

	// ErrNilParam indicates a required dependency was nil.
	ErrNilParam = errors.New("ledger: nil parameter")
)
