package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendBolt   = "bolt"
	BackendPebble = "pebble"
	BackendMemory = "memory"
)

// Open opens the ledger store for backend under dataDir. logger receives
// backend diagnostics; nil discards them.
func Open(backend, dataDir string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemStore(), nil
	case BackendBolt:
		if dataDir == "" {
			return nil, ErrInvalidBaseDir
		}
		s, err := OpenBoltStore(filepath.Join(dataDir, "ledger.db"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPebble:
		if dataDir == "" {
			return nil, ErrInvalidBaseDir
		}
		s, err := OpenPebbleStore(filepath.Join(dataDir, "ledger"), logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
