//go:build windows

package ledger

import (
	"fmt"
	"os"
)

// lockDataDir only opens the lock file on Windows. Ledgers in one process
// are still serialized by their own locks, but two processes sharing a
// data directory are not detected.
func lockDataDir(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("ledger: open lock file: %w", err)
	}
	return f, nil
}

func unlockDataDir(f *os.File) {
	if f != nil {
		_ = f.Close()
	}
}
