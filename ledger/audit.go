package ledger

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/bitfsorg/libroyalty-go/vault"
)

// blobIndex is implemented by metadata stores that can enumerate their
// content, such as storage.BlobStore.
type blobIndex interface {
	Has(keyHash []byte) (bool, error)
	List() ([][]byte, error)
}

// MetadataReport is the result of AuditMetadata.
type MetadataReport struct {
	// Orphaned lists stored blobs no asset refers to, left behind by
	// registrations that failed after writing their metadata.
	Orphaned [][]byte
	// Missing lists assets whose metadata blob is absent.
	Missing []vault.AssetID
}

// AuditMetadata cross-checks asset metadata hashes against the metadata
// store. It returns ErrNoBlobIndex when the store cannot list its content.
func (l *Ledger) AuditMetadata() (*MetadataReport, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}
	idx, ok := l.meta.(blobIndex)
	if !ok {
		return nil, ErrNoBlobIndex
	}

	report := &MetadataReport{}
	referenced := make(map[string]struct{})
	for _, id := range l.factory.AllAssets() {
		v, err := l.factory.Vault(id)
		if err != nil {
			return nil, err
		}
		a := v.Asset()
		if !a.HasMetadata() {
			continue
		}
		referenced[hex.EncodeToString(a.MetadataHash[:])] = struct{}{}
		has, err := idx.Has(a.MetadataHash[:])
		if err != nil {
			return nil, fmt.Errorf("ledger: audit metadata of %s: %w", id, err)
		}
		if !has {
			report.Missing = append(report.Missing, id)
		}
	}

	stored, err := idx.List()
	if err != nil {
		return nil, fmt.Errorf("ledger: list metadata: %w", err)
	}
	for _, h := range stored {
		if _, ok := referenced[hex.EncodeToString(h)]; !ok {
			report.Orphaned = append(report.Orphaned, bytes.Clone(h))
		}
	}

	if len(report.Orphaned) > 0 || len(report.Missing) > 0 {
		l.log.Warn("metadata audit found problems", "orphaned", len(report.Orphaned), "missing", len(report.Missing))
	}
	return report, nil
}
