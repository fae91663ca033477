package storage

import (
	"bytes"
	"compress/gzip"
	"io"
)

// MaxBlobSize bounds a decompressed blob (1 MB). Metadata documents are small;
// anything larger is treated as corrupt.
const MaxBlobSize = 1 << 20

func compressGZIP(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressGZIP(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, MaxBlobSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxBlobSize {
		return nil, ErrDecompressedTooLarge
	}
	return out, nil
}
