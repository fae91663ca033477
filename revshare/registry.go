package revshare

import (
	"encoding/binary"
	"fmt"

	"github.com/bitfsorg/libroyalty-go/fixedpoint"
)

const (
	// HeaderSize: total_shares(8) + acc_per_share(33) + deposited(8) + claimed(8)
	HeaderSize = 8 + fixedpoint.EncodedSize + 8 + 8

	// HolderSize: balance(8) + correction(33) + withdrawn(8)
	HolderSize = 8 + fixedpoint.EncodedSize + 8
)

// EncodeHeader serializes a Header to fixed-width big-endian form.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	offset := 0

	binary.BigEndian.PutUint64(buf[offset:offset+8], h.TotalShares)
	offset += 8

	fixedpoint.PutInt(buf[offset:offset+fixedpoint.EncodedSize], h.AccPerShare)
	offset += fixedpoint.EncodedSize

	binary.BigEndian.PutUint64(buf[offset:offset+8], h.TotalDeposited)
	offset += 8

	binary.BigEndian.PutUint64(buf[offset:offset+8], h.TotalClaimed)
	return buf
}

// DecodeHeader parses the form written by EncodeHeader.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	if len(data) != HeaderSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHeaderData, HeaderSize, len(data))
	}
	offset := 0

	h.TotalShares = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8

	acc, err := fixedpoint.Decode(data[offset : offset+fixedpoint.EncodedSize])
	if err != nil {
		return h, fmt.Errorf("%w: %w", ErrInvalidHeaderData, err)
	}
	if acc.IsNegative() {
		return h, fmt.Errorf("%w: negative accumulator", ErrInvalidHeaderData)
	}
	h.AccPerShare = acc
	offset += fixedpoint.EncodedSize

	h.TotalDeposited = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8

	h.TotalClaimed = binary.BigEndian.Uint64(data[offset : offset+8])
	return h, nil
}

// EncodeHolder serializes a Holder to fixed-width big-endian form.
func EncodeHolder(h Holder) []byte {
	buf := make([]byte, HolderSize)
	binary.BigEndian.PutUint64(buf[0:8], h.Balance)
	fixedpoint.PutInt(buf[8:8+fixedpoint.EncodedSize], h.Correction)
	binary.BigEndian.PutUint64(buf[8+fixedpoint.EncodedSize:HolderSize], h.Withdrawn)
	return buf
}

// DecodeHolder parses the form written by EncodeHolder.
func DecodeHolder(data []byte) (Holder, error) {
	var h Holder
	if len(data) != HolderSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHolderData, HolderSize, len(data))
	}
	corr, err := fixedpoint.Decode(data[8 : 8+fixedpoint.EncodedSize])
	if err != nil {
		return h, fmt.Errorf("%w: %w", ErrInvalidHolderData, err)
	}
	h.Balance = binary.BigEndian.Uint64(data[0:8])
	h.Correction = corr
	h.Withdrawn = binary.BigEndian.Uint64(data[8+fixedpoint.EncodedSize : HolderSize])
	return h, nil
}
