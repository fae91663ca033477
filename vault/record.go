package vault

import (
	"encoding/binary"
	"fmt"

	"github.com/bitfsorg/libroyalty-go/payment"
	"github.com/bitfsorg/libroyalty-go/revshare"
)

// Persisted key prefixes.
var (
	PrefixAsset  = []byte("a/")
	PrefixHolder = []byte("h/")
	PrefixNonce  = []byte("n/")
)

// ConfigFixedSize: price(8) + license_price(8) + license_period(8) +
// max_supply(8) + proceeds(1) + unit_len(1), followed by the unit bytes.
const ConfigFixedSize = 8 + 8 + 8 + 8 + 1 + 1

// assetFixedSize: seq(8) + creator(20) + created(8) + metadata(32) +
// header + creator_proceeds(8) + proceeds_claimed(8), followed by the config.
const assetFixedSize = 8 + revshare.AddressSize + 8 + 32 + revshare.HeaderSize + 8 + 8

// AssetKey returns the storage key of an asset record.
func AssetKey(id AssetID) []byte {
	return append(append([]byte{}, PrefixAsset...), id[:]...)
}

// HolderPrefixFor returns the key prefix of every holder record of id.
func HolderPrefixFor(id AssetID) []byte {
	return append(append([]byte{}, PrefixHolder...), id[:]...)
}

func holderKey(id AssetID, a revshare.Address) []byte {
	return append(HolderPrefixFor(id), a[:]...)
}

func noncePrefixFor(id AssetID) []byte {
	return append(append([]byte{}, PrefixNonce...), id[:]...)
}

func nonceKey(id AssetID, a revshare.Address) []byte {
	return append(noncePrefixFor(id), a[:]...)
}

// EncodeConfig serializes a Config to big-endian form.
func EncodeConfig(c Config) []byte {
	unit := []byte(c.RevenueUnit)
	buf := make([]byte, ConfigFixedSize+len(unit))
	binary.BigEndian.PutUint64(buf[0:8], c.PricePerShare)
	binary.BigEndian.PutUint64(buf[8:16], c.LicensePrice)
	binary.BigEndian.PutUint64(buf[16:24], uint64(c.LicensePeriod))
	binary.BigEndian.PutUint64(buf[24:32], c.MaxSupply)
	buf[32] = byte(c.Proceeds)
	buf[33] = byte(len(unit))
	copy(buf[ConfigFixedSize:], unit)
	return buf
}

// DecodeConfig parses the form written by EncodeConfig and validates it.
func DecodeConfig(data []byte) (Config, error) {
	var c Config
	if len(data) < ConfigFixedSize {
		return c, fmt.Errorf("%w: config is %d bytes", ErrInvalidRecord, len(data))
	}
	unitLen := int(data[33])
	if len(data) != ConfigFixedSize+unitLen {
		return c, fmt.Errorf("%w: unit length %d, %d bytes remain",
			ErrInvalidRecord, unitLen, len(data)-ConfigFixedSize)
	}
	c.PricePerShare = binary.BigEndian.Uint64(data[0:8])
	c.LicensePrice = binary.BigEndian.Uint64(data[8:16])
	c.LicensePeriod = int64(binary.BigEndian.Uint64(data[16:24]))
	c.MaxSupply = binary.BigEndian.Uint64(data[24:32])
	c.Proceeds = Proceeds(data[32])
	c.RevenueUnit = payment.Unit(data[ConfigFixedSize:])

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return c, nil
}

// assetRecord is the full value stored under AssetKey.
type assetRecord struct {
	Asset           Asset
	Header          revshare.Header
	CreatorProceeds uint64
	ProceedsClaimed uint64
}

func encodeAssetRecord(r assetRecord) []byte {
	buf := make([]byte, assetFixedSize, assetFixedSize+ConfigFixedSize+len(r.Asset.Config.RevenueUnit))
	offset := 0

	put64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[offset:offset+8], v)
		offset += 8
	}

	put64(r.Asset.Seq)
	offset += copy(buf[offset:], r.Asset.Creator[:])
	put64(uint64(r.Asset.CreatedAt))
	offset += copy(buf[offset:], r.Asset.MetadataHash[:])
	offset += copy(buf[offset:], revshare.EncodeHeader(r.Header))
	put64(r.CreatorProceeds)
	put64(r.ProceedsClaimed)

	return append(buf, EncodeConfig(r.Asset.Config)...)
}

func decodeAssetRecord(id AssetID, data []byte) (assetRecord, error) {
	var r assetRecord
	if len(data) < assetFixedSize {
		return r, fmt.Errorf("%w: asset record is %d bytes", ErrInvalidRecord, len(data))
	}
	offset := 0
	get64 := func() uint64 {
		v := binary.BigEndian.Uint64(data[offset : offset+8])
		offset += 8
		return v
	}

	r.Asset.ID = id
	r.Asset.Seq = get64()
	offset += copy(r.Asset.Creator[:], data[offset:])
	r.Asset.CreatedAt = int64(get64())
	offset += copy(r.Asset.MetadataHash[:], data[offset:])

	header, err := revshare.DecodeHeader(data[offset : offset+revshare.HeaderSize])
	if err != nil {
		return r, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	r.Header = header
	offset += revshare.HeaderSize
	r.CreatorProceeds = get64()
	r.ProceedsClaimed = get64()
	if r.ProceedsClaimed > r.CreatorProceeds {
		return r, fmt.Errorf("%w: proceeds claimed exceeds credited", ErrInvalidRecord)
	}

	cfg, err := DecodeConfig(data[offset:])
	if err != nil {
		return r, err
	}
	r.Asset.Config = cfg
	return r, nil
}

func encodeNonce(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func decodeNonce(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: nonce record is %d bytes", ErrInvalidRecord, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
