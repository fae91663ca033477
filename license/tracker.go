// Package license sells time-limited access to assets. License revenue is
// deposited into the asset's vault in the same commit that extends the
// buyer's expiry.
package license

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"math/bits"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/bitfsorg/libroyalty-go/revshare"
	"github.com/bitfsorg/libroyalty-go/storage"
	"github.com/bitfsorg/libroyalty-go/vault"
)

// PrefixLicense prefixes every license record key.
var PrefixLicense = []byte("l/")

const shardCount = 16

// VaultSource resolves asset vaults. *factory.Factory satisfies it.
type VaultSource interface {
	Vault(id vault.AssetID) (*vault.Vault, error)
}

type licenseKey struct {
	asset   vault.AssetID
	account revshare.Address
}

func (k licenseKey) bytes() []byte {
	b := make([]byte, 0, len(PrefixLicense)+vault.AssetIDSize+revshare.AddressSize)
	b = append(b, PrefixLicense...)
	b = append(b, k.asset[:]...)
	return append(b, k.account[:]...)
}

// Tracker records access expiries per (asset, account).
type Tracker struct {
	vaults VaultSource
	log    *slog.Logger

	// shards serialize purchases per asset; mu guards expiries.
	shards   [shardCount]deadlock.Mutex
	mu       deadlock.RWMutex
	expiries map[licenseKey]int64
}

// Open loads every license record from store.
func Open(store storage.Store, vaults VaultSource, logger *slog.Logger) (*Tracker, error) {
	if store == nil || vaults == nil {
		return nil, fmt.Errorf("%w: store and vault source are required", ErrNilParam)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := &Tracker{
		vaults:   vaults,
		log:      logger,
		expiries: make(map[licenseKey]int64),
	}

	want := len(PrefixLicense) + vault.AssetIDSize + revshare.AddressSize
	err := store.IteratePrefix(PrefixLicense, func(key, value []byte) error {
		if len(key) != want || len(value) != 8 {
			return fmt.Errorf("%w: key %x", ErrInvalidRecord, key)
		}
		var k licenseKey
		copy(k.asset[:], key[len(PrefixLicense):])
		copy(k.account[:], key[len(PrefixLicense)+vault.AssetIDSize:])
		t.expiries[k] = int64(binary.BigEndian.Uint64(value))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("license: load: %w", err)
	}
	return t, nil
}

func (t *Tracker) shard(asset vault.AssetID) *deadlock.Mutex {
	return &t.shards[int(asset[0])%shardCount]
}

// Quote returns the cost of periods access periods on asset.
func (t *Tracker) Quote(asset vault.AssetID, periods uint64) (uint64, error) {
	v, err := t.vaults.Vault(asset)
	if err != nil {
		return 0, err
	}
	cost, _, err := terms(v.Config(), periods)
	return cost, err
}

// terms returns the cost and the extension in seconds for periods.
func terms(cfg vault.Config, periods uint64) (uint64, int64, error) {
	if cfg.LicensePrice == 0 {
		return 0, 0, ErrLicensingDisabled
	}
	if periods == 0 {
		return 0, 0, ErrInvalidPeriods
	}
	hi, cost := bits.Mul64(periods, cfg.LicensePrice)
	if hi != 0 {
		return 0, 0, fmt.Errorf("%w: cost of %d periods", ErrOverflow, periods)
	}
	hi, ext := bits.Mul64(periods, uint64(cfg.LicensePeriod))
	if hi != 0 || ext > math.MaxInt64 {
		return 0, 0, fmt.Errorf("%w: length of %d periods", ErrOverflow, periods)
	}
	return cost, int64(ext), nil
}

// Purchase sells periods access periods of asset to account and returns
// the new expiry in unix seconds. The payment is deposited as royalties
// into the asset's vault; the new expiry commits with it.
func (t *Tracker) Purchase(ctx context.Context, asset vault.AssetID, account revshare.Address,
	periods, pricePerPeriod uint64, now time.Time) (int64, error) {
	v, err := t.vaults.Vault(asset)
	if err != nil {
		return 0, err
	}
	cfg := v.Config()
	cost, ext, err := terms(cfg, periods)
	if err != nil {
		return 0, err
	}
	if pricePerPeriod != cfg.LicensePrice {
		return 0, fmt.Errorf("%w: offered %d, price %d", ErrPriceMismatch, pricePerPeriod, cfg.LicensePrice)
	}

	shard := t.shard(asset)
	shard.Lock()
	defer shard.Unlock()

	k := licenseKey{asset: asset, account: account}
	base := max(now.Unix(), t.Expiry(asset, account))
	if base > math.MaxInt64-ext {
		return 0, fmt.Errorf("%w: expiry", ErrOverflow)
	}
	expiry := base + ext

	err = v.DepositRoyaltiesWith(ctx, account, cost, func(b *storage.Batch) error {
		b.Put(k.bytes(), binary.BigEndian.AppendUint64(nil, uint64(expiry)))
		return nil
	})
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	t.expiries[k] = expiry
	t.mu.Unlock()

	t.log.Info("access license purchased",
		"asset", asset.String(), "account", account.String(),
		"periods", periods, "cost", cost, "expiry", expiry)
	return expiry, nil
}

// Expiry returns the access expiry of account on asset in unix seconds,
// or zero if none was ever bought.
func (t *Tracker) Expiry(asset vault.AssetID, account revshare.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.expiries[licenseKey{asset: asset, account: account}]
}

// HasAccess reports whether account's access to asset extends past now.
func (t *Tracker) HasAccess(asset vault.AssetID, account revshare.Address, now time.Time) bool {
	return t.Expiry(asset, account) > now.Unix()
}
