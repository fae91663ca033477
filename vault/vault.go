// Package vault implements the royalty vault: one share ledger per asset,
// mutated only through buy, transfer, deposit and claim operations that
// commit their records and their payment effect atomically.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sasha-s/go-deadlock"

	"github.com/bitfsorg/libroyalty-go/payment"
	"github.com/bitfsorg/libroyalty-go/revshare"
	"github.com/bitfsorg/libroyalty-go/storage"
)

// Deps are the collaborators shared by every vault.
type Deps struct {
	Store      storage.Store
	Payments   payment.Effect
	Authorizer Authorizer   // nil: only owners move their own shares
	Logger     *slog.Logger // nil: discard
	Observer   Observer     // nil: no events
}

func (d Deps) validate() error {
	if d.Store == nil {
		return fmt.Errorf("%w: store", ErrNilParam)
	}
	if d.Payments == nil {
		return fmt.Errorf("%w: payments", ErrNilParam)
	}
	return nil
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// Stage adds records to the batch of a vault commit.
type Stage func(b *storage.Batch) error

// Vault holds the ledger of one asset. All methods are safe for
// concurrent use; mutations are serialized per vault.
type Vault struct {
	mu deadlock.RWMutex

	asset           Asset
	ledger          *revshare.Ledger
	creatorProceeds uint64
	proceedsClaimed uint64
	nonces          map[revshare.Address]uint64

	deps Deps
	log  *slog.Logger
}

func newVault(deps Deps, r assetRecord, ledger *revshare.Ledger) *Vault {
	log := deps.logger().With("asset", r.Asset.ID.String())
	return &Vault{
		asset:           r.Asset,
		ledger:          ledger,
		creatorProceeds: r.CreatorProceeds,
		proceedsClaimed: r.ProceedsClaimed,
		nonces:          make(map[revshare.Address]uint64),
		deps:            deps,
		log:             log,
	}
}

// Create persists a new asset with an empty ledger. stage, if non-nil,
// adds the caller's own records to the same commit.
func Create(ctx context.Context, deps Deps, asset Asset, stage Stage) (*Vault, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := asset.Config.Validate(); err != nil {
		return nil, err
	}
	if _, err := deps.Store.Get(AssetKey(asset.ID)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetExists, asset.ID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ledger := revshare.NewLedger()
	v := newVault(deps, assetRecord{Asset: asset, Header: ledger.Header()}, ledger)

	b := storage.NewBatch()
	v.stageAsset(b)
	if stage != nil {
		if err := stage(b); err != nil {
			return nil, err
		}
	}
	if err := deps.Store.Commit(b, nil); err != nil {
		return nil, fmt.Errorf("vault: create %s: %w", asset.ID, err)
	}
	v.log.Info("vault created",
		"seq", asset.Seq,
		"creator", asset.Creator.String(),
		"price", asset.Config.PricePerShare,
		"unit", string(asset.Config.RevenueUnit),
		"proceeds", asset.Config.Proceeds.String())
	return v, nil
}

// Open loads the vault of id from the store.
func Open(deps Deps, id AssetID) (*Vault, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	data, err := deps.Store.Get(AssetKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	rec, err := decodeAssetRecord(id, data)
	if err != nil {
		return nil, err
	}

	holders := make(map[revshare.Address]revshare.Holder)
	prefix := HolderPrefixFor(id)
	err = deps.Store.IteratePrefix(prefix, func(key, value []byte) error {
		addr, err := addressSuffix(key, len(prefix))
		if err != nil {
			return err
		}
		h, err := revshare.DecodeHolder(value)
		if err != nil {
			return fmt.Errorf("holder %s: %w", addr, err)
		}
		holders[addr] = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: load holders of %s: %w", id, err)
	}
	ledger, err := revshare.Load(rec.Header, holders)
	if err != nil {
		return nil, fmt.Errorf("vault: load %s: %w", id, err)
	}

	v := newVault(deps, rec, ledger)
	prefix = noncePrefixFor(id)
	err = deps.Store.IteratePrefix(prefix, func(key, value []byte) error {
		addr, err := addressSuffix(key, len(prefix))
		if err != nil {
			return err
		}
		n, err := decodeNonce(value)
		if err != nil {
			return err
		}
		v.nonces[addr] = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: load nonces of %s: %w", id, err)
	}
	return v, nil
}

// ScanAssets calls fn for every persisted asset in key order.
func ScanAssets(store storage.Store, fn func(Asset) error) error {
	return store.IteratePrefix(PrefixAsset, func(key, value []byte) error {
		if len(key) != len(PrefixAsset)+AssetIDSize {
			return fmt.Errorf("%w: asset key %x", ErrInvalidRecord, key)
		}
		var id AssetID
		copy(id[:], key[len(PrefixAsset):])
		rec, err := decodeAssetRecord(id, value)
		if err != nil {
			return err
		}
		return fn(rec.Asset)
	})
}

func addressSuffix(key []byte, prefixLen int) (revshare.Address, error) {
	var a revshare.Address
	if len(key) != prefixLen+revshare.AddressSize {
		return a, fmt.Errorf("%w: key %x", ErrInvalidRecord, key)
	}
	copy(a[:], key[prefixLen:])
	return a, nil
}

// ---------------------------------------------------------------------------
// Commit pipeline
// ---------------------------------------------------------------------------

// mutation describes one atomic vault operation.
type mutation struct {
	accounts []revshare.Address // records the operation touches
	apply    func() error       // in-memory change; rolled back on any error
	effect   func() error       // external payment, run inside the commit
	stage    Stage              // extra records from the caller
	nonce    *revshare.Address  // nonce record to persist, if any
}

type savedExtra struct {
	creatorProceeds uint64
	proceedsClaimed uint64
	nonces          map[revshare.Address]*uint64
}

// commit runs m with v.mu held for writing.
func (v *Vault) commit(ctx context.Context, m mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := v.ledger.Snapshot(m.accounts...)
	saved := v.saveExtra(m.accounts)
	rollback := func() {
		v.ledger.Restore(snap)
		v.restoreExtra(saved)
	}

	if err := m.apply(); err != nil {
		rollback()
		return err
	}
	for _, a := range m.accounts {
		if err := v.ledger.CheckAccount(a); err != nil {
			rollback()
			return err
		}
	}

	b := storage.NewBatch()
	v.stageAsset(b)
	for _, a := range m.accounts {
		b.Put(holderKey(v.asset.ID, a), revshare.EncodeHolder(v.ledger.Holder(a)))
	}
	if m.nonce != nil {
		b.Put(nonceKey(v.asset.ID, *m.nonce), encodeNonce(v.nonces[*m.nonce]))
	}
	if m.stage != nil {
		if err := m.stage(b); err != nil {
			rollback()
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		rollback()
		return err
	}

	if err := v.deps.Store.Commit(b, m.effect); err != nil {
		rollback()
		if errors.Is(err, storage.ErrCommitAfterEffect) {
			v.log.Error("payment applied but ledger commit failed", "err", err)
		}
		return err
	}
	return nil
}

func (v *Vault) saveExtra(accounts []revshare.Address) savedExtra {
	s := savedExtra{
		creatorProceeds: v.creatorProceeds,
		proceedsClaimed: v.proceedsClaimed,
		nonces:          make(map[revshare.Address]*uint64, len(accounts)),
	}
	for _, a := range accounts {
		if n, ok := v.nonces[a]; ok {
			s.nonces[a] = &n
		} else {
			s.nonces[a] = nil
		}
	}
	return s
}

func (v *Vault) restoreExtra(s savedExtra) {
	v.creatorProceeds = s.creatorProceeds
	v.proceedsClaimed = s.proceedsClaimed
	for a, n := range s.nonces {
		if n == nil {
			delete(v.nonces, a)
			continue
		}
		v.nonces[a] = *n
	}
}

func (v *Vault) stageAsset(b *storage.Batch) {
	b.Put(AssetKey(v.asset.ID), encodeAssetRecord(assetRecord{
		Asset:           v.asset,
		Header:          v.ledger.Header(),
		CreatorProceeds: v.creatorProceeds,
		ProceedsClaimed: v.proceedsClaimed,
	}))
}

func (v *Vault) emit(ev Event) {
	if v.deps.Observer != nil {
		v.deps.Observer(ev)
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// ID returns the asset id.
func (v *Vault) ID() AssetID { return v.asset.ID }

// Asset returns the asset record.
func (v *Vault) Asset() Asset { return v.asset }

// Config returns the vault configuration.
func (v *Vault) Config() Config { return v.asset.Config }

// BalanceOf returns the shares held by account.
func (v *Vault) BalanceOf(account revshare.Address) uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.BalanceOf(account)
}

// TotalShares returns the number of shares issued.
func (v *Vault) TotalShares() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.TotalShares()
}

// Withdrawable returns what account can claim now.
func (v *Vault) Withdrawable(account revshare.Address) (uint64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.Withdrawable(account)
}

// Accumulated returns the lifetime entitlement of account.
func (v *Vault) Accumulated(account revshare.Address) (uint64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.Accumulated(account)
}

// TotalDistributed returns the sum of all revenue deposited to holders.
func (v *Vault) TotalDistributed() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.Header().TotalDeposited
}

// TotalClaimed returns the sum of all holder claims.
func (v *Vault) TotalClaimed() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.Header().TotalClaimed
}

// ProceedsAvailable returns the creator's unclaimed purchase proceeds.
func (v *Vault) ProceedsAvailable() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.creatorProceeds - v.proceedsClaimed
}

// Nonce returns the last accepted signed-transfer nonce of account.
func (v *Vault) Nonce(account revshare.Address) uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.nonces[account]
}

// Holders returns every account with a holder record. Audit use only.
func (v *Vault) Holders() []revshare.Address {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.Holders()
}

// Audit verifies every ledger invariant over the full holder set.
func (v *Vault) Audit() (*revshare.AuditReport, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.proceedsClaimed > v.creatorProceeds {
		return nil, fmt.Errorf("%w: proceeds claimed %d exceeds credited %d",
			ErrInvariantViolation, v.proceedsClaimed, v.creatorProceeds)
	}
	return v.ledger.Audit()
}
