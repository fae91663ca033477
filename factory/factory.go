// Package factory registers assets and hands out their vaults. It owns the
// template configuration new vaults start from and the asset indexes.
package factory

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/crypto/blake2b"

	"github.com/bitfsorg/libroyalty-go/payment"
	"github.com/bitfsorg/libroyalty-go/revshare"
	"github.com/bitfsorg/libroyalty-go/storage"
	"github.com/bitfsorg/libroyalty-go/vault"
)

var (
	keyTemplate = []byte("f/template")
	keySeq      = []byte("f/seq")

	assetIDDomain = []byte("royalty/asset")
)

// DeriveAssetID returns blake2b-256("royalty/asset" || creator || seq).
func DeriveAssetID(creator revshare.Address, seq uint64) vault.AssetID {
	buf := make([]byte, 0, len(assetIDDomain)+revshare.AddressSize+8)
	buf = append(buf, assetIDDomain...)
	buf = append(buf, creator[:]...)
	buf = binary.BigEndian.AppendUint64(buf, seq)
	return vault.AssetID(blake2b.Sum256(buf))
}

// Options configure a Factory.
type Options struct {
	Owner    revshare.Address // May update the template
	Template vault.Config     // Used only when the store holds no template
	Metadata MetadataStore    // nil: metadata is rejected
	Now      func() time.Time // nil: time.Now
}

// Overrides replace template fields for one registration. Nil fields keep
// the template value.
type Overrides struct {
	PricePerShare *uint64
	RevenueUnit   *payment.Unit
	LicensePrice  *uint64
	LicensePeriod *int64
	MaxSupply     *uint64
	Proceeds      *vault.Proceeds
	Metadata      *Metadata
}

func (o Overrides) apply(c vault.Config) vault.Config {
	if o.PricePerShare != nil {
		c.PricePerShare = *o.PricePerShare
	}
	if o.RevenueUnit != nil {
		c.RevenueUnit = *o.RevenueUnit
	}
	if o.LicensePrice != nil {
		c.LicensePrice = *o.LicensePrice
	}
	if o.LicensePeriod != nil {
		c.LicensePeriod = *o.LicensePeriod
	}
	if o.MaxSupply != nil {
		c.MaxSupply = *o.MaxSupply
	}
	if o.Proceeds != nil {
		c.Proceeds = *o.Proceeds
	}
	return c
}

// Factory creates vaults and indexes them by id and creator.
type Factory struct {
	mu deadlock.RWMutex

	deps     vault.Deps
	meta     MetadataStore
	owner    revshare.Address
	now      func() time.Time
	log      *slog.Logger
	template vault.Config
	seq      uint64

	vaults    map[vault.AssetID]*vault.Vault
	order     []vault.AssetID
	byCreator map[revshare.Address][]vault.AssetID
}

// Open loads the template, sequence counter and every registered vault
// from deps.Store. On an empty store it persists opts.Template.
func Open(ctx context.Context, deps vault.Deps, opts Options) (*Factory, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParam)
	}
	f := &Factory{
		deps:      deps,
		meta:      opts.Metadata,
		owner:     opts.Owner,
		now:       opts.Now,
		log:       deps.Logger,
		vaults:    make(map[vault.AssetID]*vault.Vault),
		byCreator: make(map[revshare.Address][]vault.AssetID),
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.log == nil {
		f.log = slog.New(slog.DiscardHandler)
	}

	if err := f.loadTemplate(ctx, opts.Template); err != nil {
		return nil, err
	}
	if err := f.loadSeq(); err != nil {
		return nil, err
	}

	var assets []vault.Asset
	if err := vault.ScanAssets(deps.Store, func(a vault.Asset) error {
		assets = append(assets, a)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("factory: scan assets: %w", err)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Seq < assets[j].Seq })
	for _, a := range assets {
		v, err := vault.Open(deps, a.ID)
		if err != nil {
			return nil, fmt.Errorf("factory: open vault %s: %w", a.ID, err)
		}
		f.index(v)
		if a.Seq > f.seq {
			f.seq = a.Seq
		}
	}

	f.log.Info("factory opened", "assets", len(f.order), "seq", f.seq)
	return f, nil
}

func (f *Factory) loadTemplate(ctx context.Context, fallback vault.Config) error {
	data, err := f.deps.Store.Get(keyTemplate)
	switch {
	case err == nil:
		tmpl, err := vault.DecodeConfig(data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
		}
		f.template = tmpl
		return nil
	case errors.Is(err, storage.ErrNotFound):
		if err := fallback.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		b := storage.NewBatch()
		b.Put(keyTemplate, vault.EncodeConfig(fallback))
		if err := f.deps.Store.Commit(b, nil); err != nil {
			return fmt.Errorf("factory: save template: %w", err)
		}
		f.template = fallback
		return nil
	default:
		return err
	}
}

func (f *Factory) loadSeq() error {
	data, err := f.deps.Store.Get(keySeq)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) != 8 {
		return fmt.Errorf("factory: sequence record is %d bytes", len(data))
	}
	f.seq = binary.BigEndian.Uint64(data)
	return nil
}

func (f *Factory) index(v *vault.Vault) {
	a := v.Asset()
	f.vaults[a.ID] = v
	f.order = append(f.order, a.ID)
	f.byCreator[a.Creator] = append(f.byCreator[a.Creator], a.ID)
}

// RegisterAsset creates a vault for a new asset of creator, configured from
// the template with ov applied.
func (f *Factory) RegisterAsset(ctx context.Context, creator revshare.Address, ov Overrides) (*vault.Vault, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cfg := ov.apply(f.template)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seq := f.seq + 1
	asset := vault.Asset{
		ID:        DeriveAssetID(creator, seq),
		Seq:       seq,
		Creator:   creator,
		CreatedAt: f.now().Unix(),
		Config:    cfg,
	}

	if ov.Metadata != nil {
		if f.meta == nil {
			return nil, fmt.Errorf("%w: metadata store", ErrNilParam)
		}
		doc, err := encodeMetadata(*ov.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
		}
		hash, err := f.meta.Put(doc)
		if err != nil {
			return nil, fmt.Errorf("factory: store metadata: %w", err)
		}
		copy(asset.MetadataHash[:], hash)
	}

	v, err := vault.Create(ctx, f.deps, asset, func(b *storage.Batch) error {
		b.Put(keySeq, binary.BigEndian.AppendUint64(nil, seq))
		return nil
	})
	if err != nil {
		return nil, err
	}
	f.seq = seq
	f.index(v)

	f.log.Info("asset registered", "asset", asset.ID.String(), "creator", creator.String(), "seq", seq)
	return v, nil
}

// Vault returns the vault of id.
func (f *Factory) Vault(id vault.AssetID) (*vault.Vault, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.vaults[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v, nil
}

// AssetsByCreator returns the assets of creator in registration order.
func (f *Factory) AssetsByCreator(creator revshare.Address) []vault.AssetID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]vault.AssetID(nil), f.byCreator[creator]...)
}

// AllAssets returns every asset in registration order.
func (f *Factory) AllAssets() []vault.AssetID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]vault.AssetID(nil), f.order...)
}

// Template returns the config new vaults start from.
func (f *Factory) Template() vault.Config {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.template
}

// UpdateTemplatePrice changes the share price of future vaults. Existing
// vaults keep their price.
func (f *Factory) UpdateTemplatePrice(ctx context.Context, caller revshare.Address, price uint64) error {
	if caller != f.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	tmpl := f.template
	tmpl.PricePerShare = price
	if err := tmpl.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b := storage.NewBatch()
	b.Put(keyTemplate, vault.EncodeConfig(tmpl))
	if err := f.deps.Store.Commit(b, nil); err != nil {
		return fmt.Errorf("factory: save template: %w", err)
	}
	f.template = tmpl
	f.log.Info("template price updated", "price", price)
	return nil
}

// Metadata returns the display metadata of id.
func (f *Factory) Metadata(id vault.AssetID) (Metadata, error) {
	v, err := f.Vault(id)
	if err != nil {
		return Metadata{}, err
	}
	a := v.Asset()
	if !a.HasMetadata() {
		return Metadata{}, ErrNoMetadata
	}
	if f.meta == nil {
		return Metadata{}, fmt.Errorf("%w: metadata store", ErrNilParam)
	}
	doc, err := f.meta.Get(a.MetadataHash[:])
	if err != nil {
		return Metadata{}, fmt.Errorf("factory: load metadata of %s: %w", id, err)
	}
	m, err := decodeMetadata(doc)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	return m, nil
}
