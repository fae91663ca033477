// Package ledger wires the royalty ledger together: storage backend,
// asset factory, license tracker, logging and the data directory lock. It
// is the entry point for embedding the ledger in a service.
package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bitfsorg/libroyalty-go/config"
	"github.com/bitfsorg/libroyalty-go/factory"
	"github.com/bitfsorg/libroyalty-go/license"
	"github.com/bitfsorg/libroyalty-go/logging"
	"github.com/bitfsorg/libroyalty-go/payment"
	"github.com/bitfsorg/libroyalty-go/revshare"
	"github.com/bitfsorg/libroyalty-go/storage"
	"github.com/bitfsorg/libroyalty-go/vault"
	"github.com/bitfsorg/libroyalty-go/wallet"
)

const (
	lockFileName = "ledger.lock"
	blobDirName  = "blobs"
)

// Clock supplies the current time for access checks.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// Options configure Open.
type Options struct {
	Config    config.Config
	Payments  payment.Effect        // required
	Approvals *wallet.Approvals     // nil: a fresh set; stored approvals are loaded into it
	Observer  vault.Observer        // nil: no events
	Clock     Clock                 // nil: wall clock
	Logger    *slog.Logger          // nil: built from Config.LogLevel and Config.LogFile
	Metadata  factory.MetadataStore // nil: blob store under the data directory
}

// Ledger is an opened royalty ledger.
type Ledger struct {
	cfg       config.Config
	log       *slog.Logger
	logCloser io.Closer
	clock     Clock
	approvals *wallet.Approvals

	lock     *os.File
	store    storage.Store
	meta     factory.MetadataStore
	factory  *factory.Factory
	licenses *license.Tracker

	approveMu sync.Mutex
	closeOnce sync.Once
	closeErr  error
	closed    bool
	mu        sync.RWMutex
}

// Open validates opts.Config, locks the data directory (disk backends only),
// opens the store and reloads every asset and license from it.
func Open(ctx context.Context, opts Options) (_ *Ledger, err error) {
	if opts.Payments == nil {
		return nil, fmt.Errorf("%w: payments", ErrNilParam)
	}
	cfg := opts.Config
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	l := &Ledger{cfg: cfg, clock: opts.Clock, approvals: opts.Approvals, log: opts.Logger}
	if l.clock == nil {
		l.clock = ClockFunc(time.Now)
	}
	if l.approvals == nil {
		l.approvals = wallet.NewApprovals()
	}
	if l.log == nil {
		l.log, l.logCloser, err = logging.New(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return nil, err
		}
	}
	defer func() {
		if err != nil {
			_ = l.release()
		}
	}()

	disk := cfg.Backend != storage.BackendMemory
	if disk {
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("ledger: create data dir: %w", err)
		}
		if l.lock, err = lockDataDir(filepath.Join(cfg.DataDir, lockFileName)); err != nil {
			return nil, err
		}
	}

	if l.store, err = storage.Open(cfg.Backend, cfg.DataDir, l.log); err != nil {
		return nil, err
	}

	meta := opts.Metadata
	if meta == nil {
		if disk {
			if meta, err = storage.NewBlobStore(filepath.Join(cfg.DataDir, blobDirName)); err != nil {
				return nil, err
			}
		} else {
			meta = factory.NewMemMetadataStore()
		}
	}

	l.meta = meta

	owner, err := cfg.OwnerAddress()
	if err != nil {
		return nil, err
	}
	template, err := cfg.Template.VaultConfig()
	if err != nil {
		return nil, err
	}

	deps := vault.Deps{
		Store:      l.store,
		Payments:   opts.Payments,
		Authorizer: l.approvals,
		Logger:     l.log,
		Observer:   opts.Observer,
	}
	l.factory, err = factory.Open(ctx, deps, factory.Options{
		Owner:    owner,
		Template: template,
		Metadata: meta,
		Now:      l.clock.Now,
	})
	if err != nil {
		return nil, err
	}
	if l.licenses, err = license.Open(l.store, l.factory, l.log); err != nil {
		return nil, err
	}
	if err = l.loadApprovals(); err != nil {
		return nil, err
	}

	l.log.Info("ledger opened", "backend", cfg.Backend, "datadir", cfg.DataDir,
		"assets", len(l.factory.AllAssets()))
	return l, nil
}

// release closes the store, unlocks the data directory and closes the
// log file, returning the store's close error.
func (l *Ledger) release() error {
	var err error
	if l.store != nil {
		if err = l.store.Close(); err != nil {
			l.log.Error("close store", "error", err)
			err = fmt.Errorf("ledger: close store: %w", err)
		}
	}
	unlockDataDir(l.lock)
	if l.logCloser != nil {
		_ = l.logCloser.Close()
	}
	return err
}

// Close closes the store and releases the data directory lock. Later calls
// return the result of the first.
func (l *Ledger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		l.log.Info("ledger closed")
		l.closeErr = l.release()
	})
	return l.closeErr
}

func (l *Ledger) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	return nil
}

func (l *Ledger) vault(asset vault.AssetID) (*vault.Vault, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}
	return l.factory.Vault(asset)
}

// EncodeAddress renders a as a Base58Check address for the configured
// network.
func (l *Ledger) EncodeAddress(a revshare.Address) (string, error) {
	return wallet.EncodeAddress(a, l.cfg.Mainnet())
}

// DecodeAddress parses a Base58Check address of the configured network.
func (l *Ledger) DecodeAddress(s string) (revshare.Address, error) {
	a, err := wallet.DecodeAddress(s)
	if err != nil {
		return a, err
	}
	if enc, err := wallet.EncodeAddress(a, l.cfg.Mainnet()); err != nil || enc != s {
		return revshare.Address{}, fmt.Errorf("%w: %s is not a %s address", wallet.ErrInvalidAddress, s, l.cfg.Network)
	}
	return a, nil
}

// Config returns the configuration the ledger was opened with.
func (l *Ledger) Config() config.Config { return l.cfg }

// Factory returns the asset factory.
func (l *Ledger) Factory() *factory.Factory { return l.factory }

// Licenses returns the access license tracker.
func (l *Ledger) Licenses() *license.Tracker { return l.licenses }

// Vault returns the vault of asset.
func (l *Ledger) Vault(asset vault.AssetID) (*vault.Vault, error) { return l.vault(asset) }

// RegisterAsset registers a new asset for creator.
func (l *Ledger) RegisterAsset(ctx context.Context, creator revshare.Address, ov factory.Overrides) (*vault.Vault, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}
	return l.factory.RegisterAsset(ctx, creator, ov)
}

// BuyAccess buys periods of access to asset for account at the clock's
// current time and returns the new expiry.
func (l *Ledger) BuyAccess(ctx context.Context, asset vault.AssetID, account revshare.Address,
	periods, pricePerPeriod uint64) (time.Time, error) {
	if _, err := l.vault(asset); err != nil {
		return time.Time{}, err
	}
	expiry, err := l.licenses.Purchase(ctx, asset, account, periods, pricePerPeriod, l.clock.Now())
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(expiry, 0), nil
}

// Withdrawable returns the royalties account can claim from asset.
func (l *Ledger) Withdrawable(asset vault.AssetID, account revshare.Address) (uint64, error) {
	v, err := l.vault(asset)
	if err != nil {
		return 0, err
	}
	return v.Withdrawable(account)
}

// BalanceOf returns account's shares of asset.
func (l *Ledger) BalanceOf(asset vault.AssetID, account revshare.Address) (uint64, error) {
	v, err := l.vault(asset)
	if err != nil {
		return 0, err
	}
	return v.BalanceOf(account), nil
}

// TotalShares returns the shares of asset in circulation.
func (l *Ledger) TotalShares(asset vault.AssetID) (uint64, error) {
	v, err := l.vault(asset)
	if err != nil {
		return 0, err
	}
	return v.TotalShares(), nil
}

// HasAccess reports whether account holds an unexpired license for asset
// according to the ledger's clock.
func (l *Ledger) HasAccess(asset vault.AssetID, account revshare.Address) bool {
	return l.licenses.HasAccess(asset, account, l.clock.Now())
}
