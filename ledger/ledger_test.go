package ledger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libroyalty-go/config"
	"github.com/bitfsorg/libroyalty-go/factory"
	"github.com/bitfsorg/libroyalty-go/payment"
	"github.com/bitfsorg/libroyalty-go/revshare"
	"github.com/bitfsorg/libroyalty-go/storage"
	"github.com/bitfsorg/libroyalty-go/vault"
	"github.com/bitfsorg/libroyalty-go/wallet"
)

var (
	creator = revshare.Address{0xC0}
	alice   = revshare.Address{0xA1}
	bob     = revshare.Address{0xB2}
	viewer  = revshare.Address{0xD3}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig(t *testing.T, backend string) config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Backend = backend
	cfg.LogLevel = "error"
	cfg.Owner = strings.Repeat("0f", 20)
	cfg.Template = config.Template{
		PricePerShare: 10,
		RevenueUnit:   "BSV",
		LicensePrice:  5,
		LicensePeriod: 3600,
		Proceeds:      "holders",
	}
	return cfg
}

func fundedBook(t *testing.T) *payment.Book {
	b := payment.NewBook()
	for _, a := range []revshare.Address{alice, bob, viewer} {
		require.NoError(t, b.Credit("BSV", a, 100_000))
	}
	return b
}

// --- Open tests ---

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), Options{Config: testConfig(t, storage.BackendMemory)})
	assert.ErrorIs(t, err, ErrNilParam)

	cfg := testConfig(t, storage.BackendMemory)
	cfg.Backend = "leveldb"
	_, err = Open(context.Background(), Options{Config: cfg, Payments: payment.NewBook()})
	assert.ErrorIs(t, err, config.ErrInvalidBackend)
}

func TestLedger_EndToEnd(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	book := fundedBook(t)

	var events []vault.Event
	var evMu sync.Mutex
	l, err := Open(ctx, Options{
		Config:   testConfig(t, storage.BackendMemory),
		Payments: book,
		Clock:    clock,
		Observer: func(ev vault.Event) {
			evMu.Lock()
			events = append(events, ev)
			evMu.Unlock()
		},
	})
	require.NoError(t, err)
	defer l.Close()

	v, err := l.RegisterAsset(ctx, creator, factory.Overrides{})
	require.NoError(t, err)
	id := v.ID()

	require.NoError(t, v.Buy(ctx, alice, 100, 1000))
	require.NoError(t, v.Buy(ctx, bob, 100, 1000))

	w, err := l.Withdrawable(id, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), w)
	w, err = l.Withdrawable(id, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), w)

	total, err := l.TotalShares(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), total)
	bal, err := l.BalanceOf(id, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)

	// Access revenue is split between the two holders.
	assert.False(t, l.HasAccess(id, viewer))
	expiry, err := l.BuyAccess(ctx, id, viewer, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(2*time.Hour), expiry)
	assert.True(t, l.HasAccess(id, viewer))

	// 10 over 200 shares truncates to 4 per 100-share holder; two units of
	// dust stay in the vault.
	w, err = l.Withdrawable(id, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1504), w)
	w, err = l.Withdrawable(id, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(504), w)

	report, err := v.Audit()
	require.NoError(t, err)
	assert.Equal(t, uint64(2010), v.TotalDistributed())
	assert.LessOrEqual(t, v.TotalClaimed()+report.SumWithdrawable, v.TotalDistributed())
	assert.Equal(t, uint64(2), report.Dust)

	clock.Advance(2 * time.Hour)
	assert.False(t, l.HasAccess(id, viewer))

	evMu.Lock()
	defer evMu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, vault.EventRoyalties, events[len(events)-1].Kind)
}

func TestLedger_Approvals(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, Options{Config: testConfig(t, storage.BackendMemory), Payments: fundedBook(t)})
	require.NoError(t, err)
	defer l.Close()

	v, err := l.RegisterAsset(ctx, creator, factory.Overrides{})
	require.NoError(t, err)
	require.NoError(t, v.Buy(ctx, alice, 10, 100))

	err = v.Transfer(ctx, bob, alice, bob, 5)
	assert.ErrorIs(t, err, vault.ErrUnauthorized)

	require.NoError(t, l.Approve(alice, bob))
	require.NoError(t, v.Transfer(ctx, bob, alice, bob, 5))
	assert.Equal(t, uint64(5), v.BalanceOf(bob))

	require.NoError(t, l.Revoke(alice, bob))
	err = v.Transfer(ctx, bob, alice, bob, 1)
	assert.ErrorIs(t, err, vault.ErrUnauthorized)

	assert.ErrorIs(t, l.Approve(alice, alice), ErrInvalidApproval)
}

func TestLedger_ApprovalsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, storage.BackendBolt)
	book := fundedBook(t)

	l, err := Open(ctx, Options{Config: cfg, Payments: book})
	require.NoError(t, err)
	v, err := l.RegisterAsset(ctx, creator, factory.Overrides{})
	require.NoError(t, err)
	id := v.ID()
	require.NoError(t, v.Buy(ctx, alice, 10, 100))
	require.NoError(t, l.Approve(alice, bob))
	require.NoError(t, l.Approve(alice, viewer))
	require.NoError(t, l.Revoke(alice, viewer))
	require.NoError(t, l.Close())

	l, err = Open(ctx, Options{Config: cfg, Payments: book})
	require.NoError(t, err)
	defer l.Close()
	v, err = l.Vault(id)
	require.NoError(t, err)

	require.NoError(t, v.Transfer(ctx, bob, alice, bob, 4))
	assert.Equal(t, uint64(4), v.BalanceOf(bob))
	assert.ErrorIs(t, v.Transfer(ctx, viewer, alice, viewer, 1), vault.ErrUnauthorized)
}

func TestLedger_Addresses(t *testing.T) {
	for _, network := range []string{"mainnet", "testnet"} {
		t.Run(network, func(t *testing.T) {
			cfg := testConfig(t, storage.BackendMemory)
			cfg.Network = network
			l, err := Open(context.Background(), Options{Config: cfg, Payments: payment.NewBook()})
			require.NoError(t, err)
			defer l.Close()

			s, err := l.EncodeAddress(alice)
			require.NoError(t, err)
			if network == "mainnet" {
				assert.Equal(t, byte('1'), s[0])
			} else {
				assert.Contains(t, "mn", string(s[0]))
			}

			got, err := l.DecodeAddress(s)
			require.NoError(t, err)
			assert.Equal(t, alice, got)

			other := "testnet"
			if network == "testnet" {
				other = "mainnet"
			}
			foreign, err := wallet.EncodeAddress(alice, other == "mainnet")
			require.NoError(t, err)
			_, err = l.DecodeAddress(foreign)
			assert.ErrorIs(t, err, wallet.ErrInvalidAddress)
		})
	}
}

func TestLedger_UnknownAsset(t *testing.T) {
	l, err := Open(context.Background(), Options{Config: testConfig(t, storage.BackendMemory), Payments: payment.NewBook()})
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Withdrawable(vault.AssetID{0x99}, alice)
	assert.ErrorIs(t, err, factory.ErrNotFound)
	_, err = l.BuyAccess(context.Background(), vault.AssetID{0x99}, alice, 1, 5)
	assert.ErrorIs(t, err, factory.ErrNotFound)
	assert.False(t, l.HasAccess(vault.AssetID{0x99}, alice))
}

func TestLedger_Closed(t *testing.T) {
	l, err := Open(context.Background(), Options{Config: testConfig(t, storage.BackendMemory), Payments: payment.NewBook()})
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err = l.TotalShares(vault.AssetID{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.RegisterAsset(context.Background(), creator, factory.Overrides{})
	assert.ErrorIs(t, err, ErrClosed)
}

// --- Persistence tests ---

func TestLedger_ReopenRestoresState(t *testing.T) {
	for _, backend := range []string{storage.BackendBolt, storage.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)
			book := fundedBook(t)
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

			l, err := Open(ctx, Options{Config: cfg, Payments: book, Clock: clock})
			require.NoError(t, err)

			title := factory.Metadata{Title: "Song", Symbol: "SNG"}
			v, err := l.RegisterAsset(ctx, creator, factory.Overrides{Metadata: &title})
			require.NoError(t, err)
			id := v.ID()
			require.NoError(t, v.Buy(ctx, alice, 30, 300))
			require.NoError(t, v.Buy(ctx, bob, 10, 100))
			require.NoError(t, v.DepositRoyalties(ctx, viewer, 400))
			_, err = l.BuyAccess(ctx, id, viewer, 1, 5)
			require.NoError(t, err)
			_, err = v.Claim(ctx, bob)
			require.NoError(t, err)

			wantAlice, err := l.Withdrawable(id, alice)
			require.NoError(t, err)
			require.NoError(t, l.Close())

			l2, err := Open(ctx, Options{Config: cfg, Payments: book, Clock: clock})
			require.NoError(t, err)
			defer l2.Close()

			got, err := l2.Withdrawable(id, alice)
			require.NoError(t, err)
			assert.Equal(t, wantAlice, got)
			got, err = l2.Withdrawable(id, bob)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), got)
			total, err := l2.TotalShares(id)
			require.NoError(t, err)
			assert.Equal(t, uint64(40), total)
			assert.True(t, l2.HasAccess(id, viewer))

			meta, err := l2.Factory().Metadata(id)
			require.NoError(t, err)
			assert.Equal(t, "Song", meta.Title)
		})
	}
}

func TestOpen_DataDirLocked(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("flock is not enforced on windows")
	}
	ctx := context.Background()
	cfg := testConfig(t, storage.BackendBolt)

	l, err := Open(ctx, Options{Config: cfg, Payments: payment.NewBook()})
	require.NoError(t, err)

	_, err = Open(ctx, Options{Config: cfg, Payments: payment.NewBook()})
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Close())
	l2, err := Open(ctx, Options{Config: cfg, Payments: payment.NewBook()})
	require.NoError(t, err)
	require.NoError(t, l2.Close())
}

func TestOpen_StoreFailureReleasesLock(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, storage.BackendBolt)

	// A directory where the bolt file belongs makes the store fail to open
	// after the data directory lock is taken.
	dbPath := filepath.Join(cfg.DataDir, "ledger.db")
	require.NoError(t, os.MkdirAll(dbPath, 0700))

	var l *Ledger
	var err error
	require.NotPanics(t, func() {
		l, err = Open(ctx, Options{Config: cfg, Payments: payment.NewBook()})
	})
	require.Error(t, err)
	assert.Nil(t, l)
	assert.NotErrorIs(t, err, ErrLocked)

	// The lock was released, so a fixed directory opens.
	require.NoError(t, os.Remove(dbPath))
	l, err = Open(ctx, Options{Config: cfg, Payments: payment.NewBook()})
	require.NoError(t, err)
	require.NoError(t, l.Close())
}

func TestOpen_LockedReturnsError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("flock is not enforced on windows")
	}
	ctx := context.Background()
	cfg := testConfig(t, storage.BackendPebble)

	l, err := Open(ctx, Options{Config: cfg, Payments: payment.NewBook()})
	require.NoError(t, err)
	defer l.Close()

	require.NotPanics(t, func() {
		_, err = Open(ctx, Options{Config: cfg, Payments: payment.NewBook()})
	})
	assert.ErrorIs(t, err, ErrLocked)

	// The failed attempt must not have released the holder's lock.
	_, err = Open(ctx, Options{Config: cfg, Payments: payment.NewBook()})
	assert.ErrorIs(t, err, ErrLocked)
}

// --- Close tests ---

type failingStore struct{ storage.Store }

func (failingStore) Close() error { return errors.New("disk gone") }

func TestClose_ReturnsStoreError(t *testing.T) {
	l := &Ledger{store: failingStore{}, log: slog.New(slog.DiscardHandler)}

	err := l.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	// Later calls report the same result.
	assert.Equal(t, err, l.Close())
}

// --- Metadata audit tests ---

func TestAuditMetadata(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, storage.BackendBolt)
	l, err := Open(ctx, Options{Config: cfg, Payments: payment.NewBook()})
	require.NoError(t, err)
	defer l.Close()

	md := factory.Metadata{Title: "Track", Symbol: "TRK"}
	v, err := l.RegisterAsset(ctx, creator, factory.Overrides{Metadata: &md})
	require.NoError(t, err)
	_, err = l.RegisterAsset(ctx, creator, factory.Overrides{})
	require.NoError(t, err)

	report, err := l.AuditMetadata()
	require.NoError(t, err)
	assert.Empty(t, report.Orphaned)
	assert.Empty(t, report.Missing)

	// A blob left behind by a failed registration.
	blobs, err := storage.NewBlobStore(filepath.Join(cfg.DataDir, "blobs"))
	require.NoError(t, err)
	orphan, err := blobs.Put([]byte(`{"title":"abandoned"}`))
	require.NoError(t, err)

	// An asset whose metadata blob vanished.
	h := v.Asset().MetadataHash
	require.NoError(t, os.Remove(storage.KeyHashToPath(filepath.Join(cfg.DataDir, "blobs"), h[:])))

	report, err = l.AuditMetadata()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{orphan}, report.Orphaned)
	assert.Equal(t, []vault.AssetID{v.ID()}, report.Missing)
}

func TestAuditMetadata_NoBlobIndex(t *testing.T) {
	l, err := Open(context.Background(), Options{Config: testConfig(t, storage.BackendMemory), Payments: payment.NewBook()})
	require.NoError(t, err)
	defer l.Close()

	_, err = l.AuditMetadata()
	assert.ErrorIs(t, err, ErrNoBlobIndex)
}
