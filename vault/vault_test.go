package vault

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libroyalty-go/payment"
	"github.com/bitfsorg/libroyalty-go/revshare"
	"github.com/bitfsorg/libroyalty-go/storage"
	"github.com/bitfsorg/libroyalty-go/wallet"
)

const unit payment.Unit = "BSV"

var (
	creator = revshare.Address{0xC0}
	alice   = revshare.Address{0xA1}
	bob     = revshare.Address{0xB0}
	carol   = revshare.Address{0xCA}
	payer   = revshare.Address{0xEE}
)

// --- Helper functions ---

type fixture struct {
	store  storage.Store
	book   *payment.Book
	deps   Deps
	vault  *Vault
	events []Event
	mu     sync.Mutex
}

func testConfig(p Proceeds) Config {
	return Config{PricePerShare: 10, RevenueUnit: unit, LicensePrice: 5, LicensePeriod: 3600, Proceeds: p}
}

func testAsset(cfg Config) Asset {
	return Asset{ID: AssetID{0x01}, Seq: 1, Creator: creator, CreatedAt: 1700000000, Config: cfg}
}

func newFixture(t *testing.T, store storage.Store, cfg Config) *fixture {
	t.Helper()
	f := &fixture{store: store, book: payment.NewBook()}
	f.deps = Deps{
		Store:    store,
		Payments: f.book,
		Observer: func(ev Event) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, ev)
		},
	}
	for _, a := range []revshare.Address{alice, bob, carol, payer} {
		require.NoError(t, f.book.Credit(unit, a, 1_000_000))
	}
	v, err := Create(context.Background(), f.deps, testAsset(cfg), nil)
	require.NoError(t, err)
	f.vault = v
	return f
}

func newMemFixture(t *testing.T, p Proceeds) *fixture {
	return newFixture(t, storage.NewMemStore(), testConfig(p))
}

func withdrawable(t *testing.T, v *Vault, a revshare.Address) uint64 {
	t.Helper()
	w, err := v.Withdrawable(a)
	require.NoError(t, err)
	return w
}

func (f *fixture) buy(t *testing.T, who revshare.Address, shares uint64) {
	t.Helper()
	require.NoError(t, f.vault.Buy(context.Background(), who, shares, shares*10))
}

// signer returns a fresh key pair whose address can pay for shares.
func (f *fixture) signer(t *testing.T) *wallet.KeyPair {
	t.Helper()
	key, err := wallet.NewKeyPair()
	require.NoError(t, err)
	require.NoError(t, f.book.Credit(unit, key.Address, 1_000_000))
	return key
}

// --- Create / Open tests ---

func TestCreate_Duplicate(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	_, err := Create(context.Background(), f.deps, f.vault.Asset(), nil)
	assert.ErrorIs(t, err, ErrAssetExists)
}

func TestCreate_InvalidConfig(t *testing.T) {
	deps := Deps{Store: storage.NewMemStore(), Payments: payment.NewBook()}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero price", Config{RevenueUnit: unit}},
		{"no unit", Config{PricePerShare: 1}},
		{"license without period", Config{PricePerShare: 1, RevenueUnit: unit, LicensePrice: 1}},
		{"bad proceeds", Config{PricePerShare: 1, RevenueUnit: unit, Proceeds: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(context.Background(), deps, testAsset(tt.cfg), nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestCreate_MissingDeps(t *testing.T) {
	_, err := Create(context.Background(), Deps{}, testAsset(testConfig(ProceedsToHolders)), nil)
	assert.ErrorIs(t, err, ErrNilParam)
}

func TestOpen_NotFound(t *testing.T) {
	deps := Deps{Store: storage.NewMemStore(), Payments: payment.NewBook()}
	_, err := Open(deps, AssetID{0x99})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssetID_Parse(t *testing.T) {
	id := AssetID{0xAB, 0xCD}
	got, err := ParseAssetID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseAssetID("abcd")
	assert.ErrorIs(t, err, ErrInvalidAssetID)
}

// --- Buy tests ---

func TestBuy_PriceMismatch(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	err := f.vault.Buy(context.Background(), alice, 10, 99)
	assert.ErrorIs(t, err, ErrPriceMismatch)
	assert.Equal(t, uint64(0), f.vault.TotalShares())
	assert.Equal(t, uint64(1_000_000), f.book.Balance(unit, alice))
}

func TestBuy_ZeroShares(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	assert.ErrorIs(t, f.vault.Buy(context.Background(), alice, 0, 0), ErrInvalidAmount)
}

func TestBuy_PriceOverflow(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	_, err := f.vault.Quote(1 << 62)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestBuy_PaymentFailureRollsBack(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	poor := revshare.Address{0x01}

	err := f.vault.Buy(context.Background(), poor, 5, 50)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.ErrorIs(t, err, payment.ErrInsufficientFunds)
	assert.Equal(t, uint64(0), f.vault.TotalShares())
	assert.Equal(t, uint64(0), f.vault.BalanceOf(poor))
	assert.Equal(t, uint64(0), f.vault.TotalDistributed())
	assert.Empty(t, f.vault.Holders())
	assert.Empty(t, f.events)

	_, err = f.store.Get(holderKey(f.vault.ID(), poor))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBuy_MaxSupply(t *testing.T) {
	cfg := testConfig(ProceedsToHolders)
	cfg.MaxSupply = 150
	f := newFixture(t, storage.NewMemStore(), cfg)

	f.buy(t, alice, 100)
	err := f.vault.Buy(context.Background(), bob, 51, 510)
	assert.ErrorIs(t, err, ErrSupplyExhausted)
	f.buy(t, bob, 50)
	assert.Equal(t, uint64(150), f.vault.TotalShares())
}

// --- Scenario tests ---

func TestScenario_ProceedsToHolders(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	ctx := context.Background()

	f.buy(t, alice, 100)
	assert.Equal(t, uint64(1000), withdrawable(t, f.vault, alice))

	f.buy(t, bob, 100)
	assert.Equal(t, uint64(1500), withdrawable(t, f.vault, alice))
	assert.Equal(t, uint64(500), withdrawable(t, f.vault, bob))

	require.NoError(t, f.vault.DepositRoyalties(ctx, payer, 200))
	assert.Equal(t, uint64(1600), withdrawable(t, f.vault, alice))
	assert.Equal(t, uint64(600), withdrawable(t, f.vault, bob))

	assert.Equal(t, uint64(2200), f.book.Reserve(unit))
	assert.Equal(t, uint64(0), f.vault.ProceedsAvailable())
}

func TestScenario_ProceedsToCreator(t *testing.T) {
	f := newMemFixture(t, ProceedsToCreator)
	ctx := context.Background()

	f.buy(t, alice, 100)
	assert.Equal(t, uint64(0), withdrawable(t, f.vault, alice))

	f.buy(t, bob, 100)
	require.NoError(t, f.vault.DepositRoyalties(ctx, payer, 200))
	assert.Equal(t, uint64(100), withdrawable(t, f.vault, alice))
	assert.Equal(t, uint64(100), withdrawable(t, f.vault, bob))

	require.NoError(t, f.vault.Transfer(ctx, alice, alice, carol, 50))
	assert.Equal(t, uint64(100), withdrawable(t, f.vault, alice))
	assert.Equal(t, uint64(0), withdrawable(t, f.vault, carol))

	require.NoError(t, f.vault.DepositRoyalties(ctx, payer, 300))
	assert.Equal(t, uint64(175), withdrawable(t, f.vault, alice))
	assert.Equal(t, uint64(250), withdrawable(t, f.vault, bob))
	assert.Equal(t, uint64(75), withdrawable(t, f.vault, carol))

	assert.Equal(t, uint64(2000), f.vault.ProceedsAvailable())
}

// --- Deposit tests ---

func TestDeposit_NoShares(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	err := f.vault.DepositRoyalties(context.Background(), payer, 100)
	assert.ErrorIs(t, err, ErrNoShares)
	assert.Equal(t, uint64(1_000_000), f.book.Balance(unit, payer))
}

func TestDeposit_PaymentFailure(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	f.buy(t, alice, 10)
	before := withdrawable(t, f.vault, alice)

	err := f.vault.DepositRoyalties(context.Background(), revshare.Address{0x02}, 100)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Equal(t, before, withdrawable(t, f.vault, alice))
	assert.Equal(t, uint64(100), f.vault.TotalDistributed())
}

func TestDepositWith_StagesExtraRecords(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	f.buy(t, alice, 10)

	key := []byte("x/extra")
	err := f.vault.DepositRoyaltiesWith(context.Background(), payer, 5, func(b *storage.Batch) error {
		b.Put(key, []byte("v"))
		return nil
	})
	require.NoError(t, err)
	v, err := f.store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	stageErr := errors.New("stage failed")
	err = f.vault.DepositRoyaltiesWith(context.Background(), payer, 5, func(b *storage.Batch) error {
		return stageErr
	})
	assert.ErrorIs(t, err, stageErr)
	assert.Equal(t, uint64(105), f.vault.TotalDistributed())
	assert.Equal(t, uint64(1_000_000-5), f.book.Balance(unit, payer))
}

// --- Transfer tests ---

func TestTransfer_Unauthorized(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	f.buy(t, alice, 10)

	err := f.vault.Transfer(context.Background(), bob, alice, bob, 5)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, uint64(10), f.vault.BalanceOf(alice))
}

func TestTransfer_ApprovedOperator(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	approvals := wallet.NewApprovals()
	f.vault.deps.Authorizer = approvals
	f.buy(t, alice, 10)

	approvals.Approve(alice, bob)
	require.NoError(t, f.vault.Transfer(context.Background(), bob, alice, carol, 4))
	assert.Equal(t, uint64(6), f.vault.BalanceOf(alice))
	assert.Equal(t, uint64(4), f.vault.BalanceOf(carol))
}

func TestTransfer_Insufficient(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	f.buy(t, alice, 10)
	err := f.vault.Transfer(context.Background(), alice, alice, bob, 11)
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.Equal(t, uint64(0), f.vault.BalanceOf(bob))
}

func TestTransferSigned(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	ctx := context.Background()
	key := f.signer(t)
	f.buy(t, key.Address, 10)

	auth, err := wallet.SignTransfer(key, f.vault.ID(), bob, 3, 1)
	require.NoError(t, err)
	require.NoError(t, f.vault.TransferSigned(ctx, auth))
	assert.Equal(t, uint64(3), f.vault.BalanceOf(bob))
	assert.Equal(t, uint64(1), f.vault.Nonce(key.Address))

	// Replay is rejected.
	err = f.vault.TransferSigned(ctx, auth)
	assert.ErrorIs(t, err, ErrStaleNonce)
	assert.Equal(t, uint64(3), f.vault.BalanceOf(bob))

	// A failed move does not consume the nonce.
	big, err := wallet.SignTransfer(key, f.vault.ID(), bob, 100, 2)
	require.NoError(t, err)
	assert.ErrorIs(t, f.vault.TransferSigned(ctx, big), ErrInsufficientShares)
	assert.Equal(t, uint64(1), f.vault.Nonce(key.Address))

	next, err := wallet.SignTransfer(key, f.vault.ID(), bob, 2, 2)
	require.NoError(t, err)
	require.NoError(t, f.vault.TransferSigned(ctx, next))
	assert.Equal(t, uint64(5), f.vault.BalanceOf(bob))
}

func TestTransferSigned_Rejected(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	ctx := context.Background()
	key := f.signer(t)
	f.buy(t, key.Address, 10)

	other, err := wallet.SignTransfer(key, AssetID{0x77}, bob, 1, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, f.vault.TransferSigned(ctx, other), ErrAssetMismatch)

	forged, err := wallet.SignTransfer(key, f.vault.ID(), bob, 1, 1)
	require.NoError(t, err)
	forged.Amount = 9
	assert.ErrorIs(t, f.vault.TransferSigned(ctx, forged), ErrUnauthorized)
	assert.Equal(t, uint64(10), f.vault.BalanceOf(key.Address))

	assert.ErrorIs(t, f.vault.TransferSigned(ctx, nil), ErrNilParam)
}

// --- Claim tests ---

func TestClaim(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	ctx := context.Background()
	f.buy(t, alice, 100)
	f.buy(t, bob, 100)

	amount, err := f.vault.Claim(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), amount)
	assert.Equal(t, uint64(1_000_000-1000+1500), f.book.Balance(unit, alice))
	assert.Equal(t, uint64(0), withdrawable(t, f.vault, alice))
	assert.Equal(t, uint64(1500), f.vault.TotalClaimed())

	_, err = f.vault.Claim(ctx, alice)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestClaim_PayoutFailureRollsBack(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	ctx := context.Background()
	f.buy(t, alice, 100)
	stored, err := f.store.Get(holderKey(f.vault.ID(), alice))
	require.NoError(t, err)

	down := errors.New("payout rail down")
	f.book.SetHook(func(tr payment.Transfer) error {
		if tr.Direction == payment.Out {
			return down
		}
		return nil
	})

	_, err = f.vault.Claim(ctx, alice)
	assert.ErrorIs(t, err, ErrPayoutFailed)
	assert.ErrorIs(t, err, down)
	assert.Equal(t, uint64(1000), withdrawable(t, f.vault, alice))
	assert.Equal(t, uint64(0), f.vault.TotalClaimed())

	after, err := f.store.Get(holderKey(f.vault.ID(), alice))
	require.NoError(t, err)
	assert.Equal(t, stored, after)

	f.book.SetHook(nil)
	amount, err := f.vault.Claim(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), amount)
}

func TestClaim_CancelledContext(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	f.buy(t, alice, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.vault.Claim(ctx, alice)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(10), withdrawable(t, f.vault, alice))
}

func TestClaimProceeds(t *testing.T) {
	f := newMemFixture(t, ProceedsToCreator)
	ctx := context.Background()
	f.buy(t, alice, 30)

	_, err := f.vault.ClaimProceeds(ctx, alice)
	assert.ErrorIs(t, err, ErrUnauthorized)

	amount, err := f.vault.ClaimProceeds(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), amount)
	assert.Equal(t, uint64(300), f.book.Balance(unit, creator))

	_, err = f.vault.ClaimProceeds(ctx, creator)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

// --- Event tests ---

func TestEvents(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	ctx := context.Background()
	f.buy(t, alice, 2)
	require.NoError(t, f.vault.Transfer(ctx, alice, alice, bob, 1))
	require.NoError(t, f.vault.DepositRoyalties(ctx, payer, 7))
	_, err := f.vault.Claim(ctx, bob)
	require.NoError(t, err)

	var kinds []EventKind
	for _, ev := range f.events {
		assert.Equal(t, f.vault.ID(), ev.Asset)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventPurchase, EventTransfer, EventRoyalties, EventClaim}, kinds)
	assert.Equal(t, bob, f.events[1].Counterparty)
	assert.Equal(t, "royalties", f.events[2].Kind.String())
}

// --- Persistence tests ---

func TestPersistence_Reopen(t *testing.T) {
	for _, backend := range []string{storage.BackendBolt, storage.BackendPebble} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			store, err := storage.Open(backend, dir, nil)
			require.NoError(t, err)
			f := newFixture(t, store, testConfig(ProceedsToCreator))
			ctx := context.Background()

			key := f.signer(t)

			f.buy(t, alice, 100)
			f.buy(t, key.Address, 50)
			require.NoError(t, f.vault.DepositRoyalties(ctx, payer, 301))
			auth, err := wallet.SignTransfer(key, f.vault.ID(), bob, 20, 7)
			require.NoError(t, err)
			require.NoError(t, f.vault.TransferSigned(ctx, auth))
			_, err = f.vault.Claim(ctx, alice)
			require.NoError(t, err)
			_, err = f.vault.ClaimProceeds(ctx, creator)
			require.NoError(t, err)

			accounts := []revshare.Address{alice, bob, key.Address}
			want := map[revshare.Address][2]uint64{}
			for _, a := range accounts {
				want[a] = [2]uint64{f.vault.BalanceOf(a), withdrawable(t, f.vault, a)}
			}
			require.NoError(t, store.Close())

			store, err = storage.Open(backend, dir, nil)
			require.NoError(t, err)
			defer store.Close()
			deps := Deps{Store: store, Payments: f.book}
			v, err := Open(deps, f.vault.ID())
			require.NoError(t, err)

			assert.Equal(t, f.vault.Asset(), v.Asset())
			assert.Equal(t, uint64(150), v.TotalShares())
			assert.Equal(t, uint64(301), v.TotalDistributed())
			assert.Equal(t, uint64(0), v.ProceedsAvailable())
			assert.Equal(t, uint64(7), v.Nonce(key.Address))
			for _, a := range accounts {
				assert.Equal(t, want[a], [2]uint64{v.BalanceOf(a), withdrawable(t, v, a)}, a.String())
			}
			_, err = v.Audit()
			require.NoError(t, err)

			var seen []AssetID
			require.NoError(t, ScanAssets(store, func(a Asset) error {
				seen = append(seen, a.ID)
				return nil
			}))
			assert.Equal(t, []AssetID{f.vault.ID()}, seen)

			replay, err := wallet.SignTransfer(key, v.ID(), bob, 1, 7)
			require.NoError(t, err)
			assert.ErrorIs(t, v.TransferSigned(ctx, replay), ErrStaleNonce)
		})
	}
}

func TestAssetRecord_Corrupt(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	b := storage.NewBatch()
	b.Put(AssetKey(f.vault.ID()), []byte{0x01})
	require.NoError(t, f.store.Commit(b, nil))

	_, err := Open(f.deps, f.vault.ID())
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

// --- Concurrency tests ---

func TestConcurrentOperations(t *testing.T) {
	f := newMemFixture(t, ProceedsToHolders)
	ctx := context.Background()
	buyers := []revshare.Address{alice, bob, carol}

	var wg sync.WaitGroup
	for _, who := range buyers {
		wg.Add(1)
		go func(who revshare.Address) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, f.vault.Buy(ctx, who, 1, 10))
				if i%10 == 0 {
					_, err := f.vault.Claim(ctx, who)
					if err != nil {
						assert.ErrorIs(t, err, ErrNothingToClaim)
					}
				}
			}
		}(who)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			err := f.vault.DepositRoyalties(ctx, payer, 13)
			if err != nil {
				assert.ErrorIs(t, err, ErrNoShares)
			}
		}
	}()
	wg.Wait()

	assert.Equal(t, uint64(150), f.vault.TotalShares())
	report, err := f.vault.Audit()
	require.NoError(t, err)
	assert.Equal(t, uint64(150), report.SumBalances)
	assert.LessOrEqual(t, f.vault.TotalClaimed()+report.SumWithdrawable, f.vault.TotalDistributed())
}

func TestOpen_BoltPath(t *testing.T) {
	store, err := storage.OpenBoltStore(filepath.Join(t.TempDir(), "v.db"))
	require.NoError(t, err)
	defer store.Close()
	f := newFixture(t, store, testConfig(ProceedsToHolders))
	v, err := Open(f.deps, f.vault.ID())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v.TotalShares())
}
