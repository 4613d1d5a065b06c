package vault

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/config"
	"github.com/bitfsorg/poolvault-go/ledger"
	"github.com/bitfsorg/poolvault-go/liquidity"
	"github.com/bitfsorg/poolvault-go/revshare"
	"github.com/bitfsorg/poolvault-go/service"
	"github.com/bitfsorg/poolvault-go/store"
	"github.com/bitfsorg/poolvault-go/units"
	"github.com/bitfsorg/poolvault-go/valuation"
)

var (
	self     = claim.Address{0: 0xEE, 19: 0xEE}
	alice    = claim.Address{0: 0xA1}
	bob      = claim.Address{0: 0xB0}
	carol    = claim.Address{0: 0xCA}
	treasury = claim.Address{0: 0x7E}
)

const (
	assetX = "X" // 6 decimals
	assetY = "Y" // 18 decimals
)

var (
	testAssetX = ledger.SupportedAsset{ID: assetX, Receipt: "aX", Decimals: 6}
	testAssetY = ledger.SupportedAsset{ID: assetY, Receipt: "aY", Decimals: 18}
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// whole returns n whole units of an asset with dec decimals.
func whole(n uint64, dec uint8) *uint256.Int {
	return new(uint256.Int).Mul(u(n), units.Pow10(dec))
}

func dollars(n uint64) *uint256.Int { return whole(n, units.ValueDecimals) }

type fixture struct {
	v       *Vault
	opts    Options
	st      *store.MemStore
	tok     *service.MemToken
	custody *service.MemCustody
	oracle  *service.StaticOracle
	rnd     *service.MemRandomness
	venue   *service.RateVenue
}

// newFixture opens a vault supporting X (6 decimals) and Y (18 decimals),
// both priced at 1.0, with an in-memory ledger and no conversion venue.
func newFixture(t *testing.T, mods ...func(*fixture)) *fixture {
	t.Helper()
	f := &fixture{
		st:     store.NewMemStore(),
		tok:    service.NewMemToken(self),
		oracle: service.NewStaticOracle(),
		rnd:    service.NewMemRandomness(),
	}
	f.custody = service.NewMemCustody(f.tok)
	f.venue = service.NewRateVenue(f.tok)
	f.custody.Register(assetX, "aX")
	f.custody.Register(assetY, "aY")
	f.oracle.Set(assetX, u(1e8))
	f.oracle.Set(assetY, u(1e8))

	f.opts = Options{
		Store:      f.st,
		Self:       self,
		Custody:    f.custody,
		Oracle:     f.oracle,
		Token:      f.tok,
		Randomness: f.rnd,
	}
	for _, m := range mods {
		m(f)
	}
	f.open(t)

	ctx := context.Background()
	require.NoError(t, f.v.AddAsset(ctx, testAssetX))
	require.NoError(t, f.v.AddAsset(ctx, testAssetY))
	return f
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	v, err := Open(f.opts)
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	f.v = v
}

func withVenue(f *fixture) { f.opts.Venue = f.venue }

func withFeeRate(rate *uint256.Int) func(*fixture) {
	return func(f *fixture) { f.opts.FeeRate = rate }
}

func percent(n uint64) *uint256.Int {
	return new(uint256.Int).Div(new(uint256.Int).Mul(units.WAD(), u(n)), u(100))
}

func configForTest(t *testing.T) config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

// deposit mints tokens to holder and deposits them.
func (f *fixture) deposit(t *testing.T, holder claim.Address, asset string, amount *uint256.Int) *uint256.Int {
	t.Helper()
	f.tok.Mint(asset, holder, amount)
	shares, err := f.v.Deposit(context.Background(), holder, asset, amount)
	require.NoError(t, err)
	return shares
}

func (f *fixture) balance(t *testing.T, holder claim.Address) *uint256.Int {
	t.Helper()
	bal, err := f.v.BalanceOf(context.Background(), holder)
	require.NoError(t, err)
	return bal
}

func (f *fixture) supply(t *testing.T) *uint256.Int {
	t.Helper()
	s, err := f.v.TotalSupply(context.Background())
	require.NoError(t, err)
	return s
}

func (f *fixture) sharePrice(t *testing.T) *uint256.Int {
	t.Helper()
	p, err := f.v.SharePrice(context.Background())
	require.NoError(t, err)
	return p
}

// --- Open / Close ---

func TestOpen_MissingServices(t *testing.T) {
	_, err := Open(Options{})
	assert.ErrorIs(t, err, ErrMissingService)
}

func TestOpen_FeeRateOutOfBounds(t *testing.T) {
	tok := service.NewMemToken(self)
	_, err := Open(Options{
		Custody: service.NewMemCustody(tok),
		Oracle:  service.NewStaticOracle(),
		Token:   tok,
		FeeRate: new(uint256.Int).Add(units.WAD(), u(1)),
	})
	assert.ErrorIs(t, err, ledger.ErrFeeOutOfBounds)
}

func TestClose_RejectsFurtherCalls(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.v.Close())
	require.NoError(t, f.v.Close())
	_, err := f.v.TotalSupply(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

// --- Deposit ---

func TestDeposit_FirstDepositSharesEqualValue(t *testing.T) {
	for _, tc := range []struct {
		name   string
		asset  string
		amount *uint256.Int
		price  uint64
	}{
		{"X at 1.0", assetX, whole(1000, 6), 1e8},
		{"Y at 1.0", assetY, whole(1000, 18), 1e8},
		{"X at 2.5", assetX, u(123456789), 25e7},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.oracle.Set(tc.asset, u(tc.price))
			want, err := valuation.NewConverter(f.oracle).ValueOf(context.Background(), f.v.state, tc.asset, tc.amount)
			require.NoError(t, err)

			shares := f.deposit(t, alice, tc.asset, tc.amount)
			assert.Equal(t, want, shares)
			assert.Equal(t, want, f.supply(t))
			assert.Equal(t, tc.amount, f.custody.Balance(tc.asset))
			assert.True(t, f.tok.BalanceOf(tc.asset, alice).IsZero())
		})
	}
}

func TestDeposit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tok.Mint(assetX, alice, whole(10, 6))

	_, err := f.v.Deposit(ctx, alice, assetX, u(0))
	assert.ErrorIs(t, err, ErrZeroAmount)
	_, err = f.v.Deposit(ctx, alice, "Z", u(1))
	assert.ErrorIs(t, err, ledger.ErrUnsupportedAsset)

	_, err = f.v.Deposit(ctx, alice, assetX, whole(11, 6))
	assert.ErrorIs(t, err, service.ErrExternal, "pull more than alice holds")
	assert.True(t, f.supply(t).IsZero())
	assert.Equal(t, whole(10, 6), f.tok.BalanceOf(assetX, alice))
}

func TestDeposit_OraclePriceUnavailable(t *testing.T) {
	f := newFixture(t)
	f.oracle.Set(assetX, u(0))
	f.tok.Mint(assetX, alice, u(100))
	_, err := f.v.Deposit(context.Background(), alice, assetX, u(100))
	assert.ErrorIs(t, err, valuation.ErrPriceUnavailable)
	assert.Equal(t, u(100), f.tok.BalanceOf(assetX, alice))
}

func TestDeposit_DustMintsNoShares(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, assetX, u(1)) // 10^12 shares
	f.custody.Accrue(assetX, whole(1000, 6))

	f.tok.Mint(assetY, bob, u(1))
	_, err := f.v.Deposit(context.Background(), bob, assetY, u(1))
	assert.ErrorIs(t, err, valuation.ErrZeroShares)
	assert.Equal(t, u(1), f.tok.BalanceOf(assetY, bob))
	assert.True(t, f.balance(t, bob).IsZero())
}

func TestDeposit_SharePriceStable(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, assetX, whole(1000, 6))
	before := f.sharePrice(t)
	assert.Equal(t, units.WAD(), before)

	f.deposit(t, bob, assetY, whole(500, 18))
	f.deposit(t, carol, assetX, u(333333))
	assert.Equal(t, before, f.sharePrice(t))

	_, err := f.v.Redeem(context.Background(), bob, dollars(200), assetY)
	require.NoError(t, err)
	assert.Equal(t, before, f.sharePrice(t))
}

func TestPreviewDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	preview, err := f.v.PreviewDeposit(ctx, assetX, whole(5, 6))
	require.NoError(t, err)
	assert.Equal(t, f.deposit(t, alice, assetX, whole(5, 6)), preview)
}

// --- Redeem ---

func TestRedeem_RoundTripNeverPaysMore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, assetY, whole(1000, 18))
	f.custody.Accrue(assetY, u(333))
	f.oracle.Set(assetX, u(123456789))

	const amount = 1234567
	shares := f.deposit(t, bob, assetX, u(amount))
	res, err := f.v.Redeem(ctx, bob, shares, assetX)
	require.NoError(t, err)

	paid := res.Paid.Uint64()
	assert.LessOrEqual(t, paid, uint64(amount))
	assert.LessOrEqual(t, uint64(amount)-paid, uint64(2))
	assert.Equal(t, res.Paid, f.tok.BalanceOf(assetX, bob))
	assert.True(t, f.balance(t, bob).IsZero())
	assert.False(t, res.Converted)
}

func TestRedeem_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, assetX, whole(10, 6))

	_, err := f.v.Redeem(ctx, alice, u(0), assetX)
	assert.ErrorIs(t, err, ErrZeroAmount)
	_, err = f.v.Redeem(ctx, alice, u(1), "Z")
	assert.ErrorIs(t, err, ledger.ErrUnsupportedAsset)
	_, err = f.v.Redeem(ctx, bob, u(1), assetX)
	assert.ErrorIs(t, err, claim.ErrInsufficientBalance)
	_, err = f.v.Redeem(ctx, alice, u(1), assetX)
	assert.ErrorIs(t, err, ErrZeroAmount, "one share is worth less than one unit of X")
}

func TestRedeem_FallbackConvertsOtherAsset(t *testing.T) {
	f := newFixture(t, withVenue)
	f.venue.SetRate(assetY, assetX, u(1), units.Pow10(12))
	f.venue.Fund(assetX, whole(1_000_000, 6))

	f.deposit(t, alice, assetY, whole(500, 18))
	res, err := f.v.Redeem(context.Background(), alice, dollars(100), assetX)
	require.NoError(t, err)

	assert.True(t, res.Converted)
	assert.Equal(t, assetY, res.Source)
	assert.Equal(t, whole(100, 6), res.Paid)
	assert.Equal(t, whole(100, 6), f.tok.BalanceOf(assetX, alice))
	assert.True(t, f.tok.BalanceOf(assetY, alice).IsZero(), "paid only in X")
	assert.Equal(t, dollars(400), f.balance(t, alice))

	yBal := f.custody.Balance(assetY)
	assert.True(t, yBal.Gt(whole(399, 18)), "only the shortfall is converted")
	assets, err := f.v.Assets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, yBal, assets[1].LastObserved)
}

func TestRedeem_FallbackSweepPolicy(t *testing.T) {
	f := newFixture(t, withVenue, func(f *fixture) { f.opts.Fallback = liquidity.SweepAll })
	f.venue.SetRate(assetY, assetX, u(1), units.Pow10(12))
	f.venue.Fund(assetX, whole(1_000_000, 6))

	f.deposit(t, alice, assetY, whole(500, 18))
	f.deposit(t, bob, assetY, whole(500, 18))
	res, err := f.v.Redeem(context.Background(), alice, dollars(100), assetX)
	require.NoError(t, err)
	// The whole Y balance is converted and delivered.
	assert.Equal(t, whole(1000, 6), res.Paid)
	assert.True(t, f.custody.Balance(assetY).IsZero())
}

func TestOpen_LoggerReachesCollaborators(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(log.JSONHandlerWithLevel(&buf, log.LevelDebug))
	f := newFixture(t, withVenue, func(f *fixture) { f.opts.Logger = logger })
	f.venue.SetRate(assetY, assetX, u(1), units.Pow10(12))
	f.venue.Fund(assetX, whole(1_000_000, 6))
	ctx := context.Background()

	f.deposit(t, alice, assetY, whole(500, 18))
	f.deposit(t, bob, assetX, whole(50, 6))
	_, err := f.v.Redeem(ctx, alice, dollars(100), assetX)
	require.NoError(t, err)
	req := f.request(t, dollars(2), 2, assetX)
	require.NoError(t, f.rnd.Deliver(ctx, f.v, req.ID, u(9)))

	out := buf.String()
	for _, msg := range []string{
		"Converted redemption liquidity",
		"Distribution requested",
		"Distribution fulfilled",
		"Paid distribution",
	} {
		assert.Contains(t, out, msg)
	}
}

func TestRedeem_NoLiquidityLeavesBalancesUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, assetY, whole(500, 18))
	snapBefore, err := f.st.LoadSnapshot()
	require.NoError(t, err)

	_, err = f.v.Redeem(ctx, alice, dollars(100), assetX)
	assert.ErrorIs(t, err, liquidity.ErrInsufficientLiquidity)

	assert.Equal(t, whole(500, 18), f.custody.Balance(assetY))
	assert.True(t, f.custody.Balance(assetX).IsZero())
	assert.Equal(t, dollars(500), f.balance(t, alice))
	assert.True(t, f.tok.BalanceOf(assetX, alice).IsZero())
	snapAfter, err := f.st.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, snapBefore, snapAfter)
}

func TestRedeem_SwapFailureRollsBack(t *testing.T) {
	venue := &service.MockVenue{
		QuoteFn: func(_ context.Context, _, _ string, in *uint256.Int) (*uint256.Int, error) {
			return new(uint256.Int).Div(in, units.Pow10(12)), nil
		},
		SwapFn: func(context.Context, string, string, *uint256.Int) (*uint256.Int, error) {
			return nil, errors.New("pool drained")
		},
	}
	f := newFixture(t, func(f *fixture) { f.opts.Venue = venue })
	f.deposit(t, alice, assetY, whole(500, 18))

	_, err := f.v.Redeem(context.Background(), alice, dollars(100), assetX)
	assert.ErrorIs(t, err, liquidity.ErrInsufficientLiquidity)
	assert.Equal(t, whole(500, 18), f.custody.Balance(assetY))
	assert.True(t, f.tok.BalanceOf(assetY, self).IsZero())
	assert.Equal(t, dollars(500), f.balance(t, alice))

	assets, err := f.v.Assets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, whole(500, 18), assets[1].LastObserved)
	assert.True(t, assets[1].Harvestable.IsZero(), "returned funds are not yield")
}

func TestPreviewRedeem(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, assetX, whole(100, 6))
	owed, err := f.v.PreviewRedeem(context.Background(), dollars(40), assetX)
	require.NoError(t, err)
	assert.Equal(t, whole(40, 6), owed)
}

// --- Yield and fees ---

func TestAccrue_Idempotent(t *testing.T) {
	f := newFixture(t, withFeeRate(percent(10)))
	ctx := context.Background()
	f.deposit(t, alice, assetX, whole(1000, 6))
	f.custody.Accrue(assetX, whole(100, 6))

	yield, fee, err := f.v.Accrue(ctx, assetX)
	require.NoError(t, err)
	assert.Equal(t, whole(100, 6), yield)
	assert.Equal(t, whole(10, 6), fee)

	yield, fee, err = f.v.Accrue(ctx, assetX)
	require.NoError(t, err)
	assert.True(t, yield.IsZero())
	assert.True(t, fee.IsZero())

	harvestable, err := f.v.HarvestableFee(ctx, assetX)
	require.NoError(t, err)
	assert.Equal(t, whole(10, 6), harvestable)
}

func TestHarvestFee(t *testing.T) {
	f := newFixture(t, withFeeRate(percent(20)))
	ctx := context.Background()
	f.deposit(t, alice, assetX, whole(1000, 6))
	f.custody.Accrue(assetX, whole(50, 6))

	paid, err := f.v.HarvestFee(ctx, assetX, treasury)
	require.NoError(t, err)
	assert.Equal(t, whole(10, 6), paid)
	assert.Equal(t, whole(10, 6), f.tok.BalanceOf(assetX, treasury))
	assert.Equal(t, whole(1040, 6), f.custody.Balance(assetX))

	paid, err = f.v.HarvestFee(ctx, assetX, treasury)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())

	total, err := f.v.TotalValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, dollars(1040), total)
}

func TestSetFeeRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, assetX, whole(1000, 6))
	f.custody.Accrue(assetX, whole(100, 6))

	err := f.v.SetFeeRate(ctx, new(uint256.Int).Add(units.WAD(), u(1)))
	assert.ErrorIs(t, err, ledger.ErrFeeOutOfBounds)

	half := percent(50)
	require.NoError(t, f.v.SetFeeRate(ctx, half))
	rate, err := f.v.FeeRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, half, rate)

	fee, err := f.v.HarvestableFee(ctx, assetX)
	require.NoError(t, err)
	assert.True(t, fee.IsZero(), "earlier yield is booked at the old rate")

	f.custody.Accrue(assetX, whole(100, 6))
	fee, err = f.v.HarvestableFee(ctx, assetX)
	require.NoError(t, err)
	assert.Equal(t, whole(50, 6), fee)
}

func TestTwoAssetScenario(t *testing.T) {
	f := newFixture(t, withFeeRate(percent(10)))
	ctx := context.Background()

	sharesA := f.deposit(t, alice, assetY, whole(1000, 18))
	assert.Equal(t, dollars(1000), sharesA)

	sharesB := f.deposit(t, bob, assetX, whole(1000, 6))
	supply := f.supply(t)
	assert.Equal(t, dollars(2000), supply)
	assert.Equal(t, new(uint256.Int).Div(supply, u(2)), sharesB)

	f.custody.Accrue(assetY, whole(100, 18))
	yield, fee, err := f.v.Accrue(ctx, assetY)
	require.NoError(t, err)
	assert.Equal(t, whole(100, 18), yield)
	assert.Equal(t, whole(10, 18), fee)

	// (1000 + 90 + 1000) / 2000
	want := new(uint256.Int).Div(new(uint256.Int).Mul(units.WAD(), u(2090)), u(2000))
	assert.Equal(t, want, f.sharePrice(t))
}

// --- Transfers and participants ---

func TestTransfer_UpdatesParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, assetX, whole(10, 6))

	require.NoError(t, f.v.Transfer(ctx, alice, bob, dollars(4)))
	members, err := f.v.Participants(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []claim.Address{alice, bob}, members)

	require.NoError(t, f.v.Transfer(ctx, alice, bob, dollars(6)))
	members, err = f.v.Participants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []claim.Address{bob}, members)

	err = f.v.Transfer(ctx, alice, bob, u(1))
	assert.ErrorIs(t, err, claim.ErrInsufficientBalance)
	assert.ErrorIs(t, f.v.Transfer(ctx, bob, alice, u(0)), ErrZeroAmount)
}

func TestTransferFrom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, assetX, whole(10, 6))

	require.NoError(t, f.v.Approve(ctx, alice, carol, dollars(3)))
	err := f.v.TransferFrom(ctx, carol, alice, bob, dollars(4))
	assert.ErrorIs(t, err, claim.ErrInsufficientAllowance)

	require.NoError(t, f.v.TransferFrom(ctx, carol, alice, bob, dollars(3)))
	assert.Equal(t, dollars(3), f.balance(t, bob))
	left, err := f.v.Allowance(ctx, alice, carol)
	require.NoError(t, err)
	assert.True(t, left.IsZero())
}

// --- Pause ---

func TestPause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, assetX, whole(10, 6))
	f.deposit(t, bob, assetX, whole(10, 6))
	require.NoError(t, f.v.Pause(ctx))
	paused, err := f.v.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	f.tok.Mint(assetX, alice, u(1))
	_, err = f.v.Deposit(ctx, alice, assetX, u(1))
	assert.ErrorIs(t, err, ErrPaused)
	_, err = f.v.Redeem(ctx, alice, dollars(1), assetX)
	assert.ErrorIs(t, err, ErrPaused)
	assert.ErrorIs(t, f.v.Transfer(ctx, alice, bob, dollars(1)), ErrPaused)

	_, err = f.v.RequestDistribution(ctx, dollars(1), 1, assetX, revshare.PayWithToken)
	assert.NoError(t, err, "distributions stay open while paused")

	require.NoError(t, f.v.Unpause(ctx))
	assert.NoError(t, f.v.Transfer(ctx, alice, bob, dollars(1)))
}

// --- Reentrancy ---

func TestReentrantCallRejected(t *testing.T) {
	var v *Vault
	token := &service.MockToken{
		PullFn: func(ctx context.Context, asset string, from claim.Address, amount *uint256.Int) error {
			_, err := v.Deposit(ctx, from, asset, amount)
			return err
		},
		PushFn: func(context.Context, string, claim.Address, *uint256.Int) error { return nil },
	}
	f := newFixture(t, func(f *fixture) { f.opts.Token = token })
	v = f.v
	ctx := context.Background()

	_, err := v.Deposit(ctx, alice, assetX, u(100))
	assert.ErrorIs(t, err, ErrReentrantCall)
	assert.True(t, f.supply(t).IsZero())

	// The guard was released on the failure path.
	require.NoError(t, v.Pause(ctx))
}

func TestReentrantReadRejected(t *testing.T) {
	var v *Vault
	var inner error
	custody := &service.MockCustody{
		BalanceOfFn: func(ctx context.Context, _ string, _ claim.Address) (*uint256.Int, error) {
			_, inner = v.TotalSupply(ctx)
			return new(uint256.Int), nil
		},
	}
	f := newFixture(t, func(f *fixture) { f.opts.Custody = custody })
	v = f.v
	assert.ErrorIs(t, inner, ErrReentrantCall)
}

func TestCallbackWithFreshContextFailsFast(t *testing.T) {
	tests := []struct {
		name  string
		inner func(v *Vault) error
	}{
		{"read", func(v *Vault) error {
			_, err := v.TotalSupply(context.Background())
			return err
		}},
		{"write", func(v *Vault) error {
			_, err := v.Deposit(context.Background(), bob, assetX, u(1))
			return err
		}},
		{"close", func(v *Vault) error { return v.Close() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v *Vault
			var inner error
			token := &service.MockToken{
				PullFn: func(context.Context, string, claim.Address, *uint256.Int) error {
					inner = tt.inner(v)
					return inner
				},
				PushFn: func(context.Context, string, claim.Address, *uint256.Int) error { return nil },
			}
			f := newFixture(t, func(f *fixture) { f.opts.Token = token })
			v = f.v

			_, err := v.Deposit(context.Background(), alice, assetX, u(100))
			assert.ErrorIs(t, inner, ErrReentrantCall)
			assert.ErrorIs(t, err, ErrReentrantCall)
			assert.True(t, f.supply(t).IsZero())

			// The vault is still usable and closes normally.
			_, err = v.TotalSupply(context.Background())
			require.NoError(t, err)
			require.NoError(t, v.Close())
		})
	}
}

// --- Persistence ---

func TestReopen_RestoresLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, assetX, whole(10, 6))
	f.deposit(t, bob, assetY, whole(5, 18))
	require.NoError(t, f.v.Pause(ctx))
	require.NoError(t, f.v.Close())

	f.open(t)
	assert.Equal(t, dollars(10), f.balance(t, alice))
	assert.Equal(t, dollars(15), f.supply(t))
	members, err := f.v.Participants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []claim.Address{alice, bob}, members)
	paused, err := f.v.Paused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)
	assets, err := f.v.Assets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, dollars(10), assets[0].Deposited)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := configForTest(t)
	cfg.FeeRate = "0.25"
	cfg.Remainder = "last"
	cfg.Fallback = "sweep"
	cfg.RecentRequests = 8

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir, opts.DataDir)
	assert.Equal(t, percent(25), opts.FeeRate)
	assert.Equal(t, "last", opts.Remainder.String())
	assert.Equal(t, liquidity.SweepAll, opts.Fallback)
	assert.Equal(t, 8, opts.RecentRequests)

	cfg.Fallback = "greedy"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}

// --- Asset registry ---

func TestAddAsset_AdoptsExistingBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.custody.Register("Z", "aZ")
	f.custody.Accrue("Z", u(500))
	f.oracle.Set("Z", u(1e8))

	require.NoError(t, f.v.AddAsset(ctx, ledger.SupportedAsset{ID: "Z", Receipt: "aZ", Decimals: 0}))
	assets, err := f.v.Assets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, u(500), assets[2].LastObserved)
	assert.True(t, assets[2].Harvestable.IsZero())

	err = f.v.AddAsset(ctx, testAssetX)
	assert.ErrorIs(t, err, ledger.ErrAssetExists)
}

func TestRemoveAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deposit(t, alice, assetX, whole(1, 6))

	assert.ErrorIs(t, f.v.RemoveAsset(ctx, assetX), ledger.ErrAssetHasBalance)
	assert.ErrorIs(t, f.v.RemoveAsset(ctx, "Z"), ledger.ErrUnsupportedAsset)

	require.NoError(t, f.v.RemoveAsset(ctx, assetY))
	assets, err := f.v.Assets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, assetX, assets[0].ID)

	f.tok.Mint(assetY, bob, u(1))
	_, err = f.v.Deposit(ctx, bob, assetY, u(1))
	assert.ErrorIs(t, err, ledger.ErrUnsupportedAsset)
}
