package service

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
)

// MockCustody is a test double for Custody.
// All function fields must be set before the corresponding method is called.
type MockCustody struct {
	SupplyFn    func(ctx context.Context, asset string, amount *uint256.Int) error
	WithdrawFn  func(ctx context.Context, asset string, amount *uint256.Int, to claim.Address) (*uint256.Int, error)
	BalanceOfFn func(ctx context.Context, receipt string, holder claim.Address) (*uint256.Int, error)
}

func (m *MockCustody) Supply(ctx context.Context, asset string, amount *uint256.Int) error {
	return m.SupplyFn(ctx, asset, amount)
}
func (m *MockCustody) Withdraw(ctx context.Context, asset string, amount *uint256.Int, to claim.Address) (*uint256.Int, error) {
	return m.WithdrawFn(ctx, asset, amount, to)
}
func (m *MockCustody) BalanceOf(ctx context.Context, receipt string, holder claim.Address) (*uint256.Int, error) {
	return m.BalanceOfFn(ctx, receipt, holder)
}

// MockOracle is a test double for Oracle.
type MockOracle struct {
	PriceOfFn func(ctx context.Context, asset string) (*uint256.Int, error)
}

func (m *MockOracle) PriceOf(ctx context.Context, asset string) (*uint256.Int, error) {
	return m.PriceOfFn(ctx, asset)
}

// MockRandomness is a test double for Randomness.
type MockRandomness struct {
	RequestRandomFn func(ctx context.Context, params RandomnessParams) (RequestID, error)
}

func (m *MockRandomness) RequestRandom(ctx context.Context, params RandomnessParams) (RequestID, error) {
	return m.RequestRandomFn(ctx, params)
}

// MockVenue is a test double for Venue.
type MockVenue struct {
	QuoteFn func(ctx context.Context, from, to string, amountIn *uint256.Int) (*uint256.Int, error)
	SwapFn  func(ctx context.Context, from, to string, amountIn *uint256.Int) (*uint256.Int, error)
}

func (m *MockVenue) Quote(ctx context.Context, from, to string, amountIn *uint256.Int) (*uint256.Int, error) {
	return m.QuoteFn(ctx, from, to, amountIn)
}
func (m *MockVenue) Swap(ctx context.Context, from, to string, amountIn *uint256.Int) (*uint256.Int, error) {
	return m.SwapFn(ctx, from, to, amountIn)
}

// MockToken is a test double for Token.
type MockToken struct {
	PullFn func(ctx context.Context, asset string, from claim.Address, amount *uint256.Int) error
	PushFn func(ctx context.Context, asset string, to claim.Address, amount *uint256.Int) error
}

func (m *MockToken) Pull(ctx context.Context, asset string, from claim.Address, amount *uint256.Int) error {
	return m.PullFn(ctx, asset, from, amount)
}
func (m *MockToken) Push(ctx context.Context, asset string, to claim.Address, amount *uint256.Int) error {
	return m.PushFn(ctx, asset, to, amount)
}
