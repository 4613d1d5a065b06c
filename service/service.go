// Package service defines the external collaborators the vault depends on:
// the yield-bearing custody protocol, the price oracle, the randomness
// service, the asset-conversion venue and token movement.
package service

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
)

// Custody is the yield-bearing protocol holding the vault's deposits.
// Balances grow over time as interest accrues.
type Custody interface {
	// Supply deposits amount of asset from the vault into custody.
	Supply(ctx context.Context, asset string, amount *uint256.Int) error

	// Withdraw removes amount of asset from custody and delivers it to to.
	// It returns the amount actually withdrawn.
	Withdraw(ctx context.Context, asset string, amount *uint256.Int, to claim.Address) (*uint256.Int, error)

	// BalanceOf returns holder's interest-bearing receipt balance.
	BalanceOf(ctx context.Context, receipt string, holder claim.Address) (*uint256.Int, error)
}

// Oracle returns the common-unit price of one whole unit of asset,
// with 8 fractional digits.
type Oracle interface {
	PriceOf(ctx context.Context, asset string) (*uint256.Int, error)
}

// RequestID is the opaque identifier a randomness service assigns to a request.
type RequestID string

// RandomnessParams describes a randomness request.
type RandomnessParams struct {
	NumWords      uint32 // random values requested; the vault asks for one
	NativePayment bool   // pay the service in the native asset instead of its token
}

// Randomness issues asynchronous randomness requests. Each request is
// answered exactly once through a Consumer.
type Randomness interface {
	RequestRandom(ctx context.Context, params RandomnessParams) (RequestID, error)
}

// Consumer receives randomness callbacks.
type Consumer interface {
	OnRandomnessFulfilled(ctx context.Context, id RequestID, random *uint256.Int) error
}

// Venue converts one asset into another.
type Venue interface {
	// Quote returns the output for swapping amountIn of from into to.
	Quote(ctx context.Context, from, to string, amountIn *uint256.Int) (*uint256.Int, error)

	// Swap pulls amountIn of from from the caller and pushes the output of to back.
	Swap(ctx context.Context, from, to string, amountIn *uint256.Int) (*uint256.Int, error)
}

// Token moves plain (non-custodied) asset balances between holders and the vault.
type Token interface {
	// Pull transfers amount of asset from from to the vault.
	Pull(ctx context.Context, asset string, from claim.Address, amount *uint256.Int) error

	// Push transfers amount of asset from the vault to to.
	Push(ctx context.Context, asset string, to claim.Address, amount *uint256.Int) error
}
