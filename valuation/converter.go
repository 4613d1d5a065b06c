// Package valuation converts asset amounts into the vault's common value
// unit and derives total value, share price, and mint/burn quantities.
package valuation

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/ledger"
	"github.com/bitfsorg/poolvault-go/service"
	"github.com/bitfsorg/poolvault-go/units"
)

// Converter maps asset amounts to common-unit values and back using oracle
// prices and per-asset decimals. Both directions round down.
type Converter struct {
	oracle service.Oracle

	mu      sync.Mutex
	pinning bool
	prices  map[string]*uint256.Int
}

// NewConverter creates a converter backed by oracle.
func NewConverter(oracle service.Oracle) *Converter {
	return &Converter{oracle: oracle, prices: make(map[string]*uint256.Int)}
}

// PinPrices makes every lookup until the returned release func is called
// reuse the first price seen per asset, so one operation values all assets
// against a single consistent price set.
func (c *Converter) PinPrices() (release func()) {
	c.mu.Lock()
	c.pinning = true
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.pinning = false
		c.prices = make(map[string]*uint256.Int)
		c.mu.Unlock()
	}
}

// Price returns the oracle price of asset. A zero or missing price is an error.
func (c *Converter) Price(ctx context.Context, asset string) (*uint256.Int, error) {
	c.mu.Lock()
	if p, ok := c.prices[asset]; ok && c.pinning {
		c.mu.Unlock()
		return p.Clone(), nil
	}
	c.mu.Unlock()

	p, err := c.oracle.PriceOf(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPriceUnavailable, asset, err)
	}
	if p == nil || p.IsZero() {
		return nil, fmt.Errorf("%w: %s has zero price", ErrPriceUnavailable, asset)
	}

	c.mu.Lock()
	if c.pinning {
		c.prices[asset] = p.Clone()
	}
	c.mu.Unlock()
	return p, nil
}

// ValueOf returns amount * price * 10^18 / (10^8 * 10^decimals), floored.
func (c *Converter) ValueOf(ctx context.Context, state *ledger.VaultState, asset string, amount *uint256.Int) (*uint256.Int, error) {
	a, err := state.Asset(asset)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return new(uint256.Int), nil
	}
	price, err := c.Price(ctx, asset)
	if err != nil {
		return nil, err
	}
	num, overflow := new(uint256.Int).MulOverflow(price, units.WAD())
	if overflow {
		return nil, fmt.Errorf("%w: price of %s", units.ErrOverflow, asset)
	}
	return units.MulDiv(amount, num, units.Pow10(units.PriceDecimals+a.Decimals))
}

// AmountFor returns value * 10^8 * 10^decimals / (price * 10^18), floored.
func (c *Converter) AmountFor(ctx context.Context, state *ledger.VaultState, asset string, value *uint256.Int) (*uint256.Int, error) {
	a, err := state.Asset(asset)
	if err != nil {
		return nil, err
	}
	if value.IsZero() {
		return new(uint256.Int), nil
	}
	price, err := c.Price(ctx, asset)
	if err != nil {
		return nil, err
	}
	den, overflow := new(uint256.Int).MulOverflow(price, units.WAD())
	if overflow {
		return nil, fmt.Errorf("%w: price of %s", units.ErrOverflow, asset)
	}
	return units.MulDiv(value, units.Pow10(units.PriceDecimals+a.Decimals), den)
}
