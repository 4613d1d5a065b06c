package valuation

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/ledger"
	"github.com/bitfsorg/poolvault-go/service"
	"github.com/bitfsorg/poolvault-go/units"
)

// NAV computes total vault value and share conversions. All divisions round
// down: fewer shares minted, less value paid out.
type NAV struct {
	conv    *Converter
	custody service.Custody
	self    claim.Address
}

// NewNAV creates a NAV calculator for the vault holding receipts at self.
func NewNAV(conv *Converter, custody service.Custody, self claim.Address) *NAV {
	return &NAV{conv: conv, custody: custody, self: self}
}

// Converter returns the value converter used by n.
func (n *NAV) Converter() *Converter { return n.conv }

// CustodyBalance returns the vault's custody balance of asset.
func (n *NAV) CustodyBalance(ctx context.Context, state *ledger.VaultState, asset string) (*uint256.Int, error) {
	a, err := state.Asset(asset)
	if err != nil {
		return nil, err
	}
	bal, err := n.custody.BalanceOf(ctx, a.Receipt, n.self)
	if err != nil {
		return nil, fmt.Errorf("%w: custody balance of %s: %w", service.ErrExternal, asset, err)
	}
	return bal, nil
}

// TotalValue sums the value of every supported asset's custody balance,
// net of accrued fees, in registry order.
func (n *NAV) TotalValue(ctx context.Context, state *ledger.VaultState) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, a := range state.Assets {
		bal, err := n.CustodyBalance(ctx, state, a.ID)
		if err != nil {
			return nil, err
		}
		v, err := n.conv.ValueOf(ctx, state, a.ID, state.NetBalance(a.ID, bal))
		if err != nil {
			return nil, err
		}
		if total, err = units.Add(total, v); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// SharePrice returns the value of one whole share (10^18 units) in common
// units, or zero when no shares exist.
func (n *NAV) SharePrice(ctx context.Context, state *ledger.VaultState, supply *uint256.Int) (*uint256.Int, error) {
	if supply.IsZero() {
		return new(uint256.Int), nil
	}
	total, err := n.TotalValue(ctx, state)
	if err != nil {
		return nil, err
	}
	return units.MulDiv(total, units.WAD(), supply)
}

// SharesForDeposit returns the shares minted for depositing amount of asset.
// The first deposit into an empty vault mints one share per unit of value.
func (n *NAV) SharesForDeposit(ctx context.Context, state *ledger.VaultState, supply *uint256.Int, asset string, amount *uint256.Int) (shares, value *uint256.Int, err error) {
	value, err = n.conv.ValueOf(ctx, state, asset, amount)
	if err != nil {
		return nil, nil, err
	}
	total, err := n.TotalValue(ctx, state)
	if err != nil {
		return nil, nil, err
	}
	if total.IsZero() || supply.IsZero() {
		shares = value.Clone()
	} else if shares, err = units.MulDiv(value, supply, total); err != nil {
		return nil, nil, err
	}
	if shares.IsZero() {
		return nil, nil, fmt.Errorf("%w: %s of %s", ErrZeroShares, amount.Dec(), asset)
	}
	return shares, value, nil
}

// ValueForRedemption returns the common-unit value owed for shares.
func (n *NAV) ValueForRedemption(ctx context.Context, state *ledger.VaultState, supply, shares *uint256.Int) (*uint256.Int, error) {
	if supply.IsZero() || shares.Gt(supply) {
		return nil, fmt.Errorf("%w: %s of %s outstanding", ErrInsufficientShares, shares.Dec(), supply.Dec())
	}
	total, err := n.TotalValue(ctx, state)
	if err != nil {
		return nil, err
	}
	return units.MulDiv(shares, total, supply)
}
