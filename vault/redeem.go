package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
)

// Redemption reports what a redemption paid.
type Redemption struct {
	Shares    *uint256.Int // shares burned
	Value     *uint256.Int // common-unit value owed
	Owed      *uint256.Int // target-asset amount owed
	Paid      *uint256.Int // target-asset amount delivered
	Converted bool         // paid through the conversion fallback
	Source    string       // asset converted from, when Converted
}

// Redeem burns shares held by holder and pays their value in asset. When
// the vault lacks enough asset it converts another supported asset through
// the venue. Either the holder is paid and the shares burned, or nothing
// changes.
func (v *Vault) Redeem(ctx context.Context, holder claim.Address, shares *uint256.Int, asset string) (*Redemption, error) {
	var out *Redemption
	err := v.mutate(ctx, mutation{
		name: "redeem",
		check: func() error {
			if err := checkAmount(shares); err != nil {
				return err
			}
			if err := v.checkActive(); err != nil {
				return err
			}
			if err := v.checkAsset(asset); err != nil {
				return err
			}
			if bal := v.claims.BalanceOf(holder); bal.Lt(shares) {
				return fmt.Errorf("%w: %s holds %s shares, redeeming %s",
					claim.ErrInsufficientBalance, holder, bal.Dec(), shares.Dec())
			}
			return nil
		},
		accrue: true,
		fn: func(ctx context.Context) error {
			value, err := v.nav.ValueForRedemption(ctx, v.state, v.claims.TotalSupply(), shares)
			if err != nil {
				return err
			}
			owed, err := v.conv.AmountFor(ctx, v.state, asset, value)
			if err != nil {
				return err
			}
			if owed.IsZero() {
				return fmt.Errorf("%w: %s shares are worth no %s", ErrZeroAmount, shares.Dec(), asset)
			}
			res, err := v.resolver.Resolve(ctx, v.state, asset, owed, holder)
			if err != nil {
				return err
			}
			if err := v.claims.Burn(holder, shares); err != nil {
				return err
			}
			out = &Redemption{
				Shares:    shares.Clone(),
				Value:     value,
				Owed:      owed,
				Paid:      res.Paid,
				Converted: res.Converted,
				Source:    res.Source,
			}
			v.log.Info("Redeemed", "holder", holder, "shares", shares, "asset", asset, "owed", owed,
				"paid", res.Paid, "converted", res.Converted, "source", res.Source)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PreviewRedeem returns the amount of asset owed for shares at current balances.
func (v *Vault) PreviewRedeem(ctx context.Context, shares *uint256.Int, asset string) (*uint256.Int, error) {
	var owed *uint256.Int
	err := v.view(ctx, func(ctx context.Context) error {
		if err := checkAmount(shares); err != nil {
			return err
		}
		if err := v.checkAsset(asset); err != nil {
			return err
		}
		value, err := v.nav.ValueForRedemption(ctx, v.state, v.claims.TotalSupply(), shares)
		if err != nil {
			return err
		}
		owed, err = v.conv.AmountFor(ctx, v.state, asset, value)
		return err
	})
	return owed, err
}
