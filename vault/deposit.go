package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/service"
)

// Deposit moves amount of asset from depositor into custody and mints
// claim shares priced at the vault's current net value. It returns the
// shares minted.
func (v *Vault) Deposit(ctx context.Context, depositor claim.Address, asset string, amount *uint256.Int) (*uint256.Int, error) {
	var minted *uint256.Int
	err := v.mutate(ctx, mutation{
		name: "deposit",
		check: func() error {
			if err := checkAmount(amount); err != nil {
				return err
			}
			if err := v.checkActive(); err != nil {
				return err
			}
			return v.checkAsset(asset)
		},
		accrue: true,
		fn: func(ctx context.Context) error {
			shares, value, err := v.nav.SharesForDeposit(ctx, v.state, v.claims.TotalSupply(), asset, amount)
			if err != nil {
				return err
			}
			if err := v.token.Pull(ctx, asset, depositor, amount); err != nil {
				return fmt.Errorf("%w: pull %s from %s: %w", service.ErrExternal, asset, depositor, err)
			}
			if err := v.custody.Supply(ctx, asset, amount); err != nil {
				if perr := v.token.Push(ctx, asset, depositor, amount); perr != nil {
					v.log.Error("Failed to refund deposit", "holder", depositor, "asset", asset, "amount", amount, "err", perr)
				}
				return fmt.Errorf("%w: supply %s: %w", service.ErrExternal, asset, err)
			}
			if err := v.observe(ctx, asset); err != nil {
				return err
			}
			if err := v.state.RecordDeposit(asset, value); err != nil {
				return err
			}
			if err := v.claims.Mint(depositor, shares); err != nil {
				return err
			}
			minted = shares
			v.log.Info("Deposited", "holder", depositor, "asset", asset, "amount", amount, "value", value, "shares", shares)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// PreviewDeposit returns the shares Deposit would mint for amount of asset
// at current balances.
func (v *Vault) PreviewDeposit(ctx context.Context, asset string, amount *uint256.Int) (*uint256.Int, error) {
	var shares *uint256.Int
	err := v.view(ctx, func(ctx context.Context) error {
		if err := checkAmount(amount); err != nil {
			return err
		}
		if err := v.checkAsset(asset); err != nil {
			return err
		}
		var err error
		shares, _, err = v.nav.SharesForDeposit(ctx, v.state, v.claims.TotalSupply(), asset, amount)
		return err
	})
	return shares, err
}
