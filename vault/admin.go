package vault

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/ledger"
	"github.com/bitfsorg/poolvault-go/service"
	"github.com/bitfsorg/poolvault-go/units"
)

// AddAsset registers a new supported asset. Any balance already held at
// custody under its receipt is adopted as holder value, not yield.
func (v *Vault) AddAsset(ctx context.Context, asset ledger.SupportedAsset) error {
	return v.mutate(ctx, mutation{
		name: "addasset",
		fn: func(ctx context.Context) error {
			if err := v.state.AddAsset(asset); err != nil {
				return err
			}
			if err := v.observe(ctx, asset.ID); err != nil {
				return err
			}
			v.log.Info("Added asset", "asset", asset.ID, "receipt", asset.Receipt, "decimals", asset.Decimals,
				"balance", v.state.LastObserved(asset.ID))
			return nil
		},
	})
}

// RemoveAsset unregisters an asset whose custody balance and accrued fee are zero.
func (v *Vault) RemoveAsset(ctx context.Context, asset string) error {
	return v.mutate(ctx, mutation{
		name:   "removeasset",
		check:  func() error { return v.checkAsset(asset) },
		accrue: true,
		fn: func(ctx context.Context) error {
			bal, err := v.nav.CustodyBalance(ctx, v.state, asset)
			if err != nil {
				return err
			}
			if err := v.state.RemoveAsset(asset, bal); err != nil {
				return err
			}
			v.log.Info("Removed asset", "asset", asset)
			return nil
		},
	})
}

// SetFeeRate changes the fraction of future yield taken as fee. Yield earned
// so far is booked at the previous rate first.
func (v *Vault) SetFeeRate(ctx context.Context, rate *uint256.Int) error {
	return v.mutate(ctx, mutation{
		name: "setfeerate",
		check: func() error {
			if rate == nil || rate.Gt(units.WAD()) {
				return fmt.Errorf("%w: %s", ledger.ErrFeeOutOfBounds, units.FormatValue(units.OrZero(rate)))
			}
			return nil
		},
		accrue: true,
		fn: func(context.Context) error {
			old := v.state.FeeRate.Clone()
			if err := v.state.SetFeeRate(rate); err != nil {
				return err
			}
			v.log.Info("Changed fee rate", "old", units.FormatValue(old), "new", units.FormatValue(rate))
			return nil
		},
	})
}

// HarvestFee withdraws the accrued fee of asset to recipient and returns
// the amount paid.
func (v *Vault) HarvestFee(ctx context.Context, asset string, recipient claim.Address) (*uint256.Int, error) {
	var paid *uint256.Int
	err := v.mutate(ctx, mutation{
		name:   "harvestfee",
		check:  func() error { return v.checkAsset(asset) },
		accrue: true,
		fn: func(ctx context.Context) error {
			fee := v.state.TakeFee(asset)
			if fee.IsZero() {
				paid = fee
				return nil
			}
			got, err := v.custody.Withdraw(ctx, asset, fee, recipient)
			if err != nil {
				return fmt.Errorf("%w: withdraw fee %s: %w", service.ErrExternal, asset, err)
			}
			if got.Lt(fee) {
				v.state.AddFee(asset, new(uint256.Int).Sub(fee, got))
			}
			if err := v.observe(ctx, asset); err != nil {
				return err
			}
			paid = got
			v.log.Info("Harvested fee", "asset", asset, "amount", got, "to", recipient)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// Accrue books pending yield and fee for one asset and returns them.
func (v *Vault) Accrue(ctx context.Context, asset string) (yield, fee *uint256.Int, err error) {
	err = v.mutate(ctx, mutation{
		name:  "accrue",
		check: func() error { return v.checkAsset(asset) },
		fn: func(ctx context.Context) error {
			var err error
			yield, fee, err = v.accrueAsset(ctx, asset)
			return err
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return yield, fee, nil
}

// Pause suspends deposits, redemptions and share transfers.
func (v *Vault) Pause(ctx context.Context) error {
	return v.setPaused(ctx, true)
}

// Unpause resumes deposits, redemptions and share transfers.
func (v *Vault) Unpause(ctx context.Context) error {
	return v.setPaused(ctx, false)
}

func (v *Vault) setPaused(ctx context.Context, paused bool) error {
	return v.mutate(ctx, mutation{
		name: "pause",
		fn: func(context.Context) error {
			if v.state.Paused != paused {
				v.state.Paused = paused
				v.log.Info("Vault pause state changed", "paused", paused)
			}
			return nil
		},
	})
}
