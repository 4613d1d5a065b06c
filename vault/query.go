package vault

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/ledger"
)

// AssetStatus is a read-only view of one supported asset.
type AssetStatus struct {
	ledger.SupportedAsset
	Custody      *uint256.Int // current custody balance
	LastObserved *uint256.Int
	AccruedFee   *uint256.Int // booked, unharvested fee
	Harvestable  *uint256.Int // booked plus pending fee
	Deposited    *uint256.Int // cumulative deposited value
}

// TotalValue returns the vault's net value in common units.
func (v *Vault) TotalValue(ctx context.Context) (*uint256.Int, error) {
	var total *uint256.Int
	err := v.view(ctx, func(ctx context.Context) error {
		var err error
		total, err = v.nav.TotalValue(ctx, v.state)
		return err
	})
	return total, err
}

// SharePrice returns the value of one whole share in common units.
func (v *Vault) SharePrice(ctx context.Context) (*uint256.Int, error) {
	var price *uint256.Int
	err := v.view(ctx, func(ctx context.Context) error {
		var err error
		price, err = v.nav.SharePrice(ctx, v.state, v.claims.TotalSupply())
		return err
	})
	return price, err
}

// HarvestableFee returns the fee HarvestFee would pay for asset now.
func (v *Vault) HarvestableFee(ctx context.Context, asset string) (*uint256.Int, error) {
	var fee *uint256.Int
	err := v.view(ctx, func(ctx context.Context) error {
		if err := v.checkAsset(asset); err != nil {
			return err
		}
		bal, err := v.nav.CustodyBalance(ctx, v.state, asset)
		if err != nil {
			return err
		}
		fee = v.state.HarvestableFee(asset, bal)
		return nil
	})
	return fee, err
}

// Assets returns every supported asset in registry order with its balances.
func (v *Vault) Assets(ctx context.Context) ([]AssetStatus, error) {
	var out []AssetStatus
	err := v.view(ctx, func(ctx context.Context) error {
		out = make([]AssetStatus, 0, len(v.state.Assets))
		for _, a := range v.state.Assets {
			bal, err := v.nav.CustodyBalance(ctx, v.state, a.ID)
			if err != nil {
				return err
			}
			out = append(out, AssetStatus{
				SupportedAsset: a,
				Custody:        bal,
				LastObserved:   v.state.LastObserved(a.ID),
				AccruedFee:     v.state.Fee(a.ID),
				Harvestable:    v.state.HarvestableFee(a.ID, bal),
				Deposited:      v.state.DepositedValue(a.ID),
			})
		}
		return nil
	})
	return out, err
}

// BalanceOf returns the shares held by holder.
func (v *Vault) BalanceOf(ctx context.Context, holder claim.Address) (*uint256.Int, error) {
	var bal *uint256.Int
	err := v.view(ctx, func(context.Context) error {
		bal = v.claims.BalanceOf(holder)
		return nil
	})
	return bal, err
}

// Allowance returns the shares spender may still move for owner.
func (v *Vault) Allowance(ctx context.Context, owner, spender claim.Address) (*uint256.Int, error) {
	var amt *uint256.Int
	err := v.view(ctx, func(context.Context) error {
		amt = v.claims.Allowance(owner, spender)
		return nil
	})
	return amt, err
}

// TotalSupply returns the number of shares outstanding.
func (v *Vault) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	var supply *uint256.Int
	err := v.view(ctx, func(context.Context) error {
		supply = v.claims.TotalSupply()
		return nil
	})
	return supply, err
}

// Participants returns the holders eligible for distributions.
func (v *Vault) Participants(ctx context.Context) ([]claim.Address, error) {
	var members []claim.Address
	err := v.view(ctx, func(context.Context) error {
		members = v.participants.Members()
		return nil
	})
	return members, err
}

// FeeRate returns the current fee rate as a WAD fraction.
func (v *Vault) FeeRate(ctx context.Context) (*uint256.Int, error) {
	var rate *uint256.Int
	err := v.view(ctx, func(context.Context) error {
		rate = v.state.FeeRate.Clone()
		return nil
	})
	return rate, err
}

// Paused reports whether deposits, redemptions and transfers are suspended.
func (v *Vault) Paused(ctx context.Context) (bool, error) {
	var paused bool
	err := v.view(ctx, func(context.Context) error {
		paused = v.state.Paused
		return nil
	})
	return paused, err
}
