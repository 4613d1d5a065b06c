package vault

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
)

// Transfer moves shares between holders.
func (v *Vault) Transfer(ctx context.Context, from, to claim.Address, shares *uint256.Int) error {
	return v.mutate(ctx, mutation{
		name: "transfer",
		check: func() error {
			if err := checkAmount(shares); err != nil {
				return err
			}
			return v.checkActive()
		},
		fn: func(context.Context) error {
			if err := v.claims.Transfer(from, to, shares); err != nil {
				return err
			}
			v.log.Info("Transferred shares", "from", from, "to", to, "shares", shares)
			return nil
		},
	})
}

// Approve sets the shares spender may move on behalf of owner.
func (v *Vault) Approve(ctx context.Context, owner, spender claim.Address, shares *uint256.Int) error {
	return v.mutate(ctx, mutation{
		name: "approve",
		fn: func(context.Context) error {
			v.claims.Approve(owner, spender, shares)
			v.log.Debug("Approved share spender", "owner", owner, "spender", spender, "shares", shares)
			return nil
		},
	})
}

// TransferFrom moves shares from owner to to using spender's allowance.
func (v *Vault) TransferFrom(ctx context.Context, spender, owner, to claim.Address, shares *uint256.Int) error {
	return v.mutate(ctx, mutation{
		name: "transferfrom",
		check: func() error {
			if err := checkAmount(shares); err != nil {
				return err
			}
			return v.checkActive()
		},
		fn: func(context.Context) error {
			if err := v.claims.TransferFrom(spender, owner, to, shares); err != nil {
				return err
			}
			v.log.Info("Transferred shares", "from", owner, "to", to, "spender", spender, "shares", shares)
			return nil
		},
	})
}
