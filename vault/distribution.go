package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/liquidity"
	"github.com/bitfsorg/poolvault-go/revshare"
	"github.com/bitfsorg/poolvault-go/service"
	"github.com/bitfsorg/poolvault-go/units"
)

var _ service.Consumer = (*Vault)(nil)

// RequestDistribution asks the randomness service for a value with which
// to pick winnerCount participants, who will share totalValue (common
// units) paid in target. The draw happens in OnRandomnessFulfilled.
func (v *Vault) RequestDistribution(ctx context.Context, totalValue *uint256.Int, winnerCount uint32, target string, mode revshare.PaymentMode) (*revshare.Request, error) {
	var req *revshare.Request
	err := v.mutate(ctx, mutation{
		name:  "requestdistribution",
		check: func() error { return v.checkAsset(target) },
		fn: func(ctx context.Context) error {
			var err error
			req, err = v.engine.Request(ctx, revshare.Params{
				TotalValue:  totalValue,
				WinnerCount: winnerCount,
				TargetAsset: target,
				PaymentMode: mode,
			})
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// OnRandomnessFulfilled receives the random value for a distribution
// request, draws the winners and pays them. A request is paid at most once.
// If a withdrawal fails after earlier winners were paid, the payouts made so
// far are committed, the request is closed and the error wraps
// revshare.ErrPartialPayout.
func (v *Vault) OnRandomnessFulfilled(ctx context.Context, id service.RequestID, random *uint256.Int) error {
	var partial error
	err := v.mutate(ctx, mutation{
		name:   "fulfilldistribution",
		accrue: true,
		fn: func(ctx context.Context) error {
			_, err := v.engine.Fulfill(ctx, id, random, v.payWinners)
			if errors.Is(err, revshare.ErrPartialPayout) {
				// Transfers already left custody; keep the state that records them.
				partial = err
				return nil
			}
			return err
		},
	})
	if err != nil {
		return err
	}
	return partial
}

// payWinners converts each payout's value into the target asset and
// withdraws it from custody to the winner. The total, including a remainder
// booked as fee, must be covered by the target's net custody balance before
// the first withdrawal.
func (v *Vault) payWinners(ctx context.Context, req *revshare.Request) error {
	target := req.TargetAsset
	if err := v.checkAsset(target); err != nil {
		return err
	}

	total := new(uint256.Int)
	for i := range req.Payouts {
		amt, err := v.conv.AmountFor(ctx, v.state, target, req.Payouts[i].Value)
		if err != nil {
			return err
		}
		req.Payouts[i].Amount = amt
		if total, err = units.Add(total, amt); err != nil {
			return err
		}
	}
	feeAmt := new(uint256.Int)
	if req.Policy == revshare.RemainderToFee && req.Remainder != nil && !req.Remainder.IsZero() {
		var err error
		if feeAmt, err = v.conv.AmountFor(ctx, v.state, target, req.Remainder); err != nil {
			return err
		}
	}
	need, err := units.Add(total, feeAmt)
	if err != nil {
		return err
	}

	bal, err := v.nav.CustodyBalance(ctx, v.state, target)
	if err != nil {
		return err
	}
	if avail := v.state.NetBalance(target, bal); avail.Lt(need) {
		return fmt.Errorf("%w: distribution %s needs %s %s, vault holds %s",
			liquidity.ErrInsufficientLiquidity, req.ID, need.Dec(), target, avail.Dec())
	}

	for i, p := range req.Payouts {
		if p.Amount.IsZero() {
			continue
		}
		got, err := v.custody.Withdraw(ctx, target, p.Amount, p.Address)
		if err != nil {
			return fmt.Errorf("%w: pay winner %d of %s: %w", service.ErrExternal, i, req.ID, err)
		}
		req.Payouts[i].Amount = got
		req.Payouts[i].Paid = true
		bal = units.SubFloor(bal, got)
		v.state.Observe(target, bal)
	}
	if !feeAmt.IsZero() {
		v.state.AddFee(target, feeAmt)
	}
	v.log.Info("Paid distribution", "id", req.ID, "asset", target, "winners", len(req.Payouts),
		"total", total, "remainder", req.Remainder, "policy", req.Policy)
	return nil
}

// DistributionStatus returns the current record of a distribution request.
func (v *Vault) DistributionStatus(ctx context.Context, id service.RequestID) (*revshare.Request, error) {
	var req *revshare.Request
	err := v.view(ctx, func(context.Context) error {
		var err error
		req, err = v.engine.Status(id)
		return err
	})
	return req, err
}

// PendingDistributions returns requests still waiting for randomness.
func (v *Vault) PendingDistributions(ctx context.Context) ([]*revshare.Request, error) {
	var reqs []*revshare.Request
	err := v.view(ctx, func(context.Context) error {
		reqs = v.engine.Pending()
		return nil
	})
	return reqs, err
}
