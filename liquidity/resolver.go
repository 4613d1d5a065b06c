// Package liquidity decides how a redemption in a given asset is paid: straight
// out of custody, or by converting another held asset through a venue.
package liquidity

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/ledger"
	"github.com/bitfsorg/poolvault-go/service"
	"github.com/bitfsorg/poolvault-go/units"
	"github.com/bitfsorg/poolvault-go/valuation"
)

// Policy controls how much of the fallback source asset is converted.
type Policy uint8

const (
	// CapToNeed converts only what the quote says covers the shortfall.
	CapToNeed Policy = iota
	// SweepAll converts the source asset's entire available balance.
	SweepAll
)

// ParsePolicy parses "capped" or "sweep".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "capped", "":
		return CapToNeed, nil
	case "sweep":
		return SweepAll, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}

func (p Policy) String() string {
	if p == SweepAll {
		return "sweep"
	}
	return "capped"
}

// Result describes how a redemption was paid.
type Result struct {
	Paid         *uint256.Int // amount of the target asset delivered
	Converted    bool         // true when the fallback conversion was used
	Source       string       // fallback source asset, if converted
	SourceAmount *uint256.Int // amount of Source withdrawn and swapped
}

// Resolver pays out a target asset, falling back to a single-hop conversion
// from the first other asset with available balance. It never combines two
// sources to cover one shortfall.
type Resolver struct {
	nav     *valuation.NAV
	custody service.Custody
	venue   service.Venue // nil disables the fallback
	token   service.Token
	self    claim.Address
	policy  Policy
	log     log.Logger
}

// NewResolver creates a resolver. venue may be nil; a nil logger uses log.Root().
func NewResolver(nav *valuation.NAV, custody service.Custody, venue service.Venue, token service.Token, self claim.Address, policy Policy, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.Root()
	}
	return &Resolver{nav: nav, custody: custody, venue: venue, token: token, self: self, policy: policy, log: logger}
}

// Resolve delivers amountNeeded of target to recipient. Custody balances
// reserved for accrued fees are never used. Every custody balance it
// changes is re-observed in state so the change is not booked as yield.
func (r *Resolver) Resolve(ctx context.Context, state *ledger.VaultState, target string, amountNeeded *uint256.Int, recipient claim.Address) (*Result, error) {
	if amountNeeded.IsZero() {
		return &Result{Paid: new(uint256.Int)}, nil
	}
	bal, err := r.nav.CustodyBalance(ctx, state, target)
	if err != nil {
		return nil, err
	}
	if state.NetBalance(target, bal).Cmp(amountNeeded) >= 0 {
		paid, err := r.custody.Withdraw(ctx, target, amountNeeded, recipient)
		if err != nil {
			return nil, fmt.Errorf("%w: withdraw %s: %w", service.ErrExternal, target, err)
		}
		state.Observe(target, units.SubFloor(bal, paid))
		return &Result{Paid: paid}, nil
	}
	if r.venue == nil {
		return nil, fmt.Errorf("%w: %s short and no conversion venue", ErrInsufficientLiquidity, target)
	}

	for _, a := range state.Assets {
		if a.ID == target {
			continue
		}
		srcBal, err := r.nav.CustodyBalance(ctx, state, a.ID)
		if err != nil {
			return nil, err
		}
		avail := state.NetBalance(a.ID, srcBal)
		if avail.IsZero() {
			continue
		}
		return r.convert(ctx, state, a.ID, srcBal, avail, target, amountNeeded, recipient)
	}
	return nil, fmt.Errorf("%w: no asset can cover %s %s", ErrInsufficientLiquidity, amountNeeded.Dec(), target)
}

func (r *Resolver) convert(ctx context.Context, state *ledger.VaultState, source string, srcBal, avail *uint256.Int, target string, needed *uint256.Int, recipient claim.Address) (*Result, error) {
	amountIn, err := r.sourceAmount(ctx, state, source, avail, target, needed)
	if err != nil {
		return nil, err
	}
	out, err := r.venue.Quote(ctx, source, target, amountIn)
	if err != nil {
		return nil, fmt.Errorf("%w: quote %s->%s: %w", ErrInsufficientLiquidity, source, target, err)
	}
	if out.IsZero() {
		return nil, fmt.Errorf("%w: quote %s->%s is zero", ErrInsufficientLiquidity, source, target)
	}

	withdrawn, err := r.custody.Withdraw(ctx, source, amountIn, r.self)
	if err != nil {
		return nil, fmt.Errorf("%w: withdraw %s: %w", service.ErrExternal, source, err)
	}
	state.Observe(source, units.SubFloor(srcBal, withdrawn))

	got, err := r.venue.Swap(ctx, source, target, withdrawn)
	if err != nil {
		r.resupply(ctx, state, source, withdrawn)
		return nil, fmt.Errorf("%w: swap %s->%s: %w", ErrInsufficientLiquidity, source, target, err)
	}
	if err := r.token.Push(ctx, target, recipient, got); err != nil {
		r.resupply(ctx, state, target, got)
		return nil, fmt.Errorf("%w: pay %s: %w", service.ErrExternal, target, err)
	}
	r.log.Debug("Converted redemption liquidity", "source", source, "in", withdrawn, "target", target, "out", got, "needed", needed)
	return &Result{Paid: got, Converted: true, Source: source, SourceAmount: withdrawn}, nil
}

// sourceAmount sizes the source leg. SweepAll takes everything available;
// CapToNeed prices the shortfall and refines once against the venue quote.
func (r *Resolver) sourceAmount(ctx context.Context, state *ledger.VaultState, source string, avail *uint256.Int, target string, needed *uint256.Int) (*uint256.Int, error) {
	if r.policy == SweepAll {
		return avail.Clone(), nil
	}
	conv := r.nav.Converter()
	value, err := conv.ValueOf(ctx, state, target, needed)
	if err != nil {
		return nil, err
	}
	in, err := conv.AmountFor(ctx, state, source, value)
	if err != nil {
		return nil, err
	}
	in = units.Min(in.AddUint64(in, 1), avail)

	quoted, err := r.venue.Quote(ctx, source, target, in)
	if err != nil || quoted.IsZero() || quoted.Cmp(needed) >= 0 || in.Cmp(avail) >= 0 {
		return in, nil
	}
	scaled, err := units.MulDivUp(in, needed, quoted)
	if err != nil {
		return avail.Clone(), nil
	}
	return units.Min(scaled, avail), nil
}

// resupply returns tokens held by the vault after a failed conversion step
// to custody. A failure here is logged; the caller already reports the
// original error.
func (r *Resolver) resupply(ctx context.Context, state *ledger.VaultState, asset string, amount *uint256.Int) {
	if err := r.custody.Supply(ctx, asset, amount); err != nil {
		r.log.Error("Failed to return conversion funds to custody", "asset", asset, "amount", amount, "err", err)
		return
	}
	bal, err := r.nav.CustodyBalance(ctx, state, asset)
	if err != nil {
		r.log.Warn("Custody balance unavailable after resupply", "asset", asset, "err", err)
		return
	}
	state.Observe(asset, bal)
	r.log.Warn("Returned conversion funds to custody", "asset", asset, "amount", amount)
}
