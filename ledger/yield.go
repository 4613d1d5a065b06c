package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/units"
)

// Accrue books any growth of the custody balance above the last observed
// balance as yield, moves the configured fee fraction of it into the
// asset's accrued fee, and adopts custodyBalance as the new observation.
// A flat or lower balance books nothing.
func (s *VaultState) Accrue(asset string, custodyBalance *uint256.Int) (yield, fee *uint256.Int) {
	yield, fee = s.project(asset, custodyBalance)
	if yield.IsZero() {
		return yield, fee
	}
	s.AccruedFee[asset] = new(uint256.Int).Add(s.amount(s.AccruedFee, asset), fee)
	s.LastBalance[asset] = custodyBalance.Clone()
	return yield, fee
}

// HarvestableFee returns the accrued fee plus what Accrue would add for
// custodyBalance, without mutating the state.
func (s *VaultState) HarvestableFee(asset string, custodyBalance *uint256.Int) *uint256.Int {
	_, fee := s.project(asset, custodyBalance)
	return fee.Add(fee, s.amount(s.AccruedFee, asset))
}

// NetBalance is the custody balance that belongs to share holders: the
// custody balance minus accrued and not yet booked fees.
func (s *VaultState) NetBalance(asset string, custodyBalance *uint256.Int) *uint256.Int {
	return units.SubFloor(custodyBalance, s.HarvestableFee(asset, custodyBalance))
}

// Observe records custodyBalance as the last observed balance after an
// explicit supply or withdrawal, so the change is not mistaken for yield.
func (s *VaultState) Observe(asset string, custodyBalance *uint256.Int) {
	s.LastBalance[asset] = custodyBalance.Clone()
}

// Fee returns the accrued, unharvested fee for asset.
func (s *VaultState) Fee(asset string) *uint256.Int {
	return s.amount(s.AccruedFee, asset).Clone()
}

// AddFee credits amount to the asset's accrued fee.
func (s *VaultState) AddFee(asset string, amount *uint256.Int) {
	s.AccruedFee[asset] = new(uint256.Int).Add(s.amount(s.AccruedFee, asset), amount)
}

// TakeFee resets the asset's accrued fee to zero and returns what it held.
func (s *VaultState) TakeFee(asset string) *uint256.Int {
	fee := s.amount(s.AccruedFee, asset).Clone()
	s.AccruedFee[asset] = new(uint256.Int)
	return fee
}

// LastObserved returns the last observed custody balance for asset.
func (s *VaultState) LastObserved(asset string) *uint256.Int {
	return s.amount(s.LastBalance, asset).Clone()
}

// SetFeeRate changes the fee fraction applied to future yield.
func (s *VaultState) SetFeeRate(rate *uint256.Int) error {
	if rate.Gt(units.WAD()) {
		return fmt.Errorf("%w: %s", ErrFeeOutOfBounds, units.FormatValue(rate))
	}
	s.FeeRate = rate.Clone()
	return nil
}

func (s *VaultState) project(asset string, custodyBalance *uint256.Int) (yield, fee *uint256.Int) {
	last := s.amount(s.LastBalance, asset)
	if custodyBalance.Cmp(last) <= 0 {
		return new(uint256.Int), new(uint256.Int)
	}
	yield = new(uint256.Int).Sub(custodyBalance, last)
	// FeeRate <= WAD, so the product never exceeds yield*WAD.
	fee, err := units.MulDiv(yield, s.FeeRate, units.WAD())
	if err != nil {
		fee = new(uint256.Int)
	}
	return yield, fee
}
