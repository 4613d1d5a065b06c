// Package ledger holds the vault's bookkeeping state: the ordered set of
// supported assets, the fee rate, deposit totals and per-asset yield tracking.
package ledger

import (
	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/units"
)

// SupportedAsset is an asset the vault accepts and pays out.
type SupportedAsset struct {
	ID       string // asset identifier, e.g. token address or ticker
	Receipt  string // custody-protocol handle (interest-bearing receipt token)
	Decimals uint8  // fractional digits of one whole unit
}

// VaultState is the vault's singleton bookkeeping record. It is passed by
// pointer to every component and is never shared outside one vault instance.
type VaultState struct {
	Assets         []SupportedAsset        // insertion order = iteration order
	FeeRate        *uint256.Int            // WAD fraction of new yield taken as fee
	TotalDeposited *uint256.Int            // cumulative deposited value, common units
	Deposited      map[string]*uint256.Int // cumulative deposited value per asset
	LastBalance    map[string]*uint256.Int // last observed custody balance per asset
	AccruedFee     map[string]*uint256.Int // accrued, unharvested fee per asset
	Paused         bool
}

// NewVaultState creates an empty state with the given fee rate.
func NewVaultState(feeRate *uint256.Int) *VaultState {
	return &VaultState{
		Assets:         make([]SupportedAsset, 0),
		FeeRate:        units.OrZero(feeRate).Clone(),
		TotalDeposited: new(uint256.Int),
		Deposited:      make(map[string]*uint256.Int),
		LastBalance:    make(map[string]*uint256.Int),
		AccruedFee:     make(map[string]*uint256.Int),
	}
}

// Normalize fills nil fields left by decoding a persisted state.
func (s *VaultState) Normalize() {
	if s.Assets == nil {
		s.Assets = make([]SupportedAsset, 0)
	}
	s.FeeRate = units.OrZero(s.FeeRate)
	s.TotalDeposited = units.OrZero(s.TotalDeposited)
	if s.Deposited == nil {
		s.Deposited = make(map[string]*uint256.Int)
	}
	if s.LastBalance == nil {
		s.LastBalance = make(map[string]*uint256.Int)
	}
	if s.AccruedFee == nil {
		s.AccruedFee = make(map[string]*uint256.Int)
	}
}

// Clone returns a deep copy used to roll back a failed operation.
func (s *VaultState) Clone() *VaultState {
	cp := &VaultState{
		Assets:         append(make([]SupportedAsset, 0, len(s.Assets)), s.Assets...),
		FeeRate:        units.OrZero(s.FeeRate).Clone(),
		TotalDeposited: units.OrZero(s.TotalDeposited).Clone(),
		Deposited:      cloneAmounts(s.Deposited),
		LastBalance:    cloneAmounts(s.LastBalance),
		AccruedFee:     cloneAmounts(s.AccruedFee),
		Paused:         s.Paused,
	}
	return cp
}

// RecordDeposit adds value to the cumulative totals for asset.
func (s *VaultState) RecordDeposit(asset string, value *uint256.Int) error {
	total, err := units.Add(s.TotalDeposited, value)
	if err != nil {
		return err
	}
	perAsset, err := units.Add(s.amount(s.Deposited, asset), value)
	if err != nil {
		return err
	}
	s.TotalDeposited = total
	s.Deposited[asset] = perAsset
	return nil
}

// DepositedValue returns the cumulative deposited value for asset.
func (s *VaultState) DepositedValue(asset string) *uint256.Int {
	return s.amount(s.Deposited, asset).Clone()
}

func (s *VaultState) amount(m map[string]*uint256.Int, asset string) *uint256.Int {
	if v, ok := m[asset]; ok && v != nil {
		return v
	}
	return new(uint256.Int)
}

func cloneAmounts(m map[string]*uint256.Int) map[string]*uint256.Int {
	out := make(map[string]*uint256.Int, len(m))
	for k, v := range m {
		out[k] = units.OrZero(v).Clone()
	}
	return out
}
