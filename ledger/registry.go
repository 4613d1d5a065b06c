package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/units"
)

// AddAsset registers a new supported asset at the end of the iteration order.
func (s *VaultState) AddAsset(a SupportedAsset) error {
	if a.ID == "" || a.Receipt == "" {
		return fmt.Errorf("%w: id and receipt are required", ErrInvalidAsset)
	}
	if a.Decimals > units.MaxDecimals {
		return fmt.Errorf("%w: %d decimals exceeds %d", ErrInvalidAsset, a.Decimals, units.MaxDecimals)
	}
	for _, existing := range s.Assets {
		if existing.ID == a.ID {
			return fmt.Errorf("%w: %s", ErrAssetExists, a.ID)
		}
		if existing.Receipt == a.Receipt {
			return fmt.Errorf("%w: %s already backs %s", ErrReceiptInUse, a.Receipt, existing.ID)
		}
	}
	s.Assets = append(s.Assets, a)
	s.LastBalance[a.ID] = new(uint256.Int)
	s.AccruedFee[a.ID] = new(uint256.Int)
	return nil
}

// RemoveAsset unregisters an asset. Only an asset with no custody balance and
// no unharvested fee can be removed.
func (s *VaultState) RemoveAsset(id string, custodyBalance *uint256.Int) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	if !custodyBalance.IsZero() {
		return fmt.Errorf("%w: %s holds %s in custody", ErrAssetHasBalance, id, custodyBalance.Dec())
	}
	if fee := s.amount(s.AccruedFee, id); !fee.IsZero() {
		return fmt.Errorf("%w: %s has %s unharvested fee", ErrAssetHasBalance, id, fee.Dec())
	}
	s.Assets = append(s.Assets[:idx], s.Assets[idx+1:]...)
	delete(s.LastBalance, id)
	delete(s.AccruedFee, id)
	return nil
}

// Asset returns the supported asset with the given id.
func (s *VaultState) Asset(id string) (SupportedAsset, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return SupportedAsset{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, id)
	}
	return s.Assets[idx], nil
}

// IsSupported reports whether id is a registered asset.
func (s *VaultState) IsSupported(id string) bool {
	return s.indexOf(id) >= 0
}

// AssetIDs returns the supported asset ids in iteration order.
func (s *VaultState) AssetIDs() []string {
	ids := make([]string, len(s.Assets))
	for i, a := range s.Assets {
		ids[i] = a.ID
	}
	return ids
}

func (s *VaultState) indexOf(id string) int {
	for i := range s.Assets {
		if s.Assets[i].ID == id {
			return i
		}
	}
	return -1
}
