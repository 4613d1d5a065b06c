package revshare

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
)

// ValidateDraw checks that winners are count distinct participants.
func ValidateDraw(winners, members []claim.Address, count int) error {
	if len(winners) != count {
		return fmt.Errorf("%w: %d winners, want %d", ErrInvalidDraw, len(winners), count)
	}
	isMember := make(map[claim.Address]bool, len(members))
	for _, m := range members {
		isMember[m] = true
	}
	seen := make(map[claim.Address]bool, len(winners))
	for i, w := range winners {
		if !isMember[w] {
			return fmt.Errorf("%w: winner %d (%s) is not a participant", ErrInvalidDraw, i, w)
		}
		if seen[w] {
			return fmt.Errorf("%w: winner %s drawn twice", ErrInvalidDraw, w)
		}
		seen[w] = true
	}
	return nil
}

// ValidateApportion checks that payouts plus remainder account for exactly totalValue.
func ValidateApportion(payouts []Payout, remainder, totalValue *uint256.Int) error {
	sum := remainder.Clone()
	for _, p := range payouts {
		if _, overflow := sum.AddOverflow(sum, p.Value); overflow {
			return fmt.Errorf("%w: payout sum overflows", ErrInvalidDraw)
		}
	}
	if sum.Cmp(totalValue) != 0 {
		return fmt.Errorf("%w: payouts %s != total %s", ErrInvalidDraw, sum.Dec(), totalValue.Dec())
	}
	return nil
}
