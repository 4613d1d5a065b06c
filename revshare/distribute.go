package revshare

import (
	"fmt"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/bitfsorg/poolvault-go/claim"
)

// SelectWinners draws count distinct winners from members with a partial
// Fisher–Yates shuffle driven by one random seed. Each step picks
// seed mod remaining, swaps the last remaining member into the picked slot,
// and replaces the seed with keccak256 of its 32-byte big-endian form.
// members is not modified.
func SelectWinners(members []claim.Address, count int, seed *uint256.Int) ([]claim.Address, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: winner count %d", ErrInvalidDistribution, count)
	}
	if count > len(members) {
		return nil, fmt.Errorf("%w: %d winners from %d participants", ErrNotEnoughParticipants, count, len(members))
	}
	work := append([]claim.Address(nil), members...)
	remaining := len(work)
	r := seed.Clone()
	winners := make([]claim.Address, 0, count)
	for i := 0; i < count; i++ {
		idx := new(uint256.Int).Mod(r, uint256.NewInt(uint64(remaining))).Uint64()
		winners = append(winners, work[idx])
		work[idx] = work[remaining-1]
		remaining--
		r = NextSeed(r)
	}
	return winners, nil
}

// NextSeed derives the next draw seed as keccak256(seed).
func NextSeed(seed *uint256.Int) *uint256.Int {
	b := seed.Bytes32()
	h := sha3.NewLegacyKeccak256()
	h.Write(b[:])
	return new(uint256.Int).SetBytes(h.Sum(nil))
}

// Apportion splits totalValue equally among winners using integer division.
// Under RemainderLastWinner the last winner also receives the remainder;
// otherwise the remainder is returned for the caller to retain or book.
func Apportion(totalValue *uint256.Int, winners []claim.Address, policy RemainderPolicy) ([]Payout, *uint256.Int, error) {
	if totalValue.IsZero() {
		return nil, nil, fmt.Errorf("%w: zero total value", ErrInvalidDistribution)
	}
	if len(winners) == 0 {
		return nil, nil, fmt.Errorf("%w: no winners", ErrInvalidDistribution)
	}
	n := uint256.NewInt(uint64(len(winners)))
	each := new(uint256.Int).Div(totalValue, n)
	remainder := new(uint256.Int).Sub(totalValue, new(uint256.Int).Mul(each, n))

	payouts := make([]Payout, len(winners))
	for i, w := range winners {
		payouts[i] = Payout{Address: w, Value: each.Clone()}
	}
	if policy == RemainderLastWinner && !remainder.IsZero() {
		last := &payouts[len(payouts)-1]
		last.Value = new(uint256.Int).Add(last.Value, remainder)
		remainder = new(uint256.Int)
	}
	return payouts, remainder, nil
}
