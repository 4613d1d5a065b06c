package revshare

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/service"
)

// PaymentMode selects how the randomness service is paid for a request.
type PaymentMode uint8

const (
	PayWithToken PaymentMode = iota
	PayNative
)

func (m PaymentMode) String() string {
	if m == PayNative {
		return "native"
	}
	return "token"
}

// RemainderPolicy decides what happens to the value left over when the
// distribution total does not divide evenly among the winners.
type RemainderPolicy uint8

const (
	// RemainderRetain leaves the remainder in the vault as holder value.
	RemainderRetain RemainderPolicy = iota
	// RemainderLastWinner adds the remainder to the last winner's payout.
	RemainderLastWinner
	// RemainderToFee moves the remainder into the target asset's accrued fee.
	RemainderToFee
)

// ParseRemainderPolicy parses "retain", "last" or "fee".
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch s {
	case "retain", "":
		return RemainderRetain, nil
	case "last":
		return RemainderLastWinner, nil
	case "fee":
		return RemainderToFee, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRemainderPolicy, s)
}

func (p RemainderPolicy) String() string {
	switch p {
	case RemainderLastWinner:
		return "last"
	case RemainderToFee:
		return "fee"
	}
	return "retain"
}

// Request is a distribution awaiting or having received its random value.
// It moves from requested to fulfilled exactly once and is kept for audit.
type Request struct {
	ID          service.RequestID
	TotalValue  *uint256.Int // common units to distribute
	WinnerCount uint32
	TargetAsset string
	PaymentMode PaymentMode
	RequestedAt time.Time

	Fulfilled   bool
	FulfilledAt time.Time
	RandomValue *uint256.Int
	Payouts     []Payout
	Remainder   *uint256.Int    // common units not paid to any winner
	Policy      RemainderPolicy // remainder policy applied at fulfilment
}

// Status returns "requested" or "fulfilled".
func (r *Request) Status() string {
	if r.Fulfilled {
		return "fulfilled"
	}
	return "requested"
}

// PaidCount returns how many payouts were transferred.
func (r *Request) PaidCount() int {
	n := 0
	for _, p := range r.Payouts {
		if p.Paid {
			n++
		}
	}
	return n
}

// Winners returns the selected winners in draw order.
func (r *Request) Winners() []claim.Address {
	out := make([]claim.Address, len(r.Payouts))
	for i, p := range r.Payouts {
		out[i] = p.Address
	}
	return out
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	cp := *r
	cp.TotalValue = cloneOrNil(r.TotalValue)
	cp.RandomValue = cloneOrNil(r.RandomValue)
	cp.Remainder = cloneOrNil(r.Remainder)
	cp.Payouts = make([]Payout, len(r.Payouts))
	for i, p := range r.Payouts {
		cp.Payouts[i] = Payout{Address: p.Address, Value: cloneOrNil(p.Value), Amount: cloneOrNil(p.Amount), Paid: p.Paid}
	}
	return &cp
}

// Payout is a single winner's share of a distribution.
type Payout struct {
	Address claim.Address
	Value   *uint256.Int // common units
	Amount  *uint256.Int // target-asset units actually paid
	Paid    bool
}

func cloneOrNil(v *uint256.Int) *uint256.Int {
	if v == nil {
		return nil
	}
	return v.Clone()
}
