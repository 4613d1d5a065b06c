// Package claim keeps the fungible share balances of vault holders.
package claim

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
)

// BalanceHook is called after every change to a holder's balance with the
// holder's new balance.
type BalanceHook func(holder Address, balance *uint256.Int)

// Ledger tracks share balances, allowances and total supply.
// Total supply always equals the sum of balances; zero balances are not stored.
type Ledger struct {
	balances   map[Address]*uint256.Int
	allowances map[Address]map[Address]*uint256.Int
	supply     *uint256.Int
	hook       BalanceHook
}

// Balance is one holder's persisted share balance.
type Balance struct {
	Holder Address
	Amount *uint256.Int
}

// Allowance is one persisted owner/spender approval.
type Allowance struct {
	Owner   Address
	Spender Address
	Amount  *uint256.Int
}

// Snapshot is the persisted form of a Ledger. Entries are sorted by address.
type Snapshot struct {
	Balances   []Balance
	Allowances []Allowance
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[Address]*uint256.Int),
		allowances: make(map[Address]map[Address]*uint256.Int),
		supply:     new(uint256.Int),
	}
}

// FromSnapshot rebuilds a ledger from persisted balances. Total supply is
// recomputed from the balances.
func FromSnapshot(snap Snapshot) (*Ledger, error) {
	l := NewLedger()
	for _, b := range snap.Balances {
		if b.Amount == nil || b.Amount.IsZero() {
			continue
		}
		if _, dup := l.balances[b.Holder]; dup {
			return nil, fmt.Errorf("%w: duplicate holder %s", ErrInvalidSnapshot, b.Holder)
		}
		if _, overflow := l.supply.AddOverflow(l.supply, b.Amount); overflow {
			return nil, fmt.Errorf("%w: supply", ErrOverflow)
		}
		l.balances[b.Holder] = b.Amount.Clone()
	}
	for _, a := range snap.Allowances {
		l.setAllowance(a.Owner, a.Spender, a.Amount)
	}
	return l, nil
}

// SetHook registers the balance-change hook.
func (l *Ledger) SetHook(h BalanceHook) { l.hook = h }

// Snapshot returns a deep copy of the ledger's persisted fields.
func (l *Ledger) Snapshot() Snapshot {
	snap := Snapshot{
		Balances:   make([]Balance, 0, len(l.balances)),
		Allowances: make([]Allowance, 0),
	}
	for _, h := range l.Holders() {
		snap.Balances = append(snap.Balances, Balance{Holder: h, Amount: l.balances[h].Clone()})
	}
	for owner, m := range l.allowances {
		for spender, amt := range m {
			snap.Allowances = append(snap.Allowances, Allowance{Owner: owner, Spender: spender, Amount: amt.Clone()})
		}
	}
	sort.Slice(snap.Allowances, func(i, j int) bool {
		a, b := snap.Allowances[i], snap.Allowances[j]
		if a.Owner != b.Owner {
			return lessAddr(a.Owner, b.Owner)
		}
		return lessAddr(a.Spender, b.Spender)
	})
	return snap
}

// Restore replaces the ledger contents with snap, keeping the hook.
// Used to roll back a failed operation; the hook is not invoked.
func (l *Ledger) Restore(snap Snapshot) error {
	fresh, err := FromSnapshot(snap)
	if err != nil {
		return err
	}
	l.balances, l.allowances, l.supply = fresh.balances, fresh.allowances, fresh.supply
	return nil
}

// BalanceOf returns the share balance of holder.
func (l *Ledger) BalanceOf(holder Address) *uint256.Int {
	if b, ok := l.balances[holder]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// TotalSupply returns the sum of all balances.
func (l *Ledger) TotalSupply() *uint256.Int { return l.supply.Clone() }

// Holders returns every holder with a non-zero balance, sorted by address.
func (l *Ledger) Holders() []Address {
	out := make([]Address, 0, len(l.balances))
	for h := range l.balances {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return lessAddr(out[i], out[j]) })
	return out
}

func lessAddr(a, b Address) bool { return bytes.Compare(a[:], b[:]) < 0 }

// Mint creates amount shares for holder.
func (l *Ledger) Mint(holder Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.supply, amount)
	if overflow {
		return fmt.Errorf("%w: supply", ErrOverflow)
	}
	l.supply = supply
	l.credit(holder, amount)
	return nil
}

// Burn destroys amount shares held by holder.
func (l *Ledger) Burn(holder Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if err := l.debit(holder, amount); err != nil {
		return err
	}
	l.supply = new(uint256.Int).Sub(l.supply, amount)
	l.notify(holder)
	return nil
}

// Transfer moves amount shares from one holder to another.
func (l *Ledger) Transfer(from, to Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if from == to {
		if l.BalanceOf(from).Lt(amount) {
			return fmt.Errorf("%w: %s", ErrInsufficientBalance, from)
		}
		return nil
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.notify(from)
	l.credit(to, amount)
	return nil
}

// Approve sets the amount spender may move out of owner's balance.
func (l *Ledger) Approve(owner, spender Address, amount *uint256.Int) {
	l.setAllowance(owner, spender, amount)
}

// Allowance returns the amount spender may still move for owner.
func (l *Ledger) Allowance(owner, spender Address) *uint256.Int {
	if m, ok := l.allowances[owner]; ok {
		if amt, ok := m[spender]; ok {
			return amt.Clone()
		}
	}
	return new(uint256.Int)
}

// TransferFrom moves amount from owner to to on behalf of spender,
// consuming spender's allowance.
func (l *Ledger) TransferFrom(spender, owner, to Address, amount *uint256.Int) error {
	allowed := l.Allowance(owner, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: %s may move %s of %s", ErrInsufficientAllowance, spender, allowed.Dec(), owner)
	}
	if err := l.Transfer(owner, to, amount); err != nil {
		return err
	}
	l.setAllowance(owner, spender, new(uint256.Int).Sub(allowed, amount))
	return nil
}

func (l *Ledger) credit(holder Address, amount *uint256.Int) {
	l.balances[holder] = new(uint256.Int).Add(l.BalanceOf(holder), amount)
	l.notify(holder)
}

func (l *Ledger) debit(holder Address, amount *uint256.Int) error {
	bal := l.BalanceOf(holder)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, holder, bal.Dec(), amount.Dec())
	}
	rest := new(uint256.Int).Sub(bal, amount)
	if rest.IsZero() {
		delete(l.balances, holder)
	} else {
		l.balances[holder] = rest
	}
	return nil
}

func (l *Ledger) notify(holder Address) {
	if l.hook != nil {
		l.hook(holder, l.BalanceOf(holder))
	}
}

func (l *Ledger) setAllowance(owner, spender Address, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		if m, ok := l.allowances[owner]; ok {
			delete(m, spender)
			if len(m) == 0 {
				delete(l.allowances, owner)
			}
		}
		return
	}
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[Address]*uint256.Int)
		l.allowances[owner] = m
	}
	m[spender] = amount.Clone()
}
