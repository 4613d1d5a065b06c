package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
)

// Well-known holder addresses of the in-memory collaborators.
var (
	CustodyAddress = claim.Address{0: 0xC0, 19: 0x01}
	VenueAddress   = claim.Address{0: 0xC0, 19: 0x02}
)

// MemToken is an in-memory token book shared by the other simulators.
// It implements Token on behalf of a single vault address.
type MemToken struct {
	mu       sync.Mutex
	vault    claim.Address
	balances map[string]map[claim.Address]*uint256.Int
}

var _ Token = (*MemToken)(nil)

// NewMemToken creates an empty token book for the given vault address.
func NewMemToken(vault claim.Address) *MemToken {
	return &MemToken{vault: vault, balances: make(map[string]map[claim.Address]*uint256.Int)}
}

// Mint credits amount of asset to holder out of thin air.
func (t *MemToken) Mint(asset string, holder claim.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(asset, holder, amount)
}

// BalanceOf returns holder's plain balance of asset.
func (t *MemToken) BalanceOf(asset string, holder claim.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance(asset, holder).Clone()
}

// Pull moves amount of asset from from to the vault.
func (t *MemToken) Pull(_ context.Context, asset string, from claim.Address, amount *uint256.Int) error {
	return t.Move(asset, from, t.vault, amount)
}

// Push moves amount of asset from the vault to to.
func (t *MemToken) Push(_ context.Context, asset string, to claim.Address, amount *uint256.Int) error {
	return t.Move(asset, t.vault, to, amount)
}

// Move transfers amount of asset between two holders.
func (t *MemToken) Move(asset string, from, to claim.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balance(asset, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientFunds, from, bal.Dec(), asset, amount.Dec())
	}
	t.balances[asset][from] = new(uint256.Int).Sub(bal, amount)
	t.credit(asset, to, amount)
	return nil
}

func (t *MemToken) balance(asset string, holder claim.Address) *uint256.Int {
	if m, ok := t.balances[asset]; ok {
		if b, ok := m[holder]; ok {
			return b
		}
	}
	return new(uint256.Int)
}

func (t *MemToken) credit(asset string, holder claim.Address, amount *uint256.Int) {
	m, ok := t.balances[asset]
	if !ok {
		m = make(map[claim.Address]*uint256.Int)
		t.balances[asset] = m
	}
	m[holder] = new(uint256.Int).Add(t.balance(asset, holder), amount)
}

// MemCustody simulates a yield-bearing custody protocol for one vault.
// Supplied tokens move to CustodyAddress; Accrue simulates interest.
type MemCustody struct {
	mu       sync.Mutex
	token    *MemToken
	vault    claim.Address
	receipts map[string]string // receipt -> asset
	supplied map[string]*uint256.Int

	// WithdrawErr, when set, fails every withdrawal of the keyed asset.
	WithdrawErr map[string]error
}

var _ Custody = (*MemCustody)(nil)

// NewMemCustody creates a custody simulator backed by token.
func NewMemCustody(token *MemToken) *MemCustody {
	return &MemCustody{
		token:       token,
		vault:       token.vault,
		receipts:    make(map[string]string),
		supplied:    make(map[string]*uint256.Int),
		WithdrawErr: make(map[string]error),
	}
}

// Register binds a receipt handle to an asset.
func (c *MemCustody) Register(asset, receipt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts[receipt] = asset
	if _, ok := c.supplied[asset]; !ok {
		c.supplied[asset] = new(uint256.Int)
	}
}

// Accrue grows the vault's custody balance of asset by amount.
func (c *MemCustody) Accrue(asset string, amount *uint256.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token.Mint(asset, CustodyAddress, amount)
	c.supplied[asset] = new(uint256.Int).Add(c.balance(asset), amount)
}

// Balance returns the vault's custody balance of asset.
func (c *MemCustody) Balance(asset string) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance(asset).Clone()
}

// Supply moves amount of asset from the vault into custody.
func (c *MemCustody) Supply(_ context.Context, asset string, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.supplied[asset]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if err := c.token.Move(asset, c.vault, CustodyAddress, amount); err != nil {
		return err
	}
	c.supplied[asset] = new(uint256.Int).Add(c.balance(asset), amount)
	return nil
}

// Withdraw moves amount of asset out of custody to to.
func (c *MemCustody) Withdraw(_ context.Context, asset string, amount *uint256.Int, to claim.Address) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.WithdrawErr[asset]; err != nil {
		return nil, err
	}
	bal := c.balance(asset)
	if bal.Lt(amount) {
		return nil, fmt.Errorf("%w: custody holds %s %s, needs %s", ErrInsufficientFunds, bal.Dec(), asset, amount.Dec())
	}
	if err := c.token.Move(asset, CustodyAddress, to, amount); err != nil {
		return nil, err
	}
	c.supplied[asset] = new(uint256.Int).Sub(bal, amount)
	return amount.Clone(), nil
}

// BalanceOf returns the receipt balance of holder. Only the vault holds receipts.
func (c *MemCustody) BalanceOf(_ context.Context, receipt string, holder claim.Address) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	asset, ok := c.receipts[receipt]
	if !ok {
		return nil, fmt.Errorf("%w: receipt %s", ErrUnknownAsset, receipt)
	}
	if holder != c.vault {
		return new(uint256.Int), nil
	}
	return c.balance(asset).Clone(), nil
}

func (c *MemCustody) balance(asset string) *uint256.Int {
	if b, ok := c.supplied[asset]; ok {
		return b
	}
	return new(uint256.Int)
}

// StaticOracle serves fixed prices.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]*uint256.Int
}

var _ Oracle = (*StaticOracle)(nil)

// NewStaticOracle creates an oracle with no prices.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[string]*uint256.Int)}
}

// Set sets the price of asset (8 fractional digits).
func (o *StaticOracle) Set(asset string, price *uint256.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[asset] = price.Clone()
}

// PriceOf returns the configured price of asset.
func (o *StaticOracle) PriceOf(_ context.Context, asset string) (*uint256.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prices[asset]
	if !ok {
		return nil, fmt.Errorf("%w: no price for %s", ErrUnknownAsset, asset)
	}
	return p.Clone(), nil
}

// MemRandomness records requests and delivers values on demand.
type MemRandomness struct {
	mu      sync.Mutex
	pending []RequestID
	params  map[RequestID]RandomnessParams
}

var _ Randomness = (*MemRandomness)(nil)

// NewMemRandomness creates an empty randomness simulator.
func NewMemRandomness() *MemRandomness {
	return &MemRandomness{params: make(map[RequestID]RandomnessParams)}
}

// RequestRandom records a request and returns a fresh id.
func (r *MemRandomness) RequestRandom(_ context.Context, params RandomnessParams) (RequestID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := RequestID(uuid.NewString())
	r.pending = append(r.pending, id)
	r.params[id] = params
	return id, nil
}

// Pending returns the ids not yet delivered, oldest first.
func (r *MemRandomness) Pending() []RequestID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RequestID(nil), r.pending...)
}

// Params returns the parameters a request was issued with.
func (r *MemRandomness) Params(id RequestID) (RandomnessParams, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.params[id]
	return p, ok
}

// Deliver answers request id with random through consumer. Each id is
// delivered at most once.
func (r *MemRandomness) Deliver(ctx context.Context, consumer Consumer, id RequestID, random *uint256.Int) error {
	r.mu.Lock()
	idx := -1
	for i, p := range r.pending {
		if p == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	r.pending = append(r.pending[:idx], r.pending[idx+1:]...)
	r.mu.Unlock()
	return consumer.OnRandomnessFulfilled(ctx, id, random)
}

type pair struct{ from, to string }

type rate struct{ num, den *uint256.Int }

// RateVenue converts at fixed rates out of a finite inventory held at VenueAddress.
type RateVenue struct {
	mu    sync.Mutex
	token *MemToken
	rates map[pair]rate
}

var _ Venue = (*RateVenue)(nil)

// NewRateVenue creates a venue trading against token's vault address.
func NewRateVenue(token *MemToken) *RateVenue {
	return &RateVenue{token: token, rates: make(map[pair]rate)}
}

// SetRate sets the conversion from -> to as amountOut = amountIn * num / den.
func (v *RateVenue) SetRate(from, to string, num, den *uint256.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rates[pair{from, to}] = rate{num: num.Clone(), den: den.Clone()}
}

// Fund adds inventory of asset to the venue.
func (v *RateVenue) Fund(asset string, amount *uint256.Int) {
	v.token.Mint(asset, VenueAddress, amount)
}

// Quote returns the output for amountIn, failing when inventory is short.
func (v *RateVenue) Quote(_ context.Context, from, to string, amountIn *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quote(from, to, amountIn)
}

// Swap pulls amountIn of from from the vault and pushes the output of to.
func (v *RateVenue) Swap(_ context.Context, from, to string, amountIn *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out, err := v.quote(from, to, amountIn)
	if err != nil {
		return nil, err
	}
	if err := v.token.Move(from, v.token.vault, VenueAddress, amountIn); err != nil {
		return nil, err
	}
	if err := v.token.Move(to, VenueAddress, v.token.vault, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *RateVenue) quote(from, to string, amountIn *uint256.Int) (*uint256.Int, error) {
	r, ok := v.rates[pair{from, to}]
	if !ok {
		return nil, fmt.Errorf("%w: no market %s/%s", ErrInsufficientInventory, from, to)
	}
	out := new(uint256.Int).Mul(amountIn, r.num)
	out.Div(out, r.den)
	if inv := v.token.BalanceOf(to, VenueAddress); inv.Lt(out) {
		return nil, fmt.Errorf("%w: %s inventory %s, needs %s", ErrInsufficientInventory, to, inv.Dec(), out.Dec())
	}
	return out, nil
}
