package revshare

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/service"
)

// DefaultRecentRequests is the size of the fulfilled-request cache.
const DefaultRecentRequests = 256

// Payer executes the payouts of a request being fulfilled. It receives a
// copy with Payouts, Remainder and Policy filled in, sets each payout's
// Amount and marks it Paid once the transfer is made. An error before any
// payout is Paid leaves the request pending. An error after one is Paid
// closes the request with the partial payouts recorded, so a redelivered
// random value can never pay a winner twice.
type Payer func(ctx context.Context, req *Request) error

// Lookup finds a persisted request. It returns nil, nil when id is unknown.
type Lookup func(id service.RequestID) (*Request, error)

// Params describes a distribution to request.
type Params struct {
	TotalValue  *uint256.Int
	WinnerCount uint32
	TargetAsset string
	PaymentMode PaymentMode
}

// Engine tracks distribution requests from submission to fulfilment.
// It is not safe for concurrent use; the vault serialises access.
type Engine struct {
	participants *Registry
	randomness   service.Randomness
	policy       RemainderPolicy
	lookup       Lookup

	pending map[service.RequestID]*Request
	recent  *lru.Cache // service.RequestID -> *Request, fulfilled only
	dirty   map[service.RequestID]*Request
	now     func() time.Time
	log     log.Logger
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Randomness     service.Randomness
	Policy         RemainderPolicy
	RecentRequests int    // fulfilled-request cache size; 0 means DefaultRecentRequests
	Lookup         Lookup // optional fallback for requests not held in memory
	Now            func() time.Time
	Logger         log.Logger // defaults to log.Root()
}

// NewEngine creates an engine drawing winners from participants.
func NewEngine(participants *Registry, opts EngineOptions) (*Engine, error) {
	size := opts.RecentRequests
	if size <= 0 {
		size = DefaultRecentRequests
	}
	recent, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("revshare: create request cache: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}
	return &Engine{
		participants: participants,
		randomness:   opts.Randomness,
		policy:       opts.Policy,
		lookup:       opts.Lookup,
		pending:      make(map[service.RequestID]*Request),
		recent:       recent,
		dirty:        make(map[service.RequestID]*Request),
		now:          now,
		log:          logger,
	}, nil
}

// Policy returns the remainder policy applied at fulfilment.
func (e *Engine) Policy() RemainderPolicy { return e.policy }

// SetParticipants replaces the registry winners are drawn from.
func (e *Engine) SetParticipants(r *Registry) { e.participants = r }

// Load installs persisted requests; unfulfilled ones become pending.
func (e *Engine) Load(reqs []*Request) {
	for _, r := range reqs {
		if r.Fulfilled {
			e.recent.Add(r.ID, r.Clone())
			continue
		}
		e.pending[r.ID] = r.Clone()
	}
}

// Request validates p, asks the randomness service for a value and records
// the request under the id the service assigned.
func (e *Engine) Request(ctx context.Context, p Params) (*Request, error) {
	if p.TotalValue == nil || p.TotalValue.IsZero() {
		return nil, fmt.Errorf("%w: zero total value", ErrInvalidDistribution)
	}
	if p.WinnerCount == 0 {
		return nil, fmt.Errorf("%w: zero winner count", ErrInvalidDistribution)
	}
	if int(p.WinnerCount) > e.participants.Len() {
		return nil, fmt.Errorf("%w: %d winners from %d participants",
			ErrNotEnoughParticipants, p.WinnerCount, e.participants.Len())
	}
	if e.randomness == nil {
		return nil, fmt.Errorf("%w: no randomness service", service.ErrExternal)
	}

	id, err := e.randomness.RequestRandom(ctx, service.RandomnessParams{
		NumWords:      1,
		NativePayment: p.PaymentMode == PayNative,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: request randomness: %w", service.ErrExternal, err)
	}
	if known, err := e.find(id); err != nil {
		return nil, err
	} else if known != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequest, id)
	}

	req := &Request{
		ID:          id,
		TotalValue:  p.TotalValue.Clone(),
		WinnerCount: p.WinnerCount,
		TargetAsset: p.TargetAsset,
		PaymentMode: p.PaymentMode,
		RequestedAt: e.now().UTC(),
	}
	e.pending[id] = req
	e.dirty[id] = req
	e.log.Info("Distribution requested", "id", id, "value", req.TotalValue, "winners", req.WinnerCount, "asset", req.TargetAsset)
	return req.Clone(), nil
}

// Fulfill draws winners for request id with random, pays them through pay,
// and marks the request fulfilled. A request is paid at most once: when pay
// fails after some payouts were made, the request is still closed and the
// error wraps ErrPartialPayout.
func (e *Engine) Fulfill(ctx context.Context, id service.RequestID, random *uint256.Int, pay Payer) (*Request, error) {
	req, ok := e.pending[id]
	if !ok {
		known, err := e.find(id)
		if err != nil {
			return nil, err
		}
		if known != nil && known.Fulfilled {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyFulfilled, id)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}

	members := e.participants.Members()
	count := int(req.WinnerCount)
	winners, err := SelectWinners(members, count, random)
	if err != nil {
		return nil, err
	}
	if err := ValidateDraw(winners, members, count); err != nil {
		return nil, err
	}
	payouts, remainder, err := Apportion(req.TotalValue, winners, e.policy)
	if err != nil {
		return nil, err
	}
	if err := ValidateApportion(payouts, remainder, req.TotalValue); err != nil {
		return nil, err
	}

	draft := req.Clone()
	draft.RandomValue = random.Clone()
	draft.Payouts = payouts
	draft.Remainder = remainder
	draft.Policy = e.policy
	if err := pay(ctx, draft); err != nil {
		paid := draft.PaidCount()
		if paid == 0 {
			return nil, err
		}
		e.close(draft)
		e.log.Error("Distribution partially paid", "id", id, "paid", paid, "winners", len(draft.Payouts), "err", err)
		return draft.Clone(), fmt.Errorf("%w: %s: %w", ErrPartialPayout, id, err)
	}

	for i := range draft.Payouts {
		draft.Payouts[i].Paid = true
	}
	e.close(draft)
	e.log.Info("Distribution fulfilled", "id", id, "winners", len(draft.Payouts), "remainder", draft.Remainder)
	return draft.Clone(), nil
}

func (e *Engine) close(req *Request) {
	req.Fulfilled = true
	req.FulfilledAt = e.now().UTC()
	delete(e.pending, req.ID)
	e.recent.Add(req.ID, req)
	e.dirty[req.ID] = req
}

// Status returns a copy of request id, pending or fulfilled.
func (e *Engine) Status(id service.RequestID) (*Request, error) {
	req, err := e.find(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	return req.Clone(), nil
}

// Pending returns copies of all unfulfilled requests, oldest first.
func (e *Engine) Pending() []*Request {
	out := make([]*Request, 0, len(e.pending))
	for _, r := range e.pending {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

// TakeDirty returns the requests changed since the last call and clears the set.
func (e *Engine) TakeDirty() []*Request {
	out := make([]*Request, 0, len(e.dirty))
	for _, r := range e.dirty {
		out = append(out, r.Clone())
	}
	e.dirty = make(map[service.RequestID]*Request)
	return out
}

// MarkDirty re-queues requests whose persistence failed.
func (e *Engine) MarkDirty(reqs ...*Request) {
	for _, r := range reqs {
		e.dirty[r.ID] = r
	}
}

func (e *Engine) find(id service.RequestID) (*Request, error) {
	if r, ok := e.pending[id]; ok {
		return r, nil
	}
	if v, ok := e.recent.Get(id); ok {
		return v.(*Request), nil
	}
	if e.lookup == nil {
		return nil, nil
	}
	r, err := e.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("revshare: lookup request %s: %w", id, err)
	}
	if r != nil && r.Fulfilled {
		e.recent.Add(id, r)
	}
	return r, nil
}
