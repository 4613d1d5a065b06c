// Package vault ties the bookkeeping, valuation, liquidity and distribution
// components into one pooled-yield vault. Every state-changing entry point
// runs to completion under a single guard and is either fully applied and
// persisted or rolled back.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/ledger"
	"github.com/bitfsorg/poolvault-go/liquidity"
	"github.com/bitfsorg/poolvault-go/revshare"
	"github.com/bitfsorg/poolvault-go/service"
	"github.com/bitfsorg/poolvault-go/store"
	"github.com/bitfsorg/poolvault-go/units"
	"github.com/bitfsorg/poolvault-go/valuation"
)

const (
	dbFileName   = "vault.db"
	lockFileName = "vault.lock"
)

// LedgerPath returns the ledger database path inside dataDir.
func LedgerPath(dataDir string) string {
	return filepath.Join(dataDir, dbFileName)
}

// Options wires a vault to its collaborators.
type Options struct {
	// DataDir holds the ledger database and lock file. When empty and Store
	// is nil the vault keeps its ledger in memory.
	DataDir string
	// Store overrides the ledger opened from DataDir.
	Store store.Store
	// WaitForLock blocks until another process releases DataDir instead of
	// failing with ErrLocked.
	WaitForLock bool

	// Self is the vault's own holder address at the custody protocol and token layer.
	Self       claim.Address
	Custody    service.Custody
	Oracle     service.Oracle
	Token      service.Token
	Randomness service.Randomness // optional; required for distributions
	Venue      service.Venue      // optional; nil disables the liquidity fallback

	FeeRate        *uint256.Int // fee rate of a new ledger, WAD fraction
	Remainder      revshare.RemainderPolicy
	Fallback       liquidity.Policy
	RecentRequests int

	Logger log.Logger // defaults to the root logger
}

// Vault is a pooled-yield vault instance. Operations never wait for one
// another: a call made while another operation holds the vault fails with
// ErrReentrantCall.
type Vault struct {
	mu     sync.Mutex
	closed bool

	self       claim.Address
	custody    service.Custody
	token      service.Token
	randomness service.Randomness

	store     store.Store
	ownsStore bool
	lock      *os.File
	log       log.Logger

	state        *ledger.VaultState
	claims       *claim.Ledger
	participants *revshare.Registry
	engine       *revshare.Engine

	conv     *valuation.Converter
	nav      *valuation.NAV
	resolver *liquidity.Resolver
}

// Open loads or creates the vault ledger and wires the collaborators.
func Open(opts Options) (*Vault, error) {
	if opts.Custody == nil || opts.Oracle == nil || opts.Token == nil {
		return nil, fmt.Errorf("%w: custody, oracle and token are required", ErrMissingService)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Root()
	}

	v := &Vault{
		self:       opts.Self,
		custody:    opts.Custody,
		token:      opts.Token,
		randomness: opts.Randomness,
		store:      opts.Store,
		log:        logger,
	}

	if opts.DataDir != "" {
		if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("vault: create data directory: %w", err)
		}
		lockPath := filepath.Join(opts.DataDir, lockFileName)
		var err error
		if opts.WaitForLock {
			v.lock, err = acquireLock(lockPath)
		} else {
			v.lock, err = tryLock(lockPath)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLocked, err)
		}
	}
	if v.store == nil {
		if opts.DataDir != "" {
			bs, err := store.OpenBoltStore(LedgerPath(opts.DataDir))
			if err != nil {
				releaseLock(v.lock)
				return nil, fmt.Errorf("vault: open ledger: %w", err)
			}
			v.store = bs
		} else {
			v.store = store.NewMemStore()
		}
		v.ownsStore = true
	}

	if err := v.load(opts); err != nil {
		v.release()
		return nil, err
	}
	return v, nil
}

func (v *Vault) load(opts Options) error {
	snap, err := v.store.LoadSnapshot()
	switch {
	case errors.Is(err, store.ErrNotFound):
		rate := units.OrZero(opts.FeeRate)
		if rate.Gt(units.WAD()) {
			return fmt.Errorf("%w: %s", ledger.ErrFeeOutOfBounds, units.FormatValue(rate))
		}
		v.state = ledger.NewVaultState(rate)
		v.claims = claim.NewLedger()
		v.participants = revshare.NewRegistry()
		v.log.Info("Created new vault ledger", "feerate", units.FormatValue(rate))
	case err != nil:
		return fmt.Errorf("vault: load ledger: %w", err)
	default:
		v.state = snap.State
		if v.claims, err = claim.FromSnapshot(snap.Claims); err != nil {
			return fmt.Errorf("vault: load claims: %w", err)
		}
		if v.participants, err = revshare.RegistryFrom(snap.Participants); err != nil {
			return fmt.Errorf("vault: load participants: %w", err)
		}
		if err := checkParticipants(v.claims, v.participants); err != nil {
			return err
		}
		v.log.Info("Loaded vault ledger", "assets", len(v.state.Assets), "holders", v.participants.Len(),
			"supply", v.claims.TotalSupply())
	}
	v.claims.SetHook(v.onBalanceChanged)

	v.engine, err = revshare.NewEngine(v.participants, revshare.EngineOptions{
		Randomness:     v.randomness,
		Policy:         opts.Remainder,
		RecentRequests: opts.RecentRequests,
		Lookup:         v.lookupRequest,
		Logger:         v.log,
	})
	if err != nil {
		return err
	}
	reqs, err := v.store.ListRequests()
	if err != nil {
		return fmt.Errorf("vault: load requests: %w", err)
	}
	v.engine.Load(reqs)

	v.conv = valuation.NewConverter(opts.Oracle)
	v.nav = valuation.NewNAV(v.conv, v.custody, v.self)
	v.resolver = liquidity.NewResolver(v.nav, v.custody, opts.Venue, v.token, v.self, opts.Fallback, v.log)
	return nil
}

// checkParticipants verifies that the persisted participant set matches the
// holders with a non-zero balance.
func checkParticipants(claims *claim.Ledger, participants *revshare.Registry) error {
	holders := claims.Holders()
	if len(holders) != participants.Len() {
		return fmt.Errorf("%w: %d holders but %d participants", store.ErrCorrupt, len(holders), participants.Len())
	}
	for _, h := range holders {
		if !participants.IsMember(h) {
			return fmt.Errorf("%w: holder %s is not a participant", store.ErrCorrupt, h)
		}
	}
	return nil
}

// Close releases the ledger and the data directory lock. It fails with
// ErrReentrantCall while an operation is in progress.
func (v *Vault) Close() error {
	if !v.mu.TryLock() {
		return ErrReentrantCall
	}
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	return v.release()
}

func (v *Vault) release() error {
	var err error
	if v.ownsStore && v.store != nil {
		err = v.store.Close()
	}
	releaseLock(v.lock)
	v.lock = nil
	return err
}

func (v *Vault) onBalanceChanged(holder claim.Address, balance *uint256.Int) {
	if v.participants.OnBalanceChanged(holder, balance) {
		v.log.Debug("Participant set changed", "holder", holder, "member", !balance.IsZero(), "participants", v.participants.Len())
	}
}

func (v *Vault) lookupRequest(id service.RequestID) (*revshare.Request, error) {
	r, err := v.store.GetRequest(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

// enter acquires the vault for one entry point. It never waits: a
// collaborator calling back into the vault holds no context tying it to the
// running operation, so any call made while the vault is held is rejected.
func (v *Vault) enter() (func(), error) {
	if !v.mu.TryLock() {
		return nil, ErrReentrantCall
	}
	if v.closed {
		v.mu.Unlock()
		return nil, ErrClosed
	}
	release := v.conv.PinPrices()
	return func() {
		release()
		v.mu.Unlock()
	}, nil
}

// view runs a read-only fn under the guard.
func (v *Vault) view(ctx context.Context, fn func(ctx context.Context) error) error {
	exit, err := v.enter()
	if err != nil {
		return err
	}
	defer exit()
	return fn(ctx)
}

// mutation describes one state-changing entry point.
type mutation struct {
	name string
	// check validates input against current state before anything changes.
	check func() error
	// accrue books pending yield on every asset before fn runs.
	accrue bool
	fn     func(ctx context.Context) error
}

// mutate runs m under the guard. On failure state, claims and participants
// are restored; on success they are committed to the store.
func (v *Vault) mutate(ctx context.Context, m mutation) error {
	exit, err := v.enter()
	if err != nil {
		return err
	}
	defer exit()

	if m.check != nil {
		if err := m.check(); err != nil {
			return err
		}
	}
	if m.accrue {
		if err := v.accrueAll(ctx); err != nil {
			return err
		}
	}

	stateBak := v.state.Clone()
	claimsBak := v.claims.Snapshot()
	participantsBak := v.participants.Clone()

	if err := m.fn(ctx); err != nil {
		v.state = stateBak
		if rerr := v.claims.Restore(claimsBak); rerr != nil {
			v.log.Error("Failed to restore claim balances", "op", m.name, "err", rerr)
		}
		v.participants = participantsBak
		v.engine.SetParticipants(v.participants)
		if m.accrue {
			v.reobserve(ctx)
		}
		v.log.Debug("Operation rolled back", "op", m.name, "err", err)
		return err
	}
	return v.commit(m.name)
}

// reobserve adopts current custody balances after a rollback. Balances were
// just accrued, so any difference comes from compensated external calls.
func (v *Vault) reobserve(ctx context.Context) {
	for _, a := range v.state.Assets {
		bal, err := v.nav.CustodyBalance(ctx, v.state, a.ID)
		if err != nil {
			v.log.Warn("Custody balance unavailable after rollback", "asset", a.ID, "err", err)
			continue
		}
		if !bal.Eq(v.state.LastObserved(a.ID)) {
			v.log.Warn("Custody balance changed by failed operation", "asset", a.ID,
				"observed", v.state.LastObserved(a.ID), "now", bal)
			v.state.Observe(a.ID, bal)
		}
	}
}

// commit persists the current ledger and any changed distribution requests.
// External effects have already happened, so in-memory state is kept even
// when persisting fails.
func (v *Vault) commit(op string) error {
	snap := &store.Snapshot{
		State:        v.state,
		Claims:       v.claims.Snapshot(),
		Participants: v.participants.Members(),
	}
	reqs := v.engine.TakeDirty()
	if err := v.store.Commit(snap, reqs...); err != nil {
		v.engine.MarkDirty(reqs...)
		v.log.Error("Failed to persist vault ledger", "op", op, "err", err)
		return fmt.Errorf("%w: %s: %w", ErrPersist, op, err)
	}
	return nil
}

// accrueAll books pending yield on every supported asset.
func (v *Vault) accrueAll(ctx context.Context) error {
	for _, a := range v.state.Assets {
		if _, _, err := v.accrueAsset(ctx, a.ID); err != nil {
			return err
		}
	}
	return nil
}

func (v *Vault) accrueAsset(ctx context.Context, asset string) (yield, fee *uint256.Int, err error) {
	bal, err := v.nav.CustodyBalance(ctx, v.state, asset)
	if err != nil {
		return nil, nil, err
	}
	yield, fee = v.state.Accrue(asset, bal)
	if !yield.IsZero() {
		v.log.Debug("Accrued yield", "asset", asset, "yield", yield, "fee", fee, "balance", bal)
	}
	return yield, fee, nil
}

// observe records the current custody balance of asset after the vault moved funds.
func (v *Vault) observe(ctx context.Context, asset string) error {
	bal, err := v.nav.CustodyBalance(ctx, v.state, asset)
	if err != nil {
		return err
	}
	v.state.Observe(asset, bal)
	return nil
}

func (v *Vault) checkActive() error {
	if v.state.Paused {
		return ErrPaused
	}
	return nil
}

func (v *Vault) checkAsset(asset string) error {
	if !v.state.IsSupported(asset) {
		return fmt.Errorf("%w: %q", ledger.ErrUnsupportedAsset, asset)
	}
	return nil
}

func checkAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	return nil
}
