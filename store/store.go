// Package store persists the vault ledger: one snapshot of state, claim
// balances and participants, plus the append-only distribution request log.
package store

import (
	"sort"
	"sync"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/ledger"
	"github.com/bitfsorg/poolvault-go/revshare"
	"github.com/bitfsorg/poolvault-go/service"
)

// Snapshot is everything the vault must reload to resume.
type Snapshot struct {
	State        *ledger.VaultState
	Claims       claim.Snapshot
	Participants []claim.Address // registry order
}

// Store persists vault snapshots and distribution requests.
type Store interface {
	// LoadSnapshot returns the last committed snapshot or ErrNotFound.
	LoadSnapshot() (*Snapshot, error)

	// Commit atomically replaces the snapshot and upserts requests.
	Commit(snap *Snapshot, requests ...*revshare.Request) error

	// GetRequest returns a request by id or ErrNotFound.
	GetRequest(id service.RequestID) (*revshare.Request, error)

	// ListRequests returns all requests ordered by request time.
	ListRequests() ([]*revshare.Request, error)

	// Close releases resources held by the store.
	Close() error
}

// MemStore is an in-memory implementation of Store for testing.
// It round-trips through the same record encoding as BoltStore.
type MemStore struct {
	mu       sync.RWMutex
	snapshot []byte
	requests map[service.RequestID][]byte
}

// Compile-time interface checks.
var (
	_ Store = (*MemStore)(nil)
	_ Store = (*BoltStore)(nil)
)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{requests: make(map[service.RequestID][]byte)}
}

// LoadSnapshot implements Store.
func (s *MemStore) LoadSnapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, ErrNotFound
	}
	return decodeSnapshot(s.snapshot)
}

// Commit implements Store.
func (s *MemStore) Commit(snap *Snapshot, requests ...*revshare.Request) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	encoded := make(map[service.RequestID][]byte, len(requests))
	for _, r := range requests {
		rd, err := encodeRequest(r)
		if err != nil {
			return err
		}
		encoded[r.ID] = rd
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = data
	for id, rd := range encoded {
		s.requests[id] = rd
	}
	return nil
}

// GetRequest implements Store.
func (s *MemStore) GetRequest(id service.RequestID) (*revshare.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRequest(data)
}

// ListRequests implements Store.
func (s *MemStore) ListRequests() ([]*revshare.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*revshare.Request, 0, len(s.requests))
	for _, data := range s.requests {
		r, err := decodeRequest(data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sortRequests(out)
	return out, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

func sortRequests(reqs []*revshare.Request) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].RequestedAt.Equal(reqs[j].RequestedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].RequestedAt.Before(reqs[j].RequestedAt)
	})
}
