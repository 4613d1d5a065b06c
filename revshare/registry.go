package revshare

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
)

const registryHeaderSize = 4 // num_entries(4)

// Registry is the set of holders with a non-zero claim balance.
// Removal swaps the last member into the vacated slot, so order is not stable.
type Registry struct {
	members []claim.Address
	index   map[claim.Address]int
}

// NewRegistry creates an empty participant set.
func NewRegistry() *Registry {
	return &Registry{index: make(map[claim.Address]int)}
}

// RegistryFrom builds a registry holding members in the given order.
func RegistryFrom(members []claim.Address) (*Registry, error) {
	r := NewRegistry()
	for _, m := range members {
		if _, dup := r.index[m]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParticipant, m)
		}
		r.index[m] = len(r.members)
		r.members = append(r.members, m)
	}
	return r, nil
}

// OnBalanceChanged adds holder when balance is non-zero and removes it when
// balance is zero. It reports whether membership changed.
func (r *Registry) OnBalanceChanged(holder claim.Address, balance *uint256.Int) bool {
	idx, present := r.index[holder]
	switch {
	case !balance.IsZero() && !present:
		r.index[holder] = len(r.members)
		r.members = append(r.members, holder)
		return true
	case balance.IsZero() && present:
		last := len(r.members) - 1
		moved := r.members[last]
		r.members[idx] = moved
		r.index[moved] = idx
		r.members = r.members[:last]
		delete(r.index, holder)
		return true
	}
	return false
}

// Members returns a copy of the current participants.
func (r *Registry) Members() []claim.Address {
	return append([]claim.Address(nil), r.members...)
}

// IsMember reports whether holder is a participant.
func (r *Registry) IsMember(holder claim.Address) bool {
	_, ok := r.index[holder]
	return ok
}

// Len returns the number of participants.
func (r *Registry) Len() int { return len(r.members) }

// Clone returns an independent copy preserving member order.
func (r *Registry) Clone() *Registry {
	cp, _ := RegistryFrom(r.members)
	return cp
}

// SerializeRegistry encodes the participant set in member order.
func SerializeRegistry(r *Registry) ([]byte, error) {
	if len(r.members) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", ErrInvalidRegistryData, len(r.members))
	}
	buf := make([]byte, registryHeaderSize+claim.AddressSize*len(r.members))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(r.members)))
	offset := registryHeaderSize
	for _, m := range r.members {
		copy(buf[offset:offset+claim.AddressSize], m[:])
		offset += claim.AddressSize
	}
	return buf, nil
}

// DeserializeRegistry decodes data produced by SerializeRegistry.
func DeserializeRegistry(data []byte) (*Registry, error) {
	if len(data) < registryHeaderSize {
		return nil, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidRegistryData, len(data))
	}
	n := int(binary.BigEndian.Uint32(data[0:4]))
	expected := registryHeaderSize + claim.AddressSize*n
	if len(data) != expected {
		return nil, fmt.Errorf("%w: expected %d bytes for %d entries, got %d",
			ErrInvalidRegistryData, expected, n, len(data))
	}
	members := make([]claim.Address, n)
	offset := registryHeaderSize
	for i := range members {
		copy(members[i][:], data[offset:offset+claim.AddressSize])
		offset += claim.AddressSize
	}
	return RegistryFrom(members)
}
