package claim

import (
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
)

// AddressSize is the length of a holder address in bytes.
const AddressSize = 20

// Address identifies a claim holder: the 20-byte HASH160 of its public key.
type Address [AddressSize]byte

// AddressFromPubKey computes HASH160(pubkey) = RIPEMD160(SHA256(pubkey)) of
// the compressed key, the same hash used in P2PKH addresses.
func AddressFromPubKey(pub *ec.PublicKey) Address {
	var a Address
	copy(a[:], bsvhash.Hash160(pub.Compressed()))
	return a
}

// ParseAddress decodes a 40-character hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// String returns the hex encoding of the address.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool { return a == Address{} }
