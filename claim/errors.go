package claim

import "errors"

var (
	// ErrInsufficientBalance indicates the holder has fewer shares than requested.
	ErrInsufficientBalance = errors.New("claim: insufficient balance")

	// ErrInsufficientAllowance indicates the spender is not approved for the amount.
	ErrInsufficientAllowance = errors.New("claim: insufficient allowance")

	// ErrZeroAmount indicates a zero share amount.
	ErrZeroAmount = errors.New("claim: zero amount")

	// ErrOverflow indicates total supply would exceed 256 bits.
	ErrOverflow = errors.New("claim: overflow")

	// ErrInvalidSnapshot indicates persisted balances are inconsistent.
	ErrInvalidSnapshot = errors.New("claim: invalid snapshot")

	// ErrInvalidAddress indicates a malformed holder address.
	ErrInvalidAddress = errors.New("claim: invalid address")
)
