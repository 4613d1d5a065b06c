package valuation

import "errors"

var (
	// ErrPriceUnavailable indicates the oracle returned no usable price.
	ErrPriceUnavailable = errors.New("valuation: price unavailable")

	// ErrZeroShares indicates a deposit too small to mint any shares.
	ErrZeroShares = errors.New("valuation: deposit mints zero shares")

	// ErrInsufficientShares indicates more shares than exist were redeemed.
	ErrInsufficientShares = errors.New("valuation: insufficient shares")
)
