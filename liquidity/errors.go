package liquidity

import "errors"

var (
	// ErrInsufficientLiquidity indicates the redemption cannot be served,
	// even through the conversion fallback.
	ErrInsufficientLiquidity = errors.New("liquidity: insufficient liquidity")

	// ErrInvalidPolicy indicates an unknown fallback policy name.
	ErrInvalidPolicy = errors.New("liquidity: invalid fallback policy")
)
