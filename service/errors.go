package service

import "errors"

var (
	// ErrExternal wraps failures reported by an external collaborator.
	ErrExternal = errors.New("service: external service failure")

	// ErrInsufficientFunds indicates a simulated balance is too small.
	ErrInsufficientFunds = errors.New("service: insufficient funds")

	// ErrInsufficientInventory indicates the venue cannot fill one leg of a swap.
	ErrInsufficientInventory = errors.New("service: insufficient venue inventory")

	// ErrUnknownAsset indicates the simulator has no record of the asset.
	ErrUnknownAsset = errors.New("service: unknown asset")

	// ErrUnknownRequest indicates the randomness request id was never issued.
	ErrUnknownRequest = errors.New("service: unknown randomness request")
)
