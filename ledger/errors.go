package ledger

import "errors"

var (
	// ErrUnsupportedAsset indicates the asset is not registered with the vault.
	ErrUnsupportedAsset = errors.New("ledger: unsupported asset")

	// ErrAssetExists indicates an asset with this id is already registered.
	ErrAssetExists = errors.New("ledger: asset already supported")

	// ErrReceiptInUse indicates the custody handle already backs another asset.
	ErrReceiptInUse = errors.New("ledger: custody receipt already in use")

	// ErrInvalidAsset indicates the asset definition is malformed.
	ErrInvalidAsset = errors.New("ledger: invalid asset definition")

	// ErrAssetHasBalance indicates the asset still holds custody balance or fees.
	ErrAssetHasBalance = errors.New("ledger: asset still has balance")

	// ErrFeeOutOfBounds indicates a fee rate above 100%.
	ErrFeeOutOfBounds = errors.New("ledger: fee rate out of bounds")
)
