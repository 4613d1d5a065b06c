package vault

import "errors"

var (
	// ErrZeroAmount indicates a deposit, redemption or transfer of nothing.
	ErrZeroAmount = errors.New("vault: amount must be positive")

	// ErrPaused indicates deposits, redemptions and transfers are suspended.
	ErrPaused = errors.New("vault: paused")

	// ErrReentrantCall indicates an entry point was called while another
	// operation held the vault, typically from a collaborator's callback.
	// Concurrent callers see it too and may retry.
	ErrReentrantCall = errors.New("vault: call while another operation is in progress")

	// ErrLocked indicates another process holds the data directory.
	ErrLocked = errors.New("vault: data directory locked")

	// ErrMissingService indicates a required collaborator was not configured.
	ErrMissingService = errors.New("vault: missing service")

	// ErrPersist indicates the operation took effect but the ledger could not be saved.
	ErrPersist = errors.New("vault: persist ledger")

	// ErrClosed indicates the vault has been closed.
	ErrClosed = errors.New("vault: closed")
)
