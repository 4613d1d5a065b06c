package revshare

import "errors"

var (
	// ErrInvalidRegistryData indicates the serialized participant set is malformed.
	ErrInvalidRegistryData = errors.New("revshare: invalid registry data")

	// ErrDuplicateParticipant indicates a participant appears twice.
	ErrDuplicateParticipant = errors.New("revshare: duplicate participant")

	// ErrInvalidDistribution indicates a zero total value or winner count.
	ErrInvalidDistribution = errors.New("revshare: invalid distribution parameters")

	// ErrNotEnoughParticipants indicates more winners were requested than participants exist.
	ErrNotEnoughParticipants = errors.New("revshare: not enough participants")

	// ErrUnknownRequest indicates no distribution request has this id.
	ErrUnknownRequest = errors.New("revshare: unknown request")

	// ErrAlreadyFulfilled indicates the request already received its random value.
	ErrAlreadyFulfilled = errors.New("revshare: request already fulfilled")

	// ErrDuplicateRequest indicates the randomness service reused a request id.
	ErrDuplicateRequest = errors.New("revshare: duplicate request id")

	// ErrInvalidDraw indicates a winner set that is not a distinct subset of participants.
	ErrInvalidDraw = errors.New("revshare: invalid draw")

	// ErrPartialPayout indicates a payout failed after earlier winners were paid.
	// The request is closed with the payouts that were made.
	ErrPartialPayout = errors.New("revshare: distribution partially paid")

	// ErrInvalidRemainderPolicy indicates an unknown remainder policy name.
	ErrInvalidRemainderPolicy = errors.New("revshare: invalid remainder policy")
)
