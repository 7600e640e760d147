package round

import "errors"

var (
	ErrRoundNotOpen           = errors.New("round not open")
	ErrRoundNotFound          = errors.New("round not found")
	ErrRoundAlreadySettled    = errors.New("round already settled")
	ErrDuplicateRoundWindow   = errors.New("duplicate round window")
	ErrObservationUnavailable = errors.New("observation unavailable")
	ErrTransferFailed         = errors.New("transfer failed")
	ErrInvalidWager           = errors.New("invalid wager")
	ErrPayoutNotClaimed       = errors.New("payout not claimed")
	ErrInvalidConfig          = errors.New("invalid config")
)
