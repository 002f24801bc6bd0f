package booking

import (
	"errors"

	"travelbook/internal/domain/shared/daterange"
)

// Failure taxonomy surfaced by the booking workflow. Validation kinds (InvalidRange,
// InvalidPartySize, Unavailable, PricingFailed) carry no side effects.
var (
	ErrInvalidRange      = daterange.ErrInvalidRange
	ErrInvalidPartySize  = errors.New("booking: party size out of bounds")
	ErrUnavailable       = errors.New("booking: dates unavailable")
	ErrPricingFailed     = errors.New("booking: pricing failed")
	ErrReservationFailed = errors.New("booking: reservation failed")
	ErrPersistenceFailed = errors.New("booking: persistence failed")
	ErrNotFound          = errors.New("booking: not found")
	ErrInvalidState      = errors.New("booking: invalid state transition")
	// ErrVersionConflict is returned by repositories when a stale booking is saved.
	ErrVersionConflict = errors.New("booking: concurrent update detected")
)
