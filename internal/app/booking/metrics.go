package booking

import (
	"context"
	"errors"

	domainbooking "travelbook/internal/domain/booking"
)

type Metrics interface {
	CountBooking(outcome string)
	CountRollback(outcome string)
	CountRepairs(job string, n int)
}

type nopMetrics struct{}

func (nopMetrics) CountBooking(string)      {}
func (nopMetrics) CountRollback(string)     {}
func (nopMetrics) CountRepairs(string, int) {}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domainbooking.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domainbooking.ErrPricingFailed):
		return "pricing_failed"
	case errors.Is(err, domainbooking.ErrReservationFailed):
		return "reservation_failed"
	case errors.Is(err, domainbooking.ErrPersistenceFailed):
		return "persistence_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "invalid"
	}
}
