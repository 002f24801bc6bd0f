package ginserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"travelbook/internal/app/middleware"
	"travelbook/internal/app/mutation"
	domainavailability "travelbook/internal/domain/availability"
	domainbooking "travelbook/internal/domain/booking"
	domainpricing "travelbook/internal/domain/pricing"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/money"
)

const principalHeader = "X-Principal-ID"

func statusFor(err error) int {
	switch {
	case errors.Is(err, middleware.ErrValidation),
		errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, domainbooking.ErrInvalidPartySize),
		errors.Is(err, domainavailability.ErrUnknownStatus),
		errors.Is(err, domainavailability.ErrNegativeOverride),
		errors.Is(err, mutation.ErrNoDates),
		errors.Is(err, mutation.ErrMissingResource),
		errors.Is(err, mutation.ErrReservedStatus),
		errors.Is(err, money.ErrInvalidCurrency):
		return http.StatusBadRequest
	case errors.Is(err, middleware.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainresources.ErrResourceNotFound),
		errors.Is(err, domainbooking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainbooking.ErrUnavailable),
		errors.Is(err, domainbooking.ErrInvalidState),
		errors.Is(err, domainbooking.ErrVersionConflict),
		errors.Is(err, mutation.ErrConflict),
		errors.Is(err, mutation.ErrSuperseded),
		errors.Is(err, mutation.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, domainbooking.ErrPricingFailed),
		errors.Is(err, domainpricing.ErrInvalidPricing),
		errors.Is(err, domainpricing.ErrNoStrategy):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainbooking.ErrReservationFailed),
		errors.Is(err, domainbooking.ErrPersistenceFailed),
		errors.Is(err, mutation.ErrApplyFailed),
		errors.Is(err, mutation.ErrLockUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errorCodes = map[int]string{
	http.StatusBadRequest:          "invalid_input",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusConflict:            "conflict",
	http.StatusUnprocessableEntity: "pricing_failed",
	http.StatusServiceUnavailable:  "unavailable",
	http.StatusInternalServerError: "internal",
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal error", "code": errorCodes[status]})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errorCodes[status]})
}

func principalFrom(c *gin.Context) string {
	if p := c.GetHeader(principalHeader); p != "" {
		return p
	}
	return "anonymous"
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseDates(raw []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(raw))
	for _, r := range raw {
		t, err := parseDate(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
