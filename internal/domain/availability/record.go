package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/money"
)

var (
	ErrUnknownStatus    = errors.New("availability: unknown status")
	ErrNegativeOverride = errors.New("availability: price override cannot be negative")
)

type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusBooked      Status = "booked"
	StatusMaintenance Status = "maintenance"
	StatusBlocked     Status = "blocked"
)

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrUnknownStatus
	}
	return s, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusUnavailable, StatusBooked, StatusMaintenance, StatusBlocked:
		return true
	}
	return false
}

func (s Status) Sellable() bool {
	return s == StatusAvailable
}

// Record is the per-resource, per-date sellability entry. At most one exists per
// (ResourceID, Date); absence means available at the resource base price.
type Record struct {
	ResourceID    resources.ResourceID
	Kind          resources.Kind
	Date          time.Time
	Status        Status
	PriceOverride *money.Money
	UpdatedAt     time.Time
}

// SameState compares the observable fields, ignoring bookkeeping timestamps.
func (r Record) SameState(other Record) bool {
	if r.ResourceID != other.ResourceID || !r.Date.Equal(other.Date) || r.Status != other.Status {
		return false
	}
	switch {
	case r.PriceOverride == nil && other.PriceOverride == nil:
		return true
	case r.PriceOverride == nil || other.PriceOverride == nil:
		return false
	default:
		return *r.PriceOverride == *other.PriceOverride
	}
}

// Clone returns a copy that does not share the override pointer.
func (r Record) Clone() Record {
	if r.PriceOverride != nil {
		p := *r.PriceOverride
		r.PriceOverride = &p
	}
	return r
}

// Effective resolves status and price for a date, applying the open-world default
// when rec is nil.
func Effective(rec *Record, base money.Money) (Status, money.Money) {
	if rec == nil {
		return StatusAvailable, base
	}
	price := base
	if rec.PriceOverride != nil {
		price = *rec.PriceOverride
	}
	return rec.Status, price
}

// Store is the leaf persistence contract for availability records. It performs no
// business validation. A missing date is never an error: Get returns nil.
type Store interface {
	Get(ctx context.Context, id resources.ResourceID, date time.Time) (*Record, error)
	GetRange(ctx context.Context, id resources.ResourceID, dr daterange.DateRange) (map[time.Time]Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id resources.ResourceID, date time.Time) error
	ListByStatus(ctx context.Context, status Status) ([]Record, error)
}
