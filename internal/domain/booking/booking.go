package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"travelbook/internal/domain/pricing"
	"travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/events"
	"travelbook/internal/domain/shared/money"
)

type BookingID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

const (
	ReasonGuest   = "guest"
	ReasonTimeout = "timeout"
)

type Booking struct {
	ID            BookingID
	ResourceID    resources.ResourceID
	Kind          resources.Kind
	GuestID       string
	Range         daterange.DateRange
	PartySize     int
	Quantity      int
	Quote         pricing.Quote
	TotalPrice    money.Money
	Status        Status
	PaymentStatus PaymentStatus
	CancelReason  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, b *Booking) error
	ListByResource(ctx context.Context, id resources.ResourceID) ([]*Booking, error)
	ListByStatus(ctx context.Context, status Status) ([]*Booking, error)
}

type CreateParams struct {
	ID         BookingID
	ResourceID resources.ResourceID
	Kind       resources.Kind
	GuestID    string
	Range      daterange.DateRange
	PartySize  int
	Quantity   int
	Quote      pricing.Quote
	CreatedAt  time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("booking: id required")
	}
	if params.PartySize <= 0 {
		return nil, ErrInvalidPartySize
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if !params.Quote.Total.IsPositive() {
		return nil, pricing.ErrInvalidPricing
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:            params.ID,
		ResourceID:    params.ResourceID,
		Kind:          params.Kind,
		GuestID:       params.GuestID,
		Range:         params.Range,
		PartySize:     params.PartySize,
		Quantity:      params.Quantity,
		Quote:         params.Quote.Copy(),
		TotalPrice:    params.Quote.Total,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.Record(Requested{BookingID: b.ID, ResourceID: b.ResourceID, GuestID: b.GuestID, Range: b.Range, PartySize: b.PartySize, Total: b.TotalPrice, At: now})
	return b, nil
}

// IsActive reports whether the booking still holds its dates.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// ConfirmPayment applies the external payment confirmation: pending/pending becomes
// confirmed/paid.
func (b *Booking) ConfirmPayment(now time.Time) error {
	if b.Status != StatusPending || b.PaymentStatus != PaymentPending {
		return ErrInvalidState
	}
	b.Status = StatusConfirmed
	b.PaymentStatus = PaymentPaid
	b.UpdatedAt = now.UTC()
	b.Record(Confirmed{BookingID: b.ID, ResourceID: b.ResourceID, Total: b.TotalPrice, At: b.UpdatedAt})
	return nil
}

// Cancel moves an active booking to cancelled. Releasing its dates is the caller's
// compensating action.
func (b *Booking) Cancel(reason string, now time.Time) error {
	if !b.IsActive() {
		return ErrInvalidState
	}
	if reason == "" {
		reason = ReasonGuest
	}
	b.Status = StatusCancelled
	if b.PaymentStatus == PaymentPaid {
		b.PaymentStatus = PaymentRefunded
	}
	b.CancelReason = reason
	b.UpdatedAt = now.UTC()
	b.Record(Cancelled{BookingID: b.ID, ResourceID: b.ResourceID, Range: b.Range, Reason: reason, PaymentStatus: b.PaymentStatus, At: b.UpdatedAt})
	return nil
}

// Snapshot copies the booking without its pending events.
func (b *Booking) Snapshot() *Booking {
	clone := &Booking{
		ID:            b.ID,
		ResourceID:    b.ResourceID,
		Kind:          b.Kind,
		GuestID:       b.GuestID,
		Range:         b.Range,
		PartySize:     b.PartySize,
		Quantity:      b.Quantity,
		Quote:         b.Quote.Copy(),
		TotalPrice:    b.TotalPrice,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		CancelReason:  b.CancelReason,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
		Version:       b.Version,
	}
	return clone
}
