package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"travelbook/internal/app/availability"
	"travelbook/internal/app/mutation"
	"travelbook/internal/app/outbox"
	"travelbook/internal/app/pricing"
	domainavailability "travelbook/internal/domain/availability"
	domainbooking "travelbook/internal/domain/booking"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/events"
)

const (
	DefaultTimeout          = 10 * time.Second
	DefaultRollbackAttempts = 3
	defaultRollbackInterval = 50 * time.Millisecond
)

// Reserver is the write path into availability. The mutation coordinator implements it.
type Reserver interface {
	ApplyBulk(ctx context.Context, req mutation.BulkRequest) (mutation.Result, error)
	Restore(ctx context.Context, id domainresources.ResourceID, prior map[time.Time]*domainavailability.Record) error
}

// Request is the transient input of RequestBooking. End may be left zero for per-slot
// kinds, which book the single Start date.
type Request struct {
	BookingID  string
	ResourceID domainresources.ResourceID
	GuestID    string
	Start      time.Time
	End        time.Time
	PartySize  int
	Quantity   int
}

// Workflow turns booking requests into priced, conflict-free bookings and owns
// releasing their dates again.
type Workflow struct {
	Resources    domainresources.Repository
	Bookings     domainbooking.Repository
	Availability *availability.Service
	Pricing      *pricing.Service
	Reserver     Reserver
	Outbox       outbox.Outbox
	Encoder      outbox.EventEncoder
	Logger       *slog.Logger
	Metrics      Metrics

	Timeout          time.Duration
	RollbackAttempts int
	RollbackInterval time.Duration
	Now              func() time.Time
	NewID            func() string
}

// RequestBooking runs Validate, Price, Reserve and Persist under the workflow timeout.
// On failure no booking exists and no date is left booked by this attempt.
func (w *Workflow) RequestBooking(ctx context.Context, req Request) (*domainbooking.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout())
	defer cancel()

	b, err := w.requestBooking(ctx, req)
	w.metrics().CountBooking(outcomeOf(err))
	return b, err
}

func (w *Workflow) requestBooking(ctx context.Context, req Request) (*domainbooking.Booking, error) {
	resource, err := w.Resources.ByID(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if !resource.Active {
		return nil, fmt.Errorf("%w: resource %s is not active", domainbooking.ErrUnavailable, resource.ID)
	}
	dr, err := bookingRange(resource.Kind, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	quantity, err := partyBounds(resource, req.PartySize, req.Quantity)
	if err != nil {
		return nil, err
	}

	// Validate
	blocked, err := w.Availability.BlockedDays(ctx, resource.ID, dr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrReservationFailed, err)
	}
	if len(blocked) > 0 {
		return nil, fmt.Errorf("%w: %s", domainbooking.ErrUnavailable, joinDates(blocked))
	}

	// Price
	quote, err := w.Pricing.Quote(ctx, resource, dr, quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrPricingFailed, err)
	}

	id := req.BookingID
	if id == "" {
		id = w.newID()
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(id),
		ResourceID: resource.ID,
		Kind:       resource.Kind,
		GuestID:    req.GuestID,
		Range:      dr,
		PartySize:  req.PartySize,
		Quantity:   quantity,
		Quote:      quote,
		CreatedAt:  w.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrPricingFailed, err)
	}

	// Reserve
	reserved, err := w.Reserver.ApplyBulk(ctx, mutation.BulkRequest{
		ResourceID:   resource.ID,
		Kind:         resource.Kind,
		Dates:        dr.DayList(),
		Status:       domainavailability.StatusBooked,
		KeepOverride: true,
		Guard:        mutation.RequireStatus(domainavailability.StatusAvailable),
		Reason:       "booking:" + id,
	})
	if err != nil {
		if errors.Is(err, mutation.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", domainbooking.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrReservationFailed, err)
	}

	// Persist
	if err := ctx.Err(); err != nil {
		w.rollback(ctx, resource.ID, reserved.Prior, err)
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrReservationFailed, err)
	}
	if err := w.Bookings.Save(ctx, b); err != nil {
		w.rollback(ctx, resource.ID, reserved.Prior, err)
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrPersistenceFailed, err)
	}
	w.publish(ctx, b.Drain())

	w.log().Info("booking requested", "booking_id", b.ID, "resource_id", b.ResourceID, "total", b.TotalPrice.Amount, "currency", b.TotalPrice.Currency)
	return b, nil
}

// CancelBooking cancels a pending or confirmed booking and releases its dates.
func (w *Workflow) CancelBooking(ctx context.Context, id domainbooking.BookingID, reason string) (*domainbooking.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout())
	defer cancel()

	b, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Cancel(reason, w.now()); err != nil {
		return nil, err
	}
	if err := w.Bookings.Save(ctx, b); err != nil {
		if errors.Is(err, domainbooking.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: %w", domainbooking.ErrInvalidState, err)
		}
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrPersistenceFailed, err)
	}
	w.publish(ctx, b.Drain())

	w.release(ctx, b)
	w.log().Info("booking cancelled", "booking_id", b.ID, "resource_id", b.ResourceID, "reason", b.CancelReason)
	return b, nil
}

// ConfirmPayment applies the payment collaborator's confirmation.
func (w *Workflow) ConfirmPayment(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	b, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.ConfirmPayment(w.now()); err != nil {
		return nil, err
	}
	if err := w.Bookings.Save(ctx, b); err != nil {
		if errors.Is(err, domainbooking.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: %w", domainbooking.ErrInvalidState, err)
		}
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrPersistenceFailed, err)
	}
	w.publish(ctx, b.Drain())
	return b, nil
}

func (w *Workflow) GetBooking(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return w.load(ctx, id)
}

func (w *Workflow) load(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	b, err := w.Bookings.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainbooking.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrPersistenceFailed, err)
	}
	return b, nil
}

func (w *Workflow) publish(ctx context.Context, evs []events.DomainEvent) {
	if w.Outbox == nil || len(evs) == 0 {
		return
	}
	if err := outbox.RecordDomainEvents(ctx, w.Outbox, w.Encoder, evs); err != nil {
		w.log().Warn("booking events not recorded", "error", err)
	}
}

func bookingRange(kind domainresources.Kind, start, end time.Time) (daterange.DateRange, error) {
	if kind.PerSlot() && end.IsZero() {
		if start.IsZero() {
			return daterange.DateRange{}, domainbooking.ErrInvalidRange
		}
		return daterange.Single(start), nil
	}
	dr, err := daterange.New(start, end)
	if err != nil {
		return daterange.DateRange{}, err
	}
	if kind.PerSlot() && dr.Nights() != 1 {
		return daterange.DateRange{}, fmt.Errorf("%w: %s bookings cover a single date", domainbooking.ErrInvalidRange, kind)
	}
	return dr, nil
}

// partyBounds checks the party against capacity and resolves the priced quantity.
func partyBounds(resource *domainresources.Resource, partySize, quantity int) (int, error) {
	if partySize <= 0 || partySize > resource.Capacity {
		return 0, fmt.Errorf("%w: %d (capacity %d)", domainbooking.ErrInvalidPartySize, partySize, resource.Capacity)
	}
	if !resource.Kind.PerSlot() {
		return 1, nil
	}
	if quantity == 0 {
		quantity = partySize
	}
	if quantity < 0 || quantity > resource.Capacity {
		return 0, fmt.Errorf("%w: quantity %d (capacity %d)", domainbooking.ErrInvalidPartySize, quantity, resource.Capacity)
	}
	return quantity, nil
}

func (w *Workflow) timeout() time.Duration {
	if w.Timeout <= 0 {
		return DefaultTimeout
	}
	return w.Timeout
}

func (w *Workflow) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *Workflow) newID() string {
	if w.NewID != nil {
		return w.NewID()
	}
	return uuid.NewString()
}

func (w *Workflow) log() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

func (w *Workflow) metrics() Metrics {
	if w.Metrics == nil {
		return nopMetrics{}
	}
	return w.Metrics
}

func joinDates(dates []time.Time) string {
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, d.Format(time.DateOnly))
	}
	return strings.Join(parts, ",")
}
