package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"travelbook/internal/app/mutation"
	domainavailability "travelbook/internal/domain/availability"
	domainbooking "travelbook/internal/domain/booking"
	domainresources "travelbook/internal/domain/resources"
)

// ExpirePending cancels bookings still awaiting payment after ttl. It returns how many
// were cancelled. A booking that cannot be cancelled is logged and skipped; the
// failures are joined into the returned error once the sweep is done.
func (w *Workflow) ExpirePending(ctx context.Context, ttl time.Duration) (int, error) {
	pending, err := w.Bookings.ListByStatus(ctx, domainbooking.StatusPending)
	if err != nil {
		return 0, err
	}
	cutoff := w.now().Add(-ttl)
	expired := 0
	var errs []error
	for _, b := range pending {
		if b.PaymentStatus != domainbooking.PaymentPending || b.CreatedAt.After(cutoff) {
			continue
		}
		if _, err := w.CancelBooking(ctx, b.ID, domainbooking.ReasonTimeout); err != nil {
			if errors.Is(err, domainbooking.ErrInvalidState) {
				continue
			}
			w.log().Error("pending booking not expired", "booking_id", b.ID, "resource_id", b.ResourceID, "error", err)
			errs = append(errs, fmt.Errorf("expire %s: %w", b.ID, err))
			continue
		}
		expired++
	}
	w.metrics().CountRepairs("expire_pending", expired)
	if len(errs) > 0 {
		w.metrics().CountRepairs("expire_pending_failed", len(errs))
	}
	return expired, errors.Join(errs...)
}

// Reconcile releases booked dates that no active booking covers. Records touched within
// grace are skipped, and the same check is repeated under the resource lock so a date
// re-reserved by an in-flight request is never released.
func (w *Workflow) Reconcile(ctx context.Context, grace time.Duration) (int, error) {
	booked, err := w.Availability.Store.ListByStatus(ctx, domainavailability.StatusBooked)
	if err != nil {
		return 0, err
	}
	cutoff := w.now().Add(-grace)
	guard := mutation.AllOf(
		mutation.RequireStatus(domainavailability.StatusBooked),
		mutation.UnchangedSince(cutoff),
	)
	covered := make(map[domainresources.ResourceID][]*domainbooking.Booking)
	released := 0
	for _, rec := range booked {
		if rec.UpdatedAt.After(cutoff) {
			continue
		}
		active, ok := covered[rec.ResourceID]
		if !ok {
			active, err = w.activeBookings(ctx, rec.ResourceID)
			if err != nil {
				return released, err
			}
			covered[rec.ResourceID] = active
		}
		if coveredBy(active, rec.Date) {
			continue
		}
		_, err := w.Reserver.ApplyBulk(ctx, mutation.BulkRequest{
			ResourceID:   rec.ResourceID,
			Kind:         rec.Kind,
			Dates:        []time.Time{rec.Date},
			Status:       domainavailability.StatusAvailable,
			KeepOverride: true,
			Guard:        guard,
			Reason:       "reconcile",
		})
		if errors.Is(err, mutation.ErrConflict) {
			continue
		}
		if err != nil {
			return released, err
		}
		released++
		w.log().Warn("released orphaned booked date", "resource_id", rec.ResourceID, "date", rec.Date.Format(time.DateOnly))
	}
	w.metrics().CountRepairs("reconcile", released)
	return released, nil
}

func (w *Workflow) activeBookings(ctx context.Context, id domainresources.ResourceID) ([]*domainbooking.Booking, error) {
	all, err := w.Bookings.ListByResource(ctx, id)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(b *domainbooking.Booking) bool { return !b.IsActive() }), nil
}

func coveredBy(bookings []*domainbooking.Booking, day time.Time) bool {
	for _, b := range bookings {
		if b.Range.ContainsDate(day) {
			return true
		}
	}
	return false
}

func sortDates(dates []time.Time) {
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
}
