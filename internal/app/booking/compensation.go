package booking

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"travelbook/internal/app/mutation"
	domainavailability "travelbook/internal/domain/availability"
	domainbooking "travelbook/internal/domain/booking"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/events"
)

// rollback restores dates reserved by a failed attempt. It is retried a bounded
// number of times; exhausting them is reported as an inconsistency and never
// returned to the caller.
func (w *Workflow) rollback(ctx context.Context, id domainresources.ResourceID, prior map[time.Time]*domainavailability.Record, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout())
	defer cancel()

	err := w.retry(ctx, func() error {
		return w.Reserver.Restore(ctx, id, prior)
	})
	if err == nil {
		w.metrics().CountRollback("restored")
		w.log().Warn("reservation rolled back", "resource_id", id, "dates", len(prior), "cause", cause)
		return
	}
	w.inconsistent(ctx, id, datesOf(prior), err)
}

// release returns a cancelled booking's dates to available. Failures are left for the
// reconciliation audit.
func (w *Workflow) release(ctx context.Context, b *domainbooking.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout())
	defer cancel()

	req := mutation.BulkRequest{
		ResourceID:   b.ResourceID,
		Kind:         b.Kind,
		Dates:        b.Range.DayList(),
		Status:       domainavailability.StatusAvailable,
		KeepOverride: true,
		Reason:       "release:" + string(b.ID),
	}
	err := w.retry(ctx, func() error {
		_, err := w.Reserver.ApplyBulk(ctx, req)
		return err
	})
	if err == nil {
		w.metrics().CountRollback("released")
		return
	}
	w.inconsistent(ctx, b.ResourceID, req.Dates, err)
}

func (w *Workflow) retry(ctx context.Context, op func() error) error {
	attempts := w.RollbackAttempts
	if attempts <= 0 {
		attempts = DefaultRollbackAttempts
	}
	interval := w.RollbackInterval
	if interval <= 0 {
		interval = defaultRollbackInterval
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = interval
	policy.MaxInterval = 20 * interval
	policy.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx))
}

func (w *Workflow) inconsistent(ctx context.Context, id domainresources.ResourceID, dates []time.Time, err error) {
	w.metrics().CountRollback("exhausted")
	w.log().Error("availability inconsistency",
		"resource_id", id,
		"dates", joinDates(dates),
		"error", err)
	w.publish(ctx, []events.DomainEvent{domainavailability.InconsistencyEvent(id, dates, err.Error(), w.now())})
}

func datesOf(prior map[time.Time]*domainavailability.Record) []time.Time {
	dates := make([]time.Time, 0, len(prior))
	for d := range prior {
		dates = append(dates, d)
	}
	sortDates(dates)
	return dates
}
