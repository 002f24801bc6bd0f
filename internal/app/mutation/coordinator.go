package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"travelbook/internal/app/outbox"
	domainavailability "travelbook/internal/domain/availability"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/events"
	"travelbook/internal/domain/shared/money"
)

var (
	ErrNoDates         = errors.New("mutation: at least one date required")
	ErrMissingResource = errors.New("mutation: resource id required")
	ErrConflict        = errors.New("mutation: date state conflicts with request")
	ErrApplyFailed     = errors.New("mutation: bulk apply failed")
	ErrLockUnavailable = errors.New("mutation: resource lock unavailable")
)

// Guard inspects the current record of a date while the resource lock is held; nil
// means the date has no record. A non-nil error rejects the whole batch before
// anything is written.
type Guard func(day time.Time, current *domainavailability.Record) error

// RequireStatus admits only dates whose effective status is s.
func RequireStatus(s domainavailability.Status) Guard {
	return func(day time.Time, current *domainavailability.Record) error {
		if status := effectiveStatus(current); status != s {
			return fmt.Errorf("%w: %s is %s", ErrConflict, day.Format(time.DateOnly), status)
		}
		return nil
	}
}

// ExcludeStatus rejects dates whose effective status is s.
func ExcludeStatus(s domainavailability.Status) Guard {
	return func(day time.Time, current *domainavailability.Record) error {
		if status := effectiveStatus(current); status == s {
			return fmt.Errorf("%w: %s is %s", ErrConflict, day.Format(time.DateOnly), status)
		}
		return nil
	}
}

// UnchangedSince rejects dates whose record was written after cutoff.
func UnchangedSince(cutoff time.Time) Guard {
	return func(day time.Time, current *domainavailability.Record) error {
		if current != nil && current.UpdatedAt.After(cutoff) {
			return fmt.Errorf("%w: %s changed at %s", ErrConflict, day.Format(time.DateOnly), current.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	}
}

// AllOf admits a date only when every guard does.
func AllOf(guards ...Guard) Guard {
	return func(day time.Time, current *domainavailability.Record) error {
		for _, g := range guards {
			if err := g(day, current); err != nil {
				return err
			}
		}
		return nil
	}
}

func effectiveStatus(rec *domainavailability.Record) domainavailability.Status {
	status, _ := domainavailability.Effective(rec, money.Money{})
	return status
}

// BulkRequest is one logical write touching one or many dates of a single resource.
type BulkRequest struct {
	ResourceID    domainresources.ResourceID
	Kind          domainresources.Kind
	Dates         []time.Time
	Status        domainavailability.Status
	PriceOverride *money.Money
	// KeepOverride carries an existing price override over when PriceOverride is nil.
	KeepOverride bool
	Guard        Guard
	Reason       string
}

// Result describes an applied batch. Prior holds each date's record before the
// write; a nil entry means the date had no record.
type Result struct {
	ResourceID domainresources.ResourceID
	Dates      []time.Time
	Status     domainavailability.Status
	Changed    int
	Prior      map[time.Time]*domainavailability.Record
}

// Coordinator is the only writer of availability records. Writes for one resource are
// totally ordered by the Locker.
type Coordinator struct {
	Store   domainavailability.Store
	Locker  Locker
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Metrics Metrics
	Now     func() time.Time
}

func NewCoordinator(store domainavailability.Store, locker Locker, box outbox.Outbox, logger *slog.Logger) *Coordinator {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Coordinator{Store: store, Locker: locker, Outbox: box, Logger: logger}
}

// ApplyBulk validates every date up front, then writes them under the resource lock.
// If any write fails the dates already written are restored and a single aggregated
// error is returned.
func (c *Coordinator) ApplyBulk(ctx context.Context, req BulkRequest) (Result, error) {
	dates, err := normalize(req)
	if err != nil {
		c.metrics().CountBulk(OutcomeRejected)
		return Result{}, err
	}
	unlock, err := c.lock(ctx, req.ResourceID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	return c.applyLocked(ctx, req, dates)
}

// Restore puts every date back to the given prior state, deleting dates that had no
// record. It takes the resource lock like any other write.
func (c *Coordinator) Restore(ctx context.Context, id domainresources.ResourceID, prior map[time.Time]*domainavailability.Record) error {
	if len(prior) == 0 {
		return nil
	}
	unlock, err := c.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	return c.restoreLocked(ctx, id, prior)
}

func (c *Coordinator) applyLocked(ctx context.Context, req BulkRequest, dates []time.Time) (Result, error) {
	span := daterange.DateRange{Start: dates[0], End: dates[len(dates)-1].AddDate(0, 0, 1)}
	current, err := c.Store.GetRange(ctx, req.ResourceID, span)
	if err != nil {
		c.metrics().CountBulk(OutcomeFailed)
		return Result{}, fmt.Errorf("%w: read current state: %w", ErrApplyFailed, err)
	}

	prior := make(map[time.Time]*domainavailability.Record, len(dates))
	for _, d := range dates {
		var rec *domainavailability.Record
		if found, ok := current[d]; ok {
			clone := found.Clone()
			rec = &clone
		}
		prior[d] = rec
		if req.Guard != nil {
			if err := req.Guard(d, rec); err != nil {
				c.metrics().CountBulk(OutcomeRejected)
				return Result{}, err
			}
		}
	}

	now := c.now()
	written := make(map[time.Time]*domainavailability.Record, len(dates))
	changed := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		next := target(req, d, prior[d], now)
		if prior[d] != nil && prior[d].SameState(next) {
			continue
		}
		if err := c.Store.Put(ctx, next); err != nil {
			restoreErr := c.restoreLocked(context.WithoutCancel(ctx), req.ResourceID, written)
			c.metrics().CountBulk(OutcomeFailed)
			if restoreErr != nil {
				c.log().Error("availability inconsistency",
					"resource_id", req.ResourceID,
					"dates", formatDates(keys(written)),
					"error", restoreErr)
			}
			return Result{}, fmt.Errorf("%w: %s: %w", ErrApplyFailed, d.Format(time.DateOnly), errors.Join(err, restoreErr))
		}
		written[d] = prior[d]
		changed = append(changed, d)
	}

	res := Result{ResourceID: req.ResourceID, Dates: dates, Status: req.Status, Changed: len(changed), Prior: prior}
	if len(changed) == 0 {
		c.metrics().CountBulk(OutcomeNoop)
		return res, nil
	}
	c.metrics().CountBulk(OutcomeApplied)
	c.publish(ctx, domainavailability.UpdatedEvent(req.ResourceID, changed, req.Status, req.Reason, now))
	return res, nil
}

func (c *Coordinator) restoreLocked(ctx context.Context, id domainresources.ResourceID, prior map[time.Time]*domainavailability.Record) error {
	var errs []error
	for d, rec := range prior {
		var err error
		if rec == nil {
			err = c.Store.Delete(ctx, id, d)
		} else {
			err = c.Store.Put(ctx, rec.Clone())
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", d.Format(time.DateOnly), err))
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) lock(ctx context.Context, id domainresources.ResourceID) (func(), error) {
	started := time.Now()
	unlock, err := c.Locker.Lock(ctx, "availability:"+string(id))
	c.metrics().ObserveLockWait(time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLockUnavailable, id, err)
	}
	return unlock, nil
}

func (c *Coordinator) publish(ctx context.Context, ev events.DomainEvent) {
	if c.Outbox == nil {
		return
	}
	if err := outbox.RecordDomainEvents(ctx, c.Outbox, c.Encoder, []events.DomainEvent{ev}); err != nil {
		c.log().Warn("availability event not recorded", "event", ev.EventName(), "resource_id", ev.AggregateID(), "error", err)
	}
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Coordinator) metrics() Metrics {
	if c.Metrics == nil {
		return nopMetrics{}
	}
	return c.Metrics
}

func (c *Coordinator) log() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func normalize(req BulkRequest) ([]time.Time, error) {
	if req.ResourceID == "" {
		return nil, ErrMissingResource
	}
	if len(req.Dates) == 0 {
		return nil, ErrNoDates
	}
	if !req.Status.Valid() {
		return nil, domainavailability.ErrUnknownStatus
	}
	if req.PriceOverride != nil && req.PriceOverride.Amount < 0 {
		return nil, domainavailability.ErrNegativeOverride
	}
	dates := make([]time.Time, 0, len(req.Dates))
	for _, d := range req.Dates {
		if d.IsZero() {
			return nil, fmt.Errorf("%w: zero date", daterange.ErrInvalidRange)
		}
		dates = append(dates, daterange.Day(d))
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(dates, func(a, b time.Time) bool { return a.Equal(b) }), nil
}

func target(req BulkRequest, day time.Time, prior *domainavailability.Record, now time.Time) domainavailability.Record {
	rec := domainavailability.Record{
		ResourceID: req.ResourceID,
		Kind:       req.Kind,
		Date:       day,
		Status:     req.Status,
		UpdatedAt:  now,
	}
	switch {
	case req.PriceOverride != nil:
		p := *req.PriceOverride
		rec.PriceOverride = &p
	case req.KeepOverride && prior != nil && prior.PriceOverride != nil:
		p := *prior.PriceOverride
		rec.PriceOverride = &p
	}
	if rec.Kind == "" && prior != nil {
		rec.Kind = prior.Kind
	}
	return rec
}

func keys(m map[time.Time]*domainavailability.Record) []time.Time {
	out := make([]time.Time, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

func formatDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(time.DateOnly))
	}
	return out
}
