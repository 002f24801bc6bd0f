package booking

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelbook/internal/app/availability"
	"travelbook/internal/app/mutation"
	"travelbook/internal/app/pricing"
	domainavailability "travelbook/internal/domain/availability"
	domainbooking "travelbook/internal/domain/booking"
	domainpricing "travelbook/internal/domain/pricing"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/money"
	"travelbook/internal/infra/storage/memory"
)

var day1 = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

const feeTotal = 60 + 25

var errInjected = errors.New("injected fault")

// faultyStore wraps the memory store with switchable failures.
type faultyStore struct {
	*memory.AvailabilityStore
	failPutOn time.Time
	broken    atomic.Bool
}

func (s *faultyStore) Put(ctx context.Context, rec domainavailability.Record) error {
	if s.broken.Load() || rec.Date.Equal(s.failPutOn) {
		return errInjected
	}
	return s.AvailabilityStore.Put(ctx, rec)
}

func (s *faultyStore) Delete(ctx context.Context, id domainresources.ResourceID, date time.Time) error {
	if s.broken.Load() {
		return errInjected
	}
	return s.AvailabilityStore.Delete(ctx, id, date)
}

// failingBookings fails every Save, optionally breaking the store first.
type failingBookings struct {
	*memory.BookingRepository
	breakStore *faultyStore
	block      bool
}

func (r *failingBookings) Save(ctx context.Context, b *domainbooking.Booking) error {
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if r.breakStore != nil {
		r.breakStore.broken.Store(true)
	}
	return errInjected
}

// saveFailsFor fails Save for a single booking.
type saveFailsFor struct {
	*memory.BookingRepository
	id domainbooking.BookingID
}

func (r *saveFailsFor) Save(ctx context.Context, b *domainbooking.Booking) error {
	if b.ID == r.id {
		return errInjected
	}
	return r.BookingRepository.Save(ctx, b)
}

// listHook runs before once, ahead of the first ListByResource call.
type listHook struct {
	*memory.BookingRepository
	before func()
	fired  bool
}

func (r *listHook) ListByResource(ctx context.Context, id domainresources.ResourceID) ([]*domainbooking.Booking, error) {
	if !r.fired && r.before != nil {
		r.fired = true
		r.before()
	}
	return r.BookingRepository.ListByResource(ctx, id)
}

type fixture struct {
	wf       *Workflow
	store    *faultyStore
	bookings *memory.BookingRepository
	box      *memory.Outbox
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	resources := memory.NewResourceRepository()
	require.NoError(t, resources.Save(ctx, &domainresources.Resource{ID: "villa", Kind: domainresources.KindLodging, Name: "Villa", BasePrice: money.Must(500, "USD"), Capacity: 4, Active: true}))
	require.NoError(t, resources.Save(ctx, &domainresources.Resource{ID: "walk", Kind: domainresources.KindTour, Name: "Old town walk", BasePrice: money.Must(40, "USD"), Capacity: 10, Active: true}))
	require.NoError(t, resources.Save(ctx, &domainresources.Resource{ID: "closed", Kind: domainresources.KindLodging, Name: "Closed", BasePrice: money.Must(500, "USD"), Capacity: 4}))

	store := &faultyStore{AvailabilityStore: memory.NewAvailabilityStore()}
	bookings := memory.NewBookingRepository()
	box := memory.NewOutbox()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	calc := domainpricing.NewCalculator(domainpricing.FixedFees{Cleaning: money.Must(60, "USD"), Service: money.Must(25, "USD")})

	wf := &Workflow{
		Resources:        resources,
		Bookings:         bookings,
		Availability:     availability.NewService(resources, store),
		Pricing:          pricing.NewService(resources, store, calc),
		Reserver:         mutation.NewCoordinator(store, nil, box, logger),
		Outbox:           box,
		Logger:           logger,
		RollbackAttempts: 3,
		RollbackInterval: time.Millisecond,
	}
	return &fixture{wf: wf, store: store, bookings: bookings, box: box, logs: logs}
}

func (f *fixture) available(t *testing.T, id domainresources.ResourceID, start, end time.Time) bool {
	t.Helper()
	ok, err := f.wf.Availability.IsRangeAvailable(context.Background(), id, start, end)
	require.NoError(t, err)
	return ok
}

func (f *fixture) status(t *testing.T, d time.Time) domainavailability.Status {
	t.Helper()
	rec, err := f.store.Get(context.Background(), "villa", d)
	require.NoError(t, err)
	status, _ := domainavailability.Effective(rec, money.Money{})
	return status
}

func stay(nights int) Request {
	return Request{ResourceID: "villa", GuestID: "guest-1", Start: day1, End: day1.AddDate(0, 0, nights), PartySize: 2}
}

func TestRequestBookingBooksDatesAndPrices(t *testing.T) {
	f := newFixture(t)
	b, err := f.wf.RequestBooking(context.Background(), stay(3))
	require.NoError(t, err)

	assert.Equal(t, domainbooking.StatusPending, b.Status)
	assert.Equal(t, domainbooking.PaymentPending, b.PaymentStatus)
	assert.Equal(t, int64(1500+feeTotal), b.TotalPrice.Amount)
	for i := 0; i < 3; i++ {
		assert.Equal(t, domainavailability.StatusBooked, f.status(t, day1.AddDate(0, 0, i)))
	}
	assert.Equal(t, domainavailability.StatusAvailable, f.status(t, day1.AddDate(0, 0, 3)))

	stored, err := f.bookings.ByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.TotalPrice, stored.TotalPrice)
	assert.Contains(t, f.box.Names(), "booking.requested")
	assert.Contains(t, f.box.Names(), "availability.updated")
}

func TestRequestBookingAppliesOverride(t *testing.T) {
	f := newFixture(t)
	override := money.Must(800, "USD")
	require.NoError(t, f.store.Put(context.Background(), domainavailability.Record{ResourceID: "villa", Date: day1.AddDate(0, 0, 1), Status: domainavailability.StatusAvailable, PriceOverride: &override}))

	b, err := f.wf.RequestBooking(context.Background(), stay(3))
	require.NoError(t, err)
	assert.Equal(t, int64(500+800+500+feeTotal), b.TotalPrice.Amount)

	rec, err := f.store.Get(context.Background(), "villa", day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NotNil(t, rec.PriceOverride)
	assert.Equal(t, override, *rec.PriceOverride)
}

func TestRequestBookingValidationFailuresHaveNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, domainavailability.Record{ResourceID: "villa", Date: day1.AddDate(0, 0, 2), Status: domainavailability.StatusMaintenance}))

	_, err := f.wf.RequestBooking(ctx, stay(3))
	assert.ErrorIs(t, err, domainbooking.ErrUnavailable)

	_, err = f.wf.RequestBooking(ctx, Request{ResourceID: "villa", Start: day1, End: day1, PartySize: 2})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidRange)

	_, err = f.wf.RequestBooking(ctx, Request{ResourceID: "villa", Start: day1, End: day1.AddDate(0, 0, 1), PartySize: 5})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidPartySize)

	_, err = f.wf.RequestBooking(ctx, Request{ResourceID: "closed", Start: day1, End: day1.AddDate(0, 0, 1), PartySize: 1})
	assert.ErrorIs(t, err, domainbooking.ErrUnavailable)

	_, err = f.wf.RequestBooking(ctx, Request{ResourceID: "ghost", Start: day1, End: day1.AddDate(0, 0, 1), PartySize: 1})
	assert.ErrorIs(t, err, domainresources.ErrResourceNotFound)

	booked, err := f.store.ListByStatus(ctx, domainavailability.StatusBooked)
	require.NoError(t, err)
	assert.Empty(t, booked)
	all, err := f.bookings.ListByResource(ctx, "villa")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRequestBookingPricingFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	free := money.Must(0, "USD")
	require.NoError(t, f.store.Put(ctx, domainavailability.Record{ResourceID: "walk", Date: day1, Status: domainavailability.StatusAvailable, PriceOverride: &free}))

	_, err := f.wf.RequestBooking(ctx, Request{ResourceID: "walk", Start: day1, PartySize: 2})
	assert.ErrorIs(t, err, domainbooking.ErrPricingFailed)
	assert.ErrorIs(t, err, domainpricing.ErrInvalidPricing)

	rec, err := f.store.Get(ctx, "walk", day1)
	require.NoError(t, err)
	assert.Equal(t, domainavailability.StatusAvailable, rec.Status)
}

func TestRequestBookingPerSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.wf.RequestBooking(ctx, Request{ResourceID: "walk", GuestID: "g", Start: day1.Add(9 * time.Hour), PartySize: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, b.Quantity)
	assert.Equal(t, int64(120), b.TotalPrice.Amount)
	assert.Empty(t, b.Quote.Fees)
	assert.False(t, f.available(t, "walk", day1, day1.AddDate(0, 0, 1)))

	_, err = f.wf.RequestBooking(ctx, Request{ResourceID: "walk", Start: day1.AddDate(0, 0, 1), End: day1.AddDate(0, 0, 3), PartySize: 1})
	assert.ErrorIs(t, err, domainbooking.ErrInvalidRange)
}

func TestRequestBookingRollsBackWhenPersistFails(t *testing.T) {
	f := newFixture(t)
	override := money.Must(800, "USD")
	require.NoError(t, f.store.Put(context.Background(), domainavailability.Record{ResourceID: "villa", Date: day1, Status: domainavailability.StatusAvailable, PriceOverride: &override}))
	f.wf.Bookings = &failingBookings{BookingRepository: f.bookings}

	_, err := f.wf.RequestBooking(context.Background(), stay(3))
	assert.ErrorIs(t, err, domainbooking.ErrPersistenceFailed)

	assert.True(t, f.available(t, "villa", day1, day1.AddDate(0, 0, 3)))
	all, err := f.bookings.ListByResource(context.Background(), "villa")
	require.NoError(t, err)
	assert.Empty(t, all)

	rec, err := f.store.Get(context.Background(), "villa", day1)
	require.NoError(t, err)
	require.NotNil(t, rec.PriceOverride)
	assert.Equal(t, override, *rec.PriceOverride)
	next, err := f.store.Get(context.Background(), "villa", day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestRequestBookingReserveFailureLeavesNothingBooked(t *testing.T) {
	f := newFixture(t)
	f.store.failPutOn = day1.AddDate(0, 0, 2)

	_, err := f.wf.RequestBooking(context.Background(), stay(3))
	assert.ErrorIs(t, err, domainbooking.ErrReservationFailed)
	assert.True(t, f.available(t, "villa", day1, day1.AddDate(0, 0, 3)))
}

func TestRequestBookingRollbackExhaustionIsReported(t *testing.T) {
	f := newFixture(t)
	f.wf.Bookings = &failingBookings{BookingRepository: f.bookings, breakStore: f.store}

	_, err := f.wf.RequestBooking(context.Background(), stay(2))
	assert.ErrorIs(t, err, domainbooking.ErrPersistenceFailed)
	assert.Contains(t, f.logs.String(), "availability inconsistency")
	assert.Contains(t, f.box.Names(), "availability.inconsistency_detected")
}

func TestRequestBookingTimeoutRollsBack(t *testing.T) {
	f := newFixture(t)
	f.wf.Timeout = 50 * time.Millisecond
	f.wf.Bookings = &failingBookings{BookingRepository: f.bookings, block: true}

	_, err := f.wf.RequestBooking(context.Background(), stay(2))
	assert.ErrorIs(t, err, domainbooking.ErrPersistenceFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, f.available(t, "villa", day1, day1.AddDate(0, 0, 2)))
}

func TestConcurrentRequestsForSameDatesYieldOneBooking(t *testing.T) {
	f := newFixture(t)
	const n = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := Request{ResourceID: "villa", GuestID: "g", Start: day1.AddDate(0, 0, i%2), End: day1.AddDate(0, 0, 3), PartySize: 1}
			_, err := f.wf.RequestBooking(context.Background(), req)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domainbooking.ErrUnavailable):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(n-1), rejected.Load())

	all, err := f.bookings.ListByResource(context.Background(), "villa")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCancelBookingReleasesDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.wf.RequestBooking(ctx, stay(3))
	require.NoError(t, err)

	cancelled, err := f.wf.CancelBooking(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCancelled, cancelled.Status)
	assert.Equal(t, domainbooking.ReasonGuest, cancelled.CancelReason)
	for i := 0; i < 3; i++ {
		assert.Equal(t, domainavailability.StatusAvailable, f.status(t, day1.AddDate(0, 0, i)))
	}

	_, err = f.wf.CancelBooking(ctx, b.ID, "")
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)
	_, err = f.wf.CancelBooking(ctx, "missing", "")
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)

	again, err := f.wf.RequestBooking(ctx, stay(3))
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, again.ID)
}

func TestConfirmPaymentThenCancelRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.wf.RequestBooking(ctx, stay(1))
	require.NoError(t, err)

	confirmed, err := f.wf.ConfirmPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, confirmed.Status)
	assert.Equal(t, domainbooking.PaymentPaid, confirmed.PaymentStatus)

	_, err = f.wf.ConfirmPayment(ctx, b.ID)
	assert.ErrorIs(t, err, domainbooking.ErrInvalidState)

	cancelled, err := f.wf.CancelBooking(ctx, b.ID, "guest")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.PaymentRefunded, cancelled.PaymentStatus)
	assert.True(t, f.available(t, "villa", day1, day1.AddDate(0, 0, 1)))
}

func TestExpirePendingCancelsStaleBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	f.wf.Now = func() time.Time { return now }

	stale, err := f.wf.RequestBooking(ctx, stay(2))
	require.NoError(t, err)
	paid, err := f.wf.RequestBooking(ctx, Request{ResourceID: "villa", GuestID: "g", Start: day1.AddDate(0, 0, 5), End: day1.AddDate(0, 0, 6), PartySize: 1})
	require.NoError(t, err)
	_, err = f.wf.ConfirmPayment(ctx, paid.ID)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	fresh, err := f.wf.RequestBooking(ctx, Request{ResourceID: "villa", GuestID: "g", Start: day1.AddDate(0, 0, 8), End: day1.AddDate(0, 0, 9), PartySize: 1})
	require.NoError(t, err)

	n, err := f.wf.ExpirePending(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.wf.GetBooking(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCancelled, got.Status)
	assert.Equal(t, domainbooking.ReasonTimeout, got.CancelReason)
	assert.True(t, f.available(t, "villa", day1, day1.AddDate(0, 0, 2)))

	got, err = f.wf.GetBooking(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusPending, got.Status)
}

func TestReconcileReleasesOrphanedDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.wf.RequestBooking(ctx, stay(2))
	require.NoError(t, err)
	orphan := day1.AddDate(0, 0, 10)
	require.NoError(t, f.store.Put(ctx, domainavailability.Record{ResourceID: "villa", Date: orphan, Status: domainavailability.StatusBooked, UpdatedAt: time.Now().Add(-2 * time.Hour)}))
	recent := day1.AddDate(0, 0, 12)
	require.NoError(t, f.store.Put(ctx, domainavailability.Record{ResourceID: "villa", Date: recent, Status: domainavailability.StatusBooked, UpdatedAt: time.Now().Add(time.Hour)}))

	f.wf.Now = func() time.Time { return time.Now().Add(30 * time.Minute) }
	n, err := f.wf.Reconcile(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domainavailability.StatusAvailable, f.status(t, orphan))
	assert.Equal(t, domainavailability.StatusBooked, f.status(t, recent))
	assert.False(t, f.available(t, "villa", b.Range.Start, b.Range.End))
}

func TestReconcileKeepsDatesReReservedAfterScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coord := f.wf.Reserver.(*mutation.Coordinator)
	clock := time.Now().UTC()
	coord.Now = func() time.Time { return clock }
	f.wf.Now = func() time.Time { return clock }

	first, err := f.wf.RequestBooking(ctx, stay(2))
	require.NoError(t, err)
	clock = clock.Add(time.Hour)

	// Between the scan and the lock: the first booking is cancelled and a second
	// request reserves the same nights but has not been saved yet.
	f.wf.Bookings = &listHook{BookingRepository: f.bookings, before: func() {
		_, err := f.wf.CancelBooking(ctx, first.ID, domainbooking.ReasonGuest)
		require.NoError(t, err)
		_, err = coord.ApplyBulk(ctx, mutation.BulkRequest{
			ResourceID: "villa",
			Kind:       domainresources.KindLodging,
			Dates:      first.Range.DayList(),
			Status:     domainavailability.StatusBooked,
			Guard:      mutation.RequireStatus(domainavailability.StatusAvailable),
			Reason:     "reserve:second",
		})
		require.NoError(t, err)
	}}

	n, err := f.wf.Reconcile(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	for _, d := range first.Range.DayList() {
		assert.Equal(t, domainavailability.StatusBooked, f.status(t, d))
	}
}

func TestExpirePendingContinuesPastFailedBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	f.wf.Now = func() time.Time { return now }

	stuck, err := f.wf.RequestBooking(ctx, stay(2))
	require.NoError(t, err)
	other, err := f.wf.RequestBooking(ctx, Request{ResourceID: "villa", GuestID: "g", Start: day1.AddDate(0, 0, 5), End: day1.AddDate(0, 0, 7), PartySize: 1})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	f.wf.Bookings = &saveFailsFor{BookingRepository: f.bookings, id: stuck.ID}
	n, err := f.wf.ExpirePending(ctx, 30*time.Minute)
	assert.ErrorIs(t, err, domainbooking.ErrPersistenceFailed)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, 1, n)

	got, err := f.wf.GetBooking(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCancelled, got.Status)
	assert.True(t, f.available(t, "villa", other.Range.Start, other.Range.End))

	got, err = f.wf.GetBooking(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusPending, got.Status)
	assert.Contains(t, f.logs.String(), "pending booking not expired")
}
