package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainavailability "travelbook/internal/domain/availability"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/money"
	"travelbook/internal/infra/storage/memory"
)

var day1 = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func days(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = day1.AddDate(0, 0, i)
	}
	return out
}

// faultyStore fails Put for one date and optionally every Delete.
type faultyStore struct {
	*memory.AvailabilityStore
	failOn     time.Time
	failDelete bool
}

var errInjected = errors.New("injected store fault")

func (s *faultyStore) Put(ctx context.Context, rec domainavailability.Record) error {
	if rec.Date.Equal(s.failOn) {
		return errInjected
	}
	return s.AvailabilityStore.Put(ctx, rec)
}

func (s *faultyStore) Delete(ctx context.Context, id domainresources.ResourceID, date time.Time) error {
	if s.failDelete {
		return errInjected
	}
	return s.AvailabilityStore.Delete(ctx, id, date)
}

func TestApplyBulkIdempotent(t *testing.T) {
	store := memory.NewAvailabilityStore()
	box := memory.NewOutbox()
	coord := NewCoordinator(store, nil, box, nil)
	price := money.Must(700, "USD")
	req := BulkRequest{ResourceID: "r1", Kind: domainresources.KindLodging, Dates: days(1), Status: domainavailability.StatusAvailable, PriceOverride: &price}

	first, err := coord.ApplyBulk(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Changed)
	once, err := store.Get(context.Background(), "r1", day1)
	require.NoError(t, err)

	second, err := coord.ApplyBulk(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changed)
	twice, err := store.Get(context.Background(), "r1", day1)
	require.NoError(t, err)

	assert.True(t, once.SameState(*twice))
	assert.Equal(t, once.UpdatedAt, twice.UpdatedAt)
	assert.Equal(t, []string{"availability.updated"}, box.Names())
}

func TestApplyBulkAtomicOnStoreFault(t *testing.T) {
	base := memory.NewAvailabilityStore()
	ctx := context.Background()
	override := money.Must(900, "USD")
	require.NoError(t, base.Put(ctx, domainavailability.Record{ResourceID: "r1", Date: day1, Status: domainavailability.StatusAvailable, PriceOverride: &override}))

	store := &faultyStore{AvailabilityStore: base, failOn: day1.AddDate(0, 0, 2)}
	coord := NewCoordinator(store, nil, nil, nil)
	_, err := coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(4), Status: domainavailability.StatusBlocked})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrApplyFailed)
	assert.ErrorIs(t, err, errInjected)

	records, err := base.GetRange(ctx, "r1", daterange.DateRange{Start: day1, End: day1.AddDate(0, 0, 4)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	restored := records[day1]
	assert.Equal(t, domainavailability.StatusAvailable, restored.Status)
	require.NotNil(t, restored.PriceOverride)
	assert.Equal(t, int64(900), restored.PriceOverride.Amount)
}

func TestApplyBulkRejectsBadInputBeforeWriting(t *testing.T) {
	store := memory.NewAvailabilityStore()
	coord := NewCoordinator(store, nil, nil, nil)
	ctx := context.Background()

	_, err := coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Status: domainavailability.StatusBlocked})
	assert.ErrorIs(t, err, ErrNoDates)

	_, err = coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: []time.Time{day1, {}}, Status: domainavailability.StatusBlocked})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)

	_, err = coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(2), Status: "sold"})
	assert.ErrorIs(t, err, domainavailability.ErrUnknownStatus)

	negative := money.Money{Amount: -1, Currency: "USD"}
	_, err = coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(2), Status: domainavailability.StatusAvailable, PriceOverride: &negative})
	assert.ErrorIs(t, err, domainavailability.ErrNegativeOverride)

	recs, err := store.ListByStatus(ctx, domainavailability.StatusBlocked)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestApplyBulkGuardRejectsWholeBatch(t *testing.T) {
	store := memory.NewAvailabilityStore()
	coord := NewCoordinator(store, nil, nil, nil)
	ctx := context.Background()
	_, err := coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(3)[1:2], Status: domainavailability.StatusMaintenance})
	require.NoError(t, err)

	_, err = coord.ApplyBulk(ctx, BulkRequest{
		ResourceID: "r1",
		Dates:      days(3),
		Status:     domainavailability.StatusBooked,
		Guard:      RequireStatus(domainavailability.StatusAvailable),
	})
	assert.ErrorIs(t, err, ErrConflict)

	booked, err := store.ListByStatus(ctx, domainavailability.StatusBooked)
	require.NoError(t, err)
	assert.Empty(t, booked)
}

func TestApplyBulkUnchangedSinceSeesRecordUnderLock(t *testing.T) {
	store := memory.NewAvailabilityStore()
	coord := NewCoordinator(store, nil, nil, nil)
	ctx := context.Background()
	written := day1.Add(time.Hour)
	coord.Now = func() time.Time { return written }
	_, err := coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(1), Status: domainavailability.StatusBooked})
	require.NoError(t, err)

	guard := AllOf(RequireStatus(domainavailability.StatusBooked), UnchangedSince(day1))
	_, err = coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(1), Status: domainavailability.StatusAvailable, Guard: guard})
	assert.ErrorIs(t, err, ErrConflict)

	guard = AllOf(RequireStatus(domainavailability.StatusBooked), UnchangedSince(written))
	res, err := coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(1), Status: domainavailability.StatusAvailable, Guard: guard})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)
}

func TestApplyBulkDeduplicatesAndNormalizesDates(t *testing.T) {
	coord := NewCoordinator(memory.NewAvailabilityStore(), nil, nil, nil)
	res, err := coord.ApplyBulk(context.Background(), BulkRequest{
		ResourceID: "r1",
		Dates:      []time.Time{day1.Add(15 * time.Hour), day1.AddDate(0, 0, 1), day1},
		Status:     domainavailability.StatusBlocked,
	})
	require.NoError(t, err)
	assert.Equal(t, days(2), res.Dates)
	assert.Equal(t, 2, res.Changed)
	assert.Len(t, res.Prior, 2)
	assert.Nil(t, res.Prior[day1])
}

func TestRestoreReturnsDatesToPriorState(t *testing.T) {
	store := memory.NewAvailabilityStore()
	coord := NewCoordinator(store, nil, nil, nil)
	ctx := context.Background()
	_, err := coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(1), Status: domainavailability.StatusMaintenance})
	require.NoError(t, err)

	res, err := coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(2), Status: domainavailability.StatusBooked})
	require.NoError(t, err)
	require.NoError(t, coord.Restore(ctx, "r1", res.Prior))

	first, err := store.Get(ctx, "r1", day1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, domainavailability.StatusMaintenance, first.Status)
	second, err := store.Get(ctx, "r1", day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Nil(t, second)
}

// trackingStore records the maximum number of concurrent Put calls per resource.
type trackingStore struct {
	*memory.AvailabilityStore
	mu      sync.Mutex
	active  map[domainresources.ResourceID]int
	maxSeen int
}

func (s *trackingStore) Put(ctx context.Context, rec domainavailability.Record) error {
	s.mu.Lock()
	s.active[rec.ResourceID]++
	if s.active[rec.ResourceID] > s.maxSeen {
		s.maxSeen = s.active[rec.ResourceID]
	}
	s.mu.Unlock()
	time.Sleep(time.Millisecond)
	err := s.AvailabilityStore.Put(ctx, rec)
	s.mu.Lock()
	s.active[rec.ResourceID]--
	s.mu.Unlock()
	return err
}

func TestApplyBulkSerializesPerResource(t *testing.T) {
	store := &trackingStore{AvailabilityStore: memory.NewAvailabilityStore(), active: map[domainresources.ResourceID]int{}}
	coord := NewCoordinator(store, nil, nil, nil)
	statuses := []domainavailability.Status{domainavailability.StatusBlocked, domainavailability.StatusMaintenance, domainavailability.StatusUnavailable}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := coord.ApplyBulk(context.Background(), BulkRequest{ResourceID: "r1", Dates: days(3), Status: statuses[i%len(statuses)]})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, store.maxSeen)
}

func TestApplyBulkHonoursContextWhileWaitingForLock(t *testing.T) {
	locker := NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), "availability:r1")
	require.NoError(t, err)
	defer unlock()

	coord := NewCoordinator(memory.NewAvailabilityStore(), locker, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(1), Status: domainavailability.StatusBlocked})
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := coord.ApplyBulk(context.Background(), BulkRequest{ResourceID: "r2", Dates: days(1), Status: domainavailability.StatusBlocked})
	require.NoError(t, err)
	assert.Equal(t, 1, other.Changed)
}

func TestApplyBulkKeepOverride(t *testing.T) {
	store := memory.NewAvailabilityStore()
	coord := NewCoordinator(store, nil, nil, nil)
	ctx := context.Background()
	price := money.Must(650, "USD")
	_, err := coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(1), Status: domainavailability.StatusAvailable, PriceOverride: &price})
	require.NoError(t, err)
	_, err = coord.ApplyBulk(ctx, BulkRequest{ResourceID: "r1", Dates: days(1), Status: domainavailability.StatusBooked, KeepOverride: true})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "r1", day1)
	require.NoError(t, err)
	assert.Equal(t, domainavailability.StatusBooked, rec.Status)
	require.NotNil(t, rec.PriceOverride)
	assert.Equal(t, price, *rec.PriceOverride)
}
