package mutation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainavailability "travelbook/internal/domain/availability"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/money"
	"travelbook/internal/infra/storage/memory"
)

func newSetHandler(t *testing.T) (*SetAvailabilityHandler, *memory.AvailabilityStore) {
	t.Helper()
	resources := memory.NewResourceRepository()
	require.NoError(t, resources.Save(context.Background(), &domainresources.Resource{
		ID: "villa", Kind: domainresources.KindLodging, Name: "Villa", BasePrice: money.Must(500, "USD"), Capacity: 4, Active: true,
	}))
	store := memory.NewAvailabilityStore()
	coord := NewCoordinator(store, nil, nil, nil)
	return &SetAvailabilityHandler{Resources: resources, Coordinator: coord}, store
}

func TestSetAvailabilityAppliesOverride(t *testing.T) {
	h, store := newSetHandler(t)
	price := int64(800)
	res, err := h.Handle(context.Background(), SetAvailabilityCommand{
		PrincipalID: "host", ResourceID: "villa", Dates: days(2), Status: "available", PriceOverride: &price,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-07-01", "2025-07-02"}, res.Dates)
	assert.Equal(t, 2, res.Changed)

	rec, err := store.Get(context.Background(), "villa", day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NotNil(t, rec.PriceOverride)
	assert.Equal(t, money.Must(800, "USD"), *rec.PriceOverride)
	assert.Equal(t, domainresources.KindLodging, rec.Kind)
}

func TestSetAvailabilityRejectsBookedWrites(t *testing.T) {
	h, store := newSetHandler(t)
	ctx := context.Background()
	_, err := h.Handle(ctx, SetAvailabilityCommand{PrincipalID: "host", ResourceID: "villa", Dates: days(1), Status: "booked"})
	assert.ErrorIs(t, err, ErrReservedStatus)

	_, err = h.Coordinator.ApplyBulk(ctx, BulkRequest{ResourceID: "villa", Dates: days(1), Status: domainavailability.StatusBooked})
	require.NoError(t, err)
	_, err = h.Handle(ctx, SetAvailabilityCommand{PrincipalID: "host", ResourceID: "villa", Dates: days(2), Status: "blocked"})
	assert.ErrorIs(t, err, ErrConflict)

	rec, err := store.Get(ctx, "villa", day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSetAvailabilityUnknownResource(t *testing.T) {
	h, _ := newSetHandler(t)
	_, err := h.Handle(context.Background(), SetAvailabilityCommand{PrincipalID: "host", ResourceID: "nope", Dates: days(1), Status: "blocked"})
	assert.ErrorIs(t, err, domainresources.ErrResourceNotFound)
}

func TestSetAvailabilityDebounced(t *testing.T) {
	h, store := newSetHandler(t)
	h.Debouncer = NewDebouncer(h.Coordinator, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := h.Handle(ctx, SetAvailabilityCommand{PrincipalID: "host", ResourceID: "villa", Dates: days(1), Status: "maintenance", Debounce: true})
	require.NoError(t, err)
	assert.Equal(t, "maintenance", res.Status)

	rec, err := store.Get(context.Background(), "villa", day1)
	require.NoError(t, err)
	assert.Equal(t, domainavailability.StatusMaintenance, rec.Status)
}
