package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelbook/internal/app/commands"
)

type reserveCommand struct {
	Actor    string `validate:"required"`
	Resource string `validate:"required"`
	Nights   int    `validate:"gte=1"`
	IdemKey  string
}

func (reserveCommand) Key() string              { return "test.reserve" }
func (c reserveCommand) IdempotencyKey() string { return c.IdemKey }
func (reserveCommand) ResultPrototype() any     { return &reserveResult{} }
func (c reserveCommand) Principal() string      { return c.Actor }
func (c reserveCommand) TargetResource() string { return c.Resource }

type reserveResult struct {
	ID string `json:"id"`
}

type mapStore struct {
	mu    sync.Mutex
	items map[string]IdempotencyRecord
}

func (s *mapStore) Get(ctx context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *mapStore) Save(ctx context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

type countingBus struct {
	calls int
	err   error
}

func (b *countingBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return &reserveResult{ID: "r-" + time.Now().Format("150405.000000000")}, nil
}

type fakeAccess struct{ allowed map[string]bool }

func (f fakeAccess) CanWriteResource(ctx context.Context, principal, resourceID string) (bool, error) {
	return f.allowed[principal+"/"+resourceID], nil
}

func (f fakeAccess) CanManageBooking(ctx context.Context, principal, bookingID string) (bool, error) {
	return false, nil
}

func TestIdempotency_ReplaysSuccessfulResult(t *testing.T) {
	base := &countingBus{}
	bus := ChainCommands(base, Idempotency(&mapStore{items: map[string]IdempotencyRecord{}}, nil))
	cmd := reserveCommand{Actor: "a", Resource: "r", Nights: 1, IdemKey: "k1"}

	first, err := commands.Dispatch[reserveCommand, *reserveResult](context.Background(), bus, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[reserveCommand, *reserveResult](context.Background(), bus, cmd)
	require.NoError(t, err)

	assert.Equal(t, 1, base.calls)
	assert.Equal(t, first.ID, second.ID)
}

func TestIdempotency_KeysAreScopedToPrincipal(t *testing.T) {
	store := &mapStore{items: map[string]IdempotencyRecord{}}
	base := &countingBus{}
	bus := ChainCommands(base, Idempotency(store, nil))

	for _, actor := range []string{"alice", "bob", "alice"} {
		_, err := commands.Dispatch[reserveCommand, *reserveResult](context.Background(), bus, reserveCommand{Actor: actor, Resource: "r", Nights: 1, IdemKey: "k1"})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, base.calls)
	assert.Contains(t, store.items, "test.reserve:alice:k1")
	assert.Contains(t, store.items, "test.reserve:bob:k1")
}

func TestIdempotency_FailuresAreNotCached(t *testing.T) {
	base := &countingBus{err: errors.New("unavailable")}
	bus := ChainCommands(base, Idempotency(&mapStore{items: map[string]IdempotencyRecord{}}, nil))
	cmd := reserveCommand{IdemKey: "k1"}

	_, err := bus.Dispatch(context.Background(), cmd)
	require.Error(t, err)
	_, err = bus.Dispatch(context.Background(), cmd)
	require.Error(t, err)
	assert.Equal(t, 2, base.calls)
}

func TestValidation_RejectsBadCommand(t *testing.T) {
	base := &countingBus{}
	bus := ChainCommands(base, Validation(NewStructValidator()))

	_, err := bus.Dispatch(context.Background(), reserveCommand{Actor: "a", Resource: "r", Nights: 0})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, base.calls)

	_, err = bus.Dispatch(context.Background(), reserveCommand{Actor: "a", Resource: "r", Nights: 2})
	assert.NoError(t, err)
}

func TestAuthorization_ConsultsAccessChecker(t *testing.T) {
	base := &countingBus{}
	access := fakeAccess{allowed: map[string]bool{"host/r1": true}}
	bus := ChainCommands(base, Authorization(AccessAuthorizer{Access: access}))

	_, err := bus.Dispatch(context.Background(), reserveCommand{Actor: "host", Resource: "r1"})
	require.NoError(t, err)

	_, err = bus.Dispatch(context.Background(), reserveCommand{Actor: "guest", Resource: "r1"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 1, base.calls)
}
