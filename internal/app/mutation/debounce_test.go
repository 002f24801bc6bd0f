package mutation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainavailability "travelbook/internal/domain/availability"
	"travelbook/internal/domain/shared/money"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due timers synchronously.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type recordingApplier struct {
	mu    sync.Mutex
	calls []BulkRequest
}

func (a *recordingApplier) ApplyBulk(ctx context.Context, req BulkRequest) (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, req)
	return Result{ResourceID: req.ResourceID, Dates: req.Dates, Status: req.Status, Changed: len(req.Dates)}, nil
}

func (a *recordingApplier) Calls() []BulkRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]BulkRequest(nil), a.calls...)
}

func priced(amount int64) BulkRequest {
	p := money.Must(amount, "USD")
	return BulkRequest{ResourceID: "r1", Dates: days(1), Status: domainavailability.StatusAvailable, PriceOverride: &p}
}

func TestDebouncerCoalescesToLastWrite(t *testing.T) {
	clock := &fakeClock{}
	applier := &recordingApplier{}
	d := NewDebouncer(applier, 300*time.Millisecond, WithClock(clock))

	first := d.RequestApply(priced(100))
	clock.Advance(100 * time.Millisecond)
	second := d.RequestApply(priced(200))
	clock.Advance(250 * time.Millisecond)
	third := d.RequestApply(priced(300))

	assert.Empty(t, applier.Calls())
	clock.Advance(300 * time.Millisecond)

	calls := applier.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(300), calls[0].PriceOverride.Amount)

	ctx := context.Background()
	_, err := first.Wait(ctx)
	assert.ErrorIs(t, err, ErrSuperseded)
	_, err = second.Wait(ctx)
	assert.ErrorIs(t, err, ErrSuperseded)
	res, err := third.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)
	assert.True(t, third.Dispatched())
	assert.Zero(t, d.Pending())
}

func TestDebouncerKeysByResource(t *testing.T) {
	clock := &fakeClock{}
	applier := &recordingApplier{}
	d := NewDebouncer(applier, 300*time.Millisecond, WithClock(clock))

	a := d.RequestApply(priced(100))
	other := priced(150)
	other.ResourceID = "r2"
	b := d.RequestApply(other)
	assert.Equal(t, 2, d.Pending())

	clock.Advance(300 * time.Millisecond)
	assert.Len(t, applier.Calls(), 2)
	_, err := a.Wait(context.Background())
	assert.NoError(t, err)
	_, err = b.Wait(context.Background())
	assert.NoError(t, err)
}

func TestDebouncerCancelBeforeDispatch(t *testing.T) {
	clock := &fakeClock{}
	applier := &recordingApplier{}
	d := NewDebouncer(applier, 300*time.Millisecond, WithClock(clock))

	sub := d.RequestApply(priced(100))
	assert.True(t, sub.Cancel())
	clock.Advance(time.Second)

	assert.Empty(t, applier.Calls())
	_, err := sub.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.False(t, sub.Dispatched())
}

func TestDebouncerCancelAfterDispatchIsNoop(t *testing.T) {
	clock := &fakeClock{}
	applier := &recordingApplier{}
	d := NewDebouncer(applier, 300*time.Millisecond, WithClock(clock))

	sub := d.RequestApply(priced(100))
	clock.Advance(300 * time.Millisecond)
	assert.False(t, sub.Cancel())

	_, err := sub.Wait(context.Background())
	assert.NoError(t, err)
	assert.Len(t, applier.Calls(), 1)
}

func TestDebouncerWaitHonoursContext(t *testing.T) {
	d := NewDebouncer(&recordingApplier{}, time.Hour, WithClock(&fakeClock{}))
	sub := d.RequestApply(priced(100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sub.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, d.Pending())

	d.Stop()
	_, err = sub.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestDebouncerWithSystemClock(t *testing.T) {
	applier := &recordingApplier{}
	d := NewDebouncer(applier, 5*time.Millisecond)
	sub := d.RequestApply(priced(100))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := sub.Wait(ctx)
	require.NoError(t, err)
	assert.Len(t, applier.Calls(), 1)
}
