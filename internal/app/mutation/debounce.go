package mutation

import (
	"context"
	"errors"
	"sync"
	"time"

	domainresources "travelbook/internal/domain/resources"
)

var (
	// ErrSuperseded is returned to a submission replaced by a later one for the same resource.
	ErrSuperseded = errors.New("mutation: submission superseded by a later request")
	ErrCancelled  = errors.New("mutation: submission cancelled before dispatch")
)

// DefaultDebounceWindow matches the interval interactive calendar controls fire at.
const DefaultDebounceWindow = 300 * time.Millisecond

// Clock schedules delayed calls.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Applier is the guaranteed write path the debouncer feeds.
type Applier interface {
	ApplyBulk(ctx context.Context, req BulkRequest) (Result, error)
}

// Debouncer coalesces requests for the same resource issued within Window into the
// last one, which is then sent to the Applier. It is a load shield, not a
// correctness mechanism: callers that need a guaranteed write use the Applier directly.
type Debouncer struct {
	applier Applier
	window  time.Duration
	clock   Clock
	base    context.Context

	mu      sync.Mutex
	pending map[domainresources.ResourceID]*pendingCall
}

type pendingCall struct {
	req   BulkRequest
	sub   *Submission
	timer Timer
}

type DebouncerOption func(*Debouncer)

func WithClock(clock Clock) DebouncerOption {
	return func(d *Debouncer) { d.clock = clock }
}

// WithBaseContext sets the context dispatched calls run under.
func WithBaseContext(ctx context.Context) DebouncerOption {
	return func(d *Debouncer) { d.base = ctx }
}

func NewDebouncer(applier Applier, window time.Duration, opts ...DebouncerOption) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	d := &Debouncer{
		applier: applier,
		window:  window,
		clock:   systemClock{},
		base:    context.Background(),
		pending: make(map[domainresources.ResourceID]*pendingCall),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RequestApply schedules req and restarts the window for its resource. An earlier
// pending submission for the same resource resolves with ErrSuperseded.
func (d *Debouncer) RequestApply(req BulkRequest) *Submission {
	sub := newSubmission()
	call := &pendingCall{req: req, sub: sub}
	sub.cancel = func() bool { return d.cancel(req.ResourceID, call) }

	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.pending[req.ResourceID]; ok {
		prev.timer.Stop()
		prev.sub.finish(Result{}, ErrSuperseded)
	}
	call.timer = d.clock.AfterFunc(d.window, func() { d.fire(req.ResourceID, call) })
	d.pending[req.ResourceID] = call
	return sub
}

// Pending reports how many resources have a submission waiting for its window.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every submission that has not been dispatched yet.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	calls := d.pending
	d.pending = make(map[domainresources.ResourceID]*pendingCall)
	d.mu.Unlock()
	for _, call := range calls {
		call.timer.Stop()
		call.sub.finish(Result{}, ErrCancelled)
	}
}

func (d *Debouncer) fire(id domainresources.ResourceID, call *pendingCall) {
	d.mu.Lock()
	if d.pending[id] != call {
		d.mu.Unlock()
		return
	}
	delete(d.pending, id)
	d.mu.Unlock()

	call.sub.markDispatched()
	res, err := d.applier.ApplyBulk(d.base, call.req)
	call.sub.finish(res, err)
}

func (d *Debouncer) cancel(id domainresources.ResourceID, call *pendingCall) bool {
	d.mu.Lock()
	if d.pending[id] != call {
		d.mu.Unlock()
		return false
	}
	delete(d.pending, id)
	d.mu.Unlock()
	call.timer.Stop()
	call.sub.finish(Result{}, ErrCancelled)
	return true
}

// Submission is the caller's handle on a debounced request.
type Submission struct {
	done       chan struct{}
	once       sync.Once
	cancel     func() bool
	mu         sync.Mutex
	dispatched bool
	result     Result
	err        error
}

func newSubmission() *Submission {
	return &Submission{done: make(chan struct{})}
}

// Cancel withdraws the submission if it has not been dispatched yet. Once dispatched
// the write runs to completion and Cancel reports false.
func (s *Submission) Cancel() bool {
	return s.cancel()
}

// Done is closed once the submission is resolved.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Dispatched reports whether the submission reached the Applier.
func (s *Submission) Dispatched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatched
}

// Wait blocks until the submission resolves or ctx ends. Ending ctx does not cancel
// the submission.
func (s *Submission) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, s.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (s *Submission) markDispatched() {
	s.mu.Lock()
	s.dispatched = true
	s.mu.Unlock()
}

func (s *Submission) finish(res Result, err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.result, s.err = res, err
		s.mu.Unlock()
		close(s.done)
	})
}
