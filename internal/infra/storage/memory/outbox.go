package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "travelbook/internal/app/outbox"
	infraoutbox "travelbook/internal/infra/outbox"
)

const defaultOutboxRetention = 1024

// Outbox keeps the most recent events in memory for inspection. Built WithQueue it
// also serves as the worker queue when a broker is configured without Mongo; sent
// entries leave the queue.
type Outbox struct {
	mu      sync.Mutex
	retain  int
	queue   bool
	records []appoutbox.EventRecord
	entries []*outboxEntry
}

type outboxEntry struct {
	doc     infraoutbox.EventDocument
	claimed bool
}

type OutboxOption func(*Outbox)

// WithQueue makes every added event claimable by an outbox worker.
func WithQueue() OutboxOption {
	return func(o *Outbox) { o.queue = true }
}

// WithRetention caps how many records Records and Names report.
func WithRetention(n int) OutboxOption {
	return func(o *Outbox) {
		if n > 0 {
			o.retain = n
		}
	}
}

func NewOutbox(opts ...OutboxOption) *Outbox {
	o := &Outbox{retain: defaultOutboxRetention}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	if over := len(o.records) - o.retain; over > 0 {
		o.records = append(o.records[:0:0], o.records[over:]...)
	}
	if !o.queue {
		return nil
	}
	now := time.Now().UTC()
	o.entries = append(o.entries, &outboxEntry{doc: infraoutbox.EventDocument{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       infraoutbox.StateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}})
	return nil
}

// Records returns a copy of the retained records, oldest first.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

// Names lists retained event names in order.
func (o *Outbox) Names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.records))
	for _, r := range o.records {
		names = append(names, r.Name)
	}
	return names
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*infraoutbox.EventDocument, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range o.entries {
		if e.claimed || e.doc.NextAttempt.After(now) {
			continue
		}
		e.claimed = true
		e.doc.State = infraoutbox.StateClaimed
		e.doc.ClaimedBy = workerID
		e.doc.ClaimedAt = now
		doc := e.doc
		return &doc, nil
	}
	return nil, nil
}

// MarkSent drops the entry from the queue.
func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.doc.ID == id {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			break
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.doc.ID != id {
			continue
		}
		e.claimed = false
		e.doc.State = infraoutbox.StateFailed
		e.doc.Attempts++
		e.doc.NextAttempt = next
		e.doc.LastError = errMsg
		break
	}
	return nil
}

// Pending counts queued events not yet delivered.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

var (
	_ appoutbox.Outbox  = (*Outbox)(nil)
	_ infraoutbox.Queue = (*Outbox)(nil)
)
