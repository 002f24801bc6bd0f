package events

import (
	"strings"
	"time"
)

// DomainEvent is a fact recorded by an aggregate. Names are dotted, family first:
// "booking.requested", "availability.updated".
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// Family returns the part of an event name before the first dot.
func Family(name string) string {
	if idx := strings.IndexByte(name, '.'); idx > 0 {
		return name[:idx]
	}
	return name
}

// EventRecorder is embedded by aggregates that buffer events until they are saved.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	return append([]DomainEvent(nil), r.pending...)
}

// Drain returns the buffered events and empties the buffer.
func (r *EventRecorder) Drain() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}
