package availability

import (
	"time"

	"travelbook/internal/domain/resources"
)

type Updated struct {
	ResourceID string
	Dates      []time.Time
	Status     Status
	Reason     string
	At         time.Time
}

func (e Updated) EventName() string     { return "availability.updated" }
func (e Updated) AggregateID() string   { return e.ResourceID }
func (e Updated) OccurredAt() time.Time { return e.At }

type InconsistencyDetected struct {
	ResourceID string
	Dates      []time.Time
	Cause      string
	At         time.Time
}

func (e InconsistencyDetected) EventName() string     { return "availability.inconsistency_detected" }
func (e InconsistencyDetected) AggregateID() string   { return e.ResourceID }
func (e InconsistencyDetected) OccurredAt() time.Time { return e.At }

func UpdatedEvent(id resources.ResourceID, dates []time.Time, status Status, reason string, at time.Time) Updated {
	return Updated{ResourceID: string(id), Dates: append([]time.Time(nil), dates...), Status: status, Reason: reason, At: at.UTC()}
}

func InconsistencyEvent(id resources.ResourceID, dates []time.Time, cause string, at time.Time) InconsistencyDetected {
	return InconsistencyDetected{ResourceID: string(id), Dates: append([]time.Time(nil), dates...), Cause: cause, At: at.UTC()}
}
