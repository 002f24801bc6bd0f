package booking

import (
	"time"

	"travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/money"
)

type Requested struct {
	BookingID  BookingID
	ResourceID resources.ResourceID
	GuestID    string
	Range      daterange.DateRange
	PartySize  int
	Total      money.Money
	At         time.Time
}

func (e Requested) EventName() string     { return "booking.requested" }
func (e Requested) AggregateID() string   { return string(e.BookingID) }
func (e Requested) OccurredAt() time.Time { return e.At }

type Confirmed struct {
	BookingID  BookingID
	ResourceID resources.ResourceID
	Total      money.Money
	At         time.Time
}

func (e Confirmed) EventName() string     { return "booking.confirmed" }
func (e Confirmed) AggregateID() string   { return string(e.BookingID) }
func (e Confirmed) OccurredAt() time.Time { return e.At }

type Cancelled struct {
	BookingID     BookingID
	ResourceID    resources.ResourceID
	Range         daterange.DateRange
	Reason        string
	PaymentStatus PaymentStatus
	At            time.Time
}

func (e Cancelled) EventName() string     { return "booking.cancelled" }
func (e Cancelled) AggregateID() string   { return string(e.BookingID) }
func (e Cancelled) OccurredAt() time.Time { return e.At }
