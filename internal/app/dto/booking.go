package dto

import (
	"time"

	domainbooking "travelbook/internal/domain/booking"
	domainpricing "travelbook/internal/domain/pricing"
)

type PriceLine struct {
	Date   string   `json:"date"`
	Amount MoneyDTO `json:"amount"`
}

type Fee struct {
	Name   string   `json:"name"`
	Amount MoneyDTO `json:"amount"`
}

type Booking struct {
	ID            string      `json:"id"`
	ResourceID    string      `json:"resource_id"`
	Kind          string      `json:"kind"`
	GuestID       string      `json:"guest_id,omitempty"`
	Start         string      `json:"start"`
	End           string      `json:"end"`
	PartySize     int         `json:"party_size"`
	Quantity      int         `json:"quantity,omitempty"`
	Lines         []PriceLine `json:"lines"`
	Fees          []Fee       `json:"fees,omitempty"`
	TotalPrice    MoneyDTO    `json:"total_price"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	CancelReason  string      `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	out := Booking{
		ID:            string(b.ID),
		ResourceID:    string(b.ResourceID),
		Kind:          string(b.Kind),
		GuestID:       b.GuestID,
		Start:         b.Range.Start.Format(time.DateOnly),
		End:           b.Range.End.Format(time.DateOnly),
		PartySize:     b.PartySize,
		Quantity:      b.Quantity,
		Lines:         make([]PriceLine, 0, len(b.Quote.Lines)),
		TotalPrice:    MapMoney(b.TotalPrice),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		CancelReason:  b.CancelReason,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	for _, line := range b.Quote.Lines {
		out.Lines = append(out.Lines, PriceLine{Date: line.Date.Format(time.DateOnly), Amount: MapMoney(line.Amount)})
	}
	for _, fee := range b.Quote.Fees {
		out.Fees = append(out.Fees, Fee{Name: fee.Name, Amount: MapMoney(fee.Amount)})
	}
	return out
}

type Quote struct {
	ResourceID string      `json:"resource_id"`
	Quantity   int         `json:"quantity"`
	Lines      []PriceLine `json:"lines"`
	Fees       []Fee       `json:"fees,omitempty"`
	Subtotal   MoneyDTO    `json:"subtotal"`
	Total      MoneyDTO    `json:"total"`
}

func MapQuote(resourceID string, q domainpricing.Quote) Quote {
	out := Quote{
		ResourceID: resourceID,
		Quantity:   q.Quantity,
		Lines:      make([]PriceLine, 0, len(q.Lines)),
		Subtotal:   MapMoney(q.Subtotal),
		Total:      MapMoney(q.Total),
	}
	for _, line := range q.Lines {
		out.Lines = append(out.Lines, PriceLine{Date: line.Date.Format(time.DateOnly), Amount: MapMoney(line.Amount)})
	}
	for _, fee := range q.Fees {
		out.Fees = append(out.Fees, Fee{Name: fee.Name, Amount: MapMoney(fee.Amount)})
	}
	return out
}
