package booking

import (
	"context"
	"time"

	"travelbook/internal/app/commands"
	"travelbook/internal/app/dto"
	"travelbook/internal/app/middleware"
	"travelbook/internal/app/queries"
	domainbooking "travelbook/internal/domain/booking"
	domainresources "travelbook/internal/domain/resources"
)

const (
	requestBookingKey = "booking.request"
	cancelBookingKey  = "booking.cancel"
	confirmPaymentKey = "booking.confirm_payment"
	getBookingKey     = "booking.get"
)

type RequestBookingCommand struct {
	CommandID       string
	PrincipalID     string
	ResourceID      string    `validate:"required"`
	GuestID         string    `validate:"required"`
	Start           time.Time `validate:"required"`
	End             time.Time
	PartySize       int `validate:"gte=1"`
	Quantity        int `validate:"gte=0"`
	IdempotencyKeyV string
}

func (c RequestBookingCommand) Key() string { return requestBookingKey }

func (c RequestBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestBookingCommand) ResultPrototype() any { return &dto.Booking{} }

// Principal scopes idempotency keys; it falls back to the guest when the caller is unknown.
func (c RequestBookingCommand) Principal() string {
	if c.PrincipalID != "" {
		return c.PrincipalID
	}
	return c.GuestID
}

type RequestBookingHandler struct {
	Workflow *Workflow
}

func (h *RequestBookingHandler) Handle(ctx context.Context, cmd RequestBookingCommand) (*dto.Booking, error) {
	b, err := h.Workflow.RequestBooking(ctx, Request{
		BookingID:  cmd.CommandID,
		ResourceID: domainresources.ResourceID(cmd.ResourceID),
		GuestID:    cmd.GuestID,
		Start:      cmd.Start,
		End:        cmd.End,
		PartySize:  cmd.PartySize,
		Quantity:   cmd.Quantity,
	})
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

type CancelBookingCommand struct {
	PrincipalID string `validate:"required"`
	BookingID   string `validate:"required"`
	Reason      string
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) Principal() string     { return c.PrincipalID }
func (c CancelBookingCommand) TargetBooking() string { return c.BookingID }

type CancelBookingHandler struct {
	Workflow *Workflow
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	b, err := h.Workflow.CancelBooking(ctx, domainbooking.BookingID(cmd.BookingID), cmd.Reason)
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// ConfirmPaymentCommand is issued by the payment collaborator once funds are captured.
type ConfirmPaymentCommand struct {
	PrincipalID string `validate:"required"`
	BookingID   string `validate:"required"`
}

func (c ConfirmPaymentCommand) Key() string { return confirmPaymentKey }

func (c ConfirmPaymentCommand) Principal() string     { return c.PrincipalID }
func (c ConfirmPaymentCommand) TargetBooking() string { return c.BookingID }

type ConfirmPaymentHandler struct {
	Workflow *Workflow
}

func (h *ConfirmPaymentHandler) Handle(ctx context.Context, cmd ConfirmPaymentCommand) (*dto.Booking, error) {
	b, err := h.Workflow.ConfirmPayment(ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

type GetBookingQuery struct {
	BookingID string `validate:"required"`
}

func (GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	Workflow *Workflow
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	b, err := h.Workflow.GetBooking(ctx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

var (
	_ commands.Handler[RequestBookingCommand, *dto.Booking] = (*RequestBookingHandler)(nil)
	_ commands.Handler[CancelBookingCommand, *dto.Booking]  = (*CancelBookingHandler)(nil)
	_ commands.Handler[ConfirmPaymentCommand, *dto.Booking] = (*ConfirmPaymentHandler)(nil)
	_ queries.Handler[GetBookingQuery, *dto.Booking]        = (*GetBookingHandler)(nil)
	_ middleware.IdempotentCommand                          = RequestBookingCommand{}
	_ middleware.BookingWrite                               = CancelBookingCommand{}
)
