package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	bookingapp "travelbook/internal/app/booking"
	"travelbook/internal/app/commands"
	"travelbook/internal/app/dto"
	"travelbook/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	ResourceID string `json:"resource_id" binding:"required"`
	GuestID    string `json:"guest_id"`
	Start      string `json:"start" binding:"required"`
	End        string `json:"end"`
	PartySize  int    `json:"party_size"`
	Quantity   int    `json:"quantity"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDate(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a date"})
		return
	}
	cmd := bookingapp.RequestBookingCommand{
		CommandID:       generateCommandID(),
		PrincipalID:     principalFrom(c),
		ResourceID:      req.ResourceID,
		GuestID:         req.GuestID,
		Start:           start,
		PartySize:       req.PartySize,
		Quantity:        req.Quantity,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	if cmd.GuestID == "" {
		cmd.GuestID = cmd.PrincipalID
	}
	if req.End != "" {
		if cmd.End, err = parseDate(req.End); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a date"})
			return
		}
	}
	result, err := commands.Dispatch[bookingapp.RequestBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, bookingapp.GetBookingQuery{BookingID: c.Param("id")})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	cmd := bookingapp.CancelBookingCommand{PrincipalID: principalFrom(c), BookingID: c.Param("id"), Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ConfirmPayment(c *gin.Context) {
	cmd := bookingapp.ConfirmPaymentCommand{PrincipalID: principalFrom(c), BookingID: c.Param("id")}
	result, err := commands.Dispatch[bookingapp.ConfirmPaymentCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func generateCommandID() string {
	return uuid.NewString()
}

var _ BookingHTTP = BookingHandler{}
