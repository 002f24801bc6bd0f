package ginserver

import (
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	availabilityapp "travelbook/internal/app/availability"
	"travelbook/internal/app/commands"
	"travelbook/internal/app/dto"
	"travelbook/internal/app/mutation"
	pricingapp "travelbook/internal/app/pricing"
	"travelbook/internal/app/queries"
	"travelbook/internal/domain/shared/daterange"
)

type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type setAvailabilityRequest struct {
	Dates         []string `json:"dates"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	Status        string   `json:"status" binding:"required"`
	PriceOverride *int64   `json:"price_override"`
	Debounce      bool     `json:"debounce"`
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	start, end, ok := rangeParams(c, "start", "end")
	if !ok {
		return
	}
	query := availabilityapp.CheckAvailabilityQuery{ResourceID: c.Param("id"), Start: start, End: end}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.AvailabilityCheck](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	from, to, ok := rangeParams(c, "from", "to")
	if !ok {
		return
	}
	query := availabilityapp.GetCalendarQuery{ResourceID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Quote(c *gin.Context) {
	start, err := parseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a date"})
		return
	}
	query := pricingapp.QuoteQuery{ResourceID: c.Param("id"), Start: start}
	if raw := c.Query("end"); raw != "" {
		if query.End, err = parseDate(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a date"})
			return
		}
	}
	if raw := c.Query("quantity"); raw != "" {
		if query.Quantity, err = strconv.Atoi(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be an integer"})
			return
		}
	}
	result, err := queries.Ask[pricingapp.QuoteQuery, dto.Quote](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Set(c *gin.Context) {
	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dates, err := parseDates(req.Dates)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be calendar dates"})
		return
	}
	if req.From != "" || req.To != "" {
		from, ferr := parseDate(req.From)
		to, terr := parseDate(req.To)
		if ferr != nil || terr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be calendar dates"})
			return
		}
		dr, err := daterange.New(from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		dates = append(dates, dr.DayList()...)
	}
	cmd := mutation.SetAvailabilityCommand{
		PrincipalID:   principalFrom(c),
		ResourceID:    c.Param("id"),
		Dates:         dates,
		Status:        req.Status,
		PriceOverride: req.PriceOverride,
		Debounce:      req.Debounce,
	}
	result, err := commands.Dispatch[mutation.SetAvailabilityCommand, dto.MutationResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func rangeParams(c *gin.Context, startKey, endKey string) (start, end time.Time, ok bool) {
	start, err := parseDate(c.Query(startKey))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": startKey + " must be a date"})
		return start, end, false
	}
	end, err = parseDate(c.Query(endKey))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": endKey + " must be a date"})
		return start, end, false
	}
	return start, end, true
}

var _ AvailabilityHTTP = AvailabilityHandler{}
