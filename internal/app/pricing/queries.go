package pricing

import (
	"context"
	"time"

	"travelbook/internal/app/dto"
	"travelbook/internal/app/queries"
	domainresources "travelbook/internal/domain/resources"
)

const quoteKey = "pricing.quote"

// QuoteQuery prices a prospective booking without reserving anything. A zero End
// means the single day at Start.
type QuoteQuery struct {
	ResourceID string    `validate:"required"`
	Start      time.Time `validate:"required"`
	End        time.Time
	Quantity   int `validate:"gte=0"`
}

func (QuoteQuery) Key() string { return quoteKey }

type QuoteHandler struct {
	Service *Service
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (dto.Quote, error) {
	end := q.End
	if end.IsZero() {
		end = q.Start.AddDate(0, 0, 1)
	}
	quote, err := h.Service.PriceForRange(ctx, domainresources.ResourceID(q.ResourceID), q.Start, end, q.Quantity)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.MapQuote(q.ResourceID, quote), nil
}

var _ queries.Handler[QuoteQuery, dto.Quote] = (*QuoteHandler)(nil)
