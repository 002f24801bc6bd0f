package availability

import (
	"context"
	"time"

	"travelbook/internal/app/dto"
	"travelbook/internal/app/queries"
	domainresources "travelbook/internal/domain/resources"
)

const (
	checkAvailabilityKey = "availability.check"
	getCalendarKey       = "availability.calendar"
)

type CheckAvailabilityQuery struct {
	ResourceID string    `validate:"required"`
	Start      time.Time `validate:"required"`
	End        time.Time `validate:"required"`
}

func (CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	Service *Service
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.AvailabilityCheck, error) {
	ok, err := h.Service.IsRangeAvailable(ctx, domainresources.ResourceID(q.ResourceID), q.Start, q.End)
	if err != nil {
		return dto.AvailabilityCheck{}, err
	}
	return dto.AvailabilityCheck{ResourceID: q.ResourceID, Start: q.Start, End: q.End, Available: ok}, nil
}

type GetCalendarQuery struct {
	ResourceID string    `validate:"required"`
	From       time.Time `validate:"required"`
	To         time.Time `validate:"required"`
}

func (GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	Service *Service
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	seq, err := h.Service.Calendar(ctx, domainresources.ResourceID(q.ResourceID), q.From, q.To)
	if err != nil {
		return dto.Calendar{}, err
	}
	cal := dto.Calendar{ResourceID: q.ResourceID, Days: make([]dto.CalendarDay, 0)}
	for day, err := range seq {
		if err != nil {
			return dto.Calendar{}, err
		}
		cal.Days = append(cal.Days, dto.CalendarDay{
			Date:   day.Date.Format(time.DateOnly),
			Status: string(day.Status),
			Price:  dto.MapMoney(day.Price),
		})
	}
	return cal, nil
}

var (
	_ queries.Handler[CheckAvailabilityQuery, dto.AvailabilityCheck] = (*CheckAvailabilityHandler)(nil)
	_ queries.Handler[GetCalendarQuery, dto.Calendar]                 = (*GetCalendarHandler)(nil)
)
