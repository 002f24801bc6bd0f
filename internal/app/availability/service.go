package availability

import (
	"context"
	"fmt"
	"iter"
	"time"

	domainavailability "travelbook/internal/domain/availability"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/money"
)

// CalendarDay is one resolved calendar entry.
type CalendarDay struct {
	Date   time.Time
	Status domainavailability.Status
	Price  money.Money
}

// Service answers read-only availability questions over the store.
type Service struct {
	Resources domainresources.Repository
	Store     domainavailability.Store
}

func NewService(resources domainresources.Repository, store domainavailability.Store) *Service {
	return &Service{Resources: resources, Store: store}
}

// IsRangeAvailable reports whether every day in [start, end) is effectively available.
func (s *Service) IsRangeAvailable(ctx context.Context, id domainresources.ResourceID, start, end time.Time) (bool, error) {
	dr, err := daterange.New(start, end)
	if err != nil {
		return false, err
	}
	if _, err := s.Resources.ByID(ctx, id); err != nil {
		return false, err
	}
	blocked, err := s.BlockedDays(ctx, id, dr)
	if err != nil {
		return false, err
	}
	return len(blocked) == 0, nil
}

// BlockedDays lists days in dr whose effective status is not available.
func (s *Service) BlockedDays(ctx context.Context, id domainresources.ResourceID, dr daterange.DateRange) ([]time.Time, error) {
	records, err := s.Store.GetRange(ctx, id, dr)
	if err != nil {
		return nil, fmt.Errorf("availability: read range: %w", err)
	}
	var blocked []time.Time
	for d := range dr.Days() {
		if rec, ok := records[d]; ok && !rec.Status.Sellable() {
			blocked = append(blocked, d)
		}
	}
	return blocked, nil
}

// Calendar returns a lazy, finite sequence of resolved days. Inputs are validated
// eagerly; each iteration re-reads the store so the sequence can be restarted.
func (s *Service) Calendar(ctx context.Context, id domainresources.ResourceID, start, end time.Time) (iter.Seq2[CalendarDay, error], error) {
	dr, err := daterange.New(start, end)
	if err != nil {
		return nil, err
	}
	resource, err := s.Resources.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return func(yield func(CalendarDay, error) bool) {
		records, err := s.Store.GetRange(ctx, id, dr)
		if err != nil {
			yield(CalendarDay{}, fmt.Errorf("availability: read range: %w", err))
			return
		}
		for d := range dr.Days() {
			var rec *domainavailability.Record
			if found, ok := records[d]; ok {
				rec = &found
			}
			status, price := domainavailability.Effective(rec, resource.BasePrice)
			if !yield(CalendarDay{Date: d, Status: status, Price: price}, nil) {
				return
			}
		}
	}, nil
}
