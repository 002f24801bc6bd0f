package pricing

import (
	"context"
	"fmt"
	"time"

	domainavailability "travelbook/internal/domain/availability"
	domainpricing "travelbook/internal/domain/pricing"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
)

// Service is the single place totals are computed. It loads the resource and the
// per-date records and hands them to the kind's strategy.
type Service struct {
	Resources  domainresources.Repository
	Store      domainavailability.Store
	Calculator *domainpricing.Calculator
}

func NewService(resources domainresources.Repository, store domainavailability.Store, calc *domainpricing.Calculator) *Service {
	return &Service{Resources: resources, Store: store, Calculator: calc}
}

// PriceForRange quotes [start, end) for lodging, or the start date times quantity
// for per-slot kinds.
func (s *Service) PriceForRange(ctx context.Context, id domainresources.ResourceID, start, end time.Time, quantity int) (domainpricing.Quote, error) {
	resource, err := s.Resources.ByID(ctx, id)
	if err != nil {
		return domainpricing.Quote{}, err
	}
	dr, err := daterange.New(start, end)
	if err != nil {
		return domainpricing.Quote{}, err
	}
	return s.Quote(ctx, resource, dr, quantity)
}

func (s *Service) Quote(ctx context.Context, resource *domainresources.Resource, dr daterange.DateRange, quantity int) (domainpricing.Quote, error) {
	records, err := s.Store.GetRange(ctx, resource.ID, dr)
	if err != nil {
		return domainpricing.Quote{}, fmt.Errorf("pricing: read overrides: %w", err)
	}
	return s.Calculator.Price(domainpricing.Input{
		Resource: resource,
		Range:    dr,
		Quantity: quantity,
		Records:  records,
	})
}
