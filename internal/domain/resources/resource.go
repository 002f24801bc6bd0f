package resources

import (
	"context"
	"errors"
	"strings"

	"travelbook/internal/domain/shared/money"
)

var (
	ErrUnknownKind      = errors.New("resources: unknown resource kind")
	ErrInvalidBasePrice = errors.New("resources: base price must be positive")
	ErrInvalidCapacity  = errors.New("resources: capacity must be positive")
	ErrResourceNotFound = errors.New("resources: not found")
)

type ResourceID string

// Kind tags what a resource is sold as. Pricing and request shape depend on it.
type Kind string

const (
	KindLodging Kind = "lodging"
	KindTour    Kind = "tour"
	KindEvent   Kind = "event"
)

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindLodging, KindTour, KindEvent:
		return k, nil
	default:
		return "", ErrUnknownKind
	}
}

// PerSlot reports whether the kind is sold as a single dated slot times a quantity
// rather than a range of nights.
func (k Kind) PerSlot() bool {
	return k == KindTour || k == KindEvent
}

// Resource is a bookable unit: a lodging unit, a tour departure template or an event.
// BasePrice is per night for lodging and per participant/ticket otherwise. Capacity is
// max guests, max participants or seats respectively.
type Resource struct {
	ID        ResourceID
	Kind      Kind
	Name      string
	BasePrice money.Money
	Capacity  int
	Active    bool
}

type Repository interface {
	ByID(ctx context.Context, id ResourceID) (*Resource, error)
	Save(ctx context.Context, r *Resource) error
	List(ctx context.Context) ([]*Resource, error)
}

type CreateParams struct {
	ID        ResourceID
	Kind      Kind
	Name      string
	BasePrice money.Money
	Capacity  int
}

func NewResource(params CreateParams) (*Resource, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("resources: id required")
	}
	kind, err := ParseKind(string(params.Kind))
	if err != nil {
		return nil, err
	}
	if params.BasePrice.Currency == "" {
		return nil, money.ErrInvalidCurrency
	}
	if !params.BasePrice.IsPositive() {
		return nil, ErrInvalidBasePrice
	}
	if params.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Resource{
		ID:        params.ID,
		Kind:      kind,
		Name:      strings.TrimSpace(params.Name),
		BasePrice: params.BasePrice,
		Capacity:  params.Capacity,
		Active:    true,
	}, nil
}
