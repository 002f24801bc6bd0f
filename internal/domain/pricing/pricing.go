package pricing

import (
	"errors"
	"fmt"
	"time"

	"travelbook/internal/domain/availability"
	"travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/money"
)

var (
	ErrInvalidPricing = errors.New("pricing: computed total is not positive or malformed")
	ErrNoStrategy     = errors.New("pricing: no strategy for resource kind")
)

const (
	FeeCleaning = "cleaning_fee"
	FeeService  = "service_fee"
)

type Line struct {
	Date   time.Time
	Amount money.Money
}

type Fee struct {
	Name   string
	Amount money.Money
}

// Quote is the single source of truth for what a booking costs. Lines hold the
// effective per-date price (times quantity for per-slot kinds).
type Quote struct {
	Lines    []Line
	Fees     []Fee
	Quantity int
	Subtotal money.Money
	Total    money.Money
}

func (q Quote) Copy() Quote {
	clone := q
	clone.Lines = append([]Line(nil), q.Lines...)
	clone.Fees = append([]Fee(nil), q.Fees...)
	return clone
}

// FixedFees are configured constants added once per lodging booking.
type FixedFees struct {
	Cleaning money.Money
	Service  money.Money
}

type Input struct {
	Resource *resources.Resource
	Range    daterange.DateRange
	Quantity int
	Records  map[time.Time]availability.Record
}

// Strategy prices one resource kind.
type Strategy func(in Input, fees FixedFees) (Quote, error)

type Calculator struct {
	fees       FixedFees
	strategies map[resources.Kind]Strategy
}

func NewCalculator(fees FixedFees) *Calculator {
	return &Calculator{
		fees: fees,
		strategies: map[resources.Kind]Strategy{
			resources.KindLodging: nightlyStrategy,
			resources.KindTour:    perSlotStrategy,
			resources.KindEvent:   perSlotStrategy,
		},
	}
}

func (c *Calculator) Fees() FixedFees {
	return c.fees
}

func (c *Calculator) Price(in Input) (Quote, error) {
	if in.Resource == nil {
		return Quote{}, fmt.Errorf("%w: resource missing", ErrInvalidPricing)
	}
	if err := in.Range.Validate(); err != nil {
		return Quote{}, err
	}
	strategy, ok := c.strategies[in.Resource.Kind]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoStrategy, in.Resource.Kind)
	}
	q, err := strategy(in, c.fees)
	if err != nil {
		return Quote{}, err
	}
	if !q.Total.IsPositive() {
		return Quote{}, fmt.Errorf("%w: total %d", ErrInvalidPricing, q.Total.Amount)
	}
	return q, nil
}

// EffectivePrice resolves the per-date price: override when present, base otherwise.
func EffectivePrice(r *resources.Resource, records map[time.Time]availability.Record, d time.Time) (money.Money, error) {
	var rec *availability.Record
	if found, ok := records[d]; ok {
		rec = &found
	}
	_, price := availability.Effective(rec, r.BasePrice)
	if price.Amount < 0 {
		return money.Money{}, fmt.Errorf("%w: negative price on %s", ErrInvalidPricing, d.Format(time.DateOnly))
	}
	if price.Currency != r.BasePrice.Currency {
		return money.Money{}, fmt.Errorf("%w: %w", ErrInvalidPricing, money.ErrCurrencyMismatch)
	}
	return price, nil
}

func nightlyStrategy(in Input, fees FixedFees) (Quote, error) {
	subtotal := money.Zero(in.Resource.BasePrice.Currency)
	lines := make([]Line, 0, in.Range.Nights())
	for d := range in.Range.Days() {
		price, err := EffectivePrice(in.Resource, in.Records, d)
		if err != nil {
			return Quote{}, err
		}
		lines = append(lines, Line{Date: d, Amount: price})
		subtotal, err = subtotal.Add(price)
		if err != nil {
			return Quote{}, fmt.Errorf("%w: %w", ErrInvalidPricing, err)
		}
	}
	q := Quote{Lines: lines, Quantity: 1, Subtotal: subtotal}
	total := subtotal
	for _, fee := range []Fee{{Name: FeeCleaning, Amount: fees.Cleaning}, {Name: FeeService, Amount: fees.Service}} {
		if fee.Amount.IsZero() {
			continue
		}
		if fee.Amount.Amount < 0 {
			return Quote{}, fmt.Errorf("%w: negative %s", ErrInvalidPricing, fee.Name)
		}
		var err error
		total, err = total.Add(fee.Amount)
		if err != nil {
			return Quote{}, fmt.Errorf("%w: %s: %w", ErrInvalidPricing, fee.Name, err)
		}
		q.Fees = append(q.Fees, fee)
	}
	q.Total = total
	return q, nil
}

func perSlotStrategy(in Input, _ FixedFees) (Quote, error) {
	if in.Quantity <= 0 {
		return Quote{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidPricing)
	}
	d := in.Range.Start
	price, err := EffectivePrice(in.Resource, in.Records, d)
	if err != nil {
		return Quote{}, err
	}
	amount := price.Multiply(int64(in.Quantity))
	return Quote{
		Lines:    []Line{{Date: d, Amount: amount}},
		Quantity: in.Quantity,
		Subtotal: amount,
		Total:    amount,
	}, nil
}
