package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelbook/internal/domain/availability"
	"travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/money"
)

var day1 = time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)

func lodging(base int64) *resources.Resource {
	return &resources.Resource{ID: "villa", Kind: resources.KindLodging, BasePrice: money.Must(base, "USD"), Capacity: 4}
}

func fees() FixedFees {
	return FixedFees{Cleaning: money.Must(50, "USD"), Service: money.Must(30, "USD")}
}

func nights(n int) daterange.DateRange {
	return daterange.DateRange{Start: day1, End: day1.AddDate(0, 0, n)}
}

func TestLodging_BasePricePlusFees(t *testing.T) {
	q, err := NewCalculator(fees()).Price(Input{Resource: lodging(500), Range: nights(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), q.Subtotal.Amount)
	assert.Equal(t, int64(1500+50+30), q.Total.Amount)
	assert.Len(t, q.Lines, 3)
	assert.Len(t, q.Fees, 2)
}

func TestLodging_OverrideOnSingleDate(t *testing.T) {
	override := money.Must(800, "USD")
	day2 := day1.AddDate(0, 0, 1)
	records := map[time.Time]availability.Record{
		day2: {ResourceID: "villa", Date: day2, Status: availability.StatusAvailable, PriceOverride: &override},
	}
	q, err := NewCalculator(fees()).Price(Input{Resource: lodging(500), Range: nights(3), Records: records})
	require.NoError(t, err)
	assert.Equal(t, int64(500+800+500+80), q.Total.Amount)
}

func TestLodging_SumOfNightsEqualsTotalMinusFees(t *testing.T) {
	calc := NewCalculator(fees())
	r := lodging(420)
	rangeQuote, err := calc.Price(Input{Resource: r, Range: nights(5)})
	require.NoError(t, err)

	var sum int64
	for d := range nights(5).Days() {
		single, err := calc.Price(Input{Resource: r, Range: daterange.Single(d)})
		require.NoError(t, err)
		sum += single.Total.Amount - 80
	}
	assert.Equal(t, rangeQuote.Total.Amount-80, sum)
}

func TestPerSlot_MultipliesQuantityWithoutFees(t *testing.T) {
	tour := &resources.Resource{ID: "tour", Kind: resources.KindTour, BasePrice: money.Must(1200, "USD"), Capacity: 12}
	q, err := NewCalculator(fees()).Price(Input{Resource: tour, Range: daterange.Single(day1), Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), q.Total.Amount)
	assert.Empty(t, q.Fees)

	_, err = NewCalculator(fees()).Price(Input{Resource: tour, Range: daterange.Single(day1)})
	assert.ErrorIs(t, err, ErrInvalidPricing)
}

func TestNonPositiveTotalRaises(t *testing.T) {
	zero := money.Must(0, "USD")
	records := map[time.Time]availability.Record{day1: {Date: day1, Status: availability.StatusAvailable, PriceOverride: &zero}}
	_, err := NewCalculator(FixedFees{}).Price(Input{Resource: lodging(500), Range: nights(1), Records: records})
	assert.ErrorIs(t, err, ErrInvalidPricing)

	negative := money.Must(-10, "USD")
	records[day1] = availability.Record{Date: day1, Status: availability.StatusAvailable, PriceOverride: &negative}
	_, err = NewCalculator(fees()).Price(Input{Resource: lodging(500), Range: nights(1), Records: records})
	assert.ErrorIs(t, err, ErrInvalidPricing)
}

func TestCurrencyMismatchIsMalformed(t *testing.T) {
	calc := NewCalculator(FixedFees{Cleaning: money.Must(50, "EUR")})
	_, err := calc.Price(Input{Resource: lodging(500), Range: nights(1)})
	assert.ErrorIs(t, err, ErrInvalidPricing)
}
