package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelbook/internal/domain/shared/money"
)

func TestEffective_DefaultIsAvailableAtBase(t *testing.T) {
	base := money.Must(500, "USD")
	status, price := Effective(nil, base)
	assert.Equal(t, StatusAvailable, status)
	assert.Equal(t, base, price)
}

func TestEffective_OverrideWins(t *testing.T) {
	override := money.Must(800, "USD")
	rec := &Record{Status: StatusAvailable, PriceOverride: &override}
	status, price := Effective(rec, money.Must(500, "USD"))
	assert.Equal(t, StatusAvailable, status)
	assert.Equal(t, override, price)

	status, price = Effective(&Record{Status: StatusMaintenance}, money.Must(500, "USD"))
	assert.Equal(t, StatusMaintenance, status)
	assert.Equal(t, int64(500), price.Amount)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Booked ")
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, s)
	assert.False(t, s.Sellable())

	_, err = ParseStatus("sold-out")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestSameStateAndClone(t *testing.T) {
	d := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := money.Must(700, "USD")
	a := Record{ResourceID: "r1", Date: d, Status: StatusAvailable, PriceOverride: &p, UpdatedAt: d}
	b := a.Clone()
	b.UpdatedAt = d.Add(time.Hour)
	assert.True(t, a.SameState(b))

	b.PriceOverride.Amount = 900
	assert.Equal(t, int64(700), a.PriceOverride.Amount)
	assert.False(t, a.SameState(b))

	b.PriceOverride = nil
	assert.False(t, a.SameState(b))
}
