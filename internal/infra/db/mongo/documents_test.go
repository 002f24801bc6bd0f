package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	domainavailability "travelbook/internal/domain/availability"
	domainbooking "travelbook/internal/domain/booking"
	domainpricing "travelbook/internal/domain/pricing"
	"travelbook/internal/domain/shared/daterange"
	"travelbook/internal/domain/shared/money"
)

func TestRecordIDIsPerResourceDay(t *testing.T) {
	morning := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 7, 1, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, "villa|2025-07-01", recordID("villa", morning))
	assert.Equal(t, recordID("villa", morning), recordID("villa", evening))
	assert.NotEqual(t, recordID("villa", morning), recordID("loft", morning))
}

func TestRecordDocumentOmitsMissingOverride(t *testing.T) {
	doc := newRecordDocument(domainavailability.Record{ResourceID: "villa", Date: time.Date(2025, 7, 1, 13, 0, 0, 0, time.UTC), Status: domainavailability.StatusBlocked})
	raw, err := bson.Marshal(doc)
	assert.NoError(t, err)
	var m bson.M
	assert.NoError(t, bson.Unmarshal(raw, &m))
	_, has := m["price_override"]
	assert.False(t, has)

	rec := doc.toRecord()
	assert.Nil(t, rec.PriceOverride)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), rec.Date)
}

func TestBookingDocumentKeepsQuote(t *testing.T) {
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	b := &domainbooking.Booking{
		ID:         "b1",
		ResourceID: "villa",
		Range:      daterange.DateRange{Start: day, End: day.AddDate(0, 0, 1)},
		PartySize:  2,
		Quote: domainpricing.Quote{
			Lines:    []domainpricing.Line{{Date: day, Amount: money.Must(500, "USD")}},
			Fees:     []domainpricing.Fee{{Name: domainpricing.FeeCleaning, Amount: money.Must(60, "USD")}},
			Quantity: 1,
			Subtotal: money.Must(500, "USD"),
			Total:    money.Must(560, "USD"),
		},
		TotalPrice:    money.Must(560, "USD"),
		Status:        domainbooking.StatusPending,
		PaymentStatus: domainbooking.PaymentPending,
		CreatedAt:     day,
		UpdatedAt:     day,
		Version:       3,
	}
	got := newBookingDocument(b).toAggregate()
	assert.Equal(t, b.Range, got.Range)
	assert.Equal(t, b.Quote, got.Quote)
	assert.Equal(t, b.TotalPrice, got.TotalPrice)
	assert.Equal(t, int64(3), got.Version)
}
