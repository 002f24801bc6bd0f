package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "travelbook/internal/domain/booking"
	domainpricing "travelbook/internal/domain/pricing"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
)

var ErrConcurrentUpdate = domainbooking.ErrVersionConflict

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("agg_booking")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "range.start", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	return &BookingRepository{col: col}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByResource(ctx context.Context, id domainresources.ResourceID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"resource_id": string(id)})
}

func (r *BookingRepository) ListByStatus(ctx context.Context, status domainbooking.Status) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"status": string(status)})
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]*domainbooking.Booking, 0)
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type bookingDocument struct {
	ID            string        `bson:"_id"`
	ResourceID    string        `bson:"resource_id"`
	Kind          string        `bson:"kind"`
	GuestID       string        `bson:"guest_id"`
	Range         rangeDocument `bson:"range"`
	PartySize     int           `bson:"party_size"`
	Quantity      int           `bson:"quantity"`
	Quote         quoteDocument `bson:"quote"`
	TotalPrice    moneyDocument `bson:"total_price"`
	Status        string        `bson:"status"`
	PaymentStatus string        `bson:"payment_status"`
	CancelReason  string        `bson:"cancel_reason,omitempty"`
	CreatedAt     int64         `bson:"created_at"`
	UpdatedAt     int64         `bson:"updated_at"`
	Version       int64         `bson:"version"`
}

type rangeDocument struct {
	Start int64 `bson:"start"`
	End   int64 `bson:"end"`
}

type lineDocument struct {
	Date   int64         `bson:"date"`
	Amount moneyDocument `bson:"amount"`
}

type feeDocument struct {
	Name   string        `bson:"name"`
	Amount moneyDocument `bson:"amount"`
}

type quoteDocument struct {
	Lines    []lineDocument `bson:"lines"`
	Fees     []feeDocument  `bson:"fees,omitempty"`
	Quantity int            `bson:"quantity"`
	Subtotal moneyDocument  `bson:"subtotal"`
	Total    moneyDocument  `bson:"total"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	q := quoteDocument{
		Quantity: b.Quote.Quantity,
		Subtotal: newMoneyDocument(b.Quote.Subtotal),
		Total:    newMoneyDocument(b.Quote.Total),
	}
	for _, line := range b.Quote.Lines {
		q.Lines = append(q.Lines, lineDocument{Date: line.Date.UnixMilli(), Amount: newMoneyDocument(line.Amount)})
	}
	for _, fee := range b.Quote.Fees {
		q.Fees = append(q.Fees, feeDocument{Name: fee.Name, Amount: newMoneyDocument(fee.Amount)})
	}
	return bookingDocument{
		ID:            string(b.ID),
		ResourceID:    string(b.ResourceID),
		Kind:          string(b.Kind),
		GuestID:       b.GuestID,
		Range:         rangeDocument{Start: b.Range.Start.UnixMilli(), End: b.Range.End.UnixMilli()},
		PartySize:     b.PartySize,
		Quantity:      b.Quantity,
		Quote:         q,
		TotalPrice:    newMoneyDocument(b.TotalPrice),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		CancelReason:  b.CancelReason,
		CreatedAt:     b.CreatedAt.UnixMilli(),
		UpdatedAt:     b.UpdatedAt.UnixMilli(),
		Version:       b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	quote := domainpricing.Quote{
		Quantity: d.Quote.Quantity,
		Subtotal: d.Quote.Subtotal.toMoney(),
		Total:    d.Quote.Total.toMoney(),
	}
	for _, line := range d.Quote.Lines {
		quote.Lines = append(quote.Lines, domainpricing.Line{Date: timestampToTime(line.Date), Amount: line.Amount.toMoney()})
	}
	for _, fee := range d.Quote.Fees {
		quote.Fees = append(quote.Fees, domainpricing.Fee{Name: fee.Name, Amount: fee.Amount.toMoney()})
	}
	return &domainbooking.Booking{
		ID:            domainbooking.BookingID(d.ID),
		ResourceID:    domainresources.ResourceID(d.ResourceID),
		Kind:          domainresources.Kind(d.Kind),
		GuestID:       d.GuestID,
		Range:         daterange.DateRange{Start: timestampToTime(d.Range.Start), End: timestampToTime(d.Range.End)},
		PartySize:     d.PartySize,
		Quantity:      d.Quantity,
		Quote:         quote,
		TotalPrice:    d.TotalPrice.toMoney(),
		Status:        domainbooking.Status(d.Status),
		PaymentStatus: domainbooking.PaymentStatus(d.PaymentStatus),
		CancelReason:  d.CancelReason,
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
		Version:       d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
