package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "travelbook/internal/domain/availability"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
)

// AvailabilityStore keeps one document per (resource, date). The document id encodes
// both so a put is a single upsert.
type AvailabilityStore struct {
	col *mongo.Collection
}

func NewAvailabilityStore(db *mongo.Database) *AvailabilityStore {
	col := db.Collection("availability_records")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "resource_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return &AvailabilityStore{col: col}
}

func (s *AvailabilityStore) Get(ctx context.Context, id domainresources.ResourceID, date time.Time) (*domainavailability.Record, error) {
	var doc recordDocument
	err := s.col.FindOne(ctx, bson.M{"_id": recordID(id, date)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := doc.toRecord()
	return &rec, nil
}

func (s *AvailabilityStore) GetRange(ctx context.Context, id domainresources.ResourceID, dr daterange.DateRange) (map[time.Time]domainavailability.Record, error) {
	filter := bson.M{
		"resource_id": string(id),
		"date":        bson.M{"$gte": dr.Start, "$lt": dr.End},
	}
	cur, err := s.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make(map[time.Time]domainavailability.Record)
	for cur.Next(ctx) {
		var doc recordDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec := doc.toRecord()
		out[rec.Date] = rec
	}
	return out, cur.Err()
}

func (s *AvailabilityStore) Put(ctx context.Context, rec domainavailability.Record) error {
	doc := newRecordDocument(rec)
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *AvailabilityStore) Delete(ctx context.Context, id domainresources.ResourceID, date time.Time) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": recordID(id, date)})
	return err
}

func (s *AvailabilityStore) ListByStatus(ctx context.Context, status domainavailability.Status) ([]domainavailability.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "resource_id", Value: 1}, {Key: "date", Value: 1}})
	cur, err := s.col.Find(ctx, bson.M{"status": string(status)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]domainavailability.Record, 0)
	for cur.Next(ctx) {
		var doc recordDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toRecord())
	}
	return out, cur.Err()
}

type recordDocument struct {
	ID            string         `bson:"_id"`
	ResourceID    string         `bson:"resource_id"`
	Kind          string         `bson:"kind"`
	Date          time.Time      `bson:"date"`
	Status        string         `bson:"status"`
	PriceOverride *moneyDocument `bson:"price_override,omitempty"`
	UpdatedAt     time.Time      `bson:"updated_at"`
}

func recordID(id domainresources.ResourceID, date time.Time) string {
	return string(id) + "|" + daterange.Day(date).Format(time.DateOnly)
}

func newRecordDocument(rec domainavailability.Record) recordDocument {
	doc := recordDocument{
		ID:         recordID(rec.ResourceID, rec.Date),
		ResourceID: string(rec.ResourceID),
		Kind:       string(rec.Kind),
		Date:       daterange.Day(rec.Date),
		Status:     string(rec.Status),
		UpdatedAt:  rec.UpdatedAt.UTC(),
	}
	if rec.PriceOverride != nil {
		p := newMoneyDocument(*rec.PriceOverride)
		doc.PriceOverride = &p
	}
	return doc
}

func (d recordDocument) toRecord() domainavailability.Record {
	rec := domainavailability.Record{
		ResourceID: domainresources.ResourceID(d.ResourceID),
		Kind:       domainresources.Kind(d.Kind),
		Date:       daterange.Day(d.Date),
		Status:     domainavailability.Status(d.Status),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if d.PriceOverride != nil {
		p := d.PriceOverride.toMoney()
		rec.PriceOverride = &p
	}
	return rec
}

var _ domainavailability.Store = (*AvailabilityStore)(nil)
