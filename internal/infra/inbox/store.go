package inbox

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store remembers which broker events a consumer has handled. Marks expire after the
// retention window, which must outlast the broker's redelivery horizon.
type Store struct {
	col      *mongo.Collection
	consumer string
	now      func() time.Time
}

type receipt struct {
	EventID    string    `bson:"event_id"`
	Consumer   string    `bson:"consumer"`
	ReceivedAt time.Time `bson:"received_at"`
}

func NewStore(db *mongo.Database, consumer string, retention time.Duration) *Store {
	col := db.Collection("app_inbox")
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "received_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds()))},
	})
	return &Store{col: col, consumer: consumer, now: time.Now}
}

// Seen marks the event as received and reports whether it had been received before.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := s.col.InsertOne(ctx, receipt{EventID: eventID, Consumer: s.consumer, ReceivedAt: s.now().UTC()})
	switch {
	case err == nil:
		return false, nil
	case mongo.IsDuplicateKeyError(err):
		return true, nil
	default:
		return false, err
	}
}

// Forget drops the mark so a message whose handling failed is processed on redelivery.
func (s *Store) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer})
	return err
}
