package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainresources "travelbook/internal/domain/resources"
)

// ResourceRepository reads the catalog maintained by the partner back-office.
type ResourceRepository struct {
	col *mongo.Collection
}

func NewResourceRepository(db *mongo.Database) *ResourceRepository {
	return &ResourceRepository{col: db.Collection("resources")}
}

func (r *ResourceRepository) ByID(ctx context.Context, id domainresources.ResourceID) (*domainresources.Resource, error) {
	var doc resourceDocument
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainresources.ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	res := doc.toResource()
	return &res, nil
}

func (r *ResourceRepository) Save(ctx context.Context, res *domainresources.Resource) error {
	doc := newResourceDocument(res)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *ResourceRepository) List(ctx context.Context) ([]*domainresources.Resource, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]*domainresources.Resource, 0)
	for cur.Next(ctx) {
		var doc resourceDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		res := doc.toResource()
		out = append(out, &res)
	}
	return out, cur.Err()
}

type resourceDocument struct {
	ID        string        `bson:"_id"`
	Kind      string        `bson:"kind"`
	Name      string        `bson:"name"`
	BasePrice moneyDocument `bson:"base_price"`
	Capacity  int           `bson:"capacity"`
	Active    bool          `bson:"active"`
}

func newResourceDocument(res *domainresources.Resource) resourceDocument {
	return resourceDocument{
		ID:        string(res.ID),
		Kind:      string(res.Kind),
		Name:      res.Name,
		BasePrice: newMoneyDocument(res.BasePrice),
		Capacity:  res.Capacity,
		Active:    res.Active,
	}
}

func (d resourceDocument) toResource() domainresources.Resource {
	return domainresources.Resource{
		ID:        domainresources.ResourceID(d.ID),
		Kind:      domainresources.Kind(d.Kind),
		Name:      d.Name,
		BasePrice: d.BasePrice.toMoney(),
		Capacity:  d.Capacity,
		Active:    d.Active,
	}
}

var _ domainresources.Repository = (*ResourceRepository)(nil)
