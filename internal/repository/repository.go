// Package repository is the data access layer. A generic mongo-backed
// collection provides the five CRUD capabilities the handler factory is
// parameterized by; typed repositories embed it and add entity-specific
// queries and aggregations.
package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/tour-booking/internal/query"
)

// Mongo wraps a driver collection with an optional base predicate that is
// explicitly composed into every read and targeted write. The base predicate
// is how inactive users and secret tours stay invisible without hidden
// query-time hooks.
type Mongo[T any] struct {
	col  *mongo.Collection
	base bson.M
}

// NewMongo builds a generic collection. base may be nil.
func NewMongo[T any](col *mongo.Collection, base bson.M) *Mongo[T] {
	return &Mongo[T]{col: col, base: base}
}

// withBase merges the base predicate under the caller's filter. Caller keys
// win on conflict.
func (r *Mongo[T]) withBase(filter bson.M) bson.M {
	if len(r.base) == 0 {
		return filter
	}
	merged := bson.M{}
	for k, v := range r.base {
		merged[k] = v
	}
	for k, v := range filter {
		merged[k] = v
	}
	return merged
}

// InsertOne persists a new document and returns it with its generated id.
func (r *Mongo[T]) InsertOne(ctx context.Context, doc *T) (*T, error) {
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	var out T
	if err := r.col.FindOne(ctx, bson.M{"_id": res.InsertedID}).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches one document by hex id, base predicate applied.
func (r *Mongo[T]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var out T
	if err := r.col.FindOne(ctx, r.withBase(bson.M{"_id": oid})).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateByID applies a partial $set and returns the updated document, or
// mongo.ErrNoDocuments when no visible document matches.
func (r *Mongo[T]) UpdateByID(ctx context.Context, id string, set bson.M) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out T
	err = r.col.FindOneAndUpdate(ctx, r.withBase(bson.M{"_id": oid}), bson.M{"$set": set}, opts).Decode(&out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteByID removes a document and returns what was removed, so callers can
// run post-write hooks against it.
func (r *Mongo[T]) DeleteByID(ctx context.Context, id string) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var out T
	if err := r.col.FindOneAndDelete(ctx, r.withBase(bson.M{"_id": oid})).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Find runs a list query: base predicate + route scope + the caller-derived
// query, with its sort, projection and pagination window.
func (r *Mongo[T]) Find(ctx context.Context, scope bson.M, q query.Query) ([]T, error) {
	filter := bson.M{}
	for k, v := range q.Filter {
		filter[k] = v
	}
	for k, v := range scope {
		filter[k] = v
	}
	cur, err := r.col.Find(ctx, r.withBase(filter), q.FindOptions())
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]T, 0, q.Limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
