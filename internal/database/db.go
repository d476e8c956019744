package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Open connects to MongoDB and verifies the connection with a ping.
func Open(uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, client.Database(dbName), nil
}

// EnsureIndexes creates the indexes the application relies on; every call is
// idempotent. The unique compound index on (user, tour) is what enforces one
// review per user per tour; uniqueness is never coordinated in-process.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "password_reset_token", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_reset_token"),
		},
	}
	tours := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "price", Value: 1},
				{Key: "ratings_average", Value: -1},
			},
			Options: options.Index().SetName("idx_price_ratings"),
		},
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("idx_slug"),
		},
		{
			Keys:    bson.D{{Key: "start_location", Value: "2dsphere"}},
			Options: options.Index().SetName("idx_start_location"),
		},
	}
	reviews := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user", Value: 1},
				{Key: "tour", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_user_tour"),
		},
	}

	if _, err := db.Collection("users").Indexes().CreateMany(ctx, users); err != nil {
		return err
	}
	if _, err := db.Collection("tours").Indexes().CreateMany(ctx, tours); err != nil {
		return err
	}
	_, err := db.Collection("reviews").Indexes().CreateMany(ctx, reviews)
	return err
}
