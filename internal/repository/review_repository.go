package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/model"
)

// ReviewRepo persists reviews and maintains the owning tour's rating
// figures. The unique (user, tour) index arbitrates concurrent writes; the
// repository only translates the violation into a duplicate error.
type ReviewRepo struct {
	*Mongo[model.Review]
	col   *mongo.Collection
	tours *mongo.Collection
}

func NewReviewRepo(db *mongo.Database) *ReviewRepo {
	col := db.Collection("reviews")
	return &ReviewRepo{
		Mongo: NewMongo[model.Review](col, nil),
		col:   col,
		tours: db.Collection("tours"),
	}
}

// Create inserts a review, stamping its creation time.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) (*model.Review, error) {
	rv.CreatedAt = time.Now().UTC()
	out, err := r.InsertOne(ctx, rv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.Duplicate("you have already reviewed this tour")
		}
		return nil, err
	}
	return out, nil
}

// CalcAverageRatings recomputes and persists the rating count and average of
// a tour. Called explicitly after every review create, update and delete;
// with no reviews left the tour falls back to its defaults.
func (r *ReviewRepo) CalcAverageRatings(ctx context.Context, tourID primitive.ObjectID) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.M{
			"_id":        "$tour",
			"n_ratings":  bson.M{"$sum": 1},
			"avg_rating": bson.M{"$avg": "$rating"},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	var stats []struct {
		NRatings  int     `bson:"n_ratings"`
		AvgRating float64 `bson:"avg_rating"`
	}
	if err := cur.All(ctx, &stats); err != nil {
		return err
	}

	quantity := model.DefaultRatingsQuantity
	average := model.DefaultRatingsAverage
	if len(stats) > 0 {
		quantity = stats[0].NRatings
		average = stats[0].AvgRating
	}
	_, err = r.tours.UpdateOne(ctx, bson.M{"_id": tourID}, bson.M{
		"$set": bson.M{
			"ratings_quantity": quantity,
			"ratings_average":  average,
		},
	})
	return err
}
