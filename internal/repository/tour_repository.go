package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/model"
)

// TourRepo persists tours. Secret tours are excluded from every read by the
// base predicate.
type TourRepo struct {
	*Mongo[model.Tour]
	col *mongo.Collection
}

func NewTourRepo(db *mongo.Database) *TourRepo {
	col := db.Collection("tours")
	return &TourRepo{
		Mongo: NewMongo[model.Tour](col, bson.M{"secret_tour": bson.M{"$ne": true}}),
		col:   col,
	}
}

// FindByIDPopulated fetches one tour with its guides and reviews eagerly
// expanded via $lookup. Sensitive guide fields are projected away.
func (r *TourRepo) FindByIDPopulated(ctx context.Context, id string) (*model.Tour, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"_id":         oid,
			"secret_tour": bson.M{"$ne": true},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "guides",
			"foreignField": "_id",
			"as":           "guide_details",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "reviews",
			"localField":   "_id",
			"foreignField": "tour",
			"as":           "reviews",
		}}},
		{{Key: "$project", Value: bson.M{
			"guide_details.password":               0,
			"guide_details.password_changed_at":    0,
			"guide_details.password_reset_token":   0,
			"guide_details.password_reset_expires": 0,
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tours []model.Tour
	if err := cur.All(ctx, &tours); err != nil {
		return nil, err
	}
	if len(tours) == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return &tours[0], nil
}

// TourStats is an aggregation row grouping tours by difficulty.
type TourStats struct {
	Difficulty string  `bson:"_id" json:"difficulty"`
	Num        int     `bson:"num" json:"num"`
	AvgRating  float64 `bson:"avg_rating" json:"avg_rating"`
	AvgPrice   float64 `bson:"avg_price" json:"avg_price"`
	MinPrice   float64 `bson:"min_price" json:"min_price"`
	MaxPrice   float64 `bson:"max_price" json:"max_price"`
}

// Stats aggregates rating and price figures per difficulty over well-rated
// tours.
func (r *TourRepo) Stats(ctx context.Context) ([]TourStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"ratings_average": bson.M{"$gte": 4.5},
			"secret_tour":     bson.M{"$ne": true},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"num":        bson.M{"$sum": 1},
			"avg_rating": bson.M{"$avg": "$ratings_average"},
			"avg_price":  bson.M{"$avg": "$price"},
			"min_price":  bson.M{"$min": "$price"},
			"max_price":  bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.M{"avg_price": 1}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var stats []TourStats
	if err := cur.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// MonthlyPlanEntry is an aggregation row counting tour starts per month.
type MonthlyPlanEntry struct {
	Month    int      `bson:"month" json:"month"`
	NumTours int      `bson:"num_tour_starts" json:"num_tour_starts"`
	Tours    []string `bson:"tours" json:"tours"`
}

// MonthlyPlan unwinds start dates within the given year and ranks the six
// busiest months.
func (r *TourRepo) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlanEntry, error) {
	from := primitive.NewDateTimeFromTime(yearStart(year))
	to := primitive.NewDateTimeFromTime(yearStart(year + 1))
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"secret_tour": bson.M{"$ne": true}}}},
		{{Key: "$unwind", Value: "$start_dates"}},
		{{Key: "$match", Value: bson.M{
			"start_dates": bson.M{"$gte": from, "$lt": to},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":             bson.M{"$month": "$start_dates"},
			"num_tour_starts": bson.M{"$sum": 1},
			"tours":           bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.M{"num_tour_starts": -1}}},
		{{Key: "$limit", Value: 6}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var plan []MonthlyPlanEntry
	if err := cur.All(ctx, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Within lists tours whose start location falls inside a sphere cap around
// (lat, lng). radius is in radians (distance divided by earth radius).
func (r *TourRepo) Within(ctx context.Context, lat, lng, radius float64) ([]model.Tour, error) {
	filter := r.withBase(bson.M{
		"start_location": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{lng, lat}, radius},
			},
		},
	})
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var tours []model.Tour
	if err := cur.All(ctx, &tours); err != nil {
		return nil, err
	}
	return tours, nil
}

// TourDistance is a $geoNear result row.
type TourDistance struct {
	Name     string  `bson:"name" json:"name"`
	Distance float64 `bson:"distance" json:"distance"`
}

// Distances computes the distance from (lat, lng) to every tour start
// location. multiplier converts meters to the caller's unit.
func (r *TourRepo) Distances(ctx context.Context, lat, lng, multiplier float64) ([]TourDistance, error) {
	// $geoNear must be the first pipeline stage; the base predicate rides
	// along in its query document.
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near": bson.M{
				"type":        "Point",
				"coordinates": bson.A{lng, lat},
			},
			"distanceField":      "distance",
			"distanceMultiplier": multiplier,
			"query":              bson.M{"secret_tour": bson.M{"$ne": true}},
		}}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []TourDistance
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}
