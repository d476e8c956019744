package model

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/tour-booking/internal/apperr"
)

// Tour difficulty values form a closed set enforced on create and update.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// GeoPoint is a GeoJSON point. The 2dsphere index on start_location expects
// [longitude, latitude] coordinate order.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Day         int       `bson:"day,omitempty" json:"day,omitempty"`
}

// Tour is a document in the `tours` collection. Secret tours are hidden from
// every list and detail read by the repository's base predicate, and the
// ratings pair is maintained by the review post-write hook, never by direct
// client input.
type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name"`
	Slug            string               `bson:"slug,omitempty" json:"slug,omitempty"`
	Duration        int                  `bson:"duration" json:"duration"`
	MaxGroupSize    int                  `bson:"max_group_size" json:"max_group_size"`
	Difficulty      string               `bson:"difficulty" json:"difficulty"`
	RatingsAverage  float64              `bson:"ratings_average" json:"ratings_average"`
	RatingsQuantity int                  `bson:"ratings_quantity" json:"ratings_quantity"`
	Price           float64              `bson:"price" json:"price"`
	PriceDiscount   float64              `bson:"price_discount,omitempty" json:"price_discount,omitempty"`
	Summary         string               `bson:"summary,omitempty" json:"summary,omitempty"`
	Description     string               `bson:"description" json:"description"`
	ImageCover      string               `bson:"image_cover" json:"image_cover"`
	Images          []string             `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	StartDates      []time.Time          `bson:"start_dates,omitempty" json:"start_dates,omitempty"`
	SecretTour      bool                 `bson:"secret_tour,omitempty" json:"-"`
	StartLocation   *GeoPoint            `bson:"start_location,omitempty" json:"start_location,omitempty"`
	Locations       []GeoPoint           `bson:"locations,omitempty" json:"locations,omitempty"`
	Guides          []primitive.ObjectID `bson:"guides,omitempty" json:"guides,omitempty"`

	// GuideDetails carries eagerly expanded guide documents on detail reads.
	// Never persisted; populated by an aggregation $lookup.
	GuideDetails []User `bson:"guide_details,omitempty" json:"guide_details,omitempty"`
	// Reviews carries eagerly expanded reviews on detail reads.
	Reviews []Review `bson:"reviews,omitempty" json:"reviews,omitempty"`
}

// DefaultRatings are applied to a tour with no reviews yet.
const (
	DefaultRatingsAverage  = 4.5
	DefaultRatingsQuantity = 0
)

// Validate checks the full set of field rules used on create.
func (t *Tour) Validate() *apperr.Error {
	var msgs []string
	name := strings.TrimSpace(t.Name)
	switch {
	case name == "":
		msgs = append(msgs, "a tour must have a name")
	case len(name) < 10:
		msgs = append(msgs, "a tour name must have >= 10 characters")
	case len(name) > 40:
		msgs = append(msgs, "a tour name must have <= 40 characters")
	}
	if t.Duration <= 0 {
		msgs = append(msgs, "a tour must have a duration")
	}
	if t.MaxGroupSize <= 0 {
		msgs = append(msgs, "a tour must have a group size")
	}
	if msg := difficultyRule(t.Difficulty); msg != "" {
		msgs = append(msgs, msg)
	}
	if t.Price <= 0 {
		msgs = append(msgs, "a tour must have a price")
	}
	if t.PriceDiscount != 0 && t.PriceDiscount >= t.Price {
		msgs = append(msgs, fmt.Sprintf("discount price (%v) should be lower than the price", t.PriceDiscount))
	}
	if strings.TrimSpace(t.Description) == "" {
		msgs = append(msgs, "a tour must have a description")
	}
	if t.ImageCover == "" {
		msgs = append(msgs, "a tour must have an image cover")
	}
	if len(msgs) > 0 {
		return apperr.Validation(msgs...)
	}
	return nil
}

// ValidateTourPatch re-checks field rules for a partial update; invariants
// hold exactly as on create for every provided key.
func ValidateTourPatch(patch bson.M) *apperr.Error {
	var msgs []string
	if v, ok := patch["name"]; ok {
		s, _ := v.(string)
		s = strings.TrimSpace(s)
		switch {
		case s == "":
			msgs = append(msgs, "a tour must have a name")
		case len(s) < 10:
			msgs = append(msgs, "a tour name must have >= 10 characters")
		case len(s) > 40:
			msgs = append(msgs, "a tour name must have <= 40 characters")
		}
	}
	if v, ok := patch["difficulty"]; ok {
		s, _ := v.(string)
		if msg := difficultyRule(s); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if v, ok := patch["price"]; ok {
		if asFloat(v) <= 0 {
			msgs = append(msgs, "a tour must have a price")
		}
	}
	if v, ok := patch["duration"]; ok {
		if asFloat(v) <= 0 {
			msgs = append(msgs, "a tour must have a duration")
		}
	}
	if v, ok := patch["ratings_average"]; ok {
		r := asFloat(v)
		if r < 1 {
			msgs = append(msgs, "rating must be above 1.0")
		} else if r > 5 {
			msgs = append(msgs, "rating must be below 5.0")
		}
	}
	if len(msgs) > 0 {
		return apperr.Validation(msgs...)
	}
	return nil
}

func difficultyRule(s string) string {
	switch s {
	case DifficultyEasy, DifficultyMedium, DifficultyDifficult:
		return ""
	case "":
		return "a tour should have a difficulty"
	default:
		return "difficulty must be either: easy, medium, difficult"
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
