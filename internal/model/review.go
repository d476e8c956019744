package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/tour-booking/internal/apperr"
)

// Review is a document in the `reviews` collection. A unique compound index
// on (user, tour) lets the storage layer enforce one review per user per
// tour; no in-process coordination is attempted.
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Review    string             `bson:"review" json:"review"`
	Rating    float64            `bson:"rating" json:"rating"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour"`

	// Author carries the eagerly expanded review author on reads.
	// Never persisted; populated by an aggregation $lookup.
	Author *User `bson:"author,omitempty" json:"author,omitempty"`
}

// Validate checks the full set of field rules used on create.
func (r *Review) Validate() *apperr.Error {
	var msgs []string
	text := strings.TrimSpace(r.Review)
	if text == "" {
		msgs = append(msgs, "review cannot be empty")
	} else if len(text) > 500 {
		msgs = append(msgs, "a review cannot be more than 500 characters")
	}
	if msg := ratingRule(r.Rating); msg != "" {
		msgs = append(msgs, msg)
	}
	if r.User.IsZero() {
		msgs = append(msgs, "review must belong to a user")
	}
	if r.Tour.IsZero() {
		msgs = append(msgs, "review must belong to a tour")
	}
	if len(msgs) > 0 {
		return apperr.Validation(msgs...)
	}
	return nil
}

// ValidateReviewPatch re-checks field rules for a partial update.
func ValidateReviewPatch(patch bson.M) *apperr.Error {
	var msgs []string
	if v, ok := patch["review"]; ok {
		s, _ := v.(string)
		s = strings.TrimSpace(s)
		if s == "" {
			msgs = append(msgs, "review cannot be empty")
		} else if len(s) > 500 {
			msgs = append(msgs, "a review cannot be more than 500 characters")
		}
	}
	if v, ok := patch["rating"]; ok {
		if msg := ratingRule(asFloat(v)); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) > 0 {
		return apperr.Validation(msgs...)
	}
	return nil
}

func ratingRule(r float64) string {
	if r < 1 || r > 5 {
		return "a rating must be between 1 and 5"
	}
	return ""
}
