package handler

import (
	"context"
	"net/http"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
)

// memReviews is an in-memory ReviewStore. It enforces one review per
// (user, tour) the way the unique index does, and records every rating
// recomputation so tests can assert the post-write hook ran.
type memReviews struct {
	docs      map[string]model.Review
	recalced  []primitive.ObjectID
	lastScope bson.M
}

func newMemReviews() *memReviews {
	return &memReviews{docs: map[string]model.Review{}}
}

func (m *memReviews) Create(_ context.Context, rv *model.Review) (*model.Review, error) {
	for _, d := range m.docs {
		if d.User == rv.User && d.Tour == rv.Tour {
			return nil, apperr.Duplicate("you have already reviewed this tour")
		}
	}
	out := *rv
	out.ID = primitive.NewObjectID()
	m.docs[out.ID.Hex()] = out
	return &out, nil
}

func (m *memReviews) CalcAverageRatings(_ context.Context, tourID primitive.ObjectID) error {
	m.recalced = append(m.recalced, tourID)
	return nil
}

func (m *memReviews) InsertOne(_ context.Context, rv *model.Review) (*model.Review, error) {
	return m.Create(context.Background(), rv)
}

func (m *memReviews) FindByID(_ context.Context, id string) (*model.Review, error) {
	rv, ok := m.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &rv, nil
}

func (m *memReviews) UpdateByID(_ context.Context, id string, set bson.M) (*model.Review, error) {
	rv, ok := m.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	if v, ok := set["rating"]; ok {
		if f, ok := v.(float64); ok {
			rv.Rating = f
		}
	}
	if v, ok := set["review"]; ok {
		rv.Review, _ = v.(string)
	}
	m.docs[id] = rv
	return &rv, nil
}

func (m *memReviews) DeleteByID(_ context.Context, id string) (*model.Review, error) {
	rv, ok := m.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	delete(m.docs, id)
	return &rv, nil
}

func (m *memReviews) Find(_ context.Context, scope bson.M, _ query.Query) ([]model.Review, error) {
	m.lastScope = scope
	out := make([]model.Review, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out, nil
}

func sessionUser() *model.User {
	return &model.User{ID: primitive.NewObjectID(), Name: "Leo", Role: model.RoleUser}
}

func TestCreateReviewNestedRoute(t *testing.T) {
	store := newMemReviews()
	h := NewReviewHandler(store)
	u := sessionUser()
	tour := primitive.NewObjectID()

	c, rec := jsonContext(t, http.MethodPost, "/api/v1/tours/"+tour.Hex()+"/reviews", map[string]any{
		"review": "Loved every minute of it",
		"rating": 5,
	})
	c.Set("user", u)
	c.SetParamNames("tourId")
	c.SetParamValues(tour.Hex())

	if err := h.CreateReview(c); err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("code = %d, want 201", rec.Code)
	}
	if len(store.docs) != 1 {
		t.Fatalf("stored %d reviews, want 1", len(store.docs))
	}
	for _, rv := range store.docs {
		if rv.Tour != tour {
			t.Errorf("tour = %v, want the route's tour", rv.Tour)
		}
		if rv.User != u.ID {
			t.Errorf("user = %v, want the session user", rv.User)
		}
	}
	if len(store.recalced) != 1 || store.recalced[0] != tour {
		t.Errorf("recalced = %v, want one recomputation for the tour", store.recalced)
	}
}

func TestCreateReviewSecondBySameUserIsDuplicate(t *testing.T) {
	store := newMemReviews()
	h := NewReviewHandler(store)
	u := sessionUser()
	tour := primitive.NewObjectID()

	body := map[string]any{"review": "Great tour, would go again", "rating": 4}
	for attempt := 0; attempt < 2; attempt++ {
		c, _ := jsonContext(t, http.MethodPost, "/api/v1/tours/"+tour.Hex()+"/reviews", body)
		c.Set("user", u)
		c.SetParamNames("tourId")
		c.SetParamValues(tour.Hex())
		err := h.CreateReview(c)
		if attempt == 0 {
			if err != nil {
				t.Fatalf("first review rejected: %v", err)
			}
			continue
		}
		e, ok := apperr.As(err)
		if !ok || e.Kind != apperr.KindDuplicateValue || e.Status != http.StatusBadRequest {
			t.Errorf("second review: err = %v, want duplicate 400", err)
		}
	}
	if len(store.docs) != 1 {
		t.Errorf("stored %d reviews, want the duplicate rejected", len(store.docs))
	}
	if len(store.recalced) != 1 {
		t.Errorf("recalced %d times, want no recomputation after a rejected write", len(store.recalced))
	}
}

func TestCreateReviewRequiresSession(t *testing.T) {
	h := NewReviewHandler(newMemReviews())
	c, _ := jsonContext(t, http.MethodPost, "/api/v1/reviews", map[string]any{
		"review": "ok", "rating": 3,
	})
	err := h.CreateReview(c)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindNoCredential {
		t.Errorf("err = %v, want no credential", err)
	}
}

func TestCreateReviewValidatesRating(t *testing.T) {
	store := newMemReviews()
	h := NewReviewHandler(store)
	tour := primitive.NewObjectID()

	c, _ := jsonContext(t, http.MethodPost, "/api/v1/tours/"+tour.Hex()+"/reviews", map[string]any{
		"review": "off the scale",
		"rating": 6,
	})
	c.Set("user", sessionUser())
	c.SetParamNames("tourId")
	c.SetParamValues(tour.Hex())
	err := h.CreateReview(c)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindValidationFailed {
		t.Errorf("err = %v, want validation failure", err)
	}
	if len(store.docs) != 0 {
		t.Error("invalid review was stored")
	}
}

func seedReview(store *memReviews, tour primitive.ObjectID) model.Review {
	out, _ := store.Create(context.Background(), &model.Review{
		Review: "Solid trip",
		Rating: 4,
		User:   primitive.NewObjectID(),
		Tour:   tour,
	})
	store.recalced = nil // only track hook calls made by the handler under test
	return *out
}

func TestUpdateReviewRecomputesRatings(t *testing.T) {
	store := newMemReviews()
	h := NewReviewHandler(store)
	tour := primitive.NewObjectID()
	seeded := seedReview(store, tour)

	c, _ := jsonContext(t, http.MethodPatch, "/api/v1/reviews/"+seeded.ID.Hex(), map[string]any{
		"rating": 2,
	})
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID.Hex())
	if err := h.UpdateReview()(c); err != nil {
		t.Fatalf("UpdateReview: %v", err)
	}
	if store.docs[seeded.ID.Hex()].Rating != 2 {
		t.Errorf("rating = %v, want 2", store.docs[seeded.ID.Hex()].Rating)
	}
	if len(store.recalced) != 1 || store.recalced[0] != tour {
		t.Errorf("recalced = %v, want recomputation after update", store.recalced)
	}
}

func TestDeleteReviewRecomputesRatings(t *testing.T) {
	store := newMemReviews()
	h := NewReviewHandler(store)
	tour := primitive.NewObjectID()
	seeded := seedReview(store, tour)

	c, rec := jsonContext(t, http.MethodDelete, "/api/v1/reviews/"+seeded.ID.Hex(), nil)
	c.SetParamNames("id")
	c.SetParamValues(seeded.ID.Hex())
	if err := h.DeleteReview()(c); err != nil {
		t.Fatalf("DeleteReview: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("code = %d, want 204", rec.Code)
	}
	if len(store.docs) != 0 {
		t.Error("review still stored after delete")
	}
	if len(store.recalced) != 1 || store.recalced[0] != tour {
		t.Errorf("recalced = %v, want recomputation after delete", store.recalced)
	}
}

func TestGetAllReviewsScopedToTour(t *testing.T) {
	store := newMemReviews()
	h := NewReviewHandler(store)
	tour := primitive.NewObjectID()

	c, _ := jsonContext(t, http.MethodGet, "/api/v1/tours/"+tour.Hex()+"/reviews", nil)
	c.SetParamNames("tourId")
	c.SetParamValues(tour.Hex())
	if err := h.GetAllReviews()(c); err != nil {
		t.Fatalf("GetAllReviews: %v", err)
	}
	if store.lastScope["tour"] != tour {
		t.Errorf("scope = %v, want tour narrowed to %v", store.lastScope, tour)
	}
}
