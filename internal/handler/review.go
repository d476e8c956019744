package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
)

// ReviewStore is review storage as the review handlers see it: generic CRUD,
// the duplicate-aware create and the rating recomputation.
type ReviewStore interface {
	Collection[model.Review]
	Create(ctx context.Context, rv *model.Review) (*model.Review, error)
	CalcAverageRatings(ctx context.Context, tourID primitive.ObjectID) error
}

// ReviewHandler serves reviews, both top-level and nested below a tour.
type ReviewHandler struct {
	reviews ReviewStore
}

func NewReviewHandler(reviews ReviewStore) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// GetAllReviews lists reviews; mounted below a tour it narrows to that tour.
func (h *ReviewHandler) GetAllReviews() echo.HandlerFunc {
	return GetAll[model.Review](h.reviews, func(c echo.Context) bson.M {
		raw := c.Param("tourId")
		if raw == "" {
			return nil
		}
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			// Malformed tour id: scope to a value no document carries.
			return bson.M{"tour": raw}
		}
		return bson.M{"tour": oid}
	})
}

// CreateReview stores a new review. The tour comes from the nested route (or
// the body as a fallback), the author always from the session; then the
// tour's rating figures are recomputed.
func (h *ReviewHandler) CreateReview(c echo.Context) error {
	u := middleware.UserFrom(c)
	if u == nil {
		return apperr.NoCredential("You are not logged in! Please login to get access")
	}
	var rv model.Review
	if err := c.Bind(&rv); err != nil {
		return apperr.New(http.StatusBadRequest, "invalid request body")
	}
	if raw := c.Param("tourId"); raw != "" {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return err
		}
		rv.Tour = oid
	}
	rv.User = u.ID
	if err := rv.Validate(); err != nil {
		return err
	}
	ctx := c.Request().Context()
	out, err := h.reviews.Create(ctx, &rv)
	if err != nil {
		return err
	}
	if err := h.reviews.CalcAverageRatings(ctx, out.Tour); err != nil {
		return err
	}
	return respondOne(c, http.StatusCreated, out)
}

func (h *ReviewHandler) GetReview() echo.HandlerFunc {
	return GetOne[model.Review](h.reviews)
}

func (h *ReviewHandler) UpdateReview() echo.HandlerFunc {
	return UpdateOne[model.Review](h.reviews, model.ValidateReviewPatch,
		func(c echo.Context, rv *model.Review) error {
			return h.reviews.CalcAverageRatings(c.Request().Context(), rv.Tour)
		})
}

func (h *ReviewHandler) DeleteReview() echo.HandlerFunc {
	return DeleteOne[model.Review](h.reviews,
		func(c echo.Context, rv *model.Review) error {
			return h.reviews.CalcAverageRatings(c.Request().Context(), rv.Tour)
		})
}
