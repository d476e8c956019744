package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/utils"
)

// Earth radius used to convert a surface distance into radians for the
// sphere-cap query.
const (
	earthRadiusMiles = 3963.2
	earthRadiusKm    = 6378.1
)

// TourStore is tour storage as the tour handlers see it: generic CRUD plus
// the aggregation-backed reads.
type TourStore interface {
	Collection[model.Tour]
	FindByIDPopulated(ctx context.Context, id string) (*model.Tour, error)
	Stats(ctx context.Context) ([]repository.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]repository.MonthlyPlanEntry, error)
	Within(ctx context.Context, lat, lng, radius float64) ([]model.Tour, error)
	Distances(ctx context.Context, lat, lng, multiplier float64) ([]repository.TourDistance, error)
}

// TourHandler serves the tour CRUD and its aggregation endpoints.
type TourHandler struct {
	tours TourStore
}

func NewTourHandler(tours TourStore) *TourHandler {
	return &TourHandler{tours: tours}
}

// AliasTopTours rewrites the query string so the plain list handler serves
// the five best tours. Explicit client parameters are overwritten.
func AliasTopTours(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		q := c.Request().URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratings_average,price")
		q.Set("fields", "name,price,ratings_average,summary,difficulty")
		c.Request().URL.RawQuery = q.Encode()
		return next(c)
	}
}

func (h *TourHandler) GetAllTours() echo.HandlerFunc {
	return GetAll[model.Tour](h.tours, nil)
}

// GetTour serves a single tour with its guides and reviews expanded.
func (h *TourHandler) GetTour(c echo.Context) error {
	t, err := h.tours.FindByIDPopulated(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("No tour found with that ID")
		}
		return err
	}
	return respondOne(c, http.StatusOK, t)
}

func (h *TourHandler) CreateTour() echo.HandlerFunc {
	return CreateOne[model.Tour](h.tours, func(c echo.Context, t *model.Tour) error {
		if err := t.Validate(); err != nil {
			return err
		}
		t.Slug = utils.Slugify(t.Name)
		t.CreatedAt = time.Now().UTC()
		if t.RatingsAverage == 0 {
			t.RatingsAverage = model.DefaultRatingsAverage
		}
		t.RatingsQuantity = model.DefaultRatingsQuantity
		return nil
	}, nil)
}

func (h *TourHandler) UpdateTour() echo.HandlerFunc {
	// The patch validator also re-derives the slug when the name changes.
	return UpdateOne[model.Tour](h.tours, func(patch bson.M) *apperr.Error {
		if err := model.ValidateTourPatch(patch); err != nil {
			return err
		}
		if v, ok := patch["name"]; ok {
			if s, _ := v.(string); s != "" {
				patch["slug"] = utils.Slugify(s)
			}
		}
		return nil
	}, nil)
}

func (h *TourHandler) DeleteTour() echo.HandlerFunc {
	return DeleteOne[model.Tour](h.tours, nil)
}

// GetTourStats serves rating and price aggregates grouped by difficulty.
func (h *TourHandler) GetTourStats(c echo.Context) error {
	stats, err := h.tours.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status": "success",
		"data":   echo.Map{"stats": stats},
	})
}

// GetMonthlyPlan serves the busiest starting months of a year.
func (h *TourHandler) GetMonthlyPlan(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return apperr.InvalidField("year", c.Param("year"))
	}
	plan, err := h.tours.MonthlyPlan(c.Request().Context(), year)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status": "success",
		"data":   echo.Map{"plan": plan},
	})
}

// GetToursWithin lists tours whose start location lies within :distance of
// the :latlng center, in the given :unit (mi or km).
func (h *TourHandler) GetToursWithin(c echo.Context) error {
	distance, err := strconv.ParseFloat(c.Param("distance"), 64)
	if err != nil || distance < 0 {
		return apperr.InvalidField("distance", c.Param("distance"))
	}
	lat, lng, perr := parseLatLng(c.Param("latlng"))
	if perr != nil {
		return perr
	}
	radius := distance / earthRadiusMiles
	if c.Param("unit") == "km" {
		radius = distance / earthRadiusKm
	}
	tours, err := h.tours.Within(c.Request().Context(), lat, lng, radius)
	if err != nil {
		return err
	}
	return respondList(c, tours)
}

// GetDistances serves the distance from :latlng to every tour start location.
func (h *TourHandler) GetDistances(c echo.Context) error {
	lat, lng, perr := parseLatLng(c.Param("latlng"))
	if perr != nil {
		return perr
	}
	multiplier := 0.000621371 // meters to miles
	if c.Param("unit") == "km" {
		multiplier = 0.001
	}
	out, err := h.tours.Distances(c.Request().Context(), lat, lng, multiplier)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status": "success",
		"data":   echo.Map{"data": out},
	})
}

// parseLatLng splits a "lat,lng" path segment.
func parseLatLng(raw string) (lat, lng float64, err *apperr.Error) {
	parts := strings.Split(raw, ",")
	bad := apperr.New(http.StatusBadRequest,
		"Please provide latitude and longitude in the format lat,lng")
	if len(parts) != 2 {
		return 0, 0, bad
	}
	lat, e1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, e2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if e1 != nil || e2 != nil {
		return 0, 0, bad
	}
	return lat, lng, nil
}
