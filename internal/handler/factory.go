package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/query"
)

// Collection is the storage capability the generic handlers are built over.
// Repositories satisfy it with their embedded mongo collection; tests swap in
// an in-memory fake.
type Collection[T any] interface {
	InsertOne(ctx context.Context, doc *T) (*T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	UpdateByID(ctx context.Context, id string, set bson.M) (*T, error)
	DeleteByID(ctx context.Context, id string) (*T, error)
	Find(ctx context.Context, scope bson.M, q query.Query) ([]T, error)
}

// ScopeFunc narrows a list to the route it is mounted under, e.g. reviews
// nested below a tour. A nil scope lists the whole collection.
type ScopeFunc func(c echo.Context) bson.M

// HookFunc runs after a successful create, update or delete with the written
// document. Failures surface as the request's error.
type HookFunc[T any] func(c echo.Context, doc *T) error

// Envelope helpers. Every success body is {"status":"success", ...} with the
// payload nested under data.data, and list responses carry a results count.

func respondOne(c echo.Context, code int, doc any) error {
	return c.JSON(code, echo.Map{
		"status": "success",
		"data":   echo.Map{"data": doc},
	})
}

func respondList[T any](c echo.Context, docs []T) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": len(docs),
		"data":    echo.Map{"data": docs},
	})
}

// GetAll builds a list handler: route scope plus the four query-parameter
// features (filter, sort, fields, paginate) over the collection.
func GetAll[T any](col Collection[T], scope ScopeFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var sc bson.M
		if scope != nil {
			sc = scope(c)
		}
		q := query.New(c.QueryParams()).Filter().Sort().Fields().Paginate().Query
		docs, err := col.Find(c.Request().Context(), sc, q)
		if err != nil {
			return err
		}
		return respondList(c, docs)
	}
}

// GetOne builds a detail handler keyed by the :id path parameter.
func GetOne[T any](col Collection[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		doc, err := col.FindByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperr.NotFound("No document found with that ID")
			}
			return err
		}
		return respondOne(c, http.StatusOK, doc)
	}
}

// CreateOne builds a create handler. prepare validates the bound document and
// fills server-side fields before the insert; after runs once the document is
// persisted.
func CreateOne[T any](col Collection[T], prepare func(c echo.Context, doc *T) error, after HookFunc[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		var doc T
		if err := c.Bind(&doc); err != nil {
			return apperr.New(http.StatusBadRequest, "invalid request body")
		}
		if prepare != nil {
			if err := prepare(c, &doc); err != nil {
				return err
			}
		}
		out, err := col.InsertOne(c.Request().Context(), &doc)
		if err != nil {
			return err
		}
		if after != nil {
			if err := after(c, out); err != nil {
				return err
			}
		}
		return respondOne(c, http.StatusCreated, out)
	}
}

// UpdateOne builds a partial-update handler. The request body binds to a flat
// key/value patch; immutable keys are stripped, the remaining keys re-checked
// against the entity's field rules, then applied as a single $set.
func UpdateOne[T any](col Collection[T], validate func(patch bson.M) *apperr.Error, after HookFunc[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		patch := bson.M{}
		if err := c.Bind(&patch); err != nil {
			return apperr.New(http.StatusBadRequest, "invalid request body")
		}
		delete(patch, "_id")
		delete(patch, "id")
		delete(patch, "created_at")
		if len(patch) == 0 {
			return apperr.New(http.StatusBadRequest, "no updatable fields in request body")
		}
		if validate != nil {
			if err := validate(patch); err != nil {
				return err
			}
		}
		doc, err := col.UpdateByID(c.Request().Context(), c.Param("id"), patch)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperr.NotFound("No document found with that ID")
			}
			return err
		}
		if after != nil {
			if err := after(c, doc); err != nil {
				return err
			}
		}
		return respondOne(c, http.StatusOK, doc)
	}
}

// DeleteOne builds a delete handler responding 204 with no body. after
// receives the removed document so dependent state can be recomputed.
func DeleteOne[T any](col Collection[T], after HookFunc[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		doc, err := col.DeleteByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperr.NotFound("No document found with that ID")
			}
			return err
		}
		if after != nil {
			if err := after(c, doc); err != nil {
				return err
			}
		}
		return c.NoContent(http.StatusNoContent)
	}
}
