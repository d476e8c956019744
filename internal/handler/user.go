package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
)

// AccountStore is user storage as the user handlers see it: the generic CRUD
// capabilities plus soft deletion.
type AccountStore interface {
	Collection[model.User]
	Deactivate(ctx context.Context, id string) error
}

// UserHandler serves the self-service /me routes and the admin user CRUD.
type UserHandler struct {
	users AccountStore
}

func NewUserHandler(users AccountStore) *UserHandler {
	return &UserHandler{users: users}
}

// GetMe returns the authenticated user's own profile.
func (h *UserHandler) GetMe(c echo.Context) error {
	u := middleware.UserFrom(c)
	if u == nil {
		return apperr.NoCredential("You are not logged in! Please login to get access")
	}
	return respondOne(c, http.StatusOK, u)
}

// selfUpdatable are the only keys UpdateMe will apply. Everything else in the
// body is silently dropped, except password fields which are rejected.
var selfUpdatable = map[string]bool{
	"name":  true,
	"email": true,
	"photo": true,
}

// UpdateMe lets the authenticated user change their own profile data. Role
// and password are out of reach of this route.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	u := middleware.UserFrom(c)
	if u == nil {
		return apperr.NoCredential("You are not logged in! Please login to get access")
	}
	body := bson.M{}
	if err := c.Bind(&body); err != nil {
		return apperr.New(http.StatusBadRequest, "invalid request body")
	}
	for k := range body {
		if strings.HasPrefix(k, "password") {
			return apperr.New(http.StatusBadRequest,
				"This route is not for password updates. Please use /updateMyPassword")
		}
	}
	patch := bson.M{}
	for k, v := range body {
		if selfUpdatable[k] {
			patch[k] = v
		}
	}
	if len(patch) == 0 {
		return apperr.New(http.StatusBadRequest, "no updatable fields in request body")
	}
	if v, ok := patch["email"]; ok {
		s, _ := v.(string)
		patch["email"] = strings.ToLower(strings.TrimSpace(s))
	}
	if err := model.ValidateUserPatch(patch); err != nil {
		return err
	}
	out, err := h.users.UpdateByID(c.Request().Context(), u.ID.Hex(), patch)
	if err != nil {
		return err
	}
	return respondOne(c, http.StatusOK, out)
}

// DeleteMe soft-deletes the authenticated user's account. The document stays
// in storage but disappears from every read.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	u := middleware.UserFrom(c)
	if u == nil {
		return apperr.NoCredential("You are not logged in! Please login to get access")
	}
	if err := h.users.Deactivate(c.Request().Context(), u.ID.Hex()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Admin CRUD. Create is deliberately not served here; accounts only come
// into being through signup so the password lifecycle is never bypassed.

func (h *UserHandler) GetAllUsers() echo.HandlerFunc {
	return GetAll[model.User](h.users, nil)
}

func (h *UserHandler) GetUser() echo.HandlerFunc {
	return GetOne[model.User](h.users)
}

func (h *UserHandler) CreateUser(c echo.Context) error {
	return apperr.New(http.StatusInternalServerError,
		"This route is not defined! Please use /signup instead")
}

func (h *UserHandler) UpdateUser() echo.HandlerFunc {
	return UpdateOne[model.User](h.users, model.ValidateUserPatch, nil)
}

func (h *UserHandler) DeleteUser() echo.HandlerFunc {
	return DeleteOne[model.User](h.users, nil)
}
