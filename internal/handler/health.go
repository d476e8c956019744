package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler is the health-check endpoint used by load balancers and
// monitoring systems to verify that the service is running. It reports "ok"
// only when the database answers a ping.
type HealthHandler struct {
	client *mongo.Client
}

func NewHealthHandler(client *mongo.Client) *HealthHandler {
	return &HealthHandler{client: client}
}

func (h *HealthHandler) Health(c echo.Context) error {
	if h.client != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.client.Ping(ctx, nil); err != nil {
			return c.String(http.StatusServiceUnavailable, "database unreachable")
		}
	}
	return c.String(http.StatusOK, "ok")
}
