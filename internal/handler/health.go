package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe used by load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// StorageMode reports which backend is serving requests.
type StorageMode interface {
	Mode() string
}

// APIHealth returns the service status and whether the in-memory fallback
// has taken over.
func APIHealth(store StorageMode) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "storage": store.Mode()})
	}
}
