package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/handler"
	"github.com/iliyamo/vacation-rental-marketplace/internal/middleware"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

// RegisterProperties registers the catalogue, calendar and host routes.
// cache wraps the anonymous catalogue reads only; availability and booked
// dates are always served fresh.
func RegisterProperties(e *echo.Echo, h *handler.PropertyHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	auth := middleware.JWTAuth(jwtSecret)
	hosts := middleware.RequireRole(model.RoleOwner, model.RoleAdmin)

	e.GET("/api/properties", h.List, cache)
	e.GET("/api/properties/:id", h.Get, cache, middleware.OptionalJWT(jwtSecret))
	e.GET("/api/properties/:id/availability", h.Availability)
	e.GET("/api/properties/:id/booked-dates", h.BookedDates)

	e.POST("/api/properties", h.Create, auth, hosts)
	e.PUT("/api/properties/:id", h.Update, auth, hosts)
	e.DELETE("/api/properties/:id", h.Delete, auth, hosts)
	e.GET("/api/properties/:id/bookings", h.Bookings, auth)
	e.POST("/api/properties/:id/block", h.Block, auth, hosts)
	e.GET("/api/my/properties", h.Mine, auth, hosts)
}
