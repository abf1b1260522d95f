package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/handler"
	"github.com/iliyamo/vacation-rental-marketplace/internal/middleware"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

// RegisterBookings registers the booking routes.  POST /api/bookings is open
// to guests; a bearer token, when present, attaches the booking to the user.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)

	e.POST("/api/bookings", h.Create, middleware.OptionalJWT(jwtSecret))
	e.GET("/api/bookings/:id", h.Get, auth)
	e.PUT("/api/bookings/:id", h.Update, auth)
	e.POST("/api/bookings/:id/cancel", h.Cancel, auth)
	e.PATCH("/api/bookings/:id/status", h.UpdateStatus, auth, middleware.RequireRole(model.RoleStaff, model.RoleAdmin))
	e.GET("/api/my/bookings", h.Mine, auth)
}

// RegisterMessages registers direct messages and notifications.
func RegisterMessages(e *echo.Echo, h *handler.MessageHandler, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)

	e.POST("/api/messages", h.Send, auth)
	e.GET("/api/messages", h.List, auth)
	e.POST("/api/messages/:id/read", h.MarkRead, auth)
	e.GET("/api/notifications", h.Notifications, auth)
	e.POST("/api/notifications/:id/read", h.MarkNotificationRead, auth)
}
