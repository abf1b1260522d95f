package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/handler"
	"github.com/iliyamo/vacation-rental-marketplace/internal/middleware"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

// RegisterAdmin registers the back office under /api/admin.  Staff see
// bookings and stats; everything else is admin only.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/api/admin", middleware.JWTAuth(jwtSecret))
	staff := middleware.RequireRole(model.RoleStaff, model.RoleAdmin)
	admin := middleware.RequireRole(model.RoleAdmin)

	g.GET("/bookings", h.Bookings, staff)
	g.GET("/stats", h.Stats, staff)
	g.POST("/properties/:id/review", h.ReviewProperty, admin)
	g.GET("/users", h.Users, admin)
	g.PATCH("/users/:id", h.UpdateUser, admin)
	g.GET("/audit-logs", h.AuditLogs, admin)
}
