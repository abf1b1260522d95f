// Package router builds the echo instance and registers every route.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/vacation-rental-marketplace/internal/config"
	"github.com/iliyamo/vacation-rental-marketplace/internal/handler"
	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/validate"
	"github.com/iliyamo/vacation-rental-marketplace/internal/middleware"
	"github.com/iliyamo/vacation-rental-marketplace/internal/service"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

// Store is the storage the HTTP layer runs on; Mode feeds the health
// endpoint.
type Store interface {
	storage.Storage
	Mode() string
}

// Deps are the collaborators the routes are wired to.  Redis may be nil.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Store    Store
	Bookings *service.BookingService
	Redis    *redis.Client
}

// New returns an echo instance with global middleware and all routes.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Use(
		echomw.Recover(),
		echomw.RequestID(),
		middleware.RequestLogger(d.Log),
		middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, d.Log),
	)

	secret := d.Config.Auth.JWTSecret
	RegisterRoutes(e, d.Store)
	RegisterAuth(e, handler.NewAuthHandler(d.Config.Auth, d.Store, d.Log), secret)
	RegisterProperties(e, handler.NewPropertyHandler(d.Store, d.Bookings, d.Log), secret,
		middleware.NewRedisCache(d.Config.Cache, d.Redis, d.Log))
	RegisterBookings(e, handler.NewBookingHandler(d.Store, d.Bookings, d.Log), secret)
	RegisterMessages(e, handler.NewMessageHandler(d.Store, d.Log), secret)
	RegisterAdmin(e, handler.NewAdminHandler(d.Store, d.Log), secret)
	return e
}

// RegisterRoutes registers the unauthenticated health checks.
func RegisterRoutes(e *echo.Echo, store handler.StorageMode) {
	e.GET("/healthz", handler.Health)
	e.GET("/api/health", handler.APIHealth(store))
}

// RegisterAuth registers the session endpoints under /api/auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout accepts either a refresh token or a bearer token
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))
	g.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}
