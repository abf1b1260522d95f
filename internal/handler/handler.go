// Package handler contains the echo HTTP handlers.  Every error response has
// the shape {"error": "..."} with optional "fields" for validation problems
// and "bookedDates" for date conflicts.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/validate"
	"github.com/iliyamo/vacation-rental-marketplace/internal/middleware"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/service"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

const (
	requestTimeout = 5 * time.Second
	msgTryAgain    = "try again later"
)

var errInvalidBody = errors.New("invalid body")

// dateRange is the wire form of model.DateRange.
type dateRange struct {
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

func toDateRanges(rs []model.DateRange) []dateRange {
	out := make([]dateRange, 0, len(rs))
	for _, r := range rs {
		out = append(out, dateRange{
			CheckIn:  r.CheckIn.UTC().Format(time.DateOnly),
			CheckOut: r.CheckOut.UTC().Format(time.DateOnly),
		})
	}
	return out
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// bind decodes the request body into req and runs struct validation.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errInvalidBody
	}
	return c.Validate(req)
}

func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}

func actor(c echo.Context) service.Actor {
	id, _ := middleware.UserID(c)
	return service.Actor{UserID: id, Role: middleware.Role(c)}
}

func queryInt(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// fail maps err onto the canonical error payload.  Anything unrecognised
// is logged and reported as a generic 500.
func fail(c echo.Context, log *slog.Logger, err error) error {
	var (
		ce  *service.ConflictError
		ve  *service.ValidationError
		vre *validate.Error
	)
	switch {
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{"error": ce.Error(), "bookedDates": toDateRanges(ce.BookedDates)})
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Message, "fields": ve.Fields})
	case errors.As(err, &vre):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request", "fields": vre.Fields})
	case errors.Is(err, errInvalidBody):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidRange):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": service.MsgInvalidRange})
	case errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, storage.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, storage.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, storage.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	}
	log.Error("request failed",
		slog.String("method", c.Request().Method),
		slog.String("route", c.Path()),
		sl.Err(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msgTryAgain})
}
