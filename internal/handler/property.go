package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/service"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
	"github.com/iliyamo/vacation-rental-marketplace/internal/utils"
)

// PropertyStore is the persistence used by PropertyHandler.
type PropertyStore interface {
	storage.PropertyStore
	storage.BookingStore
}

// PropertyHandler serves listings, their calendars and host actions.
type PropertyHandler struct {
	store    PropertyStore
	bookings *service.BookingService
	log      *slog.Logger
}

func NewPropertyHandler(store PropertyStore, bookings *service.BookingService, log *slog.Logger) *PropertyHandler {
	return &PropertyHandler{store: store, bookings: bookings, log: log.With(slog.String("component", "handler/property"))}
}

type propertyReq struct {
	Title         string  `json:"title" validate:"required,max=200"`
	Description   string  `json:"description" validate:"max=5000"`
	Location      string  `json:"location" validate:"required,max=200"`
	PricePerNight float64 `json:"pricePerNight" validate:"gte=0"`
	MaxGuests     int     `json:"maxGuests" validate:"gte=1,max=100"`
	Bedrooms      int     `json:"bedrooms" validate:"gte=0"`
	Bathrooms     int     `json:"bathrooms" validate:"gte=0"`
	IsPublished   bool    `json:"isPublished"`
}

type propertyPatchReq struct {
	Title         *string  `json:"title" validate:"omitnil,min=1,max=200"`
	Description   *string  `json:"description" validate:"omitnil,max=5000"`
	Location      *string  `json:"location" validate:"omitnil,min=1,max=200"`
	PricePerNight *float64 `json:"pricePerNight" validate:"omitnil,gte=0"`
	MaxGuests     *int     `json:"maxGuests" validate:"omitnil,gte=1,max=100"`
	Bedrooms      *int     `json:"bedrooms" validate:"omitnil,gte=0"`
	Bathrooms     *int     `json:"bathrooms" validate:"omitnil,gte=0"`
	IsActive      *bool    `json:"isActive"`
	IsPublished   *bool    `json:"isPublished"`
}

type blockReq struct {
	CheckIn  string `json:"checkIn" validate:"required"`
	CheckOut string `json:"checkOut" validate:"required"`
	Note     string `json:"note" validate:"max=500"`
}

// List returns the public catalogue, optionally filtered by ?location= and
// ?guests=.
func (h *PropertyHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	props, err := h.store.ListProperties(ctx, model.PropertyFilter{
		PublicOnly: true,
		Location:   c.QueryParam("location"),
		MinGuests:  queryInt(c, "guests", 0),
		Limit:      min(queryInt(c, "limit", 50), 200),
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, props)
}

// Get returns one listing.  Unpublished listings are visible to their owner
// and staff only.
func (h *PropertyHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.store.GetProperty(ctx, id)
	if err != nil {
		return h.notFound(c, err)
	}
	if !p.Public() && !canEdit(actor(c), p) && !actor(c).IsStaff() {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "property not found"})
	}
	return c.JSON(http.StatusOK, p)
}

// Mine lists the caller's own listings in any state.
func (h *PropertyHandler) Mine(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	props, err := h.store.ListProperties(ctx, model.PropertyFilter{OwnerID: actor(c).UserID})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, props)
}

// Create submits a new listing for review.
func (h *PropertyHandler) Create(c echo.Context) error {
	var req propertyReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p := &model.Property{
		OwnerID:       actor(c).UserID,
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Location:      strings.TrimSpace(req.Location),
		PricePerNight: req.PricePerNight,
		MaxGuests:     req.MaxGuests,
		Bedrooms:      req.Bedrooms,
		Bathrooms:     req.Bathrooms,
		Status:        model.PropertyPending,
		IsActive:      true,
		IsPublished:   req.IsPublished,
	}
	if err := h.store.CreateProperty(ctx, p); err != nil {
		return fail(c, h.log, err)
	}
	h.log.Info("property submitted", slog.Uint64("property_id", p.ID), slog.Uint64("owner_id", p.OwnerID))
	return c.JSON(http.StatusCreated, p)
}

// Update edits a listing.  Editing a rejected listing resubmits it for
// review.
func (h *PropertyHandler) Update(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req propertyPatchReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.store.GetProperty(ctx, id)
	if err != nil {
		return h.notFound(c, err)
	}
	if !canEdit(actor(c), p) {
		return fail(c, h.log, storage.ErrForbidden)
	}

	setString(&p.Title, req.Title)
	setString(&p.Description, req.Description)
	setString(&p.Location, req.Location)
	set(&p.PricePerNight, req.PricePerNight)
	set(&p.MaxGuests, req.MaxGuests)
	set(&p.Bedrooms, req.Bedrooms)
	set(&p.Bathrooms, req.Bathrooms)
	set(&p.IsActive, req.IsActive)
	set(&p.IsPublished, req.IsPublished)
	if p.Status == model.PropertyRejected {
		p.Status = model.PropertyPending
	}

	if err := h.store.UpdateProperty(ctx, p); err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Delete removes a listing that has no active bookings.
func (h *PropertyHandler) Delete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.store.GetProperty(ctx, id)
	if err != nil {
		return h.notFound(c, err)
	}
	if !canEdit(actor(c), p) {
		return fail(c, h.log, storage.ErrForbidden)
	}
	err = h.store.DeleteProperty(ctx, id)
	if errors.Is(err, storage.ErrConflict) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "property has active bookings"})
	}
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Availability answers whether [checkIn, checkOut) is free.  The reply is
// {available} or {available:false, bookedDates, message}.
func (h *PropertyHandler) Availability(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	checkIn, errIn := utils.ParseDate(c.QueryParam("checkIn"))
	checkOut, errOut := utils.ParseDate(c.QueryParam("checkOut"))
	if errIn != nil || errOut != nil || !checkIn.Before(checkOut) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": service.MsgInvalidRange})
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	if _, err := h.store.GetProperty(ctx, id); err != nil {
		return h.notFound(c, err)
	}
	av, err := h.bookings.Checker().Check(ctx, id, checkIn, checkOut, 0)
	if err != nil {
		h.log.Error("availability check failed", slog.Uint64("property_id", id), sl.Err(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"available": false, "error": msgTryAgain})
	}
	if av.Available {
		return c.JSON(http.StatusOK, echo.Map{"available": true})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"available":   false,
		"bookedDates": toDateRanges(av.Conflicts),
		"message":     service.MsgUnavailable,
	})
}

// BookedDates lists every range held by an active booking, for calendars.
func (h *PropertyHandler) BookedDates(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if _, err := h.store.GetProperty(ctx, id); err != nil {
		return h.notFound(c, err)
	}
	ranges, err := h.bookings.Checker().BookedDates(ctx, id)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toDateRanges(ranges))
}

// Bookings lists the bookings of a property for its owner and staff.
func (h *PropertyHandler) Bookings(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.store.GetProperty(ctx, id)
	if err != nil {
		return h.notFound(c, err)
	}
	if a := actor(c); !a.IsStaff() && p.OwnerID != a.UserID {
		return fail(c, h.log, storage.ErrForbidden)
	}
	list, err := h.store.ListBookings(ctx, model.BookingFilter{
		PropertyID: id,
		Status:     model.BookingStatus(c.QueryParam("status")),
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Block reserves dates without a guest.
func (h *PropertyHandler) Block(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req blockReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}
	checkIn, errIn := utils.ParseDate(req.CheckIn)
	checkOut, errOut := utils.ParseDate(req.CheckOut)
	if errIn != nil || errOut != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": service.MsgInvalidRange})
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.bookings.Block(ctx, id, actor(c), checkIn, checkOut, strings.TrimSpace(req.Note))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "property not found"})
		}
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *PropertyHandler) notFound(c echo.Context, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "property not found"})
	}
	return fail(c, h.log, err)
}

func canEdit(a service.Actor, p *model.Property) bool {
	return a.Role == model.RoleAdmin || (a.UserID != 0 && p.OwnerID == a.UserID)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
