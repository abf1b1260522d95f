package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/middleware"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/service"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
	"github.com/iliyamo/vacation-rental-marketplace/internal/utils"
)

// BookingHandler serves the booking endpoints.
type BookingHandler struct {
	store storage.BookingStore
	svc   *service.BookingService
	log   *slog.Logger
}

func NewBookingHandler(store storage.BookingStore, svc *service.BookingService, log *slog.Logger) *BookingHandler {
	return &BookingHandler{store: store, svc: svc, log: log.With(slog.String("component", "handler/booking"))}
}

type bookingReq struct {
	PropertyID uint64  `json:"propertyId" validate:"required"`
	UserID     *uint64 `json:"userId"`
	GuestName  string  `json:"guestName" validate:"max=120"`
	GuestEmail string  `json:"guestEmail" validate:"max=255"`
	GuestPhone string  `json:"guestPhone" validate:"max=32"`
	CheckIn    string  `json:"checkIn"`
	CheckOut   string  `json:"checkOut"`
	Guests     int     `json:"guests"`
	Amount     float64 `json:"amount"`
	Comments   string  `json:"comments" validate:"max=2000"`
}

type bookingPatchReq struct {
	GuestName  *string  `json:"guestName" validate:"omitnil,max=120"`
	GuestEmail *string  `json:"guestEmail" validate:"omitnil,max=255"`
	GuestPhone *string  `json:"guestPhone" validate:"omitnil,max=32"`
	CheckIn    *string  `json:"checkIn"`
	CheckOut   *string  `json:"checkOut"`
	Guests     *int     `json:"guests"`
	Amount     *float64 `json:"amount"`
	Comments   *string  `json:"comments" validate:"omitnil,max=2000"`
}

type statusReq struct {
	Status model.BookingStatus `json:"status" validate:"required"`
}

// Create books a stay, or updates the caller's existing booking for the
// property.  Anonymous guest checkout is allowed.  An explicit userId is
// honoured only for staff booking on someone's behalf.
func (h *BookingHandler) Create(c echo.Context) error {
	var req bookingReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}

	var userID *uint64
	a := actor(c)
	switch {
	case a.IsStaff() && req.UserID != nil:
		userID = req.UserID
	case a.UserID != 0:
		userID = &a.UserID
	case req.UserID != nil:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "sign in to book as a registered user"})
	}

	in := service.BookingInput{
		PropertyID: req.PropertyID,
		UserID:     userID,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		GuestPhone: req.GuestPhone,
		Guests:     req.Guests,
		Amount:     req.Amount,
		Comments:   req.Comments,
	}
	ve := &service.ValidationError{}
	in.CheckIn = parseField(ve, "checkIn", req.CheckIn)
	in.CheckOut = parseField(ve, "checkOut", req.CheckOut)
	if ve.Message != "" {
		return fail(c, h.log, ve)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	b, created, err := h.svc.CreateOrUpdate(ctx, in)
	if err != nil {
		return h.fail(c, err, "property not found")
	}
	h.log.Info("booking saved",
		slog.Uint64("booking_id", b.ID),
		slog.Uint64("property_id", b.PropertyID),
		slog.Bool("created", created))
	return c.JSON(http.StatusCreated, b)
}

// Get returns one booking to its guest, the host or staff.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.svc.Get(ctx, id, actor(c))
	if err != nil {
		return h.fail(c, err, "booking not found")
	}
	return c.JSON(http.StatusOK, b)
}

// Mine lists the caller's bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.store.ListBookings(ctx, model.BookingFilter{UserID: uid})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Update applies a partial update.  Dates are re-checked only when the body
// contains checkIn or checkOut.
func (h *BookingHandler) Update(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req bookingPatchReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}

	patch := service.BookingPatch{
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		GuestPhone: req.GuestPhone,
		Guests:     req.Guests,
		Amount:     req.Amount,
		Comments:   req.Comments,
	}
	ve := &service.ValidationError{}
	if req.CheckIn != nil {
		t := parseField(ve, "checkIn", *req.CheckIn)
		patch.CheckIn = &t
	}
	if req.CheckOut != nil {
		t := parseField(ve, "checkOut", *req.CheckOut)
		patch.CheckOut = &t
	}
	if ve.Message != "" {
		return fail(c, h.log, ve)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.svc.Update(ctx, id, actor(c), patch)
	if err != nil {
		return h.fail(c, err, "booking not found")
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel releases a booking's dates.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.svc.Cancel(ctx, id, actor(c))
	if err != nil {
		return h.fail(c, err, "booking not found")
	}
	return c.JSON(http.StatusOK, b)
}

// UpdateStatus lets staff move a booking through its lifecycle.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.svc.UpdateStatus(ctx, id, actor(c), req.Status)
	if err != nil {
		return h.fail(c, err, "booking not found")
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) fail(c echo.Context, err error, notFoundMsg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFoundMsg})
	}
	return fail(c, h.log, err)
}

// parseField parses a date field and records a problem on ve.  An empty
// value is reported as an invalid range.
func parseField(ve *service.ValidationError, field, raw string) time.Time {
	t, err := utils.ParseDate(raw)
	if err != nil {
		if ve.Fields == nil {
			ve.Fields = make(map[string]string)
		}
		ve.Fields[field] = err.Error()
		if ve.Message == "" {
			ve.Message = service.MsgInvalidRange
		}
	}
	return t
}
