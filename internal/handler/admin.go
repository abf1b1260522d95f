package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

// AdminHandler serves the back-office endpoints.
type AdminHandler struct {
	store storage.Storage
	log   *slog.Logger
}

func NewAdminHandler(store storage.Storage, log *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, log: log.With(slog.String("component", "handler/admin"))}
}

type reviewReq struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
	Note     string `json:"note" validate:"max=1000"`
}

type userPatchReq struct {
	Role   *model.Role       `json:"role" validate:"omitnil,oneof=admin staff owner user"`
	Status *model.UserStatus `json:"status" validate:"omitnil,oneof=active suspended"`
}

// Stats returns the dashboard counters.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	st, err := h.store.Stats(ctx)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Bookings lists bookings across all properties, filtered by ?status=,
// ?propertyId= and ?limit=.
func (h *AdminHandler) Bookings(c echo.Context) error {
	status := model.BookingStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.store.ListBookings(ctx, model.BookingFilter{
		PropertyID: uint64(queryInt(c, "propertyId", 0)),
		Status:     status,
		Limit:      min(queryInt(c, "limit", 100), 500),
	})
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// ReviewProperty approves or rejects a submitted listing.
func (h *AdminHandler) ReviewProperty(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req reviewReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.store.GetProperty(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "property not found"})
	}
	if err != nil {
		return fail(c, h.log, err)
	}

	prev := p.Status
	p.Status = model.PropertyApproved
	if req.Decision == "reject" {
		p.Status = model.PropertyRejected
	}
	p.ReviewNote = strings.TrimSpace(req.Note)
	if err := h.store.UpdateProperty(ctx, p); err != nil {
		return fail(c, h.log, err)
	}

	h.audit(ctx, c, "property.reviewed", "property", p.ID, fmt.Sprintf("%s -> %s", prev, p.Status))
	return c.JSON(http.StatusOK, p)
}

// Users lists every account.
func (h *AdminHandler) Users(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.store.ListUsers(ctx)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// UpdateUser changes a user's role or status.  Suspending a user revokes
// their refresh tokens.  Admins cannot change their own account.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	var req userPatchReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}
	if id == actor(c).UserID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot modify your own account"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.store.GetUserByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		return fail(c, h.log, err)
	}

	var changes []string
	if req.Role != nil && *req.Role != u.Role {
		changes = append(changes, fmt.Sprintf("role %s -> %s", u.Role, *req.Role))
		u.Role = *req.Role
	}
	if req.Status != nil && *req.Status != u.Status {
		changes = append(changes, fmt.Sprintf("status %s -> %s", u.Status, *req.Status))
		u.Status = *req.Status
	}
	if len(changes) == 0 {
		return c.JSON(http.StatusOK, u)
	}
	if err := h.store.UpdateUser(ctx, u); err != nil {
		return fail(c, h.log, err)
	}
	if u.Status == model.UserSuspended {
		if err := h.store.RevokeAllRefresh(ctx, u.ID); err != nil {
			h.log.Warn("failed to revoke sessions of suspended user", slog.Uint64("user_id", u.ID), sl.Err(err))
		}
	}

	h.audit(ctx, c, "user.updated", "user", u.ID, strings.Join(changes, "; "))
	return c.JSON(http.StatusOK, u)
}

// AuditLogs returns the most recent audit entries.
func (h *AdminHandler) AuditLogs(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.store.ListAuditLogs(ctx, min(queryInt(c, "limit", 100), 1000))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) audit(ctx context.Context, c echo.Context, action, entity string, entityID uint64, details string) {
	uid := actor(c).UserID
	entry := &model.AuditLog{ActorID: &uid, Action: action, EntityType: entity, EntityID: entityID, Details: details}
	if err := h.store.CreateAuditLog(ctx, entry); err != nil {
		h.log.Warn("failed to write audit log", slog.String("action", action), sl.Err(err))
	}
}
