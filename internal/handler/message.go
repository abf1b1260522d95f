package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

// MessageStore is the persistence used by MessageHandler.
type MessageStore interface {
	storage.MessageStore
	storage.NotificationStore
	GetUserByID(ctx context.Context, id uint64) (*model.User, error)
}

// MessageHandler serves direct messages and in-app notifications.
type MessageHandler struct {
	store MessageStore
	log   *slog.Logger
}

func NewMessageHandler(store MessageStore, log *slog.Logger) *MessageHandler {
	return &MessageHandler{store: store, log: log.With(slog.String("component", "handler/message"))}
}

type messageReq struct {
	RecipientID uint64  `json:"recipientId" validate:"required"`
	PropertyID  *uint64 `json:"propertyId"`
	Subject     string  `json:"subject" validate:"max=200"`
	Body        string  `json:"body" validate:"required,max=5000"`
}

// Send delivers a message to another user and notifies them.
func (h *MessageHandler) Send(c echo.Context) error {
	var req messageReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.log, err)
	}
	sender := actor(c).UserID
	if req.RecipientID == sender {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot message yourself"})
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	if _, err := h.store.GetUserByID(ctx, req.RecipientID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "recipient not found"})
		}
		return fail(c, h.log, err)
	}
	m := &model.Message{
		SenderID:    sender,
		RecipientID: req.RecipientID,
		PropertyID:  req.PropertyID,
		Subject:     strings.TrimSpace(req.Subject),
		Body:        strings.TrimSpace(req.Body),
	}
	if err := h.store.CreateMessage(ctx, m); err != nil {
		return fail(c, h.log, err)
	}

	title := "New message"
	if m.Subject != "" {
		title = "New message: " + m.Subject
	}
	n := &model.Notification{UserID: m.RecipientID, Type: "message.received", Title: title, Body: preview(m.Body)}
	if err := h.store.CreateNotification(ctx, n); err != nil {
		h.log.Warn("failed to notify recipient", slog.Uint64("message_id", m.ID), sl.Err(err))
	}
	return c.JSON(http.StatusCreated, m)
}

// List returns messages the caller sent or received, newest first.
func (h *MessageHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.store.ListMessages(ctx, actor(c).UserID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// MarkRead flags a received message as read.
func (h *MessageHandler) MarkRead(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.store.MarkMessageRead(ctx, id, actor(c).UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
		}
		return fail(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Notifications lists the caller's notifications, newest first.
func (h *MessageHandler) Notifications(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.store.ListNotifications(ctx, actor(c).UserID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// MarkNotificationRead flags one notification as read.
func (h *MessageHandler) MarkNotificationRead(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.store.MarkNotificationRead(ctx, id, actor(c).UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
		}
		return fail(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func preview(s string) string {
	const limit = 140
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
