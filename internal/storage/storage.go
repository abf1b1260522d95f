// Package storage declares the persistence surface shared by the MySQL
// repository and the in-memory fallback store, and the Switch that routes
// calls between them.
package storage

import (
	"context"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id uint64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
	RevokeAllRefresh(ctx context.Context, userID uint64) error
}

// PropertyStore persists listings.
type PropertyStore interface {
	CreateProperty(ctx context.Context, p *model.Property) error
	GetProperty(ctx context.Context, id uint64) (*model.Property, error)
	ListProperties(ctx context.Context, f model.PropertyFilter) ([]model.Property, error)
	UpdateProperty(ctx context.Context, p *model.Property) error
	DeleteProperty(ctx context.Context, id uint64) error
}

// BookingLister returns the bookings of a property that still occupy their
// dates (every status except cancelled).  excludeID, when non-zero, is left
// out of the result.
type BookingLister interface {
	ActiveBookings(ctx context.Context, propertyID, excludeID uint64) ([]model.Booking, error)
}

// BookingTx is the view of the booking table available while a property
// lock is held.  Writes made through it become visible when the enclosing
// WithPropertyLock call returns nil.
type BookingTx interface {
	BookingLister
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	// ActiveBookingForUser returns ErrNotFound when the user holds no
	// pending or confirmed booking for the property.
	ActiveBookingForUser(ctx context.Context, userID, propertyID uint64) (*model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	UpdateBooking(ctx context.Context, b *model.Booking) error
}

// BookingStore persists bookings.  All writes go through WithPropertyLock so
// that the read-check-write sequence of a booking is atomic per property.
type BookingStore interface {
	BookingLister
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	// WithPropertyLock runs fn while holding an exclusive lock on the
	// property.  It returns ErrNotFound when the property does not exist.
	// When fn returns an error nothing written through tx is kept.
	WithPropertyLock(ctx context.Context, propertyID uint64, fn func(tx BookingTx) error) error
}

// MessageStore persists direct messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, m *model.Message) error
	ListMessages(ctx context.Context, userID uint64) ([]model.Message, error)
	MarkMessageRead(ctx context.Context, id, recipientID uint64) error
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID uint64) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uint64) error
}

// AuditStore persists the audit trail.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, l *model.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error)
}

// Storage is the full method surface every backend implements.
type Storage interface {
	UserStore
	TokenStore
	PropertyStore
	BookingStore
	MessageStore
	NotificationStore
	AuditStore
	Stats(ctx context.Context) (model.Stats, error)
}
