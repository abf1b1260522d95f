package storage

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

// Switch routes every Storage call to the primary backend until the primary
// reports a quota error.  From then on the switch stays tripped for the rest
// of the process lifetime and all calls, including the one that failed, are
// served by the fallback.  A restart is required to use the primary again.
//
// The fallback is process-local: several instances running behind a load
// balancer would diverge once tripped, so the setup assumes one instance.
type Switch struct {
	primary  Storage
	fallback Storage
	log      *slog.Logger
	tripped  atomic.Bool
}

var _ Storage = (*Switch)(nil)

// NewSwitch returns a Switch over primary and fallback.  A nil primary
// yields a switch that is tripped from the start.
func NewSwitch(primary, fallback Storage, log *slog.Logger) *Switch {
	s := &Switch{primary: primary, fallback: fallback, log: log.With(slog.String("component", "storage.switch"))}
	if primary == nil {
		s.tripped.Store(true)
	}
	return s
}

// Tripped reports whether calls are being served by the fallback.
func (s *Switch) Tripped() bool { return s.tripped.Load() }

// Mode returns "fallback" once tripped and "primary" before.
func (s *Switch) Mode() string {
	if s.Tripped() {
		return "fallback"
	}
	return "primary"
}

func (s *Switch) trip(op string, err error) {
	if s.tripped.CompareAndSwap(false, true) {
		s.log.Warn("primary storage quota exceeded, switching to in-memory fallback",
			slog.String("op", op), sl.Err(err))
	}
}

func call[T any](s *Switch, op string, fn func(Storage) (T, error)) (T, error) {
	if s.tripped.Load() {
		return fn(s.fallback)
	}
	v, err := fn(s.primary)
	if IsQuotaError(err) {
		s.trip(op, err)
		return fn(s.fallback)
	}
	return v, err
}

func exec(s *Switch, op string, fn func(Storage) error) error {
	_, err := call(s, op, func(st Storage) (struct{}, error) {
		return struct{}{}, fn(st)
	})
	return err
}

func (s *Switch) CreateUser(ctx context.Context, u *model.User) error {
	return exec(s, "CreateUser", func(st Storage) error { return st.CreateUser(ctx, u) })
}

func (s *Switch) GetUserByID(ctx context.Context, id uint64) (*model.User, error) {
	return call(s, "GetUserByID", func(st Storage) (*model.User, error) { return st.GetUserByID(ctx, id) })
}

func (s *Switch) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return call(s, "GetUserByEmail", func(st Storage) (*model.User, error) { return st.GetUserByEmail(ctx, email) })
}

func (s *Switch) ListUsers(ctx context.Context) ([]model.User, error) {
	return call(s, "ListUsers", func(st Storage) ([]model.User, error) { return st.ListUsers(ctx) })
}

func (s *Switch) UpdateUser(ctx context.Context, u *model.User) error {
	return exec(s, "UpdateUser", func(st Storage) error { return st.UpdateUser(ctx, u) })
}

func (s *Switch) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return exec(s, "StoreRefresh", func(st Storage) error { return st.StoreRefresh(ctx, userID, tokenHash, exp) })
}

func (s *Switch) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	return call(s, "ValidateRefresh", func(st Storage) (uint64, error) { return st.ValidateRefresh(ctx, tokenHash) })
}

func (s *Switch) RevokeRefresh(ctx context.Context, tokenHash string) error {
	return exec(s, "RevokeRefresh", func(st Storage) error { return st.RevokeRefresh(ctx, tokenHash) })
}

func (s *Switch) RevokeAllRefresh(ctx context.Context, userID uint64) error {
	return exec(s, "RevokeAllRefresh", func(st Storage) error { return st.RevokeAllRefresh(ctx, userID) })
}

func (s *Switch) CreateProperty(ctx context.Context, p *model.Property) error {
	return exec(s, "CreateProperty", func(st Storage) error { return st.CreateProperty(ctx, p) })
}

func (s *Switch) GetProperty(ctx context.Context, id uint64) (*model.Property, error) {
	return call(s, "GetProperty", func(st Storage) (*model.Property, error) { return st.GetProperty(ctx, id) })
}

func (s *Switch) ListProperties(ctx context.Context, f model.PropertyFilter) ([]model.Property, error) {
	return call(s, "ListProperties", func(st Storage) ([]model.Property, error) { return st.ListProperties(ctx, f) })
}

func (s *Switch) UpdateProperty(ctx context.Context, p *model.Property) error {
	return exec(s, "UpdateProperty", func(st Storage) error { return st.UpdateProperty(ctx, p) })
}

func (s *Switch) DeleteProperty(ctx context.Context, id uint64) error {
	return exec(s, "DeleteProperty", func(st Storage) error { return st.DeleteProperty(ctx, id) })
}

func (s *Switch) ActiveBookings(ctx context.Context, propertyID, excludeID uint64) ([]model.Booking, error) {
	return call(s, "ActiveBookings", func(st Storage) ([]model.Booking, error) {
		return st.ActiveBookings(ctx, propertyID, excludeID)
	})
}

func (s *Switch) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return call(s, "GetBooking", func(st Storage) (*model.Booking, error) { return st.GetBooking(ctx, id) })
}

func (s *Switch) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	return call(s, "ListBookings", func(st Storage) ([]model.Booking, error) { return st.ListBookings(ctx, f) })
}

// WithPropertyLock re-runs fn from the start against the fallback when the
// primary transaction fails with a quota error.  The primary transaction is
// rolled back in that case, so fn never has partial effects on both stores.
func (s *Switch) WithPropertyLock(ctx context.Context, propertyID uint64, fn func(tx BookingTx) error) error {
	return exec(s, "WithPropertyLock", func(st Storage) error { return st.WithPropertyLock(ctx, propertyID, fn) })
}

func (s *Switch) CreateMessage(ctx context.Context, m *model.Message) error {
	return exec(s, "CreateMessage", func(st Storage) error { return st.CreateMessage(ctx, m) })
}

func (s *Switch) ListMessages(ctx context.Context, userID uint64) ([]model.Message, error) {
	return call(s, "ListMessages", func(st Storage) ([]model.Message, error) { return st.ListMessages(ctx, userID) })
}

func (s *Switch) MarkMessageRead(ctx context.Context, id, recipientID uint64) error {
	return exec(s, "MarkMessageRead", func(st Storage) error { return st.MarkMessageRead(ctx, id, recipientID) })
}

func (s *Switch) CreateNotification(ctx context.Context, n *model.Notification) error {
	return exec(s, "CreateNotification", func(st Storage) error { return st.CreateNotification(ctx, n) })
}

func (s *Switch) ListNotifications(ctx context.Context, userID uint64) ([]model.Notification, error) {
	return call(s, "ListNotifications", func(st Storage) ([]model.Notification, error) {
		return st.ListNotifications(ctx, userID)
	})
}

func (s *Switch) MarkNotificationRead(ctx context.Context, id, userID uint64) error {
	return exec(s, "MarkNotificationRead", func(st Storage) error { return st.MarkNotificationRead(ctx, id, userID) })
}

func (s *Switch) CreateAuditLog(ctx context.Context, l *model.AuditLog) error {
	return exec(s, "CreateAuditLog", func(st Storage) error { return st.CreateAuditLog(ctx, l) })
}

func (s *Switch) ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error) {
	return call(s, "ListAuditLogs", func(st Storage) ([]model.AuditLog, error) { return st.ListAuditLogs(ctx, limit) })
}

func (s *Switch) Stats(ctx context.Context) (model.Stats, error) {
	return call(s, "Stats", func(st Storage) (model.Stats, error) { return st.Stats(ctx) })
}
