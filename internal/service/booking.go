// Package service holds the booking rules: the availability check, the
// create-or-update rule and status transitions, plus the event publisher
// they report to.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/queue"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

// BookingStore is the persistence the booking service needs.
type BookingStore interface {
	storage.BookingStore
	GetProperty(ctx context.Context, id uint64) (*model.Property, error)
	CreateAuditLog(ctx context.Context, l *model.AuditLog) error
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uint64
	Role   model.Role
}

// IsStaff reports whether the actor may manage any booking.
func (a Actor) IsStaff() bool {
	return a.Role == model.RoleStaff || a.Role == model.RoleAdmin
}

// BookingInput is a booking submission.  UserID is nil for guest checkout.
type BookingInput struct {
	PropertyID uint64
	UserID     *uint64
	GuestName  string
	GuestEmail string
	GuestPhone string
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
	Amount     float64
	Comments   string
}

func (in BookingInput) applyTo(b *model.Booking) {
	b.GuestName = strings.TrimSpace(in.GuestName)
	b.GuestEmail = strings.TrimSpace(in.GuestEmail)
	b.GuestPhone = strings.TrimSpace(in.GuestPhone)
	b.CheckIn = in.CheckIn
	b.CheckOut = in.CheckOut
	b.Guests = in.Guests
	b.Amount = in.Amount
	b.Comments = in.Comments
}

// BookingPatch is a partial update.  Nil fields are left untouched.
type BookingPatch struct {
	GuestName  *string
	GuestEmail *string
	GuestPhone *string
	CheckIn    *time.Time
	CheckOut   *time.Time
	Guests     *int
	Amount     *float64
	Comments   *string
}

// TouchesDates reports whether the patch moves the stay.
func (p BookingPatch) TouchesDates() bool {
	return p.CheckIn != nil || p.CheckOut != nil
}

func (p BookingPatch) applyTo(b *model.Booking) {
	if p.GuestName != nil {
		b.GuestName = strings.TrimSpace(*p.GuestName)
	}
	if p.GuestEmail != nil {
		b.GuestEmail = strings.TrimSpace(*p.GuestEmail)
	}
	if p.GuestPhone != nil {
		b.GuestPhone = strings.TrimSpace(*p.GuestPhone)
	}
	if p.CheckIn != nil {
		b.CheckIn = *p.CheckIn
	}
	if p.CheckOut != nil {
		b.CheckOut = *p.CheckOut
	}
	if p.Guests != nil {
		b.Guests = *p.Guests
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.Comments != nil {
		b.Comments = *p.Comments
	}
}

// BookingService applies the booking rules on top of a BookingStore.
type BookingService struct {
	store   BookingStore
	checker *AvailabilityChecker
	events  EventPublisher
	log     *slog.Logger
	now     func() time.Time
}

func NewBookingService(store BookingStore, events EventPublisher, log *slog.Logger) *BookingService {
	if events == nil {
		events = NopPublisher{}
	}
	return &BookingService{
		store:   store,
		checker: NewAvailabilityChecker(store, log),
		events:  events,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Checker returns the availability checker bound to the service's store.
func (s *BookingService) Checker() *AvailabilityChecker { return s.checker }

func (s *BookingService) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *BookingService) validateInput(in BookingInput) error {
	ve := &ValidationError{}
	if !in.CheckIn.Before(in.CheckOut) {
		ve.add("checkOut", MsgInvalidRange)
	}
	if in.CheckIn.Before(s.today()) {
		ve.add("checkIn", MsgPastCheckIn)
	}
	if strings.TrimSpace(in.GuestName) == "" {
		ve.add("guestName", MsgMissingGuest)
	}
	if strings.TrimSpace(in.GuestEmail) == "" {
		ve.add("guestEmail", MsgMissingGuest)
	}
	if in.Guests < 1 {
		ve.add("guests", "at least one guest is required")
	}
	if in.Amount < 0 {
		ve.add("amount", "amount must not be negative")
	}
	return ve.orNil()
}

func (s *BookingService) validatePatch(p BookingPatch, prop *model.Property) error {
	ve := &ValidationError{}
	if p.GuestName != nil && strings.TrimSpace(*p.GuestName) == "" {
		ve.add("guestName", MsgMissingGuest)
	}
	if p.GuestEmail != nil && strings.TrimSpace(*p.GuestEmail) == "" {
		ve.add("guestEmail", MsgMissingGuest)
	}
	if p.Guests != nil {
		if *p.Guests < 1 {
			ve.add("guests", "at least one guest is required")
		} else if prop.MaxGuests > 0 && *p.Guests > prop.MaxGuests {
			ve.add("guests", MsgTooManyGuests)
		}
	}
	if p.Amount != nil && *p.Amount < 0 {
		ve.add("amount", "amount must not be negative")
	}
	if p.CheckIn != nil && p.CheckIn.Before(s.today()) {
		ve.add("checkIn", MsgPastCheckIn)
	}
	return ve.orNil()
}

func bookable(p *model.Property, guests int) error {
	if !p.Public() {
		return invalid("propertyId", MsgNotBookable)
	}
	if p.MaxGuests > 0 && guests > p.MaxGuests {
		return invalid("guests", MsgTooManyGuests)
	}
	return nil
}

func canManage(a Actor, b *model.Booking, p *model.Property) bool {
	return a.IsStaff() || b.BelongsTo(a.UserID) || p.OwnerID == a.UserID
}

// checkFree runs the availability check inside tx and converts a clash
// into a ConflictError.
func (s *BookingService) checkFree(ctx context.Context, tx storage.BookingTx, propertyID uint64, checkIn, checkOut time.Time, excludeID uint64) error {
	av, err := s.checker.On(tx).Check(ctx, propertyID, checkIn, checkOut, excludeID)
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			return invalid("checkOut", MsgInvalidRange)
		}
		return err
	}
	if !av.Available {
		return &ConflictError{BookedDates: av.Conflicts}
	}
	return nil
}

// CreateOrUpdate books a stay.  An authenticated user holds at most one
// active booking per property: when one exists it is updated in place,
// otherwise a pending booking is inserted.  The availability check and the
// write run under the property lock.  created reports whether a row was
// inserted.
func (s *BookingService) CreateOrUpdate(ctx context.Context, in BookingInput) (booking *model.Booking, created bool, err error) {
	const op = "service.BookingService.CreateOrUpdate"
	log := s.log.With(slog.String("op", op), slog.Uint64("property_id", in.PropertyID))

	if err := s.validateInput(in); err != nil {
		return nil, false, err
	}
	prop, err := s.store.GetProperty(ctx, in.PropertyID)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if err := bookable(prop, in.Guests); err != nil {
		return nil, false, err
	}

	err = s.store.WithPropertyLock(ctx, in.PropertyID, func(tx storage.BookingTx) error {
		booking, created = nil, false

		var existing *model.Booking
		if in.UserID != nil {
			b, err := tx.ActiveBookingForUser(ctx, *in.UserID, in.PropertyID)
			switch {
			case err == nil:
				existing = b
			case !errors.Is(err, storage.ErrNotFound):
				return err
			}
		}

		var excludeID uint64
		if existing != nil {
			excludeID = existing.ID
		}
		if err := s.checkFree(ctx, tx, in.PropertyID, in.CheckIn, in.CheckOut, excludeID); err != nil {
			return err
		}

		if existing != nil {
			in.applyTo(existing)
			if err := tx.UpdateBooking(ctx, existing); err != nil {
				return err
			}
			booking = existing
			return nil
		}

		b := &model.Booking{PropertyID: in.PropertyID, UserID: in.UserID, Status: model.BookingPending}
		in.applyTo(b)
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		booking, created = b, true
		return nil
	})
	if err != nil {
		return nil, false, s.wrap(log, op, err)
	}

	log.Info("booking saved", slog.Uint64("booking_id", booking.ID), slog.Bool("created", created))
	evType := queue.EventBookingUpdated
	if created {
		evType = queue.EventBookingCreated
	}
	s.publish(ctx, queue.NewBookingEvent(evType, booking, prop))
	return booking, created, nil
}

// Get returns a booking visible to actor: its guest, the property owner or
// staff.
func (s *BookingService) Get(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	const op = "service.BookingService.Get"

	b, prop, err := s.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !canManage(actor, b, prop) {
		return nil, storage.ErrForbidden
	}
	return b, nil
}

// Update applies a partial update.  The availability check, excluding the
// booking itself, runs only when the patch moves the stay of an active
// booking.
func (s *BookingService) Update(ctx context.Context, id uint64, actor Actor, patch BookingPatch) (*model.Booking, error) {
	const op = "service.BookingService.Update"
	log := s.log.With(slog.String("op", op), slog.Uint64("booking_id", id))

	cur, prop, err := s.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !canManage(actor, cur, prop) {
		return nil, storage.ErrForbidden
	}
	if err := s.validatePatch(patch, prop); err != nil {
		return nil, err
	}

	var updated *model.Booking
	err = s.store.WithPropertyLock(ctx, cur.PropertyID, func(tx storage.BookingTx) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		patch.applyTo(b)
		if patch.TouchesDates() {
			if !b.Range().Valid() {
				return invalid("checkOut", MsgInvalidRange)
			}
			if b.Status.Active() {
				if err := s.checkFree(ctx, tx, b.PropertyID, b.CheckIn, b.CheckOut, b.ID); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.wrap(log, op, err)
	}

	s.publish(ctx, queue.NewBookingEvent(queue.EventBookingUpdated, updated, prop))
	return updated, nil
}

// UpdateStatus moves a booking to status on behalf of staff.  Re-activating
// a cancelled booking re-checks its dates.  Host blocks may only be
// cancelled.
func (s *BookingService) UpdateStatus(ctx context.Context, id uint64, actor Actor, status model.BookingStatus) (*model.Booking, error) {
	const op = "service.BookingService.UpdateStatus"
	log := s.log.With(slog.String("op", op), slog.Uint64("booking_id", id))

	if !status.Valid() || status == model.BookingBlocked {
		return nil, invalid("status", MsgInvalidStatus)
	}
	if !actor.IsStaff() {
		return nil, storage.ErrForbidden
	}
	return s.transition(ctx, log, op, id, actor, status)
}

// Cancel releases the dates of a booking.  The guest, the host and staff
// may cancel.  Cancelling a cancelled booking is a no-op.
func (s *BookingService) Cancel(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	const op = "service.BookingService.Cancel"
	log := s.log.With(slog.String("op", op), slog.Uint64("booking_id", id))

	cur, prop, err := s.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !canManage(actor, cur, prop) {
		return nil, storage.ErrForbidden
	}
	return s.transition(ctx, log, op, id, actor, model.BookingCancelled)
}

func (s *BookingService) transition(ctx context.Context, log *slog.Logger, op string, id uint64, actor Actor, status model.BookingStatus) (*model.Booking, error) {
	cur, prop, err := s.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		updated *model.Booking
		prev    model.BookingStatus
	)
	err = s.store.WithPropertyLock(ctx, cur.PropertyID, func(tx storage.BookingTx) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		prev = b.Status
		if prev == status {
			updated = b
			return nil
		}
		if prev == model.BookingBlocked && status != model.BookingCancelled {
			return invalid("status", MsgInvalidStatus)
		}
		if !prev.Active() && status.Active() {
			if err := s.checkFree(ctx, tx, b.PropertyID, b.CheckIn, b.CheckOut, b.ID); err != nil {
				return err
			}
		}
		b.Status = status
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.wrap(log, op, err)
	}
	if prev == status {
		return updated, nil
	}

	log.Info("booking status changed", slog.String("from", string(prev)), slog.String("to", string(status)))
	s.audit(ctx, actor, "booking.status_changed", id, fmt.Sprintf("%s -> %s", prev, status))
	s.publish(ctx, queue.NewBookingEvent(queue.EventBookingStatusChanged, updated, prop))
	return updated, nil
}

// Block reserves dates on a property without a guest.  Only the property
// owner or an admin may block; blocks obey the same overlap rule as
// bookings.
func (s *BookingService) Block(ctx context.Context, propertyID uint64, actor Actor, checkIn, checkOut time.Time, note string) (*model.Booking, error) {
	const op = "service.BookingService.Block"
	log := s.log.With(slog.String("op", op), slog.Uint64("property_id", propertyID))

	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if prop.OwnerID != actor.UserID && actor.Role != model.RoleAdmin {
		return nil, storage.ErrForbidden
	}
	ve := &ValidationError{}
	if !checkIn.Before(checkOut) {
		ve.add("checkOut", MsgInvalidRange)
	}
	if checkIn.Before(s.today()) {
		ve.add("checkIn", MsgPastCheckIn)
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	var blocked *model.Booking
	err = s.store.WithPropertyLock(ctx, propertyID, func(tx storage.BookingTx) error {
		if err := s.checkFree(ctx, tx, propertyID, checkIn, checkOut, 0); err != nil {
			return err
		}
		b := &model.Booking{
			PropertyID: propertyID,
			GuestName:  "Host block",
			CheckIn:    checkIn,
			CheckOut:   checkOut,
			Status:     model.BookingBlocked,
			Comments:   note,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		blocked = b
		return nil
	})
	if err != nil {
		return nil, s.wrap(log, op, err)
	}

	s.audit(ctx, actor, "booking.blocked", blocked.ID,
		fmt.Sprintf("%s to %s", checkIn.Format(time.DateOnly), checkOut.Format(time.DateOnly)))
	s.publish(ctx, queue.NewBookingEvent(queue.EventBookingBlocked, blocked, prop))
	return blocked, nil
}

func (s *BookingService) load(ctx context.Context, id uint64) (*model.Booking, *model.Property, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.store.GetProperty(ctx, b.PropertyID)
	if err != nil {
		return nil, nil, err
	}
	return b, p, nil
}

// wrap passes client errors through untouched and logs the rest.
func (s *BookingService) wrap(log *slog.Logger, op string, err error) error {
	var (
		ve *ValidationError
		ce *ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return err
	case errors.As(err, &ce):
		log.Info("requested dates unavailable", slog.Int("conflicts", len(ce.BookedDates)))
		return err
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrForbidden):
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Error("booking write failed", sl.Err(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (s *BookingService) audit(ctx context.Context, actor Actor, action string, bookingID uint64, details string) {
	var actorID *uint64
	if actor.UserID != 0 {
		id := actor.UserID
		actorID = &id
	}
	entry := &model.AuditLog{ActorID: actorID, Action: action, EntityType: "booking", EntityID: bookingID, Details: details}
	if err := s.store.CreateAuditLog(ctx, entry); err != nil {
		s.log.Warn("failed to write audit log", slog.String("action", action), sl.Err(err))
	}
}

func (s *BookingService) publish(ctx context.Context, ev queue.BookingEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish booking event", slog.String("type", string(ev.Type)),
			slog.Uint64("booking_id", ev.BookingID), sl.Err(err))
	}
}
