package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/sl"
	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

// Availability is the outcome of a check.  BookedDates holds every active
// range of the property and Conflicts the subset overlapping the request.
type Availability struct {
	Available   bool              `json:"available"`
	BookedDates []model.DateRange `json:"bookedDates"`
	Conflicts   []model.DateRange `json:"conflicts,omitempty"`
}

// AvailabilityChecker tests a stay against the active bookings of a
// property.  It reads through whatever BookingLister it is bound to, so the
// same checker works on the storage switch and inside a property lock.
type AvailabilityChecker struct {
	bookings storage.BookingLister
	log      *slog.Logger
}

func NewAvailabilityChecker(bookings storage.BookingLister, log *slog.Logger) *AvailabilityChecker {
	return &AvailabilityChecker{bookings: bookings, log: log}
}

// On returns a checker reading from src.
func (c *AvailabilityChecker) On(src storage.BookingLister) *AvailabilityChecker {
	return &AvailabilityChecker{bookings: src, log: c.log}
}

// Check reports whether [checkIn, checkOut) is free on the property,
// ignoring excludeID.  A read failure is never reported as available.
func (c *AvailabilityChecker) Check(ctx context.Context, propertyID uint64, checkIn, checkOut time.Time, excludeID uint64) (Availability, error) {
	const op = "service.AvailabilityChecker.Check"

	want := model.DateRange{CheckIn: checkIn, CheckOut: checkOut}
	if !want.Valid() {
		return Availability{}, ErrInvalidRange
	}
	active, err := c.bookings.ActiveBookings(ctx, propertyID, excludeID)
	if err != nil {
		c.log.Error("failed to load bookings", slog.String("op", op),
			slog.Uint64("property_id", propertyID), sl.Err(err))
		return Availability{Available: false}, fmt.Errorf("%s: %w", op, err)
	}

	av := Availability{Available: true, BookedDates: make([]model.DateRange, 0, len(active))}
	for i := range active {
		r := active[i].Range()
		av.BookedDates = append(av.BookedDates, r)
		if r.Overlaps(want) {
			av.Available = false
			av.Conflicts = append(av.Conflicts, r)
		}
	}
	return av, nil
}

// BookedDates returns the active ranges of the property ordered by check-in.
func (c *AvailabilityChecker) BookedDates(ctx context.Context, propertyID uint64) ([]model.DateRange, error) {
	active, err := c.bookings.ActiveBookings(ctx, propertyID, 0)
	if err != nil {
		return nil, fmt.Errorf("service.AvailabilityChecker.BookedDates: %w", err)
	}
	out := make([]model.DateRange, 0, len(active))
	for i := range active {
		out = append(out, active[i].Range())
	}
	return out, nil
}
