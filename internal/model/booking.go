package model

import "time"

// BookingStatus enumerates the lifecycle states of a booking row.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	// BookingBlocked marks a host-created pseudo-booking that reserves dates
	// without a real guest.
	BookingBlocked BookingStatus = "blocked"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled, BookingBlocked:
		return true
	}
	return false
}

// Active reports whether a booking in this status occupies its dates.
// Only cancelled bookings release them.
func (s BookingStatus) Active() bool {
	return s != BookingCancelled
}

// Open reports whether a guest booking in this status is still an ongoing
// reservation the guest may change.  Finished stays and host blocks are not.
func (s BookingStatus) Open() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Booking mirrors a row of the bookings table.  UserID is nil for guest
// checkouts and for host blocks.
//
// Fields:
//
//	ID         – bookings.id
//	PropertyID – property being reserved
//	UserID     – authenticated guest, if any
//	GuestName, GuestEmail, GuestPhone – contact fields captured at checkout
//	CheckIn, CheckOut – half-open stay interval
//	Guests     – number of guests
//	Amount     – total price in the property's currency
//	Status     – see BookingStatus
//	Comments   – free text from the guest or host
type Booking struct {
	ID         uint64        `json:"id"`
	PropertyID uint64        `json:"propertyId"`
	UserID     *uint64       `json:"userId,omitempty"`
	GuestName  string        `json:"guestName"`
	GuestEmail string        `json:"guestEmail"`
	GuestPhone string        `json:"guestPhone,omitempty"`
	CheckIn    time.Time     `json:"checkIn"`
	CheckOut   time.Time     `json:"checkOut"`
	Guests     int           `json:"guests"`
	Amount     float64       `json:"amount"`
	Status     BookingStatus `json:"status"`
	Comments   string        `json:"comments,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Range returns the stay interval of the booking.
func (b *Booking) Range() DateRange {
	return DateRange{CheckIn: b.CheckIn, CheckOut: b.CheckOut}
}

// BelongsTo reports whether the booking was made by userID.
func (b *Booking) BelongsTo(userID uint64) bool {
	return b.UserID != nil && *b.UserID == userID
}

// BookingFilter narrows ListBookings.  Zero values are ignored.
type BookingFilter struct {
	PropertyID uint64
	UserID     uint64
	OwnerID    uint64 // bookings on properties owned by this user
	Status     BookingStatus
	Limit      int
}
