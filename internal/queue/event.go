// Package queue defines the booking event payloads exchanged over RabbitMQ
// and the consumer that turns them into in-app notifications.
package queue

import (
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

// BookingEventsQueue is the durable queue every booking event is routed to.
const BookingEventsQueue = "booking.events"

// EventType names what happened to a booking.
type EventType string

const (
	EventBookingCreated       EventType = "booking.created"
	EventBookingUpdated       EventType = "booking.updated"
	EventBookingStatusChanged EventType = "booking.status_changed"
	EventBookingBlocked       EventType = "booking.blocked"
)

// BookingEvent is published after a booking write commits.  It carries
// enough for consumers to notify the host and the guest without querying
// the primary database.
type BookingEvent struct {
	Type          EventType           `json:"type"`
	BookingID     uint64              `json:"bookingId"`
	PropertyID    uint64              `json:"propertyId"`
	PropertyTitle string              `json:"propertyTitle"`
	OwnerID       uint64              `json:"ownerId"`
	UserID        *uint64             `json:"userId,omitempty"`
	GuestName     string              `json:"guestName"`
	CheckIn       string              `json:"checkIn"`
	CheckOut      string              `json:"checkOut"`
	Status        model.BookingStatus `json:"status"`
	Amount        float64             `json:"amount"`
	OccurredAt    time.Time           `json:"occurredAt"`
}

// NewBookingEvent builds the event for b on property p.
func NewBookingEvent(t EventType, b *model.Booking, p *model.Property) BookingEvent {
	return BookingEvent{
		Type:          t,
		BookingID:     b.ID,
		PropertyID:    b.PropertyID,
		PropertyTitle: p.Title,
		OwnerID:       p.OwnerID,
		UserID:        b.UserID,
		GuestName:     b.GuestName,
		CheckIn:       b.CheckIn.Format(time.DateOnly),
		CheckOut:      b.CheckOut.Format(time.DateOnly),
		Status:        b.Status,
		Amount:        b.Amount,
		OccurredAt:    time.Now().UTC(),
	}
}
