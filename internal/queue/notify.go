package queue

import (
	"fmt"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

// Notifications returns the in-app notices an event produces: one for the
// host and, when the booking belongs to an account, one for the guest.
// Host blocks are the host's own action and yield nothing.
func Notifications(ev BookingEvent) []model.Notification {
	stay := fmt.Sprintf("%s to %s", ev.CheckIn, ev.CheckOut)
	var out []model.Notification
	add := func(userID uint64, title, body string) {
		out = append(out, model.Notification{UserID: userID, Type: string(ev.Type), Title: title, Body: body})
	}

	switch ev.Type {
	case EventBookingCreated:
		add(ev.OwnerID, "New booking request",
			fmt.Sprintf("%s requested %s for %s.", ev.GuestName, ev.PropertyTitle, stay))
		if ev.UserID != nil {
			add(*ev.UserID, "Booking received",
				fmt.Sprintf("Your request for %s (%s) is pending confirmation.", ev.PropertyTitle, stay))
		}
	case EventBookingUpdated:
		add(ev.OwnerID, "Booking updated",
			fmt.Sprintf("Booking #%d for %s now covers %s.", ev.BookingID, ev.PropertyTitle, stay))
		if ev.UserID != nil {
			add(*ev.UserID, "Booking updated",
				fmt.Sprintf("Your booking for %s now covers %s.", ev.PropertyTitle, stay))
		}
	case EventBookingStatusChanged:
		add(ev.OwnerID, "Booking "+string(ev.Status),
			fmt.Sprintf("Booking #%d for %s (%s) is now %s.", ev.BookingID, ev.PropertyTitle, stay, ev.Status))
		if ev.UserID != nil {
			add(*ev.UserID, "Booking "+string(ev.Status),
				fmt.Sprintf("Your booking for %s (%s) is now %s.", ev.PropertyTitle, stay, ev.Status))
		}
	}
	return out
}
