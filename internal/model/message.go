package model

import "time"

// Message is a direct message between two users, optionally about a property.
type Message struct {
	ID          uint64    `json:"id"`
	SenderID    uint64    `json:"senderId"`
	RecipientID uint64    `json:"recipientId"`
	PropertyID  *uint64   `json:"propertyId,omitempty"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notification is a short in-app notice addressed to one user.
type Notification struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditLog records an administrative action.
type AuditLog struct {
	ID         uint64    `json:"id"`
	ActorID    *uint64   `json:"actorId,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   uint64    `json:"entityId"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Users              int                    `json:"users"`
	PropertiesByStatus map[PropertyStatus]int `json:"propertiesByStatus"`
	BookingsByStatus   map[BookingStatus]int  `json:"bookingsByStatus"`
}
