package model

import "time"

// PropertyStatus is the review state of a listing.
type PropertyStatus string

const (
	PropertyPending  PropertyStatus = "pending"
	PropertyApproved PropertyStatus = "approved"
	PropertyRejected PropertyStatus = "rejected"
	PropertyDraft    PropertyStatus = "draft"
)

// Valid reports whether s is a known review state.
func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyPending, PropertyApproved, PropertyRejected, PropertyDraft:
		return true
	}
	return false
}

// Property mirrors a row of the properties table.  New listings start in
// PropertyPending and become public only once approved by an admin and
// flagged both active and published by their owner.
type Property struct {
	ID            uint64         `json:"id"`
	OwnerID       uint64         `json:"ownerId"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Location      string         `json:"location"`
	PricePerNight float64        `json:"pricePerNight"`
	MaxGuests     int            `json:"maxGuests"`
	Bedrooms      int            `json:"bedrooms"`
	Bathrooms     int            `json:"bathrooms"`
	Status        PropertyStatus `json:"status"`
	IsActive      bool           `json:"isActive"`
	IsPublished   bool           `json:"isPublished"`
	ReviewNote    string         `json:"reviewNote,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Public reports whether the listing may be shown to anonymous visitors.
func (p *Property) Public() bool {
	return p.Status == PropertyApproved && p.IsActive && p.IsPublished
}

// PropertyFilter narrows ListProperties.  Zero values are ignored.
type PropertyFilter struct {
	OwnerID    uint64
	Status     PropertyStatus
	PublicOnly bool
	Location   string // case-insensitive substring
	MinGuests  int
	Limit      int
}
