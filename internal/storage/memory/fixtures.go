package memory

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/utils"
)

//go:embed fixtures.json
var fixturesJSON []byte

// Fixtures is the seed data loaded into a fresh fallback store.  Users carry
// plain demo passwords which are bcrypt-hashed while seeding.
type Fixtures struct {
	Users      []FixtureUser    `json:"users"`
	Properties []model.Property `json:"properties"`
	Bookings   []model.Booking  `json:"bookings"`
}

// FixtureUser is a seed user with a plain password.
type FixtureUser struct {
	ID       uint64     `json:"id"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	FullName string     `json:"fullName"`
	Phone    string     `json:"phone"`
	Role     model.Role `json:"role"`
}

// DefaultFixtures decodes the embedded seed file.
func DefaultFixtures() (Fixtures, error) {
	var f Fixtures
	if err := json.Unmarshal(fixturesJSON, &f); err != nil {
		return Fixtures{}, fmt.Errorf("memory: decode fixtures: %w", err)
	}
	return f, nil
}

// NewSeeded returns a store populated with the embedded fixtures.
func NewSeeded() (*Store, error) {
	f, err := DefaultFixtures()
	if err != nil {
		return nil, err
	}
	s := New()
	if err := s.Seed(f); err != nil {
		return nil, err
	}
	return s, nil
}

// Seed loads f into the store keeping the fixture ids.  Id sequences continue
// after the highest seeded id.
func (s *Store) Seed(f Fixtures) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	for _, fu := range f.Users {
		hash, err := utils.HashPassword(fu.Password, bcrypt.MinCost)
		if err != nil {
			return fmt.Errorf("memory: hash password for %s: %w", fu.Email, err)
		}
		role := fu.Role
		if !role.Valid() {
			role = model.RoleUser
		}
		s.users[fu.ID] = &model.User{
			ID:           fu.ID,
			Email:        strings.ToLower(fu.Email),
			PasswordHash: hash,
			FullName:     fu.FullName,
			Phone:        fu.Phone,
			Role:         role,
			Status:       model.UserActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.lastUserID = max(s.lastUserID, fu.ID)
	}
	for i := range f.Properties {
		p := f.Properties[i]
		if p.Status == "" {
			p.Status = model.PropertyPending
		}
		p.CreatedAt, p.UpdatedAt = now, now
		s.properties[p.ID] = &p
		s.lastPropertyID = max(s.lastPropertyID, p.ID)
	}
	for i := range f.Bookings {
		b := f.Bookings[i]
		if _, ok := s.properties[b.PropertyID]; !ok {
			return fmt.Errorf("memory: booking %d references unknown property %d", b.ID, b.PropertyID)
		}
		if b.Status == "" {
			b.Status = model.BookingPending
		}
		b.CreatedAt, b.UpdatedAt = now, now
		s.bookings[b.ID] = &b
		s.lastBookingID = max(s.lastBookingID, b.ID)
	}
	return nil
}
