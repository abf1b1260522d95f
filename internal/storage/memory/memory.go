// Package memory is the in-process Storage used once the primary database is
// unavailable.  It mirrors the MySQL repository method for method, including
// the per-property locking contract of WithPropertyLock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

// Store keeps every table in maps guarded by one RWMutex.  Booking writes
// additionally serialize on a per-property mutex.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users         map[uint64]*model.User
	tokens        map[string]*model.RefreshToken
	properties    map[uint64]*model.Property
	bookings      map[uint64]*model.Booking
	messages      map[uint64]*model.Message
	notifications map[uint64]*model.Notification
	audit         []model.AuditLog

	lastUserID, lastTokenID, lastPropertyID, lastBookingID uint64
	lastMessageID, lastNotificationID, lastAuditID         uint64

	locksMu sync.Mutex
	locks   map[uint64]*sync.Mutex
}

var _ storage.Storage = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		users:         make(map[uint64]*model.User),
		tokens:        make(map[string]*model.RefreshToken),
		properties:    make(map[uint64]*model.Property),
		bookings:      make(map[uint64]*model.Booking),
		messages:      make(map[uint64]*model.Message),
		notifications: make(map[uint64]*model.Notification),
		locks:         make(map[uint64]*sync.Mutex),
	}
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Email == email {
			return storage.ErrEmailExists
		}
	}
	s.lastUserID++
	now := s.now()
	u.ID = s.lastUserID
	u.Email = email
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.FullName = u.FullName
	cur.Phone = u.Phone
	cur.Role = u.Role
	cur.Status = u.Status
	cur.UpdatedAt = s.now()
	*u = *cur
	return nil
}

// ---- refresh tokens ----

func (s *Store) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTokenID++
	s.tokens[tokenHash] = &model.RefreshToken{
		ID:        s.lastTokenID,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp,
		CreatedAt: s.now(),
	}
	return nil
}

func (s *Store) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || s.now().After(t.ExpiresAt) {
		return 0, storage.ErrNotFound
	}
	return t.UserID, nil
}

func (s *Store) RevokeRefresh(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := s.now()
		t.RevokedAt = &now
	}
	return nil
}

func (s *Store) RevokeAllRefresh(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

// ---- properties ----

func (s *Store) CreateProperty(_ context.Context, p *model.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPropertyID++
	now := s.now()
	p.ID = s.lastPropertyID
	if p.Status == "" {
		p.Status = model.PropertyPending
	}
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.properties[p.ID] = &cp
	return nil
}

func (s *Store) GetProperty(_ context.Context, id uint64) (*model.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProperties(_ context.Context, f model.PropertyFilter) ([]model.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc := strings.ToLower(strings.TrimSpace(f.Location))
	out := make([]model.Property, 0)
	for _, p := range s.properties {
		if f.OwnerID != 0 && p.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.PublicOnly && !p.Public() {
			continue
		}
		if loc != "" && !strings.Contains(strings.ToLower(p.Location), loc) {
			continue
		}
		if f.MinGuests > 0 && p.MaxGuests < f.MinGuests {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) UpdateProperty(_ context.Context, p *model.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.properties[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	p.OwnerID = cur.OwnerID
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = s.now()
	cp := *p
	s.properties[p.ID] = &cp
	return nil
}

func (s *Store) DeleteProperty(_ context.Context, id uint64) error {
	l := s.propertyLock(id)
	l.Lock()
	defer l.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[id]; !ok {
		return storage.ErrNotFound
	}
	for _, b := range s.bookings {
		if b.PropertyID == id && b.Status.Active() {
			return storage.ErrConflict
		}
	}
	delete(s.properties, id)
	return nil
}

// ---- bookings ----

func (s *Store) ActiveBookings(_ context.Context, propertyID, excludeID uint64) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterActive(s.bookingsOf(propertyID), excludeID), nil
}

func (s *Store) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) ListBookings(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if f.PropertyID != 0 && b.PropertyID != f.PropertyID {
			continue
		}
		if f.UserID != 0 && !b.BelongsTo(f.UserID) {
			continue
		}
		if f.OwnerID != 0 {
			p, ok := s.properties[b.PropertyID]
			if !ok || p.OwnerID != f.OwnerID {
				continue
			}
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// WithPropertyLock serializes fn with every other booking write on the same
// property.  Writes made through tx are staged and applied only when fn
// returns nil.
func (s *Store) WithPropertyLock(ctx context.Context, propertyID uint64, fn func(tx storage.BookingTx) error) error {
	l := s.propertyLock(propertyID)
	l.Lock()
	defer l.Unlock()
	// DeleteProperty holds the same lock, so the property cannot vanish
	// between this check and the commit below.
	if _, err := s.GetProperty(ctx, propertyID); err != nil {
		return err
	}

	tx := &memTx{s: s, propertyID: propertyID, staged: make(map[uint64]*model.Booking)}
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range tx.staged {
		s.bookings[id] = b
	}
	return nil
}

func (s *Store) propertyLock(id uint64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// bookingsOf returns copies of all bookings of a property.  Callers hold s.mu.
func (s *Store) bookingsOf(propertyID uint64) []model.Booking {
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.PropertyID == propertyID {
			out = append(out, *b)
		}
	}
	return out
}

func filterActive(in []model.Booking, excludeID uint64) []model.Booking {
	out := make([]model.Booking, 0, len(in))
	for _, b := range in {
		if !b.Status.Active() || (excludeID != 0 && b.ID == excludeID) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	return out
}

// memTx overlays staged writes on the committed bookings of one property.
type memTx struct {
	s          *Store
	propertyID uint64
	staged     map[uint64]*model.Booking
}

func (t *memTx) view() []model.Booking {
	t.s.mu.RLock()
	base := t.s.bookingsOf(t.propertyID)
	t.s.mu.RUnlock()
	seen := make(map[uint64]bool, len(base))
	out := make([]model.Booking, 0, len(base)+len(t.staged))
	for _, b := range base {
		if st, ok := t.staged[b.ID]; ok {
			b = *st
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	for id, b := range t.staged {
		if !seen[id] {
			out = append(out, *b)
		}
	}
	return out
}

func (t *memTx) ActiveBookings(_ context.Context, propertyID, excludeID uint64) ([]model.Booking, error) {
	if propertyID != t.propertyID {
		return nil, fmt.Errorf("memory: property %d is not locked by this transaction", propertyID)
	}
	return filterActive(t.view(), excludeID), nil
}

func (t *memTx) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	if b, ok := t.staged[id]; ok {
		cp := *b
		return &cp, nil
	}
	return t.s.GetBooking(ctx, id)
}

func (t *memTx) ActiveBookingForUser(_ context.Context, userID, propertyID uint64) (*model.Booking, error) {
	if propertyID != t.propertyID {
		return nil, fmt.Errorf("memory: property %d is not locked by this transaction", propertyID)
	}
	var found *model.Booking
	for _, b := range t.view() {
		if b.BelongsTo(userID) && b.Status.Open() {
			if found == nil || b.ID > found.ID {
				cp := b
				found = &cp
			}
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	if b.PropertyID != t.propertyID {
		return fmt.Errorf("memory: property %d is not locked by this transaction", b.PropertyID)
	}
	t.s.mu.Lock()
	t.s.lastBookingID++
	b.ID = t.s.lastBookingID
	now := t.s.now()
	t.s.mu.Unlock()
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	t.staged[b.ID] = &cp
	return nil
}

func (t *memTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	cur, err := t.GetBooking(ctx, b.ID)
	if err != nil {
		return err
	}
	if cur.PropertyID != t.propertyID || b.PropertyID != t.propertyID {
		return fmt.Errorf("memory: booking %d does not belong to locked property %d", b.ID, t.propertyID)
	}
	b.CreatedAt = cur.CreatedAt
	b.UpdatedAt = t.s.now()
	cp := *b
	t.staged[b.ID] = &cp
	return nil
}

// ---- messages ----

func (s *Store) CreateMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMessageID++
	m.ID = s.lastMessageID
	m.CreatedAt = s.now()
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *Store) ListMessages(_ context.Context, userID uint64) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, 0)
	for _, m := range s.messages {
		if m.SenderID == userID || m.RecipientID == userID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) MarkMessageRead(_ context.Context, id, recipientID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.RecipientID != recipientID {
		return storage.ErrNotFound
	}
	m.IsRead = true
	return nil
}

// ---- notifications ----

func (s *Store) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastNotificationID++
	n.ID = s.lastNotificationID
	n.CreatedAt = s.now()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID uint64) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return storage.ErrNotFound
	}
	n.IsRead = true
	return nil
}

// ---- audit logs ----

func (s *Store) CreateAuditLog(_ context.Context, l *model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAuditID++
	l.ID = s.lastAuditID
	l.CreatedAt = s.now()
	s.audit = append(s.audit, *l)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]model.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AuditLog, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		out = append(out, s.audit[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---- stats ----

func (s *Store) Stats(_ context.Context) (model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := model.Stats{
		Users:              len(s.users),
		PropertiesByStatus: make(map[model.PropertyStatus]int),
		BookingsByStatus:   make(map[model.BookingStatus]int),
	}
	for _, p := range s.properties {
		st.PropertiesByStatus[p.Status]++
	}
	for _, b := range s.bookings {
		st.BookingsByStatus[b.Status]++
	}
	return st, nil
}
