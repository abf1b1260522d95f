package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

const propertyColumns = "id,owner_id,title,description,location,price_per_night,max_guests,bedrooms,bathrooms," +
	"status,is_active,is_published,review_note,created_at,updated_at"

func scanProperty(row rowScanner) (*model.Property, error) {
	var p model.Property
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Location, &p.PricePerNight,
		&p.MaxGuests, &p.Bedrooms, &p.Bathrooms, &p.Status, &p.IsActive, &p.IsPublished,
		&p.ReviewNote, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProperty inserts p and sets its ID.  New listings default to pending.
func (s *Store) CreateProperty(ctx context.Context, p *model.Property) error {
	if p.Status == "" {
		p.Status = model.PropertyPending
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO properties (owner_id, title, description, location, price_per_night, max_guests,
		                         bedrooms, bathrooms, status, is_active, is_published, review_note)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.OwnerID, p.Title, p.Description, p.Location, p.PricePerNight, p.MaxGuests,
		p.Bedrooms, p.Bathrooms, p.Status, p.IsActive, p.IsPublished, p.ReviewNote)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	p.ID = uint64(id)
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (s *Store) GetProperty(ctx context.Context, id uint64) (*model.Property, error) {
	p, err := scanProperty(s.db.QueryRowContext(ctx,
		"SELECT "+propertyColumns+" FROM properties WHERE id=? LIMIT 1", id))
	return p, notFound(err)
}

// ListProperties returns listings matching f, newest first.
func (s *Store) ListProperties(ctx context.Context, f model.PropertyFilter) ([]model.Property, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != 0 {
		where = append(where, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, f.Status)
	}
	if f.PublicOnly {
		where = append(where, "status='approved' AND is_active=1 AND is_published=1")
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		where = append(where, "LOWER(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(loc)+"%")
	}
	if f.MinGuests > 0 {
		where = append(where, "max_guests>=?")
		args = append(args, f.MinGuests)
	}
	q := "SELECT " + propertyColumns + " FROM properties"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Property, 0)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateProperty writes every mutable column of p and reloads the row.
// OwnerID is never changed.
func (s *Store) UpdateProperty(ctx context.Context, p *model.Property) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE properties SET title=?, description=?, location=?, price_per_night=?, max_guests=?,
		        bedrooms=?, bathrooms=?, status=?, is_active=?, is_published=?, review_note=?
		 WHERE id=?`,
		p.Title, p.Description, p.Location, p.PricePerNight, p.MaxGuests,
		p.Bedrooms, p.Bathrooms, p.Status, p.IsActive, p.IsPublished, p.ReviewNote, p.ID); err != nil {
		return err
	}
	fresh, err := s.GetProperty(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

// DeleteProperty removes a listing that has no active bookings.  Cancelled
// bookings are removed with it by the foreign key cascade.
func (s *Store) DeleteProperty(ctx context.Context, id uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := lockProperty(ctx, tx, id); err != nil {
		return err
	}
	var active int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE property_id=? AND status<>'cancelled'", id).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return storage.ErrConflict
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM properties WHERE id=?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
