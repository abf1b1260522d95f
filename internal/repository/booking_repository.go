package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

const bookingColumns = "b.id,b.property_id,b.user_id,b.guest_name,b.guest_email,b.guest_phone,b.check_in,b.check_out," +
	"b.guests,b.amount,b.status,b.comments,b.created_at,b.updated_at"

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b      model.Booking
		userID sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.PropertyID, &userID, &b.GuestName, &b.GuestEmail, &b.GuestPhone,
		&b.CheckIn, &b.CheckOut, &b.Guests, &b.Amount, &b.Status, &b.Comments,
		&b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.UserID = uint64Ptr(userID)
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func activeBookings(ctx context.Context, q queryer, propertyID, excludeID uint64) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.property_id=? AND b.status<>'cancelled' AND b.id<>? ORDER BY b.check_in",
		propertyID, excludeID)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

func getBooking(ctx context.Context, q queryer, id uint64) (*model.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE b.id=? LIMIT 1", id))
	return b, notFound(err)
}

// ActiveBookings lists non-cancelled bookings of a property ordered by
// check-in.  excludeID=0 excludes nothing since ids start at 1.
func (s *Store) ActiveBookings(ctx context.Context, propertyID, excludeID uint64) ([]model.Booking, error) {
	return activeBookings(ctx, s.db, propertyID, excludeID)
}

func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return getBooking(ctx, s.db, id)
}

// ListBookings returns bookings matching f, newest first.
func (s *Store) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	q := "SELECT " + bookingColumns + " FROM bookings b"
	if f.OwnerID != 0 {
		q += " JOIN properties p ON p.id=b.property_id"
		where = append(where, "p.owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.PropertyID != 0 {
		where = append(where, "b.property_id=?")
		args = append(args, f.PropertyID)
	}
	if f.UserID != 0 {
		where = append(where, "b.user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "b.status=?")
		args = append(args, f.Status)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY b.id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

// lockProperty takes a row lock on the property for the rest of tx.
func lockProperty(ctx context.Context, tx *sql.Tx, propertyID uint64) error {
	var id uint64
	err := tx.QueryRowContext(ctx, "SELECT id FROM properties WHERE id=? FOR UPDATE", propertyID).Scan(&id)
	return notFound(err)
}

// WithPropertyLock runs fn in a transaction holding SELECT ... FOR UPDATE on
// the property row, so booking writes for one property are serialized.  The
// transaction commits only when fn returns nil.
func (s *Store) WithPropertyLock(ctx context.Context, propertyID uint64, fn func(tx storage.BookingTx) error) error {
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
	if err := lockProperty(ctx, tx, propertyID); err != nil {
		return err
	}
	if err := fn(&bookingTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// bookingTx is the storage.BookingTx handed to WithPropertyLock callbacks.
type bookingTx struct {
	tx *sql.Tx
}

func (t *bookingTx) ActiveBookings(ctx context.Context, propertyID, excludeID uint64) ([]model.Booking, error) {
	return activeBookings(ctx, t.tx, propertyID, excludeID)
}

func (t *bookingTx) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return getBooking(ctx, t.tx, id)
}

// ActiveBookingForUser returns the user's most recent pending or confirmed
// booking of the property.  Completed stays and host blocks never count.
func (t *bookingTx) ActiveBookingForUser(ctx context.Context, userID, propertyID uint64) (*model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+` FROM bookings b
		 WHERE b.user_id=? AND b.property_id=? AND b.status IN ('pending','confirmed')
		 ORDER BY b.id DESC LIMIT 1`,
		userID, propertyID))
	return b, notFound(err)
}

func (t *bookingTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookings (property_id, user_id, guest_name, guest_email, guest_phone,
		                       check_in, check_out, guests, amount, status, comments)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		b.PropertyID, nullUint64(b.UserID), b.GuestName, b.GuestEmail, b.GuestPhone,
		b.CheckIn, b.CheckOut, b.Guests, b.Amount, b.Status, b.Comments)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	b.ID = uint64(id)
	b.CreatedAt, b.UpdatedAt = now, now
	return nil
}

func (t *bookingTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET user_id=?, guest_name=?, guest_email=?, guest_phone=?, check_in=?, check_out=?,
		        guests=?, amount=?, status=?, comments=?
		 WHERE id=? AND property_id=?`,
		nullUint64(b.UserID), b.GuestName, b.GuestEmail, b.GuestPhone, b.CheckIn, b.CheckOut,
		b.Guests, b.Amount, b.Status, b.Comments, b.ID, b.PropertyID); err != nil {
		return err
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}
