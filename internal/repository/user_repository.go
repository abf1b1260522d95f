package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
	"github.com/iliyamo/vacation-rental-marketplace/internal/storage"
)

const userColumns = "id,email,password_hash,full_name,phone,role,status,created_at,updated_at"

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone,
		&u.Role, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts u with an already hashed password and sets its ID.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, full_name, phone, role, status) VALUES (?,?,?,?,?,?)",
		u.Email, u.PasswordHash, u.FullName, u.Phone, u.Role, u.Status)
	if err != nil {
		if isDuplicate(err) {
			return storage.ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	u.ID = uint64(id)
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetUserByEmail fetches a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return u, notFound(err)
}

// GetUserByID fetches a user by id.
func (s *Store) GetUserByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateUser writes the mutable profile fields and reloads the row.
func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE users SET full_name=?, phone=?, role=?, status=? WHERE id=?",
		u.FullName, u.Phone, u.Role, u.Status, u.ID); err != nil {
		return err
	}
	fresh, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		return err
	}
	*u = *fresh
	return nil
}
