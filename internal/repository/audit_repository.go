package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

func (s *Store) CreateAuditLog(ctx context.Context, l *model.AuditLog) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, details) VALUES (?,?,?,?,?)",
		nullUint64(l.ActorID), l.Action, l.EntityType, l.EntityID, l.Details)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	l.CreatedAt = time.Now().UTC()
	return nil
}

// ListAuditLogs returns the newest entries first.  limit<=0 means no limit.
func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error) {
	q := "SELECT id, actor_id, action, entity_type, entity_id, details, created_at FROM audit_logs ORDER BY id DESC"
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.AuditLog, 0)
	for rows.Next() {
		var (
			l     model.AuditLog
			actor sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &actor, &l.Action, &l.EntityType, &l.EntityID, &l.Details, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.ActorID = uint64Ptr(actor)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Stats aggregates the admin dashboard counters.
func (s *Store) Stats(ctx context.Context) (model.Stats, error) {
	st := model.Stats{
		PropertiesByStatus: make(map[model.PropertyStatus]int),
		BookingsByStatus:   make(map[model.BookingStatus]int),
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&st.Users); err != nil {
		return model.Stats{}, fmt.Errorf("count users: %w", err)
	}
	if err := countByStatus(ctx, s.db, "properties", func(status string, n int) {
		st.PropertiesByStatus[model.PropertyStatus(status)] = n
	}); err != nil {
		return model.Stats{}, err
	}
	if err := countByStatus(ctx, s.db, "bookings", func(status string, n int) {
		st.BookingsByStatus[model.BookingStatus(status)] = n
	}); err != nil {
		return model.Stats{}, err
	}
	return st, nil
}

func countByStatus(ctx context.Context, q queryer, table string, put func(string, int)) error {
	rows, err := q.QueryContext(ctx, "SELECT status, COUNT(*) FROM "+table+" GROUP BY status")
	if err != nil {
		return fmt.Errorf("count %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return err
		}
		put(status, n)
	}
	return rows.Err()
}
