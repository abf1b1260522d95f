package repository

import (
	"context"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, type, title, body) VALUES (?,?,?,?)",
		n.UserID, n.Type, n.Title, n.Body)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	n.CreatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID uint64) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, type, title, body, is_read, created_at FROM notifications WHERE user_id=? ORDER BY id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID uint64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read=1 WHERE id=? AND user_id=? AND is_read=0", id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// Already read rows affect nothing; tell them apart from foreign ids.
	var exists int
	return notFound(s.db.QueryRowContext(ctx,
		"SELECT 1 FROM notifications WHERE id=? AND user_id=?", id, userID).Scan(&exists))
}
