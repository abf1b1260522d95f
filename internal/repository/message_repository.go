package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/vacation-rental-marketplace/internal/model"
)

func (s *Store) CreateMessage(ctx context.Context, m *model.Message) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (sender_id, recipient_id, property_id, subject, body) VALUES (?,?,?,?,?)",
		m.SenderID, m.RecipientID, nullUint64(m.PropertyID), m.Subject, m.Body)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	m.CreatedAt = time.Now().UTC()
	return nil
}

// ListMessages returns messages sent or received by userID, newest first.
func (s *Store) ListMessages(ctx context.Context, userID uint64) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, property_id, subject, body, is_read, created_at
		 FROM messages WHERE sender_id=? OR recipient_id=? ORDER BY id DESC`,
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Message, 0)
	for rows.Next() {
		var (
			m   model.Message
			pid sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &pid, &m.Subject, &m.Body, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.PropertyID = uint64Ptr(pid)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkMessageRead flags a message as read.  Only its recipient may do so.
func (s *Store) MarkMessageRead(ctx context.Context, id, recipientID uint64) error {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM messages WHERE id=? AND recipient_id=?", id, recipientID).Scan(&exists); err != nil {
		return notFound(err)
	}
	_, err := s.db.ExecContext(ctx, "UPDATE messages SET is_read=1 WHERE id=?", id)
	return err
}
