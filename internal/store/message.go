package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppendMessage inserts a message, generating its key and timestamp when
// unset. Re-appending an existing key is a no-op.
func (db *DB) AppendMessage(ctx context.Context, m *Message) error {
	if m.Key == "" {
		m.Key = uuid.NewString()
	}
	if m.SentAt == 0 {
		m.SentAt = time.Now().UnixMilli()
	}
	if m.Type == "" {
		m.Type = "text"
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO messages (room_id, msg_key, from_id, to_id, body, sent_at, msg_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id, msg_key) DO NOTHING`,
		m.RoomID, m.Key, m.FromID, m.ToID, m.Body, m.SentAt, m.Type)
	return err
}

// RoomMessages returns every message in a room, oldest first.
func (db *DB) RoomMessages(ctx context.Context, roomID string) ([]Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT room_id, msg_key, from_id, to_id, body, sent_at, msg_type
		FROM messages
		WHERE room_id = ?
		ORDER BY sent_at, msg_key`, roomID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.RoomID, &m.Key, &m.FromID, &m.ToID, &m.Body, &m.SentAt, &m.Type); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
