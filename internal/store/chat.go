package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const pointerColumns = `owner_id, peer_id, room_id, sender, receiver, image, email, last_msg, last_sent_at`

func scanPointer(row interface{ Scan(...any) error }) (*ChatPointer, error) {
	var p ChatPointer
	err := row.Scan(&p.OwnerID, &p.PeerID, &p.RoomID, &p.Sender, &p.Receiver, &p.Image, &p.Email, &p.LastMsg, &p.LastSentAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetChatPointer returns owner's pointer to peer, or nil if none exists.
func (db *DB) GetChatPointer(ctx context.Context, ownerID, peerID string) (*ChatPointer, error) {
	p, err := scanPointer(db.QueryRowContext(ctx,
		`SELECT `+pointerColumns+` FROM chat_list WHERE owner_id = ? AND peer_id = ?`, ownerID, peerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// CreateRoom makes sure both pointers of a conversation exist and share one
// room id. If either direction already has a pointer its room id wins and only
// the missing side is written; otherwise a new room id is used. The returned
// id is the room both participants now point at.
func (db *DB) CreateRoom(ctx context.Context, mine, theirs ChatPointer) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var roomID string
	err = tx.QueryRowContext(ctx, `
		SELECT room_id FROM chat_list
		WHERE (owner_id = ? AND peer_id = ?) OR (owner_id = ? AND peer_id = ?)
		LIMIT 1`,
		mine.OwnerID, mine.PeerID, theirs.OwnerID, theirs.PeerID).Scan(&roomID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		roomID = mine.RoomID
		if roomID == "" {
			roomID = uuid.NewString()
		}
	case err != nil:
		return "", fmt.Errorf("lookup room: %w", err)
	}

	for _, p := range []ChatPointer{mine, theirs} {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chat_list (`+pointerColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(owner_id, peer_id) DO NOTHING`,
			p.OwnerID, p.PeerID, roomID, p.Sender, p.Receiver, p.Image, p.Email, p.LastMsg, p.LastSentAt)
		if err != nil {
			return "", fmt.Errorf("insert pointer: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return roomID, nil
}

// ListChatPointers returns owner's conversations, most recent first.
func (db *DB) ListChatPointers(ctx context.Context, ownerID string) ([]ChatPointer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+pointerColumns+` FROM chat_list
		WHERE owner_id = ?
		ORDER BY last_sent_at DESC, peer_id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ChatPointer
	for rows.Next() {
		p, err := scanPointer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateLastMessage sets the summary on owner's pointer to peer.
func (db *DB) UpdateLastMessage(ctx context.Context, ownerID, peerID, text string, sentAt int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE chat_list SET last_msg = ?, last_sent_at = ?
		WHERE owner_id = ? AND peer_id = ?`,
		text, sentAt, ownerID, peerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RoomPeer returns the peer userID talks to in roomID. ErrNotFound means
// userID holds no pointer to the room.
func (db *DB) RoomPeer(ctx context.Context, userID, roomID string) (string, error) {
	var peerID string
	err := db.QueryRowContext(ctx,
		`SELECT peer_id FROM chat_list WHERE owner_id = ? AND room_id = ?`, userID, roomID).Scan(&peerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return peerID, err
}
