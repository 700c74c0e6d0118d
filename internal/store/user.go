package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, first_name, last_name, user_name, bio, phone, image, cover_image, created_at, updated_at`

// ErrEmailTaken is returned by CreateUser when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.UserName,
		&u.Bio, &u.Phone, &u.Image, &u.CoverImage, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user, assigning an id when none is set.
func (db *DB) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()
	u.CreatedAt, u.UpdatedAt = now, now

	var exists int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, u.Email).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return ErrEmailTaken
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.UserName,
		u.Bio, u.Phone, u.Image, u.CoverImage, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user by id or ErrNotFound.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	return scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail returns a user by email or ErrNotFound.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// UpdateProfile writes the editable profile fields and copies the new display
// name and image onto every post the user authored, in one transaction.
func (db *DB) UpdateProfile(ctx context.Context, u *User) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	u.UpdatedAt = time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx, `
		UPDATE users SET first_name = ?, last_name = ?, user_name = ?, bio = ?, phone = ?,
			image = ?, cover_image = ?, updated_at = ?
		WHERE id = ?`,
		u.FirstName, u.LastName, u.UserName, u.Bio, u.Phone, u.Image, u.CoverImage, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `UPDATE posts SET user_name = ?, user_image = ? WHERE user_id = ?`,
		u.DisplayName(), u.Image, u.ID); err != nil {
		return fmt.Errorf("update post authors: %w", err)
	}
	return tx.Commit()
}

// Follow records that followerID follows followeeID. Idempotent.
func (db *DB) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(follower_id, followee_id) DO NOTHING`,
		followerID, followeeID, time.Now().UnixMilli())
	return err
}

// Unfollow removes a follow edge if present.
func (db *DB) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`,
		followerID, followeeID)
	return err
}

// FollowingIDs returns the ids of users followerID follows.
func (db *DB) FollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT followee_id FROM follows WHERE follower_id = ? ORDER BY created_at`, followerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveDeviceToken registers a push token for a user.
func (db *DB) SaveDeviceToken(ctx context.Context, userID, token string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO device_tokens (user_id, token, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, token) DO UPDATE SET updated_at = excluded.updated_at`,
		userID, token, time.Now().UnixMilli())
	return err
}

// DeviceTokens returns every push token registered for a user.
func (db *DB) DeviceTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT token FROM device_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// DeleteDeviceTokens removes tokens the push provider reported as dead.
func (db *DB) DeleteDeviceTokens(ctx context.Context, tokens []string) error {
	for _, t := range tokens {
		if _, err := db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ?`, t); err != nil {
			return err
		}
	}
	return nil
}
