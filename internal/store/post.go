package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rescue-app/rescue/internal/geo"
)

const postColumns = `id, user_id, user_name, user_image, body, category, status, latitude, longitude, delivery_range, phone, created_at`

// PostQuery selects a page of posts in (created_at DESC, id DESC) order.
type PostQuery struct {
	// AuthorIDs restricts results to these authors when non-nil. A non-nil
	// empty slice matches nothing.
	AuthorIDs []string
	// Center and RadiusKm restrict results to posts within the radius. Posts
	// at the (0,0) sentinel never match.
	Center     *geo.Point
	RadiusKm   float64
	Categories []string
	// BeforeCreatedAt and BeforeID resume after the last post of a previous page.
	BeforeCreatedAt int64
	BeforeID        string
	Limit           int
}

// CreatePost inserts a post, copying the author's current display name and
// image onto it. ID, Status and CreatedAt are filled when empty.
func (db *DB) CreatePost(ctx context.Context, p *Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().UnixMilli()
	}
	if p.Status == "" {
		p.Status = "waiting"
	}
	if p.Category == "" {
		p.Category = "other"
	}

	author, err := db.GetUser(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("post author: %w", err)
	}
	p.UserName = author.DisplayName()
	p.UserImage = author.Image

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.UserName, p.UserImage, p.Body, p.Category, p.Status,
		p.Latitude, p.Longitude, p.DeliveryRange, p.Phone, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	for i, ref := range p.Images {
		if _, err := tx.ExecContext(ctx, `INSERT INTO post_images (post_id, position, ref) VALUES (?, ?, ?)`,
			p.ID, i, ref); err != nil {
			return fmt.Errorf("insert post image: %w", err)
		}
	}
	return tx.Commit()
}

// GetPost returns a post by id or ErrNotFound.
func (db *DB) GetPost(ctx context.Context, id string) (*Post, error) {
	var p Post
	err := db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id).
		Scan(&p.ID, &p.UserID, &p.UserName, &p.UserImage, &p.Body, &p.Category, &p.Status,
			&p.Latitude, &p.Longitude, &p.DeliveryRange, &p.Phone, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	posts := []Post{p}
	if err := db.loadImages(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// SetPostStatus overwrites a post's status.
func (db *DB) SetPostStatus(ctx context.Context, id, status string) error {
	res, err := db.ExecContext(ctx, `UPDATE posts SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post and its images.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReportPost records a report. A reporter reporting the same post twice
// replaces the earlier reason.
func (db *DB) ReportPost(ctx context.Context, r *Report) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO post_reports (post_id, reporter_id, reason, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(post_id, reporter_id) DO UPDATE SET reason = excluded.reason, created_at = excluded.created_at`,
		r.PostID, r.ReporterID, r.Reason, r.CreatedAt)
	return err
}

// CountReports returns how many distinct users reported a post.
func (db *DB) CountReports(ctx context.Context, postID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_reports WHERE post_id = ?`, postID).Scan(&n)
	return n, err
}

// QueryPosts returns up to q.Limit posts matching q.
func (db *DB) QueryPosts(ctx context.Context, q PostQuery) ([]Post, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.AuthorIDs != nil && len(q.AuthorIDs) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	if len(q.AuthorIDs) > 0 {
		where = append(where, "user_id IN ("+placeholders(len(q.AuthorIDs))+")")
		for _, id := range q.AuthorIDs {
			args = append(args, id)
		}
	}
	if q.Center != nil {
		box := geo.BoundingBox(*q.Center, q.RadiusKm)
		where = append(where,
			"latitude BETWEEN ? AND ?",
			"longitude BETWEEN ? AND ?",
			"NOT (latitude = 0 AND longitude = 0)",
			"distance_km(?, ?, latitude, longitude) <= ?")
		args = append(args, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon,
			q.Center.Lat, q.Center.Lon, q.RadiusKm)
	}
	if len(q.Categories) > 0 {
		where = append(where, "category IN ("+placeholders(len(q.Categories))+")")
		for _, c := range q.Categories {
			args = append(args, c)
		}
	}
	if q.BeforeID != "" {
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, q.BeforeCreatedAt, q.BeforeCreatedAt, q.BeforeID)
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, q.Limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.UserName, &p.UserImage, &p.Body, &p.Category, &p.Status,
			&p.Latitude, &p.Longitude, &p.DeliveryRange, &p.Phone, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := db.loadImages(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (db *DB) loadImages(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}
	idx := make(map[string]int, len(posts))
	args := make([]any, len(posts))
	for i, p := range posts {
		idx[p.ID] = i
		args[i] = p.ID
	}
	rows, err := db.QueryContext(ctx, `
		SELECT post_id, ref FROM post_images
		WHERE post_id IN (`+placeholders(len(posts))+`)
		ORDER BY post_id, position`, args...)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, ref string
		if err := rows.Scan(&id, &ref); err != nil {
			return err
		}
		i := idx[id]
		posts[i].Images = append(posts[i].Images, ref)
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
