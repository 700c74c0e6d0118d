// Package feed implements the two-mode paginated post feed: the Query
// abstraction that pages through posts and the Controller that drives it.
package feed

import (
	"context"
	"fmt"

	"github.com/rescue-app/rescue/internal/geo"
	"github.com/rescue-app/rescue/internal/store"
)

// Mode selects which posts the feed shows.
type Mode string

const (
	// ForYou shows posts near the viewer, optionally filtered by category.
	ForYou Mode = "for_you"
	// Following shows posts by users the viewer follows.
	Following Mode = "following"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ForYou, Following:
		return m, nil
	}
	return "", fmt.Errorf("unknown feed mode %q", s)
}

// Cursor marks the last post of a page. The empty cursor is the start of the
// sequence when passed in, and the end of the sequence when returned.
type Cursor string

// Post is a feed entry.
type Post struct {
	ID            string   `json:"id"`
	UserID        string   `json:"user_id"`
	UserName      string   `json:"user_name"`
	UserImage     string   `json:"user_image,omitempty"`
	Body          string   `json:"body"`
	Category      string   `json:"category"`
	Status        string   `json:"status"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	DeliveryRange float64  `json:"delivery_range,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Images        []string `json:"images,omitempty"`
	CreatedAt     int64    `json:"created_at"`
}

// PostFromStore converts a stored post.
func PostFromStore(p store.Post) Post {
	return Post{
		ID:            p.ID,
		UserID:        p.UserID,
		UserName:      p.UserName,
		UserImage:     p.UserImage,
		Body:          p.Body,
		Category:      p.Category,
		Status:        p.Status,
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		DeliveryRange: p.DeliveryRange,
		Phone:         p.Phone,
		Images:        p.Images,
		CreatedAt:     p.CreatedAt,
	}
}

// Page is one slice of a feed.
type Page struct {
	Posts []Post `json:"posts"`
	Next  Cursor `json:"next,omitempty"`
}

// Filter carries the parameters of a feed query. ForYou uses Position,
// RadiusKm and Categories; Following uses FirstFetch.
type Filter struct {
	Mode       Mode       `json:"mode"`
	ViewerID   string     `json:"viewer_id,omitempty"`
	Position   *geo.Point `json:"position,omitempty"`
	RadiusKm   float64    `json:"radius_km,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	FirstFetch bool       `json:"first_fetch,omitempty"`
}

// Query fetches one page of posts after cursor.
type Query interface {
	Fetch(ctx context.Context, f Filter, cursor Cursor) (Page, error)
}
