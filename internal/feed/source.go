package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/rescue-app/rescue/internal/store"
)

// DefaultPageSize is used when a StoreSource is created with a non-positive size.
const DefaultPageSize = 20

// followingCacheSize bounds how many viewers' followee lists are kept between
// pages.
const followingCacheSize = 1024

// PostReader is the part of the store a StoreSource reads.
type PostReader interface {
	QueryPosts(ctx context.Context, q store.PostQuery) ([]store.Post, error)
	FollowingIDs(ctx context.Context, followerID string) ([]string, error)
}

// StoreSource implements Query on top of the SQLite store.
type StoreSource struct {
	posts    PostReader
	pageSize int

	mu         sync.Mutex
	following  map[string][]string // viewer -> followee ids captured at first fetch
	cacheLimit int
}

// NewStoreSource creates a Query backed by posts.
func NewStoreSource(posts PostReader, pageSize int) *StoreSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &StoreSource{
		posts:      posts,
		pageSize:   pageSize,
		following:  make(map[string][]string),
		cacheLimit: followingCacheSize,
	}
}

// Fetch returns the page after cursor. ForYou without a position yields an
// empty page. Following captures the viewer's followees on the first fetch and
// reuses them for later pages so a scroll stays consistent.
func (s *StoreSource) Fetch(ctx context.Context, f Filter, cursor Cursor) (Page, error) {
	q := store.PostQuery{Limit: s.pageSize + 1}

	switch f.Mode {
	case ForYou:
		if f.Position == nil {
			return Page{}, nil
		}
		q.Center = f.Position
		q.RadiusKm = f.RadiusKm
		q.Categories = f.Categories
	case Following:
		ids, err := s.followees(ctx, f.ViewerID, f.FirstFetch || cursor == "")
		if err != nil {
			return Page{}, err
		}
		q.AuthorIDs = ids
	default:
		return Page{}, fmt.Errorf("unknown feed mode %q", f.Mode)
	}

	if cursor != "" {
		ts, id, err := decodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		q.BeforeCreatedAt, q.BeforeID = ts, id
	}

	rows, err := s.posts.QueryPosts(ctx, q)
	if err != nil {
		return Page{}, err
	}

	var page Page
	more := len(rows) > s.pageSize
	if more {
		rows = rows[:s.pageSize]
	}
	page.Posts = make([]Post, 0, len(rows))
	for _, r := range rows {
		page.Posts = append(page.Posts, PostFromStore(r))
	}
	if more {
		last := rows[len(rows)-1]
		page.Next = encodeCursor(last.CreatedAt, last.ID)
	}
	if f.Mode == Following {
		// Only a scroll that can continue needs the captured list.
		if page.Next != "" {
			s.remember(f.ViewerID, q.AuthorIDs)
		} else {
			s.forget(f.ViewerID)
		}
	}
	return page, nil
}

func (s *StoreSource) followees(ctx context.Context, viewerID string, reload bool) ([]string, error) {
	s.mu.Lock()
	ids, ok := s.following[viewerID]
	s.mu.Unlock()
	if ok && !reload {
		return ids, nil
	}

	ids, err := s.posts.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load followees: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *StoreSource) remember(viewerID string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.following[viewerID]; !ok && len(s.following) >= s.cacheLimit {
		for k := range s.following {
			delete(s.following, k)
			break
		}
	}
	s.following[viewerID] = ids
}

func (s *StoreSource) forget(viewerID string) {
	s.mu.Lock()
	delete(s.following, viewerID)
	s.mu.Unlock()
}

func (s *StoreSource) cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.following)
}
