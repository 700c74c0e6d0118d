package client

import (
	"context"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/feed"
)

// FeedQuery is a feed.Query served by the daemon. The daemon pages as the
// signed-in user whatever ViewerID the filter carries.
type FeedQuery struct {
	c *Client
}

func (c *Client) Feed() *FeedQuery {
	return &FeedQuery{c: c}
}

func (q *FeedQuery) Fetch(ctx context.Context, f feed.Filter, cursor feed.Cursor) (feed.Page, error) {
	var page feed.Page
	err := q.c.invoke(ctx, api.FeedFetch, &api.FetchRequest{Filter: f, Cursor: cursor}, &page)
	return page, err
}
