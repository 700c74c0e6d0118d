package api

import (
	"context"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/rescue-app/rescue/internal/feed"
)

// FeedService implements FeedServer on top of any feed.Query.
type FeedService struct {
	query feed.Query
}

func NewFeedService(q feed.Query) *FeedService {
	return &FeedService{query: q}
}

// Fetch returns one page for the caller. The viewer is always the caller,
// whatever the filter says.
func (s *FeedService) Fetch(ctx context.Context, req *FetchRequest) (*feed.Page, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	f := req.Filter
	if _, err := feed.ParseMode(string(f.Mode)); err != nil {
		return nil, grpcstatus.Error(codes.InvalidArgument, err.Error())
	}
	if f.Position != nil && !f.Position.Valid() {
		return nil, grpcstatus.Error(codes.InvalidArgument, "position out of range")
	}
	for _, c := range f.Categories {
		if !feed.ValidCategory(c) {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "unknown category %q", c)
		}
	}
	f.ViewerID = me
	page, err := s.query.Fetch(ctx, f, req.Cursor)
	if err != nil {
		return nil, toStatus("fetch feed", err)
	}
	return &page, nil
}
