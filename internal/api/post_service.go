package api

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/geo"
	"github.com/rescue-app/rescue/internal/status"
	"github.com/rescue-app/rescue/internal/store"
)

const maxPostImages = 4

// PostService implements PostServer.
type PostService struct {
	db      *store.DB
	machine *status.Machine
	bus     *bus.Bus
}

func NewPostService(db *store.DB, m *status.Machine, b *bus.Bus) *PostService {
	return &PostService{db: db, machine: m, bus: b}
}

func (s *PostService) Create(ctx context.Context, req *CreatePostRequest) (*feed.Post, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "post body is required")
	}
	category := req.Category
	if category == "" {
		category = "other"
	}
	if !feed.ValidCategory(category) {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "unknown category %q", req.Category)
	}
	if !(geo.Point{Lat: req.Latitude, Lon: req.Longitude}).Valid() {
		return nil, grpcstatus.Error(codes.InvalidArgument, "position out of range")
	}
	if len(req.Images) > maxPostImages {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "at most %d images per post", maxPostImages)
	}

	p := &store.Post{
		UserID:        me,
		Body:          body,
		Category:      category,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		DeliveryRange: req.DeliveryRange,
		Phone:         strings.TrimSpace(req.Phone),
		Images:        req.Images,
	}
	if err := s.db.CreatePost(ctx, p); err != nil {
		return nil, toStatus("create post", err)
	}
	s.publish(bus.KindPostCreated, p.ID)
	out := feed.PostFromStore(*p)
	return &out, nil
}

func (s *PostService) Get(ctx context.Context, req *PostRequest) (*feed.Post, error) {
	p, err := s.db.GetPost(ctx, req.ID)
	if err != nil {
		return nil, toStatus("get post", err)
	}
	out := feed.PostFromStore(*p)
	return &out, nil
}

func (s *PostService) UpdateStatus(ctx context.Context, req *UpdateStatusRequest) (*feed.Post, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	to, err := status.Parse(req.Status)
	if err != nil {
		return nil, toStatus("update status", err)
	}
	if err := s.machine.Transition(ctx, me, req.ID, to); err != nil {
		return nil, toStatus("update status", err)
	}
	return s.Get(ctx, &PostRequest{ID: req.ID})
}

// Delete removes a post. Only its author may delete it.
func (s *PostService) Delete(ctx context.Context, req *PostRequest) (*Empty, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.db.GetPost(ctx, req.ID)
	if err != nil {
		return nil, toStatus("delete post", err)
	}
	if p.UserID != me {
		return nil, grpcstatus.Error(codes.PermissionDenied, "only the post owner can delete it")
	}
	if err := s.db.DeletePost(ctx, req.ID); err != nil {
		return nil, toStatus("delete post", err)
	}
	s.publish(bus.KindPostDeleted, req.ID)
	return &Empty{}, nil
}

// Report files a moderation report. Reports never change the post itself.
func (s *PostService) Report(ctx context.Context, req *ReportRequest) (*Empty, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.db.GetPost(ctx, req.ID)
	if err != nil {
		return nil, toStatus("report post", err)
	}
	if p.UserID == me {
		return nil, grpcstatus.Error(codes.FailedPrecondition, "cannot report your own post")
	}
	if err := s.db.ReportPost(ctx, &store.Report{PostID: req.ID, ReporterID: me, Reason: strings.TrimSpace(req.Reason)}); err != nil {
		return nil, toStatus("report post", err)
	}
	s.publish(bus.KindPostReported, req.ID)
	return &Empty{}, nil
}

func (s *PostService) publish(kind, postID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Key: postID, Timestamp: time.Now(), Payload: postID})
}
