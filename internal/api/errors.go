package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/rescue-app/rescue/internal/auth"
	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/media"
	"github.com/rescue-app/rescue/internal/status"
	"github.com/rescue-app/rescue/internal/store"
)

// toStatus maps a domain error onto a gRPC status. what names the operation
// for the message of unexpected errors.
func toStatus(what string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return grpcstatus.Errorf(codes.NotFound, "%s: not found", what)
	case errors.Is(err, store.ErrEmailTaken):
		return grpcstatus.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, status.ErrNotOwner):
		return grpcstatus.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, status.ErrInvalidState),
		errors.Is(err, feed.ErrBadCursor),
		errors.Is(err, media.ErrContentType):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, media.ErrDisabled):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, err.Error())
	}
	return grpcstatus.Errorf(codes.Internal, "%s: %v", what, err)
}

// callerID returns the authenticated user of the call.
func callerID(ctx context.Context) (string, error) {
	c, ok := auth.ClaimsFromContext(ctx)
	if !ok || c.UserID == "" {
		return "", grpcstatus.Error(codes.Unauthenticated, "not signed in")
	}
	return c.UserID, nil
}
