package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/rescue-app/rescue/internal/auth"
	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/media"
	"github.com/rescue-app/rescue/internal/store"
)

const minPasswordLen = 6

// AccountService implements AccountServer.
type AccountService struct {
	db     *store.DB
	jwt    *auth.JWTManager
	signer *media.Signer
	bus    *bus.Bus
}

// NewAccountService creates the account service. signer may be nil, which
// disables UploadURL.
func NewAccountService(db *store.DB, jwt *auth.JWTManager, signer *media.Signer, b *bus.Bus) *AccountService {
	return &AccountService{db: db, jwt: jwt, signer: signer, bus: b}
}

func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, grpcstatus.Error(codes.InvalidArgument, "a valid email is required")
	}
	if len(req.Password) < minPasswordLen {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "password must have at least %d characters", minPasswordLen)
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "hash password: %v", err)
	}
	u := &store.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		UserName:     strings.TrimSpace(req.UserName),
	}
	if err := s.db.CreateUser(ctx, u); err != nil {
		return nil, toStatus("register", err)
	}
	return s.issue(ctx, u)
}

func (s *AccountService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	u, err := s.db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, grpcstatus.Error(codes.Unauthenticated, "invalid email or password")
	}
	if err != nil {
		return nil, toStatus("login", err)
	}
	if auth.CheckPassword(u.PasswordHash, req.Password) != nil {
		return nil, grpcstatus.Error(codes.Unauthenticated, "invalid email or password")
	}
	return s.issue(ctx, u)
}

func (s *AccountService) issue(ctx context.Context, u *store.User) (*AuthResponse, error) {
	token, exp, err := s.jwt.GenerateToken(u.ID, u.Email)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "issue token: %v", err)
	}
	profile, err := s.profile(ctx, u)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, ExpiresAt: exp, User: *profile}, nil
}

func (s *AccountService) profile(ctx context.Context, u *store.User) (*UserProfile, error) {
	following, err := s.db.FollowingIDs(ctx, u.ID)
	if err != nil {
		return nil, toStatus("following", err)
	}
	return &UserProfile{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		UserName:   u.UserName,
		Bio:        u.Bio,
		Phone:      u.Phone,
		Image:      u.Image,
		CoverImage: u.CoverImage,
		Following:  following,
	}, nil
}

func (s *AccountService) GetProfile(ctx context.Context, req *GetProfileRequest) (*UserProfile, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	id := req.UserID
	if id == "" {
		id = me
	}
	u, err := s.db.GetUser(ctx, id)
	if err != nil {
		return nil, toStatus("get profile", err)
	}
	return s.profile(ctx, u)
}

// UpdateProfile replaces the caller's editable fields. The new display name
// and avatar are copied onto the caller's posts.
func (s *AccountService) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*UserProfile, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.db.GetUser(ctx, me)
	if err != nil {
		return nil, toStatus("update profile", err)
	}
	u.FirstName = strings.TrimSpace(req.FirstName)
	u.LastName = strings.TrimSpace(req.LastName)
	u.UserName = strings.TrimSpace(req.UserName)
	u.Bio = req.Bio
	u.Phone = strings.TrimSpace(req.Phone)
	u.Image = req.Image
	u.CoverImage = req.CoverImage
	if err := s.db.UpdateProfile(ctx, u); err != nil {
		return nil, toStatus("update profile", err)
	}
	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: bus.KindProfileUpdated, Key: u.ID, Timestamp: time.Now(), Payload: u.ID})
	}
	return s.profile(ctx, u)
}

func (s *AccountService) Follow(ctx context.Context, req *FollowRequest) (*Empty, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if req.UserID == "" || req.UserID == me {
		return nil, grpcstatus.Error(codes.InvalidArgument, "cannot follow that user")
	}
	if _, err := s.db.GetUser(ctx, req.UserID); err != nil {
		return nil, toStatus("follow", err)
	}
	if err := s.db.Follow(ctx, me, req.UserID); err != nil {
		return nil, toStatus("follow", err)
	}
	return &Empty{}, nil
}

func (s *AccountService) Unfollow(ctx context.Context, req *FollowRequest) (*Empty, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.db.Unfollow(ctx, me, req.UserID); err != nil {
		return nil, toStatus("unfollow", err)
	}
	return &Empty{}, nil
}

func (s *AccountService) RegisterDevice(ctx context.Context, req *RegisterDeviceRequest) (*Empty, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Token) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "device token is required")
	}
	if err := s.db.SaveDeviceToken(ctx, me, req.Token); err != nil {
		return nil, toStatus("register device", err)
	}
	return &Empty{}, nil
}

func (s *AccountService) UploadURL(ctx context.Context, req *UploadURLRequest) (*media.Upload, error) {
	me, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	purpose := media.Purpose(req.Purpose)
	switch purpose {
	case media.PurposePost, media.PurposeAvatar, media.PurposeCover:
	default:
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "unknown upload purpose %q", req.Purpose)
	}
	up, err := s.signer.UploadURL(ctx, me, purpose, req.FileName, req.ContentType)
	if err != nil {
		return nil, toStatus("upload url", err)
	}
	return &up, nil
}
