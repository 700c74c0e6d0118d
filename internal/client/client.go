// Package client talks to the rescue daemon over its Unix socket.
package client

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/media"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn  *grpc.ClientConn
	creds *bearer
}

// New dials the daemon's Unix domain socket. token may be empty until Login.
func New(socketPath, token string) (*Client, error) {
	creds := &bearer{token: token}
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn, creds: creds}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Token returns the bearer token attached to calls.
func (c *Client) Token() string {
	return c.creds.get()
}

// SetToken replaces the bearer token attached to later calls.
func (c *Client) SetToken(token string) {
	c.creds.set(token)
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, method, in, out)
}

// bearer attaches "authorization: Bearer <token>" to every call once a token is set.
type bearer struct {
	mu    sync.RWMutex
	token string
}

func (b *bearer) get() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.token
}

func (b *bearer) set(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

func (b *bearer) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	tok := b.get()
	if tok == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + tok}, nil
}

// The socket is local to the machine, so tokens travel without TLS.
func (b *bearer) RequireTransportSecurity() bool { return false }

func (c *Client) Ping(ctx context.Context) (*api.PingResponse, error) {
	out := new(api.PingResponse)
	return out, c.invoke(ctx, api.HealthPing, &api.Empty{}, out)
}

// Register creates an account and signs in as it.
func (c *Client) Register(ctx context.Context, req *api.RegisterRequest) (*api.AuthResponse, error) {
	out := new(api.AuthResponse)
	if err := c.invoke(ctx, api.AccountRegister, req, out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Login signs in and keeps the issued token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*api.AuthResponse, error) {
	out := new(api.AuthResponse)
	if err := c.invoke(ctx, api.AccountLogin, &api.LoginRequest{Email: email, Password: password}, out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Profile returns a user's profile; an empty id means the caller.
func (c *Client) Profile(ctx context.Context, userID string) (*api.UserProfile, error) {
	out := new(api.UserProfile)
	return out, c.invoke(ctx, api.AccountGetProfile, &api.GetProfileRequest{UserID: userID}, out)
}

func (c *Client) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.UserProfile, error) {
	out := new(api.UserProfile)
	return out, c.invoke(ctx, api.AccountUpdateProfile, req, out)
}

func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.invoke(ctx, api.AccountFollow, &api.FollowRequest{UserID: userID}, &api.Empty{})
}

func (c *Client) Unfollow(ctx context.Context, userID string) error {
	return c.invoke(ctx, api.AccountUnfollow, &api.FollowRequest{UserID: userID}, &api.Empty{})
}

func (c *Client) RegisterDevice(ctx context.Context, token string) error {
	return c.invoke(ctx, api.AccountRegisterDevice, &api.RegisterDeviceRequest{Token: token}, &api.Empty{})
}

func (c *Client) UploadURL(ctx context.Context, purpose media.Purpose, fileName, contentType string) (*media.Upload, error) {
	out := new(media.Upload)
	req := &api.UploadURLRequest{Purpose: string(purpose), FileName: fileName, ContentType: contentType}
	return out, c.invoke(ctx, api.AccountUploadURL, req, out)
}

func (c *Client) CreatePost(ctx context.Context, req *api.CreatePostRequest) (*feed.Post, error) {
	out := new(feed.Post)
	return out, c.invoke(ctx, api.PostCreate, req, out)
}

func (c *Client) GetPost(ctx context.Context, id string) (*feed.Post, error) {
	out := new(feed.Post)
	return out, c.invoke(ctx, api.PostGet, &api.PostRequest{ID: id}, out)
}

func (c *Client) UpdateStatus(ctx context.Context, id, status string) (*feed.Post, error) {
	out := new(feed.Post)
	return out, c.invoke(ctx, api.PostUpdateStatus, &api.UpdateStatusRequest{ID: id, Status: status}, out)
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.invoke(ctx, api.PostDelete, &api.PostRequest{ID: id}, &api.Empty{})
}

func (c *Client) ReportPost(ctx context.Context, id, reason string) error {
	return c.invoke(ctx, api.PostReport, &api.ReportRequest{ID: id, Reason: reason}, &api.Empty{})
}
