package api

import (
	"strings"
	"time"

	"github.com/rescue-app/rescue/internal/chat"
	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/realtime"
)

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

func (r *RegisterRequest) GetEmail() string { return r.Email }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) GetEmail() string { return r.Email }

type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserProfile `json:"user"`
}

// UserProfile is the public view of an account.
type UserProfile struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	FirstName  string   `json:"first_name,omitempty"`
	LastName   string   `json:"last_name,omitempty"`
	UserName   string   `json:"user_name,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Image      string   `json:"image,omitempty"`
	CoverImage string   `json:"cover_image,omitempty"`
	Following  []string `json:"following,omitempty"`
}

type GetProfileRequest struct {
	// UserID defaults to the caller.
	UserID string `json:"user_id,omitempty"`
}

type UpdateProfileRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	UserName   string `json:"user_name"`
	Bio        string `json:"bio"`
	Phone      string `json:"phone"`
	Image      string `json:"image"`
	CoverImage string `json:"cover_image"`
}

type FollowRequest struct {
	UserID string `json:"user_id"`
}

type RegisterDeviceRequest struct {
	Token string `json:"token"`
}

type UploadURLRequest struct {
	Purpose     string `json:"purpose"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type FetchRequest struct {
	Filter feed.Filter `json:"filter"`
	Cursor feed.Cursor `json:"cursor,omitempty"`
}

type CreatePostRequest struct {
	Body          string   `json:"body"`
	Category      string   `json:"category"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	DeliveryRange float64  `json:"delivery_range,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Images        []string `json:"images,omitempty"`
}

type PostRequest struct {
	ID string `json:"id"`
}

type UpdateStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type ReportRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

type GetPointerRequest struct {
	PeerID string `json:"peer_id"`
}

type PointerResponse struct {
	// Pointer is nil when the caller has no conversation with the peer.
	Pointer *chat.Pointer `json:"pointer,omitempty"`
}

type CreateRoomRequest struct {
	Mine   chat.Pointer `json:"mine"`
	Theirs chat.Pointer `json:"theirs"`
}

type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

type AppendRequest struct {
	Message realtime.Message `json:"message"`
}

type UpdateSummaryRequest struct {
	OwnerID string `json:"owner_id"`
	PeerID  string `json:"peer_id"`
	Text    string `json:"text"`
	SentAt  int64  `json:"sent_at"`
}

type ListChatsResponse struct {
	Chats []chat.Pointer `json:"chats"`
}

type WatchRoomRequest struct {
	RoomID string `json:"room_id"`
}

type PingResponse struct {
	Profile   string    `json:"profile"`
	StartedAt time.Time `json:"started_at"`
	UptimeMs  int64     `json:"uptime_ms"`
}

// DisplayName is the name shown for the account on posts and chats.
func (p *UserProfile) DisplayName() string {
	if p.UserName != "" {
		return p.UserName
	}
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		return name
	}
	return p.Email
}
