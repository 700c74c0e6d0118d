package store

import "strings"

// User is a registered account. Timestamps are unix milliseconds.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	UserName     string
	Bio          string
	Phone        string
	Image        string
	CoverImage   string
	CreatedAt    int64
	UpdatedAt    int64
}

// DisplayName returns the name shown on posts and chat pointers.
func (u *User) DisplayName() string {
	if u.UserName != "" {
		return u.UserName
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

// Post is a food listing. Author name and image are denormalized copies of the
// author's profile at write time.
type Post struct {
	ID            string
	UserID        string
	UserName      string
	UserImage     string
	Body          string
	Category      string
	Status        string
	Latitude      float64
	Longitude     float64
	DeliveryRange float64
	Phone         string
	Images        []string
	CreatedAt     int64
}

// Report is a moderation report against a post.
type Report struct {
	PostID     string
	ReporterID string
	Reason     string
	CreatedAt  int64
}

// ChatPointer is one owner's entry for a conversation with a peer.
type ChatPointer struct {
	OwnerID    string
	PeerID     string
	RoomID     string
	Sender     string
	Receiver   string
	Image      string
	Email      string
	LastMsg    string
	LastSentAt int64
}

// Message is an append-only chat message.
type Message struct {
	RoomID string
	Key    string
	FromID string
	ToID   string
	Body   string
	SentAt int64
	Type   string
}
