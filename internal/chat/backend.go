// Package chat runs a two-party conversation: it resolves the shared room,
// keeps the live message list, and sends messages with chat-list summaries.
package chat

import (
	"context"

	"github.com/rescue-app/rescue/internal/realtime"
)

// Identity is the signed-in user a Session acts for.
type Identity struct {
	UserID string
	Name   string
	Email  string
	Image  string
}

// Profile holds the display fields of a chat participant.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

// Pointer is one participant's chat-list entry for a conversation. Sender
// is the owner's name; Receiver, Image and Email describe the peer.
type Pointer struct {
	OwnerID    string `json:"owner_id"`
	PeerID     string `json:"peer_id"`
	RoomID     string `json:"room_id"`
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	Image      string `json:"image,omitempty"`
	Email      string `json:"email,omitempty"`
	LastMsg    string `json:"last_msg,omitempty"`
	LastSentAt int64  `json:"last_sent_at,omitempty"`
}

// Backend is the storage a Session reads and writes.
type Backend interface {
	Profile(ctx context.Context, userID string) (Profile, error)
	// ChatPointer returns nil, nil when owner has no pointer to peer.
	ChatPointer(ctx context.Context, ownerID, peerID string) (*Pointer, error)
	// CreateRoom writes whichever of the two pointers is missing and returns
	// the room id both now share. An existing pointer in either direction
	// decides the id.
	CreateRoom(ctx context.Context, mine, theirs Pointer) (string, error)
	AppendMessage(ctx context.Context, m realtime.Message) error
	UpdateLastMessage(ctx context.Context, ownerID, peerID, text string, sentAt int64) error
}
