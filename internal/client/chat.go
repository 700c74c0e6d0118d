package client

import (
	"context"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/chat"
	"github.com/rescue-app/rescue/internal/realtime"
)

// ChatBackend is a chat.Backend served by the daemon. Pointer lookups are
// always made as the signed-in user.
type ChatBackend struct {
	c *Client
}

func (c *Client) Chat() *ChatBackend {
	return &ChatBackend{c: c}
}

func (b *ChatBackend) Profile(ctx context.Context, userID string) (chat.Profile, error) {
	p, err := b.c.Profile(ctx, userID)
	if err != nil {
		return chat.Profile{}, err
	}
	return chat.Profile{ID: p.ID, Name: p.DisplayName(), Email: p.Email, Image: p.Image}, nil
}

func (b *ChatBackend) ChatPointer(ctx context.Context, _, peerID string) (*chat.Pointer, error) {
	var out api.PointerResponse
	if err := b.c.invoke(ctx, api.ChatGetPointer, &api.GetPointerRequest{PeerID: peerID}, &out); err != nil {
		return nil, err
	}
	return out.Pointer, nil
}

func (b *ChatBackend) CreateRoom(ctx context.Context, mine, theirs chat.Pointer) (string, error) {
	var out api.CreateRoomResponse
	if err := b.c.invoke(ctx, api.ChatCreateRoom, &api.CreateRoomRequest{Mine: mine, Theirs: theirs}, &out); err != nil {
		return "", err
	}
	return out.RoomID, nil
}

func (b *ChatBackend) AppendMessage(ctx context.Context, m realtime.Message) error {
	return b.c.invoke(ctx, api.ChatAppend, &api.AppendRequest{Message: m}, &api.Empty{})
}

func (b *ChatBackend) UpdateLastMessage(ctx context.Context, ownerID, peerID, text string, sentAt int64) error {
	req := &api.UpdateSummaryRequest{OwnerID: ownerID, PeerID: peerID, Text: text, SentAt: sentAt}
	return b.c.invoke(ctx, api.ChatUpdateSummary, req, &api.Empty{})
}

// ListChats returns the signed-in user's chat list, most recent first.
func (c *Client) ListChats(ctx context.Context) ([]chat.Pointer, error) {
	var out api.ListChatsResponse
	if err := c.invoke(ctx, api.ChatListChats, &api.Empty{}, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}
