package chat

import (
	"context"
	"time"

	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/realtime"
	"github.com/rescue-app/rescue/internal/store"
)

// LocalBackend implements Backend directly on the store and announces every
// write on the bus so the realtime hub and push notifier can react.
type LocalBackend struct {
	db  *store.DB
	bus *bus.Bus
}

// NewLocalBackend creates a LocalBackend. b may be nil.
func NewLocalBackend(db *store.DB, b *bus.Bus) *LocalBackend {
	return &LocalBackend{db: db, bus: b}
}

func (l *LocalBackend) Profile(ctx context.Context, userID string) (Profile, error) {
	u, err := l.db.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{ID: u.ID, Name: u.DisplayName(), Email: u.Email, Image: u.Image}, nil
}

func (l *LocalBackend) ChatPointer(ctx context.Context, ownerID, peerID string) (*Pointer, error) {
	p, err := l.db.GetChatPointer(ctx, ownerID, peerID)
	if err != nil || p == nil {
		return nil, err
	}
	ptr := PointerFromStore(*p)
	return &ptr, nil
}

func (l *LocalBackend) CreateRoom(ctx context.Context, mine, theirs Pointer) (string, error) {
	roomID, err := l.db.CreateRoom(ctx, mine.toStore(), theirs.toStore())
	if err != nil {
		return "", err
	}
	l.publish(bus.KindChatListUpdated, mine.OwnerID, roomID)
	l.publish(bus.KindChatListUpdated, theirs.OwnerID, roomID)
	return roomID, nil
}

func (l *LocalBackend) AppendMessage(ctx context.Context, m realtime.Message) error {
	sm := store.Message{
		RoomID: m.RoomID,
		Key:    m.Key,
		FromID: m.FromID,
		ToID:   m.ToID,
		Body:   m.Body,
		SentAt: m.SentAt,
		Type:   m.Type,
	}
	if err := l.db.AppendMessage(ctx, &sm); err != nil {
		return err
	}
	l.publish(bus.KindRoomMessage, sm.RoomID, realtime.MessageFromStore(sm))
	return nil
}

func (l *LocalBackend) UpdateLastMessage(ctx context.Context, ownerID, peerID, text string, sentAt int64) error {
	if err := l.db.UpdateLastMessage(ctx, ownerID, peerID, text, sentAt); err != nil {
		return err
	}
	l.publish(bus.KindChatListUpdated, ownerID, peerID)
	return nil
}

// ListPointers returns owner's chat list, most recent first.
func (l *LocalBackend) ListPointers(ctx context.Context, ownerID string) ([]Pointer, error) {
	rows, err := l.db.ListChatPointers(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]Pointer, 0, len(rows))
	for _, r := range rows {
		out = append(out, PointerFromStore(r))
	}
	return out, nil
}

func (l *LocalBackend) publish(kind, key string, payload any) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(bus.Event{Kind: kind, Key: key, Timestamp: time.Now(), Payload: payload})
}

// PointerFromStore converts a stored chat-list row.
func PointerFromStore(p store.ChatPointer) Pointer {
	return Pointer{
		OwnerID:    p.OwnerID,
		PeerID:     p.PeerID,
		RoomID:     p.RoomID,
		Sender:     p.Sender,
		Receiver:   p.Receiver,
		Image:      p.Image,
		Email:      p.Email,
		LastMsg:    p.LastMsg,
		LastSentAt: p.LastSentAt,
	}
}

func (p Pointer) toStore() store.ChatPointer {
	return store.ChatPointer{
		OwnerID:    p.OwnerID,
		PeerID:     p.PeerID,
		RoomID:     p.RoomID,
		Sender:     p.Sender,
		Receiver:   p.Receiver,
		Image:      p.Image,
		Email:      p.Email,
		LastMsg:    p.LastMsg,
		LastSentAt: p.LastSentAt,
	}
}
