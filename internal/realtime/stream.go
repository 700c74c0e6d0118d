// Package realtime delivers full-room snapshots of chat messages to
// subscribers whenever a room changes.
package realtime

import (
	"context"

	"github.com/rescue-app/rescue/internal/store"
)

// Message is one chat message as delivered to subscribers.
type Message struct {
	Key    string `json:"key"`
	RoomID string `json:"room_id"`
	FromID string `json:"from"`
	ToID   string `json:"to"`
	Body   string `json:"body"`
	SentAt int64  `json:"sent_at"`
	Type   string `json:"type"`
}

// MessageFromStore converts a stored message.
func MessageFromStore(m store.Message) Message {
	return Message{
		Key:    m.Key,
		RoomID: m.RoomID,
		FromID: m.FromID,
		ToID:   m.ToID,
		Body:   m.Body,
		SentAt: m.SentAt,
		Type:   m.Type,
	}
}

// Snapshot is the complete current message set of a room.
type Snapshot struct {
	Key      string    `json:"key"`
	Messages []Message `json:"messages"`
}

// Handle identifies one subscription.
type Handle uint64

// Stream is a keyed subscription to a realtime log. onEmit receives the full
// current snapshot each time the log changes, starting with the state at
// subscribe time. Calls to onEmit for one handle never overlap.
type Stream interface {
	Subscribe(ctx context.Context, key string, onEmit func(Snapshot)) (Handle, error)
	Unsubscribe(h Handle)
}
