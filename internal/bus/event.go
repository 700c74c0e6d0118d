package bus

import "time"

// Event kinds published by the daemon and the client-side controllers.
const (
	KindPostCreated       = "post.created"
	KindPostStatusChanged = "post.status_changed"
	KindPostDeleted       = "post.deleted"
	KindPostReported      = "post.reported"
	KindProfileUpdated    = "profile.updated"

	// KindRoomMessage is published once per appended message; Key is the room id.
	KindRoomMessage = "room.message"
	// KindChatListUpdated is published when a chat-list pointer is created or its summary changes.
	KindChatListUpdated = "chatlist.updated"

	KindFeedUpdated = "feed.updated"
	KindFeedError   = "feed.error"
	KindFeedEmpty   = "feed.empty"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Key       string // optional routing key, e.g. a room id
	Timestamp time.Time
	Payload   any
}
