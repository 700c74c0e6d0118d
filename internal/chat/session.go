package chat

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rescue-app/rescue/internal/logging"
	"github.com/rescue-app/rescue/internal/realtime"
)

// Options configures a Session.
type Options struct {
	Logger *zap.Logger
	// OnChange is called with the sorted message list after every snapshot.
	OnChange func([]realtime.Message)
	// Now and NewKey default to time.Now and uuid.NewString.
	Now    func() time.Time
	NewKey func() string
}

// Session is the conversation between the signed-in user and one peer.
type Session struct {
	backend  Backend
	stream   realtime.Stream
	me       Identity
	peerID   string
	log      *zap.Logger
	onChange func([]realtime.Message)
	now      func() time.Time
	newKey   func() string

	mu         sync.Mutex
	peer       *Profile
	roomID     string
	handle     realtime.Handle
	subscribed bool
	closed     bool
	messages   []realtime.Message
}

// NewSession creates a Session between me and peerID. Nothing is read until
// ResolveRoom is called.
func NewSession(b Backend, s realtime.Stream, me Identity, peerID string, opts Options) *Session {
	sess := &Session{
		backend:  b,
		stream:   s,
		me:       me,
		peerID:   peerID,
		log:      logging.OrNop(opts.Logger).Named("chat").With(zap.String("peer", peerID)),
		onChange: opts.OnChange,
		now:      opts.Now,
		newKey:   opts.NewKey,
	}
	if sess.now == nil {
		sess.now = time.Now
	}
	if sess.newKey == nil {
		sess.newKey = uuid.NewString
	}
	return sess
}

// ResolveRoom finds the room shared with the peer, creating it on first
// contact, and subscribes to its messages. It returns the room id.
func (s *Session) ResolveRoom(ctx context.Context) (string, error) {
	peer, err := s.backend.Profile(ctx, s.peerID)
	if err != nil {
		return "", fmt.Errorf("load peer profile: %w", err)
	}
	s.mu.Lock()
	s.peer = &peer
	s.mu.Unlock()

	ptr, err := s.backend.ChatPointer(ctx, s.me.UserID, s.peerID)
	if err != nil {
		return "", fmt.Errorf("lookup chat pointer: %w", err)
	}

	var roomID string
	if ptr != nil && ptr.RoomID != "" {
		roomID = ptr.RoomID
	} else {
		proposed := s.newKey()
		mine := Pointer{
			OwnerID:  s.me.UserID,
			PeerID:   peer.ID,
			RoomID:   proposed,
			Sender:   s.me.Name,
			Receiver: peer.Name,
			Image:    peer.Image,
			Email:    peer.Email,
		}
		theirs := Pointer{
			OwnerID:  peer.ID,
			PeerID:   s.me.UserID,
			RoomID:   proposed,
			Sender:   peer.Name,
			Receiver: s.me.Name,
			Image:    s.me.Image,
			Email:    s.me.Email,
		}
		roomID, err = s.backend.CreateRoom(ctx, mine, theirs)
		if err != nil {
			s.log.Error("failed to create room", zap.Error(err))
			return "", &WriteError{Op: "create room", Err: err}
		}
		if roomID != proposed {
			s.log.Debug("backend chose the room id", zap.String("room", roomID))
		}
	}

	if err := s.SubscribeMessages(ctx, roomID); err != nil {
		return "", err
	}
	return roomID, nil
}

// SubscribeMessages follows roomID, replacing any earlier subscription.
// Each snapshot replaces the message list wholesale.
func (s *Session) SubscribeMessages(ctx context.Context, roomID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.subscribed {
		s.stream.Unsubscribe(s.handle)
		s.subscribed = false
	}
	s.roomID = roomID
	s.messages = nil
	s.mu.Unlock()

	h, err := s.stream.Subscribe(ctx, roomID, func(snap realtime.Snapshot) {
		s.apply(roomID, snap)
	})
	if err != nil {
		return fmt.Errorf("subscribe to room %s: %w", roomID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.stream.Unsubscribe(h)
		return ErrClosed
	}
	if s.roomID != roomID {
		// Another SubscribeMessages won the race.
		s.stream.Unsubscribe(h)
		return nil
	}
	s.handle = h
	s.subscribed = true
	return nil
}

func (s *Session) apply(roomID string, snap realtime.Snapshot) {
	msgs := slices.Clone(snap.Messages)
	slices.SortStableFunc(msgs, func(a, b realtime.Message) int {
		return cmp.Or(cmp.Compare(a.SentAt, b.SentAt), cmp.Compare(a.Key, b.Key))
	})

	s.mu.Lock()
	if s.roomID != roomID {
		s.mu.Unlock()
		return
	}
	s.messages = msgs
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(slices.Clone(msgs))
	}
}

// SendMessage appends text to the room and updates both participants'
// last-message summaries. Empty text does nothing. A summary failure after a
// successful append is reported as a WriteError; the message stays written.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	s.mu.Lock()
	roomID := s.roomID
	s.mu.Unlock()
	if roomID == "" {
		return ErrNoRoom
	}

	sentAt := s.now().UnixMilli()
	msg := realtime.Message{
		Key:    s.newKey(),
		RoomID: roomID,
		FromID: s.me.UserID,
		ToID:   s.peerID,
		Body:   text,
		SentAt: sentAt,
		Type:   "text",
	}
	if err := s.backend.AppendMessage(ctx, msg); err != nil {
		s.log.Error("failed to append message", zap.String("room", roomID), zap.Error(err))
		return &WriteError{Op: "append message", Err: err}
	}

	errMine := s.backend.UpdateLastMessage(ctx, s.me.UserID, s.peerID, text, sentAt)
	errTheirs := s.backend.UpdateLastMessage(ctx, s.peerID, s.me.UserID, text, sentAt)
	if err := errors.Join(errMine, errTheirs); err != nil {
		s.log.Warn("message sent but chat summary not updated", zap.String("room", roomID), zap.Error(err))
		return &WriteError{Op: "update summary", Err: err}
	}
	return nil
}

// RoomID returns the resolved room id, or "" before ResolveRoom.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Peer returns the peer profile loaded by ResolveRoom.
func (s *Session) Peer() (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil {
		return Profile{}, false
	}
	return *s.peer, true
}

// Messages returns the current message list, oldest first.
func (s *Session) Messages() []realtime.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Close releases the message subscription. A ResolveRoom still in flight
// returns ErrClosed instead of subscribing.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.subscribed {
		s.stream.Unsubscribe(s.handle)
		s.subscribed = false
	}
	s.roomID = ""
}
