// Package status enforces the rescue status of a post.
package status

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/store"
)

// State is the rescue status of a post.
type State string

const (
	Waiting State = "waiting"
	Rescued State = "rescued"
	Wasted  State = "wasted"
)

var (
	ErrNotOwner     = errors.New("only the post owner can change its status")
	ErrInvalidState = errors.New("invalid post status")
)

// validTransitions defines allowed state transitions. The owner may correct a
// status in any direction.
var validTransitions = map[State][]State{
	Waiting: {Rescued, Wasted},
	Rescued: {Waiting, Wasted},
	Wasted:  {Waiting, Rescued},
}

// Parse validates a status string.
func Parse(s string) (State, error) {
	st := State(s)
	if _, ok := validTransitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return st, nil
}

// PostStore is the storage the Machine reads and writes.
type PostStore interface {
	GetPost(ctx context.Context, id string) (*store.Post, error)
	SetPostStatus(ctx context.Context, id, status string) error
}

// Machine applies status changes on behalf of a user.
type Machine struct {
	posts PostStore
	bus   *bus.Bus
}

// NewMachine creates a Machine. b may be nil.
func NewMachine(posts PostStore, b *bus.Bus) *Machine {
	return &Machine{posts: posts, bus: b}
}

// Transition moves postID to the given state if actorID owns it. Setting the
// current state again is a no-op.
func (m *Machine) Transition(ctx context.Context, actorID, postID string, to State) error {
	if _, ok := validTransitions[to]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidState, to)
	}
	post, err := m.posts.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post.UserID != actorID {
		return ErrNotOwner
	}

	from := State(post.Status)
	if from == to {
		return nil
	}
	if allowed, ok := validTransitions[from]; ok && !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	if err := m.posts.SetPostStatus(ctx, postID, string(to)); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindPostStatusChanged,
			Key:       postID,
			Timestamp: time.Now(),
			Payload:   StatusChange{PostID: postID, From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	PostID string
	From   State
	To     State
}
