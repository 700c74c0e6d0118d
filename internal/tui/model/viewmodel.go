// Package model holds the TUI state: the feed controller, the chat list and
// the open conversation.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/chat"
	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/geo"
	"github.com/rescue-app/rescue/internal/logging"
	"github.com/rescue-app/rescue/internal/realtime"
)

// ErrNoLocation is returned when an action needs the viewer's position.
var ErrNoLocation = errors.New("location unknown: use :where <lat>,<lon>")

// Daemon is the part of the daemon client the view model calls directly.
type Daemon interface {
	ListChats(ctx context.Context) ([]chat.Pointer, error)
	CreatePost(ctx context.Context, req *api.CreatePostRequest) (*feed.Post, error)
	UpdateStatus(ctx context.Context, id, status string) (*feed.Post, error)
	DeletePost(ctx context.Context, id string) error
	ReportPost(ctx context.Context, id, reason string) error
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
}

// Deps wires a ViewModel.
type Deps struct {
	Daemon       Daemon
	Feed         feed.Query
	Chat         chat.Backend
	Rooms        realtime.Stream
	Me           *api.UserProfile
	RadiusKm     float64
	NoPostsDelay time.Duration
	Logger       *zap.Logger
	// OnChange is called from any goroutine after state the UI shows changed.
	OnChange func()
	// OnNotice reports feed signals worth a flash message.
	OnNotice func(msg string)
}

// ViewModel is shared by every TUI page.
type ViewModel struct {
	Feed *feed.Controller

	daemon   Daemon
	chatB    chat.Backend
	rooms    realtime.Stream
	me       *api.UserProfile
	bus      *bus.Bus
	log      *zap.Logger
	onChange func()
	onNotice func(string)

	mu        sync.RWMutex
	following map[string]bool
	chats     []chat.Pointer
	session   *chat.Session
	messages  []realtime.Message
	unsub     func()
}

func New(d Deps) *ViewModel {
	b := bus.New()
	log := logging.OrNop(d.Logger)
	vm := &ViewModel{
		daemon:    d.Daemon,
		chatB:     d.Chat,
		rooms:     d.Rooms,
		me:        d.Me,
		bus:       b,
		log:       log,
		onChange:  d.OnChange,
		onNotice:  d.OnNotice,
		following: make(map[string]bool),
	}
	for _, id := range d.Me.Following {
		vm.following[id] = true
	}
	vm.Feed = feed.NewController(d.Feed, feed.Options{
		ViewerID:     d.Me.ID,
		RadiusKm:     d.RadiusKm,
		NoPostsDelay: d.NoPostsDelay,
		Bus:          b,
		Logger:       log,
	})
	return vm
}

// Start relays feed events to the UI until ctx ends or Close is called.
func (vm *ViewModel) Start(ctx context.Context) {
	ch, unsub := vm.bus.Subscribe("feed.", 32)
	vm.mu.Lock()
	vm.unsub = unsub
	vm.mu.Unlock()
	go func() {
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if evt.Kind == bus.KindFeedEmpty {
					vm.notice("No food shared around here yet")
				}
				vm.changed()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Me returns the signed-in user.
func (vm *ViewModel) Me() *api.UserProfile {
	return vm.me
}

// Identity is the chat identity of the signed-in user.
func (vm *ViewModel) Identity() chat.Identity {
	return chat.Identity{UserID: vm.me.ID, Name: vm.me.DisplayName(), Email: vm.me.Email, Image: vm.me.Image}
}

// LoadChats refreshes the chat list.
func (vm *ViewModel) LoadChats(ctx context.Context) error {
	chats, err := vm.daemon.ListChats(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.chats = chats
	vm.mu.Unlock()
	vm.changed()
	return nil
}

func (vm *ViewModel) Chats() []chat.Pointer {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.chats
}

// OpenChat starts a conversation with peerID, closing the previous one.
func (vm *ViewModel) OpenChat(ctx context.Context, peerID string) (string, error) {
	if peerID == vm.me.ID {
		return "", errors.New("cannot chat with yourself")
	}
	vm.CloseChat()

	var sess *chat.Session
	sess = chat.NewSession(vm.chatB, vm.rooms, vm.Identity(), peerID, chat.Options{
		Logger: vm.log,
		OnChange: func(msgs []realtime.Message) {
			vm.mu.Lock()
			if vm.session == sess {
				vm.messages = msgs
			}
			vm.mu.Unlock()
			vm.changed()
		},
	})
	vm.mu.Lock()
	vm.session = sess
	vm.messages = nil
	vm.mu.Unlock()

	room, err := sess.ResolveRoom(ctx)
	if err != nil {
		vm.CloseChat()
		return "", err
	}
	return room, nil
}

// Peer returns the profile of the open conversation's peer.
func (vm *ViewModel) Peer() (chat.Profile, bool) {
	vm.mu.RLock()
	sess := vm.session
	vm.mu.RUnlock()
	if sess == nil {
		return chat.Profile{}, false
	}
	return sess.Peer()
}

// Send sends text in the open conversation.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	vm.mu.RLock()
	sess := vm.session
	vm.mu.RUnlock()
	if sess == nil {
		return chat.ErrNoRoom
	}
	err := sess.SendMessage(ctx, text)
	var we *chat.WriteError
	if errors.As(err, &we) && we.Op == "update summary" {
		// The message itself went out.
		vm.notice("Sent, but the chat list may be stale")
		return nil
	}
	return err
}

func (vm *ViewModel) Messages() []realtime.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// CloseChat releases the open conversation, if any.
func (vm *ViewModel) CloseChat() {
	vm.mu.Lock()
	sess := vm.session
	vm.session = nil
	vm.messages = nil
	vm.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

// CreatePost shares food at the viewer's position. The first word of input
// is the category when it names one.
func (vm *ViewModel) CreatePost(ctx context.Context, input string) (*feed.Post, error) {
	pos := vm.Feed.State().Position
	if pos == nil {
		return nil, ErrNoLocation
	}
	category, body := "other", strings.TrimSpace(input)
	if first, rest, ok := strings.Cut(body, " "); ok && feed.ValidCategory(first) {
		category, body = first, strings.TrimSpace(rest)
	}
	p, err := vm.daemon.CreatePost(ctx, &api.CreatePostRequest{
		Body:      body,
		Category:  category,
		Latitude:  pos.Lat,
		Longitude: pos.Lon,
		Phone:     vm.me.Phone,
	})
	if err != nil {
		return nil, err
	}
	if err := vm.Feed.OnPullToRefresh(ctx); err != nil {
		vm.log.Warn("refresh after post failed", zap.Error(err))
	}
	return p, nil
}

func (vm *ViewModel) SetStatus(ctx context.Context, postID, status string) error {
	if _, err := vm.daemon.UpdateStatus(ctx, postID, status); err != nil {
		return err
	}
	return vm.Feed.OnPullToRefresh(ctx)
}

func (vm *ViewModel) DeletePost(ctx context.Context, postID string) error {
	if err := vm.daemon.DeletePost(ctx, postID); err != nil {
		return err
	}
	return vm.Feed.OnPullToRefresh(ctx)
}

func (vm *ViewModel) Report(ctx context.Context, postID, reason string) error {
	return vm.daemon.ReportPost(ctx, postID, reason)
}

// ToggleFollow follows or unfollows userID and reports the new state.
func (vm *ViewModel) ToggleFollow(ctx context.Context, userID string) (bool, error) {
	if userID == vm.me.ID {
		return false, errors.New("cannot follow yourself")
	}
	now := !vm.IsFollowing(userID)
	var err error
	if now {
		err = vm.daemon.Follow(ctx, userID)
	} else {
		err = vm.daemon.Unfollow(ctx, userID)
	}
	if err != nil {
		return !now, err
	}
	vm.mu.Lock()
	vm.following[userID] = now
	vm.mu.Unlock()
	vm.changed()
	return now, nil
}

func (vm *ViewModel) IsFollowing(userID string) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.following[userID]
}

// DistanceKm is the distance from the viewer to p, or -1 when either
// position is unknown.
func (vm *ViewModel) DistanceKm(p feed.Post) float64 {
	pos := vm.Feed.State().Position
	pt := geo.Point{Lat: p.Latitude, Lon: p.Longitude}
	if pos == nil || pt.IsZero() {
		return -1
	}
	return geo.DistanceKm(*pos, pt)
}

// Close releases the conversation and the feed.
func (vm *ViewModel) Close() {
	vm.CloseChat()
	vm.Feed.Close()
	vm.mu.Lock()
	unsub := vm.unsub
	vm.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	vm.bus.Close()
}

func (vm *ViewModel) changed() {
	if vm.onChange != nil {
		vm.onChange()
	}
}

func (vm *ViewModel) notice(msg string) {
	if vm.onNotice != nil {
		vm.onNotice(msg)
	}
}

// StaticLocator reports a fixed position, or ErrPermissionDenied when none
// is configured. Terminals have no location service.
type StaticLocator struct {
	Point *geo.Point
}

func (l StaticLocator) Locate(context.Context) (geo.Point, error) {
	if l.Point == nil {
		return geo.Point{}, feed.ErrPermissionDenied
	}
	return *l.Point, nil
}

// ParsePoint reads "lat,lon".
func ParsePoint(s string) (geo.Point, error) {
	var p geo.Point
	if _, err := fmt.Sscanf(strings.ReplaceAll(s, " ", ""), "%f,%f", &p.Lat, &p.Lon); err != nil {
		return geo.Point{}, fmt.Errorf("want <lat>,<lon>: %w", err)
	}
	if !p.Valid() {
		return geo.Point{}, fmt.Errorf("position %v out of range", p)
	}
	return p, nil
}
