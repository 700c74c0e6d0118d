package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/fx"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/chat"
	"github.com/rescue-app/rescue/internal/client"
	"github.com/rescue-app/rescue/internal/config"
	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/geo"
	"github.com/rescue-app/rescue/internal/lock"
	"github.com/rescue-app/rescue/internal/profile"
	"github.com/rescue-app/rescue/internal/realtime"
)

// startDaemon runs the full fx module for a throwaway profile and returns
// the socket path.
func startDaemon(t *testing.T) string {
	t.Helper()
	// Use /tmp for short socket paths (macOS 104-char limit).
	tmpDir, err := os.MkdirTemp("/tmp", "rescue-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })
	t.Setenv("RESCUE_HOME", filepath.Join(tmpDir, "home"))

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	p := Params{ProfileName: "test", Config: cfg, SocketPath: filepath.Join(tmpDir, "d.sock")}

	app := fx.New(Module(p), fx.NopLogger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			t.Errorf("stop daemon: %v", err)
		}
	})
	return p.SocketPath
}

func dial(t *testing.T, socket string) *client.Client {
	t.Helper()
	c, err := client.New(socket, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func signUp(t *testing.T, c *client.Client, email, name string) *api.UserProfile {
	t.Helper()
	resp, err := c.Register(context.Background(), &api.RegisterRequest{Email: email, Password: "secret123", UserName: name})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return &resp.User
}

func TestDaemonLifecycle(t *testing.T) {
	socket := startDaemon(t)
	ctx := context.Background()
	c := dial(t, socket)

	ping, err := c.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping error = %v", err)
	}
	if ping.Profile != "test" {
		t.Errorf("profile = %q, want test", ping.Profile)
	}

	_, err = c.ListChats(ctx)
	if grpcstatus.Code(err) != codes.Unauthenticated {
		t.Fatalf("ListChats without token: %v, want Unauthenticated", err)
	}

	// A second daemon on the same profile must not start.
	_, err = lock.Acquire(profile.Dir("test"))
	var held *lock.HeldError
	if !errors.As(err, &held) {
		t.Errorf("second lock = %v, want HeldError", err)
	}

	me := signUp(t, c, "ana@example.com", "ana")
	chats, err := c.ListChats(ctx)
	if err != nil {
		t.Fatalf("ListChats error = %v", err)
	}
	if len(chats) != 0 {
		t.Errorf("expected 0 chats, got %d", len(chats))
	}

	other := dial(t, socket)
	if _, err := other.Login(ctx, "ANA@example.com", "secret123"); err != nil {
		t.Fatalf("Login error = %v", err)
	}
	got, err := other.Profile(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != me.ID {
		t.Errorf("profile id = %q, want %q", got.ID, me.ID)
	}

	_, err = c.UploadURL(ctx, "posts", "a.png", "image/png")
	if grpcstatus.Code(err) != codes.Unavailable {
		t.Errorf("UploadURL without bucket: %v, want Unavailable", err)
	}
}

func TestFeedOverDaemon(t *testing.T) {
	socket := startDaemon(t)
	ctx := context.Background()

	ana := dial(t, socket)
	bo := dial(t, socket)
	signUp(t, ana, "ana@example.com", "ana")
	boProfile := signUp(t, bo, "bo@example.com", "bo")

	here := geo.Point{Lat: -3.7319, Lon: -38.5267}
	for _, body := range []string{"rice", "beans", "bread"} {
		if _, err := bo.CreatePost(ctx, &api.CreatePostRequest{Body: body, Category: "cooked", Latitude: here.Lat, Longitude: here.Lon}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := bo.CreatePost(ctx, &api.CreatePostRequest{Body: "far away", Latitude: 40.7, Longitude: -74}); err != nil {
		t.Fatal(err)
	}

	fc := feed.NewController(ana.Feed(), feed.Options{})
	defer fc.Close()
	if err := fc.SetPosition(ctx, here); err != nil {
		t.Fatal(err)
	}
	st := fc.State()
	if len(st.Items) != 3 {
		t.Fatalf("nearby items = %d, want 3", len(st.Items))
	}
	if st.Items[0].Body != "bread" {
		t.Errorf("first item = %q, want newest", st.Items[0].Body)
	}

	if err := fc.SetMode(ctx, feed.Following); err != nil {
		t.Fatal(err)
	}
	if n := len(fc.State().Items); n != 0 {
		t.Errorf("following before follow = %d items", n)
	}
	if err := ana.Follow(ctx, boProfile.ID); err != nil {
		t.Fatal(err)
	}
	if err := fc.OnPullToRefresh(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(fc.State().Items); n != 4 {
		t.Errorf("following after follow = %d items, want 4", n)
	}

	post := fc.State().Items[0]
	if _, err := ana.UpdateStatus(ctx, post.ID, "rescued"); grpcstatus.Code(err) != codes.PermissionDenied {
		t.Errorf("non-owner status change: %v", err)
	}
	updated, err := bo.UpdateStatus(ctx, post.ID, "rescued")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != "rescued" {
		t.Errorf("status = %q", updated.Status)
	}
	if err := ana.ReportPost(ctx, post.ID, "looks spoiled"); err != nil {
		t.Fatal(err)
	}
}

// collector keeps the latest message list a session reported.
type collector struct {
	mu   sync.Mutex
	last []realtime.Message
	ch   chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 16)}
}

func (c *collector) onChange(msgs []realtime.Message) {
	c.mu.Lock()
	c.last = msgs
	c.mu.Unlock()
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

func (c *collector) waitFor(t *testing.T, n int) []realtime.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		msgs := c.last
		c.mu.Unlock()
		if len(msgs) >= n {
			return msgs
		}
		select {
		case <-c.ch:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages, have %d", n, len(msgs))
		}
	}
}

func TestChatOverDaemon(t *testing.T) {
	socket := startDaemon(t)
	ctx := context.Background()

	anaClient := dial(t, socket)
	boClient := dial(t, socket)
	ana := signUp(t, anaClient, "ana@example.com", "ana")
	bo := signUp(t, boClient, "bo@example.com", "bo")

	anaSeen := newCollector()
	anaSess := chat.NewSession(anaClient.Chat(), anaClient.Rooms(), chat.Identity{UserID: ana.ID, Name: ana.DisplayName(), Email: ana.Email}, bo.ID, chat.Options{OnChange: anaSeen.onChange})
	defer anaSess.Close()
	boSeen := newCollector()
	boSess := chat.NewSession(boClient.Chat(), boClient.Rooms(), chat.Identity{UserID: bo.ID, Name: bo.DisplayName(), Email: bo.Email}, ana.ID, chat.Options{OnChange: boSeen.onChange})
	defer boSess.Close()

	room, err := anaSess.ResolveRoom(ctx)
	if err != nil {
		t.Fatal(err)
	}
	boRoom, err := boSess.ResolveRoom(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if room != boRoom {
		t.Fatalf("rooms differ: %q vs %q", room, boRoom)
	}

	if err := anaSess.SendMessage(ctx, "is the bread still there?"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond) // distinct SentAt keeps the order deterministic
	if err := boSess.SendMessage(ctx, "yes"); err != nil {
		t.Fatal(err)
	}

	msgs := anaSeen.waitFor(t, 2)
	if msgs[0].Body != "is the bread still there?" || msgs[1].Body != "yes" {
		t.Errorf("ana sees %+v", msgs)
	}
	boSeen.waitFor(t, 2)

	chats, err := boClient.ListChats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 || chats[0].RoomID != room || chats[0].LastMsg != "yes" {
		t.Errorf("bo chats = %+v", chats)
	}

	// A third user cannot watch the room.
	cyClient := dial(t, socket)
	signUp(t, cyClient, "cy@example.com", "cy")
	_, err = cyClient.Rooms().Subscribe(ctx, room, func(realtime.Snapshot) {})
	if grpcstatus.Code(err) != codes.PermissionDenied {
		t.Errorf("outsider watch: %v, want PermissionDenied", err)
	}
}
