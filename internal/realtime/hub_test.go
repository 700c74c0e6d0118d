package realtime

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func startHub(t *testing.T, db *store.DB) (*Hub, *bus.Bus) {
	t.Helper()
	b := bus.New()
	h := NewHub(db, b, nil)
	h.Start(context.Background())
	t.Cleanup(h.Stop)
	return h, b
}

func appendAndPublish(t *testing.T, db *store.DB, b *bus.Bus, m store.Message) {
	t.Helper()
	if err := db.AppendMessage(context.Background(), &m); err != nil {
		t.Fatal(err)
	}
	b.Publish(bus.Event{Kind: bus.KindRoomMessage, Key: m.RoomID, Timestamp: time.Now()})
}

func recv(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
	return Snapshot{}
}

func TestSubscribeDeliversCurrentSnapshot(t *testing.T) {
	db := testDB(t)
	h, _ := startHub(t, db)

	if err := db.AppendMessage(context.Background(), &store.Message{RoomID: "r1", Key: "k1", Body: "earlier", SentAt: 1}); err != nil {
		t.Fatal(err)
	}

	ch := make(chan Snapshot, 4)
	if _, err := h.Subscribe(context.Background(), "r1", func(s Snapshot) { ch <- s }); err != nil {
		t.Fatal(err)
	}
	snap := recv(t, ch)
	if snap.Key != "r1" || len(snap.Messages) != 1 || snap.Messages[0].Body != "earlier" {
		t.Errorf("initial snapshot = %+v", snap)
	}
}

func TestRoomEventEmitsFullSnapshot(t *testing.T) {
	db := testDB(t)
	h, b := startHub(t, db)

	ch := make(chan Snapshot, 4)
	if _, err := h.Subscribe(context.Background(), "r1", func(s Snapshot) { ch <- s }); err != nil {
		t.Fatal(err)
	}
	if got := recv(t, ch); len(got.Messages) != 0 {
		t.Fatalf("initial snapshot has %d messages, want 0", len(got.Messages))
	}

	appendAndPublish(t, db, b, store.Message{RoomID: "r1", Key: "k1", Body: "one", SentAt: 1})
	if got := recv(t, ch); len(got.Messages) != 1 {
		t.Fatalf("snapshot has %d messages, want 1", len(got.Messages))
	}
	appendAndPublish(t, db, b, store.Message{RoomID: "r1", Key: "k2", Body: "two", SentAt: 2})
	got := recv(t, ch)
	if len(got.Messages) != 2 || got.Messages[1].Body != "two" {
		t.Errorf("snapshot = %+v, want both messages", got)
	}
}

func TestOtherRoomsNotNotified(t *testing.T) {
	db := testDB(t)
	h, b := startHub(t, db)

	ch := make(chan Snapshot, 4)
	if _, err := h.Subscribe(context.Background(), "r1", func(s Snapshot) { ch <- s }); err != nil {
		t.Fatal(err)
	}
	recv(t, ch)

	appendAndPublish(t, db, b, store.Message{RoomID: "r2", Key: "k", Body: "elsewhere", SentAt: 1})
	select {
	case s := <-ch:
		t.Errorf("unexpected snapshot for %s", s.Key)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	db := testDB(t)
	h, b := startHub(t, db)

	ch := make(chan Snapshot, 4)
	id, err := h.Subscribe(context.Background(), "r1", func(s Snapshot) { ch <- s })
	if err != nil {
		t.Fatal(err)
	}
	recv(t, ch)

	h.Unsubscribe(id)
	h.Unsubscribe(id)
	if n := h.Subscribers("r1"); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}

	appendAndPublish(t, db, b, store.Message{RoomID: "r1", Key: "k", Body: "late", SentAt: 1})
	select {
	case <-ch:
		t.Error("snapshot delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeRejectsEmptyKey(t *testing.T) {
	h, _ := startHub(t, testDB(t))
	if _, err := h.Subscribe(context.Background(), "", func(Snapshot) {}); err == nil {
		t.Error("expected error for empty key")
	}
}

// gatedLoader blocks its first load until release is closed.
type gatedLoader struct {
	Loader
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedLoader) RoomMessages(ctx context.Context, roomID string) ([]store.Message, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		rows, err := g.Loader.RoomMessages(ctx, roomID)
		close(g.entered)
		<-g.release
		return rows, err
	}
	return g.Loader.RoomMessages(ctx, roomID)
}

func TestMessageDuringSubscribeIsDelivered(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	loader := &gatedLoader{Loader: db, entered: make(chan struct{}), release: make(chan struct{})}
	h := NewHub(loader, b, nil)
	h.Start(context.Background())
	t.Cleanup(h.Stop)

	ch := make(chan Snapshot, 4)
	subErr := make(chan error, 1)
	go func() {
		_, err := h.Subscribe(context.Background(), "r1", func(s Snapshot) { ch <- s })
		subErr <- err
	}()

	<-loader.entered
	appendAndPublish(t, db, b, store.Message{RoomID: "r1", Key: "k1", Body: "racing", SentAt: 1})
	time.Sleep(50 * time.Millisecond)
	close(loader.release)

	if err := <-subErr; err != nil {
		t.Fatal(err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if len(s.Messages) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("subscriber never saw the message appended during Subscribe")
		}
	}
}
