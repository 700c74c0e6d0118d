package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rescue-app/rescue/internal/geo"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustUser(t *testing.T, db *DB, id, name string) *User {
	t.Helper()
	u := &User{ID: id, Email: id + "@example.com", PasswordHash: "x", UserName: name}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so this checks idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 || result.From != 2 {
		t.Errorf("from %d to %d, want 2 to 2 (init + chat)", result.From, result.Version)
	}
}

func TestMigrateFreshDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed || result.From != 0 || result.Version != 2 {
		t.Errorf("result = %+v, want 0 -> 2 changed", *result)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustUser(t, db, "alice", "Alice")
	err := db.CreateUser(ctx, &User{Email: "alice@example.com", PasswordHash: "y"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}

	u, err := db.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "alice" {
		t.Errorf("id = %q, want alice", u.ID)
	}
	if _, err := db.GetUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(missing) err = %v, want ErrNotFound", err)
	}
}

func TestUpdateProfileDenormalizesPosts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	u := mustUser(t, db, "alice", "Alice")
	other := mustUser(t, db, "bob", "Bob")
	if err := db.CreatePost(ctx, &Post{ID: "p1", UserID: u.ID, Body: "bread"}); err != nil {
		t.Fatal(err)
	}
	if err := db.CreatePost(ctx, &Post{ID: "p2", UserID: other.ID, Body: "soup"}); err != nil {
		t.Fatal(err)
	}

	u.UserName = "Alice B"
	u.Image = "avatars/alice.png"
	if err := db.UpdateProfile(ctx, u); err != nil {
		t.Fatal(err)
	}

	p, err := db.GetPost(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if p.UserName != "Alice B" || p.UserImage != "avatars/alice.png" {
		t.Errorf("post author = %q/%q, want Alice B/avatars/alice.png", p.UserName, p.UserImage)
	}
	p2, err := db.GetPost(ctx, "p2")
	if err != nil {
		t.Fatal(err)
	}
	if p2.UserName != "Bob" {
		t.Errorf("other post author = %q, want Bob", p2.UserName)
	}
}

func TestFollowIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustUser(t, db, "a", "A")
	mustUser(t, db, "b", "B")
	for range 2 {
		if err := db.Follow(ctx, "a", "b"); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := db.FollowingIDs(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("following = %v, want [b]", ids)
	}

	if err := db.Unfollow(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	ids, err = db.FollowingIDs(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("following after unfollow = %v, want empty", ids)
	}
}

func TestPostImagesOrdered(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustUser(t, db, "a", "A")
	if err := db.CreatePost(ctx, &Post{ID: "p", UserID: "a", Images: []string{"img/1", "img/2", "img/3"}}); err != nil {
		t.Fatal(err)
	}
	p, err := db.GetPost(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Images) != 3 || p.Images[0] != "img/1" || p.Images[2] != "img/3" {
		t.Errorf("images = %v", p.Images)
	}
	if p.Status != "waiting" || p.Category != "other" {
		t.Errorf("defaults = %q/%q, want waiting/other", p.Status, p.Category)
	}
}

func TestQueryPostsKeyset(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustUser(t, db, "a", "A")
	// Two posts share a timestamp to exercise the id tie-break.
	for _, p := range []Post{
		{ID: "p1", CreatedAt: 1000},
		{ID: "p2", CreatedAt: 2000},
		{ID: "p3", CreatedAt: 2000},
		{ID: "p4", CreatedAt: 3000},
	} {
		p.UserID = "a"
		if err := db.CreatePost(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	q := PostQuery{Limit: 2}
	for {
		page, err := db.QueryPosts(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		if len(page) == 0 {
			break
		}
		for _, p := range page {
			got = append(got, p.ID)
		}
		last := page[len(page)-1]
		q.BeforeCreatedAt, q.BeforeID = last.CreatedAt, last.ID
	}

	want := []string{"p4", "p3", "p2", "p1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestQueryPostsRadius(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustUser(t, db, "a", "A")
	posts := []Post{
		{ID: "near", Latitude: 32.01, Longitude: 34.81, CreatedAt: 1},
		{ID: "far", Latitude: 31.77, Longitude: 35.21, CreatedAt: 2},
		{ID: "unset", CreatedAt: 3},
	}
	for _, p := range posts {
		p.UserID = "a"
		if err := db.CreatePost(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.QueryPosts(ctx, PostQuery{Center: &geo.Point{Lat: 32.0, Lon: 34.8}, RadiusKm: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "near" {
		t.Errorf("got %d posts, want only near", len(got))
	}

	// A viewer sitting on the sentinel still does not match unlocated posts.
	got, err = db.QueryPosts(ctx, PostQuery{Center: &geo.Point{}, RadiusKm: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d posts at (0,0), want 0", len(got))
	}
}

func TestQueryPostsAuthorsAndCategories(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustUser(t, db, "a", "A")
	mustUser(t, db, "b", "B")
	for _, p := range []Post{
		{ID: "a1", UserID: "a", Category: "baked"},
		{ID: "a2", UserID: "a", Category: "dairy"},
		{ID: "b1", UserID: "b", Category: "baked"},
	} {
		if err := db.CreatePost(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.QueryPosts(ctx, PostQuery{AuthorIDs: []string{"a"}, Categories: []string{"baked"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("got %v, want [a1]", got)
	}

	got, err = db.QueryPosts(ctx, PostQuery{AuthorIDs: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("empty author set returned %d posts", len(got))
	}
}

func TestStatusDeleteReport(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustUser(t, db, "a", "A")
	if err := db.CreatePost(ctx, &Post{ID: "p", UserID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetPostStatus(ctx, "p", "rescued"); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := db.ReportPost(ctx, &Report{PostID: "p", ReporterID: "b", Reason: "spam"}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := db.CountReports(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("reports = %d, want 1", n)
	}
	p, err := db.GetPost(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != "rescued" {
		t.Errorf("status = %q, want rescued", p.Status)
	}

	if err := db.DeletePost(ctx, "p"); err != nil {
		t.Fatal(err)
	}
	if n, err := db.CountReports(ctx, "p"); err != nil || n != 0 {
		t.Errorf("reports after delete = %d (err %v), want 0", n, err)
	}
	if err := db.DeletePost(ctx, "p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestCreateRoomConverges(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	ab := ChatPointer{OwnerID: "a", PeerID: "b", Sender: "a", Receiver: "b", RoomID: "r1"}
	ba := ChatPointer{OwnerID: "b", PeerID: "a", Sender: "a", Receiver: "b", RoomID: "r1"}
	room, err := db.CreateRoom(ctx, ab, ba)
	if err != nil {
		t.Fatal(err)
	}
	if room != "r1" {
		t.Errorf("room = %q, want r1", room)
	}

	// The other participant proposes a different id and still lands on r1.
	ba2 := ChatPointer{OwnerID: "b", PeerID: "a", Sender: "b", Receiver: "a", RoomID: "r2"}
	ab2 := ChatPointer{OwnerID: "a", PeerID: "b", Sender: "b", Receiver: "a", RoomID: "r2"}
	room, err = db.CreateRoom(ctx, ba2, ab2)
	if err != nil {
		t.Fatal(err)
	}
	if room != "r1" {
		t.Errorf("room = %q, want r1", room)
	}

	p, err := db.GetChatPointer(ctx, "b", "a")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.RoomID != "r1" {
		t.Errorf("b->a pointer = %+v, want room r1", p)
	}
	missing, err := db.GetChatPointer(ctx, "a", "c")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil pointer for unknown peer")
	}
}

func TestCreateRoomConcurrent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	rooms := make([]string, 8)
	var wg sync.WaitGroup
	for i := range rooms {
		wg.Go(func() {
			mine := ChatPointer{OwnerID: "a", PeerID: "b", Sender: "a", Receiver: "b"}
			theirs := ChatPointer{OwnerID: "b", PeerID: "a", Sender: "a", Receiver: "b"}
			if i%2 == 1 {
				mine, theirs = theirs, mine
			}
			r, err := db.CreateRoom(ctx, mine, theirs)
			if err != nil {
				t.Error(err)
				return
			}
			rooms[i] = r
		})
	}
	wg.Wait()

	for i, r := range rooms {
		if r != rooms[0] {
			t.Errorf("rooms[%d] = %q, want %q", i, r, rooms[0])
		}
	}
}

func TestMessagesAndSummary(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.CreateRoom(ctx,
		ChatPointer{OwnerID: "a", PeerID: "b", RoomID: "r"},
		ChatPointer{OwnerID: "b", PeerID: "a", RoomID: "r"}); err != nil {
		t.Fatal(err)
	}
	msgs := []Message{
		{RoomID: "r", Key: "k2", FromID: "b", ToID: "a", Body: "second", SentAt: 2000},
		{RoomID: "r", Key: "k1", FromID: "a", ToID: "b", Body: "first", SentAt: 1000},
	}
	for _, m := range msgs {
		if err := db.AppendMessage(ctx, &m); err != nil {
			t.Fatal(err)
		}
	}
	// Duplicate key is ignored.
	if err := db.AppendMessage(ctx, &Message{RoomID: "r", Key: "k1", Body: "dup", SentAt: 5}); err != nil {
		t.Fatal(err)
	}

	got, err := db.RoomMessages(ctx, "r")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Body != "first" || got[1].Body != "second" {
		t.Fatalf("messages = %+v", got)
	}
	if got[0].Type != "text" {
		t.Errorf("type = %q, want text", got[0].Type)
	}

	if err := db.UpdateLastMessage(ctx, "a", "b", "second", 2000); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateLastMessage(ctx, "a", "zz", "x", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing pointer err = %v, want ErrNotFound", err)
	}
	list, err := db.ListChatPointers(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].LastMsg != "second" || list[0].LastSentAt != 2000 {
		t.Errorf("chat list = %+v", list)
	}
}

func TestDeviceTokens(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, tok := range []string{"t1", "t2", "t1"} {
		if err := db.SaveDeviceToken(ctx, "a", tok); err != nil {
			t.Fatal(err)
		}
	}
	tokens, err := db.DeviceTokens(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 2 {
		t.Fatalf("tokens = %v, want 2", tokens)
	}
	if err := db.DeleteDeviceTokens(ctx, []string{"t1"}); err != nil {
		t.Fatal(err)
	}
	tokens, err = db.DeviceTokens(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 1 || tokens[0] != "t2" {
		t.Errorf("tokens = %v, want [t2]", tokens)
	}
}
