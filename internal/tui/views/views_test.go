package views

import (
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rescue-app/rescue/internal/chat"
	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/realtime"
	"github.com/rescue-app/rescue/internal/tui/ui"
)

func posts(n int) []feed.Post {
	out := make([]feed.Post, n)
	for i := range out {
		out[i] = feed.Post{
			ID:       string(rune('a' + i)),
			UserName: "Ann",
			Category: "baked",
			Status:   "waiting",
			Body:     "bread\nmore details",
		}
	}
	return out
}

func TestFeedListRendersPosts(t *testing.T) {
	fl := NewFeedList(ui.DefaultTheme())
	fl.SetDistanceFunc(func(p feed.Post) float64 {
		if p.ID == "a" {
			return 1.25
		}
		return -1
	})
	fl.Update(feed.State{Mode: feed.ForYou, Items: posts(3), Cursors: map[feed.Mode]feed.Cursor{feed.ForYou: "next"}})

	if got := fl.GetRowCount(); got != 4 {
		t.Fatalf("rows = %d, want header + 3", got)
	}
	if got := fl.GetCell(1, 3).Text; got != "1.2km" && got != "1.3km" {
		t.Errorf("distance cell = %q", got)
	}
	if got := fl.GetCell(2, 3).Text; got != "" {
		t.Errorf("unknown distance should be blank, got %q", got)
	}
	if got := fl.GetCell(1, 4).Text; got != " bread..." {
		t.Errorf("body cell = %q", got)
	}
	if title := fl.GetTitle(); !strings.Contains(title, "For you (3)") || !strings.Contains(title, "+") {
		t.Errorf("title = %q", title)
	}
}

func TestFeedListEndReached(t *testing.T) {
	fl := NewFeedList(ui.DefaultTheme())
	calls := 0
	fl.SetOnEndReached(func() { calls++ })
	fl.Update(feed.State{Mode: feed.ForYou, Items: posts(3)})

	fl.Select(2, 0)
	if calls != 0 {
		t.Errorf("end reached fired early")
	}
	if p, ok := fl.Selected(); !ok || p.ID != "b" {
		t.Errorf("Selected() = %+v, %v", p, ok)
	}
	fl.Select(3, 0)
	if calls != 1 {
		t.Errorf("end reached calls = %d, want 1", calls)
	}
}

func TestFeedListEmptyStates(t *testing.T) {
	tests := []struct {
		st   feed.State
		want string
	}{
		{feed.State{Mode: feed.ForYou, PermissionDenied: true}, "Location unavailable"},
		{feed.State{Mode: feed.ForYou, Loading: true}, "Loading"},
		{feed.State{Mode: feed.ForYou, Err: errors.New("down")}, "Could not load"},
		{feed.State{Mode: feed.Following, NoPosts: true}, "Nobody you follow"},
		{feed.State{Mode: feed.ForYou, NoPosts: true}, "No food shared near you"},
	}
	fl := NewFeedList(ui.DefaultTheme())
	for _, tt := range tests {
		fl.Update(tt.st)
		if got := fl.GetCell(1, 0).Text; !strings.Contains(got, tt.want) {
			t.Errorf("empty text = %q, want it to contain %q", got, tt.want)
		}
		if _, ok := fl.Selected(); ok {
			t.Error("nothing should be selectable in an empty feed")
		}
	}
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update([]chat.Pointer{
		{PeerID: "ben", Receiver: "Ben", LastMsg: "see you at 6"},
		{PeerID: "cid", Email: "cid@example.com", LastMsg: "thanks for the bread"},
		{PeerID: "dee"},
	})
	if got := cl.GetCell(2, 0).Text; got != " cid@example.com" {
		t.Errorf("name falls back to email, got %q", got)
	}
	if got := cl.GetCell(3, 0).Text; got != " dee" {
		t.Errorf("name falls back to id, got %q", got)
	}

	cl.SetFilter("BREAD")
	if got := cl.GetRowCount(); got != 2 {
		t.Fatalf("filtered rows = %d, want header + 1", got)
	}
	cl.Select(1, 0)
	if p, ok := cl.Selected(); !ok || p.PeerID != "cid" {
		t.Errorf("Selected() = %+v, %v", p, ok)
	}
	if !strings.Contains(cl.GetTitle(), "(1/3)") {
		t.Errorf("title = %q", cl.GetTitle())
	}

	cl.ClearFilter()
	if got := cl.GetRowCount(); got != 4 {
		t.Errorf("rows after clear = %d", got)
	}
}

func TestMessageThreadMarksOwnMessages(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme())
	mt.SetPeer("ann", "ben", "Ben")
	mt.Update([]realtime.Message{
		{Key: "1", FromID: "ben", Body: "hi"},
		{Key: "2", FromID: "ann", Body: "hello"},
	})
	text := mt.Messages().GetText(true)
	if !strings.Contains(text, "Ben") || !strings.Contains(text, "You") {
		t.Errorf("thread text = %q", text)
	}
	if strings.Index(text, "hi") > strings.Index(text, "hello") {
		t.Error("messages should render in order")
	}
	if mt.Title() != "Ben" || mt.PeerID() != "ben" {
		t.Errorf("title/peer = %q/%q", mt.Title(), mt.PeerID())
	}

	var sent string
	mt.SetOnSend(func(s string) { sent = s })
	mt.Composer().SetText("on my way")
	mt.Composer().InputHandler()(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), func(tview.Primitive) {})
	if sent != "on my way" || mt.Composer().GetText() != "" {
		t.Errorf("sent = %q, composer = %q", sent, mt.Composer().GetText())
	}
}

func TestPostDetailActions(t *testing.T) {
	pd := NewPostDetail(ui.DefaultTheme())
	p := feed.Post{ID: "p1", UserID: "ben", UserName: "Ben", Category: "dairy", Status: "rescued", Body: "milk"}

	pd.Update(p, 2, true, false)
	if text := pd.GetText(true); !strings.Contains(text, ":status") || !strings.Contains(text, "2.0 km away") {
		t.Errorf("owner view = %q", text)
	}
	pd.Update(p, -1, false, true)
	text := pd.GetText(true)
	if !strings.Contains(text, "unfollow") || strings.Contains(text, "km away") {
		t.Errorf("follower view = %q", text)
	}
	if pd.Post().ID != "p1" {
		t.Errorf("Post() = %+v", pd.Post())
	}
}

func TestHalfBlocks(t *testing.T) {
	bitmap := [][]bool{
		{true, false, true, false},
		{true, true, false, false},
		{false, true},
	}
	got := HalfBlocks(bitmap, "")
	want := "█▄▀ \n ▀\n"
	if got != want {
		t.Errorf("HalfBlocks() = %q, want %q", got, want)
	}
}

func TestRenderQR(t *testing.T) {
	qr := renderQR(ProfileURI("ann"))
	if strings.Contains(qr, "failed") || strings.Count(qr, "\n") < 10 {
		t.Errorf("unexpected QR output:\n%s", qr)
	}
}

func TestLoginCredentials(t *testing.T) {
	lv := NewLoginView(ui.DefaultTheme())
	set := func(label, v string) {
		lv.GetFormItemByLabel(label).(*tview.InputField).SetText(v)
	}
	set("Email", " ann@example.com ")
	set("Password", "secret1")
	set("First name", "Ann")

	var got Credentials
	lv.SetOnLogin(func(c Credentials) { got = c })
	lv.onLogin(lv.Credentials())
	want := Credentials{Email: "ann@example.com", Password: "secret1", FirstName: "Ann"}
	if got != want {
		t.Errorf("credentials = %+v, want %+v", got, want)
	}

	lv.ClearPassword()
	if lv.Credentials().Password != "" {
		t.Error("password should be cleared")
	}
}

func TestSanitizeForTerminal(t *testing.T) {
	if got := sanitizeForTerminal("\U0001F44D\U0001F3FB ok\u200d"); got != "\U0001F44D ok" {
		t.Errorf("sanitizeForTerminal() = %q", got)
	}
}
