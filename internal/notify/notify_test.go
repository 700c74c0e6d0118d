package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"

	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/realtime"
	"github.com/rescue-app/rescue/internal/store"
)

var errGone = errors.New("unregistered")

type fakeSender struct {
	sent chan *messaging.MulticastMessage
	fail map[string]error
}

func (f *fakeSender) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	resp := &messaging.BatchResponse{}
	for _, tok := range m.Tokens {
		if err := f.fail[tok]; err != nil {
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: err})
			resp.FailureCount++
			continue
		}
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "id"})
		resp.SuccessCount++
	}
	f.sent <- m
	return resp, nil
}

type fakeTokens struct {
	tokens  map[string][]string
	deleted []string
}

func (f *fakeTokens) DeviceTokens(_ context.Context, userID string) ([]string, error) {
	return f.tokens[userID], nil
}

func (f *fakeTokens) DeleteDeviceTokens(_ context.Context, tokens []string) error {
	f.deleted = append(f.deleted, tokens...)
	return nil
}

func (f *fakeTokens) GetUser(_ context.Context, id string) (*store.User, error) {
	if id == "a" {
		return &store.User{ID: "a", UserName: "Ann"}, nil
	}
	return nil, store.ErrNotFound
}

func newTestNotifier(fail map[string]error) (*Notifier, *fakeSender, *fakeTokens) {
	s := &fakeSender{sent: make(chan *messaging.MulticastMessage, 4), fail: fail}
	tok := &fakeTokens{tokens: map[string][]string{"b": {"t1", "t2"}}}
	n := NewNotifier(s, tok, bus.New(), nil)
	n.isDead = func(err error) bool { return errors.Is(err, errGone) }
	return n, s, tok
}

func TestNotifyMessage(t *testing.T) {
	n, s, _ := newTestNotifier(nil)
	msg := realtime.Message{RoomID: "r", FromID: "a", ToID: "b", Body: "hi"}
	if err := n.NotifyMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	m := <-s.sent
	if m.Notification.Title != "Ann" || m.Notification.Body != "hi" {
		t.Errorf("notification = %+v", m.Notification)
	}
	if m.Data["room_id"] != "r" || len(m.Tokens) != 2 {
		t.Errorf("message = %+v", m)
	}
}

func TestNoTokensNoSend(t *testing.T) {
	n, s, _ := newTestNotifier(nil)
	if err := n.NotifyMessage(context.Background(), realtime.Message{ToID: "nobody"}); err != nil {
		t.Fatal(err)
	}
	if len(s.sent) != 0 {
		t.Error("nothing should be sent without tokens")
	}
}

func TestDeadTokensRemoved(t *testing.T) {
	n, _, tok := newTestNotifier(map[string]error{
		"t1": errGone,
		"t2": errors.New("quota"),
	})
	if err := n.NotifyMessage(context.Background(), realtime.Message{FromID: "a", ToID: "b", Body: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(tok.deleted) != 1 || tok.deleted[0] != "t1" {
		t.Errorf("deleted = %v, want [t1]", tok.deleted)
	}
}

func TestBusDrivesNotifier(t *testing.T) {
	n, s, _ := newTestNotifier(nil)
	n.Start(context.Background())
	defer n.Stop()

	n.bus.Publish(bus.Event{
		Kind:    bus.KindRoomMessage,
		Key:     "r",
		Payload: realtime.Message{RoomID: "r", FromID: "unknown", ToID: "b", Body: "hello"},
	})
	select {
	case m := <-s.sent:
		if m.Notification.Title != "New message" {
			t.Errorf("title = %q, want fallback", m.Notification.Title)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for push")
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("é", previewLen+10)
	p := preview(long)
	if n := len([]rune(p)); n != previewLen {
		t.Errorf("preview runes = %d, want %d", n, previewLen)
	}
}
