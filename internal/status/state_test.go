package status

import (
	"context"
	"errors"
	"testing"

	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/store"
)

type fakePosts struct {
	posts map[string]*store.Post
	sets  int
}

func (f *fakePosts) GetPost(_ context.Context, id string) (*store.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePosts) SetPostStatus(_ context.Context, id, status string) error {
	f.sets++
	f.posts[id].Status = status
	return nil
}

func newFake(status State) *fakePosts {
	return &fakePosts{posts: map[string]*store.Post{
		"p1": {ID: "p1", UserID: "owner", Status: string(status)},
	}}
}

func TestParse(t *testing.T) {
	for _, s := range []string{"waiting", "rescued", "wasted"} {
		if _, err := Parse(s); err != nil {
			t.Errorf("Parse(%q) error = %v", s, err)
		}
	}
	if _, err := Parse("waiting for rescue"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Parse(unknown) err = %v, want ErrInvalidState", err)
	}
}

func TestAnyToAny(t *testing.T) {
	all := []State{Waiting, Rescued, Wasted}
	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newFake(from)
				m := NewMachine(f, nil)
				if err := m.Transition(context.Background(), "owner", "p1", to); err != nil {
					t.Fatalf("Transition(%s -> %s) error = %v", from, to, err)
				}
				if got := State(f.posts["p1"].Status); got != to {
					t.Errorf("status = %s, want %s", got, to)
				}
			})
		}
	}
}

func TestSameStateIsNoop(t *testing.T) {
	f := newFake(Rescued)
	m := NewMachine(f, nil)
	if err := m.Transition(context.Background(), "owner", "p1", Rescued); err != nil {
		t.Fatal(err)
	}
	if f.sets != 0 {
		t.Errorf("store writes = %d, want 0", f.sets)
	}
}

func TestNonOwnerRejected(t *testing.T) {
	f := newFake(Waiting)
	m := NewMachine(f, nil)
	err := m.Transition(context.Background(), "stranger", "p1", Wasted)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	if f.posts["p1"].Status != string(Waiting) {
		t.Errorf("status changed to %s", f.posts["p1"].Status)
	}
}

func TestMissingPost(t *testing.T) {
	m := NewMachine(newFake(Waiting), nil)
	err := m.Transition(context.Background(), "owner", "nope", Wasted)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("post.", 10)
	defer unsub()

	m := NewMachine(newFake(Waiting), b)
	if err := m.Transition(context.Background(), "owner", "p1", Rescued); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindPostStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindPostStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Waiting || change.To != Rescued || change.PostID != "p1" {
		t.Errorf("change = %+v, want p1 waiting -> rescued", change)
	}
}
