package ui

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rivo/tview"
)

type page struct {
	*tview.Box
	title string
}

func (p page) Title() string { return p.title }

func newTestPages() *Pages {
	p := NewPages()
	for _, name := range []string{"feed", "post", "chat", "help"} {
		p.Add(name, page{Box: tview.NewBox(), title: name})
	}
	return p
}

func TestPagesStack(t *testing.T) {
	p := newTestPages()
	var changes []string
	p.SetOnChange(func(top Component) { changes = append(changes, top.Title()) })

	p.Reset("feed")
	p.Push("post")
	p.Push("chat")
	if got := p.Titles(); !reflect.DeepEqual(got, []string{"feed", "post", "chat"}) {
		t.Fatalf("Titles() = %v", got)
	}

	if got := p.Pop(); got != "chat" {
		t.Errorf("Pop() = %q, want chat", got)
	}
	if p.Current() != "post" {
		t.Errorf("Current() = %q, want post", p.Current())
	}
	if got := p.Pop(); got != "post" {
		t.Errorf("Pop() = %q, want post", got)
	}
	if got := p.Pop(); got != "" {
		t.Errorf("Pop() at bottom = %q, want empty", got)
	}
	if p.Current() != "feed" {
		t.Errorf("bottom page = %q, want feed", p.Current())
	}

	want := []string{"feed", "post", "chat", "post", "feed"}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("changes = %v, want %v", changes, want)
	}
}

func TestPagesPushStackedPage(t *testing.T) {
	p := newTestPages()
	p.Reset("feed")
	p.Push("post")
	p.Push("chat")
	p.Push("post")
	if got := p.Titles(); !reflect.DeepEqual(got, []string{"feed", "post"}) {
		t.Errorf("Titles() = %v, want [feed post]", got)
	}

	p.Push("missing")
	if p.Current() != "post" {
		t.Errorf("unknown page should be ignored, current = %q", p.Current())
	}

	p.Reset("help")
	if got := p.Titles(); !reflect.DeepEqual(got, []string{"help"}) {
		t.Errorf("Titles() after Reset = %v", got)
	}
}

func TestFlashExpires(t *testing.T) {
	f := NewFlashModel()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }

	if f.Current() != nil {
		t.Fatal("new model should have no message")
	}
	f.Err("send", errors.New("boom"))
	msg := f.Current()
	if msg == nil || msg.Text != "send: boom" || msg.Level != FlashErr {
		t.Fatalf("Current() = %+v", msg)
	}

	now = now.Add(11 * time.Second)
	if f.Current() != nil {
		t.Error("error flash should expire after 10s")
	}

	f.Info("saved")
	now = now.Add(4 * time.Second)
	if msg := f.Current(); msg == nil || msg.Level != FlashInfo {
		t.Errorf("info flash should still show, got %+v", msg)
	}
}

func TestStatusColor(t *testing.T) {
	th := DefaultTheme()
	if th.StatusColor("rescued") != th.RescuedColor || th.StatusColor("wasted") != th.WastedColor {
		t.Error("wrong status colors")
	}
	if th.StatusColor("waiting") != th.WaitingColor || th.StatusColor("") != th.WaitingColor {
		t.Error("waiting is the default color")
	}
}

func TestMenuRendersHints(t *testing.T) {
	m := NewMenu(DefaultTheme())
	m.Update([]MenuHint{{Key: "r", Description: "Refresh"}, {Key: "Enter", Description: "Open"}})
	got := m.GetText(true)
	if !strings.Contains(got, "<r> Refresh  <Enter> Open") {
		t.Errorf("menu text = %q", got)
	}
}
