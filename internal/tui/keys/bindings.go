// Package keys maps key events to actions, globally or per page.
package keys

import (
	"github.com/gdamore/tcell/v2"

	"github.com/rescue-app/rescue/internal/tui/ui"
)

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Hidden      bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Label is how the key is written in hints.
func (a *Action) Label() string {
	if a.Key == tcell.KeyRune {
		return string(a.Rune)
	}
	return tcell.KeyNames[a.Key]
}

// Registry holds keybindings in registration order. Page bindings win over
// global ones.
type Registry struct {
	global []*Action
	views  map[string][]*Action
}

func NewRegistry() *Registry {
	return &Registry{views: make(map[string][]*Action)}
}

func (r *Registry) AddGlobal(a *Action) {
	r.global = append(r.global, a)
}

func (r *Registry) AddView(view string, a *Action) {
	r.views[view] = append(r.views[view], a)
}

// Hints lists the visible bindings of view followed by the global ones.
func (r *Registry) Hints(view string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, a := range append(append([]*Action(nil), r.views[view]...), r.global...) {
		if !a.Hidden {
			hints = append(hints, ui.MenuHint{Key: a.Label(), Description: a.Description})
		}
	}
	return hints
}

// HandleEvent runs the first action matching ev and reports whether one did.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	for _, a := range r.views[view] {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.global {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
