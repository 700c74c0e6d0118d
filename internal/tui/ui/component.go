package ui

import "github.com/rivo/tview"

// Component is a page of the TUI. Its key hints come from the key registry.
type Component interface {
	tview.Primitive
	// Title is shown in the breadcrumbs.
	Title() string
}
