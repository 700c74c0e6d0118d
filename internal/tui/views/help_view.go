package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/rescue-app/rescue/internal/tui/ui"
)

// HelpSection is a titled group of key or command descriptions.
type HelpSection struct {
	Title string
	Hints []ui.MenuHint
}

// HelpView lists key bindings and commands.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)
	return &HelpView{TextView: tv, theme: theme}
}

func (hv *HelpView) Title() string { return "Help" }

func (hv *HelpView) Update(sections []HelpSection) {
	hv.Clear()
	kc := ui.ColorName(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.Title)
		for _, h := range s.Hints {
			fmt.Fprintf(&b, "  [%s]%-24s[-:-:-] %s\n", kc, tview.Escape(h.Key), h.Description)
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
	hv.ScrollToBeginning()
}
