package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo displays a compact ASCII art logo.
type Logo struct {
	*tview.TextView
}

func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	tc := ColorName(theme.TitleColor)
	_, _ = fmt.Fprintf(tv,
		"[%s::b]╦═╗╔═╗╔═╗╔═╗╦ ╦╔═╗[-:-:-]\n"+
			"[%s::b]╠╦╝║╣ ╚═╗║  ║ ║║╣ [-:-:-]\n"+
			"[%s::b]╩╚═╚═╝╚═╝╚═╝╚═╝╚═╝[-:-:-]\n"+
			"[%s]share food, not waste[-:-:-]",
		tc, tc, tc, ColorName(theme.MutedColor))
	return &Logo{TextView: tv}
}
