package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// ProfileData is what the header shows about the signed-in user.
type ProfileData struct {
	Profile  string
	User     string
	Mode     string
	RadiusKm float64
	Location string
	Chats    int
	Uptime   time.Duration
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)
	return &ProfileInfo{TextView: tv, theme: theme}
}

func (pi *ProfileInfo) Update(d ProfileData) {
	pi.Clear()
	fg := ColorName(pi.theme.FgColor)
	ct := ColorName(pi.theme.CounterColor)

	loc := d.Location
	if loc == "" {
		loc = "-"
	}
	row := func(label, value string) string {
		return fmt.Sprintf("[%s::b]%-9s[-:-:-] [%s]%s[-]\n", fg, label+":", ct, tview.Escape(value))
	}
	_, _ = fmt.Fprint(pi,
		row("Profile", d.Profile)+
			row("User", d.User)+
			row("Feed", fmt.Sprintf("%s, %.0f km", d.Mode, d.RadiusKm))+
			row("Location", loc)+
			row("Chats", fmt.Sprint(d.Chats))+
			row("Daemon", formatDuration(d.Uptime)))
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("up %dh%dm", h, m)
	}
	return fmt.Sprintf("up %dm", m)
}
