package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the profile, connection state and clock.
type StatusBar struct {
	*tview.TextView
	profile string
	status  string
	busy    bool
	now     func() time.Time
}

func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignRight)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv, now: time.Now}
}

func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

func (sb *StatusBar) SetStatus(status string) {
	sb.status = status
	sb.render()
}

// SetBusy shows the activity indicator while a request is in flight.
func (sb *StatusBar) SetBusy(busy bool) {
	sb.busy = busy
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	icon := " "
	if sb.busy {
		icon = "[green]~[-]"
	}
	_, _ = fmt.Fprintf(sb, "[::b]%s[-:-:-] | %s %s | %s ",
		tview.Escape(sb.profile), tview.Escape(sb.status), icon, sb.now().Format("15:04"))
}
