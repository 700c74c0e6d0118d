package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rescue-app/rescue/internal/realtime"
	"github.com/rescue-app/rescue/internal/tui/ui"
)

// MessageThread displays one conversation and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	peerName string
	peerID   string
	myID     string
	onSend   func(text string)
	onEscape func()
}

func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Message (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := composer.GetText()
			if text != "" && mt.onSend != nil {
				mt.onSend(text)
				composer.SetText("")
			}
		case tcell.KeyEscape:
			if mt.onEscape != nil {
				mt.onEscape()
			}
		}
	})
	return mt
}

func (mt *MessageThread) Title() string {
	if mt.peerName != "" {
		return mt.peerName
	}
	return "Chat"
}

// SetPeer sets who the conversation is with, and who "me" is.
func (mt *MessageThread) SetPeer(myID, peerID, name string) {
	mt.myID, mt.peerID, mt.peerName = myID, peerID, name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(mt.Title())))
	mt.messages.Clear()
}

func (mt *MessageThread) PeerID() string {
	return mt.peerID
}

func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnEscape sets what Esc in the composer does.
func (mt *MessageThread) SetOnEscape(fn func()) {
	mt.onEscape = fn
}

// Update renders msgs, oldest first.
func (mt *MessageThread) Update(msgs []realtime.Message) {
	mt.messages.Clear()
	own := ui.ColorName(mt.theme.OwnMessageColor)
	for _, m := range msgs {
		sender, color := mt.peerName, "-"
		if m.FromID == mt.myID {
			sender, color = "You", own
		}
		_, _ = fmt.Fprintf(mt.messages, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			color, tview.Escape(sanitizeForTerminal(sender)), formatTimestamp(m.SentAt),
			tview.Escape(sanitizeForTerminal(m.Body)))
	}
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
