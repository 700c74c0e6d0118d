package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/tui/ui"
)

// ProfileView shows the signed-in user and a QR code others can scan to
// follow or message them.
type ProfileView struct {
	*tview.TextView
	theme *ui.Theme
}

func NewProfileView(theme *ui.Theme) *ProfileView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Profile ")
	tv.SetTitleColor(theme.TitleColor)
	return &ProfileView{TextView: tv, theme: theme}
}

func (pv *ProfileView) Title() string { return "Profile" }

func (pv *ProfileView) Update(p *api.UserProfile) {
	pv.Clear()
	fg := ui.ColorName(pv.theme.FgColor)
	ct := ui.ColorName(pv.theme.CounterColor)
	row := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return fmt.Sprintf("  [%s::b]%-10s[-:-:-] [%s]%s[-]\n", fg, label+":", ct, tview.Escape(sanitizeForTerminal(value)))
	}
	_, _ = fmt.Fprint(pv, "\n"+
		row("Name", p.DisplayName())+
		row("Email", p.Email)+
		row("Phone", p.Phone)+
		row("Bio", p.Bio)+
		row("Following", fmt.Sprint(len(p.Following)))+
		row("ID", p.ID)+
		"\n"+renderQR(ProfileURI(p.ID)))
}

// ProfileURI is what the profile QR code encodes.
func ProfileURI(userID string) string {
	return "rescue://user/" + userID
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters. Two bitmap rows become one terminal line.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	return HalfBlocks(qr.Bitmap(), "  ")
}

// HalfBlocks draws a QR bitmap, true meaning a dark module.
func HalfBlocks(bitmap [][]bool, indent string) string {
	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString(indent)
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
