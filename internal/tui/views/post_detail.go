package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/tui/ui"
)

// PostDetail shows one post in full.
type PostDetail struct {
	*tview.TextView
	theme *ui.Theme
	post  feed.Post
}

func NewPostDetail(theme *ui.Theme) *PostDetail {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Post ")
	tv.SetTitleColor(theme.TitleColor)

	return &PostDetail{TextView: tv, theme: theme}
}

func (pd *PostDetail) Title() string { return "Post" }

// Post returns the post being shown.
func (pd *PostDetail) Post() feed.Post {
	return pd.post
}

// Update renders p. distanceKm < 0 hides the distance; mine and following
// select which actions are offered.
func (pd *PostDetail) Update(p feed.Post, distanceKm float64, mine, following bool) {
	pd.post = p
	pd.Clear()

	fg := ui.ColorName(pd.theme.FgColor)
	ct := ui.ColorName(pd.theme.CounterColor)
	row := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return fmt.Sprintf(" [%s::b]%-9s[-:-:-] [%s]%s[-]\n", fg, label+":", ct, tview.Escape(sanitizeForTerminal(value)))
	}

	dist := ""
	if distanceKm >= 0 {
		dist = fmt.Sprintf("%.1f km away", distanceKm)
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(row("Author", p.UserName))
	b.WriteString(row("Category", p.Category))
	fmt.Fprintf(&b, " [%s::b]%-9s[-:-:-] [%s]%s[-]\n", fg, "Status:", ui.ColorName(pd.theme.StatusColor(p.Status)), p.Status)
	b.WriteString(row("Distance", dist))
	if p.DeliveryRange > 0 {
		b.WriteString(row("Delivers", fmt.Sprintf("within %.0f km", p.DeliveryRange)))
	}
	b.WriteString(row("Phone", p.Phone))
	b.WriteString(row("Posted", formatTimestamp(p.CreatedAt)))
	if len(p.Images) > 0 {
		b.WriteString(row("Images", strings.Join(p.Images, " ")))
	}
	fmt.Fprintf(&b, "\n %s\n\n", tview.Escape(sanitizeForTerminal(p.Body)))

	mc := ui.ColorName(pd.theme.MutedColor)
	switch {
	case mine:
		fmt.Fprintf(&b, " [%s]:status waiting|rescued|wasted   :delete[-]\n", mc)
	case following:
		fmt.Fprintf(&b, " [%s]c chat   f unfollow   :report <reason>[-]\n", mc)
	default:
		fmt.Fprintf(&b, " [%s]c chat   f follow   :report <reason>[-]\n", mc)
	}
	_, _ = fmt.Fprint(pd, b.String())
	pd.SetTitle(fmt.Sprintf(" %s by %s ", p.Category, tview.Escape(p.UserName)))
}
