package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/tui/ui"
)

// FeedList is the post feed. Moving onto the last row asks for the next page.
type FeedList struct {
	*tview.Table
	theme        *ui.Theme
	posts        []feed.Post
	distance     func(feed.Post) float64
	onEndReached func()
}

func NewFeedList(theme *ui.Theme) *FeedList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	fl := &FeedList{Table: table, theme: theme}
	table.SetSelectionChangedFunc(func(row, _ int) {
		if row > 0 && row == len(fl.posts) && fl.onEndReached != nil {
			fl.onEndReached()
		}
	})
	return fl
}

func (fl *FeedList) Title() string { return "Feed" }

// SetDistanceFunc sets how the distance column is computed. A negative
// distance renders as blank.
func (fl *FeedList) SetDistanceFunc(fn func(feed.Post) float64) {
	fl.distance = fn
}

func (fl *FeedList) SetOnEndReached(fn func()) {
	fl.onEndReached = fn
}

// Update renders the controller state.
func (fl *FeedList) Update(st feed.State) {
	fl.posts = st.Items
	fl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" AUTHOR", 1},
		{" CATEGORY", 0},
		{" STATUS", 0},
		{" DIST", 0},
		{" FOOD", 3},
		{" AGE", 0},
	}
	for col, h := range headers {
		fl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(fl.theme.TableHeaderFg).
			SetBackgroundColor(fl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	for i, p := range st.Items {
		row := i + 1
		dist := ""
		if fl.distance != nil {
			if d := fl.distance(p); d >= 0 {
				dist = fmt.Sprintf("%.1fkm", d)
			}
		}
		fl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(p.UserName))).SetExpansion(1).SetTextColor(fl.theme.FgColor))
		fl.SetCell(row, 1, tview.NewTableCell(" "+p.Category).SetTextColor(fl.theme.FgColor))
		fl.SetCell(row, 2, tview.NewTableCell(" "+p.Status).SetTextColor(fl.theme.StatusColor(p.Status)))
		fl.SetCell(row, 3, tview.NewTableCell(dist).SetAlign(tview.AlignRight).SetTextColor(fl.theme.MutedColor))
		fl.SetCell(row, 4, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(firstLine(p.Body)))).SetExpansion(3).SetTextColor(fl.theme.FgColor))
		fl.SetCell(row, 5, tview.NewTableCell(formatTimestamp(p.CreatedAt)).SetAlign(tview.AlignRight).SetTextColor(fl.theme.MutedColor))
	}

	if len(st.Items) == 0 {
		fl.SetCell(1, 0, tview.NewTableCell(" "+emptyText(st)).
			SetSelectable(false).
			SetExpansion(1).
			SetTextColor(fl.theme.MutedColor))
	}

	fl.SetTitle(feedTitle(st))
}

// Selected returns the post under the cursor.
func (fl *FeedList) Selected() (feed.Post, bool) {
	row, _ := fl.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(fl.posts) {
		return feed.Post{}, false
	}
	return fl.posts[idx], true
}

func feedTitle(st feed.State) string {
	mode := "For you"
	if st.Mode == feed.Following {
		mode = "Following"
	}
	title := fmt.Sprintf(" %s (%d)", mode, len(st.Items))
	if len(st.Categories) > 0 {
		title += " [" + strings.Join(st.Categories, ",") + "]"
	}
	switch {
	case st.Loading:
		title += " loading..."
	case st.LoadingMore:
		title += " more..."
	case st.Cursors[st.Mode] != "":
		title += " +"
	}
	return title + " "
}

func emptyText(st feed.State) string {
	switch {
	case st.PermissionDenied:
		return "Location unavailable. Set one with :where <lat>,<lon> and press r to retry."
	case st.Loading:
		return "Loading..."
	case st.Err != nil:
		return "Could not load the feed. Press r to retry."
	case st.NoPosts && st.Mode == feed.Following:
		return "Nobody you follow has shared food yet."
	case st.NoPosts:
		return "No food shared near you yet. Press n to share some."
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + "..."
	}
	return s
}
