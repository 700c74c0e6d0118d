package tui

import (
	"strings"

	"github.com/rescue-app/rescue/internal/tui/ui"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':'). Short
// aliases resolve to their full name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if alias, ok := aliases[cmd.Name]; ok {
		cmd.Name = alias
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Fields splits the arguments on whitespace.
func (c Command) Fields() []string {
	return strings.Fields(c.Args)
}

var aliases = map[string]string{
	"q":    "quit",
	"h":    "help",
	"fy":   "foryou",
	"fo":   "following",
	"cats": "cat",
	"loc":  "where",
}

// commandHelp is listed on the help page.
var commandHelp = []ui.MenuHint{
	{Key: ":foryou", Description: "Posts near you"},
	{Key: ":following", Description: "Posts by people you follow"},
	{Key: ":radius <km>", Description: "Search radius for nearby posts"},
	{Key: ":cat [category...]", Description: "Filter nearby posts by category, none clears"},
	{Key: ":where <lat>,<lon>", Description: "Set your location"},
	{Key: ":post [category] <text>", Description: "Share food at your location"},
	{Key: ":status <state>", Description: "Mark your post waiting, rescued or wasted"},
	{Key: ":delete", Description: "Delete your post"},
	{Key: ":report <reason>", Description: "Report a post"},
	{Key: ":follow / :unfollow", Description: "Follow or unfollow the post's author"},
	{Key: ":chat [user id]", Description: "Chat with a user or the post's author"},
	{Key: ":chats", Description: "Your conversations"},
	{Key: ":profile", Description: "Your profile and QR code"},
	{Key: ":logout", Description: "Forget the saved token"},
	{Key: ":help / :h", Description: "Show this help"},
	{Key: ":quit / :q", Description: "Quit"},
}
