package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc/status"

	"github.com/rescue-app/rescue/internal/client"
	"github.com/rescue-app/rescue/internal/profile"
)

// cli is shared by every subcommand.
type cli struct {
	profile string
	json    bool
	c       *client.Client
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Usage = printUsage
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	token, err := profile.LoadToken(profileName)
	if err != nil {
		fail(fmt.Errorf("read token: %w", err))
	}
	socketPath := profile.SocketPath(profileName)
	c, err := client.New(socketPath, token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", profileName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	app := &cli{profile: profileName, json: *jsonFlag, c: c}

	// chat watch runs until interrupted; everything else gets a deadline.
	ctx := context.Background()
	if !(len(args) >= 2 && args[0] == "chat" && args[1] == "watch") {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	switch args[0] {
	case "ping":
		err = app.ping(ctx)
	case "register":
		err = app.register(ctx, args[1:])
	case "login":
		err = app.login(ctx, args[1:])
	case "logout":
		err = profile.DeleteToken(profileName)
	case "profile":
		err = app.profileCmd(ctx, args[1:])
	case "follow", "unfollow":
		err = app.follow(ctx, args[0], args[1:])
	case "device":
		err = app.device(ctx, args[1:])
	case "upload-url":
		err = app.uploadURL(ctx, args[1:])
	case "post":
		err = app.post(ctx, args[1:])
	case "feed":
		err = app.feed(ctx, args[1:])
	case "chats":
		err = app.chats(ctx)
	case "chat":
		err = app.chat(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fail(err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: rescuectl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  ping                                   Check the daemon")
	fmt.Fprintln(os.Stderr, "  register <email> <password> [first] [last]")
	fmt.Fprintln(os.Stderr, "  login <email> <password>               Sign in and save the token")
	fmt.Fprintln(os.Stderr, "  logout                                 Forget the saved token")
	fmt.Fprintln(os.Stderr, "  profile [user-id]                      Show a profile")
	fmt.Fprintln(os.Stderr, "  profile set [--first ..] [--bio ..]    Edit your profile")
	fmt.Fprintln(os.Stderr, "  profile qr [--png file]                Your profile as a QR code")
	fmt.Fprintln(os.Stderr, "  follow|unfollow <user-id>")
	fmt.Fprintln(os.Stderr, "  device <push-token>                    Register for push notifications")
	fmt.Fprintln(os.Stderr, "  upload-url <posts|avatars|covers> <file> <content-type>")
	fmt.Fprintln(os.Stderr, "  post create [flags] <text>             Share food")
	fmt.Fprintln(os.Stderr, "  post get|delete <id>")
	fmt.Fprintln(os.Stderr, "  post status <id> <waiting|rescued|wasted>")
	fmt.Fprintln(os.Stderr, "  post report <id> <reason>")
	fmt.Fprintln(os.Stderr, "  feed [--mode for_you|following] [--lat --lon --radius --cat] [--cursor] [--pages n]")
	fmt.Fprintln(os.Stderr, "  chats                                  List conversations")
	fmt.Fprintln(os.Stderr, "  chat send <user-id> <text>")
	fmt.Fprintln(os.Stderr, "  chat history|watch <user-id>")
}

func fail(err error) {
	if st, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "error: %s (%s)\n", st.Message(), st.Code())
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}

func usageError(usage string) error {
	return errors.New("usage: rescuectl " + usage)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func (a *cli) ping(ctx context.Context) error {
	resp, err := a.c.Ping(ctx)
	if err != nil {
		return err
	}
	if a.json {
		outputJSON(resp)
		return nil
	}
	fmt.Printf("Profile: %s\n", resp.Profile)
	fmt.Printf("Started: %s\n", resp.StartedAt.Format(time.RFC3339))
	fmt.Printf("Uptime:  %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
	return nil
}
