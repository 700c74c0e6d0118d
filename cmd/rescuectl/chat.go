package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/chat"
	"github.com/rescue-app/rescue/internal/realtime"
)

func (a *cli) chats(ctx context.Context) error {
	list, err := a.c.ListChats(ctx)
	if err != nil {
		return err
	}
	if a.json {
		outputJSON(list)
		return nil
	}
	if len(list) == 0 {
		fmt.Println("No conversations.")
		return nil
	}
	for _, p := range list {
		when := ""
		if p.LastSentAt > 0 {
			when = time.UnixMilli(p.LastSentAt).Format("01/02 15:04")
		}
		fmt.Printf("%-36s %-20s %-11s %s\n", p.PeerID, p.Receiver, when, p.LastMsg)
	}
	return nil
}

func (a *cli) chat(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("chat <send|history|watch> <user-id> [text]")
	}
	sub, peerID := args[0], args[1]
	switch sub {
	case "send":
		if len(args) < 3 {
			return usageError("chat send <user-id> <text>")
		}
		return a.chatSend(ctx, peerID, strings.Join(args[2:], " "))
	case "history":
		return a.chatHistory(ctx, peerID)
	case "watch":
		return a.chatWatch(ctx, peerID)
	}
	return fmt.Errorf("unknown chat subcommand: %s", sub)
}

// openSession resolves the room with peerID through the daemon.
func (a *cli) openSession(ctx context.Context, me *api.UserProfile, peerID string, onChange func([]realtime.Message)) (*chat.Session, error) {
	id := chat.Identity{UserID: me.ID, Name: me.DisplayName(), Email: me.Email, Image: me.Image}
	sess := chat.NewSession(a.c.Chat(), a.c.Rooms(), id, peerID, chat.Options{OnChange: onChange})
	if _, err := sess.ResolveRoom(ctx); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// participants loads both sides of a conversation for printing.
func (a *cli) participants(ctx context.Context, peerID string) (me, peer *api.UserProfile, err error) {
	if me, err = a.c.Profile(ctx, ""); err != nil {
		return nil, nil, err
	}
	if peer, err = a.c.Profile(ctx, peerID); err != nil {
		return nil, nil, err
	}
	return me, peer, nil
}

func (a *cli) chatSend(ctx context.Context, peerID, text string) error {
	me, err := a.c.Profile(ctx, "")
	if err != nil {
		return err
	}
	sess, err := a.openSession(ctx, me, peerID, nil)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.SendMessage(ctx, text); err != nil {
		return err
	}
	fmt.Println("Sent")
	return nil
}

func (a *cli) chatHistory(ctx context.Context, peerID string) error {
	me, peer, err := a.participants(ctx, peerID)
	if err != nil {
		return err
	}
	first := make(chan []realtime.Message, 1)
	var once sync.Once
	sess, err := a.openSession(ctx, me, peerID, func(msgs []realtime.Message) {
		once.Do(func() { first <- msgs })
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	select {
	case msgs := <-first:
		a.printMessages(me.ID, peer.DisplayName(), msgs)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// chatWatch prints messages as they arrive until interrupted.
func (a *cli) chatWatch(ctx context.Context, peerID string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, peer, err := a.participants(ctx, peerID)
	if err != nil {
		return err
	}
	var (
		mu      sync.Mutex
		printed int
	)
	sess, err := a.openSession(ctx, me, peerID, func(msgs []realtime.Message) {
		mu.Lock()
		defer mu.Unlock()
		if len(msgs) > printed {
			a.printMessages(me.ID, peer.DisplayName(), msgs[printed:])
			printed = len(msgs)
		}
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	<-ctx.Done()
	return nil
}

func (a *cli) printMessages(myID, peerName string, msgs []realtime.Message) {
	if a.json {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		who := peerName
		if m.FromID == myID {
			who = "you"
		}
		fmt.Printf("[%s] %s: %s\n", time.UnixMilli(m.SentAt).Format("01/02 15:04"), who, m.Body)
	}
}
