// Package notify sends push notifications to a message's recipient through
// Firebase Cloud Messaging.
package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/logging"
	"github.com/rescue-app/rescue/internal/realtime"
	"github.com/rescue-app/rescue/internal/store"
)

const previewLen = 120

// Sender delivers one multicast message. *messaging.Client implements it.
type Sender interface {
	SendEachForMulticast(ctx context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// TokenStore holds device tokens and sender profiles.
type TokenStore interface {
	DeviceTokens(ctx context.Context, userID string) ([]string, error)
	DeleteDeviceTokens(ctx context.Context, tokens []string) error
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// NewFCMClient creates a messaging client from a service-account file.
func NewFCMClient(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return client, nil
}

// Notifier pushes a notification for every chat message published on the bus.
type Notifier struct {
	sender Sender
	tokens TokenStore
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	// isDead reports whether a per-token error means the token is gone.
	isDead func(error) bool
}

// NewNotifier creates a Notifier.
func NewNotifier(sender Sender, tokens TokenStore, b *bus.Bus, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		tokens: tokens,
		bus:    b,
		logger: logging.OrNop(logger).Named("notify"),
		isDead: messaging.IsUnregistered,
	}
}

// Start listens for room messages on the bus.
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	ch, unsub := n.bus.Subscribe(bus.KindRoomMessage, 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				msg, ok := evt.Payload.(realtime.Message)
				if !ok {
					continue
				}
				if err := n.NotifyMessage(ctx, msg); err != nil {
					n.logger.Warn("push failed", zap.String("room", msg.RoomID), zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops listening.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
}

// NotifyMessage pushes msg to every device of its recipient and forgets
// tokens the provider reports as unregistered.
func (n *Notifier) NotifyMessage(ctx context.Context, msg realtime.Message) error {
	tokens, err := n.tokens.DeviceTokens(ctx, msg.ToID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	title := "New message"
	if u, err := n.tokens.GetUser(ctx, msg.FromID); err == nil {
		title = u.DisplayName()
	}

	resp, err := n.sender.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: title,
			Body:  preview(msg.Body),
		},
		Data: map[string]string{
			"room_id": msg.RoomID,
			"from":    msg.FromID,
		},
		Tokens: tokens,
	})
	if err != nil {
		return fmt.Errorf("send multicast: %w", err)
	}

	var dead []string
	for i, r := range resp.Responses {
		if r.Success || i >= len(tokens) {
			continue
		}
		if n.isDead(r.Error) {
			dead = append(dead, tokens[i])
		} else {
			n.logger.Warn("token send failed", zap.Error(r.Error))
		}
	}
	if len(dead) > 0 {
		if err := n.tokens.DeleteDeviceTokens(ctx, dead); err != nil {
			return fmt.Errorf("delete dead tokens: %w", err)
		}
		n.logger.Info("removed dead device tokens", zap.Int("count", len(dead)))
	}
	return nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen-1]) + "…"
}
