package realtime

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/logging"
	"github.com/rescue-app/rescue/internal/store"
)

// Loader reads a room's messages, oldest first.
type Loader interface {
	RoomMessages(ctx context.Context, roomID string) ([]store.Message, error)
}

// Hub is the in-process Stream. It listens for room.* events on the bus and
// pushes a freshly loaded snapshot to every subscriber of the changed room.
type Hub struct {
	loader Loader
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	// loadMu orders load+offer pairs so a slower, older load cannot overwrite
	// a newer snapshot.
	loadMu sync.Mutex

	mu   sync.Mutex
	subs map[string]map[Handle]*subscriber
	keys map[Handle]string
	next Handle
}

// NewHub creates a Hub reading from loader and listening on b.
func NewHub(loader Loader, b *bus.Bus, logger *zap.Logger) *Hub {
	return &Hub{
		loader: loader,
		bus:    b,
		logger: logging.OrNop(logger).Named("realtime"),
		subs:   make(map[string]map[Handle]*subscriber),
		keys:   make(map[Handle]string),
	}
}

// Start subscribes to room events on the bus.
func (h *Hub) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	ch, unsub := h.bus.Subscribe("room.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				h.refresh(ctx, evt.Key)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops listening and releases every subscription.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for _, s := range set {
			s.close()
		}
	}
	clear(h.subs)
	clear(h.keys)
}

// Subscribe registers onEmit for key and delivers the current snapshot.
func (h *Hub) Subscribe(ctx context.Context, key string, onEmit func(Snapshot)) (Handle, error) {
	if key == "" {
		return 0, fmt.Errorf("subscribe: empty room key")
	}

	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	snap, err := h.load(ctx, key)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	h.next++
	id := h.next
	s := newSubscriber(onEmit)
	if h.subs[key] == nil {
		h.subs[key] = make(map[Handle]*subscriber)
	}
	h.subs[key][id] = s
	h.keys[id] = key
	h.mu.Unlock()

	s.offer(snap)
	h.logger.Debug("room subscribed", zap.String("room", key), zap.Uint64("handle", uint64(id)))
	return id, nil
}

// Unsubscribe releases a subscription. Unknown handles are ignored.
func (h *Hub) Unsubscribe(id Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key, ok := h.keys[id]
	if !ok {
		return
	}
	delete(h.keys, id)
	if s := h.subs[key][id]; s != nil {
		s.close()
	}
	delete(h.subs[key], id)
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}

// Subscribers returns the number of live subscriptions for key.
func (h *Hub) Subscribers(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}

// refresh holds loadMu across the subscriber check so that a Subscribe still
// loading its initial snapshot is counted once it registers.
func (h *Hub) refresh(ctx context.Context, key string) {
	if key == "" {
		return
	}

	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	if h.Subscribers(key) == 0 {
		return
	}

	snap, err := h.load(ctx, key)
	if err != nil {
		h.logger.Error("failed to load room", zap.String("room", key), zap.Error(err))
		return
	}

	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[key]))
	for _, s := range h.subs[key] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.offer(snap)
	}
}

func (h *Hub) load(ctx context.Context, key string) (Snapshot, error) {
	rows, err := h.loader.RoomMessages(ctx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load room %s: %w", key, err)
	}
	snap := Snapshot{Key: key, Messages: make([]Message, 0, len(rows))}
	for _, m := range rows {
		snap.Messages = append(snap.Messages, MessageFromStore(m))
	}
	return snap, nil
}
