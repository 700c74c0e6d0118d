package client

import (
	"context"
	"sync"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/realtime"
)

// RoomStream is a realtime.Stream backed by ChatService.WatchRoom. Each
// subscription holds one server stream open.
type RoomStream struct {
	c *Client

	mu   sync.Mutex
	next realtime.Handle
	subs map[realtime.Handle]*watch
}

type watch struct {
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
}

func (w *watch) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
}

func (c *Client) Rooms() *RoomStream {
	return &RoomStream{c: c, subs: make(map[realtime.Handle]*watch)}
}

// Subscribe opens a watch on key and waits for the first snapshot, so access
// errors surface here. The watch outlives ctx; only Unsubscribe ends it.
func (r *RoomStream) Subscribe(ctx context.Context, key string, onEmit func(realtime.Snapshot)) (realtime.Handle, error) {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)

	stream, err := r.c.conn.NewStream(streamCtx, &api.WatchRoomStream, api.ChatWatchRoom)
	if err == nil {
		err = stream.SendMsg(&api.WatchRoomRequest{RoomID: key})
	}
	if err == nil {
		err = stream.CloseSend()
	}
	var first realtime.Snapshot
	if err == nil {
		err = stream.RecvMsg(&first)
	}
	if !stop() || err != nil {
		cancel()
		if err == nil {
			err = ctx.Err()
		}
		return 0, err
	}

	w := &watch{cancel: cancel}
	r.mu.Lock()
	r.next++
	h := r.next
	r.subs[h] = w
	r.mu.Unlock()

	go func() {
		snap := first
		for {
			w.mu.Lock()
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			onEmit(snap)
			snap = realtime.Snapshot{}
			if err := stream.RecvMsg(&snap); err != nil {
				return
			}
		}
	}()
	return h, nil
}

// Unsubscribe cancels the watch without waiting for it to wind down.
func (r *RoomStream) Unsubscribe(h realtime.Handle) {
	r.mu.Lock()
	w, ok := r.subs[h]
	delete(r.subs, h)
	r.mu.Unlock()
	if ok {
		w.close()
	}
}

// Close ends every open watch.
func (r *RoomStream) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[realtime.Handle]*watch)
	r.mu.Unlock()
	for _, w := range subs {
		w.close()
	}
}
