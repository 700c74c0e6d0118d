package realtime

import "sync"

// subscriber serializes delivery to one callback. Only the newest pending
// snapshot is kept: each snapshot is complete, so older ones are redundant.
type subscriber struct {
	onEmit func(Snapshot)

	mu      sync.Mutex
	pending *Snapshot
	signal  chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newSubscriber(onEmit func(Snapshot)) *subscriber {
	s := &subscriber{
		onEmit: onEmit,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) offer(snap Snapshot) {
	s.mu.Lock()
	s.pending = &snap
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
			s.mu.Lock()
			snap := s.pending
			s.pending = nil
			s.mu.Unlock()
			if snap == nil {
				continue
			}
			select {
			case <-s.done:
				return
			default:
			}
			s.onEmit(*snap)
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}
