package docstore

import (
	"sync"
)

// Hub fans snapshots out to subscribers. Each subscriber has a one-slot
// mailbox drained by its own goroutine, so publishing never blocks and a
// subscriber only ever sees its newest pending snapshot.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]*subscriber
}

type subscriber struct {
	mailbox  chan Snapshot
	errs     chan error
	done     chan struct{}
	once     sync.Once
	last     int64
	onChange func(Snapshot)
	onError  func(error)
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]*subscriber)}
}

// Add registers a subscriber for collection. offer delivers a snapshot to
// this subscriber only (used for the initial snapshot); remove stops it.
func (h *Hub) Add(collection string, onChange func(Snapshot), onError func(error)) (offer func(Snapshot), remove func()) {
	s := &subscriber{
		mailbox:  make(chan Snapshot, 1),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
		last:     -1,
		onChange: onChange,
		onError:  onError,
	}

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[int]*subscriber)
	}
	h.subs[collection][id] = s
	h.mu.Unlock()

	go s.run()

	offer = func(snap Snapshot) {
		h.mu.Lock()
		defer h.mu.Unlock()
		s.offer(snap)
	}
	remove = func() {
		h.mu.Lock()
		delete(h.subs[collection], id)
		h.mu.Unlock()
		s.stop()
	}
	return offer, remove
}

// Publish offers snap to every subscriber of its collection.
func (h *Hub) Publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs[snap.Collection] {
		s.offer(snap)
	}
}

// Fail reports err to every subscriber of collection.
func (h *Hub) Fail(collection string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs[collection] {
		select {
		case s.errs <- err:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers of collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}

// Close stops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*subscriber
	for _, m := range h.subs {
		for _, s := range m {
			all = append(all, s)
		}
	}
	h.subs = make(map[string]map[int]*subscriber)
	h.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
}

// offer must be called with the hub lock held; it is the only sender.
func (s *subscriber) offer(snap Snapshot) {
	if snap.Revision <= s.last {
		return
	}
	s.last = snap.Revision
	select {
	case <-s.mailbox:
	default:
	}
	s.mailbox <- snap
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.mailbox:
			s.onChange(snap)
		case err := <-s.errs:
			if s.onError != nil {
				s.onError(err)
			}
		}
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}
