// Package watch is an in-process pub/sub hub that fans document-change
// notifications out to the SSE streams of the API layer. Notifications are
// coalescing ticks; subscribers re-query the current state on each tick.
package watch

import "sync"

type key struct {
	collection string
	userID     string
}

type Subscriber struct {
	// C receives a tick after every change to the watched collection for
	// the watched user. Ticks coalesce; an unread tick absorbs later ones.
	C chan struct{}

	hub *Hub
	key key
}

type Hub struct {
	mu   sync.Mutex
	subs map[key]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[key]map[*Subscriber]struct{})}
}

func (h *Hub) Subscribe(collection, userID string) *Subscriber {
	k := key{collection: collection, userID: userID}
	sub := &Subscriber{C: make(chan struct{}, 1), hub: h, key: k}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[k] == nil {
		h.subs[k] = make(map[*Subscriber]struct{})
	}
	h.subs[k][sub] = struct{}{}
	return sub
}

func (h *Hub) Publish(collection, userID string) {
	k := key{collection: collection, userID: userID}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[k] {
		select {
		case sub.C <- struct{}{}:
		default:
		}
	}
}

func (s *Subscriber) Unsubscribe() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.key]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.key)
		}
	}
}
