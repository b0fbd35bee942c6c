package bridge

import (
	"sync"
	"time"
)

const defaultSubscriberCapacity = 16

// Update announces that the session changed after an action.
type Update struct {
	Sequence int64     `json:"sequence"`
	Session  string    `json:"session"`
	Status   string    `json:"status"`
	Action   string    `json:"action,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// Hub fans session updates out to subscribers. Slow subscribers lose their
// oldest pending updates instead of blocking the publisher.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	sequence    int64
	last        *Update
	capacity    int
}

type subscriber struct {
	ch     chan Update
	closed bool
}

// Subscription is an active hub subscription.
type Subscription struct {
	Updates <-chan Update
	cancel  func()
}

// Close terminates the subscription and closes its channel.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewHub returns a hub whose subscribers buffer up to capacity updates.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultSubscriberCapacity
	}
	return &Hub{subscribers: map[*subscriber]struct{}{}, capacity: capacity}
}

// Subscribe registers a subscriber. The most recent update, if any, is
// delivered immediately.
func (h *Hub) Subscribe() Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &subscriber{ch: make(chan Update, h.capacity)}
	h.subscribers[sub] = struct{}{}
	if h.last != nil {
		sub.ch <- *h.last
	}
	return Subscription{
		Updates: sub.ch,
		cancel: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub.closed {
				return
			}
			sub.closed = true
			delete(h.subscribers, sub)
			close(sub.ch)
		},
	}
}

// Publish stamps the update with the next sequence number and delivers it.
func (h *Hub) Publish(update Update) Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sequence++
	update.Sequence = h.sequence
	copyUpdate := update
	h.last = &copyUpdate
	for sub := range h.subscribers {
		deliver(sub.ch, update)
	}
	return update
}

func deliver(ch chan Update, update Update) {
	for {
		select {
		case ch <- update:
			return
		default:
		}
		// Full: drop the oldest pending update and retry.
		select {
		case <-ch:
		default:
		}
	}
}
