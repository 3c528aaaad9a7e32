package hitl

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Event is published on the HITL channel whenever a request is created or
// transitions out of pending.
type Event struct {
	Type    string   `json:"type"` // "created" or "updated"
	Request *Request `json:"request"`
}

// subscriber pairs a delivery channel with its own drop counter, so one
// slow admin connection never throttles delivery to the others and its
// backpressure is individually observable.
type subscriber struct {
	ch      chan Event
	dropped atomic.Uint64
}

// Bus fans out HITL events to live subscribers. Delivery is best-effort and
// non-blocking: a subscriber that cannot keep up misses events, but the
// Manager's in-memory table remains authoritative and a reconnecting
// subscriber can re-snapshot via Manager.ListPending (or, to subscribe and
// snapshot atomically, Manager.SubscribeWithSnapshot).
type Bus struct {
	mu   sync.RWMutex
	subs map[<-chan Event]*subscriber
}

// NewBus creates a new HITL event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[<-chan Event]*subscriber)}
}

// Subscribe registers a new listener. The caller must call Unsubscribe when done.
func (b *Bus) Subscribe() <-chan Event {
	sub := &subscriber{ch: make(chan Event, 64)}
	b.mu.Lock()
	b.subs[sub.ch] = sub
	b.mu.Unlock()
	return sub.ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	if sub, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking. A subscriber
// whose queue is full has the event dropped rather than stalling every
// other subscriber or the caller transitioning the request; per §5 of the
// notification bus contract there is no queue for offline consumers, only
// a bounded per-subscriber buffer. The first drop and every 100th
// thereafter are logged so a stuck admin connection shows up in the logs
// instead of silently losing events forever.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			n := sub.dropped.Add(1)
			if n == 1 || n%100 == 0 {
				slog.Warn("hitl bus subscriber is falling behind, dropping event",
					"event_type", evt.Type, "dropped_total", n)
			}
		}
	}
}
