package audit

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hostbridge/hostbridge/internal/store"
)

// subscriber pairs a delivery channel with its own drop counter so one slow
// admin connection's backpressure never affects another subscriber and is
// individually observable.
type subscriber struct {
	ch      chan *store.AuditEntry
	dropped atomic.Uint64
}

// Bus fans out audit entries to WebSocket subscribers in real time. The
// Audit Store remains authoritative; a reconnecting subscriber re-queries
// it rather than replaying missed bus events.
type Bus struct {
	mu   sync.RWMutex
	subs map[<-chan *store.AuditEntry]*subscriber
}

// NewBus creates a new audit event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[<-chan *store.AuditEntry]*subscriber),
	}
}

// Subscribe registers a new listener and returns a receive-only channel.
// The caller must call Unsubscribe when done.
func (b *Bus) Subscribe() <-chan *store.AuditEntry {
	sub := &subscriber{ch: make(chan *store.AuditEntry, 64)}
	b.mu.Lock()
	b.subs[sub.ch] = sub
	b.mu.Unlock()
	return sub.ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan *store.AuditEntry) {
	b.mu.Lock()
	if sub, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Publish sends an entry to all subscribers without blocking. Slow
// consumers that can't keep up will miss events; per §5's notification-bus
// backpressure contract there is no queue for offline consumers, only this
// bounded per-subscriber buffer. The first drop and every 100th thereafter
// are logged so a wedged admin connection is diagnosable rather than a
// silent gap in someone's audit view.
func (b *Bus) Publish(e *store.AuditEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			n := sub.dropped.Add(1)
			if n == 1 || n%100 == 0 {
				slog.Warn("audit bus subscriber is falling behind, dropping entry",
					"tool_category", e.ToolCategory, "tool_name", e.ToolName, "dropped_total", n)
			}
		}
	}
}
