// Package eventbus is the catalog's in-process pub/sub for RegistryEvent
// notifications. It never touches disk and never blocks a publisher:
// a subscriber that falls behind loses its OLDEST undelivered events
// first, not its newest.
package eventbus

import (
	"context"
	"sync"

	"github.com/RomainDECOSTER/scoutquest/internal/registry"
	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
)

// Capacity is the bounded size of every subscriber's channel.
const Capacity = 1000

// Bus fans registry.RegistryEvent values out to every active
// subscription.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan registry.RegistryEvent
	next int
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan registry.RegistryEvent)}
}

// Subscription is a live handle returned by Subscribe. Callers must
// call Unsubscribe when done reading, or the bus leaks the channel.
type Subscription struct {
	id     int
	bus    *Bus
	Events <-chan registry.RegistryEvent
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe(ctx context.Context) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan registry.RegistryEvent, Capacity)
	id := b.next
	b.next++
	b.subs[id] = ch

	logger.L().DebugContext(ctx, "event bus subscriber attached", "subscriber_id", id)

	return &Subscription{id: id, bus: b, Events: ch}
}

// Unsubscribe detaches and closes the subscription's channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if ch, ok := s.bus.subs[s.id]; ok {
		delete(s.bus.subs, s.id)
		close(ch)
	}
}

// Publish fans out an event to every subscriber without blocking. A
// subscriber whose channel is at Capacity has its oldest buffered
// event dropped to make room for the new one — publishers never wait
// on a slow reader.
func (b *Bus) Publish(ctx context.Context, event registry.RegistryEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
				logger.L().WarnContext(ctx, "event bus subscriber still full after drain, dropping event",
					"subscriber_id", id, "event_type", event.Kind)
			}
		}
	}
}

// Close detaches and closes every subscriber channel. The bus is
// unusable afterward.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
