package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
type Bus struct {
	mu   sync.RWMutex
	subs map[Subscription]*subscriber
	next int
}

// Subscription is the token returned by Subscribe; it is held by the
// owning component and passed back to Unsubscribe.
type Subscription struct {
	id int
}

type subscriber struct {
	namespace string
	ch        chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[Subscription]*subscriber),
	}
}

// Publish sends an event to all subscribers whose namespace is a prefix
// of event.Kind. Delivery is non-blocking; a full subscriber drops the
// event rather than stalling the publisher.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
			}
		}
	}
}

// Subscribe returns a channel receiving events matching the namespace
// prefix, plus the token used to unsubscribe. bufSize controls the
// channel buffer.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, Subscription) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := Subscription{id: b.next}
	b.next++
	b.subs[tok] = &subscriber{namespace: namespace, ch: ch}
	return ch, tok
}

// Unsubscribe removes a subscription. Unsubscribing a token twice is a
// no-op.
func (b *Bus) Unsubscribe(tok Subscription) {
	b.mu.Lock()
	delete(b.subs, tok)
	b.mu.Unlock()
}
